package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	echoapi "github.com/cmrsapp/console/apps/console/echo"
	"github.com/cmrsapp/console/core"
	"github.com/cmrsapp/console/core/notification"
	"github.com/cmrsapp/console/core/session"
	"github.com/cmrsapp/console/services/cmrsapi"
	logsvc "github.com/cmrsapp/console/services/logger"
	"github.com/cmrsapp/console/services/push"
	"github.com/cmrsapp/console/storage/kvstore/sqlitestore"
)

const shutdownTimeout = 20 * time.Second

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "CONSOLE : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	// local state store; the session survives restarts through it
	state, err := sqlitestore.Open(conf.StatePath)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening state store: %v", err), err)
	}
	defer func() {
		if err = state.Close(); err != nil {
			logger.Error("closing state store", err)
		}
	}()

	client := cmrsapi.NewClient(conf, logger)
	sess := session.NewStore(client, state, logger)
	client.TokenSource = sess.Token

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start Console Service

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	server := echoapi.NewServer(&echoapi.Options{
		Address: conf.Server.Addr,
		Conf:    conf,
		Logger:  logger,
		Session: sess,
		State:   state,
		Client:  client,
		NewChannel: func() *notification.Channel {
			return notification.NewChannel(client, push.NewWebsocketTransport(conf, logger), logger, conf)
		},
		Validate:       validate,
		Translator:     translator,
		SignalShutdown: func() { shutdown <- syscall.SIGTERM },
	})

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	sig := <-shutdown
	logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

	// give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err = server.Stop(ctx); err != nil {
		logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)
	}
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}
