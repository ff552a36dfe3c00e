// Package echoapi is the HTTP front of the CMRS admin console: the login and
// logout endpoints, the guarded screen routes, the notification surfaces and
// the navigation menu. Screens render as JSON descriptors; the actual screen
// content lives in the downstream services.
package echoapi

import (
	"context"
	"net/http"
	"sync"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/cmrsapp/console/core"
	"github.com/cmrsapp/console/core/notification"
	"github.com/cmrsapp/console/core/session"
	"github.com/cmrsapp/console/services/cmrsapi"
	"github.com/cmrsapp/console/storage/kvstore"
)

type (
	Options struct {
		Address        string
		DisableReqLogs bool

		Conf    *core.Config
		Logger  core.Logger
		Session *session.Store
		State   kvstore.Store
		Client  *cmrsapi.Client

		// NewChannel constructs a fresh notification channel; one channel
		// lives per login, torn down on logout.
		NewChannel func() *notification.Channel

		Validate   *validator.Validate
		Translator ut.Translator

		// SignalShutdown is invoked when an unrecoverable error is caught.
		SignalShutdown func()
	}

	Server interface {
		http.Handler
		Start()
		Stop(context.Context) error
	}

	server struct {
		opts *Options
		app  *echo.Echo

		mu      sync.Mutex
		channel *notification.Channel
	}
)

var _ Server = (*server)(nil)

func NewServer(opts *Options) Server {
	if opts.SignalShutdown == nil {
		opts.SignalShutdown = func() {}
	}
	s := &server{
		opts: opts,
		app:  echo.New(),
	}
	s.setup()

	// whichever path destroys the session, the channel goes with it
	opts.Session.OnLogout(s.closeChannel)
	return s
}

func (s *server) setup() {
	conf := s.opts.Conf

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.opts.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.opts.Logger, s.opts.Session, s.opts.Translator, s.opts.SignalShutdown)
	s.app.Debug = conf.Debug

	registerSessionAPI(s.app, s)

	// any authenticated role; the path rules are not consulted here
	ag := s.app.Group("", s.guardRoles())
	registerNotificationAPI(ag, s)
	ag.GET("/menu", s.menu)
	ag.GET("/forbidden", s.forbidden)

	// screen routes authorized by path prefix rules
	registerScreens(s.app.Group("", s.guard()), s)
}

func (s *server) Start() {
	s.app.Logger.Fatal(s.app.Start(s.opts.Address))
}

func (s *server) Stop(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

// currentChannel returns the live notification channel, or nil when signed
// out.
func (s *server) currentChannel() *notification.Channel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.channel
}

// openChannel replaces any previous channel with a fresh one subscribed for
// the identity, wiring the implicit-logout reaction to downstream 401s.
func (s *server) openChannel(identity *session.Identity) {
	if identity == nil {
		return
	}
	identifier := identity.Identifier()
	if identifier == "" {
		s.opts.Logger.Warn("no usable identifier, skipping notification subscription")
		return
	}

	s.mu.Lock()
	old := s.channel
	ch := s.opts.NewChannel()
	s.channel = ch
	s.mu.Unlock()

	if old != nil {
		if err := old.Close(); err != nil {
			s.opts.Logger.Warn("closing stale notification channel", err)
		}
	}

	ch.OnAPIError(s.opts.Session.HandleAPIError)
	if err := ch.Connect(identifier); err != nil {
		s.opts.Logger.Error("connecting notification channel", err)
	}
}

func (s *server) closeChannel() {
	s.mu.Lock()
	ch := s.channel
	s.channel = nil
	s.mu.Unlock()
	if ch != nil {
		if err := ch.Close(); err != nil {
			s.opts.Logger.Warn("closing notification channel", err)
		}
	}
}

// ensureChannel reopens the subscription when a persisted session survived a
// restart and no channel exists yet.
func (s *server) ensureChannel() {
	if s.currentChannel() != nil {
		return
	}
	s.openChannel(s.opts.Session.Identity())
}
