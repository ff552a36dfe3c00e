package core

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all the settings of the console process.
type Config struct {
	AppName  string
	Env      string // DEV (local; default), TEST, QA, PROD
	Build    string
	Debug    bool
	TestMode bool

	// StatePath is the location of the local state store holding the
	// credential, role list and profile record across restarts.
	StatePath string

	RollbarToken string

	Server struct {
		Host      string
		Addr      string
		DebugHost string
	}

	// Services holds the base URLs of the CMRS micro-services.
	// Each one is a distinct deployable; no gateway is assumed.
	Services struct {
		AuthBaseURL         string `validate:"required,url"`
		UserBaseURL         string `validate:"required,url"`
		RegistrationBaseURL string `validate:"required,url"`
		NotificationBaseURL string `validate:"required,url"`
	}

	Notification struct {
		FetchThrottleDelta  time.Duration
		RefreshMinDelta     time.Duration
		ReconnectDelay      time.Duration
		HeartbeatDelta      time.Duration
		ConnectedShowDelta  time.Duration
		ConnectingShowDelta time.Duration
	}
}

func NewConfig() *Config {
	v := viper.New()
	v.SetTypeByDefaultValue(true)

	// defaults
	v.SetDefault("debug", true)
	v.SetDefault("appName", "CMRS Console")
	v.SetDefault("build", "dev")
	v.SetDefault("statePath", filepath.Join(os.TempDir(), "cmrs-console.db"))
	v.SetDefault("serverHost", "localhost")
	v.SetDefault("serverAddr", ":8000")
	v.SetDefault("serverDebugHost", "localhost:4000")
	v.SetDefault("authBaseURL", "http://localhost:8085")
	v.SetDefault("userBaseURL", "http://localhost:8081")
	v.SetDefault("registrationBaseURL", "http://localhost:8083")
	v.SetDefault("notificationBaseURL", "http://localhost:8086")
	v.SetDefault("fetchThrottleDelta", 30*time.Second)
	v.SetDefault("refreshMinDelta", 5*time.Second)
	v.SetDefault("reconnectDelay", 5*time.Second)
	v.SetDefault("heartbeatDelta", 4*time.Second)
	v.SetDefault("connectedShowDelta", time.Second)
	v.SetDefault("connectingShowDelta", 3*time.Second)

	env := os.Getenv("ENV")
	if env == "" {
		env = "DEV"
	}
	v.SetEnvPrefix(env)

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join("config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	conf := &Config{
		AppName:      v.GetString("appName"),
		Env:          env,
		Build:        v.GetString("build"),
		Debug:        v.GetBool("debug"),
		TestMode:     env == "TEST",
		StatePath:    v.GetString("statePath"),
		RollbarToken: v.GetString("rollbarToken"),
	}
	conf.Server.Host = v.GetString("serverHost")
	conf.Server.Addr = v.GetString("serverAddr")
	conf.Server.DebugHost = v.GetString("serverDebugHost")
	conf.Services.AuthBaseURL = v.GetString("authBaseURL")
	conf.Services.UserBaseURL = v.GetString("userBaseURL")
	conf.Services.RegistrationBaseURL = v.GetString("registrationBaseURL")
	conf.Services.NotificationBaseURL = v.GetString("notificationBaseURL")
	conf.Notification.FetchThrottleDelta = v.GetDuration("fetchThrottleDelta")
	conf.Notification.RefreshMinDelta = v.GetDuration("refreshMinDelta")
	conf.Notification.ReconnectDelay = v.GetDuration("reconnectDelay")
	conf.Notification.HeartbeatDelta = v.GetDuration("heartbeatDelta")
	conf.Notification.ConnectedShowDelta = v.GetDuration("connectedShowDelta")
	conf.Notification.ConnectingShowDelta = v.GetDuration("connectingShowDelta")
	return conf
}
