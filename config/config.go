package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"go.uber.org/zap"
)

type Config struct {
	Env            string `env:"ENVIRONMENT" envDefault:"development"`
	ServerHost     string `env:"SERVER_HOST"`
	ServerPort     int    `env:"SERVER_PORT" envDefault:"8080"`
	DatabasePath   string `env:"DATABASE_PATH" envDefault:"linewatch.sqlite"`
	BasicAuthCreds string `env:"BASIC_AUTH_CREDS"`

	Provider struct {
		BaseURL     string `env:"PROVIDER_BASE_URL" envDefault:"https://prim.iledefrance-mobilites.fr/marketplace/navitia/coverage/fr-idf"`
		APIKey      string `env:"PROVIDER_API_KEY"`
		LinesFilter string `env:"PROVIDER_LINES_FILTER" envDefault:"(physical_mode.id=physical_mode:RapidTransit) or (physical_mode.id=physical_mode:LocalTrain) or (physical_mode.id=physical_mode:Tramway)"`
		TimeoutSecs int    `env:"PROVIDER_TIMEOUT_SECS" envDefault:"30"`
	}
	Ingest Ingest
	Notify struct {
		Platform string `env:"NOTIFY_PLATFORM" envDefault:"fcm"`
	}
	FCM struct {
		ServerKey string `env:"FCM_SERVER_KEY"`
	}
	APNS struct {
		Key         string `env:"APNS_KEY"`
		KeyPath     string `env:"APNS_KEY_PATH"`
		KeyID       string `env:"APNS_KEY_ID"`
		TeamID      string `env:"APNS_TEAM_ID"`
		Topic       string `env:"APNS_TOPIC"`
		Production  bool   `env:"APNS_PRODUCTION"`
		Host        string `env:"APNS_HOST"`
		TimeoutSecs int    `env:"APNS_TIMEOUT_SECS" envDefault:"10"`
	}
	Mailgun struct {
		Domain      string `env:"MAILGUN_DOMAIN"`
		APIBase     string `env:"MAILGUN_API_BASE"`
		APIKey      string `env:"MAILGUN_API_KEY"`
		SenderFrom  string `env:"MAILGUN_SENDER_FROM"`
		TimeoutSecs int    `env:"MAILGUN_TIMEOUT_SECS" envDefault:"10"`
		RatePerSec  int    `env:"MAILGUN_RATE_PER_SEC" envDefault:"5"`
	}

	log   *zap.Logger
	creds map[string]string
}

type Ingest struct {
	Concurrency      int `env:"INGEST_CONCURRENCY" envDefault:"5"`
	CycleTimeoutSecs int `env:"INGEST_CYCLE_TIMEOUT_SECS" envDefault:"90"`
}

const (
	defaultCycleTimeoutSecs = 90
	shutdownGrace           = 15 * time.Second
)

func NewConfig(log *zap.Logger) (*Config, error) {
	cfg := &Config{log: log}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	creds, err := cfg.parseCreds()
	if err != nil {
		if cfg.BasicAuthCreds != "" {
			return nil, err
		}
		if cfg.IsProduction() {
			return nil, fmt.Errorf("%w, admin routes cannot be left open in production", err)
		}
		cfg.log.Sugar().Infof("%s (admin routes will be left open)", err)
	}
	cfg.creds = creds

	return cfg, nil
}

func (cfg *Config) validate() error {
	if cfg.Provider.APIKey == "" {
		return errors.New("PROVIDER_API_KEY envvar must be populated")
	}
	if cfg.Ingest.Concurrency <= 0 {
		cfg.Ingest.Concurrency = 1
	}
	return nil
}

func (cfg *Config) IsProduction() bool {
	return cfg.Env == "production"
}

func (cfg *Config) GetCreds() map[string]string {
	return cfg.creds
}

func (cfg *Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", cfg.ServerHost, cfg.ServerPort)
}

func (cfg *Config) ProviderTimeout() time.Duration {
	return time.Duration(cfg.Provider.TimeoutSecs) * time.Second
}

func (cfg *Config) CycleTimeout() time.Duration {
	return time.Duration(cfg.Ingest.CycleTimeoutSecs) * time.Second
}

// ShutdownTimeout is how long the app waits for stop hooks. It outlasts the
// cycle timeout so an in-flight ingestion cycle can finish. It reads the
// environment directly because fx needs it before the graph is built.
func ShutdownTimeout() time.Duration {
	ingest, err := env.ParseAs[Ingest]()
	if err != nil || ingest.CycleTimeoutSecs <= 0 {
		ingest.CycleTimeoutSecs = defaultCycleTimeoutSecs
	}
	return time.Duration(ingest.CycleTimeoutSecs)*time.Second + shutdownGrace
}

func (cfg *Config) parseCreds() (map[string]string, error) {
	if cfg.BasicAuthCreds == "" {
		return nil, errors.New("BASIC_AUTH_CREDS envvar is not populated")
	}

	creds := strings.Split(cfg.BasicAuthCreds, ",")
	result := make(map[string]string)
	for _, cred := range creds {
		userPass := strings.Split(cred, ":")
		if len(userPass) != 2 {
			return nil, fmt.Errorf("failed to parse '%s', each credential should be delimited by a colon -- user1:pass1,user2:pass2", cred)
		}

		user, pass := userPass[0], userPass[1]
		result[strings.Trim(user, " ")] = strings.Trim(pass, " ")
	}

	return result, nil
}
