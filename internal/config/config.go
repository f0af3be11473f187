package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	minSessionSecretLength = 16

	defaultSQLitePath   = "./data/steam.db"
	defaultAuditLogFile = "./data/audit.log"
)

type Config struct {
	Env          string `env:"APP_ENV" envDefault:"development"`
	HTTP         HTTPConfig
	Steam        SteamConfig
	Auth         AuthConfig
	Log          LogConfig
	Telemetry    TelemetryConfig
	FrontendURL  string `env:"FRONTEND_URL" envDefault:"http://localhost:5840"`
	DatabaseURL  string `env:"DATABASE_URL"`
	// SQLitePath and AuditLogFile default only when unset; set to "" they
	// select in-memory stores and disable the audit log.
	SQLitePath   string `env:"SQLITE_PATH"`
	AuditLogFile string `env:"AUDIT_LOG_FILE"`
}

type HTTPConfig struct {
	Addr            string        `env:"HTTP_ADDR" envDefault:":5150"`
	ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"20s"`
}

type SteamConfig struct {
	APIKey         string        `env:"STEAM_API_KEY"`
	WebAPIBaseURL  string        `env:"STEAM_WEB_API_URL" envDefault:"https://api.steampowered.com"`
	StoreBaseURL   string        `env:"STEAM_STORE_URL" envDefault:"https://store.steampowered.com"`
	OpenIDEndpoint string        `env:"STEAM_OPENID_URL" envDefault:"https://steamcommunity.com/openid"`
	Timeout        time.Duration `env:"STEAM_HTTP_TIMEOUT" envDefault:"15s"`
}

type AuthConfig struct {
	Realm           string        `env:"STEAM_REALM" envDefault:"http://localhost:5150"`
	ReturnURL       string        `env:"STEAM_RETURN_URL" envDefault:"http://localhost:5150/auth/steam/return"`
	SessionSecret   string        `env:"SESSION_SECRET"`
	SessionTTL      time.Duration `env:"SESSION_TTL" envDefault:"168h"`
	CookieName      string        `env:"SESSION_COOKIE_NAME" envDefault:"steam_session"`
	CleanupInterval time.Duration `env:"SESSION_CLEANUP_INTERVAL" envDefault:"10m"`
	FailureRedirect string        `env:"AUTH_FAILURE_REDIRECT" envDefault:"/"`

	// Derived after parsing.
	SecureCookie    bool
	SuccessRedirect string
}

type LogConfig struct {
	Level string `env:"LOG_LEVEL" envDefault:"info"`
	JSON  bool   `env:"LOG_JSON" envDefault:"false"`
}

type TelemetryConfig struct {
	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName  string `env:"OTEL_SERVICE_NAME" envDefault:"steam-api"`
}

func (c Config) Production() bool {
	return strings.EqualFold(c.Env, "production")
}

func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	cfg.SQLitePath = defaultIfUnset("SQLITE_PATH", cfg.SQLitePath, defaultSQLitePath)
	cfg.AuditLogFile = defaultIfUnset("AUDIT_LOG_FILE", cfg.AuditLogFile, defaultAuditLogFile)
	cfg.FrontendURL = strings.TrimRight(strings.TrimSpace(cfg.FrontendURL), "/")
	cfg.Auth.SecureCookie = cfg.Production()
	cfg.Auth.SuccessRedirect = cfg.FrontendURL + "/profile"

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func defaultIfUnset(key, value, fallback string) string {
	if _, ok := os.LookupEnv(key); !ok {
		return fallback
	}
	return strings.TrimSpace(value)
}

func (c Config) validate() error {
	if c.HTTP.Addr == "" {
		return fmt.Errorf("HTTP_ADDR must not be empty")
	}
	if c.HTTP.ShutdownTimeout <= 0 {
		return fmt.Errorf("HTTP_SHUTDOWN_TIMEOUT must be > 0")
	}
	if strings.TrimSpace(c.Steam.APIKey) == "" {
		return fmt.Errorf("STEAM_API_KEY must not be empty")
	}
	if c.Steam.Timeout < 0 {
		return fmt.Errorf("STEAM_HTTP_TIMEOUT must be >= 0")
	}
	for name, raw := range map[string]string{
		"STEAM_WEB_API_URL": c.Steam.WebAPIBaseURL,
		"STEAM_STORE_URL":   c.Steam.StoreBaseURL,
		"STEAM_OPENID_URL":  c.Steam.OpenIDEndpoint,
		"STEAM_REALM":       c.Auth.Realm,
		"STEAM_RETURN_URL":  c.Auth.ReturnURL,
		"FRONTEND_URL":      c.FrontendURL,
	} {
		if err := requireAbsoluteURL(raw); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	if !strings.HasPrefix(c.Auth.ReturnURL, strings.TrimRight(c.Auth.Realm, "/")) {
		return fmt.Errorf("STEAM_RETURN_URL must be under STEAM_REALM")
	}
	if len(c.Auth.SessionSecret) < minSessionSecretLength {
		return fmt.Errorf("SESSION_SECRET must be at least %d bytes", minSessionSecretLength)
	}
	if c.Auth.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be > 0")
	}
	if c.Auth.CookieName == "" {
		return fmt.Errorf("SESSION_COOKIE_NAME must not be empty")
	}
	if c.Auth.CleanupInterval <= 0 {
		return fmt.Errorf("SESSION_CLEANUP_INTERVAL must be > 0")
	}
	if c.Auth.FailureRedirect == "" {
		return fmt.Errorf("AUTH_FAILURE_REDIRECT must not be empty")
	}
	return nil
}

func requireAbsoluteURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("must not be empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("must be an absolute url")
	}
	return nil
}
