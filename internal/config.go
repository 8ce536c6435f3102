package internal

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"http_server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	SSO           SSOConfig           `mapstructure:"sso" validate:"required"`
	Session       SessionConfig       `mapstructure:"session" validate:"required"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

type ServerConfig struct {
	Port              int           `mapstructure:"port"`
	BaseURL           string        `mapstructure:"base_url"`
	AllowedOrigins    string        `mapstructure:"allowed_origins"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"required,min=1"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"required,min=1"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" validate:"required,min=1m"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time" validate:"required,min=1m"`
	Source          string        `mapstructure:"source"`
}

// SSOConfig describes the single external authorization server this
// application delegates authentication to.
type SSOConfig struct {
	ClientID      string        `mapstructure:"client_id" validate:"required"`
	ClientSecret  string        `mapstructure:"client_secret"`
	AuthURL       string        `mapstructure:"auth_url" validate:"required,url"`
	TokenURL      string        `mapstructure:"token_url" validate:"required,url"`
	UserInfoURL   string        `mapstructure:"userinfo_url" validate:"required,url"`
	LogoutURL     string        `mapstructure:"logout_url"`
	RedirectURL   string        `mapstructure:"redirect_url" validate:"required,url"`
	Scopes        []string      `mapstructure:"scopes"`
	LogoutTimeout time.Duration `mapstructure:"logout_timeout"`
}

type SessionConfig struct {
	// Secret seals the session cookie; must carry at least 32 bytes.
	Secret string `mapstructure:"secret" validate:"required,min=32"`
	// CookieName holds the sealed session payload on the client.
	CookieName string `mapstructure:"cookie_name"`
	// PendingCookieName holds state+verifier between login and callback.
	PendingCookieName string        `mapstructure:"pending_cookie_name"`
	MaxAge            time.Duration `mapstructure:"max_age"`
	PendingTTL        time.Duration `mapstructure:"pending_ttl"`
	Secure            bool          `mapstructure:"secure"`
	Domain            string        `mapstructure:"domain"`
}

type ObservabilityConfig struct {
	Logging LoggingConfig `mapstructure:"logging"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=json text"`
}

// ----------------- HELPERS -----------------

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultVal
}

// LoadConfigFromEnv builds a Config entirely from environment variables,
// used for container deployments where no config file is mounted.
func LoadConfigFromEnv() *Config {
	return &Config{
		Server: ServerConfig{
			Port:              getEnvAsInt("SERVER_PORT", 8080),
			BaseURL:           getEnv("SERVER_BASE_URL", "http://localhost:8080"),
			AllowedOrigins:    getEnv("SERVER_ALLOWED_ORIGINS", "*"),
			ReadHeaderTimeout: getEnvAsDuration("SERVER_READ_HEADER_TIMEOUT", 5*time.Second),
			ReadTimeout:       getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			IdleTimeout:       getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			WriteTimeout:      getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
		},
		Database: DatabaseConfig{
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvAsDuration("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
			Source:          getEnv("DB_SOURCE", ""),
		},
		SSO: SSOConfig{
			ClientID:      getEnv("SSO_CLIENT_ID", ""),
			ClientSecret:  getEnv("SSO_CLIENT_SECRET", ""),
			AuthURL:       getEnv("SSO_AUTH_URL", ""),
			TokenURL:      getEnv("SSO_TOKEN_URL", ""),
			UserInfoURL:   getEnv("SSO_USERINFO_URL", ""),
			LogoutURL:     getEnv("SSO_LOGOUT_URL", ""),
			RedirectURL:   getEnv("SSO_REDIRECT_URL", ""),
			Scopes:        splitNonEmpty(getEnv("SSO_SCOPES", "openid profile email")),
			LogoutTimeout: getEnvAsDuration("SSO_LOGOUT_TIMEOUT", 5*time.Second),
		},
		Session: SessionConfig{
			Secret:            getEnv("SESSION_SECRET", ""),
			CookieName:        getEnv("SESSION_COOKIE_NAME", "aw_session"),
			PendingCookieName: getEnv("SESSION_PENDING_COOKIE_NAME", "aw_auth_pending"),
			MaxAge:            getEnvAsDuration("SESSION_MAX_AGE", 8*time.Hour),
			PendingTTL:        getEnvAsDuration("SESSION_PENDING_TTL", 10*time.Minute),
			Secure:            getEnv("SESSION_SECURE", "true") == "true",
			Domain:            getEnv("SESSION_DOMAIN", ""),
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{
				Level:  getEnv("LOG_LEVEL", "info"),
				Format: getEnv("LOG_FORMAT", "json"),
			},
		},
	}
}

func splitNonEmpty(s string) []string {
	var out []string
	for _, part := range strings.Fields(s) {
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ----------------- VALIDATION -----------------

func (c *Config) Validate() error {
	var errs []string

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("database config: %v", err))
	}

	if err := c.SSO.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("sso config: %v", err))
	}

	if err := c.Session.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("session config: %v", err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

func (c *ServerConfig) Validate() error {
	if c.AllowedOrigins != "" {
		origins := strings.Split(c.AllowedOrigins, ",")
		for _, origin := range origins {
			origin = strings.TrimSpace(origin)
			if origin == "*" {
				continue
			}
			if _, err := url.Parse(origin); err != nil {
				return fmt.Errorf("invalid allowed origin %s: %w", origin, err)
			}
		}
	}
	if c.ReadTimeout < c.ReadHeaderTimeout {
		return errors.New("read_timeout must be >= read_header_timeout")
	}
	return nil
}

func (c *DatabaseConfig) Validate() error {
	if c.MaxIdleConns > c.MaxOpenConns {
		return errors.New("max_idle_conns cannot be greater than max_open_conns")
	}
	return nil
}

func (c *DatabaseConfig) GetDSN() string {
	return c.Source
}

func (c *SSOConfig) Validate() error {
	if c.ClientID == "" {
		return errors.New("client_id is required")
	}
	for name, raw := range map[string]string{
		"auth_url":     c.AuthURL,
		"token_url":    c.TokenURL,
		"userinfo_url": c.UserInfoURL,
		"redirect_url": c.RedirectURL,
	} {
		if raw == "" {
			return fmt.Errorf("%s is required", name)
		}
		if _, err := url.ParseRequestURI(raw); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}
	if c.LogoutURL != "" {
		if _, err := url.ParseRequestURI(c.LogoutURL); err != nil {
			return fmt.Errorf("invalid logout_url: %w", err)
		}
	}
	return nil
}

func (c *SessionConfig) Validate() error {
	if len(c.Secret) < 32 {
		return errors.New("session secret must be at least 32 characters")
	}
	return nil
}

// Defaults fills the optional session fields so callers can rely on them.
func (c *SessionConfig) Defaults() {
	if c.CookieName == "" {
		c.CookieName = "aw_session"
	}
	if c.PendingCookieName == "" {
		c.PendingCookieName = "aw_auth_pending"
	}
	if c.MaxAge <= 0 {
		c.MaxAge = 8 * time.Hour
	}
	if c.PendingTTL <= 0 {
		c.PendingTTL = 10 * time.Minute
	}
}
