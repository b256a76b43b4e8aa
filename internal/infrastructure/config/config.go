// Package config loads server and CLI configuration with viper.
//
// Priority (highest to lowest):
//  1. Environment variables with LOGIBILL_ prefix (e.g. LOGIBILL_DATABASE_URL)
//  2. config.yaml in the working directory or /etc/logibill
//  3. Built-in defaults
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store backends.
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config holds all application configuration.
type Config struct {
	App       AppConfig
	Log       LogConfig
	Database  DatabaseConfig
	Store     string
	JWT       JWTConfig
	Clients   map[string]string // client id -> bcrypt hash of its secret
	HTTP      HTTPConfig
	Backend   BackendConfig
	Numbering NumberingConfig
	Audit     AuditConfig
}

// AppConfig holds application-specific settings.
type AppConfig struct {
	Env  string
	Port string
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	URL            string
	MaxConns       int32
	MigrationsPath string
}

// JWTConfig holds token signing settings.
type JWTConfig struct {
	Secret string
	Issuer string
	TTL    time.Duration
}

// HTTPConfig holds server settings.
type HTTPConfig struct {
	RateLimit       float64 // requests per second per client; 0 disables
	RateBurst       int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// BackendConfig is how numctl reaches the numbering backend.
type BackendConfig struct {
	URL          string
	Token        string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
}

// NumberingConfig tunes the client-side allocator.
type NumberingConfig struct {
	FailClosed bool
}

// AuditConfig tunes audit storage.
type AuditConfig struct {
	CompressThreshold int
}

// Development reports whether the app runs in development mode.
func (c *Config) Development() bool {
	return c.App.Env == "development"
}

// Load reads and validates the server configuration.
// configFile, when non-empty, replaces the default search paths.
func Load(configFile string) (*Config, error) {
	cfg, err := read(configFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadClient reads the configuration numctl needs. Server-only keys are not validated.
func LoadClient(configFile string) (*Config, error) {
	cfg, err := read(configFile)
	if err != nil {
		return nil, err
	}
	if cfg.Backend.URL == "" {
		return nil, fmt.Errorf("backend.url is required")
	}
	if cfg.Backend.Timeout <= 0 {
		return nil, fmt.Errorf("backend.timeout must be positive")
	}
	return cfg, nil
}

func read(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/logibill")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("LOGIBILL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Log: LogConfig{
			Level: v.GetString("log.level"),
		},
		Database: DatabaseConfig{
			URL:            v.GetString("database.url"),
			MaxConns:       v.GetInt32("database.max_conns"),
			MigrationsPath: v.GetString("database.migrations_path"),
		},
		Store: v.GetString("store"),
		JWT: JWTConfig{
			Secret: v.GetString("jwt.secret"),
			Issuer: v.GetString("jwt.issuer"),
			TTL:    v.GetDuration("jwt.ttl"),
		},
		Clients: loadClients(v),
		HTTP: HTTPConfig{
			RateLimit:       v.GetFloat64("http.rate_limit"),
			RateBurst:       v.GetInt("http.rate_burst"),
			ReadTimeout:     v.GetDuration("http.read_timeout"),
			WriteTimeout:    v.GetDuration("http.write_timeout"),
			ShutdownTimeout: v.GetDuration("http.shutdown_timeout"),
		},
		Backend: BackendConfig{
			URL:          v.GetString("backend.url"),
			Token:        v.GetString("backend.token"),
			ClientID:     v.GetString("backend.client_id"),
			ClientSecret: v.GetString("backend.client_secret"),
			Timeout:      v.GetDuration("backend.timeout"),
		},
		Numbering: NumberingConfig{
			FailClosed: v.GetBool("numbering.fail_closed"),
		},
		Audit: AuditConfig{
			CompressThreshold: v.GetInt("audit.compress_threshold"),
		},
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.migrations_path", "migrations")
	v.SetDefault("store", StorePostgres)
	v.SetDefault("jwt.issuer", "logibill")
	v.SetDefault("jwt.ttl", 15*time.Minute)
	v.SetDefault("http.rate_limit", 50)
	v.SetDefault("http.rate_burst", 100)
	v.SetDefault("http.read_timeout", 15*time.Second)
	v.SetDefault("http.write_timeout", 30*time.Second)
	v.SetDefault("http.shutdown_timeout", 30*time.Second)
	v.SetDefault("backend.url", "http://localhost:8080")
	v.SetDefault("backend.timeout", 10*time.Second)
	v.SetDefault("numbering.fail_closed", false)
	v.SetDefault("audit.compress_threshold", 4096)
}

// loadClients reads the clients map from the config file, or from
// LOGIBILL_CLIENTS formatted as "id=hash,id2=hash2".
func loadClients(v *viper.Viper) map[string]string {
	clients := v.GetStringMapString("clients")
	if len(clients) > 0 {
		return clients
	}

	raw := v.GetString("clients")
	out := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		id, hash, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || id == "" || hash == "" {
			continue
		}
		out[id] = hash
	}
	return out
}

func (c *Config) validate() error {
	switch c.Store {
	case StorePostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("database.url is required when store is %q", StorePostgres)
		}
	case StoreMemory:
	default:
		return fmt.Errorf("store must be %q or %q, got %q", StorePostgres, StoreMemory, c.Store)
	}

	if c.HTTP.RateLimit < 0 {
		return fmt.Errorf("http.rate_limit cannot be negative")
	}
	if c.HTTP.RateLimit > 0 && c.HTTP.RateBurst < 1 {
		return fmt.Errorf("http.rate_burst must be at least 1 when rate limiting is enabled")
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("jwt.secret is required")
	}
	if c.JWT.TTL <= 0 {
		return fmt.Errorf("jwt.ttl must be positive")
	}

	if c.App.Env == "production" {
		if len(c.JWT.Secret) < 32 {
			return fmt.Errorf("jwt.secret must be at least 32 characters in production")
		}
		if c.Store == StoreMemory {
			return fmt.Errorf("store %q is not allowed in production", StoreMemory)
		}
	}
	return nil
}
