// Package config provides configuration management for the onboarding service.
// It handles loading configuration from YAML files, applying environment variable
// and command line overrides, and validating configuration values for server,
// database, security, crypto, JWT, onboarding defaults and logging settings.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Security   SecurityConfig   `yaml:"security"`
	Crypto     CryptoConfig     `yaml:"crypto"`
	JWT        JWTConfig        `yaml:"jwt"`
	Onboarding OnboardingConfig `yaml:"onboarding"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int           `yaml:"port"`
	Host         string        `yaml:"host"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	TLSEnabled   bool          `yaml:"tls_enabled"`
	TLSCert      string        `yaml:"tls_cert"`
	TLSKey       string        `yaml:"tls_key"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Type     string         `yaml:"type"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// SQLiteConfig holds SQLite-specific configuration
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// PostgresConfig holds PostgreSQL-specific configuration
type PostgresConfig struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	Database     string `yaml:"database"`
	User         string `yaml:"user"`
	Password     string `yaml:"password"`
	SSLMode      string `yaml:"ssl_mode"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// SecurityConfig holds the server-wide secret and HTTP hardening settings
type SecurityConfig struct {
	SecretKey         string        `yaml:"secret_key"`
	CORSEnabled       bool          `yaml:"cors_enabled"`
	CORSOrigins       []string      `yaml:"cors_origins"`
	RateLimitEnabled  bool          `yaml:"rate_limit_enabled"`
	RateLimitRequests int           `yaml:"rate_limit_requests"`
	RateLimitWindow   time.Duration `yaml:"rate_limit_window"`
}

// CryptoConfig holds credential encryption settings
type CryptoConfig struct {
	// EncryptionKey is a dedicated credential encryption secret. When empty,
	// the key is derived from Security.SecretKey.
	EncryptionKey string `yaml:"encryption_key"`
}

// JWTConfig holds operator API token configuration
type JWTConfig struct {
	Secret     string        `yaml:"secret"`
	Expiration time.Duration `yaml:"expiration"`
	Issuer     string        `yaml:"issuer"`
}

// OnboardingConfig holds values used before any organization has been configured
type OnboardingConfig struct {
	DefaultOrganizationName string `yaml:"default_organization_name"`
	DefaultPrimaryColor     string `yaml:"default_primary_color"`
	DefaultSecondaryColor   string `yaml:"default_secondary_color"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// DevSecretKey is the fallback secret shipped for local development only
const DevSecretKey = "temp-key-change-in-production"

// Default returns a configuration populated with default values
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8000,
			Host:         "0.0.0.0",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Type:   "sqlite",
			SQLite: SQLiteConfig{Path: "onboard.db"},
			Postgres: PostgresConfig{
				Host:         "localhost",
				Port:         5432,
				Database:     "logbook_db",
				User:         "logbook_user",
				SSLMode:      "disable",
				MaxOpenConns: 10,
				MaxIdleConns: 5,
			},
		},
		Security: SecurityConfig{
			SecretKey:         DevSecretKey,
			CORSOrigins:       []string{"http://localhost:3000"},
			RateLimitRequests: 60,
			RateLimitWindow:   time.Minute,
		},
		JWT: JWTConfig{
			Expiration: time.Hour,
			Issuer:     "onboard",
		},
		Onboarding: OnboardingConfig{
			DefaultOrganizationName: "The Logbook",
			DefaultPrimaryColor:     "#DC2626",
			DefaultSecondaryColor:   "#1F2937",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
			Output: "stdout",
		},
	}
}

// Load reads the configuration file, then applies environment variable and
// command line overrides. A missing file is not an error; defaults are used.
// flags may be nil.
func Load(path string, flags *Flags) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg.applyEnvOverrides()

	if flags != nil {
		if err := cfg.applyFlagOverrides(flags); err != nil {
			return nil, fmt.Errorf("invalid command line flag: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration
func (c *Config) applyEnvOverrides() {
	// Server overrides
	if port := os.Getenv("ONBOARD_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}
	if host := os.Getenv("ONBOARD_SERVER_HOST"); host != "" {
		c.Server.Host = host
	}

	// Database overrides
	if dbType := os.Getenv("ONBOARD_DB_TYPE"); dbType != "" {
		c.Database.Type = dbType
	}
	if dbPath := os.Getenv("ONBOARD_DB_SQLITE_PATH"); dbPath != "" {
		c.Database.SQLite.Path = dbPath
	}
	if pgHost := os.Getenv("ONBOARD_DB_POSTGRES_HOST"); pgHost != "" {
		c.Database.Postgres.Host = pgHost
	}
	if pgPort := os.Getenv("ONBOARD_DB_POSTGRES_PORT"); pgPort != "" {
		if p, err := strconv.Atoi(pgPort); err == nil {
			c.Database.Postgres.Port = p
		}
	}
	if pgDB := os.Getenv("ONBOARD_DB_POSTGRES_DATABASE"); pgDB != "" {
		c.Database.Postgres.Database = pgDB
	}
	if pgUser := os.Getenv("ONBOARD_DB_POSTGRES_USER"); pgUser != "" {
		c.Database.Postgres.User = pgUser
	}
	if pgPass := os.Getenv("ONBOARD_DB_POSTGRES_PASSWORD"); pgPass != "" {
		c.Database.Postgres.Password = pgPass
	}

	// Secrets
	if secret := os.Getenv("ONBOARD_SECRET_KEY"); secret != "" {
		c.Security.SecretKey = secret
	}
	if encKey := os.Getenv("ONBOARD_ENCRYPTION_KEY"); encKey != "" {
		c.Crypto.EncryptionKey = encKey
	}
	if jwtSecret := os.Getenv("ONBOARD_JWT_SECRET"); jwtSecret != "" {
		c.JWT.Secret = jwtSecret
	}
	if origins := os.Getenv("ONBOARD_CORS_ORIGINS"); origins != "" {
		c.Security.CORSOrigins = splitCSV(origins)
	}

	// Logging overrides
	if logLevel := os.Getenv("ONBOARD_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// applyFlagOverrides applies command line flags that were explicitly set
func (c *Config) applyFlagOverrides(f *Flags) error {
	if v, ok := f.GetServerPort(); ok {
		c.Server.Port = v
	}
	if v, ok := f.GetServerHost(); ok {
		c.Server.Host = v
	}
	if v, ok := f.GetServerReadTimeout(); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("server.read-timeout: %w", err)
		}
		c.Server.ReadTimeout = d
	}
	if v, ok := f.GetServerWriteTimeout(); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("server.write-timeout: %w", err)
		}
		c.Server.WriteTimeout = d
	}
	if v, ok := f.GetServerTLSEnabled(); ok {
		c.Server.TLSEnabled = v
	}
	if v, ok := f.GetServerTLSCert(); ok {
		c.Server.TLSCert = v
	}
	if v, ok := f.GetServerTLSKey(); ok {
		c.Server.TLSKey = v
	}

	if v, ok := f.GetDBType(); ok {
		c.Database.Type = v
	}
	if v, ok := f.GetDBSQLitePath(); ok {
		c.Database.SQLite.Path = v
	}
	if v, ok := f.GetDBPostgresHost(); ok {
		c.Database.Postgres.Host = v
	}
	if v, ok := f.GetDBPostgresPort(); ok {
		c.Database.Postgres.Port = v
	}
	if v, ok := f.GetDBPostgresDatabase(); ok {
		c.Database.Postgres.Database = v
	}
	if v, ok := f.GetDBPostgresUser(); ok {
		c.Database.Postgres.User = v
	}
	if v, ok := f.GetDBPostgresPassword(); ok {
		c.Database.Postgres.Password = v
	}
	if v, ok := f.GetDBPostgresSSLMode(); ok {
		c.Database.Postgres.SSLMode = v
	}

	if v, ok := f.GetSecretKey(); ok {
		c.Security.SecretKey = v
	}
	if v, ok := f.GetEncryptionKey(); ok {
		c.Crypto.EncryptionKey = v
	}
	if v, ok := f.GetJWTSecret(); ok {
		c.JWT.Secret = v
	}
	if v, ok := f.GetJWTExpiration(); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("jwt.expiration: %w", err)
		}
		c.JWT.Expiration = d
	}

	if v, ok := f.GetOrganizationName(); ok {
		c.Onboarding.DefaultOrganizationName = v
	}

	if v, ok := f.GetLogLevel(); ok {
		c.Logging.Level = v
	}
	if v, ok := f.GetLogFormat(); ok {
		c.Logging.Format = v
	}

	if v, ok := f.GetSecurityCORSEnabled(); ok {
		c.Security.CORSEnabled = v
	}
	if v, ok := f.GetSecurityCORSOrigins(); ok {
		c.Security.CORSOrigins = v
	}
	if v, ok := f.GetSecurityRateLimitEnabled(); ok {
		c.Security.RateLimitEnabled = v
	}
	if v, ok := f.GetSecurityRateLimitRequests(); ok {
		c.Security.RateLimitRequests = v
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.TLSEnabled {
		if c.Server.TLSCert == "" || c.Server.TLSKey == "" {
			return fmt.Errorf("TLS enabled but cert or key not specified")
		}
	}

	// Validate database config
	if c.Database.Type != "sqlite" && c.Database.Type != "postgres" {
		return fmt.Errorf("invalid database type: %s (must be 'sqlite' or 'postgres')", c.Database.Type)
	}
	if c.Database.Type == "sqlite" && c.Database.SQLite.Path == "" {
		return fmt.Errorf("SQLite path not specified")
	}
	if c.Database.Type == "postgres" {
		if c.Database.Postgres.Host == "" || c.Database.Postgres.Database == "" {
			return fmt.Errorf("PostgreSQL host and database must be specified")
		}
	}

	if c.Security.SecretKey == "" {
		return fmt.Errorf("security secret key must not be empty")
	}
	if c.Security.RateLimitEnabled {
		if c.Security.RateLimitRequests < 1 || c.Security.RateLimitWindow <= 0 {
			return fmt.Errorf("rate limit requires positive requests and window")
		}
	}

	// Validate onboarding defaults
	validate := validator.New()
	for name, color := range map[string]string{
		"default primary color":   c.Onboarding.DefaultPrimaryColor,
		"default secondary color": c.Onboarding.DefaultSecondaryColor,
	} {
		if err := validate.Var(color, "required,hexcolor,len=7"); err != nil {
			return fmt.Errorf("invalid %s: %q", name, color)
		}
	}

	// Validate logging config
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	return nil
}

// EncryptionSecret returns the secret the credential codec is keyed from, and
// whether it is the dedicated encryption key rather than the shared secret.
func (c *Config) EncryptionSecret() (string, bool) {
	if c.Crypto.EncryptionKey != "" {
		return c.Crypto.EncryptionKey, true
	}
	return c.Security.SecretKey, false
}

// JWTSecret returns the operator token signing secret
func (c *Config) JWTSecret() string {
	if c.JWT.Secret != "" {
		return c.JWT.Secret
	}
	return c.Security.SecretKey
}

// OperatorAPIEnabled reports whether operator tokens are signed with a
// deployment specific secret. The development secret is public, so tokens
// signed with it are not accepted.
func (c *Config) OperatorAPIEnabled() bool {
	secret := c.JWTSecret()
	return secret != "" && secret != DevSecretKey
}

// GetDSN returns the database connection string based on the configured type
func (c *Config) GetDSN() string {
	switch c.Database.Type {
	case "sqlite":
		return c.Database.SQLite.Path
	case "postgres":
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Database.Postgres.Host,
			c.Database.Postgres.Port,
			c.Database.Postgres.User,
			c.Database.Postgres.Password,
			c.Database.Postgres.Database,
			c.Database.Postgres.SSLMode,
		)
	default:
		return ""
	}
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
