package config

import (
	"fmt"
	"os"

	flag "github.com/spf13/pflag"
)

// Flags holds all command line flag values
type Flags struct {
	fs *flag.FlagSet

	// General
	configFile           *string
	version              *bool
	issueOperatorToken   *bool
	operatorTokenSubject *string

	// Server
	serverPort         *int
	serverHost         *string
	serverReadTimeout  *string
	serverWriteTimeout *string
	serverTLSEnabled   *bool
	serverTLSCert      *string
	serverTLSKey       *string

	// Database
	dbType             *string
	dbSQLitePath       *string
	dbPostgresHost     *string
	dbPostgresPort     *int
	dbPostgresDatabase *string
	dbPostgresUser     *string
	dbPostgresPassword *string
	dbPostgresSSLMode  *string

	// Secrets
	secretKey     *string
	encryptionKey *string
	jwtSecret     *string
	jwtExpiration *string

	// Onboarding
	organizationName *string

	// Logging
	logLevel  *string
	logFormat *string

	// Security
	securityCORSEnabled       *bool
	securityCORSOrigins       *[]string
	securityRateLimitEnabled  *bool
	securityRateLimitRequests *int
}

// NewFlags defines all flags on the given flag set
func NewFlags(fs *flag.FlagSet) *Flags {
	f := &Flags{fs: fs}

	// General flags
	f.configFile = fs.StringP("config", "c", "config.yaml", "Path to configuration file")
	f.version = fs.BoolP("version", "v", false, "Print version and exit")
	f.issueOperatorToken = fs.Bool("issue-operator-token", false, "Print an operator API token and exit")
	f.operatorTokenSubject = fs.String("operator", "operator", "Operator name embedded in issued tokens")

	// Server flags
	f.serverPort = fs.Int("server.port", 0, "HTTP server port")
	f.serverHost = fs.String("server.host", "", "HTTP server bind address")
	f.serverReadTimeout = fs.String("server.read-timeout", "", "Server read timeout (e.g., 30s)")
	f.serverWriteTimeout = fs.String("server.write-timeout", "", "Server write timeout (e.g., 30s)")
	f.serverTLSEnabled = fs.Bool("server.tls-enabled", false, "Enable HTTPS")
	f.serverTLSCert = fs.String("server.tls-cert", "", "Path to TLS certificate")
	f.serverTLSKey = fs.String("server.tls-key", "", "Path to TLS key")

	// Database flags
	f.dbType = fs.String("db.type", "", "Database type (sqlite or postgres)")
	f.dbSQLitePath = fs.String("db.sqlite.path", "", "SQLite database file path")
	f.dbPostgresHost = fs.String("db.postgres.host", "", "PostgreSQL host")
	f.dbPostgresPort = fs.Int("db.postgres.port", 0, "PostgreSQL port")
	f.dbPostgresDatabase = fs.String("db.postgres.database", "", "PostgreSQL database name")
	f.dbPostgresUser = fs.String("db.postgres.user", "", "PostgreSQL user")
	f.dbPostgresPassword = fs.String("db.postgres.password", "", "PostgreSQL password")
	f.dbPostgresSSLMode = fs.String("db.postgres.ssl-mode", "", "PostgreSQL SSL mode")

	// Secret flags
	f.secretKey = fs.String("security.secret-key", "", "Server-wide secret key")
	f.encryptionKey = fs.String("crypto.encryption-key", "", "Dedicated credential encryption key")
	f.jwtSecret = fs.String("jwt.secret", "", "Operator token signing secret")
	f.jwtExpiration = fs.String("jwt.expiration", "", "Operator token lifetime (e.g., 1h)")

	// Onboarding flags
	f.organizationName = fs.String("onboarding.organization-name", "", "Organization name shown before onboarding completes")

	// Logging flags
	f.logLevel = fs.StringP("log.level", "l", "", "Log level (debug, info, warn, error)")
	f.logFormat = fs.String("log.format", "", "Log format (json or console)")

	// Security flags
	f.securityCORSEnabled = fs.Bool("security.cors-enabled", false, "Enable CORS")
	f.securityCORSOrigins = fs.StringSlice("security.cors-origins", nil, "CORS allowed origins (can be specified multiple times)")
	f.securityRateLimitEnabled = fs.Bool("security.rate-limit-enabled", false, "Enable per-client rate limiting")
	f.securityRateLimitRequests = fs.Int("security.rate-limit-requests", 0, "Rate limit requests per window")

	return f
}

// ParseFlags defines and parses all command line flags
func ParseFlags() (*Flags, string, bool) {
	f := NewFlags(flag.CommandLine)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Onboard - organization onboarding wizard service\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nConfiguration priority (highest to lowest):\n")
		fmt.Fprintf(os.Stderr, "  1. Command line flags\n")
		fmt.Fprintf(os.Stderr, "  2. Environment variables (ONBOARD_*)\n")
		fmt.Fprintf(os.Stderr, "  3. Configuration file (default: config.yaml)\n\n")
		fmt.Fprintf(os.Stderr, "Examples:\n")
		fmt.Fprintf(os.Stderr, "  # Start with custom config file\n")
		fmt.Fprintf(os.Stderr, "  %s --config /etc/onboard/config.yaml\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  # Use a dedicated encryption key and PostgreSQL\n")
		fmt.Fprintf(os.Stderr, "  %s --crypto.encryption-key \"$KEY\" --db.type postgres --db.postgres.host db\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  # Issue an operator API token\n")
		fmt.Fprintf(os.Stderr, "  %s --issue-operator-token --operator alice\n\n", os.Args[0])
	}

	flag.Parse()

	return f, *f.configFile, *f.version
}

func (f *Flags) changed(name string) bool {
	fl := f.fs.Lookup(name)
	return fl != nil && fl.Changed
}

// IssueOperatorToken reports whether a token should be printed instead of serving
func (f *Flags) IssueOperatorToken() (bool, string) {
	return *f.issueOperatorToken, *f.operatorTokenSubject
}

// GetServerPort returns the server port flag value and whether it was set
func (f *Flags) GetServerPort() (int, bool) {
	return *f.serverPort, f.changed("server.port")
}

// GetServerHost returns the server host flag value and whether it was set
func (f *Flags) GetServerHost() (string, bool) {
	return *f.serverHost, f.changed("server.host")
}

// GetServerReadTimeout returns the server read timeout flag value and whether it was set
func (f *Flags) GetServerReadTimeout() (string, bool) {
	return *f.serverReadTimeout, f.changed("server.read-timeout")
}

// GetServerWriteTimeout returns the server write timeout flag value and whether it was set
func (f *Flags) GetServerWriteTimeout() (string, bool) {
	return *f.serverWriteTimeout, f.changed("server.write-timeout")
}

// GetServerTLSEnabled returns the server TLS enabled flag value and whether it was set
func (f *Flags) GetServerTLSEnabled() (bool, bool) {
	return *f.serverTLSEnabled, f.changed("server.tls-enabled")
}

// GetServerTLSCert returns the server TLS cert flag value and whether it was set
func (f *Flags) GetServerTLSCert() (string, bool) {
	return *f.serverTLSCert, f.changed("server.tls-cert")
}

// GetServerTLSKey returns the server TLS key flag value and whether it was set
func (f *Flags) GetServerTLSKey() (string, bool) {
	return *f.serverTLSKey, f.changed("server.tls-key")
}

// GetDBType returns the database type flag value and whether it was set
func (f *Flags) GetDBType() (string, bool) {
	return *f.dbType, f.changed("db.type")
}

// GetDBSQLitePath returns the SQLite path flag value and whether it was set
func (f *Flags) GetDBSQLitePath() (string, bool) {
	return *f.dbSQLitePath, f.changed("db.sqlite.path")
}

// GetDBPostgresHost returns the PostgreSQL host flag value and whether it was set
func (f *Flags) GetDBPostgresHost() (string, bool) {
	return *f.dbPostgresHost, f.changed("db.postgres.host")
}

// GetDBPostgresPort returns the PostgreSQL port flag value and whether it was set
func (f *Flags) GetDBPostgresPort() (int, bool) {
	return *f.dbPostgresPort, f.changed("db.postgres.port")
}

// GetDBPostgresDatabase returns the PostgreSQL database flag value and whether it was set
func (f *Flags) GetDBPostgresDatabase() (string, bool) {
	return *f.dbPostgresDatabase, f.changed("db.postgres.database")
}

// GetDBPostgresUser returns the PostgreSQL user flag value and whether it was set
func (f *Flags) GetDBPostgresUser() (string, bool) {
	return *f.dbPostgresUser, f.changed("db.postgres.user")
}

// GetDBPostgresPassword returns the PostgreSQL password flag value and whether it was set
func (f *Flags) GetDBPostgresPassword() (string, bool) {
	return *f.dbPostgresPassword, f.changed("db.postgres.password")
}

// GetDBPostgresSSLMode returns the PostgreSQL SSL mode flag value and whether it was set
func (f *Flags) GetDBPostgresSSLMode() (string, bool) {
	return *f.dbPostgresSSLMode, f.changed("db.postgres.ssl-mode")
}

// GetSecretKey returns the server-wide secret flag value and whether it was set
func (f *Flags) GetSecretKey() (string, bool) {
	return *f.secretKey, f.changed("security.secret-key")
}

// GetEncryptionKey returns the dedicated encryption key flag value and whether it was set
func (f *Flags) GetEncryptionKey() (string, bool) {
	return *f.encryptionKey, f.changed("crypto.encryption-key")
}

// GetJWTSecret returns the JWT secret flag value and whether it was set
func (f *Flags) GetJWTSecret() (string, bool) {
	return *f.jwtSecret, f.changed("jwt.secret")
}

// GetJWTExpiration returns the JWT expiration flag value and whether it was set
func (f *Flags) GetJWTExpiration() (string, bool) {
	return *f.jwtExpiration, f.changed("jwt.expiration")
}

// GetOrganizationName returns the default organization name flag value and whether it was set
func (f *Flags) GetOrganizationName() (string, bool) {
	return *f.organizationName, f.changed("onboarding.organization-name")
}

// GetLogLevel returns the log level flag value and whether it was set
func (f *Flags) GetLogLevel() (string, bool) {
	return *f.logLevel, f.changed("log.level")
}

// GetLogFormat returns the log format flag value and whether it was set
func (f *Flags) GetLogFormat() (string, bool) {
	return *f.logFormat, f.changed("log.format")
}

// GetSecurityCORSEnabled returns the CORS enabled flag value and whether it was set
func (f *Flags) GetSecurityCORSEnabled() (bool, bool) {
	return *f.securityCORSEnabled, f.changed("security.cors-enabled")
}

// GetSecurityCORSOrigins returns the CORS origins flag value and whether it was set
func (f *Flags) GetSecurityCORSOrigins() ([]string, bool) {
	return *f.securityCORSOrigins, f.changed("security.cors-origins")
}

// GetSecurityRateLimitEnabled returns the rate limit enabled flag value and whether it was set
func (f *Flags) GetSecurityRateLimitEnabled() (bool, bool) {
	return *f.securityRateLimitEnabled, f.changed("security.rate-limit-enabled")
}

// GetSecurityRateLimitRequests returns the rate limit requests flag value and whether it was set
func (f *Flags) GetSecurityRateLimitRequests() (int, bool) {
	return *f.securityRateLimitRequests, f.changed("security.rate-limit-requests")
}
