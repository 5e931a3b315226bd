// Package database provides database connection management, migrations, and data access methods for the onboarding service.
package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/robcowart/onboard/internal/config"
	"github.com/robcowart/onboard/internal/database/models"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations
var migrationsFS embed.FS

// Database represents the database connection and operations
type Database struct {
	db     *sql.DB
	dbType string
}

// New creates a new database connection
func New(cfg *config.Config) (*Database, error) {
	var db *sql.DB
	var err error

	switch cfg.Database.Type {
	case "sqlite":
		db, err = sql.Open("sqlite3", cfg.Database.SQLite.Path+"?_foreign_keys=on")
		if err != nil {
			return nil, fmt.Errorf("failed to open SQLite database: %w", err)
		}
		// SQLite only allows one writer at a time
		db.SetMaxOpenConns(1)
	case "postgres":
		db, err = sql.Open("postgres", cfg.GetDSN())
		if err != nil {
			return nil, fmt.Errorf("failed to open PostgreSQL database: %w", err)
		}
		db.SetMaxOpenConns(cfg.Database.Postgres.MaxOpenConns)
		db.SetMaxIdleConns(cfg.Database.Postgres.MaxIdleConns)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Database.Type)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Database{
		db:     db,
		dbType: cfg.Database.Type,
	}, nil
}

// Close closes the database connection
func (d *Database) Close() error {
	return d.db.Close()
}

// Migrate applies any pending schema migrations for the configured dialect
func (d *Database) Migrate() error {
	var driver database.Driver
	var err error
	if d.dbType == "postgres" {
		driver, err = postgres.WithInstance(d.db, &postgres.Config{})
	} else {
		driver, err = sqlite3.WithInstance(d.db, &sqlite3.Config{})
	}
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations/"+d.dbType)
	if err != nil {
		return fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	instance, err := migrate.NewWithInstance("iofs", source, d.dbType, driver)
	if err != nil {
		return fmt.Errorf("failed to initialise migrations: %w", err)
	}

	if err := instance.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	return nil
}

// DB returns the underlying database connection for direct queries
func (d *Database) DB() *sql.DB {
	return d.db
}

// rebind rewrites '?' placeholders to '$n' for PostgreSQL
func (d *Database) rebind(query string) string {
	if d.dbType != "postgres" {
		return query
	}

	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

type scanner interface {
	Scan(dest ...any) error
}

// Onboarding configuration operations

const onboardingConfigColumns = `id, organization_name, primary_color, secondary_color,
	email_backend, email_host, email_port, email_use_tls, email_use_ssl,
	email_host_user, email_host_password_enc, email_from_address,
	session_timeout_minutes, password_min_length, require_2fa, allowed_domains,
	storage_backend, s3_bucket_name, s3_region, s3_access_key_enc, s3_secret_key_enc,
	integrations_json, current_step, is_completed, completed_at,
	created_at, updated_at, created_by`

func scanOnboardingConfig(row scanner) (*models.OnboardingConfig, error) {
	var c models.OnboardingConfig
	err := row.Scan(
		&c.ID, &c.OrganizationName, &c.PrimaryColor, &c.SecondaryColor,
		&c.EmailBackend, &c.EmailHost, &c.EmailPort, &c.EmailUseTLS, &c.EmailUseSSL,
		&c.EmailHostUser, &c.EmailHostPasswordEnc, &c.EmailFromAddress,
		&c.SessionTimeoutMinutes, &c.PasswordMinLength, &c.Require2FA, &c.AllowedDomains,
		&c.StorageBackend, &c.S3BucketName, &c.S3Region, &c.S3AccessKeyEnc, &c.S3SecretKeyEnc,
		&c.IntegrationsJSON, &c.CurrentStep, &c.IsCompleted, &c.CompletedAt,
		&c.CreatedAt, &c.UpdatedAt, &c.CreatedBy,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateOnboardingConfig inserts a new onboarding configuration record
func (d *Database) CreateOnboardingConfig(ctx context.Context, c *models.OnboardingConfig) error {
	query := d.rebind(`INSERT INTO onboarding_configs (` + onboardingConfigColumns + `)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err := d.db.ExecContext(ctx, query,
		c.ID, c.OrganizationName, c.PrimaryColor, c.SecondaryColor,
		c.EmailBackend, c.EmailHost, c.EmailPort, c.EmailUseTLS, c.EmailUseSSL,
		c.EmailHostUser, c.EmailHostPasswordEnc, c.EmailFromAddress,
		c.SessionTimeoutMinutes, c.PasswordMinLength, c.Require2FA, c.AllowedDomains,
		c.StorageBackend, c.S3BucketName, c.S3Region, c.S3AccessKeyEnc, c.S3SecretKeyEnc,
		c.IntegrationsJSON, c.CurrentStep, c.IsCompleted, c.CompletedAt,
		c.CreatedAt, c.UpdatedAt, c.CreatedBy,
	)
	return err
}

// UpdateOnboardingConfig writes every mutable column of the record
func (d *Database) UpdateOnboardingConfig(ctx context.Context, c *models.OnboardingConfig) error {
	query := d.rebind(`UPDATE onboarding_configs SET
	          organization_name = ?, primary_color = ?, secondary_color = ?,
	          email_backend = ?, email_host = ?, email_port = ?, email_use_tls = ?, email_use_ssl = ?,
	          email_host_user = ?, email_host_password_enc = ?, email_from_address = ?,
	          session_timeout_minutes = ?, password_min_length = ?, require_2fa = ?, allowed_domains = ?,
	          storage_backend = ?, s3_bucket_name = ?, s3_region = ?, s3_access_key_enc = ?, s3_secret_key_enc = ?,
	          integrations_json = ?, current_step = ?, is_completed = ?, completed_at = ?,
	          updated_at = ?, created_by = ?
	          WHERE id = ?`)

	res, err := d.db.ExecContext(ctx, query,
		c.OrganizationName, c.PrimaryColor, c.SecondaryColor,
		c.EmailBackend, c.EmailHost, c.EmailPort, c.EmailUseTLS, c.EmailUseSSL,
		c.EmailHostUser, c.EmailHostPasswordEnc, c.EmailFromAddress,
		c.SessionTimeoutMinutes, c.PasswordMinLength, c.Require2FA, c.AllowedDomains,
		c.StorageBackend, c.S3BucketName, c.S3Region, c.S3AccessKeyEnc, c.S3SecretKeyEnc,
		c.IntegrationsJSON, c.CurrentStep, c.IsCompleted, c.CompletedAt,
		c.UpdatedAt, c.CreatedBy,
		c.ID,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return sql.ErrNoRows
	}

	return nil
}

// GetOnboardingConfig retrieves a record by ID
func (d *Database) GetOnboardingConfig(ctx context.Context, id string) (*models.OnboardingConfig, error) {
	query := d.rebind(`SELECT ` + onboardingConfigColumns + ` FROM onboarding_configs WHERE id = ?`)
	return scanOnboardingConfig(d.db.QueryRowContext(ctx, query, id))
}

// FindActiveDraft returns the most recently created non-completed record.
// It returns sql.ErrNoRows when no draft exists.
func (d *Database) FindActiveDraft(ctx context.Context) (*models.OnboardingConfig, error) {
	query := d.rebind(`SELECT ` + onboardingConfigColumns + ` FROM onboarding_configs
	          WHERE is_completed = ? ORDER BY created_at DESC, id DESC LIMIT 1`)
	return scanOnboardingConfig(d.db.QueryRowContext(ctx, query, false))
}

// CountActiveDrafts returns the number of non-completed records
func (d *Database) CountActiveDrafts(ctx context.Context) (int, error) {
	query := d.rebind(`SELECT COUNT(*) FROM onboarding_configs WHERE is_completed = ?`)
	var count int
	if err := d.db.QueryRowContext(ctx, query, false).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// FindLatestCompleted returns the most recently completed record.
// It returns sql.ErrNoRows when onboarding has never completed.
func (d *Database) FindLatestCompleted(ctx context.Context) (*models.OnboardingConfig, error) {
	query := d.rebind(`SELECT ` + onboardingConfigColumns + ` FROM onboarding_configs
	          WHERE is_completed = ? ORDER BY completed_at DESC, created_at DESC LIMIT 1`)
	return scanOnboardingConfig(d.db.QueryRowContext(ctx, query, true))
}

// Onboarding step operations

// UpsertOnboardingStep records completion of a step, replacing any earlier
// row for the same (config, step number)
func (d *Database) UpsertOnboardingStep(ctx context.Context, s *models.OnboardingStep) error {
	query := d.rebind(`INSERT INTO onboarding_steps
	          (id, config_id, step_number, step_name, is_completed, completed_at, data_json)
	          VALUES (?, ?, ?, ?, ?, ?, ?)
	          ON CONFLICT (config_id, step_number) DO UPDATE SET
	          step_name = excluded.step_name,
	          is_completed = excluded.is_completed,
	          completed_at = excluded.completed_at,
	          data_json = excluded.data_json`)

	_, err := d.db.ExecContext(ctx, query,
		s.ID, s.ConfigID, s.StepNumber, s.StepName, s.IsCompleted, s.CompletedAt, s.DataJSON,
	)
	return err
}

// ListOnboardingSteps retrieves the tracked steps of a record ordered by step number
func (d *Database) ListOnboardingSteps(ctx context.Context, configID string) ([]*models.OnboardingStep, error) {
	query := d.rebind(`SELECT id, config_id, step_number, step_name, is_completed, completed_at, data_json
	          FROM onboarding_steps WHERE config_id = ? ORDER BY step_number`)

	rows, err := d.db.QueryContext(ctx, query, configID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var steps []*models.OnboardingStep
	for rows.Next() {
		var s models.OnboardingStep
		if err := rows.Scan(&s.ID, &s.ConfigID, &s.StepNumber, &s.StepName, &s.IsCompleted, &s.CompletedAt, &s.DataJSON); err != nil {
			return nil, err
		}
		steps = append(steps, &s)
	}

	return steps, rows.Err()
}

// System config operations

// SetSystemConfig sets a system configuration value
func (d *Database) SetSystemConfig(ctx context.Context, key, value string) error {
	query := d.rebind(`INSERT INTO system_config (key, value, updated_at) VALUES (?, ?, ?)
	          ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`)

	_, err := d.db.ExecContext(ctx, query, key, value, time.Now().UTC())
	return err
}

// GetSystemConfig retrieves a system configuration value
func (d *Database) GetSystemConfig(ctx context.Context, key string) (string, error) {
	query := d.rebind(`SELECT value FROM system_config WHERE key = ?`)

	var value string
	if err := d.db.QueryRowContext(ctx, query, key).Scan(&value); err != nil {
		return "", err
	}
	return value, nil
}
