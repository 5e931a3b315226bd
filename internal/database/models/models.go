// Package models defines the data structures for database entities of the
// onboarding service: the onboarding configuration record that accumulates
// every wizard field, the per-step completion tracking rows, and system
// configuration entries.
package models

import (
	"database/sql"
	"time"
)

// Storage backends accepted on the file storage step
const (
	StorageLocal = "local"
	StorageS3    = "s3"
)

// Field defaults applied to a fresh draft
const (
	DefaultPrimaryColor          = "#DC2626"
	DefaultSecondaryColor        = "#1F2937"
	DefaultEmailBackend          = "smtp"
	DefaultEmailPort             = 587
	DefaultSessionTimeoutMinutes = 60
	DefaultPasswordMinLength     = 12
	DefaultS3Region              = "us-east-1"
)

// Upper bounds for numeric policy fields
const (
	MaxSessionTimeoutMinutes = 7 * 24 * 60
	MaxPasswordMinLength     = 128
)

// OnboardingConfig is the single mutable record holding every onboarding
// field. Columns ending in _enc hold credential blobs and are never plaintext.
type OnboardingConfig struct {
	ID               string `db:"id" json:"id"`
	OrganizationName string `db:"organization_name" json:"organization_name"`
	PrimaryColor     string `db:"primary_color" json:"primary_color"`
	SecondaryColor   string `db:"secondary_color" json:"secondary_color"`

	EmailBackend         string `db:"email_backend" json:"email_backend"`
	EmailHost            string `db:"email_host" json:"email_host"`
	EmailPort            int    `db:"email_port" json:"email_port"`
	EmailUseTLS          bool   `db:"email_use_tls" json:"email_use_tls"`
	EmailUseSSL          bool   `db:"email_use_ssl" json:"email_use_ssl"`
	EmailHostUser        string `db:"email_host_user" json:"email_host_user"`
	EmailHostPasswordEnc string `db:"email_host_password_enc" json:"-"`
	EmailFromAddress     string `db:"email_from_address" json:"email_from_address"`

	SessionTimeoutMinutes int    `db:"session_timeout_minutes" json:"session_timeout_minutes"`
	PasswordMinLength     int    `db:"password_min_length" json:"password_min_length"`
	Require2FA            bool   `db:"require_2fa" json:"require_2fa"`
	AllowedDomains        string `db:"allowed_domains" json:"allowed_domains"`

	StorageBackend string `db:"storage_backend" json:"storage_backend"`
	S3BucketName   string `db:"s3_bucket_name" json:"s3_bucket_name"`
	S3Region       string `db:"s3_region" json:"s3_region"`
	S3AccessKeyEnc string `db:"s3_access_key_enc" json:"-"`
	S3SecretKeyEnc string `db:"s3_secret_key_enc" json:"-"`

	IntegrationsJSON string `db:"integrations_json" json:"-"`

	CurrentStep int            `db:"current_step" json:"current_step"`
	IsCompleted bool           `db:"is_completed" json:"is_completed"`
	CompletedAt sql.NullTime   `db:"completed_at" json:"completed_at"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
	CreatedBy   sql.NullString `db:"created_by" json:"created_by"`
}

// OnboardingStep tracks completion of an individual wizard step
type OnboardingStep struct {
	ID          string       `db:"id" json:"id"`
	ConfigID    string       `db:"config_id" json:"config_id"`
	StepNumber  int          `db:"step_number" json:"step_number"`
	StepName    string       `db:"step_name" json:"step_name"`
	IsCompleted bool         `db:"is_completed" json:"is_completed"`
	CompletedAt sql.NullTime `db:"completed_at" json:"completed_at"`
	DataJSON    string       `db:"data_json" json:"data_json"`
}

// SystemConfig represents system-wide configuration stored in the database
type SystemConfig struct {
	Key       string    `db:"key"`
	Value     string    `db:"value"`
	UpdatedAt time.Time `db:"updated_at"`
}
