package models

import (
	"database/sql"
	"fmt"
	"time"
)

// TotalSteps is the number of pages in the onboarding wizard
const TotalSteps = 8

// SecretCodec encrypts credential strings for storage
type SecretCodec interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(blob string) (string, error)
}

// NewDraft returns an unsaved draft on step 1 with every field at its default
func NewDraft(id string, now time.Time) *OnboardingConfig {
	return &OnboardingConfig{
		ID:                    id,
		PrimaryColor:          DefaultPrimaryColor,
		SecondaryColor:        DefaultSecondaryColor,
		EmailBackend:          DefaultEmailBackend,
		EmailPort:             DefaultEmailPort,
		EmailUseTLS:           true,
		SessionTimeoutMinutes: DefaultSessionTimeoutMinutes,
		PasswordMinLength:     DefaultPasswordMinLength,
		StorageBackend:        StorageLocal,
		S3Region:              DefaultS3Region,
		IntegrationsJSON:      "{}",
		CurrentStep:           1,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
}

// AdvanceTo moves the progress pointer forward to step. The pointer never
// moves backwards and stays within [1, TotalSteps].
func (c *OnboardingConfig) AdvanceTo(step int) bool {
	step = clampStep(step)
	current := clampStep(c.CurrentStep)
	if step > current {
		current = step
	}
	changed := current != c.CurrentStep
	c.CurrentStep = current
	return changed
}

// Complete marks the record as completed. A second call is a no-op and
// keeps the original completion time.
func (c *OnboardingConfig) Complete(now time.Time) bool {
	if c.IsCompleted {
		return false
	}
	c.IsCompleted = true
	c.CompletedAt = sql.NullTime{Time: now, Valid: true}
	return true
}

// ProgressPercentage returns how far step is through the wizard
func ProgressPercentage(step int) int {
	return step * 100 / TotalSteps
}

func clampStep(step int) int {
	switch {
	case step < 1:
		return 1
	case step > TotalSteps:
		return TotalSteps
	default:
		return step
	}
}

// SetEmailPassword encrypts and stores the SMTP password. Empty input
// leaves any stored password untouched.
func (c *OnboardingConfig) SetEmailPassword(codec SecretCodec, password string) error {
	return setSecret(codec, &c.EmailHostPasswordEnc, password, "email password")
}

// EmailPassword returns the decrypted SMTP password, or "" if none is stored
func (c *OnboardingConfig) EmailPassword(codec SecretCodec) (string, error) {
	return getSecret(codec, c.EmailHostPasswordEnc, "email password")
}

// SetS3AccessKey encrypts and stores the S3 access key
func (c *OnboardingConfig) SetS3AccessKey(codec SecretCodec, key string) error {
	return setSecret(codec, &c.S3AccessKeyEnc, key, "S3 access key")
}

// S3AccessKey returns the decrypted S3 access key
func (c *OnboardingConfig) S3AccessKey(codec SecretCodec) (string, error) {
	return getSecret(codec, c.S3AccessKeyEnc, "S3 access key")
}

// SetS3SecretKey encrypts and stores the S3 secret key
func (c *OnboardingConfig) SetS3SecretKey(codec SecretCodec, key string) error {
	return setSecret(codec, &c.S3SecretKeyEnc, key, "S3 secret key")
}

// S3SecretKey returns the decrypted S3 secret key
func (c *OnboardingConfig) S3SecretKey(codec SecretCodec) (string, error) {
	return getSecret(codec, c.S3SecretKeyEnc, "S3 secret key")
}

func setSecret(codec SecretCodec, dst *string, plaintext, name string) error {
	if plaintext == "" {
		return nil
	}
	blob, err := codec.Encrypt(plaintext)
	if err != nil {
		return fmt.Errorf("failed to encrypt %s: %w", name, err)
	}
	*dst = blob
	return nil
}

func getSecret(codec SecretCodec, blob, name string) (string, error) {
	if blob == "" {
		return "", nil
	}
	plaintext, err := codec.Decrypt(blob)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt %s: %w", name, err)
	}
	return plaintext, nil
}
