package onboarding

import (
	"strconv"
	"strings"

	"github.com/robcowart/onboard/internal/database/models"
)

// isTruthy reports whether a checkbox style form value is set
func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "on", "true", "1", "yes":
		return true
	}
	return false
}

// intField parses a positive integer field, falling back to def when the
// field is absent or unusable
func intField(form Form, name string, def, upper int) (int, *ValidationError) {
	raw := strings.TrimSpace(form.Get(name))
	if raw == "" {
		return def, nil
	}

	n, err := strconv.Atoi(raw)
	if err != nil {
		return def, &ValidationError{Field: name, Value: raw, Reason: "not an integer"}
	}
	if n < 1 || (upper > 0 && n > upper) {
		return def, &ValidationError{Field: name, Value: raw, Reason: "out of range"}
	}
	return n, nil
}

func (e Env) hexColor(form Form, name, current, def string) (string, *ValidationError) {
	raw := strings.TrimSpace(form.Get(name))
	if raw == "" {
		return def, nil
	}
	if err := e.validate().Var(raw, "hexcolor,len=7"); err != nil {
		return current, &ValidationError{Field: name, Value: raw, Reason: "must be # followed by 6 hex digits"}
	}
	return raw, nil
}

func applyOrganization(cfg *models.OnboardingConfig, form Form, env Env) ([]ValidationError, error) {
	var warnings []ValidationError

	cfg.OrganizationName = form.Get("organization_name")
	if strings.TrimSpace(cfg.OrganizationName) == "" {
		warnings = append(warnings, ValidationError{Field: "organization_name", Reason: "required"})
	}

	primary, verr := env.hexColor(form, "primary_color", cfg.PrimaryColor, env.primaryColor())
	if verr != nil {
		warnings = append(warnings, *verr)
	}
	secondary, verr := env.hexColor(form, "secondary_color", cfg.SecondaryColor, env.secondaryColor())
	if verr != nil {
		warnings = append(warnings, *verr)
	}
	cfg.PrimaryColor = primary
	cfg.SecondaryColor = secondary

	return warnings, nil
}

func applyEmail(cfg *models.OnboardingConfig, form Form, env Env) ([]ValidationError, error) {
	var warnings []ValidationError

	if backend := strings.TrimSpace(form.Get("email_backend")); backend != "" {
		cfg.EmailBackend = backend
	}
	cfg.EmailHost = form.Get("email_host")

	port, verr := intField(form, "email_port", models.DefaultEmailPort, 65535)
	if verr != nil {
		warnings = append(warnings, *verr)
	}
	cfg.EmailPort = port

	cfg.EmailUseTLS = isTruthy(form.Get("email_use_tls"))
	cfg.EmailUseSSL = isTruthy(form.Get("email_use_ssl"))
	cfg.EmailHostUser = form.Get("email_host_user")

	from := strings.TrimSpace(form.Get("email_from_address"))
	if from != "" && env.validate().Var(from, "email") != nil {
		warnings = append(warnings, ValidationError{Field: "email_from_address", Value: from, Reason: "not a valid email address"})
	} else {
		cfg.EmailFromAddress = from
	}

	if err := cfg.SetEmailPassword(env.Codec, form.Get("email_host_password")); err != nil {
		return warnings, err
	}

	return warnings, nil
}

func applySecurity(cfg *models.OnboardingConfig, form Form, _ Env) ([]ValidationError, error) {
	var warnings []ValidationError

	timeout, verr := intField(form, "session_timeout", models.DefaultSessionTimeoutMinutes, models.MaxSessionTimeoutMinutes)
	if verr != nil {
		warnings = append(warnings, *verr)
	}
	minLength, verr := intField(form, "password_min_length", models.DefaultPasswordMinLength, models.MaxPasswordMinLength)
	if verr != nil {
		warnings = append(warnings, *verr)
	}

	cfg.SessionTimeoutMinutes = timeout
	cfg.PasswordMinLength = minLength
	cfg.Require2FA = isTruthy(form.Get("require_2fa"))
	cfg.AllowedDomains = form.Get("allowed_domains")

	return warnings, nil
}

func applyStorage(cfg *models.OnboardingConfig, form Form, env Env) ([]ValidationError, error) {
	var warnings []ValidationError

	backend := strings.TrimSpace(form.Get("storage_backend"))
	switch backend {
	case models.StorageLocal, models.StorageS3:
	case "":
		backend = models.StorageLocal
	default:
		warnings = append(warnings, ValidationError{Field: "storage_backend", Value: backend, Reason: "must be local or s3"})
		backend = models.StorageLocal
	}
	cfg.StorageBackend = backend

	if backend != models.StorageS3 {
		return warnings, nil
	}

	cfg.S3BucketName = form.Get("s3_bucket_name")
	cfg.S3Region = strings.TrimSpace(form.Get("s3_region"))
	if cfg.S3Region == "" {
		cfg.S3Region = models.DefaultS3Region
	}

	if err := cfg.SetS3AccessKey(env.Codec, form.Get("s3_access_key")); err != nil {
		return warnings, err
	}
	if err := cfg.SetS3SecretKey(env.Codec, form.Get("s3_secret_key")); err != nil {
		return warnings, err
	}

	return warnings, nil
}

func applyNothing(*models.OnboardingConfig, Form, Env) ([]ValidationError, error) {
	return nil, nil
}
