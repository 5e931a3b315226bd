// Package onboarding holds the static definition of the eight wizard steps:
// their names, the form fields each accepts, and the function that applies a
// submitted form to the onboarding record.
package onboarding

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/robcowart/onboard/internal/database/models"
)

// Step identifies a wizard page
type Step int

const (
	StepOrganization Step = iota + 1
	StepEmail
	StepSecurity
	StepStorage
	StepIntegrations
	StepUsers
	StepPreferences
	StepReview
)

// Form is a submitted step form
type Form = url.Values

// Field describes a form field a step accepts. Secret fields are routed
// through the codec and never recorded in step tracking data.
type Field struct {
	Name   string
	Secret bool
}

// ApplyFunc copies a submitted form onto the record. Field problems are
// returned as warnings; a non-nil error aborts the submission.
type ApplyFunc func(cfg *models.OnboardingConfig, form Form, env Env) ([]ValidationError, error)

// Definition is the immutable description of one step
type Definition struct {
	Step      Step
	Name      string
	Template  string
	Fields    []Field
	Completes bool
	Apply     ApplyFunc
}

// Env carries the collaborators step functions need
type Env struct {
	Codec     models.SecretCodec
	Validator *validator.Validate

	// Used when a color field is missing from the form
	DefaultPrimaryColor   string
	DefaultSecondaryColor string
}

func (e Env) primaryColor() string {
	if e.DefaultPrimaryColor != "" {
		return e.DefaultPrimaryColor
	}
	return models.DefaultPrimaryColor
}

func (e Env) secondaryColor() string {
	if e.DefaultSecondaryColor != "" {
		return e.DefaultSecondaryColor
	}
	return models.DefaultSecondaryColor
}

func (e Env) validate() *validator.Validate {
	if e.Validator != nil {
		return e.Validator
	}
	return defaultValidator
}

var defaultValidator = validator.New()

// ValidationError reports a field that could not be applied as submitted.
// The submission still succeeds; the field keeps its stored or default value.
type ValidationError struct {
	Field  string `json:"field"`
	Value  string `json:"value"`
	Reason string `json:"reason"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

var registry = [models.TotalSteps]Definition{
	{
		Step:     StepOrganization,
		Name:     "Organization Setup",
		Template: "onboarding/step1_organization",
		Fields:   fields("organization_name", "primary_color", "secondary_color"),
		Apply:    applyOrganization,
	},
	{
		Step:     StepEmail,
		Name:     "Email Configuration",
		Template: "onboarding/step2_email",
		Fields: append(fields("email_backend", "email_host", "email_port", "email_use_tls", "email_use_ssl",
			"email_host_user", "email_from_address"), Field{Name: "email_host_password", Secret: true}),
		Apply: applyEmail,
	},
	{
		Step:     StepSecurity,
		Name:     "Security Settings",
		Template: "onboarding/step3_security",
		Fields:   fields("session_timeout", "password_min_length", "require_2fa", "allowed_domains"),
		Apply:    applySecurity,
	},
	{
		Step:     StepStorage,
		Name:     "File Storage",
		Template: "onboarding/step4_storage",
		Fields: append(fields("storage_backend", "s3_bucket_name", "s3_region"),
			Field{Name: "s3_access_key", Secret: true}, Field{Name: "s3_secret_key", Secret: true}),
		Apply: applyStorage,
	},
	{
		Step:     StepIntegrations,
		Name:     "External Integrations",
		Template: "onboarding/step5_integrations",
		Apply:    applyNothing,
	},
	{
		Step:     StepUsers,
		Name:     "User Management",
		Template: "onboarding/step6_users",
		Apply:    applyNothing,
	},
	{
		Step:     StepPreferences,
		Name:     "Preferences",
		Template: "onboarding/step7_preferences",
		Apply:    applyNothing,
	},
	{
		Step:      StepReview,
		Name:      "Review & Complete",
		Template:  "onboarding/step8_review",
		Completes: true,
		Apply:     applyNothing,
	},
}

func fields(names ...string) []Field {
	out := make([]Field, len(names))
	for i, name := range names {
		out[i] = Field{Name: name}
	}
	return out
}

// Lookup returns the definition of step n
func Lookup(n int) (Definition, bool) {
	if n < 1 || n > models.TotalSteps {
		return Definition{}, false
	}
	return registry[n-1], true
}

// Definitions returns every step in order
func Definitions() []Definition {
	out := make([]Definition, len(registry))
	copy(out, registry[:])
	return out
}

// secretFields holds every field declared secret by any step
var secretFields = collectSecretFields()

// secretMarkers flag undeclared field names that look like credentials
var secretMarkers = []string{"password", "secret", "token", "access_key", "api_key", "private_key"}

func collectSecretFields() map[string]bool {
	out := make(map[string]bool)
	for _, def := range registry {
		for _, f := range def.Fields {
			if f.Secret {
				out[f.Name] = true
			}
		}
	}
	return out
}

// IsSecretField reports whether a submitted field must never be stored in
// plaintext
func IsSecretField(name string) bool {
	if secretFields[name] {
		return true
	}
	lower := strings.ToLower(name)
	for _, marker := range secretMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// TrackedData returns the submitted values recorded against the step.
// Steps without a declared field set record every non-empty submitted value
// except credentials.
func (d Definition) TrackedData(form Form) map[string]string {
	data := make(map[string]string)

	if len(d.Fields) == 0 {
		for name := range form {
			if IsSecretField(name) {
				continue
			}
			if v := strings.TrimSpace(form.Get(name)); v != "" {
				data[name] = v
			}
		}
		return data
	}

	for _, f := range d.Fields {
		if f.Secret || !form.Has(f.Name) {
			continue
		}
		data[f.Name] = form.Get(f.Name)
	}
	return data
}
