// Package service provides the business logic of the onboarding wizard. It
// resolves the active draft, applies submitted steps through the step
// registry, and reports on the health of stored credentials.
package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/robcowart/onboard/internal/config"
	"github.com/robcowart/onboard/internal/crypto"
	"github.com/robcowart/onboard/internal/database/models"
	"github.com/robcowart/onboard/internal/onboarding"
	"go.uber.org/zap"
)

var (
	// ErrSessionNotFound is returned when a step is submitted with no active draft
	ErrSessionNotFound = errors.New("onboarding session not found")
	// ErrStepOutOfRange is returned for step numbers outside 1..8
	ErrStepOutOfRange = errors.New("step out of range")
	// ErrStorageBackendMismatch describes S3 settings that disagree with the selected backend
	ErrStorageBackendMismatch = errors.New("storage backend mismatch")
)

// KeyCanaryConfigKey is the system_config entry holding the sealed key check
const KeyCanaryConfigKey = "credential_key_canary"

// Credential states reported by Integrity
const (
	CredentialUnset   = "unset"
	CredentialOK      = "ok"
	CredentialCorrupt = "corrupt"
)

// DraftFinder locates the active draft
type DraftFinder interface {
	FindActiveDraft(ctx context.Context) (*models.OnboardingConfig, error)
}

// ConfigStore is the persistence the wizard needs
type ConfigStore interface {
	DraftFinder
	CreateOnboardingConfig(ctx context.Context, c *models.OnboardingConfig) error
	UpdateOnboardingConfig(ctx context.Context, c *models.OnboardingConfig) error
	CountActiveDrafts(ctx context.Context) (int, error)
	FindLatestCompleted(ctx context.Context) (*models.OnboardingConfig, error)
	UpsertOnboardingStep(ctx context.Context, s *models.OnboardingStep) error
	ListOnboardingSteps(ctx context.Context, configID string) ([]*models.OnboardingStep, error)
	GetSystemConfig(ctx context.Context, key string) (string, error)
	SetSystemConfig(ctx context.Context, key, value string) error
}

// ResolveActiveDraft returns the most recently created non-completed record.
// The boolean is false when no draft exists.
func ResolveActiveDraft(ctx context.Context, store DraftFinder) (*models.OnboardingConfig, bool, error) {
	draft, err := store.FindActiveDraft(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to find active draft: %w", err)
	}
	return draft, true, nil
}

// OnboardingService drives the wizard
type OnboardingService struct {
	store    ConfigStore
	codec    *crypto.Codec
	cfg      *config.Config
	logger   *zap.Logger
	validate *validator.Validate
	now      func() time.Time
}

// NewOnboardingService creates a new onboarding service
func NewOnboardingService(store ConfigStore, codec *crypto.Codec, cfg *config.Config, logger *zap.Logger) *OnboardingService {
	return &OnboardingService{
		store:    store,
		codec:    codec,
		cfg:      cfg,
		logger:   logger,
		validate: validator.New(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WelcomeStatus is the landing page state
type WelcomeStatus struct {
	OnboardingCompleted bool   `json:"onboarding_completed"`
	OrganizationName    string `json:"organization_name,omitempty"`
	HasInProgress       bool   `json:"has_in_progress"`
	CurrentStep         int    `json:"current_step"`
}

// Theme holds the branding applied to every page
type Theme struct {
	OrganizationName string `json:"organization_name"`
	PrimaryColor     string `json:"primary_color"`
	SecondaryColor   string `json:"secondary_color"`
}

// StepView is the render context of a single step
type StepView struct {
	Step               int                      `json:"step"`
	TotalSteps         int                      `json:"total_steps"`
	StepName           string                   `json:"step_name"`
	Template           string                   `json:"template"`
	ProgressPercentage int                      `json:"progress_percentage"`
	Config             *models.OnboardingConfig `json:"config"`
	SecretsConfigured  map[string]bool          `json:"secrets_configured"`
	CompletedSteps     []*models.OnboardingStep `json:"completed_steps"`
	Theme              Theme                    `json:"theme"`
}

// SubmitResult describes where the wizard goes after a submission
type SubmitResult struct {
	Completed bool                         `json:"completed"`
	NextStep  int                          `json:"next_step,omitempty"`
	Warnings  []onboarding.ValidationError `json:"warnings,omitempty"`
}

// IntegrityReport is the operator view of stored credentials
type IntegrityReport struct {
	ConfigID       string            `json:"config_id,omitempty"`
	IsCompleted    bool              `json:"is_completed"`
	StorageBackend string            `json:"storage_backend,omitempty"`
	Credentials    map[string]string `json:"credentials"`
	Issues         []string          `json:"issues"`
}

// Healthy reports whether the report found no problems
func (r *IntegrityReport) Healthy() bool {
	return len(r.Issues) == 0
}

// Welcome reports whether onboarding has completed or where the draft stands
func (s *OnboardingService) Welcome(ctx context.Context) (*WelcomeStatus, error) {
	completed, err := s.store.FindLatestCompleted(ctx)
	switch {
	case err == nil:
		return &WelcomeStatus{
			OnboardingCompleted: true,
			OrganizationName:    completed.OrganizationName,
			CurrentStep:         completed.CurrentStep,
		}, nil
	case !errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("failed to find completed onboarding: %w", err)
	}

	draft, found, err := s.activeDraft(ctx)
	if err != nil {
		return nil, err
	}
	if !found {
		return &WelcomeStatus{CurrentStep: 1}, nil
	}

	return &WelcomeStatus{
		HasInProgress: true,
		CurrentStep:   draft.CurrentStep,
	}, nil
}

// GetStep returns the render context for step n, creating the draft if
// needed and moving its progress pointer forward to n
func (s *OnboardingService) GetStep(ctx context.Context, n int) (*StepView, error) {
	def, ok := onboarding.Lookup(n)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrStepOutOfRange, n)
	}

	draft, found, err := s.activeDraft(ctx)
	if err != nil {
		return nil, err
	}
	if !found {
		draft, err = s.createDraft(ctx)
		if err != nil {
			return nil, err
		}
	}

	if draft.AdvanceTo(n) {
		draft.UpdatedAt = s.now()
		if err := s.store.UpdateOnboardingConfig(ctx, draft); err != nil {
			return nil, fmt.Errorf("failed to save progress: %w", err)
		}
	}

	steps, err := s.store.ListOnboardingSteps(ctx, draft.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list completed steps: %w", err)
	}

	theme, err := s.Theme(ctx)
	if err != nil {
		return nil, err
	}

	return &StepView{
		Step:               n,
		TotalSteps:         models.TotalSteps,
		StepName:           def.Name,
		Template:           def.Template,
		ProgressPercentage: models.ProgressPercentage(n),
		Config:             draft,
		SecretsConfigured: map[string]bool{
			"email_host_password": draft.EmailHostPasswordEnc != "",
			"s3_access_key":       draft.S3AccessKeyEnc != "",
			"s3_secret_key":       draft.S3SecretKeyEnc != "",
		},
		CompletedSteps: steps,
		Theme:          *theme,
	}, nil
}

// SubmitStep applies a submitted form to the active draft and advances it.
// Field problems do not stop the submission and are returned as warnings.
func (s *OnboardingService) SubmitStep(ctx context.Context, n int, form onboarding.Form) (*SubmitResult, error) {
	def, ok := onboarding.Lookup(n)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrStepOutOfRange, n)
	}

	draft, found, err := s.activeDraft(ctx)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrSessionNotFound
	}

	warnings, err := def.Apply(draft, form, s.env())
	if err != nil {
		return nil, fmt.Errorf("failed to apply step %d: %w", n, err)
	}
	for _, w := range warnings {
		s.logger.Warn("Onboarding field rejected",
			zap.Int("step", n),
			zap.String("field", w.Field),
			zap.String("reason", w.Reason),
		)
	}

	now := s.now()
	result := &SubmitResult{Warnings: warnings}
	if def.Completes {
		draft.Complete(now)
		result.Completed = true
	} else {
		draft.AdvanceTo(n + 1)
		result.NextStep = n + 1
	}
	draft.UpdatedAt = now

	// The step row must exist before the draft is saved as completed
	if err := s.trackStep(ctx, draft.ID, def, form, now); err != nil {
		return nil, err
	}

	if err := s.store.UpdateOnboardingConfig(ctx, draft); err != nil {
		return nil, fmt.Errorf("failed to save onboarding config: %w", err)
	}

	if result.Completed {
		s.logger.Info("Onboarding completed",
			zap.String("config_id", draft.ID),
			zap.String("organization", draft.OrganizationName),
		)
	}

	return result, nil
}

// Theme returns the branding of the latest completed onboarding, or the
// configured defaults
func (s *OnboardingService) Theme(ctx context.Context) (*Theme, error) {
	completed, err := s.store.FindLatestCompleted(ctx)
	if err == nil {
		return &Theme{
			OrganizationName: completed.OrganizationName,
			PrimaryColor:     completed.PrimaryColor,
			SecondaryColor:   completed.SecondaryColor,
		}, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to load theme: %w", err)
	}

	return &Theme{
		OrganizationName: s.cfg.Onboarding.DefaultOrganizationName,
		PrimaryColor:     s.cfg.Onboarding.DefaultPrimaryColor,
		SecondaryColor:   s.cfg.Onboarding.DefaultSecondaryColor,
	}, nil
}

// Integrity checks that every stored credential of the active draft, or of
// the latest completed record, still decrypts under the current key
func (s *OnboardingService) Integrity(ctx context.Context) (*IntegrityReport, error) {
	report := &IntegrityReport{
		Credentials: map[string]string{},
		Issues:      []string{},
	}

	record, found, err := s.activeDraft(ctx)
	if err != nil {
		return nil, err
	}
	if !found {
		record, err = s.store.FindLatestCompleted(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return report, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to find completed onboarding: %w", err)
		}
	}

	report.ConfigID = record.ID
	report.IsCompleted = record.IsCompleted
	report.StorageBackend = record.StorageBackend

	checks := []struct {
		name string
		blob string
		get  func(models.SecretCodec) (string, error)
	}{
		{"email_host_password", record.EmailHostPasswordEnc, record.EmailPassword},
		{"s3_access_key", record.S3AccessKeyEnc, record.S3AccessKey},
		{"s3_secret_key", record.S3SecretKeyEnc, record.S3SecretKey},
	}
	for _, check := range checks {
		if check.blob == "" {
			report.Credentials[check.name] = CredentialUnset
			continue
		}
		if _, err := check.get(s.codec); err != nil {
			report.Credentials[check.name] = CredentialCorrupt
			report.Issues = append(report.Issues, err.Error())
			s.logger.Error("Stored credential cannot be decrypted",
				zap.String("config_id", record.ID),
				zap.String("credential", check.name),
				zap.Error(err),
			)
			continue
		}
		report.Credentials[check.name] = CredentialOK
	}

	if err := checkStorageBackend(record); err != nil {
		report.Issues = append(report.Issues, err.Error())
	}

	return report, nil
}

// VerifyKeyCanary checks the stored key canary against the current codec.
// The first call on an empty database stores a new canary.
func (s *OnboardingService) VerifyKeyCanary(ctx context.Context) error {
	blob, err := s.store.GetSystemConfig(ctx, KeyCanaryConfigKey)
	if errors.Is(err, sql.ErrNoRows) {
		canary, err := s.codec.Canary()
		if err != nil {
			return fmt.Errorf("failed to create key canary: %w", err)
		}
		if err := s.store.SetSystemConfig(ctx, KeyCanaryConfigKey, canary); err != nil {
			return fmt.Errorf("failed to store key canary: %w", err)
		}
		s.logger.Info("Stored credential key canary")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load key canary: %w", err)
	}

	if err := s.codec.VerifyCanary(blob); err != nil {
		return fmt.Errorf("encryption key does not match stored credentials: %w", err)
	}
	return nil
}

func checkStorageBackend(c *models.OnboardingConfig) error {
	hasS3 := c.S3BucketName != "" || c.S3AccessKeyEnc != "" || c.S3SecretKeyEnc != ""
	switch {
	case c.StorageBackend == models.StorageLocal && hasS3:
		return fmt.Errorf("%w: S3 settings are stored but the backend is local", ErrStorageBackendMismatch)
	case c.StorageBackend == models.StorageS3 && c.S3BucketName == "":
		return fmt.Errorf("%w: backend is s3 but no bucket is configured", ErrStorageBackendMismatch)
	}
	return nil
}

func (s *OnboardingService) env() onboarding.Env {
	return onboarding.Env{
		Codec:                 s.codec,
		Validator:             s.validate,
		DefaultPrimaryColor:   s.cfg.Onboarding.DefaultPrimaryColor,
		DefaultSecondaryColor: s.cfg.Onboarding.DefaultSecondaryColor,
	}
}

func (s *OnboardingService) activeDraft(ctx context.Context) (*models.OnboardingConfig, bool, error) {
	draft, found, err := ResolveActiveDraft(ctx, s.store)
	if err != nil || !found {
		return draft, found, err
	}

	count, err := s.store.CountActiveDrafts(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to count drafts: %w", err)
	}
	if count > 1 {
		s.logger.Warn("Multiple onboarding drafts found, using the most recent",
			zap.Int("drafts", count),
			zap.String("config_id", draft.ID),
		)
	}

	return draft, true, nil
}

func (s *OnboardingService) createDraft(ctx context.Context) (*models.OnboardingConfig, error) {
	draft := models.NewDraft(uuid.New().String(), s.now())
	if c := s.cfg.Onboarding.DefaultPrimaryColor; c != "" {
		draft.PrimaryColor = c
	}
	if c := s.cfg.Onboarding.DefaultSecondaryColor; c != "" {
		draft.SecondaryColor = c
	}

	if err := s.store.CreateOnboardingConfig(ctx, draft); err != nil {
		return nil, fmt.Errorf("failed to create onboarding draft: %w", err)
	}

	s.logger.Info("Started onboarding draft", zap.String("config_id", draft.ID))
	return draft, nil
}

func (s *OnboardingService) trackStep(ctx context.Context, configID string, def onboarding.Definition, form onboarding.Form, now time.Time) error {
	data, err := json.Marshal(def.TrackedData(form))
	if err != nil {
		return fmt.Errorf("failed to encode step data: %w", err)
	}

	step := &models.OnboardingStep{
		ID:          uuid.New().String(),
		ConfigID:    configID,
		StepNumber:  int(def.Step),
		StepName:    def.Name,
		IsCompleted: true,
		CompletedAt: sql.NullTime{Time: now, Valid: true},
		DataJSON:    string(data),
	}
	if err := s.store.UpsertOnboardingStep(ctx, step); err != nil {
		return fmt.Errorf("failed to record step %d: %w", def.Step, err)
	}
	return nil
}
