package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pocketshop/vendor-bff-go/internal/domain"
	"github.com/pocketshop/vendor-bff-go/internal/infra/observability"
	"github.com/pocketshop/vendor-bff-go/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var onboardingTracer = otel.Tracer("service/onboarding")

// ============================================================
// Onboarding stage controller
// ============================================================

// Onboarding drives the per-stage submission flow. Each submit validates
// first, persists the stage's fields together with the status advance in
// one write, then re-reads the persisted status to verify the write took —
// a guard against silent write failures and stale caches. Only after
// verification does the caller get a navigation target, and the vendor's
// cached status is dropped so the route guard re-reads server state.
type Onboarding struct {
	profiles    port.ProfileStore
	statusCache port.Cache[domain.OnboardingStatus]
	metrics     *observability.Metrics
	logger      *zap.Logger
}

// NewOnboarding creates the stage controller.
func NewOnboarding(profiles port.ProfileStore, statusCache port.Cache[domain.OnboardingStatus], metrics *observability.Metrics, logger *zap.Logger) *Onboarding {
	return &Onboarding{
		profiles:    profiles,
		statusCache: statusCache,
		metrics:     metrics,
		logger:      logger,
	}
}

// GetProfile returns the vendor's profile for stage form prefill.
// A missing row yields an empty profile with status incomplete.
func (o *Onboarding) GetProfile(ctx context.Context, userID string) (*domain.VendorProfile, error) {
	ctx, span := onboardingTracer.Start(ctx, "Onboarding.GetProfile")
	defer span.End()

	profile, err := o.profiles.GetProfile(ctx, userID)
	if err != nil {
		var notFound *domain.ErrNotFound
		if errors.As(err, &notFound) {
			return &domain.VendorProfile{
				UserID:           userID,
				OnboardingStatus: domain.StatusIncomplete,
			}, nil
		}
		return nil, err
	}
	return profile, nil
}

// SubmitStage1 persists business basics. The profile row is created lazily
// here for brand-new vendors.
func (o *Onboarding) SubmitStage1(ctx context.Context, userID string, req *domain.Stage1Request) (*domain.StageResult, error) {
	ctx, span := onboardingTracer.Start(ctx, "Onboarding.SubmitStage1")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	if strings.TrimSpace(req.StoreName) == "" {
		return o.fail(domain.Stage1, &domain.ErrValidation{Field: "storeName", Message: "required"})
	}
	if strings.TrimSpace(req.Category) == "" {
		return o.fail(domain.Stage1, &domain.ErrValidation{Field: "category", Message: "required"})
	}

	updates := map[string]any{
		"store_name":  strings.TrimSpace(req.StoreName),
		"description": strings.TrimSpace(req.Description),
		"category":    strings.TrimSpace(req.Category),
	}

	return o.persistStage(ctx, userID, domain.Stage1, updates, true)
}

// SubmitStage2 persists operational details.
func (o *Onboarding) SubmitStage2(ctx context.Context, userID string, req *domain.Stage2Request) (*domain.StageResult, error) {
	ctx, span := onboardingTracer.Start(ctx, "Onboarding.SubmitStage2")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	if strings.TrimSpace(req.Address) == "" {
		return o.fail(domain.Stage2, &domain.ErrValidation{Field: "address", Message: "required"})
	}
	if strings.TrimSpace(req.Phone) == "" {
		return o.fail(domain.Stage2, &domain.ErrValidation{Field: "phone", Message: "required"})
	}
	if req.OpenTime == "" || req.CloseTime == "" {
		return o.fail(domain.Stage2, &domain.ErrValidation{Field: "hours", Message: "opening and closing times are required"})
	}
	if len(req.WorkingDays) == 0 {
		return o.fail(domain.Stage2, &domain.ErrValidation{Field: "workingDays", Message: "select at least one working day"})
	}

	updates := map[string]any{
		"address":      strings.TrimSpace(req.Address),
		"phone":        strings.TrimSpace(req.Phone),
		"open_time":    req.OpenTime,
		"close_time":   req.CloseTime,
		"working_days": req.WorkingDays,
	}

	return o.persistStage(ctx, userID, domain.Stage2, updates, false)
}

// SubmitStage3 persists the plan choice.
func (o *Onboarding) SubmitStage3(ctx context.Context, userID string, req *domain.Stage3Request) (*domain.StageResult, error) {
	ctx, span := onboardingTracer.Start(ctx, "Onboarding.SubmitStage3")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	switch req.Plan {
	case domain.PlanStarter, domain.PlanGrowth:
	case domain.PlanPro:
		// Valid server-side value, but selection is not open yet.
		return o.fail(domain.Stage3, &domain.ErrValidation{Field: "plan", Message: "the pro plan is not available yet"})
	default:
		return o.fail(domain.Stage3, &domain.ErrValidation{Field: "plan", Message: "unknown plan"})
	}

	updates := map[string]any{
		"selected_plan": string(req.Plan),
	}

	return o.persistStage(ctx, userID, domain.Stage3, updates, false)
}

// Complete finishes onboarding. Terms acceptance is required before the
// final write that sets status to completed and activates the storefront.
func (o *Onboarding) Complete(ctx context.Context, userID string, req *domain.CompletionRequest) (*domain.StageResult, error) {
	ctx, span := onboardingTracer.Start(ctx, "Onboarding.Complete")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	if !req.AcceptTerms {
		return o.fail(domain.StageFinish, &domain.ErrValidation{Field: "acceptTerms", Message: "terms must be accepted"})
	}

	updates := map[string]any{
		"terms_accepted_at": time.Now().UTC().Format(time.RFC3339),
		"active":            true,
	}

	result, err := o.persistStage(ctx, userID, domain.StageFinish, updates, false)
	if err != nil {
		return nil, err
	}
	result.NextRoute = "/dashboard"
	return result, nil
}

// UpdateSettings patches storefront settings from the dashboard. Settings
// edits never touch the onboarding cursor.
func (o *Onboarding) UpdateSettings(ctx context.Context, userID string, req *domain.SettingsRequest) (*domain.VendorProfile, error) {
	ctx, span := onboardingTracer.Start(ctx, "Onboarding.UpdateSettings")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	updates := map[string]any{}
	if v := strings.TrimSpace(req.StoreName); v != "" {
		updates["store_name"] = v
	}
	if v := strings.TrimSpace(req.Description); v != "" {
		updates["description"] = v
	}
	if req.OpenTime != "" {
		updates["open_time"] = req.OpenTime
	}
	if req.CloseTime != "" {
		updates["close_time"] = req.CloseTime
	}
	if len(req.WorkingDays) > 0 {
		updates["working_days"] = req.WorkingDays
	}
	if len(updates) == 0 {
		return nil, &domain.ErrValidation{Field: "settings", Message: "nothing to update"}
	}

	if err := o.profiles.UpdateProfile(ctx, userID, updates); err != nil {
		return nil, err
	}
	return o.profiles.GetProfile(ctx, userID)
}

// ============================================================
// Shared persistence path
// ============================================================

// persistStage writes the stage's fields plus the status advance as one
// update, verifies the status round-trips, and invalidates cached state.
// The status is a one-way ratchet: re-submitting a completed stage keeps
// the later status.
func (o *Onboarding) persistStage(ctx context.Context, userID string, stage domain.Stage, updates map[string]any, createIfMissing bool) (*domain.StageResult, error) {
	current, err := o.currentStatus(ctx, userID)
	if err != nil {
		var notFound *domain.ErrNotFound
		if !errors.As(err, &notFound) {
			o.metrics.IncrStageSubmission(stageLabel(stage), "error")
			return nil, err
		}
		if !createIfMissing {
			o.metrics.IncrStageSubmission(stageLabel(stage), "error")
			return nil, err
		}
		// Brand-new vendor: create the row together with the first stage.
		if cerr := o.createSeedProfile(ctx, userID, updates); cerr != nil {
			o.metrics.IncrStageSubmission(stageLabel(stage), "error")
			return nil, cerr
		}
		current = domain.StatusIncomplete
	}

	target := stageStatus(stage)
	if current.AtLeast(target) {
		// Edit of an already-completed stage: never regress the cursor.
		target = current
	}
	updates["onboarding_status"] = string(target)

	if err := o.profiles.UpdateProfile(ctx, userID, updates); err != nil {
		o.metrics.IncrStageSubmission(stageLabel(stage), "error")
		return nil, err
	}

	// Verification round-trip: a write the backend acknowledged but did not
	// apply (or that raced a stale replica) must not advance the vendor.
	persisted, err := o.profiles.GetOnboardingStatus(ctx, userID)
	if err != nil {
		o.metrics.IncrStageSubmission(stageLabel(stage), "error")
		return nil, fmt.Errorf("verify stage write: %w", err)
	}
	if persisted != target {
		o.metrics.IncrStageSubmission(stageLabel(stage), "mismatch")
		o.logger.Error("stage write verification failed",
			zap.String("user_id", userID),
			zap.String("expected", string(target)),
			zap.String("got", string(persisted)),
		)
		return nil, &domain.ErrVerificationMismatch{Expected: target, Got: persisted}
	}

	// Drop cached status so the next guard evaluation reads fresh server
	// state instead of the pre-write value.
	o.statusCache.Delete(statusCacheKey(userID))

	o.metrics.IncrStageSubmission(stageLabel(stage), "success")
	o.logger.Info("onboarding stage persisted",
		zap.String("user_id", userID),
		zap.String("status", string(persisted)),
	)

	return &domain.StageResult{
		Status:    persisted,
		NextRoute: FurthestAccessibleStage(ResolveCompletion(persisted)).Route(),
	}, nil
}

func (o *Onboarding) currentStatus(ctx context.Context, userID string) (domain.OnboardingStatus, error) {
	return o.profiles.GetOnboardingStatus(ctx, userID)
}

func (o *Onboarding) createSeedProfile(ctx context.Context, userID string, updates map[string]any) error {
	profile := &domain.VendorProfile{
		ID:               uuid.New().String(),
		UserID:           userID,
		OnboardingStatus: domain.StatusIncomplete,
	}
	if v, ok := updates["store_name"].(string); ok {
		profile.StoreName = v
	}
	if err := o.profiles.CreateProfile(ctx, profile); err != nil {
		var conflict *domain.ErrConflict
		if errors.As(err, &conflict) {
			// Concurrent first submission already created it; proceed.
			return nil
		}
		return err
	}
	return nil
}

func (o *Onboarding) fail(stage domain.Stage, err error) (*domain.StageResult, error) {
	o.metrics.IncrStageSubmission(stageLabel(stage), "validation")
	return nil, err
}

func stageLabel(stage domain.Stage) string {
	switch stage {
	case domain.Stage1:
		return "stage1"
	case domain.Stage2:
		return "stage2"
	case domain.Stage3:
		return "stage3"
	default:
		return "completion"
	}
}
