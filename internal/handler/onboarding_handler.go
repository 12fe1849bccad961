package handler

import (
	"encoding/json"
	"net/http"

	"github.com/pocketshop/vendor-bff-go/internal/domain"
	"github.com/pocketshop/vendor-bff-go/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// 2. Onboarding
// ============================================================

// stageView is what GET on a stage route returns: the saved form data
// plus the resolved completion so the client renders progress.
type stageView struct {
	Profile    *domain.VendorProfile  `json:"profile"`
	Completion domain.StageCompletion `json:"completion"`
	NextRoute  string                 `json:"nextRoute"`
}

func onboardingProfileHandler(svc *service.Onboarding, logger *zap.Logger) http.HandlerFunc {
	return stageFormHandler(svc, "/v1/onboarding/profile", logger)
}

// stageFormHandler serves GET on a gated stage route: reaching it means
// the guard already authorized the stage, so the body is just the saved
// form data for prefill.
func stageFormHandler(svc *service.Onboarding, route string, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET "+route)
		defer span.End()

		profile, err := svc.GetProfile(ctx, UserIDFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		completion := service.ResolveCompletion(profile.OnboardingStatus)
		writeJSON(w, http.StatusOK, stageView{
			Profile:    profile,
			Completion: completion,
			NextRoute:  service.FurthestAccessibleStage(completion).Route(),
		})
	}
}

// vendorsMeHandler returns the authenticated vendor's profile. Unlike the
// onboarding view, there is no completion envelope; this is the raw row.
func vendorsMeHandler(svc *service.Onboarding, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/vendors/me")
		defer span.End()

		profile, err := svc.GetProfile(ctx, UserIDFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, profile)
	}
}

func stage1Handler(svc *service.Onboarding, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/onboarding/stage-1")
		defer span.End()

		var req domain.Stage1Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		result, err := svc.SubmitStage1(ctx, UserIDFromContext(ctx), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func stage2Handler(svc *service.Onboarding, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/onboarding/stage-2")
		defer span.End()

		var req domain.Stage2Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		result, err := svc.SubmitStage2(ctx, UserIDFromContext(ctx), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func stage3Handler(svc *service.Onboarding, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/onboarding/stage-3")
		defer span.End()

		var req domain.Stage3Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		result, err := svc.SubmitStage3(ctx, UserIDFromContext(ctx), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func completionHandler(svc *service.Onboarding, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/onboarding/completion")
		defer span.End()

		var req domain.CompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		result, err := svc.Complete(ctx, UserIDFromContext(ctx), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}
