package handler

import (
	"encoding/json"
	"net/http"

	"github.com/pocketshop/vendor-bff-go/internal/domain"
	"github.com/pocketshop/vendor-bff-go/internal/infra/observability"
	"github.com/pocketshop/vendor-bff-go/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// 4. Dashboard — summary, analytics, settings
// ============================================================

func dashboardSummaryHandler(analytics *service.Analytics, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/dashboard/summary")
		defer span.End()

		summary, err := analytics.Summary(ctx, UserIDFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, summary)
	}
}

func revenueHandler(analytics *service.Analytics, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/dashboard/analytics/revenue")
		defer span.End()

		days := queryInt(r, "days", 7, 90)
		series, err := analytics.Revenue(ctx, UserIDFromContext(ctx), days)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, series)
	}
}

func topItemsHandler(analytics *service.Analytics, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/dashboard/analytics/top-items")
		defer span.End()

		limit := queryInt(r, "limit", 5, 50)
		items, err := analytics.BestSellers(ctx, UserIDFromContext(ctx), limit)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, items)
	}
}

func getSettingsHandler(svc *service.Onboarding, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/dashboard/settings")
		defer span.End()

		profile, err := svc.GetProfile(ctx, UserIDFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, profile)
	}
}

func updateSettingsHandler(svc *service.Onboarding, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PATCH /v1/dashboard/settings")
		defer span.End()

		var req domain.SettingsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		profile, err := svc.UpdateSettings(ctx, UserIDFromContext(ctx), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, profile)
	}
}

// boardMetricsHandler exposes the operational counters behind the board:
// status changes, rollbacks, realtime events, guard decisions.
func boardMetricsHandler(metrics *observability.Metrics, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, span := tracer.Start(r.Context(), "GET /v1/metrics/board")
		defer span.End()

		writeJSON(w, http.StatusOK, metrics.GetBoardSnapshot())
	}
}
