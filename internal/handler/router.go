package handler

import (
	"net/http"

	"github.com/pocketshop/vendor-bff-go/internal/domain"
	"github.com/pocketshop/vendor-bff-go/internal/infra/observability"
	"github.com/pocketshop/vendor-bff-go/internal/port"
	"github.com/pocketshop/vendor-bff-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// Deps carries everything the router wires together.
type Deps struct {
	Auth       port.AuthBackend
	Sessions   SessionFactory
	Guard      *service.Guard
	Onboarding *service.Onboarding
	Boards     *service.BoardManager
	Analytics  *service.Analytics
	JWTSecret  string
	Metrics    *observability.Metrics
	Logger     *zap.Logger
}

// NewRouter creates the HTTP router with all routes and middleware.
// Protected route groups carry their access condition explicitly; the
// guard middleware turns its decision into the HTTP answer.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(d.Logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}))

	authed := JWTAuthMiddleware(d.JWTSecret, d.Logger)

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler())
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(d.Metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {

		// =============================================
		// 1. Authentication (public)
		// =============================================
		r.Post("/auth/signup", authSignUpHandler(d.Sessions, d.Logger))
		r.Post("/auth/signin", authSignInHandler(d.Sessions, d.Logger))
		r.Post("/auth/recover", authRecoverHandler(d.Sessions, d.Logger))
		r.Post("/auth/poll", authPollHandler(d.Sessions, d.Logger))
		r.Post("/auth/refresh", authRefreshHandler(d.Auth, d.Logger))

		r.Group(func(r chi.Router) {
			r.Use(authed)
			r.Post("/auth/signout", authSignOutHandler(d.Sessions, d.Logger))
			r.Get("/auth/session", authSessionHandler(d.Logger))
		})

		// =============================================
		// 2. Vendor profile (authenticated)
		// =============================================
		r.Group(func(r chi.Router) {
			r.Use(authed)
			r.Use(GuardMiddleware(d.Guard, service.RequireAuthenticated(), d.Logger))
			r.Get("/vendors/me", vendorsMeHandler(d.Onboarding, d.Logger))
			r.Get("/onboarding/profile", onboardingProfileHandler(d.Onboarding, d.Logger))
		})

		// =============================================
		// 3. Onboarding stages — each group is gated on
		//    the stage it serves
		// =============================================
		r.Group(func(r chi.Router) {
			r.Use(authed)
			r.Use(GuardMiddleware(d.Guard, service.RequireStage(domain.Stage1), d.Logger))
			r.Get("/onboarding/stage-1", stageFormHandler(d.Onboarding, "/v1/onboarding/stage-1", d.Logger))
			r.Post("/onboarding/stage-1", stage1Handler(d.Onboarding, d.Logger))
		})
		r.Group(func(r chi.Router) {
			r.Use(authed)
			r.Use(GuardMiddleware(d.Guard, service.RequireStage(domain.Stage2), d.Logger))
			r.Get("/onboarding/stage-2", stageFormHandler(d.Onboarding, "/v1/onboarding/stage-2", d.Logger))
			r.Post("/onboarding/stage-2", stage2Handler(d.Onboarding, d.Logger))
		})
		r.Group(func(r chi.Router) {
			r.Use(authed)
			r.Use(GuardMiddleware(d.Guard, service.RequireStage(domain.Stage3), d.Logger))
			r.Get("/onboarding/stage-3", stageFormHandler(d.Onboarding, "/v1/onboarding/stage-3", d.Logger))
			r.Post("/onboarding/stage-3", stage3Handler(d.Onboarding, d.Logger))
		})
		r.Group(func(r chi.Router) {
			r.Use(authed)
			r.Use(GuardMiddleware(d.Guard, service.RequireStage(domain.StageFinish), d.Logger))
			r.Get("/onboarding/completion", stageFormHandler(d.Onboarding, "/v1/onboarding/completion", d.Logger))
			r.Post("/onboarding/completion", completionHandler(d.Onboarding, d.Logger))
		})

		// =============================================
		// 4. Dashboard — requires completed onboarding
		// =============================================
		r.Group(func(r chi.Router) {
			r.Use(authed)
			r.Use(GuardMiddleware(d.Guard, service.RequireCompleted(), d.Logger))

			r.Get("/dashboard/summary", dashboardSummaryHandler(d.Analytics, d.Logger))
			r.Get("/dashboard/orders", listOrdersHandler(d.Boards, d.Logger))
			r.Post("/dashboard/orders/{orderId}/status", changeOrderStatusHandler(d.Boards, d.Logger))
			r.Post("/dashboard/orders/{orderId}/advance", advanceOrderHandler(d.Boards, d.Logger))
			r.Get("/dashboard/analytics/revenue", revenueHandler(d.Analytics, d.Logger))
			r.Get("/dashboard/analytics/top-items", topItemsHandler(d.Analytics, d.Logger))
			r.Get("/dashboard/settings", getSettingsHandler(d.Onboarding, d.Logger))
			r.Patch("/dashboard/settings", updateSettingsHandler(d.Onboarding, d.Logger))
		})

		// =============================================
		// 5. Customer order placement (public)
		// =============================================
		r.Post("/orders", placeOrderHandler(d.Boards, d.Logger))

		// =============================================
		// 6. Operational metrics snapshot
		// =============================================
		r.Get("/metrics/board", boardMetricsHandler(d.Metrics, d.Logger))
	})

	return r
}

func healthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
