package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/pocketshop/vendor-bff-go/internal/domain"
	"github.com/pocketshop/vendor-bff-go/internal/port"
	"github.com/pocketshop/vendor-bff-go/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// 1. Authentication
// ============================================================

// SessionFactory builds a request-scoped session store. Each HTTP client
// owns its session; the store exists for the duration of the auth call.
type SessionFactory func() *service.SessionStore

func sessionResponse(s domain.Session) domain.SessionResponse {
	expiresIn := 0
	if !s.ExpiresAt.IsZero() {
		expiresIn = int(time.Until(s.ExpiresAt).Seconds())
	}
	return domain.SessionResponse{
		UserID:       s.UserID,
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		ExpiresIn:    expiresIn,
	}
}

func authSignUpHandler(sessions SessionFactory, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/auth/signup")
		defer span.End()

		var req domain.SignUpRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Email == "" || req.Password == "" {
			writeError(w, http.StatusBadRequest, "email and password are required")
			return
		}

		seed := map[string]any{}
		if req.StoreName != "" {
			seed["store_name"] = req.StoreName
		}
		if req.OwnerName != "" {
			seed["owner_name"] = req.OwnerName
		}

		session, err := sessions().SignUp(ctx, req.Email, req.Password, seed)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusCreated, sessionResponse(session))
	}
}

func authSignInHandler(sessions SessionFactory, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/auth/signin")
		defer span.End()

		var req domain.SignInRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Email == "" || req.Password == "" {
			writeError(w, http.StatusBadRequest, "email and password are required")
			return
		}

		session, err := sessions().SignIn(ctx, req.Email, req.Password)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, sessionResponse(session))
	}
}

func authSignOutHandler(sessions SessionFactory, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/auth/signout")
		defer span.End()

		token := AccessTokenFromContext(ctx)
		store := sessions()
		if token != "" {
			store.Apply(domain.AuthEvent{
				Type:        domain.EventSignedIn,
				UserID:      UserIDFromContext(ctx),
				AccessToken: token,
			})
		}

		// Local state always clears; a failed revocation is logged upstream.
		_ = store.SignOut(ctx)
		writeJSON(w, http.StatusOK, domain.SuccessResponse{Message: "signed out"})
	}
}

// authRecoverHandler resolves a persisted token pair into a live session —
// the cold-start recovery path, bounded by the configured timeout.
func authRecoverHandler(sessions SessionFactory, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/auth/recover")
		defer span.End()

		var req domain.RecoverRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		store := sessions()
		store.Recover(ctx, req.AccessToken, req.RefreshToken)

		snap := store.Snapshot()
		if snap.LastError != nil {
			handleServiceError(w, snap.LastError, logger)
			return
		}
		if !snap.Authenticated() {
			// Dead tokens are a normal signed-out answer, not an error.
			writeJSON(w, http.StatusUnauthorized, redirectResponse{
				Error:      "no live session",
				RedirectTo: "/login",
			})
			return
		}

		writeJSON(w, http.StatusOK, sessionResponse(snap))
	}
}

// authPollHandler completes an OAuth callback: the session materialises
// asynchronously, so the store polls bounded by attempts and deadline.
func authPollHandler(sessions SessionFactory, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/auth/poll")
		defer span.End()

		var req domain.RecoverRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.RefreshToken == "" {
			writeError(w, http.StatusBadRequest, "refreshToken is required")
			return
		}

		store := sessions()
		outcome, err := store.PollRecovery(ctx, req.RefreshToken)
		switch outcome {
		case domain.PollSuccess:
			writeJSON(w, http.StatusOK, sessionResponse(store.Snapshot()))
		case domain.PollTimedOut:
			logger.Warn("oauth polling timed out")
			writeError(w, http.StatusGatewayTimeout, "session did not materialise in time")
		default:
			handleServiceError(w, err, logger)
		}
	}
}

func authRefreshHandler(auth port.AuthBackend, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/auth/refresh")
		defer span.End()

		var req domain.RefreshRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.RefreshToken == "" {
			writeError(w, http.StatusBadRequest, "refreshToken is required")
			return
		}

		grant, err := auth.RefreshToken(ctx, req.RefreshToken)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, sessionResponse(domain.Session{
			UserID:       grant.UserID,
			AccessToken:  grant.AccessToken,
			RefreshToken: grant.RefreshToken,
			ExpiresAt:    grant.ExpiresAt,
		}))
	}
}

func authSessionHandler(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, span := tracer.Start(r.Context(), "GET /v1/auth/session")
		defer span.End()

		// The JWT middleware already validated the token.
		writeJSON(w, http.StatusOK, domain.SessionResponse{
			UserID:      UserIDFromContext(r.Context()),
			AccessToken: AccessTokenFromContext(r.Context()),
		})
	}
}
