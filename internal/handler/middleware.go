package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/pocketshop/vendor-bff-go/internal/domain"
	"github.com/pocketshop/vendor-bff-go/internal/service"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

type contextKey string

const (
	userIDKey      contextKey = "userID"
	accessTokenKey contextKey = "accessToken"
)

// JWTAuthMiddleware validates Supabase access tokens locally (HS256 with
// the project JWT secret) and injects the vendor's user id into context.
// No round-trip to the auth service per request.
func JWTAuthMiddleware(jwtSecret string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.Warn("auth: missing token",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				writeJSON(w, http.StatusUnauthorized, redirectResponse{
					Error:      "authentication required",
					RedirectTo: "/login",
					From:       r.URL.Path,
				})
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				logger.Warn("auth: invalid token format",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				writeError(w, http.StatusUnauthorized, "invalid authorization header")
				return
			}

			tokenString := parts[1]
			userID, err := validateAccessToken(tokenString, jwtSecret)
			if err != nil {
				logger.Warn("auth: invalid or expired token",
					zap.String("path", r.URL.Path),
					zap.Error(err),
				)
				writeJSON(w, http.StatusUnauthorized, redirectResponse{
					Error:      "invalid or expired token",
					RedirectTo: "/login",
					From:       r.URL.Path,
				})
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, userID)
			ctx = context.WithValue(ctx, accessTokenKey, tokenString)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// validateAccessToken parses and verifies a Supabase access token and
// returns the subject (user id).
func validateAccessToken(tokenString, secret string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return "", err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("invalid token claims")
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return "", fmt.Errorf("token has no subject")
	}
	return sub, nil
}

// UserIDFromContext extracts the authenticated vendor's user id.
func UserIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(userIDKey).(string)
	return v
}

// AccessTokenFromContext extracts the raw bearer token of the request.
func AccessTokenFromContext(ctx context.Context) string {
	v, _ := ctx.Value(accessTokenKey).(string)
	return v
}

// GuardMiddleware evaluates the route guard for a protected route group.
// Runs after JWTAuthMiddleware, so the session it hands the guard is
// already past the loading state.
func GuardMiddleware(guard *service.Guard, cond service.Condition, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session := domain.Session{
				UserID:      UserIDFromContext(r.Context()),
				AccessToken: AccessTokenFromContext(r.Context()),
			}

			decision := guard.Evaluate(r.Context(), session, cond, r.URL.Path)
			switch decision.State {
			case service.GuardAuthorized:
				next.ServeHTTP(w, r)

			case service.GuardUnauthenticated:
				writeJSON(w, http.StatusUnauthorized, redirectResponse{
					Error:      "authentication required",
					RedirectTo: decision.RedirectTo,
					From:       decision.From,
				})

			case service.GuardUnauthorizedStage:
				// The client navigates to the furthest accessible stage.
				writeJSON(w, http.StatusConflict, redirectResponse{
					Error:      "onboarding stage not reached",
					RedirectTo: decision.RedirectTo,
					From:       decision.From,
				})

			case service.GuardLoading:
				w.Header().Set("Retry-After", "1")
				writeError(w, http.StatusServiceUnavailable, "session still resolving")

			default:
				handleServiceError(w, decision.Err, logger)
			}
		})
	}
}
