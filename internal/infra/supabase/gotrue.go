package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pocketshop/vendor-bff-go/internal/domain"

	"go.uber.org/zap"
)

// ============================================================
// GoTrue — managed auth API (implements port.AuthBackend)
// ============================================================

// AuthClient wraps HTTP calls to the Supabase GoTrue API under /auth/v1.
// Password storage, session issuance and token refresh live entirely on
// the platform side; this client only moves tokens back and forth.
type AuthClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	logger     *zap.Logger
}

// NewAuthClient creates a GoTrue client.
func NewAuthClient(httpClient *http.Client, baseURL, apiKey string, logger *zap.Logger) *AuthClient {
	return &AuthClient{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		logger:     logger,
	}
}

// gotrueSession maps the GoTrue token response.
type gotrueSession struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	User         struct {
		ID string `json:"id"`
	} `json:"user"`
}

type gotrueError struct {
	Message          string `json:"msg"`
	ErrorDescription string `json:"error_description"`
}

func (e *gotrueError) text() string {
	if e.Message != "" {
		return e.Message
	}
	return e.ErrorDescription
}

// SignUp registers a new user. Metadata is stored as user_metadata and
// seeds the vendor profile on first stage-1 submission.
func (a *AuthClient) SignUp(ctx context.Context, email, password string, metadata map[string]any) (*domain.TokenGrant, error) {
	ctx, span := tracer.Start(ctx, "GoTrue.SignUp")
	defer span.End()

	payload := map[string]any{
		"email":    email,
		"password": password,
	}
	if len(metadata) > 0 {
		payload["data"] = metadata
	}

	return a.tokenCall(ctx, "signup", payload)
}

// SignInWithPassword exchanges credentials for a session.
func (a *AuthClient) SignInWithPassword(ctx context.Context, email, password string) (*domain.TokenGrant, error) {
	ctx, span := tracer.Start(ctx, "GoTrue.SignInWithPassword")
	defer span.End()

	return a.tokenCall(ctx, "token?grant_type=password", map[string]any{
		"email":    email,
		"password": password,
	})
}

// RefreshToken exchanges a refresh token for a fresh session.
func (a *AuthClient) RefreshToken(ctx context.Context, refreshToken string) (*domain.TokenGrant, error) {
	ctx, span := tracer.Start(ctx, "GoTrue.RefreshToken")
	defer span.End()

	return a.tokenCall(ctx, "token?grant_type=refresh_token", map[string]any{
		"refresh_token": refreshToken,
	})
}

// SignOut revokes the session behind the access token.
func (a *AuthClient) SignOut(ctx context.Context, accessToken string) error {
	ctx, span := tracer.Start(ctx, "GoTrue.SignOut")
	defer span.End()

	req, err := a.newRequest(ctx, http.MethodPost, "logout", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		a.logger.Error("gotrue: logout request failed", zap.Error(err))
		return &domain.ErrExternalService{Service: "gotrue/logout", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("gotrue logout returned %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// GetUser resolves the user behind an access token. Used by session
// recovery to confirm a persisted token is still live.
func (a *AuthClient) GetUser(ctx context.Context, accessToken string) (string, error) {
	ctx, span := tracer.Start(ctx, "GoTrue.GetUser")
	defer span.End()

	req, err := a.newRequest(ctx, http.MethodGet, "user", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		a.logger.Error("gotrue: user request failed", zap.Error(err))
		return "", &domain.ErrExternalService{Service: "gotrue/user", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return "", &domain.ErrUnauthorized{Message: "session expired or revoked"}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("gotrue user returned %d: %s", resp.StatusCode, string(body))
	}

	var user struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &user); err != nil {
		return "", fmt.Errorf("decode gotrue user: %w", err)
	}
	return user.ID, nil
}

func (a *AuthClient) tokenCall(ctx context.Context, path string, payload map[string]any) (*domain.TokenGrant, error) {
	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := a.newRequest(ctx, http.MethodPost, path, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, err
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		a.logger.Error("gotrue: token request failed",
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, &domain.ErrExternalService{Service: "gotrue", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized ||
		resp.StatusCode == http.StatusUnprocessableEntity {
		var gerr gotrueError
		_ = json.Unmarshal(body, &gerr)
		msg := gerr.text()
		if msg == "" {
			msg = "invalid credentials"
		}
		a.logger.Warn("gotrue: auth rejected",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
		)
		return nil, &domain.ErrUnauthorized{Message: msg}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("gotrue %s returned %d: %s", path, resp.StatusCode, string(body))
	}

	var session gotrueSession
	if err := json.Unmarshal(body, &session); err != nil {
		return nil, fmt.Errorf("decode gotrue session: %w", err)
	}
	if session.AccessToken == "" || session.User.ID == "" {
		// Signup with email confirmation on returns a user without a session.
		return nil, &domain.ErrUnauthorized{Message: "confirmation required before sign-in"}
	}

	return &domain.TokenGrant{
		UserID:       session.User.ID,
		AccessToken:  session.AccessToken,
		RefreshToken: session.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(session.ExpiresIn) * time.Second),
	}, nil
}

func (a *AuthClient) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	url := fmt.Sprintf("%s/auth/v1/%s", a.baseURL, path)
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("apikey", a.apiKey)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}
