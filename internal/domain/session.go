package domain

import "time"

// ============================================================
// Session — identity state owned by the session store
// ============================================================

// Session is the current authentication state. UserID and AccessToken are
// both set or both empty: a session is a single atomic fact, never half of one.
type Session struct {
	UserID       string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time

	IsLoading bool
	LastError error
}

// Authenticated reports whether the session carries both a user identity
// and a live token. One without the other counts as unauthenticated.
func (s Session) Authenticated() bool {
	return s.UserID != "" && s.AccessToken != ""
}

// AuthEventType identifies a push event from the auth backend.
type AuthEventType string

const (
	EventInitialSession AuthEventType = "INITIAL_SESSION"
	EventSignedIn       AuthEventType = "SIGNED_IN"
	EventSignedOut      AuthEventType = "SIGNED_OUT"
	EventTokenRefreshed AuthEventType = "TOKEN_REFRESHED"
	EventUserUpdated    AuthEventType = "USER_UPDATED"
)

// AuthEvent is delivered by the auth backend's change stream. Events may
// arrive duplicated or race the sign-in call that caused them; the session
// reducer must converge on the same state either way.
type AuthEvent struct {
	Type         AuthEventType
	UserID       string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// TokenGrant is what the auth backend hands back on sign-in, sign-up or
// token refresh. It is the raw material the session store folds into state.
type TokenGrant struct {
	UserID       string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// ============================================================
// Auth — request / response types (frontend API contract)
// ============================================================

// SignUpRequest is the body for POST /v1/auth/signup.
type SignUpRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	StoreName string `json:"storeName"`
	OwnerName string `json:"ownerName"`
}

// SignInRequest is the body for POST /v1/auth/signin.
type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SessionResponse is the body for successful auth calls and GET /v1/auth/session.
type SessionResponse struct {
	UserID       string `json:"userId"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int    `json:"expiresIn"`
}

// RefreshRequest is the body for POST /v1/auth/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// RecoverRequest carries a persisted token pair for POST /v1/auth/recover
// and the OAuth-callback polling endpoint.
type RecoverRequest struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// PollOutcome tags the result of bounded session-recovery polling
// (OAuth-callback completion).
type PollOutcome int

const (
	PollSuccess PollOutcome = iota
	PollTimedOut
	PollFailed
)

func (o PollOutcome) String() string {
	switch o {
	case PollSuccess:
		return "success"
	case PollTimedOut:
		return "timed_out"
	default:
		return "failed"
	}
}
