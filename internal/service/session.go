package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/pocketshop/vendor-bff-go/internal/domain"
	"github.com/pocketshop/vendor-bff-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var sessionTracer = otel.Tracer("service/session")

// SessionStore owns the current authentication state. All mutation goes
// through its operations; consumers read snapshots. Push events from the
// auth backend and the results of in-flight sign-in calls may race — the
// reducer is idempotent, so both converge on the same terminal state.
type SessionStore struct {
	auth     port.AuthBackend
	profiles port.ProfileStore
	logger   *zap.Logger

	recoveryTimeout time.Duration
	pollAttempts    int
	pollInterval    time.Duration
	pollDeadline    time.Duration

	mu          sync.RWMutex
	state       domain.Session
	subscribers []func(domain.Session)
}

// SessionConfig bounds the store's waiting behaviour.
type SessionConfig struct {
	RecoveryTimeout time.Duration
	PollAttempts    int
	PollInterval    time.Duration
	PollDeadline    time.Duration
}

// NewSessionStore creates the store in its loading state. Call Recover to
// resolve the initial session; until then IsLoading is true.
func NewSessionStore(auth port.AuthBackend, profiles port.ProfileStore, cfg SessionConfig, logger *zap.Logger) *SessionStore {
	return &SessionStore{
		auth:            auth,
		profiles:        profiles,
		logger:          logger,
		recoveryTimeout: cfg.RecoveryTimeout,
		pollAttempts:    cfg.PollAttempts,
		pollInterval:    cfg.PollInterval,
		pollDeadline:    cfg.PollDeadline,
		state:           domain.Session{IsLoading: true},
	}
}

// Snapshot returns the current session state. Callers treat it as read-only.
func (s *SessionStore) Snapshot() domain.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Subscribe registers a callback invoked after every state change.
// Callbacks run synchronously under no lock; they must not call back into
// the store's mutating operations.
func (s *SessionStore) Subscribe(fn func(domain.Session)) {
	s.mu.Lock()
	s.subscribers = append(s.subscribers, fn)
	s.mu.Unlock()
}

// ============================================================
// Recovery — cold start and OAuth-callback polling
// ============================================================

// Recover resolves the initial session from a persisted token pair within
// a bounded timeout. Whatever happens — success, rejection, or the backend
// never answering — the store leaves its loading state, so the UI is never
// stuck on a spinner.
func (s *SessionStore) Recover(ctx context.Context, accessToken, refreshToken string) {
	ctx, span := sessionTracer.Start(ctx, "SessionStore.Recover")
	defer span.End()

	if accessToken == "" && refreshToken == "" {
		s.apply(domain.AuthEvent{Type: domain.EventSignedOut})
		return
	}

	ctx, cancel := context.WithTimeout(ctx, s.recoveryTimeout)
	defer cancel()

	type result struct {
		grant *domain.TokenGrant
		err   error
	}
	done := make(chan result, 1)

	go func() {
		userID, err := s.auth.GetUser(ctx, accessToken)
		if err == nil {
			done <- result{grant: &domain.TokenGrant{
				UserID:       userID,
				AccessToken:  accessToken,
				RefreshToken: refreshToken,
			}}
			return
		}
		// Access token stale; the refresh token may still be good.
		if refreshToken != "" {
			grant, rerr := s.auth.RefreshToken(ctx, refreshToken)
			done <- result{grant: grant, err: rerr}
			return
		}
		done <- result{err: err}
	}()

	select {
	case <-ctx.Done():
		s.logger.Warn("session recovery timed out",
			zap.Duration("timeout", s.recoveryTimeout),
		)
		s.setError(&domain.ErrTimeout{Operation: "session recovery"})
	case r := <-done:
		if r.err != nil || r.grant == nil {
			// A dead session is unauthenticated, not an error screen.
			s.logger.Info("session recovery: no live session", zap.Error(r.err))
			s.apply(domain.AuthEvent{Type: domain.EventSignedOut})
			return
		}
		s.apply(grantEvent(domain.EventInitialSession, r.grant))
		s.enrichProfile(r.grant.UserID)
	}
}

// PollRecovery repeatedly asks the auth backend for a session, bounded by
// both an attempt count and a wall-clock deadline. Used to complete OAuth
// callbacks, where the session materialises asynchronously.
func (s *SessionStore) PollRecovery(ctx context.Context, refreshToken string) (domain.PollOutcome, error) {
	ctx, span := sessionTracer.Start(ctx, "SessionStore.PollRecovery")
	defer span.End()

	deadline := time.Now().Add(s.pollDeadline)
	var lastErr error

	for attempt := 0; attempt < s.pollAttempts; attempt++ {
		if time.Now().After(deadline) {
			break
		}

		grant, err := s.auth.RefreshToken(ctx, refreshToken)
		if err == nil && grant != nil {
			s.apply(grantEvent(domain.EventSignedIn, grant))
			s.enrichProfile(grant.UserID)
			return domain.PollSuccess, nil
		}
		lastErr = err

		var unauthorized *domain.ErrUnauthorized
		if errors.As(err, &unauthorized) {
			// Definitive rejection, no point polling further.
			s.setError(err)
			return domain.PollFailed, err
		}

		select {
		case <-ctx.Done():
			return domain.PollFailed, ctx.Err()
		case <-time.After(s.pollInterval):
		}
	}

	err := &domain.ErrTimeout{Operation: "oauth session polling"}
	s.logger.Warn("oauth polling exhausted",
		zap.Int("max_attempts", s.pollAttempts),
		zap.Duration("deadline", s.pollDeadline),
		zap.Error(lastErr),
	)
	s.setError(err)
	return domain.PollTimedOut, err
}

// ============================================================
// Sign in / up / out
// ============================================================

// SignIn exchanges credentials for a session. Errors are captured into the
// state's LastError and returned; nothing retries automatically.
func (s *SessionStore) SignIn(ctx context.Context, email, password string) (domain.Session, error) {
	ctx, span := sessionTracer.Start(ctx, "SessionStore.SignIn")
	defer span.End()

	grant, err := s.auth.SignInWithPassword(ctx, email, password)
	if err != nil {
		s.setError(err)
		return s.Snapshot(), err
	}

	s.apply(grantEvent(domain.EventSignedIn, grant))
	s.logger.Info("vendor signed in", zap.String("user_id", grant.UserID))

	// Profile enrichment is opportunistic; its failure never fails sign-in.
	s.enrichProfile(grant.UserID)

	return s.Snapshot(), nil
}

// SignUp registers a vendor account and, when the platform signs the new
// user straight in, adopts the returned session.
func (s *SessionStore) SignUp(ctx context.Context, email, password string, seed map[string]any) (domain.Session, error) {
	ctx, span := sessionTracer.Start(ctx, "SessionStore.SignUp")
	defer span.End()

	grant, err := s.auth.SignUp(ctx, email, password, seed)
	if err != nil {
		s.setError(err)
		return s.Snapshot(), err
	}

	s.apply(grantEvent(domain.EventSignedIn, grant))
	s.logger.Info("vendor signed up", zap.String("user_id", grant.UserID))
	return s.Snapshot(), nil
}

// SignOut revokes the current session. The local state is cleared even if
// the revocation call fails — a vendor asking to leave always leaves.
func (s *SessionStore) SignOut(ctx context.Context) error {
	ctx, span := sessionTracer.Start(ctx, "SessionStore.SignOut")
	defer span.End()

	token := s.Snapshot().AccessToken
	var err error
	if token != "" {
		err = s.auth.SignOut(ctx, token)
		if err != nil {
			s.logger.Warn("sign-out revocation failed", zap.Error(err))
		}
	}

	s.apply(domain.AuthEvent{Type: domain.EventSignedOut})
	return err
}

// ============================================================
// Event application — idempotent reducer
// ============================================================

// Apply folds a push event from the auth backend into the state. Public so
// the auth event stream can be wired straight in.
func (s *SessionStore) Apply(event domain.AuthEvent) {
	s.apply(event)
}

func (s *SessionStore) apply(event domain.AuthEvent) {
	s.mu.Lock()
	s.state = reduceSession(s.state, event)
	state := s.state
	subs := make([]func(domain.Session), len(s.subscribers))
	copy(subs, s.subscribers)
	s.mu.Unlock()

	for _, fn := range subs {
		fn(state)
	}
}

func (s *SessionStore) setError(err error) {
	s.mu.Lock()
	s.state.IsLoading = false
	s.state.LastError = err
	state := s.state
	subs := make([]func(domain.Session), len(s.subscribers))
	copy(subs, s.subscribers)
	s.mu.Unlock()

	for _, fn := range subs {
		fn(state)
	}
}

// reduceSession is the pure reducer over (state, event). Duplicate or
// out-of-order delivery must not corrupt state: applying the same event
// twice yields the same result as applying it once.
func reduceSession(state domain.Session, event domain.AuthEvent) domain.Session {
	switch event.Type {
	case domain.EventSignedIn, domain.EventInitialSession, domain.EventUserUpdated:
		return domain.Session{
			UserID:       event.UserID,
			AccessToken:  event.AccessToken,
			RefreshToken: event.RefreshToken,
			ExpiresAt:    event.ExpiresAt,
		}

	case domain.EventTokenRefreshed:
		// Token-only update: identity and derived data stay untouched.
		// A refresh for a session we do not hold is dropped — adopting it
		// would violate the both-or-neither invariant.
		if state.UserID == "" {
			return state
		}
		state.AccessToken = event.AccessToken
		if event.RefreshToken != "" {
			state.RefreshToken = event.RefreshToken
		}
		if !event.ExpiresAt.IsZero() {
			state.ExpiresAt = event.ExpiresAt
		}
		state.IsLoading = false
		state.LastError = nil
		return state

	case domain.EventSignedOut:
		return domain.Session{}

	default:
		return state
	}
}

// grantEvent lifts a token grant into the event shape the reducer consumes.
func grantEvent(t domain.AuthEventType, grant *domain.TokenGrant) domain.AuthEvent {
	return domain.AuthEvent{
		Type:         t,
		UserID:       grant.UserID,
		AccessToken:  grant.AccessToken,
		RefreshToken: grant.RefreshToken,
		ExpiresAt:    grant.ExpiresAt,
	}
}

// enrichProfile warms the profile in the background after sign-in. A miss
// (brand-new vendor, no row yet) or a transient failure is logged only.
func (s *SessionStore) enrichProfile(userID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if _, err := s.profiles.GetProfile(ctx, userID); err != nil {
			s.logger.Debug("profile enrichment skipped",
				zap.String("user_id", userID),
				zap.Error(err),
			)
		}
	}()
}
