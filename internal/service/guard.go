package service

import (
	"context"
	"errors"

	"github.com/pocketshop/vendor-bff-go/internal/domain"
	"github.com/pocketshop/vendor-bff-go/internal/infra/observability"
	"github.com/pocketshop/vendor-bff-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var guardTracer = otel.Tracer("service/guard")

// ============================================================
// Route guard — access-control state machine
// ============================================================

// GuardState is the guard's position after evaluating a request.
type GuardState int

const (
	GuardLoading GuardState = iota
	GuardUnauthenticated
	GuardAuthorized
	GuardUnauthorizedStage
	GuardError
)

func (s GuardState) String() string {
	switch s {
	case GuardLoading:
		return "loading"
	case GuardUnauthenticated:
		return "unauthenticated"
	case GuardAuthorized:
		return "authorized"
	case GuardUnauthorizedStage:
		return "unauthorized_stage"
	default:
		return "error"
	}
}

// Decision is what the guard tells the caller to do.
type Decision struct {
	State GuardState

	// RedirectTo is set for UNAUTHENTICATED (login route) and
	// UNAUTHORIZED (furthest accessible stage route).
	RedirectTo string

	// From preserves the originally requested path so a successful login
	// can return the vendor to it.
	From string

	// Err is the non-nil session error behind an ERROR decision. The error
	// view always offers Retry and Go-to-Login; content is never rendered.
	Err error
}

// Condition is the access requirement attached to a route.
type Condition struct {
	// Stage > 0 gates an onboarding route on reaching that stage.
	Stage domain.Stage
	// Completed gates dashboard-class routes on finished onboarding.
	Completed bool
}

// RequireAuthenticated gates a plain protected route.
func RequireAuthenticated() Condition { return Condition{} }

// RequireStage gates an onboarding route on stage n being accessible.
func RequireStage(n domain.Stage) Condition { return Condition{Stage: n} }

// RequireCompleted gates a dashboard route on completed onboarding.
func RequireCompleted() Condition { return Condition{Completed: true} }

const loginRoute = "/login"

// Guard evaluates access decisions for protected routes. Concurrent
// evaluations for the same vendor share one status lookup via singleflight,
// and resolved statuses are cached until the stage controller invalidates
// them after a write.
type Guard struct {
	profiles port.ProfileStore
	cache    port.Cache[domain.OnboardingStatus]
	group    singleflight.Group
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewGuard creates the route guard.
func NewGuard(profiles port.ProfileStore, cache port.Cache[domain.OnboardingStatus], metrics *observability.Metrics, logger *zap.Logger) *Guard {
	return &Guard{
		profiles: profiles,
		cache:    cache,
		metrics:  metrics,
		logger:   logger,
	}
}

// Evaluate runs the transition function over (session, condition).
// requestedPath is carried into login redirects.
func (g *Guard) Evaluate(ctx context.Context, session domain.Session, cond Condition, requestedPath string) Decision {
	ctx, span := guardTracer.Start(ctx, "Guard.Evaluate")
	defer span.End()

	d := g.evaluate(ctx, session, cond, requestedPath)
	g.metrics.IncrGuardDecision(d.State.String())
	return d
}

func (g *Guard) evaluate(ctx context.Context, session domain.Session, cond Condition, requestedPath string) Decision {
	// 1. Still resolving the session: show loading, never redirect.
	if session.IsLoading {
		return Decision{State: GuardLoading}
	}

	// 2. A non-nil error renders the error view. An explicit nil error with
	// no session falls through to the redirect below instead.
	if session.LastError != nil {
		return Decision{State: GuardError, Err: session.LastError}
	}

	// 3. Identity and token must both be present; half a session is none.
	if !session.Authenticated() {
		return Decision{
			State:      GuardUnauthenticated,
			RedirectTo: loginRoute,
			From:       requestedPath,
		}
	}

	// 4. Plain protected route: authentication is enough.
	if cond.Stage == 0 && !cond.Completed {
		return Decision{State: GuardAuthorized}
	}

	// Stage- or completion-gated: resolve the onboarding cursor.
	completion, err := g.lookupCompletion(ctx, session.UserID)
	if err != nil {
		g.logger.Error("guard: onboarding status lookup failed",
			zap.String("user_id", session.UserID),
			zap.Error(err),
		)
		return Decision{State: GuardError, Err: err}
	}

	target := cond.Stage
	if cond.Completed {
		target = domain.StageFinish
	}

	if cond.Completed && !completion.Completed {
		return Decision{
			State:      GuardUnauthorizedStage,
			RedirectTo: FurthestAccessibleStage(completion).Route(),
			From:       requestedPath,
		}
	}
	if !cond.Completed && !StageAccessible(completion, target) {
		return Decision{
			State:      GuardUnauthorizedStage,
			RedirectTo: FurthestAccessibleStage(completion).Route(),
			From:       requestedPath,
		}
	}

	return Decision{State: GuardAuthorized}
}

// lookupCompletion resolves the vendor's stage completion. A missing
// profile row resolves to "incomplete" — onboarding must always be
// reachable for a brand-new vendor — while any other lookup failure is a
// real error the caller surfaces.
func (g *Guard) lookupCompletion(ctx context.Context, userID string) (domain.StageCompletion, error) {
	if status, ok := g.cache.Get(statusCacheKey(userID)); ok {
		g.metrics.IncrCacheHit("onboarding_status")
		return ResolveCompletion(status), nil
	}
	g.metrics.IncrCacheMiss("onboarding_status")

	v, err, _ := g.group.Do(userID, func() (any, error) {
		status, err := g.profiles.GetOnboardingStatus(ctx, userID)
		if err != nil {
			var notFound *domain.ErrNotFound
			if errors.As(err, &notFound) {
				return domain.StatusIncomplete, nil
			}
			return nil, err
		}
		g.cache.Set(statusCacheKey(userID), status)
		return status, nil
	})
	if err != nil {
		return domain.StageCompletion{}, err
	}

	return ResolveCompletion(v.(domain.OnboardingStatus)), nil
}

func statusCacheKey(userID string) string {
	return "onboarding_status:" + userID
}
