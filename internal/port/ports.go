// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"

	"github.com/pocketshop/vendor-bff-go/internal/domain"
)

// AuthBackend is the managed auth service (GoTrue-shaped). Session issuance,
// password storage and token refresh all live behind this boundary.
type AuthBackend interface {
	SignUp(ctx context.Context, email, password string, metadata map[string]any) (*domain.TokenGrant, error)
	SignInWithPassword(ctx context.Context, email, password string) (*domain.TokenGrant, error)
	SignOut(ctx context.Context, accessToken string) error
	GetUser(ctx context.Context, accessToken string) (userID string, err error)
	RefreshToken(ctx context.Context, refreshToken string) (*domain.TokenGrant, error)
}

// ProfileStore defines data operations on vendor_profiles.
type ProfileStore interface {
	// GetProfile returns *domain.ErrNotFound when no row exists for the user.
	GetProfile(ctx context.Context, userID string) (*domain.VendorProfile, error)
	CreateProfile(ctx context.Context, profile *domain.VendorProfile) error
	// UpdateProfile patches the given columns on the user's row.
	UpdateProfile(ctx context.Context, userID string, updates map[string]any) error
	// GetOnboardingStatus reads only the onboarding_status column.
	// A missing row returns *domain.ErrNotFound, never a zero status.
	GetOnboardingStatus(ctx context.Context, userID string) (domain.OnboardingStatus, error)
}

// OrderStore defines data operations on orders.
type OrderStore interface {
	ListOrders(ctx context.Context, vendorID string) ([]domain.Order, error)
	CreateOrder(ctx context.Context, order *domain.Order) error
	UpdateOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus) error
}

// ChangeFeed delivers realtime row-change events for one table + filter.
// The returned channel closes when ctx is cancelled.
type ChangeFeed interface {
	Subscribe(ctx context.Context, table, filter string) (<-chan domain.ChangeEvent, error)
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}
