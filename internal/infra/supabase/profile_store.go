package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/pocketshop/vendor-bff-go/internal/domain"
	"github.com/pocketshop/vendor-bff-go/internal/infra/resilience"

	"go.opentelemetry.io/otel/attribute"
)

// ============================================================
// ProfileStore implementation — vendor_profiles via PostgREST
// ============================================================

// GetProfile fetches the vendor profile for a user. A missing row is the
// distinguished *domain.ErrNotFound, which onboarding treats as "incomplete".
func (c *Client) GetProfile(ctx context.Context, userID string) (*domain.VendorProfile, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetProfile")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	var profile *domain.VendorProfile

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			path := fmt.Sprintf("vendor_profiles?user_id=eq.%s&limit=1", userID)
			body, err := c.doGet(ctx, path)
			if err != nil {
				return err
			}

			if body == nil || string(body) == "[]" {
				return &domain.ErrNotFound{Resource: "vendor_profile", ID: userID}
			}

			var rows []domain.VendorProfile
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("decode vendor_profiles: %w", err)
			}
			if len(rows) == 0 {
				return &domain.ErrNotFound{Resource: "vendor_profile", ID: userID}
			}

			profile = &rows[0]
			return nil
		})
	})

	if err != nil {
		var notFound *domain.ErrNotFound
		if errors.As(err, &notFound) {
			return nil, notFound
		}
		return nil, &domain.ErrExternalService{Service: "supabase/vendor_profiles", Err: err}
	}

	return profile, nil
}

// GetOnboardingStatus reads only the onboarding_status column.
func (c *Client) GetOnboardingStatus(ctx context.Context, userID string) (domain.OnboardingStatus, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetOnboardingStatus")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	path := fmt.Sprintf("vendor_profiles?user_id=eq.%s&select=onboarding_status&limit=1", userID)
	body, err := c.doGet(ctx, path)
	if err != nil {
		return "", &domain.ErrExternalService{Service: "supabase/vendor_profiles", Err: err}
	}
	if body == nil || string(body) == "[]" {
		return "", &domain.ErrNotFound{Resource: "vendor_profile", ID: userID}
	}

	var rows []struct {
		OnboardingStatus domain.OnboardingStatus `json:"onboarding_status"`
	}
	if err := json.Unmarshal(body, &rows); err != nil {
		return "", fmt.Errorf("decode onboarding_status: %w", err)
	}
	if len(rows) == 0 {
		return "", &domain.ErrNotFound{Resource: "vendor_profile", ID: userID}
	}
	return rows[0].OnboardingStatus, nil
}

// CreateProfile inserts a new vendor_profiles row.
func (c *Client) CreateProfile(ctx context.Context, profile *domain.VendorProfile) error {
	ctx, span := tracer.Start(ctx, "Supabase.CreateProfile")
	defer span.End()

	data := map[string]any{
		"id":                profile.ID,
		"user_id":           profile.UserID,
		"onboarding_status": string(profile.OnboardingStatus),
		"store_name":        profile.StoreName,
		"description":       profile.Description,
		"category":          profile.Category,
		"active":            profile.Active,
	}

	_, err := c.doPost(ctx, "vendor_profiles", data)
	if err != nil {
		if isConflict(err) {
			return &domain.ErrConflict{Message: "vendor profile already exists"}
		}
		return fmt.Errorf("create vendor profile: %w", err)
	}
	return nil
}

// UpdateProfile patches the given columns on the user's row. The stage
// controller sends field updates and the status advance together, so the
// write is one logical update, never two racing ones.
func (c *Client) UpdateProfile(ctx context.Context, userID string, updates map[string]any) error {
	ctx, span := tracer.Start(ctx, "Supabase.UpdateProfile")
	defer span.End()

	path := fmt.Sprintf("vendor_profiles?user_id=eq.%s", userID)
	if err := c.doPatch(ctx, path, updates); err != nil {
		if isConflict(err) {
			return &domain.ErrConflict{Message: "conflicting vendor profile update"}
		}
		return err
	}
	return nil
}

// isConflict sniffs the PostgREST duplicate-key error code (23505).
func isConflict(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "23505") || strings.Contains(s, "returned 409")
}
