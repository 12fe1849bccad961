package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pocketshop/vendor-bff-go/internal/domain"
	"github.com/pocketshop/vendor-bff-go/internal/infra/cache"
	"github.com/pocketshop/vendor-bff-go/internal/infra/observability"
	"github.com/pocketshop/vendor-bff-go/internal/service"

	"go.uber.org/zap"
)

// --- Mocks ---

// fakeProfileStore is a behavioural in-memory ProfileStore. UpdateProfile
// really moves the stored status, so the controllers' verification
// round-trips exercise the same path they do against PostgREST.
type fakeProfileStore struct {
	mu       sync.Mutex
	profiles map[string]*domain.VendorProfile
	status   map[string]domain.OnboardingStatus

	statusErr error // forced error on GetOnboardingStatus
	updateErr error // forced error on UpdateProfile

	// dropStatusWrites simulates a write the backend acknowledges but
	// never applies; verification must catch it.
	dropStatusWrites bool

	statusCalls int
	updateCalls int
}

func newFakeProfileStore() *fakeProfileStore {
	return &fakeProfileStore{
		profiles: make(map[string]*domain.VendorProfile),
		status:   make(map[string]domain.OnboardingStatus),
	}
}

func (f *fakeProfileStore) GetProfile(_ context.Context, userID string) (*domain.VendorProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.profiles[userID]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, &domain.ErrNotFound{Resource: "vendor_profile", ID: userID}
}

func (f *fakeProfileStore) CreateProfile(_ context.Context, profile *domain.VendorProfile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.profiles[profile.UserID]; ok {
		return &domain.ErrConflict{Message: "profile already exists"}
	}
	cp := *profile
	f.profiles[profile.UserID] = &cp
	f.status[profile.UserID] = profile.OnboardingStatus
	return nil
}

func (f *fakeProfileStore) UpdateProfile(_ context.Context, userID string, updates map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalls++
	if f.updateErr != nil {
		return f.updateErr
	}
	if v, ok := updates["onboarding_status"].(string); ok && !f.dropStatusWrites {
		f.status[userID] = domain.OnboardingStatus(v)
	}
	return nil
}

func (f *fakeProfileStore) GetOnboardingStatus(_ context.Context, userID string) (domain.OnboardingStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls++
	if f.statusErr != nil {
		return "", f.statusErr
	}
	if s, ok := f.status[userID]; ok {
		return s, nil
	}
	return "", &domain.ErrNotFound{Resource: "vendor_profile", ID: userID}
}

func (f *fakeProfileStore) seed(userID string, status domain.OnboardingStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profiles[userID] = &domain.VendorProfile{UserID: userID, OnboardingStatus: status}
	f.status[userID] = status
}

func newOnboarding(store *fakeProfileStore) (*service.Onboarding, *cache.InMemory[domain.OnboardingStatus]) {
	statusCache := cache.New[domain.OnboardingStatus](5 * time.Minute)
	return service.NewOnboarding(store, statusCache, observability.NewMetrics(), zap.NewNop()), statusCache
}

// --- Tests ---

func TestSubmitStage1_ValidationFailsBeforeAnyWrite(t *testing.T) {
	store := newFakeProfileStore()
	svc, _ := newOnboarding(store)

	_, err := svc.SubmitStage1(context.Background(), "user-1", &domain.Stage1Request{Category: "food"})
	var verr *domain.ErrValidation
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if store.updateCalls != 0 {
		t.Errorf("validation failure must not reach the store, got %d update calls", store.updateCalls)
	}
}

func TestSubmitStage1_CreatesProfileAndAdvances(t *testing.T) {
	store := newFakeProfileStore()
	svc, _ := newOnboarding(store)

	result, err := svc.SubmitStage1(context.Background(), "user-1", &domain.Stage1Request{
		StoreName: "Maria's Kitchen",
		Category:  "food",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if result.Status != domain.StatusBasicInfo {
		t.Errorf("expected status %q, got %q", domain.StatusBasicInfo, result.Status)
	}
	if result.NextRoute != "/onboarding/stage-2" {
		t.Errorf("expected next route /onboarding/stage-2, got %q", result.NextRoute)
	}
	if _, err := store.GetProfile(context.Background(), "user-1"); err != nil {
		t.Errorf("expected profile row to be created: %v", err)
	}
}

func TestSubmitStage2_RejectedWithoutProfile(t *testing.T) {
	store := newFakeProfileStore()
	svc, _ := newOnboarding(store)

	_, err := svc.SubmitStage2(context.Background(), "user-1", &domain.Stage2Request{
		Address:     "Rua A, 1",
		Phone:       "+55 11 99999-0000",
		OpenTime:    "08:00",
		CloseTime:   "18:00",
		WorkingDays: []string{"mon", "tue"},
	})
	var notFound *domain.ErrNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("expected not-found for a vendor with no profile, got %v", err)
	}
}

func TestSubmitStage1_ResubmitNeverRegressesStatus(t *testing.T) {
	store := newFakeProfileStore()
	store.seed("user-1", domain.StatusPlanningSelected)
	svc, _ := newOnboarding(store)

	result, err := svc.SubmitStage1(context.Background(), "user-1", &domain.Stage1Request{
		StoreName: "Renamed Store",
		Category:  "food",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if result.Status != domain.StatusPlanningSelected {
		t.Errorf("re-editing stage 1 regressed status to %q", result.Status)
	}
	if result.NextRoute != "/onboarding/completion" {
		t.Errorf("expected next route /onboarding/completion, got %q", result.NextRoute)
	}
}

func TestSubmitStage3_ProPlanNotSelectable(t *testing.T) {
	store := newFakeProfileStore()
	store.seed("user-1", domain.StatusOperationalDetails)
	svc, _ := newOnboarding(store)

	_, err := svc.SubmitStage3(context.Background(), "user-1", &domain.Stage3Request{Plan: domain.PlanPro})
	var verr *domain.ErrValidation
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error for pro plan, got %v", err)
	}
}

func TestPersistStage_VerificationMismatchFailsSubmission(t *testing.T) {
	store := newFakeProfileStore()
	store.seed("user-1", domain.StatusBasicInfo)
	store.dropStatusWrites = true
	svc, _ := newOnboarding(store)

	_, err := svc.SubmitStage2(context.Background(), "user-1", &domain.Stage2Request{
		Address:     "Rua A, 1",
		Phone:       "+55 11 99999-0000",
		OpenTime:    "08:00",
		CloseTime:   "18:00",
		WorkingDays: []string{"mon"},
	})

	var mismatch *domain.ErrVerificationMismatch
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected verification mismatch, got %v", err)
	}
	if mismatch.Expected != domain.StatusOperationalDetails || mismatch.Got != domain.StatusBasicInfo {
		t.Errorf("unexpected mismatch detail: %+v", mismatch)
	}
}

func TestPersistStage_InvalidatesCachedStatus(t *testing.T) {
	store := newFakeProfileStore()
	store.seed("user-1", domain.StatusBasicInfo)
	svc, statusCache := newOnboarding(store)

	// Simulate the guard having cached the pre-write status.
	statusCache.Set("onboarding_status:user-1", domain.StatusBasicInfo)

	_, err := svc.SubmitStage2(context.Background(), "user-1", &domain.Stage2Request{
		Address:     "Rua A, 1",
		Phone:       "+55 11 99999-0000",
		OpenTime:    "08:00",
		CloseTime:   "18:00",
		WorkingDays: []string{"mon"},
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if _, ok := statusCache.Get("onboarding_status:user-1"); ok {
		t.Error("expected cached status to be invalidated after the stage write")
	}
}

func TestComplete_RequiresTermsAcceptance(t *testing.T) {
	store := newFakeProfileStore()
	store.seed("user-1", domain.StatusPlanningSelected)
	svc, _ := newOnboarding(store)

	_, err := svc.Complete(context.Background(), "user-1", &domain.CompletionRequest{AcceptTerms: false})
	var verr *domain.ErrValidation
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestComplete_FinishesOnboarding(t *testing.T) {
	store := newFakeProfileStore()
	store.seed("user-1", domain.StatusPlanningSelected)
	svc, _ := newOnboarding(store)

	result, err := svc.Complete(context.Background(), "user-1", &domain.CompletionRequest{AcceptTerms: true})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.Status != domain.StatusCompleted {
		t.Errorf("expected status completed, got %q", result.Status)
	}
	if result.NextRoute != "/dashboard" {
		t.Errorf("expected next route /dashboard, got %q", result.NextRoute)
	}
}

func TestGetProfile_MissingRowYieldsEmptyProfile(t *testing.T) {
	store := newFakeProfileStore()
	svc, _ := newOnboarding(store)

	profile, err := svc.GetProfile(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if profile.OnboardingStatus != domain.StatusIncomplete {
		t.Errorf("expected incomplete status, got %q", profile.OnboardingStatus)
	}
}
