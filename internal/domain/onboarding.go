package domain

import "time"

// ============================================================
// Onboarding — status enum, stage completion, vendor profile
// ============================================================

// OnboardingStatus is the persisted onboarding cursor. Values are strictly
// ordered; under normal operation the status only moves forward (a stage can
// be re-edited, but completion never reverts outside an explicit dev reset).
type OnboardingStatus string

const (
	StatusIncomplete         OnboardingStatus = "incomplete"
	StatusBasicInfo          OnboardingStatus = "basic_info"
	StatusOperationalDetails OnboardingStatus = "operational_details"
	StatusPlanningSelected   OnboardingStatus = "planning_selected"
	StatusCompleted          OnboardingStatus = "completed"
)

// rank orders statuses for monotonicity checks. Unknown values rank lowest,
// which makes a corrupt or missing status behave like "incomplete".
func (s OnboardingStatus) rank() int {
	switch s {
	case StatusBasicInfo:
		return 1
	case StatusOperationalDetails:
		return 2
	case StatusPlanningSelected:
		return 3
	case StatusCompleted:
		return 4
	default:
		return 0
	}
}

// AtLeast reports whether s has reached other in the completion order.
func (s OnboardingStatus) AtLeast(other OnboardingStatus) bool {
	return s.rank() >= other.rank()
}

// StageCompletion is the per-stage view derived from OnboardingStatus.
type StageCompletion struct {
	Stage1    bool `json:"stage1"`
	Stage2    bool `json:"stage2"`
	Stage3    bool `json:"stage3"`
	Completed bool `json:"completed"`
}

// Stage identifies an onboarding step, including the final completion page.
type Stage int

const (
	Stage1 Stage = 1
	Stage2 Stage = 2
	Stage3 Stage = 3
	// StageFinish is the completion/terms page (and the dashboard gate target).
	StageFinish Stage = 4
)

// Route returns the navigation target for a stage.
func (s Stage) Route() string {
	switch s {
	case Stage1:
		return "/onboarding/stage-1"
	case Stage2:
		return "/onboarding/stage-2"
	case Stage3:
		return "/onboarding/stage-3"
	default:
		return "/onboarding/completion"
	}
}

// Plan is the storefront subscription plan chosen in stage 3.
type Plan string

const (
	PlanStarter Plan = "starter"
	PlanGrowth  Plan = "growth"
	// PlanPro exists server-side but is not yet open for selection.
	PlanPro Plan = "pro"
)

// VendorProfile is the vendor_profiles row. One profile per authenticated
// vendor, created lazily on the first stage-1 submission.
type VendorProfile struct {
	ID               string           `json:"id"`
	UserID           string           `json:"user_id"`
	OnboardingStatus OnboardingStatus `json:"onboarding_status"`

	// Stage 1 — business basics
	StoreName   string `json:"store_name"`
	Description string `json:"description"`
	Category    string `json:"category"`

	// Stage 2 — operational details
	Address     string   `json:"address"`
	Phone       string   `json:"phone"`
	OpenTime    string   `json:"open_time"`
	CloseTime   string   `json:"close_time"`
	WorkingDays []string `json:"working_days"`

	// Stage 3 — plan
	SelectedPlan Plan `json:"selected_plan"`

	TermsAcceptedAt *time.Time `json:"terms_accepted_at,omitempty"`
	Active          bool       `json:"active"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// ============================================================
// Stage submission payloads
// ============================================================

// Stage1Request carries business basics for POST /v1/onboarding/stage-1.
type Stage1Request struct {
	StoreName   string `json:"storeName"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// Stage2Request carries operational details for POST /v1/onboarding/stage-2.
type Stage2Request struct {
	Address     string   `json:"address"`
	Phone       string   `json:"phone"`
	OpenTime    string   `json:"openTime"`
	CloseTime   string   `json:"closeTime"`
	WorkingDays []string `json:"workingDays"`
}

// Stage3Request carries the plan choice for POST /v1/onboarding/stage-3.
type Stage3Request struct {
	Plan Plan `json:"plan"`
}

// CompletionRequest finishes onboarding. Terms acceptance is required
// before the final write that sets status to completed.
type CompletionRequest struct {
	AcceptTerms bool `json:"acceptTerms"`
}

// SettingsRequest patches storefront settings from the dashboard. Empty
// fields are left untouched.
type SettingsRequest struct {
	StoreName   string   `json:"storeName,omitempty"`
	Description string   `json:"description,omitempty"`
	OpenTime    string   `json:"openTime,omitempty"`
	CloseTime   string   `json:"closeTime,omitempty"`
	WorkingDays []string `json:"workingDays,omitempty"`
}

// StageResult is returned after a successful stage submission.
type StageResult struct {
	Status    OnboardingStatus `json:"status"`
	NextRoute string           `json:"nextRoute"`
}

// SuccessResponse is a generic message envelope.
type SuccessResponse struct {
	Message string `json:"message"`
}
