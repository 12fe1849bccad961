// Package service holds the application services of the vendor BFF:
// session state, onboarding progression, route guarding, the order board
// and dashboard analytics.
package service

import "github.com/pocketshop/vendor-bff-go/internal/domain"

// ============================================================
// Onboarding status resolver — pure mapping, no I/O
// ============================================================

// ResolveCompletion maps the persisted onboarding status to per-stage
// completion flags. Any value outside the known enum (including the empty
// string a missing row produces) resolves as nothing-completed, which
// fails safe toward "start onboarding", never toward granting access.
func ResolveCompletion(status domain.OnboardingStatus) domain.StageCompletion {
	switch status {
	case domain.StatusBasicInfo:
		return domain.StageCompletion{Stage1: true}
	case domain.StatusOperationalDetails:
		return domain.StageCompletion{Stage1: true, Stage2: true}
	case domain.StatusPlanningSelected:
		return domain.StageCompletion{Stage1: true, Stage2: true, Stage3: true}
	case domain.StatusCompleted:
		return domain.StageCompletion{Stage1: true, Stage2: true, Stage3: true, Completed: true}
	default:
		return domain.StageCompletion{}
	}
}

// FurthestAccessibleStage returns the first incomplete stage, or the
// completion target once all three stages are done. This is the canonical
// redirect target whenever a vendor requests a stage they have not unlocked.
func FurthestAccessibleStage(c domain.StageCompletion) domain.Stage {
	switch {
	case !c.Stage1:
		return domain.Stage1
	case !c.Stage2:
		return domain.Stage2
	case !c.Stage3:
		return domain.Stage3
	default:
		return domain.StageFinish
	}
}

// StageAccessible reports whether the vendor may enter the given stage:
// every prior stage must be complete. Stage 1 is always reachable for an
// authenticated vendor.
func StageAccessible(c domain.StageCompletion, stage domain.Stage) bool {
	switch stage {
	case domain.Stage1:
		return true
	case domain.Stage2:
		return c.Stage1
	case domain.Stage3:
		return c.Stage1 && c.Stage2
	case domain.StageFinish:
		return c.Stage1 && c.Stage2 && c.Stage3
	default:
		return false
	}
}

// stageStatus maps a stage to the status its successful submission persists.
func stageStatus(stage domain.Stage) domain.OnboardingStatus {
	switch stage {
	case domain.Stage1:
		return domain.StatusBasicInfo
	case domain.Stage2:
		return domain.StatusOperationalDetails
	case domain.Stage3:
		return domain.StatusPlanningSelected
	default:
		return domain.StatusCompleted
	}
}
