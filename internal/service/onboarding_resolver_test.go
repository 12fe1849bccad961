package service_test

import (
	"testing"

	"github.com/pocketshop/vendor-bff-go/internal/domain"
	"github.com/pocketshop/vendor-bff-go/internal/service"
)

func TestResolveCompletion_Mapping(t *testing.T) {
	cases := []struct {
		status domain.OnboardingStatus
		want   domain.StageCompletion
	}{
		{domain.StatusIncomplete, domain.StageCompletion{}},
		{domain.StatusBasicInfo, domain.StageCompletion{Stage1: true}},
		{domain.StatusOperationalDetails, domain.StageCompletion{Stage1: true, Stage2: true}},
		{domain.StatusPlanningSelected, domain.StageCompletion{Stage1: true, Stage2: true, Stage3: true}},
		{domain.StatusCompleted, domain.StageCompletion{Stage1: true, Stage2: true, Stage3: true, Completed: true}},
	}

	for _, tc := range cases {
		got := service.ResolveCompletion(tc.status)
		if got != tc.want {
			t.Errorf("ResolveCompletion(%q) = %+v, want %+v", tc.status, got, tc.want)
		}
	}
}

func TestResolveCompletion_UnknownStatusFailsSafe(t *testing.T) {
	for _, status := range []domain.OnboardingStatus{"", "garbage", "COMPLETED"} {
		got := service.ResolveCompletion(status)
		if got != (domain.StageCompletion{}) {
			t.Errorf("ResolveCompletion(%q) = %+v, want nothing completed", status, got)
		}
	}
}

func TestResolveCompletion_Monotone(t *testing.T) {
	// Each status in order completes at least everything the previous one did.
	order := []domain.OnboardingStatus{
		domain.StatusIncomplete,
		domain.StatusBasicInfo,
		domain.StatusOperationalDetails,
		domain.StatusPlanningSelected,
		domain.StatusCompleted,
	}

	prev := service.ResolveCompletion(order[0])
	for _, status := range order[1:] {
		cur := service.ResolveCompletion(status)
		if (prev.Stage1 && !cur.Stage1) || (prev.Stage2 && !cur.Stage2) ||
			(prev.Stage3 && !cur.Stage3) || (prev.Completed && !cur.Completed) {
			t.Errorf("completion regressed at %q: prev %+v, cur %+v", status, prev, cur)
		}
		prev = cur
	}
}

func TestFurthestAccessibleStage(t *testing.T) {
	cases := []struct {
		status domain.OnboardingStatus
		want   domain.Stage
	}{
		{domain.StatusIncomplete, domain.Stage1},
		{domain.StatusBasicInfo, domain.Stage2},
		{domain.StatusOperationalDetails, domain.Stage3},
		{domain.StatusPlanningSelected, domain.StageFinish},
		{domain.StatusCompleted, domain.StageFinish},
	}

	for _, tc := range cases {
		got := service.FurthestAccessibleStage(service.ResolveCompletion(tc.status))
		if got != tc.want {
			t.Errorf("FurthestAccessibleStage(%q) = %v, want %v", tc.status, got, tc.want)
		}
	}
}

func TestStageAccessible_RequiresAllPriorStages(t *testing.T) {
	completion := service.ResolveCompletion(domain.StatusBasicInfo)

	if !service.StageAccessible(completion, domain.Stage1) {
		t.Error("stage 1 must always be accessible")
	}
	if !service.StageAccessible(completion, domain.Stage2) {
		t.Error("stage 2 should be accessible after stage 1")
	}
	if service.StageAccessible(completion, domain.Stage3) {
		t.Error("stage 3 must not be accessible with only stage 1 complete")
	}
	if service.StageAccessible(completion, domain.StageFinish) {
		t.Error("completion must not be accessible with only stage 1 complete")
	}
}

func TestStageRoutes(t *testing.T) {
	cases := map[domain.Stage]string{
		domain.Stage1:      "/onboarding/stage-1",
		domain.Stage2:      "/onboarding/stage-2",
		domain.Stage3:      "/onboarding/stage-3",
		domain.StageFinish: "/onboarding/completion",
	}
	for stage, want := range cases {
		if got := stage.Route(); got != want {
			t.Errorf("Stage(%d).Route() = %q, want %q", stage, got, want)
		}
	}
}
