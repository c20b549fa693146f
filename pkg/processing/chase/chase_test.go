//nolint:funlen,lll // ok for tests
package chase

import (
	"testing"

	"github.com/aarondl/opt/null"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/mpapenbr/crewchief/pkg/model"
)

func sampleCar(pos int, gap null.Val[float64]) *model.CarSnapshot {
	return &model.CarSnapshot{
		CarNumber:      "7",
		Position:       pos,
		GapToFirstSec:  gap,
		BestLapTimeSec: 98.0,
		LastLapTimeSec: 98.2,
	}
}

var leader = &model.CarSnapshot{CarNumber: "55", Position: 1, GapToFirstSec: null.From(0.0)}

func TestAgent_CalculateCatchUp_NotApplicable(t *testing.T) {
	a := NewAgent()
	tests := []struct {
		name          string
		car           *model.CarSnapshot
		lapsRemaining int
	}{
		{"leader", sampleCar(1, null.From(0.0)), 10},
		{"leader with gap", sampleCar(1, null.From(2.0)), 10},
		{"no gap", sampleCar(2, null.Val[float64]{}), 10},
		{"zero gap", sampleCar(2, null.From(0.0)), 10},
		{"out of reach", sampleCar(2, null.From(10.01)), 10},
		{"no laps remaining", sampleCar(2, null.From(2.0)), 0},
		{"negative laps remaining", sampleCar(2, null.From(2.0)), -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Nil(t, a.CalculateCatchUp(tt.car, leader, tt.lapsRemaining))
		})
	}
}

func TestAgent_CalculateCatchUp(t *testing.T) {
	promising := []model.OvertakingZone{
		{Corner: "T1", Difficulty: "medium", SuccessRate: 0.65},
		{Corner: "T7", Difficulty: "medium", SuccessRate: 0.60},
		{Corner: "T12", Difficulty: "easy", SuccessRate: 0.75},
	}
	tests := []struct {
		name    string
		gap     float64
		lastLap float64
		laps    int
		want    *model.LeadChaseAnalysis
	}{
		{
			name: "very high", gap: 1.0, lastLap: 98.2, laps: 20,
			want: &model.LeadChaseAnalysis{
				RequiredDeltaPerLap: 0.05, Feasibility: FeasibilityVeryHigh,
				TacticalPlan: "Close gap by 0.05s per lap. Attack in T1. You have the pace advantage.",
			},
		},
		{
			name: "high", gap: 3.0, lastLap: 98.2, laps: 20,
			want: &model.LeadChaseAnalysis{
				RequiredDeltaPerLap: 0.15, Feasibility: FeasibilityHigh,
				TacticalPlan: "Close gap by 0.15s per lap. Attack in T1. You have the pace advantage.",
			},
		},
		{
			name: "medium due to own variance", gap: 3.0, lastLap: 99.0, laps: 20,
			want: &model.LeadChaseAnalysis{
				RequiredDeltaPerLap: 0.15, Feasibility: FeasibilityMedium,
				TacticalPlan: "Push hard to close 0.15s per lap. Focus on exits of T1 and T7.",
			},
		},
		{
			name: "low", gap: 8.0, lastLap: 98.2, laps: 20,
			want: &model.LeadChaseAnalysis{
				RequiredDeltaPerLap: 0.4, Feasibility: FeasibilityLow,
				TacticalPlan: "Gap closing requires 0.40s per lap - challenging but possible. Maintain pressure and wait for leader mistake.",
			},
		},
		{
			name: "very low at 10s", gap: 10.0, lastLap: 98.2, laps: 10,
			want: &model.LeadChaseAnalysis{
				RequiredDeltaPerLap: 1.0, Feasibility: FeasibilityVeryLow,
				TacticalPlan: "Gap closing requires 1.00s per lap - challenging but possible. Maintain pressure and wait for leader mistake.",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			car := sampleCar(3, null.From(tt.gap))
			car.LastLapTimeSec = tt.lastLap
			tt.want.CarNumber = "7"
			tt.want.TargetCarNumber = "55"
			tt.want.Position = 3
			tt.want.CurrentGapSec = tt.gap
			tt.want.LapsRemaining = tt.laps
			tt.want.OvertakingOpportunities = promising
			tt.want.RecommendedFocusCorners = []string{"T1", "T7", "T12"}

			got := NewAgent().CalculateCatchUp(car, leader, tt.laps)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("CalculateCatchUp() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestAgent_NoPromisingZones(t *testing.T) {
	a := NewAgent(WithZones([]model.OvertakingZone{{Corner: "T3", Difficulty: "hard", SuccessRate: 0.3}}))
	got := a.CalculateCatchUp(sampleCar(2, null.From(0.5)), leader, 10)
	assert.NotNil(t, got)
	assert.Empty(t, got.OvertakingOpportunities)
	assert.Empty(t, got.RecommendedFocusCorners)
	assert.Equal(t, "Close gap by 0.05s per lap. Attack in T12. You have the pace advantage.", got.TacticalPlan)
}

func TestTacticalPlan_SingleCorner(t *testing.T) {
	assert.Equal(t,
		"Push hard to close 0.25s per lap. Focus on exits of T12.",
		TacticalPlan(0.25, FeasibilityMedium, []string{"T12"}))
}
