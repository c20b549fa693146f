// Package chase estimates whether a car can close the gap to the leader
// within the remaining laps.
package chase

import (
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/mpapenbr/crewchief/pkg/model"
	"github.com/mpapenbr/crewchief/pkg/processing/rules"
)

const (
	FeasibilityVeryHigh = "very-high"
	FeasibilityHigh     = "high"
	FeasibilityMedium   = "medium"
	FeasibilityLow      = "low"
	FeasibilityVeryLow  = "very-low"

	// gaps above this are out of striking distance
	MaxGapSec = 10.0
	// zones with a success rate at or below are not considered
	MinSuccessRate = 0.55
	focusCorners   = 3
	fallbackCorner = "T12"
)

// DefaultZones is the static table of overtaking zones of the track.
var DefaultZones = []model.OvertakingZone{
	{Corner: "T1", Difficulty: "medium", SuccessRate: 0.65},
	{Corner: "T4", Difficulty: "hard", SuccessRate: 0.45},
	{Corner: "T7", Difficulty: "medium", SuccessRate: 0.60},
	{Corner: "T12", Difficulty: "easy", SuccessRate: 0.75},
	{Corner: "T14", Difficulty: "medium", SuccessRate: 0.55},
}

type Agent struct {
	zones []model.OvertakingZone
}

type Option func(a *Agent)

func WithZones(zones []model.OvertakingZone) Option {
	return func(a *Agent) {
		a.zones = zones
	}
}

func NewAgent(opts ...Option) *Agent {
	ret := &Agent{zones: DefaultZones}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

type feasibilityInput struct {
	requiredDelta float64
	lapTimeDiff   float64
}

var feasibility = rules.NewLadder(FeasibilityVeryLow,
	rules.Rule[feasibilityInput, string]{
		When: func(in feasibilityInput) bool { return in.requiredDelta < 0.1 },
		Then: FeasibilityVeryHigh,
	},
	rules.Rule[feasibilityInput, string]{
		When: func(in feasibilityInput) bool { return in.requiredDelta < 0.2 && in.lapTimeDiff < 0.5 },
		Then: FeasibilityHigh,
	},
	rules.Rule[feasibilityInput, string]{
		When: func(in feasibilityInput) bool { return in.requiredDelta < 0.3 },
		Then: FeasibilityMedium,
	},
	rules.Rule[feasibilityInput, string]{
		When: func(in feasibilityInput) bool { return in.requiredDelta < 0.5 },
		Then: FeasibilityLow,
	},
)

// CalculateCatchUp returns nil if the analysis is not applicable: the car
// leads, has no (or a zero) gap, is more than 10s behind or no laps remain.
//
//nolint:whitespace // editor/linter issue
func (a *Agent) CalculateCatchUp(
	car, leader *model.CarSnapshot, lapsRemaining int,
) *model.LeadChaseAnalysis {
	if car.IsLeader() || lapsRemaining <= 0 {
		return nil
	}
	gap, ok := car.GapToFirstSec.Get()
	if !ok || gap == 0 || gap > MaxGapSec {
		return nil
	}
	required := gap / float64(lapsRemaining)
	feas := feasibility.Eval(feasibilityInput{
		requiredDelta: required,
		lapTimeDiff:   car.LastLapTimeSec - car.BestLapTimeSec,
	})
	zones := a.OvertakingZones()
	corners := lo.Map(zones, func(z model.OvertakingZone, _ int) string {
		return z.Corner
	})

	return &model.LeadChaseAnalysis{
		CarNumber:               car.CarNumber,
		TargetCarNumber:         leader.CarNumber,
		Position:                car.Position,
		CurrentGapSec:           gap,
		TargetGapSec:            0,
		LapsRemaining:           lapsRemaining,
		RequiredDeltaPerLap:     required,
		Feasibility:             feas,
		OvertakingOpportunities: zones,
		TacticalPlan:            TacticalPlan(required, feas, corners),
		RecommendedFocusCorners: lo.Subset(corners, 0, focusCorners),
	}
}

// OvertakingZones returns the zones with a promising success rate.
func (a *Agent) OvertakingZones() []model.OvertakingZone {
	return lo.Filter(a.zones, func(z model.OvertakingZone, _ int) bool {
		return z.SuccessRate > MinSuccessRate
	})
}

func TacticalPlan(required float64, feas string, corners []string) string {
	switch feas {
	case FeasibilityVeryHigh, FeasibilityHigh:
		attack := fallbackCorner
		if len(corners) > 0 {
			attack = corners[0]
		}
		return fmt.Sprintf(
			"Close gap by %.2fs per lap. Attack in %s. You have the pace advantage.",
			required, attack)
	case FeasibilityMedium:
		return fmt.Sprintf("Push hard to close %.2fs per lap. Focus on exits of %s.",
			required, strings.Join(lo.Subset(corners, 0, 2), " and "))
	default:
		return fmt.Sprintf(
			"Gap closing requires %.2fs per lap - challenging but possible. "+
				"Maintain pressure and wait for leader mistake.",
			required)
	}
}
