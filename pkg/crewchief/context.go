// Package crewchief turns the analysis of a car into prompts for a language
// model and serves the resulting coaching advice.
package crewchief

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mpapenbr/crewchief/pkg/model"
	"github.com/mpapenbr/crewchief/pkg/processing/chase"
	"github.com/mpapenbr/crewchief/pkg/processing/driver"
	"github.com/mpapenbr/crewchief/pkg/processing/rules"
)

const (
	ScenarioLeader    = "leader"
	ScenarioChasing   = "chasing"
	ScenarioDefending = "defending"
	ScenarioMidpack   = "midpack"

	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"

	InsightSystemPrompt = "You are an expert AI Crew Chief for Toyota GR Cup racing. " +
		"Provide concise, tactical coaching advice in 2-3 sentences max. " +
		"Focus on actionable insights."
	QASystemPrompt = "You are an expert AI Crew Chief for Toyota GR Cup racing. " +
		"Your role is to provide concise, tactical advice to the driver in 2-3 sentences max. " +
		"Focus on actionable insights. Be direct, professional, and supportive. " +
		"Use racing terminology naturally."
)

// BuildContextSummary condenses the analysis into "Key: value" fragments
// joined by ". ".
func BuildContextSummary(ca *model.CarAnalysis, totalLaps int) string {
	parts := []string{
		fmt.Sprintf("Position: P%d, Lap %d/%d", ca.Car.Position, ca.Car.CurrentLap, totalLaps),
		fmt.Sprintf("Pace: %s (z-score: %.2f)", ca.Pace.Trend, ca.Pace.ZScore),
	}
	if ca.Pace.HeroLapFlag {
		parts = append(parts, "HERO LAP")
	}
	if ca.Pace.FallingBackFlag {
		parts = append(parts, "FALLING BACK")
	}
	parts = append(parts,
		fmt.Sprintf("Tires: %s%% wear, %s mode",
			pct(ca.EngineTire.TireWear), ca.EngineTire.RecommendedMode),
		fmt.Sprintf("Engine: %s%% health", pct(ca.EngineTire.EngineHealth)),
		fmt.Sprintf("Driver: %s%% fatigue, %s stress",
			pct(ca.DriverState.FatigueScore), ca.DriverState.StressLevel),
	)
	if ca.Weather != nil {
		parts = append(parts, fmt.Sprintf("Track: %.2f grip, %s risk",
			ca.Weather.TrackGripScore, ca.Weather.RiskLevel))
	}
	if lc := ca.LeadChase; lc != nil {
		parts = append(parts, fmt.Sprintf("Gap: %.2fs, need %.2fs/lap",
			lc.CurrentGapSec, lc.RequiredDeltaPerLap))
	}
	return strings.Join(parts, ". ")
}

func DetermineScenario(position int, lc *model.LeadChaseAnalysis) string {
	switch {
	case position == 1:
		return ScenarioLeader
	case lc != nil && lc.Feasibility == chase.FeasibilityHigh:
		return ScenarioChasing
	case position <= 5:
		return ScenarioDefending
	default:
		return ScenarioMidpack
	}
}

// BuildPrompt renders the user prompt for scenario. Unknown scenarios use
// the midpack template.
func BuildPrompt(scenario string, position int, summary string) string {
	switch scenario {
	case ScenarioLeader:
		return fmt.Sprintf(
			"You are leading the race (P1). %s. Give brief tactical advice to maintain the lead.",
			summary)
	case ScenarioChasing:
		return fmt.Sprintf(
			"You are P%d chasing the leader. %s. Give brief tactical advice to close the gap.",
			position, summary)
	case ScenarioDefending:
		return fmt.Sprintf(
			"You are P%d defending your position. %s. Give brief tactical advice.",
			position, summary)
	default:
		return fmt.Sprintf(
			"You are P%d in midpack. %s. Give brief tactical advice to improve position.",
			position, summary)
	}
}

var priority = rules.NewLadder(PriorityLow,
	rules.Rule[*model.CarAnalysis, string]{
		When: func(ca *model.CarAnalysis) bool {
			return ca.Pace.FallingBackFlag ||
				ca.DriverState.AlertLevel == driver.LevelHigh ||
				ca.EngineTire.TireWear > 80
		},
		Then: PriorityHigh,
	},
	rules.Rule[*model.CarAnalysis, string]{
		When: func(ca *model.CarAnalysis) bool {
			return ca.Pace.HeroLapFlag || ca.DriverState.AlertLevel == driver.LevelMedium
		},
		Then: PriorityMedium,
	},
)

func DeterminePriority(ca *model.CarAnalysis) string {
	return priority.Eval(ca)
}

// QAContext renders the race context appended to the Q&A system prompt.
func QAContext(ca *model.CarAnalysis, totalLaps int) string {
	var b strings.Builder
	b.WriteString("\n\nCurrent Race Context:")
	fmt.Fprintf(&b, "\n- Position: P%d", ca.Car.Position)
	fmt.Fprintf(&b, "\n- Lap: %d/%d", ca.Car.CurrentLap, totalLaps)
	fmt.Fprintf(&b, "\n- Speed: %s km/h", decimal.NewFromFloat(ca.Car.Speed).String())
	fmt.Fprintf(&b, "\n- Pace Trend: %s", ca.Pace.Trend)
	fmt.Fprintf(&b, "\n- Tire Wear: %s%%", pct(ca.EngineTire.TireWear))
	fmt.Fprintf(&b, "\n- Engine Health: %s%%", pct(ca.EngineTire.EngineHealth))
	fmt.Fprintf(&b, "\n- Driver Fatigue: %s%%", pct(ca.DriverState.FatigueScore))
	return b.String()
}

// pct formats a percentage without decimals, halves round up.
func pct(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Sprintf("%.0f", v)
	}
	return decimal.NewFromFloat(v).Round(0).String()
}
