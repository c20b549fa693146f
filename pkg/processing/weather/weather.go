// Package weather rates track conditions.
package weather

import (
	"math"

	"github.com/mpapenbr/crewchief/pkg/model"
	"github.com/mpapenbr/crewchief/pkg/processing/rules"
)

const (
	RiskHigh   = "high"
	RiskMedium = "medium"
	RiskLow    = "low"

	BaseGrip        = 0.85
	OptimalTrackTmp = 25.0
	MinGrip         = 0.4
	MaxGrip         = 1.0
	// tire degradation in percent per lap at optimal track temperature
	BaseTireDegradation = 3.85
	// relative degradation increase per degree above optimal
	TempDegradationFactor = 0.02

	tempPenalty     = 0.01
	humidityPenalty = 0.001
	windPenalty     = 0.01
)

var conditionFactor = map[model.Condition]float64{
	model.ConditionWet:    0.6,
	model.ConditionMixed:  0.75,
	model.ConditionCloudy: 0.95,
	model.ConditionSunny:  1.0,
}

type assessment struct {
	w    *model.WeatherSnapshot
	grip float64
}

var riskLevel = rules.NewLadder(RiskLow,
	rules.Rule[assessment, string]{
		When: func(a assessment) bool { return a.grip < 0.65 || a.w.Conditions == model.ConditionWet },
		Then: RiskHigh,
	},
	rules.Rule[assessment, string]{
		When: func(a assessment) bool { return a.grip < 0.75 || a.w.TrackTempC > 35 },
		Then: RiskMedium,
	},
)

var notes = rules.NewLadder("Optimal track conditions for consistent pace.",
	rules.Rule[assessment, string]{
		When: func(a assessment) bool { return a.w.TrackTempC > 32 },
		Then: "High track temperature increasing tire wear by ~5% over next 5 laps.",
	},
	rules.Rule[assessment, string]{
		When: func(a assessment) bool { return a.grip < 0.7 },
		Then: "Reduced grip conditions. Consider conservative lines through high-speed corners.",
	},
)

var recommendations = []rules.Rule[assessment, []string]{
	{
		When: func(a assessment) bool { return a.grip < 0.75 },
		Then: []string{"Reduce steering angle by 3% in long corners"},
	},
	{
		When: func(a assessment) bool { return a.w.TrackTempC > 30 },
		Then: []string{
			"Monitor tire pressure closely",
			"Consider conservative pace to preserve tires",
		},
	},
	{
		When: func(a assessment) bool { return a.w.TrackTempC < 20 },
		Then: []string{"Push harder to maintain tire temperatures"},
	},
}

// AnalyzeWeather is a pure function of the given conditions.
func AnalyzeWeather(w *model.WeatherSnapshot) model.WeatherAnalysis {
	a := assessment{w: w, grip: TrackGrip(w)}
	return model.WeatherAnalysis{
		Current:             *w,
		TrackGripScore:      a.grip,
		RiskLevel:           riskLevel.Eval(a),
		Notes:               notes.Eval(a),
		TireDegradationRate: TireDegradation(w.TrackTempC),
		Recommendations:     rules.Collect(a, recommendations...),
	}
}

// TrackGrip returns the grip score in [0.4,1.0].
func TrackGrip(w *model.WeatherSnapshot) float64 {
	grip := BaseGrip
	grip -= math.Abs(w.TrackTempC-OptimalTrackTmp) * tempPenalty
	grip -= w.HumidityPct * humidityPenalty
	grip -= w.WindSpeedKph * windPenalty
	if f, ok := conditionFactor[w.Conditions]; ok {
		grip *= f
	}
	if math.IsNaN(grip) {
		return MinGrip
	}
	return math.Max(MinGrip, math.Min(MaxGrip, grip))
}

// TireDegradation returns the expected tire wear in percent per lap.
func TireDegradation(trackTempC float64) float64 {
	return BaseTireDegradation * TempFactor(trackTempC)
}

// TempFactor scales wear relative to the optimal track temperature.
func TempFactor(trackTempC float64) float64 {
	return 1 + (trackTempC-OptimalTrackTmp)*TempDegradationFactor
}
