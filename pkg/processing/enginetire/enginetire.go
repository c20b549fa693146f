// Package enginetire estimates tire and engine condition from laps completed
// and track temperature.
package enginetire

import (
	"math"

	"github.com/mpapenbr/crewchief/pkg/model"
	"github.com/mpapenbr/crewchief/pkg/processing/rng"
	"github.com/mpapenbr/crewchief/pkg/processing/rules"
	"github.com/mpapenbr/crewchief/pkg/processing/weather"
)

const (
	ModeConserve = "conserve"
	ModeBalanced = "balanced"
	ModePush     = "push"

	EngineWearPerLap = 0.5 // percent
	BrakeWearPerLap  = 2.8 // percent
	FuelPerLap       = 3.5 // percent
	FinalLapsFrom    = 22
)

type Agent struct {
	src rng.Source
}

type Option func(a *Agent)

func WithSource(src rng.Source) Option {
	return func(a *Agent) {
		a.src = src
	}
}

func NewAgent(opts ...Option) *Agent {
	ret := &Agent{}
	for _, opt := range opts {
		opt(ret)
	}
	if ret.src == nil {
		ret.src = rng.NewPartitionedRNG(0).ForSubsystem(rng.SubsystemComponents)
	}
	return ret
}

type state struct {
	tireWear      float64
	engineHealth  float64
	lapsCompleted int
}

var drivingMode = rules.NewLadder(ModePush,
	rules.Rule[state, string]{
		When: func(s state) bool { return s.tireWear > 85 || s.engineHealth < 20 },
		Then: ModeConserve,
	},
	rules.Rule[state, string]{
		When: func(s state) bool { return s.tireWear > 70 || s.lapsCompleted > 20 },
		Then: ModeBalanced,
	},
)

var tireWarning = rules.NewLadder("",
	rules.Rule[state, string]{
		When: func(s state) bool { return s.tireWear > 80 },
		Then: "Critical tire wear - consider pit stop",
	},
	rules.Rule[state, string]{
		When: func(s state) bool { return s.tireWear > 65 },
		Then: "High tire wear - reduce aggression",
	},
)

var componentWarnings = []rules.Rule[state, []string]{
	{
		When: func(s state) bool { return s.engineHealth < 30 },
		Then: []string{"Monitor engine temperatures closely"},
	},
	{
		When: func(s state) bool { return s.lapsCompleted > FinalLapsFrom },
		Then: []string{"Final laps - manage component stress"},
	},
}

// EstimateHealth derives the component state of the car for the given
// weather. Only the detail temperatures carry random jitter.
//
//nolint:whitespace // editor/linter issue
func (a *Agent) EstimateHealth(
	s *model.CarSnapshot, w *model.WeatherSnapshot,
) model.EngineTireAnalysis {
	laps := max(0, s.LapsCompleted)
	st := state{
		tireWear:      TireWear(laps, w.TrackTempC),
		engineHealth:  EngineHealth(laps),
		lapsCompleted: laps,
	}
	warnings := make([]string, 0, 3)
	if msg := tireWarning.Eval(st); msg != "" {
		warnings = append(warnings, msg)
	}
	warnings = append(warnings, rules.Collect(st, componentWarnings...)...)

	return model.EngineTireAnalysis{
		CarNumber:           s.CarNumber,
		TireWear:            st.tireWear,
		EngineHealth:        st.engineHealth,
		RecommendedMode:     drivingMode.Eval(st),
		RemainingTireLaps:   int(math.Floor((100 - st.tireWear) / weather.BaseTireDegradation)),
		RemainingEngineLaps: int(math.Floor(st.engineHealth / EngineWearPerLap)),
		Warnings:            warnings,
		Details: model.ComponentDetails{
			TireTemperature:   w.TrackTempC + 45 + rng.Between(a.src, 0, 10),
			EngineTemperature: 85 + w.TrackTempC*0.5 + rng.Between(a.src, 0, 5),
			BrakeWear:         clampPct(float64(laps) * BrakeWearPerLap),
			FuelRemaining:     clampPct(100 - float64(laps)*FuelPerLap),
		},
	}
}

// TireWear in percent, clamped to [0,100].
func TireWear(lapsCompleted int, trackTempC float64) float64 {
	return clampPct(float64(lapsCompleted) * weather.TireDegradation(trackTempC))
}

// EngineHealth in percent, clamped to [0,100].
func EngineHealth(lapsCompleted int) float64 {
	return clampPct(100 - float64(lapsCompleted)*EngineWearPerLap)
}

// clampPct maps NaN to 0.
func clampPct(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(100, v))
}
