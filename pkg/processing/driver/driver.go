// Package driver simulates biometric sensor values and derives fatigue,
// stress and cognitive load of the driver.
package driver

import (
	"fmt"
	"math"
	"strings"

	"github.com/mpapenbr/crewchief/pkg/model"
	"github.com/mpapenbr/crewchief/pkg/processing/rng"
	"github.com/mpapenbr/crewchief/pkg/processing/rules"
)

const (
	LevelLow    = "low"
	LevelMedium = "medium"
	LevelHigh   = "high"

	DefaultRaceLaps = 26
)

// Baseline holds the resting values during racing.
var Baseline = model.Biometrics{
	HeartRate:       140,
	HRV:             45,
	RespirationRate: 24,
	SkinTemp:        34.5,
	GSR:             8.5,
}

type Agent struct {
	src      rng.Source
	raceLaps int
}

type Option func(a *Agent)

func WithSource(src rng.Source) Option {
	return func(a *Agent) {
		a.src = src
	}
}

// WithRaceLaps sets the race distance used to scale lap stress.
// Values <= 0 are ignored.
func WithRaceLaps(laps int) Option {
	return func(a *Agent) {
		if laps > 0 {
			a.raceLaps = laps
		}
	}
}

func NewAgent(opts ...Option) *Agent {
	ret := &Agent{raceLaps: DefaultRaceLaps}
	for _, opt := range opts {
		opt(ret)
	}
	if ret.src == nil {
		ret.src = rng.NewPartitionedRNG(0).ForSubsystem(rng.SubsystemBiometrics)
	}
	return ret
}

type assessment struct {
	fatigue float64
	stress  string
	cogLoad string
}

var fatigueAdvice = rules.NewLadder([]string{},
	rules.Rule[assessment, []string]{
		When: func(a assessment) bool { return a.fatigue > 70 },
		Then: []string{
			"Focus on smooth breathing on straights",
			"Reduce steering corrections - drive more fluidly",
		},
	},
	rules.Rule[assessment, []string]{
		When: func(a assessment) bool { return a.fatigue > 50 },
		Then: []string{"Maintain hydration and breathing rhythm"},
	},
)

var stateAdvice = []rules.Rule[assessment, []string]{
	{
		When: func(a assessment) bool { return a.stress == LevelHigh },
		Then: []string{"Stay calm - control breathing between corners"},
	},
	{
		When: func(a assessment) bool { return a.cogLoad == LevelHigh },
		Then: []string{"Simplify driving - focus on one corner at a time"},
	},
}

var alertLevel = rules.NewLadder(LevelLow,
	rules.Rule[assessment, string]{
		When: func(a assessment) bool { return a.fatigue > 80 || a.stress == LevelHigh },
		Then: LevelHigh,
	},
	rules.Rule[assessment, string]{
		When: func(a assessment) bool { return a.fatigue > 60 || a.stress == LevelMedium },
		Then: LevelMedium,
	},
)

// AnalyzeDriverState rates the driver of s. pace is the analysis of the
// same car for the same lap and may be nil.
//
//nolint:whitespace // editor/linter issue
func (a *Agent) AnalyzeDriverState(
	s *model.CarSnapshot, pace *model.PaceAnalysis,
) model.DriverStateAnalysis {
	bio := a.SimulateSensors(s)
	as := assessment{
		fatigue: a.FatigueScore(bio, s.LapsCompleted, s.Position),
		stress:  StressLevel(bio, s.Position),
		cogLoad: CognitiveLoad(bio),
	}
	recommendations := make([]string, 0, 4)
	recommendations = append(recommendations, fatigueAdvice.Eval(as)...)
	recommendations = append(recommendations, rules.Collect(as, stateAdvice...)...)

	ret := model.DriverStateAnalysis{
		DriverID:        DriverID(s.CarNumber, s.Driver),
		CarNumber:       s.CarNumber,
		Driver:          s.Driver,
		FatigueScore:    as.fatigue,
		StressLevel:     as.stress,
		CognitiveLoad:   as.cogLoad,
		Biometrics:      bio,
		Recommendations: recommendations,
		AlertLevel:      alertLevel.Eval(as),
	}
	if pace != nil {
		ret.PaceTrend = pace.Trend
	}
	return ret
}

// SimulateSensors perturbs the baseline by lap progress and podium position.
// Only the heart rate carries random noise (+/- 2.5 bpm).
func (a *Agent) SimulateSensors(s *model.CarSnapshot) model.Biometrics {
	lapStress := a.lapStress(s.LapsCompleted)
	posStress := 0.0
	if s.Position <= 3 {
		posStress = 0.2
	}
	return model.Biometrics{
		HeartRate: Baseline.HeartRate + lapStress*15 + posStress*10 +
			rng.Between(a.src, -2.5, 2.5),
		HRV:             Baseline.HRV - lapStress*8 - posStress*5,
		RespirationRate: Baseline.RespirationRate + lapStress*4,
		SkinTemp:        Baseline.SkinTemp + lapStress*2,
		GSR:             Baseline.GSR + lapStress*2 + posStress*1.5,
	}
}

// FatigueScore is capped at 100.
func (a *Agent) FatigueScore(bio model.Biometrics, lapsCompleted, position int) float64 {
	lapFactor := a.lapStress(lapsCompleted) * 60
	hrvFactor := (1 - bio.HRV/Baseline.HRV) * 25
	positionStress := 0.0
	if position <= 5 {
		positionStress = 10
	}
	return math.Min(100, lapFactor+hrvFactor+positionStress)
}

func (a *Agent) lapStress(lapsCompleted int) float64 {
	return float64(max(0, lapsCompleted)) / float64(a.raceLaps)
}

func StressLevel(bio model.Biometrics, position int) string {
	hrStress := (bio.HeartRate - Baseline.HeartRate) / 20
	gsrStress := (bio.GSR - Baseline.GSR) / 3
	posFactor := 0.0
	if position <= 3 {
		posFactor = 0.3
	}
	return bucket(hrStress+gsrStress+posFactor, 0.8, 1.5)
}

func CognitiveLoad(bio model.Biometrics) string {
	hrvLoad := 1 - bio.HRV/Baseline.HRV
	respLoad := (bio.RespirationRate - Baseline.RespirationRate) / 10
	return bucket((hrvLoad+respLoad)/2, 0.4, 0.7)
}

func bucket(v, medium, high float64) string {
	switch {
	case v > high:
		return LevelHigh
	case v > medium:
		return LevelMedium
	default:
		return LevelLow
	}
}

// DriverID is "<carNumber>-<first name token in lower case>".
func DriverID(carNumber, driver string) string {
	first, _, _ := strings.Cut(driver, " ")
	return fmt.Sprintf("%s-%s", carNumber, strings.ToLower(first))
}
