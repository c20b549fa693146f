// Package pace tracks lap times per car and rates the current lap against
// the car's own regression trend.
package pace

import (
	"math"
	"slices"

	"github.com/samber/lo"

	"github.com/mpapenbr/crewchief/log"
	"github.com/mpapenbr/crewchief/pkg/model"
	"github.com/mpapenbr/crewchief/pkg/processing/rules"
)

const (
	TrendOverPerforming  = "over-performing"
	TrendUnderPerforming = "under-performing"
	TrendOnTrend         = "on-trend"

	trendZScore       = 1.0
	heroLapZScore     = -1.5
	fallingBackZScore = 1.5
	// consistency points lost per second of standard deviation
	consistencyPenalty = 20.0
	targetPaceLaps     = 5
	// returned as target pace when no lap was recorded yet
	noTargetPace = 100.0
)

type Agent struct {
	history *History
	logger  *log.Logger
}

type Option func(a *Agent)

func WithHistory(h *History) Option {
	return func(a *Agent) {
		a.history = h
	}
}

func NewAgent(opts ...Option) *Agent {
	ret := &Agent{
		logger: log.Default().Named("processing.pace"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	if ret.history == nil {
		ret.history = NewHistory()
	}
	return ret
}

func (a *Agent) History() *History {
	return a.history
}

// AnalyzePace records the last lap of the snapshot and evaluates it against
// the car's history.
func (a *Agent) AnalyzePace(s *model.CarSnapshot) model.PaceAnalysis {
	laps := a.history.Append(CarKey(s.CarNumber), s.LastLapTimeSec)
	ret := Evaluate(s, laps)
	a.logger.Debug("pace analyzed",
		log.String("carNum", s.CarNumber),
		log.Int("laps", len(laps)),
		log.String("trend", ret.Trend),
		log.Float64("consistency", ret.Consistency))
	return ret
}

type recommendationInput struct {
	trend       string
	heroLap     bool
	fallingBack bool
	consistency float64
}

var recommendations = rules.NewLadder(
	"Good progress. Keep monitoring competitors.",
	rules.Rule[recommendationInput, string]{
		When: func(in recommendationInput) bool { return in.heroLap },
		Then: "Excellent pace! Try to maintain this rhythm.",
	},
	rules.Rule[recommendationInput, string]{
		When: func(in recommendationInput) bool { return in.fallingBack },
		Then: "Losing pace. Check tire wear and fuel load.",
	},
	rules.Rule[recommendationInput, string]{
		When: func(in recommendationInput) bool { return in.consistency < 70 },
		Then: "Focus on consistency. Smooth inputs will improve lap times.",
	},
	rules.Rule[recommendationInput, string]{
		When: func(in recommendationInput) bool { return in.trend == TrendOnTrend },
		Then: "Steady pace. Look for opportunities to push.",
	},
)

// Evaluate computes the pace analysis for s given the car's lap history.
// It has no side effects.
func Evaluate(s *model.CarSnapshot, historicalLaps []float64) model.PaceAnalysis {
	z := s.RegressionZScore
	in := recommendationInput{
		trend:       Trend(z),
		heroLap:     z < heroLapZScore,
		fallingBack: z > fallingBackZScore,
		consistency: Consistency(historicalLaps),
	}
	return model.PaceAnalysis{
		CarNumber:             s.CarNumber,
		RegressionMean:        s.RegressionMeanSec,
		ZScore:                z,
		HeroLapFlag:           in.heroLap,
		FallingBackFlag:       in.fallingBack,
		SustainableTargetPace: SustainableTarget(historicalLaps),
		Trend:                 in.trend,
		Consistency:           in.consistency,
		Recommendation:        recommendations.Eval(in),
	}
}

func Trend(zScore float64) string {
	switch {
	case zScore < -trendZScore:
		return TrendOverPerforming
	case zScore > trendZScore:
		return TrendUnderPerforming
	default:
		return TrendOnTrend
	}
}

// Consistency is 100 minus 20 points per second of (population) standard
// deviation, floored at 0. Less than two laps yield 100.
func Consistency(laps []float64) float64 {
	if len(laps) < 2 {
		return 100
	}
	mean := lo.Mean(laps)
	variance := lo.SumBy(laps, func(l float64) float64 {
		return (l - mean) * (l - mean)
	}) / float64(len(laps))
	return math.Max(0, 100-math.Sqrt(variance)*consistencyPenalty)
}

// SustainableTarget is the median of the last 5 laps. With an even count the
// upper-middle element of the sorted slice is used (index len/2).
func SustainableTarget(laps []float64) float64 {
	if len(laps) == 0 {
		return noTargetPace
	}
	recent := slices.Clone(laps[max(0, len(laps)-targetPaceLaps):])
	slices.Sort(recent)
	return recent[len(recent)/2]
}
