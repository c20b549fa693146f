// Package synth derives a simulated in-progress telemetry record from static
// finishing results.
package synth

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mpapenbr/crewchief/pkg/model"
	"github.com/mpapenbr/crewchief/pkg/processing/rng"
	"github.com/mpapenbr/crewchief/pkg/raceresults"
)

const (
	AvgLapDegradation = 1.02 // average lap relative to the fastest lap
	ZScoreSpreadPct   = 0.02 // expected lap time deviation relative to the mean
	HeroLapZScore     = -1.5
	FallingBackZScore = 1.5
)

var (
	ErrInvalidLapWindow = errors.New("total laps must be positive")
	ErrInvalidLapTime   = errors.New("fastest lap time missing or invalid")
)

type Synthesizer struct {
	src rng.Source
}

type Option func(s *Synthesizer)

func WithSource(src rng.Source) Option {
	return func(s *Synthesizer) {
		s.src = src
	}
}

func NewSynthesizer(opts ...Option) *Synthesizer {
	ret := &Synthesizer{}
	for _, opt := range opts {
		opt(ret)
	}
	if ret.src == nil {
		ret.src = rng.NewPartitionedRNG(0).ForSubsystem(rng.SubsystemSynth)
	}
	return ret
}

// Snapshot produces the state of the car described by result at currentLap.
// currentLap is clamped to [0,totalLaps].
//
//nolint:whitespace // editor/linter issue
func (s *Synthesizer) Snapshot(
	result *model.RaceResult, currentLap, totalLaps int,
) (model.CarSnapshot, error) {
	if totalLaps <= 0 {
		return model.CarSnapshot{}, ErrInvalidLapWindow
	}
	currentLap = max(0, min(currentLap, totalLaps))

	fastest, err := raceresults.ParseLapTime(result.FastestLapTime)
	if err != nil || fastest <= 0 {
		return model.CarSnapshot{}, fmt.Errorf("car %s: %w", result.CarNumber, ErrInvalidLapTime)
	}

	speed := result.FastestLapKph * rng.Between(s.src, 0.95, 1.05)
	lastLap := fastest * rng.Between(s.src, 0.985, 1.015)
	avgLap := fastest * AvgLapDegradation
	regMean := avgLap * rng.Between(s.src, 0.99, 1.01)
	zScore := (lastLap - regMean) / (regMean * ZScoreSpreadPct)

	lapsCompleted := currentLap
	if result.Laps > 0 {
		lapsCompleted = min(currentLap, result.Laps)
	}
	progress := decimal.NewFromInt(int64(currentLap)).
		Div(decimal.NewFromInt(int64(totalLaps))).
		Mul(decimal.NewFromInt(100)).
		Round(0).IntPart()

	return model.CarSnapshot{
		CarNumber:         result.CarNumber,
		Driver:            result.DriverName(),
		Team:              result.Team,
		Class:             result.Class,
		Vehicle:           result.Vehicle,
		Position:          result.Position,
		LapsCompleted:     lapsCompleted,
		CurrentLap:        currentLap,
		TotalTime:         result.TotalTime,
		Progress:          int(progress),
		GapToFirstSec:     raceresults.ParseGap(result.GapFirst),
		GapToPrevSec:      raceresults.ParseGap(result.GapPrevious),
		GapToLeader:       result.GapFirst,
		BestLapTimeSec:    fastest,
		LastLapTimeSec:    lastLap,
		AvgLapTimeSec:     avgLap,
		LastLapTime:       raceresults.FormatLapTime(lastLap),
		SpeedKphBest:      result.FastestLapKph,
		Speed:             decimal.NewFromFloat(speed).Round(1).InexactFloat64(),
		RegressionMeanSec: regMean,
		RegressionZScore:  zScore,
		HeroLapFlag:       zScore < HeroLapZScore,
		FallingBackFlag:   zScore > FallingBackZScore,
	}, nil
}
