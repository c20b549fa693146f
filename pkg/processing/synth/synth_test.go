//nolint:funlen // ok for tests
package synth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/crewchief/pkg/model"
	"github.com/mpapenbr/crewchief/pkg/processing/rng"
)

func sampleResult() *model.RaceResult {
	return &model.RaceResult{
		Position:        2,
		CarNumber:       "7",
		Laps:            26,
		GapFirst:        "+1.656",
		GapPrevious:     "+1.656",
		FastestLapTime:  "1:38.402",
		FastestLapKph:   144.8,
		Team:            "Precision Racing",
		DriverFirstName: "Gresham",
		DriverLastName:  "Wagner",
	}
}

func TestSynthesizer_Snapshot_Midpoint(t *testing.T) {
	s := NewSynthesizer(WithSource(rng.NewSequence(0.5)))
	got, err := s.Snapshot(sampleResult(), 13, 26)
	require.NoError(t, err)

	fastest := 98.402
	assert.Equal(t, "7", got.CarNumber)
	assert.Equal(t, "Gresham Wagner", got.Driver)
	assert.Equal(t, 13, got.LapsCompleted)
	assert.Equal(t, 50, got.Progress)
	assert.InDelta(t, 144.8, got.Speed, 1e-9)
	assert.InDelta(t, fastest, got.LastLapTimeSec, 1e-9)
	assert.InDelta(t, fastest*1.02, got.AvgLapTimeSec, 1e-9)
	assert.InDelta(t, fastest*1.02, got.RegressionMeanSec, 1e-9)
	assert.InDelta(t, (1-1.02)/(1.02*0.02), got.RegressionZScore, 1e-9)
	assert.False(t, got.HeroLapFlag)
	assert.False(t, got.FallingBackFlag)
	gap, ok := got.GapToFirstSec.Get()
	assert.True(t, ok)
	assert.InDelta(t, 1.656, gap, 1e-9)
	assert.Equal(t, "1:38.402", got.LastLapTime)
}

func TestSynthesizer_Snapshot_HeroLap(t *testing.T) {
	// speed factor, last lap factor (fastest possible), regression mean (slowest)
	s := NewSynthesizer(WithSource(rng.NewSequence(0.5, 0.0, 1.0)))
	got, err := s.Snapshot(sampleResult(), 5, 26)
	require.NoError(t, err)
	assert.Less(t, got.RegressionZScore, -1.5)
	assert.True(t, got.HeroLapFlag)
	assert.Equal(t, 19, got.Progress)
}

func TestSynthesizer_Snapshot_Ranges(t *testing.T) {
	s := NewSynthesizer(WithSource(rng.NewPartitionedRNG(7).ForSubsystem(rng.SubsystemSynth)))
	res := sampleResult()
	for lap := 0; lap <= 26; lap++ {
		got, err := s.Snapshot(res, lap, 26)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, got.Speed, 144.8*0.95-0.05)
		assert.LessOrEqual(t, got.Speed, 144.8*1.05+0.05)
		assert.GreaterOrEqual(t, got.LastLapTimeSec, 98.402*0.985)
		assert.LessOrEqual(t, got.LastLapTimeSec, 98.402*1.015)
		assert.GreaterOrEqual(t, got.RegressionMeanSec, 98.402*1.02*0.99)
		assert.LessOrEqual(t, got.RegressionMeanSec, 98.402*1.02*1.01)
		assert.Equal(t, lap, got.LapsCompleted)
	}
}

func TestSynthesizer_Snapshot_Edges(t *testing.T) {
	s := NewSynthesizer(WithSource(rng.NewSequence(0.5)))

	_, err := s.Snapshot(sampleResult(), 1, 0)
	assert.ErrorIs(t, err, ErrInvalidLapWindow)

	bad := sampleResult()
	bad.FastestLapTime = ""
	_, err = s.Snapshot(bad, 1, 26)
	assert.ErrorIs(t, err, ErrInvalidLapTime)

	// clamped lap, retired car stops counting
	retired := sampleResult()
	retired.Laps = 20
	got, err := s.Snapshot(retired, 40, 26)
	require.NoError(t, err)
	assert.Equal(t, 26, got.CurrentLap)
	assert.Equal(t, 20, got.LapsCompleted)
	assert.Equal(t, 100, got.Progress)

	leader := sampleResult()
	leader.GapFirst = "-"
	got, err = s.Snapshot(leader, 3, 26)
	require.NoError(t, err)
	gap, ok := got.GapToFirstSec.Get()
	assert.True(t, ok)
	assert.Zero(t, gap)

	lapped := sampleResult()
	lapped.GapFirst = "+1 Lap"
	got, err = s.Snapshot(lapped, 3, 26)
	require.NoError(t, err)
	assert.True(t, got.GapToFirstSec.IsNull())
}
