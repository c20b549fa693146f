//nolint:funlen,lll // ok for tests
package driver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	gta "gotest.tools/v3/assert"

	"github.com/mpapenbr/crewchief/pkg/model"
	"github.com/mpapenbr/crewchief/pkg/processing/rng"
)

func TestAgent_AnalyzeDriverState_Leader(t *testing.T) {
	a := NewAgent(WithSource(rng.NewSequence(0.5)))
	s := &model.CarSnapshot{CarNumber: "55", Driver: "Spike Kohlbecker", Position: 1, LapsCompleted: 26}
	got := a.AnalyzeDriverState(s, &model.PaceAnalysis{Trend: "on-trend"})

	assert.Equal(t, "55-spike", got.DriverID)
	assert.Equal(t, "on-trend", got.PaceTrend)
	assert.InDelta(t, 157.0, got.Biometrics.HeartRate, 1e-9)
	assert.InDelta(t, 36.0, got.Biometrics.HRV, 1e-9)
	assert.InDelta(t, 28.0, got.Biometrics.RespirationRate, 1e-9)
	assert.InDelta(t, 36.5, got.Biometrics.SkinTemp, 1e-9)
	assert.InDelta(t, 10.8, got.Biometrics.GSR, 1e-9)
	// 60 + (1-36/45)*25 + 10
	assert.InDelta(t, 75.0, got.FatigueScore, 1e-9)
	assert.Equal(t, LevelHigh, got.StressLevel)
	assert.Equal(t, LevelLow, got.CognitiveLoad)
	assert.Equal(t, LevelHigh, got.AlertLevel)
	assert.Equal(t, []string{
		"Focus on smooth breathing on straights",
		"Reduce steering corrections - drive more fluidly",
		"Stay calm - control breathing between corners",
	}, got.Recommendations)
}

func TestAgent_AnalyzeDriverState_Midfield(t *testing.T) {
	a := NewAgent(WithSource(rng.NewSequence(0.5)))
	s := &model.CarSnapshot{CarNumber: "13", Driver: "Westin Workman", Position: 10, LapsCompleted: 13}
	got := a.AnalyzeDriverState(s, nil)

	assert.Empty(t, got.PaceTrend)
	assert.InDelta(t, 30+(1-41.0/45)*25, got.FatigueScore, 1e-9)
	assert.Equal(t, LevelLow, got.StressLevel)
	assert.Equal(t, LevelLow, got.CognitiveLoad)
	assert.Equal(t, LevelLow, got.AlertLevel)
	assert.NotNil(t, got.Recommendations)
	assert.Empty(t, got.Recommendations)
}

func TestAgent_AnalyzeDriverState_MediumStress(t *testing.T) {
	a := NewAgent(WithSource(rng.NewSequence(0.5)))
	s := &model.CarSnapshot{CarNumber: "7", Driver: "Gresham Wagner", Position: 4, LapsCompleted: 20}
	got := a.AnalyzeDriverState(s, nil)

	assert.Equal(t, LevelMedium, got.StressLevel)
	assert.Equal(t, LevelMedium, got.AlertLevel)
	assert.Less(t, got.FatigueScore, 60.0)
	assert.Equal(t, []string{"Maintain hydration and breathing rhythm"}, got.Recommendations)
}

func TestFatigueMonotonicAndCapped(t *testing.T) {
	a := NewAgent(WithSource(rng.NewSequence(0.5)))
	for _, pos := range []int{1, 4, 8} {
		prev := -1.0
		for laps := 0; laps <= 80; laps++ {
			bio := a.SimulateSensors(&model.CarSnapshot{Position: pos, LapsCompleted: laps})
			f := a.FatigueScore(bio, laps, pos)
			gta.Assert(t, f >= prev, "pos %d laps %d", pos, laps)
			gta.Assert(t, f <= 100)
			prev = f
		}
		gta.Equal(t, prev, 100.0)
	}
}

func TestWithRaceLaps(t *testing.T) {
	a := NewAgent(WithSource(rng.NewSequence(0.5)), WithRaceLaps(52))
	bio := a.SimulateSensors(&model.CarSnapshot{Position: 10, LapsCompleted: 26})
	gta.Equal(t, bio.RespirationRate, 26.0)

	// ignored
	a = NewAgent(WithRaceLaps(0))
	gta.Equal(t, a.raceLaps, DefaultRaceLaps)
}

func TestHeartRateNoise(t *testing.T) {
	s := &model.CarSnapshot{Position: 10}
	lo := NewAgent(WithSource(rng.NewSequence(0))).SimulateSensors(s)
	hi := NewAgent(WithSource(rng.NewSequence(0.999))).SimulateSensors(s)
	assert.InDelta(t, 137.5, lo.HeartRate, 1e-9)
	assert.InDelta(t, 142.5, hi.HeartRate, 0.01)
}

func TestDriverID(t *testing.T) {
	gta.Equal(t, DriverID("7", "Gresham Wagner"), "7-gresham")
	gta.Equal(t, DriverID("7", "Solo"), "7-solo")
	gta.Equal(t, DriverID("7", ""), "7-")
}
