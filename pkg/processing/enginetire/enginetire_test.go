//nolint:funlen,lll // ok for tests
package enginetire

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"

	"github.com/mpapenbr/crewchief/pkg/model"
	"github.com/mpapenbr/crewchief/pkg/processing/rng"
)

func TestTireWear(t *testing.T) {
	assert.InDelta(t, 43.967, TireWear(10, 32.1), 1e-9)
	assert.Equal(t, 100.0, TireWear(40, 32.1))
	assert.Equal(t, 0.0, TireWear(10, -40))
}

func TestAgent_NonFiniteTrackTemp(t *testing.T) {
	tests := []struct {
		name     string
		temp     float64
		wantWear float64
	}{
		{name: "nan", temp: math.NaN(), wantWear: 0},
		{name: "+inf", temp: math.Inf(1), wantWear: 100},
		{name: "-inf", temp: math.Inf(-1), wantWear: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAgent(WithSource(rng.NewSequence(0.5)))
			got := a.EstimateHealth(&model.CarSnapshot{LapsCompleted: 10},
				&model.WeatherSnapshot{TrackTempC: tt.temp})
			assert.Equal(t, tt.wantWear, got.TireWear)
			assert.GreaterOrEqual(t, got.RemainingTireLaps, 0)
			assert.LessOrEqual(t, got.RemainingTireLaps, 25)
		})
	}
}

func TestMonotonic(t *testing.T) {
	for _, temp := range []float64{10, 25, 32.1, 45} {
		prevWear, prevHealth := -1.0, 101.0
		for laps := 0; laps <= 250; laps++ {
			wear, health := TireWear(laps, temp), EngineHealth(laps)
			assert.GreaterOrEqual(t, wear, prevWear)
			assert.LessOrEqual(t, health, prevHealth)
			assert.True(t, wear >= 0 && wear <= 100)
			assert.True(t, health >= 0 && health <= 100)
			prevWear, prevHealth = wear, health
		}
	}
}

func TestAgent_EstimateHealth(t *testing.T) {
	w := &model.WeatherSnapshot{TrackTempC: 32.1, Conditions: model.ConditionSunny}
	tests := []struct {
		name string
		laps int
		want model.EngineTireAnalysis
	}{
		{
			name: "fresh",
			laps: 0,
			want: model.EngineTireAnalysis{
				TireWear: 0, EngineHealth: 100, RecommendedMode: ModePush,
				RemainingTireLaps: 25, RemainingEngineLaps: 200,
				Warnings: []string{},
				Details:  model.ComponentDetails{TireTemperature: 32.1 + 45 + 5, EngineTemperature: 85 + 16.05 + 2.5, BrakeWear: 0, FuelRemaining: 100},
			},
		},
		{
			name: "mid race",
			laps: 10,
			want: model.EngineTireAnalysis{
				TireWear: 43.967, EngineHealth: 95, RecommendedMode: ModePush,
				RemainingTireLaps: 14, RemainingEngineLaps: 190,
				Warnings: []string{},
				Details:  model.ComponentDetails{TireTemperature: 32.1 + 45 + 5, EngineTemperature: 85 + 16.05 + 2.5, BrakeWear: 28, FuelRemaining: 65},
			},
		},
		{
			name: "high wear",
			laps: 15,
			// 65.9505
			want: model.EngineTireAnalysis{
				TireWear: 65.9505, EngineHealth: 92.5, RecommendedMode: ModePush,
				RemainingTireLaps: 8, RemainingEngineLaps: 185,
				Warnings: []string{"High tire wear - reduce aggression"},
				Details:  model.ComponentDetails{TireTemperature: 32.1 + 45 + 5, EngineTemperature: 85 + 16.05 + 2.5, BrakeWear: 42, FuelRemaining: 47.5},
			},
		},
		{
			name: "final laps",
			laps: 24,
			want: model.EngineTireAnalysis{
				TireWear: 100, EngineHealth: 88, RecommendedMode: ModeConserve,
				RemainingTireLaps: 0, RemainingEngineLaps: 176,
				Warnings: []string{"Critical tire wear - consider pit stop", "Final laps - manage component stress"},
				Details:  model.ComponentDetails{TireTemperature: 32.1 + 45 + 5, EngineTemperature: 85 + 16.05 + 2.5, BrakeWear: 67.2, FuelRemaining: 16},
			},
		},
		{
			name: "worn engine",
			laps: 150,
			want: model.EngineTireAnalysis{
				TireWear: 100, EngineHealth: 25, RecommendedMode: ModeConserve,
				RemainingTireLaps: 0, RemainingEngineLaps: 50,
				Warnings: []string{"Critical tire wear - consider pit stop", "Monitor engine temperatures closely", "Final laps - manage component stress"},
				Details:  model.ComponentDetails{TireTemperature: 32.1 + 45 + 5, EngineTemperature: 85 + 16.05 + 2.5, BrakeWear: 100, FuelRemaining: 0},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAgent(WithSource(rng.NewSequence(0.5)))
			got := a.EstimateHealth(&model.CarSnapshot{CarNumber: "7", LapsCompleted: tt.laps}, w)
			tt.want.CarNumber = "7"
			if diff := cmp.Diff(tt.want, got, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
				t.Errorf("EstimateHealth() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestAgent_BalancedMode(t *testing.T) {
	a := NewAgent(WithSource(rng.NewSequence(0)))
	// cold track keeps wear low, lap count alone triggers balanced mode
	got := a.EstimateHealth(&model.CarSnapshot{LapsCompleted: 21}, &model.WeatherSnapshot{TrackTempC: 0})
	assert.Equal(t, ModeBalanced, got.RecommendedMode)
	assert.InDelta(t, 21*3.85*0.5, got.TireWear, 1e-9)
}
