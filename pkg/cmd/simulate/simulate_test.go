package simulate

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/crewchief/pkg/model"
	"github.com/mpapenbr/crewchief/pkg/processing"
	"github.com/mpapenbr/crewchief/pkg/raceresults"
	"github.com/mpapenbr/crewchief/pkg/session"
)

func newSession(t *testing.T, laps int) *session.Session {
	t.Helper()
	results, err := raceresults.LoadFile("../../raceresults/testdata/results.csv")
	require.NoError(t, err)
	cfg := processing.DefaultConfig()
	cfg.Seed = 3
	s, err := session.NewSession(
		session.WithResults(results),
		session.WithTotalLaps(laps),
		session.WithProcessor(processing.NewProcessor(processing.WithConfig(cfg))))
	require.NoError(t, err)
	return s
}

func TestRun_JSON(t *testing.T) {
	buf := &bytes.Buffer{}
	s := newSession(t, 3)
	err := run(context.Background(), buf, s.Advance, 3,
		options{format: FormatJSON, cars: []string{"7"}})
	require.NoError(t, err)

	scanner := bufio.NewScanner(buf)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lap := 0
	for scanner.Scan() {
		lap++
		var tick model.TickResult
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &tick))
		assert.Equal(t, lap, tick.CurrentLap)
		require.Len(t, tick.Cars, 1)
		assert.Equal(t, "7", tick.Cars[0].Car.CarNumber)
	}
	assert.Equal(t, 3, lap)
}

func TestRun_Text(t *testing.T) {
	buf := &bytes.Buffer{}
	s := newSession(t, 2)
	require.NoError(t, run(context.Background(), buf, s.Advance, 2, options{format: FormatText}))

	out := buf.String()
	assert.Contains(t, out, "Lap 1/2")
	assert.Contains(t, out, "Lap 2/2")
	assert.Contains(t, out, "#55")
	// 2 header lines and 3 cars per lap
	assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 8)
}

func TestRun_Errors(t *testing.T) {
	s := newSession(t, 2)
	err := run(context.Background(), &bytes.Buffer{}, s.Advance, 2, options{format: "xml"})
	assert.ErrorContains(t, err, "unknown output format")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = run(ctx, &bytes.Buffer{}, s.Advance, 2, options{format: FormatText})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFilterCars(t *testing.T) {
	cars := []model.CarAnalysis{
		{Car: model.CarSnapshot{CarNumber: "1"}},
		{Car: model.CarSnapshot{CarNumber: "2"}},
	}
	assert.Len(t, filterCars(cars, nil), 2)
	assert.Len(t, filterCars(cars, []string{"2", "3"}), 1)
}
