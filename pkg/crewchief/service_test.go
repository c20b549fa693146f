//nolint:funlen // ok for tests
package crewchief

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/crewchief/pkg/crewchief/llm"
	"github.com/mpapenbr/crewchief/pkg/model"
)

type fakeCompleter struct {
	mu       sync.Mutex
	requests []llm.Request
	answer   string
	err      error
}

func (f *fakeCompleter) Complete(_ context.Context, req llm.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	return f.answer, f.err
}

type fixedState struct {
	tick *model.TickResult
}

func (f *fixedState) Current() *model.TickResult { return f.tick }

func sampleTick() *model.TickResult {
	return &model.TickResult{
		SessionKey: "s1",
		CurrentLap: 10,
		TotalLaps:  26,
		Cars:       []model.CarAnalysis{*sampleAnalysis()},
	}
}

func TestService_Insight(t *testing.T) {
	fc := &fakeCompleter{answer: "Keep pushing through T12."}
	state := &fixedState{tick: sampleTick()}
	s := NewService(WithCompleter(fc), WithStateProvider(state))
	ctx := context.Background()

	got, err := s.Insight(ctx, "7")
	require.NoError(t, err)
	assert.Equal(t, &Insight{
		CarNumber:  "7",
		LapCurrent: 10,
		Insight:    "Keep pushing through T12.",
		Priority:   PriorityLow,
		Scenario:   ScenarioDefending,
	}, got)

	_, err = s.Insight(ctx, "7")
	require.NoError(t, err)
	require.Len(t, fc.requests, 1, "cached per car and lap")

	req := fc.requests[0]
	assert.Equal(t, Temperature, req.Temperature)
	assert.Equal(t, InsightMaxTokens, req.MaxTokens)
	assert.Equal(t, InsightSystemPrompt, req.Messages[0].Content)
	assert.True(t, strings.HasPrefix(req.Messages[1].Content, "You are P2 defending your position. Position: P2, Lap 10/26."))

	// next lap asks again
	next := sampleTick()
	next.CurrentLap = 11
	state.tick = next
	_, err = s.Insight(ctx, "7")
	require.NoError(t, err)
	assert.Len(t, fc.requests, 2)

	s.Reset(ctx)
	_, err = s.Insight(ctx, "7")
	require.NoError(t, err)
	assert.Len(t, fc.requests, 3)
}

func TestService_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := NewService().Insight(ctx, "7")
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = NewService(WithCompleter(&fakeCompleter{})).Insight(ctx, "7")
	assert.ErrorIs(t, err, ErrNoState)

	s := NewService(WithCompleter(&fakeCompleter{}), WithStateProvider(&fixedState{}))
	_, err = s.Insight(ctx, "7")
	assert.ErrorIs(t, err, ErrNoState)

	s = NewService(WithCompleter(&fakeCompleter{}), WithStateProvider(&fixedState{tick: sampleTick()}))
	_, err = s.Insight(ctx, "99")
	assert.ErrorIs(t, err, ErrUnknownCar)

	boom := errors.New("boom")
	fc := &fakeCompleter{err: boom}
	s = NewService(WithCompleter(fc), WithStateProvider(&fixedState{tick: sampleTick()}))
	_, err = s.Insight(ctx, "7")
	assert.ErrorIs(t, err, boom)
	_, err = s.Insight(ctx, "7")
	assert.ErrorIs(t, err, boom)
	assert.Len(t, fc.requests, 2, "failures are not cached")
}

func TestService_Ask(t *testing.T) {
	ctx := context.Background()
	fc := &fakeCompleter{answer: "Brake later into T1."}
	s := NewService(WithCompleter(fc), WithStateProvider(&fixedState{tick: sampleTick()}))

	_, err := s.Ask(ctx, "   ", "7")
	assert.ErrorIs(t, err, ErrQuestionRequired)

	got, err := s.Ask(ctx, "Where can I gain time?", "7")
	require.NoError(t, err)
	assert.Equal(t, "Brake later into T1.", got.Answer)
	req := fc.requests[0]
	assert.Equal(t, AnswerMaxTokens, req.MaxTokens)
	assert.Equal(t, QASystemPrompt+QAContext(sampleAnalysis(), 26), req.Messages[0].Content)
	assert.Equal(t, "Where can I gain time?", req.Messages[1].Content)

	_, err = s.Ask(ctx, "General question", "")
	require.NoError(t, err)
	assert.Equal(t, QASystemPrompt, fc.requests[1].Messages[0].Content)

	_, err = s.Ask(ctx, "q", "42")
	assert.ErrorIs(t, err, ErrUnknownCar)
}

// stallingCompleter holds the first completion until release is closed.
type stallingCompleter struct {
	once    sync.Once
	started chan struct{}
	release chan struct{}
}

func (c *stallingCompleter) Complete(ctx context.Context, _ llm.Request) (string, error) {
	first := false
	c.once.Do(func() { first = true })
	if first {
		close(c.started)
		select {
		case <-c.release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return "Hold the inside line.", nil
}

func TestService_SlowCompletionDoesNotBlockOthers(t *testing.T) {
	sc := &stallingCompleter{started: make(chan struct{}), release: make(chan struct{})}
	tick := sampleTick()
	other := sampleAnalysis()
	other.Car.CarNumber = "99"
	other.Car.Position = 5
	tick.Cars = append(tick.Cars, *other)
	s := NewService(WithCompleter(sc), WithStateProvider(&fixedState{tick: tick}))
	ctx := context.Background()

	firstDone := make(chan error, 1)
	go func() {
		_, err := s.Insight(ctx, "7")
		firstDone <- err
	}()
	<-sc.started

	resetDone := make(chan struct{})
	go func() {
		s.Reset(ctx)
		close(resetDone)
	}()
	select {
	case <-resetDone:
	case <-time.After(300 * time.Millisecond):
		t.Fatal("Reset waited for an in-flight completion")
	}

	reqCtx, cancel := context.WithTimeout(ctx, 300*time.Millisecond)
	defer cancel()
	got, err := s.Insight(reqCtx, "99")
	require.NoError(t, err)
	assert.Equal(t, "99", got.CarNumber)
	assert.Equal(t, "Hold the inside line.", got.Insight)

	close(sc.release)
	select {
	case err := <-firstDone:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("first insight did not finish")
	}
}
