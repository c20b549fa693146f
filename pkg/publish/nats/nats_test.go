package nats

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/crewchief/pkg/model"
)

type fakeConn struct {
	msgs map[string][]byte
	err  error
}

func (f *fakeConn) Publish(subj string, data []byte) error {
	if f.err != nil {
		return f.err
	}
	f.msgs[subj] = data
	return nil
}

type fakeStore struct {
	data map[string][]byte
}

func (f *fakeStore) Put(_ context.Context, key string, value []byte) (uint64, error) {
	f.data[key] = value
	return uint64(len(f.data)), nil
}

func sampleTick() *model.TickResult {
	return &model.TickResult{
		SessionKey: "abc",
		CurrentLap: 4,
		TotalLaps:  26,
		Cars: []model.CarAnalysis{
			{Car: model.CarSnapshot{CarNumber: "55", Position: 1}},
			{Car: model.CarSnapshot{CarNumber: "7", Position: 2}},
		},
	}
}

func TestPublisher_Publish(t *testing.T) {
	conn := &fakeConn{msgs: map[string][]byte{}}
	store := &fakeStore{data: map[string][]byte{}}
	p := NewPublisher(conn, WithPerCar(true), withStore(store), WithSubjectPrefix("cc"))

	require.NoError(t, p.Publish(context.Background(), sampleTick()))

	assert.Len(t, conn.msgs, 3)
	var got model.TickResult
	require.NoError(t, json.Unmarshal(conn.msgs["cc.tick.abc"], &got))
	assert.Equal(t, 4, got.CurrentLap)
	assert.Contains(t, conn.msgs, "cc.car.abc.7")
	assert.Equal(t, conn.msgs["cc.tick.abc"], store.data["abc"])
}

func TestPublisher_Errors(t *testing.T) {
	boom := errors.New("boom")
	conn := &fakeConn{msgs: map[string][]byte{}, err: boom}
	store := &fakeStore{data: map[string][]byte{}}
	p := NewPublisher(conn, withStore(store))

	err := p.Publish(context.Background(), sampleTick())
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, store.data, "abc", "store is written even if publishing failed")
}
