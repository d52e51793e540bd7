package datasync

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/wearable-weather-sync/internal/metrics"
	"github.com/i474232898/wearable-weather-sync/internal/store"
	"github.com/i474232898/wearable-weather-sync/internal/weather"
)

type countingSession struct{ closed *atomic.Int32 }

func (s countingSession) Close() error {
	s.closed.Add(1)
	return nil
}

func okConnector(closed *atomic.Int32) Connector {
	return ConnectorFunc(func(context.Context) (Session, error) {
		return countingSession{closed: closed}, nil
	})
}

func weatherEvent(id int, maxTemp, minTemp float64) Event {
	return NewWeatherEvent(weather.Snapshot{ConditionID: id, MaxTemp: maxTemp, MinTemp: minTemp})
}

func TestHandleBatch_CommitsEventsInOrder(t *testing.T) {
	s := store.NewMemoryStore()
	var seen []weather.Snapshot
	s.Subscribe(func(snap weather.Snapshot) { seen = append(seen, snap) })

	var closed atomic.Int32
	h := NewHandler(s, okConnector(&closed), nil, nil)

	res := h.HandleBatch(context.Background(), Batch{
		weatherEvent(500, 10, 5),
		weatherEvent(800, 25, 15),
	})

	assert.Equal(t, Result{Committed: 2}, res)
	assert.Equal(t, []weather.Snapshot{
		{ConditionID: 500, MaxTemp: 10, MinTemp: 5},
		{ConditionID: 800, MaxTemp: 25, MinTemp: 15},
	}, seen)

	got, err := s.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, weather.Snapshot{ConditionID: 800, MaxTemp: 25, MinTemp: 15}, got)
	assert.Equal(t, int32(1), closed.Load(), "session released once")
}

func TestHandleBatch_IgnoresOtherTopics(t *testing.T) {
	s := store.NewMemoryStore()
	notified := 0
	s.Subscribe(func(weather.Snapshot) { notified++ })

	var closed atomic.Int32
	h := NewHandler(s, okConnector(&closed), nil, nil)

	other := weatherEvent(800, 25, 15)
	other.Path = "/weather/extra"
	prefix := weatherEvent(800, 25, 15)
	prefix.Path = "/weathe"

	res := h.HandleBatch(context.Background(), Batch{other, prefix})

	assert.Equal(t, Result{Ignored: 2}, res)
	assert.Zero(t, notified)
	got, _ := s.Get(context.Background())
	assert.Equal(t, weather.Unknown(), got)
}

func TestHandleBatch_SkipsMalformedEventOnly(t *testing.T) {
	s := store.NewMemoryStore()
	var seen []weather.Snapshot
	s.Subscribe(func(snap weather.Snapshot) { seen = append(seen, snap) })

	var closed atomic.Int32
	h := NewHandler(s, okConnector(&closed), nil, nil)

	missingMax := weatherEvent(800, 25, 15)
	delete(missingMax.Data, weather.KeyMaxTemp)

	res := h.HandleBatch(context.Background(), Batch{missingMax, weatherEvent(801, 20, 10)})

	assert.Equal(t, Result{Committed: 1, Malformed: 1}, res)
	assert.Equal(t, []weather.Snapshot{{ConditionID: 801, MaxTemp: 20, MinTemp: 10}}, seen)
}

func TestHandleBatch_MissingFieldLeavesStoreUnchanged(t *testing.T) {
	s := store.NewMemoryStore()
	notified := 0
	s.Subscribe(func(weather.Snapshot) { notified++ })

	var closed atomic.Int32
	h := NewHandler(s, okConnector(&closed), nil, nil)

	ev := weatherEvent(800, 25, 15)
	delete(ev.Data, weather.KeyMaxTemp)
	h.HandleBatch(context.Background(), Batch{ev})

	assert.Zero(t, notified)
	got, _ := s.Get(context.Background())
	assert.Equal(t, weather.Unknown(), got)
}

func TestHandleBatch_DropsBatchWhenConnectFails(t *testing.T) {
	s := store.NewMemoryStore()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	failing := ConnectorFunc(func(context.Context) (Session, error) {
		return nil, errors.New("peer unreachable")
	})
	h := NewHandler(s, failing, m, nil)

	res := h.HandleBatch(context.Background(), Batch{weatherEvent(800, 25, 15)})

	assert.True(t, res.Dropped)
	assert.Zero(t, res.Committed)
	got, _ := s.Get(context.Background())
	assert.Equal(t, weather.Unknown(), got)

	expected := `
# HELP weatherface_sync_batches_dropped_total Batches dropped because no connection could be acquired.
# TYPE weatherface_sync_batches_dropped_total counter
weatherface_sync_batches_dropped_total 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "weatherface_sync_batches_dropped_total"))
}

func TestHandleBatch_CommitsOnceConnectivityReturns(t *testing.T) {
	s := store.NewMemoryStore()
	var reachable atomic.Bool
	flaky := ConnectorFunc(func(context.Context) (Session, error) {
		if !reachable.Load() {
			return nil, errors.New("peer unreachable")
		}
		return NopSession{}, nil
	})
	h := NewHandler(s, NewGuardedConnector(flaky, time.Second), nil, nil)

	for i := 0; i < 3; i++ {
		res := h.HandleBatch(context.Background(), Batch{weatherEvent(500, 10, 5)})
		require.True(t, res.Dropped)
	}

	reachable.Store(true)
	res := h.HandleBatch(context.Background(), Batch{weatherEvent(800, 25, 15)})

	assert.Equal(t, Result{Committed: 1}, res)
	got, err := s.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, weather.Snapshot{ConditionID: 800, MaxTemp: 25, MinTemp: 15}, got)
}

func TestRun_DrainsQueueInOrder(t *testing.T) {
	s := store.NewMemoryStore()
	var ids []int
	s.Subscribe(func(snap weather.Snapshot) { ids = append(ids, snap.ConditionID) })

	var closed atomic.Int32
	h := NewHandler(s, okConnector(&closed), nil, nil)

	q := NewQueue(4)
	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, Batch{weatherEvent(200, 1, 0)}))
	require.NoError(t, q.Enqueue(ctx, Batch{weatherEvent(300, 1, 0), weatherEvent(500, 1, 0)}))
	q.Close()

	done := make(chan struct{})
	go func() {
		h.Run(ctx, q)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after queue closed")
	}
	assert.Equal(t, []int{200, 300, 500}, ids)
	assert.ErrorIs(t, q.Enqueue(ctx, Batch{}), ErrQueueClosed)
}

func TestEventSnapshot_FieldTypes(t *testing.T) {
	var data map[string]any
	dec := json.NewDecoder(strings.NewReader(`{"weatherID":800,"maxTemp":25.5,"minTemp":15}`))
	dec.UseNumber()
	require.NoError(t, dec.Decode(&data))

	snap, err := Event{Path: weather.Topic, Data: data}.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, weather.Snapshot{ConditionID: 800, MaxTemp: 25.5, MinTemp: 15}, snap)

	_, err = Event{Path: weather.Topic, Data: map[string]any{
		weather.KeyConditionID: 800.5, weather.KeyMaxTemp: 1.0, weather.KeyMinTemp: 0.0,
	}}.Snapshot()
	assert.ErrorIs(t, err, ErrWrongType)

	_, err = Event{Path: weather.Topic, Data: map[string]any{
		weather.KeyConditionID: 800, weather.KeyMaxTemp: "hot", weather.KeyMinTemp: 0.0,
	}}.Snapshot()
	assert.ErrorIs(t, err, ErrWrongType)

	_, err = Event{Path: weather.Topic, Data: map[string]any{
		weather.KeyConditionID: 800, weather.KeyMaxTemp: 1.0,
	}}.Snapshot()
	assert.ErrorIs(t, err, ErrMissingField)
}
