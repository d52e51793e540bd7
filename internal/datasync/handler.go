package datasync

import (
	"context"

	"go.uber.org/zap"

	"github.com/i474232898/wearable-weather-sync/internal/metrics"
	"github.com/i474232898/wearable-weather-sync/internal/weather"
)

// Result summarises how one batch was handled.
type Result struct {
	Committed int
	Malformed int
	Ignored   int
	Failed    int
	// Dropped is set when no session could be acquired; nothing was
	// committed.
	Dropped bool
}

// Handler commits weather events from the remote channel into a store.
// Recoverable conditions are absorbed: they are logged and counted but never
// returned to the caller.
type Handler struct {
	store     weather.Store
	connector Connector
	metrics   *metrics.Metrics
	log       *zap.SugaredLogger
}

// NewHandler creates a Handler. m may be nil.
func NewHandler(store weather.Store, connector Connector, m *metrics.Metrics, log *zap.SugaredLogger) *Handler {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Handler{
		store:     store,
		connector: connector,
		metrics:   m,
		log:       log,
	}
}

// Run drains q in order until ctx ends or q is closed and empty.
func (h *Handler) Run(ctx context.Context, q *Queue) {
	for {
		b, ok := q.Next(ctx)
		if !ok {
			return
		}
		h.metrics.SetQueueDepth(q.Len())
		h.HandleBatch(ctx, b)
	}
}

// HandleBatch acquires a session, then commits every valid weather event in
// delivery order, one Put per event. If no session can be acquired the whole
// batch is dropped.
func (h *Handler) HandleBatch(ctx context.Context, b Batch) Result {
	sess, err := h.connector.Connect(ctx)
	if err != nil {
		h.log.Warnw("dropping batch: remote channel unavailable", "events", len(b), "error", err)
		h.metrics.BatchDropped()
		return Result{Dropped: true}
	}
	defer func() {
		if err := sess.Close(); err != nil {
			h.log.Debugw("release session", "error", err)
		}
	}()

	var res Result
	for _, ev := range b {
		if ev.Path != weather.Topic {
			res.Ignored++
			h.metrics.EventSkipped(metrics.ReasonTopic)
			continue
		}

		snap, err := ev.Snapshot()
		if err != nil {
			res.Malformed++
			h.log.Warnw("skipping malformed weather event", "error", err)
			h.metrics.EventSkipped(metrics.ReasonMalformed)
			continue
		}

		if err := h.store.Put(ctx, snap); err != nil {
			res.Failed++
			h.log.Errorw("commit weather snapshot", "error", err)
			h.metrics.EventSkipped(metrics.ReasonStore)
			continue
		}
		res.Committed++
		h.metrics.EventCommitted()
		h.log.Debugw("committed weather snapshot",
			"weather_id", snap.ConditionID,
			"max_temp", snap.MaxTemp,
			"min_temp", snap.MinTemp)
	}
	return res
}
