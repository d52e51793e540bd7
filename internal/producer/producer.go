package producer

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/i474232898/wearable-weather-sync/internal/datasync"
	"github.com/i474232898/wearable-weather-sync/internal/weather"
)

// Source provides current conditions.
type Source interface {
	Current(ctx context.Context, loc weather.Location) (weather.Snapshot, error)
}

// Publisher sends batches to the display.
type Publisher interface {
	Publish(ctx context.Context, b datasync.Batch) error
}

// Producer is the phone side of the sync: it reads conditions and publishes
// them as a single weather event.
type Producer struct {
	source    Source
	publisher Publisher
	log       *zap.SugaredLogger
}

func New(source Source, publisher Publisher, log *zap.SugaredLogger) *Producer {
	return &Producer{source: source, publisher: publisher, log: log}
}

// Sync fetches the current conditions for loc and publishes them.
func (p *Producer) Sync(ctx context.Context, loc weather.Location) (weather.Snapshot, error) {
	snap, err := p.source.Current(ctx, loc)
	if err != nil {
		return weather.Snapshot{}, fmt.Errorf("fetch current weather for %s: %w", loc.Query(), err)
	}
	if err := p.Publish(ctx, snap); err != nil {
		return weather.Snapshot{}, err
	}
	return snap, nil
}

// Publish sends snap without consulting the source.
func (p *Producer) Publish(ctx context.Context, snap weather.Snapshot) error {
	if err := p.publisher.Publish(ctx, datasync.Batch{datasync.NewWeatherEvent(snap)}); err != nil {
		return fmt.Errorf("publish weather: %w", err)
	}
	p.log.Infow("Published weather",
		"weather_id", snap.ConditionID,
		"max_temp", snap.MaxTemp,
		"min_temp", snap.MinTemp)
	return nil
}
