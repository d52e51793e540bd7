package datasync

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/i474232898/wearable-weather-sync/internal/weather"
)

var (
	// ErrMissingField is returned when a weather event lacks a required key.
	ErrMissingField = errors.New("missing field")
	// ErrWrongType is returned when a field holds a value of the wrong type.
	ErrWrongType = errors.New("wrong field type")
)

// Event is one key/value update delivered by the remote channel.
type Event struct {
	Path string         `json:"path" validate:"required"`
	Data map[string]any `json:"data"`
}

// Batch is the unit of delivery from the remote channel. Events are handled
// in slice order.
type Batch []Event

// Snapshot extracts a complete weather snapshot from the event payload. Any
// missing or mistyped field fails the whole event.
func (e Event) Snapshot() (weather.Snapshot, error) {
	id, err := intField(e.Data, weather.KeyConditionID)
	if err != nil {
		return weather.Snapshot{}, err
	}
	maxTemp, err := floatField(e.Data, weather.KeyMaxTemp)
	if err != nil {
		return weather.Snapshot{}, err
	}
	minTemp, err := floatField(e.Data, weather.KeyMinTemp)
	if err != nil {
		return weather.Snapshot{}, err
	}

	return weather.Snapshot{
		ConditionID: id,
		MaxTemp:     maxTemp,
		MinTemp:     minTemp,
	}, nil
}

func intField(data map[string]any, key string) (int, error) {
	v, ok := data[key]
	if !ok || v == nil {
		return 0, fmt.Errorf("%w: %s", ErrMissingField, key)
	}

	switch n := v.(type) {
	case int:
		return n, nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case float64:
		// JSON decoders without UseNumber deliver every number as float64.
		return integral(n, key)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i), nil
		}
		// "800.0" is still a whole number.
		f, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: %s is not a number", ErrWrongType, key)
		}
		return integral(f, key)
	default:
		return 0, fmt.Errorf("%w: %s is %T", ErrWrongType, key, v)
	}
}

func integral(f float64, key string) (int, error) {
	if math.IsInf(f, 0) || math.IsNaN(f) || f != math.Trunc(f) {
		return 0, fmt.Errorf("%w: %s is not an integer", ErrWrongType, key)
	}
	return int(f), nil
}

func floatField(data map[string]any, key string) (float64, error) {
	v, ok := data[key]
	if !ok || v == nil {
		return 0, fmt.Errorf("%w: %s", ErrMissingField, key)
	}

	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: %s is not a number", ErrWrongType, key)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("%w: %s is %T", ErrWrongType, key, v)
	}
}

// NewWeatherEvent builds the event a producer publishes for s.
func NewWeatherEvent(s weather.Snapshot) Event {
	return Event{
		Path: weather.Topic,
		Data: map[string]any{
			weather.KeyConditionID: s.ConditionID,
			weather.KeyMaxTemp:     s.MaxTemp,
			weather.KeyMinTemp:     s.MinTemp,
		},
	}
}
