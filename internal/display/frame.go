package display

import (
	"time"

	"github.com/i474232898/wearable-weather-sync/internal/weather"
)

// Mode is the power/display mode reported by the host.
type Mode int

const (
	Interactive Mode = iota
	Ambient
)

func (m Mode) String() string {
	if m == Ambient {
		return "ambient"
	}
	return "interactive"
}

// Face holds the display fields derived from the last notified snapshot.
type Face struct {
	MaxTemp string       `json:"maxTemp"`
	MinTemp string       `json:"minTemp"`
	Icon    weather.Icon `json:"icon"`
}

// NewFace derives the face for a snapshot. Sentinel values yield empty
// temperature labels and a non-drawable icon.
func NewFace(s weather.Snapshot) Face {
	high, low := weather.TemperatureText(s)
	return Face{
		MaxTemp: high,
		MinTemp: low,
		Icon:    weather.IconFor(s.ConditionID),
	}
}

// Frame is everything a Renderer needs for one redraw.
type Frame struct {
	Now      time.Time
	Snapshot weather.Snapshot
	Mode     Mode
	Face     Face
	// ShowIcon is false in ambient mode and when the icon has no artwork.
	ShowIcon      bool
	LowBitAmbient bool
}

// Renderer draws a frame. Implementations must tolerate sentinel snapshots
// and must not call back into the Machine.
type Renderer interface {
	Render(f Frame) error
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(Frame) error

func (fn RendererFunc) Render(f Frame) error { return fn(f) }
