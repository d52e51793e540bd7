package render

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/i474232898/wearable-weather-sync/internal/display"
	"github.com/i474232898/wearable-weather-sync/internal/weather"
)

const clearScreen = "\033[H\033[2J"

var glyphs = map[weather.Icon]string{
	weather.IconStorm:       "⛈",
	weather.IconLightRain:   "🌦",
	weather.IconRain:        "🌧",
	weather.IconSnow:        "❄",
	weather.IconFog:         "🌫",
	weather.IconClear:       "☀",
	weather.IconLightClouds: "🌤",
	weather.IconCloudy:      "☁",
}

// Terminal draws the watch face as styled text.
type Terminal struct {
	mu    sync.Mutex
	out   io.Writer
	clear bool

	interactive lipgloss.Style
	ambient     lipgloss.Style
	clock       lipgloss.Style
	date        lipgloss.Style
	high        lipgloss.Style
	low         lipgloss.Style
}

// NewTerminal creates a Terminal writing to out. When clear is set each
// frame replaces the previous one on screen.
func NewTerminal(out io.Writer, clear bool) *Terminal {
	r := lipgloss.NewRenderer(out)
	return &Terminal{
		out:   out,
		clear: clear,

		interactive: r.NewStyle().
			Background(lipgloss.Color("#1E88E5")).
			Foreground(lipgloss.Color("#FFFFFF")).
			Padding(1, 4).
			Align(lipgloss.Center),
		ambient: r.NewStyle().
			Background(lipgloss.Color("#000000")).
			Foreground(lipgloss.Color("#FFFFFF")).
			Padding(1, 4).
			Align(lipgloss.Center),
		clock: r.NewStyle().Bold(true),
		date:  r.NewStyle().Foreground(lipgloss.Color("#BBDEFB")),
		high:  r.NewStyle().Bold(true),
		low:   r.NewStyle().Foreground(lipgloss.Color("#BBDEFB")),
	}
}

// Render implements display.Renderer.
func (t *Terminal) Render(f display.Frame) error {
	view := t.View(f)

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.clear {
		view = clearScreen + view
	}
	if _, err := io.WriteString(t.out, view+"\n"); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// View lays out one frame. Low-bit ambient frames are drawn without styling.
func (t *Terminal) View(f display.Frame) string {
	plain := f.Mode == display.Ambient && f.LowBitAmbient
	style := func(s lipgloss.Style, text string) string {
		if plain || text == "" {
			return text
		}
		return s.Render(text)
	}

	lines := []string{
		style(t.clock, FormatTime(f.Now, f.Mode)),
		style(t.date, FormatDate(f.Now)),
	}

	var weatherRow []string
	if f.ShowIcon {
		if g, ok := glyphs[f.Face.Icon]; ok {
			weatherRow = append(weatherRow, g)
		}
	}
	if f.Face.MaxTemp != "" && f.Face.MinTemp != "" {
		weatherRow = append(weatherRow, style(t.high, f.Face.MaxTemp), style(t.low, f.Face.MinTemp))
	}
	if len(weatherRow) > 0 {
		lines = append(lines, "", strings.Join(weatherRow, "  "))
	}

	body := lipgloss.JoinVertical(lipgloss.Center, lines...)
	if plain {
		return body
	}
	if f.Mode == display.Ambient {
		return t.ambient.Render(body)
	}
	return t.interactive.Render(body)
}

// FormatTime renders the clock line: hours 1-24 with seconds in interactive
// mode, without seconds in ambient mode.
func FormatTime(now time.Time, mode display.Mode) string {
	hour := now.Hour()
	if hour == 0 {
		hour = 24
	}
	if mode == display.Ambient {
		return fmt.Sprintf("%02d:%02d", hour, now.Minute())
	}
	return fmt.Sprintf("%02d:%02d:%02d", hour, now.Minute(), now.Second())
}

// FormatDate renders the date line, e.g. "THU, OCT 15 2026".
func FormatDate(now time.Time) string {
	return strings.ToUpper(now.Format("Mon, Jan 02 2006"))
}
