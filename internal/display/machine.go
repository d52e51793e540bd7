package display

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
	"weak"

	"github.com/jonboulle/clockwork"
	"github.com/looplab/fsm"
	"go.uber.org/zap"

	"github.com/i474232898/wearable-weather-sync/internal/metrics"
	"github.com/i474232898/wearable-weather-sync/internal/weather"
)

// Lifecycle states.
const (
	StateCreated   = "created"
	StateActive    = "active"
	StateHidden    = "hidden"
	StateDestroyed = "destroyed"
)

const (
	eventShow    = "show"
	eventHide    = "hide"
	eventDestroy = "destroy"
)

// Redraw triggers, used as the metrics label.
const (
	triggerTick    = "tick"
	triggerAmbient = "ambient"
	triggerHost    = "host"
)

// DefaultInterval is the interactive refresh period.
const DefaultInterval = time.Second

// ErrDestroyed is the panic value for callbacks delivered after OnDestroy.
var ErrDestroyed = errors.New("display: callback after teardown")

// Status is a point-in-time view of the machine.
type Status struct {
	State       string    `json:"state"`
	Mode        string    `json:"mode"`
	Visible     bool      `json:"visible"`
	TimerActive bool      `json:"timerActive"`
	NextTick    time.Time `json:"nextTick,omitzero"`
	TimeZone    string    `json:"timeZone"`
	Face        Face      `json:"face"`
	Redraws     uint64    `json:"redraws"`
}

// Option configures a Machine.
type Option func(*Machine)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c clockwork.Clock) Option {
	return func(m *Machine) { m.clock = c }
}

// WithInterval sets the interactive refresh period.
func WithInterval(d time.Duration) Option {
	return func(m *Machine) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithZoneSource sets how the default time zone is derived when the face
// becomes visible.
func WithZoneSource(fn func() *time.Location) Option {
	return func(m *Machine) { m.zoneSource = fn }
}

func WithLogger(l *zap.SugaredLogger) Option {
	return func(m *Machine) { m.log = l }
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Machine) { m.metrics = mt }
}

// Machine is the display state machine. It tracks visibility and ambient
// mode, runs the interactive tick loop and asks the Renderer to redraw.
//
// Host callbacks are serialized by an internal mutex; the Renderer runs
// while it is held. Calling any On* method after OnDestroy panics with
// ErrDestroyed.
type Machine struct {
	mu sync.Mutex

	store    weather.Store
	renderer Renderer
	clock    clockwork.Clock
	interval time.Duration
	log      *zap.SugaredLogger
	metrics  *metrics.Metrics

	lifecycle *fsm.FSM
	created   bool

	visible bool
	ambient bool
	lowBit  bool

	zoneSource   func() *time.Location
	loc          *time.Location
	tzRegistered bool

	face       Face
	snapshot   weather.Snapshot
	sub        weather.Subscription
	subscribed bool

	timer    clockwork.Timer
	tickGen  uint64
	nextTick time.Time
	redraws  uint64
}

// New creates a Machine in the created state. Call OnCreate before any
// other callback.
func New(store weather.Store, renderer Renderer, opts ...Option) *Machine {
	m := &Machine{
		store:      store,
		renderer:   renderer,
		clock:      clockwork.NewRealClock(),
		interval:   DefaultInterval,
		zoneSource: func() *time.Location { return time.Local },
		snapshot:   weather.Unknown(),
		face:       NewFace(weather.Unknown()),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.log == nil {
		m.log = zap.NewNop().Sugar()
	}
	m.loc = m.zoneSource()

	m.lifecycle = fsm.NewFSM(
		StateCreated,
		fsm.Events{
			{Name: eventShow, Src: []string{StateCreated, StateHidden}, Dst: StateActive},
			{Name: eventHide, Src: []string{StateCreated, StateActive}, Dst: StateHidden},
			{Name: eventDestroy, Src: []string{StateCreated, StateActive, StateHidden}, Dst: StateDestroyed},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				m.log.Debugw("display state changed", "from", e.Src, "to", e.Dst)
			},
		},
	)
	return m
}

// OnCreate subscribes to store notifications and loads the initial
// snapshot. It does not redraw.
func (m *Machine) OnCreate(ctx context.Context) {
	if !m.claimCreate() {
		return
	}

	// Subscribing takes the store's listener lock, which a delivery holds
	// while waiting for m.mu, so it happens outside m.mu. The store only
	// holds a weak reference to the machine.
	ref := weak.Make(m)
	sub := m.store.Subscribe(func(s weather.Snapshot) {
		if target := ref.Value(); target != nil {
			target.onChangeNotification(s)
		}
	})

	m.mu.Lock()
	defer m.mu.Unlock()

	m.sub = sub
	m.subscribed = true
	m.ambient = false
	m.visible = false

	snap, err := m.store.Get(ctx)
	if err != nil {
		m.log.Warnw("load initial snapshot", "error", err)
		return
	}
	m.snapshot = snap
	m.face = NewFace(snap)
}

// OnVisibilityChanged records visibility and starts or stops the tick loop.
func (m *Machine) OnVisibilityChanged(visible bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mustBeAlive()

	m.visible = visible
	if visible {
		m.fire(eventShow)
		m.tzRegistered = true
		// The zone may have changed while hidden.
		m.loc = m.zoneSource()
	} else {
		m.fire(eventHide)
		m.tzRegistered = false
	}

	m.updateTimer()
}

// OnAmbientModeChanged switches between interactive and ambient mode.
// Repeating the current mode does not redraw.
func (m *Machine) OnAmbientModeChanged(inAmbient bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mustBeAlive()

	if m.ambient != inAmbient {
		m.ambient = inAmbient
		m.redraw(triggerAmbient)
	}

	m.updateTimer()
}

// OnTimeTick is the host's own periodic tick, the only redraw source in
// ambient mode.
func (m *Machine) OnTimeTick() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mustBeAlive()

	m.redraw(triggerHost)
}

// OnTimeZoneChanged updates the time basis. It is ignored while the face is
// not visible, matching a receiver registered only while visible.
func (m *Machine) OnTimeZoneChanged(name string) error {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return fmt.Errorf("load time zone %q: %w", name, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.mustBeAlive()

	if !m.tzRegistered {
		return nil
	}
	m.loc = loc
	return nil
}

// OnPropertiesChanged records display capabilities reported by the host.
func (m *Machine) OnPropertiesChanged(lowBitAmbient bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mustBeAlive()

	m.lowBit = lowBitAmbient
}

// OnDestroy unsubscribes, cancels the pending tick and enters the
// destroyed state.
func (m *Machine) OnDestroy() {
	sub, subscribed := m.releaseSubscription()

	// Unsubscribe waits for an in-flight delivery, which needs m.mu.
	if subscribed {
		m.store.Unsubscribe(sub)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.cancelTick()
	m.tzRegistered = false
	m.fire(eventDestroy)
}

// Status reports the current state.
func (m *Machine) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	mode := Interactive
	if m.ambient {
		mode = Ambient
	}
	return Status{
		State:       m.lifecycle.Current(),
		Mode:        mode.String(),
		Visible:     m.visible,
		TimerActive: m.timerActive(),
		NextTick:    m.nextTick,
		TimeZone:    m.loc.String(),
		Face:        m.face,
		Redraws:     m.redraws,
	}
}

func (m *Machine) claimCreate() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mustBeAlive()

	if m.created {
		return false
	}
	m.created = true
	return true
}

func (m *Machine) releaseSubscription() (weather.Subscription, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mustBeAlive()

	sub, subscribed := m.sub, m.subscribed
	m.subscribed = false
	return sub, subscribed
}

func (m *Machine) onChangeNotification(s weather.Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.lifecycle.Is(StateDestroyed) {
		return
	}
	m.snapshot = s
	m.face = NewFace(s)
}

func (m *Machine) timerActive() bool {
	return m.visible && !m.ambient
}

// updateTimer cancels any pending tick and schedules a fresh one if the
// loop should be running.
func (m *Machine) updateTimer() {
	m.cancelTick()
	if m.timerActive() {
		m.scheduleTick()
	}
}

func (m *Machine) cancelTick() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.nextTick = time.Time{}
	// Invalidates a callback that already fired but has not locked m.mu.
	m.tickGen++
}

// scheduleTick arms the timer for the next interval boundary of wall-clock
// time, so redraws land on whole seconds instead of drifting.
func (m *Machine) scheduleTick() {
	now := m.clock.Now()
	delay := m.interval - time.Duration(now.UnixNano())%m.interval

	m.tickGen++
	gen := m.tickGen
	ref := weak.Make(m)
	m.timer = m.clock.AfterFunc(delay, func() {
		if target := ref.Value(); target != nil {
			target.onTick(gen)
		}
	})
	m.nextTick = now.Add(delay)
}

func (m *Machine) onTick(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.tickGen || m.lifecycle.Is(StateDestroyed) {
		return
	}
	m.timer = nil
	m.nextTick = time.Time{}

	m.redraw(triggerTick)
	if m.timerActive() {
		m.scheduleTick()
	}
}

func (m *Machine) redraw(trigger string) {
	snap, err := m.store.Get(context.Background())
	if err != nil {
		m.log.Warnw("read snapshot for redraw; using last known", "error", err)
		snap = m.snapshot
	}

	mode := Interactive
	if m.ambient {
		mode = Ambient
	}

	m.redraws++
	m.metrics.Redraw(trigger)

	frame := Frame{
		Now:           m.clock.Now().In(m.loc),
		Snapshot:      snap,
		Mode:          mode,
		Face:          m.face,
		ShowIcon:      !m.ambient && m.face.Icon.Drawable(),
		LowBitAmbient: m.lowBit,
	}
	if err := m.renderer.Render(frame); err != nil {
		m.metrics.RenderFailed()
		m.log.Warnw("render failed", "trigger", trigger, "error", err)
	}
}

func (m *Machine) fire(event string) {
	if !m.lifecycle.Can(event) {
		return
	}
	if err := m.lifecycle.Event(context.Background(), event); err != nil {
		m.log.Debugw("display transition", "event", event, "error", err)
	}
}

func (m *Machine) mustBeAlive() {
	if m.lifecycle.Is(StateDestroyed) {
		panic(ErrDestroyed)
	}
}
