package display

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/wearable-weather-sync/internal/store"
	"github.com/i474232898/wearable-weather-sync/internal/weather"
)

// recorder is a Renderer that keeps every frame it is asked to draw.
type recorder struct {
	mu     sync.Mutex
	frames []Frame
	err    error
}

func (r *recorder) Render(f Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, f)
	return r.err
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames)
}

func (r *recorder) last() Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames[len(r.frames)-1]
}

// start is a quarter second past a whole second.
var start = time.Date(2026, 10, 15, 12, 0, 0, 250*int(time.Millisecond), time.UTC)

func newMachine(t *testing.T) (*Machine, *store.MemoryStore, *recorder, *clockwork.FakeClock) {
	t.Helper()
	s := store.NewMemoryStore()
	r := &recorder{}
	clock := clockwork.NewFakeClockAt(start)
	m := New(s, r,
		WithClock(clock),
		WithZoneSource(func() *time.Location { return time.UTC }),
	)
	m.OnCreate(context.Background())
	return m, s, r, clock
}

// settle gives timer callbacks, which run on their own goroutine, time to
// finish.
func settle() { time.Sleep(50 * time.Millisecond) }

func TestOnCreate_LoadsSnapshotWithoutRedraw(t *testing.T) {
	s := store.NewMemoryStore()
	require.NoError(t, s.Put(context.Background(), weather.Snapshot{ConditionID: 500, MaxTemp: 11, MinTemp: 6}))

	r := &recorder{}
	m := New(s, r, WithClock(clockwork.NewFakeClockAt(start)))
	m.OnCreate(context.Background())

	st := m.Status()
	assert.Equal(t, StateCreated, st.State)
	assert.Equal(t, "interactive", st.Mode)
	assert.False(t, st.Visible)
	assert.False(t, st.TimerActive)
	assert.Equal(t, Face{MaxTemp: "11°", MinTemp: "6°", Icon: weather.IconRain}, st.Face)
	assert.Zero(t, r.count())
}

func TestEmptyStore_VisibleFaceOmitsWeather(t *testing.T) {
	m, _, r, clock := newMachine(t)

	m.OnVisibilityChanged(true)
	assert.Equal(t, StateActive, m.Status().State)

	clock.Advance(750 * time.Millisecond)
	require.Eventually(t, func() bool { return r.count() == 1 }, time.Second, 5*time.Millisecond)

	f := r.last()
	assert.Equal(t, weather.Unknown(), f.Snapshot)
	assert.Empty(t, f.Face.MaxTemp)
	assert.Empty(t, f.Face.MinTemp)
	assert.Equal(t, weather.IconUnknown, f.Face.Icon)
	assert.False(t, f.ShowIcon)
}

func TestChangeNotification_DerivesFace(t *testing.T) {
	m, s, r, _ := newMachine(t)

	require.NoError(t, s.Put(context.Background(), weather.Snapshot{ConditionID: 800, MaxTemp: 25.0, MinTemp: 15.0}))

	st := m.Status()
	assert.Equal(t, Face{MaxTemp: "25°", MinTemp: "15°", Icon: weather.IconClear}, st.Face)
	assert.Zero(t, r.count(), "notification does not force a redraw")
}

func TestChangeNotification_UnmappedConditionHasNoIcon(t *testing.T) {
	m, s, _, _ := newMachine(t)

	require.NoError(t, s.Put(context.Background(), weather.Snapshot{ConditionID: 950, MaxTemp: 1, MinTemp: 0}))

	assert.Equal(t, weather.IconNone, m.Status().Face.Icon)
}

func TestTick_AlignsToSecondBoundaries(t *testing.T) {
	m, _, r, clock := newMachine(t)

	m.OnVisibilityChanged(true)
	st := m.Status()
	require.True(t, st.TimerActive)
	assert.Equal(t, start.Truncate(time.Second).Add(time.Second), st.NextTick)

	clock.Advance(750 * time.Millisecond)
	require.Eventually(t, func() bool {
		return r.count() == 1 && m.Status().NextTick.Equal(start.Truncate(time.Second).Add(2*time.Second))
	}, time.Second, 5*time.Millisecond)

	clock.Advance(time.Second)
	require.Eventually(t, func() bool { return r.count() == 2 }, time.Second, 5*time.Millisecond)
	assert.Zero(t, r.last().Now.Nanosecond())
}

func TestHidden_NeverSchedulesTicks(t *testing.T) {
	m, _, r, clock := newMachine(t)

	m.OnVisibilityChanged(false)
	m.OnVisibilityChanged(false)
	m.OnVisibilityChanged(false)

	st := m.Status()
	assert.Equal(t, StateHidden, st.State)
	assert.False(t, st.TimerActive)
	assert.True(t, st.NextTick.IsZero())

	clock.Advance(10 * time.Second)
	settle()
	assert.Zero(t, r.count())
}

func TestRepeatedVisible_NoDuplicateTicks(t *testing.T) {
	m, _, r, clock := newMachine(t)

	m.OnVisibilityChanged(true)
	m.OnVisibilityChanged(true)
	m.OnVisibilityChanged(true)

	clock.Advance(750 * time.Millisecond)
	require.Eventually(t, func() bool { return r.count() >= 1 }, time.Second, 5*time.Millisecond)
	settle()
	assert.Equal(t, 1, r.count())
}

func TestAmbient_ForcesOneRedrawAndStopsTimer(t *testing.T) {
	m, _, r, clock := newMachine(t)
	m.OnVisibilityChanged(true)

	m.OnAmbientModeChanged(true)
	require.Equal(t, 1, r.count())
	f := r.last()
	assert.Equal(t, Ambient, f.Mode)
	assert.False(t, f.ShowIcon)

	st := m.Status()
	assert.Equal(t, "ambient", st.Mode)
	assert.False(t, st.TimerActive)
	assert.True(t, st.NextTick.IsZero())

	m.OnAmbientModeChanged(true)
	clock.Advance(5 * time.Second)
	settle()
	assert.Equal(t, 1, r.count())
}

func TestInteractive_ResumesTimerOnBoundary(t *testing.T) {
	m, _, r, clock := newMachine(t)
	m.OnVisibilityChanged(true)
	m.OnAmbientModeChanged(true)

	clock.Advance(1300 * time.Millisecond)
	now := clock.Now()

	m.OnAmbientModeChanged(false)
	assert.Equal(t, 2, r.count())

	st := m.Status()
	require.True(t, st.TimerActive)
	wait := st.NextTick.Sub(now)
	assert.Greater(t, wait, time.Duration(0))
	assert.LessOrEqual(t, wait, time.Second)
	assert.Zero(t, st.NextTick.Nanosecond())
}

func TestTimeTick_RedrawsInAmbient(t *testing.T) {
	m, _, r, _ := newMachine(t)
	m.OnVisibilityChanged(true)
	m.OnAmbientModeChanged(true)
	m.OnPropertiesChanged(true)

	m.OnTimeTick()

	require.Equal(t, 2, r.count())
	assert.True(t, r.last().LowBitAmbient)
}

func TestRenderFailure_IsNotRetried(t *testing.T) {
	m, _, r, clock := newMachine(t)
	r.err = errors.New("surface lost")

	m.OnVisibilityChanged(true)
	clock.Advance(750 * time.Millisecond)
	require.Eventually(t, func() bool { return !m.Status().NextTick.IsZero() && r.count() == 1 }, time.Second, 5*time.Millisecond)
	settle()
	assert.Equal(t, 1, r.count())

	// The next scheduled tick still fires.
	clock.Advance(time.Second)
	require.Eventually(t, func() bool { return r.count() == 2 }, time.Second, 5*time.Millisecond)
}

func TestTimeZone_OnlyTrackedWhileVisible(t *testing.T) {
	m, _, _, _ := newMachine(t)

	require.NoError(t, m.OnTimeZoneChanged("Europe/Oslo"))
	assert.Equal(t, "UTC", m.Status().TimeZone)

	m.OnVisibilityChanged(true)
	require.NoError(t, m.OnTimeZoneChanged("Europe/Oslo"))
	assert.Equal(t, "Europe/Oslo", m.Status().TimeZone)

	// Becoming visible again re-derives the default zone.
	m.OnVisibilityChanged(false)
	m.OnVisibilityChanged(true)
	assert.Equal(t, "UTC", m.Status().TimeZone)

	assert.Error(t, m.OnTimeZoneChanged("Not/AZone"))
}

func TestOnDestroy_StopsEverything(t *testing.T) {
	m, s, r, clock := newMachine(t)
	m.OnVisibilityChanged(true)

	m.OnDestroy()
	assert.Equal(t, StateDestroyed, m.Status().State)

	require.NoError(t, s.Put(context.Background(), weather.Snapshot{ConditionID: 800, MaxTemp: 25, MinTemp: 15}))
	assert.Equal(t, weather.IconUnknown, m.Status().Face.Icon, "no notification after teardown")

	clock.Advance(5 * time.Second)
	settle()
	assert.Zero(t, r.count())

	assert.PanicsWithValue(t, ErrDestroyed, func() { m.OnVisibilityChanged(true) })
	assert.PanicsWithValue(t, ErrDestroyed, func() { m.OnTimeTick() })
	assert.PanicsWithValue(t, ErrDestroyed, func() { m.OnDestroy() })
}

func TestSubscription_DoesNotKeepMachineAlive(t *testing.T) {
	s := store.NewMemoryStore()
	collected := make(chan struct{})

	func() {
		m := New(s, &recorder{}, WithClock(clockwork.NewFakeClock()))
		m.OnCreate(context.Background())
		runtime.AddCleanup(m, func(ch chan struct{}) { close(ch) }, collected)
	}()

	require.Eventually(t, func() bool {
		runtime.GC()
		select {
		case <-collected:
			return true
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)

	// The orphaned listener is a no-op.
	assert.NoError(t, s.Put(context.Background(), weather.Snapshot{ConditionID: 800, MaxTemp: 25, MinTemp: 15}))
}
