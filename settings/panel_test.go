package settings

import (
	"errors"
	"net/url"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richinsley/cameratoy/location"
)

type fakeTimer struct {
	clock   *fakeClock
	at      time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

type fakeClock struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*fakeTimer
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now + d, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && t.at <= c.now {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()
	sort.Slice(due, func(i, j int) bool { return due[i].at < due[j].at })
	for _, t := range due {
		t.f()
	}
}

func newTestPanel(t *testing.T, raw string) (*Panel, *location.Location, *fakeClock) {
	t.Helper()
	loc, err := location.Parse(raw)
	require.NoError(t, err)
	clock := &fakeClock{}
	p, err := NewPanel(DefaultControls(), loc, NewThrottle(SaveInterval, clock))
	require.NoError(t, err)
	return p, loc, clock
}

func TestDefaultPanelOrder(t *testing.T) {
	p, _, _ := newTestPanel(t, "")
	var names []string
	for _, s := range p.Settings() {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"flipX", "xWaveAmp", "xWaveFreq", "xWaveOscAmp", "xWaveOscFreq"}, names)
	assert.Equal(t, Boolean, p.Get("flipX").Kind)
	assert.Equal(t, Numeric, p.Get("xWaveFreq").Kind)
}

func TestRestoreEmptyQueryYieldsDefaults(t *testing.T) {
	p, _, _ := newTestPanel(t, "camera-toy:///")
	for _, s := range p.Settings() {
		assert.Equal(t, s.Default, s.Value, s.Name)
	}
	assert.True(t, p.Get("flipX").Bool())
	assert.Equal(t, 20.0, p.Get("xWaveFreq").Value)
}

func TestRestoreOverridesDefaults(t *testing.T) {
	p, _, _ := newTestPanel(t, "camera-toy:///?flipX=false&xWaveAmp=0.05&xWaveFreq=oops&xWaveOscFreq=99")
	assert.False(t, p.Get("flipX").Bool())
	assert.Equal(t, 0.05, p.Get("xWaveAmp").Value)
	assert.Equal(t, 20.0, p.Get("xWaveFreq").Value, "malformed falls back to default")
	assert.Equal(t, 10.0, p.Get("xWaveOscFreq").Value, "clamped to max")
	assert.Equal(t, 0.0, p.Get("xWaveOscAmp").Value, "absent keeps default")
}

func TestRestoreBooleanOnlyLiteralTrue(t *testing.T) {
	p, _, _ := newTestPanel(t, "")
	for text, want := range map[string]bool{"true": true, "TRUE": false, "1": false, "": false, "yes": false} {
		p.Restore(url.Values{"flipX": {text}})
		assert.Equal(t, want, p.Get("flipX").Bool(), "text %q", text)
	}
}

func TestSaveRestoreRoundTrip(t *testing.T) {
	p, _, _ := newTestPanel(t, "")
	require.NoError(t, p.Set("flipX", 0))
	require.NoError(t, p.Set("xWaveAmp", 0.125))
	require.NoError(t, p.Set("xWaveFreq", 37.5))
	require.NoError(t, p.Set("xWaveOscAmp", 0.3))
	require.NoError(t, p.Set("xWaveOscFreq", 2.2))

	q := p.Query(nil)

	restored, err := NewPanel(DefaultControls(), nil, nil)
	require.NoError(t, err)
	restored.Restore(q)
	for _, s := range p.Settings() {
		assert.Equal(t, s.Value, restored.Get(s.Name).Value, s.Name)
	}
}

func TestQueryWritesEveryKeyAndKeepsOthers(t *testing.T) {
	p, _, _ := newTestPanel(t, "")
	q := p.Query(url.Values{"other": {"x"}})
	assert.Equal(t, "x", q.Get("other"))
	assert.Equal(t, "true", q.Get("flipX"))
	assert.Equal(t, "0", q.Get("xWaveAmp"))
	assert.Equal(t, "20", q.Get("xWaveFreq"))
	assert.Len(t, q, 6)
}

func TestThrottledSaveCollapsesBurst(t *testing.T) {
	p, loc, clock := newTestPanel(t, "")
	replaced := 0
	loc.Observe(func(*url.URL) { replaced++ })

	for i := 1; i <= 5; i++ {
		require.NoError(t, p.Set("xWaveFreq", float64(i)))
		p.RequestSave()
		clock.Advance(10 * time.Millisecond)
	}
	assert.Equal(t, 0, replaced)

	clock.Advance(SaveInterval)
	assert.Equal(t, 1, replaced)
	assert.Equal(t, "5", loc.Query().Get("xWaveFreq"))

	clock.Advance(time.Second)
	assert.Equal(t, 1, replaced)
}

func TestUncheckFlipXPersists(t *testing.T) {
	p, loc, clock := newTestPanel(t, "")
	require.NoError(t, p.Toggle("flipX"))
	p.RequestSave()
	clock.Advance(SaveInterval + time.Millisecond)
	assert.Equal(t, "false", loc.Query().Get("flipX"))
}

func TestFlushRunsPendingSave(t *testing.T) {
	p, loc, _ := newTestPanel(t, "")
	require.NoError(t, p.Set("xWaveAmp", 0.1))
	p.RequestSave()
	p.throttle.Flush()
	assert.Equal(t, "0.1", loc.Query().Get("xWaveAmp"))
}

func TestStepSnapsAndClamps(t *testing.T) {
	p, _, _ := newTestPanel(t, "")
	for i := 0; i < 3; i++ {
		require.NoError(t, p.Step("xWaveOscFreq", 1))
	}
	assert.Equal(t, 1.3, p.Get("xWaveOscFreq").Value)
	require.NoError(t, p.Step("xWaveOscFreq", 1000))
	assert.Equal(t, 10.0, p.Get("xWaveOscFreq").Value)
	require.NoError(t, p.Step("xWaveAmp", -1))
	assert.Equal(t, 0.0, p.Get("xWaveAmp").Value)

	assert.Error(t, p.Step("flipX", 1))
	assert.Error(t, p.Toggle("xWaveAmp"))
	assert.Error(t, p.Set("nope", 1))
}

func TestResetRestoresDefaults(t *testing.T) {
	p, _, _ := newTestPanel(t, "camera-toy:///?flipX=false&xWaveAmp=0.2")
	p.Reset()
	assert.True(t, p.Get("flipX").Bool())
	assert.Equal(t, 0.0, p.Get("xWaveAmp").Value)
}

func TestUnrecognizedControlTypeIsFatal(t *testing.T) {
	controls, err := ParseControls([]byte(`
[[control]]
setting = "flipX"
type = "checkbox"

[[control]]
setting = "color"
type = "color"
`))
	require.NoError(t, err)

	_, err = NewPanel(controls, nil, nil)
	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "color", cfgErr.Setting)
	assert.Equal(t, "color", cfgErr.Type)
}

func TestDuplicateAndInvalidControls(t *testing.T) {
	lo, hi := 1.0, 0.0
	cases := map[string][]Control{
		"duplicate": {{Setting: "a", Type: "range"}, {Setting: "a", Type: "checkbox"}},
		"unnamed":   {{Type: "range"}},
		"range":     {{Setting: "a", Type: "range", Min: &lo, Max: &hi}},
	}
	for name, controls := range cases {
		_, err := NewPanel(controls, nil, nil)
		var cfgErr *ConfigError
		assert.True(t, errors.As(err, &cfgErr), name)
	}
}

func TestNumberControlWithoutRange(t *testing.T) {
	p, err := NewPanel([]Control{{Setting: "gain", Type: "number", Value: 3}}, nil, nil)
	require.NoError(t, err)
	p.Restore(url.Values{"gain": {"-42.5"}})
	assert.Equal(t, -42.5, p.Get("gain").Value)
	assert.Equal(t, "gain=-42.5", p.Summary())
}
