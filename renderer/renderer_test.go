package renderer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richinsley/cameratoy/capture"
	"github.com/richinsley/cameratoy/diagnostics"
	"github.com/richinsley/cameratoy/graphics"
	"github.com/richinsley/cameratoy/graphics/fakegl"
	"github.com/richinsley/cameratoy/location"
	"github.com/richinsley/cameratoy/loop"
	"github.com/richinsley/cameratoy/settings"
	"github.com/richinsley/cameratoy/shader"
)

type fakeHost struct {
	q        *loop.Queue
	presents atomic.Int32
}

func newFakeHost() *fakeHost {
	return &fakeHost{q: loop.New(nil)}
}

func (h *fakeHost) Post(f func())                  { h.q.Post(f) }
func (h *fakeHost) RequestFrame(cb loop.FrameFunc) { h.q.RequestFrame(cb) }
func (h *fakeHost) Present()                       { h.presents.Add(1) }

type fakeStream struct {
	w, h int

	mu     sync.Mutex
	frame  []byte
	seq    uint64
	err    error
	closed bool
}

func (s *fakeStream) Size() (int, int) { return s.w, s.h }

func (s *fakeStream) Frame(dst []byte) ([]byte, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frame == nil {
		return nil, 0
	}
	return append(dst[:0], s.frame...), s.seq
}

func (s *fakeStream) push(frame []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frame = frame
	s.seq++
}

func (s *fakeStream) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *fakeStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

type fakeDevice struct {
	stream *fakeStream
	err    error
	opens  atomic.Int32
	got    capture.Constraints
}

func (d *fakeDevice) Open(ctx context.Context, c capture.Constraints) (capture.Stream, error) {
	d.opens.Add(1)
	d.got = c
	if d.err != nil {
		return nil, d.err
	}
	return d.stream, nil
}

type stoppedClock struct{}

type nopTimer struct{}

func (nopTimer) Stop() bool { return true }

func (stoppedClock) AfterFunc(time.Duration, func()) settings.Timer { return nopTimer{} }

type level float64

func (l level) Value() float64 { return float64(l) }

type fixture struct {
	gl       *fakegl.GL
	host     *fakeHost
	device   *fakeDevice
	loc      *location.Location
	throttle *settings.Throttle
	panel    *settings.Panel
	boundary *diagnostics.Boundary
	toy      *CameraToy
}

func newFixture(t *testing.T, w, h int) *fixture {
	t.Helper()
	f := &fixture{
		gl:       fakegl.New(),
		host:     newFakeHost(),
		device:   &fakeDevice{stream: &fakeStream{w: w, h: h}},
		throttle: settings.NewThrottle(settings.SaveInterval, stoppedClock{}),
		boundary: diagnostics.New(nil),
	}
	var err error
	f.loc, err = location.Parse("camera-toy:///?xWaveAmp=0.05")
	require.NoError(t, err)
	f.panel, err = settings.NewPanel(settings.DefaultControls(), f.loc, f.throttle)
	require.NoError(t, err)
	loader, err := shader.NewLoader("", nil)
	require.NoError(t, err)

	f.toy = New(Config{
		GL:       f.gl,
		Host:     f.host,
		Camera:   f.device,
		Loader:   loader,
		Panel:    f.panel,
		Boundary: f.boundary,
		Level:    level(0.25),
	})
	return f
}

// start runs Start while pumping the UI queue until it returns.
func (f *fixture) start(t *testing.T, ctx context.Context) error {
	t.Helper()
	errc := make(chan error, 1)
	go func() { errc <- f.toy.Start(ctx) }()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case err := <-errc:
			return err
		case <-deadline:
			t.Fatal("Start did not return")
		case <-time.After(time.Millisecond):
			f.host.q.RunTasks()
		}
	}
}

func TestResizeBeforeStartDoesNotDraw(t *testing.T) {
	f := newFixture(t, 640, 480)
	f.toy.Resize(800, 600)
	assert.Equal(t, 0, f.gl.DrawCount())
	assert.Zero(t, f.host.presents.Load())
	assert.Nil(t, f.toy.RenderState())
}

func TestRenderWithoutStateIsNoop(t *testing.T) {
	f := newFixture(t, 640, 480)
	require.NoError(t, f.toy.render(1))
	assert.Equal(t, 0, f.gl.DrawCount())
}

func TestStartBuildsStateFromActualStreamSize(t *testing.T) {
	f := newFixture(t, 640, 480)
	require.NoError(t, f.start(t, context.Background()))

	assert.Equal(t, Running, f.toy.State())
	assert.Equal(t, DefaultConstraints, f.device.got)

	rs := f.toy.RenderState()
	require.NotNil(t, rs)
	assert.Equal(t, mgl32.Vec2{640, 480}, rs.StreamSize)
	assert.Equal(t, []float32{-1, -1, 1, -1, -1, 1, -1, 1, 1, -1, 1, 1}, f.gl.BufferContents[rs.PositionVBO])
	assert.Equal(t, []float32{0, 480, 640, 480, 0, 0, 0, 0, 640, 480, 640, 0}, f.gl.BufferContents[rs.TexcoordVBO])
	assert.Equal(t, rs.PositionVBO, f.gl.AttribPointers[0])
	assert.Equal(t, rs.TexcoordVBO, f.gl.AttribPointers[1])

	require.Len(t, f.gl.TexImages, 1)
	assert.Equal(t, fakegl.TexImage{Texture: rs.Texture, Width: 1, Height: 1, Pixels: 4}, f.gl.TexImages[0])
	assert.True(t, f.host.q.FramePending())
	assert.Equal(t, 0, f.gl.DrawCount())
}

func TestStartTwiceOpensOnce(t *testing.T) {
	f := newFixture(t, 640, 480)
	require.NoError(t, f.start(t, context.Background()))
	require.NoError(t, f.toy.Start(context.Background()))
	f.toy.Activate(context.Background())

	assert.Equal(t, int32(1), f.device.opens.Load())
}

func TestConcurrentStartsOpenOnce(t *testing.T) {
	f := newFixture(t, 640, 480)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = f.toy.Start(context.Background())
		}(i)
	}
	f.toy.Activate(context.Background())
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	require.Eventually(t, func() bool {
		f.host.q.RunTasks()
		select {
		case <-done:
			return f.toy.RenderState() != nil
		default:
			return false
		}
	}, 2*time.Second, time.Millisecond)

	assert.Equal(t, []error{nil, nil}, errs)
	assert.Equal(t, int32(1), f.device.opens.Load())
	assert.Equal(t, 1, f.host.q.RunFrame(1))
	assert.Equal(t, 1, f.gl.DrawCount())
	assert.Empty(t, f.boundary.Errors())
}

func TestFrameDrawsAndReschedules(t *testing.T) {
	f := newFixture(t, 2, 1)
	f.toy.Resize(320, 200)
	require.NoError(t, f.start(t, context.Background()))
	f.device.stream.push([]byte{1, 2, 3, 4, 5, 6, 7, 8})

	assert.Equal(t, 1, f.host.q.RunFrame(10))
	assert.Equal(t, 1, f.host.q.RunFrame(10.5))
	assert.True(t, f.host.q.FramePending())

	require.Equal(t, 2, f.gl.DrawCount())
	d := f.gl.LastDraw()
	rs := f.toy.RenderState()
	assert.Equal(t, graphics.Triangles, d.Mode)
	assert.Equal(t, int32(0), d.First)
	assert.Equal(t, int32(6), d.Count)
	assert.Equal(t, rs.Program.ID, d.Program)
	assert.Equal(t, rs.VAO, d.VAO)
	assert.Equal(t, rs.Texture, d.Texture)
	assert.Equal(t, [4]int32{0, 0, 320, 200}, d.Viewport)
	assert.Equal(t, 2, f.gl.Clears)

	// The frame was uploaded once; the second draw reused it.
	require.Len(t, f.gl.TexImages, 2)
	assert.Equal(t, fakegl.TexImage{Texture: rs.Texture, Width: 2, Height: 1, Pixels: 8}, f.gl.TexImages[1])
	assert.Equal(t, graphics.ClampToEdge, f.gl.TexParams[graphics.TextureWrapS])
	assert.Equal(t, graphics.ClampToEdge, f.gl.TexParams[graphics.TextureWrapT])
	assert.Equal(t, graphics.Linear, f.gl.TexParams[graphics.TextureMinFilter])
	assert.Equal(t, graphics.Linear, f.gl.TexParams[graphics.TextureMagFilter])

	assert.InDelta(t, 0.5, f.gl.FloatUniforms[1], 1e-6, "u_time")
	assert.Equal(t, [2]float32{2, 1}, f.gl.Vec2Uniforms[2], "u_streamSize")
	assert.Equal(t, int32(1), f.gl.IntUniforms[3], "u_flipX")
	assert.InDelta(t, 0.05, f.gl.FloatUniforms[4], 1e-6, "u_xWaveAmp")
	assert.InDelta(t, 20, f.gl.FloatUniforms[5], 1e-6, "u_xWaveFreq")
	assert.InDelta(t, 0.25, f.gl.FloatUniforms[8], 1e-6, "u_audioLevel")
	assert.Equal(t, int32(0), f.gl.IntUniforms[9], "u_texture")
}

func TestFrameRequestsSave(t *testing.T) {
	f := newFixture(t, 640, 480)
	require.NoError(t, f.start(t, context.Background()))
	require.NoError(t, f.panel.Toggle("flipX"))

	f.host.q.RunFrame(1)
	f.throttle.Flush()
	assert.Equal(t, "false", f.loc.Query().Get("flipX"))
	assert.Equal(t, "0.05", f.loc.Query().Get("xWaveAmp"))
}

func TestResizeAfterStartRepaintsOnce(t *testing.T) {
	f := newFixture(t, 640, 480)
	require.NoError(t, f.start(t, context.Background()))

	f.toy.Resize(1024, 768)
	assert.Equal(t, 1, f.gl.DrawCount())
	assert.Equal(t, int32(1), f.host.presents.Load())
	assert.Equal(t, [4]int32{0, 0, 1024, 768}, f.gl.LastDraw().Viewport)
}

func TestResizeBeforeFirstFrameDoesNotStartClock(t *testing.T) {
	f := newFixture(t, 640, 480)
	require.NoError(t, f.start(t, context.Background()))

	f.toy.Resize(100, 100)
	assert.InDelta(t, 0, f.gl.FloatUniforms[1], 1e-6, "u_time")

	f.host.q.RunFrame(1000)
	assert.InDelta(t, 0, f.gl.FloatUniforms[1], 1e-6, "u_time")
	f.host.q.RunFrame(1000.5)
	assert.InDelta(t, 0.5, f.gl.FloatUniforms[1], 1e-6, "u_time")

	f.toy.Resize(200, 100)
	assert.InDelta(t, 0.5, f.gl.FloatUniforms[1], 1e-6, "u_time")
	assert.Equal(t, 4, f.gl.DrawCount())
}

func TestLoopStopsOnStreamError(t *testing.T) {
	f := newFixture(t, 640, 480)
	require.NoError(t, f.start(t, context.Background()))

	f.host.q.RunFrame(1)
	assert.Equal(t, 1, f.gl.DrawCount())

	died := &capture.Error{Op: "read", Err: capture.ErrStreamEnded}
	f.device.stream.fail(died)
	f.host.q.RunFrame(2)
	assert.False(t, f.host.q.FramePending())
	assert.Equal(t, 1, f.gl.DrawCount())
	assert.Equal(t, []error{died}, f.boundary.Errors())
}

func TestLoopStopsOnCancel(t *testing.T) {
	f := newFixture(t, 640, 480)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, f.start(t, ctx))

	cancel()
	f.host.q.RunFrame(1)
	assert.False(t, f.host.q.FramePending())
	assert.Equal(t, 0, f.gl.DrawCount())
	assert.Empty(t, f.boundary.Errors())
}

func TestCaptureFailureAbortsStartup(t *testing.T) {
	f := newFixture(t, 640, 480)
	f.device.err = &capture.Error{Op: "probe", Device: "/dev/video0", Err: capture.ErrPermissionDenied}

	err := f.start(t, context.Background())
	assert.True(t, errors.Is(err, capture.ErrPermissionDenied))
	assert.Equal(t, Running, f.toy.State())
	assert.Nil(t, f.toy.RenderState())
	assert.False(t, f.host.q.FramePending())
}

func TestShaderFailureAbortsStartup(t *testing.T) {
	f := newFixture(t, 640, 480)
	f.gl.LinkLog = "link failed"

	err := f.start(t, context.Background())
	var linkErr *shader.LinkError
	require.True(t, errors.As(err, &linkErr))
	assert.Nil(t, f.toy.RenderState())

	require.NoError(t, f.toy.Close())
	assert.True(t, f.device.stream.closed)
}

func TestMissingAttributeAbortsStartup(t *testing.T) {
	f := newFixture(t, 640, 480)
	delete(f.gl.Attribs, "a_texcoord")

	err := f.start(t, context.Background())
	assert.ErrorContains(t, err, "a_texcoord")
}

func TestMissingUniformsAreTolerated(t *testing.T) {
	f := newFixture(t, 640, 480)
	f.gl.Uniforms = map[string]int32{}
	require.NoError(t, f.start(t, context.Background()))

	f.host.q.RunFrame(1)
	assert.Equal(t, 1, f.gl.DrawCount())
	assert.Empty(t, f.gl.FloatUniforms)
}

func TestActivateReportsFailure(t *testing.T) {
	f := newFixture(t, 640, 480)
	f.device.err = &capture.Error{Op: "open", Err: capture.ErrNoDevice}

	f.toy.Activate(context.Background())
	require.Eventually(t, func() bool {
		f.host.q.RunTasks()
		return len(f.boundary.Errors()) == 1
	}, 2*time.Second, time.Millisecond)
	assert.True(t, errors.Is(f.boundary.Errors()[0], capture.ErrNoDevice))
}
