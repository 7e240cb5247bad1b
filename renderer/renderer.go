// Package renderer is the camera toy itself: it acquires the camera,
// builds the GPU program and draws every video frame through it.
package renderer

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/sync/errgroup"

	"github.com/richinsley/cameratoy/capture"
	"github.com/richinsley/cameratoy/diagnostics"
	"github.com/richinsley/cameratoy/graphics"
	"github.com/richinsley/cameratoy/loop"
	"github.com/richinsley/cameratoy/settings"
	"github.com/richinsley/cameratoy/shader"
)

// Host is the window the toy lives in. Post and RequestFrame must be safe
// to call from any goroutine; their callbacks run on the UI thread.
type Host interface {
	Post(f func())
	RequestFrame(cb loop.FrameFunc)
	// Present shows what was drawn outside a frame callback.
	Present()
}

// LevelSource feeds u_audioLevel.
type LevelSource interface {
	Value() float64
}

// State of the toy. Running is terminal.
type State int32

const (
	Idle State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "idle"
}

// DefaultConstraints is the preferred capture size.
var DefaultConstraints = capture.Constraints{Width: 1280, Height: 720}

// Config holds the collaborators of a CameraToy. Level may be nil.
type Config struct {
	GL          graphics.GL
	Host        Host
	Camera      capture.Device
	Loader      *shader.Loader
	VertexRef   string
	FragmentRef string
	Panel       *settings.Panel
	Boundary    *diagnostics.Boundary
	Level       LevelSource
	Constraints capture.Constraints
}

// CameraToy renders a live camera stream through a shader program.
type CameraToy struct {
	cfg   Config
	state atomic.Int32

	// Owned by the UI thread.
	ctx           context.Context
	rs            *RenderState
	stream        capture.Stream
	width, height int
	startTime     float64
	lastTime      float64
	clockStarted  bool
	frame         []byte
	frameSeq      uint64
}

// New returns an idle toy.
func New(cfg Config) *CameraToy {
	if cfg.VertexRef == "" {
		cfg.VertexRef = shader.DefaultVertex
	}
	if cfg.FragmentRef == "" {
		cfg.FragmentRef = shader.DefaultFragment
	}
	if cfg.Constraints == (capture.Constraints{}) {
		cfg.Constraints = DefaultConstraints
	}
	if cfg.Boundary == nil {
		cfg.Boundary = diagnostics.New(nil)
	}
	return &CameraToy{cfg: cfg}
}

// State reports whether the toy has been started.
func (t *CameraToy) State() State {
	return State(t.state.Load())
}

// RenderState returns the GPU resources, or nil before setup completes.
// UI thread only.
func (t *CameraToy) RenderState() *RenderState {
	return t.rs
}

// Activate starts the toy in the background and reports a failed startup to
// the error boundary. Only the first activation does anything.
func (t *CameraToy) Activate(ctx context.Context) {
	if t.State() != Idle {
		return
	}
	go func() {
		t.cfg.Boundary.Report(t.Start(ctx))
	}()
}

// Start acquires the camera and fetches the shader sources concurrently,
// then builds the render state on the UI thread and starts the render loop.
// It returns once the loop is scheduled. Calls after the first return nil
// and do nothing. A failed startup is not rolled back: the toy stays
// Running with nothing drawn.
func (t *CameraToy) Start(ctx context.Context) error {
	if !t.state.CompareAndSwap(int32(Idle), int32(Running)) {
		return nil
	}
	log.Printf("Starting camera toy...")

	var (
		stream capture.Stream
		src    *shader.Sources
		g      errgroup.Group
	)
	g.Go(func() (err error) {
		stream, err = t.cfg.Camera.Open(ctx, t.cfg.Constraints)
		return err
	})
	g.Go(func() (err error) {
		src, err = t.cfg.Loader.Fetch(ctx, t.cfg.VertexRef, t.cfg.FragmentRef)
		return err
	})
	err := g.Wait()

	result := make(chan error, 1)
	t.cfg.Host.Post(func() {
		t.stream = stream
		if err != nil {
			result <- err
			return
		}
		result <- t.setup(ctx, src)
	})
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *CameraToy) setup(ctx context.Context, src *shader.Sources) error {
	gl := t.cfg.GL
	program, err := t.cfg.Loader.Link(gl, src)
	if err != nil {
		return err
	}

	w, h := t.stream.Size()
	var names []string
	if t.cfg.Panel != nil {
		for _, s := range t.cfg.Panel.Settings() {
			names = append(names, s.Name)
		}
	}
	rs, err := newRenderState(gl, program, names, mgl32.Vec2{float32(w), float32(h)})
	if err != nil {
		return fmt.Errorf("failed to set up render state: %w", err)
	}
	t.rs = rs
	t.ctx = ctx
	log.Printf("Camera toy running: stream %dx%d", w, h)

	t.cfg.Host.RequestFrame(t.onFrame)
	return nil
}

// onFrame draws one frame and schedules the next. The loop ends when the
// start context is cancelled, or when a frame fails or panics; the failure
// goes to the error boundary.
func (t *CameraToy) onFrame(now float64) {
	if err := t.ctx.Err(); err != nil {
		log.Printf("Render loop stopped: %v", err)
		return
	}
	if !t.clockStarted {
		t.startTime = now
		t.clockStarted = true
	}
	t.lastTime = now
	if err := t.cfg.Boundary.Guard(func() error { return t.render(now) }); err != nil {
		log.Printf("Render loop stopped after error")
		return
	}
	t.cfg.Host.RequestFrame(t.onFrame)
}

// Resize records the canvas size in pixels. Once the render state exists
// the toy repaints immediately at the new size and presents it. The clock
// only starts with the first frame callback.
func (t *CameraToy) Resize(width, height int) {
	t.width, t.height = width, height
	if t.rs == nil {
		return
	}
	if err := t.cfg.Boundary.Guard(func() error { return t.render(t.lastTime) }); err != nil {
		return
	}
	t.cfg.Host.Present()
}

// render draws the latest camera frame. It does nothing before setup.
func (t *CameraToy) render(now float64) error {
	rs := t.rs
	if rs == nil {
		return nil
	}
	if err := t.stream.Err(); err != nil {
		return err
	}
	gl := t.cfg.GL
	gl.Viewport(0, 0, int32(t.width), int32(t.height))
	gl.ClearColor(0, 0, 0, 1)
	gl.Clear(graphics.ColorBufferBit)
	gl.UseProgram(rs.Program.ID)
	gl.BindVertexArray(rs.VAO)
	gl.ActiveTexture(graphics.Texture0)
	gl.BindTexture(graphics.Texture2D, rs.Texture)

	if frame, seq := t.stream.Frame(t.frame); frame != nil && seq != t.frameSeq {
		t.frame, t.frameSeq = frame, seq
		gl.TexImage2D(graphics.Texture2D, 0, graphics.RGBA8, int32(rs.StreamSize.X()), int32(rs.StreamSize.Y()),
			graphics.RGBA, graphics.UnsignedByte, frame)
	}
	setTextureParams(gl)

	t.setUniforms(rs, now-t.startTime)
	gl.DrawArrays(graphics.Triangles, 0, 6)

	if t.cfg.Panel != nil {
		t.cfg.Panel.RequestSave()
	}
	return nil
}

func (t *CameraToy) setUniforms(rs *RenderState, elapsed float64) {
	gl := t.cfg.GL
	if loc := rs.Uniform(uniformTime); loc != -1 {
		gl.Uniform1f(loc, float32(elapsed))
	}
	if loc := rs.Uniform(uniformStreamSize); loc != -1 {
		gl.Uniform2f(loc, rs.StreamSize.X(), rs.StreamSize.Y())
	}
	if loc := rs.Uniform(uniformTexture); loc != -1 {
		gl.Uniform1i(loc, 0)
	}
	if loc := rs.Uniform(uniformAudioLevel); loc != -1 {
		var level float64
		if t.cfg.Level != nil {
			level = t.cfg.Level.Value()
		}
		gl.Uniform1f(loc, float32(level))
	}
	if t.cfg.Panel == nil {
		return
	}
	for _, s := range t.cfg.Panel.Settings() {
		loc := rs.Uniform("u_" + s.Name)
		if loc == -1 {
			continue
		}
		if s.Kind == settings.Boolean {
			var v int32
			if s.Bool() {
				v = 1
			}
			gl.Uniform1i(loc, v)
		} else {
			gl.Uniform1f(loc, float32(s.Value))
		}
	}
}

// Close releases the camera stream. UI thread only.
func (t *CameraToy) Close() error {
	if t.stream == nil {
		return nil
	}
	return t.stream.Close()
}
