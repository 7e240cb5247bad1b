package glfwcontext

import (
	"context"
	"log"
	"runtime"
	"sync/atomic"
	"time"

	glfw "github.com/go-gl/glfw/v3.3/glfw"

	"github.com/richinsley/cameratoy/loop"
	options "github.com/richinsley/cameratoy/options"
)

// idleWait bounds how long the event loop sleeps when nothing is animating.
const idleWait = 250 * time.Millisecond

// Context is a GLFW window that doubles as the toy's host: it runs posted
// tasks and frame callbacks on the main thread, once per display refresh.
type Context struct {
	window *glfw.Window
	queue  *loop.Queue
	closed atomic.Bool
	// A map to store functions to be called on key presses.
	keyCallbacks map[glfw.Key]keyCallback
	clickHandler func(x, y float64)
	resizers     []func(width, height int)
}

type keyCallback struct {
	f      func()
	repeat bool
}

// New creates and initializes a new GLFW window and returns a Context object.
func New(options *options.Options, title string) (*Context, error) {
	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 1)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)
	glfw.WindowHint(glfw.Resizable, glfw.True)

	win, err := glfw.CreateWindow(*options.Width, *options.Height, title, nil, nil)
	if err != nil {
		return nil, err
	}

	c := &Context{
		window:       win,
		keyCallbacks: make(map[glfw.Key]keyCallback),
	}
	c.queue = loop.New(c.wake)
	win.SetKeyCallback(c.glfwKeyCallback)
	win.SetMouseButtonCallback(c.glfwMouseButtonCallback)
	win.SetFramebufferSizeCallback(c.glfwFramebufferSizeCallback)
	return c, nil
}

// RegisterKeyCallback allows the main application to register a function to be
// called when a specific key is pressed.
func (c *Context) RegisterKeyCallback(key glfw.Key, f func()) {
	c.keyCallbacks[key] = keyCallback{f: f}
}

// RegisterRepeatKeyCallback is like RegisterKeyCallback, but f also runs on
// key repeat while the key is held.
func (c *Context) RegisterRepeatKeyCallback(key glfw.Key, f func()) {
	c.keyCallbacks[key] = keyCallback{f: f, repeat: true}
}

// wake interrupts WaitEventsTimeout. Posting to a destroyed window is a no-op.
func (c *Context) wake() {
	if !c.closed.Load() {
		glfw.PostEmptyEvent()
	}
}

// OnClick registers the handler for a left click. x and y are in window
// coordinates.
func (c *Context) OnClick(f func(x, y float64)) {
	c.clickHandler = f
}

// OnResize registers f for framebuffer size changes. f is also called once
// right away with the current size.
func (c *Context) OnResize(f func(width, height int)) {
	c.resizers = append(c.resizers, f)
	f(c.GetFramebufferSize())
}

func (c *Context) glfwKeyCallback(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
	if key == glfw.KeyEscape && action == glfw.Press {
		w.SetShouldClose(true)
	}
	callback, ok := c.keyCallbacks[key]
	if ok && (action == glfw.Press || action == glfw.Repeat && callback.repeat) {
		callback.f()
	}
}

func (c *Context) glfwMouseButtonCallback(w *glfw.Window, button glfw.MouseButton, action glfw.Action, mods glfw.ModifierKey) {
	if button != glfw.MouseButtonLeft || action != glfw.Press || c.clickHandler == nil {
		return
	}
	c.clickHandler(w.GetCursorPos())
}

func (c *Context) glfwFramebufferSizeCallback(w *glfw.Window, width, height int) {
	for _, f := range c.resizers {
		f(width, height)
	}
}

// Post runs f on the main thread. It is safe to call from any goroutine.
func (c *Context) Post(f func()) {
	c.queue.Post(f)
}

// RequestFrame runs cb on the next display refresh.
func (c *Context) RequestFrame(cb loop.FrameFunc) {
	c.queue.RequestFrame(cb)
}

// Present swaps buffers outside the frame loop, e.g. after a repaint during
// a resize.
func (c *Context) Present() {
	c.window.SwapBuffers()
}

// Run is the main-thread event loop. It returns when the window is asked to
// close or ctx is done. Each iteration handles events, runs posted tasks,
// runs the frame callbacks requested before it and presents the frame.
// With no frame pending it sleeps until an event or a Post wakes it.
func (c *Context) Run(ctx context.Context) {
	glfw.SwapInterval(1)
	for !c.ShouldClose() && ctx.Err() == nil {
		c.queue.RunTasks()
		if c.queue.FramePending() {
			c.queue.RunFrame(c.Time())
			c.EndFrame()
			continue
		}
		glfw.WaitEventsTimeout(idleWait.Seconds())
	}
	// Tasks posted during shutdown still see a live context.
	c.queue.RunTasks()
}

// MakeCurrent makes the context current for the calling goroutine.
func (c *Context) MakeCurrent() {
	c.window.MakeContextCurrent()
}

// Shutdown destroys the window.
func (c *Context) Shutdown() {
	c.closed.Store(true)
	c.window.Destroy()
}

func (c *Context) ShouldClose() bool {
	return c.window.ShouldClose()
}

func (c *Context) EndFrame() {
	c.window.SwapBuffers()
	glfw.PollEvents()
}

func (c *Context) GetFramebufferSize() (int, int) {
	return c.window.GetFramebufferSize()
}

func (c *Context) Time() float64 {
	return glfw.GetTime()
}

func (c *Context) SetTitle(title string) {
	c.window.SetTitle(title)
}

// InitGraphics initializes the main graphics subsystem (GLFW). Must be called from the main thread.
func InitGraphics() error {
	runtime.LockOSThread()
	if err := glfw.Init(); err != nil {
		return err
	}
	log.Printf("GLFW Initialized")
	return nil
}

// TerminateGraphics shuts down the graphics subsystem. Must be called from the main thread.
func TerminateGraphics() {
	glfw.Terminate()
	log.Printf("GLFW Terminated")
}
