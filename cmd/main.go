package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"runtime"

	glfw "github.com/go-gl/glfw/v3.3/glfw"

	"github.com/richinsley/cameratoy/audio"
	"github.com/richinsley/cameratoy/capture"
	"github.com/richinsley/cameratoy/diagnostics"
	"github.com/richinsley/cameratoy/glcore"
	"github.com/richinsley/cameratoy/glfwcontext"
	"github.com/richinsley/cameratoy/location"
	options "github.com/richinsley/cameratoy/options"
	"github.com/richinsley/cameratoy/renderer"
	"github.com/richinsley/cameratoy/settings"
	"github.com/richinsley/cameratoy/shader"
)

const audioSampleRate = 44100

func init() {
	runtime.LockOSThread()
}

// windowTitle shows the location and the current status.
func windowTitle(loc, status string) string {
	if status == "" {
		return "camera-toy | " + loc
	}
	return fmt.Sprintf("camera-toy | %s | %s", loc, status)
}

func main() {
	opts := options.Register(flag.CommandLine)
	flag.Parse()

	if *opts.Help {
		fmt.Println("Camera Toy: live camera through a shader")
		flag.PrintDefaults()
		return
	}

	constraints, err := opts.Constraints()
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	controls, err := settings.LoadControls(*opts.Panel)
	if err != nil {
		log.Fatalf("Error loading control panel: %v", err)
	}
	loc, err := location.Parse(*opts.URL)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	throttle := settings.NewThrottle(settings.SaveInterval, settings.SystemClock)
	panel, err := settings.NewPanel(controls, loc, throttle)
	if err != nil {
		log.Fatalf("Error building control panel: %v", err)
	}
	log.Printf("Settings: %s", panel.Summary())

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	var translator shader.Translator
	if !*opts.NoTranslate {
		t, err := shader.NewANGLETranslator(ctx, *opts.GLES)
		if err != nil {
			log.Fatalf("Error: %v", err)
		}
		translator = t
	}
	loader, err := shader.NewLoader(*opts.ShaderBase, translator)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	log.Printf("Loading shaders from %s", loader.Base)

	camera := capture.NewFFmpegDevice(*opts.Device, *opts.FFmpegPath)
	camera.Format = *opts.Format

	if err := glfwcontext.InitGraphics(); err != nil {
		log.Fatalf("Failed to initialize graphics: %v", err)
	}
	defer glfwcontext.TerminateGraphics()

	win, err := glfwcontext.New(opts, windowTitle(loc.String(), "click to start"))
	if err != nil {
		log.Fatalf("Failed to create window: %v", err)
	}
	defer win.Shutdown()
	win.MakeCurrent()

	gl, err := glcore.Init()
	if err != nil {
		log.Fatalf("%v", err)
	}
	log.Printf("OpenGL %s", gl.Version())

	// Title state is only touched on the main thread.
	currentURL, status := loc.String(), "click to start"
	setTitle := func() { win.SetTitle(windowTitle(currentURL, status)) }
	loc.Observe(func(u *url.URL) {
		text := u.String()
		win.Post(func() {
			currentURL = text
			setTitle()
		})
	})
	boundary := diagnostics.New(func(text string) {
		win.Post(func() {
			status = text
			setTitle()
		})
	})

	var level renderer.LevelSource
	if *opts.Mic {
		l := audio.OpenLevel(audioSampleRate)
		defer l.Close()
		level = l
	}

	toy := renderer.New(renderer.Config{
		GL:          gl,
		Host:        win,
		Camera:      camera,
		Loader:      loader,
		VertexRef:   *opts.Vertex,
		FragmentRef: *opts.Fragment,
		Panel:       panel,
		Boundary:    boundary,
		Level:       level,
		Constraints: constraints,
	})
	activate := func() {
		if toy.State() == renderer.Idle {
			status = ""
			setTitle()
		}
		toy.Activate(ctx)
	}

	win.OnResize(toy.Resize)
	win.OnClick(func(x, y float64) { activate() })

	keys := newKeyControls(panel)
	win.RegisterKeyCallback(glfw.KeySpace, activate)
	win.RegisterKeyCallback(glfw.KeyF, func() { keys.Toggle("flipX") })
	win.RegisterKeyCallback(glfw.KeyTab, keys.Next)
	win.RegisterRepeatKeyCallback(glfw.KeyUp, func() { keys.Step(1) })
	win.RegisterRepeatKeyCallback(glfw.KeyDown, func() { keys.Step(-1) })
	win.RegisterKeyCallback(glfw.KeyR, keys.Reset)

	if *opts.AutoStart {
		activate()
	}

	log.Println("Starting interactive loop...")
	win.Run(ctx)
	cancel()

	throttle.Flush()
	if err := toy.Close(); err != nil {
		log.Printf("Error closing camera: %v", err)
	}
	log.Printf("Final location: %s", loc)
}
