package options

import (
	"flag"
	"fmt"

	"github.com/richinsley/cameratoy/capture"
)

// Options are the command-line settings of the camera toy.
type Options struct {
	Help        *bool
	Width       *int
	Height      *int
	Device      *string // ffmpeg capture device, e.g. /dev/video1 or "0"
	Format      *string // ffmpeg input format, overrides the platform default
	FFmpegPath  *string
	CaptureSize *string // preferred capture size, WIDTHxHEIGHT
	FrameRate   *int
	ShaderBase  *string // URL or directory the shader sources are resolved against
	Vertex      *string
	Fragment    *string
	Panel       *string // TOML control panel; empty uses the built-in panel
	URL         *string // initial location, its query restores the settings
	Mic         *bool
	GLES        *bool // translate shaders to ESSL instead of GLSL 4.10
	NoTranslate *bool // hand the sources to the driver untranslated
	AutoStart   *bool
}

// Register defines the flags on fs and returns the options they fill.
func Register(fs *flag.FlagSet) *Options {
	return &Options{
		Help:        fs.Bool("help", false, "Show help message"),
		Width:       fs.Int("width", 1280, "Width of the window"),
		Height:      fs.Int("height", 720, "Height of the window"),
		Device:      fs.String("device", "", "Camera device (platform default if empty)"),
		Format:      fs.String("format", "", "FFmpeg input format (v4l2, avfoundation or dshow by platform)"),
		FFmpegPath:  fs.String("ffmpeg", "", "Path to ffmpeg executable"),
		CaptureSize: fs.String("capture", "1280x720", "Preferred capture size"),
		FrameRate:   fs.Int("fps", 0, "Preferred capture frame rate (device default if 0)"),
		ShaderBase:  fs.String("shaders", "", "Shader base URL or directory (built-in sources if empty)"),
		Vertex:      fs.String("vertex", "camera-toy.vert", "Vertex shader, relative to the shader base"),
		Fragment:    fs.String("fragment", "camera-toy.frag", "Fragment shader, relative to the shader base"),
		Panel:       fs.String("panel", "", "Control panel TOML file (built-in panel if empty)"),
		URL:         fs.String("url", "camera-toy:///", "Initial location; its query string restores the settings"),
		Mic:         fs.Bool("mic", false, "Feed the microphone level to u_audioLevel"),
		GLES:        fs.Bool("gles", false, "Translate shaders to OpenGL ES instead of desktop GLSL"),
		NoTranslate: fs.Bool("no-translate", false, "Compile shader sources without translation"),
		AutoStart:   fs.Bool("start", false, "Start the camera without waiting for a click"),
	}
}

// Constraints returns the preferred capture parameters.
func (o *Options) Constraints() (capture.Constraints, error) {
	var c capture.Constraints
	if _, err := fmt.Sscanf(*o.CaptureSize, "%dx%d", &c.Width, &c.Height); err != nil || c.Width <= 0 || c.Height <= 0 {
		return c, fmt.Errorf("invalid capture size %q, want WIDTHxHEIGHT", *o.CaptureSize)
	}
	c.FrameRate = *o.FrameRate
	return c, nil
}
