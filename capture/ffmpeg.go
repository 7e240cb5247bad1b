package capture

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// FFmpegDevice captures from a platform camera through ffmpeg: v4l2 on
// Linux, avfoundation on macOS and dshow on Windows.
type FFmpegDevice struct {
	// Name is the ffmpeg input name of the device. Empty selects the
	// platform default.
	Name string
	// Format overrides the ffmpeg input format.
	Format string
	// FFmpegPath overrides the ffmpeg executable.
	FFmpegPath string
	// FFprobePath overrides the ffprobe executable. Empty uses the ffprobe
	// next to FFmpegPath, or the one on PATH.
	FFprobePath  string
	ProbeTimeout time.Duration

	probe func(device string, timeout time.Duration, args ffmpeg.KwArgs) (string, error)
}

// NewFFmpegDevice returns a device for name, or the platform default camera
// when name is empty.
func NewFFmpegDevice(name, ffmpegPath string) *FFmpegDevice {
	return &FFmpegDevice{
		Name:         name,
		FFmpegPath:   ffmpegPath,
		ProbeTimeout: 10 * time.Second,
	}
}

// ffprobePath returns the ffprobe that ships alongside ffmpegPath.
func ffprobePath(ffmpegPath string) string {
	dir, file := filepath.Split(ffmpegPath)
	name := "ffprobe"
	if strings.EqualFold(filepath.Ext(file), ".exe") {
		name += ".exe"
	}
	return dir + name
}

// probeCommand builds the ffprobe invocation for device, asking for the
// format and streams as JSON.
func probeCommand(ctx context.Context, ffprobe, device string, args ffmpeg.KwArgs) *exec.Cmd {
	kw := ffmpeg.MergeKwArgs([]ffmpeg.KwArgs{{"show_format": "", "show_streams": "", "of": "json"}, args})
	return exec.CommandContext(ctx, ffprobe, append(ffmpeg.ConvertKwargsToCmdLineArgs(kw), device)...)
}

func (d *FFmpegDevice) runProbe(device string, timeout time.Duration, args ffmpeg.KwArgs) (string, error) {
	ctx := context.Background()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	ffprobe := d.FFprobePath
	if ffprobe == "" {
		ffprobe = ffprobePath(d.FFmpegPath)
	}
	var stdout, stderr bytes.Buffer
	cmd := probeCommand(ctx, ffprobe, device, args)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("[%s] %w", stderr.String(), err)
	}
	return stdout.String(), nil
}

func defaultInput(goos string) (format, device string) {
	switch goos {
	case "darwin":
		return "avfoundation", "0"
	case "windows":
		return "dshow", ""
	default:
		return "v4l2", "/dev/video0"
	}
}

func (d *FFmpegDevice) input() (format, device string) {
	format, device = defaultInput(runtime.GOOS)
	if d.Format != "" {
		format = d.Format
	}
	if d.Name != "" {
		device = d.Name
	}
	return format, device
}

func inputArgs(format string, c Constraints) ffmpeg.KwArgs {
	args := ffmpeg.KwArgs{"f": format}
	if c.Width > 0 && c.Height > 0 {
		args["video_size"] = fmt.Sprintf("%dx%d", c.Width, c.Height)
	}
	if c.FrameRate > 0 {
		args["framerate"] = strconv.Itoa(c.FrameRate)
	}
	return args
}

// Open probes the device for its negotiated size and starts an ffmpeg
// process that streams raw RGBA frames of that size.
func (d *FFmpegDevice) Open(ctx context.Context, c Constraints) (Stream, error) {
	format, device := d.input()
	if device == "" {
		return nil, &Error{Op: "open", Device: format, Err: fmt.Errorf("%w: no device name given", ErrNoDevice)}
	}
	in := inputArgs(format, c)

	probe := d.probe
	if probe == nil {
		probe = d.runProbe
	}
	log.Printf("Probing camera '%s' (%s) at %dx%d...", device, format, c.Width, c.Height)
	out, err := probe(device, d.ProbeTimeout, in)
	if err != nil {
		if cerr := classify(err.Error()); cerr != nil {
			err = cerr
		}
		return nil, &Error{Op: "probe", Device: device, Err: err}
	}
	width, height, err := parseProbe(out)
	if err != nil {
		return nil, &Error{Op: "probe", Device: device, Err: err}
	}
	if width != c.Width || height != c.Height {
		log.Printf("Camera negotiated %dx%d instead of %dx%d", width, height, c.Width, c.Height)
	}

	pr, pw := io.Pipe()
	stderr := &tailBuffer{max: 4096}
	node := ffmpeg.Input(device, in).
		Output("pipe:", ffmpeg.KwArgs{
			"f":       "rawvideo",
			"pix_fmt": "rgba",
			"s":       fmt.Sprintf("%dx%d", width, height),
		}).
		WithOutput(pw).
		WithErrorOutput(stderr)
	if d.FFmpegPath != "" {
		node = node.SetFfmpegPath(d.FFmpegPath)
	}

	cmd := node.Compile()
	if err := cmd.Start(); err != nil {
		pw.Close()
		return nil, &Error{Op: "start", Device: device, Err: err}
	}
	log.Printf("Camera capture started: %dx%d", width, height)

	go func() {
		err := cmd.Wait()
		if err != nil {
			log.Printf("FFmpeg capture finished with error: %v", err)
		}
		pw.CloseWithError(io.EOF)
	}()

	kill := func() error {
		if cmd.Process == nil {
			return nil
		}
		if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			return err
		}
		return nil
	}
	stop := context.AfterFunc(ctx, func() { kill() })
	closer := func() error {
		stop()
		err := kill()
		pr.Close()
		return err
	}
	return newStream(pr, width, height, closer, stderr.String), nil
}

type probeResult struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	} `json:"streams"`
}

// parseProbe returns the frame size of the first video stream in ffprobe
// JSON output.
func parseProbe(out string) (int, int, error) {
	var res probeResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		return 0, 0, fmt.Errorf("failed to parse probe output: %w", err)
	}
	for _, s := range res.Streams {
		if s.CodecType == "video" && s.Width > 0 && s.Height > 0 {
			return s.Width, s.Height, nil
		}
	}
	return 0, 0, fmt.Errorf("%w: no video stream reported", ErrNoDevice)
}

var (
	permissionPatterns = []string{"permission denied", "not authorized", "access denied"}
	noDevicePatterns   = []string{"no such file or directory", "no such device", "could not find video device", "input/output error"}
)

// classify maps ffmpeg diagnostics to the capture errors, quoting the line
// that matched. It returns nil when no line matches.
func classify(text string) error {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		lower := strings.ToLower(line)
		for _, p := range permissionPatterns {
			if strings.Contains(lower, p) {
				return fmt.Errorf("%w: %s", ErrPermissionDenied, line)
			}
		}
		for _, p := range noDevicePatterns {
			if strings.Contains(lower, p) {
				return fmt.Errorf("%w: %s", ErrNoDevice, line)
			}
		}
	}
	return nil
}

func lastLine(text string) string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	max int
	buf []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = append([]byte(nil), t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}
