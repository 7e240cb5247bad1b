// Package capture delivers live camera frames. Frames are produced by an
// ffmpeg process reading the platform capture device and decoded to RGBA.
package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
)

var (
	ErrPermissionDenied = errors.New("camera permission denied")
	ErrNoDevice         = errors.New("no camera device")
	ErrStreamEnded      = errors.New("camera stream ended")
)

// Error describes a failed capture operation.
type Error struct {
	Op     string
	Device string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("capture %s %s: %v", e.Op, e.Device, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Constraints are the preferred capture parameters. The device may deliver
// something else; Stream.Size reports what it actually delivers.
type Constraints struct {
	Width     int
	Height    int
	FrameRate int
}

// Stream is a live video stream.
type Stream interface {
	// Size is the actual negotiated frame size.
	Size() (width, height int)
	// Frame copies the most recent RGBA frame into dst, growing it as
	// needed, and returns it with its sequence number. It returns nil and 0
	// before the first frame arrives.
	Frame(dst []byte) ([]byte, uint64)
	// Err returns the error that ended the stream, or nil while it is live.
	Err() error
	Close() error
}

// Device opens streams.
type Device interface {
	Open(ctx context.Context, c Constraints) (Stream, error)
}

type stream struct {
	width, height int

	mu     sync.Mutex
	latest []byte
	seq    uint64
	err    error

	closeOnce sync.Once
	closer    func() error
	// errText returns extra diagnostic text for a stream that ended.
	errText func() string
}

// newStream starts reading width*height RGBA frames from r.
func newStream(r io.Reader, width, height int, closer func() error, errText func() string) *stream {
	s := &stream{
		width:   width,
		height:  height,
		closer:  closer,
		errText: errText,
	}
	go s.read(r)
	return s
}

func (s *stream) read(r io.Reader) {
	frameSize := s.width * s.height * 4
	buf := make([]byte, frameSize)
	for {
		if _, err := io.ReadFull(r, buf); err != nil {
			s.finish(err)
			return
		}
		s.mu.Lock()
		buf, s.latest = s.latest, buf
		s.seq++
		s.mu.Unlock()
		if buf == nil {
			buf = make([]byte, frameSize)
		}
	}
}

func (s *stream) finish(err error) {
	detail := ""
	if s.errText != nil {
		detail = s.errText()
	}
	ended := ErrStreamEnded
	if cerr := classify(detail); cerr != nil {
		ended = cerr
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.ErrClosedPipe) {
		err = nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case err != nil:
		s.err = fmt.Errorf("%w: %v", ended, err)
	case detail != "":
		s.err = fmt.Errorf("%w: %s", ended, lastLine(detail))
	default:
		s.err = ended
	}
}

func (s *stream) Size() (int, int) {
	return s.width, s.height
}

func (s *stream) Frame(dst []byte) ([]byte, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest == nil {
		return nil, 0
	}
	if cap(dst) < len(s.latest) {
		dst = make([]byte, len(s.latest))
	}
	dst = dst[:len(s.latest)]
	copy(dst, s.latest)
	return dst, s.seq
}

func (s *stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *stream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if s.closer != nil {
			err = s.closer()
		}
	})
	return err
}
