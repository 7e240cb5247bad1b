// Package diagnostics is the top-level error boundary. Errors reported to
// it are logged and rendered as diagnostic text for the user.
package diagnostics

import (
	"errors"
	"fmt"
	"log"
	"runtime/debug"
	"strings"
	"sync"

	"github.com/richinsley/cameratoy/capture"
	"github.com/richinsley/cameratoy/settings"
	"github.com/richinsley/cameratoy/shader"
)

// Boundary collects errors for one component instance.
type Boundary struct {
	show func(text string)

	mu     sync.Mutex
	errors []error
}

// New returns a boundary that passes the diagnostic text of every reported
// error to show. show may be nil.
func New(show func(text string)) *Boundary {
	return &Boundary{show: show}
}

// Report records err. A nil err is ignored.
func (b *Boundary) Report(err error) {
	if err == nil {
		return
	}
	b.mu.Lock()
	b.errors = append(b.errors, err)
	b.mu.Unlock()

	text := Text(err)
	log.Printf("Error: %s", text)
	if b.show != nil {
		b.show(text)
	}
}

// Guard runs f and reports the error it returns or the panic it raises.
func (b *Boundary) Guard(f func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			log.Printf("%s", debug.Stack())
			b.Report(err)
		}
	}()
	err = f()
	b.Report(err)
	return err
}

// Errors returns everything reported so far, oldest first.
func (b *Boundary) Errors() []error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]error(nil), b.errors...)
}

// Text renders err for display. Shader errors include the compiler output.
func Text(err error) string {
	var compileErr *shader.CompileError
	var linkErr *shader.LinkError
	var configErr *settings.ConfigError
	var captureErr *capture.Error
	switch {
	case errors.As(err, &compileErr):
		return fmt.Sprintf("%s shader compile error: %s", compileErr.Stage, firstLine(compileErr.Log))
	case errors.As(err, &linkErr):
		return "shader link error: " + firstLine(linkErr.Log)
	case errors.As(err, &configErr):
		return "configuration error: " + configErr.Error()
	case errors.Is(err, capture.ErrPermissionDenied):
		return "camera access was denied"
	case errors.Is(err, capture.ErrNoDevice):
		return "no camera found"
	case errors.As(err, &captureErr):
		return "camera error: " + captureErr.Err.Error()
	}
	return err.Error()
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
