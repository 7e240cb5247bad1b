package shader

import (
	"errors"
	"fmt"

	"github.com/richinsley/cameratoy/graphics"
)

// ErrShader matches every CompileError and LinkError with errors.Is.
var ErrShader = errors.New("shader error")

// Stage is a programmable pipeline stage.
type Stage int

const (
	Vertex Stage = iota
	Fragment
)

func (s Stage) String() string {
	switch s {
	case Vertex:
		return "vertex"
	case Fragment:
		return "fragment"
	default:
		return fmt.Sprintf("Stage(%d)", int(s))
	}
}

func (s Stage) kind() uint32 {
	if s == Vertex {
		return graphics.VertexShader
	}
	return graphics.FragmentShader
}

// CompileError carries the compiler diagnostic of a stage that failed to
// compile or translate.
type CompileError struct {
	Stage Stage
	Log   string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("failed to compile %s shader: %s", e.Stage, e.Log)
}

func (e *CompileError) Is(target error) bool { return target == ErrShader }

// LinkError carries the linker diagnostic.
type LinkError struct {
	Log string
}

func (e *LinkError) Error() string {
	return fmt.Sprintf("failed to link program: %s", e.Log)
}

func (e *LinkError) Is(target error) bool { return target == ErrShader }

// Program is a linked GPU program.
type Program struct {
	ID    uint32
	names map[string]string
}

func (p *Program) mapped(name string) string {
	if m, ok := p.names[name]; ok && m != "" {
		return m
	}
	return name
}

// Uniform returns the location of the named uniform, or -1.
func (p *Program) Uniform(gl graphics.GL, name string) int32 {
	return gl.GetUniformLocation(p.ID, p.mapped(name))
}

// Attrib returns the location of the named vertex attribute, or -1.
func (p *Program) Attrib(gl graphics.GL, name string) int32 {
	return gl.GetAttribLocation(p.ID, p.mapped(name))
}

// Link compiles both sources and links them. Sources are translated first
// when the loader has a Translator. Shader objects are not released on
// failure.
func (l *Loader) Link(gl graphics.GL, src *Sources) (*Program, error) {
	names := map[string]string{}
	vertex, err := l.compile(gl, Vertex, src.Vertex, names)
	if err != nil {
		return nil, err
	}
	fragment, err := l.compile(gl, Fragment, src.Fragment, names)
	if err != nil {
		return nil, err
	}

	program := gl.CreateProgram()
	gl.AttachShader(program, vertex)
	gl.AttachShader(program, fragment)
	gl.LinkProgram(program)
	if !gl.ProgramLinked(program) {
		return nil, &LinkError{Log: gl.ProgramInfoLog(program)}
	}

	gl.DeleteShader(vertex)
	gl.DeleteShader(fragment)
	return &Program{ID: program, names: names}, nil
}

func (l *Loader) compile(gl graphics.GL, stage Stage, source string, names map[string]string) (uint32, error) {
	if l.Translator != nil {
		t, err := l.Translator.Translate(stage, source)
		if err != nil {
			return 0, &CompileError{Stage: stage, Log: err.Error()}
		}
		source = t.Code
		for k, v := range t.Names {
			names[k] = v
		}
	}

	shader := gl.CreateShader(stage.kind())
	gl.ShaderSource(shader, source)
	gl.CompileShader(shader)
	if !gl.ShaderCompiled(shader) {
		return 0, &CompileError{Stage: stage, Log: gl.ShaderInfoLog(shader)}
	}
	return shader, nil
}
