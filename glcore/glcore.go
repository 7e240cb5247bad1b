// Package glcore implements graphics.GL on top of the go-gl OpenGL 4.1 core
// bindings. All methods must be called on the thread that owns the context.
package glcore

import (
	"fmt"
	"strings"
	"sync"

	gl "github.com/go-gl/gl/v4.1-core/gl"

	"github.com/richinsley/cameratoy/graphics"
)

var glInitOnce sync.Once

// Core is the go-gl backed GL implementation.
type Core struct{}

var _ graphics.GL = (*Core)(nil)

// Init loads the OpenGL function pointers for the current context. It is safe
// to call more than once.
func Init() (*Core, error) {
	var initErr error
	glInitOnce.Do(func() {
		initErr = gl.Init()
	})
	if initErr != nil {
		return nil, fmt.Errorf("failed to initialize OpenGL: %w", initErr)
	}
	return &Core{}, nil
}

// Version returns the GL_VERSION string of the current context.
func (c *Core) Version() string {
	return gl.GoStr(gl.GetString(gl.VERSION))
}

func (c *Core) CreateShader(kind uint32) uint32 { return gl.CreateShader(kind) }

func (c *Core) ShaderSource(shader uint32, source string) {
	csources, free := gl.Strs(source + "\x00")
	gl.ShaderSource(shader, 1, csources, nil)
	free()
}

func (c *Core) CompileShader(shader uint32) { gl.CompileShader(shader) }

func (c *Core) ShaderCompiled(shader uint32) bool {
	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	return status != gl.FALSE
}

func (c *Core) ShaderInfoLog(shader uint32) string {
	var logLength int32
	gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &logLength)
	logText := strings.Repeat("\x00", int(logLength+1))
	gl.GetShaderInfoLog(shader, logLength, nil, gl.Str(logText))
	return strings.TrimRight(logText, "\x00")
}

func (c *Core) DeleteShader(shader uint32) { gl.DeleteShader(shader) }

func (c *Core) CreateProgram() uint32 { return gl.CreateProgram() }

func (c *Core) AttachShader(program, shader uint32) { gl.AttachShader(program, shader) }

func (c *Core) LinkProgram(program uint32) { gl.LinkProgram(program) }

func (c *Core) ProgramLinked(program uint32) bool {
	var status int32
	gl.GetProgramiv(program, gl.LINK_STATUS, &status)
	return status != gl.FALSE
}

func (c *Core) ProgramInfoLog(program uint32) string {
	var logLength int32
	gl.GetProgramiv(program, gl.INFO_LOG_LENGTH, &logLength)
	logText := strings.Repeat("\x00", int(logLength+1))
	gl.GetProgramInfoLog(program, logLength, nil, gl.Str(logText))
	return strings.TrimRight(logText, "\x00")
}

func (c *Core) UseProgram(program uint32) { gl.UseProgram(program) }

func (c *Core) GetUniformLocation(program uint32, name string) int32 {
	return gl.GetUniformLocation(program, gl.Str(name+"\x00"))
}

func (c *Core) GetAttribLocation(program uint32, name string) int32 {
	return gl.GetAttribLocation(program, gl.Str(name+"\x00"))
}

func (c *Core) GenVertexArray() uint32 {
	var vao uint32
	gl.GenVertexArrays(1, &vao)
	return vao
}

func (c *Core) BindVertexArray(vao uint32) { gl.BindVertexArray(vao) }

func (c *Core) GenBuffer() uint32 {
	var vbo uint32
	gl.GenBuffers(1, &vbo)
	return vbo
}

func (c *Core) BindBuffer(target, buffer uint32) { gl.BindBuffer(target, buffer) }

func (c *Core) BufferData(target uint32, data []float32, usage uint32) {
	gl.BufferData(target, len(data)*4, gl.Ptr(data), usage)
}

func (c *Core) EnableVertexAttribArray(index uint32) { gl.EnableVertexAttribArray(index) }

func (c *Core) VertexAttribPointer(index uint32, size int32, xtype uint32, normalized bool, stride int32, offset int) {
	gl.VertexAttribPointer(index, size, xtype, normalized, stride, gl.PtrOffset(offset))
}

func (c *Core) GenTexture() uint32 {
	var tex uint32
	gl.GenTextures(1, &tex)
	return tex
}

func (c *Core) ActiveTexture(unit uint32) { gl.ActiveTexture(unit) }

func (c *Core) BindTexture(target, texture uint32) { gl.BindTexture(target, texture) }

func (c *Core) TexImage2D(target uint32, level, internalFormat, width, height int32, format, xtype uint32, pixels []byte) {
	if len(pixels) == 0 {
		gl.TexImage2D(target, level, internalFormat, width, height, 0, format, xtype, nil)
		return
	}
	gl.TexImage2D(target, level, internalFormat, width, height, 0, format, xtype, gl.Ptr(pixels))
}

func (c *Core) TexParameteri(target, pname uint32, param int32) {
	gl.TexParameteri(target, pname, param)
}

func (c *Core) Uniform1f(location int32, v float32) { gl.Uniform1f(location, v) }

func (c *Core) Uniform1i(location int32, v int32) { gl.Uniform1i(location, v) }

func (c *Core) Uniform2f(location int32, x, y float32) { gl.Uniform2f(location, x, y) }

func (c *Core) Viewport(x, y, width, height int32) { gl.Viewport(x, y, width, height) }

func (c *Core) ClearColor(r, g, b, a float32) { gl.ClearColor(r, g, b, a) }

func (c *Core) Clear(mask uint32) { gl.Clear(mask) }

func (c *Core) DrawArrays(mode uint32, first, count int32) { gl.DrawArrays(mode, first, count) }
