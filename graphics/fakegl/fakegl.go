// Package fakegl is an in-memory graphics.GL that records what was asked of
// it. It compiles nothing; tests choose which shaders and programs fail.
package fakegl

import (
	"strings"
	"sync"

	"github.com/richinsley/cameratoy/graphics"
)

// TexImage is one recorded TexImage2D call.
type TexImage struct {
	Texture       uint32
	Width, Height int32
	Pixels        int
}

// Draw is one recorded DrawArrays call.
type Draw struct {
	Program  uint32
	VAO      uint32
	Texture  uint32
	Mode     uint32
	First    int32
	Count    int32
	Viewport [4]int32
}

// GL implements graphics.GL.
type GL struct {
	mu sync.Mutex

	// CompileFailure, when non-empty, makes every shader whose source
	// contains it fail to compile with CompileLog.
	CompileFailure string
	CompileLog     string
	// LinkLog, when non-empty, makes every link fail with this log.
	LinkLog string
	// Attribs and Uniforms map names to locations. Unknown names return -1.
	Attribs  map[string]int32
	Uniforms map[string]int32

	nextID   uint32
	sources  map[uint32]string
	kinds    map[uint32]uint32
	compiled map[uint32]bool
	linked   map[uint32]bool
	deleted  map[uint32]bool
	attached map[uint32][]uint32

	program  uint32
	vao      uint32
	buffer   uint32
	texture  uint32
	viewport [4]int32

	BufferContents map[uint32][]float32
	AttribPointers map[uint32]uint32 // attribute index -> buffer bound when set
	TexParams      map[uint32]int32
	TexImages      []TexImage
	Draws          []Draw
	FloatUniforms  map[int32]float32
	IntUniforms    map[int32]int32
	Vec2Uniforms   map[int32][2]float32
	Clears         int
}

var _ graphics.GL = (*GL)(nil)

// New returns a fake where a_position, a_texcoord and the standard uniforms
// all resolve.
func New() *GL {
	return &GL{
		Attribs: map[string]int32{"a_position": 0, "a_texcoord": 1},
		Uniforms: map[string]int32{
			"u_time":         1,
			"u_streamSize":   2,
			"u_flipX":        3,
			"u_xWaveAmp":     4,
			"u_xWaveFreq":    5,
			"u_xWaveOscAmp":  6,
			"u_xWaveOscFreq": 7,
			"u_audioLevel":   8,
			"u_texture":      9,
		},
		sources:        map[uint32]string{},
		kinds:          map[uint32]uint32{},
		compiled:       map[uint32]bool{},
		linked:         map[uint32]bool{},
		deleted:        map[uint32]bool{},
		attached:       map[uint32][]uint32{},
		BufferContents: map[uint32][]float32{},
		AttribPointers: map[uint32]uint32{},
		TexParams:      map[uint32]int32{},
		FloatUniforms:  map[int32]float32{},
		IntUniforms:    map[int32]int32{},
		Vec2Uniforms:   map[int32][2]float32{},
	}
}

func (g *GL) id() uint32 {
	g.nextID++
	return g.nextID
}

// Source returns the source text given to a shader.
func (g *GL) Source(shader uint32) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sources[shader]
}

// Deleted reports whether DeleteShader was called for shader.
func (g *GL) Deleted(shader uint32) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.deleted[shader]
}

// DrawCount returns the number of DrawArrays calls so far.
func (g *GL) DrawCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.Draws)
}

// LastDraw returns the most recent draw. It panics if there is none.
func (g *GL) LastDraw() Draw {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.Draws[len(g.Draws)-1]
}

func (g *GL) CreateShader(kind uint32) uint32 {
	g.mu.Lock()
	defer g.mu.Unlock()
	s := g.id()
	g.kinds[s] = kind
	return s
}

func (g *GL) ShaderSource(shader uint32, source string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sources[shader] = source
}

func (g *GL) CompileShader(shader uint32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.compiled[shader] = g.CompileFailure == "" || !strings.Contains(g.sources[shader], g.CompileFailure)
}

func (g *GL) ShaderCompiled(shader uint32) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.compiled[shader]
}

func (g *GL) ShaderInfoLog(shader uint32) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.compiled[shader] {
		return ""
	}
	return g.CompileLog
}

func (g *GL) DeleteShader(shader uint32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.deleted[shader] = true
}

func (g *GL) CreateProgram() uint32 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.id()
}

func (g *GL) AttachShader(program, shader uint32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.attached[program] = append(g.attached[program], shader)
}

func (g *GL) LinkProgram(program uint32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	ok := g.LinkLog == "" && len(g.attached[program]) == 2
	for _, s := range g.attached[program] {
		ok = ok && g.compiled[s]
	}
	g.linked[program] = ok
}

func (g *GL) ProgramLinked(program uint32) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.linked[program]
}

func (g *GL) ProgramInfoLog(program uint32) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.linked[program] {
		return ""
	}
	return g.LinkLog
}

func (g *GL) UseProgram(program uint32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.program = program
}

func (g *GL) GetUniformLocation(program uint32, name string) int32 {
	g.mu.Lock()
	defer g.mu.Unlock()
	if loc, ok := g.Uniforms[name]; ok {
		return loc
	}
	return -1
}

func (g *GL) GetAttribLocation(program uint32, name string) int32 {
	g.mu.Lock()
	defer g.mu.Unlock()
	if loc, ok := g.Attribs[name]; ok {
		return loc
	}
	return -1
}

func (g *GL) GenVertexArray() uint32 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.id()
}

func (g *GL) BindVertexArray(vao uint32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.vao = vao
}

func (g *GL) GenBuffer() uint32 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.id()
}

func (g *GL) BindBuffer(target, buffer uint32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.buffer = buffer
}

func (g *GL) BufferData(target uint32, data []float32, usage uint32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.BufferContents[g.buffer] = append([]float32(nil), data...)
}

func (g *GL) EnableVertexAttribArray(index uint32) {}

func (g *GL) VertexAttribPointer(index uint32, size int32, xtype uint32, normalized bool, stride int32, offset int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.AttribPointers[index] = g.buffer
}

func (g *GL) GenTexture() uint32 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.id()
}

func (g *GL) ActiveTexture(unit uint32) {}

func (g *GL) BindTexture(target, texture uint32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.texture = texture
}

func (g *GL) TexImage2D(target uint32, level, internalFormat, width, height int32, format, xtype uint32, pixels []byte) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.TexImages = append(g.TexImages, TexImage{Texture: g.texture, Width: width, Height: height, Pixels: len(pixels)})
}

func (g *GL) TexParameteri(target, pname uint32, param int32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.TexParams[pname] = param
}

func (g *GL) Uniform1f(location int32, v float32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.FloatUniforms[location] = v
}

func (g *GL) Uniform1i(location int32, v int32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.IntUniforms[location] = v
}

func (g *GL) Uniform2f(location int32, x, y float32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Vec2Uniforms[location] = [2]float32{x, y}
}

func (g *GL) Viewport(x, y, width, height int32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.viewport = [4]int32{x, y, width, height}
}

func (g *GL) ClearColor(r, gr, b, a float32) {}

func (g *GL) Clear(mask uint32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Clears++
}

func (g *GL) DrawArrays(mode uint32, first, count int32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Draws = append(g.Draws, Draw{
		Program:  g.program,
		VAO:      g.vao,
		Texture:  g.texture,
		Mode:     mode,
		First:    first,
		Count:    count,
		Viewport: g.viewport,
	})
}
