package renderer

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/richinsley/cameratoy/graphics"
	"github.com/richinsley/cameratoy/shader"
)

// Uniforms every program may declare besides the settings.
const (
	uniformTime       = "u_time"
	uniformStreamSize = "u_streamSize"
	uniformAudioLevel = "u_audioLevel"
	uniformTexture    = "u_texture"
)

// RenderState is the set of GPU resources the toy draws with. It is built
// once on the UI thread and never rebuilt.
type RenderState struct {
	Program     *shader.Program
	VAO         uint32
	PositionVBO uint32
	TexcoordVBO uint32
	Texture     uint32
	StreamSize  mgl32.Vec2

	positionLoc int32
	texcoordLoc int32
	uniforms    map[string]int32
}

// Uniform returns the location of a uniform, or -1 when the program does
// not declare it.
func (rs *RenderState) Uniform(name string) int32 {
	if loc, ok := rs.uniforms[name]; ok {
		return loc
	}
	return -1
}

// quadCorners are the two triangles of the full-canvas quad in unit
// coordinates, origin bottom left.
var quadCorners = []mgl32.Vec2{
	{0, 0}, {1, 0}, {0, 1},
	{0, 1}, {1, 0}, {1, 1},
}

// quadPositions maps the corners to clip space.
func quadPositions() []float32 {
	out := make([]float32, 0, len(quadCorners)*2)
	for _, c := range quadCorners {
		p := c.Mul(2).Sub(mgl32.Vec2{1, 1})
		out = append(out, p.X(), p.Y())
	}
	return out
}

// quadTexcoords maps the corners to stream pixels. V is flipped so that the
// first row of the frame lands at the top of the canvas.
func quadTexcoords(size mgl32.Vec2) []float32 {
	out := make([]float32, 0, len(quadCorners)*2)
	for _, c := range quadCorners {
		out = append(out, c.X()*size.X(), (1-c.Y())*size.Y())
	}
	return out
}

// newRenderState resolves locations in program and uploads the static
// geometry and the placeholder texture.
func newRenderState(gl graphics.GL, program *shader.Program, settingNames []string, size mgl32.Vec2) (*RenderState, error) {
	rs := &RenderState{
		Program:    program,
		StreamSize: size,
		uniforms:   map[string]int32{},
	}

	rs.positionLoc = program.Attrib(gl, "a_position")
	rs.texcoordLoc = program.Attrib(gl, "a_texcoord")
	if rs.positionLoc < 0 {
		return nil, fmt.Errorf("program has no attribute a_position")
	}
	if rs.texcoordLoc < 0 {
		return nil, fmt.Errorf("program has no attribute a_texcoord")
	}

	names := []string{uniformTime, uniformStreamSize, uniformAudioLevel, uniformTexture}
	for _, name := range settingNames {
		names = append(names, "u_"+name)
	}
	for _, name := range names {
		rs.uniforms[name] = program.Uniform(gl, name)
	}

	rs.VAO = gl.GenVertexArray()
	gl.BindVertexArray(rs.VAO)
	rs.PositionVBO = newAttribBuffer(gl, uint32(rs.positionLoc), quadPositions())
	rs.TexcoordVBO = newAttribBuffer(gl, uint32(rs.texcoordLoc), quadTexcoords(size))
	gl.BindVertexArray(0)

	rs.Texture = gl.GenTexture()
	gl.BindTexture(graphics.Texture2D, rs.Texture)
	gl.TexImage2D(graphics.Texture2D, 0, graphics.RGBA8, 1, 1, graphics.RGBA, graphics.UnsignedByte, []byte{0, 0, 0, 0})
	setTextureParams(gl)
	gl.BindTexture(graphics.Texture2D, 0)
	return rs, nil
}

func newAttribBuffer(gl graphics.GL, index uint32, data []float32) uint32 {
	vbo := gl.GenBuffer()
	gl.BindBuffer(graphics.ArrayBuffer, vbo)
	gl.BufferData(graphics.ArrayBuffer, data, graphics.StaticDraw)
	gl.EnableVertexAttribArray(index)
	gl.VertexAttribPointer(index, 2, graphics.Float, false, 2*4, 0)
	gl.BindBuffer(graphics.ArrayBuffer, 0)
	return vbo
}

// setTextureParams configures the bound texture for non-power-of-two video.
func setTextureParams(gl graphics.GL) {
	gl.TexParameteri(graphics.Texture2D, graphics.TextureWrapS, graphics.ClampToEdge)
	gl.TexParameteri(graphics.Texture2D, graphics.TextureWrapT, graphics.ClampToEdge)
	gl.TexParameteri(graphics.Texture2D, graphics.TextureMinFilter, graphics.Linear)
	gl.TexParameteri(graphics.Texture2D, graphics.TextureMagFilter, graphics.Linear)
}
