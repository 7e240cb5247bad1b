package graphics

// GL enum values used by the renderer. The values match the OpenGL headers so
// a binding can pass them through unchanged.
const (
	VertexShader   uint32 = 0x8B31
	FragmentShader uint32 = 0x8B30

	Triangles      uint32 = 0x0004
	ColorBufferBit uint32 = 0x4000

	ArrayBuffer uint32 = 0x8892
	StaticDraw  uint32 = 0x88E4
	Float       uint32 = 0x1406

	Texture2D        uint32 = 0x0DE1
	Texture0         uint32 = 0x84C0
	TextureWrapS     uint32 = 0x2802
	TextureWrapT     uint32 = 0x2803
	TextureMinFilter uint32 = 0x2801
	TextureMagFilter uint32 = 0x2800
	ClampToEdge      int32  = 0x812F
	Linear           int32  = 0x2601
	RGBA             uint32 = 0x1908
	RGBA8            int32  = 0x8058
	UnsignedByte     uint32 = 0x1401
)

// GL is the subset of the OpenGL API the camera toy needs. Locations of -1
// are accepted by the uniform setters and ignored, as OpenGL itself does.
type GL interface {
	CreateShader(kind uint32) uint32
	ShaderSource(shader uint32, source string)
	CompileShader(shader uint32)
	ShaderCompiled(shader uint32) bool
	ShaderInfoLog(shader uint32) string
	DeleteShader(shader uint32)

	CreateProgram() uint32
	AttachShader(program, shader uint32)
	LinkProgram(program uint32)
	ProgramLinked(program uint32) bool
	ProgramInfoLog(program uint32) string
	UseProgram(program uint32)
	GetUniformLocation(program uint32, name string) int32
	GetAttribLocation(program uint32, name string) int32

	GenVertexArray() uint32
	BindVertexArray(vao uint32)
	GenBuffer() uint32
	BindBuffer(target, buffer uint32)
	BufferData(target uint32, data []float32, usage uint32)
	EnableVertexAttribArray(index uint32)
	VertexAttribPointer(index uint32, size int32, xtype uint32, normalized bool, stride int32, offset int)

	GenTexture() uint32
	ActiveTexture(unit uint32)
	BindTexture(target, texture uint32)
	TexImage2D(target uint32, level, internalFormat, width, height int32, format, xtype uint32, pixels []byte)
	TexParameteri(target, pname uint32, param int32)

	Uniform1f(location int32, v float32)
	Uniform1i(location int32, v int32)
	Uniform2f(location int32, x, y float32)

	Viewport(x, y, width, height int32)
	ClearColor(r, g, b, a float32)
	Clear(mask uint32)
	DrawArrays(mode uint32, first, count int32)
}
