package sylvan

// BufferUsage tells the device how a buffer is bound.
type BufferUsage uint8

const (
	VertexBuffer BufferUsage = iota
	IndexBuffer
)

// BufferDesc is the CPU-side description a buffer is created from. The
// slices are not copied; devices must not retain them past CreateBuffer
// unless they own the data for the buffer's lifetime.
type BufferDesc struct {
	Label    string
	Usage    BufferUsage
	ItemSize int
	Floats   []float32
	Indices  []uint32
}

// Buffer is a device-side vertex or index buffer.
type Buffer interface {
	Release()
}

// FramebufferDesc describes an offscreen render target.
type FramebufferDesc struct {
	Label         string
	Width, Height int
	DepthOnly     bool
}

// Framebuffer is an offscreen render target.
type Framebuffer interface {
	Size() (width, height int)
	Release()
}

// GPUGeometry is a geometry's uploaded buffers. Streams the geometry does not
// provide are nil.
type GPUGeometry struct {
	Geometry Geometry
	Streams  [4]Buffer
	Index    Buffer
	// Count is the number of vertices, or of indices when Index is set.
	Count int
}

// Stream returns the buffer for kind, or nil.
func (gg *GPUGeometry) Stream(kind AttributeKind) Buffer {
	return gg.Streams[kind]
}

func (gg *GPUGeometry) release() {
	for i, b := range gg.Streams {
		if b != nil {
			b.Release()
			gg.Streams[i] = nil
		}
	}
	if gg.Index != nil {
		gg.Index.Release()
		gg.Index = nil
	}
}

// DrawCall is one draw submitted to a Device. The pipeline reuses the
// DrawCall and its Uniforms for every draw, so both are only valid until
// Draw returns; a device that defers work must copy what it needs.
type DrawCall struct {
	Pass     PassKind
	Geometry *GPUGeometry
	Uniforms *Uniforms
}

// Device is the graphics backend the pipeline drives. Any method may return
// ErrContextLost, after which the pipeline stops submitting until the
// RenderContext is restored.
type Device interface {
	CreateBuffer(desc BufferDesc) (Buffer, error)
	CreateFramebuffer(desc FramebufferDesc) (Framebuffer, error)
	// BindFramebuffer directs subsequent draws to fb, or to the default
	// target when fb is nil.
	BindFramebuffer(fb Framebuffer) error
	Clear(c Color) error
	Draw(dc *DrawCall) error
}
