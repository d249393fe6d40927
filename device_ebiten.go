package sylvan

import (
	"cmp"
	"errors"
	"fmt"
	"image"
	"math"
	"slices"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"
)

// maxBatchVertices keeps each DrawTriangles call within uint16 indices.
const maxBatchVertices = 65535 - 2

var errNoTarget = errors.New("sylvan: no render target bound")

// ebitenBuffer owns a copy of the CPU data; ebiten has no vertex buffers, so
// projection happens on the CPU at draw time.
type ebitenBuffer struct {
	usage    BufferUsage
	itemSize int
	floats   []float32
	indices  []uint32
}

func (b *ebitenBuffer) Release() {
	b.floats = nil
	b.indices = nil
}

// ebitenFramebuffer is an offscreen ebiten.Image.
type ebitenFramebuffer struct {
	image *ebiten.Image
	w, h  int
}

func (fb *ebitenFramebuffer) Size() (int, int) { return fb.w, fb.h }

func (fb *ebitenFramebuffer) Release() {
	if fb.image != nil {
		fb.image.Deallocate()
		fb.image = nil
	}
}

// Image returns the framebuffer's backing image.
func (fb *ebitenFramebuffer) Image() *ebiten.Image { return fb.image }

// projected is one vertex after the model-view-projection transform.
type projected struct {
	x, y  float32
	ndcX  float64
	ndcY  float64
	depth float64
	ok    bool
}

// screenTri is a triangle ready to rasterize.
type screenTri struct {
	v     [3]int
	depth float64
	color Color
}

// EbitenDevice implements Device on top of ebiten. Vertices are projected on
// the CPU and triangles are depth-sorted per draw, then submitted with
// DrawTriangles. Ebiten restores its own images after a context loss, so this
// device never reports ErrContextLost.
//
// Shading is flat Lambert from Uniforms.LightDir. Uniforms.Shadows is not
// sampled: shadow maps are still rendered into their framebuffers, but
// receivers drawn by this device are unshadowed.
type EbitenDevice struct {
	screen *ebiten.Image
	target *ebiten.Image

	proj  []projected
	tris  []screenTri
	verts []ebiten.Vertex
	inds  []uint16

	triOp    ebiten.DrawTrianglesOptions
	shaderOp ebiten.DrawTrianglesShaderOptions
	colorU   []float32
}

// NewEbitenDevice creates a device. Call SetScreen each frame before
// rendering.
func NewEbitenDevice() *EbitenDevice {
	d := &EbitenDevice{colorU: make([]float32, 4)}
	d.shaderOp.Uniforms = map[string]any{"Color": d.colorU}
	return d
}

// SetScreen sets the default target, normally the image passed to
// ebiten.Game.Draw.
func (d *EbitenDevice) SetScreen(screen *ebiten.Image) {
	d.screen = screen
	d.target = screen
}

// CreateBuffer implements Device.
func (d *EbitenDevice) CreateBuffer(desc BufferDesc) (Buffer, error) {
	b := &ebitenBuffer{usage: desc.Usage, itemSize: desc.ItemSize}
	switch desc.Usage {
	case VertexBuffer:
		if desc.ItemSize <= 0 {
			return nil, fmt.Errorf("sylvan: buffer %q has item size %d", desc.Label, desc.ItemSize)
		}
		b.floats = append([]float32(nil), desc.Floats...)
	case IndexBuffer:
		b.indices = append([]uint32(nil), desc.Indices...)
	}
	return b, nil
}

// CreateFramebuffer implements Device.
func (d *EbitenDevice) CreateFramebuffer(desc FramebufferDesc) (Framebuffer, error) {
	if desc.Width <= 0 || desc.Height <= 0 {
		return nil, fmt.Errorf("sylvan: framebuffer %q has size %dx%d", desc.Label, desc.Width, desc.Height)
	}
	img := ebiten.NewImageWithOptions(image.Rect(0, 0, desc.Width, desc.Height), &ebiten.NewImageOptions{Unmanaged: true})
	return &ebitenFramebuffer{image: img, w: desc.Width, h: desc.Height}, nil
}

// BindFramebuffer implements Device.
func (d *EbitenDevice) BindFramebuffer(fb Framebuffer) error {
	if fb == nil {
		d.target = d.screen
		return nil
	}
	efb, ok := fb.(*ebitenFramebuffer)
	if !ok || efb.image == nil {
		return fmt.Errorf("sylvan: framebuffer %T not created by this device", fb)
	}
	d.target = efb.image
	return nil
}

// Clear implements Device.
func (d *EbitenDevice) Clear(c Color) error {
	if d.target == nil {
		return errNoTarget
	}
	d.target.Fill(c.RGBA())
	return nil
}

// Draw implements Device.
func (d *EbitenDevice) Draw(dc *DrawCall) error {
	if d.target == nil {
		return errNoTarget
	}
	pos, ok := dc.Geometry.Stream(AttributePosition).(*ebitenBuffer)
	if !ok || len(pos.floats) < 3 {
		return nil
	}
	u := dc.Uniforms
	bounds := d.target.Bounds()
	d.project(pos, u.MVP(), float64(bounds.Dx()), float64(bounds.Dy()))

	var indices []uint32
	if ib, ok := dc.Geometry.Index.(*ebitenBuffer); ok {
		indices = ib.indices
	}
	d.assemble(pos, indices, u)
	if len(d.tris) == 0 {
		return nil
	}
	if u.DepthTest {
		sortTrisBackToFront(d.tris)
	}

	if u.Wireframe {
		d.strokeEdges(u.Color)
		return nil
	}
	d.fill(dc.Pass, u)
	return nil
}

// project transforms every position by mvp into target pixel coordinates.
func (d *EbitenDevice) project(pos *ebitenBuffer, mvp mgl64.Mat4, w, h float64) {
	n := len(pos.floats) / pos.itemSize
	if cap(d.proj) < n {
		d.proj = make([]projected, n)
	}
	d.proj = d.proj[:n]
	for i := 0; i < n; i++ {
		base := i * pos.itemSize
		v := mgl64.Vec4{float64(pos.floats[base]), float64(pos.floats[base+1]), float64(pos.floats[base+2]), 1}
		clip := mvp.Mul4x1(v)
		if clip[3] <= 1e-9 {
			d.proj[i] = projected{}
			continue
		}
		nx, ny, nz := clip[0]/clip[3], clip[1]/clip[3], clip[2]/clip[3]
		d.proj[i] = projected{
			x:     float32((nx + 1) * 0.5 * w),
			y:     float32((1 - ny) * 0.5 * h),
			ndcX:  nx,
			ndcY:  ny,
			depth: nz,
			ok:    true,
		}
	}
}

// assemble builds the culled, shaded triangle list.
func (d *EbitenDevice) assemble(pos *ebitenBuffer, indices []uint32, u *Uniforms) {
	d.tris = d.tris[:0]
	count := len(d.proj)
	if indices != nil {
		count = len(indices)
	}
	_, depthOnly := u.Get("depth_only")
	lightDir := u.LightDir
	lit := lightDir.Len() > 0
	if lit {
		lightDir = lightDir.Normalize()
	}

	for t := 0; t+2 < count; t += 3 {
		i0, i1, i2 := t, t+1, t+2
		if indices != nil {
			i0, i1, i2 = int(indices[t]), int(indices[t+1]), int(indices[t+2])
		}
		if i0 >= len(d.proj) || i1 >= len(d.proj) || i2 >= len(d.proj) {
			continue
		}
		a, b, c := d.proj[i0], d.proj[i1], d.proj[i2]
		if !a.ok || !b.ok || !c.ok {
			continue
		}
		area := (b.ndcX-a.ndcX)*(c.ndcY-a.ndcY) - (c.ndcX-a.ndcX)*(b.ndcY-a.ndcY)
		switch u.Cull {
		case CullBack:
			if area <= 0 {
				continue
			}
		case CullFront:
			if area >= 0 {
				continue
			}
		}
		depth := (a.depth + b.depth + c.depth) / 3
		col := u.Color
		switch {
		case depthOnly:
			g := clamp01(depth*0.5 + 0.5)
			col = Color{g, g, g, 1}
		case lit:
			n := faceNormal(pos, i0, i1, i2)
			n = u.NormalMatrix.Mul3x1(n)
			if l := n.Len(); l > 0 {
				n = n.Mul(1 / l)
			}
			lambert := math.Max(0, -n.Dot(lightDir))
			col = col.Scale(0.25 + 0.75*lambert)
		}
		d.tris = append(d.tris, screenTri{v: [3]int{i0, i1, i2}, depth: depth, color: col})
	}
}

func faceNormal(pos *ebitenBuffer, i0, i1, i2 int) mgl64.Vec3 {
	at := func(i int) mgl64.Vec3 {
		b := i * pos.itemSize
		return mgl64.Vec3{float64(pos.floats[b]), float64(pos.floats[b+1]), float64(pos.floats[b+2])}
	}
	a := at(i0)
	return at(i1).Sub(a).Cross(at(i2).Sub(a))
}

// sortTrisBackToFront orders triangles by descending depth, keeping
// submission order for equal depths.
func sortTrisBackToFront(tris []screenTri) {
	slices.SortStableFunc(tris, func(a, b screenTri) int {
		return cmp.Compare(b.depth, a.depth)
	})
}

// fill submits the triangles in batches small enough for uint16 indices.
func (d *EbitenDevice) fill(pass PassKind, u *Uniforms) {
	d.verts = d.verts[:0]
	d.inds = d.inds[:0]
	for _, t := range d.tris {
		if len(d.verts)+3 > maxBatchVertices {
			d.flush(pass, u)
		}
		r, g, b, a := float32(t.color.R*t.color.A), float32(t.color.G*t.color.A), float32(t.color.B*t.color.A), float32(t.color.A)
		for _, vi := range t.v {
			p := d.proj[vi]
			d.inds = append(d.inds, uint16(len(d.verts)))
			d.verts = append(d.verts, ebiten.Vertex{
				DstX: p.x, DstY: p.y,
				SrcX: 0.5, SrcY: 0.5,
				ColorR: r, ColorG: g, ColorB: b, ColorA: a,
			})
		}
	}
	d.flush(pass, u)
}

func (d *EbitenDevice) flush(pass PassKind, u *Uniforms) {
	if len(d.verts) == 0 {
		return
	}
	blend := ebiten.BlendSourceOver
	if u.BlendEnabled {
		blend = u.Blend.EbitenBlend()
	}
	if pass == PassOutline {
		d.colorU[0], d.colorU[1], d.colorU[2], d.colorU[3] =
			float32(u.Color.R), float32(u.Color.G), float32(u.Color.B), float32(u.Color.A)
		d.shaderOp.Blend = blend
		d.target.DrawTrianglesShader(d.verts, d.inds, ensureSolidShader(), &d.shaderOp)
	} else {
		d.triOp.Blend = blend
		d.target.DrawTriangles(d.verts, d.inds, ensureWhitePixel(), &d.triOp)
	}
	d.verts = d.verts[:0]
	d.inds = d.inds[:0]
}

// strokeEdges draws the three edges of every triangle.
func (d *EbitenDevice) strokeEdges(c Color) {
	clr := c.RGBA()
	for _, t := range d.tris {
		for e := 0; e < 3; e++ {
			a, b := d.proj[t.v[e]], d.proj[t.v[(e+1)%3]]
			vector.StrokeLine(d.target, a.x, a.y, b.x, b.y, 1, clr, true)
		}
	}
}
