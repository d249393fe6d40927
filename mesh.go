package sylvan

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Mesh is triangle geometry held in CPU memory. Positions are required for
// drawing and picking; the other streams are optional. Indices may be nil,
// in which case every three positions form a triangle.
type Mesh struct {
	Positions []float32
	Normals   []float32
	UVs       []float32
	Tangents  []float32
	Index     []uint32

	bounds      AABB
	boundsValid bool
}

// NewMesh creates a mesh from xyz positions and an optional index list.
func NewMesh(positions []float32, indices []uint32) *Mesh {
	return &Mesh{Positions: positions, Index: indices}
}

// Attribute implements Geometry.
func (m *Mesh) Attribute(kind AttributeKind) (Attribute, bool) {
	var a Attribute
	switch kind {
	case AttributePosition:
		a = Attribute{Data: m.Positions, ItemSize: 3}
	case AttributeNormal:
		a = Attribute{Data: m.Normals, ItemSize: 3}
	case AttributeUV:
		a = Attribute{Data: m.UVs, ItemSize: 2}
	case AttributeTangent:
		a = Attribute{Data: m.Tangents, ItemSize: 4}
	}
	return a, len(a.Data) > 0
}

// Indices implements Geometry.
func (m *Mesh) Indices() []uint32 { return m.Index }

// InvalidateBounds marks the cached box stale. Call this after modifying
// Positions. Renderables using the mesh cache their own copy; call
// Renderable.InvalidateBounds as well.
func (m *Mesh) InvalidateBounds() {
	m.boundsValid = false
}

// Bounds implements Geometry.
func (m *Mesh) Bounds() AABB {
	if !m.boundsValid {
		m.bounds = computeMeshAABB(m.Positions)
		m.boundsValid = true
	}
	return m.bounds
}

// TriangleCount returns the number of triangles.
func (m *Mesh) TriangleCount() int {
	if m.Index != nil {
		return len(m.Index) / 3
	}
	return len(m.Positions) / 9
}

// Triangle returns the corners of triangle i.
func (m *Mesh) Triangle(i int) (a, b, c mgl64.Vec3) {
	i0, i1, i2 := 3*i, 3*i+1, 3*i+2
	if m.Index != nil {
		i0, i1, i2 = int(m.Index[i0]), int(m.Index[i1]), int(m.Index[i2])
	}
	return m.vertex(i0), m.vertex(i1), m.vertex(i2)
}

func (m *Mesh) vertex(i int) mgl64.Vec3 {
	p := m.Positions[3*i : 3*i+3]
	return mgl64.Vec3{float64(p[0]), float64(p[1]), float64(p[2])}
}

// Intersect implements Geometry with a two-sided Möller–Trumbore test over
// every triangle.
func (m *Mesh) Intersect(ray Ray) (LocalHit, bool) {
	best := LocalHit{T: math.Inf(1), Primitive: -1}
	for i, n := 0, m.TriangleCount(); i < n; i++ {
		a, b, c := m.Triangle(i)
		t, ok := intersectTriangle(ray, a, b, c)
		if !ok || t >= best.T {
			continue
		}
		normal := b.Sub(a).Cross(c.Sub(a))
		if normal.Dot(ray.Direction) > 0 {
			normal = normal.Mul(-1)
		}
		if l := normal.Len(); l > 0 {
			normal = normal.Mul(1 / l)
		}
		best = LocalHit{T: t, Point: ray.At(t), Normal: normal, Primitive: i}
	}
	return best, best.Primitive >= 0
}

const triangleEpsilon = 1e-9

func intersectTriangle(ray Ray, a, b, c mgl64.Vec3) (float64, bool) {
	e1 := b.Sub(a)
	e2 := c.Sub(a)
	p := ray.Direction.Cross(e2)
	det := e1.Dot(p)
	if math.Abs(det) < triangleEpsilon {
		return 0, false
	}
	inv := 1 / det
	s := ray.Origin.Sub(a)
	u := s.Dot(p) * inv
	if u < 0 || u > 1 {
		return 0, false
	}
	q := s.Cross(e1)
	v := ray.Direction.Dot(q) * inv
	if v < 0 || u+v > 1 {
		return 0, false
	}
	t := e2.Dot(q) * inv
	if t <= triangleEpsilon {
		return 0, false
	}
	return t, true
}

// computeMeshAABB scans xyz positions and returns the local bounding box.
// Fewer than one full vertex yields the zero box.
func computeMeshAABB(positions []float32) AABB {
	if len(positions) < 3 {
		return AABB{}
	}
	first := mgl64.Vec3{float64(positions[0]), float64(positions[1]), float64(positions[2])}
	b := AABB{Min: first, Max: first}
	for i := 3; i+2 < len(positions); i += 3 {
		b = b.Expand(mgl64.Vec3{float64(positions[i]), float64(positions[i+1]), float64(positions[i+2])})
	}
	return b
}

// --- Builders ---

// NewBoxMesh creates an axis-aligned box centered on the origin with
// per-face normals and UVs.
func NewBoxMesh(width, height, depth float64) *Mesh {
	hx, hy, hz := float32(width/2), float32(height/2), float32(depth/2)
	type face struct {
		n      [3]float32
		corner [4][3]float32
	}
	faces := [6]face{
		{[3]float32{0, 0, 1}, [4][3]float32{{-hx, -hy, hz}, {hx, -hy, hz}, {hx, hy, hz}, {-hx, hy, hz}}},
		{[3]float32{0, 0, -1}, [4][3]float32{{hx, -hy, -hz}, {-hx, -hy, -hz}, {-hx, hy, -hz}, {hx, hy, -hz}}},
		{[3]float32{1, 0, 0}, [4][3]float32{{hx, -hy, hz}, {hx, -hy, -hz}, {hx, hy, -hz}, {hx, hy, hz}}},
		{[3]float32{-1, 0, 0}, [4][3]float32{{-hx, -hy, -hz}, {-hx, -hy, hz}, {-hx, hy, hz}, {-hx, hy, -hz}}},
		{[3]float32{0, 1, 0}, [4][3]float32{{-hx, hy, hz}, {hx, hy, hz}, {hx, hy, -hz}, {-hx, hy, -hz}}},
		{[3]float32{0, -1, 0}, [4][3]float32{{-hx, -hy, -hz}, {hx, -hy, -hz}, {hx, -hy, hz}, {-hx, -hy, hz}}},
	}
	uv := [4][2]float32{{0, 1}, {1, 1}, {1, 0}, {0, 0}}
	m := &Mesh{}
	for fi, f := range faces {
		for ci, c := range f.corner {
			m.Positions = append(m.Positions, c[0], c[1], c[2])
			m.Normals = append(m.Normals, f.n[0], f.n[1], f.n[2])
			m.UVs = append(m.UVs, uv[ci][0], uv[ci][1])
		}
		base := uint32(fi * 4)
		m.Index = append(m.Index, base, base+1, base+2, base, base+2, base+3)
	}
	return m
}

// NewPlaneMesh creates a square in the XZ plane facing +Y.
func NewPlaneMesh(size float64) *Mesh {
	h := float32(size / 2)
	return &Mesh{
		Positions: []float32{-h, 0, h, h, 0, h, h, 0, -h, -h, 0, -h},
		Normals:   []float32{0, 1, 0, 0, 1, 0, 0, 1, 0, 0, 1, 0},
		UVs:       []float32{0, 1, 1, 1, 1, 0, 0, 0},
		Index:     []uint32{0, 1, 2, 0, 2, 3},
	}
}

// Sphere is a UV-sphere mesh whose ray intersection is solved analytically
// against the ideal sphere instead of its triangles.
type Sphere struct {
	*Mesh
	Radius float64
}

// NewSphere tessellates a sphere of the given radius centered on the origin.
// segments and rings are clamped to at least 3 and 2.
func NewSphere(radius float64, segments, rings int) *Sphere {
	segments = max(segments, 3)
	rings = max(rings, 2)
	m := &Mesh{}
	for r := 0; r <= rings; r++ {
		phi := math.Pi * float64(r) / float64(rings)
		sp, cp := math.Sincos(phi)
		for s := 0; s <= segments; s++ {
			theta := 2 * math.Pi * float64(s) / float64(segments)
			st, ct := math.Sincos(theta)
			nx, ny, nz := float32(sp*ct), float32(cp), float32(sp*st)
			m.Positions = append(m.Positions, nx*float32(radius), ny*float32(radius), nz*float32(radius))
			m.Normals = append(m.Normals, nx, ny, nz)
			m.UVs = append(m.UVs, float32(s)/float32(segments), float32(r)/float32(rings))
		}
	}
	stride := uint32(segments + 1)
	for r := uint32(0); r < uint32(rings); r++ {
		for s := uint32(0); s < uint32(segments); s++ {
			a := r*stride + s
			b := a + stride
			m.Index = append(m.Index, a, a+1, b, a+1, b+1, b)
		}
	}
	return &Sphere{Mesh: m, Radius: radius}
}

// Bounds returns the exact box of the ideal sphere.
func (s *Sphere) Bounds() AABB {
	r := s.Radius
	return AABB{Min: mgl64.Vec3{-r, -r, -r}, Max: mgl64.Vec3{r, r, r}}
}

// Intersect solves the ray-sphere quadratic. The direction need not be unit
// length, so T stays in the caller's parameterization.
func (s *Sphere) Intersect(ray Ray) (LocalHit, bool) {
	o, d := ray.Origin, ray.Direction
	a := d.Dot(d)
	b := o.Dot(d)
	c := o.Dot(o) - s.Radius*s.Radius
	disc := b*b - a*c
	if a == 0 || disc < 0 {
		return LocalHit{}, false
	}
	sq := math.Sqrt(disc)
	t := (-b - sq) / a
	if t <= triangleEpsilon {
		t = (-b + sq) / a
		if t <= triangleEpsilon {
			return LocalHit{}, false
		}
	}
	p := ray.At(t)
	n := p
	if l := n.Len(); l > 0 {
		n = n.Mul(1 / l)
	}
	return LocalHit{T: t, Point: p, Normal: n}, true
}
