package sylvan

import "github.com/go-gl/mathgl/mgl64"

// AttributeKind names a per-vertex data stream.
type AttributeKind uint8

const (
	AttributePosition AttributeKind = iota
	AttributeNormal
	AttributeUV
	AttributeTangent
)

func (k AttributeKind) String() string {
	switch k {
	case AttributePosition:
		return "position"
	case AttributeNormal:
		return "normal"
	case AttributeUV:
		return "uv"
	case AttributeTangent:
		return "tangent"
	default:
		return "unknown"
	}
}

// Attribute is a flat vertex stream with ItemSize floats per vertex.
type Attribute struct {
	Data     []float32
	ItemSize int
}

// Count returns the number of vertices in the stream.
func (a Attribute) Count() int {
	if a.ItemSize <= 0 {
		return 0
	}
	return len(a.Data) / a.ItemSize
}

// Vec3 reads vertex i as a 3-vector. Missing components are zero.
func (a Attribute) Vec3(i int) mgl64.Vec3 {
	var v mgl64.Vec3
	base := i * a.ItemSize
	for c := 0; c < a.ItemSize && c < 3; c++ {
		v[c] = float64(a.Data[base+c])
	}
	return v
}

// LocalHit is a ray hit expressed in the geometry's own space. T is the ray
// parameter of the hit for the ray passed to Intersect.
type LocalHit struct {
	T         float64
	Point     mgl64.Vec3
	Normal    mgl64.Vec3
	Primitive int
}

// Geometry supplies vertex data, bounds, and local-space ray intersection.
type Geometry interface {
	// Attribute returns the named stream, or false if the geometry has none.
	Attribute(kind AttributeKind) (Attribute, bool)
	// Indices returns the triangle index list, or nil for non-indexed data.
	Indices() []uint32
	// Bounds returns the local bounding box. Geometry without positions
	// returns the zero box.
	Bounds() AABB
	// Intersect returns the closest hit with t > 0 along ray.
	Intersect(ray Ray) (LocalHit, bool)
}
