package sylvan

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// AABB is an axis-aligned bounding box.
type AABB struct {
	Min, Max mgl64.Vec3
}

// Center returns the midpoint of the box.
func (b AABB) Center() mgl64.Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

// Size returns the extent of the box along each axis.
func (b AABB) Size() mgl64.Vec3 {
	return b.Max.Sub(b.Min)
}

// Corners returns the eight corners of the box.
func (b AABB) Corners() [8]mgl64.Vec3 {
	return [8]mgl64.Vec3{
		{b.Min[0], b.Min[1], b.Min[2]},
		{b.Max[0], b.Min[1], b.Min[2]},
		{b.Min[0], b.Max[1], b.Min[2]},
		{b.Max[0], b.Max[1], b.Min[2]},
		{b.Min[0], b.Min[1], b.Max[2]},
		{b.Max[0], b.Min[1], b.Max[2]},
		{b.Min[0], b.Max[1], b.Max[2]},
		{b.Max[0], b.Max[1], b.Max[2]},
	}
}

// Transform returns the box enclosing all eight corners of b after m.
func (b AABB) Transform(m mgl64.Mat4) AABB {
	corners := b.Corners()
	first := mgl64.TransformCoordinate(corners[0], m)
	out := AABB{Min: first, Max: first}
	for _, c := range corners[1:] {
		out = out.Expand(mgl64.TransformCoordinate(c, m))
	}
	return out
}

// Expand returns the smallest box containing b and p.
func (b AABB) Expand(p mgl64.Vec3) AABB {
	for i := 0; i < 3; i++ {
		b.Min[i] = math.Min(b.Min[i], p[i])
		b.Max[i] = math.Max(b.Max[i], p[i])
	}
	return b
}

// Union returns the smallest box containing both b and o.
func (b AABB) Union(o AABB) AABB {
	return b.Expand(o.Min).Expand(o.Max)
}

// Contains reports whether p lies inside the box. Points on a face count.
func (b AABB) Contains(p mgl64.Vec3) bool {
	return p[0] >= b.Min[0] && p[0] <= b.Max[0] &&
		p[1] >= b.Min[1] && p[1] <= b.Max[1] &&
		p[2] >= b.Min[2] && p[2] <= b.Max[2]
}

// IntersectRay runs the slab test. It returns the entry and exit distances
// along the ray; tmin is clamped to zero when the origin is inside the box.
func (b AABB) IntersectRay(r Ray) (tmin, tmax float64, ok bool) {
	tmin = 0
	tmax = math.Inf(1)
	for i := 0; i < 3; i++ {
		o, d := r.Origin[i], r.Direction[i]
		if d == 0 {
			if o < b.Min[i] || o > b.Max[i] {
				return 0, 0, false
			}
			continue
		}
		inv := 1 / d
		t0 := (b.Min[i] - o) * inv
		t1 := (b.Max[i] - o) * inv
		if t0 > t1 {
			t0, t1 = t1, t0
		}
		if t0 > tmin {
			tmin = t0
		}
		if t1 < tmax {
			tmax = t1
		}
		if tmin > tmax {
			return 0, 0, false
		}
	}
	return tmin, tmax, true
}

// Ray is a half-line in 3D. Rays built with NewRay have a unit direction.
type Ray struct {
	Origin    mgl64.Vec3
	Direction mgl64.Vec3
}

// NewRay returns a ray with a normalized direction.
func NewRay(origin, direction mgl64.Vec3) (Ray, error) {
	l := direction.Len()
	if l == 0 || math.IsNaN(l) {
		return Ray{}, ErrZeroDirection
	}
	return Ray{Origin: origin, Direction: direction.Mul(1 / l)}, nil
}

// At returns the point at distance t along the ray.
func (r Ray) At(t float64) mgl64.Vec3 {
	return r.Origin.Add(r.Direction.Mul(t))
}

// Transform maps the ray through m. The direction is not renormalized, so a
// parameter t on the result addresses the same point as t on r.
func (r Ray) Transform(m mgl64.Mat4) Ray {
	return Ray{
		Origin:    mgl64.TransformCoordinate(r.Origin, m),
		Direction: mgl64.TransformNormal(r.Direction, m),
	}
}

// Plane is the set of points p with Normal·p + D = 0.
type Plane struct {
	Normal mgl64.Vec3
	D      float64
}

// Distance returns the signed distance from the plane to p.
func (p Plane) Distance(pt mgl64.Vec3) float64 {
	return p.Normal.Dot(pt) + p.D
}

func (p *Plane) normalize() {
	l := p.Normal.Len()
	if l == 0 {
		return
	}
	p.Normal = p.Normal.Mul(1 / l)
	p.D /= l
}

// Frustum holds six inward-facing planes: left, right, bottom, top, near, far.
type Frustum struct {
	Planes [6]Plane
}

// FrustumFromMatrix extracts the planes of a view-projection matrix using the
// Gribb/Hartmann method. mgl64 matrices are column-major, so row i, column j
// lives at m[i+j*4].
func FrustumFromMatrix(m mgl64.Mat4) Frustum {
	row := func(i int) mgl64.Vec4 {
		return mgl64.Vec4{m[i], m[i+4], m[i+8], m[i+12]}
	}
	r0, r1, r2, r3 := row(0), row(1), row(2), row(3)
	planes := [6]mgl64.Vec4{
		r3.Add(r0),
		r3.Sub(r0),
		r3.Add(r1),
		r3.Sub(r1),
		r3.Add(r2),
		r3.Sub(r2),
	}
	var f Frustum
	for i, v := range planes {
		f.Planes[i] = Plane{Normal: v.Vec3(), D: v[3]}
		f.Planes[i].normalize()
	}
	return f
}

// IntersectsAABB reports whether any part of b may be inside the frustum.
// Boxes straddling a plane are kept.
func (f Frustum) IntersectsAABB(b AABB) bool {
	for _, p := range f.Planes {
		var v mgl64.Vec3
		for i := 0; i < 3; i++ {
			if p.Normal[i] >= 0 {
				v[i] = b.Max[i]
			} else {
				v[i] = b.Min[i]
			}
		}
		if p.Distance(v) < 0 {
			return false
		}
	}
	return true
}

// ContainsPoint reports whether p is on the inner side of every plane.
func (f Frustum) ContainsPoint(pt mgl64.Vec3) bool {
	for _, p := range f.Planes {
		if p.Distance(pt) < 0 {
			return false
		}
	}
	return true
}

// composeTRS builds translate * rotate * scale, with rotation given as Euler
// angles in radians applied in XYZ order.
func composeTRS(pos, rot, scale mgl64.Vec3) mgl64.Mat4 {
	r := mgl64.AnglesToQuat(rot[0], rot[1], rot[2], mgl64.XYZ).Mat4()
	t := mgl64.Translate3D(pos[0], pos[1], pos[2])
	s := mgl64.Scale3D(scale[0], scale[1], scale[2])
	return t.Mul4(r).Mul4(s)
}

// translationOf returns the translation column of an affine matrix.
func translationOf(m mgl64.Mat4) mgl64.Vec3 {
	return mgl64.Vec3{m[12], m[13], m[14]}
}
