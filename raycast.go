package sylvan

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Hit is a ray hit in world space. Distance is measured along the ray's unit
// direction from its origin.
type Hit struct {
	Renderable *Renderable
	Node       NodeID
	Distance   float64
	Point      mgl64.Vec3
	Normal     mgl64.Vec3
	Primitive  int
}

// candidate is a renderable whose world bounds the ray enters.
type candidate struct {
	r     *Renderable
	entry float64
}

// Raycaster finds ray hits among renderables. Its zero value is ready to use;
// it keeps scratch buffers between calls and is not safe for concurrent use.
type Raycaster struct {
	cands   []candidate
	sortBuf []candidate
}

// PickClosest returns the nearest hit among candidates. Renderables without
// geometry or a live node are never hit. Panics if ray has a zero direction.
func (rc *Raycaster) PickClosest(ray Ray, candidates []*Renderable) (Hit, bool) {
	mustDirection(ray)
	cands := rc.broadPhase(ray, candidates)
	rc.sortByEntry(cands)

	best := Hit{Distance: math.Inf(1)}
	found := false
	for _, c := range cands {
		if c.entry > best.Distance {
			break
		}
		if h, ok := narrowPhase(ray, c.r); ok && h.Distance < best.Distance {
			best = h
			found = true
		}
	}
	clear(rc.cands)
	return best, found
}

// PickAll returns every hit among candidates, in no particular order.
func (rc *Raycaster) PickAll(ray Ray, candidates []*Renderable) []Hit {
	mustDirection(ray)
	var hits []Hit
	for _, c := range rc.broadPhase(ray, candidates) {
		if h, ok := narrowPhase(ray, c.r); ok {
			hits = append(hits, h)
		}
	}
	clear(rc.cands)
	return hits
}

func mustDirection(ray Ray) {
	if !(ray.Direction.Len() > 0) {
		panic("sylvan: raycast with zero-length or NaN direction")
	}
}

// broadPhase keeps candidates whose world bounds the ray enters ahead of
// its origin.
func (rc *Raycaster) broadPhase(ray Ray, candidates []*Renderable) []candidate {
	rc.cands = rc.cands[:0]
	for _, r := range candidates {
		if r == nil || r.geometry == nil || !r.attached() {
			continue
		}
		tmin, _, ok := r.WorldBounds().IntersectRay(ray)
		if !ok {
			continue
		}
		rc.cands = append(rc.cands, candidate{r: r, entry: tmin})
	}
	return rc.cands
}

// narrowPhase intersects the ray with the renderable's geometry in local
// space. The local ray keeps the world parameterization, so the geometry's T
// is the world distance.
func narrowPhase(ray Ray, r *Renderable) (Hit, bool) {
	g := r.graph
	local := ray.Transform(g.GlobalInverse(r.node))
	lh, ok := r.geometry.Intersect(local)
	if !ok || lh.T <= 0 {
		return Hit{}, false
	}
	normal := g.GlobalNormalMatrix(r.node).Mul3x1(lh.Normal)
	if l := normal.Len(); l > 0 {
		normal = normal.Mul(1 / l)
	}
	return Hit{
		Renderable: r,
		Node:       r.node,
		Distance:   lh.T,
		Point:      mgl64.TransformCoordinate(lh.Point, g.GlobalMatrix(r.node)),
		Normal:     normal,
		Primitive:  lh.Primitive,
	}, true
}

// sortByEntry orders candidates by ascending entry distance with a stable
// bottom-up merge sort.
func (rc *Raycaster) sortByEntry(s []candidate) {
	n := len(s)
	if n <= 1 {
		return
	}
	if cap(rc.sortBuf) < n {
		rc.sortBuf = make([]candidate, n)
	}
	a, b := s, rc.sortBuf[:n]
	swapped := false
	for width := 1; width < n; width *= 2 {
		for lo := 0; lo < n; lo += 2 * width {
			mid := min(lo+width, n)
			hi := min(lo+2*width, n)
			i, j, k := lo, mid, lo
			for i < mid && j < hi {
				if a[i].entry <= a[j].entry {
					b[k] = a[i]
					i++
				} else {
					b[k] = a[j]
					j++
				}
				k++
			}
			k += copy(b[k:], a[i:mid])
			copy(b[k:], a[j:hi])
		}
		a, b = b, a
		swapped = !swapped
	}
	if swapped {
		copy(s, a)
	}
	clear(rc.sortBuf)
}
