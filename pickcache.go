package sylvan

import (
	"math"

	"github.com/willf/bitset"
)

// PickState is the lifecycle state of a PickCache.
type PickState uint8

const (
	PickEmpty PickState = iota // no lists; the next query builds
	PickBuilt                  // lists reflect the last build
)

func (s PickState) String() string {
	if s == PickBuilt {
		return "built"
	}
	return "empty"
}

// pickEntry is one visible renderable with its sort key.
type pickEntry struct {
	r         *Renderable
	distSq    float64
	treeOrder int
}

// PickCache holds the visible renderables of one scene as seen by one
// camera, split into opaque (near to far) and transparent (far to near)
// lists. It is built lazily on first query and reset by Clear.
type PickCache struct {
	scene *Scene
	cam   *Camera
	state PickState

	visible     []pickEntry
	opaque      []pickEntry
	transparent []pickEntry
	sortBuf     []pickEntry
	lights      []*Light

	visibleR     []*Renderable
	opaqueR      []*Renderable
	transparentR []*Renderable

	members *bitset.BitSet
	dist    map[*Renderable]float64
	stack   []NodeID
	builds  int
}

func newPickCache(s *Scene, cam *Camera) *PickCache {
	return &PickCache{
		scene:   s,
		cam:     cam,
		members: bitset.New(64),
		dist:    make(map[*Renderable]float64),
	}
}

// State returns whether the cache is built.
func (pc *PickCache) State() PickState { return pc.state }

// Builds returns how many times the cache has been rebuilt.
func (pc *PickCache) Builds() int { return pc.builds }

// Camera returns the camera the cache is built for.
func (pc *PickCache) Camera() *Camera { return pc.cam }

// Clear discards the lists. The next query rebuilds them.
func (pc *PickCache) Clear() {
	if pc.state == PickEmpty {
		return
	}
	pc.state = PickEmpty
	pc.visible = pc.visible[:0]
	pc.opaque = pc.opaque[:0]
	pc.transparent = pc.transparent[:0]
	clear(pc.lights)
	pc.lights = pc.lights[:0]
	pc.members.ClearAll()
	clear(pc.dist)
}

// Visible returns every visible renderable in traversal order.
// The returned slice MUST NOT be mutated and is valid until the next Clear.
func (pc *PickCache) Visible() []*Renderable {
	pc.ensure()
	return pc.visibleR
}

// Opaque returns the non-blending visible renderables, nearest first.
func (pc *PickCache) Opaque() []*Renderable {
	pc.ensure()
	return pc.opaqueR
}

// Transparent returns the blending visible renderables, farthest first.
func (pc *PickCache) Transparent() []*Renderable {
	pc.ensure()
	return pc.transparentR
}

// Lights returns the enabled lights in visible subtrees, in traversal order.
func (pc *PickCache) Lights() []*Light {
	pc.ensure()
	return pc.lights
}

// Contains reports whether the node's renderable is in the visible set.
func (pc *PickCache) Contains(id NodeID) bool {
	pc.ensure()
	if !pc.members.Test(uint(id.index)) {
		return false
	}
	n := pc.scene.graph.get(id)
	return n != nil && n.renderable != nil
}

// DistanceSq returns the squared camera distance recorded for r during the
// build, and false if r is not visible.
func (pc *PickCache) DistanceSq(r *Renderable) (float64, bool) {
	pc.ensure()
	d, ok := pc.dist[r]
	return d, ok
}

// InScreenRect returns the visible renderables whose projected world bounds
// overlap rect. Bounds entirely behind the camera are skipped.
func (pc *PickCache) InScreenRect(rect, viewport Rect) []*Renderable {
	pc.ensure()
	var out []*Renderable
	for _, e := range pc.visible {
		minX, minY := math.Inf(1), math.Inf(1)
		maxX, maxY := math.Inf(-1), math.Inf(-1)
		projected := false
		for _, c := range e.r.WorldBounds().Corners() {
			sx, sy, ok := pc.cam.WorldToScreen(c, viewport)
			if !ok {
				continue
			}
			projected = true
			minX, maxX = math.Min(minX, sx), math.Max(maxX, sx)
			minY, maxY = math.Min(minY, sy), math.Max(maxY, sy)
		}
		if !projected {
			continue
		}
		if rect.Intersects(Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}) {
			out = append(out, e.r)
		}
	}
	return out
}

func (pc *PickCache) ensure() {
	if pc.state == PickEmpty {
		pc.build()
	}
}

// build walks the scene root depth first, skipping hidden subtrees, keeps
// enabled renderables whose world bounds touch the frustum, then partitions
// and sorts them.
func (pc *PickCache) build() {
	g := pc.scene.graph
	frustum := pc.cam.Frustum()
	eye := pc.cam.Position()

	pc.visible = pc.visible[:0]
	pc.opaque = pc.opaque[:0]
	pc.transparent = pc.transparent[:0]
	pc.lights = pc.lights[:0]
	pc.members.ClearAll()
	clear(pc.dist)

	order := 0
	stack := append(pc.stack[:0], pc.scene.root)
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := &g.nodes[id.index]
		if !n.visible {
			continue
		}
		if n.light != nil && n.light.Enabled {
			pc.lights = append(pc.lights, n.light)
		}
		if r := n.renderable; r != nil && r.enabled && frustum.IntersectsAABB(r.WorldBounds()) {
			d := g.WorldPosition(id).Sub(eye)
			e := pickEntry{r: r, distSq: d.Dot(d), treeOrder: order}
			order++
			pc.visible = append(pc.visible, e)
			if r.Transparent() {
				pc.transparent = append(pc.transparent, e)
			} else {
				pc.opaque = append(pc.opaque, e)
			}
			pc.members.Set(uint(id.index))
			pc.dist[r] = e.distSq
		}
		for i := len(n.children) - 1; i >= 0; i-- {
			stack = append(stack, n.children[i])
		}
	}
	pc.stack = stack[:0]

	pc.mergeSort(pc.opaque, nearerOrEqual)
	pc.mergeSort(pc.transparent, fartherOrEqual)

	pc.visibleR = collect(pc.visibleR, pc.visible)
	pc.opaqueR = collect(pc.opaqueR, pc.opaque)
	pc.transparentR = collect(pc.transparentR, pc.transparent)

	pc.state = PickBuilt
	pc.builds++
}

func collect(dst []*Renderable, src []pickEntry) []*Renderable {
	clear(dst)
	dst = dst[:0]
	for _, e := range src {
		dst = append(dst, e.r)
	}
	return dst
}

// --- Merge sort ---

// nearerOrEqual orders ascending by distance. Using <= for treeOrder keeps
// equal distances in traversal order.
func nearerOrEqual(a, b pickEntry) bool {
	if a.distSq != b.distSq {
		return a.distSq < b.distSq
	}
	return a.treeOrder <= b.treeOrder
}

// fartherOrEqual orders descending by distance, stable on traversal order.
func fartherOrEqual(a, b pickEntry) bool {
	if a.distSq != b.distSq {
		return a.distSq > b.distSq
	}
	return a.treeOrder <= b.treeOrder
}

// mergeSort sorts s in place using pc.sortBuf as scratch space.
// Bottom-up merge sort: zero allocations after the sort buffer reaches high-water mark.
func (pc *PickCache) mergeSort(s []pickEntry, lessOrEqual func(a, b pickEntry) bool) {
	n := len(s)
	if n <= 1 {
		return
	}
	if cap(pc.sortBuf) < n {
		pc.sortBuf = make([]pickEntry, n)
	}
	buf := pc.sortBuf[:n]

	a, b := s, buf
	swapped := false
	for width := 1; width < n; width *= 2 {
		for i := 0; i < n; i += 2 * width {
			lo := i
			mid := min(lo+width, n)
			hi := min(lo+2*width, n)
			mergeRun(a, b, lo, mid, hi, lessOrEqual)
		}
		a, b = b, a
		swapped = !swapped
	}
	if swapped {
		copy(s, buf)
	}
	clear(buf)
}

// mergeRun merges two sorted runs [lo, mid) and [mid, hi) from src into dst.
func mergeRun(src, dst []pickEntry, lo, mid, hi int, lessOrEqual func(a, b pickEntry) bool) {
	i, j, k := lo, mid, lo
	for i < mid && j < hi {
		if lessOrEqual(src[i], src[j]) {
			dst[k] = src[i]
			i++
		} else {
			dst[k] = src[j]
			j++
		}
		k++
	}
	for i < mid {
		dst[k] = src[i]
		i++
		k++
	}
	for j < hi {
		dst[k] = src[j]
		j++
		k++
	}
}
