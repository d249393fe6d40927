package sylvan

import (
	"github.com/go-gl/mathgl/mgl64"
)

// EntityStore is the interface for optional ECS integration.
// When set on a Scene, pick events are forwarded to the ECS.
type EntityStore interface {
	EmitEvent(event PickEvent)
}

// PickEvent describes a successful Scene.Pick for the ECS bridge.
type PickEvent struct {
	Scene    string
	Node     NodeID
	Name     string
	Distance float64
	Point    mgl64.Vec3
	Normal   mgl64.Vec3
	ScreenX  float64
	ScreenY  float64
}

// Scene is a named root node in a Graph plus the per-camera visibility caches
// built over its subtree.
type Scene struct {
	Name string

	graph *Graph
	root  NodeID
	picks map[*Camera]*PickCache
	store EntityStore
	frame uint64

	raycaster Raycaster
}

// NewScene creates a scene with its own graph.
func NewScene(name string) *Scene {
	return NewGraph().NewScene(name)
}

// NewScene creates a scene rooted at a new node of g. Several scenes may
// share one graph; moving a subtree between their roots moves it between
// scenes.
func (g *Graph) NewScene(name string) *Scene {
	s := &Scene{
		Name:  name,
		graph: g,
		picks: make(map[*Camera]*PickCache),
	}
	s.root = g.alloc(name, NodeKindGroup)
	n := &g.nodes[s.root.index]
	n.isRoot = true
	n.scene = s
	return s
}

// Graph returns the graph holding the scene's nodes.
func (s *Scene) Graph() *Graph { return s.graph }

// Root returns the scene's root node.
func (s *Scene) Root() NodeID { return s.root }

// Add attaches id under the scene root. Panics on the same conditions as
// Graph.AddChild.
func (s *Scene) Add(id NodeID) {
	s.graph.AddChild(s.root, id)
}

// Frame returns the number of BeginFrame calls.
func (s *Scene) Frame() uint64 { return s.frame }

// SetEntityStore sets the optional ECS bridge.
func (s *Scene) SetEntityStore(store EntityStore) {
	s.store = store
}

// Picks returns the visibility cache for cam, creating an empty one on first
// use.
func (s *Scene) Picks(cam *Camera) *PickCache {
	pc, ok := s.picks[cam]
	if !ok {
		pc = newPickCache(s, cam)
		s.picks[cam] = pc
	}
	return pc
}

// ForgetCamera drops the cache held for cam.
func (s *Scene) ForgetCamera(cam *Camera) {
	delete(s.picks, cam)
}

// BeginFrame marks a frame boundary: every pick cache returns to empty so
// the next query rebuilds it against current transforms.
func (s *Scene) BeginFrame() {
	s.frame++
	s.invalidatePicks()
}

// invalidatePicks clears every cache of the scene. Nil-safe so detached
// nodes can call it unconditionally.
func (s *Scene) invalidatePicks() {
	if s == nil {
		return
	}
	for _, pc := range s.picks {
		pc.Clear()
	}
}

// Pick casts a ray from cam through the screen point and returns the closest
// visible renderable hit. A hit is forwarded to the EntityStore when one is
// set.
func (s *Scene) Pick(cam *Camera, sx, sy float64, viewport Rect) (Hit, bool) {
	ray, err := cam.ScreenRay(sx, sy, viewport)
	if err != nil {
		return Hit{}, false
	}
	hit, ok := s.raycaster.PickClosest(ray, s.Picks(cam).Visible())
	if !ok {
		return Hit{}, false
	}
	if s.store != nil {
		s.store.EmitEvent(PickEvent{
			Scene:    s.Name,
			Node:     hit.Node,
			Name:     s.graph.Name(hit.Node),
			Distance: hit.Distance,
			Point:    hit.Point,
			Normal:   hit.Normal,
			ScreenX:  sx,
			ScreenY:  sy,
		})
	}
	return hit, true
}
