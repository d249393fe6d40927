package sylvan

import (
	"fmt"
	"log/slog"

	"github.com/go-gl/mathgl/mgl64"
)

// NodeID is a handle to a node stored in a Graph. The zero value refers to no
// node. A handle goes stale when its node is destroyed; stale handles are
// detected by a generation mismatch.
type NodeID struct {
	index uint32
	gen   uint32
}

// NoNode is the zero NodeID.
var NoNode NodeID

// IsZero reports whether id refers to no node at all.
func (id NodeID) IsZero() bool { return id.gen == 0 }

// Index returns the arena slot of the node. Slots are reused after Destroy.
func (id NodeID) Index() int { return int(id.index) }

func (id NodeID) String() string {
	if id.IsZero() {
		return "node(none)"
	}
	return fmt.Sprintf("node(%d:%d)", id.index, id.gen)
}

// node is one arena slot. Per-kind payloads live side by side; only the field
// matching kind is set.
type node struct {
	name  string
	kind  NodeKind
	gen   uint32
	alive bool

	parent   NodeID
	children []NodeID
	scene    *Scene
	isRoot   bool
	visible  bool

	position mgl64.Vec3
	rotation mgl64.Vec3
	scale    mgl64.Vec3

	local           mgl64.Mat4
	global          mgl64.Mat4
	globalInverse   mgl64.Mat4
	normalMatrix    mgl64.Mat3
	rotationMatrix  mgl64.Mat3
	localInvalid    bool
	globalInvalid   bool
	inverseInvalid  bool
	normalInvalid   bool
	rotationInvalid bool

	renderable *Renderable
	light      *Light
	camera     *Camera

	listeners []listener

	// UserData is arbitrary user data attached to the node.
	userData any
}

// GraphStats counts cache work done by a Graph since the last ResetStats.
type GraphStats struct {
	LocalRecomputes     int
	GlobalRecomputes    int
	GlobalInvalidations int
	InverseRecomputes   int
	NormalRecomputes    int
	RotationRecomputes  int
}

// Graph is an arena of transform nodes. Nodes reference their parent and
// children by NodeID. A Graph is not safe for concurrent use.
type Graph struct {
	nodes  []node
	free   []uint32
	stats  GraphStats
	debug  bool
	logger *slog.Logger
	stack  []NodeID
	chain  []NodeID
	nextLn uint64
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	// Slot 0 is never handed out so the zero NodeID stays invalid.
	return &Graph{nodes: make([]node, 1, 64)}
}

// SetDebug enables tree-depth and child-count warnings on structural changes.
func (g *Graph) SetDebug(enabled bool) { g.debug = enabled }

// SetLogger sets where debug warnings go. A nil logger uses slog.Default.
func (g *Graph) SetLogger(l *slog.Logger) { g.logger = l }

func (g *Graph) log() *slog.Logger {
	if g.logger != nil {
		return g.logger
	}
	return slog.Default()
}

// Stats returns the cache counters.
func (g *Graph) Stats() GraphStats { return g.stats }

// ResetStats zeroes the cache counters.
func (g *Graph) ResetStats() { g.stats = GraphStats{} }

// Len returns the number of live nodes.
func (g *Graph) Len() int { return len(g.nodes) - 1 - len(g.free) }

func nodeDefaults(n *node, name string, kind NodeKind) {
	n.name = name
	n.kind = kind
	n.alive = true
	n.visible = true
	n.scale = mgl64.Vec3{1, 1, 1}
	n.local = mgl64.Ident4()
	n.global = mgl64.Ident4()
	n.globalInverse = mgl64.Ident4()
	n.normalMatrix = mgl64.Ident3()
	n.rotationMatrix = mgl64.Ident3()
	n.localInvalid = true
	n.globalInvalid = true
	n.inverseInvalid = true
	n.normalInvalid = true
	n.rotationInvalid = true
}

func (g *Graph) alloc(name string, kind NodeKind) NodeID {
	var idx uint32
	if k := len(g.free); k > 0 {
		idx = g.free[k-1]
		g.free = g.free[:k-1]
	} else {
		g.nodes = append(g.nodes, node{})
		idx = uint32(len(g.nodes) - 1)
	}
	n := &g.nodes[idx]
	gen := n.gen + 1
	*n = node{children: n.children[:0]}
	n.gen = gen
	nodeDefaults(n, name, kind)
	return NodeID{index: idx, gen: gen}
}

// get returns the slot for id, or nil if id is zero or stale.
func (g *Graph) get(id NodeID) *node {
	if id.gen == 0 || int(id.index) >= len(g.nodes) {
		return nil
	}
	n := &g.nodes[id.index]
	if !n.alive || n.gen != id.gen {
		return nil
	}
	return n
}

// must returns the slot for id and panics on a stale handle.
func (g *Graph) must(id NodeID, op string) *node {
	n := g.get(id)
	if n == nil {
		panic(fmt.Sprintf("sylvan: %s on stale %v", op, id))
	}
	return n
}

// --- Constructors ---

// NewGroup creates a transform-only node with no parent.
func (g *Graph) NewGroup(name string) NodeID {
	return g.alloc(name, NodeKindGroup)
}

// NewMesh creates a node carrying a Renderable that pairs geometry and
// material. Either may be nil; the pipeline substitutes defaults.
func (g *Graph) NewMesh(name string, geometry Geometry, material Material) NodeID {
	id := g.alloc(name, NodeKindMesh)
	g.nodes[id.index].renderable = newRenderable(g, id, geometry, material)
	return id
}

// NewLightNode creates a node carrying light. The light's position and
// direction follow the node's global transform.
func (g *Graph) NewLightNode(name string, light *Light) NodeID {
	if light == nil {
		panic("sylvan: NewLightNode with nil light")
	}
	id := g.alloc(name, NodeKindLight)
	g.nodes[id.index].light = light
	light.graph = g
	light.node = id
	return id
}

// NewCameraNode creates a node that drives cam's view matrix.
func (g *Graph) NewCameraNode(name string, cam *Camera) NodeID {
	if cam == nil {
		panic("sylvan: NewCameraNode with nil camera")
	}
	id := g.alloc(name, NodeKindCamera)
	g.nodes[id.index].camera = cam
	cam.Attach(g, id)
	return id
}

// --- Accessors ---

// Alive reports whether id refers to a live node.
func (g *Graph) Alive(id NodeID) bool { return g.get(id) != nil }

// Name returns the node's name.
func (g *Graph) Name(id NodeID) string { return g.must(id, "Name").name }

// SetName renames the node.
func (g *Graph) SetName(id NodeID, name string) { g.must(id, "SetName").name = name }

// Kind returns what the node carries.
func (g *Graph) Kind(id NodeID) NodeKind { return g.must(id, "Kind").kind }

// Renderable returns the node's renderable, or nil for non-mesh nodes.
func (g *Graph) Renderable(id NodeID) *Renderable { return g.must(id, "Renderable").renderable }

// Light returns the node's light, or nil for non-light nodes.
func (g *Graph) Light(id NodeID) *Light { return g.must(id, "Light").light }

// UserData returns the value set with SetUserData.
func (g *Graph) UserData(id NodeID) any { return g.must(id, "UserData").userData }

// SetUserData attaches arbitrary data to the node.
func (g *Graph) SetUserData(id NodeID, v any) { g.must(id, "SetUserData").userData = v }

// Parent returns the node's parent, or NoNode for roots.
func (g *Graph) Parent(id NodeID) NodeID { return g.must(id, "Parent").parent }

// Children returns the child list. The returned slice MUST NOT be mutated by the caller.
func (g *Graph) Children(id NodeID) []NodeID { return g.must(id, "Children").children }

// NumChildren returns the number of children.
func (g *Graph) NumChildren(id NodeID) int { return len(g.must(id, "NumChildren").children) }

// ChildAt returns the child at the given index.
func (g *Graph) ChildAt(id NodeID, index int) NodeID {
	n := g.must(id, "ChildAt")
	if index < 0 || index >= len(n.children) {
		panic("sylvan: child index out of range")
	}
	return n.children[index]
}

// Scene returns the scene the node currently belongs to, or nil.
func (g *Graph) Scene(id NodeID) *Scene { return g.must(id, "Scene").scene }

// Visible reports the node's own visibility flag.
func (g *Graph) Visible(id NodeID) bool { return g.must(id, "Visible").visible }

// SetVisible hides or shows the node and its subtree. Hidden subtrees are
// skipped by visibility builds.
func (g *Graph) SetVisible(id NodeID, visible bool) {
	n := g.must(id, "SetVisible")
	if n.visible == visible {
		return
	}
	n.visible = visible
	n.scene.invalidatePicks()
}

// Find returns the first node named name in a pre-order walk of root's
// subtree, or NoNode.
func (g *Graph) Find(root NodeID, name string) NodeID {
	found := NoNode
	g.Walk(root, func(id NodeID) bool {
		if g.nodes[id.index].name == name {
			found = id
			return false
		}
		return true
	})
	return found
}

// Walk visits root's subtree in pre-order. Returning false from fn stops the
// walk.
func (g *Graph) Walk(root NodeID, fn func(NodeID) bool) {
	g.must(root, "Walk")
	stack := []NodeID{root}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !fn(id) {
			return
		}
		ch := g.nodes[id.index].children
		for i := len(ch) - 1; i >= 0; i-- {
			stack = append(stack, ch[i])
		}
	}
}

// --- Tree manipulation ---

// SetParent moves child under parent, appending it to parent's children.
// A zero parent detaches child. The graph is left unchanged when an error is
// returned.
func (g *Graph) SetParent(child, parent NodeID) error {
	return g.setParent(child, parent, -1)
}

func (g *Graph) setParent(child, parent NodeID, index int) error {
	c := g.get(child)
	if c == nil {
		return fmt.Errorf("set parent of %v: %w", child, ErrStaleNode)
	}
	if c.isRoot {
		return fmt.Errorf("set parent of %q: %w", c.name, ErrSceneRoot)
	}
	var p *node
	if !parent.IsZero() {
		p = g.get(parent)
		if p == nil {
			return fmt.Errorf("set parent of %q to %v: %w", c.name, parent, ErrStaleNode)
		}
		if g.isAncestor(child, parent) {
			return fmt.Errorf("set parent of %q to %q: %w", c.name, p.name, ErrCycle)
		}
		if index > len(p.children) {
			panic("sylvan: child index out of range")
		}
	}

	oldScene := c.scene
	if old := g.get(c.parent); old != nil {
		old.children = removeID(old.children, child)
	}
	c.parent = parent

	var newScene *Scene
	if p != nil {
		if index < 0 || index == len(p.children) {
			p.children = append(p.children, child)
		} else {
			p.children = append(p.children, NoNode)
			copy(p.children[index+1:], p.children[index:])
			p.children[index] = child
		}
		newScene = p.scene
	}

	if newScene != oldScene {
		g.setSubtreeScene(child, newScene)
	}
	oldScene.invalidatePicks()
	if newScene != oldScene {
		newScene.invalidatePicks()
	}

	// Always cascade from the moved node, whether or not its local changed.
	// An already-invalid node has an invalid subtree, so the short-circuit
	// there is still correct.
	g.invalidateGlobal(child)

	if g.debug {
		g.debugCheckTreeDepth(child)
		if p != nil {
			g.debugCheckChildCount(parent)
		}
	}
	return nil
}

// AddChild appends child to parent's children.
// If child already has a parent, it is removed from that parent first.
// Panics if either handle is stale or child is an ancestor of parent (cycle).
func (g *Graph) AddChild(parent, child NodeID) {
	if parent.IsZero() {
		panic("sylvan: cannot add child to no node")
	}
	if err := g.SetParent(child, parent); err != nil {
		panic(err.Error())
	}
}

// AddChildAt inserts child at the given index among parent's children.
// Same reparenting and cycle-check behavior as AddChild.
func (g *Graph) AddChildAt(parent, child NodeID, index int) {
	if parent.IsZero() {
		panic("sylvan: cannot add child to no node")
	}
	if index < 0 {
		panic("sylvan: child index out of range")
	}
	if c := g.get(child); c != nil && c.parent == parent {
		// Reinserting under the same parent shifts the valid range by one.
		g.SetChildIndex(parent, child, min(index, len(g.nodes[parent.index].children)-1))
		return
	}
	if err := g.setParent(child, parent, index); err != nil {
		panic(err.Error())
	}
}

// RemoveChild detaches child from parent.
// Panics if child's parent is not parent.
func (g *Graph) RemoveChild(parent, child NodeID) {
	c := g.must(child, "RemoveChild")
	if c.parent != parent {
		panic("sylvan: child's parent is not this node")
	}
	_ = g.SetParent(child, NoNode)
}

// RemoveFromParent detaches the node from its parent.
// No-op if the node has no parent.
func (g *Graph) RemoveFromParent(id NodeID) {
	n := g.must(id, "RemoveFromParent")
	if n.parent.IsZero() {
		return
	}
	_ = g.SetParent(id, NoNode)
}

// SetChildIndex moves child to a new index among its siblings.
func (g *Graph) SetChildIndex(parent, child NodeID, index int) {
	p := g.must(parent, "SetChildIndex")
	if g.must(child, "SetChildIndex").parent != parent {
		panic("sylvan: child's parent is not this node")
	}
	nc := len(p.children)
	if index < 0 || index >= nc {
		panic("sylvan: child index out of range")
	}
	oldIndex := -1
	for i, c := range p.children {
		if c == child {
			oldIndex = i
			break
		}
	}
	if oldIndex == index {
		return
	}
	if oldIndex < index {
		copy(p.children[oldIndex:], p.children[oldIndex+1:index+1])
	} else {
		copy(p.children[index+1:], p.children[index:oldIndex])
	}
	p.children[index] = child
	p.scene.invalidatePicks()
}

// --- Disposal ---

// Destroy removes the node from its parent and frees it and all descendants.
// Handles to destroyed nodes become stale. Scene roots cannot be destroyed.
func (g *Graph) Destroy(id NodeID) {
	n := g.get(id)
	if n == nil {
		return
	}
	if n.isRoot {
		panic("sylvan: cannot destroy a scene root")
	}
	n.scene.invalidatePicks()
	if p := g.get(n.parent); p != nil {
		p.children = removeID(p.children, id)
	}
	n.parent = NoNode

	stack := []NodeID{id}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		s := &g.nodes[cur.index]
		stack = append(stack, s.children...)
		if s.renderable != nil {
			s.renderable.detach()
		}
		if s.light != nil {
			s.light.graph = nil
			s.light.node = NoNode
		}
		if s.camera != nil {
			s.camera.Detach()
		}
		children := s.children[:0]
		clear(s.children)
		*s = node{gen: s.gen, children: children}
		g.free = append(g.free, cur.index)
	}
}

// --- Helpers ---

// isAncestor reports whether candidate is id or one of id's ancestors.
func (g *Graph) isAncestor(candidate, id NodeID) bool {
	for p := id; !p.IsZero(); p = g.nodes[p.index].parent {
		if p == candidate {
			return true
		}
	}
	return false
}

// setSubtreeScene updates cached scene membership for id's subtree.
func (g *Graph) setSubtreeScene(id NodeID, s *Scene) {
	stack := append(g.stack[:0], id)
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := &g.nodes[cur.index]
		n.scene = s
		stack = append(stack, n.children...)
	}
	g.stack = stack[:0]
}

// removeID removes id from ids preserving order.
func removeID(ids []NodeID, id NodeID) []NodeID {
	for i, c := range ids {
		if c == id {
			copy(ids[i:], ids[i+1:])
			ids[len(ids)-1] = NoNode
			return ids[:len(ids)-1]
		}
	}
	return ids
}
