package sylvan

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Column vectors throughout: a node's global matrix is parent * local, so a
// point is first moved by the local transform and then by each ancestor.

// listener is an invalidation subscription on a single node.
type listener struct {
	id uint64
	fn func(NodeID)
}

// Subscription identifies a registered invalidation callback.
// Call Remove to unregister it.
type Subscription struct {
	g    *Graph
	node NodeID
	id   uint64
}

// Remove unregisters the callback. Safe to call more than once and after the
// node has been destroyed.
func (s Subscription) Remove() {
	if s.g == nil {
		return
	}
	n := s.g.get(s.node)
	if n == nil {
		return
	}
	for i, l := range n.listeners {
		if l.id == s.id {
			n.listeners = append(n.listeners[:i], n.listeners[i+1:]...)
			return
		}
	}
}

// Subscribe registers fn to be called each time the node's global transform
// goes from valid to invalid. Callbacks run during the invalidation cascade
// and must not modify the graph.
func (g *Graph) Subscribe(id NodeID, fn func(NodeID)) Subscription {
	n := g.must(id, "Subscribe")
	g.nextLn++
	n.listeners = append(n.listeners, listener{id: g.nextLn, fn: fn})
	return Subscription{g: g, node: id, id: g.nextLn}
}

// --- Local state ---

// SetLocal replaces the node's translation, Euler rotation (radians, XYZ
// order) and scale.
func (g *Graph) SetLocal(id NodeID, position, rotation, scale mgl64.Vec3) {
	n := g.must(id, "SetLocal")
	n.position = position
	n.rotation = rotation
	n.scale = scale
	g.invalidateLocal(id, n)
}

// SetPosition sets the node's local translation.
func (g *Graph) SetPosition(id NodeID, position mgl64.Vec3) {
	n := g.must(id, "SetPosition")
	n.position = position
	g.invalidateLocal(id, n)
}

// SetRotation sets the node's local Euler rotation in radians, XYZ order.
func (g *Graph) SetRotation(id NodeID, rotation mgl64.Vec3) {
	n := g.must(id, "SetRotation")
	n.rotation = rotation
	g.invalidateLocal(id, n)
}

// SetScale sets the node's local scale.
func (g *Graph) SetScale(id NodeID, scale mgl64.Vec3) {
	n := g.must(id, "SetScale")
	n.scale = scale
	g.invalidateLocal(id, n)
}

// Position returns the node's local translation.
func (g *Graph) Position(id NodeID) mgl64.Vec3 { return g.must(id, "Position").position }

// Rotation returns the node's local Euler rotation.
func (g *Graph) Rotation(id NodeID) mgl64.Vec3 { return g.must(id, "Rotation").rotation }

// Scale returns the node's local scale.
func (g *Graph) Scale(id NodeID) mgl64.Vec3 { return g.must(id, "Scale").scale }

// MarkDirty forces the node's local and global matrices to be recomputed.
func (g *Graph) MarkDirty(id NodeID) {
	g.invalidateLocal(id, g.must(id, "MarkDirty"))
}

func (g *Graph) invalidateLocal(id NodeID, n *node) {
	n.localInvalid = true
	g.invalidateGlobal(id)
}

// invalidateGlobal marks id's global matrix and everything derived from it
// invalid, then does the same for its descendants. The walk does not descend
// into nodes that are already invalid: their subtrees are invalid too.
func (g *Graph) invalidateGlobal(id NodeID) {
	stack := append(g.stack[:0], id)
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := &g.nodes[cur.index]
		if n.globalInvalid {
			continue
		}
		n.globalInvalid = true
		n.inverseInvalid = true
		n.normalInvalid = true
		n.rotationInvalid = true
		g.stats.GlobalInvalidations++
		if n.renderable != nil {
			n.renderable.worldValid = false
		}
		for _, l := range n.listeners {
			l.fn(cur)
		}
		stack = append(stack, n.children...)
	}
	g.stack = stack[:0]
}

// GlobalInvalid reports whether the node's global matrix is stale.
func (g *Graph) GlobalInvalid(id NodeID) bool { return g.must(id, "GlobalInvalid").globalInvalid }

// --- Lazy matrices ---

// LocalMatrix returns translate * rotate * scale for the node.
func (g *Graph) LocalMatrix(id NodeID) mgl64.Mat4 {
	return g.localMatrix(g.must(id, "LocalMatrix"))
}

func (g *Graph) localMatrix(n *node) mgl64.Mat4 {
	if n.localInvalid {
		n.local = composeTRS(n.position, n.rotation, n.scale)
		n.localInvalid = false
		g.stats.LocalRecomputes++
	}
	return n.local
}

// GlobalMatrix returns the node's local-to-world matrix.
func (g *Graph) GlobalMatrix(id NodeID) mgl64.Mat4 {
	return g.globalMatrix(id, g.must(id, "GlobalMatrix"))
}

func (g *Graph) globalMatrix(id NodeID, n *node) mgl64.Mat4 {
	if !n.globalInvalid {
		return n.global
	}
	// Collect the invalid prefix of the ancestor chain, then compose top-down.
	chain := append(g.chain[:0], id)
	for p := n.parent; !p.IsZero(); p = g.nodes[p.index].parent {
		if !g.nodes[p.index].globalInvalid {
			break
		}
		chain = append(chain, p)
	}
	for i := len(chain) - 1; i >= 0; i-- {
		c := &g.nodes[chain[i].index]
		local := g.localMatrix(c)
		if c.parent.IsZero() {
			c.global = local
		} else {
			c.global = g.nodes[c.parent.index].global.Mul4(local)
		}
		c.globalInvalid = false
		g.stats.GlobalRecomputes++
	}
	g.chain = chain[:0]
	return n.global
}

// GlobalInverse returns the inverse of the node's global matrix. A singular
// global matrix yields the identity.
func (g *Graph) GlobalInverse(id NodeID) mgl64.Mat4 {
	n := g.must(id, "GlobalInverse")
	if n.inverseInvalid {
		m := g.globalMatrix(id, n)
		if det := m.Det(); math.Abs(det) < 1e-12 {
			n.globalInverse = mgl64.Ident4()
		} else {
			n.globalInverse = m.Inv()
		}
		n.inverseInvalid = false
		g.stats.InverseRecomputes++
	}
	return n.globalInverse
}

// GlobalNormalMatrix returns the inverse-transpose of the upper 3x3 of the
// global matrix, for transforming surface normals.
func (g *Graph) GlobalNormalMatrix(id NodeID) mgl64.Mat3 {
	n := g.must(id, "GlobalNormalMatrix")
	if n.normalInvalid {
		m := g.globalMatrix(id, n).Mat3()
		if det := m.Det(); math.Abs(det) < 1e-12 {
			n.normalMatrix = mgl64.Ident3()
		} else {
			n.normalMatrix = m.Inv().Transpose()
		}
		n.normalInvalid = false
		g.stats.NormalRecomputes++
	}
	return n.normalMatrix
}

// GlobalRotationMatrix returns the rotation part of the global matrix with
// scale removed.
func (g *Graph) GlobalRotationMatrix(id NodeID) mgl64.Mat3 {
	n := g.must(id, "GlobalRotationMatrix")
	if n.rotationInvalid {
		m := g.globalMatrix(id, n).Mat3()
		var cols [3]mgl64.Vec3
		for i := range cols {
			c := m.Col(i)
			if l := c.Len(); l > 1e-12 {
				c = c.Mul(1 / l)
			}
			cols[i] = c
		}
		n.rotationMatrix = mgl64.Mat3FromCols(cols[0], cols[1], cols[2])
		n.rotationInvalid = false
		g.stats.RotationRecomputes++
	}
	return n.rotationMatrix
}

// WorldPosition returns the translation of the node's global matrix.
func (g *Graph) WorldPosition(id NodeID) mgl64.Vec3 {
	return translationOf(g.GlobalMatrix(id))
}

// WorldToLocal converts a world-space point into the node's local space.
func (g *Graph) WorldToLocal(id NodeID, p mgl64.Vec3) mgl64.Vec3 {
	return mgl64.TransformCoordinate(p, g.GlobalInverse(id))
}

// LocalToWorld converts a local-space point into world space.
func (g *Graph) LocalToWorld(id NodeID, p mgl64.Vec3) mgl64.Vec3 {
	return mgl64.TransformCoordinate(p, g.GlobalMatrix(id))
}

// Forward returns the node's world-space -Z axis, the direction cameras and
// lights face.
func (g *Graph) Forward(id NodeID) mgl64.Vec3 {
	return g.GlobalRotationMatrix(id).Mul3x1(mgl64.Vec3{0, 0, -1})
}
