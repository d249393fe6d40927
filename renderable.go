package sylvan

// Renderable pairs a Geometry with a Material on a mesh node. It caches its
// local and world bounding boxes.
type Renderable struct {
	graph *Graph
	node  NodeID

	geometry Geometry
	material Material
	enabled  bool

	// CastShadows includes the renderable in shadow map passes.
	CastShadows bool
	// ReceiveShadows hands shadow maps to the material's draw.
	ReceiveShadows bool
	// Outline draws a solid silhouette in the overlay pass.
	Outline bool
	// Wireframe draws triangle edges in the overlay pass.
	Wireframe bool

	localBounds AABB
	worldBounds AABB
	localValid  bool
	worldValid  bool
}

func newRenderable(g *Graph, id NodeID, geometry Geometry, material Material) *Renderable {
	return &Renderable{
		graph:          g,
		node:           id,
		geometry:       geometry,
		material:       material,
		enabled:        true,
		ReceiveShadows: true,
	}
}

// Node returns the handle of the node carrying the renderable.
func (r *Renderable) Node() NodeID { return r.node }

// Graph returns the graph the renderable's node lives in.
func (r *Renderable) Graph() *Graph { return r.graph }

// Geometry returns the geometry, which may be nil.
func (r *Renderable) Geometry() Geometry { return r.geometry }

// Material returns the material, which may be nil.
func (r *Renderable) Material() Material { return r.material }

// Enabled reports whether the renderable takes part in visibility builds.
func (r *Renderable) Enabled() bool { return r.enabled }

// SetEnabled includes or excludes the renderable from visibility builds.
func (r *Renderable) SetEnabled(enabled bool) {
	if r.enabled == enabled {
		return
	}
	r.enabled = enabled
	r.invalidatePicks()
}

// SetGeometry swaps the geometry and invalidates the cached bounds.
func (r *Renderable) SetGeometry(geometry Geometry) {
	r.geometry = geometry
	r.InvalidateBounds()
	r.invalidatePicks()
}

// SetMaterial swaps the material. The renderable may move between the
// opaque and transparent partitions.
func (r *Renderable) SetMaterial(material Material) {
	r.material = material
	r.invalidatePicks()
}

// Transparent reports whether the material blends. A nil material is opaque.
func (r *Renderable) Transparent() bool {
	return r.material != nil && r.material.Blending()
}

func (r *Renderable) scene() *Scene {
	if r.graph == nil {
		return nil
	}
	if n := r.graph.get(r.node); n != nil {
		return n.scene
	}
	return nil
}

func (r *Renderable) invalidatePicks() {
	r.scene().invalidatePicks()
}

// detach is called when the node is destroyed.
func (r *Renderable) detach() {
	r.graph = nil
	r.node = NoNode
	r.localValid = false
	r.worldValid = false
}

// attached reports whether the renderable still has a live node.
func (r *Renderable) attached() bool {
	return r.graph != nil && r.graph.get(r.node) != nil
}
