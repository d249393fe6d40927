package sylvan

// LocalBounds returns the geometry's bounding box in the node's local space.
// Geometry without position data yields a zero-size box at the origin.
func (r *Renderable) LocalBounds() AABB {
	if !r.localValid {
		if r.geometry != nil {
			r.localBounds = r.geometry.Bounds()
		} else {
			r.localBounds = AABB{}
		}
		r.localValid = true
	}
	return r.localBounds
}

// WorldBounds returns the local box transformed by the node's global matrix.
// It is recomputed only after the node's transform or the geometry changes.
func (r *Renderable) WorldBounds() AABB {
	if !r.worldValid {
		if !r.attached() {
			return r.LocalBounds()
		}
		r.worldBounds = r.LocalBounds().Transform(r.graph.GlobalMatrix(r.node))
		r.worldValid = true
	}
	return r.worldBounds
}

// InvalidateBounds discards both cached boxes. Call it after editing the
// geometry's vertex data in place.
func (r *Renderable) InvalidateBounds() {
	r.localValid = false
	r.worldValid = false
}

// BoundsValid reports whether the local and world boxes are cached.
func (r *Renderable) BoundsValid() (local, world bool) {
	return r.localValid, r.worldValid
}
