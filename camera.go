package sylvan

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
)

// Projection selects how a camera maps view space to clip space.
type Projection uint8

const (
	ProjectionPerspective Projection = iota
	ProjectionOrthographic
)

// moveAnim holds active move-to tweens for the camera eye.
type moveAnim struct {
	tweens [3]*gween.Tween
	done   [3]bool
}

// Camera produces view and projection matrices. A free camera is placed with
// LookAt; an attached camera takes its view from a graph node's inverse
// global matrix.
type Camera struct {
	Name       string
	Projection Projection

	// Perspective parameters. FovY is in radians.
	FovY   float64
	Aspect float64
	// Orthographic extents in view space.
	Left, Right, Bottom, Top float64
	Near, Far                float64

	eye, target, up mgl64.Vec3

	graph *Graph
	node  NodeID

	view      mgl64.Mat4
	proj      mgl64.Mat4
	viewDirty bool
	projDirty bool

	move *moveAnim
}

// NewPerspectiveCamera creates a free camera at the origin looking down -Z.
func NewPerspectiveCamera(fovY, aspect, near, far float64) *Camera {
	return &Camera{
		Projection: ProjectionPerspective,
		FovY:       fovY,
		Aspect:     aspect,
		Near:       near,
		Far:        far,
		target:     mgl64.Vec3{0, 0, -1},
		up:         mgl64.Vec3{0, 1, 0},
		viewDirty:  true,
		projDirty:  true,
	}
}

// NewOrthographicCamera creates a free orthographic camera at the origin
// looking down -Z.
func NewOrthographicCamera(left, right, bottom, top, near, far float64) *Camera {
	return &Camera{
		Projection: ProjectionOrthographic,
		Left:       left,
		Right:      right,
		Bottom:     bottom,
		Top:        top,
		Near:       near,
		Far:        far,
		target:     mgl64.Vec3{0, 0, -1},
		up:         mgl64.Vec3{0, 1, 0},
		viewDirty:  true,
		projDirty:  true,
	}
}

// LookAt places a free camera at eye facing target.
func (c *Camera) LookAt(eye, target, up mgl64.Vec3) {
	c.eye, c.target, c.up = eye, target, up
	c.viewDirty = true
}

// SetAspect updates the perspective aspect ratio.
func (c *Camera) SetAspect(aspect float64) {
	if c.Aspect == aspect {
		return
	}
	c.Aspect = aspect
	c.projDirty = true
}

// MarkDirty forces view and projection to be recomputed. Call this after
// editing the exported projection fields.
func (c *Camera) MarkDirty() {
	c.viewDirty = true
	c.projDirty = true
}

// Attach makes the camera follow node id of g.
func (c *Camera) Attach(g *Graph, id NodeID) {
	c.graph, c.node = g, id
	c.viewDirty = true
}

// Detach returns the camera to free mode at its last LookAt placement.
func (c *Camera) Detach() {
	c.graph, c.node = nil, NoNode
	c.viewDirty = true
}

// Node returns the attached node, or NoNode.
func (c *Camera) Node() NodeID { return c.node }

func (c *Camera) attached() bool {
	return c.graph != nil && c.graph.Alive(c.node)
}

// View returns the world-to-view matrix.
func (c *Camera) View() mgl64.Mat4 {
	if c.attached() {
		return c.graph.GlobalInverse(c.node)
	}
	if c.viewDirty {
		c.view = mgl64.LookAtV(c.eye, c.target, c.up)
		c.viewDirty = false
	}
	return c.view
}

// ProjectionMatrix returns the view-to-clip matrix.
func (c *Camera) ProjectionMatrix() mgl64.Mat4 {
	if c.projDirty {
		if c.Projection == ProjectionOrthographic {
			c.proj = mgl64.Ortho(c.Left, c.Right, c.Bottom, c.Top, c.Near, c.Far)
		} else {
			c.proj = mgl64.Perspective(c.FovY, c.Aspect, c.Near, c.Far)
		}
		c.projDirty = false
	}
	return c.proj
}

// ViewProjection returns ProjectionMatrix * View.
func (c *Camera) ViewProjection() mgl64.Mat4 {
	return c.ProjectionMatrix().Mul4(c.View())
}

// SkyboxView returns the view matrix with its translation removed.
func (c *Camera) SkyboxView() mgl64.Mat4 {
	v := c.View()
	v[12], v[13], v[14] = 0, 0, 0
	return v
}

// Position returns the camera's world-space eye position.
func (c *Camera) Position() mgl64.Vec3 {
	if c.attached() {
		return c.graph.WorldPosition(c.node)
	}
	return c.eye
}

// Forward returns the unit direction the camera faces.
func (c *Camera) Forward() mgl64.Vec3 {
	if c.attached() {
		return c.graph.Forward(c.node)
	}
	d := c.target.Sub(c.eye)
	if l := d.Len(); l > 0 {
		return d.Mul(1 / l)
	}
	return mgl64.Vec3{0, 0, -1}
}

// Frustum returns the six culling planes for the current view and projection.
func (c *Camera) Frustum() Frustum {
	return FrustumFromMatrix(c.ViewProjection())
}

// WorldToScreen projects p into the viewport. ok is false for points behind
// the camera.
func (c *Camera) WorldToScreen(p mgl64.Vec3, viewport Rect) (sx, sy float64, ok bool) {
	clip := c.ViewProjection().Mul4x1(p.Vec4(1))
	if clip[3] <= 0 {
		return 0, 0, false
	}
	nx, ny := clip[0]/clip[3], clip[1]/clip[3]
	sx = viewport.X + (nx+1)*0.5*viewport.Width
	sy = viewport.Y + (1-ny)*0.5*viewport.Height
	return sx, sy, true
}

// ScreenRay returns the world-space ray through screen point (sx, sy).
func (c *Camera) ScreenRay(sx, sy float64, viewport Rect) (Ray, error) {
	nx := (sx-viewport.X)/viewport.Width*2 - 1
	ny := 1 - (sy-viewport.Y)/viewport.Height*2
	inv := c.ViewProjection().Inv()
	near := mgl64.TransformCoordinate(mgl64.Vec3{nx, ny, -1}, inv)
	far := mgl64.TransformCoordinate(mgl64.Vec3{nx, ny, 1}, inv)
	return NewRay(near, far.Sub(near))
}

// MoveTo animates a free camera's eye to eye over duration seconds while it
// keeps looking at its target. Call Update each frame.
func (c *Camera) MoveTo(eye mgl64.Vec3, duration float32, easeFn ease.TweenFunc) {
	if easeFn == nil {
		easeFn = ease.Linear
	}
	c.move = &moveAnim{}
	for i := 0; i < 3; i++ {
		c.move.tweens[i] = gween.New(float32(c.eye[i]), float32(eye[i]), duration, easeFn)
	}
}

// Moving reports whether a MoveTo animation is active.
func (c *Camera) Moving() bool { return c.move != nil }

// Update advances an active MoveTo animation by dt seconds.
func (c *Camera) Update(dt float32) {
	if c.move == nil {
		return
	}
	all := true
	for i := 0; i < 3; i++ {
		if c.move.done[i] {
			continue
		}
		val, done := c.move.tweens[i].Update(dt)
		c.eye[i] = float64(val)
		c.move.done[i] = done
		all = all && done
	}
	c.viewDirty = true
	if all {
		c.move = nil
	}
}

// Orbit places a free camera on a circle of the given radius around target,
// at angle radians in the XZ plane and the given height.
func (c *Camera) Orbit(target mgl64.Vec3, radius, angle, height float64) {
	s, co := math.Sincos(angle)
	c.LookAt(target.Add(mgl64.Vec3{co * radius, height, s * radius}), target, mgl64.Vec3{0, 1, 0})
}
