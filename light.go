package sylvan

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// LightKind selects the light model.
type LightKind uint8

const (
	LightDirectional LightKind = iota
	LightPoint
	LightSpot
)

// Defaults for shadow-casting lights.
const (
	DefaultShadowMapSize = 2048
	DefaultShadowBias    = 0.001
	shadowMargin         = 1.0
	shadowMinNear        = 0.05
)

// Light is placed in the scene by a light node. Directional and spot lights
// shine along the node's -Z axis.
type Light struct {
	Kind      LightKind
	Color     Color
	Intensity float64
	Enabled   bool

	// CastShadows renders a shadow map for this light each frame.
	CastShadows bool
	ShadowBias  float64

	graph *Graph
	node  NodeID

	shadow shadowState
}

// shadowState is the lazily created framebuffer and per-frame camera of a
// shadow-casting light.
type shadowState struct {
	fb       Framebuffer
	size     int
	cam      *Camera
	viewProj mgl64.Mat4
	valid    bool
}

// NewDirectionalLight returns an enabled directional light.
func NewDirectionalLight(c Color, intensity float64) *Light {
	return &Light{Kind: LightDirectional, Color: c, Intensity: intensity, Enabled: true, ShadowBias: DefaultShadowBias}
}

// NewPointLight returns an enabled point light.
func NewPointLight(c Color, intensity float64) *Light {
	return &Light{Kind: LightPoint, Color: c, Intensity: intensity, Enabled: true, ShadowBias: DefaultShadowBias}
}

// NewSpotLight returns an enabled spot light.
func NewSpotLight(c Color, intensity float64) *Light {
	return &Light{Kind: LightSpot, Color: c, Intensity: intensity, Enabled: true, ShadowBias: DefaultShadowBias}
}

// Node returns the light's node, or NoNode when it is not placed.
func (l *Light) Node() NodeID { return l.node }

// Position returns the light's world position.
func (l *Light) Position() mgl64.Vec3 {
	if l.graph == nil {
		return mgl64.Vec3{}
	}
	return l.graph.WorldPosition(l.node)
}

// Direction returns the unit direction the light travels.
func (l *Light) Direction() mgl64.Vec3 {
	if l.graph == nil {
		return mgl64.Vec3{0, 0, -1}
	}
	return l.graph.Forward(l.node)
}

// ShadowMap returns the light's shadow framebuffer, or nil before the first
// shadow pass.
func (l *Light) ShadowMap() Framebuffer { return l.shadow.fb }

// ShadowReady reports whether the last shadow pass rendered this light's
// shadow map.
func (l *Light) ShadowReady() bool { return l.shadow.valid }

// ShadowCamera returns the camera fitted during the last shadow pass, or nil.
func (l *Light) ShadowCamera() *Camera { return l.shadow.cam }

// fitShadowCamera points the shadow camera at bounds. Directional lights get
// an orthographic box along their direction; point and spot lights get a
// perspective cone from their position.
func (l *Light) fitShadowCamera(bounds AABB) *Camera {
	center := bounds.Center()
	radius := bounds.Size().Len() / 2
	if radius < shadowMinNear {
		radius = shadowMinNear
	}

	if l.Kind == LightDirectional {
		dir := l.Direction()
		if l.shadow.cam == nil || l.shadow.cam.Projection != ProjectionOrthographic {
			l.shadow.cam = NewOrthographicCamera(-1, 1, -1, 1, 0, 1)
		}
		cam := l.shadow.cam
		dist := radius + shadowMargin
		cam.Left, cam.Right, cam.Bottom, cam.Top = -radius, radius, -radius, radius
		cam.Near, cam.Far = 0, 2*dist
		cam.LookAt(center.Sub(dir.Mul(dist)), center, upFor(dir))
		cam.MarkDirty()
		return cam
	}

	pos := l.Position()
	toCenter := center.Sub(pos)
	d := toCenter.Len()
	if l.shadow.cam == nil || l.shadow.cam.Projection != ProjectionPerspective {
		l.shadow.cam = NewPerspectiveCamera(math.Pi/2, 1, shadowMinNear, 1)
	}
	cam := l.shadow.cam
	if d <= radius {
		cam.FovY = 2 * math.Pi / 3
		cam.Near = shadowMinNear
	} else {
		cam.FovY = 2 * math.Asin(radius/d)
		cam.Near = math.Max(d-radius, shadowMinNear)
	}
	cam.Far = d + radius + shadowMargin
	dir := toCenter
	if d == 0 {
		dir = l.Direction()
	}
	cam.LookAt(pos, pos.Add(dir), upFor(dir))
	cam.MarkDirty()
	return cam
}

// upFor returns an up vector not parallel to dir.
func upFor(dir mgl64.Vec3) mgl64.Vec3 {
	up := mgl64.Vec3{0, 1, 0}
	if l := dir.Len(); l > 0 && math.Abs(dir.Dot(up)/l) > 0.99 {
		return mgl64.Vec3{1, 0, 0}
	}
	return up
}
