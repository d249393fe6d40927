package sylvan

import "github.com/go-gl/mathgl/mgl64"

// Material configures the draw state for a renderable. BeforeRender is
// called once per draw after the pipeline has filled in the transform
// uniforms and pass defaults.
type Material interface {
	BeforeRender(u *Uniforms)
	// Blending reports whether the material is drawn in the transparent pass.
	Blending() bool
}

// ShadowSample describes one shadow map available to a draw.
type ShadowSample struct {
	Map      Framebuffer
	ViewProj mgl64.Mat4
	Bias     float64
}

// Uniforms is the per-draw parameter bundle passed from the pipeline through
// the material to the device. The pipeline reuses one instance for every draw
// and resets it in between, including the values stored with Set.
type Uniforms struct {
	Model        mgl64.Mat4
	View         mgl64.Mat4
	Projection   mgl64.Mat4
	NormalMatrix mgl64.Mat3
	CameraPos    mgl64.Vec3

	Color        Color
	Blend        BlendMode
	BlendEnabled bool
	Cull         CullMode
	DepthTest    bool
	DepthWrite   bool
	Wireframe    bool

	// LightDir is the direction light travels for simple shading. Zero
	// means unlit.
	LightDir mgl64.Vec3
	Shadows  []ShadowSample

	values map[string]any
}

// Set stores a named value for devices that understand it.
func (u *Uniforms) Set(name string, v any) {
	if u.values == nil {
		u.values = make(map[string]any)
	}
	u.values[name] = v
}

// Get returns a value stored with Set.
func (u *Uniforms) Get(name string) (any, bool) {
	v, ok := u.values[name]
	return v, ok
}

// MVP returns Projection * View * Model.
func (u *Uniforms) MVP() mgl64.Mat4 {
	return u.Projection.Mul4(u.View).Mul4(u.Model)
}

// reset restores pass defaults while keeping the map allocation.
func (u *Uniforms) reset() {
	values := u.values
	clear(values)
	shadows := u.Shadows[:0]
	*u = Uniforms{
		Model:        mgl64.Ident4(),
		View:         mgl64.Ident4(),
		Projection:   mgl64.Ident4(),
		NormalMatrix: mgl64.Ident3(),
		Color:        ColorWhite,
		Blend:        BlendNormal,
		Cull:         CullBack,
		DepthTest:    true,
		DepthWrite:   true,
		Shadows:      shadows,
		values:       values,
	}
}

// StandardMaterial is a flat-colored, optionally lit material.
type StandardMaterial struct {
	Color Color
	// Transparent routes the material to the transparent pass.
	Transparent bool
	Blend       BlendMode
	Cull        CullMode
	// Unlit skips directional shading.
	Unlit bool
}

// NewStandardMaterial returns an opaque lit material of the given color.
func NewStandardMaterial(c Color) *StandardMaterial {
	return &StandardMaterial{Color: c}
}

// BeforeRender implements Material.
func (m *StandardMaterial) BeforeRender(u *Uniforms) {
	u.Color = m.Color
	u.Blend = m.Blend
	u.Cull = m.Cull
	if m.Unlit {
		u.LightDir = mgl64.Vec3{}
	}
}

// Blending implements Material.
func (m *StandardMaterial) Blending() bool { return m.Transparent }

// DepthMaterial writes depth only. Shadow passes draw every caster with it.
type DepthMaterial struct{}

// BeforeRender implements Material.
func (DepthMaterial) BeforeRender(u *Uniforms) {
	u.Color = ColorWhite
	u.Blend = BlendNone
	u.BlendEnabled = false
	u.DepthTest = true
	u.DepthWrite = true
	u.LightDir = mgl64.Vec3{}
	u.Set("depth_only", true)
}

// Blending implements Material.
func (DepthMaterial) Blending() bool { return false }

// OutlineMaterial draws back faces in a solid color, so a slightly enlarged
// copy of the mesh shows as a silhouette around it.
type OutlineMaterial struct {
	Color Color
	Width float64
}

// BeforeRender implements Material.
func (m *OutlineMaterial) BeforeRender(u *Uniforms) {
	u.Color = m.Color
	u.Cull = CullFront
	u.DepthWrite = false
	u.LightDir = mgl64.Vec3{}
	u.Set("outline_width", m.Width)
}

// Blending implements Material.
func (m *OutlineMaterial) Blending() bool { return false }

// WireframeMaterial draws triangle edges as lines.
type WireframeMaterial struct {
	Color Color
}

// BeforeRender implements Material.
func (m *WireframeMaterial) BeforeRender(u *Uniforms) {
	u.Color = m.Color
	u.Wireframe = true
	u.Cull = CullNone
	u.DepthWrite = false
	u.LightDir = mgl64.Vec3{}
}

// Blending implements Material.
func (m *WireframeMaterial) Blending() bool { return false }

// SkyboxMaterial paints the skybox geometry's inner faces.
type SkyboxMaterial struct {
	Color Color
}

// BeforeRender implements Material.
func (m *SkyboxMaterial) BeforeRender(u *Uniforms) {
	u.Color = m.Color
	u.Cull = CullNone
	u.DepthWrite = false
	u.LightDir = mgl64.Vec3{}
}

// Blending implements Material.
func (m *SkyboxMaterial) Blending() bool { return false }
