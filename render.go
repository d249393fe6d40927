package sylvan

import (
	"log/slog"
	"time"

	"github.com/go-gl/mathgl/mgl64"
)

// PassKind identifies a pipeline pass. Passes run in declaration order.
type PassKind uint8

const (
	PassShadow PassKind = iota
	PassSkybox
	PassOpaque
	PassTransparent
	PassOutline
	PassWireframe
	passCount
)

func (k PassKind) String() string {
	switch k {
	case PassShadow:
		return "shadow"
	case PassSkybox:
		return "skybox"
	case PassOpaque:
		return "opaque"
	case PassTransparent:
		return "transparent"
	case PassOutline:
		return "outline"
	case PassWireframe:
		return "wireframe"
	default:
		return "unknown"
	}
}

// Skybox is drawn around the camera before scene geometry, with the view
// translation removed.
type Skybox struct {
	Geometry Geometry
	Material Material
}

// NewSkybox returns a large inward-facing box in a solid color.
func NewSkybox(c Color) *Skybox {
	return &Skybox{Geometry: NewBoxMesh(2, 2, 2), Material: &SkyboxMaterial{Color: c}}
}

// Pipeline renders a scene through a fixed sequence of passes: shadow maps,
// skybox, opaque, transparent, then outline and wireframe overlays. Every pass
// reads the same visibility cache and none of them change transforms.
type Pipeline struct {
	ctx    *RenderContext
	cfg    Config
	Skybox *Skybox

	uniforms Uniforms
	dc       DrawCall
	shadows  []ShadowSample
	casters  []*Renderable
	lightDir mgl64.Vec3
	stats    FrameStats
	frames   uint64
}

// NewPipeline creates a pipeline drawing through ctx.
func NewPipeline(ctx *RenderContext, cfg Config) *Pipeline {
	p := &Pipeline{ctx: ctx}
	p.SetConfig(cfg)
	return p
}

// Context returns the pipeline's render context.
func (p *Pipeline) Context() *RenderContext { return p.ctx }

// Config returns the active configuration.
func (p *Pipeline) Config() Config { return p.cfg }

// SetConfig replaces the configuration. A zero shadow map size falls back to
// the default.
func (p *Pipeline) SetConfig(cfg Config) {
	if cfg.ShadowMapSize <= 0 {
		cfg.ShadowMapSize = DefaultShadowMapSize
	}
	p.cfg = cfg
	if om := p.ctx.OutlineMaterial; om != nil {
		if cfg.Outline.Width > 0 {
			om.Width = cfg.Outline.Width
		}
		if c := cfg.Outline.Color; c != [4]float64{} {
			om.Color = Color{c[0], c[1], c[2], c[3]}
		}
	}
}

// Render draws one frame of scene as seen by cam. It starts a new frame on
// the scene, so pick caches are rebuilt against current transforms. While the
// context is lost it does nothing and reports a skipped frame.
func (p *Pipeline) Render(scene *Scene, cam *Camera) FrameStats {
	p.frames++
	p.stats = FrameStats{Frame: p.frames}
	if p.ctx.Lost() {
		p.stats.Skipped = true
		return p.stats
	}
	if p.ctx.Device == nil {
		p.ctx.Logger.Error("render without device")
		p.stats.Skipped = true
		return p.stats
	}

	p.ctx.pruneLights(true)
	scene.BeginFrame()
	picks := scene.Picks(cam)

	start := time.Now()
	p.stats.Visible = len(picks.Visible())
	p.stats.Opaque = len(picks.Opaque())
	p.stats.Transparent = len(picks.Transparent())
	p.lightDir = mgl64.Vec3{}
	for _, l := range picks.Lights() {
		if l.Kind == LightDirectional {
			p.lightDir = l.Direction()
			break
		}
	}
	p.stats.BuildTime = time.Since(start)

	if !p.renderFrame(picks, cam) {
		p.stats.Skipped = true
	}
	p.debugLog(p.stats)
	return p.stats
}

// renderFrame runs the passes in order. It returns false when the context
// was lost mid-frame.
func (p *Pipeline) renderFrame(picks *PickCache, cam *Camera) bool {
	passes := p.cfg.Passes

	start := time.Now()
	p.shadows = p.shadows[:0]
	if passes.Shadows && !p.shadowPass(picks) {
		return false
	}
	p.stats.ShadowTime = time.Since(start)

	start = time.Now()
	if !p.ok(p.ctx.Device.BindFramebuffer(nil), "bind default target") ||
		!p.ok(p.ctx.Device.Clear(p.cfg.Clear()), "clear") {
		return false
	}
	view, proj := cam.View(), cam.ProjectionMatrix()
	eye := cam.Position()

	if passes.Skybox && p.Skybox != nil {
		if !p.drawGeometry(PassSkybox, p.Skybox.Geometry, p.Skybox.Material,
			mgl64.Ident4(), mgl64.Ident3(), cam.SkyboxView(), proj, eye, false) {
			return false
		}
	}
	if passes.Opaque {
		for _, r := range picks.Opaque() {
			if !p.draw(PassOpaque, r, nil, view, proj, eye) {
				return false
			}
		}
	}
	if passes.Transparent {
		for _, r := range picks.Transparent() {
			if !p.draw(PassTransparent, r, nil, view, proj, eye) {
				return false
			}
		}
	}
	p.stats.MainTime = time.Since(start)

	start = time.Now()
	if om := p.ctx.OutlineMaterial; passes.Outline && om != nil {
		for _, r := range picks.Visible() {
			if r.Outline && !p.draw(PassOutline, r, om, view, proj, eye) {
				return false
			}
		}
	}
	if wm := p.ctx.WireframeMaterial; passes.Wireframe && wm != nil {
		for _, r := range picks.Visible() {
			if (r.Wireframe || p.cfg.WireframeAll) && !p.draw(PassWireframe, r, wm, view, proj, eye) {
				return false
			}
		}
	}
	p.stats.OverlayTime = time.Since(start)
	return true
}

// shadowPass renders a depth map for each shadow-casting light, fitted to the
// visible shadow casters.
func (p *Pipeline) shadowPass(picks *PickCache) bool {
	casters := p.casters[:0]
	var bounds AABB
	for _, r := range picks.Visible() {
		if !r.CastShadows {
			continue
		}
		if len(casters) == 0 {
			bounds = r.WorldBounds()
		} else {
			bounds = bounds.Union(r.WorldBounds())
		}
		casters = append(casters, r)
	}
	p.casters = casters
	defer clear(p.casters)
	if len(casters) == 0 {
		return true
	}

	dev := p.ctx.Device
	rendered := false
	for _, l := range picks.Lights() {
		if !l.CastShadows {
			continue
		}
		l.shadow.valid = false
		fb, err := p.ctx.shadowFramebuffer(l, p.cfg.ShadowMapSize)
		if !p.ok(err, "create shadow map") {
			return false
		}
		if fb == nil {
			continue
		}
		cam := l.fitShadowCamera(bounds)
		view, proj := cam.View(), cam.ProjectionMatrix()
		if err := dev.BindFramebuffer(fb); err != nil {
			if !p.ok(err, "bind shadow map") {
				return false
			}
			continue
		}
		rendered = true
		if err := dev.Clear(ColorWhite); err != nil {
			if !p.ok(err, "clear shadow map") {
				return false
			}
			continue
		}
		for _, r := range casters {
			if !p.draw(PassShadow, r, p.ctx.DepthMaterial, view, proj, cam.Position()) {
				return false
			}
		}
		l.shadow.viewProj = proj.Mul4(view)
		l.shadow.valid = true
		p.shadows = append(p.shadows, ShadowSample{Map: fb, ViewProj: l.shadow.viewProj, Bias: l.ShadowBias})
	}
	p.stats.ShadowMaps = len(p.shadows)
	if rendered {
		return p.ok(dev.BindFramebuffer(nil), "unbind shadow map")
	}
	return true
}

// draw submits one renderable. override replaces its material when set.
func (p *Pipeline) draw(pass PassKind, r *Renderable, override Material, view, proj mgl64.Mat4, eye mgl64.Vec3) bool {
	mat := override
	if mat == nil {
		mat = r.material
	}
	g, id := r.graph, r.node
	return p.drawGeometry(pass, r.geometry, mat, g.GlobalMatrix(id), g.GlobalNormalMatrix(id),
		view, proj, eye, r.ReceiveShadows)
}

// drawGeometry fills the uniforms, lets the material adjust them, applies the
// pass's fixed state, and submits the draw. Missing geometry or material fall
// back to the context defaults. It returns false only on context loss.
func (p *Pipeline) drawGeometry(pass PassKind, geom Geometry, mat Material, model mgl64.Mat4, normal mgl64.Mat3,
	view, proj mgl64.Mat4, eye mgl64.Vec3, receiveShadows bool) bool {
	if geom == nil {
		geom = p.ctx.DefaultGeometry
	}
	if mat == nil {
		mat = p.ctx.DefaultMaterial
	}
	gg, err := p.ctx.Buffers(geom)
	if !p.ok(err, "upload geometry") {
		return false
	}
	if gg == nil {
		return true
	}

	u := &p.uniforms
	u.reset()
	u.Model = model
	u.NormalMatrix = normal
	u.View = view
	u.Projection = proj
	u.CameraPos = eye
	u.LightDir = p.lightDir
	if receiveShadows && pass != PassShadow {
		u.Shadows = append(u.Shadows, p.shadows...)
	}

	mat.BeforeRender(u)

	switch pass {
	case PassShadow:
		u.BlendEnabled = false
		u.DepthWrite = true
	case PassSkybox:
		u.DepthWrite = false
	case PassOpaque:
		u.BlendEnabled = false
		u.DepthWrite = true
	case PassTransparent:
		u.BlendEnabled = true
		u.DepthWrite = false
	case PassOutline:
		if w, ok := u.Get("outline_width"); ok {
			s := 1 + w.(float64)
			u.Model = u.Model.Mul4(mgl64.Scale3D(s, s, s))
		}
	case PassWireframe:
		u.Wireframe = true
	}

	p.dc = DrawCall{Pass: pass, Geometry: gg, Uniforms: u}
	if err := p.ctx.Device.Draw(&p.dc); err != nil {
		return p.ok(err, "draw "+pass.String())
	}
	p.stats.Draws[pass]++
	return true
}

// ok logs a non-nil err and reports whether rendering can continue. Context
// loss stops the frame; other errors drop only the failing operation.
func (p *Pipeline) ok(err error, op string) bool {
	if err == nil {
		return true
	}
	if p.ctx.checkLost(err) {
		return false
	}
	p.stats.Errors++
	p.ctx.Logger.Warn("render operation failed",
		slog.String("op", op),
		slog.Uint64("frame", p.frames),
		slog.Any("err", err))
	return true
}
