package sylvan

import (
	"errors"
	"io"
	"log/slog"
	"maps"
	"math"
	"slices"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

// --- Recording device ---

type fakeBuffer struct {
	desc     BufferDesc
	released bool
}

func (b *fakeBuffer) Release() { b.released = true }

type fakeFramebuffer struct {
	desc     FramebufferDesc
	released bool
}

func (fb *fakeFramebuffer) Size() (int, int) { return fb.desc.Width, fb.desc.Height }
func (fb *fakeFramebuffer) Release()         { fb.released = true }

type drawRecord struct {
	pass     PassKind
	target   Framebuffer
	geometry Geometry
	u        Uniforms
	shadows  int
}

type fakeDevice struct {
	buffers      []*fakeBuffer
	framebuffers []*fakeFramebuffer
	bound        Framebuffer
	clears       int
	draws        []drawRecord

	lost     bool
	failOn   map[PassKind]error
	failBind map[Framebuffer]error
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{failOn: make(map[PassKind]error), failBind: make(map[Framebuffer]error)}
}

func (d *fakeDevice) CreateBuffer(desc BufferDesc) (Buffer, error) {
	if d.lost {
		return nil, ErrContextLost
	}
	b := &fakeBuffer{desc: desc}
	d.buffers = append(d.buffers, b)
	return b, nil
}

func (d *fakeDevice) CreateFramebuffer(desc FramebufferDesc) (Framebuffer, error) {
	if d.lost {
		return nil, ErrContextLost
	}
	fb := &fakeFramebuffer{desc: desc}
	d.framebuffers = append(d.framebuffers, fb)
	return fb, nil
}

func (d *fakeDevice) BindFramebuffer(fb Framebuffer) error {
	if d.lost {
		return ErrContextLost
	}
	if err := d.failBind[fb]; err != nil {
		return err
	}
	d.bound = fb
	return nil
}

func (d *fakeDevice) Clear(Color) error {
	if d.lost {
		return ErrContextLost
	}
	d.clears++
	return nil
}

func (d *fakeDevice) Draw(dc *DrawCall) error {
	if d.lost {
		return ErrContextLost
	}
	if err := d.failOn[dc.Pass]; err != nil {
		return err
	}
	// Uniforms is reset between draws; record a deep copy.
	u := *dc.Uniforms
	u.values = maps.Clone(dc.Uniforms.values)
	u.Shadows = slices.Clone(dc.Uniforms.Shadows)
	d.draws = append(d.draws, drawRecord{
		pass:     dc.Pass,
		target:   d.bound,
		geometry: dc.Geometry.Geometry,
		u:        u,
		shadows:  len(dc.Uniforms.Shadows),
	})
	return nil
}

func (d *fakeDevice) passes() []PassKind {
	var out []PassKind
	for _, r := range d.draws {
		out = append(out, r.pass)
	}
	return out
}

func (d *fakeDevice) drawsIn(pass PassKind) []drawRecord {
	var out []drawRecord
	for _, r := range d.draws {
		if r.pass == pass {
			out = append(out, r)
		}
	}
	return out
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- Fixture ---

type renderFixture struct {
	scene   *Scene
	cam     *Camera
	dev     *fakeDevice
	p       *Pipeline
	sun     *Light
	opaque  NodeID
	glass   NodeID
	glassMt *StandardMaterial
}

// newRenderFixture builds a scene with one opaque box that casts shadows and
// has an outline, one transparent box drawn as wireframe, and a shadow
// casting directional light.
func newRenderFixture(t *testing.T) *renderFixture {
	t.Helper()
	s := NewScene("render")
	g := s.Graph()
	f := &renderFixture{scene: s, cam: newTestCamera(), dev: newFakeDevice()}

	f.opaque = addBox(s, "opaque", NewStandardMaterial(Color{1, 0, 0, 1}), mgl64.Vec3{0, 0, -6})
	r := g.Renderable(f.opaque)
	r.CastShadows = true
	r.Outline = true

	f.glassMt = &StandardMaterial{Color: Color{0, 0, 1, 0.5}, Transparent: true}
	f.glass = addBox(s, "glass", f.glassMt, mgl64.Vec3{1, 0, -4})
	g.Renderable(f.glass).Wireframe = true

	f.sun = NewDirectionalLight(ColorWhite, 1)
	f.sun.CastShadows = true
	sunNode := g.NewLightNode("sun", f.sun)
	g.SetRotation(sunNode, mgl64.Vec3{-math.Pi / 2, 0, 0})
	s.Add(sunNode)

	cfg := DefaultConfig()
	cfg.ShadowMapSize = 256
	f.p = NewPipeline(NewRenderContext(f.dev, quietLogger()), cfg)
	f.p.Skybox = NewSkybox(Color{0.2, 0.3, 0.8, 1})
	return f
}

// --- Pass sequencing ---

func TestPipelinePassOrder(t *testing.T) {
	f := newRenderFixture(t)
	stats := f.p.Render(f.scene, f.cam)

	want := []PassKind{PassShadow, PassSkybox, PassOpaque, PassTransparent, PassOutline, PassWireframe}
	got := f.dev.passes()
	if len(got) != len(want) {
		t.Fatalf("passes = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("pass %d = %v, want %v", i, got[i], want[i])
		}
	}

	if stats.Skipped || stats.Errors != 0 {
		t.Errorf("stats = %+v, want a clean frame", stats)
	}
	if stats.Visible != 2 || stats.Opaque != 1 || stats.Transparent != 1 || stats.ShadowMaps != 1 {
		t.Errorf("stats counts = %+v", stats)
	}
	if stats.TotalDraws() != 6 {
		t.Errorf("TotalDraws = %d, want 6", stats.TotalDraws())
	}
	if stats.Frame != 1 {
		t.Errorf("Frame = %d, want 1", stats.Frame)
	}
}

func TestPipelineTargets(t *testing.T) {
	f := newRenderFixture(t)
	f.p.Render(f.scene, f.cam)

	shadowMap := f.sun.ShadowMap()
	if shadowMap == nil {
		t.Fatal("shadow map not created")
	}
	for _, d := range f.dev.draws {
		if d.pass == PassShadow && d.target != shadowMap {
			t.Error("shadow draw not directed at the shadow map")
		}
		if d.pass != PassShadow && d.target != nil {
			t.Errorf("%v draw not directed at the default target", d.pass)
		}
	}
	if f.dev.clears != 2 {
		t.Errorf("clears = %d, want 2 (shadow map and screen)", f.dev.clears)
	}
}

func TestPipelinePassState(t *testing.T) {
	f := newRenderFixture(t)
	f.p.Render(f.scene, f.cam)

	op := f.dev.drawsIn(PassOpaque)[0].u
	if op.BlendEnabled || !op.DepthWrite || !op.DepthTest {
		t.Errorf("opaque state: blend %v depth write %v depth test %v", op.BlendEnabled, op.DepthWrite, op.DepthTest)
	}
	if op.Color != (Color{1, 0, 0, 1}) {
		t.Errorf("opaque color = %v", op.Color)
	}

	tr := f.dev.drawsIn(PassTransparent)[0].u
	if !tr.BlendEnabled || tr.DepthWrite {
		t.Errorf("transparent state: blend %v depth write %v", tr.BlendEnabled, tr.DepthWrite)
	}

	sh := f.dev.drawsIn(PassShadow)[0].u
	if v, ok := sh.Get("depth_only"); !ok || v != true {
		t.Error("shadow pass should use the depth material")
	}

	wf := f.dev.drawsIn(PassWireframe)[0].u
	if !wf.Wireframe {
		t.Error("wireframe pass should set Wireframe")
	}

	sky := f.dev.drawsIn(PassSkybox)[0].u
	if sky.DepthWrite {
		t.Error("skybox should not write depth")
	}
}

func TestPipelineModelMatrices(t *testing.T) {
	f := newRenderFixture(t)
	f.p.Render(f.scene, f.cam)
	g := f.scene.Graph()

	op := f.dev.drawsIn(PassOpaque)[0].u
	assertMat4(t, "opaque model", op.Model, g.GlobalMatrix(f.opaque), 0)
	assertMat4(t, "view", op.View, f.cam.View(), 0)

	ol := f.dev.drawsIn(PassOutline)[0].u
	s := 1 + f.p.Context().OutlineMaterial.Width
	want := g.GlobalMatrix(f.opaque).Mul4(mgl64.Scale3D(s, s, s))
	assertMat4(t, "outline model", ol.Model, want, 1e-12)
	if ol.Cull != CullFront {
		t.Errorf("outline cull = %v, want front", ol.Cull)
	}
}

func TestPipelineLightDirection(t *testing.T) {
	f := newRenderFixture(t)
	f.p.Render(f.scene, f.cam)

	op := f.dev.drawsIn(PassOpaque)[0].u
	assertVec3(t, "light dir", op.LightDir, mgl64.Vec3{0, -1, 0}, 1e-9)

	f.dev.draws = nil
	f.scene.Graph().Renderable(f.opaque).SetMaterial(&StandardMaterial{Color: ColorWhite, Unlit: true})
	f.p.Render(f.scene, f.cam)
	op = f.dev.drawsIn(PassOpaque)[0].u
	assertVec3(t, "unlit light dir", op.LightDir, mgl64.Vec3{}, 0)
}

// --- Shadows ---

func TestPipelineShadowMapCreatedLazilyOnce(t *testing.T) {
	f := newRenderFixture(t)
	if f.sun.ShadowMap() != nil {
		t.Fatal("shadow map should not exist before the first frame")
	}
	f.p.Render(f.scene, f.cam)
	f.p.Render(f.scene, f.cam)

	if len(f.dev.framebuffers) != 1 {
		t.Fatalf("framebuffers created = %d, want 1", len(f.dev.framebuffers))
	}
	fb := f.dev.framebuffers[0]
	if w, h := fb.Size(); w != 256 || h != 256 || !fb.desc.DepthOnly {
		t.Errorf("shadow map = %dx%d depth-only %v, want 256x256 depth-only", w, h, fb.desc.DepthOnly)
	}

	cfg := f.p.Config()
	cfg.ShadowMapSize = 512
	f.p.SetConfig(cfg)
	f.p.Render(f.scene, f.cam)
	if len(f.dev.framebuffers) != 2 || !fb.released {
		t.Error("resizing should release the old map and create a new one")
	}
}

func TestPipelineShadowsReachReceivers(t *testing.T) {
	f := newRenderFixture(t)
	f.p.Render(f.scene, f.cam)
	if got := f.dev.drawsIn(PassOpaque)[0].shadows; got != 1 {
		t.Errorf("opaque shadows = %d, want 1", got)
	}
	if got := f.dev.drawsIn(PassShadow)[0].shadows; got != 0 {
		t.Errorf("shadow pass draws should not sample shadows, got %d", got)
	}

	f.dev.draws = nil
	f.scene.Graph().Renderable(f.opaque).ReceiveShadows = false
	f.p.Render(f.scene, f.cam)
	if got := f.dev.drawsIn(PassOpaque)[0].shadows; got != 0 {
		t.Errorf("opaque shadows = %d, want 0 when not receiving", got)
	}
}

func TestPipelineNoCastersNoShadowPass(t *testing.T) {
	f := newRenderFixture(t)
	f.scene.Graph().Renderable(f.opaque).CastShadows = false
	stats := f.p.Render(f.scene, f.cam)
	if len(f.dev.drawsIn(PassShadow)) != 0 || stats.ShadowMaps != 0 {
		t.Error("no casters should skip the shadow pass")
	}
	if f.sun.ShadowMap() != nil {
		t.Error("shadow map should not be created without casters")
	}
}

func TestDirectionalShadowCameraCoversCasters(t *testing.T) {
	g := NewGraph()
	l := NewDirectionalLight(ColorWhite, 1)
	id := g.NewLightNode("sun", l)
	g.SetRotation(id, mgl64.Vec3{-0.8, 0.3, 0})

	bounds := AABB{Min: mgl64.Vec3{-2, -1, -3}, Max: mgl64.Vec3{4, 2, 1}}
	cam := l.fitShadowCamera(bounds)
	if cam.Projection != ProjectionOrthographic {
		t.Fatalf("projection = %v, want orthographic", cam.Projection)
	}
	f := cam.Frustum()
	for i, c := range bounds.Corners() {
		if !f.ContainsPoint(c) {
			t.Errorf("corner %d %v outside the shadow frustum", i, c)
		}
	}
	assertVec3(t, "shadow forward", cam.Forward(), l.Direction(), 1e-9)
}

func TestPointShadowCameraCoversCasters(t *testing.T) {
	g := NewGraph()
	l := NewPointLight(ColorWhite, 1)
	id := g.NewLightNode("bulb", l)
	g.SetPosition(id, mgl64.Vec3{0, 5, 0})

	bounds := AABB{Min: mgl64.Vec3{-0.5, -0.5, -0.5}, Max: mgl64.Vec3{0.5, 0.5, 0.5}}
	cam := l.fitShadowCamera(bounds)
	if cam.Projection != ProjectionPerspective {
		t.Fatalf("projection = %v, want perspective", cam.Projection)
	}
	f := cam.Frustum()
	if !f.ContainsPoint(bounds.Center()) {
		t.Error("caster center outside the shadow frustum")
	}
	for i, c := range bounds.Corners() {
		if !f.ContainsPoint(c) {
			t.Errorf("corner %d %v outside the shadow frustum", i, c)
		}
	}
	assertVec3(t, "position", cam.Position(), mgl64.Vec3{0, 5, 0}, 1e-12)
}

// --- Fallbacks and errors ---

func TestPipelineDefaultGeometryAndMaterial(t *testing.T) {
	dev := newFakeDevice()
	p := NewPipeline(NewRenderContext(dev, quietLogger()), DefaultConfig())
	s := NewScene("defaults")
	id := s.Graph().NewMesh("bare", nil, nil)
	s.Graph().SetPosition(id, mgl64.Vec3{0, 0, -5})
	s.Add(id)

	p.Render(s, newTestCamera())
	draws := dev.drawsIn(PassOpaque)
	if len(draws) != 1 {
		t.Fatalf("opaque draws = %d, want 1", len(draws))
	}
	if draws[0].geometry != p.Context().DefaultGeometry {
		t.Error("missing geometry should fall back to the default")
	}
	if draws[0].u.Color != (Color{1, 0, 1, 1}) {
		t.Errorf("color = %v, want the default magenta", draws[0].u.Color)
	}
}

func TestPipelineDrawErrorSkipsOnlyThatDraw(t *testing.T) {
	f := newRenderFixture(t)
	f.dev.failOn[PassTransparent] = errors.New("bad pipeline state")
	stats := f.p.Render(f.scene, f.cam)

	if stats.Skipped {
		t.Error("a draw error should not skip the frame")
	}
	if stats.Errors != 1 {
		t.Errorf("Errors = %d, want 1", stats.Errors)
	}
	if stats.Draws[PassTransparent] != 0 {
		t.Errorf("transparent draws = %d, want 0", stats.Draws[PassTransparent])
	}
	if len(f.dev.drawsIn(PassOutline)) != 1 || len(f.dev.drawsIn(PassWireframe)) != 1 {
		t.Error("later passes should still run")
	}
}

func TestPipelineContextLoss(t *testing.T) {
	f := newRenderFixture(t)
	ctx := f.p.Context()
	f.p.Render(f.scene, f.cam)
	resident := ctx.ResidentGeometries()
	created := len(f.dev.buffers)

	f.dev.lost = true
	stats := f.p.Render(f.scene, f.cam)
	if !stats.Skipped || !ctx.Lost() {
		t.Fatalf("loss not detected: skipped %v lost %v", stats.Skipped, ctx.Lost())
	}

	// While lost nothing reaches the device.
	f.dev.lost = false
	before := len(f.dev.draws)
	stats = f.p.Render(f.scene, f.cam)
	if !stats.Skipped || len(f.dev.draws) != before || f.dev.clears != 2 {
		t.Error("render while lost should be a no-op")
	}

	if err := ctx.Restore(); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if ctx.Lost() || ctx.Restores() != 1 {
		t.Errorf("after Restore: lost %v restores %d", ctx.Lost(), ctx.Restores())
	}
	if ctx.ResidentGeometries() != resident {
		t.Errorf("resident = %d, want %d", ctx.ResidentGeometries(), resident)
	}
	if len(f.dev.buffers) != 2*created {
		t.Errorf("buffers after restore = %d, want %d", len(f.dev.buffers), 2*created)
	}
	if len(f.dev.framebuffers) != 2 {
		t.Errorf("framebuffers after restore = %d, want 2", len(f.dev.framebuffers))
	}

	stats = f.p.Render(f.scene, f.cam)
	if stats.Skipped || stats.TotalDraws() != 6 {
		t.Errorf("frame after restore = %+v", stats)
	}
}

func TestPipelineRestoreFailsWhileStillLost(t *testing.T) {
	f := newRenderFixture(t)
	ctx := f.p.Context()
	f.p.Render(f.scene, f.cam)
	f.dev.lost = true
	f.p.Render(f.scene, f.cam)

	if err := ctx.Restore(); !errors.Is(err, ErrContextLost) {
		t.Errorf("Restore error = %v, want ErrContextLost", err)
	}
	if !ctx.Lost() {
		t.Error("context should stay lost")
	}
}

func TestPipelineLoseContextExternally(t *testing.T) {
	f := newRenderFixture(t)
	f.p.Context().LoseContext()
	if stats := f.p.Render(f.scene, f.cam); !stats.Skipped || len(f.dev.draws) != 0 {
		t.Error("external loss should stop rendering")
	}
}

func TestPipelineNoDevice(t *testing.T) {
	p := NewPipeline(NewRenderContext(nil, quietLogger()), DefaultConfig())
	s := NewScene("empty")
	if stats := p.Render(s, newTestCamera()); !stats.Skipped {
		t.Error("render without a device should be skipped")
	}
	if err := p.Context().Restore(); !errors.Is(err, ErrNoDevice) {
		t.Errorf("Restore error = %v, want ErrNoDevice", err)
	}
}

// --- Configuration ---

func TestPipelinePassToggles(t *testing.T) {
	f := newRenderFixture(t)
	cfg := f.p.Config()
	cfg.Passes.Shadows = false
	cfg.Passes.Skybox = false
	cfg.Passes.Outline = false
	f.p.SetConfig(cfg)
	f.p.Render(f.scene, f.cam)

	want := []PassKind{PassOpaque, PassTransparent, PassWireframe}
	got := f.dev.passes()
	if len(got) != len(want) {
		t.Fatalf("passes = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("pass %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestPipelineWireframeAll(t *testing.T) {
	f := newRenderFixture(t)
	cfg := f.p.Config()
	cfg.WireframeAll = true
	f.p.SetConfig(cfg)
	f.p.Render(f.scene, f.cam)
	if got := len(f.dev.drawsIn(PassWireframe)); got != 2 {
		t.Errorf("wireframe draws = %d, want 2", got)
	}
}

func TestPipelineOutlineConfig(t *testing.T) {
	f := newRenderFixture(t)
	cfg := f.p.Config()
	cfg.Outline = OutlineConfig{Width: 0.2, Color: [4]float64{0, 1, 0, 1}}
	f.p.SetConfig(cfg)
	f.p.Render(f.scene, f.cam)

	ol := f.dev.drawsIn(PassOutline)[0].u
	if ol.Color != (Color{0, 1, 0, 1}) {
		t.Errorf("outline color = %v", ol.Color)
	}
	if w, _ := ol.Get("outline_width"); w != 0.2 {
		t.Errorf("outline width = %v, want 0.2", w)
	}
}

func TestPipelineRenderDoesNotMutateTransforms(t *testing.T) {
	f := newRenderFixture(t)
	g := f.scene.Graph()
	f.p.Render(f.scene, f.cam)
	g.ResetStats()
	f.p.Render(f.scene, f.cam)
	if s := g.Stats(); s.GlobalInvalidations != 0 || s.GlobalRecomputes != 0 {
		t.Errorf("stats across a steady frame = %+v, want no invalidation or recompute", s)
	}
}

func TestPipelineTransparentOrderAcrossFrames(t *testing.T) {
	s := NewScene("order")
	dev := newFakeDevice()
	p := NewPipeline(NewRenderContext(dev, quietLogger()), DefaultConfig())
	cam := newTestCamera()
	glass := &StandardMaterial{Transparent: true}
	near := addBox(s, "near", glass, mgl64.Vec3{0, 0, -2})
	far := addBox(s, "far", glass, mgl64.Vec3{0, 0, -8})

	p.Render(s, cam)
	tr := dev.drawsIn(PassTransparent)
	if len(tr) != 2 || tr[0].u.Model != s.Graph().GlobalMatrix(far) {
		t.Fatal("far glass should draw first")
	}

	// Swap positions; the next frame re-sorts.
	s.Graph().SetPosition(near, mgl64.Vec3{0, 0, -9})
	dev.draws = nil
	p.Render(s, cam)
	tr = dev.drawsIn(PassTransparent)
	if len(tr) != 2 || tr[0].u.Model != s.Graph().GlobalMatrix(near) {
		t.Error("moved glass should now draw first")
	}
}

func TestPassKindString(t *testing.T) {
	names := map[PassKind]string{
		PassShadow: "shadow", PassSkybox: "skybox", PassOpaque: "opaque",
		PassTransparent: "transparent", PassOutline: "outline", PassWireframe: "wireframe",
		passCount: "unknown",
	}
	for k, want := range names {
		if got := k.String(); got != want {
			t.Errorf("PassKind(%d).String() = %q, want %q", k, got, want)
		}
	}
}

// --- Render context ---

func TestRenderContextBuffersCached(t *testing.T) {
	dev := newFakeDevice()
	ctx := NewRenderContext(dev, quietLogger())
	box := NewBoxMesh(1, 1, 1)

	gg, err := ctx.Buffers(box)
	if err != nil {
		t.Fatal(err)
	}
	again, _ := ctx.Buffers(box)
	if gg != again {
		t.Error("second Buffers call should return the cached upload")
	}
	// position, normal, uv, index
	if len(dev.buffers) != 4 {
		t.Errorf("buffers = %d, want 4", len(dev.buffers))
	}
	if gg.Count != 36 || gg.Stream(AttributeTangent) != nil || gg.Index == nil {
		t.Errorf("unexpected upload %+v", gg)
	}

	ctx.ReleaseGeometry(box)
	if ctx.ResidentGeometries() != 0 {
		t.Error("ReleaseGeometry should forget the upload")
	}
	for _, b := range dev.buffers {
		if !b.released {
			t.Error("buffer not released")
		}
	}
}

func TestRenderContextUploadFailureReleasesPartial(t *testing.T) {
	dev := newFakeDevice()
	ctx := NewRenderContext(dev, quietLogger())
	// The second buffer, the normal stream, fails.
	failing := &failingDevice{fakeDevice: dev, failAt: 2}
	ctx.Device = failing

	if _, err := ctx.Buffers(NewBoxMesh(1, 1, 1)); err == nil {
		t.Fatal("expected upload error")
	}
	if len(dev.buffers) != 1 || !dev.buffers[0].released {
		t.Error("partially uploaded buffers should be released")
	}
	if ctx.ResidentGeometries() != 0 {
		t.Error("failed upload should not be cached")
	}
}

type failingDevice struct {
	*fakeDevice
	calls  int
	failAt int
}

func (d *failingDevice) CreateBuffer(desc BufferDesc) (Buffer, error) {
	d.calls++
	if d.calls == d.failAt {
		return nil, errors.New("out of memory")
	}
	return d.fakeDevice.CreateBuffer(desc)
}

func TestRenderContextReleaseLight(t *testing.T) {
	f := newRenderFixture(t)
	f.p.Render(f.scene, f.cam)
	fb := f.dev.framebuffers[0]
	f.p.Context().ReleaseLight(f.sun)
	if !fb.released || f.sun.ShadowMap() != nil {
		t.Error("ReleaseLight should free the shadow map")
	}
}

func BenchmarkPipelineRender(b *testing.B) {
	s := NewScene("bench")
	g := s.Graph()
	mat := NewStandardMaterial(ColorWhite)
	glass := &StandardMaterial{Transparent: true}
	for i := 0; i < 500; i++ {
		m := Material(mat)
		if i%5 == 0 {
			m = glass
		}
		id := g.NewMesh("m", NewBoxMesh(1, 1, 1), m)
		g.SetPosition(id, mgl64.Vec3{float64(i%25) - 12, float64(i/25) - 10, -30})
		s.Add(id)
	}
	dev := newFakeDevice()
	p := NewPipeline(NewRenderContext(dev, quietLogger()), DefaultConfig())
	cam := newTestCamera()
	p.Render(s, cam)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		dev.draws = dev.draws[:0]
		p.Render(s, cam)
	}
}

// --- Per-draw robustness ---

func TestPipelineUniformValuesPerDraw(t *testing.T) {
	f := newRenderFixture(t)
	g := f.scene.Graph()
	glass := g.Renderable(f.glass)
	glass.CastShadows = true
	glass.Outline = true

	f.p.Render(f.scene, f.cam)
	shadows := f.dev.drawsIn(PassShadow)
	outlines := f.dev.drawsIn(PassOutline)
	if len(shadows) != 2 || len(outlines) != 2 {
		t.Fatalf("shadow draws = %d, outline draws = %d, want 2 and 2", len(shadows), len(outlines))
	}
	for i, d := range shadows {
		if _, ok := d.u.Get("depth_only"); !ok {
			t.Errorf("shadow draw %d lost depth_only", i)
		}
	}
	for i, d := range outlines {
		if _, ok := d.u.Get("outline_width"); !ok {
			t.Errorf("outline draw %d lost outline_width", i)
		}
	}
}

func TestPipelineNilOverlayMaterials(t *testing.T) {
	f := newRenderFixture(t)
	ctx := f.p.Context()
	ctx.OutlineMaterial = nil
	ctx.WireframeMaterial = nil
	f.p.SetConfig(f.p.Config())

	stats := f.p.Render(f.scene, f.cam)
	if stats.Skipped {
		t.Fatal("frame should not be skipped")
	}
	if stats.Draws[PassOutline] != 0 || stats.Draws[PassWireframe] != 0 {
		t.Errorf("overlay draws = %d/%d, want 0/0", stats.Draws[PassOutline], stats.Draws[PassWireframe])
	}
	if stats.Draws[PassOpaque] != 1 || stats.Draws[PassTransparent] != 1 {
		t.Errorf("main draws = %d/%d, want 1/1", stats.Draws[PassOpaque], stats.Draws[PassTransparent])
	}
}

func TestPipelineShadowBindFailureSkipsLight(t *testing.T) {
	f := newRenderFixture(t)
	g := f.scene.Graph()
	sun2 := NewDirectionalLight(ColorWhite, 0.5)
	sun2.CastShadows = true
	id := g.NewLightNode("sun2", sun2)
	g.SetRotation(id, mgl64.Vec3{-math.Pi / 2, 0, 0})
	f.scene.Add(id)

	f.p.Render(f.scene, f.cam)
	first, second := f.sun.ShadowMap(), sun2.ShadowMap()
	if first == nil || second == nil {
		t.Fatal("both lights should have shadow maps")
	}
	f.dev.failBind[second] = errors.New("bad framebuffer")
	f.dev.draws = nil

	stats := f.p.Render(f.scene, f.cam)
	var intoFirst, intoSecond int
	for _, d := range f.dev.drawsIn(PassShadow) {
		switch d.target {
		case first:
			intoFirst++
		case second:
			intoSecond++
		}
	}
	if intoFirst != 1 || intoSecond != 0 {
		t.Errorf("shadow draws into first/second = %d/%d, want 1/0", intoFirst, intoSecond)
	}
	if !f.sun.ShadowReady() || sun2.ShadowReady() {
		t.Errorf("ShadowReady = %v/%v, want true/false", f.sun.ShadowReady(), sun2.ShadowReady())
	}
	if stats.ShadowMaps != 1 || stats.Errors != 1 {
		t.Errorf("ShadowMaps = %d, Errors = %d, want 1 and 1", stats.ShadowMaps, stats.Errors)
	}
	opaque := f.dev.drawsIn(PassOpaque)
	if len(opaque) != 1 || opaque[0].shadows != 1 || opaque[0].target != nil {
		t.Errorf("opaque draws = %+v, want one draw to the screen with one shadow sample", opaque)
	}
}

func TestPipelineDestroyedLightNotRestored(t *testing.T) {
	f := newRenderFixture(t)
	ctx := f.p.Context()
	f.p.Render(f.scene, f.cam)
	if f.sun.ShadowMap() == nil {
		t.Fatal("expected a shadow map")
	}

	f.scene.Graph().Destroy(f.sun.Node())
	ctx.LoseContext()
	before := len(f.dev.framebuffers)
	if err := ctx.Restore(); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if got := len(f.dev.framebuffers) - before; got != 0 {
		t.Errorf("framebuffers created on restore = %d, want 0", got)
	}
	if f.sun.ShadowMap() != nil {
		t.Error("destroyed light should drop its shadow map")
	}
}

func TestPipelineDestroyedLightReleased(t *testing.T) {
	f := newRenderFixture(t)
	f.p.Render(f.scene, f.cam)
	fb := f.sun.ShadowMap().(*fakeFramebuffer)

	f.scene.Graph().Destroy(f.sun.Node())
	stats := f.p.Render(f.scene, f.cam)
	if !fb.released {
		t.Error("shadow map of a destroyed light should be released")
	}
	if stats.ShadowMaps != 0 || stats.Draws[PassShadow] != 0 {
		t.Errorf("shadow maps = %d, shadow draws = %d, want 0", stats.ShadowMaps, stats.Draws[PassShadow])
	}
}
