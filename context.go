package sylvan

import (
	"errors"
	"fmt"
	"log/slog"
)

// RenderContext holds what a pipeline shares across frames: the device, the
// fallback geometry and materials, the logger, and the GPU resources created
// from CPU-side data. Resources are keyed by their source so they can be
// recreated after a context loss.
type RenderContext struct {
	Device Device
	Logger *slog.Logger

	// DefaultGeometry is drawn for renderables with no geometry.
	DefaultGeometry Geometry
	// DefaultMaterial is used for renderables with no material.
	DefaultMaterial   Material
	DepthMaterial     Material
	OutlineMaterial   *OutlineMaterial
	WireframeMaterial *WireframeMaterial

	lost     bool
	restores int
	buffers  map[Geometry]*GPUGeometry
	shadows  map[*Light]struct{}
}

// NewRenderContext creates a context for dev. A nil logger uses slog.Default.
func NewRenderContext(dev Device, logger *slog.Logger) *RenderContext {
	if logger == nil {
		logger = slog.Default()
	}
	return &RenderContext{
		Device:            dev,
		Logger:            logger,
		DefaultGeometry:   NewBoxMesh(1, 1, 1),
		DefaultMaterial:   NewStandardMaterial(Color{1, 0, 1, 1}),
		DepthMaterial:     DepthMaterial{},
		OutlineMaterial:   &OutlineMaterial{Color: Color{1, 0.6, 0, 1}, Width: 0.05},
		WireframeMaterial: &WireframeMaterial{Color: ColorWhite},
		buffers:           make(map[Geometry]*GPUGeometry),
		shadows:           make(map[*Light]struct{}),
	}
}

// Lost reports whether the graphics context has been lost and not yet
// restored. While lost, rendering is a no-op.
func (c *RenderContext) Lost() bool { return c.lost }

// Restores returns how many times Restore has succeeded.
func (c *RenderContext) Restores() int { return c.restores }

// LoseContext records a context loss reported outside the device, such as a
// platform event. The flag stays set until Restore.
func (c *RenderContext) LoseContext() {
	if !c.lost {
		c.Logger.Warn("graphics context lost")
	}
	c.lost = true
}

// Restore recreates every geometry buffer and shadow framebuffer from its
// CPU-side source and clears the lost flag. Shadow maps of destroyed lights
// are not recreated. Resources from the lost context
// are dropped without being released.
func (c *RenderContext) Restore() error {
	if c.Device == nil {
		return ErrNoDevice
	}
	c.lost = false
	c.pruneLights(false)
	for geom, gg := range c.buffers {
		fresh, err := c.upload(geom)
		if err != nil {
			c.checkLost(err)
			return fmt.Errorf("restore geometry buffers: %w", err)
		}
		*gg = *fresh
	}
	for l := range c.shadows {
		size := l.shadow.size
		l.shadow.fb = nil
		if _, err := c.shadowFramebuffer(l, size); err != nil {
			c.checkLost(err)
			return fmt.Errorf("restore shadow map: %w", err)
		}
	}
	c.restores++
	c.Logger.Info("graphics context restored",
		slog.Int("geometries", len(c.buffers)),
		slog.Int("shadow_maps", len(c.shadows)))
	return nil
}

// checkLost sets the lost flag when err is ErrContextLost and reports
// whether it did.
func (c *RenderContext) checkLost(err error) bool {
	if errors.Is(err, ErrContextLost) {
		c.LoseContext()
		return true
	}
	return false
}

// Buffers returns the uploaded buffers for geom, uploading on first use.
func (c *RenderContext) Buffers(geom Geometry) (*GPUGeometry, error) {
	if gg, ok := c.buffers[geom]; ok {
		return gg, nil
	}
	if c.Device == nil {
		return nil, ErrNoDevice
	}
	gg, err := c.upload(geom)
	if err != nil {
		return nil, err
	}
	c.buffers[geom] = gg
	return gg, nil
}

// ReleaseGeometry frees the buffers uploaded for geom. Call it after
// replacing a geometry's vertex data so the next draw re-uploads.
func (c *RenderContext) ReleaseGeometry(geom Geometry) {
	if gg, ok := c.buffers[geom]; ok {
		gg.release()
		delete(c.buffers, geom)
	}
}

// ResidentGeometries returns the number of geometries with uploaded buffers.
func (c *RenderContext) ResidentGeometries() int { return len(c.buffers) }

func (c *RenderContext) upload(geom Geometry) (*GPUGeometry, error) {
	gg := &GPUGeometry{Geometry: geom}
	for kind := AttributePosition; kind <= AttributeTangent; kind++ {
		a, ok := geom.Attribute(kind)
		if !ok {
			continue
		}
		b, err := c.Device.CreateBuffer(BufferDesc{
			Label:    kind.String(),
			Usage:    VertexBuffer,
			ItemSize: a.ItemSize,
			Floats:   a.Data,
		})
		if err != nil {
			gg.release()
			return nil, fmt.Errorf("upload %s stream: %w", kind, err)
		}
		gg.Streams[kind] = b
		if kind == AttributePosition {
			gg.Count = a.Count()
		}
	}
	if idx := geom.Indices(); idx != nil {
		b, err := c.Device.CreateBuffer(BufferDesc{Label: "index", Usage: IndexBuffer, Indices: idx})
		if err != nil {
			gg.release()
			return nil, fmt.Errorf("upload index buffer: %w", err)
		}
		gg.Index = b
		gg.Count = len(idx)
	}
	return gg, nil
}

// shadowFramebuffer returns l's shadow map, creating it at size on first use
// or when the requested size changes.
func (c *RenderContext) shadowFramebuffer(l *Light, size int) (Framebuffer, error) {
	if l.shadow.fb != nil && l.shadow.size == size {
		return l.shadow.fb, nil
	}
	if c.Device == nil {
		return nil, ErrNoDevice
	}
	if l.shadow.fb != nil {
		l.shadow.fb.Release()
		l.shadow.fb = nil
	}
	fb, err := c.Device.CreateFramebuffer(FramebufferDesc{
		Label:     "shadow",
		Width:     size,
		Height:    size,
		DepthOnly: true,
	})
	if err != nil {
		return nil, err
	}
	l.shadow.fb = fb
	l.shadow.size = size
	c.shadows[l] = struct{}{}
	return fb, nil
}

// pruneLights stops tracking lights whose node was destroyed. With release
// set their shadow maps are freed; after a context loss they are dropped.
func (c *RenderContext) pruneLights(release bool) {
	for l := range c.shadows {
		if l.graph != nil {
			continue
		}
		if release && l.shadow.fb != nil {
			l.shadow.fb.Release()
		}
		l.shadow.fb = nil
		l.shadow.valid = false
		delete(c.shadows, l)
	}
}

// ReleaseLight frees l's shadow map and stops tracking it.
func (c *RenderContext) ReleaseLight(l *Light) {
	if l.shadow.fb != nil {
		l.shadow.fb.Release()
		l.shadow.fb = nil
	}
	delete(c.shadows, l)
}
