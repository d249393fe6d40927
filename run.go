package sylvan

import (
	"fmt"
	"log/slog"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

// RunConfig configures the window and loop started by Run.
type RunConfig struct {
	Title         string
	Width, Height int
	// ShowFPS prints FPS, TPS and the last frame's draw count in the corner.
	ShowFPS bool
	// Config is the pipeline configuration. The zero value uses DefaultConfig.
	Config *Config
	Logger *slog.Logger
	// Skybox is drawn behind the scene when set.
	Skybox *Skybox
	// Update is called once per tick with the tick duration in seconds.
	Update func(dt float64) error
	// OnPick is called with the result of every left click on the window.
	OnPick func(hit Hit, ok bool)

	// Script, when set, runs one step per tick.
	Script *Script
	// ScreenshotDir receives screenshot captures. Defaults to "screenshots".
	ScreenshotDir string
	// ExitWhenDone ends Run once Script finishes and its captures are written.
	ExitWhenDone bool
}

// game adapts a scene, camera, and pipeline to ebiten.Game.
type game struct {
	scene    *Scene
	cam      *Camera
	device   *EbitenDevice
	pipeline *Pipeline
	shots    *Screenshots
	cfg      RunConfig
	viewport Rect
	last     FrameStats
}

// Run opens a window and renders scene through cam until the window closes
// or Update returns an error.
func Run(scene *Scene, cam *Camera, cfg RunConfig) error {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return fmt.Errorf("sylvan: invalid window size %dx%d", cfg.Width, cfg.Height)
	}
	pcfg := DefaultConfig()
	if cfg.Config != nil {
		pcfg = *cfg.Config
	}
	if err := pcfg.Validate(); err != nil {
		return err
	}
	if cfg.ScreenshotDir == "" {
		cfg.ScreenshotDir = "screenshots"
	}
	dev := NewEbitenDevice()
	p := NewPipeline(NewRenderContext(dev, cfg.Logger), pcfg)
	p.Skybox = cfg.Skybox
	scene.Graph().SetLogger(p.ctx.Logger)
	scene.Graph().SetDebug(pcfg.Debug)

	ebiten.SetWindowTitle(cfg.Title)
	ebiten.SetWindowSize(cfg.Width, cfg.Height)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	return ebiten.RunGame(&game{
		scene:    scene,
		cam:      cam,
		device:   dev,
		pipeline: p,
		shots:    &Screenshots{Dir: cfg.ScreenshotDir, Logger: p.ctx.Logger},
		cfg:      cfg,
		viewport: Rect{Width: float64(cfg.Width), Height: float64(cfg.Height)},
	})
}

func (g *game) Update() error {
	dt := 1.0 / float64(ebiten.TPS())
	if g.cfg.Update != nil {
		if err := g.cfg.Update(dt); err != nil {
			return err
		}
	}
	g.cam.Update(float32(dt))

	if g.cfg.OnPick != nil && inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) {
		x, y := ebiten.CursorPosition()
		hit, ok := g.scene.Pick(g.cam, float64(x), float64(y), g.viewport)
		g.cfg.OnPick(hit, ok)
	}

	if s := g.cfg.Script; s != nil {
		if err := s.step(g.scene, g.cam, g.viewport, g.shots); err != nil {
			return err
		}
		if s.Done() && g.cfg.ExitWhenDone && g.shots.Pending() == 0 {
			return ebiten.Termination
		}
	}
	return nil
}

func (g *game) Draw(screen *ebiten.Image) {
	g.device.SetScreen(screen)
	g.last = g.pipeline.Render(g.scene, g.cam)
	g.shots.flush(screen)
	if g.cfg.ShowFPS {
		ebitenutil.DebugPrint(screen, fmt.Sprintf("FPS: %.1f\nTPS: %.1f\nDraws: %d",
			ebiten.ActualFPS(), ebiten.ActualTPS(), g.last.TotalDraws()))
	}
}

func (g *game) Layout(outsideWidth, outsideHeight int) (int, int) {
	if outsideHeight > 0 && g.cam.Projection == ProjectionPerspective {
		g.cam.SetAspect(float64(outsideWidth) / float64(outsideHeight))
	}
	g.viewport = Rect{Width: float64(outsideWidth), Height: float64(outsideHeight)}
	return outsideWidth, outsideHeight
}
