package sylvan

import (
	"log/slog"
	"time"
)

// FrameStats holds per-frame timing and draw counts returned by
// Pipeline.Render.
type FrameStats struct {
	Frame uint64
	// Skipped is set when the frame was not drawn because the graphics
	// context is lost.
	Skipped bool

	Visible     int
	Opaque      int
	Transparent int
	ShadowMaps  int
	Draws       [passCount]int
	// Errors counts draws dropped after a device error.
	Errors int

	BuildTime   time.Duration
	ShadowTime  time.Duration
	MainTime    time.Duration
	OverlayTime time.Duration
}

// TotalDraws returns the number of draw calls across all passes.
func (s FrameStats) TotalDraws() int {
	n := 0
	for _, d := range s.Draws {
		n += d
	}
	return n
}

// debugLog writes timing and draw-call stats at debug level.
func (p *Pipeline) debugLog(stats FrameStats) {
	if !p.cfg.Debug {
		return
	}
	total := stats.BuildTime + stats.ShadowTime + stats.MainTime + stats.OverlayTime
	p.ctx.Logger.Debug("frame timing",
		slog.Uint64("frame", stats.Frame),
		slog.Duration("build", stats.BuildTime),
		slog.Duration("shadow", stats.ShadowTime),
		slog.Duration("main", stats.MainTime),
		slog.Duration("overlay", stats.OverlayTime),
		slog.Duration("total", total))
	p.ctx.Logger.Debug("frame draws",
		slog.Uint64("frame", stats.Frame),
		slog.Int("visible", stats.Visible),
		slog.Int("opaque", stats.Opaque),
		slog.Int("transparent", stats.Transparent),
		slog.Int("shadow_maps", stats.ShadowMaps),
		slog.Int("draws", stats.TotalDraws()),
		slog.Int("errors", stats.Errors))
}

const debugMaxTreeDepth = 32

// debugCheckTreeDepth warns if the node sits deeper than debugMaxTreeDepth.
func (g *Graph) debugCheckTreeDepth(id NodeID) {
	depth := 0
	for p := id; !p.IsZero(); p = g.nodes[p.index].parent {
		depth++
	}
	if depth > debugMaxTreeDepth {
		g.log().Warn("tree depth exceeds threshold",
			slog.Int("depth", depth),
			slog.Int("threshold", debugMaxTreeDepth),
			slog.String("node", g.nodes[id.index].name))
	}
}

const debugMaxChildCount = 1000

// debugCheckChildCount warns if a node has more than debugMaxChildCount children.
func (g *Graph) debugCheckChildCount(id NodeID) {
	n := &g.nodes[id.index]
	if len(n.children) > debugMaxChildCount {
		g.log().Warn("child count exceeds threshold",
			slog.String("node", n.name),
			slog.Int("children", len(n.children)),
			slog.Int("threshold", debugMaxChildCount))
	}
}
