package sylvan

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func captureLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestPipelineDebugLog(t *testing.T) {
	f := newRenderFixture(t)
	var buf bytes.Buffer
	f.p.Context().Logger = captureLogger(&buf)

	f.p.Render(f.scene, f.cam)
	if buf.Len() != 0 {
		t.Errorf("debug off should log nothing, got %q", buf.String())
	}

	cfg := f.p.Config()
	cfg.Debug = true
	f.p.SetConfig(cfg)
	f.p.Render(f.scene, f.cam)
	out := buf.String()
	for _, want := range []string{"frame timing", "frame draws", "draws=6", "shadow_maps=1"} {
		if !strings.Contains(out, want) {
			t.Errorf("log missing %q:\n%s", want, out)
		}
	}
}

func TestRenderErrorLogged(t *testing.T) {
	f := newRenderFixture(t)
	var buf bytes.Buffer
	f.p.Context().Logger = captureLogger(&buf)
	f.dev.failOn = map[PassKind]error{PassWireframe: errors.New("bad state")}

	stats := f.p.Render(f.scene, f.cam)
	if stats.Errors != 1 {
		t.Errorf("Errors = %d, want 1", stats.Errors)
	}
	if !strings.Contains(buf.String(), "op=\"draw wireframe\"") {
		t.Errorf("log = %q, want the failing op", buf.String())
	}
}

func TestFrameStatsTotalDraws(t *testing.T) {
	var s FrameStats
	s.Draws[PassOpaque] = 3
	s.Draws[PassOutline] = 2
	if got := s.TotalDraws(); got != 5 {
		t.Errorf("TotalDraws = %d, want 5", got)
	}
}

func TestGraphDebugWarnings(t *testing.T) {
	var buf bytes.Buffer
	g := NewGraph()
	g.SetDebug(true)
	g.SetLogger(captureLogger(&buf))
	parent := g.NewGroup("n0")
	for i := 0; i < debugMaxTreeDepth+1; i++ {
		child := g.NewGroup("deep")
		g.AddChild(parent, child)
		parent = child
	}
	if !strings.Contains(buf.String(), "tree depth exceeds threshold") {
		t.Error("expected a tree depth warning")
	}

	buf.Reset()
	wide := g.NewGroup("wide")
	for i := 0; i < debugMaxChildCount+1; i++ {
		g.AddChild(wide, g.NewGroup("leaf"))
	}
	if !strings.Contains(buf.String(), "child count exceeds threshold") {
		t.Error("expected a child count warning")
	}
}
