package sylvan

import (
	"encoding/json"
	"fmt"
)

// ScriptStep is one scripted action.
//
//	{"action": "pick", "x": 320, "y": 240}
//	{"action": "hide", "node": "crate"}
//	{"action": "wait", "frames": 3}
//	{"action": "screenshot", "label": "after-hide"}
type ScriptStep struct {
	Action string  `json:"action"`
	Label  string  `json:"label,omitempty"`
	Node   string  `json:"node,omitempty"`
	X      float64 `json:"x,omitempty"`
	Y      float64 `json:"y,omitempty"`
	Frames int     `json:"frames,omitempty"`
}

// ScriptPick records the outcome of a pick step.
type ScriptPick struct {
	X, Y     float64
	Hit      bool
	Name     string
	Distance float64
}

// Script runs a sequence of picks, visibility toggles, and screenshots, one
// step per frame, for automated checks of a scene.
type Script struct {
	steps  []ScriptStep
	cursor int
	wait   int
	done   bool

	// Picks holds the result of every pick step in order.
	Picks []ScriptPick
}

// LoadScript parses a JSON script of the form {"steps": [...]}.
func LoadScript(data []byte) (*Script, error) {
	var raw struct {
		Steps []ScriptStep `json:"steps"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse script: %w", err)
	}
	if len(raw.Steps) == 0 {
		return nil, fmt.Errorf("parse script: no steps")
	}
	for i, st := range raw.Steps {
		switch st.Action {
		case "screenshot", "pick", "wait":
		case "hide", "show":
			if st.Node == "" {
				return nil, fmt.Errorf("parse script: step %d: %s needs a node", i, st.Action)
			}
		default:
			return nil, fmt.Errorf("parse script: step %d: unknown action %q", i, st.Action)
		}
	}
	return &Script{steps: raw.Steps}, nil
}

// Done reports whether every step has run.
func (r *Script) Done() bool { return r.done }

// step runs at most one action. shots may be nil, in which case screenshot
// steps are skipped.
func (r *Script) step(scene *Scene, cam *Camera, viewport Rect, shots *Screenshots) error {
	if r.done {
		return nil
	}
	if r.wait > 0 {
		r.wait--
		return nil
	}
	if r.cursor >= len(r.steps) {
		r.done = true
		return nil
	}
	st := r.steps[r.cursor]
	r.cursor++

	switch st.Action {
	case "screenshot":
		if shots != nil {
			shots.Queue(st.Label)
		}
	case "pick":
		p := ScriptPick{X: st.X, Y: st.Y}
		if hit, ok := scene.Pick(cam, st.X, st.Y, viewport); ok {
			p.Hit = true
			p.Name = scene.Graph().Name(hit.Node)
			p.Distance = hit.Distance
		}
		r.Picks = append(r.Picks, p)
	case "hide", "show":
		g := scene.Graph()
		id := g.Find(scene.Root(), st.Node)
		if id.IsZero() {
			return fmt.Errorf("script step %d: node %q not found", r.cursor-1, st.Node)
		}
		g.SetVisible(id, st.Action == "show")
	case "wait":
		if st.Frames > 0 {
			r.wait = st.Frames - 1
		}
	}
	if r.cursor >= len(r.steps) && r.wait == 0 {
		r.done = true
	}
	return nil
}
