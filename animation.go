package sylvan

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
)

type tweenChannel uint8

const (
	tweenPosition tweenChannel = iota
	tweenRotation
	tweenScale
)

// TweenGroup animates the three components of a node's position, rotation,
// or scale. Create one via TweenPosition, TweenRotation, or TweenScale and
// call Update(dt) each frame. Values are written through the graph setters,
// so the node's transform caches are invalidated as usual. If the target node
// is destroyed, the group stops immediately.
//
// There is no global animation manager; call Update yourself.
type TweenGroup struct {
	tweens  [3]*gween.Tween
	graph   *Graph
	node    NodeID
	channel tweenChannel
	Done    bool
}

func newTweenGroup(g *Graph, id NodeID, ch tweenChannel, from, to mgl64.Vec3, duration float32, fn ease.TweenFunc) *TweenGroup {
	if fn == nil {
		fn = ease.Linear
	}
	tg := &TweenGroup{graph: g, node: id, channel: ch}
	for i := 0; i < 3; i++ {
		tg.tweens[i] = gween.New(float32(from[i]), float32(to[i]), duration, fn)
	}
	return tg
}

// TweenPosition creates a TweenGroup that moves the node to the given local
// position over duration seconds.
func TweenPosition(g *Graph, id NodeID, to mgl64.Vec3, duration float32, fn ease.TweenFunc) *TweenGroup {
	return newTweenGroup(g, id, tweenPosition, g.Position(id), to, duration, fn)
}

// TweenRotation creates a TweenGroup that turns the node to the given Euler
// rotation over duration seconds.
func TweenRotation(g *Graph, id NodeID, to mgl64.Vec3, duration float32, fn ease.TweenFunc) *TweenGroup {
	return newTweenGroup(g, id, tweenRotation, g.Rotation(id), to, duration, fn)
}

// TweenScale creates a TweenGroup that scales the node to the given value
// over duration seconds.
func TweenScale(g *Graph, id NodeID, to mgl64.Vec3, duration float32, fn ease.TweenFunc) *TweenGroup {
	return newTweenGroup(g, id, tweenScale, g.Scale(id), to, duration, fn)
}

// Update advances all tweens by dt seconds and writes the values to the node.
func (tg *TweenGroup) Update(dt float32) {
	if tg.Done {
		return
	}
	if !tg.graph.Alive(tg.node) {
		tg.Done = true
		return
	}

	var v mgl64.Vec3
	allDone := true
	for i := 0; i < 3; i++ {
		val, finished := tg.tweens[i].Update(dt)
		v[i] = float64(val)
		if !finished {
			allDone = false
		}
	}
	tg.Done = allDone

	switch tg.channel {
	case tweenPosition:
		tg.graph.SetPosition(tg.node, v)
	case tweenRotation:
		tg.graph.SetRotation(tg.node, v)
	case tweenScale:
		tg.graph.SetScale(tg.node, v)
	}
}
