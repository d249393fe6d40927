package sylvan

import (
	"errors"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

// sphereRow places unit spheres along -Z at the given distances from the
// origin and returns their renderables in the same order.
func sphereRow(g *Graph, distances ...float64) []*Renderable {
	var out []*Renderable
	for _, d := range distances {
		id := g.NewMesh("sphere", NewSphere(1, 16, 8), nil)
		g.SetPosition(id, mgl64.Vec3{0, 0, -d})
		out = append(out, g.Renderable(id))
	}
	return out
}

var forwardRay = Ray{Direction: mgl64.Vec3{0, 0, -1}}

func TestPickClosest(t *testing.T) {
	g := NewGraph()
	rs := sphereRow(g, 10, 5)
	var rc Raycaster

	hit, ok := rc.PickClosest(forwardRay, rs)
	if !ok {
		t.Fatal("expected a hit")
	}
	if hit.Renderable != rs[1] {
		t.Errorf("hit the sphere at distance %v, want 5", -g.WorldPosition(hit.Node)[2])
	}
	assertNear(t, "Distance", hit.Distance, 4)
	assertVec3(t, "Point", hit.Point, mgl64.Vec3{0, 0, -4}, 1e-9)
	assertVec3(t, "Normal", hit.Normal, mgl64.Vec3{0, 0, 1}, 1e-9)
	if hit.Node != rs[1].Node() {
		t.Error("hit node mismatch")
	}
}

func TestPickClosestOrderIndependent(t *testing.T) {
	g := NewGraph()
	rs := sphereRow(g, 5, 10)
	var rc Raycaster
	hit, ok := rc.PickClosest(forwardRay, rs)
	if !ok || hit.Renderable != rs[0] {
		t.Error("expected the near sphere regardless of candidate order")
	}
}

func TestPickClosestNoCandidates(t *testing.T) {
	var rc Raycaster
	if _, ok := rc.PickClosest(forwardRay, nil); ok {
		t.Error("expected no hit with no candidates")
	}

	g := NewGraph()
	rs := sphereRow(g, 5)
	miss := Ray{Direction: mgl64.Vec3{1, 0, 0}}
	if _, ok := rc.PickClosest(miss, rs); ok {
		t.Error("expected no hit for a ray pointing away")
	}
}

func TestPickClosestBroadPhaseOnlyMiss(t *testing.T) {
	// The ray clips the sphere's bounding box corner but not the sphere.
	g := NewGraph()
	rs := sphereRow(g, 5)
	ray := Ray{Origin: mgl64.Vec3{0.9, 0.9, 0}, Direction: mgl64.Vec3{0, 0, -1}}
	var rc Raycaster
	if _, ok := rc.PickClosest(ray, rs); ok {
		t.Error("box-only overlap should not count as a hit")
	}
}

func TestPickClosestScaledNode(t *testing.T) {
	g := NewGraph()
	parent := g.NewGroup("parent")
	g.SetScale(parent, mgl64.Vec3{2, 2, 2})
	id := g.NewMesh("ball", NewSphere(1, 16, 8), nil)
	g.AddChild(parent, id)
	g.SetPosition(id, mgl64.Vec3{0, 0, -5})

	var rc Raycaster
	hit, ok := rc.PickClosest(forwardRay, []*Renderable{g.Renderable(id)})
	if !ok {
		t.Fatal("expected hit")
	}
	// Center at z=-10 with world radius 2.
	assertNear(t, "Distance", hit.Distance, 8)
	assertVec3(t, "Point", hit.Point, mgl64.Vec3{0, 0, -8}, 1e-9)
	assertVec3(t, "Normal", hit.Normal, mgl64.Vec3{0, 0, 1}, 1e-9)
}

func TestPickClosestTriangleMesh(t *testing.T) {
	g := NewGraph()
	id := g.NewMesh("box", NewBoxMesh(2, 2, 2), nil)
	g.SetPosition(id, mgl64.Vec3{0, 0, -5})
	g.SetRotation(id, mgl64.Vec3{0, 0, 0.3})

	var rc Raycaster
	hit, ok := rc.PickClosest(forwardRay, []*Renderable{g.Renderable(id)})
	if !ok {
		t.Fatal("expected hit")
	}
	assertNear(t, "Distance", hit.Distance, 4)
	assertVec3(t, "Normal", hit.Normal, mgl64.Vec3{0, 0, 1}, 1e-9)
}

func TestPickSkipsUnusableCandidates(t *testing.T) {
	g := NewGraph()
	empty := g.NewMesh("empty", nil, nil)
	g.SetPosition(empty, mgl64.Vec3{0, 0, -2})
	gone := g.NewMesh("gone", NewSphere(1, 8, 4), nil)
	g.SetPosition(gone, mgl64.Vec3{0, 0, -3})
	goneR := g.Renderable(gone)
	g.Destroy(gone)
	rs := append([]*Renderable{nil, g.Renderable(empty), goneR}, sphereRow(g, 6)...)

	var rc Raycaster
	hit, ok := rc.PickClosest(forwardRay, rs)
	if !ok {
		t.Fatal("expected the live sphere to be hit")
	}
	assertNear(t, "Distance", hit.Distance, 5)
}

func TestPickAll(t *testing.T) {
	g := NewGraph()
	rs := sphereRow(g, 5, 10, 15)
	// Off to the side.
	side := g.NewMesh("side", NewSphere(1, 8, 4), nil)
	g.SetPosition(side, mgl64.Vec3{10, 0, -5})
	rs = append(rs, g.Renderable(side))

	var rc Raycaster
	hits := rc.PickAll(forwardRay, rs)
	if len(hits) != 3 {
		t.Fatalf("len(hits) = %d, want 3", len(hits))
	}
	seen := map[*Renderable]bool{}
	for _, h := range hits {
		seen[h.Renderable] = true
	}
	for i := 0; i < 3; i++ {
		if !seen[rs[i]] {
			t.Errorf("sphere %d missing from PickAll", i)
		}
	}
}

func TestPickZeroDirectionPanics(t *testing.T) {
	var rc Raycaster
	mustPanic(t, "PickClosest", func() { rc.PickClosest(Ray{}, nil) })
	mustPanic(t, "PickAll", func() { rc.PickAll(Ray{}, nil) })

	nan := Ray{Direction: mgl64.Vec3{math.NaN(), 0, -1}}
	mustPanic(t, "PickClosest NaN", func() { rc.PickClosest(nan, nil) })
	mustPanic(t, "PickAll NaN", func() { rc.PickAll(nan, nil) })
}

func TestNewRay(t *testing.T) {
	r, err := NewRay(mgl64.Vec3{1, 2, 3}, mgl64.Vec3{0, 0, -4})
	if err != nil {
		t.Fatal(err)
	}
	assertVec3(t, "direction", r.Direction, mgl64.Vec3{0, 0, -1}, 0)
	assertVec3(t, "At(2)", r.At(2), mgl64.Vec3{1, 2, 1}, 0)

	if _, err := NewRay(mgl64.Vec3{}, mgl64.Vec3{}); !errors.Is(err, ErrZeroDirection) {
		t.Errorf("error = %v, want ErrZeroDirection", err)
	}
}

func TestRayTransformKeepsParameter(t *testing.T) {
	r := Ray{Origin: mgl64.Vec3{1, 0, 0}, Direction: mgl64.Vec3{0, 1, 0}}
	m := mgl64.Translate3D(0, 0, 5).Mul4(mgl64.Scale3D(3, 3, 3))
	tr := r.Transform(m)
	assertVec3(t, "At(2) transformed", tr.At(2), mgl64.TransformCoordinate(r.At(2), m), 1e-12)
}

func BenchmarkPickClosest(b *testing.B) {
	g := NewGraph()
	var rs []*Renderable
	for i := 0; i < 200; i++ {
		id := g.NewMesh("s", NewSphere(0.5, 8, 4), nil)
		g.SetPosition(id, mgl64.Vec3{float64(i%20) - 10, float64(i/20) - 5, -20})
		rs = append(rs, g.Renderable(id))
	}
	var rc Raycaster
	rc.PickClosest(forwardRay, rs)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		rc.PickClosest(forwardRay, rs)
	}
}
