// Package sylvan is a retained-mode 3D scene graph and render pipeline for
// [Ebitengine].
//
// Sylvan keeps a hierarchy of nodes with lazily cached world transforms,
// culls and sorts what each camera sees once per frame, answers ray picks
// against the same visibility data, and drives a fixed sequence of render
// passes through a small [Device] interface.
//
// # Quick start
//
// [Run] opens a window and game loop for you:
//
//	scene := sylvan.NewScene("main")
//	g := scene.Graph()
//
//	crate := g.NewMesh("crate", sylvan.NewBoxMesh(1, 1, 1),
//		sylvan.NewStandardMaterial(sylvan.Color{R: 0.8, G: 0.5, B: 0.2, A: 1}))
//	g.SetPosition(crate, mgl64.Vec3{0, 0, -5})
//	scene.Add(crate)
//
//	cam := sylvan.NewPerspectiveCamera(mgl64.DegToRad(60), 4.0/3, 0.1, 100)
//	sylvan.Run(scene, cam, sylvan.RunConfig{Title: "Crate", Width: 640, Height: 480})
//
// For full control, create a [Pipeline] over a [RenderContext] and call
// [Pipeline.Render] from your own ebiten.Game.
//
// # Scene graph
//
// Nodes live in a [Graph] arena and are addressed by [NodeID] handles. A
// handle goes stale when its node is destroyed; using a stale handle panics,
// and [Graph.SetParent] reports [ErrStaleNode]. Reparenting a node under its
// own descendant fails with [ErrCycle].
//
// Each node caches its local, world, inverse world, normal and rotation
// matrices. Setting position, rotation or scale invalidates the node and its
// descendants; matrices are recomputed on the next read, touching only the
// invalid ancestors.
//
// # Visibility and picking
//
// [Scene.Picks] returns the [PickCache] for a camera: the renderables inside
// its frustum, split into opaque (near to far) and transparent (far to near)
// lists. A cache is built at most once per frame and is cleared by structural
// changes, visibility or material changes, and [Scene.BeginFrame].
//
// [Scene.Pick] casts a ray through a screen point and returns the closest
// [Hit]. A [Raycaster] can also be used directly with any [Ray].
//
// # Rendering
//
// [Pipeline.Render] runs the shadow, skybox, opaque, transparent, outline and
// wireframe passes in that order. Passes can be toggled through [Config],
// which loads from TOML. When the device reports [ErrContextLost], frames are
// skipped until [RenderContext.Restore] succeeds.
//
// Node animation is available through [TweenPosition], [TweenRotation] and
// [TweenScale] (via [gween]). Pick results can be mirrored into a [Donburi]
// world with the sylvan/ecs adapter.
//
// [Ebitengine]: https://ebitengine.org
// [gween]: https://github.com/tanema/gween
// [Donburi]: https://github.com/yohamta/donburi
package sylvan
