package sylvan

import (
	"errors"
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
)

// Color represents an RGBA color with components in [0, 1]. Not premultiplied.
// Premultiplication occurs at draw submission time.
type Color struct {
	R, G, B, A float64
}

// Common colors.
var (
	ColorWhite       = Color{1, 1, 1, 1}
	ColorBlack       = Color{0, 0, 0, 1}
	ColorTransparent = Color{}
)

// RGBA returns a premultiplied color.RGBA.
func (c Color) RGBA() color.RGBA {
	return color.RGBA{
		R: uint8(clamp01(c.R*c.A) * 255),
		G: uint8(clamp01(c.G*c.A) * 255),
		B: uint8(clamp01(c.B*c.A) * 255),
		A: uint8(clamp01(c.A) * 255),
	}
}

// Scale multiplies the RGB channels by f, leaving alpha untouched.
func (c Color) Scale(f float64) Color {
	return Color{c.R * f, c.G * f, c.B * f, c.A}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Rect is an axis-aligned rectangle in screen space. The origin is the
// top-left corner, with Y increasing downward.
type Rect struct {
	X, Y, Width, Height float64
}

// Contains reports whether the point (x, y) lies inside the rectangle.
// Points on the edge are considered inside.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.X && x <= r.X+r.Width &&
		y >= r.Y && y <= r.Y+r.Height
}

// Intersects reports whether r and other overlap.
// Adjacent rectangles (sharing only an edge) are considered intersecting.
func (r Rect) Intersects(other Rect) bool {
	return r.X <= other.X+other.Width &&
		r.X+r.Width >= other.X &&
		r.Y <= other.Y+other.Height &&
		r.Y+r.Height >= other.Y
}

// BlendMode selects a compositing operation. Each maps to a specific ebiten.Blend value.
type BlendMode uint8

const (
	BlendNormal   BlendMode = iota // source-over (standard alpha blending)
	BlendAdd                       // additive / lighter
	BlendMultiply                  // multiply (source * destination; only darkens)
	BlendScreen                    // screen (1 - (1-src)*(1-dst); only brightens)
	BlendNone                      // opaque copy (skip blending)
)

// EbitenBlend returns the ebiten.Blend value corresponding to this BlendMode.
func (b BlendMode) EbitenBlend() ebiten.Blend {
	switch b {
	case BlendNormal:
		return ebiten.BlendSourceOver
	case BlendAdd:
		return ebiten.BlendLighter
	case BlendMultiply:
		return ebiten.Blend{
			BlendFactorSourceRGB:        ebiten.BlendFactorDestinationColor,
			BlendFactorSourceAlpha:      ebiten.BlendFactorDestinationAlpha,
			BlendFactorDestinationRGB:   ebiten.BlendFactorOneMinusSourceAlpha,
			BlendFactorDestinationAlpha: ebiten.BlendFactorOneMinusSourceAlpha,
			BlendOperationRGB:           ebiten.BlendOperationAdd,
			BlendOperationAlpha:         ebiten.BlendOperationAdd,
		}
	case BlendScreen:
		return ebiten.Blend{
			BlendFactorSourceRGB:        ebiten.BlendFactorOne,
			BlendFactorSourceAlpha:      ebiten.BlendFactorOne,
			BlendFactorDestinationRGB:   ebiten.BlendFactorOneMinusSourceColor,
			BlendFactorDestinationAlpha: ebiten.BlendFactorOneMinusSourceAlpha,
			BlendOperationRGB:           ebiten.BlendOperationAdd,
			BlendOperationAlpha:         ebiten.BlendOperationAdd,
		}
	case BlendNone:
		return ebiten.BlendCopy
	default:
		return ebiten.BlendSourceOver
	}
}

// CullMode selects which triangle faces are discarded when drawing.
type CullMode uint8

const (
	CullBack  CullMode = iota // discard faces wound clockwise on screen
	CullFront                 // discard faces wound counter-clockwise on screen
	CullNone                  // draw both sides
)

// NodeKind distinguishes what a graph node carries.
type NodeKind uint8

const (
	NodeKindGroup  NodeKind = iota // transform-only node
	NodeKindMesh                   // carries a Renderable
	NodeKindLight                  // carries a Light
	NodeKindCamera                 // drives a Camera's view
)

func (k NodeKind) String() string {
	switch k {
	case NodeKindGroup:
		return "group"
	case NodeKindMesh:
		return "mesh"
	case NodeKindLight:
		return "light"
	case NodeKindCamera:
		return "camera"
	default:
		return "unknown"
	}
}

var (
	// ErrCycle is returned when a reparent would make a node its own ancestor.
	ErrCycle = errors.New("sylvan: reparent would create a cycle")
	// ErrStaleNode is returned when a NodeID refers to a destroyed node.
	ErrStaleNode = errors.New("sylvan: stale node handle")
	// ErrSceneRoot is returned when a scene root is moved under another node.
	ErrSceneRoot = errors.New("sylvan: scene root cannot be reparented")
	// ErrZeroDirection is returned when a ray is built from a zero-length direction.
	ErrZeroDirection = errors.New("sylvan: ray direction has zero length")
	// ErrContextLost is returned by a Device whose graphics context is gone.
	ErrContextLost = errors.New("sylvan: graphics context lost")
	// ErrNoDevice is returned when a RenderContext has no Device attached.
	ErrNoDevice = errors.New("sylvan: no graphics device")
)
