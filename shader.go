package sylvan

import (
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
)

// --- Kage shader sources ---
// All shaders use //kage:unit pixels as required by Ebitengine.

// solidShaderSrc fills triangles with a single premultiplied color, ignoring
// vertex colors. The outline pass draws enlarged back faces with it.
const solidShaderSrc = `//kage:unit pixels
package main

var Color vec4

func Fragment(dst vec4, src vec2, color vec4) vec4 {
	return vec4(Color.rgb*Color.a, Color.a)
}
`

// --- Lazy shader compilation (no sync.Once: drawing is single-threaded) ---

var solidShader *ebiten.Shader

func ensureSolidShader() *ebiten.Shader {
	if solidShader == nil {
		s, err := ebiten.NewShader([]byte(solidShaderSrc))
		if err != nil {
			panic("sylvan: failed to compile solid shader: " + err.Error())
		}
		solidShader = s
	}
	return solidShader
}

var whitePixelImage *ebiten.Image

// ensureWhitePixel returns a lazily-initialized 1x1 white pixel image used as
// the source texture for untextured triangles.
func ensureWhitePixel() *ebiten.Image {
	if whitePixelImage == nil {
		whitePixelImage = ebiten.NewImage(1, 1)
		whitePixelImage.Fill(color.RGBA{R: 255, G: 255, B: 255, A: 255})
	}
	return whitePixelImage
}
