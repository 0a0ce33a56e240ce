package canvas

import (
	"image"
	"image/color"
	"image/draw"
)

// Compose flattens layers bottom to top over a solid background.
// Nil layers are skipped, so a missing base map yields a plain background.
func Compose(bg color.Color, layers ...image.Image) *image.RGBA {
	var bounds image.Rectangle
	for _, l := range layers {
		if l != nil {
			bounds = bounds.Union(l.Bounds())
		}
	}
	out := image.NewRGBA(bounds)
	if bg != nil {
		draw.Draw(out, bounds, image.NewUniform(bg), image.Point{}, draw.Src)
	}
	for _, l := range layers {
		if l == nil {
			continue
		}
		draw.Draw(out, l.Bounds(), l, l.Bounds().Min, draw.Over)
	}
	return out
}
