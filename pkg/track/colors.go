package track

import (
	"image/color"
	"sync"

	"groundtrack/pkg/canvas"
	"groundtrack/pkg/model"
)

// Category10 is the ten-colour categorical palette used for markers.
var Category10 = []color.Color{
	color.RGBA{0x1f, 0x77, 0xb4, 0xff},
	color.RGBA{0xff, 0x7f, 0x0e, 0xff},
	color.RGBA{0x2c, 0xa0, 0x2c, 0xff},
	color.RGBA{0xd6, 0x27, 0x28, 0xff},
	color.RGBA{0x94, 0x67, 0xbd, 0xff},
	color.RGBA{0x8c, 0x56, 0x4b, 0xff},
	color.RGBA{0xe3, 0x77, 0xc2, 0xff},
	color.RGBA{0x7f, 0x7f, 0x7f, 0xff},
	color.RGBA{0xbc, 0xbd, 0x22, 0xff},
	color.RGBA{0x17, 0xbe, 0xcf, 0xff},
}

// ColorAllocator hands out palette colours first-seen-wins. A key keeps its
// colour for the lifetime of the allocator; once the palette is used up,
// colours repeat cyclically.
type ColorAllocator struct {
	mu       sync.Mutex
	palette  []color.Color
	assigned map[string]int
	order    []string
}

// NewColorAllocator creates an allocator over palette, or Category10 if none is given.
func NewColorAllocator(palette ...color.Color) *ColorAllocator {
	if len(palette) == 0 {
		palette = Category10
	}
	return &ColorAllocator{
		palette:  palette,
		assigned: make(map[string]int),
	}
}

// ColorFor returns the colour bound to key, binding the next one if key is new.
// Keys are normalized with model.LabelFor.
func (c *ColorAllocator) ColorFor(key string) color.Color {
	k := model.LabelFor(key)

	c.mu.Lock()
	defer c.mu.Unlock()

	idx, ok := c.assigned[k]
	if !ok {
		idx = len(c.order) % len(c.palette)
		c.assigned[k] = idx
		c.order = append(c.order, k)
	}
	return c.palette[idx]
}

// Assigned returns every key seen so far with its colour as #rrggbb.
func (c *ColorAllocator) Assigned() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]string, len(c.assigned))
	for k, idx := range c.assigned {
		out[k] = canvas.Hex(c.palette[idx])
	}
	return out
}
