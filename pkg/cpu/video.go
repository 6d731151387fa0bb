package cpu

import (
	"image"
	"image/color"
	"image/png"
	"io"
	"os"

	"github.com/juju/errors"
	"golang.org/x/image/draw"

	"gochip8/pkg/grid"
)

const (
	ScreenWidth  = 64
	ScreenHeight = 32

	// MaxSpriteRows is the tallest sprite DXYN can draw.
	MaxSpriteRows = 15
)

// Grid is a snapshot of the display, Grid[y][x].
type Grid [ScreenHeight][ScreenWidth]bool

// Framebuffer is the 64x32 monochrome display plus the changed latch.
// Pixels only change through XOR compositing or a full clear.
type Framebuffer struct {
	pixels  [ScreenWidth * ScreenHeight]bool
	changed bool
}

// Clear turns every pixel off.
func (f *Framebuffer) Clear() {
	f.pixels = [ScreenWidth * ScreenHeight]bool{}
	f.changed = true
}

// DrawSprite XORs sprite rows onto the display with (x, y) as the top-left
// corner; each row is one byte, MSB leftmost. Coordinates wrap around both
// edges. It returns true when any lit pixel was turned off.
func (f *Framebuffer) DrawSprite(x, y uint8, sprite []byte) bool {
	if len(sprite) > MaxSpriteRows {
		sprite = sprite[:MaxSpriteRows]
	}
	collision := false
	for row, bits := range sprite {
		for col := 0; col < 8; col++ {
			if bits&(0x80>>col) == 0 {
				continue
			}
			px, py := grid.Wrap(int(x)+col, int(y)+row, ScreenWidth, ScreenHeight)
			i := grid.Index(px, py, ScreenWidth)
			if f.pixels[i] {
				collision = true
			}
			f.pixels[i] = !f.pixels[i]
			f.changed = true
		}
	}
	return collision
}

// Pixel reports whether (x, y) is lit. Coordinates wrap.
func (f *Framebuffer) Pixel(x, y int) bool {
	px, py := grid.Wrap(x, y, ScreenWidth, ScreenHeight)
	return f.pixels[grid.Index(px, py, ScreenWidth)]
}

// Snapshot returns a copy of the display.
func (f *Framebuffer) Snapshot() Grid {
	var g Grid
	for i, on := range f.pixels {
		x, y := grid.GetGridCoords(i, ScreenWidth)
		g[y][x] = on
	}
	return g
}

// ConsumeChanged returns the changed latch and clears it.
func (f *Framebuffer) ConsumeChanged() bool {
	changed := f.changed
	f.changed = false
	return changed
}

func (f *Framebuffer) markChanged() {
	f.changed = true
}

// Lit returns the number of lit pixels.
func (g *Grid) Lit() int {
	n := 0
	for y := range g {
		for x := range g[y] {
			if g[y][x] {
				n++
			}
		}
	}
	return n
}

// RGBA converts the grid to a 64x32 RGBA8888 byte slice.
func (g *Grid) RGBA(on, off color.RGBA) []byte {
	pixels := make([]byte, ScreenWidth*ScreenHeight*4)
	for y := range g {
		for x, lit := range g[y] {
			c := off
			if lit {
				c = on
			}
			i := grid.Index(x, y, ScreenWidth) * 4
			pixels[i+0] = c.R
			pixels[i+1] = c.G
			pixels[i+2] = c.B
			pixels[i+3] = c.A
		}
	}
	return pixels
}

// Image returns the grid as an image, each pixel scaled to a scale x scale
// block.
func (g *Grid) Image(scale int, on, off color.RGBA) *image.RGBA {
	src := &image.RGBA{
		Pix:    g.RGBA(on, off),
		Stride: ScreenWidth * 4,
		Rect:   image.Rect(0, 0, ScreenWidth, ScreenHeight),
	}
	if scale <= 1 {
		return src
	}
	dst := image.NewRGBA(image.Rect(0, 0, ScreenWidth*scale, ScreenHeight*scale))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}

// SaveScreenshot encodes the current display as a PNG and writes it to filename.
func (f *Framebuffer) SaveScreenshot(filename string, scale int, on, off color.RGBA) error {
	file, err := os.Create(filename)
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Annotate(f.writeScreenshot(file, scale, on, off), filename)
}

// writeScreenshot encodes to w and closes it. A failed close is reported
// since it may lose buffered data.
func (f *Framebuffer) writeScreenshot(w io.WriteCloser, scale int, on, off color.RGBA) (rerr error) {
	defer func() {
		if err := w.Close(); err != nil && rerr == nil {
			rerr = errors.Annotate(err, "closing")
		}
	}()
	g := f.Snapshot()
	return errors.Annotate(png.Encode(w, g.Image(scale, on, off)), "encoding")
}
