package cpu

import (
	"bytes"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/juju/errors"
)

var (
	testOn  = color.RGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}
	testOff = color.RGBA{A: 0xFF}
)

func TestDrawSpriteWrap(t *testing.T) {
	var f Framebuffer
	// Start on the bottom-right pixel: every other bit lands on the
	// opposite edges.
	f.DrawSprite(63, 31, []byte{0xC0, 0xC0})

	want := map[[2]int]bool{{63, 31}: true, {0, 31}: true, {63, 0}: true, {0, 0}: true}
	for y := 0; y < ScreenHeight; y++ {
		for x := 0; x < ScreenWidth; x++ {
			if got := f.Pixel(x, y); got != want[[2]int{x, y}] {
				t.Errorf("pixel (%d,%d): expected %v, got %v", x, y, want[[2]int{x, y}], got)
			}
		}
	}
}

func TestDrawSpriteCollision(t *testing.T) {
	var f Framebuffer
	if f.DrawSprite(0, 0, []byte{0xF0}) {
		t.Errorf("first draw: expected no collision")
	}
	if !f.DrawSprite(2, 0, []byte{0xF0}) {
		t.Errorf("overlapping draw: expected collision")
	}
	// 0xF0 at x=0 then 0xF0 at x=2 leaves columns 0,1,4,5 lit.
	for x, want := range []bool{true, true, false, false, true, true, false} {
		if f.Pixel(x, 0) != want {
			t.Errorf("pixel (%d,0): expected %v", x, want)
		}
	}
	if f.DrawSprite(10, 10, []byte{0x0F}) {
		t.Errorf("disjoint draw: expected no collision")
	}
}

func TestDrawSpriteEmptyRowsNoChange(t *testing.T) {
	var f Framebuffer
	f.DrawSprite(0, 0, []byte{0x00, 0x00})
	if f.ConsumeChanged() {
		t.Errorf("blank sprite: expected no changed signal")
	}
	f.DrawSprite(0, 0, []byte{0x01})
	if !f.ConsumeChanged() {
		t.Errorf("expected changed signal")
	}
	if f.ConsumeChanged() {
		t.Errorf("changed latch should clear once consumed")
	}
}

func TestDrawSpriteRowLimit(t *testing.T) {
	var f Framebuffer
	sprite := make([]byte, 20)
	for i := range sprite {
		sprite[i] = 0x80
	}
	f.DrawSprite(0, 0, sprite)
	snap := f.Snapshot()
	if snap.Lit() != MaxSpriteRows {
		t.Errorf("expected %d lit rows, got %d", MaxSpriteRows, snap.Lit())
	}
}

func TestClear(t *testing.T) {
	var f Framebuffer
	f.DrawSprite(5, 5, []byte{0xFF, 0xFF, 0xFF})
	f.Clear()
	if diff := cmp.Diff(Grid{}, f.Snapshot()); diff != "" {
		t.Errorf("Clear left pixels lit (-want +got):\n%s", diff)
	}
}

func TestGridRGBA(t *testing.T) {
	var g Grid
	g[1][2] = true
	pix := g.RGBA(testOn, testOff)
	if len(pix) != ScreenWidth*ScreenHeight*4 {
		t.Fatalf("expected %d bytes, got %d", ScreenWidth*ScreenHeight*4, len(pix))
	}
	lit := (1*ScreenWidth + 2) * 4
	if diff := cmp.Diff([]byte{0xFF, 0xFF, 0xFF, 0xFF}, pix[lit:lit+4]); diff != "" {
		t.Errorf("lit pixel (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]byte{0, 0, 0, 0xFF}, pix[0:4]); diff != "" {
		t.Errorf("unlit pixel (-want +got):\n%s", diff)
	}
}

func TestGridImageScale(t *testing.T) {
	var g Grid
	g[0][0] = true
	img := g.Image(4, testOn, testOff)
	if b := img.Bounds(); b.Dx() != ScreenWidth*4 || b.Dy() != ScreenHeight*4 {
		t.Fatalf("expected %dx%d image, got %dx%d", ScreenWidth*4, ScreenHeight*4, b.Dx(), b.Dy())
	}
	if img.RGBAAt(3, 3) != testOn {
		t.Errorf("(3,3): expected lit, got %v", img.RGBAAt(3, 3))
	}
	if img.RGBAAt(4, 0) != testOff {
		t.Errorf("(4,0): expected unlit, got %v", img.RGBAAt(4, 0))
	}
}

func TestSaveScreenshot(t *testing.T) {
	var f Framebuffer
	f.DrawSprite(0, 0, Glyph(0xA))
	name := filepath.Join(t.TempDir(), "shot.png")
	if err := f.SaveScreenshot(name, 2, testOn, testOff); err != nil {
		t.Fatalf("SaveScreenshot: %v", err)
	}
	info, err := os.Stat(name)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Size() == 0 {
		t.Errorf("expected non-empty PNG")
	}
}

type closeFailer struct {
	bytes.Buffer
	err error
}

func (c *closeFailer) Close() error { return c.err }

func TestScreenshotCloseError(t *testing.T) {
	var f Framebuffer
	f.DrawSprite(0, 0, Glyph(0x1))

	ok := &closeFailer{}
	if err := f.writeScreenshot(ok, 1, testOn, testOff); err != nil {
		t.Fatalf("writeScreenshot: %v", err)
	}
	img, err := png.Decode(&ok.Buffer)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != ScreenWidth || b.Dy() != ScreenHeight {
		t.Errorf("bounds: expected 64x32, got %dx%d", b.Dx(), b.Dy())
	}

	failing := &closeFailer{err: errors.New("disk full")}
	if err := f.writeScreenshot(failing, 1, testOn, testOff); err == nil {
		t.Errorf("expected the close error to be reported")
	}
}

func TestSaveScreenshotBadPath(t *testing.T) {
	var f Framebuffer
	if err := f.SaveScreenshot(filepath.Join(t.TempDir(), "missing", "shot.png"), 1, testOn, testOff); err == nil {
		t.Errorf("expected an error for a missing directory")
	}
}
