/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"sync"

	xdraw "golang.org/x/image/draw"
)

var (
	baseMid    = rgb(132, 134, 202) // #8486CA
	baseShadow = rgb(113, 95, 211)  // #715FD3
)

const (
	midThreshold    = 55
	shadowThreshold = 55

	minSpriteSize = 16
	maxSpriteSize = 256
)

func distSq(c, ref color.NRGBA) int {
	dr := int(c.R) - int(ref.R)
	dg := int(c.G) - int(ref.G)
	db := int(c.B) - int(ref.B)
	return dr*dr + dg*dg + db*db
}

// recolor replaces every opaque pixel near the base mid or shadow tone with
// the palette's tone. A pixel within reach of both takes the nearer one, and
// mid on a tie.
func recolor(base *image.NRGBA, p Palette) *image.NRGBA {
	out := image.NewNRGBA(base.Rect)
	copy(out.Pix, base.Pix)

	for i := 0; i+3 < len(out.Pix); i += 4 {
		if out.Pix[i+3] == 0 {
			continue
		}

		c := color.NRGBA{R: out.Pix[i], G: out.Pix[i+1], B: out.Pix[i+2]}

		dm, ds := distSq(c, baseMid), distSq(c, baseShadow)
		nearMid := dm <= midThreshold*midThreshold
		nearShadow := ds <= shadowThreshold*shadowThreshold

		var to color.NRGBA
		switch {
		case nearMid && (!nearShadow || dm <= ds):
			to = p.Mid
		case nearShadow:
			to = p.Shadow
		default:
			continue
		}

		out.Pix[i], out.Pix[i+1], out.Pix[i+2] = to.R, to.G, to.B
	}

	return out
}

type spriteKey struct {
	palette string
	size    int
}

// spriteSet renders recolored copies of one base image, caching the
// encoded PNG per palette and size.
type spriteSet struct {
	base     *image.NRGBA
	palettes map[string]Palette
	keys     []string

	mu    sync.Mutex
	cache map[spriteKey][]byte
}

func newSpriteSet(base *image.NRGBA) *spriteSet {
	palettes := buildPalettes(defaultPaletteOptions())
	return &spriteSet{
		base:     base,
		palettes: palettes,
		keys:     paletteKeys(palettes),
		cache:    make(map[spriteKey][]byte),
	}
}

// loadSprite decodes a base sprite from disk, or draws the built-in one.
func loadSprite(path string) (*image.NRGBA, error) {
	if path == "" {
		return drawCrewmate(64, 80), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode sprite %s: %w", path, err)
	}

	out := image.NewNRGBA(img.Bounds())
	xdraw.Draw(out, out.Rect, img, img.Bounds().Min, xdraw.Src)

	return out, nil
}

func (s *spriteSet) Keys() []string {
	return s.keys
}

func (s *spriteSet) Has(key string) bool {
	_, ok := s.palettes[key]
	return ok
}

// PNG returns the base sprite in the named palette. Size is the output
// width in pixels; zero keeps the native size.
func (s *spriteSet) PNG(key string, size int) ([]byte, error) {
	p, ok := s.palettes[key]
	if !ok {
		return nil, validationError(fmt.Sprintf("unknown palette %q", key))
	}
	if size != 0 {
		size = max(minSpriteSize, min(maxSpriteSize, size))
	}

	k := spriteKey{palette: key, size: size}

	s.mu.Lock()
	defer s.mu.Unlock()

	if data, ok := s.cache[k]; ok {
		return data, nil
	}

	img := recolor(s.base, p)
	if size != 0 && size != img.Rect.Dx() {
		img = scaleWidth(img, size)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}

	s.cache[k] = buf.Bytes()

	return s.cache[k], nil
}

func scaleWidth(src *image.NRGBA, width int) *image.NRGBA {
	b := src.Bounds()
	height := int(math.Round(float64(b.Dy()) * float64(width) / float64(b.Dx())))
	dst := image.NewNRGBA(image.Rect(0, 0, width, max(1, height)))
	xdraw.CatmullRom.Scale(dst, dst.Rect, src, b, xdraw.Src, nil)
	return dst
}

// drawCrewmate draws the default sprite using only the two base tones plus
// an outline, visor and highlight that recoloring leaves alone.
func drawCrewmate(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))

	fx := func(x int) float64 { return float64(x) * 64 / float64(w) }
	fy := func(y int) float64 { return float64(y) * 80 / float64(h) }

	inEllipse := func(x, y, cx, cy, rx, ry float64) bool {
		dx, dy := (x-cx)/rx, (y-cy)/ry
		return dx*dx+dy*dy <= 1
	}
	inBody := func(x, y float64) bool {
		switch {
		case inEllipse(x, y, 33, 29, 19, 19):
			return true
		case x >= 14 && x <= 52 && y >= 29 && y <= 62:
			return true
		case y > 62 && y <= 76 && ((x >= 14 && x <= 30) || (x >= 36 && x <= 52)):
			return true
		}
		return false
	}
	inPack := func(x, y float64) bool {
		return x >= 6 && x < 14 && y >= 32 && y <= 58
	}
	inside := func(x, y float64) bool {
		return inBody(x, y) || inPack(x, y)
	}

	outline := rgb(20, 20, 30)
	visor := rgb(170, 225, 245)
	shine := rgb(235, 250, 255)

	for py := 0; py < h; py++ {
		for px := 0; px < w; px++ {
			x, y := fx(px), fy(py)
			if !inside(x, y) {
				continue
			}

			edge := !inside(x-1.5, y) || !inside(x+1.5, y) || !inside(x, y-1.5) || !inside(x, y+1.5)

			var c color.NRGBA
			switch {
			case edge:
				c = outline
			case inEllipse(x, y, 43, 23, 4, 2.5):
				c = shine
			case inEllipse(x, y, 40, 28, 12, 8):
				c = visor
			case inPack(x, y) || x > 44 || y > 58:
				c = baseShadow
			default:
				c = baseMid
			}

			img.SetNRGBA(px, py, c)
		}
	}

	return img
}
