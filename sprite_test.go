/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecolor(t *testing.T) {
	base := image.NewNRGBA(image.Rect(0, 0, 4, 1))
	base.SetNRGBA(0, 0, baseMid)
	base.SetNRGBA(1, 0, baseShadow)
	base.SetNRGBA(2, 0, rgb(20, 20, 30))
	base.SetNRGBA(3, 0, color.NRGBA{R: 132, G: 134, B: 202, A: 0})

	p := Palette{Mid: rgb(255, 0, 0), Shadow: rgb(128, 0, 0)}
	out := recolor(base, p)

	assert.Equal(t, p.Mid, out.NRGBAAt(0, 0))
	assert.Equal(t, p.Shadow, out.NRGBAAt(1, 0))
	assert.Equal(t, rgb(20, 20, 30), out.NRGBAAt(2, 0), "outline is left alone")
	assert.Equal(t, uint8(0), out.NRGBAAt(3, 0).A, "transparent pixels are skipped")
	assert.Equal(t, baseMid, base.NRGBAAt(0, 0), "source is not modified")
}

func TestRecolor_NearestTone(t *testing.T) {
	p := Palette{Mid: rgb(255, 0, 0), Shadow: rgb(128, 0, 0)}

	tests := []struct {
		name string
		in   color.NRGBA
		want color.NRGBA
	}{
		{"base mid", baseMid, p.Mid},
		{"base shadow", baseShadow, p.Shadow},
		{"near mid", rgb(128, 125, 204), p.Mid},
		{"near shadow", rgb(115, 100, 210), p.Shadow},
		{"far from both", rgb(240, 240, 240), rgb(240, 240, 240)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := image.NewNRGBA(image.Rect(0, 0, 1, 1))
			base.SetNRGBA(0, 0, tt.in)

			assert.Equal(t, tt.want, recolor(base, p).NRGBAAt(0, 0))
		})
	}

	s := newSpriteSet(drawCrewmate(64, 80))
	pal := s.palettes["p180"]
	img := recolor(drawCrewmate(64, 80), pal)

	var shadows int
	for y := 0; y < 80; y++ {
		for x := 0; x < 64; x++ {
			if img.NRGBAAt(x, y) == pal.Shadow {
				shadows++
			}
		}
	}
	assert.Positive(t, shadows, "shadow tones survive recoloring")
}

func TestRecolor_KeepsAlpha(t *testing.T) {
	base := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	base.SetNRGBA(0, 0, color.NRGBA{R: 130, G: 130, B: 200, A: 128})

	out := recolor(base, Palette{Mid: rgb(0, 255, 0)})
	assert.Equal(t, color.NRGBA{G: 255, A: 128}, out.NRGBAAt(0, 0))
}

func TestDrawCrewmate(t *testing.T) {
	img := drawCrewmate(64, 80)
	require.Equal(t, image.Rect(0, 0, 64, 80), img.Rect)

	var mid, shadow, clear int
	for i := 0; i < len(img.Pix); i += 4 {
		c := color.NRGBA{R: img.Pix[i], G: img.Pix[i+1], B: img.Pix[i+2], A: img.Pix[i+3]}
		switch {
		case c.A == 0:
			clear++
		case c == baseMid:
			mid++
		case c == baseShadow:
			shadow++
		}
	}

	assert.Positive(t, mid)
	assert.Positive(t, shadow)
	assert.Positive(t, clear)
}

func TestSpriteSet_PNG(t *testing.T) {
	s := newSpriteSet(drawCrewmate(64, 80))
	require.True(t, s.Has("p180"))
	require.NotEmpty(t, s.Keys())

	data, err := s.PNG("p180", 0)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 64, img.Bounds().Dx())

	again, err := s.PNG("p180", 0)
	require.NoError(t, err)
	assert.Same(t, &data[0], &again[0], "encoded sprites are cached")
}

func TestSpriteSet_PNGSizes(t *testing.T) {
	s := newSpriteSet(drawCrewmate(64, 80))

	tests := []struct {
		size      int
		wantWidth int
	}{
		{32, 32},
		{4, minSpriteSize},
		{4096, maxSpriteSize},
	}

	for _, tt := range tests {
		data, err := s.PNG("gold", tt.size)
		require.NoError(t, err)

		cfg, err := png.DecodeConfig(bytes.NewReader(data))
		require.NoError(t, err)
		assert.Equal(t, tt.wantWidth, cfg.Width)
		assert.Equal(t, tt.wantWidth*80/64, cfg.Height)
	}
}

func TestSpriteSet_UnknownPalette(t *testing.T) {
	s := newSpriteSet(drawCrewmate(64, 80))

	_, err := s.PNG("nope", 0)
	assert.ErrorIs(t, err, ErrValidation)
	assert.False(t, s.Has("nope"))
}

func TestLoadSprite(t *testing.T) {
	img, err := loadSprite("")
	require.NoError(t, err)
	assert.Equal(t, 64, img.Rect.Dx())

	src := image.NewRGBA(image.Rect(0, 0, 3, 2))
	src.Set(1, 1, color.RGBA{R: 132, G: 134, B: 202, A: 255})

	path := filepath.Join(t.TempDir(), "sprite.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, src))
	require.NoError(t, f.Close())

	img, err = loadSprite(path)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 3, 2), img.Rect)
	assert.Equal(t, baseMid, img.NRGBAAt(1, 1))

	_, err = loadSprite(filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)
}
