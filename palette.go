/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"fmt"
	"image/color"
	"math"
	"sort"
)

// Palette is a paired mid tone and darker shadow of the same hue.
type Palette struct {
	Mid    color.NRGBA
	Shadow color.NRGBA
}

type PaletteOptions struct {
	Count       int
	Saturation  float64
	MidL        float64
	ShadowL     float64
	HueJitter   float64
	AddNeutrals bool
}

func defaultPaletteOptions() PaletteOptions {
	return PaletteOptions{
		Count:       360,
		Saturation:  0.86,
		MidL:        0.56,
		ShadowL:     0.36,
		HueJitter:   0.9,
		AddNeutrals: true,
	}
}

// jitterSeq breaks up evenly spaced hues without true randomness.
var jitterSeq = []float64{0, 1, -1, 2, -2, 3, -3, 1.5, -1.5, 2.5, -2.5}

func clampUnit(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t++
	}
	if t > 1 {
		t--
	}
	switch {
	case t < 1.0/6.0:
		return p + (q-p)*6*t
	case t < 1.0/2.0:
		return q
	case t < 2.0/3.0:
		return p + (q-p)*(2.0/3.0-t)*6
	}
	return p
}

// hsl converts hue in degrees and saturation/lightness in 0..1 to an opaque
// color.
func hsl(h, s, l float64) color.NRGBA {
	h = math.Mod(math.Mod(h, 360)+360, 360) / 360
	s = clampUnit(s)
	l = clampUnit(l)

	r, g, b := l, l, l
	if s != 0 {
		q := l + s - l*s
		if l < 0.5 {
			q = l * (1 + s)
		}
		p := 2*l - q
		r = hueToRGB(p, q, h+1.0/3.0)
		g = hueToRGB(p, q, h)
		b = hueToRGB(p, q, h-1.0/3.0)
	}

	return color.NRGBA{
		R: uint8(math.Round(r * 255)),
		G: uint8(math.Round(g * 255)),
		B: uint8(math.Round(b * 255)),
		A: 255,
	}
}

func rgb(r, g, b uint8) color.NRGBA {
	return color.NRGBA{R: r, G: g, B: b, A: 255}
}

// buildPalettes sweeps the hue circle into p000..pNNN and adds named extras.
func buildPalettes(opts PaletteOptions) map[string]Palette {
	out := make(map[string]Palette, opts.Count+24)

	for i := 0; i < opts.Count; i++ {
		base := math.Mod(float64(i)*(360/float64(opts.Count)), 360)
		hue := math.Mod(base+jitterSeq[i%len(jitterSeq)]*opts.HueJitter, 360)

		out[fmt.Sprintf("p%03d", i)] = Palette{
			Mid:    hsl(hue, opts.Saturation, opts.MidL),
			Shadow: hsl(hue, opts.Saturation, opts.ShadowL),
		}
	}

	if !opts.AddNeutrals {
		return out
	}

	out["white"] = Palette{rgb(245, 245, 248), rgb(205, 205, 212)}
	out["silver"] = Palette{rgb(210, 214, 224), rgb(150, 156, 170)}
	out["gray"] = Palette{rgb(160, 165, 175), rgb(105, 110, 120)}
	out["charcoal"] = Palette{rgb(80, 86, 98), rgb(35, 38, 44)}
	out["black"] = Palette{rgb(55, 55, 62), rgb(18, 18, 22)}

	out["gold"] = Palette{rgb(244, 201, 85), rgb(168, 121, 28)}
	out["copper"] = Palette{rgb(204, 120, 76), rgb(130, 70, 38)}
	out["roseGold"] = Palette{rgb(220, 154, 150), rgb(150, 96, 92)}

	out["pastelMint"] = Palette{hsl(155, 0.55, 0.70), hsl(155, 0.55, 0.48)}
	out["pastelPink"] = Palette{hsl(335, 0.55, 0.72), hsl(335, 0.55, 0.50)}
	out["pastelLav"] = Palette{hsl(255, 0.50, 0.72), hsl(255, 0.50, 0.50)}
	out["pastelBlue"] = Palette{hsl(210, 0.55, 0.70), hsl(210, 0.55, 0.48)}

	out["neonLime"] = Palette{hsl(98, 0.95, 0.58), hsl(98, 0.95, 0.36)}
	out["neonCyan"] = Palette{hsl(185, 0.95, 0.55), hsl(185, 0.95, 0.34)}
	out["neonMagenta"] = Palette{hsl(305, 0.95, 0.56), hsl(305, 0.95, 0.35)}

	out["sand"] = Palette{hsl(35, 0.45, 0.62), hsl(35, 0.45, 0.40)}
	out["tan"] = Palette{hsl(28, 0.50, 0.56), hsl(28, 0.50, 0.34)}
	out["mocha"] = Palette{hsl(25, 0.45, 0.44), hsl(25, 0.45, 0.26)}

	return out
}

func paletteKeys(p map[string]Palette) []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
