// Package colorutil holds the colour conversions shared by generators.
package colorutil

import (
	"fmt"
	"image/color"
	"math"
)

// HSL converts hue, saturation and lightness in [0, 1] to an opaque colour.
func HSL(h, s, l float64) color.NRGBA {
	h = h - math.Floor(h)
	s = clamp01(s)
	l = clamp01(l)
	if s == 0 {
		v := to8(l)
		return color.NRGBA{v, v, v, 0xff}
	}
	var q float64
	if l < 0.5 {
		q = l * (1 + s)
	} else {
		q = l + s - l*s
	}
	p := 2*l - q
	return color.NRGBA{
		R: to8(hueToRGB(p, q, h+1.0/3)),
		G: to8(hueToRGB(p, q, h)),
		B: to8(hueToRGB(p, q, h-1.0/3)),
		A: 0xff,
	}
}

// HSL240 converts components on the 0..240 scale used by classic paint
// programs.
func HSL240(h, s, l int) color.NRGBA {
	return HSL(float64(h)/240, float64(s)/240, float64(l)/240)
}

// Hex formats c as #rrggbb.
func Hex(c color.NRGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// Mix moves a towards b by t in [0, 1].
func Mix(a, b color.NRGBA, t float64) color.NRGBA {
	lerp := func(x, y uint8) uint8 {
		return uint8(math.Round(float64(x) + (float64(y)-float64(x))*t))
	}
	return color.NRGBA{lerp(a.R, b.R), lerp(a.G, b.G), lerp(a.B, b.B), lerp(a.A, b.A)}
}

// Luminance returns the Rec. 709 relative luminance of an 8-bit colour in
// [0, 1].
func Luminance(r, g, b uint8) float64 {
	return (0.2125*float64(r) + 0.7154*float64(g) + 0.0721*float64(b)) / 255
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t++
	}
	if t > 1 {
		t--
	}
	switch {
	case t < 1.0/6:
		return p + (q-p)*6*t
	case t < 0.5:
		return q
	case t < 2.0/3:
		return p + (q-p)*(2.0/3-t)*6
	}
	return p
}

func to8(v float64) uint8 {
	return uint8(math.Round(clamp01(v) * 255))
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
