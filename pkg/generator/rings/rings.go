// Package rings renders concentric segmented ring avatars as SVG.
package rings

import (
	"math"
	"strconv"
	"strings"

	"github.com/jacktea/xavatar/pkg/generator"
	"github.com/jacktea/xavatar/pkg/generator/colorutil"
	"github.com/jacktea/xavatar/pkg/generator/seed"
	"github.com/jacktea/xavatar/pkg/imageedit"
)

// Namespace is the cache namespace of ring avatars.
const Namespace = "rings"

const (
	viewBox     = 100.0
	center      = viewBox / 2
	strokeWidth = 7.0
	// gap between neighbouring segments, in radians.
	gap = 0.12
)

// ring describes one concentric band.
type ring struct {
	radius   float64
	segments int
}

var layout = []ring{
	{radius: 42, segments: 8},
	{radius: 31, segments: 6},
	{radius: 20, segments: 4},
}

// Generator implements generator.Generator.
type Generator struct{}

// New returns a rings generator.
func New() Generator { return Generator{} }

func (Generator) Namespace() string { return Namespace }
func (Generator) MimeType() string  { return imageedit.MimeSVG }

// Build renders the ring avatar for hash at size pixels.
func (Generator) Build(hash string, size int) ([]byte, error) {
	const op = "rings.Build"
	if err := generator.CheckSize(op, size); err != nil {
		return nil, err
	}
	h, err := generator.Digits(op, hash, 8)
	if err != nil {
		return nil, err
	}
	rnd := seed.FromHex(h[:8])

	hue := rnd.Float64()
	bg := colorutil.HSL(hue, 0.35, 0.93)
	fg := colorutil.HSL(math.Mod(hue+0.5, 1), 0.55+rnd.Float64()*0.2, 0.35+rnd.Float64()*0.15)

	var d strings.Builder
	for _, r := range layout {
		offset := rnd.Float64() * 2 * math.Pi
		step := 2 * math.Pi / float64(r.segments)
		drawn := 0
		for j := 0; j < r.segments; j++ {
			if rnd.Intn(3) == 0 {
				continue
			}
			arc(&d, r.radius, offset+float64(j)*step, offset+float64(j+1)*step-gap)
			drawn++
		}
		if drawn == 0 {
			arc(&d, r.radius, offset, offset+step-gap)
		}
	}
	dot := 5 + float64(rnd.Intn(5))

	s := strconv.Itoa(size)
	var b strings.Builder
	b.WriteString(`<svg xmlns="http://www.w3.org/2000/svg" width="` + s + `" height="` + s + `" viewBox="0 0 100 100">`)
	b.WriteString(`<rect width="100" height="100" fill="` + colorutil.Hex(bg) + `"/>`)
	b.WriteString(`<path fill="none" stroke="` + colorutil.Hex(fg) + `" stroke-width="` + num(strokeWidth) + `" stroke-linecap="round" d="` + d.String() + `"/>`)
	b.WriteString(`<circle cx="50" cy="50" r="` + num(dot) + `" fill="` + colorutil.Hex(fg) + `"/>`)
	b.WriteString(`</svg>`)
	return []byte(b.String()), nil
}

func arc(d *strings.Builder, r, from, to float64) {
	d.WriteString("M" + num(center+r*math.Cos(from)) + " " + num(center+r*math.Sin(from)))
	d.WriteString("A" + num(r) + " " + num(r) + " 0 0 1 " + num(center+r*math.Cos(to)) + " " + num(center+r*math.Sin(to)))
}

func num(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}
