// Package monster builds "monster" avatars out of recoloured body parts.
package monster

//go:generate go run gen_bounds.go

import (
	"bytes"
	"embed"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"sync"

	"github.com/jacktea/xavatar/pkg/generator"
	"github.com/jacktea/xavatar/pkg/generator/colorutil"
	"github.com/jacktea/xavatar/pkg/generator/seed"
	"github.com/jacktea/xavatar/pkg/imageedit"
	"github.com/jacktea/xavatar/pkg/xerrors"
)

// Namespace is the cache namespace of monster avatars.
const Namespace = "monsterid"

const canvasSize = 120

//go:embed parts/*.png
var parts embed.FS

// region is one slot of the monster, in drawing order.
type region struct {
	name  string
	count int
}

var regions = []region{
	{"legs", 5},
	{"hair", 5},
	{"arms", 5},
	{"body", 15},
	{"eyes", 15},
	{"mouth", 10},
}

type colorMode int

const (
	keepColor colorMode = iota
	sameColor
	randomColor
	specificColor
)

// partColor says how a part is tinted. Hue ranges are in thousandths.
type partColor struct {
	mode   colorMode
	lo, hi int
}

var partColors = map[string]partColor{
	"legs_1":   {mode: sameColor},
	"legs_2":   {mode: sameColor},
	"legs_3":   {mode: randomColor},
	"legs_4":   {mode: sameColor},
	"hair_1":   {mode: randomColor},
	"hair_2":   {mode: specificColor, lo: 50, hi: 140},
	"hair_3":   {mode: sameColor},
	"hair_5":   {mode: randomColor},
	"arms_1":   {mode: sameColor},
	"arms_2":   {mode: sameColor},
	"arms_3":   {mode: randomColor},
	"arms_4":   {mode: specificColor, lo: 50, hi: 120},
	"mouth_2":  {mode: specificColor, lo: 950, hi: 1000},
	"mouth_5":  {mode: specificColor, lo: 950, hi: 1000},
	"mouth_9":  {mode: specificColor, lo: 950, hi: 1000},
	"mouth_10": {mode: specificColor, lo: 0, hi: 30},
}

// Part is a chosen part and the tint applied to it.
type Part struct {
	Name     string
	Colorize bool
	Hue, Sat float64
}

// Plan lists the parts of one monster in drawing order.
type Plan []Part

// PlanFor derives the monster for a normalized hash.
func PlanFor(h string) Plan {
	rnd := seed.FromHex(h[:8])
	names := make([]string, len(regions))
	for i, r := range regions {
		names[i] = fmt.Sprintf("%s_%d", r.name, rnd.Range(1, r.count))
	}
	hue := float64(rnd.Range(1, 1000)-1) / 1000
	sat := float64(rnd.Range(25000, 100000)) / 100000

	plan := make(Plan, 0, len(names))
	for i, name := range names {
		p := Part{Name: name}
		pc := partColors[name]
		if regions[i].name == "body" {
			pc.mode = sameColor
		}
		switch pc.mode {
		case sameColor:
			p.Colorize, p.Hue, p.Sat = true, hue, sat
		case randomColor:
			p.Colorize = true
			p.Hue = float64(rnd.Range(1, 1000)-1) / 1000
			p.Sat = float64(rnd.Range(25000, 100000)) / 100000
		case specificColor:
			p.Colorize, p.Sat = true, sat
			p.Hue = float64(rnd.Range(pc.lo, pc.hi)) / 1000
		}
		plan = append(plan, p)
	}
	return plan
}

// Generator implements generator.Generator.
type Generator struct {
	mu    sync.Mutex
	cache map[string]*image.NRGBA
}

// New returns a monster generator.
func New() *Generator { return &Generator{cache: make(map[string]*image.NRGBA)} }

func (*Generator) Namespace() string { return Namespace }
func (*Generator) MimeType() string  { return imageedit.MimePNG }

// Build renders the monster for hash at size pixels.
func (g *Generator) Build(hash string, size int) ([]byte, error) {
	const op = "monster.Build"
	if err := generator.CheckSize(op, size); err != nil {
		return nil, err
	}
	h, err := generator.Digits(op, hash, 8)
	if err != nil {
		return nil, err
	}
	img, err := g.Compose(PlanFor(h))
	if err != nil {
		return nil, err
	}
	var out image.Image = img
	if size != canvasSize {
		out = imageedit.Scale(img, size)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return nil, xerrors.Wrap(xerrors.KindGenerationFailed, op, "", err)
	}
	return buf.Bytes(), nil
}

// Compose draws plan onto a white canvas.
func (g *Generator) Compose(plan Plan) (*image.RGBA, error) {
	canvas := image.NewRGBA(image.Rect(0, 0, canvasSize, canvasSize))
	draw.Draw(canvas, canvas.Bounds(), image.White, image.Point{}, draw.Src)
	for _, p := range plan {
		src, err := g.part(p.Name)
		if err != nil {
			return nil, err
		}
		var layer image.Image = src
		if p.Colorize {
			layer = colorize(src, partBounds[p.Name], p.Hue, p.Sat)
		}
		draw.Draw(canvas, canvas.Bounds(), layer, image.Point{}, draw.Over)
	}
	return canvas, nil
}

// colorize returns a copy of src whose pixels inside bounds take the given
// hue and saturation, using their luminance as lightness.
func colorize(src *image.NRGBA, bounds image.Rectangle, hue, sat float64) *image.NRGBA {
	dst := image.NewNRGBA(src.Bounds())
	copy(dst.Pix, src.Pix)
	if bounds.Empty() {
		bounds = src.Bounds()
	}
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := dst.NRGBAAt(x, y)
			if c.A == 0 {
				continue
			}
			tinted := colorutil.HSL(hue, sat, colorutil.Luminance(c.R, c.G, c.B))
			dst.SetNRGBA(x, y, color.NRGBA{tinted.R, tinted.G, tinted.B, c.A})
		}
	}
	return dst
}

func (g *Generator) part(name string) (*image.NRGBA, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if img, ok := g.cache[name]; ok {
		return img, nil
	}
	data, err := parts.ReadFile("parts/" + name + ".png")
	if err != nil {
		return nil, xerrors.Wrap(xerrors.KindGenerationFailed, "monster.part", name, err)
	}
	decoded, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, xerrors.Wrap(xerrors.KindGenerationFailed, "monster.part", name, err)
	}
	img, ok := decoded.(*image.NRGBA)
	if !ok {
		img = image.NewNRGBA(decoded.Bounds())
		draw.Draw(img, img.Bounds(), decoded, decoded.Bounds().Min, draw.Src)
	}
	g.cache[name] = img
	return img, nil
}
