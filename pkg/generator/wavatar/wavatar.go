// Package wavatar composes 80×80 cartoon faces from embedded part images.
package wavatar

import (
	"bytes"
	"embed"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strconv"
	"sync"

	"github.com/jacktea/xavatar/pkg/generator"
	"github.com/jacktea/xavatar/pkg/generator/colorutil"
	"github.com/jacktea/xavatar/pkg/imageedit"
	"github.com/jacktea/xavatar/pkg/xerrors"
)

// Namespace is the cache namespace of wavatars.
const Namespace = "wavatar"

const (
	canvasSize = 80
	minDigits  = 17
)

//go:embed parts/*.png
var parts embed.FS

// Features selects one variant per layer; all indexes are 1-based.
type Features struct {
	Face, Fade, Brow, Eyes, Pupils, Mouth int
	BackgroundHue, AccentHue              int
}

// FeaturesFor derives the layer choices from a normalized hash.
func FeaturesFor(h string) Features {
	at := func(i int) int {
		v, _ := strconv.ParseUint(h[i:i+2], 16, 8)
		return int(v)
	}
	return Features{
		Face:          at(1)%8 + 1,
		BackgroundHue: at(3) % 240,
		Fade:          at(5)%4 + 1,
		AccentHue:     at(7) % 240,
		Brow:          at(9)%8 + 1,
		Eyes:          at(11)%13 + 1,
		Pupils:        at(13)%11 + 1,
		Mouth:         at(15)%19 + 1,
	}
}

// Generator implements generator.Generator.
type Generator struct {
	mu    sync.Mutex
	cache map[string]image.Image
}

// New returns a wavatar generator.
func New() *Generator { return &Generator{cache: make(map[string]image.Image)} }

func (*Generator) Namespace() string { return Namespace }
func (*Generator) MimeType() string  { return imageedit.MimePNG }

// Build renders the wavatar for hash at size pixels.
func (g *Generator) Build(hash string, size int) ([]byte, error) {
	const op = "wavatar.Build"
	if err := generator.CheckSize(op, size); err != nil {
		return nil, err
	}
	h, err := generator.Digits(op, hash, minDigits)
	if err != nil {
		return nil, err
	}
	img, err := g.Compose(FeaturesFor(h))
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

// Compose layers the parts selected by f onto a fresh canvas.
func (g *Generator) Compose(f Features) (*image.RGBA, error) {
	canvas := image.NewRGBA(image.Rect(0, 0, canvasSize, canvasSize))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(colorutil.HSL240(f.BackgroundHue, 240, 50)), image.Point{}, draw.Src)

	if err := g.layer(canvas, "fade", f.Fade); err != nil {
		return nil, err
	}
	if err := g.layer(canvas, "mask", f.Face); err != nil {
		return nil, err
	}
	floodFill(canvas, canvasSize/2, canvasSize/2, colorutil.HSL240(f.AccentHue, 240, 170))
	for _, l := range []struct {
		name  string
		index int
	}{
		{"shine", f.Face},
		{"brow", f.Brow},
		{"eyes", f.Eyes},
		{"pupils", f.Pupils},
		{"mouth", f.Mouth},
	} {
		if err := g.layer(canvas, l.name, l.index); err != nil {
			return nil, err
		}
	}
	return canvas, nil
}

func (g *Generator) layer(dst *image.RGBA, name string, index int) error {
	part, err := g.part(fmt.Sprintf("%s%d", name, index))
	if err != nil {
		return err
	}
	draw.Draw(dst, dst.Bounds(), part, image.Point{}, draw.Over)
	return nil
}

func (g *Generator) part(name string) (image.Image, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if img, ok := g.cache[name]; ok {
		return img, nil
	}
	data, err := parts.ReadFile("parts/" + name + ".png")
	if err != nil {
		return nil, xerrors.Wrap(xerrors.KindGenerationFailed, "wavatar.part", name, err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, xerrors.Wrap(xerrors.KindGenerationFailed, "wavatar.part", name, err)
	}
	g.cache[name] = img
	return img, nil
}

// floodFill repaints the 4-connected region of pixels sharing the colour
// at (x, y).
func floodFill(img *image.RGBA, x, y int, c color.Color) {
	b := img.Bounds()
	target := img.RGBAAt(x, y)
	fill := color.RGBAModel.Convert(c).(color.RGBA)
	if target == fill {
		return
	}
	stack := []image.Point{{x, y}}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !p.In(b) || img.RGBAAt(p.X, p.Y) != target {
			continue
		}
		img.SetRGBA(p.X, p.Y, fill)
		stack = append(stack,
			image.Point{p.X + 1, p.Y}, image.Point{p.X - 1, p.Y},
			image.Point{p.X, p.Y + 1}, image.Point{p.X, p.Y - 1})
	}
}
