// Package identicon renders geometric SVG identicons: a 4×4 grid of
// rotated shapes in a hue derived from the hash.
package identicon

import (
	"strconv"
	"strings"

	"github.com/jacktea/xavatar/pkg/generator"
	"github.com/jacktea/xavatar/pkg/imageedit"
)

const (
	// Namespace is the cache namespace of identicons.
	Namespace = "identicon"
	padding   = 0.08
	minDigits = 11
)

var (
	sidePositions   = [][2]int{{1, 0}, {2, 0}, {2, 3}, {1, 3}, {0, 1}, {3, 1}, {3, 2}, {0, 2}}
	cornerPositions = [][2]int{{0, 0}, {3, 0}, {3, 3}, {0, 3}}
	centerPositions = [][2]int{{1, 1}, {2, 1}, {2, 2}, {1, 2}}
)

// Generator implements generator.Generator.
type Generator struct{}

// New returns an identicon generator.
func New() Generator { return Generator{} }

func (Generator) Namespace() string { return Namespace }
func (Generator) MimeType() string  { return imageedit.MimeSVG }

// Build renders the identicon for hash at size pixels.
func (Generator) Build(hash string, size int) ([]byte, error) {
	const op = "identicon.Build"
	if err := generator.CheckSize(op, size); err != nil {
		return nil, err
	}
	h, err := generator.Digits(op, hash, minDigits)
	if err != nil {
		return nil, err
	}
	return []byte(render(h, size)), nil
}

func hexAt(h string, i int) int {
	v, _ := strconv.ParseUint(h[i:i+1], 16, 8)
	return int(v)
}

func render(h string, iconSize int) string {
	pad := int(0.5 + float64(iconSize)*padding)
	size := float64(iconSize - pad*2)
	cell := trunc(size / 4)
	x := trunc(float64(pad) + size/2 - cell*2)
	y := trunc(float64(pad) + size/2 - cell*2)

	hueBits, _ := strconv.ParseUint(h[len(h)-7:], 16, 32)
	colors := theme(float64(hueBits) / 0xfffffff)

	var selected []int
	isDuplicate := func(index int, values ...int) bool {
		hit := false
		for _, v := range values {
			if v == index {
				hit = true
			}
		}
		if !hit {
			return false
		}
		for _, v := range values {
			for _, s := range selected {
				if s == v {
					return true
				}
			}
		}
		return false
	}
	for i := 0; i < 3; i++ {
		index := hexAt(h, 8+i) % len(colors)
		// Dark gray never pairs with dark colour, light gray never with light.
		if isDuplicate(index, 0, 4) || isDuplicate(index, 2, 3) {
			index = 1
		}
		selected = append(selected, index)
	}

	var order []string
	paths := make(map[string]*path)
	renderShape := func(colorIndex int, shape func(int, *graphics, float64, int), index, rotationIndex int, positions [][2]int) {
		shapeIndex := hexAt(h, index)
		r := 0
		if rotationIndex > 0 {
			r = hexAt(h, rotationIndex)
		}
		c := colors[selected[colorIndex]]
		p, ok := paths[c]
		if !ok {
			p = &path{}
			paths[c] = p
			order = append(order, c)
		}
		g := &graphics{path: p}
		for i, pos := range positions {
			g.t = transform{x: x + float64(pos[0])*cell, y: y + float64(pos[1])*cell, size: cell, rotation: r % 4}
			r++
			shape(shapeIndex, g, cell, i)
		}
	}
	renderShape(0, outerShape, 2, 3, sidePositions)
	renderShape(1, outerShape, 4, 5, cornerPositions)
	renderShape(2, centerShape, 1, 0, centerPositions)

	var b strings.Builder
	s := strconv.Itoa(iconSize)
	b.WriteString(`<svg xmlns="http://www.w3.org/2000/svg" width="` + s + `" height="` + s + `" viewBox="0 0 ` + s + ` ` + s + `">`)
	for _, c := range order {
		d := paths[c].b.String()
		if d == "" {
			continue
		}
		b.WriteString(`<path fill="` + c + `" d="` + d + `"/>`)
	}
	b.WriteString(`</svg>`)
	return b.String()
}
