// Package retro renders 5×5 mirrored pixel identicons as SVG.
package retro

import (
	"encoding/hex"
	"image/color"
	"math"
	"strconv"
	"strings"

	"github.com/jacktea/xavatar/pkg/generator"
	"github.com/jacktea/xavatar/pkg/generator/colorutil"
	"github.com/jacktea/xavatar/pkg/imageedit"
)

// Namespace is the cache namespace of retro avatars.
const Namespace = "retro"

const (
	gridSize  = 5
	pairs     = 15
	minDigits = pairs * 2
	// backgroundTint is how far the background moves toward white.
	backgroundTint = 0.8
)

// columns lists the grid columns filled by a pair, indexed by pair%3; the
// outer columns mirror each other.
var columns = [3][]int{{0, 4}, {1, 3}, {2}}

// Generator implements generator.Generator.
type Generator struct{}

// New returns a retro generator.
func New() Generator { return Generator{} }

func (Generator) Namespace() string { return Namespace }
func (Generator) MimeType() string  { return imageedit.MimeSVG }

// Build renders the retro avatar for hash at size pixels.
func (Generator) Build(hash string, size int) ([]byte, error) {
	const op = "retro.Build"
	if err := generator.CheckSize(op, size); err != nil {
		return nil, err
	}
	h, err := generator.Digits(op, hash, minDigits)
	if err != nil {
		return nil, err
	}
	raw, err := hex.DecodeString(h[:minDigits])
	if err != nil {
		return nil, err
	}
	fg := color.NRGBA{raw[0], raw[1], raw[2], 0xff}
	bg := colorutil.Mix(color.NRGBA{raw[3], raw[4], raw[5], 0xff}, color.NRGBA{0xff, 0xff, 0xff, 0xff}, backgroundTint)

	var d strings.Builder
	for row, on := range Grid(raw) {
		for col, set := range on {
			if set {
				d.WriteString("M" + strconv.Itoa(col) + "," + strconv.Itoa(row) + "h1v1h-1v-1z")
			}
		}
	}

	s := strconv.Itoa(size)
	var b strings.Builder
	b.WriteString(`<svg xmlns="http://www.w3.org/2000/svg" width="` + s + `" height="` + s + `" viewBox="0 0 5 5" shape-rendering="crispEdges">`)
	b.WriteString(`<rect width="5" height="5" fill="` + colorutil.Hex(bg) + `"/>`)
	if d.Len() > 0 {
		b.WriteString(`<path fill="` + colorutil.Hex(fg) + `" d="` + d.String() + `"/>`)
	}
	b.WriteString(`</svg>`)
	return []byte(b.String()), nil
}

// Grid turns the first 15 bytes of a hash into a horizontally symmetric
// 5×5 bitmap.
func Grid(raw []byte) [gridSize][gridSize]bool {
	var grid [gridSize][gridSize]bool
	for i := 0; i < pairs && i < len(raw); i++ {
		if math.Round(float64(raw[i])/10/15) == 0 {
			continue
		}
		for _, col := range columns[i%3] {
			grid[i/3][col] = true
		}
	}
	return grid
}
