package identicon

import (
	"strconv"
	"strings"
)

type point struct{ x, y float64 }

// transform places shape coordinates inside one grid cell, rotated by a
// multiple of 90 degrees.
type transform struct {
	x, y, size float64
	rotation   int
}

func (t transform) apply(x, y, w, h float64) point {
	right := t.x + t.size
	bottom := t.y + t.size
	switch t.rotation {
	case 1:
		return point{right - y - h, t.y + x}
	case 2:
		return point{right - x - w, bottom - y - h}
	case 3:
		return point{t.x + y, bottom - x - w}
	}
	return point{t.x + x, t.y + y}
}

// path accumulates SVG path data for one colour.
type path struct {
	b strings.Builder
}

func (p *path) polygon(pts []point) {
	for i, pt := range pts {
		if i == 0 {
			p.b.WriteByte('M')
		} else {
			p.b.WriteByte('L')
		}
		p.b.WriteString(svgValue(pt.x))
		p.b.WriteByte(' ')
		p.b.WriteString(svgValue(pt.y))
	}
	p.b.WriteByte('Z')
}

func (p *path) circle(pt point, diameter float64, counterClockwise bool) {
	sweep := "1"
	if counterClockwise {
		sweep = "0"
	}
	r := svgValue(diameter / 2)
	d := svgRound(diameter)
	arc := "a" + r + "," + r + " 0 1," + sweep + " "
	p.b.WriteString("M" + svgValue(pt.x) + " " + svgValue(pt.y+diameter/2))
	p.b.WriteString(arc + formatNum(d) + ",0")
	p.b.WriteString(arc + formatNum(-d) + ",0")
}

// graphics draws primitive shapes through the current transform.
type graphics struct {
	t    transform
	path *path
}

func (g *graphics) polygon(coords []float64, invert bool) {
	pts := make([]point, 0, len(coords)/2)
	if invert {
		for i := len(coords) - 2; i >= 0; i -= 2 {
			pts = append(pts, g.t.apply(coords[i], coords[i+1], 0, 0))
		}
	} else {
		for i := 0; i+1 < len(coords); i += 2 {
			pts = append(pts, g.t.apply(coords[i], coords[i+1], 0, 0))
		}
	}
	g.path.polygon(pts)
}

func (g *graphics) circle(x, y, size float64, invert bool) {
	g.path.circle(g.t.apply(x, y, size, size), size, invert)
}

func (g *graphics) rectangle(x, y, w, h float64, invert bool) {
	g.polygon([]float64{x, y, x + w, y, x + w, y + h, x, y + h}, invert)
}

// triangle draws the right triangle inside (x, y, w, h) with the corner
// selected by r removed.
func (g *graphics) triangle(x, y, w, h float64, r int, invert bool) {
	pts := []float64{x + w, y, x + w, y + h, x, y + h, x, y}
	i := (r % 4) * 2
	pts = append(pts[:i], pts[i+2:]...)
	g.polygon(pts, invert)
}

func (g *graphics) rhombus(x, y, w, h float64, invert bool) {
	g.polygon([]float64{x + w/2, y, x + w, y + h/2, x + w/2, y + h, x, y + h/2}, invert)
}

// svgRound rounds to one decimal, truncating after adding half a unit.
func svgRound(v float64) float64 {
	return float64(int64(v*10+0.5)) / 10
}

func svgValue(v float64) string {
	return formatNum(svgRound(v))
}

func formatNum(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
