package identicon

func trunc(v float64) float64 { return float64(int(v)) }

// centerShape draws one of the 14 shapes used in the four centre cells.
func centerShape(index int, g *graphics, cell float64, position int) {
	switch index % 14 {
	case 0:
		k := cell * 0.42
		g.polygon([]float64{
			0, 0,
			cell, 0,
			cell, cell - k*2,
			cell - k, cell,
			0, cell,
		}, false)
	case 1:
		w := trunc(cell * 0.5)
		h := trunc(cell * 0.8)
		g.triangle(cell-w, 0, w, h, 2, false)
	case 2:
		w := trunc(cell / 3)
		g.rectangle(w, w, cell-w, cell-w, false)
	case 3:
		inner := cell * 0.1
		var outer float64
		switch {
		case cell < 6:
			outer = 1
		case cell < 8:
			outer = 2
		default:
			outer = trunc(cell * 0.25)
		}
		switch {
		case inner > 1:
			inner = trunc(inner)
		case inner > 0.5:
			inner = 1
		}
		g.rectangle(outer, outer, cell-inner-outer, cell-inner-outer, false)
	case 4:
		m := trunc(cell * 0.15)
		w := trunc(cell * 0.5)
		g.circle(cell-w-m, cell-w-m, w, false)
	case 5:
		inner := cell * 0.1
		outer := inner * 4
		if outer > 3 {
			outer = trunc(outer)
		}
		g.rectangle(0, 0, cell, cell, false)
		g.polygon([]float64{
			outer, outer,
			cell - inner, outer,
			outer + (cell-outer-inner)/2, cell - inner,
		}, true)
	case 6:
		g.polygon([]float64{
			0, 0,
			cell, 0,
			cell, cell * 0.7,
			cell * 0.4, cell * 0.4,
			cell * 0.7, cell,
			0, cell,
		}, false)
	case 7, 11:
		g.triangle(cell/2, cell/2, cell/2, cell/2, 3, false)
	case 8:
		g.rectangle(0, 0, cell, cell/2, false)
		g.rectangle(0, cell/2, cell/2, cell/2, false)
		g.triangle(cell/2, cell/2, cell/2, cell/2, 1, false)
	case 9:
		inner := cell * 0.14
		var outer float64
		switch {
		case cell < 4:
			outer = 1
		case cell < 6:
			outer = 2
		default:
			outer = trunc(cell * 0.35)
		}
		if cell >= 8 {
			inner = trunc(inner)
		}
		g.rectangle(0, 0, cell, cell, false)
		g.rectangle(outer, outer, cell-outer-inner, cell-outer-inner, true)
	case 10:
		inner := cell * 0.12
		outer := inner * 3
		g.rectangle(0, 0, cell, cell, false)
		g.circle(outer, outer, cell-inner-outer, true)
	case 12:
		m := cell * 0.25
		g.rectangle(0, 0, cell, cell, false)
		g.rhombus(m, m, cell-m, cell-m, true)
	case 13:
		// Only the first cell draws; the circle spans all four.
		if position == 0 {
			m := cell * 0.4
			w := cell * 1.2
			g.circle(m, m, w, false)
		}
	}
}

// outerShape draws one of the 4 shapes used on the sides and corners.
func outerShape(index int, g *graphics, cell float64, _ int) {
	switch index % 4 {
	case 0:
		g.triangle(0, 0, cell, cell, 0, false)
	case 1:
		g.triangle(0, cell/2, cell, cell/2, 0, false)
	case 2:
		g.rhombus(0, 0, cell, cell, false)
	case 3:
		m := cell / 6
		g.circle(m, m, cell-2*m, false)
	}
}
