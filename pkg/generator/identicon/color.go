package identicon

import "strconv"

var lightnessCorrectors = [7]float64{0.55, 0.5, 0.5, 0.46, 0.6, 0.55, 0.55}

// Palette parameters.
const (
	colorSaturation = 0.5
	graySaturation  = 0.0
)

var (
	colorLightness = [2]float64{0.4, 0.8}
	grayLightness  = [2]float64{0.3, 0.9}
)

func lightness(r [2]float64, v float64) float64 {
	v = r[0] + v*(r[1]-r[0])
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// theme returns dark gray, mid colour, light gray, light colour and dark
// colour, in that order.
func theme(hue float64) [5]string {
	return [5]string{
		correctedHSL(hue, graySaturation, lightness(grayLightness, 0)),
		correctedHSL(hue, colorSaturation, lightness(colorLightness, 0.5)),
		correctedHSL(hue, graySaturation, lightness(grayLightness, 1)),
		correctedHSL(hue, colorSaturation, lightness(colorLightness, 1)),
		correctedHSL(hue, colorSaturation, lightness(colorLightness, 0)),
	}
}

// correctedHSL compensates for the perceived brightness of different hues.
func correctedHSL(hue, sat, light float64) string {
	c := lightnessCorrectors[int(hue*6+0.5)]
	if light < 0.5 {
		light = light * c * 2
	} else {
		light = c + (light-0.5)*(1-c)*2
	}
	return hsl(hue, sat, light)
}

func hsl(hue, sat, light float64) string {
	if sat == 0 {
		g := byteHex(light * 255)
		return "#" + g + g + g
	}
	var m2 float64
	if light <= 0.5 {
		m2 = light * (sat + 1)
	} else {
		m2 = light + sat - light*sat
	}
	m1 := light*2 - m2
	return "#" + hueToHex(m1, m2, hue*6+2) + hueToHex(m1, m2, hue*6) + hueToHex(m1, m2, hue*6-2)
}

func hueToHex(m1, m2, h float64) string {
	if h < 0 {
		h += 6
	} else if h > 6 {
		h -= 6
	}
	var v float64
	switch {
	case h < 1:
		v = m1 + (m2-m1)*h
	case h < 3:
		v = m2
	case h < 4:
		v = m1 + (m2-m1)*(4-h)
	default:
		v = m1
	}
	return byteHex(255 * v)
}

func byteHex(v float64) string {
	n := int(v)
	switch {
	case n < 0:
		return "00"
	case n < 16:
		return "0" + strconv.FormatInt(int64(n), 16)
	case n < 256:
		return strconv.FormatInt(int64(n), 16)
	}
	return "ff"
}
