package app

import (
	"image/color"
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

const (
	hueStart = 236.0 // lowest altitude
	hueEnd   = 0.0   // highest altitude
)

var (
	noAltitudeColor = color.RGBA{R: 0x99, G: 0x99, B: 0x99, A: 0xff}
	targetColor     = color.RGBA{R: 0xd0, A: 0xff}
	startColor      = color.RGBA{G: 0xa0, A: 0xff}
	endColor        = color.Black
	frameColor      = color.RGBA{R: 0xcc, G: 0xcc, B: 0xcc, A: 0xff}
)

// altitudeColor maps z onto a blue to red ramp spanning [minZ, maxZ]
func altitudeColor(z *float64, minZ, maxZ float64) color.Color {
	if z == nil {
		return noAltitudeColor
	}

	span := maxZ - minZ
	if span <= 0 {
		return colorful.Hsv(hueStart, 1, 0.90)
	}

	normalized := (*z - minZ) / span
	hue := hueStart - normalized*(hueStart-hueEnd)
	hue = math.Min(math.Max(hue, hueEnd), hueStart)

	return colorful.Hsv(hue, 1, 0.90)
}
