package core

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/lucasb-eyer/go-colorful"
)

var (
	colorTeal      = colorful.Color{R: 0.39, G: 1.0, B: 0.85}
	colorLightTeal = colorful.Color{R: 0.62, G: 1.0, B: 0.92}
	colorCoral     = colorful.Color{R: 1.0, G: 0.39, B: 0.39}
	colorYellow    = colorful.Color{R: 1.0, G: 0.94, B: 0.39}
	colorPurple    = colorful.Color{R: 0.76, G: 0.39, B: 1.0}
	colorWhite     = colorful.Color{R: 1.0, G: 1.0, B: 1.0}
)

var classPalette = [depthClassCount][2]colorful.Color{
	DepthFar:  {colorPurple, colorWhite},
	DepthMid:  {colorTeal, colorLightTeal},
	DepthNear: {colorCoral, colorYellow},
}

// PaletteColor picks one of the two colours of a depth class and rotates its
// hue by hueShift degrees.
func PaletteColor(class DepthClass, pick float64, hueShift float64) mgl32.Vec3 {
	if class < DepthFar || class > DepthNear {
		class = DepthMid
	}
	c := classPalette[class][0]
	if pick >= 0.5 {
		c = classPalette[class][1]
	}
	c = RotateHue(c, hueShift)
	return mgl32.Vec3{float32(c.R), float32(c.G), float32(c.B)}
}

// RotateHue shifts the hue of c in HSV space.
func RotateHue(c colorful.Color, degrees float64) colorful.Color {
	if degrees == 0 || math.Mod(degrees, 360) == 0 {
		return c
	}
	h, s, v := c.Hsv()
	h = math.Mod(h+degrees, 360)
	if h < 0 {
		h += 360
	}
	return colorful.Hsv(h, s, v).Clamped()
}

// HexColor parses a #rrggbb colour, falling back to black.
func HexColor(hex string) mgl32.Vec3 {
	c, err := colorful.Hex(hex)
	if err != nil {
		return mgl32.Vec3{}
	}
	return mgl32.Vec3{float32(c.R), float32(c.G), float32(c.B)}
}
