package core

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// GradientUniform is the background.wgsl uniform block.
type GradientUniform struct {
	Inner      mgl32.Vec4
	Middle     mgl32.Vec4
	Outer      mgl32.Vec4
	Resolution mgl32.Vec2
	Alpha      float32
	Pad        float32
}

const GradientUniformSize = 64

func NewGradientUniform(bg Background, width, height int) GradientUniform {
	return GradientUniform{
		Inner:      HexColor(bg.Inner).Vec4(1),
		Middle:     HexColor(bg.Middle).Vec4(1),
		Outer:      HexColor(bg.Outer).Vec4(1),
		Resolution: mgl32.Vec2{float32(width), float32(height)},
		Alpha:      float32(bg.Alpha),
	}
}

func (g GradientUniform) Bytes() []byte {
	return Bytes(g)
}

// At samples the gradient at a clip space position.
func (g GradientUniform) At(x, y float32) mgl32.Vec3 {
	aspect := g.Resolution.X() / float32(math.Max(float64(g.Resolution.Y()), 1))
	sx := float32(math.Max(float64(aspect), 1))
	sy := float32(math.Max(float64(1/aspect), 1))
	p := mgl32.Vec2{x * sx, y * sy}
	r := mgl32.Clamp(p.Len()/mgl32.Vec2{sx, sy}.Len(), 0, 1)
	if r < 0.5 {
		return lerpVec3(g.Inner.Vec3(), g.Middle.Vec3(), r*2)
	}
	return lerpVec3(g.Middle.Vec3(), g.Outer.Vec3(), (r-0.5)*2)
}

func lerpVec3(a, b mgl32.Vec3, t float32) mgl32.Vec3 {
	return a.Add(b.Sub(a).Mul(t))
}

// Falloff is the soft disc profile used by the particle fragment stage,
// with dist normalized to the particle radius.
func Falloff(dist float32) float32 {
	if dist >= 1 {
		return 0
	}
	if dist <= 0 {
		return 1
	}
	s := dist * dist * (3 - 2*dist)
	return 1 - s
}
