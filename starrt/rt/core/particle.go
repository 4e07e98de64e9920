package core

import (
	"github.com/go-gl/mathgl/mgl32"
)

// ParticleRecord matches the ParticleInstance vertex input of particles.wgsl.
// Field order is attribute order; the WGSL struct is generated from these tags.
type ParticleRecord struct {
	Position             mgl32.Vec2 `starfield:"layout" location:"0" format:"float2"`
	Size                 float32    `starfield:"layout" location:"1" format:"float"`
	Color                mgl32.Vec3 `starfield:"layout" location:"2" format:"float3"`
	OpacitySeed          float32    `starfield:"layout" location:"3" format:"float"`
	FadeInFraction       float32    `starfield:"layout" location:"4" format:"float"`
	FadeOutStartFraction float32    `starfield:"layout" location:"5" format:"float"`
	PhaseOffset          float32    `starfield:"layout" location:"6" format:"float"` // ms
	CycleDurationMs      float32    `starfield:"layout" location:"7" format:"float"`
	BrightnessFactor     float32    `starfield:"layout" location:"8" format:"float"`
}

// QuadCornerLocation is the shader location of the per-vertex unit quad corner.
const QuadCornerLocation = 9

// QuadCorners is the unit quad drawn as a 4 vertex triangle strip per instance.
var QuadCorners = [4]mgl32.Vec2{
	{-1, -1},
	{1, -1},
	{-1, 1},
	{1, 1},
}

// DepthClass buckets particles into parallax layers.
type DepthClass int

const (
	DepthFar DepthClass = iota
	DepthMid
	DepthNear
)

const depthClassCount = 3

func (d DepthClass) String() string {
	switch d {
	case DepthFar:
		return "far"
	case DepthMid:
		return "mid"
	case DepthNear:
		return "near"
	}
	return "unknown"
}

// Parallax weights per depth class. Near particles follow the scroll the most.
const (
	WeightFar  float32 = 0.15
	WeightMid  float32 = 0.5
	WeightNear float32 = 1.0
)

func (d DepthClass) Weight() float32 {
	switch d {
	case DepthNear:
		return WeightNear
	case DepthMid:
		return WeightMid
	default:
		return WeightFar
	}
}

// ClassOf recovers the depth class from a brightness factor and the band it was drawn from.
func ClassOf(brightness, lo, hi float32) DepthClass {
	span := hi - lo
	if span <= 0 {
		return DepthMid
	}
	n := (brightness - lo) / span
	switch {
	case n >= 2.0/3.0:
		return DepthNear
	case n >= 1.0/3.0:
		return DepthMid
	default:
		return DepthFar
	}
}

// ParallaxWeight is the vertical scroll displacement multiplier for a particle.
func ParallaxWeight(brightness, lo, hi float32) float32 {
	return ClassOf(brightness, lo, hi).Weight()
}
