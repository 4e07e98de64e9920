package core

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// FadeOutShrink is how much of its size a particle loses over the fade out.
const FadeOutShrink = 0.6

// FrameState is the per-frame uniform block shared by all particles
// (group 0, binding 0).
type FrameState struct {
	TimeMs        float32
	ScrollOffset  float32
	Resolution    mgl32.Vec2
	BrightnessLo  float32
	BrightnessHi  float32
	ParallaxScale float32
	Twinkle       float32
}

// FrameStateSize is the byte size of the FrameState uniform.
const FrameStateSize = 32

func (fs FrameState) Bytes() []byte {
	return Bytes(fs)
}

// BrightnessUniform is the global brightness scalar (group 0, binding 1),
// padded to a 16 byte uniform.
type BrightnessUniform struct {
	Value float32
	Pad   [3]float32
}

const BrightnessUniformSize = 16

func (b BrightnessUniform) Bytes() []byte {
	return Bytes(b)
}

// NewFrameState fills the config derived fields of a FrameState.
func NewFrameState(cfg Config, width, height int) FrameState {
	return FrameState{
		Resolution:    mgl32.Vec2{float32(width), float32(height)},
		BrightnessLo:  float32(cfg.BrightnessMin),
		BrightnessHi:  float32(cfg.BrightnessMax),
		ParallaxScale: float32(cfg.ParallaxStrength),
		Twinkle:       float32(cfg.Twinkle),
	}
}

// CycleProgress is the normalized position of a particle inside its cycle.
func CycleProgress(timeMs, phaseOffsetMs, cycleMs float32) float32 {
	if cycleMs <= 0 {
		return 0
	}
	x := float64(timeMs+phaseOffsetMs) / float64(cycleMs)
	return float32(x - math.Floor(x))
}

// LifecycleOpacity maps cycle progress t to the fade in / hold / fade out ramp.
func LifecycleOpacity(t, fadeIn, fadeOutStart float32) float32 {
	switch {
	case t < fadeIn:
		return t / fadeIn
	case t < fadeOutStart:
		return 1
	default:
		return 1 - fadeOutProgress(t, fadeOutStart)
	}
}

// LifecycleScale shrinks particles during the fade out.
func LifecycleScale(t, fadeOutStart float32) float32 {
	if t < fadeOutStart {
		return 1
	}
	return 1 - fadeOutProgress(t, fadeOutStart)*FadeOutShrink
}

func fadeOutProgress(t, fadeOutStart float32) float32 {
	span := 1 - fadeOutStart
	if span <= 0 {
		return 1
	}
	return mgl32.Clamp((t-fadeOutStart)/span, 0, 1)
}

// Twinkle modulates brightness in [1-2*amount, 1].
func Twinkle(timeMs, phaseOffset, amount float32) float32 {
	s := float32(math.Sin(float64(timeMs)*0.001 + float64(phaseOffset)))
	return (1 - amount) + amount*s
}

// WrapY keeps a displaced coordinate inside the scatter square.
func WrapY(y float32) float32 {
	span := 2 * float64(PositionExtent)
	v := math.Mod(float64(y)+PositionExtent, span)
	if v < 0 {
		v += span
	}
	return float32(v - PositionExtent)
}

// Sprite is one evaluated particle in clip space.
type Sprite struct {
	Position mgl32.Vec2
	Radius   float32
	Color    mgl32.Vec3
	Alpha    float32
}

// Evaluate computes on the CPU what particles.wgsl computes per instance.
func Evaluate(r ParticleRecord, fs FrameState, brightness float32) Sprite {
	t := CycleProgress(fs.TimeMs, r.PhaseOffset, r.CycleDurationMs)
	weight := ParallaxWeight(r.BrightnessFactor, fs.BrightnessLo, fs.BrightnessHi)

	pos := r.Position
	pos[1] = WrapY(pos[1] + fs.ScrollOffset*weight*fs.ParallaxScale)

	alpha := LifecycleOpacity(t, r.FadeInFraction, r.FadeOutStartFraction) *
		r.BrightnessFactor * brightness *
		Twinkle(fs.TimeMs, r.PhaseOffset, fs.Twinkle) *
		r.OpacitySeed

	return Sprite{
		Position: pos,
		Radius:   r.Size * LifecycleScale(t, r.FadeOutStartFraction),
		Color:    r.Color,
		Alpha:    mgl32.Clamp(alpha, 0, 1),
	}
}
