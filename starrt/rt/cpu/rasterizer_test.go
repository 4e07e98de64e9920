package cpu

import (
	"math/rand"
	"testing"

	"github.com/gekko3d/starfield/starrt/rt/core"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func centerParticle() core.ParticleRecord {
	return core.ParticleRecord{
		Position:             mgl32.Vec2{0, 0},
		Size:                 0.2,
		Color:                mgl32.Vec3{1, 1, 1},
		OpacitySeed:          1,
		FadeInFraction:       0.2,
		FadeOutStartFraction: 0.7,
		CycleDurationMs:      1000,
		PhaseOffset:          500, // mid hold at time 0
		BrightnessFactor:     1,
	}
}

func TestRenderOutputSize(t *testing.T) {
	r := New(Options{})
	img := r.Render(Frame{Width: 64, Height: 48, Brightness: 1})
	assert.Equal(t, 64, img.Bounds().Dx())
	assert.Equal(t, 48, img.Bounds().Dy())

	empty := r.Render(Frame{Width: 0, Height: 10})
	assert.True(t, empty.Bounds().Empty())
}

func TestRenderParticleBrightensCenter(t *testing.T) {
	r := New(Options{Scale: 1})
	f := Frame{
		Width:      64,
		Height:     64,
		Records:    []core.ParticleRecord{centerParticle()},
		State:      core.FrameState{BrightnessLo: 0, BrightnessHi: 1},
		Brightness: 1,
	}
	img := r.Render(f)
	center := img.RGBAAt(32, 32)
	corner := img.RGBAAt(0, 0)
	assert.Greater(t, center.R, uint8(200))
	assert.Equal(t, uint8(0), corner.R)
	assert.Equal(t, uint8(255), corner.A)
}

func TestRenderNoParticlesShowsBackgroundOnly(t *testing.T) {
	r := New(Options{Scale: 1})
	bg := core.DefaultConfig().Background
	img := r.Render(Frame{Width: 40, Height: 40, Background: bg, Brightness: 1})

	inner := core.HexColor(bg.Inner)
	c := img.RGBAAt(20, 20)
	assert.InDelta(t, float64(inner[0]*255), float64(c.R), 3)
	assert.InDelta(t, float64(inner[2]*255), float64(c.B), 3)
}

func TestRenderBackgroundOverParticles(t *testing.T) {
	r := New(Options{Scale: 1})
	bg := core.DefaultConfig().Background
	bg.LayerIndex = 5
	bg.Alpha = 1
	f := Frame{
		Width:      32,
		Height:     32,
		Records:    []core.ParticleRecord{centerParticle()},
		State:      core.FrameState{BrightnessLo: 0, BrightnessHi: 1},
		Brightness: 1,
		Background: bg,
	}
	img := r.Render(f)
	inner := core.HexColor(bg.Inner)
	assert.InDelta(t, float64(inner[0]*255), float64(img.RGBAAt(16, 16).R), 3)
}

func TestRenderCapsParticleBudget(t *testing.T) {
	cfg := core.DefaultConfig()
	records := core.Build(10000, cfg, rand.New(rand.NewSource(3)))

	r := New(Options{MaxParticles: 10})
	require.NotPanics(t, func() {
		r.Render(Frame{Width: 80, Height: 60, Records: records, State: core.NewFrameState(cfg, 80, 60), Brightness: 1})
	})
	assert.Equal(t, 10, r.opts.MaxParticles)
}
