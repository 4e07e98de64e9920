package core

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertBoundsOrdered(t *testing.T, c Config) {
	t.Helper()
	assert.GreaterOrEqual(t, c.BrightnessMax-c.BrightnessMin, MinBrightnessGap-1e-9)
	assert.LessOrEqual(t, c.SizeMin, c.SizeMax)
	assert.LessOrEqual(t, c.LifetimeMin, c.LifetimeMax)
}

func TestDefaultConfigWithinSpecs(t *testing.T) {
	c := DefaultConfig()
	assert.Equal(t, 10000, c.Count)
	assert.Equal(t, 1.0, c.Brightness)
	for _, s := range Params() {
		v := c.Get(s.Param)
		assert.GreaterOrEqual(t, v, s.Min, s.Name)
		assert.LessOrEqual(t, v, s.Max, s.Name)
	}
	assert.Equal(t, c, Normalize(c, ParamNone))
}

func TestApplyMovesOtherBound(t *testing.T) {
	c := DefaultConfig()

	c, err := c.Apply(Set(ParamSizeMin, 0.1))
	require.NoError(t, err)
	assert.Equal(t, 0.1, c.SizeMin)
	assert.Equal(t, 0.1, c.SizeMax)

	c, err = c.Apply(Set(ParamSizeMax, 0.02))
	require.NoError(t, err)
	assert.Equal(t, 0.02, c.SizeMax)
	assert.Equal(t, 0.02, c.SizeMin)

	c, err = c.Apply(Set(ParamLifetimeMax, 2))
	require.NoError(t, err)
	assert.Equal(t, 2.0, c.LifetimeMin)
	assertBoundsOrdered(t, c)
}

func TestApplyKeepsBrightnessGap(t *testing.T) {
	c, err := DefaultConfig().Apply(Set(ParamBrightnessMin, 1))
	require.NoError(t, err)
	assert.InDelta(t, 1, c.BrightnessMin, 1e-9)
	assert.InDelta(t, 1.15, c.BrightnessMax, 1e-9)

	c, err = c.Apply(Set(ParamBrightnessMax, 0.5))
	require.NoError(t, err)
	assert.InDelta(t, 0.35, c.BrightnessMin, 1e-9)
	assert.InDelta(t, 0.5, c.BrightnessMax, 1e-9)

	// at the top of the range the edited bound gives way
	c, err = c.Apply(Set(ParamBrightnessMin, 3))
	require.NoError(t, err)
	assert.InDelta(t, 2.85, c.BrightnessMin, 1e-9)
	assert.InDelta(t, 3, c.BrightnessMax, 1e-9)

	loaded := DefaultConfig()
	loaded.BrightnessMin, loaded.BrightnessMax = 0.05, 0.05
	loaded = Normalize(loaded, ParamNone)
	assert.InDelta(t, 0.05, loaded.BrightnessMin, 1e-9)
	assert.InDelta(t, 0.2, loaded.BrightnessMax, 1e-9)
}

func TestApplyWrapsHue(t *testing.T) {
	c := DefaultConfig()
	require.Zero(t, c.HueShift)

	c, err := c.Apply(Add(ParamHueShift, -15))
	require.NoError(t, err)
	assert.Equal(t, 345.0, c.HueShift)

	c, err = c.Apply(Add(ParamHueShift, 30))
	require.NoError(t, err)
	assert.Equal(t, 15.0, c.HueShift)

	c, err = c.Apply(Set(ParamHueShift, 720+90))
	require.NoError(t, err)
	assert.Equal(t, 90.0, c.HueShift)
}

func TestApplyRandomSequenceKeepsBoundsOrdered(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	c := DefaultConfig()
	specs := Params()
	for i := 0; i < 2000; i++ {
		s := specs[rng.Intn(len(specs))]
		v := s.Min - s.Step*3 + rng.Float64()*(s.Max-s.Min+s.Step*6)
		var d ParamDelta
		if rng.Intn(2) == 0 {
			d = Set(s.Param, v)
		} else {
			d = Add(s.Param, v-s.Default)
		}
		next, err := c.Apply(d)
		require.NoError(t, err)
		assert.Equal(t, c.Version+1, next.Version)
		c = next
		assertBoundsOrdered(t, c)
		for _, ps := range specs {
			assert.GreaterOrEqual(t, c.Get(ps.Param), ps.Min)
			assert.LessOrEqual(t, c.Get(ps.Param), ps.Max)
		}
	}
}

func TestApplySnapsToStep(t *testing.T) {
	c, err := DefaultConfig().Apply(Set(ParamCount, 5049))
	require.NoError(t, err)
	assert.Equal(t, 5000, c.Count)

	c, err = c.Apply(Set(ParamBrightness, 0.93))
	require.NoError(t, err)
	assert.InDelta(t, 0.95, c.Brightness, 1e-9)
}

func TestApplyRejectsBadInput(t *testing.T) {
	c := DefaultConfig()
	_, err := c.Apply(ParamDelta{Param: Param(99), Value: 1})
	assert.Error(t, err)
	_, err = c.Apply(Set(ParamBrightness, math.NaN()))
	assert.Error(t, err)
}

func TestRegenerationChanged(t *testing.T) {
	c := DefaultConfig()
	b, err := c.Apply(Set(ParamBrightness, 2))
	require.NoError(t, err)
	assert.False(t, c.RegenerationChanged(b))
	assert.False(t, ParamBrightness.Regenerates())

	n, err := c.Apply(Set(ParamCount, 500))
	require.NoError(t, err)
	assert.True(t, c.RegenerationChanged(n))
	assert.True(t, ParamCount.Regenerates())
}

func TestParamByName(t *testing.T) {
	p, ok := ParamByName("hueShift")
	require.True(t, ok)
	assert.Equal(t, ParamHueShift, p)
	_, ok = ParamByName("nope")
	assert.False(t, ok)
}

func TestPresets(t *testing.T) {
	names := PresetNames()
	assert.Contains(t, names, DefaultPreset)
	assert.Contains(t, names, "plexus")

	def, err := Preset(DefaultPreset)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), def)

	plexus, err := Preset("plexus")
	require.NoError(t, err)
	assert.Equal(t, 500, plexus.Count)
	assert.Equal(t, 200.0, plexus.HueShift)
	assert.Equal(t, DefaultConfig().Brightness, plexus.Brightness)
	assert.Equal(t, "#0b1a2e", plexus.Background.Inner)
	assert.True(t, plexus.Plexus.Enabled, "plexus preset draws the linked field")
	assert.Equal(t, DefaultPlexus().Count, plexus.Plexus.Count)
	assert.False(t, def.Plexus.Enabled)

	_, err = Preset("missing")
	assert.Error(t, err)

	_, err = ParsePresets([]byte("presets: [1, 2"))
	assert.Error(t, err)
}
