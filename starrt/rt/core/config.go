package core

import (
	"fmt"
	"math"
)

// Param names one tunable configuration value.
type Param int

const (
	ParamCount Param = iota
	ParamBrightness
	ParamBrightnessMin
	ParamBrightnessMax
	ParamSizeMin
	ParamSizeMax
	ParamLifetimeMin
	ParamLifetimeMax
	ParamHueShift
	ParamLayerIndex
	ParamParallaxStrength
	ParamScrollDamping
	ParamTwinkle

	paramCount
)

// ParamNone is passed to Normalize when no single value was edited.
const ParamNone Param = -1

// ParamSpec is the declared range of a parameter, used for clamping, snapping
// and for building controls.
type ParamSpec struct {
	Param   Param
	Name    string
	Min     float64
	Max     float64
	Step    float64
	Default float64
	// Regenerates is set for parameters baked into the particle records.
	Regenerates bool
}

var paramSpecs = [paramCount]ParamSpec{
	{ParamCount, "count", 0, 100000, 100, 10000, true},
	{ParamBrightness, "brightness", 0, 3, 0.05, 1, false},
	{ParamBrightnessMin, "brightnessMin", 0.05, 3, 0.05, 0.3, true},
	{ParamBrightnessMax, "brightnessMax", 0.05, 3, 0.05, 1, true},
	{ParamSizeMin, "sizeMin", 0.002, 0.2, 0.001, 0.01, true},
	{ParamSizeMax, "sizeMax", 0.002, 0.2, 0.001, 0.07, true},
	{ParamLifetimeMin, "lifetimeMin", 1, 60, 0.5, 5, true},
	{ParamLifetimeMax, "lifetimeMax", 1, 60, 0.5, 14, true},
	{ParamHueShift, "hueShift", 0, 360, 1, 0, true},
	{ParamLayerIndex, "layerIndex", -10, 10, 1, 0, false},
	{ParamParallaxStrength, "parallaxStrength", 0, 2, 0.05, 0.3, false},
	{ParamScrollDamping, "scrollDamping", 0, 0.02, 0.0005, 0.002, false},
	{ParamTwinkle, "twinkle", 0, 1, 0.05, 0.2, false},
}

// Params lists every parameter definition in declaration order.
func Params() []ParamSpec {
	out := make([]ParamSpec, len(paramSpecs))
	copy(out, paramSpecs[:])
	return out
}

// Spec returns the range and step of p.
func (p Param) Spec() (ParamSpec, bool) {
	if p < 0 || p >= paramCount {
		return ParamSpec{}, false
	}
	return paramSpecs[p], true
}

func (p Param) String() string {
	if s, ok := p.Spec(); ok {
		return s.Name
	}
	return fmt.Sprintf("Param(%d)", int(p))
}

// Regenerates reports whether a change of p requires rebuilding the store.
func (p Param) Regenerates() bool {
	s, ok := p.Spec()
	return ok && s.Regenerates
}

// ParamByName looks a parameter up by its persisted name.
func ParamByName(name string) (Param, bool) {
	for _, s := range paramSpecs {
		if s.Name == name {
			return s.Param, true
		}
	}
	return ParamNone, false
}

// Background is the radial gradient layer drawn behind or over the particles.
type Background struct {
	Enabled    bool    `yaml:"enabled"`
	LayerIndex int     `yaml:"layerIndex"`
	Alpha      float64 `yaml:"alpha"`
	Inner      string  `yaml:"inner"`
	Middle     string  `yaml:"middle"`
	Outer      string  `yaml:"outer"`
}

// Config is the full engine configuration. It is a value: every accepted
// change produces a new Config with a higher Version.
type Config struct {
	Count            int        `yaml:"count"`
	Brightness       float64    `yaml:"brightness"`
	BrightnessMin    float64    `yaml:"brightnessMin"`
	BrightnessMax    float64    `yaml:"brightnessMax"`
	SizeMin          float64    `yaml:"sizeMin"`
	SizeMax          float64    `yaml:"sizeMax"`
	LifetimeMin      float64    `yaml:"lifetimeMin"` // seconds
	LifetimeMax      float64    `yaml:"lifetimeMax"` // seconds
	HueShift         float64    `yaml:"hueShift"`    // degrees
	LayerIndex       int        `yaml:"layerIndex"`
	ParallaxStrength float64    `yaml:"parallaxStrength"`
	ScrollDamping    float64    `yaml:"scrollDamping"`
	Twinkle          float64    `yaml:"twinkle"`
	Background       Background `yaml:"background"`
	Plexus           Plexus     `yaml:"plexus"`

	Version uint64 `yaml:"-"`
}

// DefaultConfig returns the compiled-in defaults.
func DefaultConfig() Config {
	c := Config{
		Background: Background{
			Enabled:    true,
			LayerIndex: -10,
			Alpha:      1,
			Inner:      "#1a0b2e",
			Middle:     "#090422",
			Outer:      "#020108",
		},
		Plexus: DefaultPlexus(),
	}
	for _, s := range paramSpecs {
		c.set(s.Param, s.Default)
	}
	return c
}

// Get returns the value of p as a float.
func (c Config) Get(p Param) float64 {
	switch p {
	case ParamCount:
		return float64(c.Count)
	case ParamBrightness:
		return c.Brightness
	case ParamBrightnessMin:
		return c.BrightnessMin
	case ParamBrightnessMax:
		return c.BrightnessMax
	case ParamSizeMin:
		return c.SizeMin
	case ParamSizeMax:
		return c.SizeMax
	case ParamLifetimeMin:
		return c.LifetimeMin
	case ParamLifetimeMax:
		return c.LifetimeMax
	case ParamHueShift:
		return c.HueShift
	case ParamLayerIndex:
		return float64(c.LayerIndex)
	case ParamParallaxStrength:
		return c.ParallaxStrength
	case ParamScrollDamping:
		return c.ScrollDamping
	case ParamTwinkle:
		return c.Twinkle
	}
	return 0
}

func (c *Config) set(p Param, v float64) {
	switch p {
	case ParamCount:
		c.Count = int(math.Round(v))
	case ParamBrightness:
		c.Brightness = v
	case ParamBrightnessMin:
		c.BrightnessMin = v
	case ParamBrightnessMax:
		c.BrightnessMax = v
	case ParamSizeMin:
		c.SizeMin = v
	case ParamSizeMax:
		c.SizeMax = v
	case ParamLifetimeMin:
		c.LifetimeMin = v
	case ParamLifetimeMax:
		c.LifetimeMax = v
	case ParamHueShift:
		c.HueShift = v
	case ParamLayerIndex:
		c.LayerIndex = int(math.Round(v))
	case ParamParallaxStrength:
		c.ParallaxStrength = v
	case ParamScrollDamping:
		c.ScrollDamping = v
	case ParamTwinkle:
		c.Twinkle = v
	}
}

// ParamDelta is a typed configuration edit. Relative deltas add Value to the
// current value, absolute ones replace it.
type ParamDelta struct {
	Param    Param
	Value    float64
	Relative bool
}

// Set builds an absolute edit.
func Set(p Param, v float64) ParamDelta { return ParamDelta{Param: p, Value: v} }

// Add builds a relative edit.
func Add(p Param, v float64) ParamDelta { return ParamDelta{Param: p, Value: v, Relative: true} }

// Apply returns the normalized config with d applied and Version bumped.
func (c Config) Apply(d ParamDelta) (Config, error) {
	if _, ok := d.Param.Spec(); !ok {
		return c, fmt.Errorf("apply: unknown parameter %d", int(d.Param))
	}
	if math.IsNaN(d.Value) || math.IsInf(d.Value, 0) {
		return c, fmt.Errorf("apply %s: value %v is not finite", d.Param, d.Value)
	}
	v := d.Value
	if d.Relative {
		v += c.Get(d.Param)
	}
	if d.Param == ParamHueShift {
		v = wrapDegrees(v)
	}
	next := c
	next.set(d.Param, v)
	next = Normalize(next, d.Param)
	next.Version = c.Version + 1
	return next, nil
}

// MinBrightnessGap keeps the brightness bounds apart. Depth classes are
// read back from the brightness band, so equal bounds would merge them.
const MinBrightnessGap = 0.15

type boundPair struct {
	lo, hi Param
	gap    float64
}

var boundPairs = []boundPair{
	{ParamBrightnessMin, ParamBrightnessMax, MinBrightnessGap},
	{ParamSizeMin, ParamSizeMax, 0},
	{ParamLifetimeMin, ParamLifetimeMax, 0},
}

// Normalize clamps and snaps every parameter to its range and restores
// min + gap <= max for each bound pair by moving the bound that was not
// edited. At the edge of a range the edited bound gives way instead.
func Normalize(c Config, edited Param) Config {
	for _, s := range paramSpecs {
		c.set(s.Param, snap(c.Get(s.Param), s))
	}
	for _, pair := range boundPairs {
		lo, hi := c.Get(pair.lo), c.Get(pair.hi)
		if hi-lo >= pair.gap-1e-9 {
			continue
		}
		loSpec, hiSpec := paramSpecs[pair.lo], paramSpecs[pair.hi]
		if edited == pair.hi {
			lo = hi - pair.gap
			if lo < loSpec.Min {
				lo, hi = loSpec.Min, loSpec.Min+pair.gap
			}
		} else {
			hi = lo + pair.gap
			if hi > hiSpec.Max {
				lo, hi = hiSpec.Max-pair.gap, hiSpec.Max
			}
		}
		c.set(pair.lo, snap(lo, loSpec))
		c.set(pair.hi, snap(hi, hiSpec))
	}
	c.Background.Alpha = clamp64(c.Background.Alpha, 0, 1)
	c.Plexus = c.Plexus.normalized()
	return c
}

func snap(v float64, s ParamSpec) float64 {
	if math.IsNaN(v) {
		v = s.Default
	}
	v = clamp64(v, s.Min, s.Max)
	if s.Step > 0 {
		v = s.Min + math.Round((v-s.Min)/s.Step)*s.Step
		v = math.Round(v*1e9) / 1e9
	}
	return clamp64(v, s.Min, s.Max)
}

// wrapDegrees maps v into [0, 360).
func wrapDegrees(v float64) float64 {
	v = math.Mod(v, 360)
	if v < 0 {
		v += 360
	}
	return v
}

func clamp64(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// RegenerationChanged reports whether any record-baked parameter differs.
func (c Config) RegenerationChanged(other Config) bool {
	for _, s := range paramSpecs {
		if s.Regenerates && c.Get(s.Param) != other.Get(s.Param) {
			return true
		}
	}
	return false
}
