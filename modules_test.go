package starfield

import (
	"bytes"
	"testing"
	"time"

	"github.com/gekko3d/starfield/starrt/rt/core"
	"github.com/gekko3d/starfield/starrt/rt/settings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRendererMode(t *testing.T) {
	tests := []struct {
		in      string
		want    RendererMode
		wantErr bool
	}{
		{"", RendererAuto, false},
		{"auto", RendererAuto, false},
		{" GPU ", RendererGPU, false},
		{"webgpu", RendererGPU, false},
		{"cpu", RendererCPUOnly, false},
		{"software", RendererCPUOnly, false},
		{"vulkan", RendererAuto, true},
	}
	for _, tt := range tests {
		got, err := ParseRendererMode(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		assert.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestResolveRendererModeEnvWins(t *testing.T) {
	env := map[string]string{RendererEnv: "cpu"}
	mode, err := ResolveRendererMode("gpu", func(k string) string { return env[k] })
	require.NoError(t, err)
	assert.Equal(t, RendererCPUOnly, mode)

	mode, err = ResolveRendererMode("gpu", func(string) string { return "" })
	require.NoError(t, err)
	assert.Equal(t, RendererGPU, mode)

	env[RendererEnv] = "nope"
	_, err = ResolveRendererMode("auto", func(k string) string { return env[k] })
	assert.ErrorContains(t, err, RendererEnv)
}

func TestNoticesThrottlePerKey(t *testing.T) {
	var shown []string
	now := time.Unix(0, 0)
	n := &Notices{
		notify:   func(msg string) { shown = append(shown, msg) },
		log:      NewNopLogger(),
		interval: 10 * time.Second,
		last:     make(map[string]time.Time),
		now:      func() time.Time { return now },
	}

	assert.True(t, n.Post("frame", "a"))
	assert.False(t, n.Post("frame", "b"))
	assert.True(t, n.Post("recovery", "c"), "keys are throttled independently")

	now = now.Add(10 * time.Second)
	assert.True(t, n.Post("frame", "d"))
	assert.Equal(t, []string{"a", "c", "d"}, shown)
}

func TestViewportClampsScroll(t *testing.T) {
	vp := NewViewport(100, 1000)

	assert.Zero(t, vp.Scroll(-3))
	assert.Equal(t, 120.0, vp.Scroll(2))
	assert.Equal(t, DefaultContentHeight-1000, vp.Scroll(1000))

	// a taller viewport shortens the scroll range
	assert.Equal(t, DefaultContentHeight-2000, vp.Resize(100, 2000))
	w, h, ok := vp.TakeResize()
	assert.True(t, ok)
	assert.Equal(t, 100, w)
	assert.Equal(t, 2000, h)
	_, _, ok = vp.TakeResize()
	assert.False(t, ok)

	vp.Resize(0, 0)
	assert.False(t, vp.IsVisible(), "an empty viewport is not drawn")
}

func TestLoggerFormat(t *testing.T) {
	var out, errOut bytes.Buffer
	l := NewLoggerTo(&out, &errOut, "sf", false)

	l.Debugf("hidden %d", 1)
	l.Infof("shown %d", 2)
	l.Warnf("careful")
	assert.NotContains(t, out.String(), "hidden")
	assert.Contains(t, out.String(), "[sf] INFO: shown 2")
	assert.Contains(t, errOut.String(), "[sf] WARN: careful")

	l.SetDebug(true)
	l.Debugf("now %s", "visible")
	assert.Contains(t, out.String(), "[sf] DEBUG: now visible")
}

func TestSettingsPersistAcrossSessions(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_DATA_HOME", "")

	open := func() *settings.Store {
		s, err := settings.Open("starfield_engine_test", core.DefaultConfig(), nil)
		require.NoError(t, err)
		return s
	}

	store := open()
	f := newEngine(t, newFakeMount(false), nil, Options{Settings: store})
	f.app.Step()
	ResourceOf[Reconfigurator](f.app).Submit(
		Tune(core.Set(core.ParamCount, 2500)),
		Tune(core.Set(core.ParamSizeMin, 0.5)),
	)
	f.app.Step()

	loaded, err := open().Load()
	require.NoError(t, err)
	assert.Equal(t, 2500, loaded.Count)
	assert.InDelta(t, 0.2, loaded.SizeMin, 1e-9, "saved values are normalized")
	assert.InDelta(t, 0.2, loaded.SizeMax, 1e-9, "the other bound follows")

	// overrides apply to the session only
	f = newEngine(t, newFakeMount(false), nil, Options{Settings: open()})
	assert.Equal(t, 100, ResourceOf[Particles](f.app).Config.Count)
	loaded, err = open().Load()
	require.NoError(t, err)
	assert.Equal(t, 2500, loaded.Count)

	f = newEngine(t, newFakeMount(false), nil, Options{Settings: open(), ResetSettings: true, Overrides: []core.ParamDelta{}})
	assert.Equal(t, core.DefaultConfig().Count, ResourceOf[Particles](f.app).Config.Count)
}

func TestSettingsModulePreset(t *testing.T) {
	names := core.PresetNames()
	require.NotEmpty(t, names)

	f := newEngine(t, newFakeMount(false), nil, Options{Preset: names[0], Overrides: []core.ParamDelta{}})
	p := ResourceOf[Particles](f.app)
	want, err := core.Preset(names[0])
	require.NoError(t, err)
	assert.Equal(t, want.Count, p.Config.Count)
	assert.Equal(t, names[0], p.Preset)

	f.app.Step()
	ResourceOf[Reconfigurator](f.app).Submit(NextPreset())
	f.app.Step()
	assert.Equal(t, names[1%len(names)], p.Preset)
}

func TestReconfigureRejectsUnknownParam(t *testing.T) {
	f := newEngine(t, newFakeMount(false), nil, Options{})
	f.app.Step()
	p := ResourceOf[Particles](f.app)
	version := p.Config.Version

	ResourceOf[Reconfigurator](f.app).Submit(Tune(core.Set(core.Param(99), 1)))
	f.app.Step()

	assert.Equal(t, version, p.Config.Version)
	assert.Contains(t, f.logs.String(), "unknown parameter")
}
