// Package starfield renders a field of particles with staggered fade
// lifecycles and scroll parallax. The GPU path uses WebGPU; when it is
// unavailable or fails for good, a CPU rasterizer takes over for the rest of
// the session.
//
// The engine is an App of modules and systems stepping through the states
// Probing, GpuActive, Recovering, FallbackActive and Exit. Hosts plug in
// through Mount.
package starfield

import (
	"time"

	"github.com/gekko3d/starfield/starrt/rt/core"
	"github.com/gekko3d/starfield/starrt/rt/cpu"
	"github.com/gekko3d/starfield/starrt/rt/settings"
)

// Options configures New. The zero value probes the GPU, keeps settings in
// memory and uses the default preset.
type Options struct {
	Renderer RendererMode
	// Backend overrides the WebGPU backend.
	Backend GpuBackend

	Settings      *settings.Store
	Preset        string
	Overrides     []core.ParamDelta
	ResetSettings bool
	Seed          int64

	CPU           cpu.Options
	ContentHeight float64

	MaxFrameFailures int
	MaxHeals         int

	// Logger defaults to a DefaultLogger with the "starfield" prefix.
	Logger *DefaultLogger
	Debug  bool
	// Now overrides the wall clock, for tests.
	Now func() time.Time
}

// New builds the engine on mount. Call Run, or Step from a host loop.
func New(mount Mount, opts Options) *App {
	return NewAppBuilder().
		UseStates(StateProbing, StateExit).
		UseModule(
			LoggingModule{Prefix: "starfield", Debug: opts.Debug, Logger: opts.Logger},
			TimeModule{Now: opts.Now},
			SettingsModule{
				Store:     opts.Settings,
				Preset:    opts.Preset,
				Overrides: opts.Overrides,
				Reset:     opts.ResetSettings,
				Seed:      opts.Seed,
			},
			PlatformModule{Mount: mount},
			ScrollModule{ContentHeight: opts.ContentHeight},
			InputModule{},
			NoticeModule{Now: opts.Now},
			GpuRendererModule{
				Backend:          opts.Backend,
				Mode:             opts.Renderer,
				MaxFrameFailures: opts.MaxFrameFailures,
				MaxHeals:         opts.MaxHeals,
			},
			CpuRendererModule{Options: opts.CPU},
			StatsModule{},
		).
		Build()
}

const statsInterval = 2 * time.Second

// Stats counts rendered ticks for the debug frame-rate line.
type Stats struct {
	frames int
	since  time.Time
}

// StatsModule logs the frame rate every couple of seconds in debug mode.
type StatsModule struct{}

func (StatsModule) Install(app *App, cmd *Commands) {
	cmd.AddResources(&Stats{})
	app.UseSystem(
		System(statsSystem).
			InStage(Finale).
			RunAlways(),
	)
}

func statsSystem(s *Stats, t *Time, p *Particles, log Logger, cmd *Commands) {
	if !log.DebugEnabled() {
		return
	}
	if s.since.IsZero() {
		s.since = t.Time
	}
	s.frames++
	elapsed := t.Time.Sub(s.since)
	if elapsed < statsInterval {
		return
	}
	log.Debugf("fps=%.1f state=%s particles=%d", float64(s.frames)/elapsed.Seconds(), cmd.State(), p.Store.Len())
	s.frames, s.since = 0, t.Time
}
