package starfield

import (
	"github.com/gekko3d/starfield/starrt/rt/core"
	"github.com/gekko3d/starfield/starrt/rt/cpu"
	"github.com/gekko3d/starfield/starrt/rt/present"
	"github.com/go-gl/mathgl/mgl32"
)

// CpuPath is the fallback renderer. It is mounted once and kept for the rest
// of the session.
type CpuPath struct {
	raster    *cpu.Rasterizer
	presenter present.Presenter
	plexus    *cpu.PlexusField
	failures  int
}

// Presenter returns the mounted presenter, or nil before the fallback.
func (c *CpuPath) Presenter() present.Presenter { return c.presenter }

// Plexus returns the linked field while the plexus mode is drawn.
func (c *CpuPath) Plexus() *cpu.PlexusField { return c.plexus }

// syncPlexus keeps the plexus field in line with the config and the
// presenter size. A config change scatters a new field.
func (c *CpuPath) syncPlexus(p *Particles, changes Change, w, h int) *cpu.PlexusField {
	if !p.Config.Plexus.Enabled {
		c.plexus = nil
		return nil
	}
	if c.plexus == nil || changes&ChangePlexus != 0 {
		c.plexus = cpu.NewPlexusField(p.Config.Plexus, w, h, p.rng)
	}
	c.plexus.Resize(w, h)
	return c.plexus
}

// CpuRendererModule installs the fallback path. When used with
// GpuRendererModule it must be installed after it.
type CpuRendererModule struct {
	Options cpu.Options
}

func (m CpuRendererModule) Install(app *App, cmd *Commands) {
	installRendererTag(app, cmd)
	installRecovery(app, cmd, 0, 0)
	cmd.AddResources(&CpuPath{raster: cpu.New(m.Options)})
	if ResourceOf[GpuPath](app) == nil {
		// CPU only: probing goes straight to the fallback
		cmd.AddResources(&GpuPath{disabled: true})
		app.UseSystem(
			System(probeSystem).
				InStage(PreRender).
				InState(OnEnter(StateProbing)),
		)
	}

	app.UseSystem(
		System(fallbackEnterSystem).
			InStage(PreRender).
			InState(OnEnter(StateFallbackActive)),
	)
	app.UseSystem(
		System(cpuFrameSystem).
			InStage(Render).
			InState(OnExecute(StateFallbackActive)),
	)
	app.UseSystem(
		System(fallbackExitSystem).
			InStage(PostRender).
			InState(OnExit(StateFallbackActive)),
	)
}

// fallbackEnterSystem tears down whatever is left of the GPU path and mounts
// the CPU path. Only runtime failures are announced to the user.
func fallbackEnterSystem(host *Host, cp *CpuPath, gp *GpuPath, rec *Recovery, deg *Degradation, tag *RendererTag, notices *Notices, log Logger, cmd *Commands) {
	gp.release()
	releaseRenderer(tag, RendererWGPU)
	ensureSingleRenderer(cmd.app, tag, RendererCPU)

	reason := rec.Failure
	if reason == nil {
		reason = gp.probeErr
	}
	deg.set(false, reason)
	if rec.userFacing {
		notices.Post("fallback", "GPU rendering stopped working. Showing a simplified view; restart to try again.")
	}

	presenter, err := host.Mount.OpenFallback()
	if err != nil {
		log.Errorf("fallback renderer could not be mounted: %v", err)
		cmd.Exit()
		return
	}
	cp.presenter = presenter
	w, h := presenter.Size()
	log.Infof("fallback renderer mounted at %dx%d", w, h)
}

func cpuFrameSystem(cp *CpuPath, p *Particles, t *Time, vp *Viewport, mapper *core.ScrollMapper, host *Host, pointer *Pointer, log Logger) {
	vp.TakeResize()
	changes := p.TakeChanges()
	if cp.presenter == nil || !vp.IsVisible() {
		if changes&ChangePlexus != 0 {
			cp.plexus = nil
		}
		return
	}

	w, h := cp.presenter.Size()
	field := cp.syncPlexus(p, changes, w, h)
	if field != nil {
		field.Step(t.Dt, pointerIn(pointer, host, w, h))
	}
	fs := frameState(p, t, vp, mapper)
	img := cp.raster.Render(cpu.Frame{
		Width:         w,
		Height:        h,
		Records:       p.Store.Records(),
		State:         fs,
		Brightness:    float32(p.Config.Brightness),
		Background:    p.Config.Background,
		ParticleLayer: p.Config.LayerIndex,
		Plexus:        field,
	})
	if err := cp.presenter.Present(img); err != nil {
		cp.failures++
		if cp.failures == 1 || cp.failures%300 == 0 {
			log.Warnf("fallback present failed (%d so far): %v", cp.failures, err)
		}
		return
	}
	cp.failures = 0
}

// pointerIn maps the pointer from mount pixels to a w x h presenter, or
// returns nil when it is outside.
func pointerIn(pointer *Pointer, host *Host, w, h int) *mgl32.Vec2 {
	x, y, ok := pointer.Position()
	if !ok {
		return nil
	}
	mw, mh := host.Mount.Size()
	if mw > 0 && mh > 0 {
		x *= float64(w) / float64(mw)
		y *= float64(h) / float64(mh)
	}
	return &mgl32.Vec2{float32(x), float32(y)}
}

func fallbackExitSystem(cp *CpuPath, tag *RendererTag) {
	if cp.presenter != nil {
		cp.presenter.Close()
		cp.presenter = nil
	}
	releaseRenderer(tag, RendererCPU)
}
