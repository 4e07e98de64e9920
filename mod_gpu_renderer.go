package starfield

import (
	"errors"
	"fmt"

	"github.com/gekko3d/starfield/starrt/rt/core"
	"github.com/gekko3d/starfield/starrt/rt/gpu"
)

const DefaultMaxFrameFailures = 120

// ParticleRenderer is the GPU path as the engine drives it.
type ParticleRenderer interface {
	SwapInstances(store *core.Store) error
	SetBrightness(v float32) error
	SetBackground(bg core.Background, particleLayer int) error
	Resize(width, height int, fs core.FrameState) error
	Heal(res gpu.Resource, store *core.Store, fs core.FrameState) error
	Frame(fs core.FrameState) error
	Release()
}

// GpuBackend brings up a ParticleRenderer on a surface, uploading store.
// Failures are gpu.ErrBackendUnavailable, *gpu.CompileError or
// *gpu.ResourceError.
type GpuBackend interface {
	Start(target gpu.SurfaceTarget, cfg core.Config, store *core.Store, log core.Logger) (ParticleRenderer, error)
}

// WgpuBackend negotiates a device with gpu.Initialize and compiles Sources.
type WgpuBackend struct {
	Sources gpu.Sources
}

func (b WgpuBackend) Start(target gpu.SurfaceTarget, cfg core.Config, store *core.Store, log core.Logger) (ParticleRenderer, error) {
	res := gpu.Initialize(target, gpu.Options{Logger: log})
	if res.Status != gpu.Ready {
		return nil, res.Reason
	}
	ctx := res.Context

	src := b.Sources
	if src.Particles == "" || src.Background == "" {
		src = gpu.DefaultSources()
	}
	pipeline, err := gpu.Compile(ctx.Device, ctx.Config.Format, src, core.RecordLayout())
	if err != nil {
		ctx.Release()
		return nil, err
	}
	log.Debugf("compiled %s", pipeline)

	r, err := gpu.NewRenderer(ctx, pipeline, cfg, log)
	if err != nil {
		pipeline.Release()
		ctx.Release()
		return nil, err
	}
	w := &wgpuRenderer{Renderer: r, ctx: ctx}
	if err := r.SwapInstances(store); err != nil {
		w.Release()
		return nil, err
	}
	return w, nil
}

type wgpuRenderer struct {
	*gpu.Renderer
	ctx *gpu.Context
}

func (w *wgpuRenderer) Release() {
	p := w.Renderer.Pipeline()
	w.Renderer.Release()
	p.Release()
	w.ctx.Release()
}

// GpuPath holds the live GPU renderer, if any.
type GpuPath struct {
	backend  GpuBackend
	disabled bool
	required bool
	renderer ParticleRenderer
	probeErr error
}

// Active reports whether a GPU renderer is live.
func (g *GpuPath) Active() bool { return g.renderer != nil }

func (g *GpuPath) release() {
	if g.renderer != nil {
		g.renderer.Release()
		g.renderer = nil
	}
}

type GpuRendererModule struct {
	// Backend defaults to WgpuBackend with the embedded shaders.
	Backend GpuBackend
	Mode    RendererMode
	// MaxFrameFailures is how many consecutive failed frames are tolerated
	// before the surface is treated as lost.
	MaxFrameFailures int
	// MaxHeals bounds the successful self-heals per session.
	MaxHeals int
}

func (m GpuRendererModule) Install(app *App, cmd *Commands) {
	backend := m.Backend
	if backend == nil {
		backend = WgpuBackend{Sources: gpu.DefaultSources()}
	}
	installRendererTag(app, cmd)
	installRecovery(app, cmd, m.MaxFrameFailures, m.MaxHeals)
	cmd.AddResources(&GpuPath{
		backend:  backend,
		disabled: m.Mode == RendererCPUOnly,
		required: m.Mode == RendererGPU,
	})

	app.UseSystem(
		System(probeSystem).
			InStage(PreRender).
			InState(OnEnter(StateProbing)),
	)
	app.UseSystem(
		System(gpuEnterSystem).
			InStage(PreRender).
			InState(OnEnter(StateGpuActive)),
	)
	app.UseSystem(
		System(gpuSyncSystem).
			InStage(PreRender).
			InState(OnExecute(StateGpuActive)),
	)
	app.UseSystem(
		System(gpuFrameSystem).
			InStage(Render).
			InState(OnExecute(StateGpuActive)),
	)
	app.UseSystem(
		System(gpuExitSystem).
			InStage(PostRender).
			InState(OnExit(StateGpuActive)),
	)
	app.UseSystem(
		System(recoverSystem).
			InStage(PreRender).
			InState(OnEnter(StateRecovering)),
	)
	app.UseSystem(
		System(gpuShutdownSystem).
			InStage(Finale).
			InState(OnEnter(StateExit)),
	)
}

// probeSystem makes the single negotiation attempt of the session.
// Unavailable and compile failures fall back silently.
func probeSystem(host *Host, gp *GpuPath, p *Particles, log Logger, cmd *Commands) {
	target := host.Mount.SurfaceTarget()
	switch {
	case gp.disabled:
		gp.probeErr = fmt.Errorf("%w: cpu renderer selected", gpu.ErrBackendUnavailable)
	case target == nil:
		gp.probeErr = fmt.Errorf("%w: host has no gpu surface", gpu.ErrBackendUnavailable)
	default:
		r, err := gp.backend.Start(target, p.Config, p.Store, log)
		if err == nil {
			gp.renderer = r
			// the new renderer was built from the current config and store
			p.TakeChanges()
			cmd.ChangeState(StateGpuActive)
			return
		}
		gp.probeErr = err
	}

	var compileErr *gpu.CompileError
	if errors.As(gp.probeErr, &compileErr) {
		log.Errorf("gpu path disabled: %s program failed at %s stage: %v", compileErr.Program, compileErr.Stage, compileErr.Err)
	} else {
		log.Infof("gpu path disabled: %v", gp.probeErr)
	}
	if gp.required {
		log.Errorf("gpu renderer required but unavailable, exiting")
		cmd.Exit()
		return
	}
	cmd.ChangeState(StateFallbackActive)
}

func gpuEnterSystem(gp *GpuPath, tag *RendererTag, deg *Degradation, rec *Recovery, cmd *Commands) {
	if !gp.Active() {
		return
	}
	ensureSingleRenderer(cmd.app, tag, RendererWGPU)
	rec.FrameFailures = 0
	deg.set(true, nil)
}

func gpuExitSystem(tag *RendererTag, cmd *Commands) {
	// Recovering keeps the GPU path claimed.
	if cmd.NextState() != StateRecovering {
		releaseRenderer(tag, RendererWGPU)
	}
}

// gpuSyncSystem pushes pending configuration changes and resizes to the GPU.
func gpuSyncSystem(gp *GpuPath, rec *Recovery, p *Particles, t *Time, vp *Viewport, mapper *core.ScrollMapper, cmd *Commands) {
	r := gp.renderer
	if w, h, ok := vp.TakeResize(); ok {
		if err := r.Resize(w, h, frameState(p, t, vp, mapper)); err != nil {
			rec.fail(err, cmd)
			return
		}
	}

	changes := p.TakeChanges()
	if changes&ChangeStore != 0 {
		if err := r.SwapInstances(p.Store); err != nil {
			p.Invalidate(changes &^ ChangeStore)
			rec.fail(err, cmd)
			return
		}
	}
	if changes&ChangeBrightness != 0 {
		if err := r.SetBrightness(float32(p.Config.Brightness)); err != nil {
			p.Invalidate(changes &^ (ChangeStore | ChangeBrightness))
			rec.fail(err, cmd)
			return
		}
	}
	if changes&ChangeLayers != 0 {
		if err := r.SetBackground(p.Config.Background, p.Config.LayerIndex); err != nil {
			rec.fail(err, cmd)
			return
		}
	}
}

// gpuFrameSystem draws one frame. Frame errors are transient until too many
// happen in a row.
func gpuFrameSystem(gp *GpuPath, rec *Recovery, p *Particles, t *Time, vp *Viewport, mapper *core.ScrollMapper, notices *Notices, log Logger, cmd *Commands) {
	if rec.Failure != nil || !vp.IsVisible() {
		return
	}
	err := gp.renderer.Frame(frameState(p, t, vp, mapper))
	if err == nil {
		rec.FrameFailures = 0
		return
	}

	var frameErr *gpu.FrameError
	if !errors.As(err, &frameErr) {
		rec.fail(err, cmd)
		return
	}
	rec.FrameFailures++
	log.Warnf("frame %d failed (%d in a row): %v", t.Frame, rec.FrameFailures, err)
	notices.Post("frame", "Some frames could not be drawn.")
	if rec.FrameFailures >= rec.MaxFrameFailures {
		rec.fail(&gpu.ResourceError{Resource: gpu.ResourceSurface, Err: err}, cmd)
	}
}

func gpuShutdownSystem(gp *GpuPath, tag *RendererTag) {
	gp.release()
	releaseRenderer(tag, RendererWGPU)
}

// frameState assembles the per-frame uniform block.
func frameState(p *Particles, t *Time, vp *Viewport, mapper *core.ScrollMapper) core.FrameState {
	w, h := vp.Size()
	fs := core.NewFrameState(p.Config, w, h)
	fs.TimeMs = t.ElapsedMs()
	fs.ScrollOffset = mapper.Offset()
	return fs
}
