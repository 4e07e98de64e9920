package starfield

import (
	"errors"
	"sync"

	"github.com/gekko3d/starfield/starrt/rt/core"
	"github.com/gekko3d/starfield/starrt/rt/gpu"
)

const DefaultMaxHeals = 3

// Degradation tells the outside world which render path is in use.
type Degradation struct {
	mu        sync.Mutex
	decided   bool
	gpuActive bool
	reason    error
	listeners []func(gpuActive bool)
}

// GpuActive is true while the GPU path renders.
func (d *Degradation) GpuActive() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gpuActive
}

// Degraded is true once the session settled on the CPU path.
func (d *Degradation) Degraded() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.decided && !d.gpuActive
}

// Reason is why the GPU path is not in use, if it is not.
func (d *Degradation) Reason() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reason
}

// OnChange registers fn for every change of the render path.
func (d *Degradation) OnChange(fn func(gpuActive bool)) {
	d.mu.Lock()
	d.listeners = append(d.listeners, fn)
	d.mu.Unlock()
}

func (d *Degradation) set(gpuActive bool, reason error) {
	d.mu.Lock()
	changed := !d.decided || d.gpuActive != gpuActive
	d.decided = true
	d.gpuActive = gpuActive
	d.reason = reason
	listeners := append([]func(bool){}, d.listeners...)
	d.mu.Unlock()

	if !changed {
		return
	}
	for _, fn := range listeners {
		fn(gpuActive)
	}
}

// Recovery tracks runtime GPU failures.
type Recovery struct {
	// Failure is the error that moved the app to Recovering.
	Failure error
	// Heals counts successful self-heals this session.
	Heals    int
	MaxHeals int

	FrameFailures    int
	MaxFrameFailures int

	// userFacing is set when the fallback follows a runtime failure and
	// deserves a notice.
	userFacing bool
}

func (r *Recovery) fail(err error, cmd *Commands) {
	r.Failure = err
	cmd.ChangeState(StateRecovering)
}

func installRecovery(app *App, cmd *Commands, maxFrameFailures, maxHeals int) {
	if maxFrameFailures <= 0 {
		maxFrameFailures = DefaultMaxFrameFailures
	}
	if maxHeals <= 0 {
		maxHeals = DefaultMaxHeals
	}
	if ResourceOf[Recovery](app) == nil {
		cmd.AddResources(&Recovery{MaxHeals: maxHeals, MaxFrameFailures: maxFrameFailures})
	}
	if ResourceOf[Degradation](app) == nil {
		cmd.AddResources(&Degradation{})
	}
}

// failedResource names what to recreate for err. Anything unclassified is
// handled as a lost surface.
func failedResource(err error) gpu.Resource {
	var resErr *gpu.ResourceError
	if errors.As(err, &resErr) {
		return resErr.Resource
	}
	return gpu.ResourceSurface
}

// recoverSystem makes one bounded self-heal attempt of the failed resource
// from the current configuration. Success returns to GpuActive; failure, or
// a spent heal budget, settles on the fallback.
func recoverSystem(gp *GpuPath, rec *Recovery, p *Particles, t *Time, vp *Viewport, mapper *core.ScrollMapper, notices *Notices, log Logger, cmd *Commands) {
	res := failedResource(rec.Failure)
	log.Warnf("gpu %s failed: %v", res, rec.Failure)

	if !gp.Active() || rec.Heals >= rec.MaxHeals {
		rec.userFacing = true
		cmd.ChangeState(StateFallbackActive)
		return
	}

	notices.Post("recovery", "Graphics problem detected, trying to recover.")
	if err := gp.renderer.Heal(res, p.Store, frameState(p, t, vp, mapper)); err != nil {
		log.Errorf("gpu %s could not be recreated: %v", res, err)
		rec.userFacing = true
		cmd.ChangeState(StateFallbackActive)
		return
	}

	rec.Heals++
	rec.Failure = nil
	rec.FrameFailures = 0
	// uniforms may have been recreated with stale values
	p.Invalidate(ChangeBrightness | ChangeLayers)
	log.Infof("gpu %s recreated (%d/%d heals used)", res, rec.Heals, rec.MaxHeals)
	notices.Post("recovered", "Rendering recovered.")
	cmd.ChangeState(StateGpuActive)
}
