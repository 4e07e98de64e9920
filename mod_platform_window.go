package starfield

import (
	"sync"

	"github.com/gekko3d/starfield/starrt/rt/gpu"
	"github.com/gekko3d/starfield/starrt/rt/present"
)

// Mount is the host the engine renders into: a desktop window, a terminal,
// or a fake in tests. Callbacks run on the goroutine that delivers host
// events, which is the render loop for Poll-driven hosts.
type Mount interface {
	// Size is the drawable size in pixels.
	Size() (width, height int)
	// Poll delivers pending host events to the registered callbacks.
	Poll()
	ShouldClose() bool
	// Visible is false while the host is minimized or hidden.
	Visible() bool
	// SurfaceTarget returns nil when the host cannot carry a GPU surface.
	SurfaceTarget() gpu.SurfaceTarget
	OnScroll(fn func(dy float64))
	OnResize(fn func(width, height int))
	OnControl(fn func(Control))
	// OnPointer reports the pointer in Size pixels. inside is false once it
	// leaves the drawable area.
	OnPointer(fn func(x, y float64, inside bool))
	// OpenFallback prepares the host for software frames. It is called at
	// most once per session.
	OpenFallback() (present.Presenter, error)
	// Notify shows a short message without blocking the caller.
	Notify(message string)
	Close()
}

// Host makes the mount available to systems.
type Host struct {
	Mount Mount
}

// Pointer is the last pointer position reported by the mount.
type Pointer struct {
	mu     sync.Mutex
	x, y   float64
	inside bool
}

func (p *Pointer) set(x, y float64, inside bool) {
	p.mu.Lock()
	p.x, p.y, p.inside = x, y, inside
	p.mu.Unlock()
}

// Position returns the pointer in mount pixels and whether it is over the
// drawable area.
func (p *Pointer) Position() (x, y float64, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.x, p.y, p.inside
}

// PlatformModule installs the mount and polls it once per tick.
type PlatformModule struct {
	Mount Mount
}

func (m PlatformModule) Install(app *App, cmd *Commands) {
	if m.Mount == nil {
		panic("PlatformModule: mount is nil")
	}
	w, h := m.Mount.Size()
	pointer := &Pointer{}
	m.Mount.OnPointer(pointer.set)
	cmd.AddResources(
		&Host{Mount: m.Mount},
		NewViewport(w, h),
		pointer,
	)
	app.UseSystem(
		System(hostSystem).
			InStage(PreUpdate).
			RunAlways(),
	)
}

func hostSystem(host *Host, vp *Viewport, cmd *Commands) {
	host.Mount.Poll()
	vp.SetVisible(host.Mount.Visible())
	if host.Mount.ShouldClose() {
		cmd.Exit()
	}
}
