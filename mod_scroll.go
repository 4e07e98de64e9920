package starfield

import (
	"sync"
	"time"

	"github.com/gekko3d/starfield/starrt/rt/core"
)

const (
	DefaultContentHeight = 6000.0
	DefaultScrollStep    = 60.0
)

// Viewport is the visible part of a virtual page the host scrolls through.
// Hosts without a page of their own drive the parallax through it. Safe for
// concurrent use.
type Viewport struct {
	mu sync.Mutex

	width, height int
	visible       bool
	resized       bool

	scrollY       float64
	contentHeight float64
	scrollStep    float64
}

func NewViewport(width, height int) *Viewport {
	return &Viewport{
		width:         width,
		height:        height,
		visible:       true,
		contentHeight: DefaultContentHeight,
		scrollStep:    DefaultScrollStep,
	}
}

func (v *Viewport) Size() (int, int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.width, v.height
}

// Resize records a new drawable size and returns the scroll position after
// clamping it to the shorter or longer page.
func (v *Viewport) Resize(width, height int) float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	if width != v.width || height != v.height {
		v.width, v.height = width, height
		v.resized = true
	}
	v.scrollY = v.clampScroll(v.scrollY)
	return v.scrollY
}

// TakeResize returns the pending size change, if any, and clears it.
func (v *Viewport) TakeResize() (int, int, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.resized {
		return 0, 0, false
	}
	v.resized = false
	return v.width, v.height, true
}

func (v *Viewport) SetVisible(visible bool) {
	v.mu.Lock()
	v.visible = visible
	v.mu.Unlock()
}

func (v *Viewport) IsVisible() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.visible && v.width > 0 && v.height > 0
}

// Scroll moves the page by dy wheel notches, positive down, and returns the
// new position.
func (v *Viewport) Scroll(dy float64) float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.scrollY = v.clampScroll(v.scrollY + dy*v.scrollStep)
	return v.scrollY
}

func (v *Viewport) ScrollY() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.scrollY
}

func (v *Viewport) clampScroll(y float64) float64 {
	limit := v.contentHeight - float64(v.height)
	if limit < 0 {
		limit = 0
	}
	if y < 0 {
		return 0
	}
	if y > limit {
		return limit
	}
	return y
}

// ScrollModule feeds host scrolling into a core.ScrollMapper and updates it
// once per tick.
type ScrollModule struct {
	// ContentHeight is the virtual page height in pixels.
	ContentHeight float64
	// ScrollStep is how far one wheel notch scrolls, in pixels.
	ScrollStep float64
	Watchdog   time.Duration
	// Decay eases the offset back to rest while idle, per second.
	// Zero keeps core.DefaultScrollDecay, a negative value disables it.
	Decay float32
}

func (m ScrollModule) Install(app *App, cmd *Commands) {
	vp := ResourceOf[Viewport](app)
	host := ResourceOf[Host](app)
	if vp == nil || host == nil {
		panic("ScrollModule requires PlatformModule")
	}
	vp.mu.Lock()
	if m.ContentHeight > 0 {
		vp.contentHeight = m.ContentHeight
	}
	if m.ScrollStep > 0 {
		vp.scrollStep = m.ScrollStep
	}
	vp.mu.Unlock()

	damping := float32(core.DefaultConfig().ScrollDamping)
	if p := ResourceOf[Particles](app); p != nil {
		damping = float32(p.Config.ScrollDamping)
	}
	mapper := core.NewScrollMapper(damping)
	if m.Watchdog > 0 {
		mapper.SetWatchdog(m.Watchdog)
	}
	switch {
	case m.Decay < 0:
		mapper.SetDecay(0)
	case m.Decay > 0:
		mapper.SetDecay(m.Decay)
	}
	cmd.AddResources(mapper)

	host.Mount.OnScroll(func(dy float64) {
		mapper.Observe(vp.Scroll(dy))
	})
	host.Mount.OnResize(func(width, height int) {
		mapper.Track(vp.Resize(width, height))
	})

	app.UseSystem(
		System(scrollSystem).
			InStage(PostUpdate).
			RunAlways(),
	)
}

func scrollSystem(t *Time, mapper *core.ScrollMapper, p *Particles) {
	mapper.SetDamping(float32(p.Config.ScrollDamping))
	mapper.Update(t.Time)
}
