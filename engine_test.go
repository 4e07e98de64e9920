package starfield

import (
	"bytes"
	"errors"
	"image"
	"strings"
	"testing"
	"time"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/starfield/starrt/rt/core"
	"github.com/gekko3d/starfield/starrt/rt/gpu"
	"github.com/gekko3d/starfield/starrt/rt/present"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTarget struct{}

func (fakeTarget) SurfaceDescriptor() *wgpu.SurfaceDescriptor { return nil }
func (fakeTarget) FramebufferSize() (int, int)                { return 320, 180 }

type fakePresenter struct {
	w, h     int
	frames   int
	closed   bool
	lastSize image.Point
}

func (p *fakePresenter) Size() (int, int) { return p.w, p.h }

func (p *fakePresenter) Present(img *image.RGBA) error {
	p.frames++
	p.lastSize = img.Bounds().Size()
	return nil
}

func (p *fakePresenter) Close() { p.closed = true }

type fakeMount struct {
	w, h     int
	gpu      bool
	visible  bool
	closing  bool
	events   []func()
	notices  []string
	fallback *fakePresenter
	opened   int

	onScroll  func(float64)
	onResize  func(int, int)
	onControl func(Control)
	onPointer func(float64, float64, bool)
}

func newFakeMount(withGPU bool) *fakeMount {
	return &fakeMount{w: 320, h: 180, gpu: withGPU, visible: true}
}

func (m *fakeMount) Size() (int, int) { return m.w, m.h }

func (m *fakeMount) Poll() {
	events := m.events
	m.events = nil
	for _, ev := range events {
		ev()
	}
}

func (m *fakeMount) ShouldClose() bool { return m.closing }
func (m *fakeMount) Visible() bool     { return m.visible }

func (m *fakeMount) SurfaceTarget() gpu.SurfaceTarget {
	if !m.gpu {
		return nil
	}
	return fakeTarget{}
}

func (m *fakeMount) OnScroll(fn func(float64))  { m.onScroll = fn }
func (m *fakeMount) OnResize(fn func(int, int)) { m.onResize = fn }
func (m *fakeMount) OnControl(fn func(Control)) { m.onControl = fn }
func (m *fakeMount) OnPointer(fn func(x, y float64, inside bool)) {
	m.onPointer = fn
}

func (m *fakeMount) OpenFallback() (present.Presenter, error) {
	m.opened++
	if m.fallback == nil {
		m.fallback = &fakePresenter{w: 64, h: 36}
	}
	return m.fallback, nil
}

func (m *fakeMount) Notify(message string) { m.notices = append(m.notices, message) }
func (m *fakeMount) Close()                {}

func (m *fakeMount) control(c Control) {
	m.events = append(m.events, func() { m.onControl(c) })
}

func (m *fakeMount) point(x, y float64, inside bool) {
	m.events = append(m.events, func() { m.onPointer(x, y, inside) })
}

func (m *fakeMount) scroll(dy float64) {
	m.events = append(m.events, func() { m.onScroll(dy) })
}

func (m *fakeMount) resize(w, h int) {
	m.events = append(m.events, func() {
		m.w, m.h = w, h
		m.onResize(w, h)
	})
}

func (m *fakeMount) noticeCount(substr string) int {
	n := 0
	for _, msg := range m.notices {
		if strings.Contains(msg, substr) {
			n++
		}
	}
	return n
}

type fakeRenderer struct {
	store      *core.Store
	swaps      int
	brightness float32
	bgWrites   int
	resizes    []image.Point
	frames     int
	drawn      int
	drawnGen   uuid.UUID
	heals      []gpu.Resource
	released   bool

	frameErr func(frame int) error
	healErr  error
}

func (r *fakeRenderer) SwapInstances(store *core.Store) error {
	r.store = store
	r.swaps++
	return nil
}

func (r *fakeRenderer) SetBrightness(v float32) error {
	r.brightness = v
	return nil
}

func (r *fakeRenderer) SetBackground(core.Background, int) error {
	r.bgWrites++
	return nil
}

func (r *fakeRenderer) Resize(w, h int, _ core.FrameState) error {
	r.resizes = append(r.resizes, image.Pt(w, h))
	return nil
}

func (r *fakeRenderer) Heal(res gpu.Resource, store *core.Store, _ core.FrameState) error {
	r.heals = append(r.heals, res)
	if r.healErr != nil {
		return r.healErr
	}
	if res == gpu.ResourceInstances {
		r.store = store
	}
	return nil
}

func (r *fakeRenderer) Frame(core.FrameState) error {
	r.frames++
	if r.frameErr != nil {
		if err := r.frameErr(r.frames); err != nil {
			return err
		}
	}
	r.drawn = r.store.Len()
	r.drawnGen = r.store.Generation
	return nil
}

func (r *fakeRenderer) Release() { r.released = true }

type fakeBackend struct {
	renderer *fakeRenderer
	err      error
	starts   int
}

func (b *fakeBackend) Start(_ gpu.SurfaceTarget, _ core.Config, store *core.Store, _ core.Logger) (ParticleRenderer, error) {
	b.starts++
	if b.err != nil {
		return nil, b.err
	}
	if b.renderer == nil {
		b.renderer = &fakeRenderer{}
	}
	b.renderer.store = store
	return b.renderer, nil
}

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time {
	c.t = c.t.Add(16 * time.Millisecond)
	return c.t
}

type engineFixture struct {
	app     *App
	mount   *fakeMount
	backend *fakeBackend
	logs    *bytes.Buffer
}

func newEngine(t *testing.T, mount *fakeMount, backend *fakeBackend, opts Options) *engineFixture {
	t.Helper()
	logs := &bytes.Buffer{}
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	if backend != nil {
		opts.Backend = backend
	}
	opts.Logger = NewLoggerTo(logs, logs, "test", true)
	opts.Now = clock.Now
	if opts.Seed == 0 {
		opts.Seed = 7
	}
	if opts.Overrides == nil {
		opts.Overrides = []core.ParamDelta{core.Set(core.ParamCount, 100)}
	}
	return &engineFixture{
		app:     New(mount, opts),
		mount:   mount,
		backend: backend,
		logs:    logs,
	}
}

func (f *engineFixture) steps(n int) {
	for i := 0; i < n; i++ {
		f.app.Step()
	}
}

func TestEngine_NoSurfaceFallsBackSilently(t *testing.T) {
	f := newEngine(t, newFakeMount(false), &fakeBackend{}, Options{})

	require.True(t, f.app.Step())

	assert.Equal(t, StateFallbackActive, f.app.State())
	deg := ResourceOf[Degradation](f.app)
	assert.False(t, deg.GpuActive())
	assert.True(t, deg.Degraded())
	assert.ErrorIs(t, deg.Reason(), gpu.ErrBackendUnavailable)
	assert.Zero(t, f.backend.starts)
	assert.Empty(t, f.mount.notices, "unavailable backends fall back without notice")
	assert.Equal(t, 1, f.mount.opened)
	assert.Equal(t, 1, f.mount.fallback.frames)
	assert.Equal(t, image.Pt(64, 36), f.mount.fallback.lastSize)
	assert.Equal(t, "cpu", ResourceOf[RendererTag](f.app).Name)
}

func TestEngine_PlexusFallbackFollowsPointer(t *testing.T) {
	f := newEngine(t, newFakeMount(false), nil, Options{Preset: "plexus"})
	require.True(t, f.app.Step())
	require.Equal(t, StateFallbackActive, f.app.State())

	cp := ResourceOf[CpuPath](f.app)
	field := cp.Plexus()
	require.NotNil(t, field)
	assert.Len(t, field.Nodes(), core.DefaultPlexus().Count)
	w, h := field.Size()
	assert.Equal(t, 64, w)
	assert.Equal(t, 36, h)

	// the mount is five times the presenter size
	target := field.Nodes()[0].Pos
	f.mount.point(float64(target.X())*5, float64(target.Y())*5, true)
	f.app.Step()
	assert.True(t, field.Nodes()[0].Highlighted)

	f.mount.point(0, 0, false)
	f.app.Step()
	for _, n := range field.Nodes() {
		assert.False(t, n.Highlighted)
	}
	assert.Equal(t, 3, f.mount.fallback.frames)

	f.mount.control(ControlTogglePlexus)
	f.app.Step()
	assert.Nil(t, cp.Plexus(), "the lifecycle field is drawn again")
	assert.Equal(t, 4, f.mount.fallback.frames)
}

func TestEngine_BackendUnavailableFallsBack(t *testing.T) {
	backend := &fakeBackend{err: gpu.ErrBackendUnavailable}
	f := newEngine(t, newFakeMount(true), backend, Options{})

	f.steps(3)

	assert.Equal(t, StateFallbackActive, f.app.State())
	assert.Equal(t, 1, backend.starts, "negotiation is attempted once")
	assert.Equal(t, 1, f.mount.opened, "the fallback is mounted once")
	assert.Equal(t, 3, f.mount.fallback.frames)
	assert.True(t, ResourceOf[Degradation](f.app).Degraded())
}

func TestEngine_CompileFailureFallsBack(t *testing.T) {
	backend := &fakeBackend{err: &gpu.CompileError{Program: "particles", Stage: "shader", Err: errors.New("bad wgsl")}}
	f := newEngine(t, newFakeMount(true), backend, Options{})

	f.app.Step()

	assert.Equal(t, StateFallbackActive, f.app.State())
	assert.Empty(t, f.mount.notices)
	assert.Contains(t, f.logs.String(), "particles program failed at shader stage")
	var compileErr *gpu.CompileError
	assert.ErrorAs(t, ResourceOf[Degradation](f.app).Reason(), &compileErr)
}

func TestEngine_RequiredGpuExitsWhenUnavailable(t *testing.T) {
	f := newEngine(t, newFakeMount(false), &fakeBackend{}, Options{Renderer: RendererGPU})

	assert.False(t, f.app.Step())
	assert.True(t, f.app.Done())
	assert.Zero(t, f.mount.opened)
}

func TestEngine_CPUOnlyNeverProbes(t *testing.T) {
	backend := &fakeBackend{}
	f := newEngine(t, newFakeMount(true), backend, Options{Renderer: RendererCPUOnly})

	f.steps(2)

	assert.Equal(t, StateFallbackActive, f.app.State())
	assert.Zero(t, backend.starts)
}

func TestEngine_GpuActiveDraws(t *testing.T) {
	var changes []bool
	f := newEngine(t, newFakeMount(true), &fakeBackend{}, Options{})
	ResourceOf[Degradation](f.app).OnChange(func(active bool) { changes = append(changes, active) })

	f.steps(2)

	r := f.backend.renderer
	assert.Equal(t, StateGpuActive, f.app.State())
	assert.True(t, ResourceOf[Degradation](f.app).GpuActive())
	assert.Equal(t, []bool{true}, changes)
	assert.Equal(t, 2, r.frames)
	assert.Equal(t, 100, r.drawn)
	assert.Equal(t, "wgpu", ResourceOf[RendererTag](f.app).Name)
}

func TestEngine_ReconfigureSwapsStore(t *testing.T) {
	f := newEngine(t, newFakeMount(true), &fakeBackend{}, Options{})
	f.app.Step()
	r := f.backend.renderer
	before := r.drawnGen
	require.Equal(t, 100, r.drawn)

	ResourceOf[Reconfigurator](f.app).Submit(Tune(core.Set(core.ParamCount, 5000)))
	f.app.Step()

	p := ResourceOf[Particles](f.app)
	assert.Equal(t, 5000, p.Config.Count)
	assert.Equal(t, 5000, r.drawn, "the next frame draws the new store")
	assert.NotEqual(t, before, r.drawnGen)
	assert.Equal(t, p.Store.Generation, r.drawnGen)
	assert.Zero(t, ResourceOf[Reconfigurator](f.app).Pending())
}

func TestEngine_BrightnessOnlyUpdatesUniform(t *testing.T) {
	f := newEngine(t, newFakeMount(true), &fakeBackend{}, Options{})
	f.app.Step()
	r := f.backend.renderer
	swaps := r.swaps

	f.mount.control(ControlBrightnessUp)
	f.app.Step()

	assert.Equal(t, swaps, r.swaps, "brightness does not rebuild the store")
	assert.InDelta(t, 1.1, r.brightness, 1e-6)
}

func TestEngine_ControlsEditConfig(t *testing.T) {
	f := newEngine(t, newFakeMount(false), nil, Options{})
	f.app.Step()

	f.mount.control(ControlCountUp)
	f.mount.control(ControlHueUp)
	f.mount.control(ControlToggleBackground)
	f.app.Step()

	p := ResourceOf[Particles](f.app)
	assert.Equal(t, 1100, p.Config.Count)
	assert.Equal(t, 1100, p.Store.Len())
	assert.Equal(t, 15.0, p.Config.HueShift)
	assert.False(t, p.Config.Background.Enabled)

	f.mount.control(ControlReset)
	f.app.Step()
	assert.Equal(t, core.DefaultConfig().Count, p.Config.Count)
	assert.True(t, p.Config.Background.Enabled)

	f.mount.control(ControlHueDown)
	f.app.Step()
	assert.Equal(t, 345.0, p.Config.HueShift, "hue cycles past zero")
}

func TestEngine_QuitReleasesRenderer(t *testing.T) {
	f := newEngine(t, newFakeMount(true), &fakeBackend{}, Options{})
	f.app.Step()

	f.mount.control(ControlQuit)
	assert.False(t, f.app.Step())

	assert.True(t, f.app.Done())
	assert.Equal(t, StateExit, f.app.State())
	assert.True(t, f.backend.renderer.released)
	assert.Empty(t, ResourceOf[RendererTag](f.app).Name)
}

func TestEngine_ShouldCloseExitsFallback(t *testing.T) {
	f := newEngine(t, newFakeMount(false), nil, Options{})
	f.app.Step()

	f.mount.closing = true
	assert.False(t, f.app.Step())
	assert.True(t, f.mount.fallback.closed)
}

func TestEngine_ResizeReachesRenderer(t *testing.T) {
	f := newEngine(t, newFakeMount(true), &fakeBackend{}, Options{})
	f.app.Step()

	f.mount.resize(640, 360)
	f.app.Step()

	assert.Equal(t, []image.Point{image.Pt(640, 360)}, f.backend.renderer.resizes)
	w, h := ResourceOf[Viewport](f.app).Size()
	assert.Equal(t, 640, w)
	assert.Equal(t, 360, h)
}

func TestEngine_HiddenSkipsFrames(t *testing.T) {
	f := newEngine(t, newFakeMount(true), &fakeBackend{}, Options{})
	f.app.Step()

	f.mount.visible = false
	f.steps(3)
	assert.Equal(t, 1, f.backend.renderer.frames)

	f.mount.visible = true
	f.app.Step()
	assert.Equal(t, 2, f.backend.renderer.frames)
}

func TestEngine_ScrollMovesParallax(t *testing.T) {
	f := newEngine(t, newFakeMount(true), &fakeBackend{}, Options{})
	f.app.Step()
	mapper := ResourceOf[core.ScrollMapper](f.app)
	require.Zero(t, mapper.Offset())

	f.mount.scroll(3)
	f.app.Step()

	assert.Equal(t, 180.0, ResourceOf[Viewport](f.app).ScrollY())
	assert.Greater(t, mapper.Offset(), float32(0))
	assert.LessOrEqual(t, mapper.Offset(), float32(1))
}

func TestEngine_RecoveryHealsOnce(t *testing.T) {
	renderer := &fakeRenderer{}
	renderer.frameErr = func(frame int) error {
		if frame == 2 {
			return &gpu.ResourceError{Resource: gpu.ResourceInstances, Err: errors.New("buffer lost")}
		}
		return nil
	}
	f := newEngine(t, newFakeMount(true), &fakeBackend{renderer: renderer}, Options{})

	f.steps(2)

	assert.Equal(t, StateGpuActive, f.app.State())
	assert.Equal(t, []gpu.Resource{gpu.ResourceInstances}, renderer.heals)
	assert.Equal(t, 1, ResourceOf[Recovery](f.app).Heals)
	assert.Equal(t, 1, f.mount.noticeCount("trying to recover"))
	assert.Equal(t, 1, f.mount.noticeCount("Rendering recovered"))
	assert.False(t, renderer.released)

	f.app.Step()
	assert.Equal(t, 100, renderer.drawn)
}

func TestEngine_RecoveryFailureFallsBack(t *testing.T) {
	renderer := &fakeRenderer{healErr: errors.New("device lost")}
	renderer.frameErr = func(frame int) error {
		return &gpu.ResourceError{Resource: gpu.ResourceFrameUniforms, Err: errors.New("write failed")}
	}
	f := newEngine(t, newFakeMount(true), &fakeBackend{renderer: renderer}, Options{})

	f.app.Step()

	assert.Equal(t, StateFallbackActive, f.app.State())
	assert.True(t, renderer.released)
	assert.Equal(t, 1, f.mount.noticeCount("restart"))
	assert.Zero(t, f.mount.fallback.frames, "software frames start on the next tick")
	assert.Equal(t, "cpu", ResourceOf[RendererTag](f.app).Name)

	f.steps(5)
	assert.Equal(t, StateFallbackActive, f.app.State(), "the fallback lasts for the session")
	assert.Equal(t, 5, f.mount.fallback.frames)
	assert.Equal(t, 1, f.backend.starts)
	assert.Equal(t, 1, f.mount.opened)
}

func TestEngine_HealBudget(t *testing.T) {
	renderer := &fakeRenderer{}
	renderer.frameErr = func(frame int) error {
		return &gpu.ResourceError{Resource: gpu.ResourceSurface, Err: errors.New("surface lost")}
	}
	f := newEngine(t, newFakeMount(true), &fakeBackend{renderer: renderer}, Options{MaxHeals: 2})

	f.app.Step()
	assert.Equal(t, StateGpuActive, f.app.State())
	f.app.Step()
	assert.Equal(t, StateGpuActive, f.app.State())
	f.app.Step()

	assert.Equal(t, StateFallbackActive, f.app.State())
	assert.Len(t, renderer.heals, 2)
}

func TestEngine_FrameFailuresEscalate(t *testing.T) {
	renderer := &fakeRenderer{healErr: errors.New("surface gone")}
	renderer.frameErr = func(frame int) error {
		return &gpu.FrameError{Step: "acquire", Err: errors.New("timeout")}
	}
	f := newEngine(t, newFakeMount(true), &fakeBackend{renderer: renderer}, Options{MaxFrameFailures: 5})

	f.steps(4)
	assert.Equal(t, StateGpuActive, f.app.State(), "transient failures keep the loop going")
	assert.Equal(t, 4, ResourceOf[Recovery](f.app).FrameFailures)
	assert.Equal(t, 1, f.mount.noticeCount("frames could not be drawn"), "frame notices are throttled")

	f.app.Step()
	assert.Equal(t, StateFallbackActive, f.app.State())
	assert.Equal(t, []gpu.Resource{gpu.ResourceSurface}, renderer.heals)
}

func TestEngine_FrameRecoveryResetsCounter(t *testing.T) {
	renderer := &fakeRenderer{}
	renderer.frameErr = func(frame int) error {
		if frame <= 3 {
			return &gpu.FrameError{Step: "acquire", Err: errors.New("timeout")}
		}
		return nil
	}
	f := newEngine(t, newFakeMount(true), &fakeBackend{renderer: renderer}, Options{MaxFrameFailures: 5})

	f.steps(6)

	assert.Equal(t, StateGpuActive, f.app.State())
	assert.Zero(t, ResourceOf[Recovery](f.app).FrameFailures)
	assert.Empty(t, renderer.heals)
}

func TestEnsureSingleRenderer(t *testing.T) {
	app := NewAppBuilder().Build()
	tag := &RendererTag{}

	ensureSingleRenderer(app, tag, RendererWGPU)
	ensureSingleRenderer(app, tag, RendererWGPU)
	assert.Equal(t, "wgpu", tag.Name)

	assert.PanicsWithValue(t, "Multiple renderers active: wgpu and cpu", func() {
		ensureSingleRenderer(app, tag, RendererCPU)
	})

	releaseRenderer(tag, RendererCPU)
	assert.Equal(t, "wgpu", tag.Name, "only the owner releases the tag")
	releaseRenderer(tag, RendererWGPU)
	ensureSingleRenderer(app, tag, RendererCPU)
	assert.Equal(t, "cpu", tag.Name)
}
