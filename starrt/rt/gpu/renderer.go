package gpu

import (
	"errors"
	"sort"
	"sync/atomic"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/starfield/starrt/rt/core"
)

// particlePass is the subset of a render pass the frame encoder drives.
type particlePass interface {
	SetPipeline(p *wgpu.RenderPipeline)
	SetBindGroup(index uint32, group *wgpu.BindGroup)
	SetVertexBuffer(slot uint32, buf *wgpu.Buffer, size uint64)
	Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32)
}

type wgpuPass struct {
	pass *wgpu.RenderPassEncoder
}

func (w wgpuPass) SetPipeline(p *wgpu.RenderPipeline) { w.pass.SetPipeline(p) }

func (w wgpuPass) SetBindGroup(index uint32, group *wgpu.BindGroup) {
	w.pass.SetBindGroup(index, group, nil)
}

func (w wgpuPass) SetVertexBuffer(slot uint32, buf *wgpu.Buffer, size uint64) {
	w.pass.SetVertexBuffer(slot, buf, 0, size)
}

func (w wgpuPass) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	w.pass.Draw(vertexCount, instanceCount, firstVertex, firstInstance)
}

type layerKind int

const (
	layerBackground layerKind = iota
	layerParticles
)

type layer struct {
	kind  layerKind
	index int
}

// Renderer owns the per-surface GPU state and encodes one frame per tick.
type Renderer struct {
	ctx      *Context
	pipeline *Pipeline
	alloc    Allocator
	log      core.Logger
	layout   core.Layout

	quad     *wgpu.Buffer
	quadSize uint64

	brightnessBuf *wgpu.Buffer
	bound         *bindings
	background    core.Background
	factory       pipelineFactory

	instances atomic.Pointer[InstanceBuffer]
	layers    []layer
}

// NewRenderer creates the static buffers and bind groups of a compiled pipeline.
func NewRenderer(ctx *Context, pipeline *Pipeline, cfg core.Config, log core.Logger) (r *Renderer, err error) {
	r = &Renderer{
		ctx:      ctx,
		pipeline: pipeline,
		alloc:    NewDeviceAllocator(ctx.Device),
		log:        core.OrNop(log),
		layout:     pipeline.Layout,
		background: cfg.Background,
	}
	r.factory = deviceFactory{r: r}
	defer func() {
		if p := recover(); p != nil {
			r.Release()
			r, err = nil, &ResourceError{Resource: ResourcePipeline, Err: recovered(p)}
		}
	}()

	quadBytes := core.Bytes(core.QuadCorners)
	r.quadSize = uint64(len(quadBytes))
	r.quad, err = ctx.Device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    "ParticleQuad",
		Contents: quadBytes,
		Usage:    wgpu.BufferUsageVertex,
	})
	if err != nil {
		r.Release()
		return nil, &ResourceError{Resource: ResourcePipeline, Err: err}
	}

	r.brightnessBuf, err = uniformBuffer(ctx.Device, "Brightness", core.BrightnessUniform{Value: float32(cfg.Brightness)}.Bytes())
	if err != nil {
		r.Release()
		return nil, &ResourceError{Resource: ResourceFrameUniforms, Err: err}
	}

	w, h := ctx.Size()
	if err := r.rebind(core.NewFrameState(cfg, w, h)); err != nil {
		r.Release()
		return nil, err
	}
	r.SetLayers(cfg.LayerIndex, cfg.Background)
	return r, nil
}

// bindings are the uniform buffers and bind groups created against the
// layouts of one pipeline.
type bindings struct {
	frameBuf    *wgpu.Buffer
	frame       *wgpu.BindGroup
	gradientBuf *wgpu.Buffer
	gradient    *wgpu.BindGroup
}

func (b *bindings) Release() {
	if b == nil {
		return
	}
	for _, g := range []*wgpu.BindGroup{b.frame, b.gradient} {
		if g != nil {
			g.Release()
		}
	}
	for _, buf := range []*wgpu.Buffer{b.frameBuf, b.gradientBuf} {
		if buf != nil {
			buf.Release()
		}
	}
	*b = bindings{}
}

// pipelineFactory compiles pipelines and creates the bindings that reference
// their layouts.
type pipelineFactory interface {
	Compile(from *Pipeline) (*Pipeline, error)
	Bind(p *Pipeline, fs core.FrameState, bg core.Background) (*bindings, error)
	ReleasePipeline(p *Pipeline)
}

type deviceFactory struct {
	r *Renderer
}

func (f deviceFactory) Compile(from *Pipeline) (*Pipeline, error) {
	return Compile(f.r.ctx.Device, from.Format, from.Sources, f.r.layout)
}

func (f deviceFactory) ReleasePipeline(p *Pipeline) { p.Release() }

// Bind creates the frame and gradient bindings for p. Nothing is kept on
// failure.
func (f deviceFactory) Bind(p *Pipeline, fs core.FrameState, bg core.Background) (*bindings, error) {
	device := f.r.ctx.Device
	b := &bindings{}
	fail := func(err error) (*bindings, error) {
		b.Release()
		return nil, &ResourceError{Resource: ResourceFrameUniforms, Err: err}
	}

	var err error
	b.frameBuf, err = uniformBuffer(device, "FrameState", fs.Bytes())
	if err != nil {
		return fail(err)
	}
	b.frame, err = device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "ParticleFrameBG",
		Layout: p.ParticleLayout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: b.frameBuf, Size: wgpu.WholeSize},
			{Binding: 1, Buffer: f.r.brightnessBuf, Size: wgpu.WholeSize},
		},
	})
	if err != nil {
		return fail(err)
	}

	w, h := int(fs.Resolution[0]), int(fs.Resolution[1])
	b.gradientBuf, err = uniformBuffer(device, "Gradient", core.NewGradientUniform(bg, w, h).Bytes())
	if err != nil {
		return fail(err)
	}
	b.gradient, err = device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "BackgroundBG",
		Layout: p.BackgroundLayout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: b.gradientBuf, Size: wgpu.WholeSize},
		},
	})
	if err != nil {
		return fail(err)
	}
	return b, nil
}

// rebind recreates the bindings of the current pipeline. The current
// bindings stay in place on failure.
func (r *Renderer) rebind(fs core.FrameState) error {
	b, err := r.factory.Bind(r.pipeline, fs, r.background)
	if err != nil {
		return err
	}
	r.bound.Release()
	r.bound = b
	return nil
}

// SwapInstances uploads store into a new buffer and makes it current. The
// previous buffer is released only after the swap.
func (r *Renderer) SwapInstances(store *core.Store) error {
	data := r.layout.Encode(store.Records())
	next := &InstanceBuffer{
		Count:      uint32(store.Len()),
		Size:       uint64(len(data)),
		Generation: store.Generation,
	}
	if len(data) > 0 {
		buf, err := r.alloc.CreateVertexBuffer(instanceLabel(store.Generation), data)
		if err != nil {
			return &ResourceError{Resource: ResourceInstances, Err: err}
		}
		next.Buffer = buf
	}

	old := r.instances.Swap(next)
	if old != nil {
		r.alloc.Release(old.Buffer)
	}
	r.log.Debugf("instances swapped: generation=%s count=%d bytes=%d", store.Generation, next.Count, next.Size)
	return nil
}

// Pipeline returns the pipeline currently in use. It changes after a
// pipeline heal.
func (r *Renderer) Pipeline() *Pipeline { return r.pipeline }

// Instances returns the current instance snapshot.
func (r *Renderer) Instances() *InstanceBuffer {
	return r.instances.Load()
}

// SetBrightness writes only the global brightness uniform.
func (r *Renderer) SetBrightness(v float32) error {
	if err := r.ctx.Queue.WriteBuffer(r.brightnessBuf, 0, core.BrightnessUniform{Value: v}.Bytes()); err != nil {
		return &ResourceError{Resource: ResourceFrameUniforms, Err: err}
	}
	return nil
}

// SetBackground updates the gradient layer.
func (r *Renderer) SetBackground(bg core.Background, particleLayer int) error {
	w, h := r.ctx.Size()
	r.background = bg
	r.SetLayers(particleLayer, bg)
	if r.bound == nil {
		return &ResourceError{Resource: ResourceFrameUniforms, Err: errors.New("no gradient uniform")}
	}
	if err := r.ctx.Queue.WriteBuffer(r.bound.gradientBuf, 0, core.NewGradientUniform(bg, w, h).Bytes()); err != nil {
		return &ResourceError{Resource: ResourceFrameUniforms, Err: err}
	}
	return nil
}

// SetLayers orders the particle and background layers by layer index. Ties
// draw the background first.
func (r *Renderer) SetLayers(particleLayer int, bg core.Background) {
	layers := []layer{{kind: layerParticles, index: particleLayer}}
	if bg.Enabled {
		layers = append(layers, layer{kind: layerBackground, index: bg.LayerIndex})
	}
	sort.SliceStable(layers, func(i, j int) bool {
		if layers[i].index != layers[j].index {
			return layers[i].index < layers[j].index
		}
		return layers[i].kind < layers[j].kind
	})
	r.layers = layers
}

// Resize reconfigures the surface and recreates the frame uniforms.
func (r *Renderer) Resize(width, height int, fs core.FrameState) error {
	if width <= 0 || height <= 0 {
		return nil
	}
	if err := r.ctx.Reconfigure(width, height); err != nil {
		return err
	}
	fs.Resolution[0], fs.Resolution[1] = float32(width), float32(height)
	return r.rebind(fs)
}

// Heal recreates one failed resource from the current store and frame state.
func (r *Renderer) Heal(res Resource, store *core.Store, fs core.FrameState) error {
	switch res {
	case ResourceInstances:
		return r.SwapInstances(store)
	case ResourceFrameUniforms:
		return r.rebind(fs)
	case ResourceSurface:
		w, h := r.ctx.Size()
		return r.ctx.Reconfigure(w, h)
	case ResourcePipeline:
		return r.recompile(fs)
	}
	return &ResourceError{Resource: res, Err: errors.New("resource cannot be healed in place")}
}

// recompile rebuilds the pipeline from its own sources together with the
// bind groups that reference its layouts. The old pipeline and bindings are
// swapped out only once both exist; on failure the new pipeline is released.
func (r *Renderer) recompile(fs core.FrameState) error {
	next, err := r.factory.Compile(r.pipeline)
	if err != nil {
		return &ResourceError{Resource: ResourcePipeline, Err: err}
	}
	b, err := r.factory.Bind(next, fs, r.background)
	if err != nil {
		r.factory.ReleasePipeline(next)
		return err
	}
	old, oldBound := r.pipeline, r.bound
	r.pipeline, r.bound = next, b
	oldBound.Release()
	r.factory.ReleasePipeline(old)
	r.log.Infof("pipeline recompiled: %s", next)
	return nil
}

// Frame writes the frame state, draws every layer and presents.
func (r *Renderer) Frame(fs core.FrameState) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &FrameError{Step: "encode", Err: recovered(p)}
		}
	}()

	if r.bound == nil {
		return &FrameError{Step: "write-frame-state", Err: errors.New("no frame uniform")}
	}
	if err := r.ctx.Queue.WriteBuffer(r.bound.frameBuf, 0, fs.Bytes()); err != nil {
		return &FrameError{Step: "write-frame-state", Err: err}
	}

	texture, err := r.ctx.Surface.GetCurrentTexture()
	if err != nil {
		return &FrameError{Step: "acquire", Err: err}
	}
	defer texture.Release()

	view, err := texture.CreateView(nil)
	if err != nil {
		return &FrameError{Step: "view", Err: err}
	}
	defer view.Release()

	encoder, err := r.ctx.Device.CreateCommandEncoder(nil)
	if err != nil {
		return &FrameError{Step: "encoder", Err: err}
	}
	defer encoder.Release()

	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:       view,
			LoadOp:     wgpu.LoadOpClear,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: wgpu.Color{R: 0, G: 0, B: 0, A: 1},
		}},
	})
	r.encode(wgpuPass{pass: pass})
	if err := pass.End(); err != nil {
		return &FrameError{Step: "end-pass", Err: err}
	}
	pass.Release()

	cmd, err := encoder.Finish(nil)
	if err != nil {
		return &FrameError{Step: "finish", Err: err}
	}
	defer cmd.Release()

	r.ctx.Queue.Submit(cmd)
	r.ctx.Surface.Present()
	return nil
}

// encode records the draw calls of every layer and returns the number of
// particle instances drawn.
func (r *Renderer) encode(pass particlePass) uint32 {
	var frame, gradient *wgpu.BindGroup
	if r.bound != nil {
		frame, gradient = r.bound.frame, r.bound.gradient
	}
	var drawn uint32
	for _, l := range r.layers {
		switch l.kind {
		case layerBackground:
			if r.pipeline == nil || r.pipeline.Background == nil {
				continue
			}
			pass.SetPipeline(r.pipeline.Background)
			pass.SetBindGroup(0, gradient)
			pass.Draw(3, 1, 0, 0)
		case layerParticles:
			inst := r.instances.Load()
			if inst == nil || inst.Count == 0 {
				continue
			}
			if r.pipeline != nil {
				pass.SetPipeline(r.pipeline.Particles)
			}
			pass.SetBindGroup(0, frame)
			pass.SetVertexBuffer(0, inst.Buffer, inst.Size)
			pass.SetVertexBuffer(1, r.quad, r.quadSize)
			pass.Draw(4, inst.Count, 0, 0)
			drawn += inst.Count
		}
	}
	return drawn
}

func (r *Renderer) Release() {
	if r == nil {
		return
	}
	if inst := r.instances.Swap(nil); inst != nil && r.alloc != nil {
		r.alloc.Release(inst.Buffer)
	}
	r.bound.Release()
	r.bound = nil
	for _, b := range []*wgpu.Buffer{r.quad, r.brightnessBuf} {
		if b != nil {
			b.Release()
		}
	}
	r.quad, r.brightnessBuf = nil, nil
}
