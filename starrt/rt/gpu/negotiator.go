package gpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/starfield/starrt/rt/core"
)

// SurfaceTarget is anything a wgpu surface can be created on.
type SurfaceTarget interface {
	SurfaceDescriptor() *wgpu.SurfaceDescriptor
	FramebufferSize() (width, height int)
}

type Status int

const (
	Unavailable Status = iota
	Ready
)

func (s Status) String() string {
	if s == Ready {
		return "ready"
	}
	return "unavailable"
}

// Result is the outcome of Initialize. Context is set only when Ready.
type Result struct {
	Status  Status
	Context *Context
	Reason  error
}

type Options struct {
	// Disabled forces Unavailable without touching the backend.
	Disabled bool
	Logger   core.Logger
}

// Context holds the device objects shared by every GPU component.
type Context struct {
	Instance *wgpu.Instance
	Surface  *wgpu.Surface
	Adapter  *wgpu.Adapter
	Device   *wgpu.Device
	Queue    *wgpu.Queue
	Config   *wgpu.SurfaceConfiguration
}

// Initialize makes a single attempt to bring up instance, adapter, device and
// a configured surface on target. On any failure everything created so far is
// released and the result is Unavailable.
func Initialize(target SurfaceTarget, opts Options) (res Result) {
	log := core.OrNop(opts.Logger)
	if opts.Disabled {
		return Result{Status: Unavailable, Reason: fmt.Errorf("%w: disabled by configuration", ErrBackendUnavailable)}
	}
	if target == nil {
		return Result{Status: Unavailable, Reason: fmt.Errorf("%w: no surface target", ErrBackendUnavailable)}
	}

	var cleanup []func()
	fail := func(err error) Result {
		for i := len(cleanup) - 1; i >= 0; i-- {
			cleanup[i]()
		}
		log.Warnf("gpu negotiation failed: %v", err)
		return Result{Status: Unavailable, Reason: err}
	}
	defer func() {
		if p := recover(); p != nil {
			res = fail(fmt.Errorf("%w: %v", ErrBackendUnavailable, recovered(p)))
		}
	}()

	desc := target.SurfaceDescriptor()
	if desc == nil {
		return fail(fmt.Errorf("%w: target has no surface descriptor", ErrBackendUnavailable))
	}

	instance := wgpu.CreateInstance(nil)
	if instance == nil {
		return fail(fmt.Errorf("%w: create instance", ErrBackendUnavailable))
	}
	cleanup = append(cleanup, instance.Release)

	surface := instance.CreateSurface(desc)
	if surface == nil {
		return fail(fmt.Errorf("%w: create surface", ErrBackendUnavailable))
	}
	cleanup = append(cleanup, surface.Release)

	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		CompatibleSurface: surface,
		PowerPreference:   wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil || adapter == nil {
		return fail(fmt.Errorf("%w: %v", ErrNoAdapter, err))
	}
	cleanup = append(cleanup, adapter.Release)

	device, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Starfield Device",
	})
	if err != nil || device == nil {
		return fail(fmt.Errorf("%w: request device: %v", ErrBackendUnavailable, err))
	}
	cleanup = append(cleanup, device.Release)

	queue := device.GetQueue()
	if queue == nil {
		return fail(fmt.Errorf("%w: device has no queue", ErrBackendUnavailable))
	}
	cleanup = append(cleanup, queue.Release)

	caps := surface.GetCapabilities(adapter)
	if len(caps.Formats) == 0 || len(caps.AlphaModes) == 0 {
		return fail(ErrNoSurfaceFormat)
	}

	width, height := target.FramebufferSize()
	config := &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      caps.Formats[0],
		Width:       uint32(max(width, 1)),
		Height:      uint32(max(height, 1)),
		PresentMode: wgpu.PresentModeFifo,
		AlphaMode:   caps.AlphaModes[0],
	}
	surface.Configure(adapter, device, config)

	log.Infof("gpu ready: format=%v size=%dx%d", config.Format, config.Width, config.Height)
	return Result{
		Status: Ready,
		Context: &Context{
			Instance: instance,
			Surface:  surface,
			Adapter:  adapter,
			Device:   device,
			Queue:    queue,
			Config:   config,
		},
	}
}

// Reconfigure resizes the swapchain. A zero size (minimized window) is ignored.
func (c *Context) Reconfigure(width, height int) (err error) {
	if width <= 0 || height <= 0 {
		return nil
	}
	defer func() {
		if p := recover(); p != nil {
			err = &ResourceError{Resource: ResourceSurface, Err: recovered(p)}
		}
	}()
	c.Config.Width = uint32(width)
	c.Config.Height = uint32(height)
	c.Surface.Configure(c.Adapter, c.Device, c.Config)
	return nil
}

func (c *Context) Size() (int, int) {
	if c == nil || c.Config == nil {
		return 0, 0
	}
	return int(c.Config.Width), int(c.Config.Height)
}

func (c *Context) Release() {
	if c == nil {
		return
	}
	if c.Queue != nil {
		c.Queue.Release()
	}
	if c.Device != nil {
		c.Device.Release()
	}
	if c.Adapter != nil {
		c.Adapter.Release()
	}
	if c.Surface != nil {
		c.Surface.Release()
	}
	if c.Instance != nil {
		c.Instance.Release()
	}
	*c = Context{}
}
