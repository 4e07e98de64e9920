package starfield

import (
	"fmt"
	"runtime"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/gekko3d/starfield/starrt/rt/gpu"
	"github.com/gekko3d/starfield/starrt/rt/present"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/ncruces/zenity"
)

var windowKeys = map[glfw.Key]Control{
	glfw.KeyUp:           ControlBrightnessUp,
	glfw.KeyDown:         ControlBrightnessDown,
	glfw.KeyRight:        ControlCountUp,
	glfw.KeyLeft:         ControlCountDown,
	glfw.KeyRightBracket: ControlHueUp,
	glfw.KeyLeftBracket:  ControlHueDown,
	glfw.KeyEqual:        ControlLayerUp,
	glfw.KeyKPAdd:        ControlLayerUp,
	glfw.KeyMinus:        ControlLayerDown,
	glfw.KeyKPSubtract:   ControlLayerDown,
	glfw.KeyPeriod:       ControlParallaxUp,
	glfw.KeyComma:        ControlParallaxDown,
	glfw.KeyB:            ControlToggleBackground,
	glfw.KeyX:            ControlTogglePlexus,
	glfw.KeyP:            ControlNextPreset,
	glfw.KeyR:            ControlReset,
	glfw.KeyPageUp:       ControlScrollUp,
	glfw.KeyPageDown:     ControlScrollDown,
	glfw.KeyEscape:       ControlQuit,
}

// WindowMount hosts the engine in a desktop window. The window starts
// without a client API so WebGPU can own it; the fallback swaps it for an
// OpenGL window at the same place and size.
type WindowMount struct {
	window  *glfw.Window
	title   string
	log     Logger
	visible bool

	onScroll  func(float64)
	onResize  func(int, int)
	onControl func(Control)
	onPointer func(float64, float64, bool)

	fallback *present.GLPresenter
}

// OpenWindow initializes glfw and opens the window. It must be called on the
// main OS thread.
func OpenWindow(width, height int, title string, log Logger) (*WindowMount, error) {
	runtime.LockOSThread()
	if err := glfw.Init(); err != nil {
		return nil, fmt.Errorf("glfw init: %w", err)
	}

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI) // WebGPU owns the surface
	glfw.WindowHint(glfw.Resizable, glfw.True)
	win, err := glfw.CreateWindow(width, height, title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, fmt.Errorf("create window: %w", err)
	}

	if log == nil {
		log = NewNopLogger()
	}
	m := &WindowMount{title: title, log: log, visible: true}
	m.attach(win)
	return m, nil
}

func (m *WindowMount) attach(win *glfw.Window) {
	m.window = win
	win.SetScrollCallback(func(w *glfw.Window, xoff, yoff float64) {
		if m.onScroll != nil {
			m.onScroll(-yoff)
		}
	})
	win.SetCursorPosCallback(func(w *glfw.Window, x, y float64) {
		if m.onPointer != nil {
			px, py := framebufferPos(w, x, y)
			m.onPointer(px, py, true)
		}
	})
	win.SetCursorEnterCallback(func(w *glfw.Window, entered bool) {
		if m.onPointer != nil && !entered {
			m.onPointer(0, 0, false)
		}
	})
	win.SetFramebufferSizeCallback(func(w *glfw.Window, width, height int) {
		if m.onResize != nil {
			m.onResize(width, height)
		}
	})
	win.SetIconifyCallback(func(w *glfw.Window, iconified bool) {
		m.visible = !iconified
	})
	win.SetKeyCallback(func(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
		if action != glfw.Press && action != glfw.Repeat {
			return
		}
		c, ok := windowKeys[key]
		if !ok {
			return
		}
		if c == ControlQuit {
			w.SetShouldClose(true)
		}
		if m.onControl != nil {
			m.onControl(c)
		}
	})
}

func (m *WindowMount) Size() (int, int) {
	return m.window.GetFramebufferSize()
}

func (m *WindowMount) Poll() {
	glfw.PollEvents()
}

func (m *WindowMount) ShouldClose() bool {
	return m.window.ShouldClose()
}

func (m *WindowMount) Visible() bool {
	return m.visible
}

func (m *WindowMount) SurfaceTarget() gpu.SurfaceTarget {
	if m.fallback != nil {
		return nil
	}
	return windowTarget{window: m.window}
}

func (m *WindowMount) OnScroll(fn func(dy float64))        { m.onScroll = fn }
func (m *WindowMount) OnResize(fn func(width, height int)) { m.onResize = fn }
func (m *WindowMount) OnControl(fn func(Control))          { m.onControl = fn }

func (m *WindowMount) OnPointer(fn func(x, y float64, inside bool)) { m.onPointer = fn }

// framebufferPos converts cursor coordinates from screen units to
// framebuffer pixels.
func framebufferPos(w *glfw.Window, x, y float64) (float64, float64) {
	ww, wh := w.GetSize()
	fw, fh := w.GetFramebufferSize()
	if ww <= 0 || wh <= 0 {
		return x, y
	}
	return x * float64(fw) / float64(ww), y * float64(fh) / float64(wh)
}

// OpenFallback recreates the window with an OpenGL 3.3 core context and
// returns a presenter drawing into it.
func (m *WindowMount) OpenFallback() (present.Presenter, error) {
	if m.fallback != nil {
		return m.fallback, nil
	}
	x, y := m.window.GetPos()
	w, h := m.window.GetSize()

	glfw.DefaultWindowHints()
	glfw.WindowHint(glfw.ContextVersionMajor, 3)
	glfw.WindowHint(glfw.ContextVersionMinor, 3)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	win, err := glfw.CreateWindow(w, h, m.title, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create fallback window: %w", err)
	}
	win.SetPos(x, y)

	p, err := present.NewGLPresenter(win)
	if err != nil {
		win.Destroy()
		return nil, err
	}
	m.window.Destroy()
	m.attach(win)
	m.fallback = p
	return p, nil
}

// Notify shows a desktop notification without blocking the render loop.
func (m *WindowMount) Notify(message string) {
	title, log := m.title, m.log
	go func() {
		if err := zenity.Notify(message, zenity.Title(title)); err != nil {
			log.Debugf("desktop notification failed: %v", err)
		}
	}()
}

func (m *WindowMount) Close() {
	if m.fallback != nil {
		m.fallback.Close()
		m.fallback = nil
	}
	if m.window != nil {
		m.window.Destroy()
		m.window = nil
	}
	glfw.Terminate()
}

type windowTarget struct {
	window *glfw.Window
}

func (t windowTarget) SurfaceDescriptor() *wgpu.SurfaceDescriptor {
	return wgpuglfw.GetSurfaceDescriptor(t.window)
}

func (t windowTarget) FramebufferSize() (int, int) {
	return t.window.GetFramebufferSize()
}
