package starfield

import (
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/gekko3d/starfield/starrt/rt/gpu"
	"github.com/gekko3d/starfield/starrt/rt/present"
)

const terminalNoticeDuration = 5 * time.Second

var terminalRunes = map[rune]Control{
	'+': ControlBrightnessUp,
	'=': ControlBrightnessUp,
	'-': ControlBrightnessDown,
	'c': ControlCountUp,
	'C': ControlCountDown,
	']': ControlHueUp,
	'[': ControlHueDown,
	'l': ControlLayerUp,
	'L': ControlLayerDown,
	'.': ControlParallaxUp,
	',': ControlParallaxDown,
	'b': ControlToggleBackground,
	'x': ControlTogglePlexus,
	'p': ControlNextPreset,
	'r': ControlReset,
	'j': ControlScrollDown,
	'k': ControlScrollUp,
	'q': ControlQuit,
}

var terminalKeys = map[tcell.Key]Control{
	tcell.KeyUp:     ControlBrightnessUp,
	tcell.KeyDown:   ControlBrightnessDown,
	tcell.KeyRight:  ControlCountUp,
	tcell.KeyLeft:   ControlCountDown,
	tcell.KeyPgUp:   ControlScrollUp,
	tcell.KeyPgDn:   ControlScrollDown,
	tcell.KeyEscape: ControlQuit,
	tcell.KeyCtrlC:  ControlQuit,
}

// TerminalMount hosts the engine in a terminal. It has no GPU surface, so the
// engine always settles on the CPU path, drawn with half blocks.
type TerminalMount struct {
	screen tcell.Screen

	eventCh chan tcell.Event
	stopCh  chan struct{}
	doneCh  chan struct{}

	mu        sync.Mutex
	cols      int
	rows      int
	closing   bool
	presenter *present.TermPresenter

	onScroll  func(float64)
	onResize  func(int, int)
	onControl func(Control)
	onPointer func(float64, float64, bool)
	closeOnce sync.Once
}

// OpenTerminal takes over the controlling terminal.
func OpenTerminal() (*TerminalMount, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	if err := screen.Init(); err != nil {
		return nil, err
	}
	return NewTerminalMount(screen), nil
}

// NewTerminalMount uses an initialized screen and starts reading its events.
func NewTerminalMount(screen tcell.Screen) *TerminalMount {
	screen.EnableMouse()
	screen.HideCursor()
	cols, rows := screen.Size()
	m := &TerminalMount{
		screen:  screen,
		eventCh: make(chan tcell.Event, 64),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
		cols:    cols,
		rows:    rows,
	}
	go m.pollEvents()
	return m
}

func (m *TerminalMount) pollEvents() {
	defer close(m.doneCh)
	for {
		ev := m.screen.PollEvent()
		if ev == nil {
			return
		}
		select {
		case m.eventCh <- ev:
		case <-m.stopCh:
			return
		}
	}
}

func (m *TerminalMount) Size() (int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cols, m.rows * 2
}

// Poll dispatches the events read since the last call.
func (m *TerminalMount) Poll() {
	for {
		select {
		case ev := <-m.eventCh:
			m.dispatch(ev)
		default:
			return
		}
	}
}

func (m *TerminalMount) dispatch(ev tcell.Event) {
	switch ev := ev.(type) {
	case *tcell.EventResize:
		cols, rows := ev.Size()
		m.mu.Lock()
		m.cols, m.rows = cols, rows
		m.mu.Unlock()
		m.screen.Sync()
		if m.onResize != nil {
			m.onResize(cols, rows*2)
		}
	case *tcell.EventKey:
		c, ok := terminalKeys[ev.Key()]
		if !ok && ev.Key() == tcell.KeyRune {
			c, ok = terminalRunes[ev.Rune()]
		}
		if !ok {
			return
		}
		if c == ControlQuit {
			m.mu.Lock()
			m.closing = true
			m.mu.Unlock()
		}
		if m.onControl != nil {
			m.onControl(c)
		}
	case *tcell.EventMouse:
		if m.onPointer != nil {
			// one cell is two pixel rows
			x, y := ev.Position()
			m.onPointer(float64(x)+0.5, float64(y*2)+1, true)
		}
		if m.onScroll == nil {
			return
		}
		buttons := ev.Buttons()
		if buttons&tcell.WheelUp != 0 {
			m.onScroll(-1)
		}
		if buttons&tcell.WheelDown != 0 {
			m.onScroll(1)
		}
	}
}

func (m *TerminalMount) ShouldClose() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closing
}

func (m *TerminalMount) Visible() bool { return true }

func (m *TerminalMount) SurfaceTarget() gpu.SurfaceTarget { return nil }

func (m *TerminalMount) OnScroll(fn func(dy float64))        { m.onScroll = fn }
func (m *TerminalMount) OnResize(fn func(width, height int)) { m.onResize = fn }
func (m *TerminalMount) OnControl(fn func(Control))          { m.onControl = fn }

func (m *TerminalMount) OnPointer(fn func(x, y float64, inside bool)) { m.onPointer = fn }

func (m *TerminalMount) OpenFallback() (present.Presenter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.presenter == nil {
		m.presenter = present.NewTermPresenter(m.screen)
	}
	return m.presenter, nil
}

// Notify shows message on the bottom row once frames are being drawn.
func (m *TerminalMount) Notify(message string) {
	m.mu.Lock()
	p := m.presenter
	m.mu.Unlock()
	if p != nil {
		p.Notify(message, terminalNoticeDuration)
	}
}

// Close stops the event reader and restores the terminal.
func (m *TerminalMount) Close() {
	m.closeOnce.Do(func() {
		close(m.stopCh)
		m.screen.Fini()
		<-m.doneCh
	})
}
