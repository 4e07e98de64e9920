package starfield

import (
	"sync"

	"github.com/gekko3d/starfield/starrt/rt/core"
)

// Control is a host-independent user action. Each mount maps its own keys
// onto controls.
type Control int

const (
	ControlNone Control = iota
	ControlBrightnessUp
	ControlBrightnessDown
	ControlCountUp
	ControlCountDown
	ControlHueUp
	ControlHueDown
	ControlLayerUp
	ControlLayerDown
	ControlParallaxUp
	ControlParallaxDown
	ControlToggleBackground
	ControlTogglePlexus
	ControlNextPreset
	ControlReset
	ControlScrollUp
	ControlScrollDown
	ControlQuit
)

const (
	brightnessStep = 0.1
	countStep      = 1000
	hueStep        = 15
	parallaxStep   = 0.1
)

var controlCommands = map[Control]ConfigCommand{
	ControlBrightnessUp:     Tune(core.Add(core.ParamBrightness, brightnessStep)),
	ControlBrightnessDown:   Tune(core.Add(core.ParamBrightness, -brightnessStep)),
	ControlCountUp:          Tune(core.Add(core.ParamCount, countStep)),
	ControlCountDown:        Tune(core.Add(core.ParamCount, -countStep)),
	ControlHueUp:            Tune(core.Add(core.ParamHueShift, hueStep)),
	ControlHueDown:          Tune(core.Add(core.ParamHueShift, -hueStep)),
	ControlLayerUp:          Tune(core.Add(core.ParamLayerIndex, 1)),
	ControlLayerDown:        Tune(core.Add(core.ParamLayerIndex, -1)),
	ControlParallaxUp:       Tune(core.Add(core.ParamParallaxStrength, parallaxStep)),
	ControlParallaxDown:     Tune(core.Add(core.ParamParallaxStrength, -parallaxStep)),
	ControlToggleBackground: ToggleBackground(),
	ControlTogglePlexus:     TogglePlexus(),
	ControlNextPreset:       NextPreset(),
	ControlReset:            ResetSettings(),
}

// Input collects controls from host callbacks until the next tick.
type Input struct {
	mu      sync.Mutex
	pending []Control
}

func (in *Input) Push(c Control) {
	in.mu.Lock()
	in.pending = append(in.pending, c)
	in.mu.Unlock()
}

func (in *Input) drain() []Control {
	in.mu.Lock()
	defer in.mu.Unlock()
	p := in.pending
	in.pending = nil
	return p
}

type InputModule struct{}

func (mod InputModule) Install(app *App, cmd *Commands) {
	in := &Input{}
	cmd.AddResources(in)
	if host := ResourceOf[Host](app); host != nil {
		host.Mount.OnControl(in.Push)
	}
	app.UseSystem(
		System(inputSystem).
			InStage(PreUpdate).
			RunAlways(),
	)
}

// inputSystem turns controls into configuration commands. Scroll controls
// go through the viewport like wheel events.
func inputSystem(in *Input, rc *Reconfigurator, vp *Viewport, mapper *core.ScrollMapper, cmd *Commands) {
	for _, c := range in.drain() {
		switch c {
		case ControlQuit:
			cmd.Exit()
		case ControlScrollUp:
			mapper.Observe(vp.Scroll(-1))
		case ControlScrollDown:
			mapper.Observe(vp.Scroll(1))
		default:
			if command, ok := controlCommands[c]; ok {
				rc.Submit(command)
			}
		}
	}
}
