package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"

	"github.com/gekko3d/starfield"
	"github.com/gekko3d/starfield/starrt/rt/core"
	"github.com/gekko3d/starfield/starrt/rt/settings"
)

func init() {
	runtime.LockOSThread()
}

func main() {
	debug := flag.Bool("debug", false, "Enable debug logging (frame rate, state changes)")
	preset := flag.String("preset", "", "Start from a preset: "+fmt.Sprint(core.PresetNames()))
	count := flag.Int("count", -1, "Particle count override (not saved)")
	renderer := flag.String("renderer", "auto", "Renderer: auto, gpu or cpu (env "+starfield.RendererEnv+" wins)")
	terminal := flag.Bool("terminal", false, "Render into the terminal instead of a window")
	reset := flag.Bool("reset-settings", false, "Forget saved settings")
	width := flag.Int("width", 1280, "Window width")
	height := flag.Int("height", 720, "Window height")
	flag.Parse()

	mode, err := starfield.ResolveRendererMode(*renderer, os.Getenv)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	log := starfield.NewDefaultLogger("starfield", *debug)
	if *terminal {
		// log lines would tear the terminal frame
		f, err := os.Create("starfield.log")
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		defer f.Close()
		log = starfield.NewLoggerTo(f, f, "starfield", *debug)
	}

	store, err := settings.Open(settings.DefaultAppName, core.DefaultConfig(), log)
	if err != nil {
		log.Warnf("settings are not persistent: %v", err)
	}

	var overrides []core.ParamDelta
	if *count >= 0 {
		overrides = append(overrides, core.Set(core.ParamCount, float64(*count)))
	}

	var mount starfield.Mount
	if *terminal {
		tm, err := starfield.OpenTerminal()
		if err != nil {
			log.Errorf("terminal: %v", err)
			os.Exit(1)
		}
		mount = tm
	} else {
		wm, err := starfield.OpenWindow(*width, *height, "Starfield", log)
		if err != nil {
			log.Errorf("window: %v", err)
			os.Exit(1)
		}
		mount = wm
	}
	defer mount.Close()

	app := starfield.New(mount, starfield.Options{
		Renderer:      mode,
		Settings:      store,
		Preset:        *preset,
		Overrides:     overrides,
		ResetSettings: *reset,
		Logger:        log,
		Debug:         *debug,
	})
	app.Run()
}
