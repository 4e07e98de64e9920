// Command lite shows the particle field with the software rasterizer only.
// It links neither WebGPU nor the engine runtime, so it runs wherever ebiten
// does. Settings are shared with the full viewer.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"github.com/gekko3d/starfield/starrt/rt/core"
	"github.com/gekko3d/starfield/starrt/rt/cpu"
	"github.com/gekko3d/starfield/starrt/rt/settings"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

const (
	contentHeight = 6000.0
	wheelStep     = 60.0
)

type stdLogger struct {
	debug bool
}

func (l stdLogger) Debugf(format string, args ...any) {
	if l.debug {
		log.Printf("DEBUG: "+format, args...)
	}
}
func (stdLogger) Infof(format string, args ...any)  { log.Printf("INFO: "+format, args...) }
func (stdLogger) Warnf(format string, args ...any)  { log.Printf("WARN: "+format, args...) }
func (stdLogger) Errorf(format string, args ...any) { log.Printf("ERROR: "+format, args...) }

var keyDeltas = map[ebiten.Key]core.ParamDelta{
	ebiten.KeyArrowUp:      core.Add(core.ParamBrightness, 0.1),
	ebiten.KeyArrowDown:    core.Add(core.ParamBrightness, -0.1),
	ebiten.KeyArrowRight:   core.Add(core.ParamCount, 1000),
	ebiten.KeyArrowLeft:    core.Add(core.ParamCount, -1000),
	ebiten.KeyBracketRight: core.Add(core.ParamHueShift, 15),
	ebiten.KeyBracketLeft:  core.Add(core.ParamHueShift, -15),
	ebiten.KeyPeriod:       core.Add(core.ParamParallaxStrength, 0.1),
	ebiten.KeyComma:        core.Add(core.ParamParallaxStrength, -0.1),
}

type game struct {
	log   core.Logger
	store *settings.Store
	rng   *rand.Rand

	cfg       core.Config
	particles *core.Store
	raster    *cpu.Rasterizer
	mapper    *core.ScrollMapper
	plexus    *cpu.PlexusField

	start   time.Time
	last    time.Time
	scrollY float64
	w, h    int
}

func newGame(store *settings.Store, cfg core.Config, l core.Logger) *game {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &game{
		log:       l,
		store:     store,
		rng:       rng,
		cfg:       cfg,
		particles: core.NewStore(cfg, rng),
		raster:    cpu.New(cpu.Options{}),
		mapper:    core.NewScrollMapper(float32(cfg.ScrollDamping)),
		start:     time.Now(),
		last:      time.Now(),
	}
}

func (g *game) Update() error {
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) || inpututil.IsKeyJustPressed(ebiten.KeyQ) {
		return ebiten.Termination
	}

	next, changed := g.cfg, false
	for key, d := range keyDeltas {
		if !inpututil.IsKeyJustPressed(key) {
			continue
		}
		c, err := next.Apply(d)
		if err != nil {
			g.log.Warnf("%v", err)
			continue
		}
		next, changed = c, true
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyB) {
		next.Background.Enabled = !next.Background.Enabled
		next.Version++
		changed = true
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyX) {
		next.Plexus.Enabled = !next.Plexus.Enabled
		next.Version++
		changed = true
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyR) {
		c, err := g.store.Clear()
		if err != nil {
			g.log.Warnf("settings: %v", err)
		}
		c.Version = next.Version + 1
		g.commit(c)
	} else if changed {
		g.commit(next)
		if err := g.store.Save(g.cfg); err != nil {
			g.log.Warnf("settings: %v", err)
		}
	}

	if _, dy := ebiten.Wheel(); dy != 0 {
		g.scrollY = min(max(g.scrollY-dy*wheelStep, 0), contentHeight)
		g.mapper.Observe(g.scrollY)
	}
	now := time.Now()
	g.mapper.Update(now)
	g.stepPlexus(now.Sub(g.last))
	g.last = now
	return nil
}

func (g *game) stepPlexus(dt time.Duration) {
	if !g.cfg.Plexus.Enabled || g.w == 0 || g.h == 0 {
		g.plexus = nil
		return
	}
	if g.plexus == nil {
		g.plexus = cpu.NewPlexusField(g.cfg.Plexus, g.w, g.h, g.rng)
	}
	g.plexus.Resize(g.w, g.h)

	var pointer *mgl32.Vec2
	if x, y := ebiten.CursorPosition(); x >= 0 && y >= 0 && x < g.w && y < g.h {
		pointer = &mgl32.Vec2{float32(x), float32(y)}
	}
	g.plexus.Step(dt, pointer)
}

func (g *game) commit(next core.Config) {
	if next.RegenerationChanged(g.cfg) {
		g.particles = g.particles.Rebuild(next, g.rng)
	}
	if next.Plexus != g.cfg.Plexus {
		g.plexus = nil
	}
	g.cfg = next
	g.mapper.SetDamping(float32(next.ScrollDamping))
	g.log.Debugf("config version %d, %d particles", next.Version, g.particles.Len())
}

func (g *game) Draw(screen *ebiten.Image) {
	fs := core.NewFrameState(g.cfg, g.w, g.h)
	fs.TimeMs = float32(time.Since(g.start).Milliseconds())
	fs.ScrollOffset = g.mapper.Offset()
	img := g.raster.Render(cpu.Frame{
		Width:         g.w,
		Height:        g.h,
		Records:       g.particles.Records(),
		State:         fs,
		Brightness:    float32(g.cfg.Brightness),
		Background:    g.cfg.Background,
		ParticleLayer: g.cfg.LayerIndex,
		Plexus:        g.plexus,
	})
	if b := img.Bounds(); b.Dx() == screen.Bounds().Dx() && b.Dy() == screen.Bounds().Dy() {
		screen.WritePixels(img.Pix)
	}
}

func (g *game) Layout(outsideWidth, outsideHeight int) (int, int) {
	g.w, g.h = outsideWidth, outsideHeight
	return outsideWidth, outsideHeight
}

func main() {
	debug := flag.Bool("debug", false, "Enable debug logging")
	preset := flag.String("preset", "", "Start from a preset: "+fmt.Sprint(core.PresetNames()))
	flag.Parse()

	l := stdLogger{debug: *debug}
	store, err := settings.Open(settings.DefaultAppName, core.DefaultConfig(), l)
	if err != nil {
		l.Warnf("settings are not persistent: %v", err)
	}
	cfg, err := store.Load()
	if err != nil {
		l.Warnf("settings: %v (using defaults)", err)
	}
	if *preset != "" {
		if pc, err := core.Preset(*preset); err != nil {
			l.Warnf("%v", err)
		} else {
			cfg = pc
		}
	}

	ebiten.SetWindowSize(1280, 720)
	ebiten.SetWindowTitle("Starfield (software)")
	ebiten.SetWindowResizable(true)
	if err := ebiten.RunGame(newGame(store, cfg, l)); err != nil && !errors.Is(err, ebiten.Termination) {
		l.Errorf("%v", err)
		os.Exit(1)
	}
}
