package starfield

import (
	"fmt"
	"math/rand"
	"slices"
	"sync"
	"time"

	"github.com/gekko3d/starfield/starrt/rt/core"
	"github.com/gekko3d/starfield/starrt/rt/settings"
)

// Change marks what a renderer has to refresh after a reconfiguration.
type Change uint8

const (
	ChangeStore Change = 1 << iota
	ChangeBrightness
	ChangeLayers
	ChangePlexus
)

// Particles is the live configuration and the store built from it. Only the
// reconfiguration system replaces them.
type Particles struct {
	Config core.Config
	Store  *core.Store
	// Preset is the name of the last applied preset, empty once edited.
	Preset string

	changes Change
	rng     *rand.Rand
}

// TakeChanges returns the pending changes and clears them.
func (p *Particles) TakeChanges() Change {
	c := p.changes
	p.changes = 0
	return c
}

// Invalidate marks c as pending again.
func (p *Particles) Invalidate(c Change) {
	p.changes |= c
}

func (p *Particles) commit(next core.Config) {
	prev := p.Config
	p.Config = next
	if next.RegenerationChanged(prev) {
		p.Store = p.Store.Rebuild(next, p.rng)
		p.changes |= ChangeStore
	}
	if next.Brightness != prev.Brightness {
		p.changes |= ChangeBrightness
	}
	if next.LayerIndex != prev.LayerIndex || next.Background != prev.Background {
		p.changes |= ChangeLayers
	}
	if next.Plexus != prev.Plexus {
		p.changes |= ChangePlexus
	}
}

type commandKind int

const (
	commandTune commandKind = iota
	commandPreset
	commandNextPreset
	commandReset
	commandBackground
	commandToggleBackground
	commandTogglePlexus
)

// ConfigCommand is one typed edit of the live configuration.
type ConfigCommand struct {
	kind   commandKind
	delta  core.ParamDelta
	preset string
	bg     core.Background
}

// Tune edits a single parameter.
func Tune(d core.ParamDelta) ConfigCommand {
	return ConfigCommand{kind: commandTune, delta: d}
}

func ApplyPreset(name string) ConfigCommand {
	return ConfigCommand{kind: commandPreset, preset: name}
}

// NextPreset cycles through the presets in name order.
func NextPreset() ConfigCommand {
	return ConfigCommand{kind: commandNextPreset}
}

// ResetSettings restores the compiled-in defaults and forgets saved values.
func ResetSettings() ConfigCommand {
	return ConfigCommand{kind: commandReset}
}

func SetBackground(bg core.Background) ConfigCommand {
	return ConfigCommand{kind: commandBackground, bg: bg}
}

func ToggleBackground() ConfigCommand {
	return ConfigCommand{kind: commandToggleBackground}
}

// TogglePlexus switches the software fallback between the lifecycle field
// and the linked plexus field.
func TogglePlexus() ConfigCommand {
	return ConfigCommand{kind: commandTogglePlexus}
}

func (c ConfigCommand) String() string {
	switch c.kind {
	case commandTune:
		if c.delta.Relative {
			return fmt.Sprintf("tune %s %+g", c.delta.Param, c.delta.Value)
		}
		return fmt.Sprintf("tune %s=%g", c.delta.Param, c.delta.Value)
	case commandPreset:
		return "preset " + c.preset
	case commandNextPreset:
		return "next preset"
	case commandReset:
		return "reset"
	case commandBackground:
		return "background"
	case commandToggleBackground:
		return "toggle background"
	case commandTogglePlexus:
		return "toggle plexus"
	}
	return "unknown"
}

// Reconfigurator queues configuration commands from any goroutine. They are
// applied in order by one system on the render loop.
type Reconfigurator struct {
	mu    sync.Mutex
	queue []ConfigCommand
}

func (r *Reconfigurator) Submit(cmds ...ConfigCommand) {
	r.mu.Lock()
	r.queue = append(r.queue, cmds...)
	r.mu.Unlock()
}

func (r *Reconfigurator) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queue)
}

func (r *Reconfigurator) drain() []ConfigCommand {
	r.mu.Lock()
	defer r.mu.Unlock()
	q := r.queue
	r.queue = nil
	return q
}

// SettingsModule loads the persisted configuration, builds the first store
// and installs the reconfiguration system.
type SettingsModule struct {
	// Store persists the configuration. Nil keeps it in memory.
	Store *settings.Store
	// Preset replaces the loaded configuration when set.
	Preset string
	// Overrides are applied after loading and are not saved.
	Overrides []core.ParamDelta
	// Reset clears saved values before loading.
	Reset bool
	// Seed makes the generated stores reproducible. Zero seeds from the clock.
	Seed int64
}

func (m SettingsModule) Install(app *App, cmd *Commands) {
	log := app.Logger()
	store := m.Store
	if store == nil {
		store = settings.New(nil, core.DefaultConfig(), log)
	}

	var cfg core.Config
	var err error
	if m.Reset {
		cfg, err = store.Clear()
	} else {
		cfg, err = store.Load()
	}
	if err != nil {
		log.Warnf("settings: %v (using defaults)", err)
	}

	preset := ""
	if m.Preset != "" {
		if pc, err := core.Preset(m.Preset); err != nil {
			log.Warnf("settings: %v", err)
		} else {
			cfg, preset = pc, m.Preset
		}
	}
	for _, d := range m.Overrides {
		next, err := cfg.Apply(d)
		if err != nil {
			log.Warnf("settings: %v", err)
			continue
		}
		cfg = next
	}

	seed := m.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))
	p := &Particles{
		Config: cfg,
		Store:  core.NewStore(cfg, rng),
		Preset: preset,
		rng:    rng,
	}
	log.Infof("particles: %d (settings persistent=%v)", p.Store.Len(), store.Persistent())

	cmd.AddResources(p, &Reconfigurator{}, store)
	app.UseSystem(
		System(reconfigureSystem).
			InStage(Update).
			RunAlways(),
	)
}

// reconfigureSystem applies queued commands in order. Each one is normalized
// and, when it touches a generation parameter, rebuilds the store. The result
// is saved once per tick.
func reconfigureSystem(rc *Reconfigurator, p *Particles, store *settings.Store, log Logger) {
	cmds := rc.drain()
	if len(cmds) == 0 {
		return
	}

	save, forget := false, false
	for _, c := range cmds {
		next, preset, err := resolveCommand(p, c)
		if err != nil {
			log.Warnf("reconfigure %s: %v", c, err)
			continue
		}
		p.commit(next)
		p.Preset = preset
		if c.kind == commandReset {
			save, forget = false, true
		} else {
			save = true
		}
		log.Debugf("reconfigure %s -> version %d, %d particles", c, p.Config.Version, p.Store.Len())
	}

	switch {
	case save:
		if err := store.Save(p.Config); err != nil {
			log.Warnf("settings: %v", err)
		}
	case forget:
		if _, err := store.Clear(); err != nil {
			log.Warnf("settings: %v", err)
		}
	}
}

func resolveCommand(p *Particles, c ConfigCommand) (core.Config, string, error) {
	cur := p.Config
	switch c.kind {
	case commandTune:
		next, err := cur.Apply(c.delta)
		return next, "", err
	case commandPreset:
		return loadPreset(cur, c.preset)
	case commandNextPreset:
		names := core.PresetNames()
		if len(names) == 0 {
			return cur, p.Preset, fmt.Errorf("no presets")
		}
		i := slices.Index(names, p.Preset)
		return loadPreset(cur, names[(i+1)%len(names)])
	case commandReset:
		next := core.DefaultConfig()
		next.Version = cur.Version + 1
		return next, "", nil
	case commandBackground:
		next := cur
		next.Background = c.bg
		next = core.Normalize(next, core.ParamNone)
		next.Version = cur.Version + 1
		return next, p.Preset, nil
	case commandToggleBackground:
		next := cur
		next.Background.Enabled = !cur.Background.Enabled
		next.Version = cur.Version + 1
		return next, p.Preset, nil
	case commandTogglePlexus:
		next := cur
		next.Plexus.Enabled = !cur.Plexus.Enabled
		next.Version = cur.Version + 1
		return next, p.Preset, nil
	}
	return cur, p.Preset, fmt.Errorf("unknown command %d", c.kind)
}

func loadPreset(cur core.Config, name string) (core.Config, string, error) {
	next, err := core.Preset(name)
	if err != nil {
		return cur, "", err
	}
	next.Version = cur.Version + 1
	return next, name, nil
}
