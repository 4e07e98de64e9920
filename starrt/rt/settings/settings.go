// Package settings persists the particle configuration between runs.
//
// Values are stored as a YAML blob through gdata, so the location follows
// the platform's conventions for application data. When the store cannot be
// opened it degrades to memory only and every call still succeeds.
package settings

import (
	"fmt"
	"sync"

	"github.com/gekko3d/starfield/starrt/rt/core"
	"github.com/quasilyte/gdata/v2"
	"gopkg.in/yaml.v3"
)

const (
	DefaultAppName = "starfield"

	configObject   = "settings"
	configProperty = "particleConfig"
)

// Store loads and saves a core.Config. A nil manager means degraded mode.
type Store struct {
	mu      sync.Mutex
	data    *gdata.Manager
	log     core.Logger
	current core.Config
	base    core.Config
}

// Open opens the gdata store for appName. Failure to open is not fatal: the
// returned store works in memory and the error is reported for logging.
func Open(appName string, base core.Config, log core.Logger) (*Store, error) {
	if appName == "" {
		appName = DefaultAppName
	}
	m, err := gdata.Open(gdata.Config{AppName: appName})
	if err != nil {
		return New(nil, base, log), fmt.Errorf("open settings storage: %w", err)
	}
	return New(m, base, log), nil
}

// New wraps an already opened manager, which may be nil.
func New(m *gdata.Manager, base core.Config, log core.Logger) *Store {
	return &Store{data: m, log: core.OrNop(log), base: base, current: base}
}

// Persistent reports whether values survive a restart.
func (s *Store) Persistent() bool { return s.data != nil }

// Load reads the saved configuration merged over the base values. Missing or
// unreadable data yields the base configuration.
func (s *Store) Load() (core.Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.data == nil || !s.data.ObjectPropExists(configObject, configProperty) {
		s.current = s.base
		return s.current, nil
	}
	raw, err := s.data.LoadObjectProp(configObject, configProperty)
	if err != nil {
		s.current = s.base
		return s.current, fmt.Errorf("load settings: %w", err)
	}
	cfg, err := Decode(raw, s.base)
	if err != nil {
		s.current = s.base
		return s.current, err
	}
	s.current = cfg
	s.log.Debugf("settings loaded (%d particles)", cfg.Count)
	return cfg, nil
}

// Save stores cfg. In degraded mode it only updates the in-memory copy.
func (s *Store) Save(cfg core.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = cfg
	if s.data == nil {
		return nil
	}
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	if err := s.data.SaveObjectProp(configObject, configProperty, raw); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

// Clear forgets saved values and returns the base configuration.
func (s *Store) Clear() (core.Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = s.base
	if s.data == nil || !s.data.ObjectPropExists(configObject, configProperty) {
		return s.current, nil
	}
	if err := s.data.DeleteObjectProp(configObject, configProperty); err != nil {
		return s.current, fmt.Errorf("clear settings: %w", err)
	}
	return s.current, nil
}

// Current returns the last loaded or saved configuration.
func (s *Store) Current() core.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Decode unmarshals raw over base and normalizes the result, so partial or
// out-of-range documents still produce a usable configuration.
func Decode(raw []byte, base core.Config) (core.Config, error) {
	cfg := base
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return base, fmt.Errorf("decode settings: %w", err)
	}
	cfg = core.Normalize(cfg, core.ParamNone)
	cfg.Version = base.Version
	return cfg, nil
}
