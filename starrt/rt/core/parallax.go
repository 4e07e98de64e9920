package core

import (
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl32"
)

const (
	DefaultWatchdogInterval = 250 * time.Millisecond
	// DefaultScrollDecay is the fraction of the offset released per idle second.
	DefaultScrollDecay = 0.1
)

// ScrollMapper turns host scroll positions into a bounded parallax offset in
// [-1, 1]. Observe and Track may be called from any goroutine; Update runs
// once per frame on the render loop.
type ScrollMapper struct {
	mu sync.Mutex

	damping  float32
	decay    float32
	watchdog time.Duration

	observed   float64
	applied    float64
	pending    bool
	offset     float32
	lastUpdate time.Time
	lastTick   time.Time
}

func NewScrollMapper(damping float32) *ScrollMapper {
	return &ScrollMapper{
		damping:  damping,
		decay:    DefaultScrollDecay,
		watchdog: DefaultWatchdogInterval,
	}
}

// SetDamping changes the scroll-to-offset factor for future updates.
func (m *ScrollMapper) SetDamping(d float32) {
	m.mu.Lock()
	m.damping = d
	m.mu.Unlock()
}

// SetDecay makes the offset ease back to zero while no scroll arrives.
func (m *ScrollMapper) SetDecay(perSecond float32) {
	m.mu.Lock()
	m.decay = perSecond
	m.mu.Unlock()
}

func (m *ScrollMapper) SetWatchdog(d time.Duration) {
	m.mu.Lock()
	m.watchdog = d
	m.mu.Unlock()
}

// Observe records a scroll event. Several events between two frames
// coalesce into one recomputation.
func (m *ScrollMapper) Observe(pos float64) {
	m.mu.Lock()
	m.observed = pos
	m.pending = true
	m.mu.Unlock()
}

// Track records a scroll position that changed without an event, for example
// a clamp after the content shrank. The watchdog picks it up.
func (m *ScrollMapper) Track(pos float64) {
	m.mu.Lock()
	m.observed = pos
	m.mu.Unlock()
}

// Update applies at most one recomputation and reports whether it did.
func (m *ScrollMapper) Update(now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	var dt float32
	if !m.lastTick.IsZero() {
		dt = float32(now.Sub(m.lastTick).Seconds())
	}
	m.lastTick = now

	stale := m.observed != m.applied && now.Sub(m.lastUpdate) >= m.watchdog
	if !m.pending && !stale {
		if m.decay > 0 && m.offset != 0 && dt > 0 {
			m.offset *= mgl32.Clamp(1-m.decay*dt, 0, 1)
		}
		return false
	}

	delta := m.observed - m.applied
	m.applied = m.observed
	m.pending = false
	m.lastUpdate = now
	m.offset = mgl32.Clamp(m.offset+float32(delta)*m.damping, -1, 1)
	return true
}

func (m *ScrollMapper) Offset() float32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.offset
}

// Reset zeroes the offset and adopts pos as the reference position.
func (m *ScrollMapper) Reset(pos float64) {
	m.mu.Lock()
	m.observed = pos
	m.applied = pos
	m.pending = false
	m.offset = 0
	m.mu.Unlock()
}
