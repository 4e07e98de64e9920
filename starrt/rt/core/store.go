package core

import (
	"math/rand"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

// PositionExtent is the half width of the square particles are scattered in.
// It overshoots clip space so quads enter and leave the edges smoothly.
const PositionExtent = 1.2

const (
	// brightnessBandMargin keeps drawn brightness away from class boundaries.
	brightnessBandMargin = 0.05
	fractionMargin       = 1e-3
)

// Store owns one generation of particle records. It is never mutated after
// construction; reconfiguration builds a new Store.
type Store struct {
	Generation    uuid.UUID
	ConfigVersion uint64
	Config        Config
	records       []ParticleRecord
}

// NewStore builds a full store for cfg. A nil rng seeds from the clock.
func NewStore(cfg Config, rng *rand.Rand) *Store {
	return &Store{
		Generation:    uuid.New(),
		ConfigVersion: cfg.Version,
		Config:        cfg,
		records:       Build(cfg.Count, cfg, rng),
	}
}

// Rebuild returns a new generation for cfg.
func (s *Store) Rebuild(cfg Config, rng *rand.Rand) *Store {
	return NewStore(cfg, rng)
}

// Records returns the record slice. Callers must not modify it.
func (s *Store) Records() []ParticleRecord {
	if s == nil {
		return nil
	}
	return s.records
}

func (s *Store) Len() int {
	if s == nil {
		return 0
	}
	return len(s.records)
}

// Bytes encodes all records with RecordLayout.
func (s *Store) Bytes() []byte {
	return RecordLayout().Encode(s.Records())
}

// Build generates count records from cfg. count <= 0 yields an empty slice.
func Build(count int, cfg Config, rng *rand.Rand) []ParticleRecord {
	if count <= 0 {
		return []ParticleRecord{}
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	records := make([]ParticleRecord, count)
	for i := range records {
		class := DepthClass(rng.Intn(depthClassCount))
		records[i] = buildRecord(class, cfg, rng)
	}
	return records
}

func buildRecord(class DepthClass, cfg Config, rng *rand.Rand) ParticleRecord {
	// fade in 1-3, hold 3-8, fade out 1-3 units of the cycle
	fadeIn := 1 + rng.Float64()*2
	hold := 3 + rng.Float64()*5
	fadeOut := 1 + rng.Float64()*2
	total := fadeIn + hold + fadeOut

	fi := clamp64(fadeIn/total, fractionMargin, 1-2*fractionMargin)
	fo := clamp64((fadeIn+hold)/total, fi+fractionMargin, 1-fractionMargin)

	// near particles cycle fastest
	lifeLo, lifeHi := band(cfg.LifetimeMin, cfg.LifetimeMax, int(DepthNear-class))
	cycleMs := lerp64(lifeLo, lifeHi, rng.Float64()) * 1000
	if cycleMs <= 0 {
		cycleMs = 1000
	}

	sizeLo, sizeHi := band(cfg.SizeMin, cfg.SizeMax, int(class))
	brLo, brHi := band(cfg.BrightnessMin, cfg.BrightnessMax, int(class))
	inset := (brHi - brLo) * brightnessBandMargin
	brightness := lerp64(brLo+inset, brHi-inset, rng.Float64())

	return ParticleRecord{
		Position: mgl32.Vec2{
			float32((rng.Float64()*2 - 1) * PositionExtent),
			float32((rng.Float64()*2 - 1) * PositionExtent),
		},
		Size:                 float32(lerp64(sizeLo, sizeHi, rng.Float64())),
		Color:                PaletteColor(class, rng.Float64(), cfg.HueShift),
		OpacitySeed:          float32(0.6 + rng.Float64()*0.4),
		FadeInFraction:       float32(fi),
		FadeOutStartFraction: float32(fo),
		PhaseOffset:          float32(rng.Float64() * cycleMs),
		CycleDurationMs:      float32(cycleMs),
		BrightnessFactor:     float32(brightness),
	}
}

// band returns the i-th of three equal sub ranges of [lo, hi].
func band(lo, hi float64, i int) (float64, float64) {
	span := (hi - lo) / depthClassCount
	return lo + span*float64(i), lo + span*float64(i+1)
}

func lerp64(a, b, t float64) float64 { return a + (b-a)*t }
