package cpu

import (
	"math"
	"math/rand"
	"time"

	"github.com/gekko3d/starfield/starrt/rt/core"
	"github.com/go-gl/mathgl/mgl32"
)

const (
	// plexusStepRate is the tick rate the per-step constants are tuned for.
	plexusStepRate  = 60
	plexusFriction  = 0.99
	plexusPush      = 0.2
	plexusMaxSpeed  = 0.25
	plexusLinkAlpha = 0.15
)

// PlexusNode is one drifting point. Coordinates are output pixels.
type PlexusNode struct {
	Pos         mgl32.Vec2
	Vel         mgl32.Vec2
	Radius      float32
	Highlighted bool
}

// Link joins two nodes closer than the connection distance.
type Link struct {
	A, B  int
	Alpha float32
}

// PlexusField is the drifting, linked particle field of the software
// fallback. Nodes bounce off the edges, lose speed to friction and are
// pushed away from the pointer.
type PlexusField struct {
	cfg       core.Plexus
	nodes     []PlexusNode
	width     float32
	height    float32
	color     mgl32.Vec3
	highlight mgl32.Vec3
}

// NewPlexusField scatters cfg.Count nodes over a width x height output. A nil
// rng seeds from the clock.
func NewPlexusField(cfg core.Plexus, width, height int, rng *rand.Rand) *PlexusField {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	f := &PlexusField{
		cfg:       cfg,
		width:     float32(max(width, 1)),
		height:    float32(max(height, 1)),
		color:     core.HexColor(cfg.Color),
		highlight: core.HexColor(cfg.Highlight),
	}
	f.nodes = make([]PlexusNode, max(cfg.Count, 0))
	for i := range f.nodes {
		f.nodes[i] = PlexusNode{
			Pos: mgl32.Vec2{rng.Float32() * f.width, rng.Float32() * f.height},
			Vel: mgl32.Vec2{
				(rng.Float32()*2 - 1) * plexusMaxSpeed,
				(rng.Float32()*2 - 1) * plexusMaxSpeed,
			},
			Radius: 1 + rng.Float32()*3,
		}
	}
	return f
}

func (f *PlexusField) Config() core.Plexus { return f.cfg }

func (f *PlexusField) Nodes() []PlexusNode { return f.nodes }

func (f *PlexusField) Size() (int, int) { return int(f.width), int(f.height) }

// Resize rescales node positions to a new output size.
func (f *PlexusField) Resize(width, height int) {
	w, h := float32(max(width, 1)), float32(max(height, 1))
	if w == f.width && h == f.height {
		return
	}
	sx, sy := w/f.width, h/f.height
	for i := range f.nodes {
		f.nodes[i].Pos[0] *= sx
		f.nodes[i].Pos[1] *= sy
	}
	f.width, f.height = w, h
}

// scale maps reference pixels to output pixels.
func (f *PlexusField) scale() float32 {
	return f.height / core.PlexusReferenceHeight
}

func (f *PlexusField) ConnectionDistance() float32 {
	return float32(f.cfg.ConnectionDistance) * f.scale()
}

func (f *PlexusField) MouseRadius() float32 {
	return float32(f.cfg.MouseRadius) * f.scale()
}

// Repulsion returns the velocity change a pointer at pointer applies to a
// node at pos, and whether the node is inside the radius.
func Repulsion(pos, pointer mgl32.Vec2, radius float32) (mgl32.Vec2, bool) {
	d := pointer.Sub(pos)
	dist := d.Len()
	if radius <= 0 || dist >= radius {
		return mgl32.Vec2{}, false
	}
	if dist == 0 {
		return mgl32.Vec2{}, true
	}
	force := (radius - dist) / radius
	return d.Mul(-force * plexusPush / dist), true
}

// LinkAlpha fades a link from plexusLinkAlpha at zero distance to nothing at
// maxDist.
func LinkAlpha(dist, maxDist float32) float32 {
	if maxDist <= 0 || dist >= maxDist {
		return 0
	}
	return (1 - dist/maxDist) * plexusLinkAlpha
}

// Step advances the field by dt. A nil pointer means the pointer is outside
// the output.
func (f *PlexusField) Step(dt time.Duration, pointer *mgl32.Vec2) {
	k := float32(dt.Seconds() * plexusStepRate)
	if k <= 0 {
		return
	}
	if k > 4 {
		k = 4
	}
	friction := float32(math.Pow(plexusFriction, float64(k)))
	// velocities and repulsion are in reference pixels
	s := f.scaleOrOne()
	radius := float32(f.cfg.MouseRadius)

	for i := range f.nodes {
		n := &f.nodes[i]
		n.Highlighted = false
		if pointer != nil {
			dv, inside := Repulsion(n.Pos.Mul(1/s), pointer.Mul(1/s), radius)
			n.Highlighted = inside
			n.Vel = n.Vel.Add(dv.Mul(k))
		}

		n.Pos = n.Pos.Add(n.Vel.Mul(k * s))
		n.Pos[0], n.Vel[0] = bounce(n.Pos[0], n.Vel[0], f.width)
		n.Pos[1], n.Vel[1] = bounce(n.Pos[1], n.Vel[1], f.height)
		n.Vel = n.Vel.Mul(friction)
	}
}

func (f *PlexusField) scaleOrOne() float32 {
	if s := f.scale(); s > 0 {
		return s
	}
	return 1
}

func bounce(p, v, limit float32) (float32, float32) {
	switch {
	case p < 0:
		return -p, float32(math.Abs(float64(v)))
	case p > limit:
		return 2*limit - p, -float32(math.Abs(float64(v)))
	}
	return p, v
}

// Links lists every pair of nodes closer than the connection distance.
func (f *PlexusField) Links() []Link {
	maxDist := f.ConnectionDistance()
	if maxDist <= 0 {
		return nil
	}
	var links []Link
	for i := range f.nodes {
		for j := i + 1; j < len(f.nodes); j++ {
			dist := f.nodes[i].Pos.Sub(f.nodes[j].Pos).Len()
			if a := LinkAlpha(dist, maxDist); a > 0 {
				links = append(links, Link{A: i, B: j, Alpha: a})
			}
		}
	}
	return links
}

// NodeColor is the colour a node is drawn with.
func (f *PlexusField) NodeColor(n PlexusNode) mgl32.Vec3 {
	if n.Highlighted {
		return f.highlight
	}
	return f.color
}
