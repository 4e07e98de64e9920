package core

// PlexusReferenceHeight is the output height, in pixels, at which the plexus
// distances apply unscaled.
const PlexusReferenceHeight = 900

const (
	maxPlexusCount    = 2000
	maxPlexusDistance = 1000
)

// Plexus configures the drifting, linked field the software fallback draws
// instead of the lifecycle field. Distances are pixels at
// PlexusReferenceHeight.
type Plexus struct {
	Enabled            bool    `yaml:"enabled"`
	Count              int     `yaml:"count"`
	ConnectionDistance float64 `yaml:"connectionDistance"`
	MouseRadius        float64 `yaml:"mouseRadius"`
	Color              string  `yaml:"color"`
	Highlight          string  `yaml:"highlight"`
}

func DefaultPlexus() Plexus {
	return Plexus{
		Count:              100,
		ConnectionDistance: 150,
		MouseRadius:        120,
		Color:              "#64ffda",
		Highlight:          "#9effeb",
	}
}

func (p Plexus) normalized() Plexus {
	if p.Count < 0 {
		p.Count = 0
	}
	if p.Count > maxPlexusCount {
		p.Count = maxPlexusCount
	}
	p.ConnectionDistance = clamp64(p.ConnectionDistance, 0, maxPlexusDistance)
	p.MouseRadius = clamp64(p.MouseRadius, 0, maxPlexusDistance)
	return p
}
