package shaders

import (
	_ "embed"
)

//go:embed particles.wgsl
var ParticlesWGSL string

//go:embed background.wgsl
var BackgroundWGSL string

// ParticleInstanceDirective is replaced by the generated instance struct.
const ParticleInstanceDirective = "#include particle_instance"
