package starfield

import (
	"fmt"
	"strings"
)

// RendererName identifies a render path. Keep names aligned with the tags
// claimed through ensureSingleRenderer.
type RendererName string

const (
	RendererWGPU RendererName = "wgpu"
	RendererCPU  RendererName = "cpu"
)

// RendererMode is the user's renderer preference.
type RendererMode string

const (
	// RendererAuto probes the GPU and falls back to the CPU path.
	RendererAuto RendererMode = "auto"
	// RendererGPU requires the GPU path; the app exits if it is unavailable.
	RendererGPU RendererMode = "gpu"
	// RendererCPUOnly never probes the GPU.
	RendererCPUOnly RendererMode = "cpu"
)

// RendererEnv overrides the command line renderer choice.
const RendererEnv = "STARFIELD_RENDERER"

func ParseRendererMode(s string) (RendererMode, error) {
	switch RendererMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", RendererAuto:
		return RendererAuto, nil
	case RendererGPU, "wgpu", "webgpu":
		return RendererGPU, nil
	case RendererCPUOnly, "software", "fallback":
		return RendererCPUOnly, nil
	}
	return RendererAuto, fmt.Errorf("unknown renderer %q (want auto, gpu or cpu)", s)
}

// ResolveRendererMode combines the flag value with the environment, which
// wins when set.
func ResolveRendererMode(flagValue string, getenv func(string) string) (RendererMode, error) {
	if getenv != nil {
		if env := getenv(RendererEnv); env != "" {
			mode, err := ParseRendererMode(env)
			if err != nil {
				return RendererAuto, fmt.Errorf("%s: %w", RendererEnv, err)
			}
			return mode, nil
		}
	}
	return ParseRendererMode(flagValue)
}
