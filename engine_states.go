package starfield

import "fmt"

// Engine states. Probing runs once at startup; FallbackActive lasts for the
// rest of the session.
const (
	StateProbing State = iota
	StateGpuActive
	StateRecovering
	StateFallbackActive
	StateExit
)

func (s State) String() string {
	switch s {
	case StateProbing:
		return "probing"
	case StateGpuActive:
		return "gpu-active"
	case StateRecovering:
		return "recovering"
	case StateFallbackActive:
		return "fallback-active"
	case StateExit:
		return "exit"
	}
	return fmt.Sprintf("state(%d)", int(s))
}
