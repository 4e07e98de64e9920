package gpu

import (
	"errors"
	"fmt"
)

var (
	// ErrBackendUnavailable means no GPU path can be brought up on this host.
	ErrBackendUnavailable = errors.New("gpu backend unavailable")
	ErrNoAdapter          = errors.New("no compatible gpu adapter")
	ErrNoSurfaceFormat    = errors.New("surface reports no formats")
)

// Resource names a GPU object that can fail at runtime and be recreated.
type Resource string

const (
	ResourceInstances     Resource = "instance-buffer"
	ResourceFrameUniforms Resource = "frame-uniforms"
	ResourceSurface       Resource = "surface"
	ResourcePipeline      Resource = "pipeline"
)

// CompileError is a shader or pipeline construction failure. Stage is one of
// "layout", "shader", "bind-group-layout", "pipeline-layout", "pipeline".
type CompileError struct {
	Program string
	Stage   string
	Err     error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("compile %s (%s): %v", e.Program, e.Stage, e.Err)
}

func (e *CompileError) Unwrap() error { return e.Err }

// ResourceError is a failure to create or update a GPU resource after the
// pipeline was running.
type ResourceError struct {
	Resource Resource
	Err      error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("gpu resource %s: %v", e.Resource, e.Err)
}

func (e *ResourceError) Unwrap() error { return e.Err }

// FrameError is a failure inside a single frame. The loop keeps running.
type FrameError struct {
	Step string
	Err  error
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("frame %s: %v", e.Step, e.Err)
}

func (e *FrameError) Unwrap() error { return e.Err }

func recovered(p any) error {
	if err, ok := p.(error); ok {
		return err
	}
	return fmt.Errorf("%v", p)
}
