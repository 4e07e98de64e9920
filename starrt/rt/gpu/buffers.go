package gpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/google/uuid"
)

// InstanceBuffer is one immutable upload of a particle store. The frame
// encoder reads buffer and count from the same snapshot.
type InstanceBuffer struct {
	Buffer     *wgpu.Buffer
	Count      uint32
	Size       uint64
	Generation uuid.UUID
}

// Allocator creates and releases instance buffers.
type Allocator interface {
	CreateVertexBuffer(label string, contents []byte) (*wgpu.Buffer, error)
	Release(buf *wgpu.Buffer)
}

type deviceAllocator struct {
	device *wgpu.Device
}

// NewDeviceAllocator allocates buffers on device.
func NewDeviceAllocator(device *wgpu.Device) Allocator {
	return &deviceAllocator{device: device}
}

func (a *deviceAllocator) CreateVertexBuffer(label string, contents []byte) (buf *wgpu.Buffer, err error) {
	defer func() {
		if p := recover(); p != nil {
			buf, err = nil, recovered(p)
		}
	}()
	return a.device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    label,
		Contents: contents,
		Usage:    wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
	})
}

func (a *deviceAllocator) Release(buf *wgpu.Buffer) {
	if buf != nil {
		buf.Release()
	}
}

func instanceLabel(gen uuid.UUID) string {
	return fmt.Sprintf("ParticleInstances-%s", gen.String()[:8])
}

// uniformBuffer creates a uniform buffer initialised with contents.
func uniformBuffer(device *wgpu.Device, label string, contents []byte) (*wgpu.Buffer, error) {
	return device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    label,
		Contents: contents,
		Usage:    wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
}
