package capture

import (
	"time"

	"github.com/smazurov/uvccap/pkg/linuxav/v4l2"
)

// Driver is the device protocol a Session drives. *v4l2.Device implements
// it on Linux. Every method returns the raw errno on failure.
type Driver interface {
	QueryCapability() (v4l2.Capability, error)
	CropCapability() (v4l2.CropCapability, error)
	EnumFormat(index uint32) (v4l2.FormatDesc, error)
	FrameSizes(pixelFormat v4l2.FourCC) ([]v4l2.Resolution, error)
	SetCrop(r v4l2.Rect) error
	SetFormat(f v4l2.PixFormat) (v4l2.PixFormat, error)
	GetFormat() (v4l2.PixFormat, error)
	RequestBuffers(count uint32) (uint32, error)
	QueryBuffer(index uint32) (v4l2.BufferInfo, error)
	Map(offset, length uint32) ([]byte, error)
	Unmap(b []byte) error
	Queue(index uint32) error
	Dequeue() (v4l2.BufferInfo, error)
	StreamOn() error
	StreamOff() error
	WaitReady(timeout time.Duration) (bool, error)
	Close() error
}

// Opener opens a device node read-only.
type Opener func(path string) (Driver, error)
