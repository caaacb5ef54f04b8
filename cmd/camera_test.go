package cmd

import (
	"time"

	"golang.org/x/sys/unix"

	"github.com/smazurov/uvccap/internal/capture"
	"github.com/smazurov/uvccap/pkg/linuxav/v4l2"
)

// camera is a well-behaved YUYV webcam without cropping support.
type camera struct {
	format   v4l2.PixFormat
	buffers  int
	queued   []uint32
	sequence uint32
	opened   int
	closed   int
}

func (c *camera) opener(openErr error) capture.Opener {
	return func(string) (capture.Driver, error) {
		if openErr != nil {
			return nil, openErr
		}
		c.opened++
		return c, nil
	}
}

func (c *camera) QueryCapability() (v4l2.Capability, error) {
	return v4l2.Capability{
		Driver:       "uvcvideo",
		Card:         "Fake Webcam",
		BusInfo:      "usb-0000:00:14.0-2",
		Version:      0x00060812,
		Capabilities: v4l2.CapVideoCapture | v4l2.CapStreaming,
	}, nil
}

func (c *camera) CropCapability() (v4l2.CropCapability, error) {
	return v4l2.CropCapability{}, unix.EINVAL
}

func (c *camera) EnumFormat(index uint32) (v4l2.FormatDesc, error) {
	descs := []v4l2.FormatDesc{
		{Index: 0, PixelFormat: v4l2.PixFmtYUYV, Description: "YUYV 4:2:2"},
		{Index: 1, PixelFormat: v4l2.PixFmtMJPEG, Description: "Motion-JPEG", Flags: v4l2.FmtFlagCompressed},
	}
	if int(index) >= len(descs) {
		return v4l2.FormatDesc{}, unix.EINVAL
	}
	return descs[index], nil
}

func (c *camera) FrameSizes(v4l2.FourCC) ([]v4l2.Resolution, error) {
	return []v4l2.Resolution{{Width: 640, Height: 480}, {Width: 1280, Height: 720}}, nil
}

func (c *camera) SetCrop(v4l2.Rect) error { return unix.EINVAL }

func (c *camera) SetFormat(f v4l2.PixFormat) (v4l2.PixFormat, error) {
	f.BytesPerLine = f.Width * 2
	f.SizeImage = f.BytesPerLine * f.Height
	c.format = f
	return f, nil
}

func (c *camera) GetFormat() (v4l2.PixFormat, error) { return c.format, nil }

func (c *camera) RequestBuffers(count uint32) (uint32, error) {
	c.buffers = int(count)
	return count, nil
}

func (c *camera) QueryBuffer(index uint32) (v4l2.BufferInfo, error) {
	if int(index) >= c.buffers {
		return v4l2.BufferInfo{}, unix.EINVAL
	}
	return v4l2.BufferInfo{Index: index, Length: c.format.SizeImage, Offset: index * c.format.SizeImage}, nil
}

func (c *camera) Map(_, length uint32) ([]byte, error) { return make([]byte, length), nil }

func (c *camera) Unmap([]byte) error { return nil }

func (c *camera) Queue(index uint32) error {
	c.queued = append(c.queued, index)
	return nil
}

func (c *camera) Dequeue() (v4l2.BufferInfo, error) {
	if len(c.queued) == 0 {
		return v4l2.BufferInfo{}, unix.EAGAIN
	}
	index := c.queued[0]
	c.queued = c.queued[1:]
	c.sequence++
	return v4l2.BufferInfo{Index: index, BytesUsed: c.format.SizeImage, Sequence: c.sequence}, nil
}

func (c *camera) StreamOn() error { return nil }

func (c *camera) StreamOff() error {
	c.queued = nil
	return nil
}

func (c *camera) WaitReady(time.Duration) (bool, error) { return len(c.queued) > 0, nil }

func (c *camera) Close() error {
	c.closed++
	return nil
}
