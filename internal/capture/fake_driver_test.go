package capture

import (
	"io"
	"log/slog"
	"time"

	"golang.org/x/sys/unix"

	"github.com/smazurov/uvccap/pkg/linuxav/v4l2"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeDriver simulates a capture device that follows the queue ownership
// protocol and records every violation it sees.
type fakeDriver struct {
	caps       v4l2.Capability
	capErr     error
	crop       v4l2.CropCapability
	cropErr    error
	setCropErr error
	formats    []v4l2.FormatDesc
	enumErr    error

	// adjust models the driver rewriting the requested format.
	adjust    func(v4l2.PixFormat) v4l2.PixFormat
	current   v4l2.PixFormat
	setFmtErr error
	getFmtErr error
	setFmts   []v4l2.PixFormat
	getFmts   int

	grant        uint32 // 0 grants what was asked
	reqbufsErr   error
	reqbufsCalls []uint32
	queryErrAt   map[uint32]error
	mapErrAt     int // -1 disables
	bufferLen    uint32

	maps    map[*byte]bool
	unmaps  int
	doubles int

	queued     []uint32
	inKernel   map[uint32]bool
	queueErrs  []error // consumed one per Queue call
	queueCalls int
	dequeueErr error
	violations int
	sequence   uint32

	streaming    bool
	streamOns    int
	streamOffs   int
	streamOnErr  error
	streamOffErr error
	waits        []waitResult // consumed one per WaitReady call
	waitCalls    int
	closeErrs    []error
	closeCalls   int
}

type waitResult struct {
	ready bool
	err   error
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{
		caps: v4l2.Capability{
			Driver:       "fake",
			Card:         "Fake Camera",
			BusInfo:      "usb-0000:00:14.0-1",
			Capabilities: v4l2.CapVideoCapture | v4l2.CapStreaming,
		},
		crop: v4l2.CropCapability{
			Bounds:  v4l2.Rect{Width: 1920, Height: 1080},
			DefRect: v4l2.Rect{Width: 1920, Height: 1080},
		},
		formats: []v4l2.FormatDesc{
			{Index: 0, PixelFormat: v4l2.PixFmtYUYV, Description: "YUYV 4:2:2"},
			{Index: 1, PixelFormat: v4l2.PixFmtMJPEG, Description: "Motion-JPEG", Flags: v4l2.FmtFlagCompressed},
		},
		mapErrAt:   -1,
		queryErrAt: map[uint32]error{},
		maps:       map[*byte]bool{},
		inKernel:   map[uint32]bool{},
	}
}

func (f *fakeDriver) opener() Opener {
	return func(string) (Driver, error) { return f, nil }
}

func (f *fakeDriver) live() int {
	n := 0
	for _, m := range f.maps {
		if m {
			n++
		}
	}
	return n
}

func (f *fakeDriver) QueryCapability() (v4l2.Capability, error) {
	return f.caps, f.capErr
}

func (f *fakeDriver) CropCapability() (v4l2.CropCapability, error) {
	if f.cropErr != nil {
		return v4l2.CropCapability{}, f.cropErr
	}
	return f.crop, nil
}

func (f *fakeDriver) EnumFormat(index uint32) (v4l2.FormatDesc, error) {
	if f.enumErr != nil && int(index) == len(f.formats) {
		return v4l2.FormatDesc{}, f.enumErr
	}
	if int(index) >= len(f.formats) {
		return v4l2.FormatDesc{}, unix.EINVAL
	}
	return f.formats[index], nil
}

func (f *fakeDriver) FrameSizes(v4l2.FourCC) ([]v4l2.Resolution, error) {
	return []v4l2.Resolution{{Width: 640, Height: 480}, {Width: 1280, Height: 720}}, nil
}

func (f *fakeDriver) SetCrop(v4l2.Rect) error {
	return f.setCropErr
}

func (f *fakeDriver) SetFormat(p v4l2.PixFormat) (v4l2.PixFormat, error) {
	f.setFmts = append(f.setFmts, p)
	if f.setFmtErr != nil {
		return p, f.setFmtErr
	}
	if f.adjust != nil {
		p = f.adjust(p)
	}
	if p.BytesPerLine == 0 {
		p.BytesPerLine = p.Width * 2
	}
	if p.SizeImage == 0 {
		p.SizeImage = p.BytesPerLine * p.Height
	}
	f.current = p
	return p, nil
}

func (f *fakeDriver) GetFormat() (v4l2.PixFormat, error) {
	f.getFmts++
	if f.getFmtErr != nil {
		return v4l2.PixFormat{}, f.getFmtErr
	}
	return f.current, nil
}

func (f *fakeDriver) RequestBuffers(count uint32) (uint32, error) {
	f.reqbufsCalls = append(f.reqbufsCalls, count)
	if count == 0 {
		return 0, nil
	}
	if f.reqbufsErr != nil {
		return 0, f.reqbufsErr
	}
	if f.grant != 0 {
		return f.grant, nil
	}
	return count, nil
}

func (f *fakeDriver) QueryBuffer(index uint32) (v4l2.BufferInfo, error) {
	if err, ok := f.queryErrAt[index]; ok {
		return v4l2.BufferInfo{}, err
	}
	length := f.bufferLen
	if length == 0 {
		length = f.current.SizeImage
	}
	return v4l2.BufferInfo{Index: index, Length: length, Offset: index * 4096}, nil
}

func (f *fakeDriver) Map(offset, length uint32) ([]byte, error) {
	if f.mapErrAt >= 0 && offset/4096 == uint32(f.mapErrAt) {
		return nil, unix.ENOMEM
	}
	b := make([]byte, max(length, 1))
	f.maps[&b[0]] = true
	return b[:length], nil
}

func (f *fakeDriver) Unmap(b []byte) error {
	key := &b[:1][0]
	if !f.maps[key] {
		f.doubles++
		return unix.EINVAL
	}
	f.maps[key] = false
	f.unmaps++
	return nil
}

func (f *fakeDriver) Queue(index uint32) error {
	f.queueCalls++
	if len(f.queueErrs) > 0 {
		err := f.queueErrs[0]
		f.queueErrs = f.queueErrs[1:]
		if err != nil {
			return err
		}
	}
	if f.inKernel[index] {
		f.violations++
		return unix.EINVAL
	}
	f.inKernel[index] = true
	f.queued = append(f.queued, index)
	return nil
}

func (f *fakeDriver) Dequeue() (v4l2.BufferInfo, error) {
	if f.dequeueErr != nil {
		return v4l2.BufferInfo{}, f.dequeueErr
	}
	if !f.streaming || len(f.queued) == 0 {
		return v4l2.BufferInfo{}, unix.EAGAIN
	}
	index := f.queued[0]
	f.queued = f.queued[1:]
	f.inKernel[index] = false
	f.sequence++
	return v4l2.BufferInfo{
		Index:     index,
		BytesUsed: f.current.SizeImage,
		Sequence:  f.sequence,
	}, nil
}

func (f *fakeDriver) StreamOn() error {
	f.streamOns++
	if f.streamOnErr != nil {
		return f.streamOnErr
	}
	f.streaming = true
	return nil
}

func (f *fakeDriver) StreamOff() error {
	f.streamOffs++
	f.streaming = false
	f.queued = nil
	clear(f.inKernel)
	return f.streamOffErr
}

func (f *fakeDriver) WaitReady(time.Duration) (bool, error) {
	f.waitCalls++
	if len(f.waits) > 0 {
		w := f.waits[0]
		f.waits = f.waits[1:]
		return w.ready, w.err
	}
	return f.streaming && len(f.queued) > 0, nil
}

func (f *fakeDriver) Close() error {
	f.closeCalls++
	if len(f.closeErrs) > 0 {
		err := f.closeErrs[0]
		f.closeErrs = f.closeErrs[1:]
		return err
	}
	return nil
}
