package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sys/unix"

	"github.com/smazurov/uvccap/internal/events"
	"github.com/smazurov/uvccap/internal/logging"
	"github.com/smazurov/uvccap/pkg/linuxav/v4l2"
)

// State is the lifecycle position of a Session.
type State int

// Session states.
const (
	Closed State = iota
	Opened
	Formatted
	BuffersReady
	Streaming
)

var stateNames = [...]string{"closed", "opened", "formatted", "buffers_ready", "streaming"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// startQueueCodes classifies enqueue failures while priming the queue.
// Re-enqueueing a lent frame always fails as BufferQueueingFailed.
var startQueueCodes = errnoCodes{
	unix.EIO: IoError,
}

// Session owns one open capture device, its negotiated format and its
// buffer pool. It is not safe for concurrent use.
type Session struct {
	opts   options
	path   string
	state  State
	logger *slog.Logger

	handle *deviceHandle
	caps   *v4l2.Capability
	format CaptureFormat
	pool   *bufferPool
	poller *FramePoller

	frames   uint64
	timeouts uint64
}

// Open opens the device at path.
func Open(path string, opts ...Option) (*Session, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger
	if logger == nil {
		logger = logging.GetLogger("capture")
	}

	s := &Session{
		opts:   o,
		path:   path,
		logger: logger.With("device", path),
	}

	h, err := openHandle(path, o.opener, s.logger)
	if err != nil {
		s.fail(err)
		return nil, err
	}
	s.handle = h
	s.poller = NewFramePoller(h.drv, o.pollTimeout)
	s.poller.OnTimeout = s.onPollTimeout
	s.setState(Opened)
	return s, nil
}

// Path returns the device path.
func (s *Session) Path() string { return s.path }

// State returns the current lifecycle state.
func (s *Session) State() State { return s.state }

// Format returns the negotiated format.
func (s *Session) Format() CaptureFormat { return s.format }

// FrameSize returns the negotiated image size in bytes, or 0 before
// Configure.
func (s *Session) FrameSize() int {
	if s.state < Formatted {
		return 0
	}
	return s.format.FrameSize()
}

// Buffers returns the number of mapped buffers.
func (s *Session) Buffers() int {
	if s.pool == nil {
		return 0
	}
	return s.pool.live()
}

// Frames returns the number of frames dequeued so far.
func (s *Session) Frames() uint64 { return s.frames }

// Timeouts returns the number of readiness waits that expired.
func (s *Session) Timeouts() uint64 { return s.timeouts }

// Configure validates the device, negotiates the format and maps the
// buffer pool. On failure the session is closed.
func (s *Session) Configure(req FormatRequest) (CaptureFormat, error) {
	if s.state != Opened {
		return CaptureFormat{}, s.wrongState("configure")
	}
	format, err := s.configure(req)
	if err != nil {
		s.fail(err)
		_ = s.teardown()
		return CaptureFormat{}, err
	}
	return format, nil
}

func (s *Session) configure(req FormatRequest) (CaptureFormat, error) {
	drv := s.handle.drv

	caps, err := queryCapabilities(drv)
	if err != nil {
		return CaptureFormat{}, err
	}
	s.caps = &caps
	if !caps.CanStream() {
		s.logger.Warn("Device does not advertise streaming I/O", "card", caps.Card)
	}

	crop, err := queryCropCapabilities(drv)
	if err != nil {
		return CaptureFormat{}, err
	}
	if err := applyCrop(drv, crop, s.logger); err != nil {
		return CaptureFormat{}, err
	}

	format, err := negotiateFormat(drv, req, s.opts.defaultFormat, s.logger)
	if err != nil {
		return CaptureFormat{}, err
	}
	s.format = format
	s.setState(Formatted)

	pool, err := allocateBuffers(drv, s.opts.bufferCount, s.logger)
	if err != nil {
		return CaptureFormat{}, err
	}
	s.pool = pool
	s.setState(BuffersReady)

	n := format.Negotiated
	s.logger.Info("Capture configured",
		"format", n.PixelFormat.String(),
		"width", n.Width,
		"height", n.Height,
		"bytes_per_line", n.BytesPerLine,
		"frame_size", n.SizeImage,
		"verified", format.Verified,
		"buffers", pool.Len())
	return format, nil
}

// Start queues every buffer and turns streaming on. On failure the
// session is closed.
func (s *Session) Start() error {
	if s.state != BuffersReady {
		return s.wrongState("start")
	}

	for i := range s.pool.buffers {
		if err := s.enqueue(&s.pool.buffers[i], startQueueCodes); err != nil {
			s.fail(err)
			_ = s.teardown()
			return err
		}
	}

	if err := s.handle.drv.StreamOn(); err != nil {
		e := NewError(StreamingStartFailed, "stream on", err)
		s.fail(e)
		_ = s.teardown()
		return e
	}
	s.setState(Streaming)
	return nil
}

// enqueue hands a buffer to the driver, retrying transient failures.
func (s *Session) enqueue(b *MappedBuffer, codes errnoCodes) error {
	policy := s.opts.retry
	policy.OnRetry = func(attempt int, err error) {
		s.logger.Debug("Retrying buffer enqueue", "index", b.Index, "attempt", attempt, "error", err)
		s.publish(events.EnqueueRetryEvent{
			DevicePath: s.path,
			Index:      b.Index,
			Attempt:    attempt,
			Error:      err.Error(),
			Timestamp:  now(),
		})
	}

	attempts, err := policy.Do(func() error {
		return s.handle.drv.Queue(b.Index)
	})
	if err != nil {
		op := fmt.Sprintf("queue buffer %d", b.Index)
		if policy.Exhausted(err) {
			return NewError(BufferQueueingFailed, op, fmt.Errorf("gave up after %d attempts: %w", attempts, err))
		}
		return classify(op, err, codes, BufferQueueingFailed)
	}
	b.owner = OwnerKernel
	return nil
}

// Next waits for one filled buffer, lends it to fn and queues it again,
// whatever fn returns.
func (s *Session) Next(ctx context.Context, fn func(Frame) error) error {
	if s.state != Streaming {
		return s.wrongState("acquire")
	}
	if fn == nil {
		return NewError(InvalidArguments, "acquire", errors.New("nil frame handler"))
	}

	if err := s.poller.Wait(ctx); err != nil {
		return err
	}

	info, err := s.handle.drv.Dequeue()
	if err != nil {
		return NewError(BufferDequeueFailed, "dequeue buffer", err)
	}
	b := s.pool.Buffer(info.Index)
	if b == nil || b.owner != OwnerKernel {
		return NewError(InvalidStatus, fmt.Sprintf("dequeue buffer %d", info.Index), errors.New("buffer was not queued"))
	}
	b.owner = OwnerApplication

	frame := Frame{
		Index:    info.Index,
		Sequence: info.Sequence,
		Data:     b.data[:s.frameBytes(b, info)],
	}
	fnErr := fn(frame)

	if err := s.enqueue(b, nil); err != nil {
		return err
	}

	s.frames++
	s.logger.Debug("Frame captured", "index", frame.Index, "sequence", frame.Sequence, "bytes", len(frame.Data))
	s.publish(events.FrameCapturedEvent{
		DevicePath: s.path,
		Index:      frame.Index,
		Sequence:   frame.Sequence,
		Bytes:      len(frame.Data),
		Timestamp:  now(),
	})
	return fnErr
}

// frameBytes is the number of valid bytes in a dequeued buffer.
func (s *Session) frameBytes(b *MappedBuffer, info v4l2.BufferInfo) int {
	n := int(info.BytesUsed)
	if n > 0 && n <= len(b.data) {
		return n
	}
	if size := s.format.FrameSize(); size > 0 && size <= len(b.data) {
		return size
	}
	return len(b.data)
}

// Acquire copies one frame into dst and returns the number of bytes
// written.
func (s *Session) Acquire(ctx context.Context, dst []byte) (int, error) {
	var n int
	err := s.Next(ctx, func(f Frame) error {
		if len(dst) < len(f.Data) {
			return NewError(InvalidArguments, "acquire", fmt.Errorf("destination holds %d of %d bytes", len(dst), len(f.Data)))
		}
		n = copy(dst, f.Data)
		return nil
	})
	return n, err
}

// Capture hands count frames to fn and stops streaming when done. Only
// successfully dequeued frames count toward count. The first error ends
// the loop.
func (s *Session) Capture(ctx context.Context, count int, fn func(i int, f Frame) error) error {
	if count < 0 || fn == nil {
		return NewError(InvalidArguments, "capture", fmt.Errorf("count %d", count))
	}
	if s.state != Streaming {
		return s.wrongState("capture")
	}
	defer s.Stop()

	for i := 0; i < count; i++ {
		err := s.Next(ctx, func(f Frame) error {
			return fn(i, f)
		})
		if err != nil {
			s.fail(err)
			return err
		}
	}
	return nil
}

// Stop turns streaming off. A driver failure is logged, not returned.
func (s *Session) Stop() {
	if s.state != Streaming {
		return
	}
	if err := s.handle.drv.StreamOff(); err != nil {
		s.logger.Warn("Failed to stop streaming", "error", err)
	}
	for i := range s.pool.buffers {
		s.pool.buffers[i].owner = OwnerApplication
	}
	s.setState(BuffersReady)
}

// Close stops streaming, unmaps the buffers and closes the device. It is
// safe to call more than once.
func (s *Session) Close() error {
	if s.state == Closed {
		return nil
	}
	return s.teardown()
}

func (s *Session) teardown() error {
	s.Stop()
	s.pool.release()
	err := s.handle.release()
	s.setState(Closed)
	return err
}

func (s *Session) wrongState(op string) error {
	return NewError(InvalidStatus, op, fmt.Errorf("session is %s", s.state))
}

func (s *Session) setState(to State) {
	from := s.state
	if from == to {
		return
	}
	s.state = to
	s.logger.Debug("Session state changed", "from", from.String(), "to", to.String())
	s.publish(events.SessionStateChangedEvent{
		DevicePath: s.path,
		From:       from.String(),
		To:         to.String(),
		Timestamp:  now(),
	})
}

func (s *Session) onPollTimeout() {
	s.timeouts++
	s.publish(events.PollTimeoutEvent{
		DevicePath: s.path,
		Timestamp:  now(),
	})
}

func (s *Session) fail(err error) {
	reason := "UNCLASSIFIED"
	if code, ok := CodeOf(err); ok {
		reason = code.String()
	}
	s.publish(events.CaptureFailedEvent{
		DevicePath: s.path,
		Code:       ExitCode(err),
		Reason:     reason,
		Error:      err.Error(),
		Timestamp:  now(),
	})
}

func (s *Session) publish(ev events.Event) {
	if s.opts.bus != nil {
		s.opts.bus.Publish(ev)
	}
}

func now() string {
	return time.Now().Format(time.RFC3339)
}
