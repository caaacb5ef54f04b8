package events

// Event type constants for kelindar/event.
const (
	TypeSessionStateChanged uint32 = iota + 1
	TypeFrameCaptured
	TypePollTimeout
	TypeEnqueueRetry
	TypeCaptureFailed
	TypeDeviceDiscovery
	TypeFrameWritten
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// SessionStateChangedEvent is published on every capture session state
// transition.
type SessionStateChangedEvent struct {
	DevicePath string `json:"device_path"`
	From       string `json:"from"`
	To         string `json:"to"`
	Timestamp  string `json:"timestamp"`
}

// Type returns the event type identifier for SessionStateChangedEvent.
func (e SessionStateChangedEvent) Type() uint32 { return TypeSessionStateChanged }

// FrameCapturedEvent is published after a frame was dequeued, handed out
// and queued again.
type FrameCapturedEvent struct {
	DevicePath string `json:"device_path"`
	Index      uint32 `json:"index"`
	Sequence   uint32 `json:"sequence"`
	Bytes      int    `json:"bytes"`
	Timestamp  string `json:"timestamp"`
}

// Type returns the event type identifier for FrameCapturedEvent.
func (e FrameCapturedEvent) Type() uint32 { return TypeFrameCaptured }

// PollTimeoutEvent is published when a readiness wait expired.
type PollTimeoutEvent struct {
	DevicePath string `json:"device_path"`
	Timestamp  string `json:"timestamp"`
}

// Type returns the event type identifier for PollTimeoutEvent.
func (e PollTimeoutEvent) Type() uint32 { return TypePollTimeout }

// EnqueueRetryEvent is published before a transient enqueue failure is
// retried.
type EnqueueRetryEvent struct {
	DevicePath string `json:"device_path"`
	Index      uint32 `json:"index"`
	Attempt    int    `json:"attempt"`
	Error      string `json:"error"`
	Timestamp  string `json:"timestamp"`
}

// Type returns the event type identifier for EnqueueRetryEvent.
func (e EnqueueRetryEvent) Type() uint32 { return TypeEnqueueRetry }

// CaptureFailedEvent is published when a session operation fails.
type CaptureFailedEvent struct {
	DevicePath string `json:"device_path"`
	Code       int    `json:"code"`
	Reason     string `json:"reason"`
	Error      string `json:"error"`
	Timestamp  string `json:"timestamp"`
}

// Type returns the event type identifier for CaptureFailedEvent.
func (e CaptureFailedEvent) Type() uint32 { return TypeCaptureFailed }

// DeviceDiscoveryEvent is published when a waited-for device node appears.
type DeviceDiscoveryEvent struct {
	DevicePath string `json:"device_path"`
	Action     string `json:"action"`
	Timestamp  string `json:"timestamp"`
}

// Type returns the event type identifier for DeviceDiscoveryEvent.
func (e DeviceDiscoveryEvent) Type() uint32 { return TypeDeviceDiscovery }

// FrameWrittenEvent is published after a frame file was persisted.
type FrameWrittenEvent struct {
	Path      string `json:"path"`
	Bytes     int    `json:"bytes"`
	Timestamp string `json:"timestamp"`
}

// Type returns the event type identifier for FrameWrittenEvent.
func (e FrameWrittenEvent) Type() uint32 { return TypeFrameWritten }
