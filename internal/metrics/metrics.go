// Package metrics turns capture events into Prometheus metrics.
package metrics

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/smazurov/uvccap/internal/events"
)

const namespace = "uvccap"

// stateNames lists every session state so the state gauge always carries
// a full set of series.
var stateNames = []string{"closed", "opened", "formatted", "buffers_ready", "streaming"}

// Recorder owns one registry and the metrics fed from an event bus.
type Recorder struct {
	registry *prometheus.Registry

	framesCaptured *prometheus.CounterVec
	frameBytes     *prometheus.CounterVec
	lastSequence   *prometheus.GaugeVec
	pollTimeouts   *prometheus.CounterVec
	enqueueRetries *prometheus.CounterVec
	failures       *prometheus.CounterVec
	sessionState   *prometheus.GaugeVec
	framesWritten  prometheus.Counter
	bytesWritten   prometheus.Counter
	discoveries    *prometheus.CounterVec

	handled atomic.Uint64
	subs    []subscription
}

// subscription remembers where a bus stood when the recorder attached.
type subscription struct {
	bus      *events.Bus
	baseline uint64
	unsubs   []func()
}

// NewRecorder creates a Recorder with its own registry.
func NewRecorder() *Recorder {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Recorder{
		registry: registry,
		framesCaptured: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "capture",
			Name:      "frames_total",
			Help:      "Frames dequeued from the device",
		}, []string{"device"}),
		frameBytes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "capture",
			Name:      "frame_bytes_total",
			Help:      "Bytes handed out in captured frames",
		}, []string{"device"}),
		lastSequence: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "capture",
			Name:      "last_sequence",
			Help:      "Driver sequence number of the last captured frame",
		}, []string{"device"}),
		pollTimeouts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "capture",
			Name:      "poll_timeouts_total",
			Help:      "Readiness waits that expired without a frame",
		}, []string{"device"}),
		enqueueRetries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "capture",
			Name:      "enqueue_retries_total",
			Help:      "Transient buffer enqueue failures that were retried",
		}, []string{"device"}),
		failures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "capture",
			Name:      "failures_total",
			Help:      "Capture failures by error code",
		}, []string{"device", "reason"}),
		sessionState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "state",
			Help:      "Current session state (1 for the active state)",
		}, []string{"device", "state"}),
		framesWritten: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "frames",
			Name:      "written_total",
			Help:      "Frame files written",
		}),
		bytesWritten: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "frames",
			Name:      "written_bytes_total",
			Help:      "Bytes written to frame files",
		}),
		discoveries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "devices",
			Name:      "discoveries_total",
			Help:      "Device nodes that appeared while waiting",
		}, []string{"action"}),
	}
}

// Registry returns the registry backing the recorder.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Subscribe feeds the recorder from every event type of bus until
// Unsubscribe is called. Settle is exact only when Subscribe happens
// before anything is published on bus.
func (r *Recorder) Subscribe(bus *events.Bus) {
	sub := subscription{bus: bus}
	sub.unsubs = []func(){
		bus.Subscribe(counted(r, r.onStateChanged)),
		bus.Subscribe(counted(r, r.onFrameCaptured)),
		bus.Subscribe(counted(r, r.onPollTimeout)),
		bus.Subscribe(counted(r, r.onEnqueueRetry)),
		bus.Subscribe(counted(r, r.onCaptureFailed)),
		bus.Subscribe(counted(r, r.onFrameWritten)),
		bus.Subscribe(counted(r, r.onDeviceDiscovery)),
	}
	sub.baseline = bus.Published()
	r.subs = append(r.subs, sub)
}

// counted records e and then marks it handled.
func counted[T events.Event](r *Recorder, fn func(T)) func(T) {
	return func(e T) {
		fn(e)
		r.handled.Add(1)
	}
}

// Unsubscribe detaches the recorder from every bus it subscribed to.
func (r *Recorder) Unsubscribe() {
	for _, sub := range r.subs {
		for _, unsub := range sub.unsubs {
			unsub()
		}
	}
	r.subs = nil
}

// Settle waits until every event published on the subscribed buses up to
// now has been recorded. Bus delivery is asynchronous, so exporters call
// it after the publishers are done.
func (r *Recorder) Settle(timeout time.Duration) bool {
	var target uint64
	for _, sub := range r.subs {
		target += sub.bus.Published() - sub.baseline
	}

	deadline := time.Now().Add(timeout)
	for {
		if r.handled.Load() >= target {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// WriteTextfile writes every metric in the node-exporter textfile format.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}

func (r *Recorder) onStateChanged(e events.SessionStateChangedEvent) {
	for _, state := range stateNames {
		value := 0.0
		if state == e.To {
			value = 1
		}
		r.sessionState.WithLabelValues(e.DevicePath, state).Set(value)
	}
}

func (r *Recorder) onFrameCaptured(e events.FrameCapturedEvent) {
	r.framesCaptured.WithLabelValues(e.DevicePath).Inc()
	r.frameBytes.WithLabelValues(e.DevicePath).Add(float64(e.Bytes))
	r.lastSequence.WithLabelValues(e.DevicePath).Set(float64(e.Sequence))
}

func (r *Recorder) onPollTimeout(e events.PollTimeoutEvent) {
	r.pollTimeouts.WithLabelValues(e.DevicePath).Inc()
}

func (r *Recorder) onEnqueueRetry(e events.EnqueueRetryEvent) {
	r.enqueueRetries.WithLabelValues(e.DevicePath).Inc()
}

func (r *Recorder) onCaptureFailed(e events.CaptureFailedEvent) {
	r.failures.WithLabelValues(e.DevicePath, e.Reason).Inc()
}

func (r *Recorder) onFrameWritten(e events.FrameWrittenEvent) {
	r.framesWritten.Inc()
	r.bytesWritten.Add(float64(e.Bytes))
}

func (r *Recorder) onDeviceDiscovery(e events.DeviceDiscoveryEvent) {
	r.discoveries.WithLabelValues(e.Action).Inc()
}
