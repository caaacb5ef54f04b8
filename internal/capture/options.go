package capture

import (
	"log/slog"
	"time"

	"github.com/smazurov/uvccap/internal/events"
	"github.com/smazurov/uvccap/pkg/linuxav/v4l2"
)

// DefaultBufferCount is the number of buffers requested from the driver.
const DefaultBufferCount = 2

// Option configures a Session.
type Option func(*options)

type options struct {
	bufferCount   uint32
	pollTimeout   time.Duration
	retry         RetryPolicy
	defaultFormat v4l2.FourCC
	logger        *slog.Logger
	bus           *events.Bus
	opener        Opener
}

func defaultOptions() options {
	return options{
		bufferCount:   DefaultBufferCount,
		pollTimeout:   DefaultPollTimeout,
		retry:         DefaultEnqueueRetry(),
		defaultFormat: SupportedFormats[DefaultFormatIndex],
		opener:        openDevice,
	}
}

// WithBufferCount sets how many buffers to request. The driver may grant
// fewer.
func WithBufferCount(n uint32) Option {
	return func(o *options) {
		if n > 0 {
			o.bufferCount = n
		}
	}
}

// WithPollTimeout sets the per-wait readiness timeout.
func WithPollTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.pollTimeout = d
		}
	}
}

// WithEnqueueRetry bounds the retries of transient enqueue failures.
func WithEnqueueRetry(attempts int, backoff time.Duration) Option {
	return func(o *options) {
		if attempts > 0 {
			o.retry.MaxAttempts = attempts
		}
		if backoff >= 0 {
			o.retry.Backoff = backoff
		}
	}
}

// WithDefaultFormat sets the format used for out-of-range format indexes.
func WithDefaultFormat(f v4l2.FourCC) Option {
	return func(o *options) {
		if !f.IsZero() {
			o.defaultFormat = f
		}
	}
}

// WithLogger overrides the module logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithEventBus publishes session events to bus.
func WithEventBus(bus *events.Bus) Option {
	return func(o *options) { o.bus = bus }
}

// WithOpener replaces the device opener.
func WithOpener(open Opener) Option {
	return func(o *options) {
		if open != nil {
			o.opener = open
		}
	}
}
