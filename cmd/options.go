// Package cmd holds the uvccap command line: the capture run and its
// subcommands.
package cmd

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/spf13/cobra"

	"github.com/smazurov/uvccap/internal/capture"
	"github.com/smazurov/uvccap/internal/config"
	"github.com/smazurov/uvccap/internal/logging"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"uvccap.toml"`

	// Capture settings
	Device             string `help:"Video device path or stable ID" short:"d" default:"/dev/video0" toml:"capture.device" env:"DEVICE"`
	Width              int    `help:"Width of capture image" short:"w" default:"640" toml:"capture.width" env:"WIDTH"`
	Height             int    `help:"Height of capture image" short:"h" default:"480" toml:"capture.height" env:"HEIGHT"`
	FormatIndex        int    `help:"Pixel format index (see 'uvccap info')" short:"f" default:"3" toml:"capture.format_index" env:"FORMAT_INDEX"`
	DefaultFormatIndex int    `help:"Format index used when -f is out of range" default:"3" toml:"capture.default_format_index" env:"DEFAULT_FORMAT_INDEX"`
	Count              int    `help:"Number of frames to capture" short:"n" default:"1" toml:"capture.count" env:"COUNT"`
	Prefix             string `help:"Prefix of saved file names" short:"p" default:"video.cap" toml:"output.prefix" env:"PREFIX"`

	// Device protocol tuning
	Buffers          int `help:"Number of mmap buffers to request" default:"2" toml:"device.buffers" env:"BUFFERS"`
	PollTimeoutMs    int `help:"Readiness wait per poll in milliseconds" default:"40" toml:"device.poll_timeout_ms" env:"POLL_TIMEOUT_MS"`
	EnqueueAttempts  int `help:"Attempts for transient enqueue failures" default:"5" toml:"device.enqueue_attempts" env:"ENQUEUE_ATTEMPTS"`
	EnqueueBackoffMs int `help:"Pause between enqueue attempts in milliseconds" default:"10" toml:"device.enqueue_backoff_ms" env:"ENQUEUE_BACKOFF_MS"`

	// Hotplug
	Wait          bool `help:"Wait for the device node to appear" default:"false" toml:"device.wait" env:"WAIT"`
	WaitTimeoutMs int  `help:"Give up waiting after this many milliseconds (0 waits forever)" default:"0" toml:"device.wait_timeout_ms" env:"WAIT_TIMEOUT_MS"`

	// Metrics settings
	MetricsTextfile string `help:"Write capture metrics to this node-exporter textfile" default:"" toml:"metrics.textfile" env:"METRICS_TEXTFILE"`
	MetricsListen   string `help:"Serve metrics over HTTP on this address while capturing" default:"" toml:"metrics.listen" env:"METRICS_LISTEN"`

	// Logging settings
	LoggingLevel   string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat  string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingCapture string `help:"Capture logging level" default:"info" toml:"logging.capture" env:"LOGGING_CAPTURE"`
	LoggingDevices string `help:"Devices logging level" default:"info" toml:"logging.devices" env:"LOGGING_DEVICES"`
	LoggingFrames  string `help:"Frame writer logging level" default:"info" toml:"logging.frames" env:"LOGGING_FRAMES"`
	LoggingMetrics string `help:"Metrics logging level" default:"info" toml:"logging.metrics" env:"LOGGING_METRICS"`
}

// Setup loads the config file and environment on top of opts and
// initializes logging. Flags set on cmd keep their CLI values.
func Setup(opts *Options, cmd *cobra.Command) error {
	loadErr := config.LoadConfig(opts, cmd)

	// Modules without a dedicated option come from [logging.modules].
	modules := config.LoadLoggingConfig(opts.Config).Modules
	modules["capture"] = opts.LoggingCapture
	modules["devices"] = opts.LoggingDevices
	modules["frames"] = opts.LoggingFrames
	modules["metrics"] = opts.LoggingMetrics

	logging.Initialize(logging.Config{
		Level:   opts.LoggingLevel,
		Format:  opts.LoggingFormat,
		Modules: modules,
	})

	if loadErr != nil {
		return capture.NewError(capture.InvalidArguments, "load config", loadErr)
	}
	return nil
}

// Validate checks the values the device layer cannot check itself.
func (o *Options) Validate() error {
	var errs []error
	if o.Device == "" {
		errs = append(errs, errors.New("device must not be empty"))
	}
	if o.Width <= 0 || o.Height <= 0 || int64(o.Width) > math.MaxUint32 || int64(o.Height) > math.MaxUint32 {
		errs = append(errs, fmt.Errorf("invalid image size %dx%d", o.Width, o.Height))
	}
	if o.DefaultFormatIndex < 0 || o.DefaultFormatIndex >= len(capture.SupportedFormats) {
		errs = append(errs, fmt.Errorf("default pixel format (%d) is not supported", o.DefaultFormatIndex))
	}
	if o.FormatIndex >= len(capture.SupportedFormats) {
		errs = append(errs, fmt.Errorf("pixel format (%d) is not supported", o.FormatIndex))
	}
	if o.Count < 0 {
		errs = append(errs, fmt.Errorf("invalid frame count %d", o.Count))
	}
	if o.Prefix == "" {
		errs = append(errs, errors.New("prefix must not be empty"))
	}
	if o.Buffers < capture.MinBuffers || int64(o.Buffers) > math.MaxUint32 {
		errs = append(errs, fmt.Errorf("at least %d buffers are required, got %d", capture.MinBuffers, o.Buffers))
	}
	if o.PollTimeoutMs <= 0 || o.EnqueueAttempts <= 0 || o.EnqueueBackoffMs < 0 || o.WaitTimeoutMs < 0 {
		errs = append(errs, errors.New("timeouts and attempts must be positive"))
	}
	if err := errors.Join(errs...); err != nil {
		return capture.NewError(capture.InvalidArguments, "validate options", err)
	}
	return nil
}

// captureOptions maps the CLI settings onto session options.
func (o *Options) captureOptions() []capture.Option {
	return []capture.Option{
		capture.WithBufferCount(uint32(o.Buffers)),
		capture.WithPollTimeout(time.Duration(o.PollTimeoutMs) * time.Millisecond),
		capture.WithEnqueueRetry(o.EnqueueAttempts, time.Duration(o.EnqueueBackoffMs)*time.Millisecond),
		capture.WithDefaultFormat(capture.SupportedFormats[o.DefaultFormatIndex]),
	}
}

func (o *Options) waitTimeout() time.Duration {
	return time.Duration(o.WaitTimeoutMs) * time.Millisecond
}
