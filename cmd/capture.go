package cmd

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/smazurov/uvccap/internal/capture"
	"github.com/smazurov/uvccap/internal/devices"
	"github.com/smazurov/uvccap/internal/events"
	"github.com/smazurov/uvccap/internal/frames"
	"github.com/smazurov/uvccap/internal/logging"
	"github.com/smazurov/uvccap/internal/metrics"
)

// metricsSettleTimeout bounds how long Run waits for in-flight events
// before writing the metrics textfile.
const metricsSettleTimeout = 2 * time.Second

// captureResult counts what a run produced.
type captureResult struct {
	written int
}

// Run captures opts.Count frames from opts.Device into numbered files.
// Streaming is stopped and the device closed on every path.
func Run(ctx context.Context, opts *Options) error {
	return run(ctx, opts, nil)
}

// run takes an optional opener so the pipeline can be driven without a
// real device.
func run(ctx context.Context, opts *Options, open capture.Opener) error {
	if err := opts.Validate(); err != nil {
		return err
	}
	logger := logging.GetLogger("main")

	bus := events.New()
	recorder := metrics.NewRecorder()
	recorder.Subscribe(bus)
	defer recorder.Unsubscribe()

	if opts.MetricsListen != "" {
		stop, err := serveMetrics(opts.MetricsListen, recorder)
		if err != nil {
			return capture.NewError(capture.IoError, "serve metrics", err)
		}
		defer stop()
	}

	result, err := captureFrames(ctx, opts, bus, open)

	if opts.MetricsTextfile != "" {
		if !recorder.Settle(metricsSettleTimeout) {
			logging.GetLogger("metrics").Warn("Metrics textfile may miss late events")
		}
		if writeErr := recorder.WriteTextfile(opts.MetricsTextfile); writeErr != nil {
			logging.GetLogger("metrics").Error("Failed to write metrics textfile", "path", opts.MetricsTextfile, "error", writeErr)
			if err == nil {
				err = capture.NewError(capture.FileCreationFailed, "write metrics", writeErr)
			}
		}
	}

	if err != nil {
		return err
	}
	logger.Info("Capture complete", "frames", result.written, "prefix", opts.Prefix)
	return nil
}

func captureFrames(ctx context.Context, opts *Options, bus *events.Bus, open capture.Opener) (result captureResult, err error) {
	path, err := locateDevice(ctx, opts, bus)
	if err != nil {
		return result, err
	}

	writer, err := frames.NewWriter(opts.Prefix, bus)
	if err != nil {
		return result, err
	}

	sessionOpts := append(opts.captureOptions(), capture.WithEventBus(bus))
	if open != nil {
		sessionOpts = append(sessionOpts, capture.WithOpener(open))
	}
	session, err := capture.Open(path, sessionOpts...)
	if err != nil {
		return result, err
	}
	defer func() {
		if closeErr := session.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	if _, err = session.Configure(capture.FormatRequest{
		Width:       uint32(opts.Width),
		Height:      uint32(opts.Height),
		FormatIndex: opts.FormatIndex,
	}); err != nil {
		return result, err
	}

	if err = session.Start(); err != nil {
		return result, err
	}

	err = session.Capture(ctx, opts.Count, func(i int, f capture.Frame) error {
		if writeErr := writer.Write(i, f.Data); writeErr != nil {
			return writeErr
		}
		result.written++
		return nil
	})
	return result, err
}

// locateDevice resolves opts.Device to a node path, waiting for it first
// when asked to.
func locateDevice(ctx context.Context, opts *Options, bus *events.Bus) (string, error) {
	if opts.Wait {
		node := devices.NodePath(opts.Device)
		if err := devices.WaitForDevice(ctx, node, opts.waitTimeout(), bus); err != nil {
			return "", capture.NewError(capture.DeviceOpenFailed, "wait for device", err)
		}
	}

	path, err := devices.Resolve(opts.Device)
	if err != nil {
		return "", capture.NewError(capture.DeviceOpenFailed, "resolve device", err)
	}
	return path, nil
}

func serveMetrics(addr string, recorder *metrics.Recorder) (func(), error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", recorder.HTTPHandler())
	server := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	logger := logging.GetLogger("metrics")
	go func() {
		if serveErr := server.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			logger.Error("Metrics server failed", "error", serveErr)
		}
	}()
	logger.Info("Serving metrics", "addr", listener.Addr().String())

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logger.Warn("Failed to stop metrics server", "error", err)
		}
	}, nil
}
