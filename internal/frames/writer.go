// Package frames persists captured frames, one file per frame named
// "<prefix>.<index>".
package frames

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/smazurov/uvccap/internal/capture"
	"github.com/smazurov/uvccap/internal/events"
	"github.com/smazurov/uvccap/internal/logging"
)

// Writer writes raw frames next to a common prefix.
type Writer struct {
	prefix string
	bus    *events.Bus
	logger *slog.Logger
}

// NewWriter creates the prefix's directory if needed. bus may be nil.
func NewWriter(prefix string, bus *events.Bus) (*Writer, error) {
	if prefix == "" {
		return nil, capture.NewError(capture.InvalidArguments, "frame writer", errors.New("empty file prefix"))
	}

	outputDir := filepath.Dir(prefix)
	if outputDir != "." {
		if err := os.MkdirAll(outputDir, 0o755); err != nil {
			return nil, createError("create directory "+outputDir, err)
		}
	}

	return &Writer{
		prefix: prefix,
		bus:    bus,
		logger: logging.GetLogger("frames"),
	}, nil
}

// Path returns the file name for a zero-based frame index.
func (w *Writer) Path(index int) string {
	return fmt.Sprintf("%s.%d", w.prefix, index)
}

// Write stores one frame, replacing any existing file.
func (w *Writer) Write(index int, data []byte) error {
	path := w.Path(index)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return createError("create "+path, err)
	}

	n, err := f.Write(data)
	if err == nil && n < len(data) {
		err = io.ErrShortWrite
	}
	if err != nil {
		_ = f.Close()
		return capture.NewError(capture.IoError, "write "+path, err)
	}
	if err := f.Close(); err != nil {
		return capture.NewError(capture.IoError, "close "+path, err)
	}

	w.logger.Debug("Frame written", "path", path, "bytes", n)
	if w.bus != nil {
		w.bus.Publish(events.FrameWrittenEvent{
			Path:      path,
			Bytes:     n,
			Timestamp: time.Now().Format(time.RFC3339),
		})
	}
	return nil
}

func createError(op string, err error) error {
	if errors.Is(err, os.ErrPermission) {
		return capture.NewError(capture.PermissionDenied, op, err)
	}
	return capture.NewError(capture.FileCreationFailed, op, err)
}
