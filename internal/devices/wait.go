package devices

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/smazurov/uvccap/internal/events"
	"github.com/smazurov/uvccap/internal/logging"
)

// ErrWaitTimeout is returned when the node does not appear in time.
var ErrWaitTimeout = errors.New("timed out waiting for device")

// WaitForDevice blocks until path exists, the timeout expires or ctx is
// done. A timeout of zero waits until ctx is done. The nearest existing
// ancestor directory is watched, so nodes under a not yet created
// /dev/v4l/by-id are found too. bus may be nil.
func WaitForDevice(ctx context.Context, path string, timeout time.Duration, bus *events.Bus) error {
	if path == "" {
		return fmt.Errorf("empty device path: %w", ErrNotFound)
	}
	path = filepath.Clean(path)
	logger := logging.GetLogger("devices").With("device", path)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watchNearest(watcher, path); err != nil {
		return err
	}

	// The node may have appeared before the watch was armed.
	if exists(path) {
		return nil
	}

	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	logger.Info("Waiting for device", "timeout", timeout)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-deadline:
			return fmt.Errorf("%w: %s after %s", ErrWaitTimeout, path, timeout)

		case event, ok := <-watcher.Events:
			if !ok {
				return errors.New("device watcher closed")
			}
			if !event.Has(fsnotify.Create) {
				continue
			}
			logger.Debug("Watched directory changed", "name", event.Name)

			if isAncestor(filepath.Clean(event.Name), path) {
				if err := watchNearest(watcher, path); err != nil {
					return err
				}
			}
			if exists(path) {
				logger.Info("Device appeared")
				if bus != nil {
					bus.Publish(events.DeviceDiscoveryEvent{
						DevicePath: path,
						Action:     "added",
						Timestamp:  time.Now().Format(time.RFC3339),
					})
				}
				return nil
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return errors.New("device watcher closed")
			}
			return fmt.Errorf("watching %s: %w", path, err)
		}
	}
}

// watchNearest watches the closest existing ancestor directory of path.
func watchNearest(watcher *fsnotify.Watcher, path string) error {
	dir := filepath.Dir(path)
	for {
		err := watcher.Add(dir)
		if err == nil {
			return nil
		}
		parent := filepath.Dir(dir)
		if !errors.Is(err, fs.ErrNotExist) || parent == dir {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		dir = parent
	}
}

func isAncestor(dir, path string) bool {
	return strings.HasPrefix(path, dir+string(os.PathSeparator))
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
