// Package devices locates V4L2 capture nodes: it lists them, resolves
// stable IDs to paths and waits for hotplugged nodes to appear.
package devices

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/smazurov/uvccap/pkg/linuxav/v4l2"
)

var (
	// ErrNotFound is returned when a device reference matches no node.
	ErrNotFound = errors.New("device not found")
	// ErrUnsupported is returned where V4L2 is not available.
	ErrUnsupported = errors.New("V4L2 devices are only available on Linux")
)

// v4lDir holds the udev-maintained by-id and by-path symlink trees.
var v4lDir = "/dev/v4l"

// lookupByID falls back to scanning sysfs for synthetic IDs.
var lookupByID = findPathByID

// Info describes one capture node.
type Info struct {
	Path  string   `json:"path"`
	Name  string   `json:"name"`
	ID    string   `json:"id"`
	Flags []string `json:"flags"`
}

func fromDeviceInfo(d v4l2.DeviceInfo) Info {
	capability := v4l2.Capability{Capabilities: d.Caps}
	return Info{
		Path:  d.DevicePath,
		Name:  d.DeviceName,
		ID:    d.DeviceID,
		Flags: capability.Flags(),
	}
}

// Resolve turns a device reference into a path that can be opened.
// Absolute paths are returned unchanged; anything else is looked up as a
// stable ID under /dev/v4l/by-id and /dev/v4l/by-path, then against the
// IDs reported by List.
func Resolve(ref string) (string, error) {
	if ref == "" {
		return "", fmt.Errorf("empty device reference: %w", ErrNotFound)
	}
	if filepath.IsAbs(ref) {
		return ref, nil
	}
	if strings.ContainsRune(ref, os.PathSeparator) {
		return "", fmt.Errorf("invalid device ID %q: %w", ref, ErrNotFound)
	}

	for _, tree := range []string{"by-id", "by-path"} {
		candidate := filepath.Join(v4lDir, tree, ref)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	path, err := lookupByID(ref)
	if err != nil {
		return "", fmt.Errorf("no stable symlink found for device ID %s: %w", ref, err)
	}
	return path, nil
}

// NodePath is where the node for ref will appear once plugged in. USB
// cameras get a by-id link, everything else is expected under by-path.
func NodePath(ref string) string {
	if filepath.IsAbs(ref) {
		return ref
	}
	if strings.HasPrefix(ref, "usb-") {
		return filepath.Join(v4lDir, "by-id", ref)
	}
	return filepath.Join(v4lDir, "by-path", ref)
}
