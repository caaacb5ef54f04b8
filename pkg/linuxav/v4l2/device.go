//go:build linux

package v4l2

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// FindDevices finds all V4L2 video capture devices on the system.
func FindDevices() ([]DeviceInfo, error) {
	entries, err := os.ReadDir("/sys/class/video4linux")
	if err != nil {
		if os.IsNotExist(err) {
			return []DeviceInfo{}, nil
		}
		return nil, fmt.Errorf("failed to read video4linux directory: %w", err)
	}

	var devices []DeviceInfo

	for _, entry := range entries {
		devicePath := "/dev/" + entry.Name()

		fd, err := open(devicePath)
		if err != nil {
			slog.With("component", "linuxav").Debug("failed to open video device", "path", devicePath, "error", err)
			continue
		}

		raw := v4l2Capability{}
		if err := ioctl(fd, vidiocQuerycap, unsafe.Pointer(&raw)); err != nil {
			slog.With("component", "linuxav").Debug("failed to query device capabilities", "path", devicePath, "error", err)
			_ = close(fd)
			continue
		}
		_ = close(fd)

		capability := raw.toCapability()
		if !capability.CanCapture() {
			continue
		}

		indexValue := readSysfsInt(filepath.Join("/sys/class/video4linux", entry.Name(), "index"))

		stableID := findStableID(entry.Name(), indexValue)
		if stableID == "" {
			// Fallback: synthetic ID from bus_info + index
			if strings.HasPrefix(capability.BusInfo, "usb-") {
				stableID = fmt.Sprintf("%s-video-index%d", capability.BusInfo, indexValue)
			} else {
				stableID = fmt.Sprintf("platform-%s-video-index%d", capability.BusInfo, indexValue)
			}
		}

		devices = append(devices, DeviceInfo{
			DevicePath: devicePath,
			DeviceName: capability.Card,
			DeviceID:   stableID,
			Caps:       capability.Effective(),
		})
	}

	return devices, nil
}

// GetDevicePathByID finds the device path for a given stable device ID.
func GetDevicePathByID(deviceID string) (string, error) {
	devices, err := FindDevices()
	if err != nil {
		return "", fmt.Errorf("failed to find devices: %w", err)
	}

	for _, device := range devices {
		if device.DeviceID == deviceID {
			return device.DevicePath, nil
		}
	}

	return "", fmt.Errorf("device with ID %s not found", deviceID)
}

// findStableID looks for a stable ID symlink in /dev/v4l/by-id/
func findStableID(deviceName string, indexValue int) string {
	byIDDir := "/dev/v4l/by-id"
	entries, err := os.ReadDir(byIDDir)
	if err != nil {
		return ""
	}

	expectedSuffix := fmt.Sprintf("-video-index%d", indexValue)

	for _, entry := range entries {
		if entry.Type()&os.ModeSymlink == 0 {
			continue
		}

		target, err := os.Readlink(filepath.Join(byIDDir, entry.Name()))
		if err != nil {
			continue
		}

		if filepath.Base(target) == deviceName && strings.HasSuffix(entry.Name(), expectedSuffix) {
			return entry.Name()
		}
	}

	return ""
}

// readSysfsInt reads an integer value from a sysfs file.
func readSysfsInt(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	val, _ := strconv.Atoi(strings.TrimSpace(string(data)))
	return val
}

// Device is an open V4L2 capture node. Methods map one-to-one onto
// ioctls and return the raw errno on failure.
type Device struct {
	path string
	fd   int
}

// Open opens a device node read-only.
func Open(path string) (*Device, error) {
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, err
	}
	return &Device{path: path, fd: fd}, nil
}

// Path returns the path the device was opened with.
func (d *Device) Path() string { return d.path }

// Close closes the descriptor. It is not retried here.
func (d *Device) Close() error {
	return close(d.fd)
}

// QueryCapability issues VIDIOC_QUERYCAP.
func (d *Device) QueryCapability() (Capability, error) {
	raw := v4l2Capability{}
	if err := ioctl(d.fd, vidiocQuerycap, unsafe.Pointer(&raw)); err != nil {
		return Capability{}, err
	}
	return raw.toCapability(), nil
}

// CropCapability issues VIDIOC_CROPCAP. EINVAL means the driver has no
// cropping support.
func (d *Device) CropCapability() (CropCapability, error) {
	raw := v4l2Cropcap{typ: BufTypeVideoCapture}
	if err := ioctl(d.fd, vidiocCropcap, unsafe.Pointer(&raw)); err != nil {
		return CropCapability{}, err
	}
	return CropCapability{
		Bounds:      raw.bounds.toRect(),
		DefRect:     raw.defrect.toRect(),
		PixelAspect: Fract{Numerator: raw.pixelaspect.numerator, Denominator: raw.pixelaspect.denominator},
	}, nil
}

// EnumFormat issues VIDIOC_ENUM_FMT for one index. EINVAL marks the end
// of the list.
func (d *Device) EnumFormat(index uint32) (FormatDesc, error) {
	raw := v4l2Fmtdesc{index: index, typ: BufTypeVideoCapture}
	if err := ioctl(d.fd, vidiocEnumFmt, unsafe.Pointer(&raw)); err != nil {
		return FormatDesc{}, err
	}
	return FormatDesc{
		Index:       raw.index,
		PixelFormat: FourCCFromUint32(raw.pixelformat),
		Description: cstr(raw.description[:]),
		Flags:       raw.flags,
	}, nil
}

// SetCrop issues VIDIOC_S_CROP.
func (d *Device) SetCrop(r Rect) error {
	raw := v4l2Crop{
		typ: BufTypeVideoCapture,
		c:   v4l2Rect{left: r.Left, top: r.Top, width: r.Width, height: r.Height},
	}
	return ioctl(d.fd, vidiocSCrop, unsafe.Pointer(&raw))
}

// SetFormat issues VIDIOC_S_FMT and returns the format the driver wrote
// back into the request.
func (d *Device) SetFormat(f PixFormat) (PixFormat, error) {
	raw := v4l2Format{typ: BufTypeVideoCapture, pix: fromPixFormat(f)}
	if err := ioctl(d.fd, vidiocSFmt, unsafe.Pointer(&raw)); err != nil {
		return f, err
	}
	return raw.pix.toPixFormat(), nil
}

// GetFormat issues VIDIOC_G_FMT.
func (d *Device) GetFormat() (PixFormat, error) {
	raw := v4l2Format{typ: BufTypeVideoCapture}
	if err := ioctl(d.fd, vidiocGFmt, unsafe.Pointer(&raw)); err != nil {
		return PixFormat{}, err
	}
	return raw.pix.toPixFormat(), nil
}

// RequestBuffers issues VIDIOC_REQBUFS for memory-mapped capture buffers
// and returns the count the driver granted. A count of 0 frees them.
func (d *Device) RequestBuffers(count uint32) (uint32, error) {
	raw := v4l2Requestbuffers{
		count:  count,
		typ:    BufTypeVideoCapture,
		memory: MemoryMMAP,
	}
	if err := ioctl(d.fd, vidiocReqbufs, unsafe.Pointer(&raw)); err != nil {
		return 0, err
	}
	return raw.count, nil
}

// QueryBuffer issues VIDIOC_QUERYBUF.
func (d *Device) QueryBuffer(index uint32) (BufferInfo, error) {
	raw := v4l2Buffer{index: index, typ: BufTypeVideoCapture, memory: MemoryMMAP}
	if err := ioctl(d.fd, vidiocQuerybuf, unsafe.Pointer(&raw)); err != nil {
		return BufferInfo{}, err
	}
	return raw.toBufferInfo(), nil
}

// Map maps a buffer read-only and shared at the offset reported by
// QueryBuffer.
func (d *Device) Map(offset, length uint32) ([]byte, error) {
	return unix.Mmap(d.fd, int64(offset), int(length), unix.PROT_READ, unix.MAP_SHARED)
}

// Unmap releases a mapping returned by Map.
func (d *Device) Unmap(b []byte) error {
	return unix.Munmap(b)
}

// Queue issues VIDIOC_QBUF, handing the buffer to the driver.
func (d *Device) Queue(index uint32) error {
	raw := v4l2Buffer{index: index, typ: BufTypeVideoCapture, memory: MemoryMMAP}
	return ioctl(d.fd, vidiocQbuf, unsafe.Pointer(&raw))
}

// Dequeue issues VIDIOC_DQBUF, taking a filled buffer back from the driver.
func (d *Device) Dequeue() (BufferInfo, error) {
	raw := v4l2Buffer{typ: BufTypeVideoCapture, memory: MemoryMMAP}
	if err := ioctl(d.fd, vidiocDqbuf, unsafe.Pointer(&raw)); err != nil {
		return BufferInfo{}, err
	}
	return raw.toBufferInfo(), nil
}

// StreamOn issues VIDIOC_STREAMON.
func (d *Device) StreamOn() error {
	typ := uint32(BufTypeVideoCapture)
	return ioctl(d.fd, vidiocStreamon, unsafe.Pointer(&typ))
}

// StreamOff issues VIDIOC_STREAMOFF. The driver returns every queued
// buffer to the application.
func (d *Device) StreamOff() error {
	typ := uint32(BufTypeVideoCapture)
	return ioctl(d.fd, vidiocStreamoff, unsafe.Pointer(&typ))
}

// WaitReady waits up to timeout for a filled buffer. It returns false
// with a nil error when the timeout expires.
func (d *Device) WaitReady(timeout time.Duration) (bool, error) {
	fds := []unix.PollFd{{Fd: int32(d.fd), Events: unix.POLLIN}}
	n, err := unix.Poll(fds, pollMillis(timeout))
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}
	if fds[0].Revents&(unix.POLLERR|unix.POLLHUP|unix.POLLNVAL) != 0 {
		return false, unix.EIO
	}
	return fds[0].Revents&unix.POLLIN != 0, nil
}

// pollMillis converts a timeout for poll(2), rounding partial
// milliseconds up so a short positive timeout never becomes a busy poll.
func pollMillis(timeout time.Duration) int {
	if timeout <= 0 {
		return 0
	}
	ms := (timeout + time.Millisecond - 1) / time.Millisecond
	return int(min(ms, math.MaxInt32))
}

func (c v4l2Capability) toCapability() Capability {
	return Capability{
		Driver:       cstr(c.driver[:]),
		Card:         cstr(c.card[:]),
		BusInfo:      cstr(c.busInfo[:]),
		Version:      c.version,
		Capabilities: c.capabilities,
		DeviceCaps:   c.deviceCaps,
	}
}

func (b v4l2Buffer) toBufferInfo() BufferInfo {
	return BufferInfo{
		Index:     b.index,
		Length:    b.length,
		Offset:    b.offset,
		BytesUsed: b.bytesused,
		Flags:     b.flags,
		Sequence:  b.sequence,
	}
}
