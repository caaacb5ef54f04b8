package capture

import (
	"log/slog"

	"golang.org/x/sys/unix"
)

var openCodes = errnoCodes{
	unix.EBUSY:  DeviceBusy,
	unix.EPERM:  PermissionDenied,
	unix.EACCES: PermissionDenied,
}

// deviceHandle owns the open descriptor.
type deviceHandle struct {
	path   string
	drv    Driver
	closed bool
	logger *slog.Logger
}

func openHandle(path string, open Opener, logger *slog.Logger) (*deviceHandle, error) {
	if path == "" {
		return nil, NewError(InvalidArguments, "open", nil)
	}
	drv, err := open(path)
	if err != nil {
		return nil, classify("open "+path, err, openCodes, DeviceOpenFailed)
	}
	logger.Debug("Device opened")
	return &deviceHandle{path: path, drv: drv, logger: logger}, nil
}

// release closes the descriptor, retrying EINTR and EAGAIN until the
// close goes through. Linux frees the descriptor even when close reports
// EINTR, so EBADF on a retry means it is already gone. Any other failure
// is reported once; the descriptor is considered gone either way.
func (h *deviceHandle) release() error {
	if h == nil || h.closed {
		return nil
	}
	h.closed = true

	interrupted := false
	for {
		err := h.drv.Close()
		if err == nil || (interrupted && isErrno(err, unix.EBADF)) {
			h.logger.Debug("Device closed")
			return nil
		}
		if isErrno(err, unix.EINTR, unix.EAGAIN) {
			interrupted = true
			h.logger.Debug("Retrying device close", "error", err)
			continue
		}
		h.logger.Warn("Failed to close device", "error", err)
		return NewError(IoError, "close "+h.path, err)
	}
}
