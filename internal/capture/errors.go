package capture

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// Code classifies a capture failure. The numeric values double as process
// exit codes.
type Code int

// Error codes.
const (
	InvalidArguments Code = iota + 100
	InvalidFormatArguments
	DeviceBusy
	DeviceOpenFailed
	CapabilitiesUnavailable
	CroppingCapabilitiesUnavailable
	CaptureNotSupported
	CroppingFailed
	FormatEnumerationFailed
	BufferQueryFailed
	StreamingStartFailed
	StreamingMethodUnsupported
	IoError
	FileCreationFailed
	MemoryMappingFailed
	BufferQueueingFailed
	BufferDequeueFailed
	InsufficientBuffers
	PermissionDenied
	InvalidStatus
)

var codeNames = map[Code]string{
	InvalidArguments:                "INVALID_ARGUMENTS",
	InvalidFormatArguments:          "INVALID_FORMAT_ARGUMENTS",
	DeviceBusy:                      "DEVICE_BUSY",
	DeviceOpenFailed:                "DEVICE_OPEN_FAILED",
	CapabilitiesUnavailable:         "CAPABILITIES_UNAVAILABLE",
	CroppingCapabilitiesUnavailable: "CROPPING_CAPABILITIES_UNAVAILABLE",
	CaptureNotSupported:             "CAPTURE_NOT_SUPPORTED",
	CroppingFailed:                  "CROPPING_FAILED",
	FormatEnumerationFailed:         "FORMAT_ENUMERATION_FAILED",
	BufferQueryFailed:               "BUFFER_QUERY_FAILED",
	StreamingStartFailed:            "STREAMING_START_FAILED",
	StreamingMethodUnsupported:      "STREAMING_METHOD_UNSUPPORTED",
	IoError:                         "IO_ERROR",
	FileCreationFailed:              "FILE_CREATION_FAILED",
	MemoryMappingFailed:             "MEMORY_MAPPING_FAILED",
	BufferQueueingFailed:            "BUFFER_QUEUEING_FAILED",
	BufferDequeueFailed:             "BUFFER_DEQUEUE_FAILED",
	InsufficientBuffers:             "INSUFFICIENT_BUFFERS",
	PermissionDenied:                "PERMISSION_DENIED",
	InvalidStatus:                   "INVALID_STATUS",
}

func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("CODE_%d", int(c))
}

// Error is a classified capture failure. Cause keeps the underlying errno
// so errors.Is still matches it, but callers should branch on Code.
type Error struct {
	Code  Code
	Op    string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Op, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Op)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a classified error. It is exported for the collaborators
// that share the taxonomy, such as the frame writer.
func NewError(code Code, op string, cause error) *Error {
	return &Error{
		Code:  code,
		Op:    op,
		Cause: cause,
	}
}

// CodeOf returns the code of the first *Error in err's chain.
func CodeOf(err error) (Code, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	return 0, false
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code Code) bool {
	c, ok := CodeOf(err)
	return ok && c == code
}

// ExitCode maps err to a process exit status: 0 for nil, the code value for
// classified errors and 1 for anything else.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if c, ok := CodeOf(err); ok {
		return int(c)
	}
	return 1
}

// errnoCodes maps the errno values one ioctl can return to codes.
type errnoCodes map[unix.Errno]Code

// classify translates a driver error into the taxonomy, falling back when
// the errno is not listed.
func classify(op string, err error, codes errnoCodes, fallback Code) *Error {
	var errno unix.Errno
	if errors.As(err, &errno) {
		if code, ok := codes[errno]; ok {
			return NewError(code, op, err)
		}
	}
	return NewError(fallback, op, err)
}

// isErrno reports whether err is one of the given errno values.
func isErrno(err error, targets ...unix.Errno) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}
