package capture

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"golang.org/x/sys/unix"

	"github.com/smazurov/uvccap/pkg/linuxav/v4l2"
)

// SupportedFormats is the table a format index selects from.
var SupportedFormats = [...]v4l2.FourCC{
	v4l2.PixFmtRGB565,
	v4l2.PixFmtRGB32,
	v4l2.PixFmtBGR32,
	v4l2.PixFmtYUYV,
	v4l2.PixFmtUYVY,
	v4l2.PixFmtYUV420,
	v4l2.PixFmtYUV410,
	v4l2.PixFmtYUV422P,
}

// SupportedFormatNames labels SupportedFormats entry by entry.
var SupportedFormatNames = [len(SupportedFormats)]string{
	"RGB565",
	"RGB32",
	"BGR32",
	"YUYV",
	"UYVY",
	"YUV420",
	"YUV410",
	"YUV422P",
}

// DefaultFormatIndex selects YUYV.
const DefaultFormatIndex = 3

// PixelFormatForIndex returns the table entry for index. Out-of-range
// indexes silently select fallback.
func PixelFormatForIndex(index int, fallback v4l2.FourCC) v4l2.FourCC {
	if index < 0 || index >= len(SupportedFormats) {
		return fallback
	}
	return SupportedFormats[index]
}

// bitsPerPixel is used to size frames when the driver never reports an
// image size.
func bitsPerPixel(f v4l2.FourCC) uint32 {
	switch f {
	case v4l2.PixFmtRGB32, v4l2.PixFmtBGR32:
		return 32
	case v4l2.PixFmtRGB565, v4l2.PixFmtYUYV, v4l2.PixFmtUYVY, v4l2.PixFmtYUV422P:
		return 16
	case v4l2.PixFmtYUV420:
		return 12
	case v4l2.PixFmtYUV410:
		return 9
	default:
		return 16
	}
}

// FormatRequest is the caller's nominal format. The device may adjust it.
type FormatRequest struct {
	Width       uint32
	Height      uint32
	FormatIndex int
}

// CaptureFormat pairs the request with what the device accepted.
type CaptureFormat struct {
	Requested  v4l2.PixFormat
	Negotiated v4l2.PixFormat
	// Verified is false when the read-back failed and Negotiated holds the
	// last applied values.
	Verified bool
}

// FrameSize is the negotiated image size in bytes.
func (f CaptureFormat) FrameSize() int {
	return int(f.Negotiated.SizeImage)
}

var setFormatCodes = errnoCodes{
	unix.EBUSY:  DeviceBusy,
	unix.EINVAL: InvalidFormatArguments,
}

// applyCrop resets the crop rectangle to the driver default. Drivers that
// advertise cropping but reject it with EINVAL are tolerated.
func applyCrop(drv Driver, crop *v4l2.CropCapability, logger *slog.Logger) error {
	if crop == nil {
		return nil
	}
	if err := drv.SetCrop(crop.DefRect); err != nil {
		if errors.Is(err, unix.EINVAL) {
			logger.Warn("Cropping not supported, ignoring", "error", err)
			return nil
		}
		return NewError(CroppingFailed, "set crop", err)
	}
	return nil
}

func negotiateFormat(drv Driver, req FormatRequest, fallback v4l2.FourCC, logger *slog.Logger) (CaptureFormat, error) {
	requested := v4l2.PixFormat{
		Width:       req.Width,
		Height:      req.Height,
		PixelFormat: PixelFormatForIndex(req.FormatIndex, fallback),
		Field:       v4l2.FieldInterlaced,
	}
	result := CaptureFormat{Requested: requested}

	applied, err := drv.SetFormat(requested)
	if err != nil {
		if isErrno(err, unix.EBUSY, unix.EINVAL) {
			return result, classify("set format", err, setFormatCodes, InvalidFormatArguments)
		}
		logger.Warn("Set format failed, reading back current format", "error", err)
		applied = requested
	}

	current, err := drv.GetFormat()
	if err != nil {
		logger.Warn("Failed to read back format, using applied values", "error", err)
		result.Negotiated, err = estimateSize(applied)
		return result, err
	}

	result.Negotiated, err = estimateSize(current)
	if err != nil {
		return result, err
	}
	result.Verified = true
	return result, nil
}

// estimateSize fills SizeImage from the pixel depth when the driver left it
// at zero.
func estimateSize(f v4l2.PixFormat) (v4l2.PixFormat, error) {
	if f.SizeImage != 0 {
		return f, nil
	}
	size := uint64(f.Width) * uint64(f.Height) * uint64(bitsPerPixel(f.PixelFormat)) / 8
	if size > math.MaxUint32 {
		return f, NewError(InvalidFormatArguments, "estimate frame size",
			fmt.Errorf("%dx%d %s needs %d bytes", f.Width, f.Height, f.PixelFormat, size))
	}
	f.SizeImage = uint32(size)
	return f, nil
}
