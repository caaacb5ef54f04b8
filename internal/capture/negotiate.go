package capture

import (
	"errors"
	"iter"

	"golang.org/x/sys/unix"

	"github.com/smazurov/uvccap/pkg/linuxav/v4l2"
)

func queryCapabilities(drv Driver) (v4l2.Capability, error) {
	caps, err := drv.QueryCapability()
	if err != nil {
		return v4l2.Capability{}, NewError(CapabilitiesUnavailable, "query capabilities", err)
	}
	if !caps.CanCapture() {
		return caps, NewError(CaptureNotSupported, "query capabilities", errors.New(caps.Card+" is not a video capture device"))
	}
	return caps, nil
}

// queryCropCapabilities returns nil when the driver has no cropping support.
func queryCropCapabilities(drv Driver) (*v4l2.CropCapability, error) {
	crop, err := drv.CropCapability()
	if err != nil {
		if errors.Is(err, unix.EINVAL) {
			return nil, nil
		}
		return nil, NewError(CroppingCapabilitiesUnavailable, "query cropping capabilities", err)
	}
	return &crop, nil
}

// enumerateFormats yields pixel formats from index 0 until the driver
// reports the end of the list. Each range starts over.
func enumerateFormats(drv Driver) iter.Seq2[v4l2.FormatDesc, error] {
	return func(yield func(v4l2.FormatDesc, error) bool) {
		for i := uint32(0); ; i++ {
			desc, err := drv.EnumFormat(i)
			if errors.Is(err, unix.EINVAL) {
				return
			}
			if err != nil {
				yield(v4l2.FormatDesc{}, NewError(FormatEnumerationFailed, "enumerate formats", err))
				return
			}
			if !yield(desc, nil) {
				return
			}
		}
	}
}

// Capability returns the snapshot taken by Configure, or queries the
// device when the session has not been configured yet.
func (s *Session) Capability() (v4l2.Capability, error) {
	if s.state == Closed {
		return v4l2.Capability{}, s.wrongState("query capabilities")
	}
	if s.caps != nil {
		return *s.caps, nil
	}
	caps, err := s.handle.drv.QueryCapability()
	if err != nil {
		return v4l2.Capability{}, NewError(CapabilitiesUnavailable, "query capabilities", err)
	}
	return caps, nil
}

// CropCapability returns the cropping capabilities, or nil when the device
// does not support cropping.
func (s *Session) CropCapability() (*v4l2.CropCapability, error) {
	if s.state == Closed {
		return nil, s.wrongState("query cropping capabilities")
	}
	return queryCropCapabilities(s.handle.drv)
}

// Formats enumerates the pixel formats the device offers.
func (s *Session) Formats() iter.Seq2[v4l2.FormatDesc, error] {
	if s.state == Closed {
		err := s.wrongState("enumerate formats")
		return func(yield func(v4l2.FormatDesc, error) bool) {
			yield(v4l2.FormatDesc{}, err)
		}
	}
	return enumerateFormats(s.handle.drv)
}

// FrameSizes lists the resolutions offered for a pixel format.
func (s *Session) FrameSizes(pixelFormat v4l2.FourCC) ([]v4l2.Resolution, error) {
	if s.state == Closed {
		return nil, s.wrongState("enumerate frame sizes")
	}
	sizes, err := s.handle.drv.FrameSizes(pixelFormat)
	if err != nil {
		return nil, NewError(FormatEnumerationFailed, "enumerate frame sizes", err)
	}
	return sizes, nil
}
