package v4l2

// DeviceInfo contains information about a V4L2 device.
type DeviceInfo struct {
	DevicePath string
	DeviceName string
	DeviceID   string // Stable identifier (from /dev/v4l/by-id/ or synthetic)
	Caps       uint32
}

// Capability flags.
const (
	CapVideoCapture     = 0x00000001
	CapVideoOutput      = 0x00000002
	CapVideoOverlay     = 0x00000004
	CapVBICapture       = 0x00000010
	CapVBIOutput        = 0x00000020
	CapSlicedVBICapture = 0x00000040
	CapSlicedVBIOutput  = 0x00000080
	CapRDSCapture       = 0x00000100
	CapTuner            = 0x00010000
	CapAudio            = 0x00020000
	CapRadio            = 0x00040000
	CapReadWrite        = 0x01000000
	CapAsyncIO          = 0x02000000
	CapStreaming        = 0x04000000
	CapDeviceCaps       = 0x80000000
)

// Format flags.
const (
	FmtFlagCompressed = 0x0001
	FmtFlagEmulated   = 0x0002
)

// Field orders.
const (
	FieldAny        = 0
	FieldNone       = 1
	FieldTop        = 2
	FieldBottom     = 3
	FieldInterlaced = 4
)

// Buffer type and memory model.
const (
	BufTypeVideoCapture = 1
	MemoryMMAP          = 1
)

// Frame size types.
const (
	frmsizeTypeDiscrete   = 1
	frmsizeTypeContinuous = 2
	frmsizeTypeStepwise   = 3
)

var capabilityNames = []struct {
	flag uint32
	name string
}{
	{CapVideoCapture, "capture"},
	{CapVideoOutput, "output"},
	{CapVideoOverlay, "overlay"},
	{CapVBICapture, "vbi_capture"},
	{CapVBIOutput, "vbi_output"},
	{CapSlicedVBICapture, "sliced_vbi_capture"},
	{CapSlicedVBIOutput, "sliced_vbi_output"},
	{CapRDSCapture, "rds_capture"},
	{CapTuner, "tuner"},
	{CapAudio, "audio"},
	{CapRadio, "radio"},
	{CapReadWrite, "read_write"},
	{CapAsyncIO, "async_io"},
	{CapStreaming, "streaming"},
}

// Capability is a snapshot of VIDIOC_QUERYCAP.
type Capability struct {
	Driver       string
	Card         string
	BusInfo      string
	Version      uint32
	Capabilities uint32
	DeviceCaps   uint32
}

// Effective returns the capabilities of the opened node. Drivers that fill
// device_caps report the whole physical device in Capabilities.
func (c Capability) Effective() uint32 {
	if c.Capabilities&CapDeviceCaps != 0 {
		return c.DeviceCaps
	}
	return c.Capabilities
}

// CanCapture reports whether the node supports video capture.
func (c Capability) CanCapture() bool {
	return c.Effective()&CapVideoCapture != 0
}

// CanStream reports whether the node supports streaming I/O.
func (c Capability) CanStream() bool {
	return c.Effective()&CapStreaming != 0
}

// VersionString formats the kernel version triplet.
func (c Capability) VersionString() string {
	return formatVersion(c.Version)
}

// Flags returns the names of the effective capability bits.
func (c Capability) Flags() []string {
	caps := c.Effective()
	var names []string
	for _, n := range capabilityNames {
		if caps&n.flag != 0 {
			names = append(names, n.name)
		}
	}
	return names
}

// Rect is a v4l2_rect.
type Rect struct {
	Left   int32
	Top    int32
	Width  uint32
	Height uint32
}

// Fract is a v4l2_fract.
type Fract struct {
	Numerator   uint32
	Denominator uint32
}

// CropCapability is a snapshot of VIDIOC_CROPCAP.
type CropCapability struct {
	Bounds      Rect
	DefRect     Rect
	PixelAspect Fract
}

// FormatDesc describes one entry of VIDIOC_ENUM_FMT.
type FormatDesc struct {
	Index       uint32
	PixelFormat FourCC
	Description string
	Flags       uint32
}

// Compressed reports whether the format carries compressed data.
func (f FormatDesc) Compressed() bool {
	return f.Flags&FmtFlagCompressed != 0
}

// Emulated reports whether the format is emulated by libv4l.
func (f FormatDesc) Emulated() bool {
	return f.Flags&FmtFlagEmulated != 0
}

// PixFormat is the single-planar image format exchanged with
// VIDIOC_S_FMT and VIDIOC_G_FMT.
type PixFormat struct {
	Width        uint32
	Height       uint32
	PixelFormat  FourCC
	Field        uint32
	BytesPerLine uint32
	SizeImage    uint32
	Colorspace   uint32
}

// BufferInfo is the part of v4l2_buffer the streaming protocol needs.
type BufferInfo struct {
	Index     uint32
	Length    uint32
	Offset    uint32
	BytesUsed uint32
	Flags     uint32
	Sequence  uint32
}

// Resolution represents a supported video resolution.
type Resolution struct {
	Width  uint32
	Height uint32
}
