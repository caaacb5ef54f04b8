package v4l2

import (
	"encoding/binary"
	"strings"
)

// FourCC is a four-byte pixel format code as stored in the kernel ABI
// (first character in the least significant byte).
type FourCC [4]byte

// Common pixel formats.
var (
	PixFmtRGB565  = FourCC{'R', 'G', 'B', 'P'}
	PixFmtRGB32   = FourCC{'R', 'G', 'B', '4'}
	PixFmtBGR32   = FourCC{'B', 'G', 'R', '4'}
	PixFmtYUYV    = FourCC{'Y', 'U', 'Y', 'V'}
	PixFmtUYVY    = FourCC{'U', 'Y', 'V', 'Y'}
	PixFmtYUV420  = FourCC{'Y', 'U', '1', '2'}
	PixFmtYUV410  = FourCC{'Y', 'U', 'V', '9'}
	PixFmtYUV422P = FourCC{'4', '2', '2', 'P'}
	PixFmtMJPEG   = FourCC{'M', 'J', 'P', 'G'}
	PixFmtH264    = FourCC{'H', '2', '6', '4'}
	PixFmtHEVC    = FourCC{'H', 'E', 'V', 'C'}
	PixFmtNV12    = FourCC{'N', 'V', '1', '2'}
)

// fourccBigEndian is the flag the kernel sets on the last byte of formats
// stored big-endian.
const fourccBigEndian = 0x80

// FourCCFromUint32 converts the kernel's integer representation.
func FourCCFromUint32(v uint32) FourCC {
	var f FourCC
	binary.LittleEndian.PutUint32(f[:], v)
	return f
}

// Uint32 returns the kernel's integer representation.
func (f FourCC) Uint32() uint32 {
	return binary.LittleEndian.Uint32(f[:])
}

// IsZero reports whether no format is set.
func (f FourCC) IsZero() bool {
	return f == FourCC{}
}

// String returns a printable label such as "YUYV" or "Y16 -BE".
// Non-printable bytes are shown as '.'.
func (f FourCC) String() string {
	b := f
	suffix := ""
	if b[3]&fourccBigEndian != 0 {
		b[3] &^= fourccBigEndian
		suffix = "-BE"
	}
	var sb strings.Builder
	for _, c := range b {
		if c < 0x20 || c > 0x7e {
			c = '.'
		}
		sb.WriteByte(c)
	}
	return sb.String() + suffix
}

// FormatFourCC converts a 4-byte pixel format to a human-readable string.
func FormatFourCC(format uint32) string {
	b := make([]byte, 4)
	b[0] = byte(format & 0xFF)
	b[1] = byte((format >> 8) & 0xFF)
	b[2] = byte((format >> 16) & 0xFF)
	b[3] = byte((format >> 24) & 0xFF)
	return string(b)
}
