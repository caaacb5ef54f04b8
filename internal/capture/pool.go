package capture

import (
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sys/unix"
)

// MinBuffers is the smallest pool a capture loop can run with: one buffer
// being filled while the other is with the application.
const MinBuffers = 2

// Owner tells which side of the queue holds a buffer.
type Owner int

// Buffer owners.
const (
	OwnerApplication Owner = iota
	OwnerKernel
)

func (o Owner) String() string {
	if o == OwnerKernel {
		return "kernel"
	}
	return "application"
}

// MappedBuffer is one kernel buffer mapped into the process.
type MappedBuffer struct {
	Index  uint32
	Length uint32
	Offset uint32

	data   []byte
	mapped bool
	owner  Owner
}

// Mapped reports whether the region is currently mapped.
func (b *MappedBuffer) Mapped() bool { return b.mapped }

// Owner reports which side holds the buffer.
func (b *MappedBuffer) Owner() Owner { return b.owner }

var requestBufferCodes = errnoCodes{
	unix.EBUSY:  DeviceBusy,
	unix.EINVAL: StreamingMethodUnsupported,
}

// bufferPool is a dense arena of mapped buffers indexed by kernel index.
type bufferPool struct {
	drv      Driver
	buffers  []MappedBuffer
	released bool
	logger   *slog.Logger
}

// allocateBuffers requests count buffers and maps every one the driver
// grants. On failure nothing stays mapped.
func allocateBuffers(drv Driver, count uint32, logger *slog.Logger) (*bufferPool, error) {
	granted, err := drv.RequestBuffers(count)
	if err != nil {
		return nil, classify("request buffers", err, requestBufferCodes, IoError)
	}
	p := &bufferPool{drv: drv, logger: logger}
	if granted < MinBuffers {
		p.release()
		return nil, NewError(InsufficientBuffers, "request buffers", fmt.Errorf("driver granted %d of %d buffers", granted, count))
	}

	p.buffers = make([]MappedBuffer, 0, granted)
	for i := range granted {
		info, err := drv.QueryBuffer(i)
		if err != nil {
			if errors.Is(err, unix.EINVAL) {
				if len(p.buffers) >= MinBuffers {
					logger.Debug("Buffer query ended early", "granted", granted, "mapped", len(p.buffers))
					break
				}
				p.release()
				return nil, NewError(InsufficientBuffers, fmt.Sprintf("query buffer %d", i), err)
			}
			p.release()
			return nil, NewError(BufferQueryFailed, fmt.Sprintf("query buffer %d", i), err)
		}

		data, err := drv.Map(info.Offset, info.Length)
		if err != nil {
			p.release()
			return nil, NewError(MemoryMappingFailed, fmt.Sprintf("map buffer %d", i), err)
		}
		p.buffers = append(p.buffers, MappedBuffer{
			Index:  info.Index,
			Length: info.Length,
			Offset: info.Offset,
			data:   data,
			mapped: true,
		})
	}

	logger.Debug("Buffers mapped", "requested", count, "granted", granted, "mapped", len(p.buffers))
	return p, nil
}

// Len is the number of buffers in the pool.
func (p *bufferPool) Len() int { return len(p.buffers) }

// Buffer returns the entry for a kernel index, or nil.
func (p *bufferPool) Buffer(index uint32) *MappedBuffer {
	if int(index) >= len(p.buffers) {
		return nil
	}
	return &p.buffers[index]
}

// live counts the buffers that are still mapped.
func (p *bufferPool) live() int {
	n := 0
	for i := range p.buffers {
		if p.buffers[i].mapped {
			n++
		}
	}
	return n
}

// release unmaps every mapped buffer and asks the driver to free its
// buffers. It is safe to call more than once.
func (p *bufferPool) release() {
	if p == nil || p.released {
		return
	}
	p.released = true

	for i := range p.buffers {
		b := &p.buffers[i]
		if !b.mapped {
			continue
		}
		if err := p.drv.Unmap(b.data); err != nil {
			p.logger.Warn("Failed to unmap buffer", "index", b.Index, "error", err)
		}
		b.mapped = false
		b.data = nil
		b.owner = OwnerApplication
	}

	if _, err := p.drv.RequestBuffers(0); err != nil {
		p.logger.Debug("Failed to free driver buffers", "error", err)
	}
}
