package capture

import (
	"context"
	"time"

	"golang.org/x/sys/unix"
)

// DefaultPollTimeout bounds one readiness wait.
const DefaultPollTimeout = 40 * time.Millisecond

// Readiness is the outcome of one readiness wait.
type Readiness int

// Readiness results.
const (
	NotReady Readiness = iota
	Ready
)

func (r Readiness) String() string {
	if r == Ready {
		return "ready"
	}
	return "not_ready"
}

// FramePoller waits for a filled buffer. Timeouts are retried without
// bound; every other wait failure is fatal.
type FramePoller struct {
	drv     Driver
	timeout time.Duration

	// OnTimeout is called for every wait that expired (optional).
	OnTimeout func()
}

// NewFramePoller creates a poller with the given per-wait timeout.
func NewFramePoller(drv Driver, timeout time.Duration) *FramePoller {
	if timeout <= 0 {
		timeout = DefaultPollTimeout
	}
	return &FramePoller{drv: drv, timeout: timeout}
}

// Poll waits once. An interrupted wait counts as a timeout.
func (p *FramePoller) Poll() (Readiness, error) {
	ready, err := p.drv.WaitReady(p.timeout)
	if err != nil {
		if isErrno(err, unix.EINTR) {
			return NotReady, nil
		}
		return NotReady, NewError(IoError, "wait for frame", err)
	}
	if !ready {
		return NotReady, nil
	}
	return Ready, nil
}

// Wait polls until a buffer is ready. ctx is checked between polls.
func (p *FramePoller) Wait(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		r, err := p.Poll()
		if err != nil {
			return err
		}
		if r == Ready {
			return nil
		}
		if p.OnTimeout != nil {
			p.OnTimeout()
		}
	}
}
