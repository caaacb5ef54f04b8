package capture

import (
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sys/unix"
)

// RetryPolicy is a bounded retry combinator. Only errors accepted by
// Retryable are retried, each after waiting Backoff.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
	Retryable   func(error) bool

	// OnRetry is called before each wait (optional).
	OnRetry func(attempt int, err error)

	// Sleep replaces the backoff timer (optional).
	Sleep func(time.Duration)
}

// Enqueue defaults.
const (
	DefaultEnqueueAttempts = 5
	DefaultEnqueueBackoff  = 10 * time.Millisecond
)

// DefaultEnqueueRetry retries ENOMEM and EAGAIN five times, 10ms apart.
func DefaultEnqueueRetry() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: DefaultEnqueueAttempts,
		Backoff:     DefaultEnqueueBackoff,
		Retryable:   isTransient,
	}
}

func isTransient(err error) bool {
	return isErrno(err, unix.ENOMEM, unix.EAGAIN)
}

// Do runs fn until it succeeds, returns a non-retryable error, or the
// attempt budget is spent. It returns the number of attempts made and the
// last error.
func (p RetryPolicy) Do(fn func() error) (int, error) {
	attempts := 0
	op := func() error {
		attempts++
		err := fn()
		if err != nil && (p.Retryable == nil || !p.Retryable(err)) {
			return backoff.Permanent(err)
		}
		return err
	}

	var notify backoff.Notify
	if p.OnRetry != nil {
		notify = func(err error, _ time.Duration) { p.OnRetry(attempts, err) }
	}

	var timer backoff.Timer
	if p.Sleep != nil {
		timer = &sleepTimer{sleep: p.Sleep, c: make(chan time.Time, 1)}
	}

	b := backoff.WithMaxRetries(backoff.NewConstantBackOff(max(p.Backoff, 0)), uint64(max(p.MaxAttempts, 1)-1))
	err := backoff.RetryNotifyWithTimer(op, b, notify, timer)
	return attempts, err
}

// Exhausted reports whether err ended Do because the budget ran out rather
// than because it was not retryable.
func (p RetryPolicy) Exhausted(err error) bool {
	return err != nil && p.Retryable != nil && p.Retryable(err)
}

// sleepTimer adapts a sleep function to backoff.Timer. The wait happens in
// Start; C is ready as soon as it returns.
type sleepTimer struct {
	sleep func(time.Duration)
	c     chan time.Time
}

func (t *sleepTimer) Start(d time.Duration) {
	t.sleep(d)
	t.c <- time.Now()
}

func (t *sleepTimer) Stop() {}

func (t *sleepTimer) C() <-chan time.Time { return t.c }
