package capture

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

func TestCodeValues(t *testing.T) {
	tests := []struct {
		code Code
		exit int
		name string
	}{
		{InvalidArguments, 100, "INVALID_ARGUMENTS"},
		{DeviceBusy, 102, "DEVICE_BUSY"},
		{FormatEnumerationFailed, 108, "FORMAT_ENUMERATION_FAILED"},
		{IoError, 112, "IO_ERROR"},
		{FileCreationFailed, 113, "FILE_CREATION_FAILED"},
		{InsufficientBuffers, 117, "INSUFFICIENT_BUFFERS"},
		{InvalidStatus, 119, "INVALID_STATUS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if int(tt.code) != tt.exit {
				t.Errorf("expected value %d, got %d", tt.exit, int(tt.code))
			}
			if tt.code.String() != tt.name {
				t.Errorf("expected name %s, got %s", tt.name, tt.code)
			}
		})
	}

	if len(codeNames) != 20 {
		t.Errorf("expected 20 codes, got %d", len(codeNames))
	}
	if got := Code(7).String(); got != "CODE_7" {
		t.Errorf("unexpected name for unknown code: %s", got)
	}
}

func TestErrorChain(t *testing.T) {
	err := fmt.Errorf("setup: %w", NewError(DeviceBusy, "open /dev/video0", unix.EBUSY))

	if !errors.Is(err, unix.EBUSY) {
		t.Error("expected errno in chain")
	}
	if !IsCode(err, DeviceBusy) {
		t.Error("expected DeviceBusy")
	}
	if IsCode(err, IoError) {
		t.Error("did not expect IoError")
	}
	if got := ExitCode(err); got != 102 {
		t.Errorf("expected exit code 102, got %d", got)
	}
	if got := err.Error(); got != "setup: DEVICE_BUSY: open /dev/video0: device or resource busy" {
		t.Errorf("unexpected message %q", got)
	}
}

func TestExitCode(t *testing.T) {
	if ExitCode(nil) != 0 {
		t.Error("expected 0 for nil")
	}
	if ExitCode(errors.New("plain")) != 1 {
		t.Error("expected 1 for unclassified error")
	}
	if ExitCode(NewError(InvalidStatus, "start", nil)) != 119 {
		t.Error("expected 119")
	}
	if _, ok := CodeOf(errors.New("plain")); ok {
		t.Error("expected no code for plain error")
	}
}

func TestClassify(t *testing.T) {
	codes := errnoCodes{unix.EBUSY: DeviceBusy}

	if got := classify("op", unix.EBUSY, codes, IoError).Code; got != DeviceBusy {
		t.Errorf("expected DeviceBusy, got %s", got)
	}
	if got := classify("op", unix.ENODEV, codes, IoError).Code; got != IoError {
		t.Errorf("expected fallback IoError, got %s", got)
	}
	if got := classify("op", errors.New("not an errno"), codes, IoError).Code; got != IoError {
		t.Errorf("expected fallback IoError, got %s", got)
	}
	wrapped := fmt.Errorf("ioctl: %w", unix.EBUSY)
	if got := classify("op", wrapped, codes, IoError).Code; got != DeviceBusy {
		t.Errorf("expected DeviceBusy through wrapping, got %s", got)
	}
}

func TestRetryPolicy(t *testing.T) {
	tests := []struct {
		name      string
		failures  []error
		attempts  int
		wantErr   bool
		exhausted bool
		sleeps    int
	}{
		{"immediate success", nil, 1, false, false, 0},
		{"three transient then success", []error{unix.EAGAIN, unix.ENOMEM, unix.EAGAIN}, 4, false, false, 3},
		{"four transient then success", []error{unix.EAGAIN, unix.EAGAIN, unix.EAGAIN, unix.EAGAIN}, 5, false, false, 4},
		{"six transient", []error{unix.EAGAIN, unix.EAGAIN, unix.EAGAIN, unix.EAGAIN, unix.EAGAIN, unix.EAGAIN}, 5, true, true, 4},
		{"permanent", []error{unix.EINVAL}, 1, true, false, 0},
		{"transient then permanent", []error{unix.ENOMEM, unix.EIO}, 2, true, false, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var sleeps []time.Duration
			var retries []int
			policy := DefaultEnqueueRetry()
			policy.Sleep = func(d time.Duration) { sleeps = append(sleeps, d) }
			policy.OnRetry = func(attempt int, _ error) { retries = append(retries, attempt) }

			calls := 0
			attempts, err := policy.Do(func() error {
				calls++
				if calls <= len(tt.failures) {
					return tt.failures[calls-1]
				}
				return nil
			})

			if attempts != tt.attempts || calls != tt.attempts {
				t.Errorf("expected %d attempts, got %d (calls %d)", tt.attempts, attempts, calls)
			}
			if (err != nil) != tt.wantErr {
				t.Errorf("unexpected error %v", err)
			}
			if policy.Exhausted(err) != tt.exhausted {
				t.Errorf("expected exhausted=%v", tt.exhausted)
			}
			if len(sleeps) != tt.sleeps || len(retries) != tt.sleeps {
				t.Errorf("expected %d sleeps, got %d (retries %d)", tt.sleeps, len(sleeps), len(retries))
			}
			for _, d := range sleeps {
				if d != DefaultEnqueueBackoff {
					t.Errorf("expected backoff %v, got %v", DefaultEnqueueBackoff, d)
				}
			}
		})
	}
}

func TestRetryPolicyWithoutRetryable(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 3}
	calls := 0
	_, err := p.Do(func() error {
		calls++
		return unix.EAGAIN
	})
	if err == nil || calls != 1 {
		t.Errorf("expected a single failing attempt, got %d calls, err %v", calls, err)
	}
}

func TestRetryPolicyRealBackoff(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 3, Backoff: time.Millisecond, Retryable: isTransient}
	var retried []int
	p.OnRetry = func(attempt int, _ error) { retried = append(retried, attempt) }

	calls := 0
	start := time.Now()
	attempts, err := p.Do(func() error {
		calls++
		if calls < 3 {
			return unix.EAGAIN
		}
		return nil
	})
	if err != nil || attempts != 3 {
		t.Fatalf("expected success on attempt 3, got %d attempts, err %v", attempts, err)
	}
	if len(retried) != 2 || retried[0] != 1 || retried[1] != 2 {
		t.Errorf("unexpected retry notifications %v", retried)
	}
	if elapsed := time.Since(start); elapsed < 2*time.Millisecond {
		t.Errorf("expected two backoff waits, finished in %v", elapsed)
	}
}

