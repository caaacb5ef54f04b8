package events

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const quiet = 20 * time.Millisecond

// collect subscribes a buffered channel to events of type T.
func collect[T Event](t *testing.T, bus *Bus, size int) chan T {
	t.Helper()
	ch := make(chan T, size)
	unsub := bus.Subscribe(func(e T) { ch <- e })
	t.Cleanup(unsub)
	return ch
}

func receive[T any](t *testing.T, ch chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(time.Second):
		require.FailNow(t, "event not delivered")
	}
	var zero T
	return zero
}

func TestBusDeliversToEverySubscriber(t *testing.T) {
	bus := New()
	first := collect[FrameCapturedEvent](t, bus, 1)
	second := collect[FrameCapturedEvent](t, bus, 1)

	ev := FrameCapturedEvent{DevicePath: "/dev/video0", Index: 1, Sequence: 42, Bytes: 614400}
	bus.Publish(ev)

	assert.Equal(t, ev, receive(t, first))
	assert.Equal(t, ev, receive(t, second))
}

func TestBusRoutesByType(t *testing.T) {
	bus := New()
	frames := collect[FrameCapturedEvent](t, bus, 1)
	timeouts := collect[PollTimeoutEvent](t, bus, 1)

	bus.Publish(PollTimeoutEvent{DevicePath: "/dev/video0"})
	assert.Equal(t, "/dev/video0", receive(t, timeouts).DevicePath)

	select {
	case e := <-frames:
		t.Fatalf("frame subscriber got %+v", e)
	case <-time.After(quiet):
	}
}

func TestBusUnsubscribe(t *testing.T) {
	bus := New()
	ch := make(chan CaptureFailedEvent, 2)
	unsub := bus.Subscribe(func(e CaptureFailedEvent) { ch <- e })

	bus.Publish(CaptureFailedEvent{Code: 102})
	receive(t, ch)
	unsub()

	bus.Publish(CaptureFailedEvent{Code: 117})
	select {
	case e := <-ch:
		t.Fatalf("received %+v after unsubscribe", e)
	case <-time.After(quiet):
	}
}

func TestBusKeepsOrderPerType(t *testing.T) {
	bus := New()
	const n = 200
	ch := collect[FrameCapturedEvent](t, bus, n)

	for i := range uint32(n) {
		bus.Publish(FrameCapturedEvent{Sequence: i})
	}
	for i := range uint32(n) {
		require.Equal(t, i, receive(t, ch).Sequence)
	}
}

func TestBusConcurrentPublish(t *testing.T) {
	bus := New()
	const publishers, each = 8, 50
	ch := collect[EnqueueRetryEvent](t, bus, publishers*each)

	var wg sync.WaitGroup
	for p := range publishers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range each {
				bus.Publish(EnqueueRetryEvent{Index: uint32(p), Attempt: i})
			}
		}()
	}
	wg.Wait()

	last := make(map[uint32]int)
	for range publishers * each {
		e := receive(t, ch)
		prev, seen := last[e.Index]
		if seen {
			assert.Greater(t, e.Attempt, prev, "publisher %d out of order", e.Index)
		}
		last[e.Index] = e.Attempt
	}
}

func TestBusPublishesEveryType(t *testing.T) {
	bus := New()
	got := make(chan uint32, 8)
	forward := func(e Event) { got <- e.Type() }

	for _, unsub := range []func(){
		bus.Subscribe(func(e SessionStateChangedEvent) { forward(e) }),
		bus.Subscribe(func(e FrameCapturedEvent) { forward(e) }),
		bus.Subscribe(func(e PollTimeoutEvent) { forward(e) }),
		bus.Subscribe(func(e EnqueueRetryEvent) { forward(e) }),
		bus.Subscribe(func(e CaptureFailedEvent) { forward(e) }),
		bus.Subscribe(func(e DeviceDiscoveryEvent) { forward(e) }),
		bus.Subscribe(func(e FrameWrittenEvent) { forward(e) }),
	} {
		t.Cleanup(unsub)
	}

	all := []Event{
		SessionStateChangedEvent{To: "streaming"},
		FrameCapturedEvent{Index: 1},
		PollTimeoutEvent{},
		EnqueueRetryEvent{Attempt: 2},
		CaptureFailedEvent{Code: 117},
		DeviceDiscoveryEvent{Action: "added"},
		FrameWrittenEvent{Path: "video.cap.0"},
	}
	seen := make(map[uint32]bool)
	for _, ev := range all {
		bus.Publish(ev)
		seen[receive(t, got)] = true
	}
	assert.Len(t, seen, len(all))
}

func TestBusIgnoresUnknownHandler(t *testing.T) {
	unsub := New().Subscribe(func(string) {})
	require.NotNil(t, unsub)
	unsub()
}

func TestCaptureFailedEventJSON(t *testing.T) {
	data, err := json.Marshal(CaptureFailedEvent{
		DevicePath: "/dev/video0",
		Code:       117,
		Reason:     "INSUFFICIENT_BUFFERS",
		Error:      "driver granted 1 of 2 buffers",
	})
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))
	assert.Equal(t, "INSUFFICIENT_BUFFERS", fields["reason"])
	assert.InDelta(t, 117, fields["code"], 0)
	assert.Contains(t, fields, "device_path")
}

func TestSubscribeToChannel(t *testing.T) {
	bus := New()
	ch := make(chan any, 1)
	unsub := SubscribeToChannel[DeviceDiscoveryEvent](bus, ch)
	defer unsub()

	bus.Publish(DeviceDiscoveryEvent{DevicePath: "/dev/video0", Action: "added"})
	e, ok := receive(t, ch).(DeviceDiscoveryEvent)
	require.True(t, ok)
	assert.Equal(t, "added", e.Action)
}

func TestSubscribeToChannelDropsWhenFull(t *testing.T) {
	bus := New()
	ch := make(chan any)
	unsub := SubscribeToChannel[FrameWrittenEvent](bus, ch)
	defer unsub()

	done := make(chan struct{})
	go func() {
		bus.Publish(FrameWrittenEvent{Path: "video.cap.0"})
		close(done)
	}()
	receive(t, done)
}
