// Package capture drives a V4L2 capture device through its streaming
// lifecycle: capability and format negotiation, a memory-mapped buffer
// pool, and a frame loop that follows the driver's enqueue/dequeue
// ownership handshake.
//
// # Usage
//
//	s, err := capture.Open("/dev/video0")
//	if err != nil {
//		return err
//	}
//	defer s.Close()
//
//	if _, err := s.Configure(capture.FormatRequest{Width: 640, Height: 480, FormatIndex: 3}); err != nil {
//		return err
//	}
//	if err := s.Start(); err != nil {
//		return err
//	}
//	err = s.Capture(ctx, 5, func(i int, f capture.Frame) error {
//		return writer.Write(i, f.Data)
//	})
//
// A failed Open, Configure or Start releases everything acquired so far.
// Errors are *Error values carrying a Code; see ExitCode.
package capture

// Frame is a filled buffer lent to the caller. Data is only valid until
// the callback that received it returns, after which the driver may
// overwrite it.
type Frame struct {
	Index    uint32
	Sequence uint32
	Data     []byte
}
