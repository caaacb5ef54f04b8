// Package v4l2 provides pure Go bindings to the Video4Linux2 (V4L2) API
// for device enumeration, format negotiation, and memory-mapped streaming.
//
// This package does not use cgo, enabling simple cross-compilation for
// different Linux architectures (amd64, arm64, 386, arm).
//
// # Device Enumeration
//
// Use FindDevices to discover all V4L2 video capture devices:
//
//	devices, err := v4l2.FindDevices()
//	for _, dev := range devices {
//	    fmt.Printf("%s: %s\n", dev.DevicePath, dev.DeviceName)
//	}
//
// # Streaming
//
// A Device exposes each ioctl of the streaming protocol as a single method.
// Errors are returned as the raw errno (unix.Errno) so callers can decide
// which conditions are recoverable:
//
//	dev, _ := v4l2.Open("/dev/video0")
//	defer dev.Close()
//	granted, _ := dev.RequestBuffers(2)
//	for i := uint32(0); i < granted; i++ {
//	    info, _ := dev.QueryBuffer(i)
//	    data, _ := dev.Map(info.Offset, info.Length)
//	    ...
//	}
//
// The data types (FourCC, Capability, PixFormat, ...) carry no build
// constraint so that code consuming the protocol can be compiled and tested
// on any platform.
package v4l2
