//go:build !linux

package capture

import "golang.org/x/sys/unix"

func openDevice(_ string) (Driver, error) {
	return nil, unix.ENOTSUP
}
