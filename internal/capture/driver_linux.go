//go:build linux

package capture

import "github.com/smazurov/uvccap/pkg/linuxav/v4l2"

func openDevice(path string) (Driver, error) {
	dev, err := v4l2.Open(path)
	if err != nil {
		return nil, err
	}
	return dev, nil
}
