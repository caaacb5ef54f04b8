//go:build linux

package devices

import (
	"fmt"

	"github.com/smazurov/uvccap/pkg/linuxav/v4l2"
)

// List returns every node that supports video capture.
func List() ([]Info, error) {
	found, err := v4l2.FindDevices()
	if err != nil {
		return nil, err
	}
	infos := make([]Info, 0, len(found))
	for _, d := range found {
		infos = append(infos, fromDeviceInfo(d))
	}
	return infos, nil
}

func findPathByID(id string) (string, error) {
	found, err := v4l2.FindDevices()
	if err != nil {
		return "", err
	}
	for _, d := range found {
		if d.DeviceID == id {
			return d.DevicePath, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, id)
}
