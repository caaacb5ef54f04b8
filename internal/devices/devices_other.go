//go:build !linux

package devices

// List is not supported off Linux.
func List() ([]Info, error) {
	return nil, ErrUnsupported
}

func findPathByID(string) (string, error) {
	return "", ErrUnsupported
}
