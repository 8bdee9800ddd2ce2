//go:build linux
// +build linux

package v4l2

import "fmt"

// DeviceError denotes an error during an operation on a V4L2 device
type DeviceError struct {
	Device    string
	Operation string
	Err       error
}

func newDeviceError(device, operation string, err error) *DeviceError {
	return &DeviceError{
		Device:    device,
		Operation: operation,
		Err:       err,
	}
}

// Error implements the error interface
func (e *DeviceError) Error() string {
	return fmt.Sprintf("%s on %s: %s", e.Operation, e.Device, e.Err)
}

// Unwrap returns the underlying error
func (e *DeviceError) Unwrap() error {
	return e.Err
}
