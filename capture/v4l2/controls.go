//go:build linux
// +build linux

package v4l2

import (
	"fmt"
	"unsafe"

	"github.com/fako1024/slimcam/capture"
)

// Control IDs, c.f. linux/v4l2-controls.h
const (
	cidBase        = 0x00980900
	cidExposure    = cidBase + 17
	cidGain        = cidBase + 19
	cidPrivateBase = 0x08000000

	// MT9P031 sensor specific per-channel gains
	cidGreen1Gain = cidPrivateBase + 0
	cidBlueGain   = cidPrivateBase + 1
	cidRedGain    = cidPrivateBase + 2
	cidGreen2Gain = cidPrivateBase + 3
)

type controlValue struct {
	name  string
	id    uint32
	value int
}

// controlValues translates (normalized) controls into the control settings to apply, skipping
// any control left untouched
func controlValues(c capture.Controls) []controlValue {
	var values []controlValue
	if c.Exposure > 0 {
		values = append(values, controlValue{"exposure", cidExposure, c.Exposure})
	}

	if c.UseGlobalGain() {
		return append(values, controlValue{"gain", cidGain, c.Gains.Global})
	}

	for _, v := range []controlValue{
		{"green1 gain", cidGreen1Gain, c.Gains.Green1},
		{"red gain", cidRedGain, c.Gains.Red},
		{"blue gain", cidBlueGain, c.Gains.Blue},
		{"green2 gain", cidGreen2Gain, c.Gains.Green2},
	} {
		if v.value > 0 {
			values = append(values, v)
		}
	}

	return values
}

// ApplyControls applies the provided hardware controls (after normalization) via VIDIOC_S_CTRL
func (d *Device) ApplyControls(c capture.Controls) error {
	for _, v := range controlValues(c.Normalize()) {
		ctrl := control{
			id:    v.id,
			value: int32(v.value),
		}
		if err := ioctl(d.fd, vidiocSCtrl, unsafe.Pointer(&ctrl)); err != nil { // #nosec: G103
			return newDeviceError(d.path, "VIDIOC_S_CTRL", fmt.Errorf("failed to set %s to %d: %w", v.name, v.value, err))
		}
	}

	return nil
}
