//go:build linux
// +build linux

package v4l2

import (
	"testing"

	"github.com/fako1024/slimcam/capture"
	"github.com/stretchr/testify/require"
)

func TestControlValues(t *testing.T) {

	t.Run("None", func(t *testing.T) {
		require.Empty(t, controlValues(capture.Controls{}.Normalize()))
	})

	t.Run("ExposureOnly", func(t *testing.T) {
		require.Equal(t, []controlValue{
			{"exposure", cidExposure, 1000},
		}, controlValues(capture.Controls{Exposure: 1000}.Normalize()))
	})

	t.Run("ExposureClamped", func(t *testing.T) {
		require.Equal(t, []controlValue{
			{"exposure", cidExposure, capture.MaxExposure},
		}, controlValues(capture.Controls{Exposure: 1000000}.Normalize()))
		require.Equal(t, []controlValue{
			{"exposure", cidExposure, capture.MinExposure},
		}, controlValues(capture.Controls{Exposure: 1}.Normalize()))
	})

	t.Run("ChannelGains", func(t *testing.T) {
		require.Equal(t, []controlValue{
			{"green1 gain", cidGreen1Gain, 8},
			{"red gain", cidRedGain, 16},
			{"blue gain", cidBlueGain, 24},
		}, controlValues(capture.Controls{Gains: capture.Gains{
			Red:    16,
			Blue:   24,
			Green1: 8,
			Green2: 500,
		}}.Normalize()))
	})

	t.Run("GlobalGainOverrides", func(t *testing.T) {
		require.Equal(t, []controlValue{
			{"exposure", cidExposure, 200},
			{"gain", cidGain, 32},
		}, controlValues(capture.Controls{
			Exposure: 200,
			Gains: capture.Gains{
				Red:    16,
				Blue:   24,
				Global: 32,
			},
		}.Normalize()))
	})
}
