package capture

const (

	// MinExposure denotes the minimum exposure time (in microseconds)
	MinExposure = 63

	// MaxExposure denotes the maximum exposure time (in microseconds)
	MaxExposure = 142644

	// MinGain denotes the minimum valid gain value
	MinGain = 1

	// MaxGain denotes the maximum valid gain value
	MaxGain = 161
)

// Gains denotes the per-channel and global sensor gains. A zero value leaves the respective
// gain untouched
type Gains struct {
	Red    int
	Blue   int
	Green1 int
	Green2 int
	Global int
}

// Controls denotes the hardware controls applied once at startup. A zero value leaves the
// respective control untouched
type Controls struct {
	Exposure int
	Gains    Gains
}

// Normalize clamps the exposure to its valid range and disables gains outside of theirs
func (c Controls) Normalize() Controls {
	if c.Exposure > 0 {
		c.Exposure = min(max(c.Exposure, MinExposure), MaxExposure)
	} else {
		c.Exposure = 0
	}

	for _, g := range []*int{
		&c.Gains.Red, &c.Gains.Blue, &c.Gains.Green1, &c.Gains.Green2, &c.Gains.Global,
	} {
		if *g < MinGain || *g > MaxGain {
			*g = 0
		}
	}

	return c
}

// UseGlobalGain returns if the global gain overrides the per-channel gains
func (c Controls) UseGlobalGain() bool {
	return c.Gains.Global > 0
}
