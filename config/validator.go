package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/fako1024/slimcam/capture"
	"github.com/fako1024/slimcam/capture/ring"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "gain.red")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d validation errors:\n", len(e))
	for i, err := range e {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, err.Error())
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// ValidLogEncodings returns the list of valid log encodings
func ValidLogEncodings() []string {
	return []string{"logfmt", "json", "plain"}
}

// Validate checks the Config for invalid values and returns all validation errors found.
// Out-of-range exposure / gain values are not considered invalid, they are clamped / ignored
// when applied to the device
func (c *Config) Validate() []ValidationError {
	var errs []ValidationError

	if c.Device == "" {
		errs = append(errs, ValidationError{
			Field:   "device",
			Value:   c.Device,
			Message: "must not be empty",
		})
	}

	errs = append(errs, c.validateFormat()...)

	if c.OutputDir == "" {
		errs = append(errs, ValidationError{
			Field:   "output_dir",
			Value:   c.OutputDir,
			Message: "must not be empty",
		})
	}
	if c.Buffers < 1 || c.Buffers > ring.MaxBuffers {
		errs = append(errs, ValidationError{
			Field:   "buffers",
			Value:   c.Buffers,
			Message: fmt.Sprintf("must be between 1 and %d", ring.MaxBuffers),
		})
	}
	if c.SaveEvery < 1 {
		errs = append(errs, ValidationError{
			Field:   "save_every",
			Value:   c.SaveEvery,
			Message: "must be at least 1",
		})
	}
	if c.WaitTimeout <= 0 {
		errs = append(errs, ValidationError{
			Field:   "wait_timeout",
			Value:   c.WaitTimeout,
			Message: "must be positive",
		})
	}

	if !slices.Contains(ValidLogLevels(), strings.ToLower(c.Log.Level)) {
		errs = append(errs, ValidationError{
			Field:   "log.level",
			Value:   c.Log.Level,
			Message: fmt.Sprintf("must be one of %v", ValidLogLevels()),
		})
	}
	if !slices.Contains(ValidLogEncodings(), strings.ToLower(c.Log.Encoding)) {
		errs = append(errs, ValidationError{
			Field:   "log.encoding",
			Value:   c.Log.Encoding,
			Message: fmt.Sprintf("must be one of %v", ValidLogEncodings()),
		})
	}

	return errs
}

func (c *Config) validateFormat() []ValidationError {
	pixFmt, err := capture.ParsePixelFormat(c.Format)
	if err != nil {
		return []ValidationError{{
			Field:   "format",
			Value:   c.Format,
			Message: "must be one of [uyvy yuyv bayer]",
		}}
	}

	if c.Size < int(capture.SizeNative) || c.Size > int(capture.SizeVGA) {
		return []ValidationError{{
			Field:   "size",
			Value:   c.Size,
			Message: fmt.Sprintf("must be between %d and %d", capture.SizeNative, capture.SizeVGA),
		}}
	}

	if _, err := capture.NewFormat(pixFmt, capture.Size(c.Size)); err != nil {
		return []ValidationError{{
			Field:   "size",
			Value:   c.Size,
			Message: err.Error(),
		}}
	}

	return nil
}
