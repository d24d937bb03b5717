package rules

import "fmt"

// ConfigValidationError reports configuration content that does not match the
// recognized shape. Path locates the offending value, e.g.
// "custom_category_map.Rent[2]".
type ConfigValidationError struct {
	Path   string
	Reason string
	Err    error
}

func (e *ConfigValidationError) Error() string {
	msg := "invalid configuration"
	if e.Path != "" {
		msg += ": " + e.Path
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigValidationError) Unwrap() error { return e.Err }

// UnknownTransformationError names a step that is not recognized. It is
// always returned wrapped in a ConfigValidationError.
type UnknownTransformationError struct {
	Name  string
	Index int
}

func (e *UnknownTransformationError) Error() string {
	return fmt.Sprintf("unknown transformation %q", e.Name)
}

func invalid(path, format string, args ...any) error {
	return &ConfigValidationError{Path: path, Reason: fmt.Sprintf(format, args...)}
}
