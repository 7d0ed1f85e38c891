package util

import "errors"

// Sentinel errors for common failure modes
var (
	// ErrUnsupported indicates an operation is not available for the layout
	ErrUnsupported = errors.New("unsupported")

	// ErrInvalidConfig indicates invalid configuration
	ErrInvalidConfig = errors.New("invalid configuration")
)
