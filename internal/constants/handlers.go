// Package constants provides shared constants used across the codebase.
package constants

// File upload constants
const (
	// MaxUploadSize is the maximum request body size in bytes (100MB);
	// enrollment archives with dozens of sample images fit comfortably
	MaxUploadSize = 100 << 20
)

// Handler defaults
const (
	// DefaultHandlerTimeout is the per-request timeout in seconds applied by
	// the router; enrollment of a large archive dominates it
	DefaultHandlerTimeout = 120
)
