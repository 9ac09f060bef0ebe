package constants

// Handler constants
const (
	// MaxUploadSize is the largest accepted enrollment upload in bytes
	MaxUploadSize = 20 << 20

	// DefaultWebHost is the address the API server binds to
	DefaultWebHost = "0.0.0.0"
)
