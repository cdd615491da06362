// Package guda configuration constants
package guda

// Thread and block dimensions
const (
	// Default block size for one-dimensional kernels
	DefaultBlockSize = 256

	// Maximum threads per block (CUDA compatibility)
	MaxThreadsPerBlock = 1024

	// Maximum block-shared scratch memory per block in bytes
	MaxSharedMemPerBlock = 48 * 1024

	// Edge length of the square tiles used by tiled kernels
	TileSize = 16
)

// Memory pool parameters
const (
	// Memory alignment for allocations
	MemoryAlignment = 64

	// Reported device memory when the system figure is unavailable
	defaultSystemMemory = 16 * 1024 * 1024 * 1024
)

// Numerical constants
const (
	// Relative L2 error accepted when checking float32 kernels against
	// a host reference
	Float32RelTolerance = 1e-5

	// Relative L2 error accepted for float64 kernels
	Float64RelTolerance = 1e-10
)
