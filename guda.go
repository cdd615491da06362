// Package guda provides a CUDA/OpenCL-shaped runtime that executes compute
// kernels on the CPU. Kernels are launched over a grid of thread blocks;
// cooperative kernels get real block-wide barriers and block-shared scratch
// memory, so programs written against the GPU execution model behave the same
// way here.
//
// Example usage:
//
//	ctx := guda.NewContext()
//	defer ctx.Destroy()
//
//	// Allocate device memory
//	d_a, _ := ctx.Malloc(n * 4) // n float32s
//	d_b, _ := ctx.Malloc(n * 4)
//
//	// Copy data to device
//	ctx.Memcpy(d_a, h_a, n*4, guda.MemcpyHostToDevice)
//	ctx.Memcpy(d_b, h_b, n*4, guda.MemcpyHostToDevice)
//
//	// Launch kernel
//	grid := guda.Dim3{X: (n + 255) / 256}
//	block := guda.Dim3{X: 256}
//	ctx.LaunchFunc(myKernel, grid, block, d_a, d_b)
//	ctx.Synchronize()
package guda

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"
)

// Device represents a compute device. In GUDA, this is the CPU with its
// cores and available memory. Each device has a unique ID and capabilities.
type Device struct {
	ID         int    // Unique device identifier
	Name       string // Human-readable device name
	TotalMem   uint64 // Total available memory in bytes
	NumCores   int    // Number of CPU cores
	MaxThreads int    // Maximum concurrent threads
	Features   string // Detected SIMD extensions
}

// Context represents an execution context for GUDA operations.
// It manages device resources, memory allocation, and stream execution.
// A Context must be created before any GUDA operations and should be
// destroyed when no longer needed.
type Context struct {
	mu            sync.Mutex
	device        *Device
	streams       map[int]*Stream
	streamID      int32
	memory        *MemoryPool
	defaultStream *Stream
	epoch         time.Time
	destroyed     atomic.Bool
}

// Stream represents an ordered sequence of operations that execute
// asynchronously. Operations within a stream execute in order, but
// operations in different streams may execute concurrently.
//
// The first error returned by a task is kept until the next Synchronize.
type Stream struct {
	id        int
	tasks     chan func() error
	done      chan struct{}
	wg        sync.WaitGroup
	mu        sync.Mutex
	err       error
	closeOnce sync.Once
}

// Dim3 represents 3D dimensions for grid and block configurations.
// This matches CUDA's dim3 structure for kernel launch parameters.
// Zero Y or Z components are treated as 1 at launch time.
type Dim3 struct {
	X, Y, Z int
}

// ThreadID identifies a thread's position within the execution hierarchy.
// It provides the same indexing semantics as CUDA's built-in variables:
// blockIdx, threadIdx, blockDim, and gridDim.
type ThreadID struct {
	BlockIdx  Dim3 // Block index within the grid
	ThreadIdx Dim3 // Thread index within the block
	BlockDim  Dim3 // Dimensions of the block
	GridDim   Dim3 // Dimensions of the grid
}

// ThreadKernel represents a compute kernel that can be executed in parallel.
// Implementations should be thread-safe as Execute will be called
// concurrently from multiple threads.
type ThreadKernel interface {
	Execute(tid ThreadID, args ...interface{})
}

// KernelFunc is a function that can be launched as a kernel.
// It receives thread identification and variadic arguments.
type KernelFunc func(tid ThreadID, args ...interface{})

// DevicePtr represents a pointer to device memory. It provides type-safe
// access to device memory and supports pointer arithmetic through the
// Offset method. Use the type conversion methods (Float32, Float64, etc.)
// to access the underlying data with proper type safety.
type DevicePtr struct {
	ptr    unsafe.Pointer
	size   int
	offset int
}

// Global runtime state
var (
	defaultDevice  *Device
	defaultContext *Context
	initOnce       sync.Once
)

// Initialize GUDA runtime
func init() {
	initOnce.Do(func() {
		defaultDevice = &Device{
			ID:         0,
			Name:       "CPU",
			TotalMem:   getSystemMemory(),
			NumCores:   runtime.NumCPU(),
			MaxThreads: runtime.NumCPU() * 2, // Hyperthreading
			Features:   GetCPUInfo(),
		}
		defaultContext = NewContext()
	})
}

// NewContext creates an execution context on the CPU device with its own
// memory pool and default stream. Profiling timestamps reported by events
// created in this context are measured from the moment it was created.
func NewContext() *Context {
	ctx := &Context{
		device:  defaultDevice,
		streams: make(map[int]*Stream),
		memory:  NewMemoryPool(),
		epoch:   time.Now(),
	}
	ctx.defaultStream = ctx.CreateStream()
	return ctx
}

// Malloc allocates device memory of the specified size in bytes.
// In GUDA, this allocates CPU memory with proper alignment for SIMD operations.
// The returned DevicePtr can be used with all GUDA operations.
//
// Example:
//
//	d_data, err := guda.Malloc(1024 * 4) // Allocate 1024 float32s
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer guda.Free(d_data)
func Malloc(size int) (DevicePtr, error) {
	return defaultContext.Malloc(size)
}

// Free releases device memory allocated by Malloc.
func Free(ptr DevicePtr) error {
	return defaultContext.Free(ptr)
}

// Memcpy copies memory between host and device.
// In GUDA's unified memory model, this is a plain copy.
// Supports DevicePtr and Go slices ([]float32, []float64, []int32, []byte).
//
// Parameters:
//   - dst: Destination (DevicePtr or Go slice)
//   - src: Source (DevicePtr or Go slice)
//   - size: Number of bytes to copy
//   - kind: Transfer direction (MemcpyHostToDevice, MemcpyDeviceToHost, etc.)
func Memcpy(dst, src interface{}, size int, kind MemcpyKind) error {
	return defaultContext.Memcpy(dst, src, size, kind)
}

// Launch executes a kernel on the default stream.
// The kernel is executed across a grid of thread blocks.
//
// Example:
//
//	kernel := MyKernel{}
//	err := guda.Launch(kernel, guda.Dim3{X: 256, Y: 1, Z: 1}, guda.Dim3{X: 64, Y: 1, Z: 1})
func Launch(kernel ThreadKernel, grid, block Dim3, args ...interface{}) error {
	return defaultContext.Launch(kernel, grid, block, args...)
}

// LaunchFunc executes a kernel function
func LaunchFunc(fn KernelFunc, grid, block Dim3, args ...interface{}) error {
	return defaultContext.LaunchFunc(fn, grid, block, args...)
}

// LaunchShared executes a cooperative kernel with sharedMem bytes of
// block-shared scratch memory on the default stream.
func LaunchShared(fn SharedKernelFunc, grid, block Dim3, sharedMem int, args ...interface{}) error {
	return defaultContext.LaunchShared(fn, grid, block, sharedMem, args...)
}

// Synchronize waits for all operations on all streams to complete and
// returns the first error any of them reported.
//
// Example:
//
//	guda.Launch(kernel, grid, block)
//	err := guda.Synchronize() // Wait for kernel to complete
func Synchronize() error {
	return defaultContext.Synchronize()
}

// GetDevice returns the current device information.
// In GUDA, this always returns the CPU device.
func GetDevice() *Device {
	return defaultDevice
}

// SetDevice sets the active device (no-op for CPU)
func SetDevice(id int) error {
	if id != 0 {
		return ErrInvalidDevice
	}
	return nil
}

// GetDeviceCount returns the number of available devices.
// GUDA always returns 1 as it only supports CPU execution.
func GetDeviceCount() int {
	return 1 // Only CPU
}

// GetDeviceProperties returns device properties
func GetDeviceProperties(id int) (*Device, error) {
	if id != 0 {
		return nil, NewInvalidArgError("GetDeviceProperties", fmt.Sprintf("invalid device ID: %d", id))
	}
	return defaultDevice, nil
}

// Context methods

// Device returns the device this context executes on.
func (ctx *Context) Device() *Device {
	return ctx.device
}

// CreateStream creates a new execution stream
func (ctx *Context) CreateStream() *Stream {
	id := int(atomic.AddInt32(&ctx.streamID, 1))
	stream := &Stream{
		id:    id,
		tasks: make(chan func() error, 1000),
		done:  make(chan struct{}),
	}

	// Start worker goroutine for stream
	go stream.worker()

	ctx.mu.Lock()
	ctx.streams[id] = stream
	ctx.mu.Unlock()
	return stream
}

// Launch executes a kernel on the default stream
func (ctx *Context) Launch(kernel ThreadKernel, grid, block Dim3, args ...interface{}) error {
	return ctx.LaunchStream(kernel, grid, block, ctx.defaultStream, args...)
}

// LaunchFunc executes a kernel function on the default stream
func (ctx *Context) LaunchFunc(fn KernelFunc, grid, block Dim3, args ...interface{}) error {
	return ctx.LaunchFuncStream(fn, grid, block, ctx.defaultStream, args...)
}

// LaunchStream executes a kernel on a specific stream
func (ctx *Context) LaunchStream(kernel ThreadKernel, grid, block Dim3, stream *Stream, args ...interface{}) error {
	return ctx.LaunchFuncStream(kernel.Execute, grid, block, stream, args...)
}

// LaunchFuncStream executes a kernel function on a specific stream
func (ctx *Context) LaunchFuncStream(fn KernelFunc, grid, block Dim3, stream *Stream, args ...interface{}) error {
	return ctx.launchInternal(stream, sequentialLaunch("Launch", fn, grid, block, args))
}

// LaunchShared executes a cooperative kernel on the default stream
func (ctx *Context) LaunchShared(fn SharedKernelFunc, grid, block Dim3, sharedMem int, args ...interface{}) error {
	return ctx.LaunchSharedStream(fn, grid, block, sharedMem, ctx.defaultStream, args...)
}

// LaunchSharedStream executes a cooperative kernel on a specific stream.
// Every thread of a block runs concurrently so SyncThreads can be used.
func (ctx *Context) LaunchSharedStream(fn SharedKernelFunc, grid, block Dim3, sharedMem int, stream *Stream, args ...interface{}) error {
	return ctx.launchInternal(stream, cooperativeLaunch("LaunchShared", fn, grid, block, sharedMem, args))
}

// LaunchGroups executes fn once per block on the default stream
func (ctx *Context) LaunchGroups(fn GroupFunc, grid, block Dim3, sharedMem int, args ...interface{}) error {
	return ctx.LaunchGroupsStream(fn, grid, block, sharedMem, ctx.defaultStream, args...)
}

// LaunchGroupsStream executes fn once per block on a specific stream
func (ctx *Context) LaunchGroupsStream(fn GroupFunc, grid, block Dim3, sharedMem int, stream *Stream, args ...interface{}) error {
	return ctx.launchInternal(stream, groupLaunch("LaunchGroups", fn, grid, block, sharedMem, args))
}

// Synchronize waits for all streams to complete
func (ctx *Context) Synchronize() error {
	ctx.mu.Lock()
	streams := make([]*Stream, 0, len(ctx.streams))
	for _, s := range ctx.streams {
		streams = append(streams, s)
	}
	ctx.mu.Unlock()

	var first error
	for _, stream := range streams {
		if err := stream.Synchronize(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Destroy waits for outstanding work, stops all streams and releases the
// context. Any later launch on the context fails with ErrContextDestroyed.
func (ctx *Context) Destroy() error {
	if ctx.destroyed.Swap(true) {
		return nil
	}
	err := ctx.Synchronize()

	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	for id, stream := range ctx.streams {
		stream.close()
		delete(ctx.streams, id)
	}
	return err
}

// since returns nanoseconds elapsed since the context epoch.
func (ctx *Context) since() uint64 {
	return uint64(time.Since(ctx.epoch).Nanoseconds())
}

// Stream methods

// worker processes tasks for a stream
func (s *Stream) worker() {
	for task := range s.tasks {
		if err := task(); err != nil {
			s.mu.Lock()
			if s.err == nil {
				s.err = err
			}
			s.mu.Unlock()
		}
		s.wg.Done()
	}
	close(s.done)
}

// Synchronize waits for all tasks in the stream to complete and returns
// the first error reported since the previous Synchronize.
func (s *Stream) Synchronize() error {
	s.wg.Wait()
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.err
	s.err = nil
	return err
}

// Submit adds a task to the stream
func (s *Stream) Submit(task func() error) {
	s.wg.Add(1)
	s.tasks <- task
}

func (s *Stream) close() {
	s.closeOnce.Do(func() {
		close(s.tasks)
	})
	<-s.done
}

// Helper functions

// Global returns the global thread index
func (tid ThreadID) Global() int {
	return tid.BlockIdx.X*tid.BlockDim.X + tid.ThreadIdx.X
}

// GlobalX returns the global X index
func (tid ThreadID) GlobalX() int {
	return tid.BlockIdx.X*tid.BlockDim.X + tid.ThreadIdx.X
}

// GlobalY returns the global Y index
func (tid ThreadID) GlobalY() int {
	return tid.BlockIdx.Y*tid.BlockDim.Y + tid.ThreadIdx.Y
}

// GlobalZ returns the global Z index
func (tid ThreadID) GlobalZ() int {
	return tid.BlockIdx.Z*tid.BlockDim.Z + tid.ThreadIdx.Z
}

// Size returns the total number of elements, counting zero Y or Z as 1.
func (d Dim3) Size() int {
	n := d.Normalize()
	return n.X * n.Y * n.Z
}

// Normalize returns d with zero Y and Z components replaced by 1.
func (d Dim3) Normalize() Dim3 {
	if d.Y == 0 {
		d.Y = 1
	}
	if d.Z == 0 {
		d.Z = 1
	}
	return d
}

// Implement KernelFunc as ThreadKernel
func (fn KernelFunc) Execute(tid ThreadID, args ...interface{}) {
	fn(tid, args...)
}
