package guda

import (
	"fmt"
	"sync"
	"unsafe"
)

// MemcpyKind specifies the direction of memory transfer.
// In GUDA's unified memory model, these are provided for CUDA compatibility
// but are treated identically since all memory is CPU-accessible.
type MemcpyKind int

const (
	MemcpyHostToHost     MemcpyKind = iota // Host to host transfer
	MemcpyHostToDevice                     // Host to device transfer
	MemcpyDeviceToHost                     // Device to host transfer
	MemcpyDeviceToDevice                   // Device to device transfer
	MemcpyDefault                          // Default transfer (infer direction)
)

// MemoryPool manages device memory allocation with efficient reuse.
// It maintains a free list of previously allocated blocks to reduce
// allocation overhead and memory fragmentation.
type MemoryPool struct {
	mu         sync.Mutex
	allocated  map[uintptr]*allocation
	freeList   []*allocation
	totalAlloc int64
	peakAlloc  int64
}

type allocation struct {
	buf  []byte
	ptr  unsafe.Pointer
	size int
	used bool
}

// NewMemoryPool creates a new memory pool for efficient memory management.
// The pool tracks allocations and provides statistics on memory usage.
func NewMemoryPool() *MemoryPool {
	return &MemoryPool{
		allocated: make(map[uintptr]*allocation),
	}
}

// Malloc allocates device memory of the specified size in bytes.
// The memory is zeroed and aligned for SIMD access.
func (ctx *Context) Malloc(size int) (DevicePtr, error) {
	return ctx.memory.Allocate(size)
}

// Free releases device memory allocated by Malloc.
// The memory may be retained in the pool for future allocations.
func (ctx *Context) Free(ptr DevicePtr) error {
	return ctx.memory.Free(ptr)
}

// MemoryStats returns the bytes currently allocated and the peak.
func (ctx *Context) MemoryStats() (allocated, peak int64) {
	return ctx.memory.GetStats()
}

// Memcpy copies size bytes between host and device.
// dst and src may each be a DevicePtr, unsafe.Pointer, or a []byte,
// []float32, []float64 or []int32 slice. Copies that would run past the
// end of a DevicePtr or slice are rejected.
//
// Example:
//
//	h_data := make([]float32, 1024)
//	d_data, _ := ctx.Malloc(1024 * 4)
//	ctx.Memcpy(d_data, h_data, 1024*4, guda.MemcpyHostToDevice)
func (ctx *Context) Memcpy(dst, src interface{}, size int, kind MemcpyKind) error {
	if size < 0 {
		return NewInvalidArgError("Memcpy", fmt.Sprintf("negative size %d", size))
	}
	if size == 0 {
		return nil
	}

	dstPtr, dstLen, err := rawBytes("dst", dst)
	if err != nil {
		return err
	}
	srcPtr, srcLen, err := rawBytes("src", src)
	if err != nil {
		return err
	}
	if dstPtr == nil || srcPtr == nil {
		return ErrNullPointer
	}
	if (dstLen >= 0 && size > dstLen) || (srcLen >= 0 && size > srcLen) {
		return NewInvalidArgError("Memcpy", fmt.Sprintf("copy of %d bytes exceeds buffer (dst %d, src %d)", size, dstLen, srcLen))
	}

	copy(unsafe.Slice((*byte)(dstPtr), size), unsafe.Slice((*byte)(srcPtr), size))
	return nil
}

// rawBytes returns the address and byte length of a Memcpy operand.
// A length of -1 means the extent is unknown (raw unsafe.Pointer).
func rawBytes(side string, v interface{}) (unsafe.Pointer, int, error) {
	switch d := v.(type) {
	case DevicePtr:
		return d.ptr, d.size, nil
	case unsafe.Pointer:
		return d, -1, nil
	case []byte:
		if len(d) == 0 {
			return nil, 0, nil
		}
		return unsafe.Pointer(&d[0]), len(d), nil
	case []float32:
		if len(d) == 0 {
			return nil, 0, nil
		}
		return unsafe.Pointer(&d[0]), len(d) * 4, nil
	case []float64:
		if len(d) == 0 {
			return nil, 0, nil
		}
		return unsafe.Pointer(&d[0]), len(d) * 8, nil
	case []int32:
		if len(d) == 0 {
			return nil, 0, nil
		}
		return unsafe.Pointer(&d[0]), len(d) * 4, nil
	default:
		return nil, 0, NewInvalidArgError("Memcpy", fmt.Sprintf("unsupported %s type: %T", side, v))
	}
}

// MemoryPool methods

// Allocate allocates zeroed memory from the pool
func (mp *MemoryPool) Allocate(size int) (DevicePtr, error) {
	if size <= 0 {
		return DevicePtr{}, ErrInvalidSize
	}

	mp.mu.Lock()
	defer mp.mu.Unlock()

	// Round up to alignment
	alignedSize := (size + MemoryAlignment - 1) &^ (MemoryAlignment - 1)

	// Try to reuse from free list
	for i, alloc := range mp.freeList {
		if alloc.size >= alignedSize {
			mp.freeList = append(mp.freeList[:i], mp.freeList[i+1:]...)
			alloc.used = true
			clear(alloc.buf)

			mp.totalAlloc += int64(alloc.size)
			mp.peakAlloc = max(mp.peakAlloc, mp.totalAlloc)

			return DevicePtr{ptr: alloc.ptr, size: size}, nil
		}
	}

	// Back the allocation with float64 words so every typed view is aligned.
	words := make([]float64, alignedSize/8)
	buf := unsafe.Slice((*byte)(unsafe.Pointer(&words[0])), alignedSize)
	alloc := &allocation{
		buf:  buf,
		ptr:  unsafe.Pointer(&words[0]),
		size: alignedSize,
		used: true,
	}
	mp.allocated[uintptr(alloc.ptr)] = alloc

	mp.totalAlloc += int64(alignedSize)
	mp.peakAlloc = max(mp.peakAlloc, mp.totalAlloc)

	return DevicePtr{ptr: alloc.ptr, size: size}, nil
}

// Free returns memory to the pool. Freeing the zero DevicePtr is a no-op.
func (mp *MemoryPool) Free(ptr DevicePtr) error {
	if ptr.ptr == nil {
		return nil
	}

	mp.mu.Lock()
	defer mp.mu.Unlock()

	alloc, ok := mp.allocated[uintptr(ptr.ptr)]
	if !ok || ptr.offset != 0 {
		return NewMemoryError("Free", "pointer not found in allocation pool", nil)
	}
	if !alloc.used {
		return ErrDoubleFree
	}

	alloc.used = false
	mp.freeList = append(mp.freeList, alloc)
	mp.totalAlloc -= int64(alloc.size)

	return nil
}

// GetStats returns memory pool statistics
func (mp *MemoryPool) GetStats() (allocated, peak int64) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	return mp.totalAlloc, mp.peakAlloc
}

// DevicePtr methods for convenience

// Float32 returns a float32 slice view of the device memory.
// The slice can be used directly for reading and writing data.
//
// Example:
//
//	d_data, _ := guda.Malloc(1024 * 4) // Allocate for 1024 float32s
//	data := d_data.Float32()
//	data[0] = 3.14 // Direct access
func (d DevicePtr) Float32() []float32 {
	if d.ptr == nil {
		return nil
	}
	return unsafe.Slice((*float32)(d.ptr), d.size/4)
}

// Float64 returns a float64 slice view of the device memory.
func (d DevicePtr) Float64() []float64 {
	if d.ptr == nil {
		return nil
	}
	return unsafe.Slice((*float64)(d.ptr), d.size/8)
}

// Int32 returns an int32 slice view of the device memory.
func (d DevicePtr) Int32() []int32 {
	if d.ptr == nil {
		return nil
	}
	return unsafe.Slice((*int32)(d.ptr), d.size/4)
}

// Byte returns a byte slice view of the device memory.
func (d DevicePtr) Byte() []byte {
	if d.ptr == nil {
		return nil
	}
	return unsafe.Slice((*byte)(d.ptr), d.size)
}

// Offset returns a new DevicePtr offset by the given number of bytes.
// The returned DevicePtr shares the same underlying memory.
//
// Example:
//
//	d_array, _ := guda.Malloc(1024 * 4) // 1024 float32s
//	d_second_half := d_array.Offset(512 * 4) // Start at element 512
func (d DevicePtr) Offset(bytes int) DevicePtr {
	return DevicePtr{
		ptr:    unsafe.Add(d.ptr, bytes),
		size:   d.size - bytes,
		offset: d.offset + bytes,
	}
}

// Size returns the size in bytes of the memory region
func (d DevicePtr) Size() int {
	return d.size
}

// IsNil reports whether d points at no memory.
func (d DevicePtr) IsNil() bool {
	return d.ptr == nil
}
