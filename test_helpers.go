package guda

import (
	"testing"
)

// NewContextOrFail creates a context that is destroyed when the test ends.
func NewContextOrFail(t testing.TB) *Context {
	t.Helper()
	ctx := NewContext()
	t.Cleanup(func() {
		if err := ctx.Destroy(); err != nil {
			t.Errorf("Destroy failed: %v", err)
		}
	})
	return ctx
}

// MallocOrFail allocates device memory and fails the test if unsuccessful
func MallocOrFail(t testing.TB, ctx *Context, size int) DevicePtr {
	t.Helper()
	ptr, err := ctx.Malloc(size)
	if err != nil {
		t.Fatalf("Failed to allocate %d bytes: %v", size, err)
	}
	return ptr
}

// MemcpyOrFail copies data and fails the test if unsuccessful
func MemcpyOrFail(t testing.TB, ctx *Context, dst, src interface{}, size int, direction MemcpyKind) {
	t.Helper()
	if err := ctx.Memcpy(dst, src, size, direction); err != nil {
		t.Fatalf("Memcpy failed: %v", err)
	}
}

// LaunchOrFail launches a kernel and fails the test if unsuccessful
func LaunchOrFail(t testing.TB, ctx *Context, kernel KernelFunc, grid, block Dim3, args ...interface{}) {
	t.Helper()
	if err := ctx.Launch(kernel, grid, block, args...); err != nil {
		t.Fatalf("Kernel launch failed: %v", err)
	}
}

// SynchronizeOrFail synchronizes and fails the test if unsuccessful
func SynchronizeOrFail(t testing.TB, ctx *Context) {
	t.Helper()
	if err := ctx.Synchronize(); err != nil {
		t.Fatalf("Synchronize failed: %v", err)
	}
}
