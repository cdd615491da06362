// Package kernels holds the sample kernels in both of their forms: the
// per-thread source body and the block-level binary body. All kernels are
// registered with the runtime under the ModuleName module at init time.
//
// Products are accumulated as sum += float32(a*b). The explicit conversion
// forbids fused multiply-add so that every form of a kernel rounds the same
// way and produces bit-identical results.
package kernels

import (
	guda "github.com/LynnColeArt/guda-samples"
)

// ModuleName is the module every sample program is built from.
const ModuleName = "oclsamples"

// Kernel names within the module.
const (
	VectorAddName           = "vector_add"
	MatrixMultiplyName      = "matrix_multiply"
	MatrixMultiplyTiledName = "matrix_multiply_tiled"
	MatMulName              = "matmul"
	MatMulDoubleName        = "matmul_double"
	Blur2DName              = "blur2d"
)

// T is the tile edge of matrix_multiply_tiled.
const T = guda.TileSize

var module *guda.Module

func init() {
	m, err := guda.NewModule(ModuleName,
		vectorAdd(),
		matrixMultiply(),
		matrixMultiplyTiled(),
		matMul(),
		matMulDouble(),
		blur2D(),
	)
	if err != nil {
		panic(err)
	}
	if err := guda.RegisterModule(m); err != nil {
		panic(err)
	}
	module = m
}

// Module returns the registered sample module.
func Module() *guda.Module {
	return module
}

// Binary returns a binary image of the sample module.
func Binary() ([]byte, error) {
	return guda.EncodeBinary(module)
}

func f32(arg interface{}) []float32 {
	return arg.(guda.DevicePtr).Float32()
}

func f64(arg interface{}) []float64 {
	return arg.(guda.DevicePtr).Float64()
}

// threads calls fn for every thread of the group in linear order.
func threads(grp guda.Group, fn func(tid guda.ThreadID)) {
	n := grp.BlockDim.Size()
	for i := 0; i < n; i++ {
		fn(grp.Thread(i))
	}
}
