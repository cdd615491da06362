package kernels

import (
	guda "github.com/LynnColeArt/guda-samples"
)

// Naive square matrix multiply. Every thread computes one element of C;
// the matrix size is the global width of the launch.

func matrixMultiply() *guda.KernelDef {
	return &guda.KernelDef{
		Name:   MatrixMultiplyName,
		Params: []guda.ParamKind{guda.ParamBuffer, guda.ParamBuffer, guda.ParamBuffer},
		Source: matMulSource,
		Binary: matMulBinary,
	}
}

// matMul is the OpenCL sample's entry point for the same computation.
func matMul() *guda.KernelDef {
	return &guda.KernelDef{
		Name:   MatMulName,
		Params: []guda.ParamKind{guda.ParamBuffer, guda.ParamBuffer, guda.ParamBuffer},
		Source: matMulSource,
		Binary: matMulBinary,
	}
}

func matMulDouble() *guda.KernelDef {
	return &guda.KernelDef{
		Name:   MatMulDoubleName,
		Params: []guda.ParamKind{guda.ParamBuffer, guda.ParamBuffer, guda.ParamBuffer},
		Source: matMulDoubleSource,
		Binary: matMulDoubleBinary,
	}
}

func matMulSource(tid guda.ThreadID, _ *guda.Block, args ...interface{}) {
	matMulElement(f32(args[0]), f32(args[1]), f32(args[2]), tid)
}

func matMulBinary(grp guda.Group, args ...interface{}) {
	a, b, c := f32(args[0]), f32(args[1]), f32(args[2])
	threads(grp, func(tid guda.ThreadID) {
		matMulElement(a, b, c, tid)
	})
}

func matMulElement(a, b, c []float32, tid guda.ThreadID) {
	size := tid.GridDim.X * tid.BlockDim.X
	row, col := tid.GlobalY(), tid.GlobalX()

	var sum float32
	for k := 0; k < size; k++ {
		sum += float32(a[row*size+k] * b[k*size+col])
	}
	c[row*size+col] = sum
}

func matMulDoubleSource(tid guda.ThreadID, _ *guda.Block, args ...interface{}) {
	matMulDoubleElement(f64(args[0]), f64(args[1]), f64(args[2]), tid)
}

func matMulDoubleBinary(grp guda.Group, args ...interface{}) {
	a, b, c := f64(args[0]), f64(args[1]), f64(args[2])
	threads(grp, func(tid guda.ThreadID) {
		matMulDoubleElement(a, b, c, tid)
	})
}

func matMulDoubleElement(a, b, c []float64, tid guda.ThreadID) {
	size := tid.GridDim.X * tid.BlockDim.X
	row, col := tid.GlobalY(), tid.GlobalX()

	var sum float64
	for k := 0; k < size; k++ {
		sum += float64(a[row*size+k] * b[k*size+col])
	}
	c[row*size+col] = sum
}
