package kernels

import (
	guda "github.com/LynnColeArt/guda-samples"
)

// vector_add(A, B, C, N): C[i] = A[i] + B[i] for i < N. The grid may be
// rounded up past N; surplus threads do nothing.
func vectorAdd() *guda.KernelDef {
	return &guda.KernelDef{
		Name:   VectorAddName,
		Params: []guda.ParamKind{guda.ParamBuffer, guda.ParamBuffer, guda.ParamBuffer, guda.ParamInt32},
		Source: vectorAddSource,
		Binary: vectorAddBinary,
	}
}

func vectorAddSource(tid guda.ThreadID, _ *guda.Block, args ...interface{}) {
	n := int(args[3].(int32))
	myID := tid.Global()
	if myID < n {
		a, b, c := f32(args[0]), f32(args[1]), f32(args[2])
		c[myID] = a[myID] + b[myID]
	}
}

func vectorAddBinary(grp guda.Group, args ...interface{}) {
	a, b, c := f32(args[0]), f32(args[1]), f32(args[2])
	n := int(args[3].(int32))

	start := grp.BlockIdx.X * grp.BlockDim.X
	end := min(start+grp.BlockDim.X, n)
	for i := start; i < end; i++ {
		c[i] = a[i] + b[i]
	}
}
