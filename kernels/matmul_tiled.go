package kernels

import (
	"fmt"

	guda "github.com/LynnColeArt/guda-samples"
)

// tileBytes is the scratch needed for one A tile and one B tile.
const tileBytes = 2 * T * T * 4

// matrix_multiply_tiled(A, B, C) computes C = A*B with T×T work groups.
// Each group stages a tile of A and a tile of B in shared scratch, waits for
// the whole group, accumulates T products, and waits again before the next
// tile overwrites the scratch. The matrix size must be a multiple of T.
func matrixMultiplyTiled() *guda.KernelDef {
	return &guda.KernelDef{
		Name:        MatrixMultiplyTiledName,
		Params:      []guda.ParamKind{guda.ParamBuffer, guda.ParamBuffer, guda.ParamBuffer},
		SharedMem:   tileBytes,
		Cooperative: true,
		Source:      matMulTiledSource,
		Binary:      matMulTiledBinary,
	}
}

func checkTileShape(block guda.Dim3) {
	if block.X != T || block.Y != T || block.Z != 1 {
		panic(fmt.Sprintf("%s needs %dx%d work groups, got %v", MatrixMultiplyTiledName, T, T, block))
	}
}

func matMulTiledSource(tid guda.ThreadID, blk *guda.Block, args ...interface{}) {
	checkTileShape(tid.BlockDim)
	a, b, c := f32(args[0]), f32(args[1]), f32(args[2])

	size := tid.GridDim.X * tid.BlockDim.X
	tx, ty := tid.ThreadIdx.X, tid.ThreadIdx.Y
	row, col := tid.GlobalY(), tid.GlobalX()

	scratch := blk.Shared().Float32()
	tileA, tileB := scratch[:T*T], scratch[T*T:2*T*T]

	var sum float32
	for t := 0; t < size/T; t++ {
		tileA[ty*T+tx] = a[row*size+t*T+tx]
		tileB[ty*T+tx] = b[(t*T+ty)*size+col]
		blk.SyncThreads()

		for k := 0; k < T; k++ {
			sum += float32(tileA[ty*T+k] * tileB[k*T+tx])
		}
		blk.SyncThreads()
	}
	c[row*size+col] = sum
}

// matMulTiledBinary is the same kernel with each barrier turned into the
// boundary between a load phase and an accumulate phase over the group.
func matMulTiledBinary(grp guda.Group, args ...interface{}) {
	checkTileShape(grp.BlockDim)
	a, b, c := f32(args[0]), f32(args[1]), f32(args[2])

	size := grp.GridDim.X * grp.BlockDim.X
	rowBase, colBase := grp.BlockIdx.Y*T, grp.BlockIdx.X*T

	scratch := grp.Shared().Float32()
	tileA, tileB := scratch[:T*T], scratch[T*T:2*T*T]
	var acc [T * T]float32

	for t := 0; t < size/T; t++ {
		for ty := 0; ty < T; ty++ {
			for tx := 0; tx < T; tx++ {
				tileA[ty*T+tx] = a[(rowBase+ty)*size+t*T+tx]
				tileB[ty*T+tx] = b[(t*T+ty)*size+colBase+tx]
			}
		}

		for ty := 0; ty < T; ty++ {
			for tx := 0; tx < T; tx++ {
				sum := acc[ty*T+tx]
				for k := 0; k < T; k++ {
					sum += float32(tileA[ty*T+k] * tileB[k*T+tx])
				}
				acc[ty*T+tx] = sum
			}
		}
	}

	for ty := 0; ty < T; ty++ {
		copy(c[(rowBase+ty)*size+colBase:(rowBase+ty)*size+colBase+T], acc[ty*T:(ty+1)*T])
	}
}
