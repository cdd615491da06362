package kernels

import (
	guda "github.com/LynnColeArt/guda-samples"
)

// blur2d(In, Out, N) averages the 3×3 neighbourhood of every interior cell
// of an (N+2)×(N+2) image. Work item (x, y) writes Out[y+1][x+1]; the
// border of Out is never written.
func blur2D() *guda.KernelDef {
	return &guda.KernelDef{
		Name:   Blur2DName,
		Params: []guda.ParamKind{guda.ParamBuffer, guda.ParamBuffer, guda.ParamUint32},
		Source: blur2DSource,
		Binary: blur2DBinary,
	}
}

func blur2DSource(tid guda.ThreadID, _ *guda.Block, args ...interface{}) {
	in, out := f32(args[0]), f32(args[1])
	n := int(args[2].(uint32))
	blurCell(in, out, n, tid.GlobalX(), tid.GlobalY())
}

func blur2DBinary(grp guda.Group, args ...interface{}) {
	in, out := f32(args[0]), f32(args[1])
	n := int(args[2].(uint32))

	x0, y0 := grp.BlockIdx.X*grp.BlockDim.X, grp.BlockIdx.Y*grp.BlockDim.Y
	for y := y0; y < y0+grp.BlockDim.Y; y++ {
		for x := x0; x < x0+grp.BlockDim.X; x++ {
			blurCell(in, out, n, x, y)
		}
	}
}

func blurCell(in, out []float32, n, x, y int) {
	if x >= n || y >= n {
		return
	}
	stride := n + 2
	cx, cy := x+1, y+1

	var sum float32
	for dy := -1; dy <= 1; dy++ {
		row := (cy + dy) * stride
		sum += in[row+cx-1] + in[row+cx] + in[row+cx+1]
	}
	out[cy*stride+cx] = sum / 9
}
