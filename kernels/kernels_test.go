package kernels_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	guda "github.com/LynnColeArt/guda-samples"
	"github.com/LynnColeArt/guda-samples/kernels"
)

var forms = []guda.ProgramForm{guda.FormSource, guda.FormBinary}

func newContext(t *testing.T) *guda.Context {
	t.Helper()
	ctx := guda.NewContext()
	t.Cleanup(func() { ctx.Destroy() })
	return ctx
}

func program(t *testing.T, ctx *guda.Context, form guda.ProgramForm) *guda.Program {
	t.Helper()
	if form == guda.FormSource {
		p, err := ctx.BuildProgram(kernels.ModuleName)
		require.NoError(t, err)
		return p
	}
	image, err := kernels.Binary()
	require.NoError(t, err)
	p, err := ctx.LoadBinary(image)
	require.NoError(t, err)
	return p
}

func launch(t *testing.T, ctx *guda.Context, form guda.ProgramForm, name string, grid, block guda.Dim3, args ...interface{}) error {
	t.Helper()
	k, err := program(t, ctx, form).Kernel(name)
	require.NoError(t, err)
	require.NoError(t, k.SetArgs(args...))
	require.NoError(t, ctx.LaunchKernel(k, grid, block))
	return ctx.Synchronize()
}

func upload(t *testing.T, ctx *guda.Context, host []float32) guda.DevicePtr {
	t.Helper()
	ptr, err := ctx.Malloc(len(host) * 4)
	require.NoError(t, err)
	require.NoError(t, ctx.Memcpy(ptr, host, len(host)*4, guda.MemcpyHostToDevice))
	return ptr
}

func randomFloats(rng *rand.Rand, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = rng.Float32()
	}
	return out
}

func square(n int) (grid, block guda.Dim3) {
	return guda.Dim3{X: n / kernels.T, Y: n / kernels.T}, guda.Dim3{X: kernels.T, Y: kernels.T}
}

func TestModuleContents(t *testing.T) {
	m := kernels.Module()
	assert.Equal(t, kernels.ModuleName, m.Name())
	assert.Equal(t, []string{
		kernels.VectorAddName,
		kernels.MatrixMultiplyName,
		kernels.MatrixMultiplyTiledName,
		kernels.MatMulName,
		kernels.MatMulDoubleName,
		kernels.Blur2DName,
	}, m.KernelNames())

	def, ok := m.Kernel(kernels.MatrixMultiplyTiledName)
	require.True(t, ok)
	assert.True(t, def.Cooperative)
	assert.Equal(t, 2*16*16*4, def.SharedMem)
}

func TestVectorAddGuardsTail(t *testing.T) {
	const n, padded = 1000, 1024
	rng := rand.New(rand.NewSource(1))
	a, b := randomFloats(rng, padded), randomFloats(rng, padded)

	for _, form := range forms {
		t.Run(form.String(), func(t *testing.T) {
			ctx := newContext(t)
			dA, dB := upload(t, ctx, a), upload(t, ctx, b)
			sentinel := make([]float32, padded)
			for i := range sentinel {
				sentinel[i] = -1
			}
			dC := upload(t, ctx, sentinel)

			err := launch(t, ctx, form, kernels.VectorAddName,
				guda.Dim3{X: padded / 256}, guda.Dim3{X: 256},
				dA, dB, dC, n)
			require.NoError(t, err)

			want := make([]float32, n)
			guda.Reference{}.VectorAdd(a, b, want, n)
			got := dC.Float32()
			assert.Equal(t, want, got[:n])
			for i := n; i < padded; i++ {
				assert.Equal(t, float32(-1), got[i], "element %d past N was written", i)
			}
		})
	}
}

func TestTiledMatchesReference(t *testing.T) {
	const n = 64
	rng := rand.New(rand.NewSource(42))
	a, b := randomFloats(rng, n*n), randomFloats(rng, n*n)
	want := make([]float32, n*n)
	guda.Reference{}.MatMul(a, b, want, n)

	for _, form := range forms {
		t.Run(form.String(), func(t *testing.T) {
			ctx := newContext(t)
			dA, dB := upload(t, ctx, a), upload(t, ctx, b)
			dC := upload(t, ctx, make([]float32, n*n))

			grid, block := square(n)
			require.NoError(t, launch(t, ctx, form, kernels.MatrixMultiplyTiledName, grid, block, dA, dB, dC))

			rel, err := guda.RelativeL2Error(want, dC.Float32())
			require.NoError(t, err)
			assert.LessOrEqual(t, rel, guda.Float32RelTolerance)
		})
	}
}

func TestTiledSingleTileEqualsNaive(t *testing.T) {
	const n = kernels.T
	rng := rand.New(rand.NewSource(7))
	a, b := randomFloats(rng, n*n), randomFloats(rng, n*n)

	ctx := newContext(t)
	dA, dB := upload(t, ctx, a), upload(t, ctx, b)
	naive := upload(t, ctx, make([]float32, n*n))
	tiled := upload(t, ctx, make([]float32, n*n))

	grid, block := square(n)
	require.NoError(t, launch(t, ctx, guda.FormSource, kernels.MatrixMultiplyName, grid, block, dA, dB, naive))
	require.NoError(t, launch(t, ctx, guda.FormSource, kernels.MatrixMultiplyTiledName, grid, block, dA, dB, tiled))
	assert.Equal(t, naive.Float32(), tiled.Float32())
}

func TestSourceAndBinaryAgree(t *testing.T) {
	const n = 48
	rng := rand.New(rand.NewSource(3))
	a, b := randomFloats(rng, n*n), randomFloats(rng, n*n)
	padded := randomFloats(rng, (n+2)*(n+2))

	a64, b64 := make([]float64, n*n), make([]float64, n*n)
	for i := range a64 {
		a64[i], b64[i] = rng.Float64(), rng.Float64()
	}

	grid, block := square(n)
	tests := []struct {
		name  string
		grid  guda.Dim3
		block guda.Dim3
		setup func(t *testing.T, ctx *guda.Context) (args []interface{}, out guda.DevicePtr)
	}{
		{kernels.VectorAddName, guda.Dim3{X: 10}, guda.Dim3{X: 256}, func(t *testing.T, ctx *guda.Context) ([]interface{}, guda.DevicePtr) {
			c := upload(t, ctx, make([]float32, n*n))
			return []interface{}{upload(t, ctx, a), upload(t, ctx, b), c, int32(n * n)}, c
		}},
		{kernels.MatrixMultiplyName, grid, block, func(t *testing.T, ctx *guda.Context) ([]interface{}, guda.DevicePtr) {
			c := upload(t, ctx, make([]float32, n*n))
			return []interface{}{upload(t, ctx, a), upload(t, ctx, b), c}, c
		}},
		{kernels.MatrixMultiplyTiledName, grid, block, func(t *testing.T, ctx *guda.Context) ([]interface{}, guda.DevicePtr) {
			c := upload(t, ctx, make([]float32, n*n))
			return []interface{}{upload(t, ctx, a), upload(t, ctx, b), c}, c
		}},
		{kernels.MatMulName, grid, block, func(t *testing.T, ctx *guda.Context) ([]interface{}, guda.DevicePtr) {
			c := upload(t, ctx, make([]float32, n*n))
			return []interface{}{upload(t, ctx, a), upload(t, ctx, b), c}, c
		}},
		{kernels.MatMulDoubleName, grid, block, func(t *testing.T, ctx *guda.Context) ([]interface{}, guda.DevicePtr) {
			args := make([]interface{}, 3)
			for i, host := range [][]float64{a64, b64, make([]float64, n*n)} {
				ptr, err := ctx.Malloc(len(host) * 8)
				require.NoError(t, err)
				require.NoError(t, ctx.Memcpy(ptr, host, len(host)*8, guda.MemcpyHostToDevice))
				args[i] = ptr
			}
			return args, args[2].(guda.DevicePtr)
		}},
		{kernels.Blur2DName, grid, block, func(t *testing.T, ctx *guda.Context) ([]interface{}, guda.DevicePtr) {
			out := upload(t, ctx, make([]float32, (n+2)*(n+2)))
			return []interface{}{upload(t, ctx, padded), out, uint32(n)}, out
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := newContext(t)
			var outputs [][]byte
			for _, form := range forms {
				args, out := tt.setup(t, ctx)
				require.NoError(t, launch(t, ctx, form, tt.name, tt.grid, tt.block, args...))
				outputs = append(outputs, append([]byte(nil), out.Byte()...))
			}
			assert.Equal(t, outputs[0], outputs[1], "source and binary outputs differ")
		})
	}
}

func TestMatMulDoubleMatchesReference(t *testing.T) {
	const n = 32
	rng := rand.New(rand.NewSource(11))
	a, b := make([]float64, n*n), make([]float64, n*n)
	for i := range a {
		a[i], b[i] = rng.Float64(), rng.Float64()
	}
	want := make([]float64, n*n)
	guda.Reference{}.MatMulFloat64(a, b, want, n)

	ctx := newContext(t)
	bufs := make([]guda.DevicePtr, 3)
	for i, host := range [][]float64{a, b, make([]float64, n*n)} {
		ptr, err := ctx.Malloc(n * n * 8)
		require.NoError(t, err)
		require.NoError(t, ctx.Memcpy(ptr, host, n*n*8, guda.MemcpyHostToDevice))
		bufs[i] = ptr
	}

	grid, block := square(n)
	require.NoError(t, launch(t, ctx, guda.FormBinary, kernels.MatMulDoubleName, grid, block, bufs[0], bufs[1], bufs[2]))
	assert.NoError(t, guda.CheckRelativeL2Float64(want, bufs[2].Float64(), guda.Float64RelTolerance))
}

func TestBlur2DLeavesBorder(t *testing.T) {
	const n = 32
	const stride = n + 2
	rng := rand.New(rand.NewSource(5))
	in := randomFloats(rng, stride*stride)

	for _, form := range forms {
		t.Run(form.String(), func(t *testing.T) {
			ctx := newContext(t)
			initial := make([]float32, stride*stride)
			for i := range initial {
				initial[i] = 99
			}
			dIn, dOut := upload(t, ctx, in), upload(t, ctx, initial)

			grid, block := square(n)
			require.NoError(t, launch(t, ctx, form, kernels.Blur2DName, grid, block, dIn, dOut, uint32(n)))

			want := append([]float32(nil), initial...)
			guda.Reference{}.Blur2D(in, want, n)
			got := dOut.Float32()
			assert.Equal(t, want, got)
			for x := 0; x < stride; x++ {
				assert.Equal(t, float32(99), got[x])
				assert.Equal(t, float32(99), got[(stride-1)*stride+x])
			}
		})
	}
}

func TestTiledRejectsOtherWorkGroupShapes(t *testing.T) {
	const n = 32
	for _, form := range forms {
		t.Run(form.String(), func(t *testing.T) {
			ctx := newContext(t)
			buf := make([]float32, n*n)
			dA, dB, dC := upload(t, ctx, buf), upload(t, ctx, buf), upload(t, ctx, buf)

			err := launch(t, ctx, form, kernels.MatrixMultiplyTiledName,
				guda.Dim3{X: n / 8, Y: n / 8}, guda.Dim3{X: 8, Y: 8}, dA, dB, dC)
			require.Error(t, err)
			assert.True(t, guda.IsExecutionError(err))
		})
	}
}

func TestBinaryImageLoads(t *testing.T) {
	ctx := newContext(t)
	p := program(t, ctx, guda.FormBinary)
	assert.Equal(t, guda.FormBinary, p.Form())
	assert.Equal(t, kernels.ModuleName, p.ModuleName())
	assert.Equal(t, kernels.Module().KernelNames(), p.KernelNames())

	k, err := p.Kernel(kernels.Blur2DName)
	require.NoError(t, err)
	assert.Equal(t, 3, k.NumArgs())
	assert.Error(t, k.SetArg(2, float32(1)), "blur2d size is uint32")
}
