package guda

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
	"gonum.org/v1/gonum/blas/blas64"
)

func TestReferenceVectorAdd(t *testing.T) {
	a := []float32{1, 2, 3, 4}
	b := []float32{10, 20, 30, 40}
	c := []float32{-1, -1, -1, -1}

	Reference{}.VectorAdd(a, b, c, 3)
	assert.Equal(t, []float32{11, 22, 33, -1}, c, "elements past n must not be written")
}

func TestReferenceMatMul(t *testing.T) {
	t.Run("Small", func(t *testing.T) {
		a := []float32{1, 2, 3, 4}
		b := []float32{5, 6, 7, 8}
		c := []float32{99, 99, 99, 99}
		Reference{}.MatMul(a, b, c, 2)
		assert.Equal(t, []float32{19, 22, 43, 50}, c)
	})

	t.Run("Identity", func(t *testing.T) {
		const n = 7
		rng := rand.New(rand.NewSource(42))
		a := make([]float32, n*n)
		id := make([]float32, n*n)
		for i := range a {
			a[i] = rng.Float32()
		}
		for i := 0; i < n; i++ {
			id[i*n+i] = 1
		}
		c := make([]float32, n*n)
		Reference{}.MatMul(a, id, c, n)
		assert.Equal(t, a, c)
	})

	t.Run("MatchesBLAS", func(t *testing.T) {
		const n = 33
		rng := rand.New(rand.NewSource(7))
		a := make([]float32, n*n)
		b := make([]float32, n*n)
		for i := range a {
			a[i] = rng.Float32()*2 - 1
			b[i] = rng.Float32()*2 - 1
		}
		got := make([]float32, n*n)
		Reference{}.MatMul(a, b, got, n)

		want := blas32.General{Rows: n, Cols: n, Stride: n, Data: make([]float32, n*n)}
		blas32.Gemm(blas.NoTrans, blas.NoTrans, 1,
			blas32.General{Rows: n, Cols: n, Stride: n, Data: a},
			blas32.General{Rows: n, Cols: n, Stride: n, Data: b},
			0, want)
		require.NoError(t, CheckRelativeL2(want.Data, got, Float32RelTolerance))
	})
}

func TestReferenceMatMulFloat64(t *testing.T) {
	const n = 20
	rng := rand.New(rand.NewSource(3))
	a := make([]float64, n*n)
	b := make([]float64, n*n)
	for i := range a {
		a[i] = rng.Float64()
		b[i] = rng.Float64()
	}
	got := make([]float64, n*n)
	Reference{}.MatMulFloat64(a, b, got, n)

	want := blas64.General{Rows: n, Cols: n, Stride: n, Data: make([]float64, n*n)}
	blas64.Gemm(blas.NoTrans, blas.NoTrans, 1,
		blas64.General{Rows: n, Cols: n, Stride: n, Data: a},
		blas64.General{Rows: n, Cols: n, Stride: n, Data: b},
		0, want)
	require.NoError(t, CheckRelativeL2Float64(want.Data, got, Float64RelTolerance))

	third := 1.0 / 3
	one := []float64{0}
	Reference{}.MatMulFloat64([]float64{third}, []float64{third}, one, 1)
	assert.Equal(t, third*third, one[0])
}

func TestReferenceBlur2D(t *testing.T) {
	const n = 4
	stride := n + 2

	t.Run("Constant", func(t *testing.T) {
		in := make([]float32, stride*stride)
		for i := range in {
			in[i] = 9
		}
		out := make([]float32, stride*stride)
		for i := range out {
			out[i] = -1
		}
		Reference{}.Blur2D(in, out, n)

		for y := 0; y < stride; y++ {
			for x := 0; x < stride; x++ {
				want := float32(-1)
				if x >= 1 && x <= n && y >= 1 && y <= n {
					want = 9
				}
				assert.Equal(t, want, out[y*stride+x], "cell (%d, %d)", x, y)
			}
		}
	})

	t.Run("Impulse", func(t *testing.T) {
		in := make([]float32, stride*stride)
		in[2*stride+2] = 9
		out := make([]float32, stride*stride)
		Reference{}.Blur2D(in, out, n)

		for y := 1; y <= n; y++ {
			for x := 1; x <= n; x++ {
				want := float32(0)
				if x <= 3 && y <= 3 {
					want = 1
				}
				assert.Equal(t, want, out[y*stride+x], "cell (%d, %d)", x, y)
			}
		}
	})
}
