// Package guda reference implementations for verification
package guda

// Reference contains simple host implementations of the sample kernels.
// They are the oracles the kernels are verified against.
type Reference struct{}

// VectorAdd computes c[i] = a[i] + b[i] for the first n elements.
func (r Reference) VectorAdd(a, b, c []float32, n int) {
	for i := 0; i < n; i++ {
		c[i] = a[i] + b[i]
	}
}

// MatMul computes c = a*b for square row-major n×n matrices. The loop runs
// in k, i, j order so the innermost loop streams rows of b and c.
func (r Reference) MatMul(a, b, c []float32, n int) {
	clear(c[:n*n])
	for k := 0; k < n; k++ {
		for i := 0; i < n; i++ {
			aik := a[i*n+k]
			for j := 0; j < n; j++ {
				c[i*n+j] += float32(aik * b[k*n+j])
			}
		}
	}
}

// MatMulFloat64 is MatMul in double precision.
func (r Reference) MatMulFloat64(a, b, c []float64, n int) {
	clear(c[:n*n])
	for k := 0; k < n; k++ {
		for i := 0; i < n; i++ {
			aik := a[i*n+k]
			for j := 0; j < n; j++ {
				c[i*n+j] += float64(aik * b[k*n+j])
			}
		}
	}
}

// Blur2D applies a 3×3 box blur to the interior of a padded (n+2)×(n+2)
// image. Border cells of out are left untouched.
func (r Reference) Blur2D(in, out []float32, n int) {
	stride := n + 2
	for y := 1; y <= n; y++ {
		for x := 1; x <= n; x++ {
			var sum float32
			for dy := -1; dy <= 1; dy++ {
				row := (y + dy) * stride
				sum += in[row+x-1] + in[row+x] + in[row+x+1]
			}
			out[y*stride+x] = sum / 9
		}
	}
}
