package samples

import (
	"math/rand"
	"time"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
	"gonum.org/v1/gonum/blas/blas64"

	guda "github.com/LynnColeArt/guda-samples"
	"github.com/LynnColeArt/guda-samples/kernels"
)

// tile is the work-group edge every 2D sample launches with.
const tile = guda.TileSize

func checkSquare(name string, n int) error {
	if n%tile != 0 {
		return errors.Errorf("%s needs a size that is a multiple of %d, got %d", name, tile, n)
	}
	return nil
}

func squareRange(n int) (global, local guda.Dim3) {
	return guda.Dim3{X: n, Y: n}, guda.Dim3{X: tile, Y: tile}
}

// matMulSample multiplies two single-precision N×N matrices with one of
// the float32 matrix kernels.
type matMulSample struct {
	name   string
	kernel string
	n      int

	hostA, hostB, hostC []float32
	devA, devB, devC    guda.DevicePtr
}

func newMatMul(name, kernel string) *matMulSample {
	return &matMulSample{name: name, kernel: kernel}
}

func (s *matMulSample) Name() string { return s.name }

func (s *matMulSample) Initialize(h *Harness) error {
	s.n = h.Config().Size
	if err := checkSquare(s.name, s.n); err != nil {
		return err
	}
	h.Logger().WithField("size", s.n).Info("Using problem size")
	return h.UseKernel(s.kernel)
}

func (s *matMulSample) CreateMemoryBuffers(h *Harness) error {
	rng := rand.New(rand.NewSource(h.Config().Seed))
	elems := s.n * s.n
	s.hostA = randomFloat32(rng, elems)
	s.hostB = randomFloat32(rng, elems)
	s.hostC = make([]float32, elems)

	var err error
	if s.devA, err = h.Buffer(elems * 4); err != nil {
		return err
	}
	if s.devB, err = h.Buffer(elems * 4); err != nil {
		return err
	}
	s.devC, err = h.Buffer(elems * 4)
	return err
}

func (s *matMulSample) SetupKernel(h *Harness, k *guda.Kernel) error {
	clear(s.hostC)
	if err := h.Write(s.devA, s.hostA); err != nil {
		return err
	}
	if err := h.Write(s.devB, s.hostB); err != nil {
		return err
	}
	if err := h.Write(s.devC, s.hostC); err != nil {
		return err
	}
	return k.SetArgs(s.devA, s.devB, s.devC)
}

func (s *matMulSample) RunKernel(h *Harness, k *guda.Kernel) (*guda.Event, error) {
	global, local := squareRange(s.n)
	return h.Queue().EnqueueNDRangeKernel(k, global, local)
}

func (s *matMulSample) FinishKernel(h *Harness, _ *guda.Kernel) error {
	return h.Read(s.devC, s.hostC)
}

func (s *matMulSample) Verify(*Harness) error {
	want := make([]float32, s.n*s.n)
	guda.Reference{}.MatMul(s.hostA, s.hostB, want, s.n)
	if err := guda.CheckRelativeL2(want, s.hostC, guda.Float32RelTolerance); err != nil {
		return err
	}
	if res := guda.VerifyFloat32Array(want, s.hostC, guda.RelaxedTolerance()); res.NumErrors != 0 {
		return guda.NewNumericalError("Verify", res.String(), nil)
	}
	return nil
}

func (s *matMulSample) Flops(size int) float64 {
	n := float64(size)
	return 2 * n * n * n
}

// HostBaseline times a single-precision BLAS GEMM of the same inputs.
func (s *matMulSample) HostBaseline(*Harness) (time.Duration, error) {
	general := func(data []float32) blas32.General {
		return blas32.General{Rows: s.n, Cols: s.n, Stride: s.n, Data: data}
	}
	c := make([]float32, s.n*s.n)

	start := time.Now()
	blas32.Gemm(blas.NoTrans, blas.NoTrans, 1, general(s.hostA), general(s.hostB), 0, general(c))
	return time.Since(start), nil
}

// matMulDoubleSample is the double-precision matrix multiply.
type matMulDoubleSample struct {
	n int

	hostA, hostB, hostC []float64
	devA, devB, devC    guda.DevicePtr
}

func (s *matMulDoubleSample) Name() string { return "matmul-double" }

func (s *matMulDoubleSample) Initialize(h *Harness) error {
	s.n = h.Config().Size
	if err := checkSquare(s.Name(), s.n); err != nil {
		return err
	}
	h.Logger().WithField("size", s.n).Info("Using problem size")
	return h.UseKernel(kernels.MatMulDoubleName)
}

func (s *matMulDoubleSample) CreateMemoryBuffers(h *Harness) error {
	rng := rand.New(rand.NewSource(h.Config().Seed))
	elems := s.n * s.n
	s.hostA = randomFloat64(rng, elems)
	s.hostB = randomFloat64(rng, elems)
	s.hostC = make([]float64, elems)

	var err error
	if s.devA, err = h.Buffer(elems * 8); err != nil {
		return err
	}
	if s.devB, err = h.Buffer(elems * 8); err != nil {
		return err
	}
	s.devC, err = h.Buffer(elems * 8)
	return err
}

func (s *matMulDoubleSample) SetupKernel(h *Harness, k *guda.Kernel) error {
	clear(s.hostC)
	if err := h.Write(s.devA, s.hostA); err != nil {
		return err
	}
	if err := h.Write(s.devB, s.hostB); err != nil {
		return err
	}
	if err := h.Write(s.devC, s.hostC); err != nil {
		return err
	}
	return k.SetArgs(s.devA, s.devB, s.devC)
}

func (s *matMulDoubleSample) RunKernel(h *Harness, k *guda.Kernel) (*guda.Event, error) {
	global, local := squareRange(s.n)
	return h.Queue().EnqueueNDRangeKernel(k, global, local)
}

func (s *matMulDoubleSample) FinishKernel(h *Harness, _ *guda.Kernel) error {
	return h.Read(s.devC, s.hostC)
}

func (s *matMulDoubleSample) Verify(*Harness) error {
	want := make([]float64, s.n*s.n)
	guda.Reference{}.MatMulFloat64(s.hostA, s.hostB, want, s.n)
	return guda.CheckRelativeL2Float64(want, s.hostC, guda.Float64RelTolerance)
}

func (s *matMulDoubleSample) Flops(size int) float64 {
	n := float64(size)
	return 2 * n * n * n
}

// HostBaseline times a double-precision BLAS GEMM of the same inputs.
func (s *matMulDoubleSample) HostBaseline(*Harness) (time.Duration, error) {
	general := func(data []float64) blas64.General {
		return blas64.General{Rows: s.n, Cols: s.n, Stride: s.n, Data: data}
	}
	c := make([]float64, s.n*s.n)

	start := time.Now()
	blas64.Gemm(blas.NoTrans, blas.NoTrans, 1, general(s.hostA), general(s.hostB), 0, general(c))
	return time.Since(start), nil
}
