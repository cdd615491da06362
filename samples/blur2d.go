package samples

import (
	"math/rand"

	guda "github.com/LynnColeArt/guda-samples"
	"github.com/LynnColeArt/guda-samples/kernels"
)

// blur2DSample blurs an N×N image stored with a one-cell border.
type blur2DSample struct {
	n int

	hostIn, hostOut []float32
	devIn, devOut   guda.DevicePtr
}

func (s *blur2DSample) Name() string { return "blur2d" }

func (s *blur2DSample) Initialize(h *Harness) error {
	s.n = h.Config().Size
	if err := checkSquare(s.Name(), s.n); err != nil {
		return err
	}
	h.Logger().WithField("size", s.n).Info("Using problem size")
	return h.UseKernel(kernels.Blur2DName)
}

func (s *blur2DSample) elems() int {
	return (s.n + 2) * (s.n + 2)
}

func (s *blur2DSample) CreateMemoryBuffers(h *Harness) error {
	rng := rand.New(rand.NewSource(h.Config().Seed))
	s.hostIn = randomFloat32(rng, s.elems())
	s.hostOut = make([]float32, s.elems())

	var err error
	if s.devIn, err = h.Buffer(s.elems() * 4); err != nil {
		return err
	}
	s.devOut, err = h.Buffer(s.elems() * 4)
	return err
}

func (s *blur2DSample) SetupKernel(h *Harness, k *guda.Kernel) error {
	clear(s.hostOut)
	if err := h.Write(s.devIn, s.hostIn); err != nil {
		return err
	}
	if err := h.Write(s.devOut, s.hostOut); err != nil {
		return err
	}
	return k.SetArgs(s.devIn, s.devOut, uint32(s.n))
}

func (s *blur2DSample) RunKernel(h *Harness, k *guda.Kernel) (*guda.Event, error) {
	global, local := squareRange(s.n)
	return h.Queue().EnqueueNDRangeKernel(k, global, local)
}

func (s *blur2DSample) FinishKernel(h *Harness, _ *guda.Kernel) error {
	return h.Read(s.devOut, s.hostOut)
}

func (s *blur2DSample) Verify(*Harness) error {
	want := make([]float32, s.elems())
	guda.Reference{}.Blur2D(s.hostIn, want, s.n)
	return guda.CheckRelativeL2(want, s.hostOut, guda.Float32RelTolerance)
}

// Flops counts nine additions and one division per output cell.
func (s *blur2DSample) Flops(size int) float64 {
	return 10 * float64(size) * float64(size)
}
