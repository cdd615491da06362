package samples

import (
	"math"
	"math/rand"

	"github.com/pkg/errors"

	guda "github.com/LynnColeArt/guda-samples"
	"github.com/LynnColeArt/guda-samples/kernels"
)

type vectorAddSample struct {
	n int

	hostA, hostB, hostC []float32
	devA, devB, devC    guda.DevicePtr
}

func (s *vectorAddSample) Name() string { return "vector-add" }

func (s *vectorAddSample) Initialize(h *Harness) error {
	s.n = h.Config().Size * h.Config().Size
	if s.n > math.MaxInt32 {
		return errors.Errorf("vector length %d overflows int32", s.n)
	}
	h.Logger().WithField("elements", s.n).Info("Using problem size")
	return h.UseKernel(kernels.VectorAddName)
}

func (s *vectorAddSample) CreateMemoryBuffers(h *Harness) error {
	rng := rand.New(rand.NewSource(h.Config().Seed))
	s.hostA = randomFloat32(rng, s.n)
	s.hostB = randomFloat32(rng, s.n)
	s.hostC = make([]float32, s.n)

	var err error
	if s.devA, err = h.Buffer(s.n * 4); err != nil {
		return err
	}
	if s.devB, err = h.Buffer(s.n * 4); err != nil {
		return err
	}
	s.devC, err = h.Buffer(s.n * 4)
	return err
}

func (s *vectorAddSample) SetupKernel(h *Harness, k *guda.Kernel) error {
	clear(s.hostC)
	for _, w := range []struct {
		dev  guda.DevicePtr
		host []float32
	}{{s.devA, s.hostA}, {s.devB, s.hostB}, {s.devC, s.hostC}} {
		if err := h.Write(w.dev, w.host); err != nil {
			return err
		}
	}
	return k.SetArgs(s.devA, s.devB, s.devC, int32(s.n))
}

func (s *vectorAddSample) RunKernel(h *Harness, k *guda.Kernel) (*guda.Event, error) {
	local := guda.DefaultBlockSize
	global := (s.n + local - 1) / local * local
	return h.Queue().EnqueueNDRangeKernel(k, guda.Dim3{X: global}, guda.Dim3{X: local})
}

func (s *vectorAddSample) FinishKernel(h *Harness, _ *guda.Kernel) error {
	return h.Read(s.devC, s.hostC)
}

func (s *vectorAddSample) Verify(*Harness) error {
	want := make([]float32, s.n)
	guda.Reference{}.VectorAdd(s.hostA, s.hostB, want, s.n)
	return guda.CheckRelativeL2(want, s.hostC, guda.Float32RelTolerance)
}

func (s *vectorAddSample) Flops(size int) float64 {
	return float64(size) * float64(size)
}

func randomFloat32(rng *rand.Rand, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = rng.Float32()
	}
	return out
}

func randomFloat64(rng *rand.Rand, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = rng.Float64()
	}
	return out
}
