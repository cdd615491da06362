// Package samples runs the benchmark samples. Every sample is driven
// through the same sequence by a Harness: initialize, create buffers, then
// for the source kernel and the binary kernel set up, launch a fixed number
// of profiled iterations, finish, and optionally verify.
package samples

import (
	"context"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	guda "github.com/LynnColeArt/guda-samples"
	"github.com/LynnColeArt/guda-samples/kernels"
)

// Config controls a harness run.
type Config struct {
	// Size is the problem edge: matrices and images are Size×Size and
	// vector samples use Size² elements. 2D samples need a multiple of 16.
	Size int

	// Iterations is the number of timed launches per path.
	Iterations int

	// Verify checks each path's output against a host reference.
	Verify bool

	// Baseline times a host BLAS implementation where the sample has one.
	Baseline bool

	// BinaryPath is a binary image to load. When empty the image is
	// encoded from the registered module.
	BinaryPath string

	// Seed initializes host input data.
	Seed int64
}

// DefaultConfig returns the configuration the samples run with when no
// flags are given.
func DefaultConfig() Config {
	return Config{
		Size:       512,
		Iterations: 16,
		Seed:       1,
	}
}

// Harness owns the device context, the profiling command queue and the
// pair of kernels a sample runs.
type Harness struct {
	cfg   Config
	log   logrus.FieldLogger
	ctx   *guda.Context
	queue *guda.CommandQueue

	source     *guda.Kernel
	binary     *guda.Kernel
	iterations int
	buffers    []guda.DevicePtr
}

// NewHarness creates a context and a profiling-enabled command queue.
func NewHarness(cfg Config, log logrus.FieldLogger) (*Harness, error) {
	if cfg.Size <= 0 {
		return nil, errors.Errorf("problem size must be positive, got %d", cfg.Size)
	}
	if cfg.Iterations <= 0 {
		return nil, errors.Errorf("iteration count must be positive, got %d", cfg.Iterations)
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	ctx := guda.NewContext()
	queue, err := ctx.NewCommandQueue(guda.QueueProfilingEnable)
	if err != nil {
		ctx.Destroy()
		return nil, errors.Wrap(err, "failed to create command queue")
	}
	return &Harness{
		cfg:        cfg,
		log:        log,
		ctx:        ctx,
		queue:      queue,
		iterations: cfg.Iterations,
	}, nil
}

// Close releases buffers and destroys the context.
func (h *Harness) Close() error {
	h.releaseBuffers()
	return h.ctx.Destroy()
}

// Config returns the harness configuration.
func (h *Harness) Config() Config { return h.cfg }

// Context returns the device context.
func (h *Harness) Context() *guda.Context { return h.ctx }

// Queue returns the profiling command queue.
func (h *Harness) Queue() *guda.CommandQueue { return h.queue }

// Logger returns the harness logger.
func (h *Harness) Logger() logrus.FieldLogger { return h.log }

// SetSourceKernel sets the kernel run on the source path.
func (h *Harness) SetSourceKernel(k *guda.Kernel) { h.source = k }

// SetBinaryKernel sets the kernel run on the binary path.
func (h *Harness) SetBinaryKernel(k *guda.Kernel) { h.binary = k }

// SetIterations overrides the configured iteration count.
func (h *Harness) SetIterations(n int) error {
	if n <= 0 {
		return errors.Errorf("iterations must be positive, got %d", n)
	}
	h.iterations = n
	return nil
}

// CompileSource builds the source form of the named module.
func (h *Harness) CompileSource(module string) (*guda.Program, error) {
	p, err := h.ctx.BuildProgram(module)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to build program %q from source", module)
	}
	return p, nil
}

// LoadBinary loads the binary image at Config.BinaryPath, or an image
// encoded from the sample module when no path is configured.
func (h *Harness) LoadBinary() (*guda.Program, error) {
	var (
		image []byte
		err   error
	)
	if h.cfg.BinaryPath != "" {
		image, err = os.ReadFile(h.cfg.BinaryPath)
		if err != nil {
			return nil, errors.Wrap(err, "failed to read binary image")
		}
	} else {
		image, err = kernels.Binary()
		if err != nil {
			return nil, errors.Wrap(err, "failed to encode binary image")
		}
	}
	p, err := h.ctx.LoadBinary(image)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load binary program")
	}
	return p, nil
}

// UseKernel extracts name from a source build and from the binary image
// and installs them as the source and binary kernels.
func (h *Harness) UseKernel(name string) error {
	src, err := h.CompileSource(kernels.ModuleName)
	if err != nil {
		return err
	}
	bin, err := h.LoadBinary()
	if err != nil {
		return err
	}
	ks, err := src.Kernel(name)
	if err != nil {
		return errors.Wrap(err, "failed to extract source kernel")
	}
	kb, err := bin.Kernel(name)
	if err != nil {
		return errors.Wrap(err, "failed to extract binary kernel")
	}
	h.SetSourceKernel(ks)
	h.SetBinaryKernel(kb)
	return nil
}

// Buffer allocates a device buffer released when the harness closes.
func (h *Harness) Buffer(bytes int) (guda.DevicePtr, error) {
	ptr, err := h.ctx.Malloc(bytes)
	if err != nil {
		return guda.DevicePtr{}, errors.Wrapf(err, "failed to allocate device buffer of %d bytes", bytes)
	}
	h.buffers = append(h.buffers, ptr)
	return ptr, nil
}

// Write copies host data into buf and waits for the copy.
func (h *Harness) Write(buf guda.DevicePtr, host interface{}) error {
	if _, err := h.queue.EnqueueWriteBuffer(buf, true, 0, buf.Size(), host); err != nil {
		return errors.Wrap(err, "failed to copy data to device")
	}
	return nil
}

// Read copies buf into host and waits for the copy.
func (h *Harness) Read(buf guda.DevicePtr, host interface{}) error {
	if _, err := h.queue.EnqueueReadBuffer(buf, true, 0, buf.Size(), host); err != nil {
		return errors.Wrap(err, "failed to copy data to host")
	}
	return nil
}

func (h *Harness) releaseBuffers() {
	for _, buf := range h.buffers {
		if err := h.ctx.Free(buf); err != nil {
			h.log.WithError(err).Warn("Failed to free device buffer")
		}
	}
	h.buffers = nil
}

// Run drives s through both paths and returns the timings.
func (h *Harness) Run(ctx context.Context, s Sample) (*Report, error) {
	log := h.log.WithField("sample", s.Name())
	report := &Report{
		Sample:    s.Name(),
		Size:      h.cfg.Size,
		Timestamp: time.Now(),
	}

	log.Info("Initializing run")
	if err := s.Initialize(h); err != nil {
		return nil, errors.Wrapf(err, "%s: initialize", s.Name())
	}
	if err := s.CreateMemoryBuffers(h); err != nil {
		return nil, errors.Wrapf(err, "%s: create memory buffers", s.Name())
	}
	if h.source == nil || h.binary == nil {
		return nil, errors.Errorf("%s: source and binary kernels must both be set during initialization", s.Name())
	}

	paths := []struct {
		kernel  *guda.Kernel
		message string
	}{
		{h.source, "Running kernel as source"},
		{h.binary, "Running compiled kernel from binary"},
	}
	for _, p := range paths {
		log.WithField("kernel", p.kernel.Name()).Info(p.message)
		res, err := h.timeKernel(ctx, log, s, p.kernel)
		if err != nil {
			err = errors.Wrapf(err, "%s: %s path", s.Name(), p.kernel.Form())
			res.Error = err.Error()
			report.Paths = append(report.Paths, res)
			return report, err
		}

		if h.cfg.Verify {
			if v, ok := s.(Verifier); ok {
				if err := v.Verify(h); err != nil {
					res.Verified = VerifyFailed
					report.Paths = append(report.Paths, res)
					return report, errors.Wrapf(err, "%s: %s path verification", s.Name(), p.kernel.Form())
				}
				res.Verified = VerifyPassed
				log.WithField("path", res.Path).Info("Verification passed")
			}
		}
		report.Paths = append(report.Paths, res)
	}

	if h.cfg.Baseline {
		if b, ok := s.(HostBaseline); ok {
			d, err := b.HostBaseline(h)
			if err != nil {
				return nil, errors.Wrapf(err, "%s: host baseline", s.Name())
			}
			report.HostElapsed = d
			if fc, ok := s.(FlopCounter); ok && d > 0 {
				report.HostGFLOPS = gflops(fc.Flops(h.cfg.Size), 1, d)
			}
			log.WithFields(logrus.Fields{
				"elapsed": d,
				"gflops":  report.HostGFLOPS,
			}).Info("Host baseline")
		}
	}
	return report, nil
}

// timeKernel runs the configured iterations strictly one after another and
// sums the device-side duration of each launch.
func (h *Harness) timeKernel(ctx context.Context, log logrus.FieldLogger, s Sample, k *guda.Kernel) (PathResult, error) {
	res := PathResult{Path: k.Form().String(), Kernel: k.Name(), Iterations: h.iterations}

	if err := s.SetupKernel(h, k); err != nil {
		return res, errors.Wrap(err, "setup kernel")
	}

	for i := 0; i < h.iterations; i++ {
		if err := ctx.Err(); err != nil {
			return res, errors.Wrapf(err, "interrupted after %d iterations", i)
		}
		ev, err := s.RunKernel(h, k)
		if err != nil {
			return res, errors.Wrapf(err, "launch %d", i)
		}
		if err := h.queue.Flush(); err != nil {
			return res, errors.Wrap(err, "flush")
		}
		if err := ev.Wait(); err != nil {
			return res, errors.Wrapf(err, "iteration %d", i)
		}
		d, err := ev.Duration()
		if err != nil {
			return res, errors.Wrap(err, "unable to get profiling information")
		}
		res.Elapsed += d
	}

	if err := s.FinishKernel(h, k); err != nil {
		return res, errors.Wrap(err, "finish kernel")
	}

	res.Average = res.Elapsed / time.Duration(h.iterations)
	if fc, ok := s.(FlopCounter); ok && res.Elapsed > 0 {
		res.GFLOPS = gflops(fc.Flops(h.cfg.Size), h.iterations, res.Elapsed)
	}

	log.WithFields(logrus.Fields{
		"path":    res.Path,
		"elapsed": res.Elapsed,
		"average": res.Average,
	}).Info("Kernel timing")
	return res, nil
}

func gflops(flops float64, iterations int, elapsed time.Duration) float64 {
	return flops * float64(iterations) / elapsed.Seconds() / 1e9
}
