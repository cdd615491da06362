package samples

import (
	"time"

	"github.com/samber/lo"

	guda "github.com/LynnColeArt/guda-samples"
)

// Sample is one benchmark. The harness calls Initialize and
// CreateMemoryBuffers once, then SetupKernel, RunKernel for every
// iteration and FinishKernel for each of the two kernels.
type Sample interface {
	Name() string

	// Initialize extracts the kernels and installs them on the harness.
	Initialize(h *Harness) error
	CreateMemoryBuffers(h *Harness) error

	// SetupKernel copies inputs to the device and binds arguments.
	SetupKernel(h *Harness, k *guda.Kernel) error

	// RunKernel enqueues one launch and returns its event without waiting.
	RunKernel(h *Harness, k *guda.Kernel) (*guda.Event, error)

	// FinishKernel copies results back to the host.
	FinishKernel(h *Harness, k *guda.Kernel) error
}

// Verifier is implemented by samples that can check the output of the
// most recent path against a host reference.
type Verifier interface {
	Verify(h *Harness) error
}

// FlopCounter reports the floating-point operations of one launch.
type FlopCounter interface {
	Flops(size int) float64
}

// HostBaseline is implemented by samples with a host BLAS equivalent.
type HostBaseline interface {
	HostBaseline(h *Harness) (time.Duration, error)
}

// VerifyStatus records the verification outcome of a path.
type VerifyStatus string

const (
	VerifySkipped VerifyStatus = ""
	VerifyPassed  VerifyStatus = "pass"
	VerifyFailed  VerifyStatus = "fail"
)

// PathResult is the timing of one kernel path.
type PathResult struct {
	Path       string        `json:"path"`
	Kernel     string        `json:"kernel"`
	Iterations int           `json:"iterations"`
	Elapsed    time.Duration `json:"elapsed"`
	Average    time.Duration `json:"average"`
	GFLOPS     float64       `json:"gflops,omitempty"`
	Verified   VerifyStatus  `json:"verified,omitempty"`
	Error      string        `json:"error,omitempty"`
}

// Failed reports whether the path aborted or failed verification.
func (p PathResult) Failed() bool {
	return p.Error != "" || p.Verified == VerifyFailed
}

// Report is the outcome of running one sample.
type Report struct {
	Sample      string        `json:"sample"`
	Size        int           `json:"size"`
	Paths       []PathResult  `json:"paths"`
	HostElapsed time.Duration `json:"host_elapsed,omitempty"`
	HostGFLOPS  float64       `json:"host_gflops,omitempty"`
	Timestamp   time.Time     `json:"timestamp"`
}

// Path returns the result for the named path.
func (r *Report) Path(name string) (PathResult, bool) {
	return lo.Find(r.Paths, func(p PathResult) bool { return p.Path == name })
}
