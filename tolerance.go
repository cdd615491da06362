// Package guda tolerance-based verification for floating-point comparisons
package guda

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// ToleranceConfig defines tolerance parameters for floating-point comparison
type ToleranceConfig struct {
	// AbsTol is the absolute tolerance for values near zero
	AbsTol float32

	// RelTol is the relative tolerance as a fraction of the larger value
	RelTol float32

	// ULPTol is the maximum allowed difference in ULPs (Units in Last Place)
	ULPTol int

	// CheckNaN determines if NaN values should be considered equal
	CheckNaN bool

	// CheckInf determines if Inf values should be considered equal
	CheckInf bool
}

// DefaultTolerance returns default tolerance configuration
func DefaultTolerance() ToleranceConfig {
	return ToleranceConfig{
		AbsTol:   1e-7,
		RelTol:   Float32RelTolerance,
		ULPTol:   4,
		CheckNaN: true,
		CheckInf: true,
	}
}

// RelaxedTolerance is for results accumulated over long dot products.
func RelaxedTolerance() ToleranceConfig {
	return ToleranceConfig{
		AbsTol:   1e-5,
		RelTol:   1e-3,
		ULPTol:   16,
		CheckNaN: true,
		CheckInf: true,
	}
}

// Float32NearEqual checks if two float32 values are equal within tolerance
func Float32NearEqual(a, b float32, tol ToleranceConfig) bool {
	if tol.CheckNaN && math.IsNaN(float64(a)) && math.IsNaN(float64(b)) {
		return true
	}
	if tol.CheckInf {
		if math.IsInf(float64(a), 1) && math.IsInf(float64(b), 1) {
			return true
		}
		if math.IsInf(float64(a), -1) && math.IsInf(float64(b), -1) {
			return true
		}
	}

	// Exact match covers ±0
	if a == b {
		return true
	}
	if isNonFinite(a) || isNonFinite(b) {
		return false
	}

	diff := math.Abs(float64(a - b))
	if diff <= float64(tol.AbsTol) {
		return true
	}

	larger := math.Max(math.Abs(float64(a)), math.Abs(float64(b)))
	if diff <= larger*float64(tol.RelTol) {
		return true
	}

	if tol.ULPTol > 0 && Float32ULPDiff(a, b) <= tol.ULPTol {
		return true
	}
	return false
}

// Float32ULPDiff computes the difference in ULPs between two float32 values
func Float32ULPDiff(a, b float32) int {
	aBits := math.Float32bits(a)
	bBits := math.Float32bits(b)

	// Opposite signs are treated as maximally distant
	if (aBits^bBits)&0x80000000 != 0 {
		return math.MaxInt32
	}
	if aBits > bBits {
		return int(aBits - bBits)
	}
	return int(bBits - aBits)
}

// VerificationResult summarizes an element-wise comparison.
type VerificationResult struct {
	MaxAbsError float32
	MaxRelError float32
	MaxULPError int
	NumErrors   int
	TotalItems  int
	FirstError  int // Index of first error, -1 if none
}

// VerifyFloat32Array compares two float32 arrays and returns detailed results
func VerifyFloat32Array(expected, actual []float32, tol ToleranceConfig) VerificationResult {
	result := VerificationResult{
		TotalItems: len(expected),
		FirstError: -1,
	}

	if len(expected) != len(actual) {
		result.NumErrors = len(expected)
		return result
	}

	for i := range expected {
		if Float32NearEqual(expected[i], actual[i], tol) {
			continue
		}
		result.NumErrors++
		if result.FirstError == -1 {
			result.FirstError = i
		}

		absDiff := float32(math.Abs(float64(expected[i] - actual[i])))
		result.MaxAbsError = max(result.MaxAbsError, absDiff)
		if expected[i] != 0 {
			result.MaxRelError = max(result.MaxRelError, absDiff/float32(math.Abs(float64(expected[i]))))
		}
		result.MaxULPError = max(result.MaxULPError, Float32ULPDiff(expected[i], actual[i]))
	}
	return result
}

// String formats the verification result for display
func (r VerificationResult) String() string {
	if r.NumErrors == 0 {
		return "PASS: All values match within tolerance"
	}

	errorRate := float64(r.NumErrors) / float64(r.TotalItems) * 100
	return fmt.Sprintf("FAIL: %d/%d values differ (%.2f%%)\n"+
		"  Max absolute error: %e\n"+
		"  Max relative error: %e\n"+
		"  Max ULP difference: %d\n"+
		"  First error at index: %d",
		r.NumErrors, r.TotalItems, errorRate,
		r.MaxAbsError, r.MaxRelError, r.MaxULPError,
		r.FirstError)
}

// RelativeL2Error returns ‖actual − expected‖₂ / ‖expected‖₂, accumulated
// in float64. A zero reference yields the absolute norm of the difference.
func RelativeL2Error(expected, actual []float32) (float64, error) {
	if len(expected) != len(actual) {
		return 0, NewInvalidArgError("RelativeL2Error", fmt.Sprintf("length mismatch: %d vs %d", len(expected), len(actual)))
	}
	e := make([]float64, len(expected))
	a := make([]float64, len(actual))
	for i := range expected {
		e[i] = float64(expected[i])
		a[i] = float64(actual[i])
	}
	return RelativeL2Error64(e, a)
}

// RelativeL2Error64 is RelativeL2Error for float64 data.
func RelativeL2Error64(expected, actual []float64) (float64, error) {
	if len(expected) != len(actual) {
		return 0, NewInvalidArgError("RelativeL2Error", fmt.Sprintf("length mismatch: %d vs %d", len(expected), len(actual)))
	}
	if len(expected) == 0 {
		return 0, nil
	}
	diff := floats.Distance(actual, expected, 2)
	ref := floats.Norm(expected, 2)
	if math.IsNaN(diff) {
		return 0, NewNumericalError("RelativeL2Error", "result contains NaN", ErrNaN)
	}
	if ref == 0 {
		return diff, nil
	}
	return diff / ref, nil
}

// CheckRelativeL2 returns a numerical error when the relative L2 error
// exceeds tol.
func CheckRelativeL2(expected, actual []float32, tol float64) error {
	rel, err := RelativeL2Error(expected, actual)
	if err != nil {
		return err
	}
	if rel > tol {
		return NewNumericalError("Verify", fmt.Sprintf("relative L2 error %.3e exceeds %.1e", rel, tol), nil)
	}
	return nil
}

// CheckRelativeL2Float64 is CheckRelativeL2 for float64 data.
func CheckRelativeL2Float64(expected, actual []float64, tol float64) error {
	rel, err := RelativeL2Error64(expected, actual)
	if err != nil {
		return err
	}
	if rel > tol {
		return NewNumericalError("Verify", fmt.Sprintf("relative L2 error %.3e exceeds %.1e", rel, tol), nil)
	}
	return nil
}

func isNonFinite(v float32) bool {
	f := float64(v)
	return math.IsNaN(f) || math.IsInf(f, 0)
}
