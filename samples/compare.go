package samples

import (
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// Comparison statuses.
const (
	StatusPass   = "PASS"
	StatusFail   = "FAIL"
	StatusSlower = "SLOWER"
	StatusFaster = "FASTER"
)

// Comparison is the change of one sample path between two sessions.
type Comparison struct {
	Key              string
	Status           string
	BaselineDuration time.Duration
	CurrentDuration  time.Duration
	SpeedupFactor    float64
	Message          string
}

func recordKey(r Record) string {
	return fmt.Sprintf("%s/%s/n=%d", r.Sample, r.Path, r.Size)
}

// Compare matches baseline and current records by sample, path and size
// and classifies the change of their average launch time. A path is SLOWER
// when it takes more than regress times as long as the baseline and
// FASTER when it is more than 1.2× quicker. regress must be positive.
func Compare(baseline, current []Record, regress float64) ([]Comparison, error) {
	if !(regress > 0) || math.IsInf(regress, 0) {
		return nil, errors.Errorf("regression factor must be a positive number, got %v", regress)
	}
	currentByKey := lo.KeyBy(current, recordKey)

	comparisons := make([]Comparison, 0, len(baseline))
	for _, base := range baseline {
		comp := Comparison{
			Key:              recordKey(base),
			BaselineDuration: base.Average,
		}

		curr, ok := currentByKey[comp.Key]
		switch {
		case !ok:
			comp.Status = StatusFail
			comp.Message = "missing in current results"
		case curr.Status == "fail":
			comp.Status = StatusFail
			comp.Message = lo.Ternary(curr.Error != "", curr.Error, "verification failed")
		case base.Average <= 0 || curr.Average <= 0:
			comp.Status = StatusPass
			comp.CurrentDuration = curr.Average
		default:
			comp.CurrentDuration = curr.Average
			comp.SpeedupFactor = float64(base.Average) / float64(curr.Average)
			switch {
			case comp.SpeedupFactor < 1.0/regress:
				comp.Status = StatusSlower
				comp.Message = fmt.Sprintf("%.2fx slower", 1.0/comp.SpeedupFactor)
			case comp.SpeedupFactor > 1.2:
				comp.Status = StatusFaster
				comp.Message = fmt.Sprintf("%.2fx faster", comp.SpeedupFactor)
			default:
				comp.Status = StatusPass
			}
		}
		comparisons = append(comparisons, comp)
	}
	return comparisons, nil
}

// PrintComparison writes the comparison table.
func PrintComparison(w io.Writer, comparisons []Comparison) {
	counts := lo.CountValuesBy(comparisons, func(c Comparison) string { return c.Status })

	fmt.Fprintln(w, "=== Sample Comparison ===")
	fmt.Fprintf(w, "Total paths: %d\n", len(comparisons))
	for _, s := range []string{StatusPass, StatusFail, StatusSlower, StatusFaster} {
		fmt.Fprintf(w, "  %-7s %d\n", s+":", counts[s])
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "%-36s %-6s %12s %12s %8s\n", "Path", "Status", "Baseline", "Current", "Speedup")
	fmt.Fprintln(w, strings.Repeat("-", 80))
	for _, c := range comparisons {
		fmt.Fprintf(w, "%-36s %-6s %12v %12v %8.2f", c.Key, c.Status, c.BaselineDuration, c.CurrentDuration, c.SpeedupFactor)
		if c.Message != "" {
			fmt.Fprintf(w, "  %s", c.Message)
		}
		fmt.Fprintln(w)
	}
}

// SourceBinarySpeedups reports, per sample of one session, how much faster
// the binary path ran than the source path.
func SourceBinarySpeedups(records []Record) map[string]float64 {
	bySample := lo.GroupBy(lo.Filter(records, func(r Record, _ int) bool {
		return r.Status == "pass" && r.Average > 0
	}), func(r Record) string { return r.Sample })

	out := make(map[string]float64)
	for sample, recs := range bySample {
		src, okSrc := lo.Find(recs, func(r Record) bool { return r.Path == "source" })
		bin, okBin := lo.Find(recs, func(r Record) bool { return r.Path == "binary" })
		if okSrc && okBin {
			out[sample] = float64(src.Average) / float64(bin.Average)
		}
	}
	return out
}
