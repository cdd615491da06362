package samples

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// Record is one logged path result.
type Record struct {
	Sample     string        `json:"sample"`
	Path       string        `json:"path"`
	Kernel     string        `json:"kernel,omitempty"`
	Size       int           `json:"size"`
	Status     string        `json:"status"` // "pass" or "fail"
	Iterations int           `json:"iterations,omitempty"`
	Elapsed    time.Duration `json:"elapsed,omitempty"`
	Average    time.Duration `json:"average,omitempty"`
	GFLOPS     float64       `json:"gflops,omitempty"`
	Verified   VerifyStatus  `json:"verified,omitempty"`
	Error      string        `json:"error,omitempty"`
	Timestamp  time.Time     `json:"timestamp"`
}

// ResultLog writes the records of one session to a JSON file, rewriting
// it after every addition so a crash loses nothing already logged.
type ResultLog struct {
	mu      sync.Mutex
	records []Record
	file    string
}

// NewResultLog creates dir if needed and starts a session file named
// after session and the current time.
func NewResultLog(dir, session string) (*ResultLog, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrap(err, "failed to create log directory")
	}
	timestamp := time.Now().Format("20060102_150405")
	l := &ResultLog{
		file: filepath.Join(dir, fmt.Sprintf("%s_%s.json", session, timestamp)),
	}
	if err := l.flush(); err != nil {
		return nil, err
	}
	return l, nil
}

// File returns the session file path.
func (l *ResultLog) File() string {
	return l.file
}

// Records returns a copy of the logged records.
func (l *ResultLog) Records() []Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Record(nil), l.records...)
}

// AddReport logs one record per path of r.
func (l *ResultLog) AddReport(r *Report) error {
	return l.add(lo.Map(r.Paths, func(p PathResult, _ int) Record {
		return Record{
			Sample:     r.Sample,
			Path:       p.Path,
			Kernel:     p.Kernel,
			Size:       r.Size,
			Status:     lo.Ternary(p.Failed(), "fail", "pass"),
			Iterations: p.Iterations,
			Elapsed:    p.Elapsed,
			Average:    p.Average,
			GFLOPS:     p.GFLOPS,
			Verified:   p.Verified,
			Error:      p.Error,
			Timestamp:  r.Timestamp,
		}
	})...)
}

// AddFailure logs a sample that aborted before any path ran.
func (l *ResultLog) AddFailure(sample string, size int, err error) error {
	return l.add(Record{
		Sample:    sample,
		Size:      size,
		Status:    "fail",
		Error:     err.Error(),
		Timestamp: time.Now(),
	})
}

func (l *ResultLog) add(recs ...Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, recs...)
	return l.flush()
}

func (l *ResultLog) flush() error {
	data, err := json.MarshalIndent(l.records, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal results")
	}
	return errors.Wrap(os.WriteFile(l.file, data, 0644), "failed to write results")
}

// LatestLogFile returns the most recently modified session file in dir.
func LatestLogFile(dir string) (string, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return "", err
	}

	var latest string
	var latestTime time.Time
	for _, file := range files {
		info, err := os.Stat(file)
		if err != nil {
			continue
		}
		if info.ModTime().After(latestTime) {
			latest = file
			latestTime = info.ModTime()
		}
	}
	if latest == "" {
		return "", errors.Errorf("no log files found in %s", dir)
	}
	return latest, nil
}

// LoadRecords reads a session file.
func LoadRecords(file string) ([]Record, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read results")
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s", file)
	}
	return records, nil
}

// PrintSummary writes a per-path table of records.
func PrintSummary(w io.Writer, title string, records []Record) {
	fmt.Fprintf(w, "\nSample Summary from %s:\n", title)
	fmt.Fprintln(w, strings.Repeat("=", 78))

	passed, failed := 0, 0
	for _, r := range records {
		if r.Status == "fail" {
			failed++
			reason := r.Error
			if reason == "" {
				reason = "verification failed"
			}
			fmt.Fprintf(w, "✗ %-16s %-7s FAILED: %s\n", r.Sample, r.Path, reason)
			continue
		}
		passed++
		fmt.Fprintf(w, "✓ %-16s %-7s n=%-6d avg %12v", r.Sample, r.Path, r.Size, r.Average)
		if r.GFLOPS > 0 {
			fmt.Fprintf(w, " %9.2f GFLOP/s", r.GFLOPS)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, strings.Repeat("=", 78))
	fmt.Fprintf(w, "Total: %d | Passed: %d | Failed: %d\n", len(records), passed, failed)
}
