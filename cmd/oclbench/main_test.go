package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestListShowsSamplesAndKernels(t *testing.T) {
	out, err := execute(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "matmul-tiled")
	assert.Contains(t, out, "matrix_multiply_tiled")
	assert.Contains(t, out, "shared=2048B")
}

func TestRunSummaryAndCompare(t *testing.T) {
	dir := t.TempDir()
	image := filepath.Join(dir, "oclsamples.bin")

	_, err := execute(t, "--log-level", "error", "build-binary", "-o", image)
	require.NoError(t, err)
	_, err = os.Stat(image)
	require.NoError(t, err)

	out, err := execute(t, "--log-level", "error", "--log-dir", dir,
		"run", "--size", "32", "--iterations", "2", "--verify", "--binary", image,
		"vector-add", "matmul-tiled")
	require.NoError(t, err)
	assert.Contains(t, out, "vector-add (n=32)")
	assert.Contains(t, out, "verify=pass")

	out, err = execute(t, "--log-dir", dir, "summary")
	require.NoError(t, err)
	assert.Contains(t, out, "Total: 4 | Passed: 4 | Failed: 0")

	matches, err := filepath.Glob(filepath.Join(dir, "*.json"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	out, err = execute(t, "--log-dir", dir, "compare", matches[0], matches[0], "--perf-regress", "1.5")
	require.NoError(t, err)
	assert.Contains(t, out, "Sample Comparison")
}

func TestRunRequiresSamples(t *testing.T) {
	_, err := execute(t, "--log-dir", t.TempDir(), "run")
	assert.Error(t, err)

	_, err = execute(t, "--log-dir", t.TempDir(), "run", "fft")
	assert.ErrorContains(t, err, "unknown samples")
}

func TestRunStopsAtFirstFailure(t *testing.T) {
	dir := t.TempDir()
	_, err := execute(t, "--log-level", "error", "--log-dir", dir,
		"run", "--size", "20", "--iterations", "1", "matmul")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "multiple of 16")

	out, err := execute(t, "--log-dir", dir, "summary")
	require.NoError(t, err)
	assert.Contains(t, out, "Failed: 1")
}

func TestBadLogLevel(t *testing.T) {
	_, err := execute(t, "--log-level", "loud", "list")
	assert.Error(t, err)
}

func TestVersionFlag(t *testing.T) {
	out, err := execute(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "oclbench version devel")
}

func TestCompareRejectsNonPositiveRegress(t *testing.T) {
	dir := t.TempDir()
	log := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(log, []byte("[]"), 0644))

	for _, v := range []string{"0", "-2"} {
		_, err := execute(t, "compare", log, log, "--perf-regress="+v)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "--perf-regress must be positive")
	}
}
