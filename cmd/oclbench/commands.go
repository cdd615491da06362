package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	guda "github.com/LynnColeArt/guda-samples"
	"github.com/LynnColeArt/guda-samples/kernels"
	"github.com/LynnColeArt/guda-samples/samples"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List samples and module kernels",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Samples:")
			for _, name := range samples.Names() {
				fmt.Fprintf(out, "  %s\n", name)
			}
			m := kernels.Module()
			fmt.Fprintf(out, "Kernels in module %q:\n", m.Name())
			for _, name := range m.KernelNames() {
				def, _ := m.Kernel(name)
				params := make([]string, len(def.Params))
				for i, p := range def.Params {
					params[i] = p.String()
				}
				fmt.Fprintf(out, "  %-22s (%s)", name, strings.Join(params, ", "))
				if def.SharedMem > 0 {
					fmt.Fprintf(out, " shared=%dB", def.SharedMem)
				}
				fmt.Fprintln(out)
			}
			fmt.Fprintf(out, "Device: %s (%d cores)\n", guda.GetDevice().Name, guda.GetDevice().NumCores)
			return nil
		},
	}
}

func newRunCmd() *cobra.Command {
	cfg := samples.DefaultConfig()
	var all bool

	cmd := &cobra.Command{
		Use:   "run [samples...]",
		Short: "Run samples through the source and binary paths",
		RunE: func(cmd *cobra.Command, args []string) error {
			if all {
				args = nil
			}
			if len(args) == 0 && !all {
				return errors.New("name at least one sample or pass --all")
			}
			names, err := samples.Select(args)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return runSamples(ctx, cmd, cfg, names)
		},
	}

	flags := cmd.Flags()
	flags.IntVarP(&cfg.Size, "size", "n", cfg.Size, "problem size (matrix edge, multiple of 16 for 2D samples)")
	flags.IntVarP(&cfg.Iterations, "iterations", "i", cfg.Iterations, "timed launches per path")
	flags.BoolVar(&cfg.Verify, "verify", cfg.Verify, "check each path against a host reference")
	flags.BoolVar(&cfg.Baseline, "baseline", cfg.Baseline, "time a host BLAS baseline where available")
	flags.StringVar(&cfg.BinaryPath, "binary", cfg.BinaryPath, "binary image to load instead of the built-in one")
	flags.Int64Var(&cfg.Seed, "seed", cfg.Seed, "seed for host input data")
	flags.BoolVar(&all, "all", false, "run every sample")
	return cmd
}

// runSamples runs each sample in a fresh harness and stops at the first
// failure after logging it.
func runSamples(ctx context.Context, cmd *cobra.Command, cfg samples.Config, names []string) error {
	results, err := samples.NewResultLog(logDir, "oclbench")
	if err != nil {
		return err
	}
	logrus.WithField("file", results.File()).Info("Logging results")

	for _, name := range names {
		report, err := runOne(ctx, cfg, name)
		if report != nil {
			if lerr := results.AddReport(report); lerr != nil {
				return lerr
			}
		}
		if err != nil {
			if report == nil {
				if lerr := results.AddFailure(name, cfg.Size, err); lerr != nil {
					logrus.WithError(lerr).Warn("Failed to log failure")
				}
			}
			return err
		}
		printReport(cmd, report)
	}
	return nil
}

func runOne(ctx context.Context, cfg samples.Config, name string) (*samples.Report, error) {
	s, err := samples.New(name)
	if err != nil {
		return nil, err
	}
	h, err := samples.NewHarness(cfg, logrus.StandardLogger())
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := h.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close harness")
		}
	}()
	return h.Run(ctx, s)
}

func printReport(cmd *cobra.Command, r *samples.Report) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s (n=%d)\n", r.Sample, r.Size)
	for _, p := range r.Paths {
		fmt.Fprintf(out, "  %-7s elapsed %-14v average %-14v", p.Path, p.Elapsed, p.Average)
		if p.GFLOPS > 0 {
			fmt.Fprintf(out, " %8.2f GFLOP/s", p.GFLOPS)
		}
		if p.Verified != samples.VerifySkipped {
			fmt.Fprintf(out, " verify=%s", p.Verified)
		}
		fmt.Fprintln(out)
	}
	if r.HostElapsed > 0 {
		fmt.Fprintf(out, "  host    elapsed %-14v %8.2f GFLOP/s\n", r.HostElapsed, r.HostGFLOPS)
	}
}

func newBuildBinaryCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "build-binary",
		Short: "Write the binary image of the sample module",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			image, err := kernels.Binary()
			if err != nil {
				return err
			}
			if err := os.WriteFile(output, image, 0644); err != nil {
				return errors.Wrap(err, "failed to write binary image")
			}
			logrus.WithFields(logrus.Fields{
				"file":    output,
				"bytes":   len(image),
				"kernels": len(kernels.Module().KernelNames()),
			}).Info("Wrote binary image")
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", kernels.ModuleName+".bin", "output file")
	return cmd
}

func newSummaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary [log-file]",
		Short: "Summarize a result log (the latest one by default)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := logFileArg(args)
			if err != nil {
				return err
			}
			records, err := samples.LoadRecords(file)
			if err != nil {
				return err
			}
			samples.PrintSummary(cmd.OutOrStdout(), filepath.Base(file), records)

			speedups := samples.SourceBinarySpeedups(records)
			names := make([]string, 0, len(speedups))
			for name := range speedups {
				names = append(names, name)
			}
			slices.Sort(names)
			for _, name := range names {
				fmt.Fprintf(cmd.OutOrStdout(), "%-16s binary/source speedup %.2fx\n", name, speedups[name])
			}
			return nil
		},
	}
}

func newCompareCmd() *cobra.Command {
	var regress float64
	cmd := &cobra.Command{
		Use:   "compare <baseline-log> [current-log]",
		Short: "Compare two result logs",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if regress <= 0 {
				return errors.Errorf("--perf-regress must be positive, got %v", regress)
			}
			baseline, err := samples.LoadRecords(args[0])
			if err != nil {
				return err
			}
			file, err := logFileArg(args[1:])
			if err != nil {
				return err
			}
			current, err := samples.LoadRecords(file)
			if err != nil {
				return err
			}

			comparisons, err := samples.Compare(baseline, current, regress)
			if err != nil {
				return err
			}
			samples.PrintComparison(cmd.OutOrStdout(), comparisons)
			for _, c := range comparisons {
				if c.Status == samples.StatusFail {
					return errors.Errorf("%s: %s", c.Key, c.Message)
				}
			}
			return nil
		},
	}
	cmd.Flags().Float64Var(&regress, "perf-regress", 1.1, "slowdown factor reported as a regression")
	return cmd
}

func logFileArg(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	return samples.LatestLogFile(logDir)
}
