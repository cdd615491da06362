// Copyright ©2024 The GUDA Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command oclbench runs the kernel samples through their source and binary
// paths and keeps a JSON log of the timings.
package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	guda "github.com/LynnColeArt/guda-samples"
)

var (
	logLevel  string
	logFormat string
	logDir    string
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "oclbench",
		Short:         "Compare source and binary kernel execution",
		Version:       version(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return configureLogging()
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text or json)")
	root.PersistentFlags().StringVar(&logDir, "log-dir", "benchmark_logs", "directory for result logs")

	root.AddCommand(
		newListCmd(),
		newRunCmd(),
		newBuildBinaryCmd(),
		newSummaryCmd(),
		newCompareCmd(),
	)
	return root
}

// version reports the runtime module version, or "devel" when oclbench is
// built inside the module itself.
func version() string {
	if v, _ := guda.Version(); v != "" {
		return v
	}
	return "devel"
}

func configureLogging() error {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return err
	}
	logrus.SetLevel(level)
	if logFormat == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logrus.WithError(err).Error("oclbench failed")
		os.Exit(1)
	}
}
