// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"log/slog"

	"github.com/AleutianAI/pairbench/pkg/logging"
	"github.com/AleutianAI/pairbench/services/harness/telemetry"
	"github.com/spf13/cobra"
)

// --- Global Command Variables ---
var (
	configPath      string
	logLevel        string
	logJSON         bool
	logDir          string
	onlyScenarios   []string
	traceExporter   string
	metricExporter  string
	otlpEndpoint    string
	metricsTextfile string
	noColor         bool

	logger *logging.Logger

	rootCmd = &cobra.Command{
		Use:   "pairbench",
		Short: "Run paired-variant micro-benchmarks and print a comparison report",
		Long: `pairbench measures pairs of interchangeable implementations side by side:
inline versus call timing, allocation volume, concurrent throughput,
failure rates under checked and unchecked access, and GC churn.

With no flags it runs the built-in plan and prints the report to stdout.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := logging.ParseLevel(logLevel)
			if err != nil {
				return err
			}
			logger = logging.New(logging.Config{
				Level:   level,
				LogDir:  logDir,
				Service: "pairbench",
				JSON:    logJSON,
				Writer:  cmd.ErrOrStderr(),
			})
			slog.SetDefault(logger.Slog())
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Close()
			}
		},
		RunE: runBench, // Defined in run.go
	}

	// --- Plan inspection ---
	planCmd = &cobra.Command{
		Use:   "plan",
		Short: "Print the effective plan as YAML",
		Args:  cobra.NoArgs,
		RunE:  runPlan, // Defined in run.go
	}

	listCmd = &cobra.Command{
		Use:   "list",
		Short: "List scenario names and kinds in plan order",
		Args:  cobra.NoArgs,
		RunE:  runList, // Defined in run.go
	}
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "",
		"YAML plan file (default: built-in plan)")
	flags.StringSliceVar(&onlyScenarios, "only", nil,
		"Run only the named scenarios, e.g. --only \"Simple Arithmetic,String Churn\"")

	flags.StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flags.BoolVar(&logJSON, "log-json", false, "Write logs to stderr as JSON")
	flags.StringVar(&logDir, "log-dir", "", "Also write JSON logs to this directory")

	flags.StringVar(&traceExporter, "trace-exporter", telemetry.ExporterNone,
		fmt.Sprintf("Trace exporter: %s, %s, %s", telemetry.ExporterNone, telemetry.ExporterStdout, telemetry.ExporterOTLP))
	flags.StringVar(&metricExporter, "metric-exporter", telemetry.ExporterNone,
		fmt.Sprintf("Metric exporter: %s, %s, %s", telemetry.ExporterNone, telemetry.ExporterStdout, telemetry.ExporterPrometheus))
	flags.StringVar(&otlpEndpoint, "otlp-endpoint", telemetry.DefaultConfig().OTLPEndpoint,
		"OTLP gRPC collector address for --trace-exporter otlp")
	flags.StringVar(&metricsTextfile, "metrics-textfile", "",
		"Write the run's Prometheus metrics to this file in text format")
	flags.BoolVar(&noColor, "no-color", false, "Disable colored status output")

	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(listCmd)
}
