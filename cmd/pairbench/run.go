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
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"

	"github.com/AleutianAI/pairbench/cmd/pairbench/config"
	"github.com/AleutianAI/pairbench/pkg/ux"
	"github.com/AleutianAI/pairbench/pkg/validation"
	"github.com/AleutianAI/pairbench/services/harness/eval/report"
	evaltelemetry "github.com/AleutianAI/pairbench/services/harness/eval/telemetry"
	"github.com/AleutianAI/pairbench/services/harness/suite"
	"github.com/AleutianAI/pairbench/services/harness/telemetry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

// errScenariosFailed is returned after the report has been printed when at
// least one scenario failed.
var errScenariosFailed = errors.New("one or more scenarios failed")

// runOptions is the flag state a run needs, gathered so tests can drive
// execute without cobra.
type runOptions struct {
	traceExporter   string
	metricExporter  string
	otlpEndpoint    string
	metricsTextfile string
}

func currentRunOptions() runOptions {
	return runOptions{
		traceExporter:   traceExporter,
		metricExporter:  metricExporter,
		otlpEndpoint:    otlpEndpoint,
		metricsTextfile: metricsTextfile,
	}
}

// loadPlan reads --config, converts it and applies --only.
func loadPlan() (suite.Plan, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return suite.Plan{}, err
	}
	plan, err := cfg.ToSuite()
	if err != nil {
		return suite.Plan{}, err
	}
	names, err := validation.SanitizeScenarioNames(onlyScenarios)
	if err != nil {
		return suite.Plan{}, err
	}
	return plan.Only(names)
}

func runBench(cmd *cobra.Command, _ []string) error {
	plan, err := loadPlan()
	if err != nil {
		return err
	}
	status := newStatus(cmd.OutOrStdout(), cmd.ErrOrStderr(), noColor)
	return execute(cmd.Context(), plan, currentRunOptions(), cmd.OutOrStdout(), cmd.ErrOrStderr(), status)
}

// execute runs plan with telemetry wired and writes the report to stdout.
//
// Description:
//
//	Installs the tracer and meter providers, builds the sinks, runs the
//	suite and prints the report. The report is printed even when scenarios
//	fail. The private Prometheus registry is shared by the result sink and
//	the OTel prometheus exporter and is what --metrics-textfile writes.
//
// Outputs:
//   - error: errScenariosFailed joined with the scenario errors, a context
//     error, or a setup error. Nil when every scenario succeeded.
func execute(ctx context.Context, plan suite.Plan, opts runOptions, stdout, stderr io.Writer, status *ux.Output) error {
	if ctx == nil {
		ctx = context.Background()
	}
	plan = plan.Expand()
	log := slog.Default()

	registry := prometheus.NewRegistry()

	tcfg := telemetry.DefaultConfig()
	tcfg.TraceExporter = opts.traceExporter
	tcfg.MetricExporter = opts.metricExporter
	tcfg.OTLPEndpoint = opts.otlpEndpoint
	tcfg.Writer = stderr
	tcfg.Registerer = registry

	shutdown, err := telemetry.Init(ctx, tcfg)
	if err != nil {
		return fmt.Errorf("failed to initialise telemetry: %w", err)
	}
	defer func() {
		if serr := shutdown(context.Background()); serr != nil {
			log.Warn("telemetry shutdown failed", slog.String("error", serr.Error()))
		}
	}()

	sink, err := buildSinks(registry, opts, status, len(plan.Scenarios))
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sink.Close(); cerr != nil {
			log.Warn("closing sinks failed", slog.String("error", cerr.Error()))
		}
	}()

	if status != nil {
		status.Banner("pairbench", fmt.Sprintf("%d scenarios", len(plan.Scenarios)))
	}

	set, runErr := suite.New(plan, suite.WithSink(sink), suite.WithLogger(log)).Run(ctx)
	if ferr := sink.Flush(ctx); ferr != nil {
		log.Warn("flushing sinks failed", slog.String("error", ferr.Error()))
	}

	if set != nil {
		if werr := report.NewFormatter().Write(stdout, set); werr != nil {
			return fmt.Errorf("failed to write the report: %w", werr)
		}
	}

	if opts.metricsTextfile != "" {
		if werr := prometheus.WriteToTextfile(opts.metricsTextfile, registry); werr != nil {
			log.Error("writing metrics textfile failed",
				slog.String("path", opts.metricsTextfile),
				slog.String("error", werr.Error()),
			)
		}
	}

	if status != nil && set != nil {
		failed := len(set.Failed())
		status.Summary(set.Len()-failed, failed, len(plan.Scenarios))
	}

	if runErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %w", errScenariosFailed, runErr)
	}
	return nil
}

// buildSinks assembles the result sinks for one run. The OTel sink is only
// added when an exporter would see its output.
func buildSinks(registry *prometheus.Registry, opts runOptions, status *ux.Output, total int) (*evaltelemetry.CompositeSink, error) {
	pcfg := evaltelemetry.DefaultPrometheusConfig()
	pcfg.Registry = registry
	promSink, err := evaltelemetry.NewPrometheusSink(pcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create the prometheus sink: %w", err)
	}

	sinks := []evaltelemetry.Sink{promSink}

	if enabledExporter(opts.traceExporter) || enabledExporter(opts.metricExporter) {
		ocfg := evaltelemetry.DefaultOTelConfig()
		ocfg.TraceEnabled = enabledExporter(opts.traceExporter)
		ocfg.MetricsEnabled = enabledExporter(opts.metricExporter)
		otelSink, err := evaltelemetry.NewOTelSink(ocfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create the otel sink: %w", err)
		}
		sinks = append(sinks, otelSink)
	}

	if status != nil {
		sinks = append(sinks, newStatusSink(status, total))
	}
	return evaltelemetry.NewCompositeSink(sinks...)
}

func enabledExporter(name string) bool {
	return name != "" && name != telemetry.ExporterNone
}

func runPlan(cmd *cobra.Command, _ []string) error {
	plan, err := loadPlan()
	if err != nil {
		return err
	}
	data, err := config.Marshal(config.FromSuite(plan))
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}

func runList(cmd *cobra.Command, _ []string) error {
	plan, err := loadPlan()
	if err != nil {
		return err
	}
	return writeList(cmd.OutOrStdout(), plan)
}

func writeList(w io.Writer, plan suite.Plan) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tKIND\tWORKLOAD")
	for _, sc := range plan.Scenarios {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", sc.Name, sc.Kind, sc.Workload)
	}
	return tw.Flush()
}
