package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"txexport/internal/application"
	"txexport/internal/bootstrap"
	"txexport/internal/config"
	"txexport/internal/infrastructure/logging"
	"txexport/internal/infrastructure/telemetry"

	"github.com/spf13/cobra"
)

type runOptions struct {
	address string
	output  string
	strict  bool
}

func runCmd() *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Fetch every category for one address and write the CSV export",
		Long: `Fetch native, fungible token and NFT/multi-token history for one
address, merge it in that order and write a single CSV file.

Examples:
  ingest run --address 0xde0b295669a9fd93d5f28d9ec85e40f4cb697bae
  ingest run -a 0xde0b... -o exports/wallet.csv --env-file .env`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			envFile, _ := cmd.Flags().GetString("env-file")
			return runIngest(cmd.Context(), cmd.OutOrStdout(), envFile, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.address, "address", "a", "", "wallet address to export (required)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "export file path (defaults to EXPORT_PATH)")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "exit non-zero when any category is incomplete")
	_ = cmd.MarkFlagRequired("address")
	return cmd
}

func loadConfig(envFile string) (config.Config, error) {
	if envFile != "" {
		return config.LoadFromFile(envFile)
	}
	return config.LoadFromEnv()
}

func runIngest(parent context.Context, out io.Writer, envFile string, opts *runOptions) error {
	cfg, err := loadConfig(envFile)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if opts.output != "" {
		cfg.ExportPath = opts.output
	}

	logCloser, err := logging.Init(logging.Config(cfg.Log))
	if err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	defer logCloser.Close()

	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	shutdownTracing, err := telemetry.InitTracer(ctx, "txexport-ingest", version, cfg.OtelEndpoint)
	if err != nil {
		slog.Warn("tracing init failed", "err", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(shutdownCtx)
	}()

	pipeline, err := bootstrap.Build(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer pipeline.Close()

	report, err := pipeline.Runner.Run(ctx, opts.address)
	if err != nil {
		return err
	}
	return printReport(out, report, opts.strict)
}

func printReport(out io.Writer, report application.Report, strict bool) error {
	fmt.Fprintf(out, "run %s: %d records written to %s in %s\n",
		report.RunID, len(report.Result.Records), report.ExportPath, report.Duration.Round(time.Millisecond))

	failed := report.Result.Errors()
	for _, category := range report.Result.Categories {
		status := "ok"
		if err, ok := failed[category.Category]; ok {
			status = "incomplete: " + err.Error()
		}
		fmt.Fprintf(out, "  %-14s %6d  %s\n", category.Category, len(category.Records), status)
	}
	if strict && len(failed) > 0 {
		return fmt.Errorf("%d categories incomplete", len(failed))
	}
	return nil
}
