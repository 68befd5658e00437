package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/poiesic/vecbatch/batch"
	"github.com/poiesic/vecbatch/ingestion"
	"github.com/poiesic/vecbatch/source"
	"github.com/urfave/cli/v2"
)

func vectorizeCommand() *cli.Command {
	flags := append(sourceFlags(), vectorFlags()...)
	flags = append(flags, retryFlags()...)
	flags = append(flags,
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output CSV path (default <file>_vectorized.csv next to the input)",
		},
		&cli.BoolFlag{
			Name:  "overwrite",
			Usage: "Replace the output file when it exists",
		},
	)
	return &cli.Command{
		Name:   "vectorize",
		Usage:  "Embed columns of a file and write them to a CSV for a later ingest",
		Action: vectorizeAction,
		Flags:  flags,
	}
}

// outputPath returns <dir>/<stem>_vectorized.csv for a local or s3:// input.
func outputPath(file string) string {
	if strings.HasPrefix(file, "s3://") {
		file = filepath.Base(file)
	}
	stem := strings.TrimSuffix(file, filepath.Ext(file))
	return stem + "_vectorized.csv"
}

func vectorizeConfig(c *cli.Context) (*ingestion.Config, error) {
	cfg := ingestion.DefaultConfig()
	cfg.Columns = splitList(c.StringSlice("columns"))
	cfg.CombinedField = c.String("combined-field")
	cfg.EmbeddingSuffix = c.String("embedding-suffix")
	cfg.BatchSize = c.Int("batch-size")
	cfg.SkipRows = c.Int("skip-rows")
	cfg.LimitRows = c.Int("limit-rows")
	cfg.MaxAttempts = c.Int("max-attempts")
	cfg.WaitTime = c.Duration("wait-time")

	var err error
	if cfg.Strategy, err = ingestion.ParseStrategy(c.String("strategy")); err != nil {
		return nil, err
	}
	if cfg.FailurePolicy, err = batch.ParseFailurePolicy(c.String("failure-policy")); err != nil {
		return nil, err
	}
	if cfg.RetryStrategy, err = retryStrategy(c); err != nil {
		return nil, err
	}
	return cfg, nil
}

func vectorizeAction(c *cli.Context) error {
	cfg, err := vectorizeConfig(c)
	if err != nil {
		return err
	}
	srcOpts, err := sourceOptions(c)
	if err != nil {
		return err
	}

	file := c.String("file")
	output := c.String("output")
	if output == "" {
		output = outputPath(file)
	}
	if _, err := os.Stat(output); err == nil && !c.Bool("overwrite") {
		return fmt.Errorf("output file %s exists: pass --overwrite to replace it", output)
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	src, err := source.Open(c.Context, file, srcOpts)
	if err != nil {
		return fmt.Errorf("reading %s: %w", file, err)
	}

	var opts []ingestion.Option
	if showProgress(c) {
		opts = append(opts, ingestion.WithMonitor(batch.NewProgressMonitor(os.Stderr)))
	}
	exporter, err := db.NewExporter(src, cfg, opts...)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Vectorizing %s into %s (columns %v, %s strategy)\n", file, output, cfg.Columns, cfg.Strategy)
	report, runErr := exporter.Run(c.Context)
	if errors.Is(runErr, batch.ErrInterrupted) {
		return cli.Exit(fmt.Sprintf("interrupted, nothing written: continue with --skip-rows %d", cfg.SkipRows), 130)
	}
	if runErr != nil && report == nil {
		return runErr
	}

	if err := writeOutput(output, report); err != nil {
		return err
	}

	printExportReport(c.App.Writer, output, report)
	switch {
	case runErr != nil:
		return runErr
	case report.Failed > 0:
		return cli.Exit(fmt.Sprintf("%d batches failed", report.Failed), 1)
	}
	return nil
}

func writeOutput(path string, report *ingestion.ExportReport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := source.WriteCSV(f, report.Columns, report.Rows); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}
