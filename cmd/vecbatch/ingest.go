package main

import (
	"errors"
	"fmt"
	"os"
	"unicode/utf8"

	"github.com/mattn/go-isatty"
	"github.com/poiesic/vecbatch/batch"
	"github.com/poiesic/vecbatch/ingestion"
	"github.com/poiesic/vecbatch/source"
	"github.com/poiesic/vecbatch/storage"
	"github.com/urfave/cli/v2"
)

func sourceFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "file",
			Aliases:  []string{"f"},
			Usage:    "Excel (.xlsx) or CSV (.csv) file to read, local or s3://bucket/key",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "sheet",
			Usage: "Excel worksheet (first sheet when empty)",
		},
		&cli.StringFlag{
			Name:  "delimiter",
			Usage: "CSV field delimiter",
			Value: ",",
		},
		&cli.IntFlag{
			Name:  "skip-rows",
			Usage: "Number of rows to skip at the beginning (for resuming)",
		},
		&cli.IntFlag{
			Name:  "limit-rows",
			Usage: "Limit the number of rows to process (after skipping rows)",
		},
		&cli.IntFlag{
			Name:  "batch-size",
			Usage: "Number of rows to process in each batch",
			Value: 50,
		},
		&cli.StringSliceFlag{
			Name:  "vector-columns",
			Usage: "Columns holding JSON vectors from an earlier vectorize run (repeat or comma separate)",
		},
		&cli.BoolFlag{
			Name:  "no-progress",
			Usage: "Do not draw the progress line",
		},
	}
}

// retryFlags control how batches are retried.
func retryFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:  "max-attempts",
			Usage: "Attempts per batch, including the first",
			Value: 5,
		},
		&cli.DurationFlag{
			Name:  "wait-time",
			Usage: "Base delay between batch attempts (see --retry-strategy)",
			Value: ingestion.DefaultConfig().WaitTime,
		},
		&cli.StringFlag{
			Name:  "failure-policy",
			Usage: "After a batch exhausts its attempts: continue or abort",
			Value: batch.Continue.String(),
		},
	}
}

func ingestCommand() *cli.Command {
	flags := append(sourceFlags(), vectorFlags()...)
	flags = append(flags, retryFlags()...)
	flags = append(flags,
		indexFlag(),
		&cli.StringFlag{
			Name:  "id-scheme",
			Usage: "Document ids: row (source row number) or content (hash of id columns)",
			Value: string(ingestion.RowIDs),
		},
		&cli.StringSliceFlag{
			Name:  "id-columns",
			Usage: "Columns hashed for content ids (defaults to --columns)",
		},
		&cli.Float64Flag{
			Name:  "failure-tolerance",
			Usage: "Fraction of documents in a batch allowed to fail without failing the batch",
		},
		&cli.BoolFlag{
			Name:    "delete",
			Aliases: []string{"truncate"},
			Usage:   "Delete all documents in the index before ingesting",
		},
		&cli.BoolFlag{
			Name:  "create-index",
			Usage: "Create the index when it does not exist",
		},
		&cli.BoolFlag{
			Name:  "resume",
			Usage: "Continue from the saved checkpoint",
		},
		&cli.StringFlag{
			Name:  "checkpoint-key",
			Usage: "Checkpoint name (defaults to the index name)",
		},
	)
	return &cli.Command{
		Name:   "ingest",
		Usage:  "Vectorize rows of a file and index them",
		Action: ingestAction,
		Flags:  flags,
	}
}

func sourceOptions(c *cli.Context) (source.Options, error) {
	opts := source.Options{
		Sheet:         c.String("sheet"),
		VectorColumns: splitList(c.StringSlice("vector-columns")),
		Region:        c.String("region"),
		Profile:       c.String("profile"),
	}
	if d := c.String("delimiter"); d != "" {
		r, size := utf8.DecodeRuneInString(d)
		if size != len(d) {
			return opts, fmt.Errorf("delimiter must be a single character, got %q", d)
		}
		opts.Delimiter = r
	}
	return opts, nil
}

func ingestConfig(c *cli.Context) (*ingestion.Config, error) {
	cfg := ingestion.DefaultConfig()
	cfg.Index = c.String("index")
	cfg.Columns = splitList(c.StringSlice("columns"))
	cfg.IDColumns = splitList(c.StringSlice("id-columns"))
	cfg.CombinedField = c.String("combined-field")
	cfg.EmbeddingSuffix = c.String("embedding-suffix")
	cfg.BatchSize = c.Int("batch-size")
	cfg.SkipRows = c.Int("skip-rows")
	cfg.LimitRows = c.Int("limit-rows")
	cfg.MaxAttempts = c.Int("max-attempts")
	cfg.WaitTime = c.Duration("wait-time")
	cfg.FailureTolerance = c.Float64("failure-tolerance")
	cfg.Truncate = c.Bool("delete")
	cfg.Resume = c.Bool("resume")
	cfg.CreateIndex = c.Bool("create-index")
	cfg.Dimension = c.Int("dimension")

	var err error
	if cfg.Strategy, err = ingestion.ParseStrategy(c.String("strategy")); err != nil {
		return nil, err
	}
	if cfg.IDScheme, err = ingestion.ParseIDScheme(c.String("id-scheme")); err != nil {
		return nil, err
	}
	if cfg.FailurePolicy, err = batch.ParseFailurePolicy(c.String("failure-policy")); err != nil {
		return nil, err
	}
	if cfg.SpaceType, err = storage.ParseSpaceType(c.String("space-type")); err != nil {
		return nil, err
	}
	if cfg.RetryStrategy, err = retryStrategy(c); err != nil {
		return nil, err
	}
	return cfg, nil
}

func ingestAction(c *cli.Context) error {
	cfg, err := ingestConfig(c)
	if err != nil {
		return err
	}
	srcOpts, err := sourceOptions(c)
	if err != nil {
		return err
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	if cfg.CreateIndex && cfg.Dimension == 0 {
		if cfg.Dimension, err = db.EmbeddingDimension(c.Context); err != nil {
			return err
		}
	}

	file := c.String("file")
	src, err := source.Open(c.Context, file, srcOpts)
	if err != nil {
		return fmt.Errorf("reading %s: %w", file, err)
	}

	var opts []ingestion.Option
	if repo := db.CheckpointRepository(); repo != nil {
		key := c.String("checkpoint-key")
		if key == "" {
			key = cfg.Index
		}
		opts = append(opts, ingestion.WithCheckpoints(repo, key))
	}
	if showProgress(c) {
		opts = append(opts, ingestion.WithMonitor(batch.NewProgressMonitor(os.Stderr)))
	}

	pipeline, err := db.NewIngestionPipeline(src, cfg, opts...)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Ingesting %s into %s (columns %v, %s strategy)\n", file, cfg.Index, cfg.Columns, cfg.Strategy)
	report, runErr := pipeline.Run(c.Context)
	if report != nil {
		printIngestReport(c.App.Writer, report, db.Client().Stats())
	}
	switch {
	case errors.Is(runErr, batch.ErrInterrupted):
		return cli.Exit("interrupted", 130)
	case runErr != nil:
		return runErr
	case report.Failed > 0:
		return cli.Exit(fmt.Sprintf("%d batches failed", report.Failed), 1)
	}
	return nil
}

func showProgress(c *cli.Context) bool {
	if c.Bool("no-progress") {
		return false
	}
	fd := os.Stderr.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
