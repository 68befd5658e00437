package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/poiesic/vecbatch/batch"
	"github.com/poiesic/vecbatch/evaluate"
	"github.com/poiesic/vecbatch/source"
	"github.com/urfave/cli/v2"
)

func evaluateCommand() *cli.Command {
	flags := append(sourceFlags(), searchFlags()...)
	flags = append(flags,
		&cli.StringSliceFlag{
			Name:  "evaluation-columns",
			Usage: "Columns joined into each query",
			Value: cli.NewStringSlice("department name", "test description"),
		},
		&cli.StringFlag{
			Name:  "match-column",
			Usage: "Column in the dataset holding the expected value",
			Value: "loinc code",
		},
		&cli.StringFlag{
			Name:  "match-field",
			Usage: "Field in the index compared with the expected value",
			Value: "LOINC_NUM",
		},
		&cli.StringFlag{
			Name:  "display-field",
			Usage: "Field in the index printed for matched rows",
			Value: "LONG_COMMON_NAME",
		},
		&cli.IntSliceFlag{
			Name:  "thresholds",
			Usage: "k values accuracy is reported for",
			Value: cli.NewIntSlice(evaluate.DefaultThresholds...),
		},
		&cli.IntFlag{
			Name:  "window",
			Usage: "Number of hits searched for the expected value",
			Value: 100,
		},
		&cli.IntFlag{
			Name:  "parallel",
			Usage: "Queries in flight within a batch",
			Value: 1,
		},
		&cli.StringFlag{
			Name:  "denominator",
			Usage: "Accuracy base: all (every query) or succeeded (queries that ran)",
			Value: string(evaluate.AllQueries),
		},
		&cli.BoolFlag{
			Name:  "rerank",
			Usage: "Rerank hits before ranking the expected value",
		},
	)
	return &cli.Command{
		Name:   "evaluate",
		Usage:  "Evaluate search performance against a labeled dataset",
		Action: evaluateAction,
		Flags:  flags,
	}
}

func evaluateConfig(c *cli.Context) (*evaluate.Config, error) {
	denominator, err := evaluate.ParseDenominator(c.String("denominator"))
	if err != nil {
		return nil, err
	}
	cfg := evaluate.DefaultConfig()
	cfg.QueryColumns = splitList(c.StringSlice("evaluation-columns"))
	cfg.ExpectedColumn = c.String("match-column")
	cfg.MatchField = c.String("match-field")
	cfg.DisplayField = c.String("display-field")
	cfg.Thresholds = c.IntSlice("thresholds")
	cfg.BatchSize = c.Int("batch-size")
	cfg.Concurrency = c.Int("parallel")
	cfg.SkipRows = c.Int("skip-rows")
	cfg.LimitRows = c.Int("limit-rows")
	cfg.Limit = c.Int("window")
	cfg.Denominator = denominator
	return cfg, nil
}

func evaluateAction(c *cli.Context) error {
	evalCfg, err := evaluateConfig(c)
	if err != nil {
		return err
	}
	searchCfg, err := searchConfig(c, c.Bool("rerank"))
	if err != nil {
		return err
	}
	srcOpts, err := sourceOptions(c)
	if err != nil {
		return err
	}

	file := c.String("file")
	dataset, err := source.Open(c.Context, file, srcOpts)
	if err != nil {
		return fmt.Errorf("reading %s: %w", file, err)
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	var opts []evaluate.Option
	if showProgress(c) {
		opts = append(opts, evaluate.WithMonitor(batch.NewProgressMonitor(os.Stderr)))
	}
	engine, err := db.NewEvaluator(searchCfg, evalCfg, opts...)
	if err != nil {
		return err
	}
	if err := engine.CheckColumns(dataset.Columns()); err != nil {
		return err
	}

	w := c.App.Writer
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "Evaluating search performance")
	fmt.Fprintf(w, "Dataset: %s\n", file)
	fmt.Fprintf(w, "Index: %s\n", searchCfg.Index)
	fmt.Fprintf(w, "Target field: %s\n", searchCfg.Column)
	fmt.Fprintf(w, "Total rows: %s\n", comma(len(dataset.Records())))
	fmt.Fprintf(w, "Batch size: %d\n", evalCfg.BatchSize)
	fmt.Fprintln(w, rule)

	report, runErr := engine.Run(c.Context, dataset.Records())
	if report != nil {
		printEvaluation(w, report, evalCfg.SkipRows)
	}
	if errors.Is(runErr, batch.ErrInterrupted) {
		return cli.Exit("interrupted", 130)
	}
	return runErr
}
