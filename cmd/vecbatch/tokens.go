package main

import (
	"fmt"
	"log/slog"

	"github.com/poiesic/vecbatch/tokens"
	"github.com/urfave/cli/v2"
)

func tokensCommand() *cli.Command {
	return &cli.Command{
		Name:   "tokens",
		Usage:  "Estimate the token count of a file",
		Action: tokensAction,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "file",
				Aliases:  []string{"f"},
				Usage:    "File to estimate",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "encoding",
				Usage: "tiktoken encoding used for text files",
				Value: tokens.DefaultEncoding,
			},
		},
	}
}

func tokensAction(c *cli.Context) error {
	file := c.String("file")
	estimator := tokens.NewEstimator(
		tokens.WithEncoding(c.String("encoding")),
		tokens.WithLogger(slog.Default()),
	)
	est, err := estimator.EstimateFile(file)
	if err != nil {
		return fmt.Errorf("estimating tokens: %w", err)
	}
	printTokenEstimate(c.App.Writer, file, est)
	return nil
}
