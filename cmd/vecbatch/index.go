package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/poiesic/vecbatch/ingestion"
	"github.com/poiesic/vecbatch/storage"
	"github.com/urfave/cli/v2"
)

func indexFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "index",
		Aliases:  []string{"i"},
		Usage:    "Index name to use",
		Required: true,
		EnvVars:  []string{"VECBATCH_INDEX"},
	}
}

// vectorFlags describe which embedding fields a row produces.
func vectorFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringSliceFlag{
			Name:     "columns",
			Aliases:  []string{"c"},
			Usage:    "Columns to vectorize (repeat or comma separate)",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "strategy",
			Usage: "Vectorization strategy: per-column or combined",
			Value: string(ingestion.PerColumn),
		},
		&cli.StringFlag{
			Name:  "combined-field",
			Usage: "Embedding field for the combined strategy (default combined<suffix>)",
		},
		&cli.StringFlag{
			Name:  "embedding-suffix",
			Usage: "Suffix appended to column names for embedding fields",
			Value: ingestion.DefaultEmbeddingSuffix,
		},
		&cli.StringFlag{
			Name:  "space-type",
			Usage: "k-NN space type: l2, cosinesimil or innerproduct",
			Value: string(storage.SpaceL2),
		},
	}
}

func setupCommand() *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Create a k-NN index for the vectorized columns",
		Action: setupAction,
		Flags: append([]cli.Flag{
			indexFlag(),
			&cli.BoolFlag{
				Name:  "recreate",
				Usage: "Delete the index first if it exists",
			},
		}, vectorFlags()...),
	}
}

func setupAction(c *cli.Context) error {
	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	strategy, err := ingestion.ParseStrategy(c.String("strategy"))
	if err != nil {
		return err
	}
	spaceType, err := storage.ParseSpaceType(c.String("space-type"))
	if err != nil {
		return err
	}
	suffix := c.String("embedding-suffix")
	combined := c.String("combined-field")
	if combined == "" {
		combined = "combined" + suffix
	}
	fields := ingestion.Vectorizer{
		Columns:       splitList(c.StringSlice("columns")),
		Strategy:      strategy,
		Suffix:        suffix,
		CombinedField: combined,
	}.Fields()

	dimension := c.Int("dimension")
	if dimension == 0 {
		if dimension, err = db.EmbeddingDimension(c.Context); err != nil {
			return err
		}
	}

	index := c.String("index")
	store := db.Store()
	if c.Bool("recreate") {
		err := store.DeleteIndex(c.Context, index)
		switch {
		case err == nil:
			fmt.Fprintf(os.Stderr, "Deleted index %s\n", index)
		case !errors.Is(err, storage.ErrIndexNotFound):
			return fmt.Errorf("deleting index: %w", err)
		}
	}

	spec := storage.IndexSpecFor(index, fields, dimension, suffix)
	spec.SpaceType = spaceType
	if err := store.CreateIndex(c.Context, spec); err != nil {
		return fmt.Errorf("creating index: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Created index %s with %d-dimension fields %v (%s)\n", index, dimension, spec.VectorFields, spaceType)
	return nil
}

func countCommand() *cli.Command {
	return &cli.Command{
		Name:  "count",
		Usage: "Print the number of documents in an index",
		Flags: []cli.Flag{indexFlag()},
		Action: func(c *cli.Context) error {
			db, err := openDatabase(c)
			if err != nil {
				return err
			}
			defer db.Close()

			n, err := db.Store().DocumentCount(c.Context, c.String("index"))
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "%s: %s documents\n", c.String("index"), humanize.Comma(int64(n)))
			return nil
		},
	}
}

func deleteIndexCommand() *cli.Command {
	return &cli.Command{
		Name:  "delete-index",
		Usage: "Delete an index and all its documents",
		Flags: []cli.Flag{
			indexFlag(),
			&cli.BoolFlag{
				Name:  "yes",
				Usage: "Do not ask for confirmation",
			},
		},
		Action: func(c *cli.Context) error {
			index := c.String("index")
			if !c.Bool("yes") {
				return fmt.Errorf("refusing to delete index %s without --yes", index)
			}
			db, err := openDatabase(c)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.Store().DeleteIndex(c.Context, index); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "Deleted index %s\n", index)
			return nil
		},
	}
}
