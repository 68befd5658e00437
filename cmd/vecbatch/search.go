package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/poiesic/vecbatch/core"
	"github.com/poiesic/vecbatch/search"
	"github.com/poiesic/vecbatch/storage"
	"github.com/urfave/cli/v2"
)

// searchFlags configure the searcher shared by search and evaluate.
func searchFlags() []cli.Flag {
	return []cli.Flag{
		indexFlag(),
		&cli.StringFlag{
			Name:     "column",
			Usage:    "Column whose embedding is searched",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "embedding-suffix",
			Usage: "Suffix appended to column names for embedding fields",
			Value: search.DefaultEmbeddingSuffix,
		},
		&cli.IntFlag{
			Name:  "size",
			Usage: "Number of hits requested from the store",
			Value: search.DefaultSize,
		},
		&cli.IntFlag{
			Name:  "k",
			Usage: "Neighbours considered by the k-NN query (default twice --size)",
		},
		&cli.StringFlag{
			Name:  "filter",
			Usage: "Restrict hits to documents where field=value",
		},
		&cli.IntFlag{
			Name:  "rerank-top-k",
			Usage: "Number of leading hits sent to the rerank model (default --size)",
		},
		&cli.StringFlag{
			Name:  "rerank-template",
			Usage: "Query sent to the rerank model; %s is replaced by the query",
			Value: search.DefaultRerankTemplate,
		},
	}
}

func parseFilter(s string) (*storage.Filter, error) {
	if s == "" {
		return nil, nil
	}
	field, value, ok := strings.Cut(s, "=")
	field = strings.TrimSpace(field)
	if !ok || field == "" {
		return nil, fmt.Errorf("filter must look like field=value, got %q", s)
	}
	return &storage.Filter{Field: field, Value: strings.TrimSpace(value)}, nil
}

func searchConfig(c *cli.Context, rerank bool) (*search.Config, error) {
	filter, err := parseFilter(c.String("filter"))
	if err != nil {
		return nil, err
	}
	cfg := search.DefaultConfig()
	cfg.Index = c.String("index")
	cfg.Column = c.String("column")
	cfg.EmbeddingSuffix = c.String("embedding-suffix")
	cfg.Size = c.Int("size")
	cfg.K = c.Int("k")
	cfg.Filter = filter
	cfg.Rerank = rerank
	cfg.RerankTopK = c.Int("rerank-top-k")
	cfg.RerankTemplate = c.String("rerank-template")
	return cfg, nil
}

func searchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Run a k-NN query and rerank the hits",
		ArgsUsage: "<query>",
		Action:    searchAction,
		Flags: append(searchFlags(),
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Number of hits to print",
				Value: 10,
			},
			&cli.BoolFlag{
				Name:  "no-rerank",
				Usage: "Keep the k-NN order",
			},
			&cli.StringSliceFlag{
				Name:  "display",
				Usage: "Fields printed for each hit (defaults to --column)",
			},
			&cli.BoolFlag{
				Name:  "timings",
				Usage: "Print how long each search stage took",
			},
		),
	}
}

func searchAction(c *cli.Context) error {
	query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if query == "" {
		return fmt.Errorf("a query is required")
	}
	cfg, err := searchConfig(c, !c.Bool("no-rerank"))
	if err != nil {
		return err
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	if cfg.Rerank && !db.Client().HasReranker() {
		return fmt.Errorf("no rerank model configured: set --rerank-model or pass --no-rerank")
	}
	searcher, err := db.NewSearcher(cfg)
	if err != nil {
		return err
	}
	var monitor search.SearchMonitor
	if c.Bool("timings") {
		monitor = newStageTimer(c.App.Writer)
	}
	result, err := searcher.SearchWithMonitor(c.Context, query, c.Int("limit"), monitor)
	if err != nil {
		return err
	}

	display := splitList(c.StringSlice("display"))
	if len(display) == 0 {
		display = []string{cfg.Column}
	}
	printSearchResult(c.App.Writer, result, display)
	return nil
}

type stage struct {
	name    string
	elapsed time.Duration
}

// stageTimer is a search.SearchMonitor that prints the time spent in each
// stage once the search finishes.
type stageTimer struct {
	w      io.Writer
	began  time.Time
	last   time.Time
	stages []stage
}

var _ search.SearchMonitor = (*stageTimer)(nil)

func newStageTimer(w io.Writer) *stageTimer {
	return &stageTimer{w: w}
}

func (t *stageTimer) mark(name string) {
	now := time.Now()
	t.stages = append(t.stages, stage{name: name, elapsed: now.Sub(t.last)})
	t.last = now
}

func (t *stageTimer) Start(string) {
	t.began = time.Now()
	t.last = t.began
	t.stages = t.stages[:0]
}

func (t *stageTimer) AfterEmbedding(core.Vector)        { t.mark("embed") }
func (t *stageTimer) AfterKnn([]core.SearchResult)      { t.mark("knn") }
func (t *stageTimer) AfterRerank([]core.RerankedResult) { t.mark("rerank") }
func (t *stageTimer) RerankFailed(error)                { t.mark("rerank (failed)") }

func (t *stageTimer) Finish(*search.Result) {
	parts := make([]string, 0, len(t.stages)+1)
	for _, s := range t.stages {
		parts = append(parts, s.name+" "+seconds(s.elapsed))
	}
	parts = append(parts, "total "+seconds(time.Since(t.began)))
	fmt.Fprintf(t.w, "Timings: %s\n", strings.Join(parts, ", "))
}
