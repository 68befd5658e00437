package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/poiesic/vecbatch/ai/mock"
	"github.com/poiesic/vecbatch/batch"
	"github.com/poiesic/vecbatch/client"
	"github.com/poiesic/vecbatch/core"
	"github.com/poiesic/vecbatch/ingestion"
	"github.com/poiesic/vecbatch/retry"
	"github.com/poiesic/vecbatch/search"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func findCommand(t *testing.T, app *cli.App, name string) *cli.Command {
	t.Helper()
	for _, cmd := range app.Commands {
		if cmd.Name == name {
			return cmd
		}
	}
	t.Fatalf("command %s not found", name)
	return nil
}

func findFlag[T cli.Flag](flags []cli.Flag, name string) T {
	var zero T
	for _, flag := range flags {
		if f, ok := flag.(T); ok {
			for _, n := range flag.Names() {
				if n == name {
					return f
				}
			}
		}
	}
	return zero
}

// testApp returns the real app with output captured and exit codes returned
// instead of terminating the test binary.
func testApp() (*cli.App, *bytes.Buffer) {
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &out
	app.ExitErrHandler = func(*cli.Context, error) {}
	return app, &out
}

func TestCommands(t *testing.T) {
	app := newApp()
	for _, name := range []string{"setup", "ingest", "vectorize", "search", "evaluate", "count", "delete-index", "tokens"} {
		cmd := findCommand(t, app, name)
		assert.NotNil(t, cmd.Action, name)
	}
}

func TestConnectionFlags(t *testing.T) {
	flags := connectionFlags()

	t.Run("store defaults to badger", func(t *testing.T) {
		f := findFlag[*cli.StringFlag](flags, "store")
		require.NotNil(t, f)
		assert.Equal(t, storeBadger, f.Value)
		assert.Equal(t, []string{"VECBATCH_STORE"}, f.EnvVars)
	})

	t.Run("db has alias -d", func(t *testing.T) {
		f := findFlag[*cli.StringFlag](flags, "d")
		require.NotNil(t, f)
		assert.Equal(t, "db", f.Name)
	})

	t.Run("embedding-host has default value", func(t *testing.T) {
		f := findFlag[*cli.StringFlag](flags, "embedding-host")
		require.NotNil(t, f)
		assert.Equal(t, "http://localhost:11434/v1", f.Value)
	})

	t.Run("concurrency defaults to client default", func(t *testing.T) {
		f := findFlag[*cli.IntFlag](flags, "concurrency")
		require.NotNil(t, f)
		assert.Equal(t, 5, f.Value)
	})

	t.Run("retry strategy defaults to exponential", func(t *testing.T) {
		f := findFlag[*cli.StringFlag](flags, "retry-strategy")
		require.NotNil(t, f)
		assert.Equal(t, "exponential", f.Value)
		assert.NotNil(t, findFlag[*cli.BoolFlag](flags, "no-adaptive"))
	})
}

func TestUnknownRetryStrategy(t *testing.T) {
	app, _ := testApp()
	err := app.Run([]string{"vecbatch", "--db", t.TempDir(), "--retry-strategy", "fibonacci", "count", "-i", "labs"})
	require.Error(t, err)
	assert.ErrorIs(t, err, retry.ErrUnknownStrategy)
}

func TestStageTimer(t *testing.T) {
	var out bytes.Buffer
	timer := newStageTimer(&out)
	timer.Start("sodium")
	timer.AfterEmbedding(core.Vector{1})
	timer.AfterKnn(nil)
	timer.RerankFailed(errors.New("boom"))
	timer.Finish(&search.Result{})

	line := out.String()
	assert.True(t, strings.HasPrefix(line, "Timings: embed "), line)
	assert.Contains(t, line, ", knn ")
	assert.Contains(t, line, ", rerank (failed) ")
	assert.Contains(t, line, ", total ")
}

func TestPrintIngestReportFailureRatio(t *testing.T) {
	failed := core.Batch{Index: 3, StartRow: 6, EndRow: 8}
	report := &ingestion.Report{
		Summary: &batch.Summary{
			Outcomes:  []core.BatchOutcome{{Batch: failed, Success: false}},
			Batches:   4,
			Succeeded: 3,
			Failed:    1,
			EndRow:    8,
		},
		RunID:       "run",
		Index:       "labs",
		ResumedFrom: -1,
	}
	var out bytes.Buffer
	printIngestReport(&out, report, client.Stats{})

	assert.Contains(t, out.String(), "4 planned, 3 succeeded, 1 failed (25.0% of finished)")
	assert.Contains(t, out.String(), "rerun with --skip-rows 6 --limit-rows 2")
}

func TestIngestCommandFlags(t *testing.T) {
	cmd := findCommand(t, newApp(), "ingest")

	t.Run("batch-size has default value of 50", func(t *testing.T) {
		f := findFlag[*cli.IntFlag](cmd.Flags, "batch-size")
		require.NotNil(t, f)
		assert.Equal(t, 50, f.Value)
	})

	t.Run("max-attempts has default value of 5", func(t *testing.T) {
		f := findFlag[*cli.IntFlag](cmd.Flags, "max-attempts")
		require.NotNil(t, f)
		assert.Equal(t, 5, f.Value)
	})

	t.Run("truncate is an alias of delete", func(t *testing.T) {
		f := findFlag[*cli.BoolFlag](cmd.Flags, "truncate")
		require.NotNil(t, f)
		assert.Equal(t, "delete", f.Name)
	})

	t.Run("file and columns are required", func(t *testing.T) {
		app, _ := testApp()
		err := app.Run([]string{"vecbatch", "ingest", "--index", "labs"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "file")
		assert.Contains(t, err.Error(), "columns")
	})

	t.Run("unknown failure policy fails", func(t *testing.T) {
		app, _ := testApp()
		err := app.Run([]string{"vecbatch", "ingest", "-f", "x.csv", "-i", "labs", "-c", "name", "--failure-policy", "retry"})
		require.Error(t, err)
	})
}

func TestEvaluateCommandFlags(t *testing.T) {
	cmd := findCommand(t, newApp(), "evaluate")

	cols := findFlag[*cli.StringSliceFlag](cmd.Flags, "evaluation-columns")
	require.NotNil(t, cols)
	assert.Equal(t, []string{"department name", "test description"}, cols.Value.Value())

	thresholds := findFlag[*cli.IntSliceFlag](cmd.Flags, "thresholds")
	require.NotNil(t, thresholds)
	assert.Equal(t, []int{5, 10, 25, 100}, thresholds.Value.Value())

	match := findFlag[*cli.StringFlag](cmd.Flags, "match-field")
	require.NotNil(t, match)
	assert.Equal(t, "LOINC_NUM", match.Value)
}

func TestParseFilter(t *testing.T) {
	f, err := parseFilter("")
	require.NoError(t, err)
	assert.Nil(t, f)

	f, err = parseFilter(" system = Bld ")
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.Equal(t, "system", f.Field)
	assert.Equal(t, "Bld", f.Value)

	_, err = parseFilter("system")
	assert.Error(t, err)
	_, err = parseFilter("=Bld")
	assert.Error(t, err)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, splitList([]string{"a, b", "", " c "}))
	assert.Nil(t, splitList(nil))
}

func TestLoadEnv(t *testing.T) {
	t.Run("missing file is ignored", func(t *testing.T) {
		require.NoError(t, loadEnv(filepath.Join(t.TempDir(), ".env")))
	})

	t.Run("variables are loaded", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), ".env")
		require.NoError(t, os.WriteFile(path, []byte("VECBATCH_TEST_VALUE=loaded\n"), 0o600))
		t.Cleanup(func() { os.Unsetenv("VECBATCH_TEST_VALUE") })

		require.NoError(t, loadEnv(path))
		assert.Equal(t, "loaded", os.Getenv("VECBATCH_TEST_VALUE"))
	})
}

func TestDeleteIndexRequiresConfirmation(t *testing.T) {
	app, _ := testApp()
	err := app.Run([]string{"vecbatch", "--db", t.TempDir(), "delete-index", "-i", "labs"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--yes")
}

func TestUnknownStore(t *testing.T) {
	app, _ := testApp()
	err := app.Run([]string{"vecbatch", "--store", "redis", "count", "-i", "labs"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown store")
}

func TestBadgerRequiresPath(t *testing.T) {
	app, _ := testApp()
	err := app.Run([]string{"vecbatch", "count", "-i", "labs"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--db")
}

// embeddingServer answers OpenAI style embedding requests with
// deterministic vectors, so equal texts embed to equal vectors.
func embeddingServer(t *testing.T, dim int) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		data := make([]map[string]any, len(req.Input))
		for i, text := range req.Input {
			data[i] = map[string]any{
				"object":    "embedding",
				"index":     i,
				"embedding": mock.GenerateDeterministicVector(text, dim),
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"object": "list", "data": data, "model": "test"})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestEndToEnd(t *testing.T) {
	srv := embeddingServer(t, 8)
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "db")

	labs := filepath.Join(dir, "labs.csv")
	require.NoError(t, os.WriteFile(labs, []byte(
		"name,code\nsodium,2951-2\nglucose,2345-7\nhemoglobin,718-7\n"), 0o600))
	queries := filepath.Join(dir, "queries.csv")
	require.NoError(t, os.WriteFile(queries, []byte(
		"query,expected\nsodium,2951-2\nhemoglobin,718-7\n"), 0o600))

	global := []string{"vecbatch", "-l", "error", "--db", dbPath,
		"--embedding-host", srv.URL, "--embedding-model", "test", "--dimension", "8",
		"--retry-strategy", "fixed", "--retry-delay", "1ms", "--no-adaptive"}
	run := func(args ...string) string {
		t.Helper()
		app, out := testApp()
		require.NoError(t, app.Run(append(append([]string{}, global...), args...)), out.String())
		return out.String()
	}

	run("setup", "-i", "labs", "-c", "name")

	out := run("ingest", "-f", labs, "-i", "labs", "-c", "name", "--batch-size", "2", "--no-progress")
	assert.Contains(t, out, "3 indexed")
	assert.Contains(t, out, "2 succeeded, 0 failed")

	out = run("count", "-i", "labs")
	assert.Contains(t, out, "labs: 3 documents")

	out = run("search", "-i", "labs", "--column", "name", "--no-rerank", "--limit", "1",
		"--display", "name,code", "--timings", "sodium")
	assert.Contains(t, out, "1 hits for \"sodium\"")
	assert.Contains(t, out, "Timings: embed ")
	assert.Contains(t, out, "2951-2")

	out = run("evaluate", "-f", queries, "-i", "labs", "--column", "name",
		"--evaluation-columns", "query", "--match-column", "expected",
		"--match-field", "code", "--display-field", "name",
		"--thresholds", "1", "--window", "3", "--no-progress")
	assert.Contains(t, out, "Matched queries:    2")
	assert.Contains(t, out, "top-1")
	assert.Contains(t, out, "100.00%")

	out = run("vectorize", "-f", labs, "-c", "name", "--batch-size", "2", "--no-progress")
	vectorized := filepath.Join(dir, "labs_vectorized.csv")
	assert.Contains(t, out, "Wrote 3 rows to "+vectorized)
	assert.Contains(t, out, "3 created")
	assert.FileExists(t, vectorized)

	app, _ := testApp()
	err := app.Run(append(append([]string{}, global...), "vectorize", "-f", labs, "-c", "name", "--no-progress"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--overwrite")
	run("vectorize", "-f", labs, "-c", "name", "--overwrite", "--no-progress")

	run("setup", "-i", "labs2", "-c", "name")
	out = run("ingest", "-f", vectorized, "-i", "labs2", "-c", "name",
		"--vector-columns", "name_embedding", "--no-progress")
	assert.Contains(t, out, "3 indexed")
	assert.Contains(t, out, "0 created, 3 reused")

	out = run("delete-index", "-i", "labs", "--yes")
	assert.Empty(t, out)
}

func TestOutputPath(t *testing.T) {
	assert.Equal(t, filepath.Join("data", "labs_vectorized.csv"), outputPath(filepath.Join("data", "labs.xlsx")))
	assert.Equal(t, "labs_vectorized.csv", outputPath("s3://bucket/in/labs.csv"))
}

func TestTokensCommand(t *testing.T) {
	dir := t.TempDir()

	t.Run("non-text file is estimated from its size", func(t *testing.T) {
		path := filepath.Join(dir, "labs.xlsx")
		require.NoError(t, os.WriteFile(path, make([]byte, 2000), 0o600))
		app, out := testApp()
		require.NoError(t, app.Run([]string{"vecbatch", "tokens", "-f", path}))
		assert.Contains(t, out.String(), "Method:           tokenizer_fallback")
		assert.Contains(t, out.String(), "Estimated tokens: 300")
		assert.Contains(t, out.String(), "File size:        2,000 bytes")
	})

	t.Run("unknown encoding falls back to the size ratio", func(t *testing.T) {
		path := filepath.Join(dir, "labs.csv")
		require.NoError(t, os.WriteFile(path, []byte("name\nsodium\n"), 0o600))
		app, out := testApp()
		require.NoError(t, app.Run([]string{"vecbatch", "tokens", "-f", path, "--encoding", "no_such_encoding"}))
		assert.Contains(t, out.String(), "Method:           tokenizer_failed")
	})

	t.Run("missing file fails", func(t *testing.T) {
		app, _ := testApp()
		err := app.Run([]string{"vecbatch", "tokens", "-f", filepath.Join(dir, "missing.csv")})
		require.Error(t, err)
	})
}

func TestSetupLogger(t *testing.T) {
	t.Run("valid log levels", func(t *testing.T) {
		for _, level := range []string{"debug", "info", "warn", "error", "DEBUG", "Warn"} {
			t.Run(level, func(t *testing.T) {
				app := &cli.App{
					Name:   "test",
					Flags:  []cli.Flag{&cli.StringFlag{Name: "log-level", Value: level}},
					Before: setupLogger,
					Action: func(c *cli.Context) error { return nil },
				}
				require.NoError(t, app.Run([]string{"test"}))
			})
		}
	})

	t.Run("level is applied to the default logger", func(t *testing.T) {
		app := &cli.App{
			Name:   "test",
			Flags:  []cli.Flag{&cli.StringFlag{Name: "log-level", Value: "warn"}},
			Before: setupLogger,
			Action: func(c *cli.Context) error {
				assert.False(t, slog.Default().Enabled(c.Context, slog.LevelInfo))
				assert.True(t, slog.Default().Enabled(c.Context, slog.LevelWarn))
				return nil
			},
		}
		require.NoError(t, app.Run([]string{"test"}))
	})

	t.Run("invalid log level returns error", func(t *testing.T) {
		app := &cli.App{
			Name:   "test",
			Flags:  []cli.Flag{&cli.StringFlag{Name: "log-level", Value: "verbose"}},
			Before: setupLogger,
			Action: func(c *cli.Context) error { return nil },
		}
		err := app.Run([]string{"test"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid log level")
	})
}

func TestMain(m *testing.M) {
	code := m.Run()
	os.Exit(code)
}
