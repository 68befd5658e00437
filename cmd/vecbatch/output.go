package main

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/poiesic/vecbatch/client"
	"github.com/poiesic/vecbatch/core"
	"github.com/poiesic/vecbatch/evaluate"
	"github.com/poiesic/vecbatch/ingestion"
	"github.com/poiesic/vecbatch/search"
	"github.com/poiesic/vecbatch/tokens"
)

const rule = "================================================================================"

func comma(n int) string {
	return humanize.Comma(int64(n))
}

func printIngestReport(w io.Writer, r *ingestion.Report, stats client.Stats) {
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Run %s on index %s\n", r.RunID, r.Index)
	if r.ResumedFrom >= 0 {
		fmt.Fprintf(w, "Resumed from row %s\n", comma(r.ResumedFrom))
	}
	fmt.Fprintf(w, "Rows:       [%s, %s)\n", comma(r.StartRow), comma(r.EndRow))
	fmt.Fprintf(w, "Batches:    %d planned, %d succeeded, %d failed", r.Batches, r.Succeeded, r.Failed)
	if r.Failed > 0 {
		fmt.Fprintf(w, " (%.1f%% of finished)", 100*r.FailureRatio())
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Documents:  %s indexed, %s ignored, %s failed\n",
		comma(r.DocumentsIndexed), comma(r.DocumentsIgnored), comma(r.DocumentsFailed))
	fmt.Fprintf(w, "Embeddings: %s created, %s reused, %s skipped\n",
		comma(r.EmbeddingsCreated), comma(r.EmbeddingsReused), comma(r.EmbeddingsSkipped))
	fmt.Fprintf(w, "Requests:   %s (%s retries, %s throttled", comma(int(stats.Requests)),
		comma(int(stats.Retries)), comma(int(stats.Throttles)))
	if stats.TokensUsed > 0 {
		fmt.Fprintf(w, ", %s tokens", humanize.Comma(stats.TokensUsed))
	}
	fmt.Fprintln(w, ")")
	fmt.Fprintf(w, "Elapsed:    %s\n", seconds(r.Duration))

	for _, f := range r.Failures {
		fmt.Fprintf(w, "  row %d (%s): %s %s\n", f.Row, f.ID, f.ErrorType, f.Reason)
	}
	for _, b := range r.FailedRanges() {
		fmt.Fprintf(w, "Failed rows [%d, %d): rerun with --skip-rows %d --limit-rows %d\n",
			b.StartRow, b.EndRow, b.StartRow, b.Len())
	}
	if r.Interrupted || r.Aborted {
		fmt.Fprintf(w, "Stopped early: continue with --skip-rows %d or --resume\n", r.ResumeSkipRows)
	}
	fmt.Fprintln(w, rule)
}

func printExportReport(w io.Writer, output string, r *ingestion.ExportReport) {
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Wrote %s rows to %s\n", comma(len(r.Rows)), output)
	fmt.Fprintf(w, "Batches:    %d planned, %d succeeded, %d failed\n", r.Batches, r.Succeeded, r.Failed)
	fmt.Fprintf(w, "Embeddings: %s created, %s reused, %s skipped\n",
		comma(r.Stats.Embedded), comma(r.Stats.Reused), comma(r.Stats.Skipped))
	fmt.Fprintf(w, "Columns:    %s\n", strings.Join(r.Columns, ", "))
	for _, field := range slices.Sorted(maps.Keys(r.Missing)) {
		if n := r.Missing[field]; n > 0 {
			fmt.Fprintf(w, "Warning: %s rows have no value in %s\n", comma(n), field)
		}
	}
	for _, b := range r.FailedRanges() {
		fmt.Fprintf(w, "Failed rows [%d, %d): rerun with --skip-rows %d --limit-rows %d\n",
			b.StartRow, b.EndRow, b.StartRow, b.Len())
	}
	if r.Aborted {
		fmt.Fprintf(w, "Stopped early: continue with --skip-rows %d\n", r.ResumeSkipRows)
	}
	fmt.Fprintf(w, "Elapsed:    %s\n", seconds(r.Duration))
	fmt.Fprintln(w, rule)
}

func printTokenEstimate(w io.Writer, file string, e *tokens.Estimate) {
	fmt.Fprintf(w, "Token estimation for: %s\n", file)
	fmt.Fprintln(w, rule[:50])
	fmt.Fprintf(w, "Method:           %s\n", e.Method)
	fmt.Fprintf(w, "Estimated tokens: %s\n", comma(e.Tokens))
	fmt.Fprintf(w, "File size:        %s bytes (%s)\n", humanize.Comma(e.SizeBytes), humanize.Bytes(uint64(e.SizeBytes)))
	fmt.Fprintf(w, "Tokens per byte:  %.4f\n", e.TokensPerByte)
	fmt.Fprintf(w, "Note:             %s\n", e.Note)
}

func printSearchResult(w io.Writer, r *search.Result, display []string) {
	switch {
	case r.Reranked:
		fmt.Fprintf(w, "%d hits for %q, reranked\n", len(r.Hits), r.Query)
	case r.Fallback:
		fmt.Fprintf(w, "%d hits for %q, rerank failed (%v), knn order\n", len(r.Hits), r.Query, r.RerankErr)
	default:
		fmt.Fprintf(w, "%d hits for %q\n", len(r.Hits), r.Query)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	header := []string{"RANK", "KNN", "SCORE", "RERANK", "ID"}
	header = append(header, upper(display)...)
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, hit := range r.Hits {
		rerank := "-"
		if hit.Reranked {
			rerank = fmt.Sprintf("%.4f", hit.RerankScore)
		}
		row := []string{
			fmt.Sprint(hit.Rank),
			fmt.Sprint(hit.OriginalRank),
			fmt.Sprintf("%.4f", hit.Score),
			rerank,
			string(hit.ID),
		}
		for _, field := range display {
			row = append(row, core.Stringify(hit.Fields[field]))
		}
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	tw.Flush()
}

func printEvaluation(w io.Writer, r *evaluate.Report, skipRows int) {
	for _, rec := range r.Records {
		// 1-based row numbers as in the spreadsheet
		row := rec.Row + 1
		switch {
		case rec.Failed:
			fmt.Fprintf(w, "  Row %d: Error - %v\n", row, rec.Err)
		case rec.Found():
			fmt.Fprintf(w, "  Row %d: %d/%d | %.4f | %s\n", row, rec.Rank, rec.Hits, rec.Score, rec.Display)
		default:
			fmt.Fprintf(w, "  Row %d: No match found\n", row)
		}
	}

	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Total queries:      %s\n", comma(r.Total))
	fmt.Fprintf(w, "Successful queries: %s\n", comma(r.Succeeded))
	fmt.Fprintf(w, "Failed queries:     %s\n", comma(r.Failed))
	fmt.Fprintf(w, "Matched queries:    %s\n", comma(r.Found))
	fmt.Fprintln(w)

	denom := "all queries"
	if r.Denominator == evaluate.SucceededQueries {
		denom = "successful queries"
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "TOP-K\tACCURACY (of %s)\n", denom)
	for _, k := range r.Thresholds {
		fmt.Fprintf(tw, "top-%d\t%.2f%%\n", k, r.Accuracy[k])
	}
	fmt.Fprintf(tw, "MRR\t%.4f\n", r.MeanReciprocalRank)
	tw.Flush()

	if r.Interrupted && len(r.Records) > 0 {
		next := r.Records[len(r.Records)-1].Row + 1
		fmt.Fprintf(w, "Stopped early: continue with --skip-rows %d\n", max(next, skipRows))
	}
	fmt.Fprintf(w, "Elapsed: %s\n", seconds(r.Duration))
	fmt.Fprintln(w, rule)
}

func upper(fields []string) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = strings.ToUpper(f)
	}
	return out
}
