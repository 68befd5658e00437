package evaluate

import (
	"slices"
	"time"

	"github.com/poiesic/vecbatch/core"
)

// Report holds per-row results and aggregate metrics.
type Report struct {
	Records []core.EvaluationRecord

	Total     int
	Succeeded int
	Failed    int
	Found     int

	// Accuracy maps each threshold k to the percentage of queries whose
	// expected value ranked at or above k.
	Accuracy   map[int]float64
	Thresholds []int

	MeanReciprocalRank float64
	Denominator        Denominator

	Interrupted bool
	Duration    time.Duration
}

func newReport(records []core.EvaluationRecord, config *Config) *Report {
	r := &Report{
		Records:     records,
		Total:       len(records),
		Accuracy:    make(map[int]float64, len(config.Thresholds)),
		Thresholds:  slices.Clone(config.Thresholds),
		Denominator: config.Denominator,
	}

	var reciprocal float64
	for _, rec := range records {
		if rec.Failed {
			r.Failed++
			continue
		}
		r.Succeeded++
		if rec.Found() {
			r.Found++
			reciprocal += 1 / float64(rec.Rank)
		}
	}

	denom := r.Total
	if config.Denominator == SucceededQueries {
		denom = r.Succeeded
	}
	for _, k := range r.Thresholds {
		r.Accuracy[k] = 0
	}
	if denom == 0 {
		return r
	}
	for _, k := range r.Thresholds {
		n := 0
		for _, rec := range records {
			if rec.Found() && rec.Rank <= k {
				n++
			}
		}
		r.Accuracy[k] = float64(n) / float64(denom) * 100
	}
	r.MeanReciprocalRank = reciprocal / float64(denom)
	return r
}

// FailedRecords returns the rows that could not be evaluated.
func (r *Report) FailedRecords() []core.EvaluationRecord {
	var out []core.EvaluationRecord
	for _, rec := range r.Records {
		if rec.Failed {
			out = append(out, rec)
		}
	}
	return out
}
