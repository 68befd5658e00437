// Package evaluate measures retrieval quality against a labeled dataset.
//
// Each row's query columns are joined into a query, searched, and the rank of
// the first hit whose match field equals the row's expected value is
// recorded. The report gives top-k accuracy for each threshold and the mean
// reciprocal rank.
package evaluate
