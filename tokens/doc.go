// Package tokens estimates how many model tokens a file holds, so the cost of
// vectorizing it can be judged before a run. Text formats are counted with a
// tiktoken encoding; other files get a per-byte estimate.
package tokens
