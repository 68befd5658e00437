// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package source

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path"
	"slices"
	"strconv"
	"strings"

	"github.com/poiesic/vecbatch/core"
)

// Source provides random access to an ordered set of records.
type Source interface {
	// Len returns the number of data rows, excluding the header.
	Len(ctx context.Context) (int, error)

	// Read returns the records in rows [start, end).
	Read(ctx context.Context, start, end int) ([]core.Record, error)
}

// Options configures how files are parsed.
type Options struct {
	// Sheet selects an Excel worksheet; empty means the first sheet.
	Sheet string

	// Delimiter is the CSV field separator; zero means a comma.
	Delimiter rune

	// VectorColumns hold JSON number arrays, such as embeddings exported
	// by an earlier run. They are parsed into core.Vector values.
	VectorColumns []string

	// Region and Profile select AWS configuration for s3:// references.
	Region  string
	Profile string

	// Downloader overrides the S3 downloader.
	Downloader Downloader
}

// Memory is a Source backed by records held in memory.
type Memory struct {
	columns []string
	records []core.Record
}

var _ Source = (*Memory)(nil)

// NewMemory creates a source from rows. Row numbers follow slice order.
func NewMemory(columns []string, rows []map[string]any) *Memory {
	records := make([]core.Record, len(rows))
	for i, fields := range rows {
		records[i] = core.Record{Row: i, Fields: fields}
	}
	return &Memory{columns: columns, records: records}
}

// Len returns the number of records.
func (m *Memory) Len(ctx context.Context) (int, error) {
	return len(m.records), nil
}

// Read returns the records in rows [start, end).
func (m *Memory) Read(ctx context.Context, start, end int) ([]core.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if start < 0 || end < start || end > len(m.records) {
		return nil, fmt.Errorf("%w: [%d, %d) of %d rows", ErrOutOfRange, start, end, len(m.records))
	}
	out := make([]core.Record, end-start)
	copy(out, m.records[start:end])
	return out, nil
}

// Columns returns the header in file order.
func (m *Memory) Columns() []string {
	return m.columns
}

// Records returns every record.
func (m *Memory) Records() []core.Record {
	return m.records
}

// Open loads a CSV or Excel file chosen by extension. ref is a local path or
// an s3://bucket/key URI.
func Open(ctx context.Context, ref string, opts Options) (*Memory, error) {
	name := ref
	if strings.HasPrefix(ref, "s3://") {
		bucket, key, err := ParseS3URI(ref)
		if err != nil {
			return nil, err
		}
		name = key
		if err := checkFormat(name); err != nil {
			return nil, err
		}
		local, err := download(ctx, bucket, key, opts)
		if err != nil {
			return nil, err
		}
		defer os.Remove(local)
		ref = local
	}

	if err := checkFormat(name); err != nil {
		return nil, err
	}
	switch strings.ToLower(path.Ext(name)) {
	case ".csv":
		return OpenCSV(ref, opts)
	default:
		return OpenExcel(ref, opts)
	}
}

func checkFormat(name string) error {
	switch ext := strings.ToLower(path.Ext(name)); ext {
	case ".csv", ".xlsx", ".xlsm":
		return nil
	case ".xls":
		return fmt.Errorf("%w: legacy .xls workbooks must be saved as .xlsx", ErrUnsupportedFormat)
	default:
		return fmt.Errorf("%w: %q (supported: csv, xlsx)", ErrUnsupportedFormat, ext)
	}
}

// buildRecords turns a header and string rows into records. Empty cells are
// left out so they read as missing.
func buildRecords(header []string, rows [][]string, opts Options) (*Memory, error) {
	columns := uniqueColumns(header)
	vectorCols := make(map[string]bool, len(opts.VectorColumns))
	for _, c := range opts.VectorColumns {
		vectorCols[c] = true
	}

	logger := slog.Default().With("component", "source")
	badVectors := 0
	records := make([]core.Record, len(rows))
	for i, row := range rows {
		if len(row) > len(columns) {
			return nil, fmt.Errorf("%w: row %d has %d fields, header has %d", ErrMalformed, i, len(row), len(columns))
		}
		fields := make(map[string]any, len(columns))
		for j, cell := range row {
			if cell == "" {
				continue
			}
			col := columns[j]
			if vectorCols[col] {
				var v core.Vector
				if err := json.Unmarshal([]byte(cell), &v); err != nil {
					badVectors++
					continue
				}
				fields[col] = v
				continue
			}
			fields[col] = cell
		}
		records[i] = core.Record{Row: i, Fields: fields}
	}
	if badVectors > 0 {
		logger.Warn("vector cells could not be parsed and were dropped", "count", badVectors)
	}
	for c := range vectorCols {
		if !slices.Contains(columns, c) {
			logger.Warn("vector column not found", "column", c)
		}
	}
	return &Memory{columns: columns, records: records}, nil
}

// uniqueColumns names blank headers "Unnamed: i" and suffixes repeats with
// ".1", ".2" so every field keeps its own key.
func uniqueColumns(header []string) []string {
	columns := make([]string, len(header))
	used := make(map[string]bool, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if h == "" {
			h = "Unnamed: " + strconv.Itoa(i)
		}
		name := h
		for n := 1; used[name]; n++ {
			name = h + "." + strconv.Itoa(n)
		}
		used[name] = true
		columns[i] = name
	}
	return columns
}
