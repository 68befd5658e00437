package source

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"unicode/utf8"

	"github.com/poiesic/vecbatch/core"
	"golang.org/x/text/encoding/charmap"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// OpenCSV loads a CSV file.
func OpenCSV(path string, opts Options) (*Memory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadCSV(f, opts)
}

// ReadCSV parses CSV with a header row. Input that is not valid UTF-8 is
// decoded as ISO-8859-1.
func ReadCSV(r io.Reader, opts Options) (*Memory, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		slog.Default().With("component", "source").Info("input is not valid UTF-8, decoding as latin-1")
		if data, err = charmap.ISO8859_1.NewDecoder().Bytes(data); err != nil {
			return nil, fmt.Errorf("%w: decoding latin-1: %w", ErrMalformed, err)
		}
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	if opts.Delimiter != 0 {
		reader.Comma = opts.Delimiter
	}

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptySource
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return buildRecords(header, rows, opts)
}

// WriteCSV writes rows under header. Vector values are written as JSON
// arrays so ReadCSV with VectorColumns reads them back; missing fields are
// empty cells.
func WriteCSV(w io.Writer, header []string, rows []map[string]any) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	record := make([]string, len(header))
	for _, row := range rows {
		for i, col := range header {
			cell, err := formatCell(row[col])
			if err != nil {
				return fmt.Errorf("column %s: %w", col, err)
			}
			record[i] = cell
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatCell(v any) (string, error) {
	switch val := v.(type) {
	case core.Vector, []float32, []float64:
		b, err := json.Marshal(val)
		return string(b), err
	default:
		return core.Stringify(val), nil
	}
}
