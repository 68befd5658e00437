package source

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// OpenExcel loads a worksheet from an .xlsx workbook.
func OpenExcel(path string, opts Options) (*Memory, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	defer f.Close()
	return readWorkbook(f, opts)
}

// ReadExcel parses a worksheet whose first row is the header.
func ReadExcel(r io.Reader, opts Options) (*Memory, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	defer f.Close()
	return readWorkbook(f, opts)
}

func readWorkbook(f *excelize.File, opts Options) (*Memory, error) {
	sheet := opts.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, ErrEmptySource
		}
		sheet = sheets[0]
	}

	// Raw values keep numbers as stored instead of display-formatted.
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("%w: sheet %q: %w", ErrMalformed, sheet, err)
	}
	if len(rows) == 0 {
		return nil, ErrEmptySource
	}
	data := rows[1:]
	// GetRows drops trailing empty rows but keeps interior ones.
	for i, row := range data {
		if len(row) > len(rows[0]) {
			data[i] = row[:len(rows[0])]
		}
	}
	return buildRecords(rows[0], data, opts)
}
