package source

import "errors"

var (
	// ErrUnsupportedFormat indicates a file extension no reader handles.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrEmptySource indicates input without a header row.
	ErrEmptySource = errors.New("source is empty")

	// ErrMalformed indicates input that cannot be parsed into records.
	ErrMalformed = errors.New("malformed source")

	// ErrOutOfRange indicates a read outside the source's rows.
	ErrOutOfRange = errors.New("row range out of bounds")

	// ErrInvalidReference indicates a source reference that cannot be resolved.
	ErrInvalidReference = errors.New("invalid source reference")
)
