package tokens

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding is a close approximation for current embedding models.
const DefaultEncoding = "cl100k_base"

// Method names how an estimate was produced.
type Method string

const (
	// Tokenizer counted the file contents with the encoding.
	Tokenizer Method = "tokenizer"
	// Fallback estimated a non-text file from its size.
	Fallback Method = "tokenizer_fallback"
	// Failed estimated a text file from its size after the tokenizer failed.
	Failed Method = "tokenizer_failed"
)

// Format groups file extensions with a tokens-per-byte ratio used when the
// contents are not tokenized.
type Format struct {
	Name       string
	Extensions []string
	Ratio      float64
}

var (
	TextFormat     = Format{Name: "text", Extensions: []string{"txt", "md", "csv", "json", "html"}, Ratio: 0.25}
	ImageFormat    = Format{Name: "image", Extensions: []string{"jpg", "jpeg", "png", "gif", "webp"}, Ratio: 0.6}
	DocumentFormat = Format{Name: "document", Ratio: 0.15}
)

// FormatFor returns the format of a file extension, without the dot.
// Unknown extensions are documents.
func FormatFor(ext string) Format {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, f := range []Format{TextFormat, ImageFormat} {
		if slices.Contains(f.Extensions, ext) {
			return f
		}
	}
	return DocumentFormat
}

// Estimate is the token estimate for one file.
type Estimate struct {
	Method        Method
	Tokens        int
	SizeBytes     int64
	Extension     string
	TokensPerByte float64
	Note          string
	Err           error
}

// Encoder turns text into tokens. *tiktoken.Tiktoken implements it.
type Encoder interface {
	EncodeOrdinary(text string) []int
}

// Estimator estimates token counts for files.
type Estimator struct {
	encoding string
	encoder  Encoder
	logger   *slog.Logger
}

// Option configures an Estimator.
type Option func(*Estimator)

// WithEncoding selects the tiktoken encoding by name.
func WithEncoding(name string) Option {
	return func(e *Estimator) {
		e.encoding = name
	}
}

// WithEncoder uses enc instead of loading a tiktoken encoding.
func WithEncoder(enc Encoder) Option {
	return func(e *Estimator) {
		e.encoder = enc
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Estimator) {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger.With("component", "tokens")
	}
}

// NewEstimator creates an Estimator. The encoding is loaded on first use;
// tiktoken fetches its ranks once and caches them under TIKTOKEN_CACHE_DIR.
func NewEstimator(opts ...Option) *Estimator {
	e := &Estimator{
		encoding: DefaultEncoding,
		logger:   slog.Default().With("component", "tokens"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Estimator) load() (Encoder, error) {
	if e.encoder != nil {
		return e.encoder, nil
	}
	enc, err := tiktoken.GetEncoding(e.encoding)
	if err != nil {
		return nil, fmt.Errorf("loading %s encoding: %w", e.encoding, err)
	}
	e.encoder = enc
	return enc, nil
}

// Count returns the number of tokens in text.
func (e *Estimator) Count(text string) (int, error) {
	enc, err := e.load()
	if err != nil {
		return 0, err
	}
	return len(enc.EncodeOrdinary(text)), nil
}

// EstimateFile estimates the tokens in the file at path. Only a missing or
// unreadable file is an error; a tokenizer failure falls back to the size
// ratio and is reported in Estimate.Err.
func (e *Estimator) EstimateFile(path string) (*Estimate, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	size := info.Size()
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	format := FormatFor(ext)

	est := &Estimate{SizeBytes: size, Extension: ext}
	if format.Name != TextFormat.Name {
		est.Method = Fallback
		est.Tokens = int(float64(size) * format.Ratio)
		est.TokensPerByte = format.Ratio
		est.Note = fmt.Sprintf("Non-text file, using conservative estimation. File extension: %s.", ext)
		return est, nil
	}

	tokens, err := e.countFile(path)
	if err != nil {
		e.logger.Warn("tokenizer failed, estimating from size", "path", path, "err", err)
		est.Method = Failed
		est.Tokens = int(float64(size) * format.Ratio)
		est.TokensPerByte = format.Ratio
		est.Note = fmt.Sprintf("Tokenizer failed, using simple estimation. Error: %v.", err)
		est.Err = err
		return est, nil
	}
	est.Method = Tokenizer
	est.Tokens = tokens
	if size > 0 {
		est.TokensPerByte = float64(tokens) / float64(size)
	}
	est.Note = fmt.Sprintf("Estimated using tiktoken (%s encoding).", e.encoding)
	return est, nil
}

var errNotUTF8 = errors.New("file is not valid UTF-8")

func (e *Estimator) countFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	if !utf8.Valid(data) {
		return 0, errNotUTF8
	}
	return e.Count(string(data))
}
