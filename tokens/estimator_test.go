package tokens

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wordEncoder yields one token per whitespace separated word.
type wordEncoder struct{}

func (wordEncoder) EncodeOrdinary(text string) []int {
	return make([]int, len(strings.Fields(text)))
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestFormatFor(t *testing.T) {
	tests := []struct {
		ext  string
		want Format
	}{
		{"csv", TextFormat},
		{".JSON", TextFormat},
		{"png", ImageFormat},
		{"xlsx", DocumentFormat},
		{"", DocumentFormat},
	}
	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			assert.Equal(t, tt.want.Name, FormatFor(tt.ext).Name)
		})
	}
}

func TestEstimateFile_Tokenizer(t *testing.T) {
	path := writeFile(t, "labs.csv", []byte("name code\nsodium 2951-2\n"))
	est, err := NewEstimator(WithEncoder(wordEncoder{})).EstimateFile(path)
	require.NoError(t, err)

	assert.Equal(t, Tokenizer, est.Method)
	assert.Equal(t, 4, est.Tokens)
	assert.Equal(t, int64(24), est.SizeBytes)
	assert.Equal(t, "csv", est.Extension)
	assert.InDelta(t, 4.0/24.0, est.TokensPerByte, 1e-9)
	assert.NoError(t, est.Err)
}

func TestEstimateFile_NonText(t *testing.T) {
	path := writeFile(t, "labs.xlsx", make([]byte, 1000))
	est, err := NewEstimator(WithEncoder(wordEncoder{})).EstimateFile(path)
	require.NoError(t, err)

	assert.Equal(t, Fallback, est.Method)
	assert.Equal(t, 150, est.Tokens)
	assert.Equal(t, 0.15, est.TokensPerByte)
	assert.Contains(t, est.Note, "xlsx")
}

func TestEstimateFile_TokenizerFailure(t *testing.T) {
	t.Run("unknown encoding", func(t *testing.T) {
		path := writeFile(t, "notes.txt", []byte("four score and seven"))
		est, err := NewEstimator(WithEncoding("no_such_encoding")).EstimateFile(path)
		require.NoError(t, err)

		assert.Equal(t, Failed, est.Method)
		assert.Equal(t, 5, est.Tokens)
		require.Error(t, est.Err)
		assert.Contains(t, est.Note, "no_such_encoding")
	})

	t.Run("invalid utf-8", func(t *testing.T) {
		path := writeFile(t, "latin.csv", []byte{'c', 'a', 'f', 0xe9, '\n'})
		est, err := NewEstimator(WithEncoder(wordEncoder{})).EstimateFile(path)
		require.NoError(t, err)

		assert.Equal(t, Failed, est.Method)
		assert.ErrorIs(t, est.Err, errNotUTF8)
	})
}

func TestEstimateFile_Missing(t *testing.T) {
	_, err := NewEstimator().EstimateFile(filepath.Join(t.TempDir(), "missing.csv"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestCount(t *testing.T) {
	n, err := NewEstimator(WithEncoder(wordEncoder{})).Count("sodium in serum")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}
