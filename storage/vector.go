package storage

import (
	"encoding/json"

	"github.com/poiesic/vecbatch/core"
)

// ToVector converts a stored field value to a vector. Values decoded from
// JSON arrive as []any of float64.
func ToVector(v any) ([]float32, bool) {
	switch val := v.(type) {
	case core.Vector:
		return val, true
	case []float32:
		return val, true
	case []float64:
		out := make([]float32, len(val))
		for i, f := range val {
			out[i] = float32(f)
		}
		return out, true
	case []any:
		out := make([]float32, len(val))
		for i, item := range val {
			switch n := item.(type) {
			case float64:
				out[i] = float32(n)
			case json.Number:
				f, err := n.Float64()
				if err != nil {
					return nil, false
				}
				out[i] = float32(f)
			default:
				return nil, false
			}
		}
		return out, true
	default:
		return nil, false
	}
}
