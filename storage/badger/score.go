package badger

import (
	"math"

	"github.com/poiesic/vecbatch/storage"
)

// score converts the distance between two vectors into an OpenSearch-style
// relevance score where higher is closer.
func score(space storage.SpaceType, query, vector []float32) float64 {
	switch space {
	case storage.SpaceCosine:
		return (1 + cosine(query, vector)) / 2
	case storage.SpaceInnerProduct:
		dot := float64(dotProduct(query, vector))
		if dot >= 0 {
			return dot + 1
		}
		return 1 / (1 - dot)
	default:
		return 1 / (1 + squaredL2(query, vector))
	}
}

// dotProduct calculates the dot product of two vectors.
func dotProduct(a, b []float32) float32 {
	var sum float32
	minLen := min(len(a), len(b))
	for i := 0; i < minLen; i++ {
		sum += a[i] * b[i]
	}
	return sum
}

func squaredL2(a, b []float32) float64 {
	var sum float64
	minLen := min(len(a), len(b))
	for i := 0; i < minLen; i++ {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	minLen := min(len(a), len(b))
	for i := 0; i < minLen; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
