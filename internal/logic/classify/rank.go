package classify

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Observation is one classification result.
type Observation struct {
	Identifier string  `json:"identifier"`
	Confidence float32 `json:"confidence"`
}

// Softmax turns logits into probabilities.
func Softmax(scores []float32) []float32 {
	if len(scores) == 0 {
		return nil
	}
	x := toFloat64(scores)
	lse := floats.LogSumExp(x)
	out := make([]float32, len(x))
	for i, v := range x {
		out[i] = float32(math.Exp(v - lse))
	}
	return out
}

// Rank pairs scores with class labels and orders them by descending confidence.
// Scores beyond the label list are named by index.
func Rank(classes []string, scores []float32) []Observation {
	x := toFloat64(scores)
	inds := make([]int, len(x))
	floats.Argsort(x, inds) // ascending

	out := make([]Observation, 0, len(x))
	for i := len(inds) - 1; i >= 0; i-- {
		idx := inds[i]
		out = append(out, Observation{
			Identifier: label(classes, idx),
			Confidence: scores[idx],
		})
	}
	return out
}

// AboveConfidence keeps observations with a confidence of at least min.
func AboveConfidence(obs []Observation, min float32) []Observation {
	if min <= 0 {
		return obs
	}
	out := obs[:0:0]
	for _, o := range obs {
		if o.Confidence >= min {
			out = append(out, o)
		}
	}
	return out
}

func label(classes []string, idx int) string {
	if idx < len(classes) {
		return classes[idx]
	}
	return fmt.Sprintf("class_%d", idx)
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, f := range v {
		out[i] = float64(f)
	}
	return out
}
