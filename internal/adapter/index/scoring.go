package index

import "math"

// Score mapping is fixed so one threshold works for both metrics:
// cosine similarity is used raw, in [-1, 1]; L2 distance is mapped onto
// (0, 1] via 1/(1+distance). Higher is always better, an exact duplicate
// scores 1.0 under either metric, and the mapping never changes once an
// index exists.

const (
	MetricCosine = "cosine"
	MetricL2     = "l2"
)

// cosineSimilarity returns dot(a,b) / (|a|*|b|), or 0 for a zero vector.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// l2Score maps euclidean distance onto (0, 1]: identical vectors score 1,
// score falls toward 0 as distance grows.
func l2Score(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return 1.0 / (1.0 + math.Sqrt(sum))
}

// score applies the index metric.
func score(metric string, query, candidate []float32) float64 {
	if metric == MetricL2 {
		return l2Score(query, candidate)
	}
	return cosineSimilarity(query, candidate)
}
