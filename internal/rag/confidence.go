package rag

// ConfidenceScore is the arithmetic mean of the top min(3, len) passage
// scores, or 0.0 when nothing was retrieved. A simple proxy for answer
// trustworthiness, not a calibrated probability.
func ConfidenceScore(passages []Passage) float64 {
	if len(passages) == 0 {
		return 0.0
	}

	n := min(3, len(passages))
	var sum float64
	for _, p := range passages[:n] {
		sum += p.Score
	}
	return sum / float64(n)
}
