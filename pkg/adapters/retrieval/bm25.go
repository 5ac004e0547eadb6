package retrieval

import (
	"math"
	"sort"
)

// BM25 parameters
const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// Stats describes the indexed collection
type Stats struct {
	Documents   int
	TotalLength int
}

// AvgLength returns the mean document length in terms
func (s Stats) AvgLength() float64 {
	if s.Documents == 0 {
		return 0
	}
	return float64(s.TotalLength) / float64(s.Documents)
}

// TermScore is the BM25 contribution of one query term to one document
func TermScore(stats Stats, docFreq, termFreq, docLength int) float64 {
	if docFreq == 0 || termFreq == 0 || stats.Documents == 0 {
		return 0
	}
	n := float64(stats.Documents)
	df := float64(docFreq)
	idf := math.Log(1 + (n-df+0.5)/(df+0.5))

	tf := float64(termFreq)
	norm := 1 - bm25B
	if avg := stats.AvgLength(); avg > 0 {
		norm += bm25B * float64(docLength) / avg
	}
	return idf * tf * (bm25K1 + 1) / (tf + bm25K1*norm)
}

// Scored is a document id with its score
type Scored struct {
	ID    string
	Score float64
}

// TopK returns the k best scores, highest first. Ties keep ascending id
// order so results are stable.
func TopK(scores map[string]float64, k int) []Scored {
	out := make([]Scored, 0, len(scores))
	for id, s := range scores {
		if s > 0 {
			out = append(out, Scored{ID: id, Score: s})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	if k >= 0 && len(out) > k {
		out = out[:k]
	}
	return out
}
