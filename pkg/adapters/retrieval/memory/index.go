package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/aescanero/scenegen/pkg/adapters/retrieval"
	"github.com/aescanero/scenegen/pkg/domain"
	"go.uber.org/zap"
)

type posting struct {
	doc int
	tf  int
}

// Index is an in-process BM25 index. It implements ports.Retriever.
type Index struct {
	logger *zap.Logger

	mu       sync.RWMutex
	docs     []domain.Match
	lengths  []int
	byID     map[string]int
	postings map[string][]posting
	stats    retrieval.Stats
}

// NewIndex creates an empty index
func NewIndex(logger *zap.Logger) *Index {
	return &Index{
		logger:   logger,
		byID:     make(map[string]int),
		postings: make(map[string][]posting),
	}
}

// Add indexes documents. Ids already in the index are rejected.
func (x *Index) Add(docs ...domain.Match) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	for _, doc := range docs {
		if _, exists := x.byID[doc.ID]; exists {
			return fmt.Errorf("document already indexed: %s", doc.ID)
		}

		idx := len(x.docs)
		tf, length := retrieval.TermFrequencies(doc.Text)
		for term, n := range tf {
			x.postings[term] = append(x.postings[term], posting{doc: idx, tf: n})
		}

		x.docs = append(x.docs, doc)
		x.lengths = append(x.lengths, length)
		x.byID[doc.ID] = idx
		x.stats.Documents++
		x.stats.TotalLength += length
	}

	return nil
}

// Len returns the number of indexed documents
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.docs)
}

// Retrieve returns up to topK documents ranked by BM25. A query with no
// indexed terms returns an empty slice.
func (x *Index) Retrieve(ctx context.Context, query string, topK int) ([]domain.Match, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	scores := make(map[string]float64)
	for _, term := range retrieval.QueryTerms(query) {
		list := x.postings[term]
		for _, p := range list {
			id := x.docs[p.doc].ID
			scores[id] += retrieval.TermScore(x.stats, len(list), p.tf, x.lengths[p.doc])
		}
	}

	top := retrieval.TopK(scores, topK)
	matches := make([]domain.Match, 0, len(top))
	for _, s := range top {
		matches = append(matches, x.docs[x.byID[s.ID]])
	}

	x.logger.Debug("retrieved",
		zap.String("query", query),
		zap.Int("matches", len(matches)))

	return matches, nil
}
