package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/aescanero/scenegen/pkg/adapters/retrieval"
	"github.com/aescanero/scenegen/pkg/domain"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	keyPrefix = "scenegen:rag:"
	docsKey   = keyPrefix + "docs"
	statsKey  = keyPrefix + "stats"
)

// hit is one query term found in one document
type hit struct {
	docFreq  int
	termFreq int
}

// Index is a BM25 index stored in Redis. It implements ports.Retriever.
//
// Each document is a hash, each term a sorted set of document ids scored by
// term frequency, and collection statistics live in a separate hash.
type Index struct {
	client *redis.Client
	logger *zap.Logger
}

// NewIndex creates a new Redis index
func NewIndex(client *redis.Client, logger *zap.Logger) *Index {
	return &Index{client: client, logger: logger}
}

// Add indexes documents. Ids already in the index are skipped and counted
// in the returned total.
func (x *Index) Add(ctx context.Context, docs ...domain.Match) (skipped int, err error) {
	for _, doc := range docs {
		exists, err := x.client.SIsMember(ctx, docsKey, doc.ID).Result()
		if err != nil {
			return skipped, fmt.Errorf("failed to check document: %w", err)
		}
		if exists {
			skipped++
			continue
		}

		meta, err := json.Marshal(doc.Metadata)
		if err != nil {
			return skipped, fmt.Errorf("failed to marshal metadata: %w", err)
		}
		tf, length := retrieval.TermFrequencies(doc.Text)

		_, err = x.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, docKey(doc.ID),
				"text", doc.Text,
				"metadata", string(meta),
				"length", length)
			for term, n := range tf {
				pipe.ZAdd(ctx, termKey(term), redis.Z{Score: float64(n), Member: doc.ID})
			}
			pipe.SAdd(ctx, docsKey, doc.ID)
			pipe.HIncrBy(ctx, statsKey, "documents", 1)
			pipe.HIncrBy(ctx, statsKey, "total_length", int64(length))
			return nil
		})
		if err != nil {
			return skipped, fmt.Errorf("failed to index document %s: %w", doc.ID, err)
		}
	}

	x.logger.Info("documents indexed",
		zap.Int("added", len(docs)-skipped),
		zap.Int("skipped", skipped))

	return skipped, nil
}

// Reset removes every key the index owns
func (x *Index) Reset(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := x.client.Scan(ctx, cursor, keyPrefix+"*", 500).Result()
		if err != nil {
			return fmt.Errorf("failed to scan keys: %w", err)
		}
		if len(keys) > 0 {
			if err := x.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("failed to delete keys: %w", err)
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

// Retrieve returns up to topK documents ranked by BM25
func (x *Index) Retrieve(ctx context.Context, query string, topK int) ([]domain.Match, error) {
	terms := retrieval.QueryTerms(query)
	if len(terms) == 0 {
		return []domain.Match{}, nil
	}

	stats, err := x.stats(ctx)
	if err != nil {
		return nil, err
	}

	postings := make([]*redis.ZSliceCmd, len(terms))
	if _, err := x.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, term := range terms {
			postings[i] = pipe.ZRangeWithScores(ctx, termKey(term), 0, -1)
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("failed to read postings: %w", err)
	}

	hits := make(map[string][]hit)
	for _, cmd := range postings {
		list := cmd.Val()
		for _, z := range list {
			id, ok := z.Member.(string)
			if !ok {
				continue
			}
			hits[id] = append(hits[id], hit{docFreq: len(list), termFreq: int(z.Score)})
		}
	}
	if len(hits) == 0 {
		return []domain.Match{}, nil
	}

	lengths, err := x.lengths(ctx, hits)
	if err != nil {
		return nil, err
	}

	scores := make(map[string]float64, len(hits))
	for id, hs := range hits {
		for _, h := range hs {
			scores[id] += retrieval.TermScore(stats, h.docFreq, h.termFreq, lengths[id])
		}
	}

	return x.load(ctx, retrieval.TopK(scores, topK))
}

func (x *Index) stats(ctx context.Context) (retrieval.Stats, error) {
	vals, err := x.client.HMGet(ctx, statsKey, "documents", "total_length").Result()
	if err != nil {
		return retrieval.Stats{}, fmt.Errorf("failed to read index stats: %w", err)
	}
	return retrieval.Stats{
		Documents:   atoi(vals[0]),
		TotalLength: atoi(vals[1]),
	}, nil
}

func (x *Index) lengths(ctx context.Context, hits map[string][]hit) (map[string]int, error) {
	ids := make([]string, 0, len(hits))
	cmds := make([]*redis.StringCmd, 0, len(hits))
	if _, err := x.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for id := range hits {
			ids = append(ids, id)
			cmds = append(cmds, pipe.HGet(ctx, docKey(id), "length"))
		}
		return nil
	}); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to read document lengths: %w", err)
	}

	lengths := make(map[string]int, len(ids))
	for i, id := range ids {
		lengths[id] = atoi(cmds[i].Val())
	}
	return lengths, nil
}

func (x *Index) load(ctx context.Context, top []retrieval.Scored) ([]domain.Match, error) {
	cmds := make([]*redis.SliceCmd, len(top))
	if _, err := x.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, s := range top {
			cmds[i] = pipe.HMGet(ctx, docKey(s.ID), "text", "metadata")
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("failed to load documents: %w", err)
	}

	matches := make([]domain.Match, 0, len(top))
	for i, cmd := range cmds {
		vals := cmd.Val()
		text, _ := vals[0].(string)
		if text == "" {
			continue
		}
		m := domain.Match{ID: top[i].ID, Text: text}
		if raw, ok := vals[1].(string); ok && raw != "" && raw != "null" {
			if err := json.Unmarshal([]byte(raw), &m.Metadata); err != nil {
				x.logger.Warn("invalid document metadata",
					zap.String("doc_id", m.ID),
					zap.Error(err))
			}
		}
		matches = append(matches, m)
	}
	return matches, nil
}

func atoi(v interface{}) int {
	s, ok := v.(string)
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

func docKey(id string) string {
	return keyPrefix + "doc:" + id
}

func termKey(term string) string {
	return keyPrefix + "term:" + term
}
