package app

import (
	"context"
	"fmt"
	"strings"

	"docrag/internal/embedding"
	"docrag/internal/model"
)

const (
	DefaultTopK          = 5
	DefaultMinSimilarity = 0.01
)

type ChunkSearcher interface {
	Search(ctx context.Context, query []float32, limit int, minScore float64, userID uint) ([]model.ScoredChunk, error)
}

// Retriever finds the chunks of a user's documents closest to a query.
// Scores come from the hash embedding and are low in absolute terms, hence
// the small default threshold.
type Retriever struct {
	searcher      ChunkSearcher
	topK          int
	minSimilarity float64
}

func NewRetriever(searcher ChunkSearcher, topK int, minSimilarity float64) *Retriever {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if minSimilarity <= 0 {
		minSimilarity = DefaultMinSimilarity
	}
	return &Retriever{searcher: searcher, topK: topK, minSimilarity: minSimilarity}
}

// Retrieve returns up to topK chunks ordered by descending similarity. An
// empty result is not an error; backend failures wrap ErrRetrieval.
func (r *Retriever) Retrieve(ctx context.Context, query string, userID uint) ([]model.ScoredChunk, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	chunks, err := r.searcher.Search(ctx, embedding.Embed(query), r.topK, r.minSimilarity, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRetrieval, err)
	}
	return chunks, nil
}
