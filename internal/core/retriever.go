// ABOUTME: Retriever fetches supporting passages for the current utterance
// ABOUTME: Dense search through embeddings first, keyword search when that yields nothing
package core

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/harper/tutor/internal/models"
)

// DefaultTopK is the number of passages handed to responders
const DefaultTopK = 5

// Embedder turns text into an embedding vector
type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float64, error)
}

// PassageSearcher is the read side of a passage store
type PassageSearcher interface {
	SearchSimilar(vector []float64, maxResults int) ([]models.Passage, error)
	SearchKeyword(query string, maxResults int) ([]models.Passage, error)
}

// Retriever implements PassageFetcher over an embedder and a passage store
type Retriever struct {
	embedder Embedder
	store    PassageSearcher
	topK     int
	logger   *slog.Logger
}

// NewRetriever creates a Retriever. embedder may be nil for keyword-only retrieval.
func NewRetriever(embedder Embedder, store PassageSearcher, topK int, logger *slog.Logger) *Retriever {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Retriever{
		embedder: embedder,
		store:    store,
		topK:     topK,
		logger:   logger,
	}
}

// Fetch returns up to topK passages ranked by relevance. The topic hint is
// appended to the query when the utterance does not already mention it.
func (r *Retriever) Fetch(ctx context.Context, query, topicHint string) ([]models.Passage, error) {
	if r.store == nil {
		return nil, nil
	}
	q := strings.TrimSpace(query)
	if topicHint != "" && !strings.Contains(strings.ToLower(q), strings.ToLower(topicHint)) {
		q = q + " " + topicHint
	}
	if q == "" {
		return nil, nil
	}

	if r.embedder != nil {
		passages, err := r.dense(ctx, q)
		if err == nil && len(passages) > 0 {
			return passages, nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			r.logger.Warn("dense retrieval failed, using keyword search", "error", err)
		}
	}

	passages, err := r.store.SearchKeyword(query, r.topK)
	if err != nil {
		return nil, fmt.Errorf("keyword search failed: %w", err)
	}
	return passages, nil
}

func (r *Retriever) dense(ctx context.Context, q string) ([]models.Passage, error) {
	vector, err := r.embedder.GenerateEmbedding(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	passages, err := r.store.SearchSimilar(vector, r.topK)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	return passages, nil
}
