// ABOUTME: Tests for Retriever passage lookup
// ABOUTME: Verifies dense search, keyword fallback and topic hint handling

package core

import (
	"context"
	"errors"
	"testing"

	"github.com/harper/tutor/internal/models"
)

type stubEmbedder struct {
	vector []float64
	err    error
	seen   []string
}

func (s *stubEmbedder) GenerateEmbedding(_ context.Context, text string) ([]float64, error) {
	s.seen = append(s.seen, text)
	return s.vector, s.err
}

type stubSearcher struct {
	similar     []models.Passage
	keyword     []models.Passage
	similarErr  error
	keywordErr  error
	keywordSeen []string
	limits      []int
}

func (s *stubSearcher) SearchSimilar(_ []float64, maxResults int) ([]models.Passage, error) {
	s.limits = append(s.limits, maxResults)
	return s.similar, s.similarErr
}

func (s *stubSearcher) SearchKeyword(query string, maxResults int) ([]models.Passage, error) {
	s.keywordSeen = append(s.keywordSeen, query)
	s.limits = append(s.limits, maxResults)
	return s.keyword, s.keywordErr
}

func TestRetriever_DenseFirst(t *testing.T) {
	emb := &stubEmbedder{vector: []float64{1, 0}}
	store := &stubSearcher{
		similar: []models.Passage{{ID: "dense"}},
		keyword: []models.Passage{{ID: "kw"}},
	}
	r := NewRetriever(emb, store, 3, nil)

	got, err := r.Fetch(context.Background(), "derivada de x^2", "")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != "dense" {
		t.Errorf("Fetch() = %+v, want dense passage", got)
	}
	if len(store.keywordSeen) != 0 {
		t.Error("keyword search should not run when dense search has results")
	}
	if store.limits[0] != 3 {
		t.Errorf("limit = %d, want 3", store.limits[0])
	}
}

func TestRetriever_FallsBackToKeyword(t *testing.T) {
	tests := []struct {
		name  string
		emb   Embedder
		store *stubSearcher
	}{
		{"no embedder", nil, &stubSearcher{keyword: []models.Passage{{ID: "kw"}}}},
		{"embedding error", &stubEmbedder{err: errors.New("rate limited")}, &stubSearcher{keyword: []models.Passage{{ID: "kw"}}}},
		{"vector search error", &stubEmbedder{vector: []float64{1}}, &stubSearcher{similarErr: errors.New("boom"), keyword: []models.Passage{{ID: "kw"}}}},
		{"no dense hits", &stubEmbedder{vector: []float64{1}}, &stubSearcher{keyword: []models.Passage{{ID: "kw"}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRetriever(tt.emb, tt.store, 0, nil)
			got, err := r.Fetch(context.Background(), "integrales", "")
			if err != nil {
				t.Fatalf("Fetch() error = %v", err)
			}
			if len(got) != 1 || got[0].ID != "kw" {
				t.Errorf("Fetch() = %+v, want keyword passage", got)
			}
		})
	}
}

func TestRetriever_TopicHint(t *testing.T) {
	emb := &stubEmbedder{vector: []float64{1}}
	r := NewRetriever(emb, &stubSearcher{similar: []models.Passage{{ID: "p"}}}, 0, nil)

	_, _ = r.Fetch(context.Background(), "dame otro ejemplo", "límites")
	_, _ = r.Fetch(context.Background(), "ejemplo de límites", "límites")

	if emb.seen[0] != "dame otro ejemplo límites" {
		t.Errorf("query = %q, want topic appended", emb.seen[0])
	}
	if emb.seen[1] != "ejemplo de límites" {
		t.Errorf("query = %q, want topic not duplicated", emb.seen[1])
	}
}

func TestRetriever_KeywordErrorSurfaces(t *testing.T) {
	r := NewRetriever(nil, &stubSearcher{keywordErr: errors.New("db closed")}, 0, nil)
	if _, err := r.Fetch(context.Background(), "hola", ""); err == nil {
		t.Error("Fetch() should return keyword search errors")
	}
}

func TestRetriever_NilStore(t *testing.T) {
	r := NewRetriever(nil, nil, 0, nil)
	got, err := r.Fetch(context.Background(), "hola", "")
	if err != nil || got != nil {
		t.Errorf("Fetch() = %v, %v; want nil, nil", got, err)
	}
}
