package retrieval

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type stubEmbedder struct {
	vectors [][]float32
	err     error
	calls   int
}

func (s *stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if s.vectors != nil {
		return s.vectors, nil
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2, 0.3}
	}
	return out, nil
}

type stubStore struct {
	snippets []Snippet
	err      error
	gotTopK  int
}

func (s *stubStore) Upsert(context.Context, []Snippet, [][]float32) error { return nil }

func (s *stubStore) Search(_ context.Context, _ []float32, topK int) ([]Snippet, error) {
	s.gotTopK = topK
	if s.err != nil {
		return nil, s.err
	}
	return s.snippets, nil
}

func (s *stubStore) Delete(context.Context, []string) error { return nil }
func (s *stubStore) Close() error                           { return nil }

func TestNewRetriever_RequiresDependencies(t *testing.T) {
	t.Parallel()

	if _, err := NewRetriever(nil, &stubStore{}, 5); err == nil {
		t.Error("NewRetriever(nil embedder) did not fail")
	}
	if _, err := NewRetriever(&stubEmbedder{}, nil, 5); err == nil {
		t.Error("NewRetriever(nil store) did not fail")
	}
}

func TestRetriever_Search(t *testing.T) {
	t.Parallel()

	store := &stubStore{snippets: []Snippet{
		{ID: "a", Content: "eks cluster docs", Score: 0.92},
		{ID: "b", Content: "vpc docs", Score: 0.71},
	}}
	r, err := NewRetriever(&stubEmbedder{}, store, 5)
	if err != nil {
		t.Fatalf("NewRetriever: %v", err)
	}

	got, err := r.Search(context.Background(), "provision an eks cluster", 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 2 || got[0].ID != "a" {
		t.Errorf("Search returned %v, want the store results in order", got)
	}
	if store.gotTopK != 2 {
		t.Errorf("store received topK=%d, want 2", store.gotTopK)
	}
}

func TestRetriever_SearchDefaultsTopK(t *testing.T) {
	t.Parallel()

	store := &stubStore{}
	r, err := NewRetriever(&stubEmbedder{}, store, 7)
	if err != nil {
		t.Fatalf("NewRetriever: %v", err)
	}

	if _, err := r.Search(context.Background(), "anything", 0); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if store.gotTopK != 7 {
		t.Errorf("store received topK=%d, want the configured default 7", store.gotTopK)
	}
}

func TestRetriever_SearchEmbedderError(t *testing.T) {
	t.Parallel()

	r, err := NewRetriever(&stubEmbedder{err: errors.New("model offline")}, &stubStore{}, 5)
	if err != nil {
		t.Fatalf("NewRetriever: %v", err)
	}

	_, err = r.Search(context.Background(), "anything", 3)
	if err == nil {
		t.Fatal("Search did not surface the embedder error")
	}
	if !strings.Contains(err.Error(), "embedding query failed") {
		t.Errorf("error %q does not explain the embedding failure", err)
	}
}

func TestRetriever_SearchStoreError(t *testing.T) {
	t.Parallel()

	r, err := NewRetriever(&stubEmbedder{}, &stubStore{err: errors.New("qdrant down")}, 5)
	if err != nil {
		t.Fatalf("NewRetriever: %v", err)
	}

	_, err = r.Search(context.Background(), "anything", 3)
	if err == nil {
		t.Fatal("Search did not surface the store error")
	}
	if !strings.Contains(err.Error(), "vector search failed") {
		t.Errorf("error %q does not explain the search failure", err)
	}
}
