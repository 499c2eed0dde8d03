package retrieval

import (
	"context"
	"fmt"
)

// Retriever implements Searcher by combining an Embedder and a VectorStore.
// It embeds the query at search time and delegates similarity search to the
// store.
type Retriever struct {
	// embedder converts query text to a dense vector.
	embedder Embedder

	// store performs the vector similarity search.
	store VectorStore

	// defaultTopK is the number of results to return when the caller passes 0.
	defaultTopK int
}

// NewRetriever constructs a Retriever from the given Embedder and VectorStore.
// defaultTopK sets the fallback result count when Search is called with topK=0.
func NewRetriever(embedder Embedder, store VectorStore, defaultTopK int) (*Retriever, error) {
	if embedder == nil {
		return nil, fmt.Errorf("retrieval: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("retrieval: store must not be nil")
	}
	if defaultTopK <= 0 {
		defaultTopK = 5
	}
	return &Retriever{
		embedder:    embedder,
		store:       store,
		defaultTopK: defaultTopK,
	}, nil
}

// Search embeds the query and returns the top-k most relevant snippets.
// If topK is 0 the defaultTopK configured at construction time is used.
func (r *Retriever) Search(ctx context.Context, query string, topK int) ([]Snippet, error) {
	if topK <= 0 {
		topK = r.defaultTopK
	}

	embeddings, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("retrieval: embedding query failed: %w", err)
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("retrieval: embedder returned empty result for query")
	}

	snippets, err := r.store.Search(ctx, embeddings[0], topK)
	if err != nil {
		return nil, fmt.Errorf("retrieval: vector search failed: %w", err)
	}

	return snippets, nil
}
