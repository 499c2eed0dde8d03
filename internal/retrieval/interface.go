// Package retrieval defines the interfaces for documentation retrieval:
// vector storage, snippet search, and embedding. Concrete implementations
// (Qdrant, etc.) satisfy these interfaces so the generation pipeline never
// depends on a specific backend.
package retrieval

import (
	"context"
)

// Snippet is a chunk of provider documentation stored for retrieval.
type Snippet struct {
	// ID is the unique identifier for this chunk.
	ID string

	// Content is the raw text content of the chunk.
	Content string

	// Source is the origin URL or file path of the document.
	Source string

	// Metadata holds arbitrary key-value pairs (provider, resource type, etc.).
	Metadata map[string]string

	// Score is the similarity score assigned during search (0.0–1.0).
	// Zero value means the score was not computed.
	Score float32
}

// VectorStore is the interface for persisting and searching snippet
// embeddings. Implementations must be safe to call from multiple goroutines.
type VectorStore interface {
	// Upsert stores or updates a batch of snippets with their pre-computed
	// embeddings. The embeddings slice must be parallel to snippets —
	// embeddings[i] is the vector for snippets[i].
	Upsert(ctx context.Context, snippets []Snippet, embeddings [][]float32) error

	// Search performs a semantic similarity search and returns the top-k
	// most relevant snippets for the given query embedding.
	Search(ctx context.Context, queryEmbedding []float32, topK int) ([]Snippet, error)

	// Delete removes snippets by their IDs.
	Delete(ctx context.Context, ids []string) error

	// Close releases any resources held by the store.
	Close() error
}

// Embedder is the interface for converting text into dense vector embeddings.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Searcher is the high-level interface the generation pipeline uses to fetch
// relevant snippets for a request. It combines embedding and vector search.
// Implementations must be safe to call from multiple goroutines.
type Searcher interface {
	// Search returns the top-k most relevant snippets for the query.
	Search(ctx context.Context, query string, topK int) ([]Snippet, error)
}
