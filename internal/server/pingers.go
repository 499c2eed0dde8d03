package server

import (
	"context"
	"fmt"

	"github.com/54b3r/terracoder/internal/retrieval"
	"github.com/54b3r/terracoder/internal/store"
)

// The LLM backend's readiness probe is *provider.HealthCheck, which
// satisfies Pinger on its own. This file holds probes for the remaining
// dependencies: the vector store and the history database.

// vectorHealth is the probe surface of the vector store. *retrieval.QdrantStore
// satisfies it; tests inject a fake.
type vectorHealth interface {
	HealthCheck(ctx context.Context) error
}

// QdrantPinger probes the Qdrant instance backing documentation retrieval.
type QdrantPinger struct {
	store vectorHealth
}

// NewQdrantPinger constructs a QdrantPinger for the given vector store.
func NewQdrantPinger(store *retrieval.QdrantStore) *QdrantPinger {
	return &QdrantPinger{store: store}
}

// Name returns the dependency label used in readiness responses.
func (p *QdrantPinger) Name() string { return "qdrant" }

// Ping calls the vector store's native health check.
func (p *QdrantPinger) Ping(ctx context.Context) error {
	if err := p.store.HealthCheck(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

// StorePinger probes the history database.
type StorePinger struct {
	store store.GenerationStore
}

// NewStorePinger constructs a StorePinger for the given history store.
func NewStorePinger(st store.GenerationStore) *StorePinger {
	return &StorePinger{store: st}
}

// Name returns the dependency label used in readiness responses.
func (p *StorePinger) Name() string { return "history" }

// Ping checks that the history database answers.
func (p *StorePinger) Ping(ctx context.Context) error {
	if err := p.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	return nil
}
