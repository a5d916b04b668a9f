package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/jonesrussell/postpilot/internal/models"
)

// MemoryStore is a non-durable Store for tests and dry runs. Documents are
// kept as encoded JSON so load/save round-trip behavior matches the file
// backend.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string][]byte)}
}

// Load decodes the stored document at key into v.
func (s *MemoryStore) Load(_ context.Context, key string, v any) error {
	s.mu.RLock()
	data, ok := s.docs[key]
	s.mu.RUnlock()

	if !ok {
		return models.ErrNotFound
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode state %s: %w", key, err)
	}
	return nil
}

// Save encodes v and replaces the document at key.
func (s *MemoryStore) Save(_ context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode state %s: %w", key, err)
	}

	s.mu.Lock()
	s.docs[key] = data
	s.mu.Unlock()
	return nil
}
