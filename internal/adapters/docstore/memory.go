// Package docstore holds the process-local document stores used when no
// redis is configured.
package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/MeBadDev/GDWeb/internal/apperr"
)

// Memory keeps JSON documents in a map. Values are encoded on write so callers
// never share memory with the store.
type Memory struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{docs: make(map[string][]byte)}
}

func key(collection, id string) string { return collection + "/" + id }

func (m *Memory) Available() bool { return true }

func (m *Memory) Put(_ context.Context, collection, id string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", collection, err)
	}
	m.mu.Lock()
	m.docs[key(collection, id)] = b
	m.mu.Unlock()
	return nil
}

func (m *Memory) Create(_ context.Context, collection, id string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", collection, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key(collection, id)
	if _, ok := m.docs[k]; ok {
		return apperr.ErrConflict
	}
	m.docs[k] = b
	return nil
}

// Delete is a no-op for a missing document.
func (m *Memory) Delete(_ context.Context, collection, id string) error {
	m.mu.Lock()
	delete(m.docs, key(collection, id))
	m.mu.Unlock()
	return nil
}

func (m *Memory) Get(_ context.Context, collection, id string, v any) error {
	m.mu.RLock()
	b, ok := m.docs[key(collection, id)]
	m.mu.RUnlock()
	if !ok {
		return apperr.ErrNotFound
	}
	return json.Unmarshal(b, v)
}

// None is the store of a deployment without metadata.
type None struct{}

func (None) Available() bool { return false }

func (None) Put(context.Context, string, string, any) error    { return apperr.ErrUnavailable }
func (None) Create(context.Context, string, string, any) error { return apperr.ErrUnavailable }
func (None) Get(context.Context, string, string, any) error    { return apperr.ErrUnavailable }

func (None) Delete(context.Context, string, string) error { return apperr.ErrUnavailable }
