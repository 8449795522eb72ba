// Package ttlstore is a keyed in-memory store whose entries expire after a
// per-entry time-to-live.
//
// Expiry is checked on every read, so an expired entry is never returned even
// if the background sweep has not run yet. The sweep only bounds memory.
package ttlstore

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const shardCount = 32

var (
	ErrNotFound = errors.New("entry not found")
	// ErrExpired satisfies errors.Is(err, ErrNotFound).
	ErrExpired = fmt.Errorf("%w: expired", ErrNotFound)
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

type shard[V any] struct {
	mu      sync.RWMutex
	entries map[string]entry[V]
}

type Store[V any] struct {
	shards   [shardCount]*shard[V]
	now      func() time.Time
	interval time.Duration
	onEvict  func(key string, value V)
}

type Option[V any] func(*Store[V])

// WithClock replaces time.Now.
func WithClock[V any](now func() time.Time) Option[V] {
	return func(s *Store[V]) { s.now = now }
}

// WithSweepInterval sets how often Run sweeps expired entries.
func WithSweepInterval[V any](d time.Duration) Option[V] {
	return func(s *Store[V]) { s.interval = d }
}

// WithOnEvict registers a hook called once for every entry removed because
// it expired. It runs outside the shard lock.
func WithOnEvict[V any](fn func(key string, value V)) Option[V] {
	return func(s *Store[V]) { s.onEvict = fn }
}

func New[V any](opts ...Option[V]) *Store[V] {
	s := &Store[V]{
		now:      time.Now,
		interval: time.Minute,
	}
	for i := range s.shards {
		s.shards[i] = &shard[V]{entries: make(map[string]entry[V])}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store[V]) shardFor(key string) *shard[V] {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return s.shards[h.Sum32()%shardCount]
}

// Put stores value under key until ttl elapses and returns the key.
func (s *Store[V]) Put(key string, value V, ttl time.Duration) string {
	sh := s.shardFor(key)
	sh.mu.Lock()
	sh.entries[key] = entry[V]{value: value, expiresAt: s.now().Add(ttl)}
	sh.mu.Unlock()
	return key
}

// Get returns the value stored under key. Missing keys yield ErrNotFound,
// keys past their expiry yield ErrExpired and are removed.
func (s *Store[V]) Get(key string) (V, error) {
	var zero V
	sh := s.shardFor(key)

	sh.mu.RLock()
	e, ok := sh.entries[key]
	sh.mu.RUnlock()
	if !ok {
		return zero, ErrNotFound
	}
	if !s.now().After(e.expiresAt) {
		return e.value, nil
	}

	// Re-check under the write lock: a concurrent Put may have refreshed it.
	sh.mu.Lock()
	cur, still := sh.entries[key]
	if still && !s.now().After(cur.expiresAt) {
		sh.mu.Unlock()
		return cur.value, nil
	}
	if still {
		delete(sh.entries, key)
	}
	sh.mu.Unlock()
	if still && s.onEvict != nil {
		s.onEvict(key, cur.value)
	}
	return zero, ErrExpired
}

// ExpiresAt reports the absolute expiry of a live entry.
func (s *Store[V]) ExpiresAt(key string) (time.Time, bool) {
	sh := s.shardFor(key)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	e, ok := sh.entries[key]
	if !ok || s.now().After(e.expiresAt) {
		return time.Time{}, false
	}
	return e.expiresAt, true
}

// Delete removes key without firing the eviction hook.
func (s *Store[V]) Delete(key string) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	delete(sh.entries, key)
	sh.mu.Unlock()
}

// Len counts physically stored entries, expired or not.
func (s *Store[V]) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		n += len(sh.entries)
		sh.mu.RUnlock()
	}
	return n
}

// Sweep removes every expired entry and returns how many were removed.
// Shards are swept one at a time.
func (s *Store[V]) Sweep() int {
	removed := 0
	for _, sh := range s.shards {
		now := s.now()
		var gone []string
		var values []V

		sh.mu.Lock()
		for k, e := range sh.entries {
			if now.After(e.expiresAt) {
				delete(sh.entries, k)
				gone = append(gone, k)
				values = append(values, e.value)
			}
		}
		sh.mu.Unlock()

		if s.onEvict != nil {
			for i, k := range gone {
				s.onEvict(k, values[i])
			}
		}
		removed += len(gone)
	}
	return removed
}

// Run sweeps at the configured interval until ctx is done.
func (s *Store[V]) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				log.Debug().Str("module", "ttlstore").Int("removed", n).Msg("sweep")
			}
		}
	}
}
