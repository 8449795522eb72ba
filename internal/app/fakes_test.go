package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/MeBadDev/GDWeb/internal/apperr"
	"github.com/MeBadDev/GDWeb/internal/core"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// queueConn mimics the websocket adapter: a bounded queue that refuses
// frames once full.
type queueConn struct {
	mu     sync.Mutex
	frames []core.Frame
	cap    int
	closed bool
}

func newQueueConn(capacity int) *queueConn { return &queueConn{cap: capacity} }

func (c *queueConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return core.ErrSessionClosed
	}
	if len(c.frames) >= c.cap {
		return core.ErrBackpressure
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *queueConn) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *queueConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// drain returns queued frames as strings and empties the queue.
func (c *queueConn) drain() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.frames))
	for i, f := range c.frames {
		out[i] = string(f)
	}
	c.frames = nil
	return out
}

type memContent struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func newMemContent() *memContent { return &memContent{blobs: make(map[string][]byte)} }

func (m *memContent) Put(_ context.Context, loc string, r io.Reader) (int64, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	m.mu.Lock()
	m.blobs[loc] = b
	m.mu.Unlock()
	return int64(len(b)), nil
}

func (m *memContent) Open(loc string) (*Content, error) {
	m.mu.Lock()
	b, ok := m.blobs[loc]
	m.mu.Unlock()
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return &Content{ReadSeekCloser: nopCloser{bytes.NewReader(b)}, Size: int64(len(b)), ModTime: time.Now()}, nil
}

func (m *memContent) Exists(loc string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.blobs[loc]
	return ok
}

func (m *memContent) Remove(loc string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.blobs[loc]; !ok {
		return apperr.ErrNotFound
	}
	delete(m.blobs, loc)
	return nil
}

type nopCloser struct{ *bytes.Reader }

func (nopCloser) Close() error { return nil }

type memDocs struct {
	mu   sync.Mutex
	docs map[string][]byte
	err  error
}

func newMemDocs() *memDocs { return &memDocs{docs: make(map[string][]byte)} }

func (d *memDocs) Available() bool { return d.err == nil }

func (d *memDocs) Put(_ context.Context, col, id string, v any) error {
	if d.err != nil {
		return d.err
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.docs[col+"/"+id] = b
	d.mu.Unlock()
	return nil
}

func (d *memDocs) Create(ctx context.Context, col, id string, v any) error {
	d.mu.Lock()
	_, exists := d.docs[col+"/"+id]
	d.mu.Unlock()
	if exists {
		return apperr.ErrConflict
	}
	return d.Put(ctx, col, id, v)
}

func (d *memDocs) Get(_ context.Context, col, id string, v any) error {
	if d.err != nil {
		return d.err
	}
	d.mu.Lock()
	b, ok := d.docs[col+"/"+id]
	d.mu.Unlock()
	if !ok {
		return apperr.ErrNotFound
	}
	return json.Unmarshal(b, v)
}

func (d *memDocs) Delete(_ context.Context, col, id string) error {
	if d.err != nil {
		return d.err
	}
	d.mu.Lock()
	delete(d.docs, col+"/"+id)
	d.mu.Unlock()
	return nil
}

type recordingBus struct {
	mu   sync.Mutex
	envs []Envelope
}

func (b *recordingBus) Publish(_ context.Context, env Envelope) error {
	b.mu.Lock()
	b.envs = append(b.envs, env)
	b.mu.Unlock()
	return nil
}

func (b *recordingBus) published() []Envelope {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Envelope(nil), b.envs...)
}
