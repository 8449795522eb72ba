package app

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/MeBadDev/GDWeb/internal/core"
	"github.com/MeBadDev/GDWeb/internal/domain"
)

// Envelope carries one relayed frame between instances.
type Envelope struct {
	Origin string          `json:"origin"`
	Role   core.Role       `json:"role"`
	Room   domain.RoomID   `json:"room"`
	Sender core.SessionID  `json:"sender"`
	Frame  json.RawMessage `json:"frame"`
}

// Bus fans frames out to the other instances serving the same rooms.
type Bus interface {
	Publish(ctx context.Context, env Envelope) error
}

// Content is an opened blob from the content store.
type Content struct {
	io.ReadSeekCloser
	Size    int64
	ModTime time.Time
}

// ContentStore holds uploaded packages addressed by locator.
// Open and Remove report apperr.ErrNotFound for unknown locators.
type ContentStore interface {
	Put(ctx context.Context, locator string, r io.Reader) (int64, error)
	Open(locator string) (*Content, error)
	Exists(locator string) bool
	Remove(locator string) error
}

// DocStore is the metadata store: JSON documents keyed by collection and id.
// Every method returns apperr.ErrUnavailable when the store is not configured.
type DocStore interface {
	Available() bool
	Put(ctx context.Context, collection, id string, v any) error
	// Create fails with apperr.ErrConflict when the document already exists.
	Create(ctx context.Context, collection, id string, v any) error
	// Get fails with apperr.ErrNotFound for a missing document.
	Get(ctx context.Context, collection, id string, v any) error
	// Delete succeeds for a missing document.
	Delete(ctx context.Context, collection, id string) error
}
