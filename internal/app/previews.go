package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/MeBadDev/GDWeb/internal/apperr"
	"github.com/MeBadDev/GDWeb/internal/domain"
	"github.com/MeBadDev/GDWeb/internal/ttlstore"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Previews keeps uploaded packages playable for a fixed time. Expiry removes
// both the entry and its content.
type Previews struct {
	content ContentStore
	ttl     time.Duration
	store   *ttlstore.Store[string]
}

func NewPreviews(content ContentStore, ttl, sweepInterval time.Duration, opts ...ttlstore.Option[string]) *Previews {
	p := &Previews{content: content, ttl: ttl}
	opts = append([]ttlstore.Option[string]{
		ttlstore.WithSweepInterval[string](sweepInterval),
		ttlstore.WithOnEvict(p.evict),
	}, opts...)
	p.store = ttlstore.New[string](opts...)
	return p
}

func (p *Previews) Upload(ctx context.Context, filename string, r io.Reader) (domain.Preview, error) {
	if err := domain.CheckPackageName(filename); err != nil {
		return domain.Preview{}, fmt.Errorf("%w: %v", apperr.ErrInvalidInput, err)
	}
	id := domain.PreviewID(uuid.NewString())
	loc := domain.PreviewLocator(id)
	if _, err := p.content.Put(ctx, loc, r); err != nil {
		return domain.Preview{}, fmt.Errorf("store preview: %w", err)
	}
	p.store.Put(string(id), loc, p.ttl)
	expires, _ := p.store.ExpiresAt(string(id))

	log.Info().Str("module", "app.previews").Str("preview_id", string(id)).Time("expires_at", expires).Msg("preview stored")
	return domain.Preview{ID: id, Locator: loc, ExpiresAt: expires}, nil
}

// Open returns the content of a live preview. Unknown and expired previews
// are both apperr.ErrNotFound.
func (p *Previews) Open(id domain.PreviewID) (*Content, error) {
	loc, err := p.store.Get(string(id))
	if err != nil {
		if errors.Is(err, ttlstore.ErrNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return p.content.Open(loc)
}

func (p *Previews) Len() int { return p.store.Len() }

// Run sweeps expired previews until ctx is done.
func (p *Previews) Run(ctx context.Context) { p.store.Run(ctx) }

func (p *Previews) evict(id, loc string) {
	metricPreviewsEvicted.Inc()
	if err := p.content.Remove(loc); err != nil && !errors.Is(err, apperr.ErrNotFound) {
		log.Error().Err(err).Str("module", "app.previews").Str("preview_id", id).Msg("remove expired preview")
		return
	}
	log.Debug().Str("module", "app.previews").Str("preview_id", id).Msg("preview expired")
}
