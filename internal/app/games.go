package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/MeBadDev/GDWeb/internal/apperr"
	"github.com/MeBadDev/GDWeb/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const gamesCollection = "games"

// Games stores uploaded game packages. Content is authoritative; metadata is
// best-effort and its failures only degrade the response.
type Games struct {
	content ContentStore
	docs    DocStore
	now     func() time.Time
}

func NewGames(content ContentStore, docs DocStore) *Games {
	return &Games{content: content, docs: docs, now: time.Now}
}

func (g *Games) Upload(ctx context.Context, owner domain.UserID, filename string, r io.Reader) (domain.GameMetadata, error) {
	if err := domain.CheckPackageName(filename); err != nil {
		return domain.GameMetadata{}, fmt.Errorf("%w: %v", apperr.ErrInvalidInput, err)
	}
	id := domain.GameID(uuid.NewString())
	size, err := g.content.Put(ctx, domain.GameLocator(id), r)
	if err != nil {
		return domain.GameMetadata{}, fmt.Errorf("store game: %w", err)
	}

	created := g.now().UTC()
	meta := domain.GameMetadata{
		ID:        id,
		OwnerID:   owner,
		Filename:  filename,
		Size:      size,
		CreatedAt: &created,
	}
	if err := g.docs.Put(ctx, gamesCollection, string(id), meta); err != nil {
		log.Warn().Err(err).Str("module", "app.games").Str("game_id", string(id)).Msg("metadata write failed")
		return domain.GameMetadata{ID: id}, nil
	}
	log.Info().Str("module", "app.games").Str("game_id", string(id)).Int64("size", size).Msg("game uploaded")
	return meta, nil
}

// Metadata fails with apperr.ErrNotFound only when the content is missing.
func (g *Games) Metadata(ctx context.Context, id domain.GameID) (domain.GameMetadata, error) {
	if !g.content.Exists(domain.GameLocator(id)) {
		return domain.GameMetadata{}, apperr.ErrNotFound
	}
	var meta domain.GameMetadata
	if err := g.docs.Get(ctx, gamesCollection, string(id), &meta); err != nil {
		if !errors.Is(err, apperr.ErrNotFound) {
			log.Warn().Err(err).Str("module", "app.games").Str("game_id", string(id)).Msg("metadata read failed")
		}
		return domain.GameMetadata{ID: id}, nil
	}
	meta.ID = id
	return meta, nil
}

func (g *Games) Open(id domain.GameID) (*Content, error) {
	return g.content.Open(domain.GameLocator(id))
}
