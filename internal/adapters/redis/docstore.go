package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/MeBadDev/GDWeb/internal/apperr"
	"github.com/redis/go-redis/v9"
)

// DocStore keeps each document as a JSON string at gdweb:<collection>:<id>.
type DocStore struct {
	client *redis.Client
}

func NewDocStore(client *redis.Client) *DocStore {
	return &DocStore{client: client}
}

func docKey(collection, id string) string {
	return keyPrefix + collection + ":" + id
}

func (d *DocStore) Available() bool { return d.client != nil }

func (d *DocStore) Put(ctx context.Context, collection, id string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", collection, err)
	}
	if err := d.client.Set(ctx, docKey(collection, id), data, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", collection, err)
	}
	return nil
}

func (d *DocStore) Create(ctx context.Context, collection, id string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", collection, err)
	}
	ok, err := d.client.SetNX(ctx, docKey(collection, id), data, 0).Result()
	if err != nil {
		return fmt.Errorf("redis setnx %s: %w", collection, err)
	}
	if !ok {
		return apperr.ErrConflict
	}
	return nil
}

func (d *DocStore) Delete(ctx context.Context, collection, id string) error {
	if err := d.client.Del(ctx, docKey(collection, id)).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", collection, err)
	}
	return nil
}

func (d *DocStore) Get(ctx context.Context, collection, id string, v any) error {
	data, err := d.client.Get(ctx, docKey(collection, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return apperr.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("redis get %s: %w", collection, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", collection, err)
	}
	return nil
}
