// Copyright (C) 2025 Storj Labs, Inc.
// See LICENSE for copying information.

package technology

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// CacheConfig holds the technology cache parameters.
type CacheConfig struct {
	Address    string        `help:"redis address for the technology cache" default:"localhost:6379"`
	DB         int           `help:"redis database for the technology cache" default:"0"`
	Expiration time.Duration `help:"how long cached technologies stay valid" default:"1h"`
}

// Cache is a read-through redis cache in front of a technology store.
// The registry is small and nearly static, so every lookup during
// allocation can be served from the cache. Redis failures fall back to
// the underlying store.
type Cache struct {
	db         DB
	client     redis.UniversalClient
	expiration time.Duration
}

// NewCache wraps db with a cache using an existing redis client.
func NewCache(db DB, client redis.UniversalClient, expiration time.Duration) *Cache {
	return &Cache{
		db:         db,
		client:     client,
		expiration: expiration,
	}
}

// OpenCache wraps db with a cache dialing redis per config.
func OpenCache(db DB, config CacheConfig) *Cache {
	client := redis.NewClient(&redis.Options{
		Addr: config.Address,
		DB:   config.DB,
	})
	return NewCache(db, client, config.Expiration)
}

// Close closes the redis client.
func (cache *Cache) Close() error {
	return cache.client.Close()
}

// Create inserts the technology and invalidates the cache.
func (cache *Cache) Create(ctx context.Context, t *Technology) error {
	if err := cache.db.Create(ctx, t); err != nil {
		return err
	}

	err := cache.client.Del(ctx, codeKey(t.TechCode, t.FuelCode), listKey).Err()
	return Error.Wrap(err)
}

// Get returns the technology for the code pair, reading through the
// cache. Unregistered pairs are not cached.
func (cache *Cache) Get(ctx context.Context, techCode, fuelCode string) (*Technology, error) {
	key := codeKey(techCode, fuelCode)

	data, err := cache.client.Get(ctx, key).Bytes()
	if err == nil {
		var t Technology
		if err := json.Unmarshal(data, &t); err == nil {
			return &t, nil
		}
	}

	t, err := cache.db.Get(ctx, techCode, fuelCode)
	if err != nil || t == nil {
		return t, err
	}

	if data, err := json.Marshal(t); err == nil {
		_ = cache.client.Set(ctx, key, data, cache.expiration).Err()
	}
	return t, nil
}

// List returns all registered technologies, reading through the cache.
func (cache *Cache) List(ctx context.Context) ([]*Technology, error) {
	data, err := cache.client.Get(ctx, listKey).Bytes()
	if err == nil {
		var list []*Technology
		if err := json.Unmarshal(data, &list); err == nil {
			return list, nil
		}
	}

	list, err := cache.db.List(ctx)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(list); err == nil {
		_ = cache.client.Set(ctx, listKey, data, cache.expiration).Err()
	}
	return list, nil
}

const listKey = "technologies"

func codeKey(techCode, fuelCode string) string {
	return fmt.Sprintf("technology:%s:%s", techCode, fuelCode)
}
