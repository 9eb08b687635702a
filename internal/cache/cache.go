// Package cache keeps pages of the available-items listing in Redis.
package cache

import (
	"context"

	"grocery/internal/models"
)

// Loader produces the page on a cache miss.
type Loader func(ctx context.Context) (*models.ItemPage, error)

type Catalog interface {
	// Available returns the cached page for key, calling load on a miss.
	Available(ctx context.Context, key string, load Loader) (*models.ItemPage, error)
	// Invalidate drops every cached page. Stock or price changes call it.
	Invalidate(ctx context.Context) error
}

// Result labels for Recorder.
const (
	ResultHit   = "hit"
	ResultMiss  = "miss"
	ResultError = "error"
)

type Recorder interface {
	CacheResult(result string)
}

type nopRecorder struct{}

func (nopRecorder) CacheResult(string) {}

// Nop never caches.
type Nop struct{}

func (Nop) Available(ctx context.Context, _ string, load Loader) (*models.ItemPage, error) {
	return load(ctx)
}

func (Nop) Invalidate(context.Context) error { return nil }
