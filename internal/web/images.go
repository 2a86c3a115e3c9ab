package web

import (
	"context"
	"log/slog"
	"time"

	"github.com/mzalewski/fiszki/internal/catalog"
	"github.com/mzalewski/fiszki/internal/domain"
	"github.com/mzalewski/fiszki/internal/storage"
)

// LazyImageCache answers from the local store and falls back to the
// catalog service on a miss, caching what it fetched. A fetch failure for
// an uncached image surfaces; everything already cached keeps working
// offline.
type LazyImageCache struct {
	store  *storage.DB
	client *catalog.Client
}

// NewLazyImageCache wires the store and the catalog client together.
func NewLazyImageCache(store *storage.DB, client *catalog.Client) *LazyImageCache {
	return &LazyImageCache{store: store, client: client}
}

// Load implements ImageCache.
func (c *LazyImageCache) Load(fileName string) (*domain.Image, error) {
	img, err := c.store.ImageByFileName(fileName)
	if err != nil {
		return nil, err
	}
	if img != nil {
		return img, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	fetched, err := c.client.FetchImage(ctx, fileName)
	if err != nil {
		return nil, err
	}
	if err := c.store.SaveImage(*fetched); err != nil {
		// Serving the image matters more than caching it.
		slog.Warn("failed to cache image", "file_name", fileName, "error", err)
	}
	return fetched, nil
}

var _ ImageCache = (*LazyImageCache)(nil)
