package services

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"overlaycam/internal/core/domain"
	"overlaycam/internal/core/ports"

	"go.uber.org/zap"
)

// ErrOverlaySuperseded is delivered to a pending selection when a newer
// selection was made before it finished loading.
var ErrOverlaySuperseded = errors.New("overlay selection superseded")

// OverlayAsset resolves overlay keys to bitmaps. Only the most recent
// selection can become the drawable bitmap.
type OverlayAsset struct {
	catalog domain.OverlayCatalog
	loader  ports.ImageLoader
	logger  *zap.SugaredLogger

	mu         sync.RWMutex
	generation uint64
	key        string
	bitmap     image.Image
}

func NewOverlayAsset(catalog domain.OverlayCatalog, loader ports.ImageLoader, logger *zap.SugaredLogger) *OverlayAsset {
	if catalog == nil {
		catalog = domain.DefaultOverlayCatalog()
	}
	return &OverlayAsset{
		catalog: catalog,
		loader:  loader,
		logger:  logger,
	}
}

// Select starts loading the image for key and returns a channel that receives
// the outcome once. Unknown keys fail immediately and leave the current
// selection untouched.
func (a *OverlayAsset) Select(ctx context.Context, key string) <-chan error {
	done := make(chan error, 1)

	uri, ok := a.catalog.Resolve(key)
	if !ok {
		done <- fmt.Errorf("%w: %q", domain.ErrUnknownOverlay, key)
		close(done)
		return done
	}

	a.mu.Lock()
	a.generation++
	gen := a.generation
	a.key = key
	a.bitmap = nil
	a.mu.Unlock()

	go func() {
		defer close(done)

		img, err := a.loader.Load(ctx, uri)

		a.mu.Lock()
		defer a.mu.Unlock()
		if gen != a.generation {
			a.logger.Debugw("discarding superseded overlay load", "key", key)
			done <- ErrOverlaySuperseded
			return
		}
		if err != nil {
			a.logger.Warnw("overlay load failed", "key", key, "uri", uri, "error", err)
			done <- fmt.Errorf("load overlay %q: %w", key, err)
			return
		}
		a.bitmap = img
		a.logger.Debugw("overlay loaded", "key", key, "bounds", img.Bounds().String())
		done <- nil
	}()

	return done
}

func (a *OverlayAsset) IsReady() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.bitmap != nil
}

// Bitmap returns the loaded image of the current selection.
func (a *OverlayAsset) Bitmap() (image.Image, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.bitmap, a.bitmap != nil
}

func (a *OverlayAsset) Key() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.key
}

func (a *OverlayAsset) Catalog() domain.OverlayCatalog {
	return a.catalog
}
