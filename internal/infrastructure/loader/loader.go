// Package loader resolves overlay URIs to decoded bitmaps.
package loader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"overlaycam/internal/core/ports"
	"overlaycam/pkg/cache"
	"overlaycam/pkg/circuitbreaker"
	"overlaycam/pkg/retry"

	"go.uber.org/zap"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

const DefaultMaxImageBytes = 16 << 20

var ErrImageTooLarge = errors.New("image exceeds size limit")

// FileLoader reads overlays from a base directory. URIs are relative paths;
// anything that escapes the base directory is rejected.
type FileLoader struct {
	baseDir  string
	maxBytes int64
	logger   *zap.SugaredLogger
}

func NewFileLoader(baseDir string, logger *zap.SugaredLogger) *FileLoader {
	return &FileLoader{baseDir: baseDir, maxBytes: DefaultMaxImageBytes, logger: logger}
}

func (l *FileLoader) Load(ctx context.Context, uri string) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := l.resolve(uri)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open overlay %s: %w", uri, err)
	}
	defer f.Close()

	img, err := decode(f, l.maxBytes)
	if err != nil {
		return nil, fmt.Errorf("decode overlay %s: %w", uri, err)
	}
	l.logger.Debugw("overlay loaded", "uri", uri, "bounds", img.Bounds().String())
	return img, nil
}

func (l *FileLoader) resolve(uri string) (string, error) {
	rel := filepath.FromSlash(strings.TrimPrefix(uri, "file://"))
	if !filepath.IsLocal(rel) {
		return "", fmt.Errorf("overlay path %q escapes base directory", uri)
	}
	return filepath.Join(l.baseDir, rel), nil
}

// HTTPLoader fetches overlays over http(s). Transient failures are retried
// with backoff and a run of them trips a breaker shared by all fetches.
type HTTPLoader struct {
	client   *http.Client
	maxBytes int64
	retry    retry.Config
	breaker  *circuitbreaker.CircuitBreaker
	logger   *zap.SugaredLogger
}

func NewHTTPLoader(timeout time.Duration, logger *zap.SugaredLogger) *HTTPLoader {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	breaker := circuitbreaker.New(circuitbreaker.Config{
		FailureThreshold:    5,
		SuccessThreshold:    1,
		Timeout:             30 * time.Second,
		MaxRequestsHalfOpen: 1,
		IsFailure:           func(err error) bool { return !retry.IsPermanent(err) },
	})
	breaker.OnStateChange(func(from, to circuitbreaker.State) {
		logger.Warnw("overlay fetch breaker changed state", "from", from.String(), "to", to.String())
	})
	return &HTTPLoader{
		client:   &http.Client{Timeout: timeout},
		maxBytes: DefaultMaxImageBytes,
		retry: retry.Config{
			MaxAttempts:  3,
			InitialDelay: 200 * time.Millisecond,
			MaxDelay:     2 * time.Second,
			Multiplier:   2,
			Jitter:       true,
		},
		breaker: breaker,
		logger:  logger,
	}
}

func (l *HTTPLoader) Load(ctx context.Context, uri string) (image.Image, error) {
	img, err := retry.DoWithResult(ctx, l.retry, func(ctx context.Context) (image.Image, error) {
		var img image.Image
		err := l.breaker.Execute(ctx, func(ctx context.Context) error {
			var err error
			img, err = l.fetch(ctx, uri)
			return err
		})
		if errors.Is(err, circuitbreaker.ErrOpen) {
			return nil, retry.Permanent(fmt.Errorf("fetch overlay %s: %w", uri, err))
		}
		return img, err
	})
	if err != nil {
		return nil, err
	}
	l.logger.Debugw("overlay fetched", "uri", uri, "bounds", img.Bounds().String())
	return img, nil
}

// fetch makes one attempt. Errors that another attempt cannot fix are
// marked permanent.
func (l *HTTPLoader) fetch(ctx context.Context, uri string) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("build overlay request: %w", err))
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch overlay %s: %w", uri, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("fetch overlay %s: unexpected status %d", uri, resp.StatusCode)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, retry.Permanent(err)
		}
		return nil, err
	}

	img, err := decode(resp.Body, l.maxBytes)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("decode overlay %s: %w", uri, err))
	}
	return img, nil
}

// SchemeLoader dispatches on the URI scheme: http and https go to the HTTP
// loader, everything else to the file loader.
type SchemeLoader struct {
	File *FileLoader
	HTTP *HTTPLoader
}

func (l *SchemeLoader) Load(ctx context.Context, uri string) (image.Image, error) {
	if strings.HasPrefix(uri, "http://") || strings.HasPrefix(uri, "https://") {
		if l.HTTP == nil {
			return nil, fmt.Errorf("no http loader configured for %s", uri)
		}
		return l.HTTP.Load(ctx, uri)
	}
	if l.File == nil {
		return nil, fmt.Errorf("no file loader configured for %s", uri)
	}
	return l.File.Load(ctx, uri)
}

func decode(r io.Reader, maxBytes int64) (image.Image, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, ErrImageTooLarge
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	return img, err
}

// CachingLoader keeps decoded overlays so switching back to an overlay does
// not fetch and decode it again.
type CachingLoader struct {
	next  ports.ImageLoader
	cache *cache.Cache[string, image.Image]
}

var _ ports.ImageLoader = (*CachingLoader)(nil)

func NewCachingLoader(next ports.ImageLoader, ttl time.Duration, maxEntries int) *CachingLoader {
	return &CachingLoader{
		next:  next,
		cache: cache.New[string, image.Image](ttl, maxEntries),
	}
}

func (l *CachingLoader) Load(ctx context.Context, uri string) (image.Image, error) {
	return l.cache.GetOrLoad(ctx, uri, func(ctx context.Context) (image.Image, error) {
		return l.next.Load(ctx, uri)
	})
}

// Forget drops a cached overlay.
func (l *CachingLoader) Forget(uri string) {
	l.cache.Delete(uri)
}

func (l *CachingLoader) Stats() cache.Stats {
	return l.cache.Stats()
}
