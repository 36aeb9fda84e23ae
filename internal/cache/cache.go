// internal/cache/cache.go
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "book-availability/internal/common/errors"
	"book-availability/internal/common/logger"
	"book-availability/internal/common/metrics"
	"book-availability/internal/models"
)

const (
	SearchResultTTL = 5 * time.Minute
	LibraryListTTL  = 24 * time.Hour
	BookInfoTTL     = 7 * 24 * time.Hour

	SearchPrefix = "search:"
	BookPrefix   = "book:"
	LibrariesKey = "libraries"

	deleteBatch = 100
)

// TTLs holds the expiry per tier. Zero values fall back to the package defaults.
type TTLs struct {
	Search    time.Duration
	Libraries time.Duration
	Book      time.Duration
}

func (t TTLs) withDefaults() TTLs {
	if t.Search <= 0 {
		t.Search = SearchResultTTL
	}
	if t.Libraries <= 0 {
		t.Libraries = LibraryListTTL
	}
	if t.Book <= 0 {
		t.Book = BookInfoTTL
	}
	return t
}

// Cache is a best-effort JSON store over Redis. No method ever returns a backend
// error to the caller: reads degrade to misses, writes are logged and dropped.
type Cache struct {
	rdb    redis.UniversalClient
	ttl    TTLs
	logger logger.Logger
}

func New(rdb redis.UniversalClient, ttl TTLs, log logger.Logger) *Cache {
	return &Cache{
		rdb:    rdb,
		ttl:    ttl.withDefaults(),
		logger: log.WithFields(map[string]interface{}{"component": "cache"}),
	}
}

// SearchKey builds "search:<title>:<author>:<publisher>" with empty fields kept.
// Backslashes and colons inside a field are escaped so distinct queries never
// share a key.
func SearchKey(q models.SearchQuery) string {
	return SearchPrefix + keyEscaper.Replace(q.Title) + ":" + keyEscaper.Replace(q.Author) + ":" + keyEscaper.Replace(q.Publisher)
}

var keyEscaper = strings.NewReplacer(`\`, `\\`, ":", `\:`)

func BookKey(isbn string) string {
	return BookPrefix + isbn
}

func tier(key string) string {
	switch {
	case strings.HasPrefix(key, SearchPrefix):
		return "search"
	case strings.HasPrefix(key, BookPrefix):
		return "book"
	case key == LibrariesKey:
		return "libraries"
	default:
		return "other"
	}
}

// Get decodes the value at key into dst. It reports false on a miss, a backend
// error or an undecodable value.
func (c *Cache) Get(ctx context.Context, key string, dst interface{}) bool {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.CacheRequests.WithLabelValues(tier(key), "miss").Inc()
		return false
	}
	if err != nil {
		metrics.CacheRequests.WithLabelValues(tier(key), "error").Inc()
		c.logger.Warn("cache read failed", map[string]interface{}{
			"key":       key,
			"errorCode": apperrors.ErrCodeCacheBackendError,
			"error":     err.Error(),
		})
		return false
	}

	if err := json.Unmarshal(raw, dst); err != nil {
		metrics.CacheRequests.WithLabelValues(tier(key), "miss").Inc()
		c.logger.Warn("discarding corrupt cache entry", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
		return false
	}

	metrics.CacheRequests.WithLabelValues(tier(key), "hit").Inc()
	return true
}

// Set stores value as JSON with the given expiry.
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Error("cache value not serializable", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
		return
	}
	if err := c.rdb.Set(ctx, key, data, ttl).Err(); err != nil {
		c.logger.Warn("cache write failed", map[string]interface{}{
			"key":       key,
			"errorCode": apperrors.ErrCodeCacheBackendError,
			"error":     err.Error(),
		})
	}
}

func (c *Cache) Delete(ctx context.Context, key string) {
	if err := c.rdb.Del(ctx, key).Err(); err != nil {
		c.logger.Warn("cache delete failed", map[string]interface{}{
			"key":       key,
			"errorCode": apperrors.ErrCodeCacheBackendError,
			"error":     err.Error(),
		})
	}
}

// DeleteByPrefix removes every key starting with prefix and returns how many
// were deleted. Keys are found with SCAN so the server is never blocked.
func (c *Cache) DeleteByPrefix(ctx context.Context, prefix string) int {
	var (
		cursor  uint64
		deleted int
		batch   = make([]string, 0, deleteBatch)
	)

	flush := func() bool {
		if len(batch) == 0 {
			return true
		}
		n, err := c.rdb.Del(ctx, batch...).Result()
		if err != nil {
			c.logger.Warn("cache prefix delete failed", map[string]interface{}{
				"prefix":    prefix,
				"errorCode": apperrors.ErrCodeCacheBackendError,
				"error":     err.Error(),
			})
			return false
		}
		deleted += int(n)
		batch = batch[:0]
		return true
	}

	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, prefix+"*", deleteBatch).Result()
		if err != nil {
			c.logger.Warn("cache scan failed", map[string]interface{}{
				"prefix":    prefix,
				"errorCode": apperrors.ErrCodeCacheBackendError,
				"error":     err.Error(),
			})
			return deleted
		}
		for _, k := range keys {
			batch = append(batch, k)
			if len(batch) == deleteBatch && !flush() {
				return deleted
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	flush()

	c.logger.Info("cache prefix purged", map[string]interface{}{"prefix": prefix, "deleted": deleted})
	return deleted
}

// ==========================
// Typed tiers
// ==========================

func (c *Cache) GetSearch(ctx context.Context, q models.SearchQuery) (*models.AggregatedResult, bool) {
	var res models.AggregatedResult
	if !c.Get(ctx, SearchKey(q), &res) {
		return nil, false
	}
	return &res, true
}

func (c *Cache) SetSearch(ctx context.Context, q models.SearchQuery, res *models.AggregatedResult) {
	c.Set(ctx, SearchKey(q), res, c.ttl.Search)
}

// GetLibraries decodes the cached registry listing into dst.
func (c *Cache) GetLibraries(ctx context.Context, dst interface{}) bool {
	return c.Get(ctx, LibrariesKey, dst)
}

func (c *Cache) SetLibraries(ctx context.Context, listing interface{}) {
	c.Set(ctx, LibrariesKey, listing, c.ttl.Libraries)
}

func (c *Cache) GetBook(ctx context.Context, isbn string) (*models.BookRecord, bool) {
	var book models.BookRecord
	if !c.Get(ctx, BookKey(isbn), &book) {
		return nil, false
	}
	return &book, true
}

// SetBook is a no-op for records without an ISBN.
func (c *Cache) SetBook(ctx context.Context, book models.BookRecord) {
	if book.ISBN == "" {
		return
	}
	c.Set(ctx, BookKey(book.ISBN), book, c.ttl.Book)
}
