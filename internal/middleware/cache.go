package middleware

import (
    "bytes"
    "context"
    "crypto/sha1"
    "encoding/json"
    "errors"
    "fmt"
    "log"
    "net/http"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"

    "github.com/iliyamo/museum-tour-access/internal/config"
)

// Catalog resources with their own cache generation.
const (
    ResourceMuseums = "museums"
    ResourceBundles = "bundles"
)

// CacheStore is the part of Redis the catalog cache uses.  Get reports a
// missing key with redis.Nil.
type CacheStore interface {
    Get(ctx context.Context, key string) ([]byte, error)
    Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
    Incr(ctx context.Context, key string) error
}

type redisCacheStore struct{ rdb *redis.Client }

func (s redisCacheStore) Get(ctx context.Context, key string) ([]byte, error) {
    return s.rdb.Get(ctx, key).Bytes()
}

func (s redisCacheStore) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
    return s.rdb.Set(ctx, key, val, ttl).Err()
}

func (s redisCacheStore) Incr(ctx context.Context, key string) error {
    return s.rdb.Incr(ctx, key).Err()
}

// CatalogCache caches public catalog responses in Redis.  Entries are keyed
// by resource and by that resource's generation counter; Invalidate bumps
// the counter so admin writes are visible on the next read while stale
// entries age out on their TTL.
type CatalogCache struct {
    cfg   config.CacheConfig
    store CacheStore
}

// NewCatalogCache returns a cache backed by rdb.  A nil client or a
// disabled config yields a cache that never stores anything.
func NewCatalogCache(cfg config.CacheConfig, rdb *redis.Client) *CatalogCache {
    if !cfg.Enabled || rdb == nil {
        return &CatalogCache{cfg: cfg}
    }
    return newCatalogCache(cfg, redisCacheStore{rdb: rdb})
}

func newCatalogCache(cfg config.CacheConfig, store CacheStore) *CatalogCache {
    if cfg.TTL <= 0 {
        cfg.TTL = 5 * time.Minute
    }
    return &CatalogCache{cfg: cfg, store: store}
}

type cachedResponse struct {
    Status      int    `json:"status"`
    ContentType string `json:"content_type"`
    Body        []byte `json:"body"`
}

// captureWriter copies the body while forwarding it to the client.
type captureWriter struct {
    http.ResponseWriter
    status int
    buf    bytes.Buffer
}

func (cw *captureWriter) WriteHeader(code int) { cw.status = code; cw.ResponseWriter.WriteHeader(code) }
func (cw *captureWriter) Write(b []byte) (int, error) {
    cw.buf.Write(b)
    return cw.ResponseWriter.Write(b)
}

// resourceOf maps a request path to the catalog resource it reads, or "".
// /v1/analytics/museums counts purchases per museum and shares the museum
// generation.
func resourceOf(p string) string {
    for _, seg := range strings.Split(p, "/") {
        if seg == ResourceMuseums || seg == ResourceBundles {
            return seg
        }
    }
    return ""
}

func (cc *CatalogCache) genKey(resource string) string {
    return cc.cfg.Prefix + ":gen:" + resource
}

func (cc *CatalogCache) entryKey(resource, gen string, r *http.Request) string {
    sum := sha1.Sum([]byte(r.URL.Path + "?" + r.URL.RawQuery))
    return fmt.Sprintf("%s:%s:g%s:%x", cc.cfg.Prefix, resource, gen, sum[:])
}

// generation returns the current counter for resource, "0" before the
// first invalidation.
func (cc *CatalogCache) generation(ctx context.Context, resource string) (string, error) {
    bs, err := cc.store.Get(ctx, cc.genKey(resource))
    if errors.Is(err, redis.Nil) {
        return "0", nil
    }
    return string(bs), err
}

// cacheable reports whether a request may be served from the shared cache:
// an allowed method, a configured catalog path prefix and no credentials.
func cacheable(cfg config.CacheConfig, r *http.Request) bool {
    if !cfg.Methods[strings.ToUpper(r.Method)] {
        return false
    }
    if r.Header.Get("Authorization") != "" {
        return false
    }
    for _, p := range cfg.Paths {
        if r.URL.Path == p || strings.HasPrefix(r.URL.Path, strings.TrimSuffix(p, "/")+"/") {
            return true
        }
    }
    return false
}

// Middleware serves cached catalog reads and stores successful misses.
// Responses larger than MaxBodyBytes are passed through uncached.
func (cc *CatalogCache) Middleware() echo.MiddlewareFunc {
    if cc.store == nil {
        return passThrough
    }
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            r := c.Request()
            resource := resourceOf(r.URL.Path)
            if resource == "" || !cacheable(cc.cfg, r) {
                return next(c)
            }
            ctx := r.Context()
            gen, err := cc.generation(ctx, resource)
            if err != nil {
                log.Printf("[cache] generation %s: %v", resource, err)
                return next(c)
            }
            key := cc.entryKey(resource, gen, r)

            if bs, err := cc.store.Get(ctx, key); err == nil {
                var hit cachedResponse
                if json.Unmarshal(bs, &hit) == nil {
                    c.Response().Header().Set("X-Cache", "HIT")
                    return c.Blob(hit.Status, hit.ContentType, hit.Body)
                }
            }

            cw := &captureWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK}
            c.Response().Writer = cw
            c.Response().Header().Set("X-Cache", "MISS")
            if err := next(c); err != nil {
                return err
            }
            if cw.status != http.StatusOK {
                return nil
            }
            if limit := cc.cfg.MaxBodyBytes; limit > 0 && cw.buf.Len() > limit {
                return nil
            }
            payload, err := json.Marshal(cachedResponse{
                Status:      cw.status,
                ContentType: c.Response().Header().Get(echo.HeaderContentType),
                Body:        cw.buf.Bytes(),
            })
            if err == nil {
                if err := cc.store.Set(ctx, key, payload, cc.cfg.TTL); err != nil {
                    log.Printf("[cache] store %s: %v", key, err)
                }
            }
            return nil
        }
    }
}

// Invalidate starts a new generation for each resource.  It is a no-op on
// a disabled cache.
func (cc *CatalogCache) Invalidate(ctx context.Context, resources ...string) error {
    if cc.store == nil {
        return nil
    }
    for _, res := range resources {
        if err := cc.store.Incr(ctx, cc.genKey(res)); err != nil {
            return fmt.Errorf("invalidate %s: %w", res, err)
        }
    }
    return nil
}
