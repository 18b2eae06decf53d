package middleware

import (
    "context"
    "errors"
    "net/http"
    "net/http/httptest"
    "strconv"
    "strings"
    "testing"
    "time"

    "github.com/juju/clock/testclock"
    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"

    "github.com/iliyamo/museum-tour-access/internal/config"
    "github.com/iliyamo/museum-tour-access/internal/utils"
)

const secret = "test-secret"

func protected(roles ...string) *echo.Echo {
    e := echo.New()
    e.GET("/v1/me", func(c echo.Context) error {
        return c.JSON(http.StatusOK, echo.Map{"user_id": c.Get(CtxUserID), "role": c.Get(CtxRole)})
    }, JWTAuth(secret), RequireRole(roles...))
    return e
}

func bearer(t *testing.T, userID uint64, role string) string {
    t.Helper()
    tok, err := utils.NewAccessToken(secret, userID, role, 5, time.Now())
    if err != nil {
        t.Fatalf("token: %v", err)
    }
    return "Bearer " + tok.Token
}

func TestJWTAuthAndRole(t *testing.T) {
    e := protected("CUSTOMER", "ADMIN")
    cases := []struct {
        name   string
        header string
        want   int
    }{
        {"no header", "", http.StatusUnauthorized},
        {"not bearer", "Basic abc", http.StatusUnauthorized},
        {"bad token", "Bearer nope", http.StatusUnauthorized},
        {"customer", bearer(t, 5, "CUSTOMER"), http.StatusOK},
        {"admin", bearer(t, 6, "ADMIN"), http.StatusOK},
        {"unknown role", bearer(t, 7, "OWNER"), http.StatusForbidden},
    }
    for _, tc := range cases {
        t.Run(tc.name, func(t *testing.T) {
            req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
            if tc.header != "" {
                req.Header.Set("Authorization", tc.header)
            }
            rec := httptest.NewRecorder()
            e.ServeHTTP(rec, req)
            if rec.Code != tc.want {
                t.Fatalf("status = %d, want %d (%s)", rec.Code, tc.want, rec.Body.String())
            }
        })
    }
}

func TestCacheable(t *testing.T) {
    cfg := config.CacheConfig{
        Methods: map[string]bool{http.MethodGet: true},
        Paths:   []string{"/v1/museums", "/v1/bundles"},
    }
    cases := []struct {
        method, path, auth string
        want               bool
    }{
        {http.MethodGet, "/v1/museums", "", true},
        {http.MethodGet, "/v1/museums/3", "", true},
        {http.MethodGet, "/v1/museumsX", "", false},
        {http.MethodGet, "/v1/museums/3/access", "Bearer x", false},
        {http.MethodPost, "/v1/bundles", "", false},
        {http.MethodGet, "/v1/me/museums", "", false},
    }
    for _, tc := range cases {
        req := httptest.NewRequest(tc.method, tc.path, nil)
        if tc.auth != "" {
            req.Header.Set("Authorization", tc.auth)
        }
        if got := cacheable(cfg, req); got != tc.want {
            t.Errorf("cacheable(%s %s auth=%q) = %v, want %v", tc.method, tc.path, tc.auth, got, tc.want)
        }
    }
}

type memCache struct {
    data map[string][]byte
    sets int
}

func newMemCache() *memCache { return &memCache{data: map[string][]byte{}} }

func (m *memCache) Get(_ context.Context, key string) ([]byte, error) {
    v, ok := m.data[key]
    if !ok {
        return nil, redis.Nil
    }
    return v, nil
}

func (m *memCache) Set(_ context.Context, key string, val []byte, _ time.Duration) error {
    m.sets++
    m.data[key] = val
    return nil
}

func (m *memCache) Incr(_ context.Context, key string) error {
    n, _ := strconv.Atoi(string(m.data[key]))
    m.data[key] = []byte(strconv.Itoa(n + 1))
    return nil
}

func catalogServer(cache *CatalogCache, hits *int) *echo.Echo {
    e := echo.New()
    list := func(name string) echo.HandlerFunc {
        return func(c echo.Context) error {
            *hits++
            return c.JSON(http.StatusOK, echo.Map{"items": []string{name}, "n": *hits})
        }
    }
    e.GET("/v1/museums", list("louvre"), cache.Middleware())
    e.GET("/v1/bundles", list("paris"), cache.Middleware())
    e.GET("/v1/museums/:id", func(c echo.Context) error {
        return c.JSON(http.StatusNotFound, echo.Map{"error": "museum not found"})
    }, cache.Middleware())
    return e
}

func get(e *echo.Echo, target string) *httptest.ResponseRecorder {
    rec := httptest.NewRecorder()
    e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
    return rec
}

func testCacheConfig() config.CacheConfig {
    return config.CacheConfig{
        Enabled: true,
        Methods: map[string]bool{http.MethodGet: true},
        Paths:   []string{"/v1/museums", "/v1/bundles"},
        TTL:     time.Minute,
        Prefix:  "catalog-cache",
    }
}

func TestCatalogCacheServesRepeatReads(t *testing.T) {
    hits := 0
    e := catalogServer(newCatalogCache(testCacheConfig(), newMemCache()), &hits)

    first := get(e, "/v1/museums")
    second := get(e, "/v1/museums")
    if hits != 1 {
        t.Fatalf("handler ran %d times, want 1", hits)
    }
    if first.Header().Get("X-Cache") != "MISS" || second.Header().Get("X-Cache") != "HIT" {
        t.Fatalf("x-cache = %q then %q", first.Header().Get("X-Cache"), second.Header().Get("X-Cache"))
    }
    if second.Body.String() != first.Body.String() {
        t.Fatalf("cached body %q differs from %q", second.Body.String(), first.Body.String())
    }
    if !strings.HasPrefix(second.Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
        t.Fatalf("content type = %q", second.Header().Get(echo.HeaderContentType))
    }
    get(e, "/v1/museums?page=2")
    if hits != 2 {
        t.Fatalf("query variant served from cache")
    }
}

func TestCatalogCacheSkipsErrorsAndLargeBodies(t *testing.T) {
    store := newMemCache()
    hits := 0
    e := catalogServer(newCatalogCache(testCacheConfig(), store), &hits)
    get(e, "/v1/museums/9")
    if store.sets != 0 {
        t.Fatalf("404 was cached")
    }

    cfg := testCacheConfig()
    cfg.MaxBodyBytes = 4
    e = catalogServer(newCatalogCache(cfg, store), &hits)
    get(e, "/v1/museums")
    if store.sets != 0 {
        t.Fatalf("oversized body was cached")
    }
}

func TestCatalogCacheInvalidatesPerResource(t *testing.T) {
    hits := 0
    cache := newCatalogCache(testCacheConfig(), newMemCache())
    e := catalogServer(cache, &hits)

    get(e, "/v1/museums")
    get(e, "/v1/bundles")
    if err := cache.Invalidate(context.Background(), ResourceMuseums); err != nil {
        t.Fatalf("invalidate: %v", err)
    }
    if rec := get(e, "/v1/museums"); rec.Header().Get("X-Cache") != "MISS" {
        t.Fatalf("museums still cached after invalidation")
    }
    if rec := get(e, "/v1/bundles"); rec.Header().Get("X-Cache") != "HIT" {
        t.Fatalf("bundles dropped by museum invalidation")
    }
    if hits != 3 {
        t.Fatalf("handler ran %d times, want 3", hits)
    }
}

func TestResourceOf(t *testing.T) {
    cases := map[string]string{
        "/v1/museums":           ResourceMuseums,
        "/v1/museums/3":         ResourceMuseums,
        "/v1/analytics/museums": ResourceMuseums,
        "/v1/bundles/2":         ResourceBundles,
        "/v1/me":                "",
    }
    for p, want := range cases {
        if got := resourceOf(p); got != want {
            t.Errorf("resourceOf(%q) = %q, want %q", p, got, want)
        }
    }
}

type fakeBuckets struct {
    keys  []string
    grant Allowance
    err   error
}

func (f *fakeBuckets) Take(_ context.Context, key string, _ time.Time) (Allowance, error) {
    f.keys = append(f.keys, key)
    return f.grant, f.err
}

func limitedServer(store BucketStore) *echo.Echo {
    l := NewPaymentLimiter(config.RateLimitConfig{Capacity: 3, Prefix: "rl:payment"}, store,
        testclock.NewClock(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)))
    e := echo.New()
    ok := func(c echo.Context) error { return c.NoContent(http.StatusCreated) }
    g := e.Group("/v1", JWTAuth(secret))
    g.POST("/payment/charges", ok, l.Middleware())
    g.POST("/payment/confirm", ok, l.Middleware())
    return e
}

func post(e *echo.Echo, target, auth string) *httptest.ResponseRecorder {
    req := httptest.NewRequest(http.MethodPost, target, nil)
    req.Header.Set("Authorization", auth)
    rec := httptest.NewRecorder()
    e.ServeHTTP(rec, req)
    return rec
}

func TestPaymentLimiterKeysOnUserAndAction(t *testing.T) {
    store := &fakeBuckets{grant: Allowance{Allowed: true, Remaining: 2}}
    e := limitedServer(store)

    post(e, "/v1/payment/charges", bearer(t, 9, "CUSTOMER"))
    post(e, "/v1/payment/confirm", bearer(t, 9, "CUSTOMER"))
    rec := post(e, "/v1/payment/charges", bearer(t, 4, "CUSTOMER"))

    want := []string{"rl:payment:9:charges", "rl:payment:9:confirm", "rl:payment:4:charges"}
    if strings.Join(store.keys, " ") != strings.Join(want, " ") {
        t.Fatalf("keys = %v, want %v", store.keys, want)
    }
    if rec.Code != http.StatusCreated || rec.Header().Get("X-RateLimit-Limit") != "3" || rec.Header().Get("X-RateLimit-Remaining") != "2" {
        t.Fatalf("status=%d headers=%v", rec.Code, rec.Header())
    }
}

func TestPaymentLimiterRejectsEmptyBucket(t *testing.T) {
    store := &fakeBuckets{grant: Allowance{RetryAfter: 1500 * time.Millisecond}}
    rec := post(limitedServer(store), "/v1/payment/charges", bearer(t, 9, "CUSTOMER"))
    if rec.Code != http.StatusTooManyRequests {
        t.Fatalf("status = %d, want 429", rec.Code)
    }
    if got := rec.Header().Get("Retry-After"); got != "2" {
        t.Fatalf("Retry-After = %q, want 2", got)
    }
}

func TestPaymentLimiterFailsOpen(t *testing.T) {
    store := &fakeBuckets{err: errors.New("redis down")}
    if rec := post(limitedServer(store), "/v1/payment/charges", bearer(t, 9, "CUSTOMER")); rec.Code != http.StatusCreated {
        t.Fatalf("status = %d, want request through", rec.Code)
    }
}

func TestDisabledMiddlewaresPassThrough(t *testing.T) {
    e := echo.New()
    e.GET("/v1/museums", func(c echo.Context) error { return c.String(http.StatusOK, "ok") },
        NewCatalogCache(config.CacheConfig{Enabled: true}, nil).Middleware(),
        NewTokenBucket(config.RateLimitConfig{Enabled: true}, nil))
    rec := get(e, "/v1/museums")
    if rec.Code != http.StatusOK || rec.Header().Get("X-Cache") != "" {
        t.Fatalf("status=%d x-cache=%q", rec.Code, rec.Header().Get("X-Cache"))
    }
    if err := NewCatalogCache(config.CacheConfig{}, nil).Invalidate(context.Background(), ResourceMuseums); err != nil {
        t.Fatalf("disabled invalidate: %v", err)
    }
}
