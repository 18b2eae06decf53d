package middleware

import (
    "context"
    "errors"
    "log"
    "math"
    "net/http"
    "path"
    "strconv"
    "time"

    "github.com/juju/clock"
    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"

    "github.com/iliyamo/museum-tour-access/internal/config"
)

var errUnexpectedReply = errors.New("unexpected bucket script reply")

// Allowance is the outcome of spending one token from a payment bucket.
type Allowance struct {
    Allowed    bool
    Remaining  int64
    RetryAfter time.Duration
}

// BucketStore spends a token from the bucket stored under key.
type BucketStore interface {
    Take(ctx context.Context, key string, now time.Time) (Allowance, error)
}

// takeScript refills the bucket for whole elapsed intervals, then spends one
// token.  It returns {allowed, tokens, retry_after_ms}.
var takeScript = redis.NewScript(`
local capacity, refill, interval_ms = tonumber(ARGV[2]), tonumber(ARGV[3]), tonumber(ARGV[4])
local now_ms = tonumber(ARGV[1])
local tokens = tonumber(redis.call('HGET', KEYS[1], 'tokens') or capacity)
local last = tonumber(redis.call('HGET', KEYS[1], 'last_ms') or now_ms)
local steps = math.floor(math.max(0, now_ms - last) / interval_ms)
if steps > 0 then
    tokens = math.min(capacity, tokens + steps * refill)
    last = last + steps * interval_ms
end
local allowed, retry = 0, 0
if tokens > 0 then
    allowed, tokens = 1, tokens - 1
else
    retry = math.max(0, interval_ms - (now_ms - last))
end
redis.call('HSET', KEYS[1], 'tokens', tokens, 'last_ms', last)
redis.call('EXPIRE', KEYS[1], ARGV[5])
return {allowed, tokens, retry}
`)

// RedisBuckets keeps payment buckets in Redis so every API instance spends
// from the same budget.
type RedisBuckets struct {
    rdb *redis.Client
    cfg config.RateLimitConfig
}

func NewRedisBuckets(cfg config.RateLimitConfig, rdb *redis.Client) *RedisBuckets {
    return &RedisBuckets{rdb: rdb, cfg: cfg}
}

func (b *RedisBuckets) Take(ctx context.Context, key string, now time.Time) (Allowance, error) {
    vals, err := takeScript.Run(ctx, b.rdb, []string{key},
        now.UnixMilli(), b.cfg.Capacity, b.cfg.RefillTokens,
        b.cfg.RefillInterval.Milliseconds(), int64(b.cfg.TTL/time.Second)).Int64Slice()
    if err != nil {
        return Allowance{}, err
    }
    if len(vals) != 3 {
        return Allowance{}, errUnexpectedReply
    }
    return Allowance{
        Allowed:    vals[0] == 1,
        Remaining:  vals[1],
        RetryAfter: time.Duration(vals[2]) * time.Millisecond,
    }, nil
}

// PaymentLimiter throttles charge and confirm attempts per signed-in user.
// Each user gets one bucket per payment action, so retrying a confirmation
// does not eat into the budget for new charges.
type PaymentLimiter struct {
    cfg   config.RateLimitConfig
    store BucketStore
    clock clock.Clock
}

func NewPaymentLimiter(cfg config.RateLimitConfig, store BucketStore, clk clock.Clock) *PaymentLimiter {
    return &PaymentLimiter{cfg: cfg, store: store, clock: clk}
}

// NewTokenBucket returns the Redis-backed payment limiter as middleware.  A
// nil client or a disabled config lets every request through.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client) echo.MiddlewareFunc {
    if !cfg.Enabled || rdb == nil {
        return passThrough
    }
    return NewPaymentLimiter(cfg, NewRedisBuckets(cfg, rdb), clock.WallClock).Middleware()
}

// bucketKey names the bucket for the caller and the payment action, e.g.
// "rl:payment:42:charges".  It must run after JWTAuth.
func (l *PaymentLimiter) bucketKey(c echo.Context) string {
    return l.cfg.Prefix + ":" + requestUserID(c) + ":" + path.Base(c.Path())
}

// Middleware rejects the request with 429 once the bucket is empty.  Store
// errors let the request through.
func (l *PaymentLimiter) Middleware() echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            key := l.bucketKey(c)
            a, err := l.store.Take(c.Request().Context(), key, l.clock.Now())
            if err != nil {
                log.Printf("[ratelimit] bucket %s: %v", key, err)
                return next(c)
            }

            h := c.Response().Header()
            h.Set("X-RateLimit-Limit", strconv.Itoa(l.cfg.Capacity))
            h.Set("X-RateLimit-Remaining", strconv.FormatInt(a.Remaining, 10))
            if a.Allowed {
                return next(c)
            }
            secs := int(math.Ceil(a.RetryAfter.Seconds()))
            h.Set("Retry-After", strconv.Itoa(secs))
            return c.JSON(http.StatusTooManyRequests, echo.Map{
                "error":       "too many payment attempts, retry later",
                "retry_after": secs,
            })
        }
    }
}

func passThrough(next echo.HandlerFunc) echo.HandlerFunc { return next }
