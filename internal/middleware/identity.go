package middleware

// identity.go resolves who is calling for keying purposes (rate limit
// buckets).  Authenticated requests are keyed by user id; everything else
// falls back to "anon".

import (
    "strconv"

    "github.com/labstack/echo/v4"
)

// requestUserID returns the caller's user id as set by JWTAuth, or "anon".
func requestUserID(c echo.Context) string {
    switch v := c.Get(CtxUserID).(type) {
    case uint64:
        if v != 0 {
            return strconv.FormatUint(v, 10)
        }
    case string:
        if v != "" {
            return v
        }
    }
    return "anon"
}
