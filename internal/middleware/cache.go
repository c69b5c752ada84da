package middleware

import (
	"bytes"
	"context"
	"crypto/sha1"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/ekurt/tour-operator-core/internal/config"
)

// bodyCapture tees the response body so a successful response can be
// stored after it has been sent to the client.
type bodyCapture struct {
	http.ResponseWriter
	status int
	buf    bytes.Buffer
	size   int64
	limit  int64
}

func (w *bodyCapture) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *bodyCapture) Write(b []byte) (int, error) {
	if w.limit <= 0 || w.size+int64(len(b)) <= w.limit {
		w.buf.Write(b)
	}
	w.size += int64(len(b))
	return w.ResponseWriter.Write(b)
}

// NewResponseCache caches successful GET responses in Redis.  The cache
// key includes the organization from the token, so one tenant can never
// be served another tenant's listing.  Everything served by this API is
// JSON, so only the status and body are stored; the content type is fixed
// on replay.
func NewResponseCache(cfg config.CacheConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc {
			return func(c echo.Context) error { return next(c) }
		}
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().Method != http.MethodGet {
				return next(c)
			}
			key := cacheKey(cfg.Prefix, c)
			ctx := c.Request().Context()

			if cached, err := rdb.Get(ctx, key).Bytes(); err == nil && len(cached) > 3 {
				status, _ := strconv.Atoi(string(cached[:3]))
				c.Response().Header().Set("X-Cache", "HIT")
				return c.JSONBlob(status, cached[3:])
			}

			capture := &bodyCapture{
				ResponseWriter: c.Response().Writer,
				status:         http.StatusOK,
				limit:          int64(cfg.MaxBodyBytes),
			}
			c.Response().Writer = capture
			c.Response().Header().Set("X-Cache", "MISS")

			if err := next(c); err != nil {
				return err
			}
			if capture.status == http.StatusOK && (capture.limit <= 0 || capture.size <= capture.limit) {
				payload := append([]byte(fmt.Sprintf("%03d", capture.status)), capture.buf.Bytes()...)
				// request context may already be done when the response went out
				_ = rdb.SetEx(context.Background(), key, payload, cfg.TTL).Err()
			}
			return nil
		}
	}
}

// cacheKey hashes route and query under the organization so invalidation
// by TTL is per tenant.
func cacheKey(prefix string, c echo.Context) string {
	org := "anon"
	if v, err := contextString(c, "org_id"); err == nil {
		org = v
	}
	sum := sha1.Sum([]byte(c.Path() + "?" + c.Request().URL.RawQuery))
	return fmt.Sprintf("%s:org:%s:%x", prefix, org, sum[:])
}

func contextString(c echo.Context, key string) (string, error) {
	switch v := c.Get(key).(type) {
	case string:
		return v, nil
	case uint64:
		return strconv.FormatUint(v, 10), nil
	case int:
		return strconv.Itoa(v), nil
	}
	return "", fmt.Errorf("missing %s in context", key)
}
