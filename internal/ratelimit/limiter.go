// internal/ratelimit/limiter.go
package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	apperrors "book-availability/internal/common/errors"
	"book-availability/internal/common/logger"
	"book-availability/internal/common/metrics"
	"book-availability/internal/models"
)

const (
	DefaultLimit  = 10
	DefaultWindow = time.Minute
	DefaultPrefix = "ratelimit:ip"

	Anonymous = "anonymous"
)

// slidingWindow trims the log to the window, admits the request when there is
// room and reports when the oldest entry leaves the window.
// KEYS[1] log key; ARGV: now ms, window ms, limit, member.
// Returns {allowed, remaining, resetAtMs}.
var slidingWindow = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)

local allowed = 0
if count < limit then
  redis.call('ZADD', key, now, ARGV[4])
  count = count + 1
  allowed = 1
end

local reset = now + window
local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
if oldest[2] then
  reset = tonumber(oldest[2]) + window
end

redis.call('PEXPIRE', key, window)
return {allowed, limit - count, reset}
`)

type Config struct {
	Limit  int
	Window time.Duration
	Prefix string
}

// Limiter is a per-identifier sliding-window log kept in a Redis sorted set.
type Limiter struct {
	rdb    redis.Scripter
	config Config
	logger logger.Logger
	now    func() time.Time
}

func NewLimiter(rdb redis.Scripter, cfg Config, log logger.Logger) *Limiter {
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultLimit
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}
	return &Limiter{
		rdb:    rdb,
		config: cfg,
		logger: log.WithFields(map[string]interface{}{"component": "ratelimit"}),
		now:    time.Now,
	}
}

func (l *Limiter) Key(identifier string) string {
	return l.config.Prefix + ":" + identifier
}

// Check admits or rejects one request for identifier. Backend failures admit
// the request.
func (l *Limiter) Check(ctx context.Context, identifier string) models.RateDecision {
	now := l.now()
	nowMs := now.UnixMilli()
	member := strconv.FormatInt(nowMs, 10) + "-" + uuid.NewString()

	vals, err := slidingWindow.Run(ctx, l.rdb,
		[]string{l.Key(identifier)},
		nowMs, l.config.Window.Milliseconds(), l.config.Limit, member,
	).Int64Slice()
	if err == nil && len(vals) != 3 {
		err = fmt.Errorf("unexpected limiter reply %v", vals)
	}
	if err != nil {
		metrics.RateLimitDecisions.WithLabelValues("fail_open").Inc()
		l.logger.Warn("rate limit check failed, allowing request", map[string]interface{}{
			"identifier": identifier,
			"errorCode":  apperrors.ErrCodeRateLimitBackendError,
			"error":      err.Error(),
		})
		return models.RateDecision{Allowed: true, Remaining: 0, ResetAt: now}
	}

	d := models.RateDecision{
		Allowed:   vals[0] == 1,
		Remaining: int(vals[1]),
		ResetAt:   time.UnixMilli(vals[2]),
	}
	if d.Remaining < 0 {
		d.Remaining = 0
	}
	if d.Allowed {
		metrics.RateLimitDecisions.WithLabelValues("allowed").Inc()
	} else {
		metrics.RateLimitDecisions.WithLabelValues("rejected").Inc()
		l.logger.Info("rate limit exceeded", map[string]interface{}{
			"identifier": identifier,
			"resetAt":    d.ResetAt.UTC().Format(time.RFC3339),
		})
	}
	return d
}

// ClientIdentifier picks the caller address: first X-Forwarded-For entry, then
// X-Real-IP, else "anonymous".
func ClientIdentifier(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	return Anonymous
}
