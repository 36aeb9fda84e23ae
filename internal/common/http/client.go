// internal/common/http/client.go
package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"book-availability/internal/common/logger"
)

const (
	DefaultTimeout     = 10 * time.Second
	DefaultMaxAttempts = 3
	DefaultBackoffUnit = time.Second
)

var tracer = otel.Tracer("book-availability/internal/common/http")

// FetcherConfig controls a Fetcher. Timeout applies to each attempt on its own.
type FetcherConfig struct {
	Timeout     time.Duration
	MaxAttempts int
	BackoffUnit time.Duration
	UserAgent   string
}

// FetchError is returned once every attempt for a URL has failed.
type FetchError struct {
	URL       string
	Attempts  int
	LastCause error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s failed after %d attempt(s): %v", e.URL, e.Attempts, e.LastCause)
}

func (e *FetchError) Unwrap() error { return e.LastCause }

// StatusError is the cause recorded for a non-2xx response.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// Fetcher performs GET requests with bounded retries. Rate-limited responses
// back off exponentially, every other failure linearly.
type Fetcher struct {
	client    *retryablehttp.Client
	userAgent string
	logger    logger.Logger
}

func NewFetcher(cfg FetcherConfig, log logger.Logger) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.BackoffUnit <= 0 {
		cfg.BackoffUnit = DefaultBackoffUnit
	}

	rc := retryablehttp.NewClient()
	rc.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	rc.RetryMax = cfg.MaxAttempts - 1
	rc.Logger = &leveledLogger{log: log}
	rc.CheckRetry = checkRetry
	rc.Backoff = Backoff(cfg.BackoffUnit)
	rc.ErrorHandler = func(resp *http.Response, err error, numTries int) (*http.Response, error) {
		if resp != nil {
			resp.Body.Close()
			if err == nil {
				err = &StatusError{StatusCode: resp.StatusCode}
			}
		}
		return nil, &attemptsError{attempts: numTries, cause: err}
	}

	return &Fetcher{
		client:    rc,
		userAgent: cfg.UserAgent,
		logger:    log,
	}
}

// Backoff returns the wait before retry attemptNum+1: 2^n units after a 429,
// n+1 units otherwise.
func Backoff(unit time.Duration) retryablehttp.Backoff {
	return func(_, _ time.Duration, attemptNum int, resp *http.Response) time.Duration {
		if resp != nil && resp.StatusCode == http.StatusTooManyRequests {
			return time.Duration(1<<uint(attemptNum)) * unit
		}
		return time.Duration(attemptNum+1) * unit
	}
}

func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return true, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return true, nil
	}
	return false, nil
}

// Fetch returns the body of a successful GET. Extra headers are sent as given.
func (f *Fetcher) Fetch(ctx context.Context, url string, headers map[string]string) (_ []byte, err error) {
	ctx, span := tracer.Start(ctx, "http.fetch")
	span.SetAttributes(attribute.String("http.url", url))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		fe := &FetchError{URL: url, Attempts: 1, LastCause: err}
		var ae *attemptsError
		if errors.As(err, &ae) {
			fe.Attempts = ae.attempts
			fe.LastCause = ae.cause
		}
		f.logger.Warn("Fetch failed", map[string]interface{}{
			"url":      url,
			"attempts": fe.Attempts,
			"error":    fe.LastCause,
		})
		return nil, fe
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{URL: url, Attempts: 1, LastCause: err}
	}
	return body, nil
}

type attemptsError struct {
	attempts int
	cause    error
}

func (e *attemptsError) Error() string { return e.cause.Error() }

func (e *attemptsError) Unwrap() error { return e.cause }

// leveledLogger routes retryablehttp's own logging through the service logger.
type leveledLogger struct {
	log logger.Logger
}

func (l *leveledLogger) Error(msg string, kv ...interface{}) { l.log.Error(msg, kvFields(kv)) }
func (l *leveledLogger) Info(msg string, kv ...interface{})  { l.log.Debug(msg, kvFields(kv)) }
func (l *leveledLogger) Debug(msg string, kv ...interface{}) { l.log.Debug(msg, kvFields(kv)) }
func (l *leveledLogger) Warn(msg string, kv ...interface{})  { l.log.Warn(msg, kvFields(kv)) }

func kvFields(kv []interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprint(kv[i])
		}
		fields[key] = kv[i+1]
	}
	return fields
}
