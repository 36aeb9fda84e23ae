// internal/api/server.go
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"book-availability/internal/common/database"
	apperrors "book-availability/internal/common/errors"
	"book-availability/internal/common/logger"
	"book-availability/internal/common/validation"
	"book-availability/internal/models"
	"book-availability/internal/ratelimit"
	searchbooks "book-availability/internal/workers/search/search-books"
	"book-availability/pkg/registry"
)

const (
	HeaderRequestID          = "X-Request-ID"
	HeaderCache              = "X-Cache"
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
	HeaderRateLimitReset     = "X-RateLimit-Reset"

	healthTimeout = 2 * time.Second
)

type Searcher interface {
	Execute(ctx context.Context, input *searchbooks.Input) (*searchbooks.Output, error)
}

type Cache interface {
	GetLibraries(ctx context.Context, dst interface{}) bool
	SetLibraries(ctx context.Context, listing interface{})
	GetBook(ctx context.Context, isbn string) (*models.BookRecord, bool)
}

// StatusChecker reports the Redis connection state.
type StatusChecker interface {
	Status(ctx context.Context) string
}

type Server struct {
	searcher Searcher
	cache    Cache
	registry *registry.Registry
	redis    StatusChecker
	version  string
	logger   logger.Logger
	now      func() time.Time
}

func NewServer(searcher Searcher, cache Cache, reg *registry.Registry, redis StatusChecker, version string, log logger.Logger) *Server {
	if version == "" {
		version = "1.0.0"
	}
	return &Server{
		searcher: searcher,
		cache:    cache,
		registry: reg,
		redis:    redis,
		version:  version,
		logger:   log.WithFields(map[string]interface{}{"component": "api"}),
		now:      time.Now,
	}
}

// Register mounts the API routes on mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.Handle("GET /api/search", s.withRequestID(s.handleSearch))
	mux.Handle("GET /api/libraries", s.withRequestID(s.handleLibraries))
	mux.Handle("GET /api/books/{isbn}", s.withRequestID(s.handleBook))
	mux.Handle("GET /api/health", s.withRequestID(s.handleHealth))
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.Register(mux)
	return mux
}

type requestIDKey struct{}

func (s *Server) withRequestID(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(HeaderRequestID))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, id)
		next(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// ==========================
// Search
// ==========================

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	title := validation.Sanitize(q.Get("title"))
	author := validation.Sanitize(q.Get("author"))
	publisher := validation.Sanitize(q.Get("publisher"))

	if res := validation.ValidateSearchParams(validation.SearchParams(title, author, publisher)); !res.Valid {
		s.logger.Info("rejecting invalid search", map[string]interface{}{
			"requestId": requestID(r.Context()),
			"errors":    res.GetErrorMessages(),
		})
		writeError(w, http.StatusBadRequest, apperrors.UserMessage(apperrors.ErrCodeInvalidQuery))
		return
	}

	out, err := s.searcher.Execute(r.Context(), &searchbooks.Input{
		Title:     title,
		Author:    author,
		Publisher: publisher,
		ClientID:  ratelimit.ClientIdentifier(r),
		RequestID: requestID(r.Context()),
	})
	if out != nil {
		w.Header().Set(HeaderRateLimitRemaining, strconv.Itoa(out.RateLimit.Remaining))
	}
	if err != nil {
		s.writeSearchError(w, out, err)
		return
	}

	if out.FromCache {
		w.Header().Set(HeaderCache, "HIT")
	} else {
		w.Header().Set(HeaderCache, "MISS")
	}
	writeJSON(w, http.StatusOK, out.Result)
}

func (s *Server) writeSearchError(w http.ResponseWriter, out *searchbooks.Output, err error) {
	code := apperrors.AsStandardError(err).Code
	switch code {
	case apperrors.ErrCodeInvalidQuery:
		writeError(w, http.StatusBadRequest, apperrors.UserMessage(code))
	case apperrors.ErrCodeRateLimitExceeded:
		reset := s.now()
		if out != nil {
			reset = out.RateLimit.ResetAt
		}
		w.Header().Set(HeaderRateLimitReset, strconv.FormatInt(reset.UnixMilli(), 10))
		writeJSON(w, http.StatusTooManyRequests, map[string]interface{}{
			"error": apperrors.UserMessage(code),
			"reset": reset.UTC().Format(time.RFC3339Nano),
		})
	case apperrors.ErrCodeNoResults:
		writeError(w, http.StatusNotFound, apperrors.UserMessage(code))
	default:
		writeError(w, http.StatusInternalServerError, apperrors.UserMessage(code))
	}
}

// ==========================
// Libraries and books
// ==========================

// LibraryListing is the cached registry listing.
type LibraryListing struct {
	Libraries []registry.Branch `json:"libraries"`
	Stats     registry.Stats    `json:"stats"`
	Total     int               `json:"total"`
}

func (s *Server) handleLibraries(w http.ResponseWriter, r *http.Request) {
	var filter registry.BranchType
	if t := r.URL.Query().Get("type"); t != "" {
		filter = registry.BranchType(t)
		if !filter.Valid() {
			writeError(w, http.StatusBadRequest, "유효하지 않은 도서관 유형입니다")
			return
		}
	}

	var listing LibraryListing
	if !s.cache.GetLibraries(r.Context(), &listing) {
		listing = LibraryListing{
			Libraries: s.registry.All(),
			Stats:     s.registry.Stats(),
			Total:     s.registry.Len(),
		}
		s.cache.SetLibraries(r.Context(), listing)
	}

	if filter != "" {
		filtered := make([]registry.Branch, 0, len(listing.Libraries))
		for _, b := range listing.Libraries {
			if b.Type == filter {
				filtered = append(filtered, b)
			}
		}
		listing.Libraries = filtered
		listing.Total = len(filtered)
	}
	writeJSON(w, http.StatusOK, listing)
}

func (s *Server) handleBook(w http.ResponseWriter, r *http.Request) {
	isbn := strings.TrimSpace(r.PathValue("isbn"))
	if isbn == "" {
		writeError(w, http.StatusBadRequest, "ISBN이 필요합니다")
		return
	}
	book, ok := s.cache.GetBook(r.Context(), isbn)
	if !ok {
		writeError(w, http.StatusNotFound, apperrors.UserMessage(apperrors.ErrCodeNoResults))
		return
	}
	writeJSON(w, http.StatusOK, book)
}

// ==========================
// Health
// ==========================

type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Services  map[string]string `json:"services"`
	Version   string            `json:"version"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	resp := HealthResponse{
		Status:    "ok",
		Timestamp: s.now().UTC().Format(time.RFC3339Nano),
		Services:  map[string]string{"redis": "ok", "api": "ok"},
		Version:   s.version,
	}
	code := http.StatusOK
	if s.redis == nil || s.redis.Status(ctx) != database.StatusConnected {
		resp.Status = "degraded"
		resp.Services["redis"] = "error"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
