// internal/api/server_test.go
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"book-availability/internal/cache"
	"book-availability/internal/common/config"
	"book-availability/internal/common/database"
	apperrors "book-availability/internal/common/errors"
	"book-availability/internal/common/logger"
	"book-availability/internal/models"
	searchbooks "book-availability/internal/workers/search/search-books"
	"book-availability/pkg/registry"
)

// ==========================
// Mock Searcher
// ==========================

type MockSearcher struct{ mock.Mock }

func (m *MockSearcher) Execute(ctx context.Context, input *searchbooks.Input) (*searchbooks.Output, error) {
	args := m.Called(ctx, input)
	var out *searchbooks.Output
	if v := args.Get(0); v != nil {
		out = v.(*searchbooks.Output)
	}
	return out, args.Error(1)
}

// ==========================
// Test Helpers
// ==========================

type fixture struct {
	searcher *MockSearcher
	cache    *cache.Cache
	mr       *miniredis.Miniredis
	server   *Server
	handler  http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rc := database.NewRedis(config.RedisConfig{Address: mr.Addr()})
	t.Cleanup(func() { _ = rc.Close() })

	f := &fixture{
		searcher: new(MockSearcher),
		cache:    cache.New(rc.Client, cache.TTLs{}, logger.NewTestLogger(t)),
		mr:       mr,
	}
	f.server = NewServer(f.searcher, f.cache, registry.Default(), rc, "1.0.0", logger.NewTestLogger(t))
	f.server.now = func() time.Time { return time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC) }
	f.handler = f.server.Handler()
	return f
}

func (f *fixture) get(target string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func sampleResult() *models.AggregatedResult {
	return &models.AggregatedResult{
		Book: models.BookRecord{Title: "이방인", ISBN: "9788937460449"},
		Holdings: []models.HoldingRecord{
			{BranchID: "geoma", BranchName: "거마도서관", HasBook: true, IsAvailable: true, Availability: models.Available},
		},
	}
}

// ==========================
// /api/search
// ==========================

func TestSearch_Miss(t *testing.T) {
	f := newFixture(t)
	f.searcher.On("Execute", mock.Anything, mock.MatchedBy(func(in *searchbooks.Input) bool {
		return in.Title == "이방인" && in.Author == "" && in.ClientID == "10.0.0.1" && in.RequestID == "req-42"
	})).Return(&searchbooks.Output{
		Outcome:   searchbooks.OutcomeSuccess,
		Result:    sampleResult(),
		RateLimit: models.RateDecision{Allowed: true, Remaining: 9},
	}, nil)

	rec := f.get("/api/search?title=%3Cb%3E이방인%3C/b%3E", map[string]string{
		"X-Forwarded-For": "10.0.0.1, 10.0.0.2",
		HeaderRequestID:   "req-42",
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "MISS", rec.Header().Get(HeaderCache))
	assert.Equal(t, "9", rec.Header().Get(HeaderRateLimitRemaining))
	assert.Equal(t, "req-42", rec.Header().Get(HeaderRequestID))

	var got models.AggregatedResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, *sampleResult(), got)
	f.searcher.AssertExpectations(t)
}

func TestSearch_Hit(t *testing.T) {
	f := newFixture(t)
	f.searcher.On("Execute", mock.Anything, mock.Anything).Return(&searchbooks.Output{
		Outcome:   searchbooks.OutcomeCacheHit,
		Result:    sampleResult(),
		FromCache: true,
		RateLimit: models.RateDecision{Allowed: true, Remaining: 3},
	}, nil)

	rec := f.get("/api/search?author=카뮈", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "HIT", rec.Header().Get(HeaderCache))
	assert.NotEmpty(t, rec.Header().Get(HeaderRequestID), "request ID is generated")
}

func TestSearch_InvalidNeverReachesSearcher(t *testing.T) {
	f := newFixture(t)

	for _, target := range []string{
		"/api/search",
		"/api/search?title=%3Cscript%3E%3C/script%3E",
		"/api/search?title=&author=%20%20",
	} {
		rec := f.get(target, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
		assert.Equal(t, apperrors.UserMessage(apperrors.ErrCodeInvalidQuery), decode(t, rec)["error"])
	}

	long := make([]rune, 201)
	for i := range long {
		long[i] = '가'
	}
	rec := f.get("/api/search?title="+string(long), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	f.searcher.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything)
}

func TestSearch_Rejected(t *testing.T) {
	f := newFixture(t)
	reset := time.UnixMilli(1_740_819_660_000)
	f.searcher.On("Execute", mock.Anything, mock.Anything).Return(&searchbooks.Output{
		Outcome:   searchbooks.OutcomeRejected,
		RateLimit: models.RateDecision{Allowed: false, Remaining: 0, ResetAt: reset},
	}, apperrors.NewRateLimitExceededError(0, reset))

	rec := f.get("/api/search?title=이방인", nil)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "0", rec.Header().Get(HeaderRateLimitRemaining))
	assert.Equal(t, "1740819660000", rec.Header().Get(HeaderRateLimitReset))
	body := decode(t, rec)
	assert.Equal(t, "요청이 너무 많습니다. 잠시 후 다시 시도해주세요.", body["error"])
	assert.Equal(t, reset.UTC().Format(time.RFC3339Nano), body["reset"])
}

func TestSearch_ErrorStatuses(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		msg    string
	}{
		{"not found", apperrors.NewNoResultsError("이방인"), http.StatusNotFound, "검색 결과가 없습니다"},
		{"aggregation failed", apperrors.NewAggregationFailedError(errors.New("boom")), http.StatusInternalServerError, "검색 중 오류가 발생했습니다"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "검색 중 오류가 발생했습니다"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.searcher.On("Execute", mock.Anything, mock.Anything).Return(&searchbooks.Output{}, tt.err)

			rec := f.get("/api/search?title=이방인", nil)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.msg, decode(t, rec)["error"])
		})
	}
}

// ==========================
// /api/libraries and /api/books
// ==========================

func TestLibraries(t *testing.T) {
	f := newFixture(t)
	reg := registry.Default()

	rec := f.get("/api/libraries", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var listing LibraryListing
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listing))
	assert.Equal(t, reg.Len(), listing.Total)
	assert.Equal(t, reg.Stats(), listing.Stats)
	assert.True(t, f.mr.Exists(cache.LibrariesKey))
	assert.Equal(t, cache.LibraryListTTL, f.mr.TTL(cache.LibrariesKey))

	rec = f.get("/api/libraries?type=smart", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listing))
	assert.Equal(t, reg.Stats().Smart, listing.Total)
	for _, b := range listing.Libraries {
		assert.Equal(t, registry.BranchTypeSmart, b.Type)
	}

	rec = f.get("/api/libraries?type=castle", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLibraries_ServedFromCache(t *testing.T) {
	f := newFixture(t)
	f.cache.SetLibraries(context.Background(), LibraryListing{
		Libraries: []registry.Branch{{ID: "only", Name: "한곳도서관", Type: registry.BranchTypePublic}},
		Total:     1,
	})

	rec := f.get("/api/libraries", nil)

	var listing LibraryListing
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listing))
	require.Len(t, listing.Libraries, 1)
	assert.Equal(t, "only", listing.Libraries[0].ID)
}

func TestBooks(t *testing.T) {
	f := newFixture(t)
	f.cache.SetBook(context.Background(), sampleResult().Book)

	rec := f.get("/api/books/9788937460449", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "이방인", decode(t, rec)["title"])

	rec = f.get("/api/books/0000000000", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// ==========================
// /api/health
// ==========================

func TestHealth(t *testing.T) {
	f := newFixture(t)

	rec := f.get("/api/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var h HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &h))
	assert.Equal(t, "ok", h.Status)
	assert.Equal(t, map[string]string{"redis": "ok", "api": "ok"}, h.Services)
	assert.Equal(t, "1.0.0", h.Version)
	assert.Equal(t, "2025-03-01T09:00:00Z", h.Timestamp)

	f.mr.Close()

	rec = f.get("/api/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &h))
	assert.Equal(t, "degraded", h.Status)
	assert.Equal(t, "error", h.Services["redis"])
}

func TestUnknownMethod(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodPost, "/api/search?title=x", nil)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
