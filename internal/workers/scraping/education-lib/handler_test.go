// internal/workers/scraping/education-lib/handler_test.go
package educationlib

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	bookhttp "book-availability/internal/common/http"
	"book-availability/internal/common/logger"
	"book-availability/internal/common/scrape"
	"book-availability/internal/models"
	"book-availability/pkg/registry"
)

func parseFixture(t *testing.T, name string) models.SourceResult {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	doc, err := scrape.LoadDocument(data)
	require.NoError(t, err)
	return NewParser(DefaultBranchID, registry.Default(), logger.NewTestLogger(t)).Parse(context.Background(), doc)
}

// ==========================
// Parse
// ==========================

func TestParse_ClassSelectors(t *testing.T) {
	res := parseFixture(t, "results.html")

	require.True(t, res.Matched())
	assert.Equal(t, Source, res.Source)
	assert.Equal(t, models.BookRecord{
		Title:       "이방인",
		Author:      "알베르 카뮈",
		Publisher:   "민음사",
		Year:        "2011",
		ISBN:        "9788937460449",
		CoverURL:    "https://songpalib.sen.go.kr/cover/9788937460449.jpg",
		Description: "부조리 문학의 대표작 & 고전",
	}, *res.Book)

	require.Len(t, res.Holdings, 1)
	h := res.Holdings[0]
	assert.Equal(t, DefaultBranchID, h.BranchID)
	assert.Equal(t, models.OnLoan, h.Availability)
	assert.False(t, h.IsAvailable)
	assert.True(t, h.HasBook)
	assert.Equal(t, "종합자료실", h.ShelfLocation)
	assert.Equal(t, "863-카37ㅇ", h.CallNumber)
	require.NotNil(t, h.DueDate)
	assert.Equal(t, "2025-03-07", *h.DueDate)
}

func TestParse_DefinitionList(t *testing.T) {
	res := parseFixture(t, "deflist.html")

	require.True(t, res.Matched())
	assert.Equal(t, "82년생 김지영", res.Book.Title)
	assert.Equal(t, "조남주", res.Book.Author)
	assert.Equal(t, "민음사", res.Book.Publisher)
	assert.Equal(t, "2016", res.Book.Year)
	assert.Equal(t, "978-89-374-7315-9", res.Book.ISBN)

	require.Len(t, res.Holdings, 1, "only the education branch is reported")
	assert.Equal(t, DefaultBranchID, res.Holdings[0].BranchID)
	assert.Equal(t, models.Available, res.Holdings[0].Availability)
	assert.Nil(t, res.Holdings[0].DueDate)
}

func TestParse_NoResult(t *testing.T) {
	res := parseFixture(t, "noresult.html")
	assert.False(t, res.Matched())
	assert.NotNil(t, res.Holdings)
	assert.Empty(t, res.Holdings)
}

func TestParse_UnknownBranchID(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("testdata", "results.html"))
	require.NoError(t, err)
	doc, err := scrape.LoadDocument(data)
	require.NoError(t, err)

	res := NewParser("nowhere", registry.Default(), logger.NewTestLogger(t)).Parse(context.Background(), doc)

	require.True(t, res.Matched())
	assert.Empty(t, res.Holdings)
}

func TestParse_TextFallbackLogsUnknownBranch(t *testing.T) {
	doc, err := scrape.LoadDocument([]byte(`<html><body>
<div class="book-title">이방인</div>
<p>강남도서관 대출가능</p>
<p>송파도서관 대출중</p>
</body></html>`))
	require.NoError(t, err)

	core, logs := observer.New(zapcore.WarnLevel)
	res := NewParser(DefaultBranchID, registry.Default(), logger.NewZapAdapter(zap.New(core))).Parse(context.Background(), doc)

	require.True(t, res.Matched())
	require.Len(t, res.Holdings, 1)
	assert.Equal(t, DefaultBranchID, res.Holdings[0].BranchID)
	assert.Equal(t, models.OnLoan, res.Holdings[0].Availability)

	dropped := logs.FilterMessage("unknown branch dropped").All()
	require.Len(t, dropped, 1)
	assert.Equal(t, "강남도서관", dropped[0].ContextMap()["branchName"])
}

// ==========================
// Execute
// ==========================

func TestSearchURL_OmitsEmptyFields(t *testing.T) {
	h := NewHandler(&Config{BaseURL: "https://songpalib.sen.go.kr/search"}, nil, registry.Default(), logger.NewNoOpLogger())

	q, err := models.NewSearchQuery("이방인", "", "민음사")
	require.NoError(t, err)

	u, err := url.Parse(h.SearchURL(q))
	require.NoError(t, err)
	assert.Equal(t, "/search", u.Path)
	assert.Equal(t, "이방인", u.Query().Get("query"))
	assert.Equal(t, "민음사", u.Query().Get("publisher"))
	assert.False(t, u.Query().Has("author"))
}

func TestNewHandler_DefaultsBranch(t *testing.T) {
	cfg := &Config{}
	NewHandler(cfg, nil, registry.Default(), logger.NewNoOpLogger())
	assert.Equal(t, DefaultBranchID, cfg.BranchID)
}

func TestExecute(t *testing.T) {
	page, err := os.ReadFile(filepath.Join("testdata", "results.html"))
	require.NoError(t, err)

	queries := make(chan url.Values, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		queries <- r.URL.Query()
		_, _ = w.Write(page)
	}))
	defer srv.Close()

	fetcher := bookhttp.NewFetcher(bookhttp.FetcherConfig{
		Timeout:     2 * time.Second,
		MaxAttempts: 1,
		BackoffUnit: time.Millisecond,
	}, logger.NewTestLogger(t))
	h := NewHandler(&Config{BaseURL: srv.URL, Timeout: 5 * time.Second}, fetcher, registry.Default(), logger.NewTestLogger(t))

	q, _ := models.NewSearchQuery("", "알베르 카뮈", "")
	res := h.Execute(context.Background(), q)

	require.True(t, res.Matched())
	assert.Equal(t, "이방인", res.Book.Title)

	got := <-queries
	assert.Equal(t, "알베르 카뮈", got.Get("author"))
	assert.False(t, got.Has("query"))
}

func TestExecute_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	fetcher := bookhttp.NewFetcher(bookhttp.FetcherConfig{
		Timeout:     time.Second,
		MaxAttempts: 1,
		BackoffUnit: time.Millisecond,
	}, logger.NewTestLogger(t))
	h := NewHandler(&Config{BaseURL: srv.URL, Timeout: time.Second}, fetcher, registry.Default(), logger.NewTestLogger(t))

	q, _ := models.NewSearchQuery("이방인", "", "")
	res := h.Execute(context.Background(), q)

	assert.False(t, res.Matched())
	assert.Equal(t, Source, res.Source)
}
