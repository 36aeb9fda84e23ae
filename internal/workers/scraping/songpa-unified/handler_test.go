// internal/workers/scraping/songpa-unified/handler_test.go
package songpaunified

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bookhttp "book-availability/internal/common/http"
	"book-availability/internal/common/logger"
	"book-availability/internal/common/scrape"
	"book-availability/internal/models"
	"book-availability/pkg/registry"
)

// ==========================
// Helpers
// ==========================

func readFixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return data
}

func parseFixture(t *testing.T, name string) models.SourceResult {
	t.Helper()
	doc, err := scrape.LoadDocument(readFixture(t, name))
	require.NoError(t, err)
	p := NewParser("https://www.splib.or.kr", registry.Default(), logger.NewTestLogger(t))
	return p.Parse(context.Background(), doc)
}

func newTestHandler(t *testing.T, baseURL string) *Handler {
	fetcher := bookhttp.NewFetcher(bookhttp.FetcherConfig{
		Timeout:     2 * time.Second,
		MaxAttempts: 2,
		BackoffUnit: time.Millisecond,
		UserAgent:   "TestBot/1.0",
	}, logger.NewTestLogger(t))
	return NewHandler(&Config{BaseURL: baseURL, Timeout: 5 * time.Second}, fetcher, registry.Default(), logger.NewTestLogger(t))
}

func byID(holdings []models.HoldingRecord) map[string]models.HoldingRecord {
	out := make(map[string]models.HoldingRecord, len(holdings))
	for _, h := range holdings {
		out[h.BranchID] = h
	}
	return out
}

// ==========================
// Parse: result list
// ==========================

func TestParse_ResultList(t *testing.T) {
	res := parseFixture(t, "results.html")

	require.True(t, res.Matched())
	assert.Equal(t, Source, res.Source)
	assert.Equal(t, models.BookRecord{
		Title:     "이방인",
		Author:    "알베르 카뮈",
		Publisher: "민음사",
		Year:      "2011",
		ISBN:      "978-89-374-6044-9",
		CoverURL:  "https://www.splib.or.kr/upload/cover/9788937460449.jpg",
	}, *res.Book)

	require.Len(t, res.Holdings, 4, "unknown branch must be dropped")
	assert.Equal(t, "songpa-glmaru", res.Holdings[0].BranchID)

	h := byID(res.Holdings)

	glmaru := h["songpa-glmaru"]
	assert.Equal(t, models.Available, glmaru.Availability)
	assert.True(t, glmaru.IsAvailable)
	assert.True(t, glmaru.HasBook)
	assert.Equal(t, "863-카37ㅇ", glmaru.CallNumber)
	assert.Equal(t, "종합자료실", glmaru.ShelfLocation)
	assert.Nil(t, glmaru.DueDate)

	geoma := h["geoma"]
	assert.Equal(t, models.OnLoan, geoma.Availability)
	assert.False(t, geoma.IsAvailable)
	assert.Equal(t, "어린이자료실", geoma.ShelfLocation)
	require.NotNil(t, geoma.DueDate)
	assert.Equal(t, "2025-03-07", *geoma.DueDate)

	dolmari := h["dolmari"]
	assert.Equal(t, models.Unavailable, dolmari.Availability)
	assert.True(t, dolmari.HasBook)

	sonamu := h["sonamuundeok-1"]
	assert.Equal(t, models.OnLoan, sonamu.Availability)
	assert.Nil(t, sonamu.DueDate)
}

func TestParse_NoResult(t *testing.T) {
	res := parseFixture(t, "noresult.html")
	assert.False(t, res.Matched())
	assert.Empty(t, res.Holdings)
}

// ==========================
// Parse: fallbacks
// ==========================

func TestParse_DetailTable(t *testing.T) {
	res := parseFixture(t, "detail.html")

	require.True(t, res.Matched())
	assert.Equal(t, "채식주의자", res.Book.Title)
	assert.Equal(t, "한강", res.Book.Author)
	assert.Equal(t, "창비", res.Book.Publisher)
	assert.Equal(t, "2007", res.Book.Year)
	assert.Equal(t, "9788936433598", res.Book.ISBN)

	h := byID(res.Holdings)
	require.Len(t, h, 2)
	assert.Equal(t, models.Available, h["songpa-wirye"].Availability)
	assert.Equal(t, models.OnLoan, h["garakmall"].Availability)
}

func TestParse_TextFallback(t *testing.T) {
	res := parseFixture(t, "text.html")

	require.True(t, res.Matched())
	assert.Equal(t, "소년이 온다", res.Book.Title)
	assert.Equal(t, "한강", res.Book.Author)
	assert.Equal(t, "창비", res.Book.Publisher)
	assert.Equal(t, "2014", res.Book.Year)
	assert.Equal(t, "9788936434120", res.Book.ISBN)

	require.Len(t, res.Holdings, 1)
	assert.Equal(t, "songigol", res.Holdings[0].BranchID)
	assert.Equal(t, models.InLibraryOnly, res.Holdings[0].Availability)
	assert.False(t, res.Holdings[0].IsAvailable)
}

func TestCoverURL(t *testing.T) {
	p := NewParser("https://www.splib.or.kr/", registry.Default(), logger.NewNoOpLogger())

	tests := []struct {
		src  string
		want string
	}{
		{"", ""},
		{"/images/noimg.gif", ""},
		{"/upload/a.jpg", "https://www.splib.or.kr/upload/a.jpg"},
		{"upload/a.jpg", "https://www.splib.or.kr/upload/a.jpg"},
		{"https://cdn.example.com/a.jpg", "https://cdn.example.com/a.jpg"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, p.coverURL(tt.src), "src %q", tt.src)
	}
}

// ==========================
// Execute
// ==========================

func TestExecute_BuildsQueryAndParses(t *testing.T) {
	page := readFixture(t, "results.html")
	type seen struct {
		query url.Values
		ua    string
	}
	requests := make(chan seen, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests <- seen{query: r.URL.Query(), ua: r.Header.Get("User-Agent")}
		_, _ = w.Write(page)
	}))
	defer srv.Close()

	h := newTestHandler(t, srv.URL+"/intro/program/plusSearchResultList.do")
	q, err := models.NewSearchQuery("이방인", "", "민음사")
	require.NoError(t, err)

	res := h.Execute(context.Background(), q)

	require.True(t, res.Matched())
	assert.Equal(t, srv.URL+"/upload/cover/9788937460449.jpg", res.Book.CoverURL)

	got := <-requests
	gotQuery, gotUA := got.query, got.ua
	assert.Equal(t, []string{"이방인 민음사"}, gotQuery["searchKeyword"])
	assert.Equal(t, []string{"SIMPLE"}, gotQuery["searchType"])
	assert.Equal(t, []string{"BOOK"}, gotQuery["searchCategory"])
	assert.Equal(t, []string{"ALL"}, gotQuery["searchKey"])
	assert.Equal(t, []string{"ALL"}, gotQuery["searchLibrary"])
	assert.Equal(t, "TestBot/1.0", gotUA)
}

func TestExecute_UpstreamFailureIsNoMatch(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	h := newTestHandler(t, srv.URL)
	q, _ := models.NewSearchQuery("이방인", "", "")

	res := h.Execute(context.Background(), q)

	assert.False(t, res.Matched())
	assert.Equal(t, Source, res.Source)
	assert.NotNil(t, res.Holdings)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestInput_Query(t *testing.T) {
	_, err := Input{}.Query()
	assert.ErrorIs(t, err, models.ErrInvalidQuery)

	q, err := Input{Title: " <b>이방인</b> "}.Query()
	require.NoError(t, err)
	assert.Equal(t, "이방인", q.Title)
}
