// internal/common/scrape/labels.go
package scrape

import (
	"regexp"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"book-availability/internal/models"
)

// knownLabels terminates a label-bounded value when another field starts on
// the same line.
var knownLabels = []string{
	"서명", "표제", "제목", "title",
	"저자", "지은이", "author",
	"발행처", "출판사", "publisher",
	"발행년", "출판년", "발행연도", "year",
	"ISBN",
	"청구기호", "call number",
	"자료실", "소장처", "location",
	"대출상태", "상태", "status",
	"반납예정일", "due date",
}

// Label captures the value that follows any of its names (colon optional), up
// to the next known label or the end of the line.
type Label struct {
	re *regexp.Regexp
}

func NewLabel(names ...string) *Label {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = regexp.QuoteMeta(n)
	}
	terms := make([]string, len(knownLabels))
	for i, n := range knownLabels {
		terms[i] = regexp.QuoteMeta(n)
	}

	// A name only counts at a word start, so "title" never matches "subtitle".
	pattern := `(?im)(?:^|[^\p{L}\p{N}_])(?:` + strings.Join(quoted, "|") + `)(?:\s*[:：]\s*|[ \t]+)` +
		`([^\n]+?)` +
		`(?:[ \t]+(?:` + strings.Join(terms, "|") + `)(?:\s*[:：]|[ \t])|\n|$)`
	return &Label{re: regexp.MustCompile(pattern)}
}

// Find returns the first non-empty value, or "".
func (l *Label) Find(text string) string {
	for _, m := range l.re.FindAllStringSubmatch(text, -1) {
		if v := strings.TrimSpace(m[1]); v != "" {
			return v
		}
	}
	return ""
}

var (
	TitleLabel      = NewLabel("서명", "표제", "제목", "title")
	AuthorLabel     = NewLabel("저자", "지은이", "author")
	PublisherLabel  = NewLabel("발행처", "출판사", "publisher")
	YearLabel       = NewLabel("발행년", "출판년", "발행연도", "year")
	ISBNLabel       = NewLabel("ISBN")
	CallNumberLabel = NewLabel("청구기호", "call number")
	LocationLabel   = NewLabel("자료실", "소장처", "location")
	StatusLabel     = NewLabel("대출상태", "상태", "status")
	DueDateLabel    = NewLabel("반납예정일", "due date")
)

var labelCache sync.Map

// LabelValue is Find for an ad hoc label set. Compiled patterns are reused.
func LabelValue(text string, labels ...string) string {
	key := strings.Join(labels, "\x00")
	l, ok := labelCache.Load(key)
	if !ok {
		l, _ = labelCache.LoadOrStore(key, NewLabel(labels...))
	}
	return l.(*Label).Find(text)
}

var (
	yearPattern         = regexp.MustCompile(`\d{4}`)
	isbnPattern         = regexp.MustCompile(`(?i)ISBN[:\s]*([\d\-]+)`)
	authorSuffixPattern = regexp.MustCompile(`\s*지음\s*;.*$`)
)

// FindYear returns the first four-digit run.
func FindYear(s string) string {
	return yearPattern.FindString(s)
}

// FindISBN returns the digits and dashes following an ISBN marker.
func FindISBN(text string) string {
	if m := isbnPattern.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}

// StripAuthorRole drops the "지음 ; 옮김 ..." tail catalogs append to authors.
func StripAuthorRole(s string) string {
	return strings.TrimSpace(authorSuffixPattern.ReplaceAllString(s, ""))
}

// TextFallback reads label-bounded fields from the whole page text.
var TextFallback = Strategy{
	Name: StrategyTextFallback,
	Extract: func(doc *goquery.Document) (models.BookRecord, bool) {
		text := BlockText(doc.Find("body"))
		book := models.BookRecord{
			Title:     TitleLabel.Find(text),
			Author:    StripAuthorRole(AuthorLabel.Find(text)),
			Publisher: PublisherLabel.Find(text),
			Year:      FindYear(YearLabel.Find(text)),
			ISBN:      FindISBN(text),
		}
		return book, book.Title != ""
	},
}
