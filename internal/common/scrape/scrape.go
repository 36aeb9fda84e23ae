// internal/common/scrape/scrape.go
package scrape

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	apperrors "book-availability/internal/common/errors"
	"book-availability/internal/common/logger"
	"book-availability/internal/common/metrics"
	"book-availability/internal/common/textutil"
	"book-availability/internal/models"
	"book-availability/pkg/registry"
)

const (
	StrategyTextFallback = "text-fallback"
	StrategyNone         = "none"

	tracerName = "book-availability/internal/common/scrape"
)

// Strategy is one way of pulling a bibliographic record out of a page.
type Strategy struct {
	Name    string
	Extract func(doc *goquery.Document) (models.BookRecord, bool)
}

// FirstMatch runs the strategies in order and returns the first record with a
// non-empty title together with the strategy name. With no match the name is
// StrategyNone.
func FirstMatch(doc *goquery.Document, strategies ...Strategy) (models.BookRecord, string, bool) {
	for _, s := range strategies {
		book, ok := s.Extract(doc)
		if ok && strings.TrimSpace(book.Title) != "" {
			return book, s.Name, true
		}
	}
	return models.BookRecord{}, StrategyNone, false
}

func LoadDocument(body []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// Text is the cleaned text of the first matched node.
func Text(sel *goquery.Selection) string {
	return textutil.CleanText(sel.First().Text())
}

var blockElements = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true,
	"dd": true, "div": true, "dl": true, "dt": true, "footer": true,
	"form": true, "h1": true, "h2": true, "h3": true, "h4": true,
	"h5": true, "h6": true, "header": true, "hr": true, "li": true,
	"main": true, "nav": true, "ol": true, "p": true, "section": true,
	"table": true, "tbody": true, "thead": true, "tr": true, "ul": true,
}

// BlockText renders a selection as text with one line per block element, so
// label patterns can stop at line breaks.
func BlockText(sel *goquery.Selection) string {
	var b strings.Builder
	var walk func(*goquery.Selection)
	walk = func(s *goquery.Selection) {
		s.Contents().Each(func(_ int, c *goquery.Selection) {
			switch name := goquery.NodeName(c); name {
			case "#text":
				b.WriteString(c.Text())
			case "#comment", "script", "style", "noscript":
			case "br":
				b.WriteByte('\n')
			case "td", "th":
				walk(c)
				b.WriteByte(' ')
			default:
				block := blockElements[name]
				if block {
					b.WriteByte('\n')
				}
				walk(c)
				if block {
					b.WriteByte('\n')
				}
			}
		})
	}
	walk(sel)
	return textutil.NormalizeLines(b.String())
}

// ResolveBranch maps a scraped branch name onto the registry. Unknown names
// are logged and dropped.
func ResolveBranch(reg *registry.Registry, name string, log logger.Logger) (registry.Branch, bool) {
	b, ok := reg.Lookup(name)
	if !ok {
		log.Warn("unknown branch dropped", map[string]interface{}{"branchName": name})
	}
	return b, ok
}

// Segment is one "branch name + status" run found in free text.
type Segment struct {
	Name   string
	Status string
}

var segmentPattern = regexp.MustCompile(
	`([\w가-힣]+도서관)\s*[:：\-]?\s*(대출\s?가능|대출\s?중|관내\s?열람만?|열람만|예약\s?중|정리\s?중|분실|상호대차|available|on loan)`)

// FindBranchSegments pattern-matches repeated branch/status pairs in text.
func FindBranchSegments(text string) []Segment {
	matches := segmentPattern.FindAllStringSubmatch(text, -1)
	out := make([]Segment, 0, len(matches))
	for _, m := range matches {
		out = append(out, Segment{Name: m[1], Status: m[2]})
	}
	return out
}

// StartParse opens a span around one source parse.
func StartParse(ctx context.Context, source string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "scrape.parse",
		trace.WithAttributes(attribute.String("source", source)))
}

// RecordStrategy notes which extraction strategy won for a source.
func RecordStrategy(span trace.Span, source, strategy string, holdings int) {
	span.SetAttributes(
		attribute.String("extraction.strategy", strategy),
		attribute.Int("holdings", holdings),
	)
	metrics.SourceExtractionStrategy.WithLabelValues(source, strategy).Inc()
}

// Fetcher is the upstream HTTP dependency of the source parsers.
type Fetcher interface {
	Fetch(ctx context.Context, url string, headers map[string]string) ([]byte, error)
}

// Run fetches url and hands the document to parse. Fetch and markup failures
// degrade to a no-match result and a warning, never an error.
func Run(
	ctx context.Context,
	source, url string,
	f Fetcher,
	log logger.Logger,
	parse func(context.Context, *goquery.Document) models.SourceResult,
) models.SourceResult {
	started := time.Now()
	defer func() {
		metrics.ScrapeDuration.WithLabelValues(source).Observe(time.Since(started).Seconds())
	}()

	body, err := f.Fetch(ctx, url, nil)
	if err == nil {
		var doc *goquery.Document
		if doc, err = LoadDocument(body); err == nil {
			result := parse(ctx, doc)
			outcome := "no_match"
			if result.Matched() {
				outcome = "matched"
			}
			metrics.SourceScrapes.WithLabelValues(source, outcome).Inc()
			return result
		}
	}

	unavailable := apperrors.NewSourceUnavailableError(source, err)
	log.Warn("source unavailable", map[string]interface{}{
		"source":    source,
		"url":       url,
		"errorCode": string(unavailable.Code),
		"error":     err,
	})
	metrics.SourceScrapes.WithLabelValues(source, "unavailable").Inc()
	return models.NoMatch(source)
}
