// internal/workers/scraping/education-lib/parser.go
package educationlib

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"book-availability/internal/common/logger"
	"book-availability/internal/common/scrape"
	"book-availability/internal/common/textutil"
	"book-availability/internal/models"
	"book-availability/pkg/registry"
)

const (
	StrategyClassSelectors = "class-selectors"
	StrategyDefinitionList = "definition-list"
)

// Parser reads the education office catalog. The site holds a single branch,
// so at most one holding is produced.
type Parser struct {
	branchID string
	registry *registry.Registry
	logger   logger.Logger
}

func NewParser(branchID string, reg *registry.Registry, log logger.Logger) *Parser {
	return &Parser{branchID: branchID, registry: reg, logger: log}
}

func (p *Parser) Parse(ctx context.Context, doc *goquery.Document) models.SourceResult {
	_, span := scrape.StartParse(ctx, Source)
	defer span.End()

	book, strategy, ok := scrape.FirstMatch(doc,
		scrape.Strategy{Name: StrategyClassSelectors, Extract: fromClassSelectors},
		scrape.Strategy{Name: StrategyDefinitionList, Extract: fromDefinitionList},
		scrape.TextFallback,
	)
	if !ok {
		scrape.RecordStrategy(span, Source, strategy, 0)
		return models.NoMatch(Source)
	}

	holdings := p.holdings(doc)
	scrape.RecordStrategy(span, Source, strategy, len(holdings))
	return models.SourceResult{Source: Source, Book: &book, Holdings: holdings}
}

func fromClassSelectors(doc *goquery.Document) (models.BookRecord, bool) {
	book := models.BookRecord{
		Title:       scrape.Text(doc.Find(".book-title, .title")),
		Author:      scrape.Text(doc.Find(".book-author, .author")),
		Publisher:   scrape.Text(doc.Find(".book-publisher, .publisher")),
		Year:        scrape.Text(doc.Find(".book-year, .pub-year")),
		ISBN:        scrape.Text(doc.Find(".book-isbn, .isbn")),
		CoverURL:    strings.TrimSpace(doc.Find(".book-cover, .cover-img").First().AttrOr("src", "")),
		Description: scrape.Text(doc.Find(".book-description, .summary")),
	}
	return book, book.Title != ""
}

func fromDefinitionList(doc *goquery.Document) (models.BookRecord, bool) {
	var book models.BookRecord
	doc.Find("dl dt").Each(func(_ int, dt *goquery.Selection) {
		dd := dt.Next()
		if goquery.NodeName(dd) != "dd" {
			return
		}
		label := scrape.Text(dt)
		value := scrape.Text(dd)
		switch {
		case value == "":
		case strings.Contains(label, "서명"), strings.Contains(label, "제목"), strings.Contains(label, "표제"):
			if book.Title == "" {
				book.Title = value
			}
		case strings.Contains(label, "저자"):
			book.Author = scrape.StripAuthorRole(value)
		case strings.Contains(label, "출판사"), strings.Contains(label, "발행처"):
			book.Publisher = value
		case strings.Contains(label, "발행년"), strings.Contains(label, "출판년"):
			book.Year = scrape.FindYear(value)
		case strings.Contains(strings.ToUpper(label), "ISBN"):
			book.ISBN = value
		}
	})
	return book, book.Title != ""
}

func (p *Parser) holdings(doc *goquery.Document) []models.HoldingRecord {
	branch, ok := p.registry.ByID(p.branchID)
	if !ok {
		p.logger.Error("education branch missing from registry", map[string]interface{}{"branchId": p.branchID})
		return []models.HoldingRecord{}
	}

	if doc.Find(".holding-status, .availability").Length() > 0 {
		h := models.NewHolding(branch, textutil.ClassifyAvailability(scrape.Text(doc.Find(".status-text, .availability-status"))))
		h.ShelfLocation = scrape.Text(doc.Find(".location, .shelf-location"))
		h.CallNumber = scrape.Text(doc.Find(".call-number, .classification"))
		h.DueDate = textutil.DueDatePtr(scrape.Text(doc.Find(".due-date, .return-date")))
		return []models.HoldingRecord{h}
	}

	for _, seg := range scrape.FindBranchSegments(scrape.BlockText(doc.Find("body"))) {
		resolved, ok := scrape.ResolveBranch(p.registry, seg.Name, p.logger)
		if !ok || resolved.ID != branch.ID {
			continue
		}
		return []models.HoldingRecord{models.NewHolding(branch, textutil.ClassifyAvailability(seg.Status))}
	}
	return []models.HoldingRecord{}
}
