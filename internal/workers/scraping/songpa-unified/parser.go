// internal/workers/scraping/songpa-unified/parser.go
package songpaunified

import (
	"context"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"book-availability/internal/common/logger"
	"book-availability/internal/common/scrape"
	"book-availability/internal/common/textutil"
	"book-availability/internal/models"
	"book-availability/pkg/registry"
)

const (
	StrategyResultList  = "result-list"
	StrategyDetailTable = "detail-table"

	itemSelector = ".bookList li:not(.noResultNote)"
)

var (
	titleIndexPattern = regexp.MustCompile(`^\d+\.\s*`)
	isbnValuePattern  = regexp.MustCompile(`\d[\d\-]*`)

	knownBranchPattern = regexp.MustCompile(
		`(송파글마루도서관|송파어린이도서관|송파위례도서관|거마도서관|돌마리도서관|소나무언덕\d호도서관|송파어린이영어도서관|가락몰도서관|송이골작은도서관|소나무언덕잠실본동도서관)`)
	anyBranchPattern = regexp.MustCompile(`([\w가-힣]+도서관)`)

	callNumberPattern = regexp.MustCompile(`청구기호[:\s]*([\d가-힣ㄱ-ㅎ\.\-]+)`)
	locationPattern   = regexp.MustCompile(`자료실[ \t]*[:：][ \t]*([\w가-힣 \t\(\)]+?)[ \t]*(?:\n|자료상태|대출|$)`)
	roomPattern       = regexp.MustCompile(`[\w가-힣]+(?:자료실|열람실|서고)`)
)

// Parser turns a unified-catalog result page into a SourceResult.
type Parser struct {
	origin   string
	registry *registry.Registry
	logger   logger.Logger
}

// NewParser builds a parser. origin prefixes relative cover image paths.
func NewParser(origin string, reg *registry.Registry, log logger.Logger) *Parser {
	return &Parser{
		origin:   strings.TrimRight(origin, "/"),
		registry: reg,
		logger:   log,
	}
}

func (p *Parser) strategies() []scrape.Strategy {
	return []scrape.Strategy{
		{Name: StrategyResultList, Extract: p.fromResultList},
		{Name: StrategyDetailTable, Extract: fromDetailTable},
		scrape.TextFallback,
	}
}

// Parse extracts the first matching book and one holding per listed branch.
func (p *Parser) Parse(ctx context.Context, doc *goquery.Document) models.SourceResult {
	_, span := scrape.StartParse(ctx, Source)
	defer span.End()

	book, strategy, ok := scrape.FirstMatch(doc, p.strategies()...)
	if !ok {
		scrape.RecordStrategy(span, Source, strategy, 0)
		return models.NoMatch(Source)
	}

	var holdings []models.HoldingRecord
	if items := doc.Find(itemSelector); items.Length() > 0 {
		holdings = p.listHoldings(items)
	} else {
		holdings = p.segmentHoldings(doc)
	}

	scrape.RecordStrategy(span, Source, strategy, len(holdings))
	return models.SourceResult{Source: Source, Book: &book, Holdings: holdings}
}

// ==========================
// Book strategies
// ==========================

func (p *Parser) fromResultList(doc *goquery.Document) (models.BookRecord, bool) {
	item := doc.Find(itemSelector).First()
	if item.Length() == 0 {
		return models.BookRecord{}, false
	}

	info02 := item.Find(".book_info.info02")
	book := models.BookRecord{
		Title:     titleIndexPattern.ReplaceAllString(scrape.Text(item.Find(".book_name .title")), ""),
		Author:    scrape.StripAuthorRole(scrape.Text(item.Find(".book_info.info01"))),
		Publisher: scrape.Text(info02.Find("span")),
		Year:      scrape.FindYear(scrape.Text(info02)),
		ISBN:      scrape.FindISBN(textutil.CleanText(item.Text())),
		CoverURL:  p.coverURL(item.Find(".bookImg img").First().AttrOr("src", "")),
	}
	return book, book.Title != ""
}

func fromDetailTable(doc *goquery.Document) (models.BookRecord, bool) {
	rows := doc.Find(".bookDetail tr, table.detail tr")
	if rows.Length() == 0 {
		return models.BookRecord{}, false
	}

	var book models.BookRecord
	rows.Each(func(_ int, row *goquery.Selection) {
		label := scrape.Text(row.Find("th"))
		value := scrape.Text(row.Find("td"))
		switch {
		case value == "":
		case containsAny(label, "서명", "표제"):
			if book.Title == "" {
				book.Title = value
			}
		case containsAny(label, "저자", "지은이"):
			book.Author = scrape.StripAuthorRole(value)
		case containsAny(label, "발행처", "출판사"):
			book.Publisher = value
		case containsAny(label, "발행년", "출판년"):
			book.Year = scrape.FindYear(value)
		case strings.Contains(strings.ToUpper(label), "ISBN"):
			book.ISBN = isbnValuePattern.FindString(value)
		}
	})
	return book, book.Title != ""
}

// ==========================
// Holdings
// ==========================

func (p *Parser) listHoldings(items *goquery.Selection) []models.HoldingRecord {
	holdings := make([]models.HoldingRecord, 0, items.Length())
	items.Each(func(_ int, item *goquery.Selection) {
		if h, ok := p.holdingFromItem(item); ok {
			holdings = append(holdings, h)
		}
	})
	return holdings
}

func (p *Parser) holdingFromItem(item *goquery.Selection) (models.HoldingRecord, bool) {
	text := scrape.BlockText(item)

	name := knownBranchPattern.FindString(text)
	if name == "" {
		name = anyBranchPattern.FindString(text)
	}
	if name == "" {
		p.logger.Warn("result item without branch name", nil)
		return models.HoldingRecord{}, false
	}

	branch, ok := scrape.ResolveBranch(p.registry, name, p.logger)
	if !ok {
		return models.HoldingRecord{}, false
	}

	status := itemStatus(item, text)
	h := models.NewHolding(branch, status)
	if m := callNumberPattern.FindStringSubmatch(text); m != nil {
		h.CallNumber = m[1]
	}
	h.ShelfLocation = shelfLocation(text)
	if status == models.OnLoan {
		h.DueDate = textutil.DueDatePtr(text)
	}
	return h, true
}

func (p *Parser) segmentHoldings(doc *goquery.Document) []models.HoldingRecord {
	segments := scrape.FindBranchSegments(scrape.BlockText(doc.Find("body")))
	holdings := make([]models.HoldingRecord, 0, len(segments))
	for _, seg := range segments {
		branch, ok := scrape.ResolveBranch(p.registry, seg.Name, p.logger)
		if !ok {
			continue
		}
		holdings = append(holdings, models.NewHolding(branch, textutil.ClassifyAvailability(seg.Status)))
	}
	return holdings
}

// itemStatus reads the status marker class. Without one it falls back to the
// marker text, then the whole item text.
func itemStatus(item *goquery.Selection, text string) models.Availability {
	status := item.Find(".status")
	if status.Length() == 0 {
		return statusFromText(text)
	}

	marker := status.Find("strong")
	switch {
	case marker.HasClass("okRent"):
		return models.Available
	case marker.HasClass("noRentIng"):
		return models.OnLoan
	case marker.HasClass("noRentLoan"):
		return models.Unavailable // interlibrary loan only
	}
	return statusFromText(scrape.Text(status))
}

func statusFromText(text string) models.Availability {
	switch {
	case strings.Contains(text, "대출가능"):
		return models.Available
	case strings.Contains(text, "대출중"):
		return models.OnLoan
	default:
		return models.Unavailable
	}
}

func shelfLocation(text string) string {
	if m := locationPattern.FindStringSubmatch(text); m != nil {
		if loc := strings.TrimSpace(m[1]); loc != "" {
			return loc
		}
	}
	return roomPattern.FindString(text)
}

func (p *Parser) coverURL(src string) string {
	src = strings.TrimSpace(src)
	if src == "" || strings.Contains(src, "noimg") {
		return ""
	}
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		return src
	}
	if strings.HasPrefix(src, "//") {
		return "https:" + src
	}
	if !strings.HasPrefix(src, "/") {
		src = "/" + src
	}
	return p.origin + src
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
