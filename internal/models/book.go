// internal/models/book.go
package models

import (
	"errors"

	"book-availability/internal/common/validation"
	"book-availability/pkg/registry"
)

var ErrInvalidQuery = errors.New("INVALID_QUERY")

// SearchQuery is a sanitized caller query. Build it with NewSearchQuery.
type SearchQuery struct {
	Title     string `json:"title,omitempty"`
	Author    string `json:"author,omitempty"`
	Publisher string `json:"publisher,omitempty"`
}

func NewSearchQuery(title, author, publisher string) (SearchQuery, error) {
	q := SearchQuery{
		Title:     validation.Sanitize(title),
		Author:    validation.Sanitize(author),
		Publisher: validation.Sanitize(publisher),
	}
	if q.IsEmpty() {
		return SearchQuery{}, ErrInvalidQuery
	}
	return q, nil
}

func (q SearchQuery) IsEmpty() bool {
	return q.Title == "" && q.Author == "" && q.Publisher == ""
}

// Fields returns the non-empty fields in title, author, publisher order.
func (q SearchQuery) Fields() []string {
	out := make([]string, 0, 3)
	for _, f := range []string{q.Title, q.Author, q.Publisher} {
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

type BookRecord struct {
	Title       string `json:"title"`
	Author      string `json:"author"`
	Publisher   string `json:"publisher"`
	Year        string `json:"year"`
	ISBN        string `json:"isbn"`
	CoverURL    string `json:"coverUrl"`
	Description string `json:"description"`
}

type Availability string

const (
	Available     Availability = "available"
	OnLoan        Availability = "on-loan"
	InLibraryOnly Availability = "in-library-only"
	Unavailable   Availability = "unavailable"
)

// HoldingRecord is one branch's state for the queried book.
type HoldingRecord struct {
	BranchID      string              `json:"libraryId"`
	BranchName    string              `json:"libraryName"`
	BranchType    registry.BranchType `json:"libraryType"`
	HasBook       bool                `json:"hasBook"`
	IsAvailable   bool                `json:"isAvailable"`
	Availability  Availability        `json:"status"`
	DueDate       *string             `json:"dueDate"`
	ShelfLocation string              `json:"location,omitempty"`
	CallNumber    string              `json:"callNumber,omitempty"`
}

func NewHolding(branch registry.Branch, status Availability) HoldingRecord {
	return HoldingRecord{
		BranchID:     branch.ID,
		BranchName:   branch.Name,
		BranchType:   branch.Type,
		HasBook:      true,
		IsAvailable:  status == Available,
		Availability: status,
	}
}

// SourceResult is what one catalog contributes to a query. A nil Book means
// the source had no match, which is not an error.
type SourceResult struct {
	Source   string          `json:"source"`
	Book     *BookRecord     `json:"book"`
	Holdings []HoldingRecord `json:"holdings"`
}

func NoMatch(source string) SourceResult {
	return SourceResult{Source: source, Holdings: []HoldingRecord{}}
}

func (r SourceResult) Matched() bool {
	return r.Book != nil
}

// AggregatedResult is the response contract for a search.
type AggregatedResult struct {
	Book     BookRecord      `json:"book"`
	Holdings []HoldingRecord `json:"holdings"`
}
