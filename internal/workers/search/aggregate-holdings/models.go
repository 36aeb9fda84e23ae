// internal/workers/search/aggregate-holdings/models.go
package aggregateholdings

import "book-availability/internal/models"

// Input carries either a query to scrape, or the results of the scrape tasks
// that already ran in the process. When both source results are present the
// handler only merges.
type Input struct {
	Title         string               `json:"title"`
	Author        string               `json:"author"`
	Publisher     string               `json:"publisher"`
	SongpaUnified *models.SourceResult `json:"songpaUnified,omitempty"`
	EducationLib  *models.SourceResult `json:"educationLib,omitempty"`
}

func (i Input) Query() (models.SearchQuery, error) {
	return models.NewSearchQuery(i.Title, i.Author, i.Publisher)
}

func (i Input) HasSourceResults() bool {
	return i.SongpaUnified != nil && i.EducationLib != nil
}

type Output struct {
	Book     models.BookRecord      `json:"book"`
	Holdings []models.HoldingRecord `json:"holdings"`
}
