// internal/workers/scraping/education-lib/models.go
package educationlib

import "book-availability/internal/models"

type Input struct {
	Title     string `json:"title"`
	Author    string `json:"author"`
	Publisher string `json:"publisher"`
}

func (i Input) Query() (models.SearchQuery, error) {
	return models.NewSearchQuery(i.Title, i.Author, i.Publisher)
}

type Output struct {
	EducationLib models.SourceResult `json:"educationLib"`
}
