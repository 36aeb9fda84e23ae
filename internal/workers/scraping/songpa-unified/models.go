// internal/workers/scraping/songpa-unified/models.go
package songpaunified

import "book-availability/internal/models"

type Input struct {
	Title     string `json:"title"`
	Author    string `json:"author"`
	Publisher string `json:"publisher"`
}

func (i Input) Query() (models.SearchQuery, error) {
	return models.NewSearchQuery(i.Title, i.Author, i.Publisher)
}

// Output is published under its own variable so it can sit next to the other
// source's result in one process instance.
type Output struct {
	SongpaUnified models.SourceResult `json:"songpaUnified"`
}
