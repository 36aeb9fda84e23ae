// internal/workers/search/search-books/models.go
package searchbooks

import "book-availability/internal/models"

type Outcome string

const (
	OutcomeRejected Outcome = "rejected"
	OutcomeCacheHit Outcome = "cache_hit"
	OutcomeSuccess  Outcome = "success"
	OutcomeNotFound Outcome = "not_found"
	OutcomeInvalid  Outcome = "invalid"
	OutcomeFailed   Outcome = "failed"
)

type Input struct {
	Title     string `json:"title"`
	Author    string `json:"author"`
	Publisher string `json:"publisher"`
	ClientID  string `json:"clientId"`
	RequestID string `json:"requestId"`
}

// Output is filled for every outcome. Result is set only for cache hits and
// successful aggregations.
type Output struct {
	RequestID string                   `json:"requestId"`
	Outcome   Outcome                  `json:"outcome"`
	Result    *models.AggregatedResult `json:"result,omitempty"`
	FromCache bool                     `json:"fromCache"`
	RateLimit models.RateDecision      `json:"rateLimit"`
}
