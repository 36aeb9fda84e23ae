// internal/models/ratelimit.go
package models

import "time"

type RateDecision struct {
	Allowed   bool      `json:"allowed"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"resetAt"`
}
