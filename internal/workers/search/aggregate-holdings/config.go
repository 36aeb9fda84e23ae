// internal/workers/search/aggregate-holdings/config.go
package aggregateholdings

import (
	"time"

	"book-availability/internal/common/config"
)

// Config bounds one aggregation. Timeout caps both scrapes including their
// retries and backoff.
type Config struct {
	Timeout time.Duration
}

func LoadConfig(cfg *config.Config) *Config {
	wcfg := config.GetWorkerConfig(cfg, TaskType)
	return &Config{Timeout: config.GetDuration(wcfg.Timeout)}
}
