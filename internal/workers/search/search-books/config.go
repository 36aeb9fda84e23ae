// internal/workers/search/search-books/config.go
package searchbooks

import (
	"time"

	"book-availability/internal/common/config"
)

type Config struct {
	Timeout time.Duration
}

func LoadConfig(cfg *config.Config) *Config {
	wcfg := config.GetWorkerConfig(cfg, TaskType)
	return &Config{Timeout: config.GetDuration(wcfg.Timeout)}
}
