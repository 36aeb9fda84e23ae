// internal/workers/scraping/education-lib/config.go
package educationlib

import (
	"time"

	"book-availability/internal/common/config"
)

type Config struct {
	BaseURL  string
	Timeout  time.Duration
	BranchID string
}

func LoadConfig(cfg *config.Config) *Config {
	wcfg := config.GetWorkerConfig(cfg, TaskType)
	return &Config{
		BaseURL:  cfg.Sources.Education.BaseURL,
		Timeout:  config.GetDuration(wcfg.Timeout),
		BranchID: DefaultBranchID,
	}
}
