// internal/workers/scraping/songpa-unified/config.go
package songpaunified

import (
	"time"

	"book-availability/internal/common/config"
)

type Config struct {
	BaseURL string
	Timeout time.Duration
}

func LoadConfig(cfg *config.Config) *Config {
	wcfg := config.GetWorkerConfig(cfg, TaskType)
	return &Config{
		BaseURL: cfg.Sources.SongpaUnified.BaseURL,
		Timeout: config.GetDuration(wcfg.Timeout),
	}
}
