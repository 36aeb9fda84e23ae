// internal/common/config/config.go
package config

// Config is the main application configuration struct.
type Config struct {
	App       AppConfig               `mapstructure:"app"`
	Server    ServerConfig            `mapstructure:"server"`
	Camunda   CamundaConfig           `mapstructure:"camunda"`
	Database  DatabaseConfig          `mapstructure:"database"`
	Workers   map[string]WorkerConfig `mapstructure:"workers"`
	Logging   LoggingConfig           `mapstructure:"logging"`
	Fetch     FetchConfig             `mapstructure:"fetch"`
	Sources   SourcesConfig           `mapstructure:"sources"`
	Cache     CacheConfig             `mapstructure:"cache"`
	RateLimit RateLimitConfig         `mapstructure:"rate_limit"`
	Registry  RegistryConfig          `mapstructure:"registry"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Address        string `mapstructure:"address"`
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type CamundaConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Redis RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// FetchConfig controls the upstream HTTP client shared by both scrapers.
type FetchConfig struct {
	Timeout     int    `mapstructure:"timeout"` // milliseconds, per attempt
	MaxAttempts int    `mapstructure:"max_attempts"`
	BackoffUnit int    `mapstructure:"backoff_unit"` // milliseconds
	UserAgent   string `mapstructure:"user_agent"`
}

type SourceConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	BaseURL string `mapstructure:"base_url"`
}

type SourcesConfig struct {
	SongpaUnified SourceConfig `mapstructure:"songpa_unified"`
	Education     SourceConfig `mapstructure:"education"`
}

// CacheConfig holds the TTL tiers in seconds.
type CacheConfig struct {
	SearchTTL  int `mapstructure:"search_ttl"`
	LibraryTTL int `mapstructure:"library_ttl"`
	BookTTL    int `mapstructure:"book_ttl"`
}

type RateLimitConfig struct {
	Limit  int    `mapstructure:"limit"`
	Window int    `mapstructure:"window"` // milliseconds
	Prefix string `mapstructure:"prefix"`
}

// RegistryConfig points at an optional branch registry file. Empty means the
// embedded default registry.
type RegistryConfig struct {
	Path string `mapstructure:"path"`
}
