package config

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for marketmood.
type Config struct {
	Server       Server       `yaml:"server"`
	Storage      Storage      `yaml:"storage"`
	Logging      Logging      `yaml:"logging"`
	Provider     Provider     `yaml:"provider"`
	Alpaca       Alpaca       `yaml:"alpaca"`
	Classifier   Classifier   `yaml:"classifier"`
	News         News         `yaml:"news"`
	Fundamentals Fundamentals `yaml:"fundamentals"`
	Tickers      []string     `yaml:"tickers"`
}

// Server holds network listener configuration.
type Server struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Storage holds paths for data persistence.
type Storage struct {
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Provider selects and tunes the market-data source.
type Provider struct {
	Name        string `yaml:"name"`     // "yahoo" or "alpaca"
	BaseURL     string `yaml:"base_url"` // Yahoo query host, overridable for tests
	NewsURL     string `yaml:"news_url"` // Yahoo RSS host
	UserAgent   string `yaml:"user_agent"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	RatePerMin  int    `yaml:"rate_per_min"` // 0 disables request pacing
}

// Alpaca holds credentials for the Alpaca market-data API.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	BaseURL   string `yaml:"base_url"`
	Feed      string `yaml:"feed"`
}

// Classifier configures the sentiment classifier.
type Classifier struct {
	Kind        string `yaml:"kind"` // "server" (HTTP inference) or "lexicon" (offline)
	BaseURL     string `yaml:"base_url"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// News bounds the article count for an analysis run. The pipeline itself
// accepts any non-negative limit; these bounds apply to user-facing
// surfaces.
type News struct {
	MinArticles     int `yaml:"min_articles"`
	MaxArticles     int `yaml:"max_articles"`
	DefaultArticles int `yaml:"default_articles"`
}

// Fundamentals tunes the tier decision for the fundamentals fetch.
type Fundamentals struct {
	// MinFullFields is the minimum count of populated numeric fields a
	// full-fidelity result needs; sparser results fall through to the
	// reduced call.
	MinFullFields int `yaml:"min_full_fields"`
}

// ---------------------------------------------------------------------------
// Defaults and loading
// ---------------------------------------------------------------------------

// Default returns a Config with workable defaults for every section.
func Default() *Config {
	return &Config{
		Server:  Server{Host: "", Port: 8080},
		Storage: Storage{DataDir: "data", SQLitePath: "data/marketmood.db"},
		Logging: Logging{Level: "info", Format: "text"},
		Provider: Provider{
			Name:        "yahoo",
			BaseURL:     "https://query1.finance.yahoo.com",
			NewsURL:     "https://feeds.finance.yahoo.com",
			UserAgent:   "Mozilla/5.0",
			TimeoutSecs: 10,
			RatePerMin:  120,
		},
		Classifier: Classifier{
			Kind:        "server",
			BaseURL:     "http://127.0.0.1:8000",
			Model:       "ProsusAI/finbert",
			TimeoutSecs: 30,
		},
		News:         News{MinArticles: 5, MaxArticles: 50, DefaultArticles: 15},
		Fundamentals: Fundamentals{MinFullFields: 4},
		Tickers: []string{
			"AAPL", "AMD", "AMZN", "AVGO", "BRK-B", "COST", "GOOGL", "HD",
			"JPM", "LLY", "MA", "META", "MSFT", "NFLX", "NVDA", "PG",
			"TSLA", "UNH", "V", "XOM",
		},
	}
}

// Load reads the YAML configuration file at the given path over the
// defaults, then applies environment variable overrides and validates.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)
	sort.Strings(cfg.Tickers)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides checks well-known environment variables and overrides
// the corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("CLASSIFIER_URL"); v != "" {
		cfg.Classifier.BaseURL = v
		cfg.Classifier.Kind = "server"
	}

	// Canonical Alpaca env vars used by the SDK.
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
}

// Validate rejects configurations the binaries cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	switch c.Provider.Name {
	case "yahoo", "alpaca":
	default:
		return fmt.Errorf("provider.name %q not supported (yahoo, alpaca)", c.Provider.Name)
	}
	switch c.Classifier.Kind {
	case "server", "lexicon":
	default:
		return fmt.Errorf("classifier.kind %q not supported (server, lexicon)", c.Classifier.Kind)
	}
	if c.News.MinArticles < 0 || c.News.MaxArticles < c.News.MinArticles {
		return fmt.Errorf("news bounds invalid: min %d, max %d", c.News.MinArticles, c.News.MaxArticles)
	}
	if c.News.DefaultArticles < c.News.MinArticles || c.News.DefaultArticles > c.News.MaxArticles {
		return fmt.Errorf("news.default_articles %d outside [%d,%d]",
			c.News.DefaultArticles, c.News.MinArticles, c.News.MaxArticles)
	}
	if c.Fundamentals.MinFullFields < 1 {
		return fmt.Errorf("fundamentals.min_full_fields must be >= 1, got %d", c.Fundamentals.MinFullFields)
	}
	return nil
}

// ClampArticles bounds a requested article count to the configured range.
func (c *Config) ClampArticles(n int) int {
	if n < c.News.MinArticles {
		return c.News.MinArticles
	}
	if n > c.News.MaxArticles {
		return c.News.MaxArticles
	}
	return n
}
