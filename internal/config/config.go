package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v2"
)

type ServerConfig struct {
	Port           string   `yaml:"port"`
	Environment    string   `yaml:"environment"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	PublicBaseURL  string   `yaml:"public_base_url"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

type DBConfig struct {
	Driver      string `yaml:"driver"` // mongo, memory
	Connection  string `yaml:"connection"`
	Database    string `yaml:"database"`
	Collections struct {
		Medicines string `yaml:"medicines"`
	} `yaml:"collections"`
}

type StorageConfig struct {
	Driver string `yaml:"driver"` // gridfs, memory
	Bucket string `yaml:"bucket"`
	// Public URLs are PublicBaseURL + "/" + object path.
	PublicBaseURL string `yaml:"public_base_url"`
}

type LogicConfig struct {
	DelayMS          int    `yaml:"delay_ms"`
	TimeoutSec       int    `yaml:"timeout_sec"`
	MaxRetries       int    `yaml:"max_retries"`
	RetryBaseDelayMS int    `yaml:"retry_base_delay_ms"`
	UserAgent        string `yaml:"user_agent"`
	RobotsAgent      string `yaml:"robots_agent"`
	MaxBodyBytes     int64  `yaml:"max_body_bytes"`
	FuzzyCandidates  int    `yaml:"fuzzy_candidates"`
}

type TrustConfig struct {
	Allowlist []string `yaml:"allowlist"`
}

type FirecrawlConfig struct {
	APIKey          string  `yaml:"api_key"`
	BaseURL         string  `yaml:"base_url"`
	PollIntervalMS  int     `yaml:"poll_interval_ms"`
	MaxPollAttempts int     `yaml:"max_poll_attempts"`
	RequestsPerSec  float64 `yaml:"requests_per_sec"`
	ScrapeFallback  bool    `yaml:"scrape_fallback"`
}

type SeedConfig struct {
	Category string `yaml:"category"`
	URL      string `yaml:"url"`
	OTC      bool   `yaml:"otc"`
}

type CrawlConfig struct {
	RootURL         string       `yaml:"root_url"`
	IncludePaths    []string     `yaml:"include_paths"`
	Seeds           []SeedConfig `yaml:"seeds"`
	ProductPatterns []string     `yaml:"product_patterns"`
	FollowPatterns  []string     `yaml:"follow_patterns"`
	ExcludePatterns []string     `yaml:"exclude_patterns"`
	MaxLinksPerPage int          `yaml:"max_links_per_page"`
	IgnoreRobots    bool         `yaml:"ignore_robots"`
}

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	DB        DBConfig        `yaml:"db"`
	Storage   StorageConfig   `yaml:"storage"`
	Logic     LogicConfig     `yaml:"logic"`
	Trust     TrustConfig     `yaml:"trust"`
	Firecrawl FirecrawlConfig `yaml:"firecrawl"`
	Crawl     CrawlConfig     `yaml:"crawl"`
}

const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// LoadConfig reads a YAML file, expanding ${VAR} references from the
// environment before decoding, and fills in defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Default returns a configuration that runs entirely in memory.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

func (c *Config) ApplyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Server.Environment == "" {
		c.Server.Environment = "development"
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"*"}
	}
	if c.Server.PublicBaseURL == "" {
		c.Server.PublicBaseURL = "http://localhost:" + c.Server.Port
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}

	if c.DB.Driver == "" {
		c.DB.Driver = "memory"
	}
	if c.DB.Database == "" {
		c.DB.Database = "pharmacy"
	}
	if c.DB.Collections.Medicines == "" {
		c.DB.Collections.Medicines = "medicines"
	}

	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.Storage.Bucket == "" {
		c.Storage.Bucket = "medicine_assets"
	}
	if c.Storage.PublicBaseURL == "" {
		c.Storage.PublicBaseURL = c.Server.PublicBaseURL + "/storage"
	}

	if c.Logic.DelayMS == 0 {
		c.Logic.DelayMS = 1000
	}
	if c.Logic.TimeoutSec == 0 {
		c.Logic.TimeoutSec = 30
	}
	if c.Logic.MaxRetries == 0 {
		c.Logic.MaxRetries = 3
	}
	if c.Logic.RetryBaseDelayMS == 0 {
		c.Logic.RetryBaseDelayMS = 1000
	}
	if c.Logic.UserAgent == "" {
		c.Logic.UserAgent = DefaultUserAgent
	}
	if c.Logic.RobotsAgent == "" {
		c.Logic.RobotsAgent = "MedicineImporter"
	}
	if c.Logic.MaxBodyBytes == 0 {
		c.Logic.MaxBodyBytes = 5 * 1024 * 1024
	}
	if c.Logic.FuzzyCandidates == 0 {
		c.Logic.FuzzyCandidates = 50
	}

	if c.Firecrawl.BaseURL == "" {
		c.Firecrawl.BaseURL = "https://api.firecrawl.dev"
	}
	if c.Firecrawl.PollIntervalMS == 0 {
		c.Firecrawl.PollIntervalMS = 5000
	}
	if c.Firecrawl.MaxPollAttempts == 0 {
		c.Firecrawl.MaxPollAttempts = 24
	}
	if c.Firecrawl.RequestsPerSec == 0 {
		c.Firecrawl.RequestsPerSec = 1
	}

	if c.Crawl.RootURL == "" {
		c.Crawl.RootURL = "https://www.1mg.com/drugs-all-medicines"
	}
	if len(c.Crawl.IncludePaths) == 0 {
		c.Crawl.IncludePaths = []string{"/drugs/.*", "/otc/.*", "/drugs-all-medicines.*"}
	}
	if len(c.Crawl.Seeds) == 0 {
		c.Crawl.Seeds = DefaultSeeds()
	}
	if len(c.Crawl.ProductPatterns) == 0 {
		c.Crawl.ProductPatterns = []string{
			`^https?://(www\.)?1mg\.com/drugs/[a-z0-9-]+-\d+$`,
			`^https?://(www\.)?1mg\.com/otc/[a-z0-9-]+-otc\d+$`,
		}
	}
	if len(c.Crawl.FollowPatterns) == 0 {
		c.Crawl.FollowPatterns = []string{
			`/drugs-all-medicines\?(.*&)?(label|page)=`,
			`/categories/[a-z0-9-]+`,
			`[?&]page=\d+`,
		}
	}
	if c.Crawl.MaxLinksPerPage == 0 {
		c.Crawl.MaxLinksPerPage = 20
	}
}

func DefaultSeeds() []SeedConfig {
	return []SeedConfig{
		{Category: "all", URL: "https://www.1mg.com/drugs-all-medicines"},
		{Category: "popular", URL: "https://www.1mg.com/drugs-all-medicines?label=a"},
		{Category: "popular", URL: "https://www.1mg.com/drugs-all-medicines?label=p"},
		{Category: "diabetes", URL: "https://www.1mg.com/categories/diabetes-1"},
		{Category: "cardiac", URL: "https://www.1mg.com/categories/cardiac-care-4"},
		{Category: "pain-relief", URL: "https://www.1mg.com/categories/pain-relief-3", OTC: true},
		{Category: "vitamins", URL: "https://www.1mg.com/categories/vitamins-nutrition-27", OTC: true},
		{Category: "skin-care", URL: "https://www.1mg.com/categories/skin-care-2", OTC: true},
	}
}

func (c *Config) Validate() error {
	switch c.DB.Driver {
	case "mongo":
		if c.DB.Connection == "" {
			return fmt.Errorf("db.connection is required for the mongo driver")
		}
	case "memory":
	default:
		return fmt.Errorf("db.driver must be 'mongo' or 'memory', got: %s", c.DB.Driver)
	}
	switch c.Storage.Driver {
	case "gridfs":
		if c.DB.Connection == "" {
			return fmt.Errorf("db.connection is required for the gridfs storage driver")
		}
	case "memory":
	default:
		return fmt.Errorf("storage.driver must be 'gridfs' or 'memory', got: %s", c.Storage.Driver)
	}
	for _, group := range [][]string{c.Crawl.ProductPatterns, c.Crawl.FollowPatterns, c.Crawl.ExcludePatterns} {
		for _, p := range group {
			if _, err := regexp.Compile(p); err != nil {
				return fmt.Errorf("bad crawl pattern %q: %w", p, err)
			}
		}
	}
	return nil
}

func (l LogicConfig) Delay() time.Duration { return time.Duration(l.DelayMS) * time.Millisecond }

func (l LogicConfig) Timeout() time.Duration { return time.Duration(l.TimeoutSec) * time.Second }

func (l LogicConfig) RetryBaseDelay() time.Duration {
	return time.Duration(l.RetryBaseDelayMS) * time.Millisecond
}

func (f FirecrawlConfig) Enabled() bool { return f.APIKey != "" }

func (f FirecrawlConfig) PollInterval() time.Duration {
	return time.Duration(f.PollIntervalMS) * time.Millisecond
}
