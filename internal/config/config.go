package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds service configuration loaded from YAML, .env and the environment.
type Config struct {
	TestingMode bool

	ServerPort     string
	RequestTimeout time.Duration

	CompletionProvider  string // "gemini", "anthropic" or "openai"
	CompletionModel     string
	CompletionAPIKey    string
	CompletionBaseURL   string
	CompletionTimeout   time.Duration
	CompletionMaxTokens int

	BreakerEnabled          bool
	BreakerFailureThreshold int
	BreakerSuccessThreshold int
	BreakerTimeout          time.Duration

	NewsConverterURL string
	NewsFeedURL      string
	NewsAPIKey       string
	NewsTimeout      time.Duration
	NewsMaxItems     int

	CacheBackend string        // "in_memory" or "memcached"
	CacheTTL     time.Duration // 0 disables caching

	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int

	CoalesceEnabled bool
	CoalesceTimeout time.Duration

	PreferencesBackend string // "in_memory", "redis" or "sqlite"
	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	RedisKeyPrefix     string
	SQLitePath         string

	RateLimitRPS   int
	RateLimitBurst int

	ShutdownTimeout       time.Duration
	InFlightTimeout       time.Duration
	InFlightCheckInterval time.Duration

	DegradedWindow   time.Duration
	DegradedErrorPct int

	PrefetchLocations []string
	PrefetchInterval  time.Duration

	LocationMinLength int
	LocationMaxLength int
	MaxSymbols        int

	TrackedLocations []string
}

type fileConfig struct {
	TestingMode *bool `yaml:"testing_mode"`

	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Request struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"request"`

	Completion struct {
		Provider  string `yaml:"provider"`
		Model     string `yaml:"model"`
		BaseURL   string `yaml:"base_url"`
		Timeout   string `yaml:"timeout"`
		MaxTokens int    `yaml:"max_tokens"`
	} `yaml:"completion"`

	CircuitBreaker struct {
		Enabled          *bool  `yaml:"enabled"`
		FailureThreshold int    `yaml:"failure_threshold"`
		SuccessThreshold int    `yaml:"success_threshold"`
		Timeout          string `yaml:"timeout"`
	} `yaml:"circuit_breaker"`

	News struct {
		ConverterURL string `yaml:"converter_url"`
		FeedURL      string `yaml:"feed_url"`
		Timeout      string `yaml:"timeout"`
		MaxItems     int    `yaml:"max_items"`
	} `yaml:"news"`

	Cache struct {
		Backend   string `yaml:"backend"`
		TTL       string `yaml:"ttl"`
		Memcached struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
	} `yaml:"cache"`

	Coalesce struct {
		Enabled bool   `yaml:"enabled"`
		Timeout string `yaml:"timeout"`
	} `yaml:"coalesce"`

	Preferences struct {
		Backend        string `yaml:"backend"`
		RedisAddr      string `yaml:"redis_addr"`
		RedisDB        int    `yaml:"redis_db"`
		RedisKeyPrefix string `yaml:"redis_key_prefix"`
		SQLitePath     string `yaml:"sqlite_path"`
	} `yaml:"preferences"`

	Reliability struct {
		RateLimitRPS   int `yaml:"rate_limit_rps"`
		RateLimitBurst int `yaml:"rate_limit_burst"`
	} `yaml:"reliability"`

	Shutdown struct {
		Timeout               string `yaml:"timeout"`
		InFlightTimeout       string `yaml:"in_flight_timeout"`
		InFlightCheckInterval string `yaml:"in_flight_check_interval"`
	} `yaml:"shutdown"`

	Lifecycle struct {
		DegradedWindow   string `yaml:"degraded_window"`
		DegradedErrorPct int    `yaml:"degraded_error_pct"`
	} `yaml:"lifecycle"`

	Prefetch struct {
		Locations []string `yaml:"locations"`
		Interval  string   `yaml:"interval"`
	} `yaml:"prefetch"`

	Validation struct {
		LocationMinLength int `yaml:"location_min_length"`
		LocationMaxLength int `yaml:"location_max_length"`
		MaxSymbols        int `yaml:"max_symbols"`
	} `yaml:"validation"`

	Metrics struct {
		TrackedLocations []string `yaml:"tracked_locations"`
	} `yaml:"metrics"`
}

type secretsFile struct {
	GeminiAPIKey    string `yaml:"gemini_api_key"`
	AnthropicAPIKey string `yaml:"anthropic_api_key"`
	OpenAIAPIKey    string `yaml:"openai_api_key"`
	RSS2JSONAPIKey  string `yaml:"rss2json_api_key"`
	RedisPassword   string `yaml:"redis_password"`
}

// apiKeyEnv maps each provider to its key variable and secrets.yaml field.
var apiKeyEnv = map[string]struct {
	env    string
	secret func(secretsFile) string
}{
	"gemini":    {"GEMINI_API_KEY", func(s secretsFile) string { return s.GeminiAPIKey }},
	"anthropic": {"ANTHROPIC_API_KEY", func(s secretsFile) string { return s.AnthropicAPIKey }},
	"openai":    {"OPENAI_API_KEY", func(s secretsFile) string { return s.OpenAIAPIKey }},
}

// Load reads configuration from config/{ENV_NAME}.yaml (default dev) and config/secrets.yaml.
// A .env file in the working directory is loaded first; variables already set win.
// Secrets come from env or the secrets file, env first. Call from project root.
func Load() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	dotenv := filepath.Join(cwd, ".env")
	if _, err := os.Stat(dotenv); err == nil {
		if err := godotenv.Load(dotenv); err != nil {
			return nil, fmt.Errorf("parse .env file: %w", err)
		}
	}

	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}
	configPath := filepath.Join(cwd, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	sec, err := loadSecrets(filepath.Join(cwd, "config", "secrets.yaml"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if fc.TestingMode != nil {
		cfg.TestingMode = *fc.TestingMode
	}

	cfg.ServerPort = fc.Server.Port
	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}
	cfg.RequestTimeout = parseDuration(fc.Request.Timeout, 25*time.Second)

	cfg.CompletionProvider = envOr("COMPLETION_PROVIDER", fc.Completion.Provider, "gemini")
	cfg.CompletionModel = strings.TrimSpace(fc.Completion.Model)
	cfg.CompletionBaseURL = strings.TrimSpace(fc.Completion.BaseURL)
	cfg.CompletionTimeout = parseDurationOrZero(fc.Completion.Timeout, 20*time.Second)
	cfg.CompletionMaxTokens = fc.Completion.MaxTokens
	if cfg.CompletionMaxTokens <= 0 {
		cfg.CompletionMaxTokens = 2048
	}
	if keys, ok := apiKeyEnv[cfg.CompletionProvider]; ok {
		cfg.CompletionAPIKey = os.Getenv(keys.env)
		if cfg.CompletionAPIKey == "" {
			cfg.CompletionAPIKey = keys.secret(sec)
		}
		if cfg.CompletionAPIKey == "" {
			return nil, fmt.Errorf("%s required (set env or config/secrets.yaml %s)",
				keys.env, strings.ToLower(keys.env))
		}
	}

	cfg.BreakerEnabled = true
	if fc.CircuitBreaker.Enabled != nil {
		cfg.BreakerEnabled = *fc.CircuitBreaker.Enabled
	}
	cfg.BreakerFailureThreshold = fc.CircuitBreaker.FailureThreshold
	if cfg.BreakerFailureThreshold <= 0 {
		cfg.BreakerFailureThreshold = 5
	}
	cfg.BreakerSuccessThreshold = fc.CircuitBreaker.SuccessThreshold
	if cfg.BreakerSuccessThreshold <= 0 {
		cfg.BreakerSuccessThreshold = 1
	}
	cfg.BreakerTimeout = parseDuration(fc.CircuitBreaker.Timeout, 30*time.Second)

	cfg.NewsConverterURL = strings.TrimSpace(fc.News.ConverterURL)
	cfg.NewsFeedURL = strings.TrimSpace(fc.News.FeedURL)
	cfg.NewsTimeout = parseDuration(fc.News.Timeout, 5*time.Second)
	cfg.NewsMaxItems = fc.News.MaxItems
	cfg.NewsAPIKey = os.Getenv("RSS2JSON_API_KEY")
	if cfg.NewsAPIKey == "" {
		cfg.NewsAPIKey = sec.RSS2JSONAPIKey
	}

	cfg.CacheBackend = envOr("CACHE_BACKEND", fc.Cache.Backend, "in_memory")
	cfg.CacheTTL = parseDurationOrZero(fc.Cache.TTL, 0)
	if cfg.CacheTTL < 0 {
		cfg.CacheTTL = 0
	}
	cfg.MemcachedAddrs = strings.TrimSpace(os.Getenv("MEMCACHED_ADDRS"))
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = strings.TrimSpace(fc.Cache.Memcached.Addrs)
	}
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = "localhost:11211"
	}
	cfg.MemcachedTimeout = parseDuration(fc.Cache.Memcached.Timeout, 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = fc.Cache.Memcached.MaxIdleConns
	if cfg.MemcachedMaxIdleConns <= 0 {
		cfg.MemcachedMaxIdleConns = 2
	}

	cfg.CoalesceEnabled = fc.Coalesce.Enabled
	cfg.CoalesceTimeout = parseDurationOrZero(fc.Coalesce.Timeout, 0)

	cfg.PreferencesBackend = envOr("PREFERENCES_BACKEND", fc.Preferences.Backend, "in_memory")
	cfg.RedisAddr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if cfg.RedisAddr == "" {
		cfg.RedisAddr = strings.TrimSpace(fc.Preferences.RedisAddr)
	}
	if cfg.RedisAddr == "" {
		cfg.RedisAddr = "localhost:6379"
	}
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	if cfg.RedisPassword == "" {
		cfg.RedisPassword = sec.RedisPassword
	}
	cfg.RedisDB = fc.Preferences.RedisDB
	cfg.RedisKeyPrefix = fc.Preferences.RedisKeyPrefix
	cfg.SQLitePath = strings.TrimSpace(fc.Preferences.SQLitePath)
	if cfg.SQLitePath == "" {
		cfg.SQLitePath = filepath.Join("data", "preferences.db")
	}

	cfg.RateLimitRPS = fc.Reliability.RateLimitRPS
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 20
	}
	cfg.RateLimitBurst = fc.Reliability.RateLimitBurst
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 40
	}

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)
	cfg.InFlightTimeout = parseDuration(fc.Shutdown.InFlightTimeout, 25*time.Second)
	cfg.InFlightCheckInterval = parseDuration(fc.Shutdown.InFlightCheckInterval, 100*time.Millisecond)

	cfg.DegradedWindow = parseDuration(fc.Lifecycle.DegradedWindow, 60*time.Second)
	cfg.DegradedErrorPct = fc.Lifecycle.DegradedErrorPct
	if cfg.DegradedErrorPct <= 0 {
		cfg.DegradedErrorPct = 50
	}

	cfg.PrefetchLocations = fc.Prefetch.Locations
	cfg.PrefetchInterval = parseDuration(fc.Prefetch.Interval, 10*time.Minute)

	cfg.LocationMinLength = fc.Validation.LocationMinLength
	if cfg.LocationMinLength <= 0 {
		cfg.LocationMinLength = 1
	}
	cfg.LocationMaxLength = fc.Validation.LocationMaxLength
	if cfg.LocationMaxLength <= 0 {
		cfg.LocationMaxLength = 100
	}
	cfg.MaxSymbols = fc.Validation.MaxSymbols
	if cfg.MaxSymbols <= 0 {
		cfg.MaxSymbols = 20
	}

	cfg.TrackedLocations = fc.Metrics.TrackedLocations

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadSecrets(path string) (secretsFile, error) {
	var sec secretsFile
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return sec, nil
		}
		return sec, fmt.Errorf("read secrets file: %w", err)
	}
	if err := yaml.Unmarshal(data, &sec); err != nil {
		return sec, fmt.Errorf("parse secrets file: %w", err)
	}
	return sec, nil
}

// envOr returns the lower-cased env value, else the file value, else def.
func envOr(envName, fileVal, def string) string {
	if v := strings.TrimSpace(strings.ToLower(os.Getenv(envName))); v != "" {
		return v
	}
	if v := strings.TrimSpace(strings.ToLower(fileVal)); v != "" {
		return v
	}
	return def
}

// parseDuration parses a duration string and returns defaultVal if parsing fails or result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero parses a duration string, returning defaultVal on empty string or parse error.
// Zero or negative durations are returned as-is.
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

// validate performs post-load validation. RequestTimeout is raised above
// CompletionTimeout and InFlightTimeout is capped below ShutdownTimeout.
func validate(cfg *Config) error {
	switch cfg.CompletionProvider {
	case "gemini", "anthropic", "openai":
	default:
		return fmt.Errorf("completion.provider must be gemini, anthropic or openai, got %q", cfg.CompletionProvider)
	}
	if cfg.CompletionTimeout <= 0 {
		return fmt.Errorf("COMPLETION_TIMEOUT must be positive")
	}
	if cfg.RequestTimeout <= cfg.CompletionTimeout {
		cfg.RequestTimeout = cfg.CompletionTimeout + time.Second
	}
	if cfg.InFlightTimeout >= cfg.ShutdownTimeout {
		cfg.InFlightTimeout = cfg.ShutdownTimeout - time.Second
		if cfg.InFlightTimeout <= 0 {
			cfg.InFlightTimeout = cfg.ShutdownTimeout / 2
		}
	}
	switch cfg.CacheBackend {
	case "in_memory", "memcached":
	default:
		return fmt.Errorf("cache.backend must be in_memory or memcached, got %q", cfg.CacheBackend)
	}
	switch cfg.PreferencesBackend {
	case "in_memory", "redis", "sqlite":
	default:
		return fmt.Errorf("preferences.backend must be in_memory, redis or sqlite, got %q", cfg.PreferencesBackend)
	}
	if cfg.CoalesceEnabled && cfg.CoalesceTimeout <= 0 {
		return fmt.Errorf("coalesce.timeout must be positive when coalescing is enabled")
	}
	if cfg.LocationMinLength > cfg.LocationMaxLength {
		return fmt.Errorf("validation.location_min_length (%d) exceeds location_max_length (%d)",
			cfg.LocationMinLength, cfg.LocationMaxLength)
	}
	return nil
}
