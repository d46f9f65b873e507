package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cruxstack/email-mx-validator-go/internal/mxcache"
	"github.com/cruxstack/email-mx-validator-go/internal/resolver"
	"github.com/cruxstack/email-mx-validator-go/internal/validator"
)

type Config struct {
	AppLogLevel   slog.Level
	DebugMode     bool
	DebugDataPath string

	MXCheckEnabled         bool
	DisposableCheckEnabled bool
	MXTimeout              time.Duration
	Detailed               bool

	CacheEnabled       bool
	CacheTTL           time.Duration
	CacheMaxSize       int
	CacheSweepInterval time.Duration

	DNSResolver string
	DNSServers  []string
	DNSQPS      float64

	DisposableDomainsPath  string
	DisposableDomainsExtra []string

	SignupPolicyPath string
}

func New() (*Config, error) {
	cfg := Config{
		AppLogLevel:            slog.LevelInfo,
		DebugMode:              os.Getenv("APP_DEBUG_MODE") == "true",
		DebugDataPath:          os.Getenv("APP_DEBUG_DATA_PATH"),
		MXCheckEnabled:         os.Getenv("APP_MX_CHECK_ENABLED") != "false",
		DisposableCheckEnabled: os.Getenv("APP_DISPOSABLE_CHECK_ENABLED") != "false",
		MXTimeout:              validator.DefaultTimeout,
		Detailed:               os.Getenv("APP_DETAILED") == "true",
		CacheEnabled:           os.Getenv("APP_CACHE_ENABLED") != "false",
		CacheTTL:               mxcache.DefaultTTL,
		CacheMaxSize:           mxcache.DefaultMaxSize,
		CacheSweepInterval:     mxcache.DefaultSweepInterval,
		DNSResolver:            resolver.KindSystem,
		DNSServers:             []string{},
		DisposableDomainsPath:  os.Getenv("APP_DISPOSABLE_DOMAINS_PATH"),
		DisposableDomainsExtra: splitList(os.Getenv("APP_DISPOSABLE_DOMAINS_EXTRA")),
		SignupPolicyPath:       os.Getenv("APP_SIGNUP_POLICY_PATH"),
	}

	if levelStr := os.Getenv("APP_LOG_LEVEL"); levelStr != "" {
		var level slog.Level
		if err := level.UnmarshalText([]byte(levelStr)); err == nil {
			cfg.AppLogLevel = level
		} else {
			slog.Warn("invalid APP_LOG_LEVEL, using default", "value", levelStr, "default", cfg.AppLogLevel)
		}
	}

	// an unusable timeout is a hard error rather than a silent default
	if s := os.Getenv("APP_MX_TIMEOUT"); s != "" {
		d, err := validator.ParseTimeout(s)
		if err != nil {
			return nil, fmt.Errorf("APP_MX_TIMEOUT: %w", err)
		}
		cfg.MXTimeout = d
	}

	cfg.CacheTTL = durationEnv("APP_CACHE_TTL", cfg.CacheTTL)
	cfg.CacheSweepInterval = durationEnv("APP_CACHE_SWEEP_INTERVAL", cfg.CacheSweepInterval)

	if s := os.Getenv("APP_CACHE_MAX_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			cfg.CacheMaxSize = n
		} else {
			slog.Warn("invalid APP_CACHE_MAX_SIZE, using default", "value", s, "default", cfg.CacheMaxSize)
		}
	}

	if s := strings.TrimSpace(os.Getenv("APP_DNS_RESOLVER")); s != "" {
		cfg.DNSResolver = strings.ToLower(s)
	}
	if servers := splitList(os.Getenv("APP_DNS_SERVERS")); len(servers) > 0 {
		cfg.DNSServers = servers
	}
	if s := os.Getenv("APP_DNS_QPS"); s != "" {
		if qps, err := strconv.ParseFloat(s, 64); err == nil {
			cfg.DNSQPS = qps
		} else {
			slog.Warn("invalid APP_DNS_QPS, rate limit disabled", "value", s)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that configuration fields are set and valid
func (c *Config) Validate() error {
	if c.MXTimeout < 0 {
		return fmt.Errorf("APP_MX_TIMEOUT: %w", validator.ErrInvalidTimeoutValue)
	}

	if c.DNSResolver != resolver.KindSystem && c.DNSResolver != resolver.KindDNS {
		return errors.New("invalid APP_DNS_RESOLVER: " + c.DNSResolver + " (must be 'system' or 'dns')")
	}

	if c.DNSQPS < 0 {
		return errors.New("APP_DNS_QPS must not be negative")
	}

	if c.CacheEnabled && c.CacheMaxSize <= 0 {
		return errors.New("APP_CACHE_MAX_SIZE must be positive when the cache is enabled")
	}

	return nil
}

// ValidatorOptions are the base options every validation starts from.
func (c *Config) ValidatorOptions() validator.Options {
	return validator.Options{
		CheckMX:         c.MXCheckEnabled,
		CheckDisposable: c.DisposableCheckEnabled,
		Timeout:         c.MXTimeout,
		Detailed:        c.Detailed,
		Debug:           c.DebugMode,
	}
}

func (c *Config) CacheOptions() validator.CacheOptions {
	return validator.CacheOptions{
		Enabled:       c.CacheEnabled,
		DefaultTTL:    c.CacheTTL,
		MaxSize:       c.CacheMaxSize,
		SweepInterval: c.CacheSweepInterval,
	}
}

func durationEnv(key string, def time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		slog.Warn("invalid duration, using default", "key", key, "value", s, "default", def)
		return def
	}
	return d
}

func splitList(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	var out []string
	for _, x := range strings.Split(s, ",") {
		if x = strings.TrimSpace(x); x != "" {
			out = append(out, x)
		}
	}
	return out
}
