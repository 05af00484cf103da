package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/xkcd-vk/comicposter/internal/poster"
	"github.com/xkcd-vk/comicposter/internal/vk"
	"github.com/xkcd-vk/comicposter/internal/xkcd"
)

// FileEnv names the environment variable holding an optional YAML config path
const FileEnv = "COMICPOSTER_CONFIG"

// Config holds all configuration for a run
type Config struct {
	VK          VKConfig      `yaml:"vk"`
	XKCD        XKCDConfig    `yaml:"xkcd"`
	Retry       RetryConfig   `yaml:"retry"`
	ImagePath   string        `yaml:"image_path"`
	HTTPTimeout time.Duration `yaml:"http_timeout"`
	LogLevel    string        `yaml:"log_level"`
}

type VKConfig struct {
	GroupID     int64   `yaml:"group_id"`
	AccessToken string  `yaml:"access_token"`
	APIURL      string  `yaml:"api_url"`
	APIVersion  string  `yaml:"api_version"`
	RateLimit   float64 `yaml:"rate_limit"`
}

type XKCDConfig struct {
	BaseURL string `yaml:"base_url"`
}

type RetryConfig struct {
	MaxAttempts  int           `yaml:"max_attempts"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		VK: VKConfig{
			APIURL:     vk.DefaultBaseURL,
			APIVersion: vk.DefaultAPIVersion,
			RateLimit:  vk.DefaultRateLimit,
		},
		XKCD: XKCDConfig{
			BaseURL: xkcd.DefaultBaseURL,
		},
		Retry: RetryConfig{
			MaxAttempts:  poster.DefaultMaxAttempts,
			InitialDelay: poster.DefaultInitialDelay,
			MaxDelay:     poster.DefaultMaxDelay,
		},
		ImagePath:   poster.DefaultImagePath,
		HTTPTimeout: 30 * time.Second,
		LogLevel:    "info",
	}
}

// Load builds the configuration from defaults, the optional YAML file named
// by COMICPOSTER_CONFIG and the process environment, in that order.
func Load() (*Config, error) {
	return load(os.LookupEnv)
}

func load(lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()

	if path, ok := lookup(FileEnv); ok && path != "" {
		if err := cfg.readFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file '%s': %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file '%s': %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	integer := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s must be an integer: %w", key, err)
		}
		*dst = n
		return nil
	}
	duration := func(key string, dst *time.Duration) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s must be a duration: %w", key, err)
		}
		*dst = d
		return nil
	}

	if v, ok := lookup("VK_GROUP_ID"); ok && v != "" {
		id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return fmt.Errorf("VK_GROUP_ID must be an integer: %w", err)
		}
		c.VK.GroupID = id
	}
	str("VK_ACCESS_TOKEN", &c.VK.AccessToken)
	str("VK_API_URL", &c.VK.APIURL)
	str("VK_API_VERSION", &c.VK.APIVersion)
	if v, ok := lookup("VK_RATE_LIMIT"); ok && v != "" {
		limit, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fmt.Errorf("VK_RATE_LIMIT must be a number: %w", err)
		}
		c.VK.RateLimit = limit
	}
	str("XKCD_BASE_URL", &c.XKCD.BaseURL)
	str("IMAGE_PATH", &c.ImagePath)
	str("LOG_LEVEL", &c.LogLevel)

	if err := integer("RETRY_MAX_ATTEMPTS", &c.Retry.MaxAttempts); err != nil {
		return err
	}
	if err := duration("RETRY_INITIAL_DELAY", &c.Retry.InitialDelay); err != nil {
		return err
	}
	if err := duration("RETRY_MAX_DELAY", &c.Retry.MaxDelay); err != nil {
		return err
	}
	return duration("HTTP_TIMEOUT", &c.HTTPTimeout)
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if c.VK.GroupID <= 0 {
		return fmt.Errorf("VK_GROUP_ID is missing or not a positive integer")
	}
	if c.VK.AccessToken == "" {
		return fmt.Errorf("VK_ACCESS_TOKEN is missing")
	}
	if c.ImagePath == "" {
		return fmt.Errorf("IMAGE_PATH must not be empty")
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("RETRY_MAX_ATTEMPTS must be at least 1, got %d", c.Retry.MaxAttempts)
	}
	if c.Retry.InitialDelay <= 0 || c.Retry.MaxDelay <= 0 {
		return fmt.Errorf("retry delays must be positive")
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive")
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// SlogLevel maps LogLevel onto a slog.Level
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q (must be debug, info, warn, or error)", c.LogLevel)
	}
	return level, nil
}

// Credentials returns the VK group and token
func (c *Config) Credentials() vk.Credentials {
	return vk.Credentials{
		GroupID:     c.VK.GroupID,
		AccessToken: c.VK.AccessToken,
	}
}
