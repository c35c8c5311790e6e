package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	// EnvConfigPath overrides the config file location when no path is given.
	EnvConfigPath = "UNICHATCLIENT_CONFIG"

	DefaultServerAddress = "127.0.0.1:8090"
	DefaultSubmitTimeout = 2 * time.Minute
	DefaultRedisPort     = 6379
)

// Config represents runtime configuration for the client.
type Config struct {
	BasicConfig BasicConfig               `json:"basic_config"`
	Providers   map[string]ProviderConfig `json:"providers"`
	Redis       RedisConfig               `json:"redis"`
}

type ProviderConfig struct {
	BaseURL      string `json:"base_url"`
	Model        string `json:"model"`
	APIKey       string `json:"api_key"`
	SystemPrompt string `json:"system_prompt"`
	WebSearch    bool   `json:"web_search"`
	MaxTokens    int    `json:"max_tokens"`
}

type BasicConfig struct {
	ServerAddress        string `json:"server_address"`
	Provider             string `json:"provider"`
	SubmitTimeoutSeconds int    `json:"submit_timeout_seconds"`
	LogLevel             string `json:"log_level"`
	NotifyOnCopy         bool   `json:"notify_on_copy"`
}

// RedisConfig is optional; an empty Host disables event publishing to redis.
type RedisConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.Host) != ""
}

// Load reads configuration from the provided path, falling back to
// $UNICHATCLIENT_CONFIG and then config.json.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path == "" {
		path = "config.json"
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrap(err, "resolve config path")
	}

	file, err := os.Open(absPath)
	if err != nil {
		return nil, errors.Wrapf(err, "open config %s", absPath)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() error {
	if len(c.Providers) == 0 {
		return errors.New("at least one provider must be configured")
	}
	c.BasicConfig.Provider = strings.ToLower(strings.TrimSpace(c.BasicConfig.Provider))
	if c.BasicConfig.Provider == "" {
		if len(c.Providers) != 1 {
			return errors.New("basic_config.provider must name one of the configured providers")
		}
		for name := range c.Providers {
			c.BasicConfig.Provider = name
		}
	}
	if _, ok := c.Providers[c.BasicConfig.Provider]; !ok {
		return errors.Errorf("provider %s not configured", c.BasicConfig.Provider)
	}
	if c.BasicConfig.ServerAddress == "" {
		c.BasicConfig.ServerAddress = DefaultServerAddress
	}
	if c.Redis.Enabled() && c.Redis.Port == 0 {
		c.Redis.Port = DefaultRedisPort
	}
	return nil
}

// SubmitTimeout bounds a single remote call.
func (c *Config) SubmitTimeout() time.Duration {
	if c.BasicConfig.SubmitTimeoutSeconds <= 0 {
		return DefaultSubmitTimeout
	}
	return time.Duration(c.BasicConfig.SubmitTimeoutSeconds) * time.Second
}

// Provider returns the named provider settings. A missing api_key is read from
// <NAME>_API_KEY, e.g. GEMINI_API_KEY.
func (c *Config) Provider(name string) (ProviderConfig, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	prov, ok := c.Providers[name]
	if !ok {
		return ProviderConfig{}, errors.Errorf("provider %s not configured", name)
	}
	if prov.APIKey == "" {
		prov.APIKey = os.Getenv(strings.ToUpper(name) + "_API_KEY")
	}
	if prov.APIKey == "" {
		return ProviderConfig{}, errors.Errorf("api key for provider %s not configured", name)
	}
	return prov, nil
}
