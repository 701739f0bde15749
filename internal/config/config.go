package config

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config models volunteermatch.yml.
type Config struct {
	Matching struct {
		Threshold      int `yaml:"threshold"`
		Workers        int `yaml:"workers"`
		TimeoutSeconds int `yaml:"timeout_seconds"`
	} `yaml:"matching"`
	Notifications struct {
		Store bool `yaml:"store"`
		Redis struct {
			URL     string `yaml:"url"`
			Channel string `yaml:"channel"`
		} `yaml:"redis"`
		Webhooks []Webhook `yaml:"webhooks"`
	} `yaml:"notifications"`
	Server struct {
		Addr     string `yaml:"addr"`
		BasePath string `yaml:"base_path"`
	} `yaml:"server"`
	Auth struct {
		JWTSecret        string `yaml:"jwt_secret"`
		AllowActorHeader bool   `yaml:"allow_actor_header"`
	} `yaml:"auth"`
	Log struct {
		JSON  bool `yaml:"json"`
		Debug bool `yaml:"debug"`
	} `yaml:"log"`
}

type Webhook struct {
	URL            string   `yaml:"url"`
	Secret         string   `yaml:"secret"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
	Types          []string `yaml:"types"`
}

// MatchingTimeout is the bound applied to one matching run.
func (c *Config) MatchingTimeout() time.Duration {
	return time.Duration(c.Matching.TimeoutSeconds) * time.Second
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with vm config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOrDefault falls back to Default when the workspace has no config file.
func LoadOrDefault(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Matching.Threshold < 1 {
		return fmt.Errorf("config.matching.threshold must be >= 1")
	}
	if c.Matching.Workers < 1 {
		return fmt.Errorf("config.matching.workers must be >= 1")
	}
	if c.Matching.TimeoutSeconds < 1 {
		return fmt.Errorf("config.matching.timeout_seconds must be >= 1")
	}
	if c.Notifications.Redis.URL != "" && c.Notifications.Redis.Channel == "" {
		return fmt.Errorf("config.notifications.redis.channel is required when url is set")
	}
	for i, h := range c.Notifications.Webhooks {
		u, err := url.Parse(h.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("config.notifications.webhooks[%d].url must be an http(s) url", i)
		}
		if h.TimeoutSeconds < 0 {
			return fmt.Errorf("config.notifications.webhooks[%d].timeout_seconds must be >= 0", i)
		}
		for _, typ := range h.Types {
			if strings.TrimSpace(typ) == "" {
				return fmt.Errorf("config.notifications.webhooks[%d] has empty type", i)
			}
		}
	}
	if c.Server.BasePath != "" && !strings.HasPrefix(c.Server.BasePath, "/") {
		return fmt.Errorf("config.server.base_path must start with /")
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "volunteermatch.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// Default returns the parsed default config.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes. Keys missing
// from data keep their default values.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

// YAML renders the config back to YAML.
func (c *Config) YAML() (string, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

const defaultTemplate = `matching:
  # minimum total score for a candidate to be kept
  threshold: 10
  workers: 4
  timeout_seconds: 30

notifications:
  store: true
  redis:
    url: ""
    channel: volunteermatch.notifications
  webhooks: []

server:
  addr: 127.0.0.1:8080
  base_path: /v1

auth:
  jwt_secret: ""
  allow_actor_header: true

log:
  json: false
  debug: false
`
