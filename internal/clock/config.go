// Package clock implements the moqclock demo: a wall-clock track fanned out
// to every connected session, one object per tick and one group per minute.
package clock

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config drives the serve command.
type Config struct {
	Listen   string `yaml:"listen"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`

	// Path is the URL path WebTransport sessions are accepted on.
	Path string `yaml:"path"`

	Namespace string        `yaml:"namespace"`
	Track     string        `yaml:"track"`
	Interval  time.Duration `yaml:"interval"`

	// MaxSubscribes is the number of subscribe ids granted to each session
	// during setup.
	MaxSubscribes uint64 `yaml:"max_subscribes"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`

	// OTLPEndpoint enables metric export over OTLP gRPC when set.
	OTLPEndpoint string `yaml:"otlp_endpoint"`
}

func DefaultConfig() *Config {
	cfg := &Config{
		Listen:        "localhost:4443",
		CertFile:      "cert.pem",
		KeyFile:       "key.pem",
		Path:          "/clock",
		Namespace:     "clock",
		Track:         "second",
		Interval:      time.Second,
		MaxSubscribes: 16,
	}
	cfg.Log.Level = "info"
	cfg.Log.Format = "text"
	return cfg
}

// LoadConfig reads a YAML config file, keeping defaults for unset fields.
// An empty path returns the defaults unchanged.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen cannot be empty")
	}
	if c.CertFile == "" || c.KeyFile == "" {
		return fmt.Errorf("cert_file and key_file are required")
	}
	if c.Namespace == "" || c.Track == "" {
		return fmt.Errorf("namespace and track cannot be empty")
	}
	if c.Interval <= 0 {
		return fmt.Errorf("interval must be positive")
	}
	return nil
}
