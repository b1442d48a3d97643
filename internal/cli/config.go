package cli

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// FileConfig is the optional YAML configuration consumed by the push
// command. Command-line flags override anything set here.
type FileConfig struct {
	LogLevel  string `yaml:"logLevel"`
	LogPretty bool   `yaml:"logPretty"`

	// Delivery defaults.
	MaxRetries int           `yaml:"maxRetries"`
	RetryDelay time.Duration `yaml:"retryDelay"`
	Async      bool          `yaml:"async"`

	// Pyroscope defaults.
	AppName       string            `yaml:"appName"`
	ServerAddress string            `yaml:"serverAddress"`
	AuthToken     string            `yaml:"authToken"`
	Labels        map[string]string `yaml:"labels"`

	// OTLP collector defaults.
	Endpoint    string `yaml:"endpoint"`
	ServiceName string `yaml:"serviceName"`
}

// LoadConfig reads a YAML config file. A missing path returns an empty
// config so callers can treat the file as optional.
func LoadConfig(path string) (*FileConfig, error) {
	cfg := &FileConfig{}
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}
