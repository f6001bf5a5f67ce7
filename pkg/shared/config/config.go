package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	yaml "gopkg.in/yaml.v2"
)

type Config struct {
	Logger     Logger     `yaml:"logger"`
	HttpClient HttpClient `yaml:"http_client"`
	Engine     Engine     `yaml:"engine"`
	Webapp     Webapp     `yaml:"webapp"`
	Artifacts  Artifacts  `yaml:"artifacts"`
	Ignore     Ignore     `yaml:"ignore"`
}

type Logger struct {
	Level string `yaml:"level"`
}

type HttpClient struct {
	Debug            string          `yaml:"debug"`
	RetryCount       int             `yaml:"retry_count"`
	RetryWaitTime    time.Duration   `yaml:"retry_wait_time"`
	RetryMaxWaitTime time.Duration   `yaml:"retry_max_wait_time"`
	Timeout          time.Duration   `yaml:"timeout"`
	TlsClientConfig  TlsClientConfig `yaml:"tls_client_config"`
	Proxy            Proxy           `yaml:"proxy"`
}

type TlsClientConfig struct {
	Verify *bool `yaml:"verify"`
}

type Proxy struct {
	Host string `yaml:"host"`
	Port string `yaml:"port"`
}

// Engine configures the external analysis binary.
type Engine struct {
	Binary  string        `yaml:"binary"`
	Config  string        `yaml:"config"`
	Timeout time.Duration `yaml:"timeout"`
}

// Webapp configures the optional result upload and lockfile comparison
// service. An empty URL disables both.
type Webapp struct {
	URL   string `yaml:"url"`
	Token string `yaml:"token"`
}

// Artifacts configures where run artifacts are written locally and the
// optional S3 upload destination.
type Artifacts struct {
	Home     string `yaml:"home"`
	S3Bucket string `yaml:"s3_bucket"`
	S3Region string `yaml:"s3_region"`
}

// Ignore carries extra path exclusion patterns on top of the repository's own
// ignore file or the built-in defaults.
type Ignore struct {
	Patterns []string `yaml:"patterns"`
}

func ValidateConfigPath(path string) error {
	s, err := os.Stat(path)
	if err != nil {
		return err
	}
	if s.IsDir() {
		return fmt.Errorf("'%s' is a directory, not a file", path)
	}
	return nil
}

func LoadYAML(configPath string, data interface{}) error {
	if err := ValidateConfigPath(configPath); err != nil {
		return err
	}

	file, err := os.Open(configPath)
	if err != nil {
		return err
	}
	defer file.Close()

	d := yaml.NewDecoder(file)
	if err := d.Decode(data); err != nil {
		return err
	}

	return nil
}

// LoadConfig reads the YAML config at path. A missing file is not an error:
// the agent runs on defaults inside CI where no config is mounted.
func LoadConfig(path string) (*Config, error) {
	config := &Config{}

	if err := LoadYAML(path, config); err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return nil, err
	}

	return config, nil
}

// GetArtifactsHome returns the directory run artifacts are written to.
func GetArtifactsHome(cfg *Config) string {
	if cfg != nil && cfg.Artifacts.Home != "" {
		return cfg.Artifacts.Home
	}
	if env := os.Getenv("SCANIO_ARTIFACTS_HOME"); env != "" {
		return env
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".scanio-agent/artifacts"
	}
	return filepath.Join(home, ".scanio-agent", "artifacts")
}
