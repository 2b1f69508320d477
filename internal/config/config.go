// Package config loads the gqlcache YAML configuration file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/apex/log"
	"gopkg.in/yaml.v3"
)

// EnvPath names the environment variable holding an explicit config path.
const EnvPath = "GQLCACHE_CONFIG"

// FileName is the config file looked up in the config directories.
const FileName = "gqlcache.yaml"

// DefaultEndpoint is used when no endpoint is configured.
const DefaultEndpoint = "http://localhost:4000"

// Config is the decoded configuration.
type Config struct {
	// Source is the file the config was read from, empty for defaults.
	Source string `yaml:"-"`

	Endpoint   string            `yaml:"endpoint"`
	Headers    map[string]string `yaml:"headers"`
	LogLevel   string            `yaml:"log_level"`
	SnapshotDB string            `yaml:"snapshot_db"`
	S3         S3                `yaml:"s3"`
}

// S3 configures hydration uploads.
type S3 struct {
	Bucket string `yaml:"bucket"`
	Prefix string `yaml:"prefix"`
	Region string `yaml:"region"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Endpoint: DefaultEndpoint,
		Headers:  map[string]string{},
	}
}

// Load reads the config file. An explicit path must exist; when path is
// empty, $GQLCACHE_CONFIG and then the default locations are tried, and a
// missing file yields Default().
func Load(path string) (Config, error) {
	explicit := path != ""
	if !explicit {
		path = os.Getenv(EnvPath)
		explicit = path != ""
	}
	if !explicit {
		path = defaultPath()
	}

	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			log.WithField("path", path).Debug("no config file, using defaults")
			return cfg, nil
		}
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Headers == nil {
		cfg.Headers = map[string]string{}
	}
	cfg.Source = path

	log.WithField("path", path).Debug("loaded config")
	return cfg, nil
}

// defaultPath returns $XDG_CONFIG_HOME/gqlcache.yaml, falling back to
// $HOME/gqlcache.yaml.
func defaultPath() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, FileName)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, FileName)
	}
	return ""
}
