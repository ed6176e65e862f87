package main

import (
	"fmt"
	"io"
	"os"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"gopkg.in/yaml.v3"
)

// Config holds the settings for one precomputation run. Values come from
// an optional YAML file and are overridden by command line flags.
type Config struct {
	Dictionary  string `yaml:"dictionary"`
	Database    string `yaml:"database"`
	SSID        string `yaml:"ssid"`
	Iterations  int    `yaml:"iterations"`
	Workers     int    `yaml:"workers"` // 0 = one per CPU
	Verbose     int    `yaml:"verbose"`
	Progress    int64  `yaml:"progress"`
	MetricsAddr string `yaml:"metrics_addr"`
}

func defaultConfig() Config {
	return Config{
		Iterations: DefaultIterations,
		Progress:   DefaultProgressInterval,
	}
}

// loadConfig reads a YAML config file on top of the defaults. Unknown keys
// are rejected so typos do not silently fall back to defaults.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	f, err := os.Open(path)
	if err != nil {
		return cfg, errors.E("failed to open config", path, err)
	}
	defer f.Close()
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return cfg, errors.E(errors.Invalid, "failed to parse config", path, err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Dictionary == "" {
		return errors.E(errors.Invalid, "must specify a dictionary file with -f")
	}
	if c.Database == "" {
		return errors.E(errors.Invalid, "must specify an output hash file with -d")
	}
	if c.SSID == "" {
		return errors.E(errors.Invalid, "must specify a SSID with -s")
	}
	if err := validateSSID([]byte(c.SSID)); err != nil {
		return err
	}
	if c.Iterations < 1 {
		return errors.E(errors.Invalid, fmt.Sprintf("iterations must be at least 1, got %d", c.Iterations))
	}
	if c.Workers < 0 {
		return errors.E(errors.Invalid, fmt.Sprintf("workers must not be negative, got %d", c.Workers))
	}
	if c.Progress < 0 {
		return errors.E(errors.Invalid, fmt.Sprintf("progress interval must not be negative, got %d", c.Progress))
	}
	return nil
}

// logLevel maps the -v count onto log levels: -v shows rejected words,
// -vv every word hashed, -vvv every PMK.
func (c Config) logLevel() log.Level {
	if c.Verbose <= 0 {
		return log.Info
	}
	return log.Level(c.Verbose)
}
