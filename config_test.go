package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "genpmk.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadConfig(t *testing.T) {
	cfg, err := loadConfig(writeConfig(t, `
dictionary: words.txt.gz
database: home.genpmk
ssid: linksys
workers: 8
verbose: 2
metrics_addr: ":9100"
`))
	require.NoError(t, err)
	assert.Equal(t, Config{
		Dictionary:  "words.txt.gz",
		Database:    "home.genpmk",
		SSID:        "linksys",
		Iterations:  DefaultIterations,
		Workers:     8,
		Verbose:     2,
		Progress:    DefaultProgressInterval,
		MetricsAddr: ":9100",
	}, cfg)
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, log.Level(2), cfg.logLevel())
}

func TestLoadConfigEmpty(t *testing.T) {
	cfg, err := loadConfig(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, defaultConfig(), cfg)
}

func TestLoadConfigUnknownKey(t *testing.T) {
	_, err := loadConfig(writeConfig(t, "sid: linksys\n"))
	assert.True(t, errors.Is(errors.Invalid, err), "%v", err)
}

func TestLoadConfigMissing(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.True(t, errors.Is(errors.NotExist, err), "%v", err)
}

func TestConfigValidate(t *testing.T) {
	valid := defaultConfig()
	valid.Dictionary = "-"
	valid.Database = "out.genpmk"
	valid.SSID = "MyWifi"
	require.NoError(t, valid.Validate())
	assert.Equal(t, log.Info, valid.logLevel())

	for name, mutate := range map[string]func(*Config){
		"no dictionary": func(c *Config) { c.Dictionary = "" },
		"no database":   func(c *Config) { c.Database = "" },
		"no ssid":       func(c *Config) { c.SSID = "" },
		"long ssid":     func(c *Config) { c.SSID = "0123456789abcdef0123456789abcdef0" },
		"zero iters":    func(c *Config) { c.Iterations = 0 },
		"neg workers":   func(c *Config) { c.Workers = -1 },
		"neg progress":  func(c *Config) { c.Progress = -1 },
	} {
		cfg := valid
		mutate(&cfg)
		err := cfg.Validate()
		assert.True(t, errors.Is(errors.Invalid, err), "%s: %v", name, err)
	}
}
