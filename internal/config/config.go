// Package config loads logger configuration from YAML with .env and
// environment variable overrides.
package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all logger configuration.
type Config struct {
	Serial SerialConfig `yaml:"serial"`
	Data   DataConfig   `yaml:"data"`
	Poll   PollConfig   `yaml:"poll"`
	Hub    HubConfig    `yaml:"hub"`
}

type SerialConfig struct {
	Port string `yaml:"port"` // device path, or "auto" to scan USB ports
	Baud int    `yaml:"baud"`
}

type DataConfig struct {
	Dir            string `yaml:"dir"`    // schema files in, log files out
	Format         string `yaml:"format"` // "csv" or "msl"
	SyncIntervalMs int    `yaml:"sync_interval_ms"`
}

type PollConfig struct {
	IntervalMs        int `yaml:"interval_ms"`         // telemetry poll cadence
	SettleDelayMs     int `yaml:"settle_delay_ms"`     // wait after attach
	ResponseTimeoutMs int `yaml:"response_timeout_ms"` // overall response deadline
	SilenceTimeoutMs  int `yaml:"silence_timeout_ms"`  // per-byte sub-deadline
}

type HubConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ListenAddr string `yaml:"listen_addr"`
}

// Default returns a config with sensible defaults: 20 Hz polling, CSV
// output, hub on :8080.
func Default() *Config {
	return &Config{
		Serial: SerialConfig{
			Port: "auto",
			Baud: 115200,
		},
		Data: DataConfig{
			Dir:            "/var/lib/rusefi-datalog",
			Format:         "csv",
			SyncIntervalMs: 5000,
		},
		Poll: PollConfig{
			IntervalMs:        50,
			SettleDelayMs:     500,
			ResponseTimeoutMs: 2000,
			SilenceTimeoutMs:  500,
		},
		Hub: HubConfig{
			Enabled:    true,
			ListenAddr: ":8080",
		},
	}
}

// Load reads config from a YAML file, then applies .env and environment
// variable overrides. Falls back to defaults if the file is missing or
// malformed.
func Load(path string) *Config {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("[config] no config at %s, using defaults", path)
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		log.Printf("[config] error parsing %s: %v, using defaults", path, err)
		cfg = Default()
	} else {
		log.Printf("[config] loaded from %s", path)
	}

	for _, ep := range []string{filepath.Join(filepath.Dir(path), ".env"), ".env"} {
		loadEnvFile(ep)
	}
	cfg.applyEnvOverrides()
	return cfg
}

// loadEnvFile reads a simple KEY=VALUE .env file and sets os env vars.
// Real environment takes precedence over the file.
func loadEnvFile(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	log.Printf("[config] loading .env from %s", path)
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		val = strings.Trim(strings.TrimSpace(val), `"'`)
		if os.Getenv(key) == "" {
			os.Setenv(key, val)
		}
	}
}

// applyEnvOverrides reads environment variables and overrides config
// values. Supported: SERIAL_PORT, SERIAL_BAUD, DATA_DIR, LOG_FORMAT,
// SYNC_INTERVAL_MS, POLL_INTERVAL_MS, HUB_ENABLED, LISTEN_ADDR.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("SERIAL_PORT"); v != "" {
		c.Serial.Port = v
	}
	if v := os.Getenv("SERIAL_BAUD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Serial.Baud = n
		}
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		c.Data.Dir = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.Data.Format = v
	}
	if v := os.Getenv("SYNC_INTERVAL_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Data.SyncIntervalMs = n
		}
	}
	if v := os.Getenv("POLL_INTERVAL_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Poll.IntervalMs = n
		}
	}
	if v := os.Getenv("HUB_ENABLED"); v != "" {
		c.Hub.Enabled = v == "1" || v == "true" || v == "yes"
	}
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		c.Hub.ListenAddr = v
	}
}
