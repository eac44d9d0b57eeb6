package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	if cfg.Serial.Port != "auto" || cfg.Serial.Baud != 115200 {
		t.Fatalf("serial defaults = %+v", cfg.Serial)
	}
	if cfg.Poll.IntervalMs != 50 {
		t.Fatalf("poll interval = %d, want 50", cfg.Poll.IntervalMs)
	}
	if cfg.Data.Format != "csv" {
		t.Fatalf("format = %q, want csv", cfg.Data.Format)
	}
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	text := `
serial:
  port: /dev/ttyACM0
  baud: 921600
data:
  format: msl
poll:
  interval_ms: 100
`
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := Load(path)
	if cfg.Serial.Port != "/dev/ttyACM0" || cfg.Serial.Baud != 921600 {
		t.Fatalf("serial = %+v", cfg.Serial)
	}
	if cfg.Data.Format != "msl" {
		t.Fatalf("format = %q", cfg.Data.Format)
	}
	if cfg.Poll.IntervalMs != 100 {
		t.Fatalf("interval = %d", cfg.Poll.IntervalMs)
	}
	// Untouched fields keep their defaults.
	if cfg.Hub.ListenAddr != ":8080" {
		t.Fatalf("listen addr = %q", cfg.Hub.ListenAddr)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if cfg.Serial.Baud != 115200 {
		t.Fatalf("baud = %d, want default", cfg.Serial.Baud)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SERIAL_PORT", "/dev/ttyUSB7")
	t.Setenv("POLL_INTERVAL_MS", "25")
	t.Setenv("HUB_ENABLED", "false")

	cfg := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if cfg.Serial.Port != "/dev/ttyUSB7" {
		t.Fatalf("port = %q", cfg.Serial.Port)
	}
	if cfg.Poll.IntervalMs != 25 {
		t.Fatalf("interval = %d", cfg.Poll.IntervalMs)
	}
	if cfg.Hub.Enabled {
		t.Fatal("hub should be disabled")
	}
}
