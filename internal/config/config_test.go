package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func load(t *testing.T, args ...string) (*Config, []string) {
	t.Helper()
	cfg, warnings, err := Load(Options{
		Args:    args,
		EnvFile: filepath.Join(t.TempDir(), "missing.env"),
	})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	return cfg, warnings
}

func TestDefaults(t *testing.T) {
	cfg, warnings := load(t)

	if len(warnings) != 0 {
		t.Errorf("Expected no warnings, got %v", warnings)
	}
	if cfg.Device.Path != "/dev/ttyUSB0" {
		t.Errorf("Expected default device path, got %q", cfg.Device.Path)
	}
	if cfg.Device.Timeout != 10*time.Second {
		t.Errorf("Expected 10s timeout, got %v", cfg.Device.Timeout)
	}
	if cfg.Image.MaxWidth != 160 {
		t.Errorf("Expected max width 160, got %d", cfg.Image.MaxWidth)
	}
	if cfg.Image.Dither != "floyd-steinberg" {
		t.Errorf("Expected floyd-steinberg, got %q", cfg.Image.Dither)
	}
	if cfg.Queue.MaxRetries != 3 || cfg.Queue.PrepareWorkers != 2 {
		t.Errorf("Unexpected queue defaults: %+v", cfg.Queue)
	}
	if cfg.Server.Listen != "0.0.0.0:12212" {
		t.Errorf("Expected default listen address, got %q", cfg.Server.Listen)
	}
	if cfg.Source.MaxBytes != 20<<20 {
		t.Errorf("Expected 20 MiB cap, got %d", cfg.Source.MaxBytes)
	}
}

func TestPrecedence(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "relay.yaml")
	yaml := `
device:
  path: /dev/ttyS1
  timeout: 5
image:
  contrast: 20
server:
  listen: 127.0.0.1:9000
`
	if err := os.WriteFile(file, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("RELAY_SERVER_LISTEN", "127.0.0.1:9100")
	t.Setenv("RELAY_IMAGE_BRIGHTNESS", "-10")

	cfg, warnings := load(t, "--config", file, "--device", "tcp://printer:9100")
	if len(warnings) != 0 {
		t.Errorf("Expected no warnings, got %v", warnings)
	}

	if cfg.Device.Path != "tcp://printer:9100" {
		t.Errorf("Expected flag to win, got %q", cfg.Device.Path)
	}
	if cfg.Server.Listen != "127.0.0.1:9100" {
		t.Errorf("Expected env to beat file, got %q", cfg.Server.Listen)
	}
	if cfg.Device.Timeout != 5*time.Second {
		t.Errorf("Expected bare number as seconds, got %v", cfg.Device.Timeout)
	}
	if cfg.Image.Contrast != 20 {
		t.Errorf("Expected contrast from file, got %v", cfg.Image.Contrast)
	}
	if cfg.Image.Brightness != -10 {
		t.Errorf("Expected brightness from env, got %d", cfg.Image.Brightness)
	}
	if cfg.File != file {
		t.Errorf("Expected config file %q, got %q", file, cfg.File)
	}
}

func TestEnvFile(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(envFile, []byte("RELAY_SERVER_TOKEN=secret\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("RELAY_SERVER_TOKEN") })

	cfg, _, err := Load(Options{EnvFile: envFile})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Token != "secret" {
		t.Errorf("Expected token from .env, got %q", cfg.Server.Token)
	}
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("RELAY_DEVICE_TIMEOUT", "soon")
	t.Setenv("RELAY_IMAGE_MAX_WIDTH", "wide")
	t.Setenv("RELAY_IMAGE_CONTRAST", "500")
	t.Setenv("RELAY_IMAGE_DITHER", "sierra")
	t.Setenv("RELAY_QUEUE_MAX_RETRIES", "-2")

	cfg, warnings := load(t)

	if cfg.Device.Timeout != 10*time.Second {
		t.Errorf("Expected default timeout, got %v", cfg.Device.Timeout)
	}
	if cfg.Image.MaxWidth != 160 {
		t.Errorf("Expected default width, got %d", cfg.Image.MaxWidth)
	}
	if cfg.Image.Contrast != 0 {
		t.Errorf("Expected contrast reset, got %v", cfg.Image.Contrast)
	}
	if cfg.Image.Dither != "floyd-steinberg" {
		t.Errorf("Expected default dither, got %q", cfg.Image.Dither)
	}
	if cfg.Queue.MaxRetries != 0 {
		t.Errorf("Expected retries clamped to 0, got %d", cfg.Queue.MaxRetries)
	}

	joined := strings.Join(warnings, "\n")
	for _, key := range []string{"device.timeout", "image.max_width", "image.contrast", "image.dither", "queue.max_retries"} {
		if !strings.Contains(joined, key) {
			t.Errorf("Expected a warning naming %s, got:\n%s", key, joined)
		}
	}
}

func TestNonPositiveWidthFallsBack(t *testing.T) {
	t.Setenv("RELAY_IMAGE_MAX_WIDTH", "0")
	cfg, warnings := load(t)
	if cfg.Image.MaxWidth != 160 || len(warnings) != 1 {
		t.Errorf("Expected width 160 with one warning, got %d, %v", cfg.Image.MaxWidth, warnings)
	}

	t.Setenv("RELAY_IMAGE_MAX_WIDTH", "100")
	cfg, warnings = load(t)
	if cfg.Image.MaxWidth != 100 || len(warnings) != 1 {
		t.Errorf("Expected width 100 accepted with a warning, got %d, %v", cfg.Image.MaxWidth, warnings)
	}
}

func TestMissingExplicitConfigFile(t *testing.T) {
	_, _, err := Load(Options{
		Args:    []string{"--config", filepath.Join(t.TempDir(), "nope.yaml")},
		EnvFile: filepath.Join(t.TempDir(), "missing.env"),
	})
	if err == nil {
		t.Error("Expected error for missing --config file")
	}
}

func TestUnknownFlag(t *testing.T) {
	_, _, err := Load(Options{Args: []string{"--colour"}, EnvFile: filepath.Join(t.TempDir(), "missing.env")})
	if err == nil {
		t.Error("Expected error for unknown flag")
	}
}
