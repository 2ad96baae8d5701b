package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StabilityThreshold != defaultStability {
		t.Fatalf("expected default stability %d, got %d", defaultStability, cfg.StabilityThreshold)
	}
	if cfg.CaptureInterval() != 400*time.Millisecond {
		t.Fatalf("unexpected interval %v", cfg.CaptureInterval())
	}
	if cfg.MaxPlausiblePrice != defaultMaxPrice {
		t.Fatalf("unexpected max price %d", cfg.MaxPlausiblePrice)
	}
}

func TestFileAndEnvPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := "stability_threshold: 4\nidle_timeout_ms: 20000\nlayout_id: \"1080p\"\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("STABILITY_THRESHOLD", "3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StabilityThreshold != 3 {
		t.Fatalf("env should override file: got %d", cfg.StabilityThreshold)
	}
	if cfg.IdleTimeout() != 20*time.Second {
		t.Fatalf("file idle timeout not applied: %v", cfg.IdleTimeout())
	}
	if cfg.LayoutID != "1080p" {
		t.Fatalf("file layout id not applied: %q", cfg.LayoutID)
	}
}

func TestClamping(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("CAPTURE_INTERVAL_MS", "5")
	t.Setenv("FRAME_QUEUE_DEPTH", "10000")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.CaptureIntervalMS != 50 {
		t.Fatalf("interval should clamp to 50, got %d", cfg.CaptureIntervalMS)
	}
	if cfg.FrameQueueDepth != 64 {
		t.Fatalf("queue depth should clamp to 64, got %d", cfg.FrameQueueDepth)
	}
}
