package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all service settings. File values come from CONFIG_PATH
// (YAML); environment variables override the file.
type Config struct {
	HTTPPort    string
	LayoutsPath string
	LayoutID    string
	DBPath      string

	// CaptureDir is where screenshot files land; the grabber always reads
	// the newest one.
	CaptureDir string

	// Sampler tunables.
	CaptureIntervalMS int
	MaxBackoffMS      int
	FrameQueueDepth   int

	// Dedup tunables. Concrete defaults are a product decision; both are
	// runtime configuration, never constants.
	StabilityThreshold int
	IdleTimeoutMS      int

	// Parser tunables.
	ConfidenceThreshold float64
	MaxPlausiblePrice   int64
	NameTolerance       int

	// Recognition backend.
	TessLanguage string

	// Profit alerting. Blank URL disables it.
	AlertWebhookURL string
	AlertMinProfit  int64

	// Start capturing immediately instead of waiting for /ops/start.
	AutoStart bool
}

type fileConfig struct {
	HTTPPort            string  `yaml:"http_port"`
	LayoutsPath         string  `yaml:"layouts_path"`
	LayoutID            string  `yaml:"layout_id"`
	DBPath              string  `yaml:"db_path"`
	CaptureDir          string  `yaml:"capture_dir"`
	CaptureIntervalMS   int     `yaml:"capture_interval_ms"`
	MaxBackoffMS        int     `yaml:"max_backoff_ms"`
	FrameQueueDepth     int     `yaml:"frame_queue_depth"`
	StabilityThreshold  int     `yaml:"stability_threshold"`
	IdleTimeoutMS       int     `yaml:"idle_timeout_ms"`
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
	MaxPlausiblePrice   int64   `yaml:"max_plausible_price"`
	NameTolerance       int     `yaml:"name_tolerance"`
	TessLanguage        string  `yaml:"tess_language"`
	AlertWebhookURL     string  `yaml:"alert_webhook_url"`
	AlertMinProfit      int64   `yaml:"alert_min_profit"`
	AutoStart           *bool   `yaml:"auto_start"`
}

const (
	defaultPort       = "8090"
	defaultLayouts    = "config/layouts.yaml"
	defaultLayoutID   = "2560x1440"
	defaultDBFile     = "marketwatch.db"
	defaultCaptureDir = "captures"
	defaultIntervalMS = 400
	defaultBackoffMS  = 5000
	defaultQueueDepth = 8
	defaultStability  = 2
	defaultIdleMS     = 10000
	defaultConfidence = 0.75
	defaultMaxPrice   = 9000
	defaultTolerance  = 2
	defaultTessLang   = "eng"
	defaultAlertMin   = 1000
)

// Defaults returns the built-in settings before the file and env layers.
func Defaults() Config {
	return Config{
		HTTPPort:            defaultPort,
		LayoutsPath:         defaultLayouts,
		LayoutID:            defaultLayoutID,
		DBPath:              defaultDBFile,
		CaptureDir:          defaultCaptureDir,
		CaptureIntervalMS:   defaultIntervalMS,
		MaxBackoffMS:        defaultBackoffMS,
		FrameQueueDepth:     defaultQueueDepth,
		StabilityThreshold:  defaultStability,
		IdleTimeoutMS:       defaultIdleMS,
		ConfidenceThreshold: defaultConfidence,
		MaxPlausiblePrice:   defaultMaxPrice,
		NameTolerance:       defaultTolerance,
		TessLanguage:        defaultTessLang,
		AlertMinProfit:      defaultAlertMin,
	}
}

// Load reads configuration with defaults < file < environment precedence.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Defaults()

	configPath := getenv("CONFIG_PATH", filepath.Join("config", "config.yaml"))
	if fc, err := loadFile(configPath); err != nil {
		log.Printf("config load failed (%s): %v (using defaults)", configPath, err)
	} else {
		applyFile(&cfg, fc)
	}

	cfg.HTTPPort = getenv("HTTP_PORT", cfg.HTTPPort)
	cfg.LayoutsPath = getenv("LAYOUTS_PATH", cfg.LayoutsPath)
	cfg.LayoutID = getenv("LAYOUT_ID", cfg.LayoutID)
	cfg.DBPath = getenv("DB_PATH", cfg.DBPath)
	cfg.CaptureDir = getenv("CAPTURE_DIR", cfg.CaptureDir)
	cfg.TessLanguage = getenv("TESS_LANGUAGE", cfg.TessLanguage)
	cfg.AlertWebhookURL = getenv("ALERT_WEBHOOK_URL", cfg.AlertWebhookURL)
	overrideInt64(&cfg.AlertMinProfit, "ALERT_MIN_PROFIT")
	overrideInt(&cfg.CaptureIntervalMS, "CAPTURE_INTERVAL_MS")
	overrideInt(&cfg.MaxBackoffMS, "MAX_BACKOFF_MS")
	overrideInt(&cfg.FrameQueueDepth, "FRAME_QUEUE_DEPTH")
	overrideInt(&cfg.StabilityThreshold, "STABILITY_THRESHOLD")
	overrideInt(&cfg.IdleTimeoutMS, "IDLE_TIMEOUT_MS")
	overrideFloat(&cfg.ConfidenceThreshold, "CONFIDENCE_THRESHOLD")
	overrideInt64(&cfg.MaxPlausiblePrice, "MAX_PLAUSIBLE_PRICE")
	overrideInt(&cfg.NameTolerance, "NAME_TOLERANCE")
	if v := strings.TrimSpace(os.Getenv("AUTO_START")); v != "" {
		cfg.AutoStart = parseBool(v)
	}

	cfg.CaptureIntervalMS = clampInt(cfg.CaptureIntervalMS, 50, 5000)
	cfg.MaxBackoffMS = clampInt(cfg.MaxBackoffMS, cfg.CaptureIntervalMS, 60000)
	cfg.FrameQueueDepth = clampInt(cfg.FrameQueueDepth, 1, 64)
	cfg.StabilityThreshold = clampInt(cfg.StabilityThreshold, 1, 10)
	cfg.IdleTimeoutMS = clampInt(cfg.IdleTimeoutMS, 1000, 600000)
	cfg.NameTolerance = clampInt(cfg.NameTolerance, 0, 8)

	if err := validate(cfg); err != nil {
		return cfg, err
	}
	log.Printf("config: layout=%s layouts=%s db=%s interval_ms=%d stability=%d",
		cfg.LayoutID, cfg.LayoutsPath, cfg.DBPath, cfg.CaptureIntervalMS, cfg.StabilityThreshold)
	return cfg, nil
}

func loadFile(path string) (fileConfig, error) {
	var fc fileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if len(data) == 0 {
		return fc, errors.New("empty config file")
	}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

func applyFile(cfg *Config, fc fileConfig) {
	if fc.HTTPPort != "" {
		cfg.HTTPPort = fc.HTTPPort
	}
	if fc.LayoutsPath != "" {
		cfg.LayoutsPath = fc.LayoutsPath
	}
	if fc.LayoutID != "" {
		cfg.LayoutID = fc.LayoutID
	}
	if fc.DBPath != "" {
		cfg.DBPath = fc.DBPath
	}
	if fc.CaptureDir != "" {
		cfg.CaptureDir = fc.CaptureDir
	}
	if fc.CaptureIntervalMS > 0 {
		cfg.CaptureIntervalMS = fc.CaptureIntervalMS
	}
	if fc.MaxBackoffMS > 0 {
		cfg.MaxBackoffMS = fc.MaxBackoffMS
	}
	if fc.FrameQueueDepth > 0 {
		cfg.FrameQueueDepth = fc.FrameQueueDepth
	}
	if fc.StabilityThreshold > 0 {
		cfg.StabilityThreshold = fc.StabilityThreshold
	}
	if fc.IdleTimeoutMS > 0 {
		cfg.IdleTimeoutMS = fc.IdleTimeoutMS
	}
	if fc.ConfidenceThreshold > 0 {
		cfg.ConfidenceThreshold = fc.ConfidenceThreshold
	}
	if fc.MaxPlausiblePrice > 0 {
		cfg.MaxPlausiblePrice = fc.MaxPlausiblePrice
	}
	if fc.NameTolerance > 0 {
		cfg.NameTolerance = fc.NameTolerance
	}
	if fc.TessLanguage != "" {
		cfg.TessLanguage = fc.TessLanguage
	}
	if fc.AlertWebhookURL != "" {
		cfg.AlertWebhookURL = fc.AlertWebhookURL
	}
	if fc.AlertMinProfit > 0 {
		cfg.AlertMinProfit = fc.AlertMinProfit
	}
	if fc.AutoStart != nil {
		cfg.AutoStart = *fc.AutoStart
	}
}

func validate(cfg Config) error {
	if strings.TrimSpace(cfg.LayoutsPath) == "" {
		return errors.New("LAYOUTS_PATH is required")
	}
	if strings.TrimSpace(cfg.LayoutID) == "" {
		return errors.New("LAYOUT_ID is required")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return errors.New("DB_PATH is required")
	}
	if cfg.ConfidenceThreshold <= 0 || cfg.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence threshold must be in (0,1], got %v", cfg.ConfidenceThreshold)
	}
	return nil
}

// CaptureInterval returns the sampler tick interval.
func (c Config) CaptureInterval() time.Duration {
	return time.Duration(c.CaptureIntervalMS) * time.Millisecond
}

// MaxBackoff returns the ceiling for capture retry backoff.
func (c Config) MaxBackoff() time.Duration {
	return time.Duration(c.MaxBackoffMS) * time.Millisecond
}

// IdleTimeout returns the dedup idle reset duration.
func (c Config) IdleTimeout() time.Duration {
	return time.Duration(c.IdleTimeoutMS) * time.Millisecond
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func overrideInt(dst *int, key string) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("invalid %s=%q, keeping %d", key, v, *dst)
		return
	}
	*dst = n
}

func overrideInt64(dst *int64, key string) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		log.Printf("invalid %s=%q, keeping %d", key, v, *dst)
		return
	}
	*dst = n
}

func overrideFloat(dst *float64, key string) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("invalid %s=%q, keeping %v", key, v, *dst)
		return
	}
	*dst = f
}

func parseBool(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// Now returns a UTC timestamp truncated to the second for stable storage.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}

// Day formats a timestamp as the partition key used for daily rankings and
// history rows.
func Day(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
