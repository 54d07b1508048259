package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Device   DeviceConfig    `yaml:"device"`
	Scan     ScanConfig      `yaml:"scan"`
	Output   OutputConfig    `yaml:"output"`
	History  HistoryConfig   `yaml:"history"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
	Logging  LoggingConfig   `yaml:"logging"`
}

// DeviceConfig holds settings for reaching the multi-function device.
type DeviceConfig struct {
	Host              string `yaml:"host"`
	Label             string `yaml:"label"`
	LongPollTimeout   int    `yaml:"long_poll_timeout"`
	RequestsPerSecond int    `yaml:"requests_per_second"`
}

// ScanConfig holds scan job parameters.
type ScanConfig struct {
	Resolution        int    `yaml:"resolution"`
	Width             int    `yaml:"width"`
	Height            int    `yaml:"height"`
	Duplex            bool   `yaml:"duplex"`
	FilePattern       string `yaml:"file_pattern"`
	AdfPollIntervalMs int    `yaml:"adf_poll_interval_ms"`
	AdfStartDelayMs   int    `yaml:"adf_start_delay_ms"`
}

// OutputConfig holds output directory settings.
type OutputConfig struct {
	Dir           string `yaml:"dir"`
	TempDir       string `yaml:"temp_dir"`
	Thumbnails    bool   `yaml:"thumbnails"`
	ThumbnailEdge int    `yaml:"thumbnail_edge"`
}

// HistoryConfig holds scan history database settings.
type HistoryConfig struct {
	Path string `yaml:"path"`
}

// WebhookConfig describes one webhook target.
type WebhookConfig struct {
	Name   string   `yaml:"name"`
	URL    string   `yaml:"url"`
	Events []string `yaml:"events"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level          string `yaml:"level"`
	Format         string `yaml:"format"`
	FilePath       string `yaml:"file_path"`
	FileMaxSizeMB  int    `yaml:"file_max_size_mb"`
	FileMaxFiles   int    `yaml:"file_max_files"`
	FileMaxAgeDays int    `yaml:"file_max_age_days"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Device: DeviceConfig{
			LongPollTimeout:   1200,
			RequestsPerSecond: 10,
		},
		Scan: ScanConfig{
			Resolution:        200,
			AdfPollIntervalMs: 1000,
			AdfStartDelayMs:   3000,
		},
		Output: OutputConfig{
			Dir:           "/scans",
			TempDir:       "",
			ThumbnailEdge: 320,
		},
		History: HistoryConfig{
			Path: "/data/walkup.db",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads config from a YAML file (if it exists) and overrides with
// environment variables. Environment variables take precedence.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFromFile(path); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	cfg.loadFromEnv()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, c)
}

func (c *Config) loadFromEnv() {
	if v := os.Getenv("WU_DEVICE_HOST"); v != "" {
		c.Device.Host = v
	}
	if v := os.Getenv("WU_DEVICE_LABEL"); v != "" {
		c.Device.Label = v
	}
	if v := os.Getenv("WU_RESOLUTION"); v != "" {
		if res, err := strconv.Atoi(v); err == nil {
			c.Scan.Resolution = res
		}
	}
	if v := os.Getenv("WU_DUPLEX"); v != "" {
		c.Scan.Duplex = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("WU_FILE_PATTERN"); v != "" {
		c.Scan.FilePattern = v
	}
	if v := os.Getenv("WU_OUTPUT_DIR"); v != "" {
		c.Output.Dir = v
	}
	if v := os.Getenv("WU_TEMP_DIR"); v != "" {
		c.Output.TempDir = v
	}
	if v := os.Getenv("WU_DB_PATH"); v != "" {
		c.History.Path = v
	}
	if v := os.Getenv("WU_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("WU_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
}

func (c *Config) validate() error {
	if c.Device.Host == "" {
		return fmt.Errorf("device host is required (WU_DEVICE_HOST)")
	}
	if c.Scan.Resolution <= 0 {
		return fmt.Errorf("invalid scan resolution: %d", c.Scan.Resolution)
	}
	if c.Output.Dir == "" {
		return fmt.Errorf("output directory is required")
	}
	if c.Device.LongPollTimeout <= 0 {
		c.Device.LongPollTimeout = 1200
	}
	if c.Device.RequestsPerSecond <= 0 {
		c.Device.RequestsPerSecond = 10
	}
	c.Output.Dir = strings.TrimRight(c.Output.Dir, "/")
	return nil
}
