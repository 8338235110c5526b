package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	defaultListenAddr   = ":8080"
	defaultCronSchedule = "@every 1h"
	defaultLogLevel     = "info"
)

// defaultDeliveryDateFormats covers the ISO form provider files use
// today and the US form older submissions carried.
var defaultDeliveryDateFormats = []string{"2006-01-02", "01/02/2006"}

type Config struct {
	DBDSN               string   `json:"db_dsn" yaml:"db_dsn"`
	ProviderInputDir    string   `json:"provider_input_dir" yaml:"provider_input_dir"`
	AfrrInputDir        string   `json:"afrr_input_dir" yaml:"afrr_input_dir"`
	ArchiveDir          string   `json:"archive_dir" yaml:"archive_dir"`
	DeliveryDateFormats []string `json:"delivery_date_formats" yaml:"delivery_date_formats"`
	ListenAddr          string   `json:"listen_addr" yaml:"listen_addr"`
	CronSchedule        string   `json:"cron_schedule" yaml:"cron_schedule"`
	LogFile             string   `json:"log_file" yaml:"log_file"`
	LogLevel            string   `json:"log_level" yaml:"log_level"`
}

func Load(path string) (Config, error) {
	if path == "" {
		return Config{}, fmt.Errorf("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	if cfg.DBDSN == "" {
		return Config{}, fmt.Errorf("db_dsn is required")
	}
	if cfg.ProviderInputDir == "" {
		return Config{}, fmt.Errorf("provider_input_dir is required")
	}
	if cfg.AfrrInputDir == "" {
		return Config{}, fmt.Errorf("afrr_input_dir is required")
	}

	if cfg.ArchiveDir == "" {
		cfg.ArchiveDir = filepath.Join(filepath.Dir(cfg.ProviderInputDir), "archive")
	}
	if len(cfg.DeliveryDateFormats) == 0 {
		cfg.DeliveryDateFormats = defaultDeliveryDateFormats
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = defaultListenAddr
	}
	if cfg.CronSchedule == "" {
		cfg.CronSchedule = defaultCronSchedule
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaultLogLevel
	}

	return cfg, nil
}
