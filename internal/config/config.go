package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	Port          int              `json:"port"`
	JWTSecret     string           `json:"jwt_secret"`
	JWTTTLHours   int              `json:"jwt_ttl_hours"`
	CORSAllowlist []string         `json:"cors_allowlist"`
	LogConfig     logger.LogConfig `json:"log_config"`
	Database      DatabaseConfig   `json:"database"`
	Share         ShareConfig      `json:"share"`
	Stats         StatsConfig      `json:"stats"`
	Archive       ArchiveConfig    `json:"archive"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	SSLMode  string `json:"ssl_mode"`
}

type ShareConfig struct {
	StorageTimeoutMs int   `json:"storage_timeout_ms"`
	MaxExpireHours   int64 `json:"max_expire_hours"`
	MaxAccessLimit   int64 `json:"max_access_limit"`
	MinPasswordLen   int   `json:"min_password_len"`
}

func (c ShareConfig) StorageTimeout() time.Duration {
	return time.Duration(c.StorageTimeoutMs) * time.Millisecond
}

type StatsConfig struct {
	Timezone string `json:"timezone"`
}

type ArchiveConfig struct {
	Enabled       bool        `json:"enabled"`
	Type          string      `json:"type"`
	RetentionDays int         `json:"retention_days"`
	Cron          string      `json:"cron"`
	Data          interface{} `json:"data"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("jwt_secret is required")
	}
	if cfg.Port == 0 {
		return nil, fmt.Errorf("port is required")
	}
	if cfg.Database.DSN == "" && (cfg.Database.Host == "" || cfg.Database.DBName == "") {
		return nil, fmt.Errorf("database dsn or host/db_name is required")
	}
	if cfg.JWTTTLHours == 0 {
		cfg.JWTTTLHours = 72
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.Share.StorageTimeoutMs == 0 {
		cfg.Share.StorageTimeoutMs = 3000
	}
	if cfg.Share.MaxExpireHours == 0 {
		cfg.Share.MaxExpireHours = 8760
	}
	if cfg.Share.MaxAccessLimit == 0 {
		cfg.Share.MaxAccessLimit = 1000000
	}
	if cfg.Share.MinPasswordLen == 0 {
		cfg.Share.MinPasswordLen = 6
	}
	if cfg.Stats.Timezone == "" {
		cfg.Stats.Timezone = "UTC"
	}
	if _, err := time.LoadLocation(cfg.Stats.Timezone); err != nil {
		return nil, fmt.Errorf("stats.timezone: %w", err)
	}
	if cfg.Archive.Enabled {
		if cfg.Archive.Type == "" {
			cfg.Archive.Type = "local"
		}
		if cfg.Archive.RetentionDays == 0 {
			cfg.Archive.RetentionDays = 180
		}
		if cfg.Archive.Cron == "" {
			cfg.Archive.Cron = "30 3 * * *"
		}
	}
	return &cfg, nil
}
