// Package config assembles the server configuration from an optional
// YAML file overlaid by environment variables. Environment wins.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type AppConfig struct {
	HTTPAddr string `yaml:"http_addr"`
	WSAddr   string `yaml:"ws_addr"`

	RedisURL    string `yaml:"redis_url"`
	DatabaseURL string `yaml:"database_url"`

	StockfishPath    string `yaml:"stockfish_path"`
	EngineThreads    int    `yaml:"engine_threads"`
	EngineHashMB     int    `yaml:"engine_hash_mb"`
	EngineSkillLevel int    `yaml:"engine_skill_level"`
	SearchDepth      int    `yaml:"search_depth"`

	IdleUnstartedSec  int `yaml:"idle_unstarted_sec"`
	IdleStartedSec    int `yaml:"idle_started_sec"`
	AbandonGraceSec   int `yaml:"abandon_grace_sec"`
	CountdownSec      int `yaml:"countdown_sec"`
	SwitchIntervalSec int `yaml:"switch_interval_sec"`
}

// Load reads CONFIG_FILE (when set) and then the environment.
func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		HTTPAddr:      ":8080",
		WSAddr:        ":8081",
		EngineThreads: 2,
		EngineHashMB:  128,
		SearchDepth:   15,
	}

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	setStr(&cfg.HTTPAddr, "HTTP_ADDR")
	setStr(&cfg.WSAddr, "WS_ADDR")
	setStr(&cfg.RedisURL, "REDIS_URL")
	setStr(&cfg.DatabaseURL, "DATABASE_URL")
	setStr(&cfg.StockfishPath, "STOCKFISH_PATH")
	setInt(&cfg.EngineThreads, "ENGINE_THREADS")
	setInt(&cfg.EngineHashMB, "ENGINE_HASH_MB")
	setInt(&cfg.EngineSkillLevel, "ENGINE_SKILL_LEVEL")
	setInt(&cfg.SearchDepth, "SEARCH_DEPTH")
	setInt(&cfg.IdleUnstartedSec, "IDLE_UNSTARTED_SEC")
	setInt(&cfg.IdleStartedSec, "IDLE_STARTED_SEC")
	setInt(&cfg.AbandonGraceSec, "ABANDON_GRACE_SEC")
	setInt(&cfg.CountdownSec, "COUNTDOWN_SEC")
	setInt(&cfg.SwitchIntervalSec, "SWITCH_INTERVAL_SEC")

	if cfg.StockfishPath == "" {
		return nil, errors.New("STOCKFISH_PATH is required")
	}
	return cfg, nil
}

// Durations converts the second-granularity knobs, leaving zeros for the
// lobby defaults.
func (c *AppConfig) Durations() (idleUnstarted, idleStarted, grace, countdown, interval time.Duration) {
	return time.Duration(c.IdleUnstartedSec) * time.Second,
		time.Duration(c.IdleStartedSec) * time.Second,
		time.Duration(c.AbandonGraceSec) * time.Second,
		time.Duration(c.CountdownSec) * time.Second,
		time.Duration(c.SwitchIntervalSec) * time.Second
}

func setStr(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			*dst = n
		}
	}
}
