package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oyunlab/quizgrid/go/internal/housekeeping"
	"github.com/oyunlab/quizgrid/go/internal/match"
	"github.com/oyunlab/quizgrid/go/internal/queue"
)

// Config is the optional game-tuning file. Anything left zero falls back
// to the built-in defaults; connection settings stay in the environment.
type Config struct {
	Game struct {
		Categories      []string `yaml:"categories"`
		AnswerWindowSec int      `yaml:"answer_window_sec"`
	} `yaml:"game"`
	Matchmaking struct {
		BaseWindow    int `yaml:"base_window"`
		WindowStep    int `yaml:"window_step"`
		WidenEverySec int `yaml:"widen_every_sec"`
		MaxWaitSec    int `yaml:"max_wait_sec"`
	} `yaml:"matchmaking"`
	Retention struct {
		FinishedMatchHours int `yaml:"finished_match_hours"`
	} `yaml:"retention"`
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func loadConfig(path string) (*Config, error) {
	var config Config
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &config, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &config, nil
}

func (c *Config) matchConfig() match.Config {
	cfg := match.DefaultConfig()
	if len(c.Game.Categories) > 0 {
		cfg.Categories = c.Game.Categories
	}
	if c.Game.AnswerWindowSec > 0 {
		cfg.AnswerWindow = time.Duration(c.Game.AnswerWindowSec) * time.Second
	}
	return cfg
}

func (c *Config) queueConfig() queue.Config {
	cfg := queue.DefaultConfig()
	if c.Matchmaking.BaseWindow > 0 {
		cfg.BaseWindow = c.Matchmaking.BaseWindow
	}
	if c.Matchmaking.WindowStep > 0 {
		cfg.WindowStep = c.Matchmaking.WindowStep
	}
	if c.Matchmaking.WidenEverySec > 0 {
		cfg.WidenEvery = time.Duration(c.Matchmaking.WidenEverySec) * time.Second
	}
	if c.Matchmaking.MaxWaitSec > 0 {
		cfg.MaxWait = time.Duration(c.Matchmaking.MaxWaitSec) * time.Second
	}
	return cfg
}

func (c *Config) housekeepingConfig() housekeeping.Config {
	cfg := housekeeping.DefaultConfig()
	if c.Retention.FinishedMatchHours > 0 {
		cfg.Retention = time.Duration(c.Retention.FinishedMatchHours) * time.Hour
	}
	return cfg
}
