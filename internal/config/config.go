package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Database  Database  `yaml:"database"`
	Scraper   Scraper   `yaml:"scraper"`
	Forecast  Forecast  `yaml:"forecast"`
	Aggregate Aggregate `yaml:"aggregate"`
	Schedule  Schedule  `yaml:"schedule"`
	Server    Server    `yaml:"server"`
	Logging   Logging   `yaml:"logging"`
}

type Database struct {
	DataDir string `yaml:"data_dir"`
}

type Scraper struct {
	UserAgent   string `yaml:"user_agent"`
	MaxAttempts int    `yaml:"max_attempts"`
	RetryDelay  string `yaml:"retry_delay"`
	Timeout     string `yaml:"timeout"`
}

// RetryDelayDuration parses the configured retry delay, falling back to
// 2s on a value time.ParseDuration rejects.
func (s Scraper) RetryDelayDuration() time.Duration {
	return parseDurationOr(s.RetryDelay, 2*time.Second)
}

// TimeoutDuration parses the configured request timeout, falling back
// to 15s.
func (s Scraper) TimeoutDuration() time.Duration {
	return parseDurationOr(s.Timeout, 15*time.Second)
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

type Forecast struct {
	HorizonDays int `yaml:"horizon_days"`
	MinHistory  int `yaml:"min_history"`
}

type Aggregate struct {
	WindowDays int `yaml:"window_days"`
}

type Schedule struct {
	ScrapeTimes  []string `yaml:"scrape_times"`
	PipelineTime string   `yaml:"pipeline_time"`
}

type Server struct {
	Port int `yaml:"port"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// ConfigDir returns the XDG config directory for pricewatch.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "pricewatch")
}

// DataDir returns the XDG data directory for pricewatch.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "pricewatch")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/pricewatch/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'pricewatch init' to create a default config",
		xdgConfig,
	)
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg, err := parse(DefaultConfigYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded default config is invalid: %v", err))
	}
	return cfg
}

// Load reads and parses a config YAML file. A .env file in the working
// directory is loaded first so environment overrides apply on top.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg, err := parse(data)
	if err != nil {
		return nil, err
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Scraper: Scraper{
			UserAgent:   "pricewatch/1.0 (price monitor)",
			MaxAttempts: 6,
			RetryDelay:  "2s",
			Timeout:     "15s",
		},
		Forecast: Forecast{
			HorizonDays: 3,
			MinHistory:  5,
		},
		Aggregate: Aggregate{WindowDays: 1},
		Schedule: Schedule{
			ScrapeTimes:  []string{"06:00", "18:00"},
			PipelineTime: "04:00",
		},
		Server:  Server{Port: 8000},
		Logging: Logging{Level: "INFO"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides lets deployment environments adjust the settings the
// scheduler and stores depend on without editing the config file.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PRICEWATCH_DATA_DIR"); v != "" {
		cfg.Database.DataDir = v
	}
	if v := os.Getenv("PRICEWATCH_PIPELINE_TIME"); v != "" {
		cfg.Schedule.PipelineTime = v
	}
	if v := os.Getenv("PRICEWATCH_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Database.DataDir != "" {
		return c.Database.DataDir
	}
	return DataDir()
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
