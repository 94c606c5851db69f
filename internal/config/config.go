package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Tushare struct {
		Token       string `yaml:"token"`
		BaseURL     string `yaml:"base_url"`
		HistoryDays int    `yaml:"history_days"`
	} `yaml:"tushare"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   int64  `yaml:"chat_id"`
	} `yaml:"telegram"`
	Screening struct {
		WatchlistPath string  `yaml:"watchlist_path"`
		Workers       int     `yaml:"workers"`
		HistoryLimit  int     `yaml:"history_limit"`
		MinMarketCap  float64 `yaml:"min_market_cap"`
		MaxMarketCap  float64 `yaml:"max_market_cap"`
		NoMarketCap   bool    `yaml:"no_market_cap"`
		ExportDir     string  `yaml:"export_dir"`
		ExportAll     bool    `yaml:"export_all"`
	} `yaml:"screening"`
	Schedule struct {
		ScreenCron    string `yaml:"screen_cron"`
		ReferenceCron string `yaml:"reference_cron"`
	} `yaml:"schedule"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	HTTP struct {
		Addr string `yaml:"addr"`
	} `yaml:"http"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
	Proxy string `yaml:"proxy"`
}

// Load reads config from a YAML file, then applies .env and environment
// variable overrides, then defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// .env never overrides variables already present in the environment
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("TUSHARE_TOKEN"); v != "" {
		cfg.Tushare.Token = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("TELEGRAM_CHAT_ID: %w", err)
		}
		cfg.Telegram.ChatID = id
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("WATCHLIST_PATH"); v != "" {
		cfg.Screening.WatchlistPath = v
	}
	if v := os.Getenv("SCREEN_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SCREEN_WORKERS: %w", err)
		}
		cfg.Screening.Workers = n
	}
	if v := os.Getenv("CRON_SCREEN"); v != "" {
		cfg.Schedule.ScreenCron = v
	}
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Tushare.BaseURL == "" {
		cfg.Tushare.BaseURL = "http://api.tushare.pro"
	}
	if cfg.Tushare.HistoryDays == 0 {
		cfg.Tushare.HistoryDays = 400
	}
	if cfg.Screening.WatchlistPath == "" {
		cfg.Screening.WatchlistPath = "data/watchlist.csv"
	}
	if cfg.Screening.HistoryLimit == 0 {
		cfg.Screening.HistoryLimit = 300
	}
	if cfg.Screening.MinMarketCap == 0 && cfg.Screening.MaxMarketCap == 0 {
		// 万元
		cfg.Screening.MinMarketCap = 200000
		cfg.Screening.MaxMarketCap = 3000000
	}
	if cfg.Screening.ExportDir == "" {
		cfg.Screening.ExportDir = "data/results"
	}
	if cfg.Schedule.ScreenCron == "" {
		cfg.Schedule.ScreenCron = "0 30 17 * * 1-5"
	}
	if cfg.Schedule.ReferenceCron == "" {
		cfg.Schedule.ReferenceCron = "0 0 8 * * 1"
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "data/stock_data.db"
	}
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

// Validate checks that all required fields are set.
func (c *Config) Validate() error {
	if c.Tushare.Token == "" {
		return fmt.Errorf("tushare.token is required")
	}
	// calendar days; 242 trading days span roughly a year
	if c.Tushare.HistoryDays < 360 {
		return fmt.Errorf("tushare.history_days must be at least 360, got %d", c.Tushare.HistoryDays)
	}
	if c.Screening.HistoryLimit != -1 && c.Screening.HistoryLimit < 242 {
		return fmt.Errorf("screening.history_limit must be -1 or at least 242, got %d", c.Screening.HistoryLimit)
	}
	if c.Screening.Workers < 0 {
		return fmt.Errorf("screening.workers must not be negative")
	}
	if c.Screening.MinMarketCap < 0 || c.Screening.MaxMarketCap < c.Screening.MinMarketCap {
		return fmt.Errorf("screening market cap range [%.0f, %.0f] is invalid",
			c.Screening.MinMarketCap, c.Screening.MaxMarketCap)
	}
	if c.Telegram.BotToken != "" && c.Telegram.ChatID == 0 {
		return fmt.Errorf("telegram.chat_id is required when bot_token is set")
	}
	return nil
}

// MarketCapFilterEnabled reports whether market-cap candidates are merged into
// the watchlist.
func (c *Config) MarketCapFilterEnabled() bool {
	return !c.Screening.NoMarketCap && c.Screening.MaxMarketCap > 0
}
