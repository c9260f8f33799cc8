package config

import (
	"fmt"
	"time"

	"golang-surge-signal/pkg/config"
)

// Exchange holds the Binance connection and guard settings.
type Exchange struct {
	APIKey              string        `mapstructure:"api_key"`
	SecretKey           string        `mapstructure:"secret_key"`
	BaseURL             string        `mapstructure:"base_url"`
	MaxRequestPerMinute int           `mapstructure:"max_request_per_minute"`
	RequestTimeout      time.Duration `mapstructure:"request_timeout"`
	PriceCacheTTL       time.Duration `mapstructure:"price_cache_ttl"`
	BreakerMaxFailures  uint32        `mapstructure:"breaker_max_failures"`
	BreakerOpenTimeout  time.Duration `mapstructure:"breaker_open_timeout"`
}

// Scanner drives the signal generation sweep.
type Scanner struct {
	Schedule         string        `mapstructure:"schedule"`
	Interval         string        `mapstructure:"interval"`
	CandleLimit      int           `mapstructure:"candle_limit"`
	TopMarkets       int           `mapstructure:"top_markets"`
	UniverseRefresh  time.Duration `mapstructure:"universe_refresh"`
	IncludeMarkets   []string      `mapstructure:"include_markets"`
	ExcludeMarkets   []string      `mapstructure:"exclude_markets"`
	Concurrency      int           `mapstructure:"concurrency"`
	MinScore         float64       `mapstructure:"min_score"`
	MaxRetries       int           `mapstructure:"max_retries"`
	RetryMinDelay    time.Duration `mapstructure:"retry_min_delay"`
	RetryMaxDelay    time.Duration `mapstructure:"retry_max_delay"`
	SweepTimeout     time.Duration `mapstructure:"sweep_timeout"`
	SignalValidity   time.Duration `mapstructure:"signal_validity"`
	DefaultRecipient int64         `mapstructure:"default_recipient"`
}

// Monitor drives the position monitor sweep.
type Monitor struct {
	Schedule           string        `mapstructure:"schedule"`
	MaxHoldingDuration time.Duration `mapstructure:"max_holding_duration"`
	Concurrency        int           `mapstructure:"concurrency"`
	SweepTimeout       time.Duration `mapstructure:"sweep_timeout"`
}

// Signal holds the fallback price policy used when a user has no usable settings.
type Signal struct {
	StopLossPercent     float64 `mapstructure:"stop_loss_percent"`
	TakeProfitPercent   float64 `mapstructure:"take_profit_percent"`
	MinTargetPercent    float64 `mapstructure:"min_target_percent"`
	MaxTargetPercent    float64 `mapstructure:"max_target_percent"`
	DynamicTarget       bool    `mapstructure:"dynamic_target"`
	WinThresholdPercent float64 `mapstructure:"win_threshold_percent"`
}

// Scheduler controls cron ownership and the distributed lock.
type Scheduler struct {
	AutoStart bool          `mapstructure:"auto_start"`
	LockTTL   time.Duration `mapstructure:"lock_ttl"`
	TimeZone  string        `mapstructure:"time_zone"`
}

// Telegram holds configuration for the Telegram notifier.
type Telegram struct {
	BotToken    string        `mapstructure:"bot_token"`
	ChatID      int64         `mapstructure:"chat_id"`
	Enabled     bool          `mapstructure:"enabled"`
	SendTimeout time.Duration `mapstructure:"send_timeout"`
}

// Config holds the full configuration for the signal service.
type Config struct {
	App       config.App      `mapstructure:"app"`
	Logger    config.Logger   `mapstructure:"logger"`
	Database  config.Database `mapstructure:"database"`
	Redis     config.Redis    `mapstructure:"redis"`
	API       config.API      `mapstructure:"api"`
	Exchange  Exchange        `mapstructure:"exchange"`
	Scanner   Scanner         `mapstructure:"scanner"`
	Monitor   Monitor         `mapstructure:"monitor"`
	Signal    Signal          `mapstructure:"signal"`
	Scheduler Scheduler       `mapstructure:"scheduler"`
	Telegram  Telegram        `mapstructure:"telegram"`
}

// Load loads the signal service configuration from the given path and fills defaults.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := config.Load(path, &cfg); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills zero values with workable settings.
func (c *Config) ApplyDefaults() {
	if c.Exchange.MaxRequestPerMinute <= 0 {
		c.Exchange.MaxRequestPerMinute = 1200
	}
	if c.Exchange.RequestTimeout <= 0 {
		c.Exchange.RequestTimeout = 10 * time.Second
	}
	if c.Exchange.PriceCacheTTL <= 0 {
		c.Exchange.PriceCacheTTL = 5 * time.Second
	}
	if c.Exchange.BreakerMaxFailures == 0 {
		c.Exchange.BreakerMaxFailures = 5
	}
	if c.Exchange.BreakerOpenTimeout <= 0 {
		c.Exchange.BreakerOpenTimeout = 30 * time.Second
	}

	if c.Scanner.Schedule == "" {
		c.Scanner.Schedule = "*/5 * * * *"
	}
	if c.Scanner.Interval == "" {
		c.Scanner.Interval = "15m"
	}
	if c.Scanner.CandleLimit <= 0 {
		c.Scanner.CandleLimit = 100
	}
	if c.Scanner.TopMarkets <= 0 {
		c.Scanner.TopMarkets = 50
	}
	if c.Scanner.UniverseRefresh <= 0 {
		c.Scanner.UniverseRefresh = time.Hour
	}
	if c.Scanner.Concurrency <= 0 {
		c.Scanner.Concurrency = 8
	}
	if c.Scanner.MinScore <= 0 {
		c.Scanner.MinScore = 60
	}
	if c.Scanner.MaxRetries <= 0 {
		c.Scanner.MaxRetries = 3
	}
	if c.Scanner.RetryMinDelay <= 0 {
		c.Scanner.RetryMinDelay = 500 * time.Millisecond
	}
	if c.Scanner.RetryMaxDelay <= 0 {
		c.Scanner.RetryMaxDelay = 5 * time.Second
	}
	if c.Scanner.SweepTimeout <= 0 {
		c.Scanner.SweepTimeout = 4 * time.Minute
	}
	if c.Scanner.SignalValidity <= 0 {
		c.Scanner.SignalValidity = 4 * time.Hour
	}

	if c.Monitor.Schedule == "" {
		c.Monitor.Schedule = "* * * * *"
	}
	if c.Monitor.MaxHoldingDuration <= 0 {
		c.Monitor.MaxHoldingDuration = 72 * time.Hour
	}
	if c.Monitor.Concurrency <= 0 {
		c.Monitor.Concurrency = 8
	}
	if c.Monitor.SweepTimeout <= 0 {
		c.Monitor.SweepTimeout = 50 * time.Second
	}

	if c.Signal.StopLossPercent <= 0 {
		c.Signal.StopLossPercent = 5
	}
	if c.Signal.TakeProfitPercent <= 0 {
		c.Signal.TakeProfitPercent = 10
	}
	if c.Signal.MinTargetPercent <= 0 {
		c.Signal.MinTargetPercent = 5
	}
	if c.Signal.MaxTargetPercent <= 0 {
		c.Signal.MaxTargetPercent = 15
	}
	if c.Signal.WinThresholdPercent <= 0 {
		c.Signal.WinThresholdPercent = 5
	}

	if c.Scheduler.LockTTL <= 0 {
		c.Scheduler.LockTTL = 5 * time.Minute
	}
	if c.Scheduler.TimeZone == "" {
		c.Scheduler.TimeZone = "UTC"
	}
	if c.Telegram.SendTimeout <= 0 {
		c.Telegram.SendTimeout = 10 * time.Second
	}
	if c.API.Port == 0 {
		c.API.Port = 8080
	}
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if c.Signal.StopLossPercent >= 100 {
		return fmt.Errorf("signal.stop_loss_percent must be below 100")
	}
	if c.Signal.MinTargetPercent > c.Signal.MaxTargetPercent {
		return fmt.Errorf("signal.min_target_percent must not exceed signal.max_target_percent")
	}
	return nil
}
