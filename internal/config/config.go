package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	Odds      OddsConfig      `mapstructure:"odds"`
	Stats     StatsConfig     `mapstructure:"stats"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Scanner   ScannerConfig   `mapstructure:"scanner"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Report    ReportConfig    `mapstructure:"report"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Slack     SlackConfig     `mapstructure:"slack"`
	API       APIConfig       `mapstructure:"api"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// OddsConfig holds The Odds API configuration
type OddsConfig struct {
	APIBaseURL     string        `mapstructure:"api_base_url"`
	APIKey         string        `mapstructure:"api_key"`
	Sport          string        `mapstructure:"sport"`
	Regions        string        `mapstructure:"regions"`
	Bookmaker      string        `mapstructure:"bookmaker"`
	PlayerMarkets  []string      `mapstructure:"player_markets"`
	AltMarkets     []string      `mapstructure:"alt_markets"`
	Timeout        time.Duration `mapstructure:"timeout"`
	RequestDelay   time.Duration `mapstructure:"request_delay"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
	Location       string        `mapstructure:"location"`
}

// StatsConfig holds box-score provider configuration
type StatsConfig struct {
	APIBaseURL     string        `mapstructure:"api_base_url"`
	APIKey         string        `mapstructure:"api_key"`
	Season         int           `mapstructure:"season"`
	Timeout        time.Duration `mapstructure:"timeout"`
	RequestDelay   time.Duration `mapstructure:"request_delay"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// EngineConfig holds the value-detection rule set
type EngineConfig struct {
	WindowSize        int     `mapstructure:"window_size"`
	MinSamplesPlayer  int     `mapstructure:"min_samples_player"`
	MinSamplesTeam    int     `mapstructure:"min_samples_team"`
	MinSamplesAlt     int     `mapstructure:"min_samples_alt"`
	ToleranceFraction float64 `mapstructure:"tolerance_fraction"`
	OddsCutoff        int     `mapstructure:"odds_cutoff"`
}

// ScannerConfig holds scan loop behavior configuration
type ScannerConfig struct {
	Sport          string `mapstructure:"sport"`
	PlayerProps    bool   `mapstructure:"player_props"`
	TeamTotals     bool   `mapstructure:"team_totals"`
	AlternateLines bool   `mapstructure:"alternate_lines"`
	Fresh          bool   `mapstructure:"fresh"`
}

// SchedulerConfig holds daemon-mode timing configuration
type SchedulerConfig struct {
	Lead          time.Duration `mapstructure:"lead"`
	CheckInterval time.Duration `mapstructure:"check_interval"`
}

// StorageConfig holds persistence configuration
type StorageConfig struct {
	Driver string `mapstructure:"driver"` // sqlite or postgres
	DSN    string `mapstructure:"dsn"`
}

// CacheConfig holds series cache configuration
type CacheConfig struct {
	Backend  string `mapstructure:"backend"` // storage, redis or memory
	RedisURL string `mapstructure:"redis_url"`
}

// ReportConfig holds report output configuration
type ReportConfig struct {
	XLSXDir string `mapstructure:"xlsx_dir"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	Enabled        bool          `mapstructure:"enabled"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// SlackConfig holds Slack webhook configuration
type SlackConfig struct {
	WebhookURL string `mapstructure:"webhook_url"`
	Enabled    bool   `mapstructure:"enabled"`
}

// APIConfig holds the read-only HTTP API configuration
type APIConfig struct {
	Addr        string   `mapstructure:"addr"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from an optional .env file, the config file and
// FLOORLINE_* environment variables (in increasing precedence).
func Load(path string) (*Config, error) {
	// .env is optional; secrets usually live there
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)

	v.SetEnvPrefix("FLOORLINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// API keys keep the names the providers document
	_ = v.BindEnv("odds.api_key", "FLOORLINE_ODDS_API_KEY", "ODDS_API_KEY")
	_ = v.BindEnv("stats.api_key", "FLOORLINE_STATS_API_KEY", "STATS_API_KEY")
	_ = v.BindEnv("slack.webhook_url", "FLOORLINE_SLACK_WEBHOOK_URL", "SLACK_WEBHOOK_URL")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Odds defaults
	v.SetDefault("odds.api_base_url", "https://api.the-odds-api.com/v4")
	v.SetDefault("odds.sport", "basketball_nba")
	v.SetDefault("odds.regions", "us")
	v.SetDefault("odds.player_markets", []string{
		"player_points", "player_rebounds", "player_assists",
		"player_threes", "player_steals", "player_blocks",
	})
	v.SetDefault("odds.timeout", "30s")
	v.SetDefault("odds.request_delay", "200ms")
	v.SetDefault("odds.max_retries", 3)
	v.SetDefault("odds.retry_delay_base", "1s")
	v.SetDefault("odds.location", "America/New_York")

	// Stats defaults
	v.SetDefault("stats.api_base_url", "https://api.balldontlie.io/v1")
	v.SetDefault("stats.season", 2025)
	v.SetDefault("stats.timeout", "30s")
	v.SetDefault("stats.request_delay", "600ms")
	v.SetDefault("stats.max_retries", 3)
	v.SetDefault("stats.retry_delay_base", "1s")

	// Engine defaults
	v.SetDefault("engine.window_size", 20)
	v.SetDefault("engine.min_samples_player", 6)
	v.SetDefault("engine.min_samples_team", 4)
	v.SetDefault("engine.min_samples_alt", 4)
	v.SetDefault("engine.tolerance_fraction", 0.10)
	v.SetDefault("engine.odds_cutoff", -500)

	// Scanner defaults
	v.SetDefault("scanner.sport", "nba")
	v.SetDefault("scanner.player_props", true)
	v.SetDefault("scanner.team_totals", true)
	v.SetDefault("scanner.alternate_lines", false)

	// Scheduler defaults
	v.SetDefault("scheduler.lead", "3h")
	v.SetDefault("scheduler.check_interval", "30m")

	// Storage defaults
	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.dsn", "./data/floorline.db")

	// Cache defaults
	v.SetDefault("cache.backend", "storage")

	// Telegram defaults
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	// API defaults
	v.SetDefault("api.addr", ":8080")
	v.SetDefault("api.cors_origins", []string{"*"})

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	// Validate Odds config
	if c.Odds.APIBaseURL == "" {
		return fmt.Errorf("odds.api_base_url is required")
	}
	if c.Odds.APIKey == "" {
		return fmt.Errorf("odds.api_key is required (or set ODDS_API_KEY)")
	}
	if c.Odds.Sport == "" {
		return fmt.Errorf("odds.sport is required")
	}
	if c.Odds.Timeout < 1*time.Second {
		return fmt.Errorf("odds.timeout must be at least 1 second")
	}
	if c.Odds.RequestDelay < 0 {
		return fmt.Errorf("odds.request_delay must not be negative")
	}
	if _, err := time.LoadLocation(c.Odds.Location); err != nil {
		return fmt.Errorf("odds.location is not a valid time zone: %w", err)
	}

	// Validate Stats config
	if c.Stats.APIBaseURL == "" {
		return fmt.Errorf("stats.api_base_url is required")
	}
	if c.Stats.Season < 2000 {
		return fmt.Errorf("stats.season must be a four-digit year")
	}
	if c.Stats.RequestDelay < 0 {
		return fmt.Errorf("stats.request_delay must not be negative")
	}

	// Validate Engine config
	if c.Engine.WindowSize < 1 {
		return fmt.Errorf("engine.window_size must be at least 1")
	}
	if c.Engine.MinSamplesPlayer < 1 || c.Engine.MinSamplesTeam < 1 || c.Engine.MinSamplesAlt < 1 {
		return fmt.Errorf("engine.min_samples_* must be at least 1")
	}
	if c.Engine.ToleranceFraction < 0.0 || c.Engine.ToleranceFraction >= 1.0 {
		return fmt.Errorf("engine.tolerance_fraction must be in [0.0, 1.0)")
	}
	if c.Engine.OddsCutoff > -100 {
		return fmt.Errorf("engine.odds_cutoff must be American odds of -100 or shorter")
	}

	// Validate Scanner config
	// scanner sport -> Odds API sport key prefix
	oddsSports := map[string]string{"nba": "basketball_", "nfl": "americanfootball_"}
	prefix, ok := oddsSports[c.Scanner.Sport]
	if !ok {
		return fmt.Errorf("scanner.sport must be one of: nba, nfl")
	}
	if !strings.HasPrefix(c.Odds.Sport, prefix) {
		return fmt.Errorf("odds.sport %q does not match scanner.sport %q (expected %s*)", c.Odds.Sport, c.Scanner.Sport, prefix)
	}
	if !c.Scanner.PlayerProps && !c.Scanner.TeamTotals && !c.Scanner.AlternateLines {
		return fmt.Errorf("scanner must enable at least one of player_props, team_totals, alternate_lines")
	}

	// Validate Scheduler config
	if c.Scheduler.Lead < 0 {
		return fmt.Errorf("scheduler.lead must not be negative")
	}
	if c.Scheduler.CheckInterval < 1*time.Minute {
		return fmt.Errorf("scheduler.check_interval must be at least 1 minute")
	}

	// Validate Storage config
	validDrivers := map[string]bool{"sqlite": true, "postgres": true}
	if !validDrivers[c.Storage.Driver] {
		return fmt.Errorf("storage.driver must be one of: sqlite, postgres")
	}
	if c.Storage.DSN == "" {
		return fmt.Errorf("storage.dsn is required")
	}

	// Validate Cache config
	validBackends := map[string]bool{"storage": true, "redis": true, "memory": true}
	if !validBackends[c.Cache.Backend] {
		return fmt.Errorf("cache.backend must be one of: storage, redis, memory")
	}
	if c.Cache.Backend == "redis" && c.Cache.RedisURL == "" {
		return fmt.Errorf("cache.redis_url is required when cache.backend is redis")
	}

	// Validate Telegram config
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	// Validate Slack config
	if c.Slack.Enabled && c.Slack.WebhookURL == "" {
		return fmt.Errorf("slack.webhook_url is required when slack is enabled")
	}

	// Validate Logging config
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}

// MinSamples returns the minimum sample size for a market type.
func (e EngineConfig) MinSamples(team, alternate bool) int {
	switch {
	case alternate:
		return e.MinSamplesAlt
	case team:
		return e.MinSamplesTeam
	default:
		return e.MinSamplesPlayer
	}
}

// ScanLocation returns the time zone used to decide "today's" games.
func (o OddsConfig) ScanLocation() *time.Location {
	loc, err := time.LoadLocation(o.Location)
	if err != nil {
		return time.UTC
	}
	return loc
}
