package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the bot.
type Config struct {
	General     GeneralConfig     `mapstructure:"general"`
	Telegram    TelegramConfig    `mapstructure:"telegram"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Embedding   EmbeddingConfig   `mapstructure:"embedding"`
	Publication PublicationConfig `mapstructure:"publication"`
	Schedule    ScheduleConfig    `mapstructure:"schedule"`
	Server      ServerConfig      `mapstructure:"server"`
	Themes      []ThemeEntry      `mapstructure:"themes"`
	Sources     []SourceConfig    `mapstructure:"sources"`
}

// GeneralConfig contains general application settings.
type GeneralConfig struct {
	Debug          bool          `mapstructure:"debug"`
	LogLevel       string        `mapstructure:"log_level"`
	DefaultTimeout time.Duration `mapstructure:"default_timeout"`
}

// TelegramConfig contains Bot API credentials and the target channel.
type TelegramConfig struct {
	BotToken     string        `mapstructure:"bot_token"`
	Channel      string        `mapstructure:"channel"`
	APIBaseURL   string        `mapstructure:"api_base_url"`
	Timeout      time.Duration `mapstructure:"timeout"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
}

// StorageConfig groups Postgres and Redis settings.
type StorageConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

// PostgresConfig describes the article database connection.
type PostgresConfig struct {
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// DSN assembles a Postgres connection string from the configured parts.
func (p PostgresConfig) DSN() (string, error) {
	if p.URL != "" {
		return p.URL, nil
	}
	if p.Host == "" || p.DBName == "" {
		return "", fmt.Errorf("postgres not configured (storage.postgres.host/dbname or url)")
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, port, p.DBName, ssl), nil
}

// RedisConfig describes the Redis instance used for job locks.
type RedisConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
	Pass string `mapstructure:"pass"`
	DB   int    `mapstructure:"db"`
}

// Addr returns host:port, or empty when Redis is not configured.
func (r RedisConfig) Addr() string {
	if r.Host == "" || r.Port == "" {
		return ""
	}
	return r.Host + ":" + r.Port
}

// EmbeddingConfig configures the embedding API client.
type EmbeddingConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	APIKey     string        `mapstructure:"api_key"`
	Model      string        `mapstructure:"model"`
	Dimensions int           `mapstructure:"dimensions"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
	BatchSize  int           `mapstructure:"batch_size"`
}

// PublicationConfig tunes candidate selection and summary assembly.
type PublicationConfig struct {
	CandidateLimit    int `mapstructure:"candidate_limit"`
	EveningTopN       int `mapstructure:"evening_top_n"`
	SummaryArticles   int `mapstructure:"summary_articles"`
	SummaryWindowDays int `mapstructure:"summary_window_days"`
	ThemeHistorySize  int `mapstructure:"theme_history_size"`
}

// ScheduleConfig lists named cron jobs and the interval jobs. BackfillDelay
// offsets the embedding backfill past the scrape pass each cycle, so freshly
// scraped articles gain embeddings in the same cycle.
type ScheduleConfig struct {
	Timezone         string        `mapstructure:"timezone"`
	Jobs             []JobSpec     `mapstructure:"jobs"`
	ScrapeInterval   time.Duration `mapstructure:"scrape_interval"`
	BackfillInterval time.Duration `mapstructure:"backfill_interval"`
	BackfillDelay    time.Duration `mapstructure:"backfill_delay"`
}

// JobSpec binds a cron expression to a publication job.
// Kind is one of "slot", "summary", "rotate"; Slot names the selection
// policy for slot jobs ("morning", "evening").
type JobSpec struct {
	Name string `mapstructure:"name"`
	Cron string `mapstructure:"cron"`
	Kind string `mapstructure:"kind"`
	Slot string `mapstructure:"slot"`
}

// ServerConfig contains the admin HTTP API settings.
type ServerConfig struct {
	Listen            string `mapstructure:"listen"`
	JWTSecret         string `mapstructure:"jwt_secret"`
	AdminEmail        string `mapstructure:"admin_email"`
	AdminPasswordHash string `mapstructure:"admin_password_hash"`
}

// ThemeEntry is one candidate in the weekly theme catalog.
type ThemeEntry struct {
	Title       string `mapstructure:"title"`
	Description string `mapstructure:"description"`
}

// SourceConfig describes one scraped origin (rss, html or telegram_web).
type SourceConfig struct {
	Name string   `mapstructure:"name"`
	Type string   `mapstructure:"type"`
	URL  string   `mapstructure:"url"`
	Tags []string `mapstructure:"tags"`

	// HTML sources only: selectors for listing pages.
	ItemSelector  string `mapstructure:"item_selector"`
	LinkSelector  string `mapstructure:"link_selector"`
	TitleSelector string `mapstructure:"title_selector"`
}

// Load reads configuration from the given file, or from the default search
// paths when path is empty. Environment variables with the VESTNIK_ prefix
// override file values (VESTNIK_TELEGRAM_BOT_TOKEN etc).
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetDefault("general.log_level", "info")
	v.SetDefault("general.default_timeout", 30*time.Second)
	v.SetDefault("telegram.api_base_url", "https://api.telegram.org")
	v.SetDefault("telegram.timeout", 30*time.Second)
	v.SetDefault("telegram.retry_backoff", 5*time.Second)
	v.SetDefault("embedding.dimensions", 384)
	v.SetDefault("embedding.timeout", 30*time.Second)
	v.SetDefault("embedding.max_retries", 3)
	v.SetDefault("embedding.batch_size", 32)
	v.SetDefault("publication.candidate_limit", 12)
	v.SetDefault("publication.evening_top_n", 5)
	v.SetDefault("publication.summary_articles", 5)
	v.SetDefault("publication.summary_window_days", 7)
	v.SetDefault("publication.theme_history_size", 3)
	v.SetDefault("schedule.timezone", "Europe/Moscow")
	v.SetDefault("schedule.scrape_interval", 4*time.Hour)
	v.SetDefault("schedule.backfill_interval", 4*time.Hour)
	v.SetDefault("schedule.backfill_delay", 5*time.Minute)
	v.SetDefault("server.listen", ":8080")

	if path == "" {
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("VESTNIK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram.bot_token is required")
	}
	if c.Telegram.Channel == "" {
		return fmt.Errorf("telegram.channel is required")
	}
	if len(c.Themes) == 0 {
		return fmt.Errorf("at least one themes entry is required")
	}
	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding.dimensions must be positive")
	}
	return nil
}
