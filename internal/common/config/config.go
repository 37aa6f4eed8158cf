// internal/common/config/config.go
package config

import (
	"fmt"
	"time"
)

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig          `mapstructure:"app"`
	Scrape        ScrapeConfig       `mapstructure:"scrape"`
	Cache         CacheConfig        `mapstructure:"cache"`
	Training      TrainingConfig     `mapstructure:"training"`
	Database      DatabaseConfig     `mapstructure:"database"`
	API           APIConfig          `mapstructure:"api"`
	Logging       LoggingConfig      `mapstructure:"logging"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Registry      RegistryConfig     `mapstructure:"registry"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// ObservabilityConfig controls the optional tracing exporter. Metrics are
// always on.
type ObservabilityConfig struct {
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// ScrapeConfig bounds the fetch orchestrator and the target resolver.
// None of these are hard-coded inside the components; the caller passes
// them down explicitly.
type ScrapeConfig struct {
	MaxConcurrency      int     `mapstructure:"max_concurrency"`
	ListingLimit        int     `mapstructure:"listing_limit"`
	DetailLimit         int     `mapstructure:"detail_limit"`
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"`
	CandidateCap        int     `mapstructure:"candidate_cap"`
	FetchTimeout        int     `mapstructure:"fetch_timeout"` // milliseconds
	Site                string  `mapstructure:"site"`
}

// CacheConfig carries the TTLs for both cache tiers.
type CacheConfig struct {
	DatasetTTLHours  int `mapstructure:"dataset_ttl_hours"`  // Parameter Cache
	EntityTTLHours   int `mapstructure:"entity_ttl_hours"`   // Entity Cache
	RefetchDelayDays int `mapstructure:"refetch_delay_days"` // force-refetch delay for full runs
}

// TrainingConfig parameterizes the retraining decision and the trainer client.
type TrainingConfig struct {
	MinIncreaseRatio float64 `mapstructure:"min_increase_ratio"`
	MaxAgeDays       int     `mapstructure:"max_age_days"`
	MinSamples       int     `mapstructure:"min_samples"`
	TrainerURL       string  `mapstructure:"trainer_url"`
	Timeout          int     `mapstructure:"timeout"` // milliseconds
	MetadataDir      string  `mapstructure:"metadata_dir"`
	ModelName        string  `mapstructure:"model_name"`
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string.
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses    []string `mapstructure:"addresses"`
	Username     string   `mapstructure:"username"`
	Password     string   `mapstructure:"password"`
	ListingIndex string   `mapstructure:"listing_index"`
	Enabled      bool     `mapstructure:"enabled"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type APIConfig struct {
	Port    int `mapstructure:"port"`
	Timeout int `mapstructure:"timeout"` // milliseconds
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// NotificationConfig holds run-summary notification settings. Both channels
// default to disabled.
type NotificationConfig struct {
	AWS struct {
		Region string `mapstructure:"region"`
		SES    struct {
			Enabled   bool   `mapstructure:"enabled"`
			FromEmail string `mapstructure:"from_email"`
			ToEmail   string `mapstructure:"to_email"`
		} `mapstructure:"ses"`
		SNS struct {
			Enabled            bool   `mapstructure:"enabled"`
			TopicARN           string `mapstructure:"topic_arn"`
			DefaultSMSSenderID string `mapstructure:"default_sms_sender_id"`
		} `mapstructure:"sns"`
	} `mapstructure:"aws"`
}

// RegistryConfig points at the site selector-profile registry file.
type RegistryConfig struct {
	Path string `mapstructure:"path"`
}

// GetDuration converts milliseconds from config to time.Duration.
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}
