// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

func Load() (*Config, error) {
	loadEnvFile()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("../../configs")
	viper.AddConfigPath(".")

	// Enable ENV override like DATABASE_POSTGRES_PASSWORD
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	// Environment-specific overlay, e.g. config.production.yaml.
	viper.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = viper.MergeInConfig()

	expandEnvVars(viper.GetViper())

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// LoadFromFile loads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	expandEnvVars(viper.GetViper())

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// findProjectRoot walks up directories looking for go.mod.
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// expandEnvVars resolves ${VAR} placeholders in string values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		val := v.Get(key)

		if strVal, ok := val.(string); ok {
			if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
				expanded := os.ExpandEnv(strVal)
				if expanded != strVal && expanded != "" {
					v.Set(key, expanded)
				}
			}
		}
	}
}

// applyDefaults sets default values for optional configuration fields.
// The defaults mirror the orchestration contract: 5 concurrent fetches,
// 24h entity cache, 7 day refetch delay, 10% data-increase threshold and
// a 30 day model age cap.
func applyDefaults(cfg *Config) {
	if cfg.Scrape.MaxConcurrency == 0 {
		cfg.Scrape.MaxConcurrency = 5
	}
	if cfg.Scrape.ListingLimit == 0 {
		cfg.Scrape.ListingLimit = 25
	}
	if cfg.Scrape.SimilarityThreshold == 0 {
		cfg.Scrape.SimilarityThreshold = 0.5
	}
	if cfg.Scrape.CandidateCap == 0 {
		cfg.Scrape.CandidateCap = 5
	}
	if cfg.Scrape.FetchTimeout == 0 {
		cfg.Scrape.FetchTimeout = 30000
	}
	if cfg.Scrape.Site == "" {
		cfg.Scrape.Site = "booking"
	}

	if cfg.Cache.DatasetTTLHours == 0 {
		cfg.Cache.DatasetTTLHours = 24
	}
	if cfg.Cache.EntityTTLHours == 0 {
		cfg.Cache.EntityTTLHours = 24
	}
	if cfg.Cache.RefetchDelayDays == 0 {
		cfg.Cache.RefetchDelayDays = 7
	}

	if cfg.Training.MinIncreaseRatio == 0 {
		cfg.Training.MinIncreaseRatio = 0.1
	}
	if cfg.Training.MaxAgeDays == 0 {
		cfg.Training.MaxAgeDays = 30
	}
	if cfg.Training.MinSamples == 0 {
		cfg.Training.MinSamples = 10
	}
	if cfg.Training.Timeout == 0 {
		cfg.Training.Timeout = 120000
	}
	if cfg.Training.MetadataDir == "" {
		cfg.Training.MetadataDir = "./models"
	}
	if cfg.Training.ModelName == "" {
		cfg.Training.ModelName = "price_model"
	}

	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}

	if cfg.Database.Elasticsearch.ListingIndex == "" {
		cfg.Database.Elasticsearch.ListingIndex = "listings"
	}

	if cfg.API.Port == 0 {
		cfg.API.Port = 8080
	}
	if cfg.API.Timeout == 0 {
		cfg.API.Timeout = 15000
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	if cfg.Registry.Path == "" {
		cfg.Registry.Path = "./configs/sites.json"
	}
}

// validateConfig validates critical configuration fields.
func validateConfig(cfg *Config) error {
	if cfg.Database.Postgres.Host == "" {
		return fmt.Errorf("database.postgres.host is required")
	}
	if cfg.Database.Postgres.Database == "" {
		return fmt.Errorf("database.postgres.database is required")
	}
	if cfg.Database.Postgres.User == "" {
		return fmt.Errorf("database.postgres.user is required")
	}

	if cfg.Database.Redis.Address == "" {
		return fmt.Errorf("database.redis.address is required")
	}

	if cfg.Database.Elasticsearch.Enabled && len(cfg.Database.Elasticsearch.Addresses) == 0 {
		return fmt.Errorf("database.elasticsearch.addresses is required when the index is enabled")
	}

	if cfg.Training.TrainerURL == "" {
		return fmt.Errorf("training.trainer_url is required")
	}

	if cfg.Scrape.MaxConcurrency < 1 {
		return fmt.Errorf("scrape.max_concurrency must be at least 1")
	}
	if cfg.Scrape.SimilarityThreshold < 0 || cfg.Scrape.SimilarityThreshold > 1 {
		return fmt.Errorf("scrape.similarity_threshold must be in [0,1]")
	}

	return nil
}
