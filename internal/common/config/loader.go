// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

func Load() (*Config, error) {
	loadEnvFile()

	// Base config
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("../../configs")
	viper.AddConfigPath(".")

	// Enable ENV override like STATUS_STORE_BACKEND
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

	// Environment-specific overrides, ignored if not found
	envConfigFile := fmt.Sprintf("config.%s", env)
	viper.SetConfigName(envConfigFile)
	_ = viper.MergeInConfig()

	expandEnvVars(viper.GetViper())

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// LoadFromFile loads configuration from a specific file path
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
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Load .env from multiple possible locations so the binary and tests can run
// from any directory.
func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
		"../../../.env",
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

// Find project root by looking for go.mod
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

// Expand ${VAR} placeholders left in yaml values.
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

// Direct override if config values are still empty after expansion
func overrideEmptyConfig(cfg *Config) {
	if cfg.Services.Eligibility.URL == "" {
		if val := os.Getenv("ELIGIBILITY_SERVICE_URL"); val != "" {
			cfg.Services.Eligibility.URL = val
		}
	}
	if cfg.Services.UserCreation.URL == "" {
		if val := os.Getenv("USER_CREATION_SERVICE_URL"); val != "" {
			cfg.Services.UserCreation.URL = val
		}
	}
	if cfg.Services.InsurancePlan.URL == "" {
		if val := os.Getenv("INSURANCE_PLAN_SERVICE_URL"); val != "" {
			cfg.Services.InsurancePlan.URL = val
		}
	}

	if cfg.StatusStore.S3.Bucket == "" {
		if val := os.Getenv("STATUS_BUCKET"); val != "" {
			cfg.StatusStore.S3.Bucket = val
		}
	}
	if cfg.StatusStore.Postgres.User == "" {
		if val := os.Getenv("DB_USER"); val != "" {
			cfg.StatusStore.Postgres.User = val
		}
	}
	if cfg.StatusStore.Postgres.Password == "" {
		if val := os.Getenv("DB_PASSWORD"); val != "" {
			cfg.StatusStore.Postgres.Password = val
		}
	}

	if cfg.Alerts.TopicARN == "" {
		if val := os.Getenv("ALERTS_TOPIC_ARN"); val != "" {
			cfg.Alerts.TopicARN = val
		}
	}
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "signup-orchestrator"
	}

	// Server defaults
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30000
	}
	if cfg.Server.WriteTimeout == 0 {
		// Writes must outlive the slowest downstream call (180s insurance plan).
		cfg.Server.WriteTimeout = 300000
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 15000
	}

	// Workflow step timeouts are contract values, not tunables; they default
	// here and config may only raise them for debugging.
	if cfg.Services.Eligibility.Timeout == 0 {
		cfg.Services.Eligibility.Timeout = 90000
	}
	if cfg.Services.UserCreation.Timeout == 0 {
		cfg.Services.UserCreation.Timeout = 90000
	}
	if cfg.Services.InsurancePlan.Timeout == 0 {
		cfg.Services.InsurancePlan.Timeout = 180000
	}

	// Status store defaults
	if cfg.StatusStore.Backend == "" {
		cfg.StatusStore.Backend = "memory"
	}
	if cfg.StatusStore.Postgres.MaxConnections == 0 {
		cfg.StatusStore.Postgres.MaxConnections = 25
	}
	if cfg.StatusStore.Postgres.MaxIdle == 0 {
		cfg.StatusStore.Postgres.MaxIdle = 5
	}
	if cfg.StatusStore.Postgres.SSLMode == "" {
		cfg.StatusStore.Postgres.SSLMode = "disable"
	}

	if cfg.Archive.Index == "" {
		cfg.Archive.Index = "workflow-runs"
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if cfg.Services.Eligibility.URL == "" {
		return fmt.Errorf("services.eligibility.url is required")
	}
	if cfg.Services.UserCreation.URL == "" {
		return fmt.Errorf("services.user_creation.url is required")
	}
	if cfg.Services.InsurancePlan.URL == "" {
		return fmt.Errorf("services.insurance_plan.url is required")
	}

	switch cfg.StatusStore.Backend {
	case "s3":
		if cfg.StatusStore.S3.Bucket == "" {
			return fmt.Errorf("status_store.s3.bucket is required for the s3 backend")
		}
	case "redis":
		if cfg.StatusStore.Redis.Address == "" {
			return fmt.Errorf("status_store.redis.address is required for the redis backend")
		}
	case "postgres":
		if cfg.StatusStore.Postgres.Host == "" {
			return fmt.Errorf("status_store.postgres.host is required for the postgres backend")
		}
		if cfg.StatusStore.Postgres.Database == "" {
			return fmt.Errorf("status_store.postgres.database is required for the postgres backend")
		}
		if cfg.StatusStore.Postgres.User == "" {
			return fmt.Errorf("status_store.postgres.user is required for the postgres backend")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown status_store.backend %q", cfg.StatusStore.Backend)
	}

	if cfg.Archive.Enabled && len(cfg.Archive.Addresses) == 0 {
		return fmt.Errorf("archive.addresses is required when archive.enabled is true")
	}
	if cfg.Alerts.Enabled && cfg.Alerts.TopicARN == "" {
		return fmt.Errorf("alerts.topic_arn is required when alerts.enabled is true")
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}
