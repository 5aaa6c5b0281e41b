package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Insurityflow InsurityflowConfig `yaml:"insurityflow"`
	Pricing      PricingConfig      `yaml:"pricing"`
	Engine       EngineConfig       `yaml:"engine"`
	Reader       ReaderConfig       `yaml:"reader"`
	Writer       WriterConfig       `yaml:"writer"`
	Storage      StorageConfig      `yaml:"storage"`
	Metrics      MetricsConfig      `yaml:"metrics"`
	Logging      LoggingConfig      `yaml:"logging"`
}

type InsurityflowConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// PricingConfig holds the tunable constants of the pricing recurrence.
// Defaults match the filed reference configuration.
type PricingConfig struct {
	BasePremium     float64 `yaml:"base_premium"`
	EWMALambda      float64 `yaml:"ewma_lambda"`
	MonthlyCapPct   float64 `yaml:"monthly_cap_pct"`
	QuarterlyCapPct float64 `yaml:"quarterly_cap_pct"`
	// CapTolerance is the numeric tolerance below which a clamp does not
	// count as a cap for flag purposes.
	CapTolerance float64 `yaml:"cap_tolerance"`
	// BookAverageSource selects which model's predictions form the
	// per-period book average: "boosting" (primary) or "glm" (secondary).
	BookAverageSource string `yaml:"book_average_source"`
}

type EngineConfig struct {
	MaxWorkers int `yaml:"max_workers"`
}

type ReaderConfig struct {
	PredictionsPath string `yaml:"predictions_path"`
	ReasonCodesPath string `yaml:"reason_codes_path"`
	ModelsDir       string `yaml:"models_dir"`
}

type WriterConfig struct {
	OutputPath string        `yaml:"output_path"`
	Formats    FormatsConfig `yaml:"formats"`
}

type FormatsConfig struct {
	Parquet ParquetConfig `yaml:"parquet"`
}

type ParquetConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Compression string `yaml:"compression"`
}

type StorageConfig struct {
	S3 S3Config `yaml:"s3"`
}

type S3Config struct {
	Enabled         bool   `yaml:"enabled"`
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	PathStyle       bool   `yaml:"path_style"`
	Prefix          string `yaml:"prefix"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

type MetricsConfig struct {
	CloudWatch bool   `yaml:"cloudwatch"`
	Namespace  string `yaml:"namespace"`
	Dashboard  string `yaml:"dashboard"`
}

type LoggingConfig struct {
	Level          string        `yaml:"level"`
	Format         string        `yaml:"format"`
	Output         string        `yaml:"output"`
	MaxAge         int           `yaml:"max_age"`
	ReportInterval time.Duration `yaml:"report_interval"`
}

const (
	BookAverageSourceBoosting = "boosting"
	BookAverageSourceGLM      = "glm"
)

func defaultConfig() Config {
	return Config{
		Pricing: PricingConfig{
			BasePremium:       100.0,
			EWMALambda:        0.6,
			MonthlyCapPct:     0.10,
			QuarterlyCapPct:   0.25,
			CapTolerance:      1e-6,
			BookAverageSource: BookAverageSourceBoosting,
		},
		Engine: EngineConfig{MaxWorkers: 4},
		Metrics: MetricsConfig{
			Namespace: "InsurityFlow",
			Dashboard: "InsurityFlow",
		},
		Logging: LoggingConfig{
			Level:          "info",
			Format:         "json",
			Output:         "stdout",
			ReportInterval: 30 * time.Second,
		},
	}
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := defaultConfig()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Override S3 settings from environment variables if available
	if config.Storage.S3.Enabled {
		if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
			config.Storage.S3.AccessKeyID = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
			config.Storage.S3.SecretAccessKey = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_REGION"); v != "" {
			config.Storage.S3.Region = strings.TrimSpace(v)
		}
		if v := os.Getenv("S3_BUCKET"); v != "" {
			config.Storage.S3.Bucket = strings.TrimSpace(v)
		}
	}

	config.Storage.S3.Bucket = strings.TrimSpace(config.Storage.S3.Bucket)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

func validateConfig(cfg *Config) error {
	if cfg.Insurityflow.Name == "" {
		return fmt.Errorf("insurityflow.name is required")
	}

	if cfg.Insurityflow.Version == "" {
		return fmt.Errorf("insurityflow.version is required")
	}

	if cfg.Pricing.BasePremium <= 0 {
		return fmt.Errorf("pricing.base_premium must be greater than 0")
	}
	if cfg.Pricing.EWMALambda <= 0 || cfg.Pricing.EWMALambda >= 1 {
		return fmt.Errorf("pricing.ewma_lambda must be in (0, 1)")
	}
	if cfg.Pricing.MonthlyCapPct <= 0 || cfg.Pricing.MonthlyCapPct >= 1 {
		return fmt.Errorf("pricing.monthly_cap_pct must be in (0, 1)")
	}
	if cfg.Pricing.QuarterlyCapPct <= 0 || cfg.Pricing.QuarterlyCapPct >= 1 {
		return fmt.Errorf("pricing.quarterly_cap_pct must be in (0, 1)")
	}
	if cfg.Pricing.QuarterlyCapPct <= cfg.Pricing.MonthlyCapPct {
		return fmt.Errorf("pricing.quarterly_cap_pct must be greater than pricing.monthly_cap_pct")
	}
	if cfg.Pricing.CapTolerance < 0 {
		return fmt.Errorf("pricing.cap_tolerance must not be negative")
	}
	switch cfg.Pricing.BookAverageSource {
	case BookAverageSourceBoosting, BookAverageSourceGLM:
	default:
		return fmt.Errorf("pricing.book_average_source '%s' is invalid (expected '%s' or '%s')",
			cfg.Pricing.BookAverageSource, BookAverageSourceBoosting, BookAverageSourceGLM)
	}

	if cfg.Engine.MaxWorkers <= 0 {
		return fmt.Errorf("engine.max_workers must be greater than 0")
	}

	if cfg.Storage.S3.Enabled {
		if cfg.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required when S3 is enabled")
		}
		if cfg.Storage.S3.Region == "" {
			return fmt.Errorf("storage.s3.region is required when S3 is enabled")
		}
		if cfg.Storage.S3.AccessKeyID == "" || cfg.Storage.S3.SecretAccessKey == "" {
			return fmt.Errorf("storage.s3.access_key_id and storage.s3.secret_access_key are required when S3 is enabled")
		}
		if !isValidS3Bucket(cfg.Storage.S3.Bucket) {
			return fmt.Errorf("storage.s3.bucket '%s' is invalid", cfg.Storage.S3.Bucket)
		}
	}

	return nil
}

var s3BucketRegexp = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)

func isValidS3Bucket(name string) bool {
	if len(name) < 3 || len(name) > 63 {
		return false
	}
	if strings.Contains(name, "..") || strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") {
		return false
	}
	return s3BucketRegexp.MatchString(name)
}
