package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Geocoding GeocodingConfig `yaml:"geocoding"`
	Import    ImportConfig    `yaml:"import"`
	Redis     RedisConfig     `yaml:"redis"`
	S3Import  S3ImportConfig  `yaml:"s3_import"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// GetHost returns the server host, with container detection
func (c ServerConfig) GetHost() string {
	// In a container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// DatabaseConfig holds the PostgreSQL connection settings
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// GeocodingConfig holds external geocoding provider settings
type GeocodingConfig struct {
	APIKey         string `yaml:"api_key"`
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	BatchSize      int    `yaml:"batch_size"`
	CacheTTLHours  int    `yaml:"cache_ttl_hours"`
	Enabled        bool   `yaml:"enabled"`
}

// Timeout returns the configured timeout as a duration
func (c GeocodingConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// CacheTTL returns the configured cache TTL as a duration
func (c GeocodingConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLHours) * time.Hour
}

// ImportConfig holds pipeline tuning knobs
type ImportConfig struct {
	WriteChunkSize   int    `yaml:"write_chunk_size"`
	ErrorSampleSize  int    `yaml:"error_sample_size"`
	MaxRows          int    `yaml:"max_rows"` // 0 = unlimited
	DefaultSourceTag string `yaml:"default_source_tag"`
}

// RedisConfig holds the geocode cache settings
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Enabled  bool   `yaml:"enabled"`
}

// S3ImportConfig holds scraper drop-bucket settings
type S3ImportConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Bucket     string `yaml:"bucket"`
	Region     string `yaml:"region"`
	AWSProfile string `yaml:"aws_profile"` // empty uses the default credential chain
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Set defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Geocoding.TimeoutSeconds == 0 {
		cfg.Geocoding.TimeoutSeconds = 10
	}
	if cfg.Geocoding.BatchSize == 0 {
		cfg.Geocoding.BatchSize = 50
	}
	if cfg.Geocoding.CacheTTLHours == 0 {
		cfg.Geocoding.CacheTTLHours = 30 * 24
	}
	if cfg.Import.WriteChunkSize == 0 {
		cfg.Import.WriteChunkSize = 100
	}
	if cfg.Import.ErrorSampleSize == 0 {
		cfg.Import.ErrorSampleSize = 10
	}
	if cfg.Import.DefaultSourceTag == "" {
		cfg.Import.DefaultSourceTag = "csv-import"
	}
	if cfg.S3Import.Region == "" {
		cfg.S3Import.Region = "us-east-1"
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// It loads a .env file (if present) before reading env vars, so secrets
// can live in .env locally and in real env vars in deployment.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		cfg.Database.URL = dbURL
	}
	if apiKey := os.Getenv("GEOCODING_API_KEY"); apiKey != "" {
		cfg.Geocoding.APIKey = apiKey
		cfg.Geocoding.Enabled = true
	}
	if baseURL := os.Getenv("GEOCODING_BASE_URL"); baseURL != "" {
		cfg.Geocoding.BaseURL = baseURL
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
		cfg.Redis.Enabled = true
	}
	if bucket := os.Getenv("S3_IMPORT_BUCKET"); bucket != "" {
		cfg.S3Import.Bucket = bucket
		cfg.S3Import.Enabled = true
	}
	if region := os.Getenv("S3_IMPORT_REGION"); region != "" {
		cfg.S3Import.Region = region
	}

	return cfg, nil
}
