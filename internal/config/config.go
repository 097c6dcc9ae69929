package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// ErrInvalidThresholds is returned when the verdict thresholds cannot produce
// a consistent decision policy. It is fatal at construction; no verification
// runs against a misordered policy.
var ErrInvalidThresholds = errors.New("auto_reject_threshold must be below auto_approve_threshold")

// Config represents the application configuration. It is loaded once at
// startup and treated as an immutable snapshot; the engine never re-reads
// global state mid-verification.
type Config struct {
	Server       ServerConfig       `json:"server"`
	Database     DatabaseConfig     `json:"database"`
	Redis        RedisConfig        `json:"redis"`
	Verification VerificationConfig `json:"verification"`
	Checks       ChecksConfig       `json:"checks"`
	AI           AIConfig           `json:"ai"`
	Security     SecurityConfig     `json:"security"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	SSLMode  string `json:"ssl_mode"`
}

// RedisConfig selects the fingerprint index backend. An empty URL keeps the
// index in process memory.
type RedisConfig struct {
	URL string `json:"url"`
}

// VerificationConfig holds the decision-policy knobs consumed by the engine.
type VerificationConfig struct {
	DuplicateThreshold   float64       `json:"duplicate_threshold"`
	LocationRadiusMeters float64       `json:"location_radius_meters"`
	AutoApproveThreshold float64       `json:"auto_approve_threshold"`
	AutoRejectThreshold  float64       `json:"auto_reject_threshold"`
	DownloadTimeout      time.Duration `json:"download_timeout"`
	MaxImageSizeMB       int64         `json:"max_image_size_mb"`
	MaxImagesPerRequest  int           `json:"max_images_per_request"`
	// FingerprintTTL bounds how long stored fingerprints serve duplicate
	// lookups. Zero disables eviction.
	FingerprintTTL time.Duration `json:"fingerprint_ttl"`
}

// ChecksConfig enables or disables individual verification checks.
type ChecksConfig struct {
	FakeDetection      bool `json:"fake_detection"`
	DuplicateDetection bool `json:"duplicate_detection"`
	MetadataValidation bool `json:"metadata_validation"`
	LocationValidation bool `json:"location_validation"`
	CategoryValidation bool `json:"category_validation"`
	InternetSearch     bool `json:"internet_search"`
}

// AIConfig configures the model-backed check variants. With no API key the
// engine falls back to the heuristic variants.
type AIConfig struct {
	GeminiAPIKey string `json:"gemini_api_key"`
	GeminiModel  string `json:"gemini_model"`
}

// SecurityConfig
type SecurityConfig struct {
	APIKey string `json:"api_key"`
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	config := defaults()

	// Load from file if exists
	if configPath != "" {
		if data, err := os.ReadFile(configPath); err == nil {
			if err := json.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	overrideWithEnv(config)

	return config, nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8001,
		},
		Database: DatabaseConfig{
			Host:    "localhost",
			Port:    5432,
			User:    os.Getenv("USER"),
			DBName:  "civicfix_verification",
			SSLMode: "disable",
		},
		Verification: VerificationConfig{
			DuplicateThreshold:   0.85,
			LocationRadiusMeters: 100.0,
			AutoApproveThreshold: 0.9,
			AutoRejectThreshold:  0.3,
			DownloadTimeout:      30 * time.Second,
			MaxImageSizeMB:       10,
			MaxImagesPerRequest:  10,
		},
		Checks: ChecksConfig{
			FakeDetection:      true,
			DuplicateDetection: true,
			MetadataValidation: true,
			LocationValidation: true,
			CategoryValidation: true,
			InternetSearch:     false,
		},
		AI: AIConfig{
			GeminiModel: "gemini-1.5-flash",
		},
	}
}

func overrideWithEnv(config *Config) {
	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if dbHost := os.Getenv("DATABASE_HOST"); dbHost != "" {
		config.Database.Host = dbHost
	}
	if dbUser := os.Getenv("DATABASE_USER"); dbUser != "" {
		config.Database.User = dbUser
	}
	if dbPass := os.Getenv("DATABASE_PASSWORD"); dbPass != "" {
		config.Database.Password = dbPass
	}
	if dbName := os.Getenv("DATABASE_DBNAME"); dbName != "" {
		config.Database.DBName = dbName
	}
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		config.Redis.URL = redisURL
	}
	if key := os.Getenv("API_KEY"); key != "" {
		config.Security.APIKey = key
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		config.AI.GeminiAPIKey = key
	}
	if v := os.Getenv("DUPLICATE_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Verification.DuplicateThreshold = f
		}
	}
	if v := os.Getenv("LOCATION_RADIUS_METERS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Verification.LocationRadiusMeters = f
		}
	}
	if v := os.Getenv("AUTO_APPROVE_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Verification.AutoApproveThreshold = f
		}
	}
	if v := os.Getenv("AUTO_REJECT_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Verification.AutoRejectThreshold = f
		}
	}
}

// Validate checks the configuration for values that would make verification
// verdicts meaningless.
func (c *Config) Validate() error {
	v := c.Verification

	if v.AutoRejectThreshold >= v.AutoApproveThreshold {
		return ErrInvalidThresholds
	}
	if v.AutoApproveThreshold < 0 || v.AutoApproveThreshold > 1 {
		return fmt.Errorf("auto_approve_threshold %f out of [0,1]", v.AutoApproveThreshold)
	}
	if v.AutoRejectThreshold < 0 || v.AutoRejectThreshold > 1 {
		return fmt.Errorf("auto_reject_threshold %f out of [0,1]", v.AutoRejectThreshold)
	}
	if v.DuplicateThreshold <= 0 || v.DuplicateThreshold > 1 {
		return fmt.Errorf("duplicate_threshold %f out of (0,1]", v.DuplicateThreshold)
	}
	if v.LocationRadiusMeters <= 0 {
		return fmt.Errorf("location_radius_meters must be positive, got %f", v.LocationRadiusMeters)
	}
	if v.MaxImagesPerRequest < 1 {
		return fmt.Errorf("max_images_per_request must be at least 1, got %d", v.MaxImagesPerRequest)
	}

	return nil
}

// GetDatabaseURL returns the database connection string
func (c *DatabaseConfig) GetDatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// GetServerAddr returns the server address
func (c *ServerConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
