package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port string `env:"PORT" envDefault:"5000" yaml:"port"`

	DatabaseURL string `env:"DATABASE_URL" yaml:"database_url"`
	DBUser      string `env:"DB_USER" yaml:"db_user"`
	DBPassword  string `env:"DB_PASSWORD" yaml:"db_password"`
	DBHost      string `env:"DB_HOST" envDefault:"localhost" yaml:"db_host"`
	DBPort      string `env:"DB_PORT" envDefault:"5432" yaml:"db_port"`
	DBName      string `env:"DB_NAME" envDefault:"parley" yaml:"db_name"`

	JWTSecret string        `env:"JWT_SECRET" yaml:"jwt_secret"`
	TokenTTL  time.Duration `env:"TOKEN_TTL" envDefault:"24h" yaml:"token_ttl"`

	// Empty disables upstream identity verification on /api/auth/verify.
	FirebaseProjectID string `env:"FIREBASE_PROJECT_ID" yaml:"firebase_project_id"`
	FirebaseJWKSURL   string `env:"FIREBASE_JWKS_URL" envDefault:"https://www.googleapis.com/service_accounts/v1/jwk/securetoken@system.gserviceaccount.com" yaml:"firebase_jwks_url"`

	LLMAPIKey  string        `env:"NEBIUS_API_KEY" yaml:"llm_api_key"`
	LLMBaseURL string        `env:"LLM_BASE_URL" envDefault:"https://api.tokenfactory.nebius.com/v1/" yaml:"llm_base_url"`
	LLMModel   string        `env:"LLM_MODEL" envDefault:"openai/gpt-oss-120b" yaml:"llm_model"`
	LLMTimeout time.Duration `env:"LLM_TIMEOUT" envDefault:"120s" yaml:"llm_timeout"`

	FrontendURL       string        `env:"FRONTEND_URL" envDefault:"http://localhost:3000" yaml:"frontend_url"`
	RateLimitRequests int           `env:"RATE_LIMIT_REQUESTS" envDefault:"100" yaml:"rate_limit_requests"`
	RateLimitWindow   time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"15m" yaml:"rate_limit_window"`
	MaxBodyBytes      int64         `env:"MAX_BODY_BYTES" envDefault:"10485760" yaml:"max_body_bytes"`

	RetentionPeriod   time.Duration `env:"RETENTION_PERIOD" envDefault:"720h" yaml:"retention_period"`
	RetentionSchedule string        `env:"RETENTION_SCHEDULE" envDefault:"@hourly" yaml:"retention_schedule"`

	MinIOEndpoint  string `env:"MINIO_ENDPOINT" yaml:"minio_endpoint"`
	MinIOAccessKey string `env:"MINIO_ACCESS_KEY" yaml:"minio_access_key"`
	MinIOSecretKey string `env:"MINIO_SECRET_KEY" yaml:"minio_secret_key"`
	MinIOBucket    string `env:"MINIO_BUCKET" envDefault:"parley-transcripts" yaml:"minio_bucket"`
	MinIOUseSSL    bool   `env:"MINIO_USE_SSL" envDefault:"false" yaml:"minio_use_ssl"`

	LogDir string `env:"LOG_DIR" envDefault:"./logs" yaml:"log_dir"`
}

// LoadConfig reads .env (if any), then the environment, then the optional YAML
// file named by PARLEY_CONFIG. Values present in the file win.
func LoadConfig() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env config: %w", err)
	}

	if path := strings.TrimSpace(os.Getenv("PARLEY_CONFIG")); path != "" {
		if err := cfg.overlayFile(path); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) overlayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.TokenTTL <= 0 {
		return errors.New("TOKEN_TTL must be positive")
	}
	if c.RetentionPeriod <= 0 {
		return errors.New("RETENTION_PERIOD must be positive")
	}
	return nil
}

// DSN prefers DATABASE_URL and falls back to the discrete DB_* settings.
func (c Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.DBHost,
		c.DBPort,
		c.DBUser,
		c.DBPassword,
		c.DBName,
	)
}

func (c Config) ArchiveEnabled() bool {
	return c.MinIOEndpoint != ""
}

func (c Config) UpstreamVerificationEnabled() bool {
	return c.FirebaseProjectID != ""
}
