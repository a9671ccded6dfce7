// Package config loads the application settings from an optional YAML file,
// an optional .env file and the process environment, in increasing order of
// precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type AppConfig struct {
	Port     string `yaml:"port"`
	Env      string `yaml:"env"`
	LogLevel string `yaml:"log_level"`
	// PublicURL prefixes the local media URLs.
	PublicURL string `yaml:"public_url"`
}

type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	DBName          string        `yaml:"dbname"`
	SSLMode         string        `yaml:"sslmode"`
	MaxConns        int32         `yaml:"max_conns"`
	MinConns        int32         `yaml:"min_conns"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type SessionConfig struct {
	// Driver is "redis" or "memory".
	Driver string        `yaml:"driver"`
	TTL    time.Duration `yaml:"ttl"`
	Cookie string        `yaml:"cookie"`
	Secure bool          `yaml:"secure"`
}

type S3Config struct {
	Bucket   string `yaml:"bucket"`
	Region   string `yaml:"region"`
	Key      string `yaml:"key"`
	Secret   string `yaml:"secret"`
	Endpoint string `yaml:"endpoint"`
	URL      string `yaml:"url"`
}

type StorageConfig struct {
	Disk      string   `yaml:"disk"`
	LocalRoot string   `yaml:"local_root"`
	URL       string   `yaml:"url"`
	S3        S3Config `yaml:"s3"`
}

type Config struct {
	App       AppConfig      `yaml:"app"`
	Postgres  PostgresConfig `yaml:"postgres"`
	Redis     RedisConfig    `yaml:"redis"`
	Session   SessionConfig  `yaml:"session"`
	Storage   StorageConfig  `yaml:"storage"`
	JWTSecret string         `yaml:"jwt_secret"`
}

func defaults() Config {
	return Config{
		App: AppConfig{Port: "8080", Env: "development", LogLevel: "info"},
		Postgres: PostgresConfig{
			Port:            "5432",
			SSLMode:         "disable",
			MaxConns:        10,
			MinConns:        1,
			MaxConnLifetime: time.Hour,
		},
		Redis:   RedisConfig{Addr: "localhost:6379"},
		Session: SessionConfig{Driver: "redis", TTL: 14 * 24 * time.Hour, Cookie: "megano_session"},
		Storage: StorageConfig{Disk: "local", LocalRoot: "media", URL: "/media"},
	}
}

// Load reads yamlPath and envPath when they are set and exist, then applies
// environment overrides and validates the result.
func Load(yamlPath, envPath string) (*Config, error) {
	cfg := defaults()

	if yamlPath != "" {
		raw, err := os.ReadFile(yamlPath)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(raw, &cfg); err != nil {
				return nil, fmt.Errorf("config: invalid yaml file %s: %w", yamlPath, err)
			}
		case !errors.Is(err, fs.ErrNotExist):
			return nil, fmt.Errorf("config: failed to read %s: %w", yamlPath, err)
		}
	}

	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: failed to load .env: %w", err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) error {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	str("APP_PORT", &cfg.App.Port)
	str("APP_ENV", &cfg.App.Env)
	str("LOG_LEVEL", &cfg.App.LogLevel)
	str("APP_PUBLIC_URL", &cfg.App.PublicURL)

	str("DB_HOST", &cfg.Postgres.Host)
	str("DB_PORT", &cfg.Postgres.Port)
	str("DB_USER", &cfg.Postgres.User)
	str("DB_PASSWORD", &cfg.Postgres.Password)
	str("DB_NAME", &cfg.Postgres.DBName)
	str("DB_SSLMODE", &cfg.Postgres.SSLMode)

	str("REDIS_ADDR", &cfg.Redis.Addr)
	str("REDIS_PASSWORD", &cfg.Redis.Password)

	str("SESSION_DRIVER", &cfg.Session.Driver)
	str("SESSION_COOKIE", &cfg.Session.Cookie)
	str("JWT_SECRET", &cfg.JWTSecret)

	str("STORAGE_DISK", &cfg.Storage.Disk)
	str("STORAGE_LOCAL_ROOT", &cfg.Storage.LocalRoot)
	str("STORAGE_URL", &cfg.Storage.URL)
	str("S3_BUCKET", &cfg.Storage.S3.Bucket)
	str("S3_REGION", &cfg.Storage.S3.Region)
	str("S3_KEY", &cfg.Storage.S3.Key)
	str("S3_SECRET", &cfg.Storage.S3.Secret)
	str("S3_ENDPOINT", &cfg.Storage.S3.Endpoint)
	str("S3_URL", &cfg.Storage.S3.URL)

	if v, ok := os.LookupEnv("DB_MAX_CONNS"); ok {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			return fmt.Errorf("config: invalid DB_MAX_CONNS %q: %w", v, err)
		}
		cfg.Postgres.MaxConns = int32(n)
	}
	if v, ok := os.LookupEnv("REDIS_DB"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: invalid REDIS_DB %q: %w", v, err)
		}
		cfg.Redis.DB = n
	}
	if v, ok := os.LookupEnv("SESSION_TTL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: invalid SESSION_TTL %q: %w", v, err)
		}
		cfg.Session.TTL = d
	}
	if v, ok := os.LookupEnv("SESSION_SECURE"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: invalid SESSION_SECURE %q: %w", v, err)
		}
		cfg.Session.Secure = b
	}
	return nil
}

func (c *Config) Validate() error {
	required := []struct {
		key, value string
	}{
		{"DB_HOST", c.Postgres.Host},
		{"DB_USER", c.Postgres.User},
		{"DB_PASSWORD", c.Postgres.Password},
		{"DB_NAME", c.Postgres.DBName},
		{"JWT_SECRET", c.JWTSecret},
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("config: %s is required", r.key)
		}
	}

	switch c.Session.Driver {
	case "redis", "memory":
	default:
		return fmt.Errorf("config: unknown session driver %q", c.Session.Driver)
	}
	switch c.Storage.Disk {
	case "local":
	case "s3":
		if c.Storage.S3.Bucket == "" {
			return errors.New("config: S3_BUCKET is required for the s3 disk")
		}
	default:
		return fmt.Errorf("config: unknown storage disk %q", c.Storage.Disk)
	}
	return nil
}

// DSN is the libpq keyword/value connection string.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.DBName, p.SSLMode)
}

func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}
