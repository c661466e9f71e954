// Package config loads and validates the MiniDrive backend configuration.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (MINIDRIVE_*)
//  2. Configuration file (YAML, optional)
//  3. Default values
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds all configurable aspects of the backend.
type Config struct {
	// Addr is the listen address for the HTTP server, e.g. ":8080".
	Addr string `mapstructure:"addr" validate:"required"`

	// BaseURL is the externally reachable URL used in emailed links.
	BaseURL string `mapstructure:"base_url" validate:"required,url"`

	Database DatabaseConfig `mapstructure:"database"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Auth     AuthConfig     `mapstructure:"auth"`
	SMTP     SMTPConfig     `mapstructure:"smtp"`
	Upload   UploadConfig   `mapstructure:"upload"`
	Log      LogConfig      `mapstructure:"log"`
}

type DatabaseConfig struct {
	// URL is the PostgreSQL connection string.
	URL string `mapstructure:"url" validate:"required"`
}

// StorageConfig configures the S3-compatible object store.
type StorageConfig struct {
	Endpoint  string `mapstructure:"endpoint" validate:"required"`
	AccessKey string `mapstructure:"access_key" validate:"required"`
	SecretKey string `mapstructure:"secret_key" validate:"required"`
	Bucket    string `mapstructure:"bucket" validate:"required"`
}

type AuthConfig struct {
	// Secret signs session tokens. The server refuses to start without it.
	Secret   string        `mapstructure:"secret" validate:"required,min=16"`
	TokenTTL time.Duration `mapstructure:"token_ttl" validate:"required,gt=0"`
}

type SMTPConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host" validate:"required_if=Enabled true"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user" validate:"required_if=Enabled true"`
	Password string `mapstructure:"password" validate:"required_if=Enabled true"`
	From     string `mapstructure:"from"`
}

type UploadConfig struct {
	// MaxBytes caps multipart upload size. Zero means no limit.
	MaxBytes int64 `mapstructure:"max_bytes" validate:"gte=0"`
}

type LogConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("addr", ":8080")
	v.SetDefault("base_url", "http://localhost:8080")
	v.SetDefault("auth.token_ttl", 12*time.Hour)
	v.SetDefault("smtp.enabled", false)
	v.SetDefault("smtp.port", "587")
	v.SetDefault("upload.max_bytes", int64(0))
	v.SetDefault("log.level", "info")

	// Required keys get empty defaults so viper registers them and picks up
	// env-only values during Unmarshal; validation rejects the empties.
	for _, key := range []string{
		"database.url",
		"storage.endpoint", "storage.access_key", "storage.secret_key", "storage.bucket",
		"auth.secret",
		"smtp.host", "smtp.user", "smtp.password", "smtp.from",
	} {
		v.SetDefault(key, "")
	}
}

// Load reads configuration from the given file path (may be empty) and the
// environment, applies defaults, and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("MINIDRIVE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.SMTP.From == "" {
		cfg.SMTP.From = cfg.SMTP.User
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration against its struct tags.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(fields, ", "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
