package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	JWT      JWTConfig      `yaml:"jwt"`
	Log      LogConfig      `yaml:"log"`
	AWS      AWSConfig      `yaml:"aws"`
	APNS     APNSConfig     `yaml:"apns"`
	App      AppConfig      `yaml:"app"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret string `yaml:"secret"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `yaml:"level"`
}

// AWSConfig holds S3 settings for avatar uploads
type AWSConfig struct {
	Region    string `yaml:"region"`
	S3Bucket  string `yaml:"s3_bucket"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Endpoint  string `yaml:"endpoint"` // optional, for S3-compatible storage
}

// APNSConfig holds Apple push notification settings. Push delivery is
// disabled when P12Path is empty.
type APNSConfig struct {
	P12Path     string `yaml:"p12_path"`
	P12Password string `yaml:"p12_password"`
	Topic       string `yaml:"topic"`
	Production  bool   `yaml:"production"`
}

// AppConfig holds application-level settings
type AppConfig struct {
	BaseURL    string `yaml:"base_url"`
	AdminToken string `yaml:"admin_token"`
}

// Load reads configuration from a YAML file. Secrets can be overridden
// by environment variables so they stay out of the config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrides := []struct {
		env    string
		target *string
	}{
		{"DB_PASSWORD", &cfg.Database.Password},
		{"JWT_SECRET", &cfg.JWT.Secret},
		{"ADMIN_TOKEN", &cfg.App.AdminToken},
		{"APNS_P12_PASSWORD", &cfg.APNS.P12Password},
		{"AWS_ACCESS_KEY", &cfg.AWS.AccessKey},
		{"AWS_SECRET_KEY", &cfg.AWS.SecretKey},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.env); v != "" {
			*o.target = v
		}
	}
}

// DSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}
