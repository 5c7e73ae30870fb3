package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// ServerConfig holds all configuration for the server. Tags use mapstructure
// for Viper unmarshalling and line up with the environment variable names.
type ServerConfig struct {
	HTTPPort    string `mapstructure:"HTTP_PORT"`
	MongoURI    string `mapstructure:"MONGO_URI"`
	MongoDBName string `mapstructure:"MONGO_DB_NAME"`
	RedisURI    string `mapstructure:"REDIS_URI"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogPretty bool   `mapstructure:"LOG_PRETTY"`

	OtelExporterEndpoint string `mapstructure:"OTEL_EXPORTER_ENDPOINT"`
	OtelServiceName      string `mapstructure:"OTEL_SERVICE_NAME"`

	// AppBaseURL is the frontend page users land on after the callback
	// redirect, carrying a coarse success or failure flag.
	AppBaseURL string `mapstructure:"APP_BASE_URL"`

	// JWTSecretKey verifies the platform's identity tokens (HS256).
	JWTSecretKey string `mapstructure:"JWT_SECRET_KEY"`

	// EncryptionKey protects stored provider tokens: 64 hex characters,
	// AES-256-GCM. No default; the server refuses to start without it.
	EncryptionKey string `mapstructure:"ENCRYPTION_KEY"`

	GoogleClientID       string `mapstructure:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret   string `mapstructure:"GOOGLE_CLIENT_SECRET"`
	GoogleDeveloperToken string `mapstructure:"GOOGLE_DEVELOPER_TOKEN"`
	MetaClientID         string `mapstructure:"META_CLIENT_ID"`
	MetaClientSecret     string `mapstructure:"META_CLIENT_SECRET"`
}

// LoadConfig reads configuration from file, environment variables, and defaults.
func LoadConfig() (*ServerConfig, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("/etc/adsight/")
	v.AddConfigPath("$HOME/.adsight")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017/adsight_dev")
	v.SetDefault("MONGO_DB_NAME", "adsight_dev")
	v.SetDefault("REDIS_URI", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", true)
	v.SetDefault("OTEL_SERVICE_NAME", "adsight-core")
	v.SetDefault("APP_BASE_URL", "http://localhost:3000")

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine, defaults and env vars carry it.
		// Anything else (malformed file, permissions) is a real error.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg ServerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	return &cfg, nil
}

// Validate checks the settings the server cannot run without. Provider
// credentials are checked per provider at wiring time so a single-provider
// deployment stays possible.
func (c *ServerConfig) Validate() error {
	if c.JWTSecretKey == "" {
		return fmt.Errorf("JWT_SECRET_KEY is required")
	}
	if c.EncryptionKey == "" {
		return fmt.Errorf("ENCRYPTION_KEY is required")
	}
	return nil
}
