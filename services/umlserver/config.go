// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package umlserver

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// =============================================================================
// Configuration
// =============================================================================

// Config holds umlserver configuration options.
//
// # Description
//
// Values come from defaults, an optional YAML file named by UML_CONFIG_FILE,
// and the environment, in increasing order of precedence. Provider keys may
// also be mounted as files under /run/secrets.
//
// # Examples
//
//	cfg, err := umlserver.LoadConfig()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	svc, err := umlserver.New(cfg, nil)
type Config struct {
	// Port is the HTTP server port. Default: 3001
	Port int `mapstructure:"port" validate:"min=1,max=65535"`

	// Environment mirrors NODE_ENV of the hosted deployment. "production"
	// disables .env loading in cmd/umlserver.
	Environment string `mapstructure:"environment"`

	GeminiAPIKey string `mapstructure:"gemini_api_key"`
	GroqAPIKey   string `mapstructure:"groq_api_key"`
	GitHubToken  string `mapstructure:"github_token"`

	// ValidationModel classifies uploads when the requested model's
	// provider is not configured. Default: gemini-2.0-flash
	ValidationModel string `mapstructure:"validation_model" validate:"required"`

	// HistoryBackend selects the document store: "badger", "postgres" or "none".
	HistoryBackend string `mapstructure:"history_backend" validate:"oneof=badger postgres none"`

	// HistoryPath is the Badger directory. Empty runs Badger in memory.
	HistoryPath string `mapstructure:"history_path"`

	PostgresDSN string `mapstructure:"postgres_dsn" validate:"required_if=HistoryBackend postgres"`

	// BlobBackend selects where history blobs live: "badger" or "gcs".
	BlobBackend string `mapstructure:"blob_backend" validate:"oneof=badger gcs"`

	GCSBucket      string `mapstructure:"gcs_bucket" validate:"required_if=BlobBackend gcs"`
	GCSCredentials string `mapstructure:"gcs_credentials"`

	// PublicBaseURL prefixes Badger blob URLs. Default: http://localhost:<Port>
	PublicBaseURL string `mapstructure:"public_base_url" validate:"omitempty,url"`

	// AllowedOrigins feeds Access-Control-Allow-Origin. Default: ["*"]
	AllowedOrigins []string `mapstructure:"allowed_origins" validate:"min=1,dive,required"`

	// MaxBodyBytes caps JSON request bodies; larger bodies get 413.
	MaxBodyBytes int64 `mapstructure:"max_body_bytes" validate:"min=1024"`

	// RateLimitRPS is the per-client request rate on /api. Zero disables it.
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps" validate:"gte=0"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst" validate:"gte=0"`

	// AuthTokens is "token:user,..." for bearer authentication. Empty
	// accepts any bearer token as a single local user.
	AuthTokens string `mapstructure:"auth_tokens"`

	// OTelEndpoint is the OTLP gRPC collector. Empty disables OTLP export.
	OTelEndpoint string `mapstructure:"otel_endpoint" validate:"required_if=TraceExporter otlp"`

	// TraceExporter is "otlp", "stdout" or "none". Default: otlp when
	// OTelEndpoint is set, otherwise none.
	TraceExporter string `mapstructure:"trace_exporter" validate:"omitempty,oneof=otlp stdout none"`

	// MetricExporter is "prometheus", "stdout" or "none".
	MetricExporter string `mapstructure:"metric_exporter" validate:"oneof=prometheus stdout none"`

	GinMode string `mapstructure:"gin_mode" validate:"omitempty,oneof=debug release test"`

	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

var configValidate = validator.New()

// Validate checks field constraints.
func (c *Config) Validate() error {
	return configValidate.Struct(c)
}

// Production reports whether the server runs in the production environment.
func (c *Config) Production() bool {
	return strings.EqualFold(c.Environment, "production")
}

// envBindings maps config keys to their environment variables.
var envBindings = map[string]string{
	"port":             "UML_PORT",
	"environment":      "UML_ENV",
	"gemini_api_key":   "GEMINI_API_KEY",
	"groq_api_key":     "GROQ_API_KEY",
	"github_token":     "GITHUB_TOKEN",
	"validation_model": "UML_VALIDATION_MODEL",
	"history_backend":  "UML_HISTORY_BACKEND",
	"history_path":     "UML_HISTORY_PATH",
	"postgres_dsn":     "UML_POSTGRES_DSN",
	"blob_backend":     "UML_BLOB_BACKEND",
	"gcs_bucket":       "UML_GCS_BUCKET",
	"gcs_credentials":  "UML_GCS_CREDENTIALS",
	"public_base_url":  "UML_PUBLIC_BASE_URL",
	"allowed_origins":  "UML_ALLOWED_ORIGINS",
	"max_body_bytes":   "UML_MAX_BODY_BYTES",
	"rate_limit_rps":   "UML_RATE_LIMIT_RPS",
	"rate_limit_burst": "UML_RATE_LIMIT_BURST",
	"auth_tokens":      "UML_AUTH_TOKENS",
	"otel_endpoint":    "OTEL_EXPORTER_OTLP_ENDPOINT",
	"trace_exporter":   "OTEL_TRACES_EXPORTER",
	"metric_exporter":  "OTEL_METRICS_EXPORTER",
	"gin_mode":         "GIN_MODE",
	"shutdown_timeout": "UML_SHUTDOWN_TIMEOUT",
}

func setConfigDefaults(v *viper.Viper) {
	v.SetDefault("port", 3001)
	v.SetDefault("environment", "development")
	v.SetDefault("validation_model", "gemini-2.0-flash")
	v.SetDefault("history_backend", "badger")
	v.SetDefault("blob_backend", "badger")
	v.SetDefault("allowed_origins", []string{"*"})
	v.SetDefault("max_body_bytes", 20<<20)
	v.SetDefault("rate_limit_rps", 5.0)
	v.SetDefault("rate_limit_burst", 10)
	v.SetDefault("metric_exporter", "prometheus")
	v.SetDefault("shutdown_timeout", 10*time.Second)
}

// LoadConfig reads configuration from defaults, UML_CONFIG_FILE and the
// environment.
func LoadConfig() (Config, error) {
	return loadConfig(viper.New())
}

func loadConfig(v *viper.Viper) (Config, error) {
	setConfigDefaults(v)
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return Config{}, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	if err := v.BindEnv("config_file", "UML_CONFIG_FILE"); err != nil {
		return Config{}, fmt.Errorf("bind UML_CONFIG_FILE: %w", err)
	}
	if path := v.GetString("config_file"); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg = applyConfigDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// applyConfigDefaults fills values that depend on other fields, and the
// zero values of a Config built in code.
func applyConfigDefaults(cfg Config) Config {
	if cfg.Port == 0 {
		cfg.Port = 3001
	}
	if cfg.ValidationModel == "" {
		cfg.ValidationModel = "gemini-2.0-flash"
	}
	if cfg.HistoryBackend == "" {
		cfg.HistoryBackend = "badger"
	}
	if cfg.BlobBackend == "" {
		cfg.BlobBackend = "badger"
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}
	if cfg.MaxBodyBytes == 0 {
		cfg.MaxBodyBytes = 20 << 20
	}
	if cfg.MetricExporter == "" {
		cfg.MetricExporter = "prometheus"
	}
	if cfg.TraceExporter == "" {
		if cfg.OTelEndpoint != "" {
			cfg.TraceExporter = "otlp"
		} else {
			cfg.TraceExporter = "none"
		}
	}
	if cfg.PublicBaseURL == "" {
		cfg.PublicBaseURL = fmt.Sprintf("http://localhost:%d", cfg.Port)
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	return cfg
}
