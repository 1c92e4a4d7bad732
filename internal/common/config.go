package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Server   ServerConfig   `yaml:"server"`
	OCR      OCRConfig      `yaml:"ocr"`
	LLM      LLMConfig      `yaml:"llm"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Cache    CacheConfig    `yaml:"cache"`
	Events   EventsConfig   `yaml:"events"`
	Log      LogConfig      `yaml:"log"`
}

// DatabaseConfig holds database-related configuration.
// Driver is "postgres" or "sqlite"; an empty DSN disables usage persistence.
type DatabaseConfig struct {
	Driver           string        `yaml:"driver"`
	DSN              string        `yaml:"dsn"`
	MaxConns         int32         `yaml:"max_conns"`
	MinConns         int32         `yaml:"min_conns"`
	MaxConnLifetime  time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime  time.Duration `yaml:"max_conn_idle_time"`
	DialTimeout      time.Duration `yaml:"dial_timeout"`
	StatementTimeout time.Duration `yaml:"statement_timeout"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr         string `yaml:"grpc_addr"`
	MetricsAddr      string `yaml:"metrics_addr"`
	MaxDocumentBytes int    `yaml:"max_document_bytes"`
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	HeicConverter    string `yaml:"heic_converter"`
	TessdataDir      string `yaml:"tessdata_dir"`
	TesseractLang    string `yaml:"tesseract_lang"`
	ArtifactCacheDir string `yaml:"artifact_cache_dir"`
	DPI              int    `yaml:"dpi"`
	MaxPages         int    `yaml:"max_pages"`
}

// LLMConfig holds configuration for the cloud extraction tier.
// Provider is "gemini", "openai" or "" (cloud tier disabled).
type LLMConfig struct {
	Provider          string        `yaml:"provider"`
	OpenAIAPIKey      string        `yaml:"openai_api_key"`
	OpenAIModel       string        `yaml:"openai_model"`
	OpenAIBaseURL     string        `yaml:"openai_base_url"`
	GeminiAPIKey      string        `yaml:"gemini_api_key"`
	GeminiModel       string        `yaml:"gemini_model"`
	Temperature       float32       `yaml:"temperature"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
	RetryMaxAttempts  int           `yaml:"retry_max_attempts"`
	BreakerEnabled    bool          `yaml:"breaker_enabled"`
}

// PipelineConfig holds the escalation thresholds and tier budgets.
type PipelineConfig struct {
	ForcePremium           bool          `yaml:"force_premium"`
	MinConfidenceTextTier  float64       `yaml:"min_confidence_text_tier"`
	MinConfidenceOCRTier   float64       `yaml:"min_confidence_ocr_tier"`
	CloudUnitCostPerPage   float64       `yaml:"cloud_unit_cost_per_page"`
	CloudDefaultConfidence float64       `yaml:"cloud_default_confidence"`
	MinTextLength          int           `yaml:"min_text_length"`
	TextTierTimeout        time.Duration `yaml:"text_tier_timeout"`
	OCRTierTimeout         time.Duration `yaml:"ocr_tier_timeout"`
	CloudTierTimeout       time.Duration `yaml:"cloud_tier_timeout"`
	UsageLogTimeout        time.Duration `yaml:"usage_log_timeout"`
	BatchConcurrency       int           `yaml:"batch_concurrency"` // 0 = one worker per item, capped at 16
}

// CacheConfig configures the optional result cache. Empty RedisURL disables it.
type CacheConfig struct {
	RedisURL string        `yaml:"redis_url"`
	TTL      time.Duration `yaml:"ttl"`
}

// EventsConfig configures the optional usage event stream. Empty NATSURL disables it.
type EventsConfig struct {
	NATSURL      string `yaml:"nats_url"`
	UsageSubject string `yaml:"usage_subject"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or text
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:          "postgres",
			MaxConns:        20,
			MinConns:        5,
			MaxConnLifetime: 30 * time.Minute,
			MaxConnIdleTime: 5 * time.Minute,
			DialTimeout:     3 * time.Second,
		},
		Server: ServerConfig{
			GRPCAddr:         ":8080",
			MetricsAddr:      ":9090",
			MaxDocumentBytes: 50 << 20,
		},
		OCR: OCRConfig{
			HeicConverter:    "magick",
			TesseractLang:    "eng",
			ArtifactCacheDir: "./tmp",
			DPI:              300,
		},
		LLM: LLMConfig{
			Provider:          "",
			OpenAIModel:       "gpt-4o-mini",
			GeminiModel:       "gemini-2.0-flash",
			Timeout:           60 * time.Second,
			RequestsPerSecond: 2,
			Burst:             2,
			RetryMaxAttempts:  3,
			BreakerEnabled:    true,
		},
		Pipeline: PipelineConfig{
			MinConfidenceTextTier:  0.70,
			MinConfidenceOCRTier:   0.60,
			CloudUnitCostPerPage:   0.015,
			CloudDefaultConfidence: 0.95,
			MinTextLength:          10,
			TextTierTimeout:        15 * time.Second,
			OCRTierTimeout:         2 * time.Minute,
			CloudTierTimeout:       90 * time.Second,
			UsageLogTimeout:        5 * time.Second,
		},
		Cache: CacheConfig{
			TTL: 24 * time.Hour,
		},
		Events: EventsConfig{
			UsageSubject: "policy.usage",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadConfig builds the configuration from defaults, an optional YAML file
// and environment variables, in that order of precedence (env wins).
// A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, NewAppError("CONFIG_ERROR", "read config file", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, NewAppError("CONFIG_ERROR", "parse config file", err)
		}
	}
	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(c *Config) {
	c.Database.Driver = getEnv("DB_DRIVER", c.Database.Driver)
	c.Database.DSN = getEnv("DB_URL", c.Database.DSN)
	c.Database.MaxConns = getEnvAsInt32("DB_MAX_CONNS", c.Database.MaxConns)
	c.Database.MinConns = getEnvAsInt32("DB_MIN_CONNS", c.Database.MinConns)
	c.Database.MaxConnLifetime = getEnvAsDuration("DB_MAX_CONN_LIFETIME", c.Database.MaxConnLifetime)
	c.Database.MaxConnIdleTime = getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", c.Database.MaxConnIdleTime)
	c.Database.DialTimeout = getEnvAsDuration("DB_DIAL_TIMEOUT", c.Database.DialTimeout)
	c.Database.StatementTimeout = getEnvAsDuration("DB_STATEMENT_TIMEOUT", c.Database.StatementTimeout)

	c.Server.GRPCAddr = getEnv("GRPC_ADDR", c.Server.GRPCAddr)
	c.Server.MetricsAddr = getEnv("METRICS_ADDR", c.Server.MetricsAddr)
	c.Server.MaxDocumentBytes = getEnvAsInt("MAX_DOCUMENT_BYTES", c.Server.MaxDocumentBytes)

	c.OCR.HeicConverter = getEnv("HEIC_CONVERTER", c.OCR.HeicConverter)
	c.OCR.TessdataDir = getEnv("TESSDATA_PREFIX", c.OCR.TessdataDir)
	c.OCR.TesseractLang = getEnv("TESSERACT_LANG", c.OCR.TesseractLang)
	c.OCR.ArtifactCacheDir = getEnv("ARTIFACT_CACHE_DIR", c.OCR.ArtifactCacheDir)
	c.OCR.DPI = getEnvAsInt("OCR_DPI", c.OCR.DPI)
	c.OCR.MaxPages = getEnvAsInt("OCR_MAX_PAGES", c.OCR.MaxPages)

	c.LLM.Provider = strings.ToLower(getEnv("CLOUD_PROVIDER", c.LLM.Provider))
	c.LLM.OpenAIAPIKey = getEnv("OPENAI_API_KEY", c.LLM.OpenAIAPIKey)
	c.LLM.OpenAIModel = getEnv("OPENAI_MODEL", c.LLM.OpenAIModel)
	c.LLM.OpenAIBaseURL = getEnv("OPENAI_BASE_URL", c.LLM.OpenAIBaseURL)
	c.LLM.GeminiAPIKey = getEnv("GEMINI_API_KEY", c.LLM.GeminiAPIKey)
	c.LLM.GeminiModel = getEnv("GEMINI_MODEL", c.LLM.GeminiModel)
	c.LLM.Temperature = getEnvAsFloat32("CLOUD_TEMPERATURE", c.LLM.Temperature)
	c.LLM.Timeout = getEnvAsDuration("CLOUD_TIMEOUT", c.LLM.Timeout)
	c.LLM.RequestsPerSecond = getEnvAsFloat64("CLOUD_RPS", c.LLM.RequestsPerSecond)
	c.LLM.Burst = getEnvAsInt("CLOUD_BURST", c.LLM.Burst)
	c.LLM.RetryMaxAttempts = getEnvAsInt("CLOUD_RETRY_ATTEMPTS", c.LLM.RetryMaxAttempts)
	c.LLM.BreakerEnabled = getEnvAsBool("CLOUD_BREAKER_ENABLED", c.LLM.BreakerEnabled)

	c.Pipeline.ForcePremium = getEnvAsBool("FORCE_PREMIUM", c.Pipeline.ForcePremium)
	c.Pipeline.MinConfidenceTextTier = getEnvAsFloat64("MIN_CONFIDENCE_TEXT_TIER", c.Pipeline.MinConfidenceTextTier)
	c.Pipeline.MinConfidenceOCRTier = getEnvAsFloat64("MIN_CONFIDENCE_OCR_TIER", c.Pipeline.MinConfidenceOCRTier)
	c.Pipeline.CloudUnitCostPerPage = getEnvAsFloat64("CLOUD_UNIT_COST_PER_PAGE", c.Pipeline.CloudUnitCostPerPage)
	c.Pipeline.CloudDefaultConfidence = getEnvAsFloat64("CLOUD_DEFAULT_CONFIDENCE", c.Pipeline.CloudDefaultConfidence)
	c.Pipeline.MinTextLength = getEnvAsInt("MIN_TEXT_LENGTH", c.Pipeline.MinTextLength)
	c.Pipeline.TextTierTimeout = getEnvAsDuration("TEXT_TIER_TIMEOUT", c.Pipeline.TextTierTimeout)
	c.Pipeline.OCRTierTimeout = getEnvAsDuration("OCR_TIER_TIMEOUT", c.Pipeline.OCRTierTimeout)
	c.Pipeline.CloudTierTimeout = getEnvAsDuration("CLOUD_TIER_TIMEOUT", c.Pipeline.CloudTierTimeout)
	c.Pipeline.UsageLogTimeout = getEnvAsDuration("USAGE_LOG_TIMEOUT", c.Pipeline.UsageLogTimeout)
	c.Pipeline.BatchConcurrency = getEnvAsInt("BATCH_CONCURRENCY", c.Pipeline.BatchConcurrency)

	c.Cache.RedisURL = getEnv("REDIS_URL", c.Cache.RedisURL)
	c.Cache.TTL = getEnvAsDuration("CACHE_TTL", c.Cache.TTL)

	c.Events.NATSURL = getEnv("NATS_URL", c.Events.NATSURL)
	c.Events.UsageSubject = getEnv("NATS_USAGE_SUBJECT", c.Events.UsageSubject)

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return NewAppError("CONFIG_ERROR", fmt.Sprintf("DB_DRIVER must be postgres or sqlite, got %q", c.Database.Driver), ErrInvalidInput)
	}
	if c.Server.GRPCAddr == "" {
		return NewAppError("CONFIG_ERROR", "GRPC_ADDR is required", ErrInvalidInput)
	}
	switch c.LLM.Provider {
	case "":
	case "openai":
		if c.LLM.OpenAIAPIKey == "" {
			return NewAppError("CONFIG_ERROR", "OPENAI_API_KEY is required for the openai cloud provider", ErrInvalidInput)
		}
	case "gemini":
		if c.LLM.GeminiAPIKey == "" {
			return NewAppError("CONFIG_ERROR", "GEMINI_API_KEY is required for the gemini cloud provider", ErrInvalidInput)
		}
	default:
		return NewAppError("CONFIG_ERROR", fmt.Sprintf("CLOUD_PROVIDER must be openai, gemini or empty, got %q", c.LLM.Provider), ErrInvalidInput)
	}

	p := c.Pipeline
	if p.MinConfidenceTextTier < 0 || p.MinConfidenceTextTier > 1 {
		return NewAppError("CONFIG_ERROR", "MIN_CONFIDENCE_TEXT_TIER must be within [0,1]", ErrInvalidInput)
	}
	if p.MinConfidenceOCRTier < 0 || p.MinConfidenceOCRTier > 1 {
		return NewAppError("CONFIG_ERROR", "MIN_CONFIDENCE_OCR_TIER must be within [0,1]", ErrInvalidInput)
	}
	if p.CloudDefaultConfidence < 0 || p.CloudDefaultConfidence > 1 {
		return NewAppError("CONFIG_ERROR", "CLOUD_DEFAULT_CONFIDENCE must be within [0,1]", ErrInvalidInput)
	}
	if p.CloudUnitCostPerPage < 0 {
		return NewAppError("CONFIG_ERROR", "CLOUD_UNIT_COST_PER_PAGE must not be negative", ErrInvalidInput)
	}
	if p.MinTextLength < 1 {
		return NewAppError("CONFIG_ERROR", "MIN_TEXT_LENGTH must be at least 1", ErrInvalidInput)
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "json", "text":
	default:
		return NewAppError("CONFIG_ERROR", fmt.Sprintf("LOG_FORMAT must be json or text, got %q", c.Log.Format), ErrInvalidInput)
	}
	return nil
}
