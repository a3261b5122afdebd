// Package config loads gateway configuration from flags and environment,
// with .env support for local development.
package config

import (
	"flag"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string
	Env  string

	Pipeline PipelineConfig
	Snapshot SnapshotConfig
	Report   ReportConfig
	LLM      LLMConfig
}

// PipelineConfig bounds stage execution.
type PipelineConfig struct {
	StageTimeout time.Duration
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	SnapshotTTL  time.Duration
}

type SnapshotConfig struct {
	// PostgresDSN empty means in-memory snapshots.
	PostgresDSN string
}

type ReportConfig struct {
	Enabled   bool
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type LLMConfig struct {
	// Provider is "gemini" or "fake".
	Provider string
	Model    string
	RPS      float64
	Burst    int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	port := flag.String("port", ":8081", "server port")
	flag.Parse()

	if envPort := os.Getenv("PORT"); envPort != "" {
		if strings.HasPrefix(envPort, ":") {
			*port = envPort
		} else {
			*port = ":" + envPort
		}
	}

	env := strings.TrimSpace(os.Getenv("APP_ENV"))
	if env == "" {
		env = "local"
	}

	return &Config{
		Port:     *port,
		Env:      env,
		Pipeline: loadPipelineConfig(),
		Snapshot: SnapshotConfig{PostgresDSN: strings.TrimSpace(os.Getenv("SNAPSHOT_PG_DSN"))},
		Report:   loadReportConfig(env),
		LLM:      loadLLMConfig(),
	}, nil
}

func loadPipelineConfig() PipelineConfig {
	return PipelineConfig{
		StageTimeout: envDuration("PIPELINE_STAGE_TIMEOUT", 2*time.Minute),
		MaxAttempts:  envInt("PIPELINE_MAX_ATTEMPTS", 3),
		InitialDelay: envDuration("PIPELINE_INITIAL_DELAY", 500*time.Millisecond),
		MaxDelay:     envDuration("PIPELINE_MAX_DELAY", 30*time.Second),
		SnapshotTTL:  envDuration("PIPELINE_SNAPSHOT_TTL", 24*time.Hour),
	}
}

func loadReportConfig(env string) ReportConfig {
	endpoint := resolveReportEndpoint(env)
	return ReportConfig{
		Enabled:   strings.EqualFold(strings.TrimSpace(env), "local") || endpoint != "",
		Endpoint:  endpoint,
		Region:    firstNonEmpty(strings.TrimSpace(os.Getenv("REPORT_S3_REGION")), "us-east-1"),
		AccessKey: firstNonEmpty(strings.TrimSpace(os.Getenv("REPORT_S3_ACCESS_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_USER"))),
		SecretKey: firstNonEmpty(strings.TrimSpace(os.Getenv("REPORT_S3_SECRET_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_PASSWORD"))),
		Bucket:    firstNonEmpty(strings.TrimSpace(os.Getenv("REPORT_S3_BUCKET")), "llmfit-reports"),
		UseSSL:    resolveReportUseSSL(env),
	}
}

func resolveReportEndpoint(env string) string {
	if strings.EqualFold(strings.TrimSpace(env), "local") {
		return firstNonEmpty(strings.TrimSpace(os.Getenv("REPORT_MINIO_ENDPOINT")), "minio:9000")
	}
	return strings.TrimSpace(os.Getenv("REPORT_S3_ENDPOINT"))
}

func resolveReportUseSSL(env string) bool {
	if strings.EqualFold(strings.TrimSpace(env), "local") {
		return false
	}
	raw := strings.TrimSpace(os.Getenv("REPORT_S3_USE_SSL"))
	if raw == "" {
		return true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return true
	}
	return v
}

func loadLLMConfig() LLMConfig {
	provider := strings.ToLower(strings.TrimSpace(os.Getenv("LLM_PROVIDER")))
	if provider == "" {
		provider = "gemini"
	}
	return LLMConfig{
		Provider: provider,
		Model:    strings.TrimSpace(os.Getenv("LLM_MODEL")),
		RPS:      envFloat("LLM_RPS", 0),
		Burst:    envInt("LLM_BURST", 1),
	}
}

func envDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func envInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envFloat(key string, fallback float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
