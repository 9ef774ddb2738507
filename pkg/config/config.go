// Package config loads the process-wide configuration launchdeck needs at
// startup: the deployment target (cloud project, region, registry), the
// sweeper's grace/interval settings, and the set of origins the Session
// Gateway's WebSocket upgrade accepts from (spec §2, §5, §9).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/launchdeck/launchdeck/internal/collaborators"
)

// Config is the umbrella object Initialize returns.
type Config struct {
	configDir string

	HTTPPort string
	GinMode  string

	Cloud     collaborators.ResourceConfig
	Target    CloudTarget
	Retention RetentionConfig
	Broker    BrokerConfig

	Origins *OriginRegistry
}

// ConfigDir returns the directory .env and any future config files were
// loaded from.
func (c *Config) ConfigDir() string { return c.configDir }

// CloudTarget is where the Pipeline Engine deploys to (spec §3
// pipeline.Input fields sourced from the environment rather than the
// conversation).
type CloudTarget struct {
	ProjectID     string
	Region        string
	Registry      string
	StagingBucket string
}

// RetentionConfig mirrors the teacher's RetentionConfig shape, retargeted
// at the Session Gateway sweeper (spec §5, §9) instead of database rows.
type RetentionConfig struct {
	GraceThreshold time.Duration
	SweepInterval  time.Duration
}

// BrokerConfig names the Model Broker's two endpoints; the clients
// themselves (internal/broker) read their API keys and model overrides
// directly from the environment, as the teacher's pkg/llm.Client does.
type BrokerConfig struct {
	PrimaryAddr    string
	BackupEnabled  bool
}

// Initialize loads a .env file from configDir (if present), then builds a
// Config from environment variables, applying defaults for anything unset.
// Grounded on the teacher's config.Initialize / cmd/tarsy/main.go getEnv
// pattern.
func Initialize(configDir string) (*Config, error) {
	envPath := configDir + "/.env"
	if err := godotenv.Load(envPath); err != nil {
		fmt.Fprintf(os.Stderr, "config: no .env file at %s, using process environment\n", envPath)
	}

	target := CloudTarget{
		ProjectID:     getEnv("LAUNCHDECK_PROJECT_ID", ""),
		Region:        getEnv("LAUNCHDECK_REGION", "us-central1"),
		Registry:      getEnv("LAUNCHDECK_REGISTRY", ""),
		StagingBucket: getEnv("LAUNCHDECK_STAGING_BUCKET", ""),
	}

	resources := collaborators.ResourceConfig{
		CPU:          getEnv("LAUNCHDECK_DEFAULT_CPU", "1"),
		Memory:       getEnv("LAUNCHDECK_DEFAULT_MEMORY", "512Mi"),
		Concurrency:  getEnvInt("LAUNCHDECK_DEFAULT_CONCURRENCY", 80),
		MinInstances: getEnvInt("LAUNCHDECK_MIN_INSTANCES", 0),
		MaxInstances: getEnvInt("LAUNCHDECK_MAX_INSTANCES", 5),
	}

	retention := RetentionConfig{
		GraceThreshold: getEnvDuration("LAUNCHDECK_SWEEPER_GRACE", time.Hour),
		SweepInterval:  getEnvDuration("LAUNCHDECK_SWEEPER_INTERVAL", 5*time.Minute),
	}

	broker := BrokerConfig{
		PrimaryAddr:   getEnv("LAUNCHDECK_LLM_GRPC_ADDR", "localhost:50051"),
		BackupEnabled: getEnv("LAUNCHDECK_ANTHROPIC_API_KEY", "") != "",
	}

	origins := NewOriginRegistry(splitCSV(getEnv("LAUNCHDECK_ALLOWED_WS_ORIGINS", "")))

	return &Config{
		configDir: configDir,
		HTTPPort:  getEnv("HTTP_PORT", "8080"),
		GinMode:   getEnv("GIN_MODE", "release"),
		Cloud:     resources,
		Target:    target,
		Retention: retention,
		Broker:    broker,
		Origins:   origins,
	}, nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultValue
	}
	return n
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultValue
	}
	return d
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
