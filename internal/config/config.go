package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the service
type Config struct {
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"logLevel"`
	Server      struct {
		Port int `mapstructure:"port"`
	} `mapstructure:"server"`
	Metrics struct {
		Enabled bool `mapstructure:"enabled"`
		Port    int  `mapstructure:"port"`
	} `mapstructure:"metrics"`
	Database struct {
		PostgresDSN         string `mapstructure:"postgresDSN"` // empty: in-memory audit ledger
		PostgresAutoMigrate bool   `mapstructure:"postgresAutoMigrate"`
	} `mapstructure:"database"`
	NATS struct {
		Enabled      bool   `mapstructure:"enabled"`
		URL          string `mapstructure:"url"`
		AuditStream  string `mapstructure:"auditStream"`
		AuditSubject string `mapstructure:"auditSubject"` // base subject, tenant ID appended
		MaxAgeDays   int    `mapstructure:"maxAgeDays"`
	} `mapstructure:"nats"`
	Fallback FallbackConfig `mapstructure:"fallback"`
	Dedupe   struct {
		Window        time.Duration `mapstructure:"window"`
		SweepInterval time.Duration `mapstructure:"sweepInterval"`
	} `mapstructure:"dedupe"`
	Pipeline struct {
		Deadline time.Duration `mapstructure:"deadline"` // overall per-message processing deadline
	} `mapstructure:"pipeline"`
	WorkerPool WorkerPoolConfig `mapstructure:"workerPool"`
}

// FallbackConfig holds settings for the conversational backend bridge.
type FallbackConfig struct {
	URL         string        `mapstructure:"url"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxRetries  uint64        `mapstructure:"maxRetries"`
	RetryDelay  time.Duration `mapstructure:"retryDelay"`
	ChatPath    string        `mapstructure:"chatPath"`
	ClearedPath string        `mapstructure:"clearedPath"`
}

// WorkerPoolConfig holds configuration for the webhook processing pool.
type WorkerPoolConfig struct {
	PoolSize   int           `mapstructure:"poolSize"`
	QueueSize  int           `mapstructure:"queueSize"`
	ExpiryTime time.Duration `mapstructure:"expiryTime"`
}

// LoadConfig reads configuration from file or environment variables
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("environment", "development")
	v.SetDefault("logLevel", "info")
	v.SetDefault("server.port", 8080)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 2112)
	v.SetDefault("database.postgresAutoMigrate", true)
	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.auditStream", "audit_events")
	v.SetDefault("nats.auditSubject", "v1.audit")
	v.SetDefault("nats.maxAgeDays", 30)
	v.SetDefault("fallback.url", "http://localhost:8000")
	v.SetDefault("fallback.chatPath", "/api/chat")
	v.SetDefault("fallback.clearedPath", "/api/chat/clear")
	v.SetDefault("fallback.timeout", 10*time.Second)
	v.SetDefault("fallback.maxRetries", 1)
	v.SetDefault("fallback.retryDelay", 200*time.Millisecond)
	v.SetDefault("dedupe.window", 10*time.Minute)
	v.SetDefault("dedupe.sweepInterval", time.Minute)
	v.SetDefault("pipeline.deadline", 25*time.Second)
	v.SetDefault("workerPool.poolSize", 32)
	v.SetDefault("workerPool.queueSize", 4096)
	v.SetDefault("workerPool.expiryTime", time.Minute)

	v.SetConfigName("default")
	v.SetConfigType("yaml")

	if path != "" {
		v.AddConfigPath(path)
	}
	v.AddConfigPath(".")
	v.AddConfigPath("./internal/config")
	v.AddConfigPath("$HOME/.chathy-command-engine")
	v.AddConfigPath("/etc/chathy-command-engine")

	if err := v.ReadInConfig(); err != nil {
		// Config file is optional, env vars can carry everything
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvs(v, Config{})

	// Read directly from ENV for critical values
	if dsn := os.Getenv("POSTGRES_DSN"); dsn != "" {
		v.Set("database.postgresDSN", dsn)
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		v.Set("logLevel", level)
	}
	if url := os.Getenv("NATS_URL"); url != "" {
		v.Set("nats.url", url)
		v.Set("nats.enabled", true)
	}
	if url := os.Getenv("FALLBACK_URL"); url != "" {
		v.Set("fallback.url", url)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	return &config, nil
}

// bindEnvs recursively binds environment variables to config struct fields
func bindEnvs(v *viper.Viper, cfg interface{}, parts ...string) {
	ifv := reflect.ValueOf(cfg)
	ift := reflect.TypeOf(cfg)
	for i := 0; i < ift.NumField(); i++ {
		fieldVal := ifv.Field(i)
		fieldType := ift.Field(i)

		tag := fieldType.Tag.Get("mapstructure")
		if tag == "" || tag == "-" {
			continue
		}

		path := append(parts, tag)
		key := strings.Join(path, ".")

		if fieldType.Type.Kind() == reflect.Struct {
			bindEnvs(v, fieldVal.Interface(), path...)
			continue
		}

		_ = v.BindEnv(key)
	}
}
