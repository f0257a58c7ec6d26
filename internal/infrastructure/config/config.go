package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvConfigFile names the optional YAML file overlaid on the environment.
const EnvConfigFile = "TRUSTD_CONFIG_FILE"

// Config holds all configuration for the trust engine.
type Config struct {
	Environment string            `mapstructure:"environment"`
	Server      ServerConfig      `mapstructure:"server"`
	Fanout      FanoutConfig      `mapstructure:"fanout"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Classifier  ClassifierConfig  `mapstructure:"classifier"`
	Audit       AuditConfig       `mapstructure:"audit"`
	RateLimit   RateLimitConfig   `mapstructure:"ratelimit"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Kafka       KafkaConfig       `mapstructure:"kafka"`
	Log         LogConfig         `mapstructure:"log"`
	Tracing     TracingConfig     `mapstructure:"tracing"`
	Evaluators  []EvaluatorConfig `mapstructure:"evaluators" validate:"dive"`
}

type ServerConfig struct {
	HTTPPort        string        `mapstructure:"http_port"        validate:"required,numeric"`
	GRPCPort        string        `mapstructure:"grpc_port"        validate:"required,numeric"`
	TLSCertFile     string        `mapstructure:"tls_cert_file"    validate:"required_with=TLSKeyFile"`
	TLSKeyFile      string        `mapstructure:"tls_key_file"     validate:"required_with=TLSCertFile"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

type FanoutConfig struct {
	EvaluatorTimeout time.Duration `mapstructure:"evaluator_timeout" validate:"gt=0"`
	OverallTimeout   time.Duration `mapstructure:"overall_timeout"   validate:"gtefield=EvaluatorTimeout"`
}

type CacheConfig struct {
	TTL           time.Duration `mapstructure:"ttl"        validate:"gt=0"`
	MaxSizeMB     int           `mapstructure:"max_size_mb" validate:"gte=0"`
	Shards        int           `mapstructure:"shards"     validate:"gte=0"`
	RedisAddr     string        `mapstructure:"redis_addr" validate:"omitempty,hostname_port"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"   validate:"gte=0"`
}

type ClassifierConfig struct {
	TrustworthyMin float64 `mapstructure:"trustworthy_min" validate:"gte=0,lte=100"`
	SuspiciousMin  float64 `mapstructure:"suspicious_min"  validate:"gte=0,ltfield=TrustworthyMin"`
	OverrideSignal string  `mapstructure:"override_signal"`
	OverrideBelow  float64 `mapstructure:"override_below"  validate:"gte=0,lte=100"`
}

type AuditConfig struct {
	Sink          string        `mapstructure:"sink"           validate:"oneof=log postgres kafka"`
	Topic         string        `mapstructure:"topic"          validate:"required"`
	QueueSize     int           `mapstructure:"queue_size"     validate:"gt=0"`
	Workers       int           `mapstructure:"workers"        validate:"gt=0"`
	BatchSize     int           `mapstructure:"batch_size"     validate:"gt=0"`
	FlushInterval time.Duration `mapstructure:"flush_interval" validate:"gt=0"`
	MaxRetries    uint64        `mapstructure:"max_retries"`
}

type RateLimitConfig struct {
	// RPS of zero disables rate limiting.
	RPS   float64 `mapstructure:"rps"   validate:"gte=0"`
	Burst int     `mapstructure:"burst" validate:"gte=0"`
}

type DatabaseConfig struct {
	URL           string `mapstructure:"url"`
	MaxConns      int32  `mapstructure:"max_conns" validate:"gte=0"`
	MinConns      int32  `mapstructure:"min_conns" validate:"gte=0"`
	RunMigrations bool   `mapstructure:"run_migrations"`
}

type KafkaConfig struct {
	Brokers       []string      `mapstructure:"brokers" validate:"dive,hostname_port"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
	PublishEvents bool          `mapstructure:"publish_events"`
	TLS           bool          `mapstructure:"tls"`
	CAFile        string        `mapstructure:"ca_file"`
	SASLEnabled   bool          `mapstructure:"sasl_enabled"`
	SASLMechanism string        `mapstructure:"sasl_mechanism" validate:"omitempty,oneof=PLAIN SCRAM-SHA-256 SCRAM-SHA-512"`
	SASLUsername  string        `mapstructure:"sasl_username"`
	SASLPassword  string        `mapstructure:"sasl_password"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"  validate:"oneof=debug info warn error"`
	Format     string `mapstructure:"format" validate:"oneof=json text"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

type TracingConfig struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	SampleRatio  float64 `mapstructure:"sample_ratio" validate:"gte=0,lte=1"`
}

// EvaluatorConfig adjusts a registered evaluator or, when Endpoint is set,
// registers a remote one. Nil fields leave the current value alone.
type EvaluatorConfig struct {
	Name     string   `mapstructure:"name"     validate:"required,max=64"`
	Weight   *float64 `mapstructure:"weight"   validate:"omitempty,gt=0"`
	Enabled  *bool    `mapstructure:"enabled"`
	Endpoint string   `mapstructure:"endpoint" validate:"omitempty,url"`
	Polarity string   `mapstructure:"polarity" validate:"omitempty,oneof=risk authenticity"`
	CAFile   string   `mapstructure:"ca_file"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads configuration from environment variables with defaults, then
// overlays the YAML file named by TRUSTD_CONFIG_FILE when it is set.
func Load() (*Config, error) {
	return LoadFile(os.Getenv(EnvConfigFile))
}

// LoadFile is Load with an explicit overlay path. An empty path skips the file.
func LoadFile(path string) (*Config, error) {
	cfg, err := fromEnv()
	if err != nil {
		return nil, err
	}

	if path != "" {
		v := viper.New()
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := v.Unmarshal(cfg); err != nil {
			return nil, fmt.Errorf("unmarshal config file %s: %w", path, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints and the rules that span sections.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	switch {
	case c.Classifier.OverrideBelow > 0 && c.Classifier.OverrideSignal == "":
		return errors.New("config validation failed: classifier.override_signal is required when override_below is set")
	case c.Audit.Sink == "postgres" && c.Database.URL == "":
		return errors.New("config validation failed: audit sink postgres requires database.url")
	case c.Audit.Sink == "kafka" && len(c.Kafka.Brokers) == 0:
		return errors.New("config validation failed: audit sink kafka requires kafka.brokers")
	case c.Kafka.PublishEvents && len(c.Kafka.Brokers) == 0:
		return errors.New("config validation failed: kafka.publish_events requires kafka.brokers")
	}
	seen := make(map[string]bool, len(c.Evaluators))
	for _, e := range c.Evaluators {
		if seen[e.Name] {
			return fmt.Errorf("config validation failed: evaluator %q listed twice", e.Name)
		}
		seen[e.Name] = true
	}
	return nil
}

// HTTPAddress returns the full HTTP listen address.
func (c *Config) HTTPAddress() string {
	return fmt.Sprintf(":%s", c.Server.HTTPPort)
}

// GRPCAddress returns the full gRPC listen address.
func (c *Config) GRPCAddress() string {
	return fmt.Sprintf(":%s", c.Server.GRPCPort)
}

func fromEnv() (*Config, error) {
	var e env
	cfg := &Config{
		Environment: e.str("ENVIRONMENT", "development"),
		Server: ServerConfig{
			HTTPPort:        e.str("HTTP_PORT", "9090"),
			GRPCPort:        e.str("GRPC_PORT", "8090"),
			TLSCertFile:     e.str("TLS_CERT_FILE", ""),
			TLSKeyFile:      e.str("TLS_KEY_FILE", ""),
			ShutdownTimeout: e.duration("SHUTDOWN_TIMEOUT", 15*time.Second),
		},
		Fanout: FanoutConfig{
			EvaluatorTimeout: e.duration("EVALUATOR_TIMEOUT", 500*time.Millisecond),
			OverallTimeout:   e.duration("OVERALL_TIMEOUT", 1500*time.Millisecond),
		},
		Cache: CacheConfig{
			TTL:           e.duration("CACHE_TTL", 5*time.Minute),
			MaxSizeMB:     e.int("CACHE_MAX_SIZE_MB", 64),
			Shards:        e.int("CACHE_SHARDS", 64),
			RedisAddr:     e.str("REDIS_ADDR", ""),
			RedisPassword: e.str("REDIS_PASSWORD", ""),
			RedisDB:       e.int("REDIS_DB", 0),
		},
		Classifier: ClassifierConfig{
			TrustworthyMin: e.float("TRUSTWORTHY_MIN", 85),
			SuspiciousMin:  e.float("SUSPICIOUS_MIN", 60),
			OverrideSignal: e.str("OVERRIDE_SIGNAL", "counterfeit"),
			OverrideBelow:  e.float("OVERRIDE_BELOW", 30),
		},
		Audit: AuditConfig{
			Sink:          e.str("AUDIT_SINK", "log"),
			Topic:         e.str("AUDIT_TOPIC", "trust.audit.records"),
			QueueSize:     e.int("AUDIT_QUEUE_SIZE", 10000),
			Workers:       e.int("AUDIT_WORKERS", 2),
			BatchSize:     e.int("AUDIT_BATCH_SIZE", 100),
			FlushInterval: e.duration("AUDIT_FLUSH_INTERVAL", 250*time.Millisecond),
			MaxRetries:    uint64(e.int("AUDIT_MAX_RETRIES", 5)),
		},
		RateLimit: RateLimitConfig{
			RPS:   e.float("RATE_LIMIT_RPS", 200),
			Burst: e.int("RATE_LIMIT_BURST", 400),
		},
		Database: DatabaseConfig{
			URL:           e.str("DATABASE_URL", ""),
			MaxConns:      int32(e.int("DATABASE_MAX_CONNS", 10)),
			MinConns:      int32(e.int("DATABASE_MIN_CONNS", 1)),
			RunMigrations: e.bool("DATABASE_RUN_MIGRATIONS", true),
		},
		Kafka: KafkaConfig{
			Brokers:       e.list("KAFKA_BROKERS"),
			WriteTimeout:  e.duration("KAFKA_WRITE_TIMEOUT", 10*time.Second),
			PublishEvents: e.bool("KAFKA_PUBLISH_EVENTS", false),
			TLS:           e.bool("KAFKA_TLS", false),
			CAFile:        e.str("KAFKA_CA_FILE", ""),
			SASLEnabled:   e.bool("KAFKA_SASL_ENABLED", false),
			SASLMechanism: e.str("KAFKA_SASL_MECHANISM", ""),
			SASLUsername:  e.str("KAFKA_SASL_USERNAME", ""),
			SASLPassword:  e.str("KAFKA_SASL_PASSWORD", ""),
		},
		Log: LogConfig{
			Level:      e.str("LOG_LEVEL", "info"),
			Format:     e.str("LOG_FORMAT", "json"),
			File:       e.str("LOG_FILE", ""),
			MaxSizeMB:  e.int("LOG_MAX_SIZE_MB", 100),
			MaxBackups: e.int("LOG_MAX_BACKUPS", 5),
			MaxAgeDays: e.int("LOG_MAX_AGE_DAYS", 14),
		},
		Tracing: TracingConfig{
			OTLPEndpoint: e.str("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			SampleRatio:  e.float("OTEL_SAMPLE_RATIO", 1),
		},
	}
	if err := errors.Join(e.errs...); err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}
	return cfg, nil
}

// env reads typed environment variables, collecting parse failures.
type env struct {
	errs []error
}

func (e *env) str(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func (e *env) list(key string) []string {
	raw := e.str(key, "")
	if raw == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func (e *env) int(key string, defaultValue int) int {
	return parse(e, key, defaultValue, strconv.Atoi)
}

func (e *env) float(key string, defaultValue float64) float64 {
	return parse(e, key, defaultValue, func(s string) (float64, error) {
		return strconv.ParseFloat(s, 64)
	})
}

func (e *env) bool(key string, defaultValue bool) bool {
	return parse(e, key, defaultValue, strconv.ParseBool)
}

func (e *env) duration(key string, defaultValue time.Duration) time.Duration {
	return parse(e, key, defaultValue, time.ParseDuration)
}

func parse[T any](e *env, key string, defaultValue T, fn func(string) (T, error)) T {
	raw, exists := os.LookupEnv(key)
	if !exists || raw == "" {
		return defaultValue
	}
	v, err := fn(raw)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return v
}
