package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/NeuralTrust/TrustRail/pkg/types"
)

type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Auth         AuthConfig         `mapstructure:"auth"`
	Metrics      MetricsConfig      `mapstructure:"metrics"`
	Pipeline     PipelineConfig     `mapstructure:"pipeline"`
	Audit        AuditConfig        `mapstructure:"audit"`
	RateLimit    RateLimitConfig    `mapstructure:"rate_limit"`
	Conversation ConversationConfig `mapstructure:"conversation"`
	Guardrails   []types.Definition `mapstructure:"guardrails"`
}

type ServerConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	MetricsPort int    `mapstructure:"metrics_port"`
}

// AuthConfig drives the check API auth middleware. Static keys are
// accepted in the X-TR-API-Key header; a non-empty JWT secret
// additionally accepts Authorization: Bearer tokens.
type AuthConfig struct {
	APIKeys   []string `mapstructure:"api_keys"`
	JWTSecret string   `mapstructure:"jwt_secret"`
}

type MetricsConfig struct {
	Enabled            bool `mapstructure:"enabled"`
	EnableLatency      bool `mapstructure:"enable_latency"`
	EnablePerGuardrail bool `mapstructure:"enable_per_guardrail"`
}

type PipelineConfig struct {
	Concurrency int `mapstructure:"concurrency"`
	Timeout     int `mapstructure:"timeout"` // seconds
}

type AuditConfig struct {
	QueueSize      int                 `mapstructure:"queue_size"`
	OverflowPolicy string              `mapstructure:"overflow_policy"` // drop_oldest | reject_new
	Redact         bool                `mapstructure:"redact"`
	File           string              `mapstructure:"file"`
	Database       AuditDatabaseConfig `mapstructure:"database"`
	Kafka          AuditKafkaConfig    `mapstructure:"kafka"`
}

type AuditDatabaseConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
}

type AuditKafkaConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    string `mapstructure:"port"`
	Topic   string `mapstructure:"topic"`
}

// RateLimitConfig selects the limiter store and the default limits
// applied to conversations created by the HTTP layer.
type RateLimitConfig struct {
	Store     string      `mapstructure:"store"` // memory | redis
	PerMinute int         `mapstructure:"per_minute"`
	PerHour   int         `mapstructure:"per_hour"`
	Redis     RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type ConversationConfig struct {
	TTL int `mapstructure:"ttl"` // seconds
}

const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

var globalConfig Config

func Load(configPath string) error {
	viper.Reset()
	globalConfig = Config{}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configPath)
	viper.AddConfigPath("./config")
	viper.AddConfigPath(".")

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return fmt.Errorf("config file config.yaml not found in %q", configPath)
		}
		return fmt.Errorf("error reading config file: %w", err)
	}

	if err := viper.Unmarshal(&globalConfig); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	setDefaultValues()
	return globalConfig.Validate()
}

func setDefaultValues() {
	if globalConfig.Server.Host == "" {
		globalConfig.Server.Host = "0.0.0.0"
	}
	if globalConfig.Server.Port == 0 {
		globalConfig.Server.Port = 8080
	}
	if globalConfig.Server.MetricsPort == 0 {
		globalConfig.Server.MetricsPort = 9090
	}
	if globalConfig.Pipeline.Concurrency == 0 {
		globalConfig.Pipeline.Concurrency = 4
	}
	if globalConfig.Pipeline.Timeout == 0 {
		globalConfig.Pipeline.Timeout = 10
	}
	if globalConfig.Audit.QueueSize == 0 {
		globalConfig.Audit.QueueSize = 1000
	}
	if globalConfig.Audit.OverflowPolicy == "" {
		globalConfig.Audit.OverflowPolicy = "drop_oldest"
	}
	if globalConfig.RateLimit.Store == "" {
		globalConfig.RateLimit.Store = StoreMemory
	}
	if globalConfig.Conversation.TTL == 0 {
		globalConfig.Conversation.TTL = 1800
	}
}

// Validate rejects values the wiring cannot act on. Guardrail settings
// are validated later, by each kind's constructor.
func (c *Config) Validate() error {
	if c.RateLimit.Store != StoreMemory && c.RateLimit.Store != StoreRedis {
		return fmt.Errorf("invalid rate_limit.store %q (expected %s or %s)",
			c.RateLimit.Store, StoreMemory, StoreRedis)
	}
	switch c.Audit.OverflowPolicy {
	case "drop_oldest", "reject_new":
	default:
		return fmt.Errorf("invalid audit.overflow_policy %q", c.Audit.OverflowPolicy)
	}
	if c.Audit.Kafka.Enabled && c.Audit.Kafka.Topic == "" {
		return fmt.Errorf("audit.kafka.topic is required when the kafka sink is enabled")
	}
	if c.Audit.Database.Enabled && c.Audit.Database.DBName == "" {
		return fmt.Errorf("audit.database.name is required when the database sink is enabled")
	}
	return nil
}

func GetConfig() *Config {
	return &globalConfig
}
