package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"FactorLab/pkg/util"
)

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"required,oneof=development staging production test"`
	Server      struct {
		Host            string        `yaml:"host" default:"0.0.0.0"`
		Port            int           `yaml:"port" default:"8080" validate:"gt=0,lt=65536"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"30s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
		SlowRequest     time.Duration `yaml:"slow_request" default:"2s"`
		RateLimit       struct {
			Enabled   bool    `yaml:"enabled" default:"true"`
			Burst     float64 `yaml:"burst" default:"20" validate:"gte=1"`
			PerSecond float64 `yaml:"per_second" default:"10" validate:"gt=0"`
		} `yaml:"rate_limit"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Logger struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=trace debug info warn error"`
		Format string `yaml:"format" default:"console" validate:"oneof=console json"`
		Output string `yaml:"output" default:"stdout"`
		Digest struct {
			Enabled       bool          `yaml:"enabled"`
			FlushInterval time.Duration `yaml:"flush_interval" default:"1m"`
			MaxEntries    int           `yaml:"max_entries" default:"200"`
			Topic         string        `yaml:"topic" default:"factorlab-log-digest"`
		} `yaml:"digest"`
	} `yaml:"logger"`
	Engine struct {
		Workers      int           `yaml:"workers" validate:"gte=0"`
		LookbackDays int           `yaml:"lookback_days" default:"120" validate:"gt=0"`
		LoadTimeout  time.Duration `yaml:"load_timeout" default:"5s"`
		LoadParallel int           `yaml:"load_parallel" default:"8" validate:"gt=0"`
		CacheTTL     time.Duration `yaml:"cache_ttl" default:"6h"`
	} `yaml:"engine"`
	Signal struct {
		Topic   string `yaml:"topic" default:"signals"`
		Persist bool   `yaml:"persist" default:"true"`
	} `yaml:"signal"`
	Scheduler struct {
		Enabled  bool          `yaml:"enabled"`
		Spec     string        `yaml:"spec" default:"30 18 * * 1-5"`
		Timezone string        `yaml:"timezone" default:"Asia/Taipei"`
		Universe []string      `yaml:"universe"`
		LockTTL  time.Duration `yaml:"lock_ttl" default:"30m"`
	} `yaml:"scheduler"`
	Strategies struct {
		File string `yaml:"file" default:"config/strategies.yaml"`
	} `yaml:"strategies"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"factorlab"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
	} `yaml:"clickhouse"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Compression  string   `yaml:"compression" default:"gzip" validate:"oneof=gzip snappy lz4 zstd"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"200ms"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			Enabled    bool          `yaml:"enabled"`
			Topic      string        `yaml:"topic" default:"factor-jobs"`
			GroupID    string        `yaml:"group_id" default:"factorlab"`
			Workers    int           `yaml:"workers" default:"2"`
			BufferSize int           `yaml:"buffer_size" default:"16"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"100ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
			DLQTopic   string        `yaml:"dlq_topic" default:"factor-jobs-dlq"`
			MinBytes   int           `yaml:"min_bytes" default:"1"`
			MaxBytes   int           `yaml:"max_bytes" default:"10000000"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	Redis struct {
		Enabled    bool          `yaml:"enabled"`
		Addr       string        `yaml:"addr" default:"localhost:6379"`
		Password   string        `yaml:"password"`
		DB         int           `yaml:"db"`
		PoolSize   int           `yaml:"pool_size" default:"10"`
		Prefix     string        `yaml:"prefix" default:"factorlab"`
		MemorySize int           `yaml:"memory_size" default:"2000"`
		MemoryTTL  time.Duration `yaml:"memory_ttl" default:"5m"`
	} `yaml:"redis"`
	Queue struct {
		Enabled    bool          `yaml:"enabled"`
		Prefix     string        `yaml:"prefix" default:"factorlab:queue"`
		Workers    int           `yaml:"workers" default:"2" validate:"gt=0"`
		RetryLimit int           `yaml:"retry_limit" default:"3" validate:"gte=0"`
		RetryDelay time.Duration `yaml:"retry_delay" default:"30s"`
	} `yaml:"queue"`
	Fundamentals struct {
		Enabled bool          `yaml:"enabled"`
		BaseURL string        `yaml:"base_url" validate:"omitempty,url"`
		APIKey  string        `yaml:"api_key"`
		Timeout time.Duration `yaml:"timeout" default:"5s"`
		TTL     time.Duration `yaml:"ttl" default:"12h"`
	} `yaml:"fundamentals"`
}

var validate = validator.New()

// Load reads a YAML file, applies defaults and validates the result.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML bytes, applies defaults and validates.
func Parse(b []byte) (*Config, error) {
	var c Config
	// defaults first so explicit false or zero values in the file survive
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides it with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	c.applyEnv(os.Getenv)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("APP_ENV"); v != "" {
		c.Environment = v
	}
	if v := getenv("PORT"); v != "" {
		c.Server.Port = util.ParseIntDefault(v, c.Server.Port)
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Logger.Level = v
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = util.SplitList(v)
	}
	if v := getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := getenv("FUNDAMENTALS_API_KEY"); v != "" {
		c.Fundamentals.APIKey = v
	}
	if v := getenv("UNIVERSE"); v != "" {
		c.Scheduler.Universe = util.SplitList(v)
	}
}

// Validate checks struct tags plus the cross-field rules tags cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Scheduler.Enabled {
		if strings.TrimSpace(c.Scheduler.Spec) == "" {
			return fmt.Errorf("scheduler.spec is required when the scheduler is enabled")
		}
		if len(c.Scheduler.Universe) == 0 {
			return fmt.Errorf("scheduler.universe cannot be empty when the scheduler is enabled")
		}
	}
	if c.ClickHouse.Enabled && c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty")
	}
	if c.Fundamentals.Enabled && c.Fundamentals.BaseURL == "" {
		return fmt.Errorf("fundamentals.base_url is required")
	}
	if c.Queue.Enabled && !c.Redis.Enabled {
		return fmt.Errorf("queue requires redis.enabled")
	}
	if c.Kafka.Consumer.Enabled && !c.Kafka.Enabled {
		return fmt.Errorf("kafka.consumer requires kafka.enabled")
	}
	return nil
}
