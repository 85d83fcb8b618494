package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/creasty/defaults"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"MacroPull/pkg/util"
)

// Backends for the response cache and the fetch-event sink.
const (
	CacheNone    = "none"
	CacheMemory  = "memory"
	CacheRedis   = "redis"
	CacheLayered = "layered"

	EventsNone       = "none"
	EventsKafka      = "kafka"
	EventsClickHouse = "clickhouse"
)

type RateRule struct {
	Capacity     float64 `yaml:"capacity"`
	RefillPerSec float64 `yaml:"refill_per_sec"`
}

type Config struct {
	Environment string `yaml:"environment" default:"development"`
	Server      struct {
		Host            string        `yaml:"host" default:"0.0.0.0"`
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"15s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"60s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		SlowRequest     time.Duration `yaml:"slow_request" default:"5s"`
		CORSOrigins     []string      `yaml:"cors_origins"`
	} `yaml:"server"`
	Log struct {
		Level      string `yaml:"level" default:"info"`
		Format     string `yaml:"format" default:"console"`
		Output     string `yaml:"output" default:"stdout"`
		MaxSizeMB  int    `yaml:"max_size_mb" default:"50"`
		MaxBackups int    `yaml:"max_backups" default:"3"`
		Digest     struct {
			Enabled     bool          `yaml:"enabled"`
			Interval    time.Duration `yaml:"interval" default:"1m"`
			MaxDistinct int           `yaml:"max_distinct" default:"200"`
			Topic       string        `yaml:"topic" default:"macropull.log-digest"`
		} `yaml:"digest"`
	} `yaml:"log"`
	Providers struct {
		HTTPTimeout  time.Duration `yaml:"http_timeout" default:"20s"`
		FetchTimeout time.Duration `yaml:"fetch_timeout" default:"30s"`
		UserAgent    string        `yaml:"user_agent" default:"MacroPull/1.0"`
		WorldBank    struct {
			BaseURL  string `yaml:"base_url"`
			PerPage  int    `yaml:"per_page"`
			MaxPages int    `yaml:"max_pages"`
			Retries  int    `yaml:"retries"`
		} `yaml:"worldbank"`
		BLS struct {
			BaseURL  string `yaml:"base_url"`
			APIKey   string `yaml:"api_key"`
			YearSpan int    `yaml:"year_span"`
		} `yaml:"bls"`
		FRED struct {
			BaseURL          string `yaml:"base_url"`
			CSVURL           string `yaml:"csv_url"`
			APIKey           string `yaml:"api_key"`
			ObservationStart string `yaml:"observation_start"`
		} `yaml:"fred"`
		Eurostat struct {
			// empty is reported by the adapter on first use
			BaseURL string `yaml:"base_url"`
		} `yaml:"eurostat"`
		// Mirrors maps BLS series ids to FRED ids; nil keeps the built-in table.
		Mirrors   map[string]string   `yaml:"mirrors"`
		RateLimit map[string]RateRule `yaml:"rate_limit"`
	} `yaml:"providers"`
	Cache struct {
		Backend        string        `yaml:"backend" default:"memory"`
		Fresh          time.Duration `yaml:"fresh" default:"10m"`
		Stale          time.Duration `yaml:"stale" default:"1h"`
		RefreshTimeout time.Duration `yaml:"refresh_timeout" default:"30s"`
		MemoryMaxSize  int           `yaml:"memory_max_size" default:"1000"`
		Redis          struct {
			Addr     string `yaml:"addr" default:"localhost:6379"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			PoolSize int    `yaml:"pool_size" default:"10"`
			Prefix   string `yaml:"prefix" default:"macropull"`
		} `yaml:"redis"`
	} `yaml:"cache"`
	Events struct {
		Backend       string        `yaml:"backend" default:"none"`
		BufferSize    int           `yaml:"buffer_size" default:"1000"`
		BatchSize     int           `yaml:"batch_size" default:"100"`
		FlushInterval time.Duration `yaml:"flush_interval" default:"1s"`
		MaxRetries    int           `yaml:"max_retries" default:"3"`
		Kafka         struct {
			Brokers      []string      `yaml:"brokers"`
			Topic        string        `yaml:"topic" default:"macropull.fetch-events"`
			ClientID     string        `yaml:"client_id" default:"macropull"`
			Compression  string        `yaml:"compression" default:"snappy"`
			RequiredAcks int           `yaml:"required_acks" default:"1"`
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"kafka"`
		ClickHouse struct {
			Addr        string        `yaml:"addr" default:"localhost:9000"`
			Database    string        `yaml:"database" default:"macropull"`
			User        string        `yaml:"user" default:"default"`
			Password    string        `yaml:"password"`
			Table       string        `yaml:"table" default:"fetch_events"`
			AsyncInsert bool          `yaml:"async_insert"`
			DialTimeout time.Duration `yaml:"dial_timeout" default:"5s"`
			ReadTimeout time.Duration `yaml:"read_timeout" default:"30s"`
		} `yaml:"clickhouse"`
	} `yaml:"events"`
}

// Load reads a YAML file, fills unset fields with defaults and validates.
// An empty path yields the defaults alone.
func Load(path string) (*Config, error) {
	return load(path, false)
}

// LoadWithEnv loads .env files (without overriding the process
// environment), then the YAML file, then applies environment overrides.
func LoadWithEnv(path string) (*Config, error) {
	if err := loadDotEnv(".env", ".env.local"); err != nil {
		return nil, err
	}
	return load(path, true)
}

func load(path string, env bool) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	if env {
		if err := c.applyEnv(); err != nil {
			return nil, err
		}
	}
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

func loadDotEnv(files ...string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("FRED_API_KEY"); v != "" {
		c.Providers.FRED.APIKey = v
	}
	if v := os.Getenv("BLS_API_KEY"); v != "" {
		c.Providers.BLS.APIKey = v
	}
	if v := os.Getenv("EUROSTAT_SDMX_BASE"); v != "" {
		c.Providers.Eurostat.BaseURL = v
	}
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PORT: %w", err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Cache.Redis.Addr = v
		if c.Cache.Backend == "" {
			c.Cache.Backend = CacheRedis
		}
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Events.Kafka.Brokers = util.SplitList(v, ",")
	}
	if v := os.Getenv("EVENTS_BACKEND"); v != "" {
		c.Events.Backend = v
	}
	if v := os.Getenv("CLICKHOUSE_ADDR"); v != "" {
		c.Events.ClickHouse.Addr = v
	}
	return nil
}

// Validate checks structural values. A missing Eurostat base URL is not an
// error here; the adapter reports it when first called.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in 1..65535, got %d", c.Server.Port)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("log.format must be 'json' or 'console', got '%s'", c.Log.Format)
	}
	switch c.Cache.Backend {
	case CacheNone, CacheMemory, CacheRedis, CacheLayered:
	default:
		return fmt.Errorf("cache.backend must be one of none, memory, redis, layered, got '%s'", c.Cache.Backend)
	}
	if c.Cache.Fresh <= 0 {
		return fmt.Errorf("cache.fresh must be positive")
	}
	if c.Cache.Stale < 0 {
		return fmt.Errorf("cache.stale cannot be negative")
	}
	switch c.Events.Backend {
	case EventsNone:
	case EventsKafka:
		if len(c.Events.Kafka.Brokers) == 0 {
			return fmt.Errorf("events.kafka.brokers cannot be empty with the kafka backend")
		}
		if c.Events.Kafka.Topic == "" {
			return fmt.Errorf("events.kafka.topic is required")
		}
	case EventsClickHouse:
		if c.Events.ClickHouse.Addr == "" {
			return fmt.Errorf("events.clickhouse.addr is required with the clickhouse backend")
		}
	default:
		return fmt.Errorf("events.backend must be 'none', 'kafka' or 'clickhouse', got '%s'", c.Events.Backend)
	}
	if c.Log.Digest.Enabled && len(c.Events.Kafka.Brokers) == 0 {
		return fmt.Errorf("log.digest needs events.kafka.brokers")
	}
	for name, r := range c.Providers.RateLimit {
		if r.Capacity < 0 || r.RefillPerSec < 0 {
			return fmt.Errorf("providers.rate_limit.%s cannot be negative", name)
		}
	}
	return nil
}
