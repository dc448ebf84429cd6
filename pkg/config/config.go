package config

import (
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

type Config struct {
	Environment string `yaml:"environment" default:"development"`

	Logging struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"console"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"logging"`

	Engine struct {
		Weights struct {
			Sentiment float64 `yaml:"sentiment" default:"0.35" validate:"gte=0,lte=1"`
			Momentum  float64 `yaml:"momentum" default:"0.30" validate:"gte=0,lte=1"`
			Onchain   float64 `yaml:"onchain" default:"0.20" validate:"gte=0,lte=1"`
			Risk      float64 `yaml:"risk" default:"0.15" validate:"gte=0,lte=1"`
		} `yaml:"weights"`
		LongThreshold  float64 `yaml:"long_threshold" default:"15" validate:"gt=0,lte=100"`
		ShortThreshold float64 `yaml:"short_threshold" default:"15" validate:"gt=0,lte=100"`
		// Confidence floor applied when any sub-signal was defaulted.
		StaleConfidenceFloor float64 `yaml:"stale_confidence_floor" default:"5" validate:"gte=0,lte=100"`
	} `yaml:"engine"`

	Verification struct {
		// Max relative distance between declared and oracle price.
		PriceTolerance float64 `yaml:"price_tolerance" default:"0.01" validate:"gt=0,lt=1"`
		RulesFile      string  `yaml:"rules_file" default:"config/rules.yaml" validate:"required"`
	} `yaml:"verification"`

	Position struct {
		MinConfidence      float64 `yaml:"min_confidence" default:"55" validate:"gte=0,lte=100"`
		ReversalConfidence float64 `yaml:"reversal_confidence" default:"70" validate:"gte=0,lte=100"`
		TakeProfitROI      float64 `yaml:"take_profit_roi" default:"15" validate:"gt=0"`
		StopLossROI        float64 `yaml:"stop_loss_roi" default:"-10" validate:"lt=0"`
		Sizing             struct {
			Conservative float64 `yaml:"conservative" default:"0.10" validate:"gt=0,lte=1"`
			Moderate     float64 `yaml:"moderate" default:"0.25" validate:"gt=0,lte=1"`
			Aggressive   float64 `yaml:"aggressive" default:"0.50" validate:"gt=0,lte=1"`
		} `yaml:"sizing"`
	} `yaml:"position"`

	Providers struct {
		Timeout time.Duration `yaml:"timeout" default:"1500ms" validate:"gt=0"`
	} `yaml:"providers"`

	Loop struct {
		Interval time.Duration `yaml:"interval" default:"2s" validate:"gt=0"`
	} `yaml:"loop"`

	Health struct {
		PollBudget  time.Duration `yaml:"poll_budget" default:"1s" validate:"gt=0"`
		Interval    time.Duration `yaml:"interval" default:"10s" validate:"gt=0"`
		HistorySize int           `yaml:"history_size" default:"100" validate:"gt=0"`
		// Components whose outage takes the whole system offline.
		Critical []string `yaml:"critical"`
	} `yaml:"health"`

	Kafka struct {
		Brokers      []string      `yaml:"brokers"`
		Topic        string        `yaml:"topic" default:"verdict.recommendations"`
		RequiredAcks int           `yaml:"required_acks" default:"-1"`
		Compression  string        `yaml:"compression" default:"gzip"`
		MaxAttempts  int           `yaml:"max_attempts" default:"3"`
		BatchSize    int           `yaml:"batch_size" default:"100"`
		BatchTimeout time.Duration `yaml:"batch_timeout" default:"1s"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
	} `yaml:"kafka"`

	ClickHouse struct {
		Enabled     bool          `yaml:"enabled"`
		Host        string        `yaml:"host" default:"localhost"`
		Port        int           `yaml:"port" default:"9000"`
		Database    string        `yaml:"database" default:"verdict"`
		User        string        `yaml:"user" default:"default"`
		Password    string        `yaml:"password"`
		DialTimeout time.Duration `yaml:"dial_timeout" default:"5s"`
	} `yaml:"clickhouse"`

	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr" default:"localhost:6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Sessions []SessionConfig `yaml:"sessions" validate:"dive"`
}

// SessionConfig declares one evaluation stream to run at startup.
type SessionConfig struct {
	Key          string  `yaml:"key" validate:"required"`
	Symbol       string  `yaml:"symbol" validate:"required"`
	Profile      string  `yaml:"profile" default:"moderate" validate:"oneof=conservative moderate aggressive"`
	PortfolioUSD float64 `yaml:"portfolio_usd" default:"10000" validate:"gt=0"`
}

// Load reads and parses a YAML configuration file, applies defaults and
// validates the result. Any failure here is fatal at startup.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}

	if len(c.Sessions) == 0 {
		c.Sessions = []SessionConfig{{Key: "default", Symbol: "BTC", Profile: "moderate", PortfolioUSD: 10000}}
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}

	return c, nil
}

// Validate checks struct tags and the cross-field constraints the tags cannot
// express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}

	w := c.Engine.Weights
	sum := w.Sentiment + w.Momentum + w.Onchain + w.Risk
	if math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("engine.weights must sum to 1.0, got %.6f", sum)
	}

	if c.Position.MinConfidence > c.Position.ReversalConfidence {
		return fmt.Errorf("position.min_confidence (%.1f) must not exceed position.reversal_confidence (%.1f)",
			c.Position.MinConfidence, c.Position.ReversalConfidence)
	}

	return nil
}
