// Package config loads and validates riskflow configuration. The loaded
// Config is an immutable value handed to constructors; no component
// reads configuration from ambient global state.
package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/voltex/riskflow/pkg/models"
)

// Config is the root configuration for the riskflow service.
type Config struct {
	Log      LogConfig      `mapstructure:"log"`
	Server   ServerConfig   `mapstructure:"server"`
	Risk     RiskConfig     `mapstructure:"risk"`
	Workflow WorkflowConfig `mapstructure:"workflow"`
	Store    StoreConfig    `mapstructure:"store"`
	Events   EventsConfig   `mapstructure:"events"`
}

// LogConfig controls logger construction.
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// ServerConfig controls the HTTP API server.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// RiskConfig holds risk check parameters. Deviation bounds are ratios
// (0.10 means 10%).
type RiskConfig struct {
	CheckTimeout        time.Duration `mapstructure:"check_timeout"`
	CreditWarnRatio     float64       `mapstructure:"credit_warn_ratio"`
	VolumeWarnRatio     float64       `mapstructure:"volume_warn_ratio"`
	MaxPriceDeviation   float64       `mapstructure:"max_price_deviation"`
	WarnPriceDeviation  float64       `mapstructure:"warn_price_deviation"`
	VolatilityWarnLevel float64       `mapstructure:"volatility_warn_level"`
}

// LevelPolicy binds one risk level to its notional threshold and the
// ordered approver chain it requires. Threshold 0 means unbounded
// (the critical level).
type LevelPolicy struct {
	Threshold int64         `mapstructure:"threshold"`
	Approvers []models.Role `mapstructure:"approvers"`
}

// RolePolicy describes one approver role: its 1-based position in the
// full chain and the checks it re-confirms before approving.
type RolePolicy struct {
	Level          int      `mapstructure:"level"`
	RequiredChecks []string `mapstructure:"required_checks"`
}

// WorkflowConfig is the static approval workflow definition.
type WorkflowConfig struct {
	Levels map[string]LevelPolicy     `mapstructure:"levels"`
	Roles  map[models.Role]RolePolicy `mapstructure:"roles"`
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Driver string `mapstructure:"driver"` // sqlite | postgres | none
	DSN    string `mapstructure:"dsn"`
}

// EventsConfig controls the workflow event publishers.
type EventsConfig struct {
	Kafka KafkaConfig `mapstructure:"kafka"`
	Redis RedisConfig `mapstructure:"redis"`
}

// KafkaConfig configures the kafka event publisher.
type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// RedisConfig configures the redis pub/sub event publisher.
type RedisConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
	Channel string `mapstructure:"channel"`
}

// Load reads configuration from the given YAML file (optional) plus
// RISKFLOW_* environment variables, applies defaults and validates.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("RISKFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// Default returns the built-in configuration, matching the documented
// thresholds and approval chains.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(err) // defaults are static; cannot fail
	}
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8085)
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)

	v.SetDefault("risk.check_timeout", 3*time.Second)
	v.SetDefault("risk.credit_warn_ratio", 0.8)
	v.SetDefault("risk.volume_warn_ratio", 0.8)
	v.SetDefault("risk.max_price_deviation", 0.10)
	v.SetDefault("risk.warn_price_deviation", 0.05)
	v.SetDefault("risk.volatility_warn_level", 0.10)

	v.SetDefault("workflow.levels.low.threshold", 100000)
	v.SetDefault("workflow.levels.low.approvers", []string{"trader"})
	v.SetDefault("workflow.levels.medium.threshold", 500000)
	v.SetDefault("workflow.levels.medium.approvers", []string{"trader", "supervisor"})
	v.SetDefault("workflow.levels.high.threshold", 2000000)
	v.SetDefault("workflow.levels.high.approvers", []string{"trader", "supervisor", "risk_manager"})
	v.SetDefault("workflow.levels.critical.threshold", 0)
	v.SetDefault("workflow.levels.critical.approvers", []string{"trader", "supervisor", "risk_manager", "director"})

	v.SetDefault("workflow.roles.trader.level", 1)
	v.SetDefault("workflow.roles.trader.required_checks", []string{"trading_limit"})
	v.SetDefault("workflow.roles.supervisor.level", 2)
	v.SetDefault("workflow.roles.supervisor.required_checks", []string{"price_deviation", "credit_limit"})
	v.SetDefault("workflow.roles.risk_manager.level", 3)
	v.SetDefault("workflow.roles.risk_manager.required_checks", []string{"counterparty_risk", "market_risk"})
	v.SetDefault("workflow.roles.director.level", 4)
	v.SetDefault("workflow.roles.director.required_checks", []string{"regulatory_compliance"})

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.dsn", "riskflow.db")

	v.SetDefault("events.kafka.enabled", false)
	v.SetDefault("events.kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("events.kafka.topic", "riskflow.workflow.events")
	v.SetDefault("events.redis.enabled", false)
	v.SetDefault("events.redis.addr", "localhost:6379")
	v.SetDefault("events.redis.channel", "riskflow:workflow:events")
}

// Validate checks structural invariants of the configuration.
func (c *Config) Validate() error {
	if c.Risk.CheckTimeout <= 0 {
		return fmt.Errorf("risk.check_timeout must be positive")
	}
	if c.Risk.MaxPriceDeviation <= c.Risk.WarnPriceDeviation {
		return fmt.Errorf("risk.max_price_deviation must exceed warn_price_deviation")
	}
	return c.Workflow.Validate()
}

// Validate checks that the workflow definition is complete: every risk
// level has a non-empty approver chain and role levels form a strictly
// increasing 1-based sequence with no gaps or duplicates.
func (w WorkflowConfig) Validate() error {
	for _, name := range []string{"low", "medium", "high", "critical"} {
		lp, ok := w.Levels[name]
		if !ok {
			return fmt.Errorf("workflow: missing level %q", name)
		}
		if len(lp.Approvers) == 0 {
			return fmt.Errorf("workflow: level %q has no approvers", name)
		}
		for _, role := range lp.Approvers {
			if _, ok := w.Roles[role]; !ok {
				return fmt.Errorf("workflow: level %q references unknown role %q", name, role)
			}
		}
	}

	positions := make([]int, 0, len(w.Roles))
	for role, rp := range w.Roles {
		if rp.Level < 1 {
			return fmt.Errorf("workflow: role %q has non-positive level %d", role, rp.Level)
		}
		positions = append(positions, rp.Level)
	}
	sort.Ints(positions)
	for i, pos := range positions {
		if pos != i+1 {
			return fmt.Errorf("workflow: role levels must be 1..%d without gaps or duplicates", len(positions))
		}
	}

	return nil
}

// ApproversFor returns the approver chain for a level. The returned
// slice is a copy; callers cannot mutate the configuration.
func (w WorkflowConfig) ApproversFor(level models.RiskLevel) []models.Role {
	lp, ok := w.Levels[level.String()]
	if !ok {
		return nil
	}
	out := make([]models.Role, len(lp.Approvers))
	copy(out, lp.Approvers)
	return out
}

// ChecksFor returns the checks a role re-confirms before approving.
func (w WorkflowConfig) ChecksFor(role models.Role) []string {
	rp, ok := w.Roles[role]
	if !ok {
		return nil
	}
	out := make([]string, len(rp.RequiredChecks))
	copy(out, rp.RequiredChecks)
	return out
}
