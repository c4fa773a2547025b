// Package config loads the prover application configuration from a YAML
// file with environment overrides.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	apisrv "github.com/sib-network/prover-service/server/api"
	"github.com/sib-network/prover-service/x/executor"
	"github.com/sib-network/prover-service/x/ezkl"
	"github.com/sib-network/prover-service/x/proofjob/queue"
	"github.com/sib-network/prover-service/x/proofjob/store"
	"github.com/sib-network/prover-service/x/worker"
)

// Roles the process can run.
const (
	RoleGateway = "gateway"
	RoleWorker  = "worker"
	RoleAll     = "all"
)

// Config holds the complete application configuration
type Config struct {
	Role     string          `mapstructure:"role"     yaml:"role"`
	API      apisrv.Config   `mapstructure:"api"      yaml:"api"`
	Metrics  MetricsConfig   `mapstructure:"metrics"  yaml:"metrics"`
	Log      LogConfig       `mapstructure:"log"      yaml:"log"`
	Queue    queue.Config    `mapstructure:"queue"    yaml:"queue"`
	Store    store.Config    `mapstructure:"store"    yaml:"store"`
	Ezkl     ezkl.Config     `mapstructure:"ezkl"     yaml:"ezkl"`
	Executor executor.Config `mapstructure:"executor" yaml:"executor"`
	Worker   worker.Config   `mapstructure:"worker"   yaml:"worker"`
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled" env:"METRICS_ENABLED"`
	Path    string `mapstructure:"path"    yaml:"path"    env:"METRICS_PATH"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"  env:"LOG_LEVEL"`
	Pretty bool   `mapstructure:"pretty" yaml:"pretty" env:"LOG_PRETTY"`
}

// Load loads configuration from file and environment
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyEnvAliases(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// applyEnvAliases honors the environment names the service has historically
// been deployed with.
func applyEnvAliases(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("CELERY_BROKER")); v != "" {
		cfg.Queue.RedisAddr = stripRedisScheme(v)
	}
	if v := strings.TrimSpace(os.Getenv("CELERY_BACKEND")); v != "" {
		cfg.Store.RedisAddr = stripRedisScheme(v)
	}
	if v := strings.TrimSpace(os.Getenv("EZKL_MODE")); v != "" {
		cfg.Executor.Mode = v
	}
	if v := strings.TrimSpace(os.Getenv("MODEL_DIR")); v != "" {
		cfg.Ezkl.ModelDir = v
	}
}

// stripRedisScheme reduces a redis://host:port/db URL to host:port, keeping
// plain addresses untouched. The db index stays with the per-component
// config.
func stripRedisScheme(addr string) string {
	s := strings.TrimPrefix(addr, "redis://")
	if i := strings.IndexByte(s, '/'); i >= 0 {
		s = s[:i]
	}
	return s
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("role", RoleAll)

	v.SetDefault("api.listen_addr", ":8000")
	v.SetDefault("api.read_header_timeout", "5s")
	v.SetDefault("api.read_timeout", "15s")
	v.SetDefault("api.write_timeout", "30s")
	v.SetDefault("api.idle_timeout", "120s")
	v.SetDefault("api.max_header_bytes", 1048576)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	qd := queue.DefaultConfig()
	v.SetDefault("queue.backend", qd.Backend)
	v.SetDefault("queue.redis_addr", qd.RedisAddr)
	v.SetDefault("queue.redis_password", qd.RedisPassword)
	v.SetDefault("queue.redis_db", qd.RedisDB)
	v.SetDefault("queue.memory_capacity", qd.MemoryCapacity)

	sd := store.DefaultConfig()
	v.SetDefault("store.backend", sd.Backend)
	v.SetDefault("store.options", sd.Options)
	v.SetDefault("store.retention", sd.Retention.String())
	v.SetDefault("store.redis_addr", sd.RedisAddr)
	v.SetDefault("store.redis_password", sd.RedisPassword)
	v.SetDefault("store.redis_db", sd.RedisDB)

	ed := ezkl.DefaultConfig()
	v.SetDefault("ezkl.backend", ed.Backend)
	v.SetDefault("ezkl.model_dir", ed.ModelDir)

	xd := executor.DefaultConfig()
	v.SetDefault("executor.mode", xd.Mode)

	wd := worker.DefaultConfig()
	v.SetDefault("worker.concurrency", wd.Concurrency)
	v.SetDefault("worker.soft_time_limit", wd.SoftTimeLimit.String())
	v.SetDefault("worker.hard_time_limit", wd.HardTimeLimit.String())
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Role {
	case RoleGateway, RoleWorker, RoleAll:
	default:
		return fmt.Errorf("role must be one of %s, %s, %s, got %q", RoleGateway, RoleWorker, RoleAll, c.Role)
	}

	switch c.Executor.Mode {
	case "real", "simulated":
	default:
		return fmt.Errorf("executor.mode must be real or simulated, got %q", c.Executor.Mode)
	}

	if c.API.ListenAddr == "" {
		return fmt.Errorf("api.listen_addr must not be empty")
	}
	if c.Worker.Concurrency <= 0 {
		return fmt.Errorf("worker.concurrency must be positive, got %d", c.Worker.Concurrency)
	}
	if c.Worker.HardTimeLimit > 0 && c.Worker.SoftTimeLimit > c.Worker.HardTimeLimit {
		return fmt.Errorf("worker.soft_time_limit must not exceed worker.hard_time_limit")
	}
	if c.Store.Retention <= 0 {
		return fmt.Errorf("store.retention must be positive")
	}
	return nil
}

// BrokerAddr renders the queue's broker location for the health report.
func (c *Config) BrokerAddr() string {
	if c.Queue.Backend == "memory" {
		return "memory://"
	}
	return fmt.Sprintf("redis://%s/%d", c.Queue.RedisAddr, c.Queue.RedisDB)
}
