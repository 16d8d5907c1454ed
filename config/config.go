package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration for the console.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	LevelDB   LevelDBConfig   `mapstructure:"leveldb"`
	Topology  TopologyConfig  `mapstructure:"topology"`
	Status    StatusConfig    `mapstructure:"status"`
	Services  []ServiceConfig `mapstructure:"services"`
	Selection string          `mapstructure:"selection"` // service selected at startup
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type LogConfig struct {
	AppLogFile string `mapstructure:"app_log_file"` // empty logs to stdout
	Level      string `mapstructure:"level"`
}

type LevelDBConfig struct {
	Path string `mapstructure:"path"`
}

type TopologyConfig struct {
	Strategy     string        `mapstructure:"strategy"` // notify or poll
	Format       string        `mapstructure:"format"`   // flat or nested
	RetryDelay   time.Duration `mapstructure:"retry_delay"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	Debounce     time.Duration `mapstructure:"debounce"`
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
}

type StatusConfig struct {
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
}

// ServiceConfig maps a border router service to the property dump it publishes.
type ServiceConfig struct {
	Name       string `mapstructure:"name"`
	Properties string `mapstructure:"properties"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("leveldb.path", "data/topology")
	v.SetDefault("topology.strategy", "notify")
	v.SetDefault("topology.format", "flat")
	v.SetDefault("topology.retry_delay", time.Second)
	v.SetDefault("topology.poll_interval", time.Second)
	v.SetDefault("topology.debounce", 250*time.Millisecond)
	v.SetDefault("topology.fetch_timeout", 10*time.Second)
	v.SetDefault("status.refresh_interval", 5*time.Second)
}

// Load reads path (YAML) on top of the defaults. WSBR_* environment
// variables override file values, e.g. WSBR_SERVER_PORT.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("wsbr")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values the scheduler or the server can't run with.
func (c *Config) Validate() error {
	switch c.Topology.Strategy {
	case "notify", "poll":
	default:
		return fmt.Errorf("topology.strategy: unknown value %q", c.Topology.Strategy)
	}
	switch c.Topology.Format {
	case "flat", "nested":
	default:
		return fmt.Errorf("topology.format: unknown value %q", c.Topology.Format)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port: %d out of range", c.Server.Port)
	}
	if c.Status.RefreshInterval <= 0 {
		return fmt.Errorf("status.refresh_interval: must be positive")
	}
	seen := make(map[string]bool, len(c.Services))
	for _, s := range c.Services {
		if s.Name == "" || s.Properties == "" {
			return fmt.Errorf("services: name and properties are required")
		}
		if seen[s.Name] {
			return fmt.Errorf("services: duplicate service %q", s.Name)
		}
		seen[s.Name] = true
	}
	if c.Selection != "" && !seen[c.Selection] {
		return fmt.Errorf("selection: service %q is not configured", c.Selection)
	}
	return nil
}

// ServicePaths returns service name → property dump path.
func (c *Config) ServicePaths() map[string]string {
	paths := make(map[string]string, len(c.Services))
	for _, s := range c.Services {
		paths[s.Name] = s.Properties
	}
	return paths
}
