// Package config loads the settings shared by the flowgraph commands.
//
// Values are resolved in this order: built-in defaults, the optional YAML
// file, then FLOWGRAPH_* environment variables (a .env file in the working
// directory is loaded first and never overrides the real environment).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/joho/godotenv"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "FLOWGRAPH_"

// Store backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config is the resolved process configuration shared by every command.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Engine EngineConfig `yaml:"engine"`
	Store  StoreConfig  `yaml:"store"`
	Log    LogConfig    `yaml:"log"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// EngineConfig holds run bounds and tool registration settings.
type EngineConfig struct {
	// MaxIterations is the default bound for runs that do not set one.
	MaxIterations int `yaml:"max_iterations"`
	// MaxConcurrentRuns caps background runs (0 = unbounded).
	MaxConcurrentRuns int  `yaml:"max_concurrent_runs"`
	StrictTools       bool `yaml:"strict_tools"`
	// ToolsFile points at a process tools manifest (optional).
	ToolsFile string `yaml:"tools_file"`
}

// StoreConfig selects the run store backend and the middleware wrapped around it.
type StoreConfig struct {
	Backend string      `yaml:"backend"`
	Redis   RedisConfig `yaml:"redis"`
	// EncryptionKey is a base64 AES-256 key; when set, run state and traces are
	// encrypted before they reach the backend.
	EncryptionKey string `yaml:"encryption_key"`
	// EncryptionFallbackKeys are retired base64 keys still accepted when reading runs.
	EncryptionFallbackKeys []string `yaml:"encryption_fallback_keys"`
	// RedactKeys are regular expressions; matching state keys are masked in stored runs.
	RedactKeys []string `yaml:"redact_keys"`
}

// RedisConfig is used when Backend is "redis". A zero TTL keeps runs forever.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Prefix   string        `yaml:"prefix"`
	TTL      time.Duration `yaml:"ttl"`
}

// LogConfig selects the slog level and handler (text or json).
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when nothing else is set.
func Default() Config {
	return Config{
		Server: ServerConfig{Port: 8080},
		Engine: EngineConfig{MaxIterations: 50},
		Store: StoreConfig{
			Backend: BackendMemory,
			Redis:   RedisConfig{Addr: "localhost:6379", Prefix: "flowgraph:run:"},
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load resolves the configuration. An empty path skips the file layer.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := mergo.Merge(&cfg, Default()); err != nil {
		return Config{}, fmt.Errorf("failed to apply defaults: %w", err)
	}
	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// Validate reports settings that cannot work.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	if c.Engine.MaxIterations <= 0 {
		errs = append(errs, fmt.Errorf("engine.max_iterations must be positive, got %d", c.Engine.MaxIterations))
	}
	if c.Engine.MaxConcurrentRuns < 0 {
		errs = append(errs, fmt.Errorf("engine.max_concurrent_runs must not be negative, got %d", c.Engine.MaxConcurrentRuns))
	}
	switch c.Store.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.Store.Redis.Addr == "" {
			errs = append(errs, errors.New("store.redis.addr is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store backend %q", c.Store.Backend))
	}
	if len(c.Store.EncryptionFallbackKeys) > 0 && c.Store.EncryptionKey == "" {
		errs = append(errs, errors.New("store.encryption_fallback_keys requires store.encryption_key"))
	}
	return errors.Join(errs...)
}

type lookupFunc func(key string) (string, bool)

// applyEnv overlays FLOWGRAPH_* variables onto cfg.
func applyEnv(cfg *Config, lookup lookupFunc) error {
	overrides := []struct {
		key   string
		apply func(string) error
	}{
		{"PORT", intSetter(&cfg.Server.Port)},
		{"MAX_ITERATIONS", intSetter(&cfg.Engine.MaxIterations)},
		{"MAX_CONCURRENT_RUNS", intSetter(&cfg.Engine.MaxConcurrentRuns)},
		{"STRICT_TOOLS", func(v string) (err error) {
			cfg.Engine.StrictTools, err = cast.ToBoolE(v)
			return err
		}},
		{"TOOLS_FILE", stringSetter(&cfg.Engine.ToolsFile)},
		{"STORE", stringSetter(&cfg.Store.Backend)},
		{"REDIS_ADDR", stringSetter(&cfg.Store.Redis.Addr)},
		{"REDIS_PASSWORD", stringSetter(&cfg.Store.Redis.Password)},
		{"REDIS_DB", intSetter(&cfg.Store.Redis.DB)},
		{"REDIS_PREFIX", stringSetter(&cfg.Store.Redis.Prefix)},
		{"REDIS_TTL", func(v string) (err error) {
			cfg.Store.Redis.TTL, err = cast.ToDurationE(v)
			return err
		}},
		{"ENCRYPTION_KEY", stringSetter(&cfg.Store.EncryptionKey)},
		{"ENCRYPTION_FALLBACK_KEYS", func(v string) error {
			cfg.Store.EncryptionFallbackKeys = splitList(v)
			return nil
		}},
		{"REDACT_KEYS", func(v string) error {
			cfg.Store.RedactKeys = splitList(v)
			return nil
		}},
		{"LOG_LEVEL", stringSetter(&cfg.Log.Level)},
		{"LOG_FORMAT", stringSetter(&cfg.Log.Format)},
	}

	for _, o := range overrides {
		v, ok := lookup(EnvPrefix + o.key)
		if !ok {
			continue
		}
		if err := o.apply(strings.TrimSpace(v)); err != nil {
			return fmt.Errorf("invalid %s%s: %w", EnvPrefix, o.key, err)
		}
	}
	return nil
}

func intSetter(dst *int) func(string) error {
	return func(v string) (err error) {
		*dst, err = cast.ToIntE(v)
		return err
	}
}

func stringSetter(dst *string) func(string) error {
	return func(v string) error {
		*dst = v
		return nil
	}
}

// splitList parses a comma separated list, dropping blanks.
func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
