// Package config assembles node configuration from defaults, an optional
// YAML file and the environment. Command-line flags are applied last by the
// cobra commands.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/yaroslav/modekeeper/internal/coordinator"
	"github.com/yaroslav/modekeeper/internal/logging"
	"github.com/yaroslav/modekeeper/internal/storage"
)

// Probe backends.
const (
	ProbeBackendFile   = "file"
	ProbeBackendBadger = "badger"
)

// Config holds everything a node needs to run.
type Config struct {
	Node        NodeConfig        `yaml:"node"`
	Probes      ProbeConfig       `yaml:"probes"`
	Coordinator CoordinatorConfig `yaml:"coordinator"`
	Database    storage.Config    `yaml:"database"`
	Log         LogConfig         `yaml:"log"`
	HTTP        HTTPConfig        `yaml:"http"`

	// CacheTTL is how long settings reads are cached. Zero disables it.
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// NodeConfig identifies this node within the cluster.
type NodeConfig struct {
	// Name is the registry key. Defaults to the host name.
	Name string `yaml:"name"`

	// Order is the failover priority, most preferred first.
	Order []string `yaml:"order"`
}

// ProbeConfig locates the health probes.
type ProbeConfig struct {
	// HealthPath is the local liveness/status file.
	HealthPath string `yaml:"health_path"`

	// VolumePath is the shared-volume status file or directory. Optional.
	VolumePath string `yaml:"volume_path"`

	// Backend is "file" or "badger".
	Backend string `yaml:"backend"`

	// BadgerDir is the badger directory for the badger backend.
	BadgerDir string `yaml:"badger_dir"`
}

// CoordinatorConfig tunes the heartbeat loop.
type CoordinatorConfig struct {
	TickInterval   time.Duration `yaml:"tick_interval"`
	StaleAfter     time.Duration `yaml:"stale_after"`
	StatusInterval time.Duration `yaml:"status_interval"`
}

// LogConfig selects logger level and encoding.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// HTTPConfig configures the status and admin API.
type HTTPConfig struct {
	// ListenAddr is the API address. Empty disables the API.
	ListenAddr string `yaml:"listen_addr"`

	// OperatorTokenHash is the HMAC of the operator token. Empty makes the
	// admin endpoints reject every request.
	OperatorTokenHash string `yaml:"operator_token_hash"`

	// HMACSecret keys OperatorTokenHash.
	HMACSecret string `yaml:"hmac_secret"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Probes: ProbeConfig{
			HealthPath: coordinator.DefaultHeartbeatTarget,
			Backend:    ProbeBackendFile,
			BadgerDir:  "probes",
		},
		Coordinator: CoordinatorConfig{
			TickInterval:   coordinator.DefaultTickInterval,
			StatusInterval: coordinator.DefaultStatusInterval,
		},
		Database: storage.DefaultConfig(),
		Log: LogConfig{
			Level:  "info",
			Format: string(logging.FormatConsole),
		},
		HTTP: HTTPConfig{
			ListenAddr: ":8080",
		},
		CacheTTL: time.Minute,
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty) and then the environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays recognised environment variables.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	var errs []error
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}

	str("CLUSTER_NODE", &c.Node.Name)
	if v, ok := lookup("CLUSTER_NODE_ORDER"); ok && v != "" {
		c.Node.Order = SplitList(v)
	}

	str("HEALTH_PATH", &c.Probes.HealthPath)
	str("VOLUME_PATH", &c.Probes.VolumePath)
	str("PROBE_BACKEND", &c.Probes.Backend)
	str("PROBE_BADGER_DIR", &c.Probes.BadgerDir)

	dur("TICK_INTERVAL", &c.Coordinator.TickInterval)
	dur("STALE_AFTER", &c.Coordinator.StaleAfter)

	str("DB_DRIVER", &c.Database.Driver)
	str("DB_HOST", &c.Database.Host)
	num("DB_PORT", &c.Database.Port)
	str("DB_DATABASE", &c.Database.Database)
	str("DB_USERNAME", &c.Database.Username)
	str("DB_PASSWORD", &c.Database.Password)
	str("DB_DSN", &c.Database.DSN)
	num("POOL_SIZE", &c.Database.PoolSize)
	num("MAX_OVERFLOW", &c.Database.MaxOverflow)
	dur("POOL_RECYCLE", &c.Database.PoolRecycle)

	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	dur("CACHE_TTL", &c.CacheTTL)

	str("LISTEN_ADDR", &c.HTTP.ListenAddr)
	str("OPERATOR_TOKEN_HASH", &c.HTTP.OperatorTokenHash)
	str("HMAC_SECRET", &c.HTTP.HMACSecret)

	return errors.Join(errs...)
}

// Validate fills derived defaults and checks the configuration.
//
// A missing node name falls back to the host name, and to a random UUID
// if the host name is unavailable.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Node.Name) == "" {
		if host, err := os.Hostname(); err == nil && host != "" {
			c.Node.Name = host
		} else {
			c.Node.Name = uuid.New().String()
		}
	}
	c.Node.Name = strings.ToLower(strings.TrimSpace(c.Node.Name))
	if len(c.Node.Name) > 64 {
		return fmt.Errorf("node name %q is longer than 64 characters", c.Node.Name)
	}

	if c.Coordinator.TickInterval <= 0 {
		return fmt.Errorf("tick interval must be positive (got %s)", c.Coordinator.TickInterval)
	}
	if c.Coordinator.StaleAfter < 0 {
		return fmt.Errorf("stale threshold must not be negative (got %s)", c.Coordinator.StaleAfter)
	}
	if c.Coordinator.StaleAfter > 0 && c.Coordinator.StaleAfter < c.Coordinator.TickInterval {
		return fmt.Errorf("stale threshold %s is shorter than the tick interval %s",
			c.Coordinator.StaleAfter, c.Coordinator.TickInterval)
	}

	switch c.Probes.Backend {
	case ProbeBackendFile:
	case ProbeBackendBadger:
		if c.Probes.BadgerDir == "" {
			return errors.New("badger probe backend requires a directory")
		}
	default:
		return fmt.Errorf("unknown probe backend %q", c.Probes.Backend)
	}

	switch c.Database.Driver {
	case storage.DriverMySQL, storage.DriverPostgres, storage.DriverSQLite:
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.Log.Level, err)
	}

	if c.HTTP.OperatorTokenHash != "" && len(c.HTTP.HMACSecret) < 32 {
		return fmt.Errorf("HMAC secret must be at least 32 bytes (got %d)", len(c.HTTP.HMACSecret))
	}

	return nil
}

// ForCoordinator converts the loaded settings for the coordinator.
func (c *Config) ForCoordinator() coordinator.Config {
	return coordinator.Config{
		NodeName:        c.Node.Name,
		NodeOrder:       c.Node.Order,
		TickInterval:    c.Coordinator.TickInterval,
		StaleAfter:      c.Coordinator.StaleAfter,
		StatusInterval:  c.Coordinator.StatusInterval,
		HeartbeatTarget: c.Probes.HealthPath,
	}
}

// EffectiveStaleAfter returns the staleness threshold after defaults.
func (c *Config) EffectiveStaleAfter() time.Duration {
	if c.Coordinator.StaleAfter > 0 {
		return c.Coordinator.StaleAfter
	}
	return coordinator.StaleMultiplier * c.Coordinator.TickInterval
}

// SplitList splits a comma or whitespace separated list and drops blanks.
func SplitList(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		out = append(out, strings.ToLower(f))
	}
	return out
}

// ParseDuration accepts Go duration syntax or a bare number of seconds.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(n * float64(time.Second)), nil
	}
	return time.ParseDuration(s)
}
