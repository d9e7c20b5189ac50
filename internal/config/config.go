package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// EnvPath names the environment variable that overrides the config path.
const EnvPath = "RSCGO_CONFIG"

// DefaultPath is used when EnvPath is unset.
const DefaultPath = "config/server.toml"

type Config struct {
	Server  ServerConfig  `toml:"server"`
	Network NetworkConfig `toml:"network"`
	World   WorldConfig   `toml:"world"`
	Sync    SyncConfig    `toml:"sync"`
	Metrics MetricsConfig `toml:"metrics"`
	Logging LoggingConfig `toml:"logging"`
}

type ServerConfig struct {
	Name      string `toml:"name"`
	ID        int    `toml:"id"`
	StartTime int64  // set at boot, not from config
}

type NetworkConfig struct {
	BindAddress        string        `toml:"bind_address"`
	InQueueSize        int           `toml:"in_queue_size"`
	OutQueueSize       int           `toml:"out_queue_size"`
	MaxMessageSize     int64         `toml:"max_message_size"`
	MaxMessagesPerTick int           `toml:"max_messages_per_tick"`
	MessagesPerSecond  int           `toml:"messages_per_second"` // 0 = unlimited
	WriteTimeout       time.Duration `toml:"write_timeout"`
}

type WorldConfig struct {
	Width      int32  `toml:"width"`
	Height     int32  `toml:"height"`
	Planes     int16  `toml:"planes"`
	SpawnX     int32  `toml:"spawn_x"`
	SpawnY     int32  `toml:"spawn_y"`
	SpawnPlane int16  `toml:"spawn_plane"`
	SpawnFile  string `toml:"spawn_file"`  // NPC spawn table, YAML; empty = no NPCs
	ScriptsDir string `toml:"scripts_dir"` // Lua scripts; empty = built-in behaviour
}

type SyncConfig struct {
	CellSize   int32         `toml:"cell_size"`
	ViewRange  int32         `toml:"view_range"`
	VisibleCap int           `toml:"visible_cap"`
	TickRate   time.Duration `toml:"tick_rate"`
	TickBudget time.Duration `toml:"tick_budget"`
	Workers    int           `toml:"workers"`
}

type MetricsConfig struct {
	Enabled     bool   `toml:"enabled"`
	BindAddress string `toml:"bind_address"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
}

// Path returns the config path from the environment or the default.
func Path() string {
	if p := os.Getenv(EnvPath); p != "" {
		return p
	}
	return DefaultPath
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes TOML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := defaults()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Server.StartTime = time.Now().Unix()
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}
	check(c.Sync.CellSize > 0, "sync.cell_size must be positive, got %d", c.Sync.CellSize)
	check(c.Sync.ViewRange >= 0, "sync.view_range must not be negative, got %d", c.Sync.ViewRange)
	check(c.Sync.VisibleCap >= 1 && c.Sync.VisibleCap <= 255, "sync.visible_cap must be in 1..255, got %d", c.Sync.VisibleCap)
	check(c.Sync.TickRate > 0, "sync.tick_rate must be positive, got %s", c.Sync.TickRate)
	check(c.Sync.TickBudget > 0, "sync.tick_budget must be positive, got %s", c.Sync.TickBudget)
	check(c.Sync.Workers >= 1, "sync.workers must be at least 1, got %d", c.Sync.Workers)
	check(c.World.Width > 0 && c.World.Height > 0, "world.width and world.height must be positive")
	check(c.World.Planes > 0, "world.planes must be positive, got %d", c.World.Planes)
	check(c.World.SpawnX >= 0 && c.World.SpawnX < c.World.Width &&
		c.World.SpawnY >= 0 && c.World.SpawnY < c.World.Height &&
		c.World.SpawnPlane >= 0 && c.World.SpawnPlane < c.World.Planes,
		"world spawn point (%d,%d) plane %d is outside the world", c.World.SpawnX, c.World.SpawnY, c.World.SpawnPlane)
	check(c.Network.InQueueSize > 0 && c.Network.OutQueueSize > 0, "network queue sizes must be positive")
	check(c.Network.MaxMessagesPerTick > 0, "network.max_messages_per_tick must be positive")
	return errors.Join(errs...)
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Name: "rscgo",
			ID:   1,
		},
		Network: NetworkConfig{
			BindAddress:        "0.0.0.0:43594",
			InQueueSize:        64,
			OutQueueSize:       128,
			MaxMessageSize:     4096,
			MaxMessagesPerTick: 16,
			MessagesPerSecond:  40,
			WriteTimeout:       10 * time.Second,
		},
		World: WorldConfig{
			Width:      944,
			Height:     944,
			Planes:     4,
			SpawnX:     122,
			SpawnY:     657,
			SpawnPlane: 0,
		},
		Sync: SyncConfig{
			CellSize:   64,
			ViewRange:  16,
			VisibleCap: 255,
			TickRate:   640 * time.Millisecond,
			TickBudget: 500 * time.Millisecond,
			Workers:    4,
		},
		Metrics: MetricsConfig{
			Enabled:     true,
			BindAddress: "127.0.0.1:9100",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
