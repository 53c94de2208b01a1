// Package config loads server settings from an optional YAML file with
// environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Server holds transport settings.
type Server struct {
	Port            string   `yaml:"port" env:"PORT"`
	OriginAllowlist []string `yaml:"origin_allowlist" env:"ORIGIN_ALLOWLIST" envSeparator:","`
	LogLevel        string   `yaml:"log_level" env:"LOG_LEVEL"`
}

// Game holds engine timing and sizing.
type Game struct {
	Countdown       int           `yaml:"countdown" env:"SETGAME_COUNTDOWN"`
	Tick            time.Duration `yaml:"tick" env:"SETGAME_TICK"`
	StaleAfter      time.Duration `yaml:"stale_after" env:"SETGAME_STALE_AFTER"`
	SweepInterval   time.Duration `yaml:"sweep_interval" env:"SETGAME_SWEEP_INTERVAL"`
	RecentClaimsCap int           `yaml:"recent_claims" env:"SETGAME_RECENT_CLAIMS"`
	Placements      int           `yaml:"placements" env:"SETGAME_PLACEMENTS"`
}

// Bots configures in-process house players.
type Bots struct {
	Count     int           `yaml:"count" env:"SETGAME_BOTS"`
	Script    string        `yaml:"script" env:"SETGAME_BOT_SCRIPT"`
	ThinkTime time.Duration `yaml:"think_time" env:"SETGAME_BOT_THINK"`
}

// Config is the full server configuration.
type Config struct {
	Server Server `yaml:"server"`
	Game   Game   `yaml:"game"`
	Bots   Bots   `yaml:"bots"`
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		Server: Server{
			Port:     "8080",
			LogLevel: "info",
		},
		Game: Game{
			Countdown:       10,
			Tick:            time.Second,
			StaleAfter:      15 * time.Second,
			SweepInterval:   5 * time.Second,
			RecentClaimsCap: 10,
			Placements:      3,
		},
		Bots: Bots{
			ThinkTime: 4 * time.Second,
		},
	}
}

// Load reads path (if not empty) over the defaults, applies environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if len(cfg.Server.OriginAllowlist) == 0 {
		cfg.Server.OriginAllowlist = []string{
			"http://localhost:" + cfg.Server.Port,
			"http://127.0.0.1:" + cfg.Server.Port,
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port == "" {
		errs = append(errs, errors.New("server.port is required"))
	}
	switch c.Server.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("server.log_level %q must be one of debug, info, warn, error", c.Server.LogLevel))
	}
	if c.Game.Countdown <= 0 {
		errs = append(errs, fmt.Errorf("game.countdown must be positive, got %d", c.Game.Countdown))
	}
	if c.Game.Tick <= 0 {
		errs = append(errs, fmt.Errorf("game.tick must be positive, got %s", c.Game.Tick))
	}
	if c.Game.StaleAfter <= 0 {
		errs = append(errs, fmt.Errorf("game.stale_after must be positive, got %s", c.Game.StaleAfter))
	}
	if c.Game.SweepInterval <= 0 {
		errs = append(errs, fmt.Errorf("game.sweep_interval must be positive, got %s", c.Game.SweepInterval))
	}
	if c.Game.RecentClaimsCap < 1 {
		errs = append(errs, fmt.Errorf("game.recent_claims must be at least 1, got %d", c.Game.RecentClaimsCap))
	}
	if c.Game.Placements < 1 {
		errs = append(errs, fmt.Errorf("game.placements must be at least 1, got %d", c.Game.Placements))
	}
	if c.Bots.Count < 0 {
		errs = append(errs, fmt.Errorf("bots.count must not be negative, got %d", c.Bots.Count))
	}
	if c.Bots.Count > 0 && c.Bots.ThinkTime <= 0 {
		errs = append(errs, fmt.Errorf("bots.think_time must be positive, got %s", c.Bots.ThinkTime))
	}
	return errors.Join(errs...)
}
