// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package config loads authlobby configuration.
//
// Values are layered with koanf, lowest precedence first:
//   - Default()
//   - an optional YAML file
//   - command-line flags the user actually set
package config

import (
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/holomush/authlobby/internal/banner"
	"github.com/holomush/authlobby/internal/bridge"
	"github.com/holomush/authlobby/internal/guard"
	"github.com/holomush/authlobby/internal/host"
	"github.com/holomush/authlobby/internal/language"
	"github.com/holomush/authlobby/internal/lobby"
	"github.com/holomush/authlobby/internal/logging"
)

// ticksPerDay is the length of a Minecraft day.
const ticksPerDay = 24000

// Config is the full authlobby configuration.
type Config struct {
	Log     LogConfig     `koanf:"log"`
	Banners BannersConfig `koanf:"banners"`
	Surface SurfaceConfig `koanf:"surface"`
	Anchor  host.Location `koanf:"anchor"`
	World   WorldConfig   `koanf:"world"`
	Cues    banner.Cues   `koanf:"cues"`
	Bridge  BridgeConfig  `koanf:"bridge"`
	Metrics MetricsConfig `koanf:"metrics"`
}

// LogConfig configures logging.
type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// BannersConfig locates banner assets and the language catalog.
type BannersConfig struct {
	Dir string `koanf:"dir"`
	// Languages is a catalog file; empty means the built-in catalog.
	Languages    string `koanf:"languages"`
	BaseLanguage string `koanf:"base_language"`
}

// SurfaceConfig places the banner wall.
type SurfaceConfig struct {
	Origin         host.BlockPos  `koanf:"origin"`
	Facing         host.BlockFace `koanf:"facing"`
	Columns        int            `koanf:"columns"`
	Rows           int            `koanf:"rows"`
	PixelsPerBlock int            `koanf:"pixels_per_block"`
}

// WorldConfig tunes the frozen world.
type WorldConfig struct {
	Time int64 `koanf:"time"`
}

// BridgeConfig configures the host adapter endpoint.
type BridgeConfig struct {
	Addr        string        `koanf:"addr"`
	Path        string        `koanf:"path"`
	Constraint  string        `koanf:"constraint"`
	CallTimeout time.Duration `koanf:"call_timeout"`
}

// MetricsConfig configures the observability endpoint. Empty Addr disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// Default returns the stock configuration.
func Default() Config {
	return Config{
		Log: LogConfig{Format: "json", Level: "info"},
		Banners: BannersConfig{
			Dir:          "banners",
			BaseLanguage: language.DefaultBase,
		},
		Surface: SurfaceConfig{
			Origin:         banner.DefaultPlacement.Origin,
			Facing:         banner.DefaultPlacement.Facing,
			Columns:        banner.DefaultPlacement.Columns,
			Rows:           banner.DefaultPlacement.Rows,
			PixelsPerBlock: banner.DefaultPixelsPerBlock,
		},
		Anchor: lobby.DefaultAnchor,
		World:  WorldConfig{Time: guard.DefaultTime},
		Cues:   banner.DefaultCues,
		Bridge: BridgeConfig{
			Addr:        "127.0.0.1:7420",
			Path:        "/bridge",
			Constraint:  bridge.DefaultConstraint,
			CallTimeout: bridge.DefaultCallTimeout,
		},
		Metrics: MetricsConfig{Addr: "127.0.0.1:9100"},
	}
}

// flagKeys maps flag names to config keys.
var flagKeys = map[string]string{
	"log-format":   "log.format",
	"log-level":    "log.level",
	"banners-dir":  "banners.dir",
	"languages":    "banners.languages",
	"bridge-addr":  "bridge.addr",
	"metrics-addr": "metrics.addr",
	"world-time":   "world.time",
}

// BindFlags registers the flags Load understands on fs.
func BindFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("log-format", d.Log.Format, "log format (json or text)")
	fs.String("log-level", d.Log.Level, "log level (debug, info, warn or error)")
	fs.String("banners-dir", d.Banners.Dir, "directory holding <lang>-<IMAGE> banner files")
	fs.String("languages", d.Banners.Languages, "language catalog YAML file (default: built-in catalog)")
	fs.String("bridge-addr", d.Bridge.Addr, "host adapter WebSocket listen address")
	fs.String("metrics-addr", d.Metrics.Addr, "metrics/health HTTP address (empty = disabled)")
	fs.Int64("world-time", d.World.Time, "world time in ticks the lobby is frozen at")
}

// Load builds a Config from defaults, the YAML file at path (if not empty)
// and the flags in fs that were set (fs may be nil). The result is validated.
func Load(path string, fs *pflag.FlagSet) (Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, oops.Code("CONFIG_INVALID").With("path", path).Wrapf(err, "load config file")
		}
	}
	if fs != nil {
		provider := posflag.ProviderWithFlag(fs, ".", k, func(f *pflag.Flag) (string, interface{}) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(fs, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return Config{}, oops.Code("CONFIG_INVALID").Wrapf(err, "load flags")
		}
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return Config{}, oops.Code("CONFIG_INVALID").With("path", path).Wrapf(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func invalid(field string, value any, format string, args ...any) error {
	return oops.Code("CONFIG_INVALID").
		With("field", field).
		With("value", value).
		Errorf(format, args...)
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return invalid("log.format", c.Log.Format, "log.format must be 'json' or 'text', got %q", c.Log.Format)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return invalid("log.level", c.Log.Level, "log.level must be debug, info, warn or error")
	}
	if strings.TrimSpace(c.Banners.Dir) == "" {
		return invalid("banners.dir", c.Banners.Dir, "banners.dir is required")
	}
	switch c.Surface.Facing {
	case host.FaceNorth, host.FaceSouth, host.FaceEast, host.FaceWest:
	default:
		return invalid("surface.facing", c.Surface.Facing, "surface.facing must be NORTH, SOUTH, EAST or WEST")
	}
	if c.Surface.Columns <= 0 || c.Surface.Rows <= 0 {
		return invalid("surface", c.Surface, "surface.columns and surface.rows must be positive")
	}
	if c.Surface.PixelsPerBlock <= 0 {
		return invalid("surface.pixels_per_block", c.Surface.PixelsPerBlock, "surface.pixels_per_block must be positive")
	}
	if c.World.Time < 0 || c.World.Time >= ticksPerDay {
		return invalid("world.time", c.World.Time, "world.time must be in [0, %d)", ticksPerDay)
	}
	if c.Cues.Positive.Sound == "" || c.Cues.Negative.Sound == "" {
		return invalid("cues", c.Cues, "cue sounds are required")
	}
	if c.Bridge.Addr == "" {
		return invalid("bridge.addr", c.Bridge.Addr, "bridge.addr is required")
	}
	if !strings.HasPrefix(c.Bridge.Path, "/") {
		return invalid("bridge.path", c.Bridge.Path, "bridge.path must start with '/'")
	}
	if _, err := semver.NewConstraint(c.Bridge.Constraint); err != nil {
		return oops.Code("CONFIG_INVALID").
			With("field", "bridge.constraint").
			With("value", c.Bridge.Constraint).
			Wrapf(err, "bridge.constraint is not a semver constraint")
	}
	if c.Bridge.CallTimeout <= 0 {
		return invalid("bridge.call_timeout", c.Bridge.CallTimeout.String(), "bridge.call_timeout must be positive")
	}
	return nil
}

// Lobby returns the lobby geometry and tuning.
func (c Config) Lobby() lobby.Config {
	return lobby.Config{
		Placement: host.SurfacePlacement{
			Origin:  c.Surface.Origin,
			Facing:  c.Surface.Facing,
			Columns: c.Surface.Columns,
			Rows:    c.Surface.Rows,
		},
		PixelsPerBlock: c.Surface.PixelsPerBlock,
		Anchor:         c.Anchor,
		WorldTime:      c.World.Time,
		Cues:           c.Cues,
	}
}

// Catalog loads the configured language catalog.
func (c Config) Catalog() (*language.Catalog, error) {
	catalog := language.Default()
	if c.Banners.Languages != "" {
		var err error
		if catalog, err = language.LoadCatalog(c.Banners.Languages); err != nil {
			return nil, err
		}
	}
	if c.Banners.BaseLanguage != "" && c.Banners.BaseLanguage != catalog.Base() {
		return nil, oops.Code("CONFIG_INVALID").
			With("field", "banners.base_language").
			With("value", c.Banners.BaseLanguage).
			With("catalog_base", catalog.Base()).
			Errorf("banners.base_language %q does not match the catalog base %q", c.Banners.BaseLanguage, catalog.Base())
	}
	return catalog, nil
}
