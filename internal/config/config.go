// Package config loads the jtlab TOML configuration.
//
// Every key has a default, so an empty or missing file is a valid
// configuration. The environment variables PORT, BASE_URL and REDIS_ADDR
// override the file.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"

	"jtlab/internal/choreo"
	"jtlab/internal/sequence"
	"jtlab/internal/theme"
	"jtlab/pkg/realtime"
)

// Theme backends.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
)

type Config struct {
	Server Server `toml:"server"`
	Log    Log    `toml:"log"`
	Theme  Theme  `toml:"theme"`
	Intro  Intro  `toml:"intro"`
}

type Server struct {
	Addr      string `toml:"addr"`
	BaseURL   string `toml:"base_url"`
	FrameRate int    `toml:"frame_rate"`
}

type Log struct {
	Level string `toml:"level"`
}

type Theme struct {
	Backend     string `toml:"backend"`
	Dir         string `toml:"dir"`
	RedisAddr   string `toml:"redis_addr"`
	RedisPrefix string `toml:"redis_prefix"`
}

type Intro struct {
	Name      string `toml:"name"`
	Logo      string `toml:"logo"`
	LabelFrom string `toml:"label_from"`
	LabelTo   string `toml:"label_to"`
	// Timeline is an optional path to a YAML sequence file.
	Timeline string `toml:"timeline"`
}

// Default returns the built-in configuration.
func Default() Config {
	intro := choreo.DefaultConfig()
	return Config{
		Server: Server{Addr: ":8080", FrameRate: realtime.DefaultFrameRate},
		Log:    Log{Level: "info"},
		Theme:  Theme{Backend: BackendMemory, Dir: "data/theme", RedisPrefix: "jtlab:"},
		Intro: Intro{
			Name:      intro.Name,
			Logo:      intro.Logo,
			LabelFrom: intro.LabelFrom,
			LabelTo:   intro.LabelTo,
		},
	}
}

// Load reads path over the defaults, applies the environment and validates.
// An empty path or a missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		_, err := toml.DecodeFile(path, &cfg)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	cfg.ApplyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse decodes TOML text over the defaults without touching the environment.
func Parse(text string) (Config, error) {
	cfg := Default()
	if _, err := toml.Decode(text, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// ApplyEnv overrides fields from the environment.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if port := strings.TrimSpace(getenv("PORT")); port != "" {
		c.Server.Addr = ":" + port
	}
	if base := strings.TrimSpace(getenv("BASE_URL")); base != "" {
		c.Server.BaseURL = strings.TrimRight(base, "/")
	}
	if addr := strings.TrimSpace(getenv("REDIS_ADDR")); addr != "" {
		c.Theme.RedisAddr = addr
		c.Theme.Backend = BackendRedis
	}
}

func (c Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("server.addr is required")
	}
	_, port, err := net.SplitHostPort(c.Server.Addr)
	if err != nil {
		return fmt.Errorf("server.addr: %w", err)
	}
	if n, err := strconv.Atoi(port); err != nil || n < 0 || n > 65535 {
		return fmt.Errorf("server.addr %q: invalid port", c.Server.Addr)
	}
	if c.Server.FrameRate <= 0 || c.Server.FrameRate > 240 {
		return fmt.Errorf("server.frame_rate %d out of range", c.Server.FrameRate)
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch c.Theme.Backend {
	case BackendMemory:
	case BackendFile:
		if c.Theme.Dir == "" {
			return errors.New("theme.dir is required for the file backend")
		}
	case BackendRedis:
		if c.Theme.RedisAddr == "" {
			return errors.New("theme.redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown theme backend %q", c.Theme.Backend)
	}
	if c.Intro.Name == "" || c.Intro.Logo == "" {
		return errors.New("intro.name and intro.logo are required")
	}
	return nil
}

// LogLevel returns the parsed log level.
func (c Config) LogLevel() log.Level {
	level, err := log.ParseLevel(c.Log.Level)
	if err != nil {
		return log.InfoLevel
	}
	return level
}

// NewLogger builds the process logger at the configured level; verbose
// forces debug.
func (c Config) NewLogger(w io.Writer, verbose bool) *log.Logger {
	level := c.LogLevel()
	if verbose {
		level = log.DebugLevel
	}
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// Choreography builds the controller configuration, reading the timeline
// file when one is set.
func (c Config) Choreography() (choreo.Config, error) {
	out := choreo.DefaultConfig()
	out.Name = c.Intro.Name
	out.Logo = c.Intro.Logo
	out.LabelFrom = c.Intro.LabelFrom
	out.LabelTo = c.Intro.LabelTo
	if c.Intro.Timeline != "" {
		tl, err := sequence.Read(c.Intro.Timeline)
		if err != nil {
			return choreo.Config{}, fmt.Errorf("intro.timeline: %w", err)
		}
		out.Timeline = tl
	}
	return out, nil
}

// ThemeProvider opens the configured preference backend. The returned close
// function releases it.
func (c Config) ThemeProvider() (theme.Provider, func() error, error) {
	switch c.Theme.Backend {
	case BackendFile:
		return theme.NewFileProvider(c.Theme.Dir), noClose, nil
	case BackendRedis:
		client := redis.NewClient(&redis.Options{Addr: c.Theme.RedisAddr})
		p := theme.NewRedisProvider(client, c.Theme.RedisPrefix)
		return p, p.Close, nil
	case BackendMemory:
		return theme.NewMemoryProvider(), noClose, nil
	}
	return nil, nil, fmt.Errorf("unknown theme backend %q", c.Theme.Backend)
}

func noClose() error { return nil }
