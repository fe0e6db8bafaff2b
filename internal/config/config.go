package config

import (
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/loykin/botvisor/internal/env"
	"github.com/loykin/botvisor/internal/logger"
	"github.com/loykin/botvisor/internal/process"
)

// EnvPrefix prefixes environment overrides, e.g. BOTVISOR_SERVER_PORT.
const EnvPrefix = "BOTVISOR"

const (
	EngineGin  = "gin"
	EngineEcho = "echo"
)

// Config represents the top-level TOML structure.
type Config struct {
	Bot     BotConfig     `toml:"bot" mapstructure:"bot"`
	Server  ServerConfig  `toml:"server" mapstructure:"server"`
	Log     LogConfig     `toml:"log" mapstructure:"log"`
	Metrics MetricsConfig `toml:"metrics" mapstructure:"metrics"`
	History HistoryConfig `toml:"history" mapstructure:"history"`

	dir string // directory of the loaded file; relative paths resolve against it
}

type BotConfig struct {
	Name         string        `toml:"name" mapstructure:"name"`
	Command      []string      `toml:"command" mapstructure:"command"`
	WorkDir      string        `toml:"work_dir" mapstructure:"work_dir"`
	Env          []string      `toml:"env" mapstructure:"env"`
	EnvFiles     []string      `toml:"env_files" mapstructure:"env_files"`
	UseOSEnv     bool          `toml:"use_os_env" mapstructure:"use_os_env"`
	RestartDelay time.Duration `toml:"restart_delay" mapstructure:"restart_delay"`
	StopTimeout  time.Duration `toml:"stop_timeout" mapstructure:"stop_timeout"`
	StopOnExit   bool          `toml:"stop_on_exit" mapstructure:"stop_on_exit"`
}

type ServerConfig struct {
	Host     string `toml:"host" mapstructure:"host"`
	Port     int    `toml:"port" mapstructure:"port"`
	BasePath string `toml:"base_path" mapstructure:"base_path"`
	Engine   string `toml:"engine" mapstructure:"engine"`
}

type LogConfig struct {
	Level      string `toml:"level" mapstructure:"level"`
	Format     string `toml:"format" mapstructure:"format"`
	Color      bool   `toml:"color" mapstructure:"color"`
	TimeStamps bool   `toml:"timestamps" mapstructure:"timestamps"`
	Source     bool   `toml:"source" mapstructure:"source"`
	File       string `toml:"file" mapstructure:"file"`
	MaxSizeMB  int    `toml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool   `toml:"compress" mapstructure:"compress"`
}

type MetricsConfig struct {
	Enabled bool   `toml:"enabled" mapstructure:"enabled"`
	Listen  string `toml:"listen" mapstructure:"listen"`
}

// HistoryConfig selects the lifecycle event sink; an empty DSN disables it.
type HistoryConfig struct {
	DSN string `toml:"dsn" mapstructure:"dsn"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("bot.name", "bot")
	v.SetDefault("bot.command", []string{"node", "index.js"})
	v.SetDefault("bot.work_dir", "")
	v.SetDefault("bot.env", []string{})
	v.SetDefault("bot.env_files", []string{})
	v.SetDefault("bot.use_os_env", true)
	v.SetDefault("bot.restart_delay", 2*time.Second)
	v.SetDefault("bot.stop_timeout", 10*time.Second)
	v.SetDefault("bot.stop_on_exit", false)

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.base_path", "")
	v.SetDefault("server.engine", EngineGin)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.color", false)
	v.SetDefault("log.timestamps", true)
	v.SetDefault("log.source", false)
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", logger.DefaultMaxSizeMB)
	v.SetDefault("log.max_backups", logger.DefaultMaxBackups)
	v.SetDefault("log.max_age_days", logger.DefaultMaxAgeDays)
	v.SetDefault("log.compress", false)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listen", ":9090")

	v.SetDefault("history.dsn", "")
}

// Load reads the optional TOML file at path and applies BOTVISOR_* overrides.
// PORT is honoured for server.port when BOTVISOR_SERVER_PORT is unset.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("server.port", EnvPrefix+"_SERVER_PORT", "PORT"); err != nil {
		return nil, err
	}

	var dir string
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		dir = filepath.Dir(path)
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	// accepts a TOML array or a whitespace separated string (env overrides)
	c.Bot.Command = v.GetStringSlice("bot.command")
	c.Bot.Env = v.GetStringSlice("bot.env")
	c.Bot.EnvFiles = v.GetStringSlice("bot.env_files")
	c.dir = dir
	return &c, nil
}

// Validate checks the loaded configuration.
func (c *Config) Validate() error {
	var errs []error
	if len(c.Bot.Command) == 0 || strings.TrimSpace(c.Bot.Command[0]) == "" {
		errs = append(errs, errors.New("bot.command must not be empty"))
	}
	if c.Bot.RestartDelay < 0 {
		errs = append(errs, fmt.Errorf("bot.restart_delay must be >= 0, got %s", c.Bot.RestartDelay))
	}
	if c.Bot.StopTimeout < 0 {
		errs = append(errs, fmt.Errorf("bot.stop_timeout must be >= 0, got %s", c.Bot.StopTimeout))
	}
	for i, kv := range c.Bot.Env {
		if strings.IndexByte(kv, '=') <= 0 {
			errs = append(errs, fmt.Errorf("bot.env[%d] %q is invalid, must be in KEY=VALUE format", i, kv))
		}
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	switch c.Server.Engine {
	case EngineGin, EngineEcho:
	default:
		errs = append(errs, fmt.Errorf("server.engine must be %q or %q, got %q", EngineGin, EngineEcho, c.Server.Engine))
	}
	if c.Server.BasePath != "" && !strings.HasPrefix(c.Server.BasePath, "/") {
		errs = append(errs, fmt.Errorf("server.base_path must start with '/', got %q", c.Server.BasePath))
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	switch logger.Format(c.Log.Format) {
	case logger.FormatText, logger.FormatJSON:
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	if c.Metrics.Enabled {
		if err := validateListen(c.Metrics.Listen); err != nil {
			errs = append(errs, fmt.Errorf("metrics.listen: %w", err))
		}
	}
	return errors.Join(errs...)
}

// validateListen accepts host:port with an optional host and a numeric port.
func validateListen(addr string) error {
	if addr == "" {
		return errors.New("required when metrics are enabled")
	}
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}
	n, err := strconv.Atoi(port)
	if err != nil || n < 0 || n > 65535 {
		return fmt.Errorf("port out of range: %q", port)
	}
	return nil
}

// Addr is the HTTP listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// BotEnv composes the bot environment: the controller's environment when
// use_os_env is set, then env_files in order, then bot.env.
func (c *Config) BotEnv() ([]string, error) {
	e := env.New(c.Bot.UseOSEnv)
	for _, p := range c.Bot.EnvFiles {
		if err := e.LoadFile(c.resolve(p)); err != nil {
			return nil, fmt.Errorf("env file %s: %w", p, err)
		}
	}
	e.SetPairs(c.Bot.Env)
	return e.Merge(), nil
}

// ProcessSpec builds the launch spec for the bot.
func (c *Config) ProcessSpec() (process.Spec, error) {
	vars, err := c.BotEnv()
	if err != nil {
		return process.Spec{}, err
	}
	spec := process.Spec{
		Name:    c.Bot.Name,
		Command: append([]string(nil), c.Bot.Command...),
		Env:     vars,
	}
	if c.Bot.WorkDir != "" {
		spec.WorkDir = c.resolve(c.Bot.WorkDir)
	}
	return spec, nil
}

// LoggerConfig maps the [log] table onto the logger package.
func (c *Config) LoggerConfig() logger.Config {
	return logger.Config{
		Slog: logger.SlogConfig{
			Level:      logger.Level(strings.ToLower(c.Log.Level)),
			Format:     logger.Format(c.Log.Format),
			Color:      c.Log.Color,
			TimeStamps: c.Log.TimeStamps,
			Source:     c.Log.Source,
		},
		File: logger.FileConfig{
			Path:       c.resolve(c.Log.File),
			MaxSizeMB:  c.Log.MaxSizeMB,
			MaxBackups: c.Log.MaxBackups,
			MaxAgeDays: c.Log.MaxAgeDays,
			Compress:   c.Log.Compress,
		},
	}
}

func (c *Config) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) || c.dir == "" {
		return p
	}
	return filepath.Join(c.dir, p)
}
