// Package config loads cutlist settings from a YAML file, a .env file and the
// environment, in increasing order of precedence.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/forPelevin/cutlist/internal/types"
)

const (
	EnvConfig       = "CUTLIST_CONFIG"
	EnvFFmpeg       = "CUTLIST_FFMPEG"
	EnvFFprobe      = "CUTLIST_FFPROBE"
	EnvLogLevel     = "CUTLIST_LOG_LEVEL"
	EnvLogFormat    = "CUTLIST_LOG_FORMAT"
	EnvBind         = "CUTLIST_BIND"
	EnvPreviewWidth = "CUTLIST_PREVIEW_WIDTH"

	DefaultPath = "cutlist.yaml"
)

type Config struct {
	Tools    ToolsConfig    `yaml:"tools"`
	Profiles types.Profiles `yaml:"profiles"`
	Stream   StreamConfig   `yaml:"stream"`
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
}

type ToolsConfig struct {
	FFmpeg  string `yaml:"ffmpeg"`
	FFprobe string `yaml:"ffprobe"`
	// StderrLines is how many encoder stderr lines are kept for diagnostics.
	StderrLines int `yaml:"stderr_lines"`
}

type StreamConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	PreviewWidth int `yaml:"preview_width"`
}

type ServerConfig struct {
	Bind            string        `yaml:"bind"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// Root, when set, confines request paths to this directory.
	Root string `yaml:"root"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Default() *Config {
	return &Config{
		Tools: ToolsConfig{
			FFmpeg:      "ffmpeg",
			FFprobe:     "ffprobe",
			StderrLines: 100,
		},
		Profiles: types.DefaultProfiles(),
		Stream: StreamConfig{
			ChunkSize:    64 * 1024,
			PreviewWidth: 960,
		},
		Server: ServerConfig{
			Bind:            ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
		Log: LogConfig{Level: "info", Format: "json"},
	}
}

// Load reads the YAML file at path over the defaults. A missing file is not an
// error. Fields left empty in the file keep their default values.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.fillDefaults()
	return cfg, nil
}

// LoadEnv loads .env best-effort, picks the config file from CUTLIST_CONFIG
// (or path when set) and applies environment overrides.
func LoadEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	if path == "" {
		path = GetEnv(EnvConfig, DefaultPath)
	}
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv()
	return cfg, nil
}

// ApplyEnv overrides fields from CUTLIST_* environment variables.
func (c *Config) ApplyEnv() {
	c.Tools.FFmpeg = GetEnv(EnvFFmpeg, c.Tools.FFmpeg)
	c.Tools.FFprobe = GetEnv(EnvFFprobe, c.Tools.FFprobe)
	c.Log.Level = GetEnv(EnvLogLevel, c.Log.Level)
	c.Log.Format = GetEnv(EnvLogFormat, c.Log.Format)
	c.Server.Bind = GetEnv(EnvBind, c.Server.Bind)
	c.Stream.PreviewWidth = GetEnvInt(EnvPreviewWidth, c.Stream.PreviewWidth)
}

func (c *Config) fillDefaults() {
	def := Default()
	if c.Tools.FFmpeg == "" {
		c.Tools.FFmpeg = def.Tools.FFmpeg
	}
	if c.Tools.FFprobe == "" {
		c.Tools.FFprobe = def.Tools.FFprobe
	}
	if c.Tools.StderrLines <= 0 {
		c.Tools.StderrLines = def.Tools.StderrLines
	}
	if c.Profiles.Export == (types.EncodeProfile{}) {
		c.Profiles.Export = def.Profiles.Export
	}
	if c.Profiles.Proxy == (types.EncodeProfile{}) {
		c.Profiles.Proxy = def.Profiles.Proxy
	}
	if c.Profiles.Stream == (types.EncodeProfile{}) {
		c.Profiles.Stream = def.Profiles.Stream
	}
	if c.Stream.ChunkSize <= 0 {
		c.Stream.ChunkSize = def.Stream.ChunkSize
	}
	if c.Stream.PreviewWidth <= 0 {
		c.Stream.PreviewWidth = def.Stream.PreviewWidth
	}
	if c.Server.Bind == "" {
		c.Server.Bind = def.Server.Bind
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = def.Server.ShutdownTimeout
	}
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = def.Log.Format
	}
}

// GetEnv returns the value of the environment variable named by key, or fallback
// if the variable is unset or empty.
func GetEnv(key, fallback string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return fallback
}

// GetEnvInt returns the integer value of the environment variable named by key,
// or fallback if the variable is unset, empty, or not a valid integer.
func GetEnvInt(key string, fallback int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return fallback
}
