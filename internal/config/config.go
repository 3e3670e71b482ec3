// Package config resolves runtime configuration from an optional YAML
// file and VOICECAP_-prefixed environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Config stores the assembled runtime configuration.
type Config struct {
	Backend BackendConfig `mapstructure:"backend"`
	Audio   AudioConfig   `mapstructure:"audio"`
	Session SessionConfig `mapstructure:"session"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// BackendConfig holds the control-channel resolution inputs.
type BackendConfig struct {
	URL          string   `mapstructure:"url"`
	DemoHostname string   `mapstructure:"demo_hostname"`
	LocalHosts   []string `mapstructure:"local_hosts"`
	LocalBackend string   `mapstructure:"local_backend"`

	// Hostname/Port/Secure describe where this instance runs, the
	// analogue of the page location in the embedded setting.
	Hostname string `mapstructure:"hostname"`
	Port     string `mapstructure:"port"`
	Secure   bool   `mapstructure:"secure"`
}

type AudioConfig struct {
	RecorderCommand string `mapstructure:"recorder_command"`
	InputFormat     string `mapstructure:"input_format"`
	InputDevice     string `mapstructure:"input_device"`
	SampleRate      int    `mapstructure:"sample_rate"`
	Channels        int    `mapstructure:"channels"`
	Denoise         bool   `mapstructure:"denoise"`
}

type SessionConfig struct {
	ChunkInterval time.Duration `mapstructure:"chunk_interval"`
	MeterInterval time.Duration `mapstructure:"meter_interval"`
	ReadSize      int           `mapstructure:"read_size"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration, layering defaults, the optional file at
// path, and environment variables (VOICECAP_BACKEND_URL and friends).
func Load(path string) (Config, error) {
	v := viper.New()

	v.SetDefault("backend.url", "")
	v.SetDefault("backend.demo_hostname", "demo.voicecap.app")
	v.SetDefault("backend.local_hosts", []string{"localhost", "127.0.0.1"})
	v.SetDefault("backend.local_backend", "localhost:8000")
	v.SetDefault("backend.hostname", "localhost")
	v.SetDefault("backend.port", "")
	v.SetDefault("backend.secure", false)
	v.SetDefault("audio.recorder_command", "ffmpeg")
	v.SetDefault("audio.input_format", "pulse")
	v.SetDefault("audio.input_device", "default")
	v.SetDefault("audio.sample_rate", 16000)
	v.SetDefault("audio.channels", 1)
	v.SetDefault("audio.denoise", true)
	v.SetDefault("session.chunk_interval", "1s")
	v.SetDefault("session.meter_interval", "33ms")
	v.SetDefault("session.read_size", 4096)
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", ":9101")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	v.SetEnvPrefix("VOICECAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = 16000
	}
	if cfg.Audio.Channels <= 0 {
		cfg.Audio.Channels = 1
	}
	if cfg.Session.ChunkInterval <= 0 {
		cfg.Session.ChunkInterval = time.Second
	}
	if cfg.Session.MeterInterval <= 0 {
		cfg.Session.MeterInterval = 33 * time.Millisecond
	}
	if cfg.Session.ReadSize < 256 {
		cfg.Session.ReadSize = 4096
	}

	return cfg, nil
}
