// Package config loads boombox settings from TOML files.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const appName = "boombox"

type Config struct {
	LogLevel  string `koanf:"log_level"`  // "debug", "info", "warn" or "error"
	LogFormat string `koanf:"log_format"` // "auto", "console" or "json"

	User     string `koanf:"user"`     // remembered user for relogin
	Playlist string `koanf:"playlist"` // link of the playlist selected at startup

	LibrarySources []string `koanf:"library_sources"` // paths to scan for music library
	Database       string   `koanf:"database"`        // empty means the XDG data dir

	Control ControlConfig `koanf:"control"`
	Audio   AudioConfig   `koanf:"audio"`
	GPIO    GPIOConfig    `koanf:"gpio"`
	MPRIS   MPRISConfig   `koanf:"mpris"`
	Watch   WatchConfig   `koanf:"watch"`
}

// ControlConfig holds the TCP control server settings.
type ControlConfig struct {
	Addr      string `koanf:"addr"`      // empty disables the server
	Advertise *bool  `koanf:"advertise"` // announce over mDNS (default: true)
}

// AudioConfig holds output settings.
type AudioConfig struct {
	DeviceRate      int `koanf:"device_rate"`      // speaker sample rate (default: 44100)
	BufferMS        int `koanf:"buffer_ms"`        // speaker buffer (default: 100)
	PrebufferSlots  int `koanf:"prebuffer_slots"`  // slots filled before output starts (default: 3)
	ResampleQuality int `koanf:"resample_quality"` // 1-64 (default: 4)
}

// GPIOConfig holds the physical button settings.
type GPIOConfig struct {
	Enabled  *bool  `koanf:"enabled"`  // default: true
	Sysfs    string `koanf:"sysfs"`    // default: /sys/class/gpio
	Platform string `koanf:"platform"` // device that must exist for GPIO to be used
	Pin      string `koanf:"pin"`      // default: 17
}

// MPRISConfig holds the D-Bus media player settings.
type MPRISConfig struct {
	Enabled *bool `koanf:"enabled"` // default: true
}

// WatchConfig holds the library watcher settings.
type WatchConfig struct {
	Enabled *bool `koanf:"enabled"` // default: true
}

// Load reads the default config files followed by extra, later files
// overriding earlier ones. Missing files are skipped.
func Load(extra ...string) (*Config, error) {
	k := koanf.New(".")

	for _, path := range append(getConfigPaths(), extra...) {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
				return nil, err
			}
		}
	}

	cfg := &Config{
		LogLevel:  "info",
		LogFormat: "auto",
		Control:   ControlConfig{Addr: ":1234"},
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}

	for i, src := range cfg.LibrarySources {
		cfg.LibrarySources[i] = expandPath(src)
	}
	if cfg.Database != "" {
		cfg.Database = expandPath(cfg.Database)
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)

	return cfg, nil
}

func getConfigPaths() []string {
	return []string{
		// 1. $XDG_CONFIG_HOME/boombox/config.toml
		filepath.Join(xdg.ConfigHome, appName, "config.toml"),
		// 2. ./config.toml (pwd)
		"config.toml",
	}
}

func expandPath(path string) string {
	if path != "" && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

func enabled(b *bool) bool {
	return b == nil || *b
}

// GetAudioConfig returns the audio configuration with defaults applied.
func (c *Config) GetAudioConfig() AudioConfig {
	cfg := c.Audio
	if cfg.DeviceRate <= 0 {
		cfg.DeviceRate = 44100
	}
	if cfg.BufferMS <= 0 {
		cfg.BufferMS = 100
	}
	if cfg.PrebufferSlots <= 0 {
		cfg.PrebufferSlots = 3
	}
	if cfg.ResampleQuality < 1 || cfg.ResampleQuality > 64 {
		cfg.ResampleQuality = 4
	}
	return cfg
}

// Buffer returns the speaker buffer length.
func (a AudioConfig) Buffer() time.Duration {
	return time.Duration(a.BufferMS) * time.Millisecond
}

// GetGPIOConfig returns the GPIO configuration with defaults applied.
func (c *Config) GetGPIOConfig() GPIOConfig {
	cfg := c.GPIO
	if cfg.Sysfs == "" {
		cfg.Sysfs = "/sys/class/gpio"
	}
	if cfg.Platform == "" {
		cfg.Platform = "/sys/bus/platform/devices/bcm2708_gpio"
	}
	if cfg.Pin == "" {
		cfg.Pin = "17"
	}
	return cfg
}

// GPIOEnabled reports whether the button watcher should run.
func (c *Config) GPIOEnabled() bool { return enabled(c.GPIO.Enabled) }

// AdvertiseEnabled reports whether the control server is announced on the
// local network.
func (c *Config) AdvertiseEnabled() bool { return enabled(c.Control.Advertise) }

// MPRISEnabled reports whether the D-Bus adapter should run.
func (c *Config) MPRISEnabled() bool { return enabled(c.MPRIS.Enabled) }

// WatchEnabled reports whether library sources are watched for new files.
func (c *Config) WatchEnabled() bool { return enabled(c.Watch.Enabled) }
