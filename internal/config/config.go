// Package config loads chime's settings from the config file, the
// environment and command-line flags.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/chime/internal/platform"
	"github.com/fsnotify/fsnotify"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Name is used for the config file, directories and the env prefix.
const Name = "chime"

var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds every setting read through viper.
type Config struct {
	// Volume is the default volume scale, 0.0 to 1.0.
	Volume float64 `mapstructure:"volume"`
	// SettleDelay is how long a playback call blocks after starting a sound.
	SettleDelay time.Duration `mapstructure:"settle_delay"`
	Audio       AudioConfig   `mapstructure:"audio"`
	Cache       CacheConfig   `mapstructure:"cache"`
}

// AudioConfig configures the output device.
type AudioConfig struct {
	// Backend is auto, oto or mock.
	Backend    string        `mapstructure:"backend"`
	SampleRate int           `mapstructure:"sample_rate"`
	Channels   int           `mapstructure:"channels"`
	Buffer     time.Duration `mapstructure:"buffer"`
}

// CacheConfig configures the decoded sound effect cache.
type CacheConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

// Env holds settings only read from the environment.
type Env struct {
	Debug         bool   `env:"CHIME_DEBUG"`
	LogFile       string `env:"CHIME_LOG_FILE"`
	ConfigHome    string `env:"CHIME_CONFIG_HOME"`
	XDGConfigHome string `env:"XDG_CONFIG_HOME"`
}

// ParseEnv reads Env from the process environment.
func ParseEnv() (Env, error) {
	e, err := env.ParseAs[Env]()
	if err != nil {
		return Env{}, fmt.Errorf("error parsing environment: %w", err)
	}
	return e, nil
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Volume:      1.0,
		SettleDelay: time.Second,
		Audio: AudioConfig{
			Backend:    "auto",
			SampleRate: platform.DefaultSampleRate,
			Channels:   platform.DefaultChannels,
		},
		Cache: CacheConfig{
			TTL: 10 * time.Minute,
		},
	}
}

// SetDefaults registers Default() with v.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("volume", d.Volume)
	v.SetDefault("settle_delay", d.SettleDelay)
	v.SetDefault("audio.backend", d.Audio.Backend)
	v.SetDefault("audio.sample_rate", d.Audio.SampleRate)
	v.SetDefault("audio.channels", d.Audio.Channels)
	v.SetDefault("audio.buffer", d.Audio.Buffer)
	v.SetDefault("cache.ttl", d.Cache.TTL)
}

// Dirs returns the directories searched for the config file, most specific
// first.
func Dirs(e Env) ([]string, error) {
	dirs, err := gap.NewScope(gap.User, Name).ConfigDirs()
	if err != nil {
		return nil, fmt.Errorf("could not find configuration directory: %w", err)
	}
	if e.XDGConfigHome != "" {
		dirs = append([]string{filepath.Join(e.XDGConfigHome, Name)}, dirs...)
	}
	if e.ConfigHome != "" {
		dirs = append([]string{e.ConfigHome}, dirs...)
	}
	return dirs, nil
}

// Setup points v at the config file and environment. A missing file is not
// an error; the returned path is where a default file should be written.
func Setup(v *viper.Viper, e Env) (string, error) {
	dirs, err := Dirs(e)
	if err != nil {
		return "", err
	}
	for _, d := range dirs {
		v.AddConfigPath(d)
	}
	v.SetConfigName(Name)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(Name)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := v.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", used)
		return used, nil
	}
	return filepath.Join(dirs[0], Name+".yml"), nil
}

// Load unmarshals and validates the current settings of v.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unable to decode configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if math.IsNaN(c.Volume) || c.Volume < 0 || c.Volume > 1 {
		return fmt.Errorf("%w: volume must be between 0.0 and 1.0, got %v", ErrInvalidConfig, c.Volume)
	}
	if c.SettleDelay < 0 {
		return fmt.Errorf("%w: settle_delay must not be negative, got %v", ErrInvalidConfig, c.SettleDelay)
	}
	if _, err := platform.ParseKind(c.Audio.Backend); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.Audio.SampleRate < 8000 || c.Audio.SampleRate > 192000 {
		return fmt.Errorf("%w: audio.sample_rate must be between 8000 and 192000, got %d", ErrInvalidConfig, c.Audio.SampleRate)
	}
	if c.Audio.Channels != 1 && c.Audio.Channels != 2 {
		return fmt.Errorf("%w: audio.channels must be 1 or 2, got %d", ErrInvalidConfig, c.Audio.Channels)
	}
	if c.Audio.Buffer < 0 || c.Cache.TTL < 0 {
		return fmt.Errorf("%w: durations must not be negative", ErrInvalidConfig)
	}
	return nil
}

// PlatformOptions converts the audio section for the platform package.
func (c Config) PlatformOptions() platform.Options {
	return platform.Options{
		SampleRate:   c.Audio.SampleRate,
		ChannelCount: c.Audio.Channels,
		BufferSize:   c.Audio.Buffer,
	}
}

// Watch calls onChange with the reloaded settings whenever the config file
// is written. Invalid edits are logged and skipped.
func Watch(v *viper.Viper, onChange func(Config)) {
	v.OnConfigChange(func(ev fsnotify.Event) {
		if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
			return
		}
		cfg, err := Load(v)
		if err != nil {
			log.Warn("Ignoring configuration change", "path", ev.Name, "error", err)
			return
		}
		log.Debug("Configuration reloaded", "path", ev.Name)
		onChange(cfg)
	})
	v.WatchConfig()
}

// file is the on-disk layout of the default config file.
type file struct {
	Volume      float64 `yaml:"volume"`
	SettleDelay string  `yaml:"settle_delay"`
	Audio       struct {
		Backend    string `yaml:"backend"`
		SampleRate int    `yaml:"sample_rate"`
		Channels   int    `yaml:"channels"`
		Buffer     string `yaml:"buffer"`
	} `yaml:"audio"`
	Cache struct {
		TTL string `yaml:"ttl"`
	} `yaml:"cache"`
}

// Marshal renders c as YAML in the config file layout.
func Marshal(c Config) ([]byte, error) {
	var f file
	f.Volume = c.Volume
	f.SettleDelay = c.SettleDelay.String()
	f.Audio.Backend = c.Audio.Backend
	f.Audio.SampleRate = c.Audio.SampleRate
	f.Audio.Channels = c.Audio.Channels
	f.Audio.Buffer = c.Audio.Buffer.String()
	f.Cache.TTL = c.Cache.TTL.String()

	b, err := yaml.Marshal(&f)
	if err != nil {
		return nil, fmt.Errorf("unable to encode configuration: %w", err)
	}
	return append([]byte(header), b...), nil
}

const header = `# chime configuration
# volume: default volume scale (0.0 to 1.0), attenuated by half on playback
# settle_delay: how long play calls block after starting a sound ("0s" disables)
# audio.backend: auto, oto or mock
`

// EnsureFile writes the default config to path unless a file exists.
func EnsureFile(path string) error {
	if ext := filepath.Ext(path); ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("'%s' is not a supported configuration type: use '%s' or '%s'", ext, ".yaml", ".yml")
	}

	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("unable to stat config file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("unable create directory: %w", err)
	}
	b, err := Marshal(Default())
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("unable to write config file: %w", err)
	}
	return nil
}
