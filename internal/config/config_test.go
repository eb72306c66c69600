package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

// isolateHome points every user config location at a fresh temp dir and
// returns the XDG config home.
func isolateHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	xdg := filepath.Join(home, ".config")
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", xdg)
	t.Setenv("XDG_CONFIG_DIRS", "")
	return xdg
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate() error = %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"volume too high", func(c *Config) { c.Volume = 1.5 }},
		{"volume negative", func(c *Config) { c.Volume = -0.1 }},
		{"negative settle delay", func(c *Config) { c.SettleDelay = -time.Second }},
		{"unknown backend", func(c *Config) { c.Audio.Backend = "sdl" }},
		{"sample rate too low", func(c *Config) { c.Audio.SampleRate = 100 }},
		{"three channels", func(c *Config) { c.Audio.Channels = 3 }},
		{"negative cache ttl", func(c *Config) { c.Cache.TTL = -time.Minute }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(&cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Validate() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg != Default() {
		t.Errorf("Load() = %+v, want %+v", cfg, Default())
	}
}

func TestSetupWritesAndReadsDefaultFile(t *testing.T) {
	isolateHome(t)
	dir := t.TempDir()
	e := Env{ConfigHome: dir}

	path, err := Setup(viper.New(), e)
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if want := filepath.Join(dir, "chime.yml"); path != want {
		t.Fatalf("Setup() path = %q, want %q", path, want)
	}
	if err := EnsureFile(path); err != nil {
		t.Fatalf("EnsureFile() error = %v", err)
	}

	v := viper.New()
	used, err := Setup(v, e)
	if err != nil {
		t.Fatal(err)
	}
	if used != path {
		t.Errorf("config file used = %q, want %q", used, path)
	}
	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg != Default() {
		t.Errorf("default file loaded as %+v, want %+v", cfg, Default())
	}
}

func TestSetupReadsOverrides(t *testing.T) {
	isolateHome(t)
	dir := t.TempDir()
	content := `volume: 0.4
settle_delay: 250ms
audio:
  backend: mock
  sample_rate: 22050
  channels: 1
`
	if err := os.WriteFile(filepath.Join(dir, "chime.yml"), []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CHIME_CACHE_TTL", "30s")

	v := viper.New()
	if _, err := Setup(v, Env{ConfigHome: dir}); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Volume != 0.4 {
		t.Errorf("Volume = %v, want 0.4", cfg.Volume)
	}
	if cfg.SettleDelay != 250*time.Millisecond {
		t.Errorf("SettleDelay = %v, want 250ms", cfg.SettleDelay)
	}
	if cfg.Audio.Backend != "mock" || cfg.Audio.SampleRate != 22050 || cfg.Audio.Channels != 1 {
		t.Errorf("Audio = %+v", cfg.Audio)
	}
	if cfg.Cache.TTL != 30*time.Second {
		t.Errorf("Cache.TTL = %v, want 30s from the environment", cfg.Cache.TTL)
	}

	opts := cfg.PlatformOptions()
	if opts.SampleRate != 22050 || opts.ChannelCount != 1 {
		t.Errorf("PlatformOptions() = %+v", opts)
	}
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	isolateHome(t)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "chime.yml"), []byte("volume: 7\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	v := viper.New()
	if _, err := Setup(v, Env{ConfigHome: dir}); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(v); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Load() error = %v, want ErrInvalidConfig", err)
	}
}

func TestEnsureFile(t *testing.T) {
	dir := t.TempDir()

	if err := EnsureFile(filepath.Join(dir, "chime.toml")); err == nil {
		t.Error("EnsureFile should reject non-yaml extensions")
	}

	path := filepath.Join(dir, "nested", "chime.yaml")
	if err := EnsureFile(path); err != nil {
		t.Fatalf("EnsureFile() error = %v", err)
	}
	if err := os.WriteFile(path, []byte("volume: 0.1\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	// Existing files are left alone.
	if err := EnsureFile(path); err != nil {
		t.Fatal(err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "volume: 0.1\n" {
		t.Errorf("EnsureFile overwrote an existing file: %q", b)
	}
}

func TestDirsOrder(t *testing.T) {
	dirs, err := Dirs(Env{ConfigHome: "/custom", XDGConfigHome: "/xdg"})
	if err != nil {
		t.Fatal(err)
	}
	if len(dirs) < 2 || dirs[0] != "/custom" || dirs[1] != filepath.Join("/xdg", "chime") {
		t.Errorf("Dirs() = %v, want /custom then /xdg/chime first", dirs)
	}
}

func TestParseEnv(t *testing.T) {
	t.Setenv("CHIME_DEBUG", "true")
	t.Setenv("CHIME_LOG_FILE", "/tmp/chime.log")

	e, err := ParseEnv()
	if err != nil {
		t.Fatalf("ParseEnv() error = %v", err)
	}
	if !e.Debug || e.LogFile != "/tmp/chime.log" {
		t.Errorf("ParseEnv() = %+v", e)
	}
}

func TestSetupFallsBackToUserConfigDir(t *testing.T) {
	xdg := isolateHome(t)
	userFile := filepath.Join(xdg, Name, "chime.yml")
	if err := os.MkdirAll(filepath.Dir(userFile), 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(userFile, []byte("volume: 0.3\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	// An empty CHIME_CONFIG_HOME does not hide the user's file.
	v := viper.New()
	used, err := Setup(v, Env{ConfigHome: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	if used != userFile {
		t.Errorf("Setup() path = %q, want %q", used, userFile)
	}

	// A file in CHIME_CONFIG_HOME wins.
	override := t.TempDir()
	if err := EnsureFile(filepath.Join(override, "chime.yml")); err != nil {
		t.Fatal(err)
	}
	used, err = Setup(viper.New(), Env{ConfigHome: override})
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(override, "chime.yml"); used != want {
		t.Errorf("Setup() path = %q, want %q", used, want)
	}
}
