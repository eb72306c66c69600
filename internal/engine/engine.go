package engine

import (
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/chime/internal/platform"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/patrickmn/go-cache"
)

// MaxVolume is the loudest volume the engine accepts; it plays the source
// at unity gain.
const MaxVolume = 128

// ErrNotStarted is returned by playback calls before Init or after Shutdown.
var ErrNotStarted = errors.New("audio engine is not started")

// Device is the part of the platform subsystem the engine plays through.
type Device interface {
	NewPlayer(r io.Reader) (platform.Player, error)
	SampleRate() int
	ChannelCount() int
}

// Options configures an Engine.
type Options struct {
	// CacheTTL is how long decoded sound effects stay in memory.
	CacheTTL time.Duration
	// ResampleQuality is passed to beep.Resample (1 fastest, 4 good).
	ResampleQuality int
	Logger          *log.Logger
}

// DefaultOptions returns the options used when none are given.
func DefaultOptions() Options {
	return Options{
		CacheTTL:        10 * time.Minute,
		ResampleQuality: 4,
	}
}

// Engine mixes sound effects and a single looping music track.
type Engine struct {
	dev     Device
	opts    Options
	logger  *log.Logger
	effects *cache.Cache

	mu      sync.Mutex
	started bool
	rate    beep.SampleRate
	mixer   *beep.Mixer
	master  *beep.Ctrl
	music   *beep.Ctrl
	track   io.Closer
	player  platform.Player
}

// New creates an engine that will play through dev once started.
func New(dev Device, opts Options) *Engine {
	d := DefaultOptions()
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = d.CacheTTL
	}
	if opts.ResampleQuality <= 0 {
		opts.ResampleQuality = d.ResampleQuality
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default().WithPrefix("engine")
	}
	return &Engine{
		dev:     dev,
		opts:    opts,
		logger:  logger,
		effects: cache.New(opts.CacheTTL, 2*opts.CacheTTL),
	}
}

// MaxVolume implements the bridge engine contract.
func (e *Engine) MaxVolume() float64 {
	return MaxVolume
}

// Init opens a player on the device and starts streaming the master bus.
// The device must already be initialized.
func (e *Engine) Init() error {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return nil
	}
	e.rate = beep.SampleRate(e.dev.SampleRate())
	e.mixer = &beep.Mixer{}
	e.master = &beep.Ctrl{Streamer: e.mixer}
	e.mu.Unlock()

	player, err := e.dev.NewPlayer(&pcmReader{e: e, channels: e.dev.ChannelCount()})
	if err != nil {
		return fmt.Errorf("unable to open audio player: %w", err)
	}
	player.Play()

	e.mu.Lock()
	e.player = player
	e.started = true
	e.mu.Unlock()

	e.logger.Debug("Engine started", "sample_rate", int(e.rate), "channels", e.dev.ChannelCount())
	return nil
}

// Shutdown stops the music, closes the player and drops cached effects.
func (e *Engine) Shutdown() error {
	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return nil
	}
	track := e.stopMusicLocked()
	player := e.player
	e.player = nil
	e.started = false
	e.mixer = nil
	e.master = nil
	e.mu.Unlock()

	// The player's read loop takes e.mu, so close it unlocked.
	var errs []error
	if track != nil {
		if err := track.Close(); err != nil {
			errs = append(errs, fmt.Errorf("unable to close music: %w", err))
		}
	}
	if player != nil {
		player.Pause()
		if err := player.Close(); err != nil {
			errs = append(errs, fmt.Errorf("unable to close player: %w", err))
		}
	}
	e.effects.Flush()

	e.logger.Debug("Engine stopped")
	return errors.Join(errs...)
}

// PlayOnce decodes path (or reuses the cached decode) and plays it once.
func (e *Engine) PlayOnce(path string, volume float64) error {
	if !e.isStarted() {
		return ErrNotStarted
	}

	buf, err := e.loadEffect(path)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.started {
		return ErrNotStarted
	}
	e.mixer.Add(withGain(buf.Streamer(0, buf.Len()), volume))
	e.logger.Debug("Playing effect", "path", path, "volume", volume, "frames", buf.Len())
	return nil
}

// PlayLooped streams path forever, replacing the current music track.
func (e *Engine) PlayLooped(path string, volume float64) error {
	if !e.isStarted() {
		return ErrNotStarted
	}

	stream, format, err := open(path)
	if err != nil {
		return err
	}
	music := &beep.Ctrl{Streamer: withGain(e.resample(format.SampleRate, beep.Loop(-1, stream)), volume)}

	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		_ = stream.Close()
		return ErrNotStarted
	}
	old := e.stopMusicLocked()
	e.music = music
	e.track = stream
	e.mixer.Add(music)
	e.mu.Unlock()

	if old != nil {
		if err := old.Close(); err != nil {
			e.logger.Warn("Unable to close previous music", "error", err)
		}
	}
	e.logger.Debug("Playing music", "path", path, "volume", volume, "sample_rate", int(format.SampleRate))
	return nil
}

// PauseAll silences the whole bus. Playback positions are kept.
func (e *Engine) PauseAll() {
	e.setPaused(true)
}

// ResumeAll undoes PauseAll.
func (e *Engine) ResumeAll() {
	e.setPaused(false)
}

// Paused reports whether the bus is paused.
func (e *Engine) Paused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.master != nil && e.master.Paused
}

// Active returns the number of streams on the bus, music included.
func (e *Engine) Active() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.mixer == nil {
		return 0
	}
	return e.mixer.Len()
}

// CachedEffects returns the number of decoded effects held in memory.
func (e *Engine) CachedEffects() int {
	return e.effects.ItemCount()
}

func (e *Engine) setPaused(paused bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.master == nil {
		return
	}
	e.master.Paused = paused
	e.logger.Debug("Bus pause toggled", "paused", paused)
}

func (e *Engine) isStarted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.started
}

// stream fills samples from the master bus. Called from the player.
func (e *Engine) stream(samples [][2]float64) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.master == nil {
		return 0
	}
	n, _ := e.master.Stream(samples)
	return n
}

// stopMusicLocked detaches the current music from the bus and returns its
// decoder for the caller to close.
func (e *Engine) stopMusicLocked() io.Closer {
	if e.music == nil {
		return nil
	}
	// A Ctrl without a streamer drains, and the mixer drops it.
	e.music.Streamer = nil
	track := e.track
	e.music = nil
	e.track = nil
	return track
}

// loadEffect returns the effect at path decoded into memory at the device
// sample rate.
func (e *Engine) loadEffect(path string) (*beep.Buffer, error) {
	key, err := filepath.Abs(path)
	if err != nil {
		key = path
	}
	if v, ok := e.effects.Get(key); ok {
		return v.(*beep.Buffer), nil
	}

	stream, format, err := open(path)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	buf := beep.NewBuffer(beep.Format{SampleRate: e.rate, NumChannels: 2, Precision: 2})
	buf.Append(e.resample(format.SampleRate, stream))
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("unable to decode %s: %w", filepath.Base(path), err)
	}

	e.effects.Set(key, buf, cache.DefaultExpiration)
	return buf, nil
}

func (e *Engine) resample(from beep.SampleRate, s beep.Streamer) beep.Streamer {
	if from == e.rate {
		return s
	}
	return beep.Resample(e.opts.ResampleQuality, from, e.rate, s)
}

// withGain scales s linearly by volume/MaxVolume.
func withGain(s beep.Streamer, volume float64) beep.Streamer {
	factor := math.Max(0, math.Min(1, volume/MaxVolume))
	return &effects.Gain{Streamer: s, Gain: factor - 1}
}
