// Package bridge exposes a native audio engine's playback primitives to a
// caller that runs under an exclusive-execution lock.
//
// The bridge does no audio work itself. It computes the effective volume of
// each request, suspends the caller's lock around blocking playback calls,
// and forwards everything else to the platform subsystem and the engine.
package bridge

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/chime/pkg/runtimelock"
	"github.com/google/uuid"
)

// DefaultSettleDelay is how long a playback call keeps blocking after the
// engine accepted the sound.
const DefaultSettleDelay = time.Second

// Platform owns the process-wide audio device.
type Platform interface {
	Init() error
	Quit() error
}

// Engine plays, mixes and pauses audio on top of the platform device.
type Engine interface {
	Init() error
	Shutdown() error

	// PlayOnce plays a sound effect a single time.
	PlayOnce(path string, volume float64) error
	// PlayLooped plays music, replacing whatever music is playing.
	PlayLooped(path string, volume float64) error

	PauseAll()
	ResumeAll()

	// MaxVolume is the loudest volume PlayOnce and PlayLooped accept.
	MaxVolume() float64
}

// Request describes one playback call as it crosses the bridge.
type Request struct {
	ID     uuid.UUID
	Path   string
	Scale  float64
	Volume float64
}

// Bridge forwards audio calls from the caller to the engine.
type Bridge struct {
	platform Platform
	engine   Engine

	lock   runtimelock.Locker
	settle time.Duration
	sleep  func(time.Duration)
	logger *log.Logger

	mu          sync.Mutex
	initialized bool
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithLock sets the caller lock released around blocking playback calls.
func WithLock(l runtimelock.Locker) Option {
	return func(b *Bridge) {
		b.lock = l
	}
}

// WithSettleDelay sets how long PlaySound and PlayMusic block after the
// engine call. Zero disables the delay.
func WithSettleDelay(d time.Duration) Option {
	return func(b *Bridge) {
		b.settle = d
	}
}

// WithSleeper replaces time.Sleep for the settle delay.
func WithSleeper(sleep func(time.Duration)) Option {
	return func(b *Bridge) {
		b.sleep = sleep
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(b *Bridge) {
		b.logger = l
	}
}

// New creates a bridge over the given platform subsystem and engine. The
// bridge starts uninitialized.
func New(platform Platform, engine Engine, opts ...Option) *Bridge {
	b := &Bridge{
		platform: platform,
		engine:   engine,
		lock:     runtimelock.Nop{},
		settle:   DefaultSettleDelay,
		sleep:    time.Sleep,
		logger:   log.Default().WithPrefix("bridge"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Init starts the platform audio subsystem, then the engine.
func (b *Bridge) Init() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.initialized {
		return ErrAlreadyInitialized
	}

	if err := b.platform.Init(); err != nil {
		return fmt.Errorf("init platform audio: %w", err)
	}
	if err := b.engine.Init(); err != nil {
		if qerr := b.platform.Quit(); qerr != nil {
			b.logger.Warn("Could not quit platform audio after failed engine init", "error", qerr)
		}
		return fmt.Errorf("init audio engine: %w", err)
	}

	b.initialized = true
	b.logger.Debug("Audio initialized", "settle_delay", b.settle)
	return nil
}

// Shutdown stops the engine, then the platform audio subsystem. Shutting
// down an uninitialized bridge does nothing.
func (b *Bridge) Shutdown() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.initialized {
		b.logger.Debug("Shutdown called before Init, ignoring")
		return nil
	}
	b.initialized = false

	var errs []error
	if err := b.engine.Shutdown(); err != nil {
		errs = append(errs, fmt.Errorf("shutdown audio engine: %w", err))
	}
	if err := b.platform.Quit(); err != nil {
		errs = append(errs, fmt.Errorf("quit platform audio: %w", err))
	}

	b.logger.Debug("Audio shut down")
	return errors.Join(errs...)
}

// Initialized reports whether Init succeeded and Shutdown has not run since.
func (b *Bridge) Initialized() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.initialized
}

// PlaySound plays a one-shot sound effect. The caller lock is released for
// the engine call and the settle delay that follows it.
func (b *Bridge) PlaySound(path string, scale float64) error {
	return b.play("sound", path, scale, b.engine.PlayOnce)
}

// PlayMusic plays looping background music with the same contract as
// PlaySound.
func (b *Bridge) PlayMusic(path string, scale float64) error {
	return b.play("music", path, scale, b.engine.PlayLooped)
}

// Pause pauses all audio. It does not release the caller lock.
func (b *Bridge) Pause() error {
	if !b.Initialized() {
		return ErrNotInitialized
	}
	b.engine.PauseAll()
	return nil
}

// Resume resumes all paused audio. It does not release the caller lock.
func (b *Bridge) Resume() error {
	if !b.Initialized() {
		return ErrNotInitialized
	}
	b.engine.ResumeAll()
	return nil
}

func (b *Bridge) play(kind, path string, scale float64, forward func(string, float64) error) error {
	if !b.Initialized() {
		return ErrNotInitialized
	}

	volume, err := EffectiveVolume(b.engine.MaxVolume(), scale)
	if err != nil {
		return err
	}
	req := Request{ID: uuid.New(), Path: path, Scale: scale, Volume: volume}
	logger := b.logger.With("kind", kind, "request", req.ID, "path", req.Path)

	resume := runtimelock.Suspend(b.lock)
	defer resume()

	logger.Debug("Forwarding playback", "scale", req.Scale, "volume", req.Volume)
	err = forward(req.Path, req.Volume)
	if b.settle > 0 {
		b.sleep(b.settle)
	}

	if err != nil {
		logger.Warn("Playback failed", "error", err)
		return fmt.Errorf("play %s %q: %w", kind, path, err)
	}
	return nil
}
