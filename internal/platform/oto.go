//go:build !nocgo
// +build !nocgo

package platform

import (
	"fmt"
	"io"
	"runtime"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ebitengine/oto/v3"
)

// oto allows a single context per process, so every OtoSubsystem shares it.
var sharedContext sharedDevice[*oto.Context]

// OtoSubsystem drives the audio device through oto/v3.
type OtoSubsystem struct {
	opts Options

	mu    sync.Mutex
	ctx   *oto.Context
	ready bool
}

// NewOtoSubsystem returns an uninitialized oto subsystem.
func NewOtoSubsystem(opts Options) *OtoSubsystem {
	opts = opts.withDefaults()
	if opts.BufferSize <= 0 {
		opts.BufferSize = defaultBufferSize()
	}
	return &OtoSubsystem{opts: opts}
}

// defaultBufferSize returns the device buffer length per OS.
func defaultBufferSize() time.Duration {
	switch runtime.GOOS {
	case "darwin":
		// CoreAudio underruns with small buffers.
		return 100 * time.Millisecond
	case "windows":
		return 80 * time.Millisecond
	default:
		return 50 * time.Millisecond
	}
}

// Init creates the oto context on first use and resumes it afterwards.
func (s *OtoSubsystem) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ready {
		return nil
	}

	ctx, format, err := sharedContext.acquire(s.opts, openContext)
	if err != nil {
		return err
	}
	if err := ctx.Resume(); err != nil {
		return fmt.Errorf("failed to resume audio context: %w", err)
	}

	s.opts.SampleRate = format.SampleRate
	s.opts.ChannelCount = format.ChannelCount
	s.ctx = ctx
	s.ready = true
	log.Debug("Audio device acquired",
		"sample_rate", s.opts.SampleRate,
		"channels", s.opts.ChannelCount,
		"buffer_size", s.opts.BufferSize)
	return nil
}

func openContext(opts Options) (*oto.Context, <-chan struct{}, error) {
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   opts.SampleRate,
		ChannelCount: opts.ChannelCount,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   opts.BufferSize,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create audio context: %w", err)
	}
	return ctx, ready, nil
}

// Quit suspends the device. oto contexts cannot be closed, so a later Init
// resumes the same context.
func (s *OtoSubsystem) Quit() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ready {
		return nil
	}
	s.ready = false
	if err := s.ctx.Suspend(); err != nil {
		return fmt.Errorf("failed to suspend audio context: %w", err)
	}
	log.Debug("Audio device released")
	return nil
}

// IsReady implements Subsystem.
func (s *OtoSubsystem) IsReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// NewPlayer implements Subsystem.
func (s *OtoSubsystem) NewPlayer(r io.Reader) (Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ready || s.ctx == nil {
		return nil, ErrNotReady
	}
	return &otoPlayer{player: s.ctx.NewPlayer(r)}, nil
}

// SampleRate implements Subsystem. After Init it is the rate the shared
// context was opened with.
func (s *OtoSubsystem) SampleRate() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opts.SampleRate
}

// ChannelCount implements Subsystem.
func (s *OtoSubsystem) ChannelCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opts.ChannelCount
}

type otoPlayer struct {
	player *oto.Player
}

func (p *otoPlayer) Play()                    { p.player.Play() }
func (p *otoPlayer) Pause()                   { p.player.Pause() }
func (p *otoPlayer) IsPlaying() bool          { return p.player.IsPlaying() }
func (p *otoPlayer) SetVolume(volume float64) { p.player.SetVolume(volume) }
func (p *otoPlayer) Close() error             { return p.player.Close() }
