package platform

import (
	"errors"
	"io"
	"time"
)

// Output format shared by every subsystem. The engine renders signed 16-bit
// little-endian interleaved frames in this format.
const (
	DefaultSampleRate = 44100
	DefaultChannels   = 2
	BitDepth          = 16
	BytesPerSample    = BitDepth / 8
)

var (
	ErrNotReady     = errors.New("audio subsystem is not initialized")
	ErrNotAvailable = errors.New("audio output not available in this build")
)

// Player streams PCM from a reader to the device.
type Player interface {
	Play()
	Pause()
	IsPlaying() bool
	SetVolume(volume float64)
	Close() error
}

// Subsystem is the platform audio subsystem.
type Subsystem interface {
	// Init acquires the audio device.
	Init() error
	// Quit releases the audio device.
	Quit() error
	// IsReady reports whether Init succeeded and Quit has not run since.
	IsReady() bool

	// NewPlayer creates a player that pulls PCM from r.
	NewPlayer(r io.Reader) (Player, error)

	SampleRate() int
	ChannelCount() int
}

// Options configures a subsystem.
type Options struct {
	SampleRate   int
	ChannelCount int
	// BufferSize is the device buffer length. Zero picks a per-OS default.
	BufferSize time.Duration
	// ReadyTimeout bounds how long Init waits for the device.
	ReadyTimeout time.Duration
}

// DefaultOptions returns the options used when none are given.
func DefaultOptions() Options {
	return Options{
		SampleRate:   DefaultSampleRate,
		ChannelCount: DefaultChannels,
		ReadyTimeout: 5 * time.Second,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.SampleRate <= 0 {
		o.SampleRate = d.SampleRate
	}
	if o.ChannelCount <= 0 {
		o.ChannelCount = d.ChannelCount
	}
	if o.ReadyTimeout <= 0 {
		o.ReadyTimeout = d.ReadyTimeout
	}
	return o
}
