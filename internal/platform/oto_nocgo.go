//go:build nocgo
// +build nocgo

package platform

import (
	"io"
)

// OtoSubsystem stub for builds without cgo.
type OtoSubsystem struct {
	opts Options
}

// NewOtoSubsystem returns a subsystem whose Init always fails.
func NewOtoSubsystem(opts Options) *OtoSubsystem {
	return &OtoSubsystem{opts: opts.withDefaults()}
}

func (s *OtoSubsystem) Init() error { return ErrNotAvailable }

func (s *OtoSubsystem) Quit() error { return nil }

func (s *OtoSubsystem) IsReady() bool { return false }

func (s *OtoSubsystem) NewPlayer(io.Reader) (Player, error) { return nil, ErrNotAvailable }

func (s *OtoSubsystem) SampleRate() int { return s.opts.SampleRate }

func (s *OtoSubsystem) ChannelCount() int { return s.opts.ChannelCount }
