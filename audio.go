package main

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/chime/internal/config"
	"github.com/dgnsrekt/chime/internal/engine"
	"github.com/dgnsrekt/chime/internal/platform"
	"github.com/dgnsrekt/chime/pkg/bridge"
	"github.com/dgnsrekt/chime/pkg/runtimelock"
)

// audioStack is an initialized bridge plus the pieces behind it.
type audioStack struct {
	bridge *bridge.Bridge
	engine *engine.Engine
	device platform.Subsystem
}

// newAudioStack builds and initializes the bridge described by c. lock is
// the caller's runtime lock; nil means the bridge never suspends anything.
func newAudioStack(c config.Config, lock runtimelock.Locker) (*audioStack, error) {
	kind, err := platform.ParseKind(c.Audio.Backend)
	if err != nil {
		return nil, err
	}
	dev, err := platform.New(kind, c.PlatformOptions())
	if err != nil {
		return nil, fmt.Errorf("unable to create audio device: %w", err)
	}

	eng := engine.New(dev, engine.Options{CacheTTL: c.Cache.TTL})

	opts := []bridge.Option{bridge.WithSettleDelay(c.SettleDelay)}
	if lock != nil {
		opts = append(opts, bridge.WithLock(lock))
	}
	b := bridge.New(dev, eng, opts...)
	if err := b.Init(); err != nil {
		return nil, fmt.Errorf("unable to start audio: %w", err)
	}
	log.Debug("Audio started", "backend", kind, "rate", dev.SampleRate(), "channels", dev.ChannelCount())

	return &audioStack{bridge: b, engine: eng, device: dev}, nil
}

func (s *audioStack) Close() error {
	return s.bridge.Shutdown()
}
