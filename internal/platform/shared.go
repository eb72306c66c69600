package platform

import (
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// sharedDevice holds a process-wide device handle. The first acquire opens
// it; later ones reuse it in whatever format it was opened with. A handle
// that is still starting up is kept, so a timed out acquire can be retried.
type sharedDevice[T any] struct {
	mu     sync.Mutex
	opened bool
	handle T
	ready  <-chan struct{}
	opts   Options
}

type openFunc[T any] func(Options) (T, <-chan struct{}, error)

// acquire returns the handle and the options it was opened with, waiting
// up to opts.ReadyTimeout for it to become ready.
func (d *sharedDevice[T]) acquire(opts Options, open openFunc[T]) (T, Options, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var zero T
	if !d.opened {
		h, ready, err := open(opts)
		if err != nil {
			return zero, Options{}, err
		}
		d.handle, d.ready, d.opts, d.opened = h, ready, opts, true
	} else if d.opts.SampleRate != opts.SampleRate || d.opts.ChannelCount != opts.ChannelCount {
		log.Warn("Audio context already open with a different format, using it",
			"sample_rate", d.opts.SampleRate,
			"channels", d.opts.ChannelCount)
	}

	select {
	case <-d.ready:
	case <-time.After(opts.ReadyTimeout):
		return zero, Options{}, fmt.Errorf("%w: audio context not ready after %v", ErrNotReady, opts.ReadyTimeout)
	}
	return d.handle, d.opts, nil
}
