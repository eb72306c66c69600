package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/chime/internal/engine"
	"github.com/dgnsrekt/chime/internal/platform"
	"github.com/dgnsrekt/chime/pkg/bridge"
	"github.com/dgnsrekt/chime/pkg/runtimelock"
	"github.com/dgnsrekt/chime/utils"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"
)

var errNoSoundFile = errors.New("not a sound file")

type playOptions struct {
	volume   float64
	parallel bool
	repeat   int
	// rate limits plays per second; 0 means unlimited.
	rate float64
}

var (
	playParallel bool
	playRepeat   int
	playRate     float64
	playWait     time.Duration

	playCmd = &cobra.Command{
		Use:   "play FILE...",
		Short: "Play sound effects",
		Long: paragraph(fmt.Sprintf("\n%s one or more sound effects. Supported formats: %v.",
			keyword("Play"), engine.SupportedExtensions())),
		Example: paragraph("chime play click.wav\nchime play --parallel --volume 0.5 a.wav b.ogg\nchime play --repeat 5 --rate 2 tick.flac"),
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := resolveSoundFiles(args)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			rt := runtimelock.NewRuntime()
			stack, err := newAudioStack(cfg, rt.Lock())
			if err != nil {
				return err
			}
			defer func() {
				if err := stack.Close(); err != nil {
					log.Error("Audio shutdown failed", "error", err)
				}
			}()

			err = runPlay(ctx, stack.bridge, rt, files, playOptions{
				volume:   cfg.Volume,
				parallel: playParallel,
				repeat:   playRepeat,
				rate:     playRate,
			})
			if !platform.IsMock(stack.device) {
				drain(ctx, stack.engine, playWait)
			}
			return err
		},
	}
)

func init() {
	playCmd.Flags().BoolVarP(&playParallel, "parallel", "p", false, "start every file at once instead of one after another")
	playCmd.Flags().IntVarP(&playRepeat, "repeat", "r", 1, "play the list this many times")
	playCmd.Flags().Float64Var(&playRate, "rate", 0, "maximum plays per second (0 for no limit)")
	playCmd.Flags().DurationVar(&playWait, "wait", 30*time.Second, "how long to let sounds finish before exiting")
}

// resolveSoundFiles expands each argument and checks it names a readable
// sound file.
func resolveSoundFiles(args []string) ([]string, error) {
	exts := engine.SupportedExtensions()
	files := make([]string, 0, len(args))
	for _, arg := range args {
		path := utils.ExpandPath(arg)
		if !utils.IsSoundFile(path, exts) {
			return nil, fmt.Errorf("%s: %w (want one of %v)", arg, errNoSoundFile, exts)
		}
		st, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("unable to read sound file: %w", err)
		}
		if st.IsDir() {
			return nil, fmt.Errorf("%s: %w", arg, errNoSoundFile)
		}
		log.Debug("Queued sound", "path", path, "size", humanize.Bytes(uint64(st.Size()))) //nolint:gosec
		files = append(files, path)
	}
	return files, nil
}

// runPlay plays files through b. Every play is a task on rt; in parallel
// mode each file gets its own task, so plays overlap while the bridge has
// the runtime lock suspended.
func runPlay(ctx context.Context, b *bridge.Bridge, rt *runtimelock.Runtime, files []string, opts playOptions) error {
	if opts.repeat < 1 {
		opts.repeat = 1
	}
	limit := rate.Inf
	if opts.rate > 0 {
		limit = rate.Limit(opts.rate)
	}
	limiter := rate.NewLimiter(limit, 1)

	var (
		mu   sync.Mutex
		errs []error
	)
	play := func(path string) {
		// Wait for the limiter without blocking the other tasks.
		resume := runtimelock.Suspend(rt.Lock())
		err := limiter.Wait(ctx)
		resume()
		if err == nil {
			err = b.PlaySound(path, opts.volume)
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		}
	}

	for i := 0; i < opts.repeat; i++ {
		if opts.parallel {
			for _, f := range files {
				rt.Go(func() { play(f) })
			}
			rt.Wait()
		} else {
			rt.Go(func() {
				for _, f := range files {
					if ctx.Err() != nil {
						return
					}
					play(f)
				}
			})
			rt.Wait()
		}
		if ctx.Err() != nil {
			break
		}
	}

	return errors.Join(errs...)
}

// drain waits for the engine to go quiet, at most timeout.
func drain(ctx context.Context, eng *engine.Engine, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for eng.Active() > 0 {
		select {
		case <-ctx.Done():
			log.Debug("Stopped waiting for sounds", "active", eng.Active())
			return
		case <-ticker.C:
		}
	}
}
