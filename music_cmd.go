package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/chime/internal/config"
	"github.com/dgnsrekt/chime/pkg/bridge"
	"github.com/dgnsrekt/chime/pkg/runtimelock"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

type musicEventKind int

const (
	musicToggle musicEventKind = iota
	musicVolume
	musicQuit
)

type musicEvent struct {
	kind   musicEventKind
	volume float64
}

var (
	musicDuration time.Duration

	musicCmd = &cobra.Command{
		Use:   "music FILE",
		Short: "Loop background music",
		Long: paragraph(fmt.Sprintf("\n%s a music file until you quit. Press %s to pause or resume and %s to quit. Saving the config file restarts the track at the new volume.",
			keyword("Loop"), keyword("space"), keyword("q"))),
		Example: paragraph("chime music theme.ogg\nchime music --duration 30s theme.mp3"),
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := resolveSoundFiles(args)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			if musicDuration > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, musicDuration)
				defer cancel()
			}

			lock := runtimelock.New()
			lock.Acquire()
			defer lock.Release()

			stack, err := newAudioStack(cfg, lock)
			if err != nil {
				return err
			}
			defer func() {
				if err := stack.Close(); err != nil {
					log.Error("Audio shutdown failed", "error", err)
				}
			}()

			events := make(chan musicEvent, 8)
			config.Watch(viper.GetViper(), func(c config.Config) {
				select {
				case events <- musicEvent{kind: musicVolume, volume: c.Volume}:
				default:
					log.Warn("Dropped configuration change")
				}
			})

			fd := int(os.Stdin.Fd()) //nolint:gosec
			if musicDuration == 0 && term.IsTerminal(fd) {
				state, err := term.MakeRaw(fd)
				if err != nil {
					return fmt.Errorf("unable to read keyboard: %w", err)
				}
				defer term.Restore(fd, state) //nolint:errcheck
				done := make(chan struct{})
				defer close(done)
				go readKeys(os.Stdin, events, done)
			}

			return runMusic(ctx, stack.bridge, files[0], cfg.Volume, events, cmd.OutOrStdout())
		},
	}
)

func init() {
	musicCmd.Flags().DurationVarP(&musicDuration, "duration", "d", 0, "stop after this long instead of waiting for q")
}

// readKeys turns raw keyboard input into music events until a quit key is
// read, r fails, or done is closed.
func readKeys(r io.Reader, events chan<- musicEvent, done <-chan struct{}) {
	send := func(ev musicEvent) bool {
		select {
		case events <- ev:
			return true
		case <-done:
			return false
		}
	}

	buf := make([]byte, 1)
	for {
		if _, err := r.Read(buf); err != nil {
			return
		}
		switch buf[0] {
		case ' ', 'p':
			if !send(musicEvent{kind: musicToggle}) {
				return
			}
		case 'q', 'Q', 0x03, 0x1b:
			send(musicEvent{kind: musicQuit})
			return
		}
	}
}

// runMusic loops path and handles events until a quit event arrives or ctx
// ends. It must be called with the bridge's lock held; the lock stays with
// this goroutine throughout.
func runMusic(ctx context.Context, b *bridge.Bridge, path string, volume float64, events <-chan musicEvent, out io.Writer) error {
	if err := b.PlayMusic(path, volume); err != nil {
		return err
	}
	status(out, "Playing %s at volume %.2f", keyword(path), volume)

	paused := false
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-events:
			switch ev.kind {
			case musicQuit:
				return nil
			case musicToggle:
				var err error
				if paused {
					err = b.Resume()
				} else {
					err = b.Pause()
				}
				if err != nil {
					return err
				}
				paused = !paused
				if paused {
					status(out, "Paused")
				} else {
					status(out, "Playing")
				}
			case musicVolume:
				if err := b.PlayMusic(path, ev.volume); err != nil {
					log.Warn("Unable to restart music", "error", err)
					continue
				}
				status(out, "Restarted at volume %.2f", ev.volume)
			}
		}
	}
}

// status prints one line; raw terminals need the explicit carriage return.
func status(out io.Writer, format string, args ...any) {
	fmt.Fprintf(out, "%s\r\n", faint(fmt.Sprintf(format, args...)))
}
