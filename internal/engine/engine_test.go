package engine

import (
	"encoding/binary"
	"errors"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/chime/internal/platform"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/wav"
)

const testRate = 44100

// constant returns an endless streamer holding level on both channels.
func constant(level float64) beep.Streamer {
	return beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		for i := range samples {
			samples[i] = [2]float64{level, level}
		}
		return len(samples), true
	})
}

// writeTone writes frames of a constant level to a 16-bit stereo WAV file.
func writeTone(t *testing.T, name string, level float64, frames int, rate beep.SampleRate) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	format := beep.Format{SampleRate: rate, NumChannels: 2, Precision: 2}
	if err := wav.Encode(f, beep.Take(frames, constant(level)), format); err != nil {
		t.Fatalf("wav.Encode() error = %v", err)
	}
	return path
}

// decodePCM16 turns stereo 16-bit PCM back into samples.
func decodePCM16(p []byte) [][2]float64 {
	out := make([][2]float64, len(p)/4)
	for i := range out {
		l := int16(binary.LittleEndian.Uint16(p[i*4:]))
		r := int16(binary.LittleEndian.Uint16(p[i*4+2:]))
		out[i] = [2]float64{float64(l) / math.MaxInt16, float64(r) / math.MaxInt16}
	}
	return out
}

func newTestEngine(t *testing.T) (*Engine, *platform.MockPlayer) {
	t.Helper()
	dev := platform.NewMockSubsystem(platform.Options{SampleRate: testRate, ChannelCount: 2})
	if err := dev.Init(); err != nil {
		t.Fatal(err)
	}
	e := New(dev, Options{Logger: log.New(io.Discard)})
	if err := e.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	t.Cleanup(func() {
		_ = e.Shutdown()
		_ = dev.Quit()
	})

	players := dev.Players()
	if len(players) != 1 {
		t.Fatalf("expected engine to open 1 player, got %d", len(players))
	}
	return e, players[0]
}

func pull(t *testing.T, p *platform.MockPlayer, frames int) [][2]float64 {
	t.Helper()
	b, err := p.Pull(frames * 4)
	if err != nil {
		t.Fatalf("Pull() error = %v", err)
	}
	return decodePCM16(b)
}

func near(a, b float64) bool {
	return math.Abs(a-b) < 0.002
}

func TestInitStartsPlayer(t *testing.T) {
	e, p := newTestEngine(t)

	if !p.IsPlaying() {
		t.Error("engine should start its player")
	}
	if e.MaxVolume() != MaxVolume {
		t.Errorf("MaxVolume() = %v, want %v", e.MaxVolume(), MaxVolume)
	}

	// An idle bus is silent.
	for i, s := range pull(t, p, 256) {
		if s != [2]float64{} {
			t.Fatalf("frame %d = %v, want silence", i, s)
		}
	}
}

func TestPlayBeforeInit(t *testing.T) {
	dev := platform.NewMockSubsystem(platform.Options{})
	e := New(dev, Options{Logger: log.New(io.Discard)})

	if err := e.PlayOnce("click.wav", 64); !errors.Is(err, ErrNotStarted) {
		t.Errorf("PlayOnce() error = %v, want ErrNotStarted", err)
	}
	if err := e.PlayLooped("theme.wav", 64); !errors.Is(err, ErrNotStarted) {
		t.Errorf("PlayLooped() error = %v, want ErrNotStarted", err)
	}
}

func TestInitWithoutDevice(t *testing.T) {
	dev := platform.NewMockSubsystem(platform.Options{})
	e := New(dev, Options{Logger: log.New(io.Discard)})

	if err := e.Init(); !errors.Is(err, platform.ErrNotReady) {
		t.Errorf("Init() error = %v, want ErrNotReady", err)
	}
}

func TestPlayOnceVolume(t *testing.T) {
	tests := []struct {
		name   string
		volume float64
		want   float64
	}{
		{"unity", MaxVolume, 0.5},
		{"half", MaxVolume / 2, 0.25},
		{"bridge half scale", 32, 0.125},
		{"silent", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, p := newTestEngine(t)
			path := writeTone(t, "click.wav", 0.5, 1000, testRate)

			if err := e.PlayOnce(path, tt.volume); err != nil {
				t.Fatalf("PlayOnce() error = %v", err)
			}
			frames := pull(t, p, 500)
			for _, i := range []int{0, 250, 499} {
				if !near(frames[i][0], tt.want) || !near(frames[i][1], tt.want) {
					t.Fatalf("frame %d = %v, want %v", i, frames[i], tt.want)
				}
			}
		})
	}
}

func TestPlayOnceEndsAfterSound(t *testing.T) {
	e, p := newTestEngine(t)
	path := writeTone(t, "click.wav", 0.5, 1000, testRate)

	if err := e.PlayOnce(path, MaxVolume); err != nil {
		t.Fatal(err)
	}
	if e.Active() != 1 {
		t.Errorf("Active() = %d, want 1", e.Active())
	}

	frames := pull(t, p, 1500)
	if !near(frames[999][0], 0.5) {
		t.Errorf("last sound frame = %v, want 0.5", frames[999])
	}
	if frames[1200] != [2]float64{} {
		t.Errorf("frame after sound = %v, want silence", frames[1200])
	}

	pull(t, p, 64)
	if e.Active() != 0 {
		t.Errorf("Active() = %d after the sound ended, want 0", e.Active())
	}
}

func TestPlayOnceOverlaps(t *testing.T) {
	e, p := newTestEngine(t)
	path := writeTone(t, "click.wav", 0.25, 1000, testRate)

	for i := 0; i < 2; i++ {
		if err := e.PlayOnce(path, MaxVolume); err != nil {
			t.Fatal(err)
		}
	}
	frames := pull(t, p, 100)
	if !near(frames[50][0], 0.5) {
		t.Errorf("two overlapping effects = %v, want their sum 0.5", frames[50])
	}
	if e.CachedEffects() != 1 {
		t.Errorf("CachedEffects() = %d, want 1", e.CachedEffects())
	}
}

func TestPlayOnceResamples(t *testing.T) {
	e, p := newTestEngine(t)
	path := writeTone(t, "low.wav", 0.5, 1000, testRate/2)

	if err := e.PlayOnce(path, MaxVolume); err != nil {
		t.Fatal(err)
	}
	frames := pull(t, p, 3000)

	loud := 0
	for _, f := range frames {
		if f[0] > 0.25 {
			loud++
		}
	}
	if loud < 1900 || loud > 2100 {
		t.Errorf("resampled sound lasted %d frames, want about 2000", loud)
	}
}

func TestPlayLoopedLoops(t *testing.T) {
	e, p := newTestEngine(t)
	path := writeTone(t, "theme.wav", 0.5, 100, testRate)

	if err := e.PlayLooped(path, MaxVolume); err != nil {
		t.Fatalf("PlayLooped() error = %v", err)
	}
	for i, f := range pull(t, p, 1000) {
		if !near(f[0], 0.5) {
			t.Fatalf("frame %d = %v, music should loop", i, f)
		}
	}
}

func TestPlayLoopedReplacesMusic(t *testing.T) {
	e, p := newTestEngine(t)
	first := writeTone(t, "first.wav", 0.5, 100, testRate)
	second := writeTone(t, "second.wav", 0.2, 100, testRate)

	if err := e.PlayLooped(first, MaxVolume); err != nil {
		t.Fatal(err)
	}
	pull(t, p, 50)

	if err := e.PlayLooped(second, MaxVolume); err != nil {
		t.Fatal(err)
	}
	frames := pull(t, p, 300)
	if !near(frames[200][0], 0.2) {
		t.Errorf("frame = %v, want only the new track at 0.2", frames[200])
	}
	if e.Active() != 1 {
		t.Errorf("Active() = %d, want 1 music stream", e.Active())
	}
}

func TestPauseResume(t *testing.T) {
	e, p := newTestEngine(t)
	path := writeTone(t, "theme.wav", 0.5, 100, testRate)

	if err := e.PlayLooped(path, MaxVolume); err != nil {
		t.Fatal(err)
	}

	e.PauseAll()
	if !e.Paused() {
		t.Error("Paused() = false after PauseAll")
	}
	for i, f := range pull(t, p, 200) {
		if f != [2]float64{} {
			t.Fatalf("frame %d = %v while paused, want silence", i, f)
		}
	}

	e.ResumeAll()
	if e.Paused() {
		t.Error("Paused() = true after ResumeAll")
	}
	if f := pull(t, p, 10)[5]; !near(f[0], 0.5) {
		t.Errorf("frame after resume = %v, want 0.5", f)
	}
}

func TestPlayErrors(t *testing.T) {
	e, _ := newTestEngine(t)

	if err := e.PlayOnce("notes.txt", MaxVolume); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("PlayOnce(.txt) error = %v, want ErrUnsupportedFormat", err)
	}

	missing := filepath.Join(t.TempDir(), "missing.wav")
	if err := e.PlayOnce(missing, MaxVolume); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("PlayOnce(missing) error = %v, want fs.ErrNotExist", err)
	}
	if err := e.PlayLooped(missing, MaxVolume); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("PlayLooped(missing) error = %v, want fs.ErrNotExist", err)
	}

	garbage := filepath.Join(t.TempDir(), "garbage.wav")
	if err := os.WriteFile(garbage, []byte("not a wav file"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := e.PlayOnce(garbage, MaxVolume); err == nil {
		t.Error("PlayOnce(garbage) should fail to decode")
	}
}

func TestShutdown(t *testing.T) {
	dev := platform.NewMockSubsystem(platform.Options{})
	if err := dev.Init(); err != nil {
		t.Fatal(err)
	}
	e := New(dev, Options{Logger: log.New(io.Discard)})
	if err := e.Init(); err != nil {
		t.Fatal(err)
	}
	path := writeTone(t, "click.wav", 0.5, 100, platform.DefaultSampleRate)
	if err := e.PlayOnce(path, MaxVolume); err != nil {
		t.Fatal(err)
	}

	if err := e.Shutdown(); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if !dev.Players()[0].Closed() {
		t.Error("Shutdown should close the player")
	}
	if e.CachedEffects() != 0 {
		t.Error("Shutdown should drop cached effects")
	}
	if err := e.PlayOnce(path, MaxVolume); !errors.Is(err, ErrNotStarted) {
		t.Errorf("PlayOnce after Shutdown error = %v, want ErrNotStarted", err)
	}
	// Second shutdown is a no-op.
	if err := e.Shutdown(); err != nil {
		t.Errorf("second Shutdown() error = %v", err)
	}
}

func TestSupportedExtensions(t *testing.T) {
	want := []string{".flac", ".mp3", ".ogg", ".wav"}
	got := SupportedExtensions()
	if len(got) != len(want) {
		t.Fatalf("SupportedExtensions() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("SupportedExtensions()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestEncodePCM16Mono(t *testing.T) {
	p := make([]byte, 4)
	encodePCM16(p, [][2]float64{{1, 0}, {-2, -2}}, 1)

	first := int16(binary.LittleEndian.Uint16(p))
	second := int16(binary.LittleEndian.Uint16(p[2:]))
	if first != math.MaxInt16/2 {
		t.Errorf("mono average = %d, want %d", first, math.MaxInt16/2)
	}
	if second != -math.MaxInt16 {
		t.Errorf("clipped sample = %d, want %d", second, -math.MaxInt16)
	}
}

func TestDecodeWAVFullScale(t *testing.T) {
	tests := []struct {
		name      string
		precision int
		tolerance float64
	}{
		{"8-bit", 1, 0.01},
		{"16-bit", 2, 0.002},
		{"24-bit", 3, 0.002},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "tone.wav")
			f, err := os.Create(path)
			if err != nil {
				t.Fatal(err)
			}
			format := beep.Format{SampleRate: testRate, NumChannels: 2, Precision: tt.precision}
			if err := wav.Encode(f, beep.Take(100, constant(0.5)), format); err != nil {
				t.Fatalf("wav.Encode() error = %v", err)
			}
			f.Close()

			stream, _, err := open(path)
			if err != nil {
				t.Fatalf("open() error = %v", err)
			}
			defer stream.Close()

			samples := make([][2]float64, 50)
			if n, _ := stream.Stream(samples); n != 50 {
				t.Fatalf("Stream() = %d samples, want 50", n)
			}
			for i, s := range samples {
				if math.Abs(s[0]-0.5) > tt.tolerance || math.Abs(s[1]-0.5) > tt.tolerance {
					t.Fatalf("sample %d = %v, want 0.5", i, s)
				}
			}
		})
	}
}
