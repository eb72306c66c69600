package platform

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/log"
)

// MockSubsystem implements Subsystem without touching audio hardware.
// Players it creates keep their reader so tests can pull the PCM stream.
type MockSubsystem struct {
	mu         sync.Mutex
	ready      bool
	sampleRate int
	channels   int
	players    []*MockPlayer

	// Test helpers
	InitCount int
	QuitCount int
	InitErr   error
}

// NewMockSubsystem returns an uninitialized mock subsystem.
func NewMockSubsystem(opts Options) *MockSubsystem {
	opts = opts.withDefaults()
	return &MockSubsystem{
		sampleRate: opts.SampleRate,
		channels:   opts.ChannelCount,
	}
}

// Init implements Subsystem.
func (m *MockSubsystem) Init() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.InitCount++
	if m.InitErr != nil {
		return m.InitErr
	}
	m.ready = true
	log.Debug("Mock audio device acquired")
	return nil
}

// Quit implements Subsystem. Players still open are closed.
func (m *MockSubsystem) Quit() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.QuitCount++
	for _, p := range m.players {
		_ = p.Close()
	}
	m.players = nil
	m.ready = false
	log.Debug("Mock audio device released")
	return nil
}

// IsReady implements Subsystem.
func (m *MockSubsystem) IsReady() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ready
}

// NewPlayer implements Subsystem.
func (m *MockSubsystem) NewPlayer(r io.Reader) (Player, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.ready {
		return nil, ErrNotReady
	}
	p := &MockPlayer{reader: r, volume: 1}
	m.players = append(m.players, p)
	return p, nil
}

// Players returns the players created since the last Quit.
func (m *MockSubsystem) Players() []*MockPlayer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*MockPlayer(nil), m.players...)
}

// SampleRate implements Subsystem.
func (m *MockSubsystem) SampleRate() int {
	return m.sampleRate
}

// ChannelCount implements Subsystem.
func (m *MockSubsystem) ChannelCount() int {
	return m.channels
}

// MockPlayer records player calls and hands the PCM stream to tests.
type MockPlayer struct {
	mu      sync.Mutex
	reader  io.Reader
	playing bool
	closed  bool
	volume  float64

	PlayCount  int
	PauseCount int
}

// Play implements Player.
func (p *MockPlayer) Play() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playing = true
	p.PlayCount++
}

// Pause implements Player.
func (p *MockPlayer) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playing = false
	p.PauseCount++
}

// IsPlaying implements Player.
func (p *MockPlayer) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

// SetVolume implements Player.
func (p *MockPlayer) SetVolume(volume float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.volume = volume
}

// Volume returns the last volume set.
func (p *MockPlayer) Volume() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

// Close implements Player.
func (p *MockPlayer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playing = false
	p.closed = true
	return nil
}

// Closed reports whether Close was called.
func (p *MockPlayer) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Pull reads n bytes of PCM from the player's source, the way a device
// callback would.
func (p *MockPlayer) Pull(n int) ([]byte, error) {
	p.mu.Lock()
	r, closed := p.reader, p.closed
	p.mu.Unlock()

	if closed {
		return nil, fmt.Errorf("pull from closed player")
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
