package platform

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/log"
)

// Kind selects a subsystem implementation.
type Kind int

const (
	// KindAuto uses oto unless the host has no usable output.
	KindAuto Kind = iota
	// KindOto always uses oto.
	KindOto
	// KindMock never touches hardware.
	KindMock
)

// ParseKind parses a backend name from configuration.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return KindAuto, nil
	case "oto":
		return KindOto, nil
	case "mock":
		return KindMock, nil
	default:
		return 0, fmt.Errorf("unknown audio backend %q (want auto, oto or mock)", s)
	}
}

func (k Kind) String() string {
	switch k {
	case KindAuto:
		return "auto"
	case KindOto:
		return "oto"
	case KindMock:
		return "mock"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// New returns a subsystem of the given kind. KindAuto falls back to the
// mock when Detect finds no usable device.
func New(kind Kind, opts Options) (Subsystem, error) {
	switch kind {
	case KindOto:
		return NewOtoSubsystem(opts), nil
	case KindMock:
		return NewMockSubsystem(opts), nil
	case KindAuto:
		info := Detect()
		if info.ShouldUseMock() {
			log.Info("Using mock audio output", "reason", info.MockReason())
			return NewMockSubsystem(opts), nil
		}
		return &fallback{primary: NewOtoSubsystem(opts), opts: opts}, nil
	default:
		return nil, fmt.Errorf("unknown audio backend: %v", kind)
	}
}

// fallback switches to the mock when the primary subsystem fails to
// initialize.
type fallback struct {
	primary Subsystem
	chosen  Subsystem
	opts    Options
}

func (f *fallback) Init() error {
	if f.chosen != nil {
		return f.chosen.Init()
	}
	if err := f.primary.Init(); err != nil {
		log.Warn("Failed to open audio device, falling back to mock", "error", err)
		f.chosen = NewMockSubsystem(f.opts)
		return f.chosen.Init()
	}
	f.chosen = f.primary
	return nil
}

func (f *fallback) active() Subsystem {
	if f.chosen != nil {
		return f.chosen
	}
	return f.primary
}

func (f *fallback) Quit() error                           { return f.active().Quit() }
func (f *fallback) IsReady() bool                         { return f.active().IsReady() }
func (f *fallback) NewPlayer(r io.Reader) (Player, error) { return f.active().NewPlayer(r) }
func (f *fallback) SampleRate() int                       { return f.active().SampleRate() }
func (f *fallback) ChannelCount() int                     { return f.active().ChannelCount() }

// IsMock reports whether s plays into a mock device, including an Auto
// subsystem that fell back to one.
func IsMock(s Subsystem) bool {
	if f, ok := s.(*fallback); ok {
		s = f.active()
	}
	_, ok := s.(*MockSubsystem)
	return ok
}
