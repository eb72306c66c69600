package platform

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/charmbracelet/log"
)

// OS identifies the operating system family.
type OS string

const (
	OSLinux   OS = "linux"
	OSDarwin  OS = "darwin"
	OSWindows OS = "windows"
	OSUnknown OS = "unknown"
)

// AudioSystem is the host audio stack the device sits on.
type AudioSystem string

const (
	AudioALSA       AudioSystem = "alsa"
	AudioPulseAudio AudioSystem = "pulseaudio"
	AudioCoreAudio  AudioSystem = "coreaudio"
	AudioWASAPI     AudioSystem = "wasapi"
	AudioNone       AudioSystem = "none"
)

// Info describes what the host offers for audio output.
type Info struct {
	OS             OS
	Audio          AudioSystem
	HasAudioDevice bool
	IsCI           bool
	Details        map[string]string
}

// Detect inspects the host.
func Detect() *Info {
	info := &Info{
		OS:      currentOS(),
		IsCI:    IsCI(),
		Details: make(map[string]string),
	}

	switch info.OS {
	case OSLinux:
		info.Audio = detectLinuxAudio()
		info.HasAudioDevice = checkLinuxAudioDevices()
	case OSDarwin:
		info.Audio = AudioCoreAudio
		info.HasAudioDevice = true
	case OSWindows:
		info.Audio = AudioWASAPI
		info.HasAudioDevice = checkWindowsAudioService()
	default:
		info.Audio = AudioNone
	}

	info.Details["arch"] = runtime.GOARCH
	info.Details["goversion"] = runtime.Version()

	log.Debug("Platform detected",
		"os", info.OS,
		"audio", info.Audio,
		"has_device", info.HasAudioDevice,
		"is_ci", info.IsCI)
	return info
}

// ShouldUseMock reports whether real output is pointless on this host.
func (i *Info) ShouldUseMock() bool {
	return i.IsCI || i.Audio == AudioNone || !i.HasAudioDevice
}

// MockReason explains ShouldUseMock.
func (i *Info) MockReason() string {
	switch {
	case i.IsCI:
		return "CI environment"
	case i.Audio == AudioNone:
		return "no audio subsystem"
	case !i.HasAudioDevice:
		return "no audio devices"
	default:
		return ""
	}
}

func (i *Info) String() string {
	return fmt.Sprintf("%s/%s (device: %t, ci: %t)", i.OS, i.Audio, i.HasAudioDevice, i.IsCI)
}

// IsCI reports whether we run in CI or mock audio was requested.
func IsCI() bool {
	for _, v := range []string{
		"CI",
		"CONTINUOUS_INTEGRATION",
		"GITHUB_ACTIONS",
		"GITLAB_CI",
		"JENKINS_URL",
		"BUILDKITE",
	} {
		if val := os.Getenv(v); val != "" && val != "false" {
			return true
		}
	}
	return os.Getenv("CHIME_MOCK_AUDIO") == "true"
}

func currentOS() OS {
	switch runtime.GOOS {
	case "linux":
		return OSLinux
	case "darwin":
		return OSDarwin
	case "windows":
		return OSWindows
	default:
		return OSUnknown
	}
}

func detectLinuxAudio() AudioSystem {
	if commandAvailable("pactl") {
		if out, err := exec.Command("pactl", "info").Output(); err == nil && strings.Contains(string(out), "Server Name") {
			return AudioPulseAudio
		}
	}
	if _, err := os.Stat("/proc/asound"); err == nil {
		return AudioALSA
	}
	if commandAvailable("aplay") {
		return AudioALSA
	}
	return AudioNone
}

func checkLinuxAudioDevices() bool {
	if entries, err := os.ReadDir("/dev/snd"); err == nil {
		for _, e := range entries {
			if strings.HasPrefix(e.Name(), "pcm") {
				return true
			}
		}
	}

	if content, err := os.ReadFile("/proc/asound/cards"); err == nil {
		if len(content) > 0 && !strings.Contains(string(content), "no soundcards") {
			return true
		}
	}

	if commandAvailable("pactl") {
		if out, err := exec.Command("pactl", "list", "short", "sinks").Output(); err == nil && len(out) > 0 {
			return true
		}
	}
	return false
}

func checkWindowsAudioService() bool {
	if commandAvailable("sc") {
		if out, err := exec.Command("sc", "query", "AudioSrv").Output(); err == nil {
			return strings.Contains(string(out), "RUNNING")
		}
	}
	return true
}

func commandAvailable(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}
