package audio

import (
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// Platform is the operating system family.
type Platform string

const (
	PlatformLinux   Platform = "linux"
	PlatformDarwin  Platform = "darwin"
	PlatformWindows Platform = "windows"
	PlatformUnknown Platform = "unknown"
)

// PlatformInfo describes the audio capabilities of the host.
type PlatformInfo struct {
	OS             Platform
	HasAudioDevice bool
	IsCI           bool
}

// DetectPlatform inspects the host for an audio output.
func DetectPlatform() *PlatformInfo {
	info := &PlatformInfo{
		OS:   currentPlatform(),
		IsCI: IsCI(),
	}

	switch info.OS {
	case PlatformLinux:
		info.HasAudioDevice = hasLinuxAudioDevice()
	case PlatformDarwin, PlatformWindows:
		info.HasAudioDevice = true
	}

	log.Debug("Platform detected", "os", info.OS, "has_device", info.HasAudioDevice, "is_ci", info.IsCI)
	return info
}

// ShouldUseMock reports whether real output is unlikely to work.
func (p *PlatformInfo) ShouldUseMock() bool {
	return p.IsCI || !p.HasAudioDevice
}

// BufferSize returns the output buffer length that works well on the platform.
func (p *PlatformInfo) BufferSize() time.Duration {
	switch p.OS {
	case PlatformDarwin:
		return 100 * time.Millisecond
	case PlatformWindows:
		return 80 * time.Millisecond
	default:
		return 50 * time.Millisecond
	}
}

// IsCI detects CI environments and explicit requests for mock audio.
func IsCI() bool {
	ciVars := []string{
		"CI",
		"CONTINUOUS_INTEGRATION",
		"GITHUB_ACTIONS",
		"GITLAB_CI",
		"JENKINS_URL",
		"TRAVIS",
		"CIRCLECI",
		"BUILDKITE",
		"DRONE",
	}
	for _, v := range ciVars {
		if val := os.Getenv(v); val != "" && val != "false" {
			log.Debug("CI environment detected", "variable", v)
			return true
		}
	}
	return os.Getenv("NARRATE_MOCK_AUDIO") == "true"
}

func currentPlatform() Platform {
	switch runtime.GOOS {
	case "linux":
		return PlatformLinux
	case "darwin":
		return PlatformDarwin
	case "windows":
		return PlatformWindows
	default:
		return PlatformUnknown
	}
}

func hasLinuxAudioDevice() bool {
	if entries, err := os.ReadDir("/dev/snd"); err == nil {
		for _, e := range entries {
			if strings.HasPrefix(e.Name(), "pcm") {
				return true
			}
		}
	}

	if content, err := os.ReadFile("/proc/asound/cards"); err == nil &&
		len(content) > 0 && !strings.Contains(string(content), "no soundcards") {
		return true
	}

	if _, err := exec.LookPath("pactl"); err == nil {
		if out, err := exec.Command("pactl", "list", "short", "sinks").Output(); err == nil && len(out) > 0 {
			return true
		}
	}
	return false
}
