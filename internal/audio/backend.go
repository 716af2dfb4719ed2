package audio

import (
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/audiolibrelab/memocapture/internal/config"
)

// BackendType represents the ffmpeg input device family used for capture
type BackendType string

const (
	BackendTypePulse BackendType = "pulse"
	BackendTypeALSA  BackendType = "alsa"
	BackendTypeLavfi BackendType = "lavfi"
	BackendTypeAuto  BackendType = "auto"
)

// InputBackend defines the interface for capture source discovery
type InputBackend interface {
	// List available capture sources
	ListSources() ([]string, error)

	// Validate if a source is available
	ValidateSource(source string) error

	// Get the backend type
	GetType() BackendType
}

// NewBackend returns the input backend for the given type
func NewBackend(backendType BackendType) (InputBackend, error) {
	switch BackendType(strings.ToLower(string(backendType))) {
	case BackendTypePulse, "pipewire":
		return &PulseBackend{}, nil
	case BackendTypeALSA:
		return &ALSABackend{}, nil
	case BackendTypeLavfi:
		return &LavfiBackend{}, nil
	case BackendTypeAuto:
		return NewBackend(detectBackend())
	default:
		return nil, fmt.Errorf("unknown audio backend: %s", backendType)
	}
}

// NewDevice creates an ffmpeg recording device using the configured backend and source
func NewDevice(cfg *config.Config, logWriter io.Writer) (*FFmpegDevice, error) {
	backendType := determineBackend(cfg)

	backend, err := NewBackend(backendType)
	if err != nil {
		return nil, err
	}

	source := cfg.Device.Source
	if source == "" {
		source = defaultSource(backend.GetType())
	}

	if err := backend.ValidateSource(source); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDevice, err)
	}

	slog.Debug("Creating recording device", "backend", backend.GetType(), "source", source)

	return NewFFmpegDevice(FFmpegOptions{
		Binary:       cfg.Device.FFmpeg,
		InputFormat:  string(backend.GetType()),
		InputDevice:  source,
		Pause:        PauseMode(cfg.Device.Pause),
		Metering:     cfg.Device.Metering,
		StartupGrace: time.Duration(cfg.Device.StartupGraceMs) * time.Millisecond,
		StopTimeout:  time.Duration(cfg.Device.StopTimeoutMs) * time.Millisecond,
		LogWriter:    logWriter,
	}), nil
}

// determineBackend determines which backend to use based on configuration
func determineBackend(cfg *config.Config) BackendType {
	switch strings.ToLower(cfg.Device.Backend) {
	case "pulse", "pipewire":
		return BackendTypePulse
	case "alsa":
		return BackendTypeALSA
	case "lavfi":
		return BackendTypeLavfi
	default:
		return detectBackend()
	}
}

// detectBackend prefers PulseAudio (also served by PipeWire) and falls back to ALSA
func detectBackend() BackendType {
	if _, err := exec.LookPath("pactl"); err == nil {
		return BackendTypePulse
	}
	return BackendTypeALSA
}

func defaultSource(backendType BackendType) string {
	if backendType == BackendTypeLavfi {
		return "sine=frequency=440"
	}
	return "default"
}

// GetAvailableBackends returns list of available backends on current system
func GetAvailableBackends() []BackendType {
	backends := []BackendType{}

	if _, err := exec.LookPath("pactl"); err == nil {
		backends = append(backends, BackendTypePulse)
	}
	if _, err := exec.LookPath("arecord"); err == nil {
		backends = append(backends, BackendTypeALSA)
	}

	// lavfi only needs ffmpeg itself
	backends = append(backends, BackendTypeLavfi)

	return backends
}

// LavfiBackend provides ffmpeg's synthetic sources, used for tests and dry runs
type LavfiBackend struct{}

// ListSources returns the built-in synthetic sources
func (l *LavfiBackend) ListSources() ([]string, error) {
	return []string{"sine=frequency=440", "anoisesrc=amplitude=0.1", "anullsrc"}, nil
}

// ValidateSource accepts any non-empty filter graph
func (l *LavfiBackend) ValidateSource(source string) error {
	if strings.TrimSpace(source) == "" {
		return fmt.Errorf("lavfi source must not be empty")
	}
	return nil
}

// GetType returns the backend type
func (l *LavfiBackend) GetType() BackendType {
	return BackendTypeLavfi
}
