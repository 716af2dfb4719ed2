package service

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/audiolibrelab/memocapture/internal/audio"
	"github.com/audiolibrelab/memocapture/internal/config"
)

var (
	// ErrSessionActive is returned when a recording is started while another one is live
	ErrSessionActive = errors.New("a recording session is already active")

	// ErrNoSession is returned when there is no live recording to control
	ErrNoSession = errors.New("no active recording session")
)

// Service represents the recording session orchestration used by the CLI
type Service interface {
	// Recording operations
	Start(name string) (*Session, error)
	Pause() error
	Resume() error
	Stop() (*Session, error)
	Cleanup() error

	// Status and information
	CurrentSession() *Session
	MaxAmplitude() int
	PauseSupported() bool
	GetConfig() *config.Config
	GetLastError() string
}

// Session contains information about the current recording session
type Session struct {
	ID            string        `json:"id" yaml:"id"`
	Name          string        `json:"name" yaml:"name"`
	Profile       string        `json:"profile" yaml:"profile"`
	OutputFile    string        `json:"output_file" yaml:"output_file"`
	StartTime     time.Time     `json:"start_time" yaml:"start_time"`
	Duration      time.Duration `json:"duration" yaml:"duration"`
	Paused        bool          `json:"paused" yaml:"paused"`
	FailedToStart bool          `json:"failed_to_start" yaml:"failed_to_start"`
	File          string        `json:"file,omitempty" yaml:"file,omitempty"` // set once the recording is finalized
}

// DeviceFactory creates the recording device for a new session
type DeviceFactory func(cfg *config.Config) (audio.Device, error)

// RecorderService is the main service implementation
type RecorderService struct {
	cfg       *config.Config
	newDevice DeviceFactory
	now       func() time.Time

	mu       sync.Mutex
	resource *audio.Resource
	session  *Session

	// Duration tracking, excluding paused time
	recorded     time.Duration
	segmentStart time.Time

	// Error tracking
	lastError      string
	lastErrorMutex sync.RWMutex
}

// New creates a service recording through ffmpeg devices built from cfg
func New(cfg *config.Config, logWriter io.Writer) Service {
	if logWriter == nil {
		logWriter = io.Discard
	}

	return NewWithDeviceFactory(cfg, func(cfg *config.Config) (audio.Device, error) {
		return audio.NewDevice(cfg, logWriter)
	})
}

// NewWithDeviceFactory creates a service with a custom device source
func NewWithDeviceFactory(cfg *config.Config, factory DeviceFactory) *RecorderService {
	return &RecorderService{
		cfg:       cfg,
		newDevice: factory,
		now:       time.Now,
	}
}

// Start creates a recording resource for the configured codec and begins capture
func (s *RecorderService) Start(name string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.resource != nil {
		return nil, ErrSessionActive
	}

	profile, err := audio.ProfileByName(s.cfg.Codec.Profile, s.cfg.Codec.BitrateKbps)
	if err != nil {
		return nil, s.fail(fmt.Errorf("invalid codec configuration: %w", err))
	}

	cleanName := cleanFileName(name)
	if cleanName == "" {
		cleanName = "memo-" + s.now().Format("20060102-150405")
	}

	// The resource never creates directories, the session layer owns paths
	if err := os.MkdirAll(s.cfg.Output.Directory, 0755); err != nil {
		return nil, s.fail(fmt.Errorf("failed to create output directory: %w", err))
	}
	outputFile := filepath.Join(s.cfg.Output.Directory, cleanName+profile.Extension())

	session := &Session{
		ID:         uuid.NewString(),
		Name:       cleanName,
		Profile:    profile.Name(),
		OutputFile: outputFile,
		StartTime:  s.now(),
	}

	device, err := s.newDevice(s.cfg)
	if err != nil {
		session.FailedToStart = true
		s.session = session
		return session.snapshot(), s.fail(fmt.Errorf("failed to open recording device: %w", err))
	}

	resource := audio.NewResource(device, profile, nil)
	if err := startResource(resource, outputFile); err != nil {
		if releaseErr := resource.Release(); releaseErr != nil {
			slog.Debug("Failed to release device after start failure", "error", releaseErr)
		}
		removeOutput(outputFile)

		session.FailedToStart = true
		s.session = session
		return session.snapshot(), s.fail(fmt.Errorf("could not start recording: %w", err))
	}

	s.resource = resource
	s.session = session
	s.recorded = 0
	s.segmentStart = s.now()
	s.clearLastError()

	slog.Info("Recording started", "session", session.ID, "profile", session.Profile, "output", outputFile)
	return session.snapshot(), nil
}

func startResource(resource *audio.Resource, outputFile string) error {
	if err := resource.SetOutputFile(outputFile); err != nil {
		return err
	}
	if err := resource.Prepare(); err != nil {
		return err
	}
	return resource.Start()
}

// Pause suspends the recording. Without device support it does nothing.
func (s *RecorderService) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.resource == nil {
		return ErrNoSession
	}
	if !s.resource.PauseSupported() {
		slog.Info("Pause is not supported by this device")
		return nil
	}
	if err := s.resource.Pause(); err != nil {
		return s.fail(err)
	}

	s.recorded += s.now().Sub(s.segmentStart)
	s.session.Paused = true
	slog.Info("Recording paused", "session", s.session.ID, "duration", s.recorded)
	return nil
}

// Resume continues a paused recording. Without device support it does nothing.
func (s *RecorderService) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.resource == nil {
		return ErrNoSession
	}
	if !s.resource.PauseSupported() {
		return nil
	}
	if err := s.resource.Resume(); err != nil {
		return s.fail(err)
	}

	s.segmentStart = s.now()
	s.session.Paused = false
	slog.Info("Recording resumed", "session", s.session.ID)
	return nil
}

// Stop finalizes the recording and releases the device. A recording that
// fails to finalize is deleted.
func (s *RecorderService) Stop() (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.resource == nil {
		return nil, ErrNoSession
	}

	if !s.session.Paused {
		s.recorded += s.now().Sub(s.segmentStart)
	}
	s.session.Duration = s.recorded
	s.session.Paused = false

	stopErr := s.resource.Stop()
	if err := s.resource.Release(); err != nil {
		slog.Debug("Failed to release device", "error", err)
	}
	s.resource = nil

	if stopErr != nil {
		removeOutput(s.session.OutputFile)
		return s.session.snapshot(), s.fail(fmt.Errorf("failed to stop recording: %w", stopErr))
	}

	s.session.File = s.session.OutputFile
	slog.Info("Recording saved", "session", s.session.ID, "file", s.session.File, "duration", s.session.Duration)
	return s.session.snapshot(), nil
}

// Cleanup abandons any live recording, deletes its output and forgets the session
func (s *RecorderService) Cleanup() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	if s.resource != nil {
		err = s.resource.Release()
		removeOutput(s.session.OutputFile)
		s.resource = nil
	}
	s.session = nil
	s.recorded = 0

	slog.Debug("Recorder service cleaned up")
	return err
}

// CurrentSession returns a snapshot of the current or last session, nil if none
func (s *RecorderService) CurrentSession() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return nil
	}

	snapshot := s.session.snapshot()
	if s.resource != nil {
		snapshot.Duration = s.recorded
		if !s.session.Paused {
			snapshot.Duration += s.now().Sub(s.segmentStart)
		}
	}
	return snapshot
}

// MaxAmplitude returns the input peak since the previous call, 0 when idle
// and audio.AmplitudeUnsupported when the device cannot meter.
func (s *RecorderService) MaxAmplitude() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.resource == nil {
		return 0
	}
	amplitude, err := s.resource.MaxAmplitude()
	if err != nil {
		return 0
	}
	return amplitude
}

// PauseSupported reports whether the live recording can be paused
func (s *RecorderService) PauseSupported() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.resource != nil && s.resource.PauseSupported()
}

// GetConfig returns the service configuration
func (s *RecorderService) GetConfig() *config.Config {
	return s.cfg
}

// GetLastError returns the last error message
func (s *RecorderService) GetLastError() string {
	s.lastErrorMutex.RLock()
	defer s.lastErrorMutex.RUnlock()
	return s.lastError
}

func (s *RecorderService) fail(err error) error {
	s.lastErrorMutex.Lock()
	s.lastError = err.Error()
	s.lastErrorMutex.Unlock()

	slog.Error("Recording error", "error", err)
	return err
}

func (s *RecorderService) clearLastError() {
	s.lastErrorMutex.Lock()
	defer s.lastErrorMutex.Unlock()
	s.lastError = ""
}

func (s *Session) snapshot() *Session {
	c := *s
	return &c
}

// removeOutput deletes a failed recording
func removeOutput(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		slog.Debug("Failed to remove recording file", "file", path, "error", err)
	}
}

// cleanFileName sanitizes a filename
// Allows: letters, numbers, spaces, hyphens, underscores
func cleanFileName(name string) string {
	var result strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == ' ' || r == '-' || r == '_' {
			result.WriteRune(r)
		}
	}
	return strings.ReplaceAll(strings.TrimSpace(result.String()), " ", "_")
}

// CleanFileName exposes the file name rules used for session outputs
func CleanFileName(name string) string {
	return cleanFileName(name)
}
