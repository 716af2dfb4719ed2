package service

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/audiolibrelab/memocapture/internal/audio"
	"github.com/audiolibrelab/memocapture/internal/config"
)

// stubDevice writes a few bytes on Start so finalized files exist on disk
type stubDevice struct {
	output   string
	canPause bool

	startErr error
	stopErr  error

	amplitude int
	metering  bool
	released  int
	pauses    int
}

func (d *stubDevice) Apply(audio.Command) error { return nil }

func (d *stubDevice) Prepare(outputFile string) error {
	d.output = outputFile
	return os.WriteFile(outputFile, nil, 0644)
}

func (d *stubDevice) Start() error {
	if d.startErr != nil {
		return d.startErr
	}
	return os.WriteFile(d.output, []byte("audio"), 0644)
}

func (d *stubDevice) Pause() error  { d.pauses++; return nil }
func (d *stubDevice) Resume() error { return nil }
func (d *stubDevice) Stop() error   { return d.stopErr }

func (d *stubDevice) Release() error {
	d.released++
	return nil
}

func (d *stubDevice) MaxAmplitude() (int, bool) { return d.amplitude, d.metering }

func (d *stubDevice) PauseSupported() bool { return d.canPause }

// fakeClock advances only when told to
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestService(t *testing.T, device *stubDevice) (*RecorderService, *fakeClock) {
	t.Helper()

	cfg := &config.Config{
		Name:   "default",
		Codec:  config.CodecConfig{Profile: "aac", BitrateKbps: 64},
		Output: config.OutputConfig{Directory: filepath.Join(t.TempDir(), "memos")},
	}
	svc := NewWithDeviceFactory(cfg, func(*config.Config) (audio.Device, error) {
		return device, nil
	})
	clock := &fakeClock{t: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	svc.now = clock.now
	return svc, clock
}

func TestStartCreatesSession(t *testing.T) {
	device := &stubDevice{}
	svc, _ := newTestService(t, device)

	session, err := svc.Start("Team sync / notes")
	require.NoError(t, err)

	assert.NotEmpty(t, session.ID)
	assert.Equal(t, "Team_sync__notes", session.Name)
	assert.Equal(t, "aac", session.Profile)
	assert.Equal(t, filepath.Join(svc.cfg.Output.Directory, "Team_sync__notes.m4a"), session.OutputFile)
	assert.Equal(t, session.OutputFile, device.output)
	assert.False(t, session.FailedToStart)
	assert.Empty(t, session.File)
	assert.DirExists(t, svc.cfg.Output.Directory)
}

func TestStartUsesTimestampForEmptyName(t *testing.T) {
	svc, _ := newTestService(t, &stubDevice{})

	session, err := svc.Start("  ///  ")
	require.NoError(t, err)
	assert.Equal(t, "memo-20260301-100000", session.Name)
}

func TestStartRejectsSecondSession(t *testing.T) {
	svc, _ := newTestService(t, &stubDevice{})

	_, err := svc.Start("first")
	require.NoError(t, err)

	_, err = svc.Start("second")
	assert.ErrorIs(t, err, ErrSessionActive)
}

func TestStartFailureReleasesAndDeletes(t *testing.T) {
	device := &stubDevice{startErr: errors.New("no input")}
	svc, _ := newTestService(t, device)

	session, err := svc.Start("broken")
	require.Error(t, err)
	assert.ErrorIs(t, err, audio.ErrDevice)

	require.NotNil(t, session)
	assert.True(t, session.FailedToStart)
	assert.Equal(t, 1, device.released)
	assert.NoFileExists(t, session.OutputFile)
	assert.Contains(t, svc.GetLastError(), "could not start recording")

	current := svc.CurrentSession()
	require.NotNil(t, current)
	assert.True(t, current.FailedToStart)

	// A failed start does not block the next one
	device.startErr = nil
	_, err = svc.Start("retry")
	assert.NoError(t, err)
	assert.Empty(t, svc.GetLastError())
}

func TestStartRejectsInvalidCodec(t *testing.T) {
	svc, _ := newTestService(t, &stubDevice{})
	svc.cfg.Codec = config.CodecConfig{Profile: "flac"}

	_, err := svc.Start("memo")
	assert.ErrorIs(t, err, audio.ErrConfiguration)
}

func TestStopFinalizesRecording(t *testing.T) {
	device := &stubDevice{}
	svc, clock := newTestService(t, device)

	_, err := svc.Start("standup")
	require.NoError(t, err)
	clock.advance(90 * time.Second)

	session, err := svc.Stop()
	require.NoError(t, err)
	assert.Equal(t, session.OutputFile, session.File)
	assert.Equal(t, 90*time.Second, session.Duration)
	assert.FileExists(t, session.File)
	assert.Equal(t, 1, device.released)

	_, err = svc.Stop()
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestStopFailureDeletesOutput(t *testing.T) {
	device := &stubDevice{stopErr: errors.New("no audio captured")}
	svc, _ := newTestService(t, device)

	_, err := svc.Start("empty")
	require.NoError(t, err)

	session, err := svc.Stop()
	require.Error(t, err)
	assert.ErrorIs(t, err, audio.ErrDevice)
	assert.Empty(t, session.File)
	assert.NoFileExists(t, session.OutputFile)
	assert.Equal(t, 1, device.released)
}

func TestDurationExcludesPausedTime(t *testing.T) {
	device := &stubDevice{canPause: true}
	svc, clock := newTestService(t, device)

	_, err := svc.Start("lecture")
	require.NoError(t, err)
	assert.True(t, svc.PauseSupported())

	clock.advance(10 * time.Second)
	require.NoError(t, svc.Pause())
	assert.True(t, svc.CurrentSession().Paused)

	clock.advance(time.Minute)
	assert.Equal(t, 10*time.Second, svc.CurrentSession().Duration)

	require.NoError(t, svc.Resume())
	assert.False(t, svc.CurrentSession().Paused)

	clock.advance(5 * time.Second)
	assert.Equal(t, 15*time.Second, svc.CurrentSession().Duration)

	session, err := svc.Stop()
	require.NoError(t, err)
	assert.Equal(t, 15*time.Second, session.Duration)
}

func TestStopWhilePaused(t *testing.T) {
	svc, clock := newTestService(t, &stubDevice{canPause: true})

	_, err := svc.Start("paused")
	require.NoError(t, err)
	clock.advance(3 * time.Second)
	require.NoError(t, svc.Pause())
	clock.advance(time.Hour)

	session, err := svc.Stop()
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, session.Duration)
	assert.False(t, session.Paused)
}

func TestPauseUnsupportedIsNoOp(t *testing.T) {
	device := &stubDevice{canPause: false}
	svc, _ := newTestService(t, device)

	_, err := svc.Start("memo")
	require.NoError(t, err)
	assert.False(t, svc.PauseSupported())

	assert.NoError(t, svc.Pause())
	assert.NoError(t, svc.Resume())
	assert.False(t, svc.CurrentSession().Paused)
	assert.Zero(t, device.pauses)
}

func TestPauseTwiceFails(t *testing.T) {
	svc, _ := newTestService(t, &stubDevice{canPause: true})

	_, err := svc.Start("memo")
	require.NoError(t, err)
	require.NoError(t, svc.Pause())

	err = svc.Pause()
	assert.ErrorIs(t, err, audio.ErrInvalidState)
	assert.True(t, svc.CurrentSession().Paused)
}

func TestControlWithoutSession(t *testing.T) {
	svc, _ := newTestService(t, &stubDevice{})

	assert.ErrorIs(t, svc.Pause(), ErrNoSession)
	assert.ErrorIs(t, svc.Resume(), ErrNoSession)
	assert.Nil(t, svc.CurrentSession())
	assert.Zero(t, svc.MaxAmplitude())
	assert.False(t, svc.PauseSupported())
}

func TestMaxAmplitude(t *testing.T) {
	device := &stubDevice{amplitude: 1200, metering: true}
	svc, _ := newTestService(t, device)

	_, err := svc.Start("loud")
	require.NoError(t, err)
	assert.Equal(t, 1200, svc.MaxAmplitude())

	device.metering = false
	assert.Equal(t, audio.AmplitudeUnsupported, svc.MaxAmplitude())
}

func TestCleanupAbandonsRecording(t *testing.T) {
	device := &stubDevice{}
	svc, _ := newTestService(t, device)

	session, err := svc.Start("abandoned")
	require.NoError(t, err)
	require.FileExists(t, session.OutputFile)

	require.NoError(t, svc.Cleanup())
	assert.Equal(t, 1, device.released)
	assert.NoFileExists(t, session.OutputFile)
	assert.Nil(t, svc.CurrentSession())

	// Nothing left to clean
	assert.NoError(t, svc.Cleanup())
}

func TestCurrentSessionIsSnapshot(t *testing.T) {
	svc, _ := newTestService(t, &stubDevice{})

	_, err := svc.Start("memo")
	require.NoError(t, err)

	snapshot := svc.CurrentSession()
	snapshot.Name = "changed"
	assert.Equal(t, "memo", svc.CurrentSession().Name)
}

func TestCleanFileName(t *testing.T) {
	tests := []struct {
		input, want string
	}{
		{"My Song", "My_Song"},
		{"  trim me  ", "trim_me"},
		{"a/b\\c:d", "abcd"},
		{"keep-dash_and_underscore", "keep-dash_and_underscore"},
		{"émoji 🎙", "moji"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CleanFileName(tt.input), tt.input)
	}
}
