package audio

import (
	"testing"

	"github.com/audiolibrelab/memocapture/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePactlSources(t *testing.T) {
	output := "0\talsa_output.pci-0000_00_1f.3.analog-stereo.monitor\tmodule-alsa-card.c\ts16le 2ch 48000Hz\tSUSPENDED\n" +
		"1\talsa_input.pci-0000_00_1f.3.analog-stereo\tmodule-alsa-card.c\ts16le 2ch 48000Hz\tRUNNING\n" +
		"\n"

	sources := parsePactlSources(output)

	assert.Equal(t, []string{
		"alsa_output.pci-0000_00_1f.3.analog-stereo.monitor",
		"alsa_input.pci-0000_00_1f.3.analog-stereo",
	}, sources)
}

func TestParseArecordList(t *testing.T) {
	output := `null
    Discard all samples (playback) or generate zero samples (capture)
default
    Default ALSA Output (currently PipeWire Media Server)
sysdefault:CARD=PCH
    HDA Intel PCH, ALC257 Analog
    Default Audio Device
hw:CARD=PCH,DEV=0
    HDA Intel PCH, ALC257 Analog
    Direct hardware device without any conversions
`

	sources := parseArecordList(output)

	assert.Equal(t, []string{"default", "sysdefault:CARD=PCH", "hw:CARD=PCH,DEV=0"}, sources)
}

func TestFindSource(t *testing.T) {
	sources := []string{"alsa_input.usb", "alsa_input.pci"}

	assert.NoError(t, findSource("alsa_input.usb", sources))

	err := findSource("alsa_input.bluetooth", sources)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source not found")
}

func TestALSAValidateHardwareNames(t *testing.T) {
	backend := &ALSABackend{}

	// Numeric names and default are accepted without running arecord
	assert.NoError(t, backend.ValidateSource("default"))
	assert.NoError(t, backend.ValidateSource("hw:1,0"))
	assert.NoError(t, backend.ValidateSource("plughw:0"))
}

func TestLavfiBackend(t *testing.T) {
	backend, err := NewBackend(BackendTypeLavfi)
	require.NoError(t, err)

	assert.Equal(t, BackendTypeLavfi, backend.GetType())
	assert.NoError(t, backend.ValidateSource("sine=frequency=1000"))
	assert.Error(t, backend.ValidateSource("  "))

	sources, err := backend.ListSources()
	require.NoError(t, err)
	assert.NotEmpty(t, sources)
}

func TestNewBackendUnknown(t *testing.T) {
	_, err := NewBackend("coreaudio")
	assert.Error(t, err)
}

func TestDetermineBackend(t *testing.T) {
	cfg := config.Default()

	cfg.Device.Backend = "alsa"
	assert.Equal(t, BackendTypeALSA, determineBackend(cfg))

	cfg.Device.Backend = "PipeWire"
	assert.Equal(t, BackendTypePulse, determineBackend(cfg))

	cfg.Device.Backend = "lavfi"
	assert.Equal(t, BackendTypeLavfi, determineBackend(cfg))
}

func TestNewDeviceFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Device.Backend = "lavfi"
	cfg.Device.Pause = "disabled"
	cfg.Device.StartupGraceMs = 50

	dev, err := NewDevice(cfg, nil)
	require.NoError(t, err)

	assert.Equal(t, "lavfi", dev.opts.InputFormat)
	assert.Equal(t, "sine=frequency=440", dev.opts.InputDevice)
	assert.Equal(t, "ffmpeg", dev.opts.Binary)
	assert.False(t, dev.PauseSupported())
	assert.True(t, dev.opts.Metering)
}
