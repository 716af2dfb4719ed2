package audio

import (
	"fmt"
	"strings"
)

// Setting identifies one device configuration step
type Setting int

// Settings in the order a device expects them
const (
	SettingAudioSource Setting = iota + 1
	SettingOutputFormat
	SettingAudioEncoder
	SettingSampleRate
	SettingBitRate
)

func (s Setting) String() string {
	switch s {
	case SettingAudioSource:
		return "audio_source"
	case SettingOutputFormat:
		return "output_format"
	case SettingAudioEncoder:
		return "audio_encoder"
	case SettingSampleRate:
		return "sample_rate"
	case SettingBitRate:
		return "bit_rate"
	default:
		return fmt.Sprintf("setting(%d)", int(s))
	}
}

// AudioSource selects the capture input
type AudioSource int

const (
	SourceMic AudioSource = iota + 1
)

func (s AudioSource) String() string {
	if s == SourceMic {
		return "mic"
	}
	return fmt.Sprintf("source(%d)", int(s))
}

// OutputFormat is the container written to the output file
type OutputFormat int

const (
	FormatMPEG4 OutputFormat = iota + 1
	FormatAMRNB
)

func (f OutputFormat) String() string {
	switch f {
	case FormatMPEG4:
		return "mpeg4"
	case FormatAMRNB:
		return "amr_nb"
	default:
		return fmt.Sprintf("format(%d)", int(f))
	}
}

// AudioEncoder is the codec used for the audio stream
type AudioEncoder int

const (
	EncoderAAC AudioEncoder = iota + 1
	EncoderAMRNB
)

func (e AudioEncoder) String() string {
	switch e {
	case EncoderAAC:
		return "aac"
	case EncoderAMRNB:
		return "amr_nb"
	default:
		return fmt.Sprintf("encoder(%d)", int(e))
	}
}

// Command is a single device configuration step
type Command struct {
	Setting Setting
	Value   int
}

func (c Command) String() string {
	var value string
	switch c.Setting {
	case SettingAudioSource:
		value = AudioSource(c.Value).String()
	case SettingOutputFormat:
		value = OutputFormat(c.Value).String()
	case SettingAudioEncoder:
		value = AudioEncoder(c.Value).String()
	default:
		value = fmt.Sprintf("%d", c.Value)
	}
	return c.Setting.String() + "=" + value
}

// Profile is a codec configuration policy bound to a Resource.
// The set of profiles is closed: HighFidelity and Legacy.
type Profile interface {
	// Name is the identifier used in configuration ("aac", "amr")
	Name() string
	// Extension is the output file extension including the dot
	Extension() string

	commands() []Command
}

const (
	ProfileNameAAC = "aac"
	ProfileNameAMR = "amr"
)

// HighFidelity records AAC in an MPEG-4 container at 32 kHz
type HighFidelity struct {
	BitrateKbps int
}

func (p HighFidelity) Name() string      { return ProfileNameAAC }
func (p HighFidelity) Extension() string { return ".m4a" }

func (p HighFidelity) commands() []Command {
	return []Command{
		{Setting: SettingAudioSource, Value: int(SourceMic)},
		{Setting: SettingOutputFormat, Value: int(FormatMPEG4)},
		{Setting: SettingAudioEncoder, Value: int(EncoderAAC)},
		{Setting: SettingSampleRate, Value: 32000},
		{Setting: SettingBitRate, Value: p.BitrateKbps * 1000},
	}
}

// Legacy records narrowband AMR at its fixed 12.2 kbit/s mode
type Legacy struct{}

func (Legacy) Name() string      { return ProfileNameAMR }
func (Legacy) Extension() string { return ".amr" }

func (Legacy) commands() []Command {
	return []Command{
		{Setting: SettingAudioSource, Value: int(SourceMic)},
		{Setting: SettingOutputFormat, Value: int(FormatAMRNB)},
		{Setting: SettingAudioEncoder, Value: int(EncoderAMRNB)},
		{Setting: SettingSampleRate, Value: 8000},
		{Setting: SettingBitRate, Value: 12200},
	}
}

// Commands returns the ordered device configuration for a profile:
// source, output format, encoder, sample rate, bit rate.
func Commands(p Profile) []Command {
	return p.commands()
}

// ProfileByName builds a profile from its configuration name.
// kbps is required for "aac" and must be zero for "amr".
func ProfileByName(name string, kbps int) (Profile, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case ProfileNameAAC:
		if kbps <= 0 {
			return nil, fmt.Errorf("%w: aac profile needs a positive bitrate, got %d kbps", ErrConfiguration, kbps)
		}
		return HighFidelity{BitrateKbps: kbps}, nil
	case ProfileNameAMR:
		if kbps != 0 {
			return nil, fmt.Errorf("%w: amr profile has a fixed bitrate and does not accept %d kbps", ErrConfiguration, kbps)
		}
		return Legacy{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown codec profile %q", ErrConfiguration, name)
	}
}

// AvailableProfiles returns the profile names in display order
func AvailableProfiles() []string {
	return []string{ProfileNameAAC, ProfileNameAMR}
}
