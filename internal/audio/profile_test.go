package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHighFidelityCommands(t *testing.T) {
	cmds := Commands(HighFidelity{BitrateKbps: 64})

	assert.Equal(t, []Command{
		{Setting: SettingAudioSource, Value: int(SourceMic)},
		{Setting: SettingOutputFormat, Value: int(FormatMPEG4)},
		{Setting: SettingAudioEncoder, Value: int(EncoderAAC)},
		{Setting: SettingSampleRate, Value: 32000},
		{Setting: SettingBitRate, Value: 64000},
	}, cmds)
}

func TestLegacyCommands(t *testing.T) {
	cmds := Commands(Legacy{})

	assert.Equal(t, []Command{
		{Setting: SettingAudioSource, Value: int(SourceMic)},
		{Setting: SettingOutputFormat, Value: int(FormatAMRNB)},
		{Setting: SettingAudioEncoder, Value: int(EncoderAMRNB)},
		{Setting: SettingSampleRate, Value: 8000},
		{Setting: SettingBitRate, Value: 12200},
	}, cmds)
}

func TestCommandsFollowSettingOrder(t *testing.T) {
	for _, p := range allProfiles() {
		for i, cmd := range Commands(p) {
			assert.Equal(t, Setting(i+1), cmd.Setting, "%s step %d", p.Name(), i)
		}
	}
}

func TestCommandsArePure(t *testing.T) {
	p := HighFidelity{BitrateKbps: 128}
	first := Commands(p)
	first[4].Value = 1

	assert.Equal(t, 128000, Commands(p)[4].Value)
}

func TestCommandString(t *testing.T) {
	cmds := Commands(Legacy{})

	assert.Equal(t, "audio_source=mic", cmds[0].String())
	assert.Equal(t, "output_format=amr_nb", cmds[1].String())
	assert.Equal(t, "audio_encoder=amr_nb", cmds[2].String())
	assert.Equal(t, "sample_rate=8000", cmds[3].String())
	assert.Equal(t, "bit_rate=12200", cmds[4].String())
	assert.Equal(t, "setting(9)", Setting(9).String())
}

func TestProfileByName(t *testing.T) {
	p, err := ProfileByName("aac", 96)
	require.NoError(t, err)
	assert.Equal(t, HighFidelity{BitrateKbps: 96}, p)
	assert.Equal(t, ".m4a", p.Extension())

	p, err = ProfileByName(" AMR ", 0)
	require.NoError(t, err)
	assert.Equal(t, Legacy{}, p)
	assert.Equal(t, ".amr", p.Extension())
}

func TestProfileByNameErrors(t *testing.T) {
	_, err := ProfileByName("amr", 12)
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = ProfileByName("aac", 0)
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = ProfileByName("opus", 32)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestAvailableProfiles(t *testing.T) {
	for _, name := range AvailableProfiles() {
		kbps := 0
		if name == ProfileNameAAC {
			kbps = 64
		}
		p, err := ProfileByName(name, kbps)
		require.NoError(t, err)
		assert.Equal(t, name, p.Name())
	}
}
