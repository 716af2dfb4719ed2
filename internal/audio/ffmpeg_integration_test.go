package audio

import (
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ffprobeResult struct {
	Streams []struct {
		CodecName  string `json:"codec_name"`
		SampleRate string `json:"sample_rate"`
	} `json:"streams"`
	Format struct {
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
	} `json:"format"`
}

func requireFFmpeg(t *testing.T, encoder string) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping ffmpeg integration test in short mode")
	}
	for _, bin := range []string{"ffmpeg", "ffprobe"} {
		if _, err := exec.LookPath(bin); err != nil {
			t.Skipf("%s not found in PATH", bin)
		}
	}
	out, err := exec.Command("ffmpeg", "-hide_banner", "-encoders").Output()
	if err != nil || !strings.Contains(string(out), encoder) {
		t.Skipf("ffmpeg built without %s", encoder)
	}
}

func ffprobeFile(t *testing.T, path string) ffprobeResult {
	t.Helper()
	out, err := exec.Command("ffprobe", "-v", "error", "-show_streams", "-show_format", "-of", "json", path).Output()
	require.NoError(t, err)

	var result ffprobeResult
	require.NoError(t, json.Unmarshal(out, &result))
	require.NotEmpty(t, result.Streams)
	return result
}

func recordWithFFmpeg(t *testing.T, profile Profile, output string) *FFmpegDevice {
	t.Helper()

	dev := NewFFmpegDevice(FFmpegOptions{
		InputFormat: "lavfi",
		InputDevice: "sine=frequency=440",
		Metering:    true,
	})
	r := NewResource(dev, profile, nil)

	require.NoError(t, r.SetOutputFile(output))
	require.NoError(t, r.Prepare())
	require.NoError(t, r.Start())
	time.Sleep(time.Second)

	amplitude, err := r.MaxAmplitude()
	require.NoError(t, err)
	assert.Greater(t, amplitude, 0)

	require.NoError(t, r.Stop())
	require.NoError(t, r.Release())

	info, err := os.Stat(output)
	require.NoError(t, err)
	assert.NotZero(t, info.Size())
	return dev
}

func TestRecordHighFidelityWithFFmpeg(t *testing.T) {
	requireFFmpeg(t, " aac ")

	output := filepath.Join(t.TempDir(), "a.m4a")
	dev := recordWithFFmpeg(t, HighFidelity{BitrateKbps: 64}, output)

	result := ffprobeFile(t, output)
	assert.Contains(t, result.Format.FormatName, "mp4")
	assert.Equal(t, "aac", result.Streams[0].CodecName)
	assert.Equal(t, "32000", result.Streams[0].SampleRate)
	assert.Contains(t, strings.Join(dev.Args(), " "), "-b:a 64000")
}

func TestRecordLegacyWithFFmpeg(t *testing.T) {
	requireFFmpeg(t, "libopencore_amrnb")

	output := filepath.Join(t.TempDir(), "b.amr")
	dev := recordWithFFmpeg(t, Legacy{}, output)

	result := ffprobeFile(t, output)
	assert.Equal(t, "amr", result.Format.FormatName)
	assert.Equal(t, "amr_nb", result.Streams[0].CodecName)
	assert.Equal(t, "8000", result.Streams[0].SampleRate)
	assert.Contains(t, strings.Join(dev.Args(), " "), "-b:a 12200")
}

func TestPausedTimeIsNotRecorded(t *testing.T) {
	for _, tc := range []struct {
		name    string
		encoder string
		profile Profile
	}{
		{"aac", " aac ", HighFidelity{BitrateKbps: 64}},
		{"amr", "libopencore_amrnb", Legacy{}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			requireFFmpeg(t, tc.encoder)

			dev := NewFFmpegDevice(FFmpegOptions{
				InputFormat: "lavfi",
				InputDevice: "sine=frequency=440",
				Pause:       PauseEnabled,
			})
			r := NewResource(dev, tc.profile, nil)

			output := filepath.Join(t.TempDir(), "paused"+tc.profile.Extension())
			require.NoError(t, r.SetOutputFile(output))
			require.NoError(t, r.Prepare())

			require.NoError(t, r.Start())
			time.Sleep(time.Second)
			require.NoError(t, r.Pause())
			time.Sleep(2 * time.Second)
			require.NoError(t, r.Resume())
			time.Sleep(time.Second)
			require.NoError(t, r.Stop())
			require.NoError(t, r.Release())

			result := ffprobeFile(t, output)
			duration, err := strconv.ParseFloat(result.Format.Duration, 64)
			require.NoError(t, err)

			// About two seconds of audio plus startup grace, never the paused two
			assert.Greater(t, duration, 1.5)
			assert.Less(t, duration, 3.6)

			entries, err := os.ReadDir(filepath.Dir(output))
			require.NoError(t, err)
			assert.Len(t, entries, 1)
		})
	}
}
