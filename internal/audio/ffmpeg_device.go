package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// PauseMode overrides the runtime pause capability of a device
type PauseMode string

const (
	PauseAuto     PauseMode = "auto"
	PauseEnabled  PauseMode = "enabled"
	PauseDisabled PauseMode = "disabled"
)

const (
	defaultStartupGrace = 300 * time.Millisecond
	defaultStopTimeout  = 5 * time.Second
	stderrTailLines     = 20
	maxAmplitude16      = 32767
)

// aacSampleRates are the rates the AAC encoder accepts
var aacSampleRates = map[int]bool{
	8000: true, 11025: true, 12000: true, 16000: true, 22050: true, 24000: true,
	32000: true, 44100: true, 48000: true, 64000: true, 88200: true, 96000: true,
}

// amrNBBitRates are the eight AMR-NB codec modes
var amrNBBitRates = map[int]bool{
	4750: true, 5150: true, 5900: true, 6700: true,
	7400: true, 7950: true, 10200: true, 12200: true,
}

var peakLevelPattern = regexp.MustCompile(`lavfi\.astats\.Overall\.Peak_level=(\S+)`)

// FFmpegOptions configures an FFmpegDevice
type FFmpegOptions struct {
	Binary       string        // ffmpeg executable, default "ffmpeg"
	InputFormat  string        // ffmpeg input device format: pulse, alsa, lavfi
	InputDevice  string        // input name for the chosen format
	Pause        PauseMode     // pause capability override
	Metering     bool          // parse peak levels from ffmpeg output
	StartupGrace time.Duration // how long ffmpeg must survive to count as started
	StopTimeout  time.Duration // how long to wait for ffmpeg to finalize before killing it
	LogWriter    io.Writer     // receives raw ffmpeg output lines
}

// FFmpegDevice implements Device with ffmpeg child processes.
//
// Each stretch between Start or Resume and the next Pause or Stop is
// captured by its own ffmpeg run into a segment file, so paused time never
// reaches the output. Stop joins the segments with ffmpeg's concat demuxer.
type FFmpegDevice struct {
	opts FFmpegOptions

	// Configuration
	settings map[Setting]int
	applied  int
	codec    string
	muxer    string
	args     []string
	output   string

	// Capture state
	run      *ffmpegRun
	segments []string
	paused   bool
	released bool

	peak atomic.Int32
}

// NewFFmpegDevice creates an unconfigured ffmpeg device
func NewFFmpegDevice(opts FFmpegOptions) *FFmpegDevice {
	if opts.Binary == "" {
		opts.Binary = "ffmpeg"
	}
	if opts.Pause == "" {
		opts.Pause = PauseAuto
	}
	if opts.StartupGrace <= 0 {
		opts.StartupGrace = defaultStartupGrace
	}
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = defaultStopTimeout
	}
	if opts.LogWriter == nil {
		opts.LogWriter = io.Discard
	}

	return &FFmpegDevice{
		opts:     opts,
		settings: make(map[Setting]int),
	}
}

// PauseSupported reports whether a capture run can be finalized cleanly on
// this platform, which segmented pause depends on.
func (d *FFmpegDevice) PauseSupported() bool {
	switch d.opts.Pause {
	case PauseEnabled:
		return true
	case PauseDisabled:
		return false
	default:
		return interruptSupported
	}
}

// Apply records one configuration step. Steps must arrive in Setting order.
func (d *FFmpegDevice) Apply(cmd Command) error {
	if d.released {
		return fmt.Errorf("%w: device released", ErrInvalidState)
	}
	if d.args != nil {
		return fmt.Errorf("%w: device already prepared", ErrInvalidState)
	}

	expected := Setting(d.applied + 1)
	if cmd.Setting != expected {
		return fmt.Errorf("%w: %s set out of order, expected %s", ErrConfiguration, cmd.Setting, expected)
	}

	d.settings[cmd.Setting] = cmd.Value
	d.applied++
	return nil
}

// Prepare validates the applied settings, checks the output path and
// builds the ffmpeg command line.
func (d *FFmpegDevice) Prepare(outputFile string) error {
	if d.released {
		return fmt.Errorf("%w: device released", ErrInvalidState)
	}
	if d.args != nil {
		return fmt.Errorf("%w: device already prepared", ErrInvalidState)
	}

	codec, muxer, err := d.validateSettings()
	if err != nil {
		return err
	}

	if err := checkWritable(outputFile); err != nil {
		return err
	}

	d.codec, d.muxer = codec, muxer
	d.output = outputFile
	d.args = d.buildArgs(outputFile)
	slog.Debug("FFmpeg device prepared", "output", outputFile, "command", strings.Join(d.args, " "))
	return nil
}

// validateSettings checks the encoder/container combination and returns
// the ffmpeg encoder and muxer names.
func (d *FFmpegDevice) validateSettings() (codec, muxer string, err error) {
	if d.applied != int(SettingBitRate) {
		return "", "", fmt.Errorf("%w: incomplete configuration, %d of %d settings applied", ErrConfiguration, d.applied, int(SettingBitRate))
	}

	if AudioSource(d.settings[SettingAudioSource]) != SourceMic {
		return "", "", fmt.Errorf("%w: unsupported audio source %s", ErrConfiguration, AudioSource(d.settings[SettingAudioSource]))
	}

	format := OutputFormat(d.settings[SettingOutputFormat])
	encoder := AudioEncoder(d.settings[SettingAudioEncoder])
	sampleRate := d.settings[SettingSampleRate]
	bitRate := d.settings[SettingBitRate]

	switch {
	case format == FormatMPEG4 && encoder == EncoderAAC:
		if !aacSampleRates[sampleRate] {
			return "", "", fmt.Errorf("%w: aac does not support %d Hz", ErrConfiguration, sampleRate)
		}
		if bitRate < 8000 || bitRate > 320000 {
			return "", "", fmt.Errorf("%w: aac bit rate %d out of range", ErrConfiguration, bitRate)
		}
		return "aac", "mp4", nil

	case format == FormatAMRNB && encoder == EncoderAMRNB:
		if sampleRate != 8000 {
			return "", "", fmt.Errorf("%w: amr_nb requires 8000 Hz, got %d", ErrConfiguration, sampleRate)
		}
		if !amrNBBitRates[bitRate] {
			return "", "", fmt.Errorf("%w: %d bit/s is not an amr_nb mode", ErrConfiguration, bitRate)
		}
		return "libopencore_amrnb", "amr", nil

	default:
		return "", "", fmt.Errorf("%w: encoder %s cannot be stored in %s", ErrConfiguration, encoder, format)
	}
}

// checkWritable opens the output path for writing without creating parent directories
func checkWritable(path string) error {
	dir := filepath.Dir(path)
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("%w: output directory %s: %w", ErrIO, dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrIO, dir)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	return f.Close()
}

// buildArgs constructs the ffmpeg capture command line writing to output
func (d *FFmpegDevice) buildArgs(output string) []string {
	args := []string{
		d.opts.Binary,
		"-hide_banner",
		"-nostdin",
		"-nostats",
		"-loglevel", "info",
	}

	// Synthetic sources would otherwise be generated faster than real time
	if d.opts.InputFormat == string(BackendTypeLavfi) {
		args = append(args, "-re")
	}

	args = append(args,
		"-f", d.opts.InputFormat,
		"-i", d.opts.InputDevice,
		"-ac", "1",
		"-ar", strconv.Itoa(d.settings[SettingSampleRate]),
	)

	if d.opts.Metering {
		args = append(args, "-af", "astats=metadata=1:reset=1,ametadata=mode=print:key=lavfi.astats.Overall.Peak_level")
	}

	args = append(args,
		"-c:a", d.codec,
		"-b:a", strconv.Itoa(d.settings[SettingBitRate]),
		"-f", d.muxer,
		"-y", // Prepare created the file
		output,
	)

	return args
}

// Args returns the prepared ffmpeg command line, nil before Prepare
func (d *FFmpegDevice) Args() []string {
	return d.args
}

// Start launches the first capture run straight into the output file
func (d *FFmpegDevice) Start() error {
	if d.released || d.args == nil {
		return fmt.Errorf("%w: device not prepared", ErrInvalidState)
	}
	if len(d.segments) > 0 {
		return fmt.Errorf("%w: device already started", ErrInvalidState)
	}

	run, err := d.startRun(d.args)
	if err != nil {
		return err
	}
	d.run = run
	d.segments = append(d.segments, d.output)
	return nil
}

// Pause finalizes the current segment. Nothing is captured until Resume.
func (d *FFmpegDevice) Pause() error {
	if d.paused {
		return nil
	}
	if d.run == nil {
		return fmt.Errorf("%w: device not recording", ErrInvalidState)
	}

	err := d.run.stop(d.opts.StopTimeout)
	d.run = nil
	if err != nil {
		return err
	}

	d.paused = true
	slog.Debug("FFmpeg segment finalized for pause", "segments", len(d.segments))
	return nil
}

// Resume starts a new capture run into the next segment file
func (d *FFmpegDevice) Resume() error {
	if !d.paused {
		if d.run == nil {
			return fmt.Errorf("%w: device not recording", ErrInvalidState)
		}
		return nil
	}

	segment := d.segmentPath(len(d.segments))
	run, err := d.startRun(d.buildArgs(segment))
	if err != nil {
		os.Remove(segment)
		return err
	}

	d.run = run
	d.segments = append(d.segments, segment)
	d.paused = false
	slog.Debug("FFmpeg resumed into new segment", "segment", segment)
	return nil
}

// Stop finalizes the running segment, joins all segments into the output
// file and validates the result.
func (d *FFmpegDevice) Stop() error {
	if len(d.segments) == 0 {
		return fmt.Errorf("%w: device not started", ErrInvalidState)
	}

	if d.run != nil {
		err := d.run.stop(d.opts.StopTimeout)
		d.run = nil
		if err != nil {
			return err
		}
	}
	d.paused = false

	if len(d.segments) > 1 {
		if err := d.joinSegments(); err != nil {
			return err
		}
	}

	return d.validateOutputFile()
}

// segmentPath names the hidden temporary file for segment i next to the output
func (d *FFmpegDevice) segmentPath(i int) string {
	dir, base := filepath.Split(d.output)
	ext := filepath.Ext(base)
	return filepath.Join(dir, fmt.Sprintf(".%s.part%d%s", strings.TrimSuffix(base, ext), i, ext))
}

// joinSegments concatenates the non-empty segments into the output file
// without re-encoding and removes the temporary files.
func (d *FFmpegDevice) joinSegments() error {
	first := d.segmentPath(0)
	if err := os.Rename(d.output, first); err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	d.segments[0] = first
	defer d.removeSegments()

	var list strings.Builder
	for _, segment := range d.segments {
		if info, err := os.Stat(segment); err != nil || info.Size() == 0 {
			slog.Debug("Skipping empty segment", "segment", segment)
			continue
		}
		// Entries resolve relative to the list, which sits next to the segments
		fmt.Fprintf(&list, "file '%s'\n", strings.ReplaceAll(filepath.Base(segment), "'", `'\''`))
	}
	if list.Len() == 0 {
		// Leave an empty output so validation reports the missing audio
		return os.WriteFile(d.output, nil, 0644)
	}

	listPath := d.segmentPath(len(d.segments)) + ".txt"
	if err := os.WriteFile(listPath, []byte(list.String()), 0644); err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	defer os.Remove(listPath)

	ctx, cancel := context.WithTimeout(context.Background(), d.opts.StopTimeout)
	defer cancel()

	args := []string{
		"-hide_banner", "-nostdin", "-loglevel", "error",
		"-f", "concat", "-safe", "0",
		"-i", listPath,
		"-c", "copy",
		"-f", d.muxer,
		"-y", d.output,
	}
	slog.Debug("Joining FFmpeg segments", "segments", len(d.segments), "output", d.output)

	out, err := exec.CommandContext(ctx, d.opts.Binary, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: failed to join %d segments: %w: %s", ErrDevice, len(d.segments), err, strings.TrimSpace(string(out)))
	}
	return nil
}

// removeSegments deletes temporary segment files, never the output itself
func (d *FFmpegDevice) removeSegments() {
	for _, segment := range d.segments {
		if segment == d.output {
			continue
		}
		if err := os.Remove(segment); err != nil && !os.IsNotExist(err) {
			slog.Debug("Failed to remove segment", "segment", segment, "error", err)
		}
	}
	d.segments = []string{d.output}
}

// validateOutputFile checks that audio data reached the output file
func (d *FFmpegDevice) validateOutputFile() error {
	info, err := os.Stat(d.output)
	if err != nil {
		return fmt.Errorf("%w: recording file not found: %s", ErrDevice, d.output)
	}
	if info.Size() == 0 {
		return fmt.Errorf("%w: no audio captured into %s", ErrDevice, d.output)
	}

	slog.Debug("FFmpeg output file validated", "size", info.Size())
	return nil
}

// Release kills a running capture and removes leftover segments. Safe in any state.
func (d *FFmpegDevice) Release() error {
	if d.released {
		return nil
	}
	d.released = true

	if d.run != nil {
		d.run.kill()
		d.run = nil
	}
	if len(d.segments) > 0 {
		d.removeSegments()
	}

	slog.Debug("FFmpeg device released")
	return nil
}

// MaxAmplitude returns the highest peak seen since the previous call
func (d *FFmpegDevice) MaxAmplitude() (int, bool) {
	if !d.opts.Metering {
		return 0, false
	}
	return int(d.peak.Swap(0)), true
}

func (d *FFmpegDevice) recordPeak(amplitude int32) {
	for {
		current := d.peak.Load()
		if amplitude <= current || d.peak.CompareAndSwap(current, amplitude) {
			return
		}
	}
}

// ffmpegRun is one ffmpeg capture process writing a single segment
type ffmpegRun struct {
	cmd    *exec.Cmd
	done   chan struct{}
	err    error
	stderr *ffmpegOutput
}

// startRun launches ffmpeg and waits out the startup grace period
func (d *FFmpegDevice) startRun(args []string) (*ffmpegRun, error) {
	slog.Info("Starting FFmpeg", "command", strings.Join(args, " "))

	run := &ffmpegRun{
		done:   make(chan struct{}),
		stderr: newFFmpegOutput(d.opts.LogWriter, d.recordPeak),
	}
	run.cmd = exec.Command(args[0], args[1:]...)
	run.cmd.Stderr = run.stderr

	if err := run.cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: failed to start FFmpeg: %w", ErrDevice, err)
	}
	go func() {
		run.err = run.cmd.Wait()
		close(run.done)
	}()

	select {
	case <-run.done:
		return nil, fmt.Errorf("%w: FFmpeg exited during startup (%v): %s", ErrDevice, run.err, run.stderr.Tail())
	case <-time.After(d.opts.StartupGrace):
	}

	return run, nil
}

func (r *ffmpegRun) exited() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// stop interrupts ffmpeg so it finalizes its file, then waits for it to exit
func (r *ffmpegRun) stop(timeout time.Duration) error {
	if r.exited() {
		return fmt.Errorf("%w: FFmpeg exited before stop (%v): %s", ErrDevice, r.err, r.stderr.Tail())
	}

	slog.Debug("Sending interrupt to FFmpeg process")
	if err := r.cmd.Process.Signal(os.Interrupt); err != nil {
		slog.Debug("Failed to send interrupt to FFmpeg, killing", "error", err)
		r.cmd.Process.Kill()
	}

	select {
	case <-r.done:
	case <-time.After(timeout):
		slog.Warn("FFmpeg did not exit within timeout, force killing")
		r.cmd.Process.Kill()
		<-r.done
		return fmt.Errorf("%w: FFmpeg did not finalize within %s", ErrDevice, timeout)
	}

	if r.err != nil {
		var exitErr *exec.ExitError
		if errors.As(r.err, &exitErr) {
			// Exit code 255 is ffmpeg's normal answer to an interrupt
			if exitErr.ExitCode() == 255 || interruptedExit(exitErr.ProcessState) {
				return nil
			}
		}
		slog.Debug("FFmpeg stderr", "output", r.stderr.Tail())
		return fmt.Errorf("%w: FFmpeg process failed: %w", ErrDevice, r.err)
	}

	slog.Debug("FFmpeg exited successfully")
	return nil
}

// kill terminates ffmpeg without letting it finalize
func (r *ffmpegRun) kill() {
	if r.exited() {
		return
	}
	r.cmd.Process.Kill()
	<-r.done
}

// peakToAmplitude converts a dBFS peak level to a 16-bit amplitude
func peakToAmplitude(level string) (int32, bool) {
	if level == "-inf" {
		return 0, true
	}
	db, err := strconv.ParseFloat(level, 64)
	if err != nil {
		return 0, false
	}
	amplitude := math.Round(maxAmplitude16 * math.Pow(10, db/20))
	if amplitude > maxAmplitude16 {
		amplitude = maxAmplitude16
	}
	if amplitude < 0 {
		amplitude = 0
	}
	return int32(amplitude), true
}

// ffmpegOutput splits ffmpeg stderr into lines, keeps a short tail for
// error reports and feeds peak levels to the meter.
type ffmpegOutput struct {
	mu      sync.Mutex
	log     io.Writer
	partial []byte
	tail    []string
	onPeak  func(int32)
}

func newFFmpegOutput(log io.Writer, onPeak func(int32)) *ffmpegOutput {
	return &ffmpegOutput{log: log, onPeak: onPeak}
}

func (o *ffmpegOutput) Write(p []byte) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.partial = append(o.partial, p...)
	for {
		i := bytes.IndexByte(o.partial, '\n')
		if i < 0 {
			break
		}
		line := strings.TrimRight(string(o.partial[:i]), "\r")
		o.partial = o.partial[i+1:]
		o.handleLine(line)
	}
	return len(p), nil
}

func (o *ffmpegOutput) handleLine(line string) {
	if m := peakLevelPattern.FindStringSubmatch(line); m != nil {
		if amplitude, ok := peakToAmplitude(m[1]); ok && o.onPeak != nil {
			o.onPeak(amplitude)
		}
		return
	}
	// Metering lines arrive per audio frame and would drown the tail
	if strings.Contains(line, "Parsed_ametadata") {
		return
	}

	fmt.Fprintln(o.log, line)
	o.tail = append(o.tail, line)
	if len(o.tail) > stderrTailLines {
		o.tail = o.tail[len(o.tail)-stderrTailLines:]
	}
}

// Tail returns the last lines ffmpeg wrote
func (o *ffmpegOutput) Tail() string {
	if o == nil {
		return ""
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	return strings.Join(o.tail, "\n")
}
