package cmd

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/audiolibrelab/memocapture/internal/audio"
	"github.com/audiolibrelab/memocapture/internal/config"
	"github.com/audiolibrelab/memocapture/internal/service"

	"github.com/spf13/cobra"
)

const meterWidth = 30

var recordCmd = &cobra.Command{
	Use:   "record [memo-name]",
	Short: "Record a voice memo",
	Long: `Record a voice memo from the configured input source.

Press Enter to pause or resume, Ctrl+C to stop and save. Without a name
the memo is named after the current time.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var name string
		if len(args) == 1 {
			name = args[0]
		}

		if err := applyRecordFlags(cmd, cfg); err != nil {
			return err
		}
		duration, _ := cmd.Flags().GetDuration("duration")
		slog.Debug("Record command started", "name", name, "codec", cfg.Codec.Profile, "bitrate_kbps", cfg.Codec.BitrateKbps)

		// ffmpeg output is only shown from verbose level 2
		var logWriter io.Writer = io.Discard
		if verboseLevel >= 2 {
			logWriter = logOutput
		}

		svc := service.New(cfg, logWriter)
		defer svc.Cleanup()

		session, err := svc.Start(name)
		if err != nil {
			return err
		}

		fmt.Printf("Recording %s (%s)\n", session.OutputFile, session.Profile)
		if svc.PauseSupported() {
			fmt.Println("Press Enter to pause/resume, Ctrl+C to stop")
		} else {
			fmt.Println("Press Ctrl+C to stop (pause is not available on this device)")
		}

		return runRecording(svc, duration, cfg.Device.Metering)
	},
}

// applyRecordFlags overrides the resolved configuration with command line flags
func applyRecordFlags(cmd *cobra.Command, cfg *config.Config) error {
	if cmd.Flags().Changed("codec") {
		codec, _ := cmd.Flags().GetString("codec")
		codec = strings.ToLower(strings.TrimSpace(codec))
		if codec != cfg.Codec.Profile {
			cfg.Codec.Profile = codec
			cfg.Codec.BitrateKbps = 0
			if codec == audio.ProfileNameAAC {
				cfg.Codec.BitrateKbps = config.DefaultBitrateKbps
			}
		}
	}
	if cmd.Flags().Changed("bitrate") {
		cfg.Codec.BitrateKbps, _ = cmd.Flags().GetInt("bitrate")
	}
	if cmd.Flags().Changed("meter") {
		cfg.Device.Metering, _ = cmd.Flags().GetBool("meter")
	}
	if cmd.Flags().Changed("output") {
		cfg.Output.Directory, _ = cmd.Flags().GetString("output")
	}

	// Fail before touching the device
	if _, err := audio.ProfileByName(cfg.Codec.Profile, cfg.Codec.BitrateKbps); err != nil {
		return err
	}
	return nil
}

// runRecording waits for the user, a signal or the duration limit, then stops
func runRecording(svc service.Service, limit time.Duration, metering bool) error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	done := make(chan struct{})
	defer close(done)
	toggle := watchEnter(os.Stdin, done)

	var deadline <-chan time.Time
	if limit > 0 {
		timer := time.NewTimer(limit)
		defer timer.Stop()
		deadline = timer.C
	}

	var meter <-chan time.Time
	if metering {
		ticker := time.NewTicker(200 * time.Millisecond)
		defer ticker.Stop()
		meter = ticker.C
	}

	for {
		select {
		case _, ok := <-toggle:
			if !ok {
				// stdin closed, only signals and the duration limit remain
				toggle = nil
				continue
			}
			togglePause(svc)

		case <-meter:
			if amplitude := svc.MaxAmplitude(); amplitude != audio.AmplitudeUnsupported {
				current := svc.CurrentSession()
				fmt.Fprintf(os.Stderr, "\r%s %s", formatDuration(current.Duration), levelBar(amplitude))
			}

		case <-deadline:
			slog.Info("Duration limit reached", "limit", limit)
			return stopRecording(svc)

		case <-sigChan:
			return stopRecording(svc)
		}
	}
}

// watchEnter emits one value per input line until in ends or done is closed.
// The returned channel is closed when the reader goroutine exits.
func watchEnter(in io.Reader, done <-chan struct{}) <-chan struct{} {
	lines := make(chan struct{})
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case <-done:
				return
			default:
			}
			select {
			case lines <- struct{}{}:
			case <-done:
				return
			}
		}
	}()
	return lines
}

func togglePause(svc service.Service) {
	if !svc.PauseSupported() {
		fmt.Println("Pause is not supported on this device")
		return
	}

	current := svc.CurrentSession()
	if current.Paused {
		if err := svc.Resume(); err != nil {
			slog.Error("Failed to resume", "error", err)
			return
		}
		fmt.Println("\nResumed")
		return
	}

	if err := svc.Pause(); err != nil {
		slog.Error("Failed to pause", "error", err)
		return
	}
	fmt.Printf("\nPaused at %s, press Enter to resume\n", formatDuration(current.Duration))
}

func stopRecording(svc service.Service) error {
	fmt.Println()
	slog.Info("Stopping recording...")

	session, err := svc.Stop()
	if err != nil {
		return err
	}

	fmt.Printf("Saved %s (%s)\n", session.File, formatDuration(session.Duration))
	return nil
}

// levelBar renders an amplitude in 0..32767 as a fixed width meter
func levelBar(amplitude int) string {
	filled := amplitude * meterWidth / 32767
	if filled > meterWidth {
		filled = meterWidth
	}
	if filled < 0 {
		filled = 0
	}
	return "[" + strings.Repeat("#", filled) + strings.Repeat(" ", meterWidth-filled) + "]"
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60)
}

func init() {
	recordCmd.Flags().StringP("codec", "c", "", "codec profile: aac or amr (overrides config)")
	recordCmd.Flags().IntP("bitrate", "b", 0, "aac bit rate in kbps (overrides config)")
	recordCmd.Flags().DurationP("duration", "d", 0, "stop automatically after this duration (e.g. 90s, 5m)")
	recordCmd.Flags().Bool("meter", true, "show an input level meter while recording")
	recordCmd.Flags().StringP("output", "o", "", "output directory (overrides config)")
}
