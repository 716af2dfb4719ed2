package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/audiolibrelab/memocapture/internal/config"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	cfg          *config.Config
	cfgFile      string
	profile      string
	logFile      string
	verboseLevel int

	// logOutput receives slog records and, from verbose level 2, ffmpeg output
	logOutput io.Writer = os.Stderr
)

var rootCmd = &cobra.Command{
	Use:   "memocapture",
	Short: "Voice memo recorder with pausable AAC and AMR capture",
	Long: `MemoCapture records voice memos from a microphone through ffmpeg.

Recordings use a codec profile: "aac" stores AAC in an MPEG-4 container
at a configurable bit rate, "amr" stores narrow-band AMR for small files.
Recordings can be paused and resumed where the platform allows it.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Configure slog based on verbose level
		setupLogging(verboseLevel, logFile)

		// codecs and sources work without any configuration
		if (cmd.Name() == "codecs" || cmd.Name() == "sources") && cfgFile == "" {
			return nil
		}

		var err error
		cfg, err = loadConfig()
		return err
	},
}

// loadConfig resolves the configuration, falling back to built-in defaults
// when the default config file does not exist.
func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		path = defaultConfigPath()
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			if profile != "" && profile != config.DefaultProfileName {
				return nil, fmt.Errorf("profile %q requested but %s does not exist", profile, path)
			}
			slog.Debug("No config file found, using defaults", "path", path)
			return config.Default(), nil
		}
	}

	loaded, err := config.LoadWithProfile(path, profile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	slog.Debug("Configuration loaded", "path", path, "profile", loaded.Name)
	return loaded, nil
}

func defaultConfigPath() string {
	return os.ExpandEnv("$HOME/.config/memocapture.yaml")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/memocapture.yaml)")
	rootCmd.PersistentFlags().StringVar(&profile, "profile", "", "configuration profile to use (overrides active_config from file)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "also write logs to this file, rotated at 10 MB")
	rootCmd.PersistentFlags().IntVarP(&verboseLevel, "verbose", "v", 0, "verbose level: 0=info, 1=debug, 2=ffmpeg output, 3=max tracing")

	// Add subcommands
	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(codecsCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(sourcesCmd)
	rootCmd.AddCommand(infoCmd)
}

// setupLogging configures slog based on the verbose level
func setupLogging(level int, file string) {
	var slogLevel slog.Level
	switch {
	case level <= 0:
		slogLevel = slog.LevelInfo
	default:
		// Levels 2 and 3 only add ffmpeg output on top of debug
		slogLevel = slog.LevelDebug
	}

	// Configure text handler for clean terminal output
	opts := &slog.HandlerOptions{
		Level: slogLevel,
	}
	logOutput = os.Stderr
	if file != "" {
		logOutput = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   file,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     30, // days
		})
	}
	handler := slog.NewTextHandler(logOutput, opts)
	slog.SetDefault(slog.New(handler))

	// Set environment variables for maximum tracing (level 3)
	if level >= 3 {
		os.Setenv("FFREPORT", "level=48")
	}
}
