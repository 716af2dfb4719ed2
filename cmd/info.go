package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/audiolibrelab/memocapture/internal/audio"
	"github.com/audiolibrelab/memocapture/internal/config"
	"github.com/audiolibrelab/memocapture/internal/service"

	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info [memo-name]",
	Short: "Show resolved configuration and file path for a memo",
	Long:  `Display the resolved configuration with inheritance indicators and the file path the given memo name would be recorded to. Shows which values are inherited from default vs profile-specific.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := audio.ProfileByName(cfg.Codec.Profile, cfg.Codec.BitrateKbps)
		if err != nil {
			return err
		}

		inheritance := cfg.Inheritance
		if inheritance == nil {
			inheritance = &config.InheritanceInfo{}
		}

		if len(args) == 1 {
			cleanName := service.CleanFileName(args[0])

			fmt.Printf("=== FILE PATHS ===\n")
			fmt.Printf("output: %s\n", filepath.Join(cfg.Output.Directory, cleanName+p.Extension()))
			fmt.Printf("clean_name: %s\n\n", cleanName)
		}

		fmt.Printf("=== RESOLVED CONFIGURATION (%s) ===\n", cfg.Name)

		fmt.Printf("\n[Codec]\n")
		fmt.Printf("profile: %s %s\n", p.Name(), getInheritanceIndicator(inheritance.Codec.Profile))
		if p.Name() == audio.ProfileNameAAC {
			fmt.Printf("bitrate_kbps: %d %s\n", cfg.Codec.BitrateKbps, getInheritanceIndicator(inheritance.Codec.BitrateKbps))
		}
		fmt.Printf("commands:\n")
		for i, c := range audio.Commands(p) {
			fmt.Printf("  %d. %s\n", i+1, c)
		}

		fmt.Printf("\n[Device]\n")
		fmt.Printf("backend: %s\n", cfg.Device.Backend)
		fmt.Printf("source: %s\n", displayValue(cfg.Device.Source, "default"))
		fmt.Printf("ffmpeg: %s\n", cfg.Device.FFmpeg)
		fmt.Printf("pause: %s\n", cfg.Device.Pause)
		fmt.Printf("metering: %t\n", cfg.Device.Metering)

		fmt.Printf("\n[Output]\n")
		fmt.Printf("directory: %s %s\n", cfg.Output.Directory, getInheritanceIndicator(inheritance.Output.Directory))

		return nil
	},
}

func displayValue(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

// getInheritanceIndicator returns a formatted indicator for inheritance status
func getInheritanceIndicator(status string) string {
	switch status {
	case "inherited":
		return "[inherited]"
	case "profile-specific":
		return "[profile-specific]"
	default:
		return "[built-in]"
	}
}
