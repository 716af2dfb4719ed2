package cmd

import (
	"fmt"
	"log/slog"
	"runtime"

	"github.com/audiolibrelab/memocapture/internal/audio"

	"github.com/spf13/cobra"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List available audio input sources",
	Long: `List the capture sources of every input backend found on this system.
Without --config every available backend is listed, otherwise only the
configured one.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		backends := audio.GetAvailableBackends()
		if cfg != nil && cfg.Device.Backend != "" && cfg.Device.Backend != string(audio.BackendTypeAuto) {
			backends = []audio.BackendType{audio.BackendType(cfg.Device.Backend)}
		}

		fmt.Printf("Audio Sources (%s)\n", runtime.GOOS)
		fmt.Printf("=======================================\n\n")

		for _, backendType := range backends {
			if err := listSources(backendType); err != nil {
				slog.Warn("Could not list sources", "backend", backendType, "error", err)
			}
		}

		fmt.Printf("Configure the input with device.backend and device.source, e.g.:\n")
		fmt.Printf("  device:\n    backend: pulse\n    source: alsa_input.usb-Blue_Microphones-00.mono-fallback\n")
		return nil
	},
}

// listSources prints the sources of one backend
func listSources(backendType audio.BackendType) error {
	backend, err := audio.NewBackend(backendType)
	if err != nil {
		return err
	}

	sources, err := backend.ListSources()
	if err != nil {
		return fmt.Errorf("failed to get %s sources: %w", backend.GetType(), err)
	}

	fmt.Printf("%s (%d found):\n", backend.GetType(), len(sources))
	for i, source := range sources {
		fmt.Printf("  %d. %s\n", i+1, source)
	}
	fmt.Println()

	return nil
}
