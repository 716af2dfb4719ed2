package audio

import (
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

// PulseBackend lists capture sources through pactl. It also covers
// PipeWire systems running pipewire-pulse.
type PulseBackend struct{}

// ListSources returns the names of all PulseAudio sources
func (p *PulseBackend) ListSources() ([]string, error) {
	cmd := exec.Command("pactl", "list", "short", "sources")
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("failed to list PulseAudio sources: %w", err)
	}

	return parsePactlSources(string(output)), nil
}

// ValidateSource checks that a source exists. "default" is always accepted.
func (p *PulseBackend) ValidateSource(source string) error {
	if source == "" || source == "default" {
		return nil
	}

	sources, err := p.ListSources()
	if err != nil {
		slog.Debug("Failed to check source existence", "source", source, "error", err)
		return err
	}

	return findSource(source, sources)
}

// GetType returns the backend type
func (p *PulseBackend) GetType() BackendType {
	return BackendTypePulse
}

// parsePactlSources extracts source names from `pactl list short sources`.
// Each line is: index, name, driver, sample spec, state (tab separated).
func parsePactlSources(output string) []string {
	var sources []string
	for _, line := range strings.Split(output, "\n") {
		fields := strings.Split(strings.TrimSpace(line), "\t")
		if len(fields) < 2 {
			continue
		}
		name := strings.TrimSpace(fields[1])
		if name != "" {
			sources = append(sources, name)
		}
	}
	return sources
}

// findSource returns an error unless source appears in sources
func findSource(source string, sources []string) error {
	for _, s := range sources {
		if s == source {
			return nil
		}
	}
	return fmt.Errorf("source not found: %s", source)
}
