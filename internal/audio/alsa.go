package audio

import (
	"fmt"
	"os/exec"
	"regexp"
	"strings"
)

var alsaHardwarePattern = regexp.MustCompile(`^(plug)?hw:\d+(,\d+)?$`)

// ALSABackend lists capture devices through arecord
type ALSABackend struct{}

// ListSources returns the PCM names reported by `arecord -L`
func (a *ALSABackend) ListSources() ([]string, error) {
	cmd := exec.Command("arecord", "-L")
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("failed to list ALSA devices: %w", err)
	}

	return parseArecordList(string(output)), nil
}

// ValidateSource accepts "default", numeric hw:N,M names and listed PCMs
func (a *ALSABackend) ValidateSource(source string) error {
	if source == "" || source == "default" || alsaHardwarePattern.MatchString(source) {
		return nil
	}

	sources, err := a.ListSources()
	if err != nil {
		return err
	}

	return findSource(source, sources)
}

// GetType returns the backend type
func (a *ALSABackend) GetType() BackendType {
	return BackendTypeALSA
}

// parseArecordList keeps the unindented lines of `arecord -L`; indented
// lines are descriptions of the PCM above them.
func parseArecordList(output string) []string {
	var sources []string
	for _, line := range strings.Split(output, "\n") {
		if line == "" || line[0] == ' ' || line[0] == '\t' {
			continue
		}
		name := strings.TrimSpace(line)
		if name == "null" {
			continue
		}
		sources = append(sources, name)
	}
	return sources
}
