package audio

// State represents the lifecycle state of a recording resource
type State string

const (
	StateIdle      State = "IDLE"
	StatePrepared  State = "PREPARED"
	StateRecording State = "RECORDING"
	StatePaused    State = "PAUSED"
	StateStopped   State = "STOPPED"
	StateReleased  State = "RELEASED"
	StateFailed    State = "ERROR"
)

// AmplitudeUnsupported is returned by MaxAmplitude when the device cannot meter input
const AmplitudeUnsupported = -1

// Device is the hardware recording handle driven by a Resource.
//
// A Device is owned by exactly one Resource and is never called
// concurrently. Apply receives the profile commands in order before
// Prepare commits them together with the output path.
type Device interface {
	Apply(cmd Command) error
	Prepare(outputFile string) error
	Start() error
	Pause() error
	Resume() error
	Stop() error
	Release() error

	// MaxAmplitude returns the peak input amplitude since the previous call.
	// ok is false when the device has no metering.
	MaxAmplitude() (amplitude int, ok bool)
}

// Capabilities reports optional device features that are only known at runtime
type Capabilities interface {
	PauseSupported() bool
}

// StaticCapabilities is a fixed capability answer
type StaticCapabilities bool

// PauseSupported returns the fixed answer
func (c StaticCapabilities) PauseSupported() bool {
	return bool(c)
}

// CapabilityFunc adapts a function to the Capabilities interface
type CapabilityFunc func() bool

// PauseSupported calls f
func (f CapabilityFunc) PauseSupported() bool {
	return f()
}
