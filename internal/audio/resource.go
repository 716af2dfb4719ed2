package audio

import (
	"fmt"
	"log/slog"
)

// Resource drives one recording Device through its lifecycle:
//
//	IDLE -> PREPARED -> RECORDING <-> PAUSED -> STOPPED -> RELEASED
//
// A device failure moves the resource to ERROR, from which only Release
// is accepted. Calls outside an operation's allowed states return a
// *StateError and leave both the state and the device untouched.
//
// Resource does no locking. Callers must not use one Resource from
// several goroutines at the same time.
type Resource struct {
	device     Device
	profile    Profile
	caps       Capabilities
	state      State
	outputFile string
}

// NewResource binds a device to a codec profile. When caps is nil the
// device is asked for its capabilities if it implements Capabilities;
// otherwise pause and resume are treated as unsupported.
func NewResource(device Device, profile Profile, caps Capabilities) *Resource {
	if caps == nil {
		if dc, ok := device.(Capabilities); ok {
			caps = dc
		} else {
			caps = StaticCapabilities(false)
		}
	}
	return &Resource{
		device:  device,
		profile: profile,
		caps:    caps,
		state:   StateIdle,
	}
}

// State returns the current lifecycle state
func (r *Resource) State() State {
	return r.state
}

// Profile returns the bound codec profile
func (r *Resource) Profile() Profile {
	return r.profile
}

// OutputFile returns the destination path, empty until SetOutputFile is called
func (r *Resource) OutputFile() string {
	return r.outputFile
}

// PauseSupported reports whether Pause and Resume currently do anything
func (r *Resource) PauseSupported() bool {
	return r.caps.PauseSupported()
}

// SetOutputFile records the destination path. The device is not touched
// until Prepare.
func (r *Resource) SetOutputFile(path string) error {
	if err := r.require("set output file", StateIdle); err != nil {
		return err
	}
	if path == "" {
		return fmt.Errorf("set output file: %w: empty path", ErrIO)
	}
	r.outputFile = path
	return nil
}

// Prepare applies the profile configuration in order and commits it to
// the device together with the output path.
func (r *Resource) Prepare() error {
	if err := r.require("prepare", StateIdle); err != nil {
		return err
	}
	if r.outputFile == "" {
		return &StateError{Op: "prepare", State: r.state, Reason: "output file not set"}
	}

	for _, cmd := range Commands(r.profile) {
		if err := r.device.Apply(cmd); err != nil {
			r.state = StateFailed
			return classify("prepare: apply "+cmd.String(), err, ErrConfiguration)
		}
	}
	if err := r.device.Prepare(r.outputFile); err != nil {
		r.state = StateFailed
		return classify("prepare", err, ErrConfiguration)
	}

	r.state = StatePrepared
	slog.Debug("Recording prepared", "profile", r.profile.Name(), "output", r.outputFile)
	return nil
}

// Start begins capture into the output file
func (r *Resource) Start() error {
	if err := r.require("start", StatePrepared); err != nil {
		return err
	}
	if err := r.device.Start(); err != nil {
		r.state = StateFailed
		return classify("start", err, ErrDevice)
	}
	r.state = StateRecording
	slog.Debug("Recording started", "profile", r.profile.Name(), "output", r.outputFile)
	return nil
}

// Pause suspends capture without finalizing the file. When the device
// cannot pause this is a no-op in every state and never fails.
func (r *Resource) Pause() error {
	if !r.caps.PauseSupported() {
		slog.Debug("Pause not supported, ignoring", "state", r.state)
		return nil
	}
	if err := r.require("pause", StateRecording); err != nil {
		return err
	}
	if err := r.device.Pause(); err != nil {
		r.state = StateFailed
		return classify("pause", err, ErrDevice)
	}
	r.state = StatePaused
	return nil
}

// Resume continues a paused capture. Same capability gate as Pause.
func (r *Resource) Resume() error {
	if !r.caps.PauseSupported() {
		slog.Debug("Resume not supported, ignoring", "state", r.state)
		return nil
	}
	if err := r.require("resume", StatePaused); err != nil {
		return err
	}
	if err := r.device.Resume(); err != nil {
		r.state = StateFailed
		return classify("resume", err, ErrDevice)
	}
	r.state = StateRecording
	return nil
}

// Stop finalizes the output file
func (r *Resource) Stop() error {
	if err := r.require("stop", StateRecording, StatePaused); err != nil {
		return err
	}
	if err := r.device.Stop(); err != nil {
		r.state = StateFailed
		return classify("stop", err, ErrDevice)
	}
	r.state = StateStopped
	slog.Debug("Recording stopped", "output", r.outputFile)
	return nil
}

// Release frees the device. The resource is unusable afterwards and a
// second Release fails with ErrInvalidState.
func (r *Resource) Release() error {
	if r.state == StateReleased {
		return &StateError{Op: "release", State: r.state, Reason: "already released"}
	}
	err := r.device.Release()
	r.state = StateReleased
	if err != nil {
		return classify("release", err, ErrDevice)
	}
	return nil
}

// MaxAmplitude returns the peak input amplitude since the previous call,
// or AmplitudeUnsupported when the device has no metering.
func (r *Resource) MaxAmplitude() (int, error) {
	if err := r.require("max amplitude", StateRecording, StatePaused); err != nil {
		return 0, err
	}
	amplitude, ok := r.device.MaxAmplitude()
	if !ok {
		return AmplitudeUnsupported, nil
	}
	return amplitude, nil
}

func (r *Resource) require(op string, allowed ...State) error {
	for _, s := range allowed {
		if r.state == s {
			return nil
		}
	}
	return &StateError{Op: op, State: r.state, Allowed: allowed}
}
