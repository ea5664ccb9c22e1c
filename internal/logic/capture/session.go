package capture

import (
	"fmt"
	"sync"

	"github.com/cjeanneret/ClassifyEverything/internal/debug"
	"github.com/cjeanneret/ClassifyEverything/internal/hw/camera"
)

// DeviceInput binds a camera device as a session input.
type DeviceInput struct {
	device camera.Device
}

// NewDeviceInput wraps d. It fails with ErrInputsInvalid for a nil device.
func NewDeviceInput(d camera.Device) (*DeviceInput, error) {
	if d == nil {
		return nil, fmt.Errorf("new device input: %w", ErrInputsInvalid)
	}
	return &DeviceInput{device: d}, nil
}

// Device returns the bound camera.
func (in *DeviceInput) Device() camera.Device {
	return in.device
}

// Session connects one camera input to one photo output.
// Inputs and outputs are attached during preparation and only read afterwards.
type Session struct {
	mu      sync.RWMutex
	input   *DeviceInput
	output  *PhotoOutput
	running bool
}

// NewSession creates an empty, stopped session.
func NewSession() *Session {
	return &Session{}
}

// CanAddInput reports whether in can be attached.
func (s *Session) CanAddInput(in *DeviceInput) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return in != nil && s.input == nil && !s.running
}

// AddInput attaches in.
func (s *Session) AddInput(in *DeviceInput) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if in == nil || s.input != nil {
		return fmt.Errorf("add input: %w", ErrInputsInvalid)
	}
	if s.running {
		return fmt.Errorf("add input: %w", ErrSessionAlreadyRunning)
	}
	s.input = in
	return nil
}

// CanAddOutput reports whether out can be attached.
func (s *Session) CanAddOutput(out *PhotoOutput) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return out != nil && s.output == nil && !s.running
}

// AddOutput attaches out and binds it to the session.
func (s *Session) AddOutput(out *PhotoOutput) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if out == nil || s.output != nil {
		return fmt.Errorf("add output: %w", ErrInvalidOperation)
	}
	if s.running {
		return fmt.Errorf("add output: %w", ErrSessionAlreadyRunning)
	}
	s.output = out
	out.attach(s)
	return nil
}

// Input returns the attached input, or nil.
func (s *Session) Input() *DeviceInput {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.input
}

// Output returns the attached photo output, or nil.
func (s *Session) Output() *PhotoOutput {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.output
}

// StartRunning starts the session. An input and an output must be attached.
func (s *Session) StartRunning() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.running:
		return ErrSessionAlreadyRunning
	case s.input == nil:
		return fmt.Errorf("start session: no camera input: %w", ErrInputsInvalid)
	case s.output == nil:
		return fmt.Errorf("start session: no photo output: %w", ErrInvalidOperation)
	}
	s.running = true
	debug.Info("Capture session running (camera %s)", s.input.device.ID())
	return nil
}

// StopRunning stops the session. Stopping a stopped session is a no-op.
func (s *Session) StopRunning() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		s.running = false
		debug.Info("Capture session stopped")
	}
}

// IsRunning reports whether the session is running.
func (s *Session) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// device returns the input camera of a running session.
func (s *Session) device() (camera.Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.running || s.input == nil {
		return nil, ErrSessionMissing
	}
	return s.input.device, nil
}
