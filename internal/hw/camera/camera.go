package camera

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Camera is the high-level interface used by the rest of the application.
// It represents an abstract "camera", regardless of how it's driven
// (libcamera command, file on disk, network, etc.).
type Camera interface {
	// Capture takes a single still and returns the encoded image bytes.
	Capture(ctx context.Context) ([]byte, error)
}

// Device is a physical camera that a capture session borrows.
// Configuration (focus mode) requires holding the configuration lock.
type Device interface {
	Camera
	ID() string
	Name() string
	Type() DeviceType
	Position() Position

	LockForConfiguration() error
	UnlockForConfiguration()
	SetFocusMode(mode FocusMode) error
	FocusMode() FocusMode
}

var (
	// ErrDeviceBusy is returned by LockForConfiguration when another client holds the lock.
	ErrDeviceBusy = errors.New("camera: device is locked for configuration by another client")
	// ErrNotLocked is returned when configuring a device without holding its lock.
	ErrNotLocked = errors.New("camera: device is not locked for configuration")
	// ErrFocusModeUnsupported is returned for focus modes the device cannot do.
	ErrFocusModeUnsupported = errors.New("camera: focus mode not supported")
)

// Position is the facing of a camera relative to the device it is mounted on.
type Position int

const (
	PositionUnspecified Position = iota
	PositionBack
	PositionFront
)

func (p Position) String() string {
	switch p {
	case PositionBack:
		return "back"
	case PositionFront:
		return "front"
	default:
		return "unspecified"
	}
}

// ParsePosition maps a config string to a Position.
func ParsePosition(s string) (Position, error) {
	switch strings.ToLower(s) {
	case "back":
		return PositionBack, nil
	case "front":
		return PositionFront, nil
	case "", "unspecified":
		return PositionUnspecified, nil
	default:
		return PositionUnspecified, fmt.Errorf("unknown camera position %q", s)
	}
}

// DeviceType is the lens class of a camera.
type DeviceType string

const (
	WideAngle DeviceType = "wide_angle"
	Telephoto DeviceType = "telephoto"
)

// FocusMode selects how the lens focuses.
type FocusMode int

const (
	FocusLocked FocusMode = iota
	FocusAuto
	FocusContinuousAuto
)

// String returns the libcamera autofocus-mode name.
func (m FocusMode) String() string {
	switch m {
	case FocusAuto:
		return "auto"
	case FocusContinuousAuto:
		return "continuous"
	default:
		return "manual"
	}
}

// Info is the static description shared by every device implementation.
type Info struct {
	ID       string
	Name     string
	Type     DeviceType
	Position Position
}

// base carries the identity, configuration lock and focus state common to all devices.
type base struct {
	info Info

	mu     sync.Mutex
	locked bool
	focus  FocusMode
}

func (b *base) ID() string         { return b.info.ID }
func (b *base) Name() string       { return b.info.Name }
func (b *base) Type() DeviceType   { return b.info.Type }
func (b *base) Position() Position { return b.info.Position }

func (b *base) LockForConfiguration() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.locked {
		return ErrDeviceBusy
	}
	b.locked = true
	return nil
}

func (b *base) UnlockForConfiguration() {
	b.mu.Lock()
	b.locked = false
	b.mu.Unlock()
}

func (b *base) SetFocusMode(mode FocusMode) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.locked {
		return ErrNotLocked
	}
	if mode < FocusLocked || mode > FocusContinuousAuto {
		return ErrFocusModeUnsupported
	}
	b.focus = mode
	return nil
}

func (b *base) FocusMode() FocusMode {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.focus
}
