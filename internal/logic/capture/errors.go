package capture

import "errors"

// Camera error taxonomy. Every failure of the capture pipeline wraps one of these.
var (
	ErrSessionAlreadyRunning = errors.New("capture session is already running")
	ErrSessionMissing        = errors.New("capture session is missing or not running")
	ErrInputsInvalid         = errors.New("capture inputs are invalid")
	ErrInvalidOperation      = errors.New("invalid capture operation")
	ErrNoCamerasAvailable    = errors.New("no cameras available")
	ErrUnknown               = errors.New("unknown capture error")
)
