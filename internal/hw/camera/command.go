package camera

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"github.com/cjeanneret/ClassifyEverything/internal/debug"
)

// FocusPlaceholder in a command argument is replaced by the current focus mode.
const FocusPlaceholder = "{focus}"

// CommandDevice captures stills by running an external program that writes
// one encoded image to stdout, e.g.
//
//	libcamera-still -n -t 1 --autofocus-mode {focus} -e jpg -o -
//
// Captures are serialized: the sensor can only serve one at a time.
type CommandDevice struct {
	base
	argv []string

	captureMu sync.Mutex
}

// NewCommandDevice creates a device that runs argv for every capture.
func NewCommandDevice(info Info, argv []string) *CommandDevice {
	return &CommandDevice{
		base: base{info: info},
		argv: append([]string(nil), argv...),
	}
}

// Args returns the argv for the next capture with placeholders expanded.
func (d *CommandDevice) Args() []string {
	focus := d.FocusMode().String()
	args := make([]string, len(d.argv))
	for i, a := range d.argv {
		args[i] = strings.ReplaceAll(a, FocusPlaceholder, focus)
	}
	return args
}

// Capture runs the command and returns its stdout.
func (d *CommandDevice) Capture(ctx context.Context) ([]byte, error) {
	d.captureMu.Lock()
	defer d.captureMu.Unlock()

	args := d.Args()
	if len(args) == 0 {
		return nil, fmt.Errorf("camera %s: empty capture command", d.info.ID)
	}
	debug.Verbose("Camera %s: running %v", d.info.ID, args)

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return nil, fmt.Errorf("camera %s: %s: %w: %s", d.info.ID, args[0], err, msg)
		}
		return nil, fmt.Errorf("camera %s: %s: %w", d.info.ID, args[0], err)
	}

	debug.Trace("Camera %s: captured %d bytes", d.info.ID, stdout.Len())
	return stdout.Bytes(), nil
}
