package camera

import (
	"context"
	"fmt"
	"os"

	"github.com/cjeanneret/ClassifyEverything/internal/debug"
)

// FileDevice "captures" by reading an image file from disk.
// Used for development on PC or testing, like the mock GPIO driver.
type FileDevice struct {
	base
	path string
}

// NewFileDevice creates a device that returns the content of path on every capture.
func NewFileDevice(info Info, path string) *FileDevice {
	return &FileDevice{
		base: base{info: info},
		path: path,
	}
}

// Capture reads the file.
func (d *FileDevice) Capture(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(d.path)
	if err != nil {
		return nil, fmt.Errorf("camera %s: %w", d.info.ID, err)
	}
	debug.Trace("Camera %s: read %d bytes from %s", d.info.ID, len(data), d.path)
	return data, nil
}
