package capture

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"sync"

	"github.com/cjeanneret/ClassifyEverything/internal/debug"
	"github.com/cjeanneret/ClassifyEverything/internal/logic/geometry"
)

// VideoGravity defines how frames are fitted into the layer frame.
type VideoGravity int

const (
	GravityResizeAspect     VideoGravity = iota // fit, letterboxed
	GravityResizeAspectFill                     // fill, cropped
	GravityResize                               // stretch
)

// VideoOrientation is the orientation preview frames are shown in.
type VideoOrientation int

const (
	OrientationPortrait VideoOrientation = iota
	OrientationPortraitUpsideDown
	OrientationLandscapeRight
	OrientationLandscapeLeft
)

// PreviewLayer renders live frames of a running session.
type PreviewLayer struct {
	session *Session

	mu          sync.RWMutex
	frame       image.Rectangle
	gravity     VideoGravity
	orientation VideoOrientation
}

// NewPreviewLayer creates a layer bound to session.
func NewPreviewLayer(session *Session) *PreviewLayer {
	return &PreviewLayer{session: session}
}

func (l *PreviewLayer) SetFrame(r image.Rectangle) {
	l.mu.Lock()
	l.frame = r
	l.mu.Unlock()
}

func (l *PreviewLayer) Frame() image.Rectangle {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.frame
}

func (l *PreviewLayer) SetVideoGravity(g VideoGravity) {
	l.mu.Lock()
	l.gravity = g
	l.mu.Unlock()
}

func (l *PreviewLayer) VideoGravity() VideoGravity {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.gravity
}

func (l *PreviewLayer) SetOrientation(o VideoOrientation) {
	l.mu.Lock()
	l.orientation = o
	l.mu.Unlock()
}

func (l *PreviewLayer) Orientation() VideoOrientation {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.orientation
}

// Render grabs one frame from the session camera and fits it to the layer frame.
func (l *PreviewLayer) Render(ctx context.Context) (image.Image, error) {
	dev, err := l.session.device()
	if err != nil {
		return nil, err
	}
	data, err := dev.Capture(ctx)
	if err != nil {
		return nil, fmt.Errorf("preview frame: %w", err)
	}
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("preview frame: %w", ErrUnknown)
	}
	img = readOrientation(data).Apply(img)

	l.mu.RLock()
	frame, gravity, orientation := l.frame, l.gravity, l.orientation
	l.mu.RUnlock()

	img = rotateFor(orientation, img)
	if frame.Empty() {
		return img, nil
	}

	debug.Trace("Preview: %v frame into %dx%d", img.Bounds().Size(), frame.Dx(), frame.Dy())
	switch gravity {
	case GravityResizeAspect:
		return geometry.Fit(img, frame.Dx(), frame.Dy(), geometry.ScaleFit), nil
	case GravityResize:
		return geometry.Fit(img, frame.Dx(), frame.Dy(), geometry.ScaleFill), nil
	default:
		return geometry.Fit(img, frame.Dx(), frame.Dy(), geometry.CenterCrop), nil
	}
}

// rotateFor turns a frame so its long side matches the requested orientation.
func rotateFor(o VideoOrientation, img image.Image) image.Image {
	b := img.Bounds()
	landscape := b.Dx() > b.Dy()
	portrait := b.Dy() > b.Dx()
	switch o {
	case OrientationPortrait:
		if landscape {
			return geometry.OrientationRight.Apply(img)
		}
	case OrientationPortraitUpsideDown:
		if landscape {
			return geometry.OrientationLeft.Apply(img)
		}
	case OrientationLandscapeRight:
		if portrait {
			return geometry.OrientationLeft.Apply(img)
		}
	case OrientationLandscapeLeft:
		if portrait {
			return geometry.OrientationRight.Apply(img)
		}
	}
	return img
}
