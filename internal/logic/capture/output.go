package capture

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cjeanneret/ClassifyEverything/internal/debug"
)

// Codec is the encoding requested for captured photos.
type Codec string

const CodecJPEG Codec = "jpeg"

// PhotoSettings describes one photo capture.
type PhotoSettings struct {
	Codec Codec
}

// NewPhotoSettings returns the default settings (JPEG).
func NewPhotoSettings() PhotoSettings {
	return PhotoSettings{Codec: CodecJPEG}
}

// SampleBuffer is the raw data handed to a PhotoCaptureDelegate.
type SampleBuffer struct {
	Data       []byte
	Codec      Codec
	DeviceID   string
	CapturedAt time.Time
}

// PhotoCaptureDelegate receives the outcome of CapturePhoto.
// Exactly one call is made per capture request, from a background goroutine.
type PhotoCaptureDelegate interface {
	DidFinishProcessingPhoto(id uuid.UUID, buf *SampleBuffer, err error)
}

// PhotoOutput produces still photos from the session's camera.
type PhotoOutput struct {
	mu       sync.RWMutex
	session  *Session
	prepared []PhotoSettings

	inflight sync.WaitGroup
}

// NewPhotoOutput creates an output that is not yet attached to a session.
func NewPhotoOutput() *PhotoOutput {
	return &PhotoOutput{}
}

func (o *PhotoOutput) attach(s *Session) {
	o.mu.Lock()
	o.session = s
	o.mu.Unlock()
}

// SetPreparedPhotoSettings declares the settings captures are expected to use.
func (o *PhotoOutput) SetPreparedPhotoSettings(settings []PhotoSettings) {
	o.mu.Lock()
	o.prepared = append([]PhotoSettings(nil), settings...)
	o.mu.Unlock()
}

// PreparedPhotoSettings returns the prepared settings.
func (o *PhotoOutput) PreparedPhotoSettings() []PhotoSettings {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return append([]PhotoSettings(nil), o.prepared...)
}

// CapturePhoto starts one capture identified by id. The result is delivered
// to delegate; there is no timeout, the capture runs until the device returns
// or ctx is cancelled.
func (o *PhotoOutput) CapturePhoto(ctx context.Context, id uuid.UUID, settings PhotoSettings, delegate PhotoCaptureDelegate) error {
	o.mu.RLock()
	s := o.session
	o.mu.RUnlock()
	if s == nil {
		return ErrSessionMissing
	}
	if settings.Codec != "" && settings.Codec != CodecJPEG {
		return ErrInvalidOperation
	}
	dev, err := s.device()
	if err != nil {
		return err
	}

	debug.Capture(id.String(), "requested from camera "+dev.ID())
	o.inflight.Add(1)
	go func() {
		defer o.inflight.Done()
		data, err := dev.Capture(ctx)
		if err != nil {
			delegate.DidFinishProcessingPhoto(id, nil, err)
			return
		}
		delegate.DidFinishProcessingPhoto(id, &SampleBuffer{
			Data:       data,
			Codec:      CodecJPEG,
			DeviceID:   dev.ID(),
			CapturedAt: time.Now(),
		}, nil)
	}()
	return nil
}

// Wait blocks until every started capture has reached its delegate.
func (o *PhotoOutput) Wait() {
	o.inflight.Wait()
}
