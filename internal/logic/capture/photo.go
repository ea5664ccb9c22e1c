package capture

import (
	"bytes"
	"image"
	"image/jpeg"
	"time"

	"github.com/google/uuid"
	"github.com/rwcarlsen/goexif/exif"

	"github.com/cjeanneret/ClassifyEverything/internal/logic/geometry"
)

// Photo is a captured, decoded still ready for display and classification.
type Photo struct {
	ID          uuid.UUID
	JPEG        []byte
	Image       image.Image
	Orientation geometry.Orientation
	DeviceID    string
	CapturedAt  time.Time
}

// JPEGData returns buf's data if it is a JPEG stream (SOI marker), and false otherwise.
func JPEGData(buf *SampleBuffer) ([]byte, bool) {
	if buf == nil || len(buf.Data) < 4 {
		return nil, false
	}
	if buf.Data[0] != 0xFF || buf.Data[1] != 0xD8 {
		return nil, false
	}
	return buf.Data, true
}

// DecodePhoto turns a JPEG sample buffer into a Photo.
// It returns ErrUnknown when the buffer is missing or cannot be decoded.
func DecodePhoto(id uuid.UUID, buf *SampleBuffer) (*Photo, error) {
	data, ok := JPEGData(buf)
	if !ok {
		return nil, ErrUnknown
	}
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, ErrUnknown
	}
	return &Photo{
		ID:          id,
		JPEG:        data,
		Image:       img,
		Orientation: readOrientation(data),
		DeviceID:    buf.DeviceID,
		CapturedAt:  buf.CapturedAt,
	}, nil
}

// readOrientation returns the EXIF orientation of a JPEG, or OrientationUp.
func readOrientation(data []byte) geometry.Orientation {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return geometry.OrientationUp
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return geometry.OrientationUp
	}
	v, err := tag.Int(0)
	if err != nil {
		return geometry.OrientationUp
	}
	o := geometry.Orientation(v)
	if !o.Valid() {
		return geometry.OrientationUp
	}
	return o
}
