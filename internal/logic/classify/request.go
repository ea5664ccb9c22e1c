package classify

import (
	"errors"
	"fmt"
	"image"

	"github.com/cjeanneret/ClassifyEverything/internal/debug"
	"github.com/cjeanneret/ClassifyEverything/internal/logic/geometry"
)

// ErrConversion is returned when a photo cannot be turned into an analysis image.
var ErrConversion = errors.New("classify: unable to create image from photo")

// Request is one classification of one image. It only reads the shared model.
type Request struct {
	Model         Model
	CropAndScale  geometry.CropAndScale
	MinConfidence float32
}

// NewRequest returns a center-crop request for model.
func NewRequest(model Model) Request {
	return Request{Model: model, CropAndScale: geometry.CenterCrop}
}

// Perform orients img upright, fits it to the model input, runs inference
// and returns the observations ranked by descending confidence.
func (r Request) Perform(img image.Image, orientation geometry.Orientation) ([]Observation, error) {
	if img == nil {
		return nil, ErrConversion
	}
	if r.Model == nil {
		return nil, errors.New("classify: request has no model")
	}
	meta := r.Model.Metadata()

	upright := orientation.Apply(img)
	fitted := geometry.Fit(upright, meta.ImageSize, meta.ImageSize, r.CropAndScale)
	debug.Verbose("Classify: %v image, orientation %d, %s to %dpx",
		img.Bounds().Size(), orientation, r.CropAndScale, meta.ImageSize)

	scores, err := r.Model.Infer(Tensor(fitted, meta))
	if err != nil {
		return nil, fmt.Errorf("perform classification: %w", err)
	}
	if meta.Softmax {
		scores = Softmax(scores)
	}

	results := AboveConfidence(Rank(meta.Classes, scores), r.MinConfidence)
	if len(results) > 0 {
		debug.Verbose("Classify: top %q (%.2f) of %d", results[0].Identifier, results[0].Confidence, len(results))
	}
	return results, nil
}
