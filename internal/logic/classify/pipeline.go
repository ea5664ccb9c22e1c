package classify

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/cjeanneret/ClassifyEverything/internal/debug"
	"github.com/cjeanneret/ClassifyEverything/internal/dispatch"
	"github.com/cjeanneret/ClassifyEverything/internal/logic/capture"
)

// Reporter presents classification progress. All calls happen on the main queue.
type Reporter interface {
	// Classifying is called synchronously when a photo is accepted.
	Classifying()
	// Report delivers the results of request id. results is nil when err is set.
	Report(id uuid.UUID, results []Observation, err error)
}

// Pipeline classifies photos in the background and reports on the main queue.
type Pipeline struct {
	request  Request
	mainQ    *dispatch.Queue
	reporter Reporter

	wg sync.WaitGroup
}

// NewPipeline creates a pipeline performing copies of request.
func NewPipeline(request Request, mainQ *dispatch.Queue, reporter Reporter) *Pipeline {
	return &Pipeline{request: request, mainQ: mainQ, reporter: reporter}
}

// UpdateClassifications classifies photo. It must be called on the main queue.
func (p *Pipeline) UpdateClassifications(photo *capture.Photo) {
	p.reporter.Classifying()

	if photo == nil || photo.Image == nil {
		id := uuid.Nil
		if photo != nil {
			id = photo.ID
		}
		debug.Error(fmt.Errorf("classify photo %s: %w", id, ErrConversion))
		p.deliver(id, nil, ErrConversion)
		return
	}

	req := p.request
	id, img, orientation := photo.ID, photo.Image, photo.Orientation
	debug.Live("Classifying photo %s", id)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		results, err := req.Perform(img, orientation)
		if err != nil {
			debug.Error(fmt.Errorf("failed to perform classification: %w", err))
			results = nil
		}
		p.deliver(id, results, err)
	}()
}

func (p *Pipeline) deliver(id uuid.UUID, results []Observation, err error) {
	p.mainQ.Async(func() { p.reporter.Report(id, results, err) })
}

// Wait blocks until every started classification has been handed to the main queue.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}
