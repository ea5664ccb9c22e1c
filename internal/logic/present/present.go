package present

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/cjeanneret/ClassifyEverything/internal/debug"
	"github.com/cjeanneret/ClassifyEverything/internal/logic/classify"
	"github.com/cjeanneret/ClassifyEverything/internal/ui"
)

// Label texts.
const (
	ClassifyingText    = "Classifying..."
	NothingText        = "Nothing recognized."
	UnableText         = "Unable to classify image."
	ClassificationText = "Classification:"
)

// DefaultTopK is the number of classifications shown.
const DefaultTopK = 2

// Format renders a classification outcome for the status label.
// nil results mean the request failed; an empty slice means nothing was recognized.
func Format(results []classify.Observation, err error, topK int) string {
	if results == nil {
		reason := "unknown error"
		if err != nil {
			reason = err.Error()
		}
		return UnableText + "\n" + reason
	}
	if len(results) == 0 {
		return NothingText
	}

	if topK <= 0 {
		topK = DefaultTopK
	}
	if topK > len(results) {
		topK = len(results)
	}
	lines := make([]string, 0, topK)
	for _, o := range results[:topK] {
		// e.g. "  (0.37) cliff, drop, drop-off"
		lines = append(lines, fmt.Sprintf("  (%.2f) %s", o.Confidence, o.Identifier))
	}
	return ClassificationText + "\n" + strings.Join(lines, "\n")
}

// Presenter writes classification progress to a label.
// It implements classify.Reporter and must be driven from the main queue.
type Presenter struct {
	label *ui.Label
	topK  int
}

// New creates a presenter for label showing topK results.
func New(label *ui.Label, topK int) *Presenter {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Presenter{label: label, topK: topK}
}

func (p *Presenter) Classifying() {
	p.label.SetText(ClassifyingText)
}

func (p *Presenter) Report(id uuid.UUID, results []classify.Observation, err error) {
	text := Format(results, err, p.topK)
	p.label.SetText(text)
	if results == nil {
		debug.Info("Photo %s: classification failed: %v", id, err)
		return
	}
	debug.Info("Photo %s: %d classifications", id, len(results))
}

// Label returns the label the presenter writes to.
func (p *Presenter) Label() *ui.Label {
	return p.label
}
