// Package ui holds the state rendered by the front ends: the status label
// and the preview view. Both are written only from the main dispatch queue;
// readers (HTTP handlers, the CLI) may call the getters from any goroutine.
package ui

import (
	"context"
	"image"
	"sync"
)

// Label is a single line (or a few lines) of status text.
type Label struct {
	mu        sync.RWMutex
	text      string
	listeners []func(string)
}

// NewLabel creates a label with initial text.
func NewLabel(text string) *Label {
	return &Label{text: text}
}

// Text returns the current text.
func (l *Label) Text() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.text
}

// SetText replaces the text and notifies listeners.
func (l *Label) SetText(text string) {
	l.mu.Lock()
	l.text = text
	listeners := append([]func(string){}, l.listeners...)
	l.mu.Unlock()

	for _, fn := range listeners {
		fn(text)
	}
}

// OnChange registers fn to be called after every SetText.
func (l *Label) OnChange(fn func(string)) {
	l.mu.Lock()
	l.listeners = append(l.listeners, fn)
	l.mu.Unlock()
}

// Layer is a visual layer that can render itself into its frame.
type Layer interface {
	SetFrame(r image.Rectangle)
	Frame() image.Rectangle
	Render(ctx context.Context) (image.Image, error)
}

// View is a rectangular area holding an ordered stack of layers.
// Index 0 is the bottommost layer.
type View struct {
	bounds image.Rectangle

	mu     sync.RWMutex
	layers []Layer
}

// NewView creates a view of w×h pixels.
func NewView(w, h int) *View {
	return &View{bounds: image.Rect(0, 0, w, h)}
}

// Bounds returns the view rectangle.
func (v *View) Bounds() image.Rectangle {
	return v.bounds
}

// InsertLayer inserts l at index (clamped to the stack size).
func (v *View) InsertLayer(l Layer, index int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if index < 0 {
		index = 0
	}
	if index > len(v.layers) {
		index = len(v.layers)
	}
	v.layers = append(v.layers, nil)
	copy(v.layers[index+1:], v.layers[index:])
	v.layers[index] = l
}

// Layers returns a snapshot of the layer stack, bottom first.
func (v *View) Layers() []Layer {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return append([]Layer(nil), v.layers...)
}

// BottomLayer returns the bottommost layer, or nil.
func (v *View) BottomLayer() Layer {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if len(v.layers) == 0 {
		return nil
	}
	return v.layers[0]
}
