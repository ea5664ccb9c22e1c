package web

import (
	"image/jpeg"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"time"

	"github.com/cjeanneret/ClassifyEverything/internal/debug"
	"github.com/cjeanneret/ClassifyEverything/internal/ui"
)

var previewJPEG = &jpeg.Options{Quality: 80}

// previewLayer returns the bottommost layer of the view, where the camera
// preview is attached, or nil while there is none.
func (h *Handlers) previewLayer() ui.Layer {
	if h.View == nil {
		return nil
	}
	return h.View.BottomLayer()
}

// HandlePreviewJPEG handles GET /preview.jpg with a single preview frame.
func (h *Handlers) HandlePreviewJPEG(w http.ResponseWriter, r *http.Request) {
	layer := h.previewLayer()
	if layer == nil {
		http.Error(w, "preview not available", http.StatusServiceUnavailable)
		return
	}
	img, err := layer.Render(r.Context())
	if err != nil {
		debug.Error(err)
		http.Error(w, "preview frame failed: "+err.Error(), http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-store")
	jpeg.Encode(w, img, previewJPEG)
}

// HandlePreviewMJPEG handles GET /preview.mjpg, a multipart/x-mixed-replace
// stream of preview frames. ?frames=N stops after N frames.
func (h *Handlers) HandlePreviewMJPEG(w http.ResponseWriter, r *http.Request) {
	layer := h.previewLayer()
	if layer == nil {
		http.Error(w, "preview not available", http.StatusServiceUnavailable)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	maxFrames := 0
	if s := r.URL.Query().Get("frames"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			http.Error(w, "frames must be a non-negative integer", http.StatusBadRequest)
			return
		}
		maxFrames = n
	}

	mw := multipart.NewWriter(w)
	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+mw.Boundary())
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)

	ticker := time.NewTicker(h.PreviewInterval)
	defer ticker.Stop()

	for sent := 0; maxFrames == 0 || sent < maxFrames; {
		img, err := layer.Render(r.Context())
		if err != nil {
			debug.Trace("Preview stream: %v", err)
		} else {
			part, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {"image/jpeg"}})
			if err != nil {
				return
			}
			if err := jpeg.Encode(part, img, previewJPEG); err != nil {
				return
			}
			flusher.Flush()
			sent++
			if maxFrames > 0 && sent >= maxFrames {
				break
			}
		}

		select {
		case <-ticker.C:
		case <-r.Context().Done():
			return
		}
	}
	mw.Close()
}
