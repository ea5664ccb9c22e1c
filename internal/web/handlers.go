package web

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/cjeanneret/ClassifyEverything/internal/debug"
	"github.com/cjeanneret/ClassifyEverything/internal/logic/capture"
	"github.com/cjeanneret/ClassifyEverything/internal/store"
	"github.com/cjeanneret/ClassifyEverything/internal/ui"
)

// MaxHistoryLimit bounds the ?limit= parameter of GET /history.
const MaxHistoryLimit = 1000

// CaptureFunc presses the capture button and returns the request ID.
// It is called from the POST /capture handler.
type CaptureFunc func() (uuid.UUID, error)

// HistorySource is the read side of the classification history.
type HistorySource interface {
	Recent(ctx context.Context, limit int) ([]store.Record, error)
	LabelCounts(ctx context.Context) ([]store.LabelCount, error)
}

// Options holds the dependencies of the web front end.
// Nil members disable the routes that need them.
type Options struct {
	Broadcaster     *StatusBroadcaster
	Capture         CaptureFunc
	Label           *ui.Label
	View            *ui.View
	History         HistorySource
	HistoryLimit    int
	PreviewInterval time.Duration
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	Options
	staticFS fs.FS
}

// NewHandlers creates handlers with the given dependencies.
func NewHandlers(opts Options, staticFS fs.FS) *Handlers {
	if opts.Broadcaster == nil {
		opts.Broadcaster = NewStatusBroadcaster()
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 50
	}
	if opts.PreviewInterval <= 0 {
		opts.PreviewInterval = 500 * time.Millisecond
	}
	return &Handlers{Options: opts, staticFS: staticFS}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// ServeIndex serves the main HTML page (root path only).
func (h *Handlers) ServeIndex(w http.ResponseWriter, r *http.Request) {
	data, err := fs.ReadFile(h.staticFS, "index.html")
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}

// HandleCapture handles POST /capture, the on-screen camera button.
func (h *Handlers) HandleCapture(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.Capture == nil {
		http.Error(w, "capture not configured", http.StatusServiceUnavailable)
		return
	}

	id, err := h.Capture()
	if err != nil {
		if errors.Is(err, capture.ErrSessionMissing) {
			http.Error(w, "camera not ready", http.StatusServiceUnavailable)
			return
		}
		debug.Error(err)
		http.Error(w, "capture failed: "+err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "requested", "id": id.String()})
}

// HandleStatus handles GET /status with the current label text.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	text := ""
	if h.Label != nil {
		text = h.Label.Text()
	}
	writeJSON(w, http.StatusOK, map[string]string{"text": text})
}

// HandleStatusStream handles GET /status/stream for SSE.
// The current label is sent first, then label changes and log lines as they happen.
func (h *Handlers) HandleStatusStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // nginx

	ch, unsub := h.Broadcaster.Subscribe()
	defer unsub()

	// Send initial comment to establish connection
	w.Write([]byte(": connected\n\n"))
	if h.Label != nil {
		if evt, err := encodeEvent(LevelLabel, h.Label.Text()); err == nil {
			w.Write([]byte("data: " + evt + "\n\n"))
		}
	}
	flusher.Flush()

	// Heartbeat while idle
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			w.Write([]byte("data: " + msg + "\n\n"))
			flusher.Flush()

		case <-ticker.C:
			w.Write([]byte(": heartbeat\n\n"))
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

// HandleHistory handles GET /history?limit=N with the most recent classifications.
func (h *Handlers) HandleHistory(w http.ResponseWriter, r *http.Request) {
	if h.History == nil {
		http.Error(w, "history disabled", http.StatusNotFound)
		return
	}

	limit := h.HistoryLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 || n > MaxHistoryLimit {
			http.Error(w, "limit must be between 1 and "+strconv.Itoa(MaxHistoryLimit), http.StatusBadRequest)
			return
		}
		limit = n
	}

	records, err := h.History.Recent(r.Context(), limit)
	if err != nil {
		debug.Error(err)
		http.Error(w, "history unavailable", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []store.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}
