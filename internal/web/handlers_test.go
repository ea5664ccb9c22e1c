package web

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/google/uuid"

	"github.com/cjeanneret/ClassifyEverything/internal/logic/capture"
	"github.com/cjeanneret/ClassifyEverything/internal/logic/classify"
	"github.com/cjeanneret/ClassifyEverything/internal/store"
	"github.com/cjeanneret/ClassifyEverything/internal/ui"
)

var testStaticFS = fstest.MapFS{
	"index.html": &fstest.MapFile{Data: []byte("<html><body>test</body></html>")},
	"app.js":     &fstest.MapFile{Data: []byte("// js")},
}

func newTestHandlers(opts Options) *Handlers {
	return NewHandlers(opts, testStaticFS)
}

// stubLayer renders a fixed image, or fails.
type stubLayer struct {
	mu    sync.Mutex
	frame image.Rectangle
	err   error
	calls int
}

func (l *stubLayer) SetFrame(r image.Rectangle) { l.frame = r }
func (l *stubLayer) Frame() image.Rectangle     { return l.frame }

func (l *stubLayer) Render(ctx context.Context) (image.Image, error) {
	l.mu.Lock()
	l.calls++
	l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	img := image.NewRGBA(image.Rect(0, 0, 6, 8))
	img.Set(0, 0, color.White)
	return img, nil
}

type stubHistory struct {
	records   []store.Record
	counts    []store.LabelCount
	err       error
	lastLimit int
}

func (s *stubHistory) Recent(ctx context.Context, limit int) ([]store.Record, error) {
	s.lastLimit = limit
	return s.records, s.err
}

func (s *stubHistory) LabelCounts(ctx context.Context) ([]store.LabelCount, error) {
	return s.counts, s.err
}

// ---------- ServeIndex ----------

func TestServeIndex(t *testing.T) {
	h := newTestHandlers(Options{})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()

	h.ServeIndex(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
		t.Errorf("Content-Type = %q, want text/html; charset=utf-8", ct)
	}
	if !strings.Contains(w.Body.String(), "<html>") {
		t.Error("body should contain HTML content")
	}
}

func TestServeIndex_Embedded(t *testing.T) {
	srv := NewServer(":0", Options{})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()

	srv.Mux().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), `id="camera"`) {
		t.Error("embedded page should contain the camera button")
	}
}

// ---------- HandleCapture ----------

func TestHandleCapture_Accepted(t *testing.T) {
	id := uuid.New()
	calls := 0
	h := newTestHandlers(Options{Capture: func() (uuid.UUID, error) {
		calls++
		return id, nil
	}})
	req := httptest.NewRequest(http.MethodPost, "/capture", nil)
	w := httptest.NewRecorder()

	h.HandleCapture(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusAccepted)
	}
	var resp map[string]string
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["status"] != "requested" || resp["id"] != id.String() {
		t.Errorf("response = %v", resp)
	}
	if calls != 1 {
		t.Errorf("capture calls = %d, want 1", calls)
	}
}

func TestHandleCapture_RapidPressesAllAccepted(t *testing.T) {
	calls := 0
	h := newTestHandlers(Options{Capture: func() (uuid.UUID, error) {
		calls++
		return uuid.New(), nil
	}})
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		h.HandleCapture(w, httptest.NewRequest(http.MethodPost, "/capture", nil))
		if w.Code != http.StatusAccepted {
			t.Errorf("press %d: status = %d, want %d", i, w.Code, http.StatusAccepted)
		}
	}
	if calls != 3 {
		t.Errorf("capture calls = %d, want 3", calls)
	}
}

func TestHandleCapture_Errors(t *testing.T) {
	cases := []struct {
		name    string
		capture CaptureFunc
		method  string
		want    int
	}{
		{"get_not_allowed", func() (uuid.UUID, error) { return uuid.New(), nil }, http.MethodGet, http.StatusMethodNotAllowed},
		{"not_configured", nil, http.MethodPost, http.StatusServiceUnavailable},
		{"session_missing", func() (uuid.UUID, error) { return uuid.Nil, capture.ErrSessionMissing }, http.MethodPost, http.StatusServiceUnavailable},
		{"other_error", func() (uuid.UUID, error) { return uuid.Nil, errors.New("boom") }, http.MethodPost, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newTestHandlers(Options{Capture: tc.capture})
			w := httptest.NewRecorder()
			h.HandleCapture(w, httptest.NewRequest(tc.method, "/capture", nil))
			if w.Code != tc.want {
				t.Errorf("status = %d, want %d", w.Code, tc.want)
			}
		})
	}
}

func TestMux_CaptureRequiresPost(t *testing.T) {
	srv := &Server{handlers: newTestHandlers(Options{Capture: func() (uuid.UUID, error) { return uuid.New(), nil }})}
	w := httptest.NewRecorder()
	srv.Mux().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/capture", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want %d", w.Code, http.StatusMethodNotAllowed)
	}
}

// ---------- Status ----------

func TestHandleStatus(t *testing.T) {
	label := ui.NewLabel("Classifying...")
	h := newTestHandlers(Options{Label: label})
	w := httptest.NewRecorder()

	h.HandleStatus(w, httptest.NewRequest(http.MethodGet, "/status", nil))

	var resp map[string]string
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["text"] != "Classifying..." {
		t.Errorf("text = %q, want Classifying...", resp["text"])
	}
}

func TestHandleStatusStream_SendsLabelThenUpdates(t *testing.T) {
	label := ui.NewLabel("Nothing recognized.")
	b := NewStatusBroadcaster()
	b.FollowLabel(label)
	srv := &Server{handlers: newTestHandlers(Options{Broadcaster: b, Label: label})}
	ts := httptest.NewServer(srv.Mux())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/status/stream", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /status/stream: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}

	scanner := bufio.NewScanner(resp.Body)
	readEvent := func() StatusEvent {
		t.Helper()
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			var evt StatusEvent
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &evt); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			return evt
		}
		t.Fatalf("stream ended: %v", scanner.Err())
		return StatusEvent{}
	}

	first := readEvent()
	if first.Level != LevelLabel || first.Msg != "Nothing recognized." {
		t.Errorf("first event = %+v", first)
	}

	// The subscription is registered before the first event is written.
	label.SetText("Classifying...")
	second := readEvent()
	if second.Level != LevelLabel || second.Msg != "Classifying..." {
		t.Errorf("second event = %+v", second)
	}
}

// ---------- Preview ----------

func TestHandlePreviewJPEG_NoLayer(t *testing.T) {
	for name, view := range map[string]*ui.View{"nil_view": nil, "empty_view": ui.NewView(6, 8)} {
		t.Run(name, func(t *testing.T) {
			h := newTestHandlers(Options{View: view})
			w := httptest.NewRecorder()
			h.HandlePreviewJPEG(w, httptest.NewRequest(http.MethodGet, "/preview.jpg", nil))
			if w.Code != http.StatusServiceUnavailable {
				t.Errorf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
			}
		})
	}
}

func TestHandlePreviewJPEG(t *testing.T) {
	view := ui.NewView(6, 8)
	view.InsertLayer(&stubLayer{}, 0)
	h := newTestHandlers(Options{View: view})
	w := httptest.NewRecorder()

	h.HandlePreviewJPEG(w, httptest.NewRequest(http.MethodGet, "/preview.jpg", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("Content-Type = %q, want image/jpeg", ct)
	}
	img, err := jpeg.Decode(w.Body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if img.Bounds().Dx() != 6 || img.Bounds().Dy() != 8 {
		t.Errorf("size = %v, want 6x8", img.Bounds().Size())
	}
}

func TestHandlePreviewJPEG_RenderError(t *testing.T) {
	view := ui.NewView(6, 8)
	view.InsertLayer(&stubLayer{err: capture.ErrSessionMissing}, 0)
	h := newTestHandlers(Options{View: view})
	w := httptest.NewRecorder()

	h.HandlePreviewJPEG(w, httptest.NewRequest(http.MethodGet, "/preview.jpg", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
}

func TestHandlePreviewMJPEG_Frames(t *testing.T) {
	layer := &stubLayer{}
	view := ui.NewView(6, 8)
	view.InsertLayer(layer, 0)
	h := newTestHandlers(Options{View: view, PreviewInterval: time.Millisecond})
	w := httptest.NewRecorder()

	h.HandlePreviewMJPEG(w, httptest.NewRequest(http.MethodGet, "/preview.mjpg?frames=3", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	mediaType, params, err := mime.ParseMediaType(w.Header().Get("Content-Type"))
	if err != nil || mediaType != "multipart/x-mixed-replace" {
		t.Fatalf("Content-Type = %q (%v)", w.Header().Get("Content-Type"), err)
	}

	mr := multipart.NewReader(w.Body, params["boundary"])
	parts := 0
	for {
		part, err := mr.NextPart()
		if err != nil {
			break
		}
		if ct := part.Header.Get("Content-Type"); ct != "image/jpeg" {
			t.Errorf("part Content-Type = %q", ct)
		}
		if _, err := jpeg.Decode(part); err != nil {
			t.Errorf("part %d: %v", parts, err)
		}
		parts++
	}
	if parts != 3 {
		t.Errorf("parts = %d, want 3", parts)
	}
	if layer.calls != 3 {
		t.Errorf("render calls = %d, want 3", layer.calls)
	}
}

func TestHandlePreviewMJPEG_BadFrames(t *testing.T) {
	view := ui.NewView(6, 8)
	view.InsertLayer(&stubLayer{}, 0)
	h := newTestHandlers(Options{View: view})
	w := httptest.NewRecorder()
	h.HandlePreviewMJPEG(w, httptest.NewRequest(http.MethodGet, "/preview.mjpg?frames=x", nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestHandlePreviewMJPEG_NoLayer(t *testing.T) {
	h := newTestHandlers(Options{View: ui.NewView(6, 8)})
	w := httptest.NewRecorder()
	h.HandlePreviewMJPEG(w, httptest.NewRequest(http.MethodGet, "/preview.mjpg", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
}

// ---------- History ----------

func TestHandleHistory(t *testing.T) {
	id := uuid.New()
	hist := &stubHistory{records: []store.Record{{
		RequestID:    id,
		DeviceID:     "rear",
		CapturedAt:   time.Unix(1700000000, 0).UTC(),
		Label:        "cat",
		Confidence:   0.75,
		Observations: []classify.Observation{{Identifier: "cat", Confidence: 0.75}},
	}}}
	h := newTestHandlers(Options{History: hist, HistoryLimit: 7})
	w := httptest.NewRecorder()

	h.HandleHistory(w, httptest.NewRequest(http.MethodGet, "/history", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if hist.lastLimit != 7 {
		t.Errorf("limit = %d, want configured 7", hist.lastLimit)
	}
	var got []map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 || got[0]["label"] != "cat" || got[0]["request_id"] != id.String() {
		t.Errorf("history = %v", got)
	}
}

func TestHandleHistory_Limit(t *testing.T) {
	hist := &stubHistory{}
	h := newTestHandlers(Options{History: hist})

	w := httptest.NewRecorder()
	h.HandleHistory(w, httptest.NewRequest(http.MethodGet, "/history?limit=3", nil))
	if w.Code != http.StatusOK || hist.lastLimit != 3 {
		t.Errorf("status = %d limit = %d, want 200 and 3", w.Code, hist.lastLimit)
	}
	if strings.TrimSpace(w.Body.String()) != "[]" {
		t.Errorf("empty history body = %q, want []", w.Body.String())
	}

	for _, bad := range []string{"0", "-1", "abc", "1001"} {
		w := httptest.NewRecorder()
		h.HandleHistory(w, httptest.NewRequest(http.MethodGet, "/history?limit="+bad, nil))
		if w.Code != http.StatusBadRequest {
			t.Errorf("limit=%s: status = %d, want %d", bad, w.Code, http.StatusBadRequest)
		}
	}
}

func TestHandleHistory_Disabled(t *testing.T) {
	h := newTestHandlers(Options{})
	for _, fn := range []http.HandlerFunc{h.HandleHistory, h.HandleHistoryChart} {
		w := httptest.NewRecorder()
		fn(w, httptest.NewRequest(http.MethodGet, "/history", nil))
		if w.Code != http.StatusNotFound {
			t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
		}
	}
}

func TestHandleHistory_StoreError(t *testing.T) {
	h := newTestHandlers(Options{History: &stubHistory{err: errors.New("disk I/O error")}})
	for _, fn := range []http.HandlerFunc{h.HandleHistory, h.HandleHistoryChart} {
		w := httptest.NewRecorder()
		fn(w, httptest.NewRequest(http.MethodGet, "/history", nil))
		if w.Code != http.StatusInternalServerError {
			t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
		}
	}
}

func TestHandleHistoryChart(t *testing.T) {
	hist := &stubHistory{counts: []store.LabelCount{{Label: "tabby cat", Count: 4}, {Label: "golden retriever", Count: 2}}}
	h := newTestHandlers(Options{History: hist})
	w := httptest.NewRecorder()

	h.HandleHistoryChart(w, httptest.NewRequest(http.MethodGet, "/history/chart", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
	body := w.Body.String()
	for _, want := range []string{"Classification history", "tabby cat", "golden retriever", "6 classified photos"} {
		if !strings.Contains(body, want) {
			t.Errorf("chart should contain %q", want)
		}
	}
}
