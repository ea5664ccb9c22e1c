// Package app wires the camera, the classifier and the presenter into the
// capture → classify → display loop behind the camera button.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cjeanneret/ClassifyEverything/internal/debug"
	"github.com/cjeanneret/ClassifyEverything/internal/dispatch"
	"github.com/cjeanneret/ClassifyEverything/internal/hw/button"
	"github.com/cjeanneret/ClassifyEverything/internal/hw/camera"
	"github.com/cjeanneret/ClassifyEverything/internal/logic/capture"
	"github.com/cjeanneret/ClassifyEverything/internal/logic/classify"
	"github.com/cjeanneret/ClassifyEverything/internal/logic/present"
	"github.com/cjeanneret/ClassifyEverything/internal/store"
	"github.com/cjeanneret/ClassifyEverything/internal/ui"
)

// ErrClosed is returned by DidSelectCameraButton after Close.
var ErrClosed = errors.New("app: closed")

// HistoryWriter stores classification outcomes.
type HistoryWriter interface {
	Insert(ctx context.Context, r store.Record) error
}

// ReportFunc observes every classification outcome shown in the label.
type ReportFunc func(id uuid.UUID, text string, results []classify.Observation, err error)

// Options configures an App.
type Options struct {
	Devices []camera.Device
	Request classify.Request
	TopK    int

	ViewWidth  int
	ViewHeight int

	History   HistoryWriter    // optional
	Indicator *button.Indicator // optional busy LED
}

// App is the application controller. Label and view updates happen on its
// main queue; camera preparation on the prepare queue.
type App struct {
	ctx      context.Context
	mainQ    *dispatch.Queue
	prepareQ *dispatch.Queue

	label     *ui.Label
	view      *ui.View
	capture   *capture.Controller
	pipeline  *classify.Pipeline
	presenter *present.Presenter
	history   HistoryWriter
	indicator *button.Indicator

	// main queue only
	latest    uuid.UUID
	inflight  map[uuid.UUID]*capture.Photo
	onReports []ReportFunc

	historyWG sync.WaitGroup
	closeOnce sync.Once
}

// New builds the application. Nothing runs until Start.
func New(ctx context.Context, opts Options) *App {
	if opts.ViewWidth <= 0 || opts.ViewHeight <= 0 {
		opts.ViewWidth, opts.ViewHeight = 480, 640
	}

	a := &App{
		ctx:       ctx,
		mainQ:     dispatch.NewQueue("main"),
		prepareQ:  dispatch.NewQueue("prepare"),
		label:     ui.NewLabel(""),
		view:      ui.NewView(opts.ViewWidth, opts.ViewHeight),
		history:   opts.History,
		indicator: opts.Indicator,
		inflight:  make(map[uuid.UUID]*capture.Photo),
	}
	a.presenter = present.New(a.label, opts.TopK)
	a.capture = capture.NewController(ctx, opts.Devices, a.prepareQ, a.mainQ)
	a.pipeline = classify.NewPipeline(opts.Request, a.mainQ, a)
	return a
}

// Label returns the status label.
func (a *App) Label() *ui.Label { return a.label }

// View returns the view the preview is attached to.
func (a *App) View() *ui.View { return a.view }

// Capture returns the capture controller.
func (a *App) Capture() *capture.Controller { return a.capture }

// OnReport registers fn to be called on the main queue after each label update
// with classification results.
func (a *App) OnReport(fn ReportFunc) {
	a.mainQ.Sync(func() {
		a.onReports = append(a.onReports, fn)
	})
}

// Start prepares the capture session and attaches the preview once it runs.
// ready, if not nil, is called on the main queue with the preparation outcome.
func (a *App) Start(ready func(error)) {
	a.capture.Prepare(func(err error) {
		if err == nil {
			err = a.capture.DisplayPreview(a.view)
		}
		if err != nil {
			debug.Error(fmt.Errorf("camera not available: %w", err))
		} else {
			debug.Info("Camera ready")
		}
		if ready != nil {
			ready(err)
		}
	})
}

// DidSelectCameraButton requests a photo. The returned error is only set when
// the request could not be issued (e.g. capture.ErrSessionMissing); later
// failures are logged and dropped.
func (a *App) DidSelectCameraButton() (uuid.UUID, error) {
	var (
		id      uuid.UUID
		syncErr error
	)
	ok := a.mainQ.Sync(func() {
		returned := false
		id = a.capture.CaptureImage(func(photo *capture.Photo, err error) {
			if !returned {
				syncErr = err
			}
			a.didCapture(photo, err)
		})
		returned = true
		if id != uuid.Nil {
			a.latest = id
			debug.Capture(id.String(), "camera button")
		}
	})
	if !ok {
		return uuid.Nil, ErrClosed
	}
	return id, syncErr
}

// didCapture runs on the main queue.
func (a *App) didCapture(photo *capture.Photo, err error) {
	if err != nil {
		debug.Error(fmt.Errorf("capture photo: %w", err))
		return
	}
	if photo.ID != a.latest {
		debug.Capture(photo.ID.String(), "superseded by "+a.latest.String()+", not classified")
		return
	}
	a.inflight[photo.ID] = photo
	a.pipeline.UpdateClassifications(photo)
}

// Classifying implements classify.Reporter.
func (a *App) Classifying() {
	a.indicator.Set(true)
	a.presenter.Classifying()
}

// Report implements classify.Reporter.
func (a *App) Report(id uuid.UUID, results []classify.Observation, err error) {
	a.presenter.Report(id, results, err)

	photo := a.inflight[id]
	delete(a.inflight, id)
	if len(a.inflight) == 0 {
		a.indicator.Set(false)
	}
	a.record(id, photo, results, err)

	text := a.label.Text()
	for _, fn := range a.onReports {
		fn(id, text, results, err)
	}
}

func (a *App) record(id uuid.UUID, photo *capture.Photo, results []classify.Observation, err error) {
	if a.history == nil {
		return
	}
	deviceID, capturedAt := "", time.Now()
	if photo != nil {
		deviceID = photo.DeviceID
		if !photo.CapturedAt.IsZero() {
			capturedAt = photo.CapturedAt
		}
	}
	rec := store.NewRecord(id, deviceID, capturedAt, results, err)
	a.historyWG.Add(1)
	go func() {
		defer a.historyWG.Done()
		if err := a.history.Insert(context.Background(), rec); err != nil {
			debug.Error(fmt.Errorf("store classification: %w", err))
		}
	}()
}

// Close stops the session and waits for pending work before stopping the queues.
func (a *App) Close() {
	a.closeOnce.Do(func() {
		a.capture.Stop()
		a.mainQ.Sync(func() {}) // deliver capture completions
		a.pipeline.Wait()
		a.mainQ.Sync(func() {}) // deliver reports
		a.historyWG.Wait()
		a.prepareQ.Close()
		a.mainQ.Close()
	})
}
