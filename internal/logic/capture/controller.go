package capture

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/cjeanneret/ClassifyEverything/internal/debug"
	"github.com/cjeanneret/ClassifyEverything/internal/dispatch"
	"github.com/cjeanneret/ClassifyEverything/internal/hw/camera"
	"github.com/cjeanneret/ClassifyEverything/internal/ui"
)

// CompletionFunc receives the result of one CaptureImage request.
// Exactly one of photo and err is non-nil.
type CompletionFunc func(photo *Photo, err error)

// Controller owns the capture session: it prepares it, attaches the preview
// and takes photos.
//
// Preparation runs on the prepare queue; every completion is delivered on the
// main queue. Pending capture completions are keyed by request ID, so
// overlapping requests each receive their own photo.
type Controller struct {
	ctx      context.Context
	devices  []camera.Device
	prepareQ *dispatch.Queue
	mainQ    *dispatch.Queue

	mu              sync.Mutex
	session         *Session
	rearCamera      camera.Device
	rearCameraInput *DeviceInput
	photoOutput     *PhotoOutput
	previewLayer    *PreviewLayer
	pending         map[uuid.UUID]CompletionFunc
}

// NewController creates a controller over the available devices.
// ctx bounds the lifetime of device captures (process shutdown).
func NewController(ctx context.Context, devices []camera.Device, prepareQ, mainQ *dispatch.Queue) *Controller {
	return &Controller{
		ctx:      ctx,
		devices:  devices,
		prepareQ: prepareQ,
		mainQ:    mainQ,
		pending:  make(map[uuid.UUID]CompletionFunc),
	}
}

// Session returns the current session, or nil before preparation.
func (c *Controller) Session() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// RearCamera returns the selected camera, or nil.
func (c *Controller) RearCamera() camera.Device {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rearCamera
}

// PreviewLayer returns the attached preview layer, or nil.
func (c *Controller) PreviewLayer() *PreviewLayer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.previewLayer
}

// Prepare configures and starts the capture session in the background.
// completion runs on the main queue with nil or the reason preparation failed.
func (c *Controller) Prepare(completion func(error)) {
	c.prepareQ.Async(func() {
		err := c.prepare()
		if err != nil {
			debug.Error(fmt.Errorf("prepare capture session: %w", err))
		}
		c.mainQ.Async(func() { completion(err) })
	})
}

func (c *Controller) prepare() error {
	if s := c.Session(); s != nil && s.IsRunning() {
		return ErrSessionAlreadyRunning
	}

	debug.Section("Preparing capture session")
	debug.Step(1, "Creating capture session")
	c.createCaptureSession()

	debug.Step(2, "Configuring capture devices")
	if err := c.configureCaptureDevices(); err != nil {
		return err
	}

	debug.Step(3, "Configuring device inputs")
	if err := c.configureDeviceInputs(); err != nil {
		return err
	}

	debug.Step(4, "Configuring photo output")
	return c.configurePhotoOutput()
}

func (c *Controller) createCaptureSession() {
	c.mu.Lock()
	c.session = NewSession()
	c.mu.Unlock()
}

// configureCaptureDevices selects the first back-facing wide-angle camera and
// switches it to continuous autofocus.
func (c *Controller) configureCaptureDevices() error {
	discovery := camera.NewDiscoverySession(c.devices, []camera.DeviceType{camera.WideAngle}, camera.PositionUnspecified)
	for _, d := range discovery.Devices() {
		if d.Position() != camera.PositionBack {
			continue
		}
		debug.Verbose("Selected camera %s (%s)", d.ID(), d.Name())

		if err := d.LockForConfiguration(); err != nil {
			return fmt.Errorf("lock camera %s: %w", d.ID(), err)
		}
		err := d.SetFocusMode(camera.FocusContinuousAuto)
		d.UnlockForConfiguration()
		if err != nil {
			return fmt.Errorf("set focus mode on camera %s: %w", d.ID(), err)
		}

		c.mu.Lock()
		c.rearCamera = d
		c.mu.Unlock()
		return nil
	}
	debug.Verbose("No back-facing wide-angle camera among %d devices", len(c.devices))
	return nil
}

func (c *Controller) configureDeviceInputs() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return ErrSessionMissing
	}
	if c.rearCamera == nil {
		return ErrNoCamerasAvailable
	}

	input, err := NewDeviceInput(c.rearCamera)
	if err != nil {
		return err
	}
	c.rearCameraInput = input
	if c.session.CanAddInput(input) {
		if err := c.session.AddInput(input); err != nil {
			return err
		}
	}
	return nil
}

func (c *Controller) configurePhotoOutput() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return ErrSessionMissing
	}

	output := NewPhotoOutput()
	output.SetPreparedPhotoSettings([]PhotoSettings{NewPhotoSettings()})
	c.photoOutput = output
	if c.session.CanAddOutput(output) {
		if err := c.session.AddOutput(output); err != nil {
			return err
		}
	}
	return c.session.StartRunning()
}

// DisplayPreview attaches a live preview as the bottommost layer of view,
// filling its bounds. It fails with ErrSessionMissing unless the session runs.
func (c *Controller) DisplayPreview(view *ui.View) error {
	session := c.Session()
	if session == nil || !session.IsRunning() {
		return ErrSessionMissing
	}

	layer := NewPreviewLayer(session)
	layer.SetVideoGravity(GravityResizeAspectFill)
	layer.SetOrientation(OrientationPortrait)
	view.InsertLayer(layer, 0)
	layer.SetFrame(view.Bounds())

	c.mu.Lock()
	c.previewLayer = layer
	c.mu.Unlock()
	debug.Info("Preview attached (%dx%d)", view.Bounds().Dx(), view.Bounds().Dy())
	return nil
}

// CaptureImage requests one photo. Without a running session, completion is
// called synchronously with ErrSessionMissing and uuid.Nil is returned.
// Otherwise the request ID is returned and completion later runs on the main
// queue with the decoded photo or an error.
func (c *Controller) CaptureImage(completion CompletionFunc) uuid.UUID {
	session := c.Session()
	if session == nil || !session.IsRunning() {
		completion(nil, ErrSessionMissing)
		return uuid.Nil
	}
	output := session.Output()
	if output == nil {
		completion(nil, ErrSessionMissing)
		return uuid.Nil
	}

	id := uuid.New()
	c.mu.Lock()
	c.pending[id] = completion
	c.mu.Unlock()

	if err := output.CapturePhoto(c.ctx, id, NewPhotoSettings(), c); err != nil {
		c.take(id)
		completion(nil, err)
		return uuid.Nil
	}
	return id
}

// DidFinishProcessingPhoto implements PhotoCaptureDelegate.
func (c *Controller) DidFinishProcessingPhoto(id uuid.UUID, buf *SampleBuffer, err error) {
	completion := c.take(id)
	if completion == nil {
		debug.Capture(id.String(), "no pending completion, result dropped")
		return
	}

	var photo *Photo
	if err == nil {
		photo, err = DecodePhoto(id, buf)
	}
	if err != nil {
		debug.Capture(id.String(), "failed: "+err.Error())
	} else {
		b := photo.Image.Bounds()
		debug.Capture(id.String(), fmt.Sprintf("decoded %dx%d photo", b.Dx(), b.Dy()))
	}
	c.mainQ.Async(func() { completion(photo, err) })
}

// Pending returns the number of captures awaiting their delegate callback.
func (c *Controller) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func (c *Controller) take(id uuid.UUID) CompletionFunc {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn := c.pending[id]
	delete(c.pending, id)
	return fn
}

// Stop stops the session and waits for in-flight captures to reach the delegate.
func (c *Controller) Stop() {
	session := c.Session()
	if session == nil {
		return
	}
	session.StopRunning()
	if out := session.Output(); out != nil {
		out.Wait()
	}
}
