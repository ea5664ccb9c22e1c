package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/cjeanneret/ClassifyEverything/internal/app"
	"github.com/cjeanneret/ClassifyEverything/internal/config"
	"github.com/cjeanneret/ClassifyEverything/internal/debug"
	"github.com/cjeanneret/ClassifyEverything/internal/hw/button"
	"github.com/cjeanneret/ClassifyEverything/internal/hw/camera"
	"github.com/cjeanneret/ClassifyEverything/internal/hw/gpio"
	"github.com/cjeanneret/ClassifyEverything/internal/logic/classify"
	"github.com/cjeanneret/ClassifyEverything/internal/logic/geometry"
	"github.com/cjeanneret/ClassifyEverything/internal/store"
	"github.com/cjeanneret/ClassifyEverything/internal/web"
)

// overrides holds CLI values that replace config entries when set.
type overrides struct {
	MinConfidence float64 // 0 = use config
	TopK          int     // 0 = use config
	DebugLevel    int     // -1 = use config
}

func main() {
	// CLI flags
	webPort := &webPortFlag{defaultPort: 8080}
	flag.Var(webPort, "web", "start web server on port; -web= for default 8080, -web 8980 for custom port")
	cfgPath := flag.String("config", filepath.Join("configs", "default.yaml"), "path to config file")
	minConfidence := flag.Float64("min_confidence", 0, "override minimum confidence (0-1)")
	topK := flag.Int("top_k", 0, "override number of classifications shown")
	debugLevel := flag.Int("debug", -1, "override debug level (0-4)")
	once := flag.Bool("once", false, "capture and classify one photo, print the result and exit")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := config.ValidateConfigPath(*cfgPath); err != nil {
		log.Fatalf("invalid config path: %v", err)
	}
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}

	ov := overrides{MinConfidence: *minConfidence, TopK: *topK, DebugLevel: *debugLevel}
	if err := validateCLIOverrides(ov); err != nil {
		log.Fatalf("invalid CLI override: %v", err)
	}
	applyOverrides(cfg, ov)

	debug.Init(cfg.Defaults.DebugLevel)
	debug.Section("Initialization")
	debug.Value("Config path", *cfgPath)
	debug.Value("Debug level", cfg.Defaults.DebugLevel)

	debug.Step(1, "Initializing cameras")
	devices, err := newDevicesFromConfig(cfg)
	if err != nil {
		log.Fatalf("init cameras failed: %v", err)
	}
	for _, d := range devices {
		debug.Verbose("Camera %s: %s (%s, %s)", d.ID(), d.Name(), d.Type(), d.Position())
	}

	debug.Step(2, "Loading model")
	model, err := classify.NewONNXModel(cfg.Model.Path, cfg.Model.MetadataPath, cfg.Model.SharedLibrary)
	if err != nil {
		log.Fatalf("load model failed: %v", err)
	}
	defer model.Close()
	request, err := newRequestFromConfig(cfg, model)
	if err != nil {
		log.Fatalf("invalid model config: %v", err)
	}
	debug.PrintStruct("Model config", cfg.Model)

	opts := app.Options{
		Devices:    devices,
		Request:    request,
		TopK:       cfg.Display.TopK,
		ViewWidth:  cfg.Display.ViewWidthPx,
		ViewHeight: cfg.Display.ViewHeightPx,
	}

	var history *store.DB
	if cfg.History.DBPath != "" {
		debug.Step(3, "Opening history database")
		history, err = store.OpenDB(cfg.History.DBPath)
		if err != nil {
			log.Fatalf("open history failed: %v", err)
		}
		defer history.Close()
		opts.History = history
		debug.Value("History DB", cfg.History.DBPath)
	}

	var gpioDriver gpio.Driver
	if cfg.Trigger.ButtonPin > 0 || cfg.Trigger.LEDPin > 0 {
		debug.Step(4, "Initializing GPIO driver")
		debug.Value("Mock GPIO", cfg.Defaults.MockGPIO)
		gpioDriver, err = gpio.NewDriver(cfg.Defaults.MockGPIO)
		if err != nil {
			log.Fatalf("init GPIO failed: %v", err)
		}
		defer func() {
			if err := gpioDriver.Close(); err != nil {
				log.Printf("closing GPIO driver failed: %v", err)
			}
		}()
		if cfg.Trigger.LEDPin > 0 {
			opts.Indicator = button.NewIndicator(gpioDriver, cfg.Trigger.LEDPin)
			debug.Value("LED pin", cfg.Trigger.LEDPin)
		}
	}

	a := app.New(ctx, opts)
	defer a.Close()

	if *once {
		if err := runOnce(ctx, a); err != nil {
			log.Fatalf("classification failed: %v", err)
		}
		return
	}

	debug.Section("Starting")
	a.Start(nil)

	press := func() {
		if _, err := a.DidSelectCameraButton(); err != nil {
			debug.Error(fmt.Errorf("capture request: %w", err))
		}
	}

	if cfg.Trigger.ButtonPin > 0 {
		btn := button.New(gpioDriver, cfg.Trigger.ButtonPin, cfg.PollInterval(), cfg.Debounce())
		debug.Value("Button pin", cfg.Trigger.ButtonPin)
		go func() {
			if err := btn.Watch(ctx, press); err != nil && ctx.Err() == nil {
				debug.Error(fmt.Errorf("button: %w", err))
			}
		}()
	}

	if cfg.Trigger.Schedule != "" {
		c := cron.New()
		if _, err := c.AddFunc(cfg.Trigger.Schedule, press); err != nil {
			log.Fatalf("invalid trigger.schedule %q: %v", cfg.Trigger.Schedule, err)
		}
		c.Start()
		defer c.Stop()
		debug.Value("Schedule", cfg.Trigger.Schedule)
	}

	if port := webPort.port(); port > 0 {
		webAddr := fmt.Sprintf(":%d", port)
		broadcaster := web.NewStatusBroadcaster()
		debug.SetOutput(io.MultiWriter(os.Stdout, web.BroadcastWriter(broadcaster)))
		broadcaster.FollowLabel(a.Label())

		webOpts := web.Options{
			Broadcaster:     broadcaster,
			Capture:         a.DidSelectCameraButton,
			Label:           a.Label(),
			View:            a.View(),
			HistoryLimit:    cfg.History.Limit,
			PreviewInterval: cfg.PreviewInterval(),
		}
		if history != nil {
			webOpts.History = history
		}
		srv := web.NewServer(webAddr, webOpts)
		if err := srv.Run(ctx); err != nil {
			log.Fatalf("web server: %v", err)
		}
		return
	}

	a.Label().OnChange(func(text string) {
		fmt.Println(text)
	})
	<-ctx.Done()
}

// runOnce prepares the camera, captures one photo and prints the label text
// once it is classified.
func runOnce(ctx context.Context, a *app.App) error {
	reports := make(chan string, 1)
	a.OnReport(func(_ uuid.UUID, text string, _ []classify.Observation, _ error) {
		select {
		case reports <- text:
		default:
		}
	})

	ready := make(chan error, 1)
	a.Start(func(err error) { ready <- err })
	select {
	case err := <-ready:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		return ctx.Err()
	}

	if _, err := a.DidSelectCameraButton(); err != nil {
		return err
	}
	select {
	case text := <-reports:
		fmt.Println(text)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// validateCLIOverrides checks that CLI overrides are within valid ranges.
// Unset values are ignored (they mean "use config default").
func validateCLIOverrides(ov overrides) error {
	if ov.MinConfidence != 0 {
		if math.IsNaN(ov.MinConfidence) || ov.MinConfidence < 0 || ov.MinConfidence > 1 {
			return fmt.Errorf("min_confidence must be between 0 and 1, got %g", ov.MinConfidence)
		}
	}
	if ov.TopK < 0 {
		return fmt.Errorf("top_k must be >= 0, got %d", ov.TopK)
	}
	if ov.DebugLevel < -1 || ov.DebugLevel > debug.LevelTrace {
		return fmt.Errorf("debug must be between 0 and %d, got %d", debug.LevelTrace, ov.DebugLevel)
	}
	return nil
}

// applyOverrides mutates cfg with the set override values.
func applyOverrides(cfg *config.Config, ov overrides) {
	if ov.MinConfidence > 0 {
		cfg.Model.MinConfidence = ov.MinConfidence
	}
	if ov.TopK > 0 {
		cfg.Display.TopK = ov.TopK
	}
	if ov.DebugLevel >= 0 {
		cfg.Defaults.DebugLevel = ov.DebugLevel
	}
}

// webPortFlag implements flag.Value for -web: 0 = disabled, -web= or -web 8080 → 8080, -web 8980 → 8980.
type webPortFlag struct {
	val         int
	defaultPort int
}

func (w *webPortFlag) String() string {
	if w.val == 0 {
		return "0"
	}
	return strconv.Itoa(w.val)
}

func (w *webPortFlag) Set(s string) error {
	if s == "" {
		w.val = w.defaultPort
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	if v <= 0 || v > 65535 {
		return fmt.Errorf("port must be 1-65535, got %d", v)
	}
	w.val = v
	return nil
}

func (w *webPortFlag) port() int { return w.val }

// newDevicesFromConfig builds the camera devices listed in the configuration.
func newDevicesFromConfig(cfg *config.Config) ([]camera.Device, error) {
	devices := make([]camera.Device, 0, len(cfg.Camera.Devices))
	for _, dc := range cfg.Camera.Devices {
		pos, err := camera.ParsePosition(dc.Position)
		if err != nil {
			return nil, fmt.Errorf("camera %s: %w", dc.ID, err)
		}
		info := camera.Info{
			ID:       dc.ID,
			Name:     dc.Name,
			Type:     camera.DeviceType(dc.Type),
			Position: pos,
		}
		switch dc.Driver {
		case config.DriverCommand:
			devices = append(devices, camera.NewCommandDevice(info, dc.Command))
		case config.DriverFile:
			devices = append(devices, camera.NewFileDevice(info, dc.Path))
		default:
			return nil, fmt.Errorf("camera %s: unsupported driver %q", dc.ID, dc.Driver)
		}
	}
	return devices, nil
}

// newRequestFromConfig builds the classification request shared by every photo.
func newRequestFromConfig(cfg *config.Config, model classify.Model) (classify.Request, error) {
	crop, err := geometry.ParseCropAndScale(cfg.Model.CropAndScale)
	if err != nil {
		return classify.Request{}, err
	}
	req := classify.NewRequest(model)
	req.CropAndScale = crop
	req.MinConfidence = float32(cfg.Model.MinConfidence)
	return req, nil
}
