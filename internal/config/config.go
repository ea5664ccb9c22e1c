package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// MaxConfigFileBytes bounds the size of a config file accepted by Load.
const MaxConfigFileBytes = 1 << 20

// Device drivers understood by the camera layer.
const (
	DriverCommand = "command" // external still-capture command writing JPEG to stdout
	DriverFile    = "file"    // reads a JPEG file on every capture (development)
)

// Crop-and-scale options for model input normalisation.
const (
	CropCenter    = "center_crop"
	CropScaleFit  = "scale_fit"
	CropScaleFill = "scale_fill"
)

// DeviceConfig describes one camera the discovery session can return.
type DeviceConfig struct {
	ID       string   `yaml:"id"`
	Name     string   `yaml:"name"`
	Driver   string   `yaml:"driver"`   // "command" or "file"
	Type     string   `yaml:"type"`     // e.g. "wide_angle"
	Position string   `yaml:"position"` // "back", "front" or "unspecified"
	Command  []string `yaml:"command"`  // argv for the command driver; "{focus}" is replaced by the focus mode
	Path     string   `yaml:"path"`     // JPEG path for the file driver
}

// CameraConfig lists the available devices and preview settings.
type CameraConfig struct {
	Devices           []DeviceConfig `yaml:"devices"`
	PreviewIntervalMs int            `yaml:"preview_interval_ms"` // delay between MJPEG preview frames
}

// ModelConfig points at the ONNX classifier and its metadata.
type ModelConfig struct {
	Path          string  `yaml:"path"`
	MetadataPath  string  `yaml:"metadata_path"`
	SharedLibrary string  `yaml:"shared_library"` // onnxruntime shared library; empty = library default
	CropAndScale  string  `yaml:"crop_and_scale"`
	MinConfidence float64 `yaml:"min_confidence"` // observations below are discarded (0 keeps all)
}

// DisplayConfig holds the results label and preview view settings.
type DisplayConfig struct {
	TopK         int `yaml:"top_k"`         // classifications shown in the label
	ViewWidthPx  int `yaml:"view_width_px"` // preview view bounds
	ViewHeightPx int `yaml:"view_height_px"`
}

// TriggerConfig holds the non-web capture triggers.
type TriggerConfig struct {
	ButtonPin  int    `yaml:"button_pin"`  // BCM pin of an active-low push button. 0 = not used.
	LEDPin     int    `yaml:"led_pin"`     // BCM pin of a busy LED. 0 = not used.
	DebounceMs int    `yaml:"debounce_ms"` // button debounce window
	PollMs     int    `yaml:"poll_ms"`     // button poll interval
	Schedule   string `yaml:"schedule"`    // optional 5-field cron expression
}

// HistoryConfig controls the classification history database.
type HistoryConfig struct {
	DBPath string `yaml:"db_path"` // empty disables history
	Limit  int    `yaml:"limit"`   // rows returned by GET /history
}

// DefaultsConfig contains generic parameters.
type DefaultsConfig struct {
	DebugLevel int  `yaml:"debug_level"` // debug level 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)
	MockGPIO   bool `yaml:"mock_gpio"`   // use mock GPIO (true=dev/test, false=real Raspberry Pi)
}

// Config aggregates all application configuration.
type Config struct {
	Camera   CameraConfig   `yaml:"camera"`
	Model    ModelConfig    `yaml:"model"`
	Display  DisplayConfig  `yaml:"display"`
	Trigger  TriggerConfig  `yaml:"trigger"`
	History  HistoryConfig  `yaml:"history"`
	Defaults DefaultsConfig `yaml:"defaults"`
}

// ValidateConfigPath accepts only .yaml files located directly in a configs/ directory.
func ValidateConfigPath(path string) error {
	if path == "" {
		return fmt.Errorf("config path is empty")
	}
	if filepath.Ext(path) != ".yaml" {
		return fmt.Errorf("config path %q must have a .yaml extension", path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}
	if filepath.Base(filepath.Dir(abs)) != "configs" {
		return fmt.Errorf("config path %q must be inside a configs/ directory", path)
	}
	return nil
}

// Load reads a YAML file and returns the configuration.
func Load(path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat config file: %w", err)
	}
	if info.Size() > MaxConfigFileBytes {
		return nil, fmt.Errorf("config file is %d bytes, limit is %d", info.Size(), MaxConfigFileBytes)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) validate() error {
	seen := make(map[string]bool)
	for i, d := range c.Camera.Devices {
		if d.ID == "" {
			return fmt.Errorf("camera.devices[%d].id is required", i)
		}
		if seen[d.ID] {
			return fmt.Errorf("camera.devices[%d]: duplicate id %q", i, d.ID)
		}
		seen[d.ID] = true

		switch d.Driver {
		case DriverCommand:
			if len(d.Command) == 0 {
				return fmt.Errorf("camera.devices[%d].command is required for the command driver", i)
			}
		case DriverFile:
			if d.Path == "" {
				return fmt.Errorf("camera.devices[%d].path is required for the file driver", i)
			}
		default:
			return fmt.Errorf("camera.devices[%d]: unsupported driver %q", i, d.Driver)
		}

		switch strings.ToLower(d.Position) {
		case "", "back", "front", "unspecified":
		default:
			return fmt.Errorf("camera.devices[%d]: unknown position %q", i, d.Position)
		}
	}

	if c.Model.Path == "" {
		return fmt.Errorf("model.path is required")
	}
	if c.Model.MetadataPath == "" {
		return fmt.Errorf("model.metadata_path is required")
	}
	switch c.Model.CropAndScale {
	case "", CropCenter, CropScaleFit, CropScaleFill:
	default:
		return fmt.Errorf("model.crop_and_scale must be one of %s, %s, %s, got %q",
			CropCenter, CropScaleFit, CropScaleFill, c.Model.CropAndScale)
	}
	if c.Model.MinConfidence < 0 || c.Model.MinConfidence > 1 {
		return fmt.Errorf("model.min_confidence must be between 0 and 1, got %.2f", c.Model.MinConfidence)
	}
	if c.Display.TopK < 0 {
		return fmt.Errorf("display.top_k must be >= 0, got %d", c.Display.TopK)
	}
	if c.Trigger.ButtonPin < 0 || c.Trigger.LEDPin < 0 {
		return fmt.Errorf("trigger pins must be >= 0")
	}
	if c.Trigger.ButtonPin > 0 && c.Trigger.ButtonPin == c.Trigger.LEDPin {
		return fmt.Errorf("trigger.button_pin and trigger.led_pin must differ, both are %d", c.Trigger.ButtonPin)
	}
	if c.Defaults.DebugLevel < 0 || c.Defaults.DebugLevel > 4 {
		return fmt.Errorf("defaults.debug_level must be between 0 and 4, got %d", c.Defaults.DebugLevel)
	}
	return nil
}

func (c *Config) applyDefaults() {
	for i := range c.Camera.Devices {
		d := &c.Camera.Devices[i]
		if d.Name == "" {
			d.Name = d.ID
		}
		if d.Type == "" {
			d.Type = "wide_angle"
		}
		if d.Position == "" {
			d.Position = "unspecified"
		}
		d.Position = strings.ToLower(d.Position)
	}
	if c.Camera.PreviewIntervalMs <= 0 {
		c.Camera.PreviewIntervalMs = 500 // 2 fps is plenty for framing
	}
	if c.Model.CropAndScale == "" {
		c.Model.CropAndScale = CropCenter
	}
	if c.Display.TopK == 0 {
		c.Display.TopK = 2
	}
	if c.Display.ViewWidthPx <= 0 {
		c.Display.ViewWidthPx = 480
	}
	if c.Display.ViewHeightPx <= 0 {
		c.Display.ViewHeightPx = 640 // portrait
	}
	if c.Trigger.DebounceMs <= 0 {
		c.Trigger.DebounceMs = 50
	}
	if c.Trigger.PollMs <= 0 {
		c.Trigger.PollMs = 10
	}
	if c.History.Limit <= 0 {
		c.History.Limit = 50
	}
}

// PreviewInterval returns the delay between two preview frames.
func (c *Config) PreviewInterval() time.Duration {
	return time.Duration(c.Camera.PreviewIntervalMs) * time.Millisecond
}

// Debounce returns the button debounce window.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.Trigger.DebounceMs) * time.Millisecond
}

// PollInterval returns the button poll interval.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Trigger.PollMs) * time.Millisecond
}
