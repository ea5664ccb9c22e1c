package classify

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/cjeanneret/ClassifyEverything/internal/debug"
)

// Metadata describes an ONNX image classifier: tensor names and shapes, the
// class labels in output order and how pixels are normalised.
type Metadata struct {
	InputName   string    `json:"input_name"`
	OutputName  string    `json:"output_name"`
	InputShape  []int64   `json:"input_shape"`  // [1, 3, H, W] or [1, H, W, 3]
	OutputShape []int64   `json:"output_shape"` // [1, len(classes)]
	Classes     []string  `json:"classes"`
	ImageSize   int       `json:"image_size"`
	Mean        []float32 `json:"mean"` // per RGB channel, applied after scaling to [0, 1]
	Std         []float32 `json:"std"`
	Softmax     bool      `json:"softmax"` // outputs are logits
}

// ErrInvalidMetadata is returned for metadata that cannot describe a classifier.
var ErrInvalidMetadata = errors.New("classify: invalid model metadata")

// LoadMetadata reads and validates a metadata JSON file.
func LoadMetadata(path string) (Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to read metadata: %w", err)
	}
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return Metadata{}, fmt.Errorf("failed to parse metadata: %w", err)
	}
	if err := meta.normalize(); err != nil {
		return Metadata{}, err
	}
	return meta, nil
}

// normalize validates m and fills defaults.
func (m *Metadata) normalize() error {
	if len(m.InputShape) != 4 {
		return fmt.Errorf("%w: input_shape must have 4 dimensions, got %v", ErrInvalidMetadata, m.InputShape)
	}
	if m.InputShape[1] != 3 && m.InputShape[3] != 3 {
		return fmt.Errorf("%w: input_shape %v has no RGB channel axis", ErrInvalidMetadata, m.InputShape)
	}
	if len(m.Classes) == 0 {
		return fmt.Errorf("%w: no classes", ErrInvalidMetadata)
	}
	if len(m.OutputShape) == 0 {
		m.OutputShape = []int64{1, int64(len(m.Classes))}
	}
	if m.InputName == "" {
		m.InputName = "input"
	}
	if m.OutputName == "" {
		m.OutputName = "output"
	}

	h, w := m.spatial()
	if h != w {
		return fmt.Errorf("%w: non-square input %dx%d", ErrInvalidMetadata, w, h)
	}
	if m.ImageSize == 0 {
		m.ImageSize = int(h)
	}
	if int64(m.ImageSize) != h {
		return fmt.Errorf("%w: image_size %d does not match input_shape %v", ErrInvalidMetadata, m.ImageSize, m.InputShape)
	}

	if len(m.Mean) == 0 {
		m.Mean = []float32{0, 0, 0}
	}
	if len(m.Std) == 0 {
		m.Std = []float32{1, 1, 1}
	}
	if len(m.Mean) != 3 || len(m.Std) != 3 {
		return fmt.Errorf("%w: mean and std need 3 values", ErrInvalidMetadata)
	}
	for _, s := range m.Std {
		if s == 0 {
			return fmt.Errorf("%w: std must not be 0", ErrInvalidMetadata)
		}
	}
	return nil
}

// ChannelsLast reports whether the input tensor is NHWC.
func (m Metadata) ChannelsLast() bool {
	return len(m.InputShape) == 4 && m.InputShape[1] != 3 && m.InputShape[3] == 3
}

func (m Metadata) spatial() (h, w int64) {
	if m.ChannelsLast() {
		return m.InputShape[1], m.InputShape[2]
	}
	return m.InputShape[2], m.InputShape[3]
}

// Model is a loaded classifier. Implementations are safe for concurrent use
// and never change after construction.
type Model interface {
	Metadata() Metadata
	// Infer runs the model on a preprocessed input tensor and returns one
	// score per output element.
	Infer(input []float32) ([]float32, error)
}

// ONNXModel runs an ONNX classifier through onnxruntime.
type ONNXModel struct {
	meta Metadata

	mu           sync.Mutex // guards the bound tensors during Run
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
}

// NewONNXModel initialises onnxruntime and loads the model. sharedLibrary is
// the onnxruntime library path; empty uses the platform default.
func NewONNXModel(modelPath, metadataPath, sharedLibrary string) (*ONNXModel, error) {
	meta, err := LoadMetadata(metadataPath)
	if err != nil {
		return nil, err
	}

	if sharedLibrary != "" {
		ort.SetSharedLibraryPath(sharedLibrary)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX environment: %w", err)
	}

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(meta.InputShape...))
	if err != nil {
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(meta.OutputShape...))
	if err != nil {
		inputTensor.Destroy()
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{meta.InputName}, []string{meta.OutputName},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		nil)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	debug.Info("Model loaded: %s (%d classes, %dpx input)", modelPath, len(meta.Classes), meta.ImageSize)
	return &ONNXModel{
		meta:         meta,
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
	}, nil
}

func (m *ONNXModel) Metadata() Metadata {
	return m.meta
}

// Infer copies input into the session tensor, runs it and returns a copy of the output.
func (m *ONNXModel) Infer(input []float32) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	in := m.inputTensor.GetData()
	if len(input) != len(in) {
		return nil, fmt.Errorf("expected %d input values, got %d", len(in), len(input))
	}
	copy(in, input)

	if err := m.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}
	return append([]float32(nil), m.outputTensor.GetData()...), nil
}

// Close releases the session, its tensors and the onnxruntime environment.
func (m *ONNXModel) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.inputTensor != nil {
		m.inputTensor.Destroy()
	}
	if m.outputTensor != nil {
		m.outputTensor.Destroy()
	}
	if m.session != nil {
		m.session.Destroy()
	}
	ort.DestroyEnvironment()
}
