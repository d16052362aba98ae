//go:build !windows

package core

import (
	"diabetes-backend/internal/core/types"
	"errors"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

var (
	initOnce sync.Once
	initErr  error
)

// InitOnnxRuntime loads the onnxruntime shared library. It must be called
// before any ONNX model is loaded.
func InitOnnxRuntime(dylib string) error {
	initOnce.Do(func() {
		if dylib == "" {
			initErr = errors.New("onnxruntime shared library path is not set")
			return
		}
		ort.SetSharedLibraryPath(dylib)
		initErr = ort.InitializeEnvironment()
	})
	return initErr
}

func DestroyOnnxRuntime() error {
	if !ort.IsInitialized() {
		return nil
	}
	return ort.DestroyEnvironment()
}

// OnnxModel runs a classifier graph exported with skl2onnx (zipmap disabled),
// taking a [1, n] float tensor and producing a label tensor and optionally a
// [1, classes] probability tensor.
type OnnxModel struct {
	session  *ort.DynamicAdvancedSession
	outputs  []string
	hasProba bool
}

// OnnxProbabilisticModel is an OnnxModel whose graph has a probability output.
type OnnxProbabilisticModel struct {
	*OnnxModel
}

func LoadOnnxModel(data []byte, cfg OnnxConfig) (Classifier, error) {
	if !ort.IsInitialized() {
		return nil, errors.New("onnxruntime is not initialized")
	}
	if cfg.InputName == "" || cfg.LabelOutput == "" {
		return nil, errors.New("onnx input and label output names are required")
	}

	outputs := []string{cfg.LabelOutput}
	if cfg.ProbabilityOutput != "" {
		outputs = append(outputs, cfg.ProbabilityOutput)
	}

	session, err := ort.NewDynamicAdvancedSessionWithONNXData(data, []string{cfg.InputName}, outputs, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory session: %w", err)
	}

	model := &OnnxModel{session: session, outputs: outputs, hasProba: cfg.ProbabilityOutput != ""}
	if model.hasProba {
		return &OnnxProbabilisticModel{OnnxModel: model}, nil
	}
	return model, nil
}

func (m *OnnxModel) run(features types.FeatureVector) ([]ort.Value, error) {
	input := make([]float32, len(features))
	for i, v := range features {
		input[i] = float32(v)
	}

	inT, err := ort.NewTensor(ort.NewShape(1, int64(len(input))), input)
	if err != nil {
		return nil, err
	}
	defer inT.Destroy()

	outs := make([]ort.Value, len(m.outputs))
	if err := m.session.Run([]ort.Value{inT}, outs); err != nil {
		destroyAll(outs)
		return nil, fmt.Errorf("session run error: %w", err)
	}
	return outs, nil
}

func (m *OnnxModel) Classify(features types.FeatureVector) (int, error) {
	outs, err := m.run(features)
	if err != nil {
		return 0, err
	}
	defer destroyAll(outs)

	return labelFromTensor(outs[0])
}

func labelFromTensor(value ort.Value) (int, error) {
	switch t := value.(type) {
	case *ort.Tensor[int64]:
		if data := t.GetData(); len(data) > 0 {
			return int(data[0]), nil
		}
	case *ort.Tensor[int32]:
		if data := t.GetData(); len(data) > 0 {
			return int(data[0]), nil
		}
	default:
		return 0, fmt.Errorf("unsupported label output type %T", value)
	}
	return 0, errors.New("model returned an empty label tensor")
}

func probaFromTensor(value ort.Value) ([]float64, error) {
	var proba []float64
	switch t := value.(type) {
	case *ort.Tensor[float32]:
		for _, p := range t.GetData() {
			proba = append(proba, float64(p))
		}
	case *ort.Tensor[float64]:
		proba = append(proba, t.GetData()...)
	default:
		return nil, fmt.Errorf("unsupported probability output type %T, export the model with zipmap disabled", value)
	}
	return proba, nil
}

// ClassifyProba reads the label and probability outputs of one session run.
func (m *OnnxProbabilisticModel) ClassifyProba(features types.FeatureVector) (int, []float64, error) {
	outs, err := m.run(features)
	if err != nil {
		return 0, nil, err
	}
	defer destroyAll(outs)

	label, err := labelFromTensor(outs[0])
	if err != nil {
		return 0, nil, err
	}
	proba, err := probaFromTensor(outs[1])
	if err != nil {
		return 0, nil, err
	}
	return label, proba, nil
}

func (m *OnnxProbabilisticModel) PredictProba(features types.FeatureVector) ([]float64, error) {
	_, proba, err := m.ClassifyProba(features)
	return proba, err
}

func (m *OnnxModel) Release() {
	m.session.Destroy()
}

func destroyAll(values []ort.Value) {
	for _, v := range values {
		if v != nil {
			v.Destroy()
		}
	}
}
