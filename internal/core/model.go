package core

import (
	"diabetes-backend/internal/core/types"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"
)

// ModelType represents the kind of serialized classifier
type ModelType string

// Available model types
const (
	LogisticRegression ModelType = "logistic_regression"
	DecisionTree       ModelType = "decision_tree"
	LinearSVC          ModelType = "linear_svc"
	Onnx               ModelType = "onnx"
)

var (
	ErrUnknownModelType = errors.New("unknown model type")
	ErrPrediction       = errors.New("prediction failed")
)

// Classifier is a loaded model that can assign a class label to a feature vector.
// Implementations are immutable after loading and safe for concurrent use.
type Classifier interface {
	Classify(features types.FeatureVector) (int, error)

	Release()
}

// ProbabilisticClassifier is a Classifier that can also estimate per-class
// probabilities. PredictProba returns one probability per class, in the same
// order as the classes the model was fit with.
type ProbabilisticClassifier interface {
	Classifier

	PredictProba(features types.FeatureVector) ([]float64, error)
}

// JointClassifier produces the label and the class probabilities from a single
// evaluation of the model.
type JointClassifier interface {
	ProbabilisticClassifier

	ClassifyProba(features types.FeatureVector) (int, []float64, error)
}

type ModelLoader func(data []byte) (Classifier, error)

func NewModelLoaders(onnxCfg OnnxConfig) map[ModelType]ModelLoader {
	return map[ModelType]ModelLoader{
		LogisticRegression: func(data []byte) (Classifier, error) {
			return LoadLogisticRegression(data)
		},
		LinearSVC: func(data []byte) (Classifier, error) {
			return LoadLinearSVC(data)
		},
		DecisionTree: func(data []byte) (Classifier, error) {
			return LoadDecisionTree(data)
		},
		Onnx: func(data []byte) (Classifier, error) {
			return LoadOnnxModel(data, onnxCfg)
		},
	}
}

type artifactHeader struct {
	Type string `json:"type"`
}

// DetectModelType infers the model type from the artifact location and
// contents: ".onnx" files are ONNX graphs, anything else must be a JSON
// artifact with a "type" field.
func DetectModelType(location string, data []byte) (ModelType, error) {
	if strings.EqualFold(filepath.Ext(location), ".onnx") {
		return Onnx, nil
	}

	var header artifactHeader
	if err := json.Unmarshal(data, &header); err != nil {
		return "", fmt.Errorf("error reading artifact header: %w", err)
	}
	if header.Type == "" {
		return "", fmt.Errorf("artifact header is missing the 'type' field")
	}
	return ModelType(header.Type), nil
}

// NewModelDecoder returns a decoder that turns artifact bytes into a Classifier.
// If modelType is empty the type is detected from the artifact itself.
func NewModelDecoder(loaders map[ModelType]ModelLoader, modelType ModelType, location string) func([]byte) (Classifier, error) {
	return func(data []byte) (Classifier, error) {
		mt := modelType
		if mt == "" {
			var err error
			if mt, err = DetectModelType(location, data); err != nil {
				return nil, err
			}
		}

		loader, ok := loaders[mt]
		if !ok {
			return nil, fmt.Errorf("%w: '%s'", ErrUnknownModelType, mt)
		}
		return loader(data)
	}
}

// decodeClasses converts sklearn's classes_ to int labels. Targets fit as
// floats serialize as 0.0/1.0; any non-integral class is rejected.
func decodeClasses(classes []float64) ([]int, error) {
	if classes == nil {
		return nil, nil
	}
	out := make([]int, len(classes))
	for i, c := range classes {
		if c != math.Trunc(c) || math.IsInf(c, 0) {
			return nil, fmt.Errorf("class label %v is not an integer", c)
		}
		out[i] = int(c)
	}
	return out, nil
}

func checkFeatureCount(features types.FeatureVector, expected int) error {
	if len(features) != expected {
		return fmt.Errorf("model expects %d features, got %d", expected, len(features))
	}
	return nil
}

// OnnxConfig names the graph tensors of an exported classifier. An empty
// ProbabilityOutput loads the model as a label-only classifier.
type OnnxConfig struct {
	InputName         string
	LabelOutput       string
	ProbabilityOutput string
}
