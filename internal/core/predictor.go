package core

import (
	"diabetes-backend/internal/core/types"
	"fmt"
	"log/slog"
	"math"
	"runtime/debug"
)

// Predictor turns a feature vector into a prediction. The variant is fixed
// when the model is loaded, so the request path does no capability checks.
type Predictor interface {
	Predict(features types.FeatureVector) (types.Prediction, error)

	// HasProbability reports whether probabilities come from the model or
	// are derived from the label.
	HasProbability() bool
}

func NewPredictor(model Classifier) Predictor {
	if jm, ok := model.(JointClassifier); ok {
		return &probabilisticPredictor{eval: jm.ClassifyProba}
	}
	if pm, ok := model.(ProbabilisticClassifier); ok {
		return &probabilisticPredictor{eval: separateEval(pm)}
	}
	return &labelOnlyPredictor{model: model}
}

type probabilisticPredictor struct {
	eval func(features types.FeatureVector) (int, []float64, error)
}

func separateEval(model ProbabilisticClassifier) func(types.FeatureVector) (int, []float64, error) {
	return func(features types.FeatureVector) (int, []float64, error) {
		label, err := model.Classify(features)
		if err != nil {
			return 0, nil, err
		}
		proba, err := model.PredictProba(features)
		if err != nil {
			return 0, nil, err
		}
		return label, proba, nil
	}
}

func (p *probabilisticPredictor) Predict(features types.FeatureVector) (pred types.Prediction, err error) {
	defer recoverPrediction(&err)

	label, proba, err := p.eval(features)
	if err != nil {
		return types.Prediction{}, fmt.Errorf("%w: %w", ErrPrediction, err)
	}
	if len(proba) <= types.PositiveClass {
		return types.Prediction{}, fmt.Errorf("%w: model returned %d class probabilities, expected at least %d", ErrPrediction, len(proba), types.PositiveClass+1)
	}

	prob := proba[types.PositiveClass]
	if math.IsNaN(prob) || prob < 0 || prob > 1 {
		return types.Prediction{}, fmt.Errorf("%w: positive class probability %v is outside [0, 1]", ErrPrediction, prob)
	}

	return types.Prediction{Label: label, Probability: prob}, nil
}

func (p *probabilisticPredictor) HasProbability() bool { return true }

type labelOnlyPredictor struct {
	model Classifier
}

func (p *labelOnlyPredictor) Predict(features types.FeatureVector) (pred types.Prediction, err error) {
	defer recoverPrediction(&err)

	label, err := p.model.Classify(features)
	if err != nil {
		return types.Prediction{}, fmt.Errorf("%w: %w", ErrPrediction, err)
	}

	prob := 0.0
	if label == types.PositiveClass {
		prob = 1.0
	}
	return types.Prediction{Label: label, Probability: prob}, nil
}

func (p *labelOnlyPredictor) HasProbability() bool { return false }

func recoverPrediction(err *error) {
	if r := recover(); r != nil {
		slog.Error("panic during prediction", "panic", r, "stack", string(debug.Stack()))
		*err = fmt.Errorf("%w: %v", ErrPrediction, r)
	}
}
