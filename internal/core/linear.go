package core

import (
	"diabetes-backend/internal/core/types"
	"encoding/json"
	"fmt"
	"math"
)

// linearParams mirrors the fitted attributes of a binary sklearn linear model.
type linearParams struct {
	Coef      [][]float64 `json:"coef_"`
	Intercept []float64   `json:"intercept_"`
	Classes   []float64   `json:"classes_"`
}

type linearModel struct {
	weights   []float64
	intercept float64
	classes   [2]int
}

func loadLinearModel(data []byte) (linearModel, error) {
	var params linearParams
	if err := json.Unmarshal(data, &params); err != nil {
		return linearModel{}, fmt.Errorf("error decoding linear model: %w", err)
	}

	if len(params.Coef) != 1 {
		return linearModel{}, fmt.Errorf("expected coef_ for a single binary decision function, got %d rows", len(params.Coef))
	}
	if len(params.Coef[0]) == 0 {
		return linearModel{}, fmt.Errorf("coef_ is empty")
	}
	if len(params.Intercept) != 1 {
		return linearModel{}, fmt.Errorf("expected a single intercept_, got %d", len(params.Intercept))
	}

	decoded, err := decodeClasses(params.Classes)
	if err != nil {
		return linearModel{}, err
	}
	classes := [2]int{0, 1}
	if decoded != nil {
		if len(decoded) != 2 {
			return linearModel{}, fmt.Errorf("expected 2 classes_, got %d", len(decoded))
		}
		classes = [2]int{decoded[0], decoded[1]}
	}

	return linearModel{
		weights:   params.Coef[0],
		intercept: params.Intercept[0],
		classes:   classes,
	}, nil
}

func (m *linearModel) decision(features types.FeatureVector) (float64, error) {
	if err := checkFeatureCount(features, len(m.weights)); err != nil {
		return 0, err
	}
	score := m.intercept
	for i, w := range m.weights {
		score += w * features[i]
	}
	return score, nil
}

func (m *linearModel) Classify(features types.FeatureVector) (int, error) {
	score, err := m.decision(features)
	if err != nil {
		return 0, err
	}
	if score > 0 {
		return m.classes[1], nil
	}
	return m.classes[0], nil
}

func (m *linearModel) Release() {}

// LogisticRegressionModel is a binary logistic regression. It exposes class
// probabilities through the logistic function of the decision score.
type LogisticRegressionModel struct {
	linearModel
}

func LoadLogisticRegression(data []byte) (*LogisticRegressionModel, error) {
	m, err := loadLinearModel(data)
	if err != nil {
		return nil, err
	}
	return &LogisticRegressionModel{linearModel: m}, nil
}

func (m *LogisticRegressionModel) PredictProba(features types.FeatureVector) ([]float64, error) {
	score, err := m.decision(features)
	if err != nil {
		return nil, err
	}
	p := 1 / (1 + math.Exp(-score))
	return []float64{1 - p, p}, nil
}

// LinearSVCModel is a linear support vector classifier. It has no
// probability estimates, only the sign of the decision function.
type LinearSVCModel struct {
	linearModel
}

func LoadLinearSVC(data []byte) (*LinearSVCModel, error) {
	m, err := loadLinearModel(data)
	if err != nil {
		return nil, err
	}
	return &LinearSVCModel{linearModel: m}, nil
}
