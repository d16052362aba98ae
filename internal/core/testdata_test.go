package core

import (
	"diabetes-backend/internal/core/types"
	"diabetes-backend/pkg/api"
	"errors"
)

var samplePatient = api.PatientRecord{
	Pregnancies:              2,
	Glucose:                  120,
	BloodPressure:            70,
	SkinThickness:            20,
	Insulin:                  80,
	BMI:                      25.5,
	DiabetesPedigreeFunction: 0.5,
	Age:                      30,
}

const logisticArtifact = `{
	"type": "logistic_regression",
	"coef_": [[0.1, 0.03, -0.01, 0.0, -0.001, 0.08, 0.9, 0.02]],
	"intercept_": [-8.0],
	"classes_": [0, 1]
}`

const linearSVCArtifact = `{
	"type": "linear_svc",
	"coef_": [[0.1, 0.03, -0.01, 0.0, -0.001, 0.08, 0.9, 0.02]],
	"intercept_": [-8.0],
	"classes_": [0, 1]
}`

// Splits on Glucose (feature 1) at 127.5, then on BMI (feature 5) at 29.95.
const treeArtifact = `{
	"type": "decision_tree",
	"children_left":  [1, -1, 3, -1, -1],
	"children_right": [2, -1, 4, -1, -1],
	"feature":        [1, -2, 5, -2, -2],
	"threshold":      [127.5, -2, 29.95, -2, -2],
	"value":          [[500, 268], [390, 95], [110, 173], [60, 20], [50, 153]],
	"classes_":       [0, 1]
}`

type stubClassifier struct {
	label    int
	err      error
	panicMsg string
	calls    int
	released bool
}

func (s *stubClassifier) Classify(features types.FeatureVector) (int, error) {
	s.calls++
	if s.panicMsg != "" {
		panic(s.panicMsg)
	}
	return s.label, s.err
}

func (s *stubClassifier) Release() { s.released = true }

type stubProbClassifier struct {
	stubClassifier
	proba    []float64
	probaErr error
}

func (s *stubProbClassifier) PredictProba(features types.FeatureVector) ([]float64, error) {
	return s.proba, s.probaErr
}

// stubJointClassifier counts separate Classify/PredictProba calls so tests can
// check that the joint path is used instead.
type stubJointClassifier struct {
	stubProbClassifier
	jointCalls int
	probaCalls int
}

func (s *stubJointClassifier) PredictProba(features types.FeatureVector) ([]float64, error) {
	s.probaCalls++
	return s.proba, s.probaErr
}

func (s *stubJointClassifier) ClassifyProba(features types.FeatureVector) (int, []float64, error) {
	s.jointCalls++
	if s.err != nil {
		return 0, nil, s.err
	}
	return s.label, s.proba, s.probaErr
}

type stubScaler struct {
	out types.FeatureVector
	err error
}

func (s *stubScaler) Transform(features types.FeatureVector) (types.FeatureVector, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.out, nil
}

var errModelBroken = errors.New("model is broken")
