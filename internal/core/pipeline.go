package core

import (
	"diabetes-backend/internal/core/types"
	"diabetes-backend/pkg/api"
)

// Pipeline holds the artifacts loaded at startup. It is read-only after
// construction and shared by all requests.
type Pipeline struct {
	model     Classifier
	predictor Predictor
	scaler    Scaler
}

// NewPipeline wraps a loaded model and an optional scaler (nil for none).
func NewPipeline(model Classifier, scaler Scaler) *Pipeline {
	return &Pipeline{
		model:     model,
		predictor: NewPredictor(model),
		scaler:    scaler,
	}
}

type PipelineResult struct {
	Features   types.FeatureVector
	Scaled     bool
	Prediction types.Prediction
}

func (p *Pipeline) Predict(record api.PatientRecord) (PipelineResult, error) {
	features, scaled := BuildFeatures(record, p.scaler)

	prediction, err := p.predictor.Predict(features)
	if err != nil {
		return PipelineResult{Features: features, Scaled: scaled}, err
	}

	return PipelineResult{Features: features, Scaled: scaled, Prediction: prediction}, nil
}

func (p *Pipeline) HasScaler() bool {
	return p.scaler != nil
}

func (p *Pipeline) HasProbability() bool {
	return p.predictor.HasProbability()
}

func (p *Pipeline) Release() {
	p.model.Release()
}
