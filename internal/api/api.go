package api

import (
	"diabetes-backend/internal/core"
	"diabetes-backend/internal/metrics"
	"diabetes-backend/pkg/api"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

type PredictionService struct {
	pipeline *core.Pipeline
	metrics  *metrics.Metrics
}

func NewPredictionService(pipeline *core.Pipeline, m *metrics.Metrics) *PredictionService {
	return &PredictionService{pipeline: pipeline, metrics: m}
}

func (s *PredictionService) AddRoutes(r chi.Router) {
	r.Get("/", RestHandler(s.Health))
	r.Post("/predict", RestHandler(s.Predict))
	r.Handle("/metrics", s.metrics.Handler())
}

func (s *PredictionService) Health(r *http.Request) (any, error) {
	return api.HealthResponse{Status: "OK"}, nil
}

func (s *PredictionService) Predict(r *http.Request) (any, error) {
	record, err := ParsePatientRecord(r)
	if err != nil {
		s.metrics.ObserveValidationError()
		return nil, err
	}
	slog.Debug("received payload", "record", record)

	start := time.Now()
	result, err := s.pipeline.Predict(record)
	elapsed := time.Since(start)

	if s.pipeline.HasScaler() && !result.Scaled {
		s.metrics.ObserveScalerFallback()
	}
	slog.Debug("feature array passed to model", "features", result.Features, "scaled", result.Scaled)

	if err != nil {
		s.metrics.ObservePredictionError(elapsed)
		return nil, CodedError(http.StatusInternalServerError, err)
	}
	s.metrics.ObservePrediction(result.Prediction.Label, elapsed)

	slog.Info("prediction", "label", result.Prediction.Label, "probability", result.Prediction.Probability, "scaled", result.Scaled, "duration", elapsed)
	return api.PredictionResponse{
		Prediction:  result.Prediction.Label,
		Probability: result.Prediction.Probability,
	}, nil
}
