package core

import (
	"diabetes-backend/internal/core/types"
	"diabetes-backend/pkg/api"
	"log/slog"
)

// RawFeatures projects a record onto the canonical feature order.
func RawFeatures(record api.PatientRecord) types.FeatureVector {
	return types.FeatureVector{
		record.Pregnancies,
		record.Glucose,
		record.BloodPressure,
		record.SkinThickness,
		record.Insulin,
		record.BMI,
		record.DiabetesPedigreeFunction,
		record.Age,
	}
}

// BuildFeatures returns the model input for a record. When a scaler is present
// its output is used; if the transform fails the raw features are returned
// instead and scaled is false. Values are never range checked.
func BuildFeatures(record api.PatientRecord, scaler Scaler) (features types.FeatureVector, scaled bool) {
	raw := RawFeatures(record)
	if scaler == nil {
		return raw, false
	}

	transformed, err := scaler.Transform(raw)
	if err != nil {
		slog.Warn("scaler transform failed, using raw features", "error", err)
		return raw, false
	}
	return transformed, true
}
