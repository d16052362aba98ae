package core

import (
	"diabetes-backend/internal/core/types"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
)

type ScalerType string

const (
	StandardScalerType ScalerType = "standard_scaler"
	MinMaxScalerType   ScalerType = "min_max_scaler"
)

var ErrScalerTransform = errors.New("scaler transform failed")

// Scaler rescales a feature vector. Transform never modifies its input.
type Scaler interface {
	Transform(features types.FeatureVector) (types.FeatureVector, error)
}

// DecodeScaler decodes a JSON scaler artifact. Only the structure is checked
// here; a scaler whose parameters do not fit the feature vector still loads
// and fails on Transform.
func DecodeScaler(data []byte) (Scaler, error) {
	var header artifactHeader
	if err := json.Unmarshal(data, &header); err != nil {
		return nil, fmt.Errorf("error reading scaler header: %w", err)
	}

	switch ScalerType(header.Type) {
	case StandardScalerType:
		var s StandardScaler
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("error decoding standard scaler: %w", err)
		}
		return &s, nil
	case MinMaxScalerType:
		var s MinMaxScaler
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("error decoding min-max scaler: %w", err)
		}
		return &s, nil
	default:
		return nil, fmt.Errorf("unknown scaler type '%s'", header.Type)
	}
}

// StandardScaler computes (x - mean_) / scale_. A nil Mean or Scale disables
// centering or scaling respectively.
type StandardScaler struct {
	Mean         []float64 `json:"mean_"`
	Scale        []float64 `json:"scale_"`
	FeatureNames []string  `json:"feature_names_in_,omitempty"`
}

func (s *StandardScaler) Transform(features types.FeatureVector) (types.FeatureVector, error) {
	if err := checkScalerInput(features, s.FeatureNames, s.Mean, s.Scale); err != nil {
		return nil, err
	}

	out := features.Clone()
	for i := range out {
		if s.Mean != nil {
			out[i] -= s.Mean[i]
		}
		if s.Scale != nil && s.Scale[i] != 0 {
			out[i] /= s.Scale[i]
		}
	}
	return checkFinite(out)
}

// MinMaxScaler computes x * scale_ + min_.
type MinMaxScaler struct {
	Min          []float64 `json:"min_"`
	Scale        []float64 `json:"scale_"`
	FeatureNames []string  `json:"feature_names_in_,omitempty"`
}

func (s *MinMaxScaler) Transform(features types.FeatureVector) (types.FeatureVector, error) {
	if s.Min == nil || s.Scale == nil {
		return nil, fmt.Errorf("%w: min-max scaler is not fitted", ErrScalerTransform)
	}
	if err := checkScalerInput(features, s.FeatureNames, s.Min, s.Scale); err != nil {
		return nil, err
	}

	out := features.Clone()
	for i := range out {
		out[i] = out[i]*s.Scale[i] + s.Min[i]
	}
	return checkFinite(out)
}

func checkScalerInput(features types.FeatureVector, names []string, params ...[]float64) error {
	if names != nil && !slices.Equal(names, types.FeatureNames) {
		return fmt.Errorf("%w: feature names %v do not match those passed %v", ErrScalerTransform, names, types.FeatureNames)
	}
	for _, p := range params {
		if p != nil && len(p) != len(features) {
			return fmt.Errorf("%w: scaler is expecting %d features, got %d", ErrScalerTransform, len(p), len(features))
		}
	}
	return nil
}

func checkFinite(v types.FeatureVector) (types.FeatureVector, error) {
	for i, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil, fmt.Errorf("%w: non-finite value for feature %s", ErrScalerTransform, featureName(i))
		}
	}
	return v, nil
}

func featureName(i int) string {
	if i >= 0 && i < len(types.FeatureNames) {
		return types.FeatureNames[i]
	}
	return fmt.Sprintf("#%d", i)
}
