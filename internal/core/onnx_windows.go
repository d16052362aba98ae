//go:build windows

package core

import (
	"diabetes-backend/internal/core/types"
	"errors"
)

var ErrOnnxNotSupportedOnWindows = errors.New("ONNX models are not supported on Windows")

func InitOnnxRuntime(dylib string) error {
	return ErrOnnxNotSupportedOnWindows
}

func DestroyOnnxRuntime() error {
	return nil
}

type OnnxModel struct{}

func LoadOnnxModel(data []byte, cfg OnnxConfig) (Classifier, error) {
	return nil, ErrOnnxNotSupportedOnWindows
}

func (m *OnnxModel) Classify(features types.FeatureVector) (int, error) {
	return 0, ErrOnnxNotSupportedOnWindows
}

func (m *OnnxModel) Release() {
	// no-op
}
