package artifact

import (
	"context"
	"diabetes-backend/internal/core"
	"fmt"
	"log/slog"
)

type PipelineConfig struct {
	ModelPath  string
	ModelType  core.ModelType
	ScalerPath string
	Onnx       core.OnnxConfig
}

// LoadPipeline loads the model, which must succeed, and then tries the scaler,
// which may be absent.
func LoadPipeline(ctx context.Context, l *Loader, cfg PipelineConfig) (*core.Pipeline, error) {
	loaders := core.NewModelLoaders(cfg.Onnx)

	model, err := LoadRequired(ctx, l, cfg.ModelPath, core.NewModelDecoder(loaders, cfg.ModelType, cfg.ModelPath))
	if err != nil {
		return nil, fmt.Errorf("could not load model: %w", err)
	}

	// A nil scaler means predictions use raw features.
	scaler, _ := LoadOptional(ctx, l, cfg.ScalerPath, core.DecodeScaler)

	pipeline := core.NewPipeline(model, scaler)
	slog.Info("prediction pipeline ready", "model", cfg.ModelPath, "scaler", pipeline.HasScaler(), "probability", pipeline.HasProbability())
	return pipeline, nil
}
