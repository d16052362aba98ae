package config

import (
	"diabetes-backend/internal/core"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	ModelPath  string `env:"MODEL_PATH" envDefault:"diabetes.json"`
	ModelType  string `env:"MODEL_TYPE"`
	ScalerPath string `env:"SCALER_PATH" envDefault:"scaler.json"`

	AllowedOrigins []string      `env:"ALLOWED_ORIGINS" envDefault:"http://localhost:5173" envSeparator:","`
	Port           int           `env:"PORT" envDefault:"8000"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"60s"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	LogFile  string `env:"LOG_FILE"`

	ArtifactCacheDir  string `env:"ARTIFACT_CACHE_DIR" envDefault:"./artifacts"`
	S3EndpointURL     string `env:"S3_ENDPOINT_URL"`
	S3AccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`
	S3Region          string `env:"AWS_REGION" envDefault:"us-east-1"`

	OnnxRuntimeDylib      string `env:"ONNX_RUNTIME_DYLIB"`
	OnnxInputName         string `env:"ONNX_INPUT_NAME" envDefault:"float_input"`
	OnnxLabelOutput       string `env:"ONNX_LABEL_OUTPUT" envDefault:"label"`
	OnnxProbabilityOutput string `env:"ONNX_PROBABILITY_OUTPUT" envDefault:"probabilities"`
	OnnxLabelOnly         bool   `env:"ONNX_LABEL_ONLY" envDefault:"false"`
}

func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	for i, origin := range cfg.AllowedOrigins {
		cfg.AllowedOrigins[i] = strings.TrimSpace(origin)
	}

	if strings.EqualFold(strings.TrimSpace(cfg.ScalerPath), "none") {
		cfg.ScalerPath = ""
	}

	if _, err := cfg.SlogLevel(); err != nil {
		return nil, err
	}

	if cfg.ModelType != "" {
		switch core.ModelType(cfg.ModelType) {
		case core.LogisticRegression, core.DecisionTree, core.LinearSVC, core.Onnx:
		default:
			return nil, fmt.Errorf("invalid MODEL_TYPE '%s'", cfg.ModelType)
		}
	}

	return &cfg, nil
}

func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return level, fmt.Errorf("invalid LOG_LEVEL '%s': %w", c.LogLevel, err)
	}
	return level, nil
}

// UsesS3 reports whether any artifact has to be fetched from S3.
func (c *Config) UsesS3() bool {
	return strings.HasPrefix(c.ModelPath, "s3://") || strings.HasPrefix(c.ScalerPath, "s3://")
}

// UsesOnnx reports whether the model will be loaded with onnxruntime.
func (c *Config) UsesOnnx() bool {
	if c.ModelType != "" {
		return core.ModelType(c.ModelType) == core.Onnx
	}
	return strings.HasSuffix(strings.ToLower(c.ModelPath), ".onnx")
}

func (c *Config) OnnxConfig() core.OnnxConfig {
	cfg := core.OnnxConfig{
		InputName:         c.OnnxInputName,
		LabelOutput:       c.OnnxLabelOutput,
		ProbabilityOutput: c.OnnxProbabilityOutput,
	}
	if c.OnnxLabelOnly {
		cfg.ProbabilityOutput = ""
	}
	return cfg
}
