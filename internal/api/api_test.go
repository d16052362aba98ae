package api_test

import (
	"bytes"
	"diabetes-backend/internal/api"
	"diabetes-backend/internal/core"
	"diabetes-backend/internal/core/types"
	"diabetes-backend/internal/metrics"
	pkgapi "diabetes-backend/pkg/api"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scenarioBody = `{
	"Pregnancies": 2, "Glucose": 120, "BloodPressure": 70, "SkinThickness": 20,
	"Insulin": 80, "BMI": 25.5, "DiabetesPedigreeFunction": 0.5, "Age": 30
}`

const logisticArtifact = `{
	"type": "logistic_regression",
	"coef_": [[0.1, 0.03, -0.01, 0.0, -0.001, 0.08, 0.9, 0.02]],
	"intercept_": [-8.0],
	"classes_": [0, 1]
}`

// recordingClassifier remembers the last features it was given and can be
// told to fail.
type recordingClassifier struct {
	calls atomic.Int32
	fail  atomic.Bool
	mu    sync.Mutex
	last  types.FeatureVector
}

func (c *recordingClassifier) Classify(features types.FeatureVector) (int, error) {
	c.calls.Add(1)
	c.mu.Lock()
	c.last = features.Clone()
	c.mu.Unlock()
	if c.fail.Load() {
		return 0, errors.New("could not convert string to float: 'abc'")
	}
	return 1, nil
}

func (c *recordingClassifier) Release() {}

type failingScaler struct{}

func (failingScaler) Transform(features types.FeatureVector) (types.FeatureVector, error) {
	return nil, core.ErrScalerTransform
}

func newRouter(t *testing.T, pipeline *core.Pipeline) chi.Router {
	t.Helper()
	router := chi.NewRouter()
	api.NewPredictionService(pipeline, metrics.New()).AddRoutes(router)
	return router
}

func doRequest(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeValidation(t *testing.T, rec *httptest.ResponseRecorder) []pkgapi.ValidationError {
	t.Helper()
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var res pkgapi.ValidationErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	return res.Detail
}

func TestHealth(t *testing.T) {
	model := &recordingClassifier{}
	model.fail.Store(true)
	router := newRouter(t, core.NewPipeline(model, failingScaler{}))

	rec := doRequest(router, http.MethodGet, "/", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status": "OK"}`, rec.Body.String())
	assert.Equal(t, int32(0), model.calls.Load())
}

func TestPredictWithoutScaler(t *testing.T) {
	model, err := core.LoadLogisticRegression([]byte(logisticArtifact))
	require.NoError(t, err)
	router := newRouter(t, core.NewPipeline(model, nil))

	rec := doRequest(router, http.MethodPost, "/predict", scenarioBody)
	require.Equal(t, http.StatusOK, rec.Code)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	assert.Len(t, raw, 2)

	var res pkgapi.PredictionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Contains(t, []int{0, 1}, res.Prediction)
	assert.GreaterOrEqual(t, res.Probability, 0.0)
	assert.LessOrEqual(t, res.Probability, 1.0)

	// Computed from the raw, unscaled features.
	assert.Equal(t, 0, res.Prediction)
	assert.InDelta(t, 1/(1+math.Exp(1.89)), res.Probability, 1e-9)
}

func TestPredictLabelOnlyModel(t *testing.T) {
	model := &recordingClassifier{}
	router := newRouter(t, core.NewPipeline(model, nil))

	rec := doRequest(router, http.MethodPost, "/predict", scenarioBody)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"prediction": 1, "probability": 1.0}`, rec.Body.String())
	assert.Equal(t, types.FeatureVector{2, 120, 70, 20, 80, 25.5, 0.5, 30}, model.last)
}

func TestPredictScalerFailureUsesRawFeatures(t *testing.T) {
	model := &recordingClassifier{}
	router := newRouter(t, core.NewPipeline(model, failingScaler{}))

	for i := 0; i < 2; i++ {
		rec := doRequest(router, http.MethodPost, "/predict", scenarioBody)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, types.FeatureVector{2, 120, 70, 20, 80, 25.5, 0.5, 30}, model.last)
	}
}

func TestPredictWithScaler(t *testing.T) {
	model := &recordingClassifier{}
	scaler := &core.MinMaxScaler{
		Min:   []float64{0, 0, 0, 0, 0, 0, 0, 0},
		Scale: []float64{2, 2, 2, 2, 2, 2, 2, 2},
	}
	router := newRouter(t, core.NewPipeline(model, scaler))

	rec := doRequest(router, http.MethodPost, "/predict", scenarioBody)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, types.FeatureVector{4, 240, 140, 40, 160, 51, 1, 60}, model.last)
}

func TestPredictMissingField(t *testing.T) {
	model := &recordingClassifier{}
	router := newRouter(t, core.NewPipeline(model, nil))

	body := `{"Pregnancies": 2, "Glucose": 120, "BloodPressure": 70, "SkinThickness": 20,
		"Insulin": 80, "BMI": 25.5, "DiabetesPedigreeFunction": 0.5}`
	rec := doRequest(router, http.MethodPost, "/predict", body)

	detail := decodeValidation(t, rec)
	assert.Equal(t, []pkgapi.ValidationError{
		{Loc: []string{"body", "Age"}, Msg: "Field required", Type: "missing"},
	}, detail)
	assert.Equal(t, int32(0), model.calls.Load())
}

func TestPredictInvalidValues(t *testing.T) {
	model := &recordingClassifier{}
	router := newRouter(t, core.NewPipeline(model, nil))

	body := `{"Pregnancies": "two", "Glucose": true, "BloodPressure": 70, "SkinThickness": null,
		"Insulin": 80, "BMI": 25.5, "DiabetesPedigreeFunction": 0.5}`
	rec := doRequest(router, http.MethodPost, "/predict", body)

	detail := decodeValidation(t, rec)
	assert.ElementsMatch(t, []pkgapi.ValidationError{
		{Loc: []string{"body", "Pregnancies"}, Msg: "Input should be a valid number, unable to parse string as a number", Type: "float_parsing"},
		{Loc: []string{"body", "Glucose"}, Msg: "Input should be a valid number", Type: "float_type"},
		{Loc: []string{"body", "SkinThickness"}, Msg: "Input should be a valid number", Type: "float_type"},
		{Loc: []string{"body", "Age"}, Msg: "Field required", Type: "missing"},
	}, detail)
	assert.Equal(t, int32(0), model.calls.Load())
}

func TestPredictMalformedBody(t *testing.T) {
	model := &recordingClassifier{}
	router := newRouter(t, core.NewPipeline(model, nil))

	detail := decodeValidation(t, doRequest(router, http.MethodPost, "/predict", `{"Glucose": 12`))
	require.Len(t, detail, 1)
	assert.Equal(t, "json_invalid", detail[0].Type)
	assert.Equal(t, []string{"body"}, detail[0].Loc)

	detail = decodeValidation(t, doRequest(router, http.MethodPost, "/predict", `[1, 2, 3]`))
	require.Len(t, detail, 1)
	assert.Equal(t, "model_attributes_type", detail[0].Type)

	assert.Equal(t, int32(0), model.calls.Load())
}

func TestPredictCoercesNumericStrings(t *testing.T) {
	model := &recordingClassifier{}
	router := newRouter(t, core.NewPipeline(model, nil))

	body := `{"Pregnancies": "2", "Glucose": " 120.0 ", "BloodPressure": 70, "SkinThickness": 20,
		"Insulin": 80, "BMI": 25.5, "DiabetesPedigreeFunction": 0.5, "Age": 30, "Extra": "ignored"}`
	rec := doRequest(router, http.MethodPost, "/predict", body)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, types.FeatureVector{2, 120, 70, 20, 80, 25.5, 0.5, 30}, model.last)
}

func TestPredictRejectsNonFiniteStrings(t *testing.T) {
	router := newRouter(t, core.NewPipeline(&recordingClassifier{}, nil))

	body := strings.Replace(scenarioBody, `"Age": 30`, `"Age": "NaN"`, 1)
	detail := decodeValidation(t, doRequest(router, http.MethodPost, "/predict", body))
	assert.Equal(t, []pkgapi.ValidationError{
		{Loc: []string{"body", "Age"}, Msg: "Input should be a finite number", Type: "finite_number"},
	}, detail)
}

func TestPredictModelFailure(t *testing.T) {
	model := &recordingClassifier{}
	model.fail.Store(true)
	router := newRouter(t, core.NewPipeline(model, nil))

	rec := doRequest(router, http.MethodPost, "/predict", scenarioBody)
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var res pkgapi.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Contains(t, res.Detail, "could not convert string to float: 'abc'")

	// The server keeps serving once the model recovers.
	model.fail.Store(false)
	rec = doRequest(router, http.MethodPost, "/predict", scenarioBody)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPredictModelFailureLogsStack(t *testing.T) {
	var logs bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&logs, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	model := &recordingClassifier{}
	model.fail.Store(true)
	router := newRouter(t, core.NewPipeline(model, nil))

	rec := doRequest(router, http.MethodPost, "/predict", scenarioBody)
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	out := logs.String()
	assert.Contains(t, out, "internal server error received in endpoint")
	assert.Contains(t, out, "could not convert string to float")
	assert.Contains(t, out, "stack=")
	assert.Contains(t, out, "goroutine")
	assert.Contains(t, out, "api.WriteError")
}

func TestPredictConcurrentRequests(t *testing.T) {
	model, err := core.LoadDecisionTree([]byte(`{
		"children_left": [1, -1, -1], "children_right": [2, -1, -1],
		"feature": [1, -2, -2], "threshold": [127.5, -2, -2],
		"value": [[10, 10], [8, 2], [3, 7]], "classes_": [0, 1]
	}`))
	require.NoError(t, err)
	router := newRouter(t, core.NewPipeline(model, nil))

	var wg sync.WaitGroup
	codes := make([]int, 32)
	bodies := make([]string, 32)
	for i := range codes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec := doRequest(router, http.MethodPost, "/predict", scenarioBody)
			codes[i] = rec.Code
			bodies[i] = rec.Body.String()
		}(i)
	}
	wg.Wait()

	for i := range codes {
		assert.Equal(t, http.StatusOK, codes[i])
		assert.JSONEq(t, `{"prediction": 0, "probability": 0.2}`, bodies[i])
	}
}

func TestMetricsEndpoint(t *testing.T) {
	model := &recordingClassifier{}
	router := newRouter(t, core.NewPipeline(model, failingScaler{}))

	require.Equal(t, http.StatusOK, doRequest(router, http.MethodPost, "/predict", scenarioBody).Code)
	require.Equal(t, http.StatusUnprocessableEntity, doRequest(router, http.MethodPost, "/predict", `{}`).Code)

	rec := doRequest(router, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, `diabetes_predictions_total{label="1"} 1`)
	assert.Contains(t, body, "diabetes_scaler_fallbacks_total 1")
	assert.Contains(t, body, "diabetes_validation_errors_total 1")
}

func TestPredictBodyTooLarge(t *testing.T) {
	router := newRouter(t, core.NewPipeline(&recordingClassifier{}, nil))

	body := `{"Pad": "` + strings.Repeat("x", 2<<20) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/predict", bytes.NewReader([]byte(body)))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}
