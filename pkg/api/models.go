package api

// PatientRecord is the validated input of a prediction. Fields are listed in
// the canonical feature order.
type PatientRecord struct {
	Pregnancies              float64
	Glucose                  float64
	BloodPressure            float64
	SkinThickness            float64
	Insulin                  float64
	BMI                      float64
	DiabetesPedigreeFunction float64
	Age                      float64
}

type HealthResponse struct {
	Status string `json:"status"`
}

type PredictionResponse struct {
	Prediction  int     `json:"prediction"`
	Probability float64 `json:"probability"`
}

// ErrorResponse is returned for server errors.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// ValidationError describes a single invalid request field. Loc is the path
// to the field, e.g. ["body", "Age"].
type ValidationError struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

type ValidationErrorResponse struct {
	Detail []ValidationError `json:"detail"`
}
