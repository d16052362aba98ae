package api

import (
	"bytes"
	"diabetes-backend/internal/core/types"
	"diabetes-backend/pkg/api"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

const maxRequestBytes = 1 << 20

// predictRequest is the wire form of api.PatientRecord. Fields are pointers so
// that absent fields can be told apart from zeros.
type predictRequest struct {
	Pregnancies              *float64 `json:"Pregnancies" validate:"required"`
	Glucose                  *float64 `json:"Glucose" validate:"required"`
	BloodPressure            *float64 `json:"BloodPressure" validate:"required"`
	SkinThickness            *float64 `json:"SkinThickness" validate:"required"`
	Insulin                  *float64 `json:"Insulin" validate:"required"`
	BMI                      *float64 `json:"BMI" validate:"required"`
	DiabetesPedigreeFunction *float64 `json:"DiabetesPedigreeFunction" validate:"required"`
	Age                      *float64 `json:"Age" validate:"required"`
}

func (p *predictRequest) fields() []**float64 {
	return []**float64{
		&p.Pregnancies,
		&p.Glucose,
		&p.BloodPressure,
		&p.SkinThickness,
		&p.Insulin,
		&p.BMI,
		&p.DiabetesPedigreeFunction,
		&p.Age,
	}
}

func (p *predictRequest) record() api.PatientRecord {
	return api.PatientRecord{
		Pregnancies:              *p.Pregnancies,
		Glucose:                  *p.Glucose,
		BloodPressure:            *p.BloodPressure,
		SkinThickness:            *p.SkinThickness,
		Insulin:                  *p.Insulin,
		BMI:                      *p.BMI,
		DiabetesPedigreeFunction: *p.DiabetesPedigreeFunction,
		Age:                      *p.Age,
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func bodyError(field, msg, kind string) api.ValidationError {
	loc := []string{"body"}
	if field != "" {
		loc = append(loc, field)
	}
	return api.ValidationError{Loc: loc, Msg: msg, Type: kind}
}

// parseNumber accepts JSON numbers and strings holding a number.
func parseNumber(raw json.RawMessage) (float64, *api.ValidationError) {
	raw = bytes.TrimSpace(raw)

	var value float64
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			e := bodyError("", "Input should be a valid number", "float_type")
			return 0, &e
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			e := bodyError("", "Input should be a valid number, unable to parse string as a number", "float_parsing")
			return 0, &e
		}
		value = v
	} else if err := json.Unmarshal(raw, &value); err != nil || bytes.Equal(raw, []byte("null")) {
		e := bodyError("", "Input should be a valid number", "float_type")
		return 0, &e
	}

	if math.IsNaN(value) || math.IsInf(value, 0) {
		e := bodyError("", "Input should be a finite number", "finite_number")
		return 0, &e
	}
	return value, nil
}

// ParsePatientRecord reads and validates a prediction request body. Every
// invalid field is reported, not only the first.
func ParsePatientRecord(r *http.Request) (api.PatientRecord, error) {
	body, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, maxRequestBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return api.PatientRecord{}, CodedErrorf(http.StatusRequestEntityTooLarge, "request body exceeds %d bytes", maxRequestBytes)
		}
		return api.PatientRecord{}, CodedErrorf(http.StatusBadRequest, "unable to read request body")
	}

	if !json.Valid(body) {
		return api.PatientRecord{}, &validationError{details: []api.ValidationError{
			bodyError("", "JSON decode error", "json_invalid"),
		}}
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil || raw == nil {
		return api.PatientRecord{}, &validationError{details: []api.ValidationError{
			bodyError("", "Input should be a valid dictionary or object to extract fields from", "model_attributes_type"),
		}}
	}

	var req predictRequest
	var details []api.ValidationError
	invalid := map[string]bool{}

	for i, field := range req.fields() {
		name := types.FeatureNames[i]
		value, ok := raw[name]
		if !ok {
			continue
		}
		v, verr := parseNumber(value)
		if verr != nil {
			verr.Loc = append(verr.Loc, name)
			details = append(details, *verr)
			invalid[name] = true
			continue
		}
		*field = &v
	}

	if err := validate.Struct(&req); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return api.PatientRecord{}, CodedError(http.StatusInternalServerError, err)
		}
		for _, fe := range fieldErrs {
			if invalid[fe.Field()] {
				continue
			}
			details = append(details, bodyError(fe.Field(), "Field required", "missing"))
		}
	}

	if len(details) > 0 {
		return api.PatientRecord{}, &validationError{details: details}
	}

	return req.record(), nil
}
