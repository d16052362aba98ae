package api

import (
	"diabetes-backend/pkg/api"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
)

type codedError struct {
	err  error
	code int
}

func (e *codedError) Error() string {
	return e.err.Error()
}

func (e *codedError) Unwrap() error {
	return e.err
}

func CodedError(code int, err error) error {
	return &codedError{err: err, code: code}
}

func CodedErrorf(code int, format string, args ...any) error {
	return &codedError{err: fmt.Errorf(format, args...), code: code}
}

// validationError carries field level problems with a request body. It is
// rendered as a 422 with one entry per field.
type validationError struct {
	details []api.ValidationError
}

func (e *validationError) Error() string {
	return fmt.Sprintf("request validation failed with %d error(s)", len(e.details))
}

func RestHandler(handler func(r *http.Request) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := handler(r)
		if err != nil {
			WriteError(w, err)
			return
		}

		if res == nil {
			res = struct{}{}
		}

		WriteJsonResponse(w, http.StatusOK, res)
	}
}

func WriteError(w http.ResponseWriter, err error) {
	var verr *validationError
	if errors.As(err, &verr) {
		WriteJsonResponse(w, http.StatusUnprocessableEntity, api.ValidationErrorResponse{Detail: verr.details})
		return
	}

	var cerr *codedError
	if errors.As(err, &cerr) {
		if cerr.code == http.StatusInternalServerError {
			slog.Error("internal server error received in endpoint", "error", err, "stack", string(debug.Stack()))
		}
		WriteJsonResponse(w, cerr.code, api.ErrorResponse{Detail: err.Error()})
		return
	}

	slog.Error("recieved non coded error from endpoint", "error", err, "stack", string(debug.Stack()))
	WriteJsonResponse(w, http.StatusInternalServerError, api.ErrorResponse{Detail: err.Error()})
}

func WriteJsonResponse(w http.ResponseWriter, code int, data interface{}) {
	body, err := json.Marshal(data)
	if err != nil {
		slog.Error("error serializing response body", "error", err)
		http.Error(w, fmt.Sprintf("error serializing response body: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(body); err != nil {
		slog.Error("error writing response body", "error", err)
	}
}
