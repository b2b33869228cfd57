package errors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forecastcli/internal/simulation"
)

func newTestHandler() *ErrorHandler {
	return NewErrorHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), false)
}

func TestErrorHandler_HandleError(t *testing.T) {
	invalid := simulation.DefaultParameters()
	invalid.BasicPrice = simulation.R(10, 1)
	cfgErr := invalid.Validate()
	require.Error(t, cfgErr)

	type sample struct {
		Trials int `validate:"min=1"`
	}
	validationErr := validator.New().Struct(sample{})
	require.Error(t, validationErr)

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
	}{
		{"configuration error", cfgErr, http.StatusBadRequest, TypeConfiguration},
		{"wrapped configuration error", fmt.Errorf("create engine: %w", cfgErr), http.StatusBadRequest, TypeConfiguration},
		{"validation error", validationErr, http.StatusBadRequest, TypeValidation},
		{"unknown column", &simulation.UnknownColumnError{Column: "nope"}, http.StatusBadRequest, TypeUnknownColumn},
		{"engine state", &simulation.EngineStateError{Operation: "statistics"}, http.StatusConflict, TypeEngineState},
		{"undefined correlation", &simulation.UndefinedCorrelationError{Column: "a", Outcome: "b", Constant: "a"}, http.StatusUnprocessableEntity, TypeUndefinedCorrelation},
		{"not found", NotFoundError("simulation run"), http.StatusNotFound, TypeNotFound},
		{"rate limited", ErrRateLimitExceeded, http.StatusTooManyRequests, TypeRateLimit},
		{"deadline", fmt.Errorf("run: %w", context.DeadlineExceeded), http.StatusGatewayTimeout, TypeTimeout},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, TypeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/simulations", nil)
			rec := httptest.NewRecorder()

			newTestHandler().HandleError(rec, req, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)

			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantType, body["type"])
			assert.Equal(t, float64(tt.wantStatus), body["status"])
			assert.Equal(t, "/api/v1/simulations", body["instance"])
			_, hasStack := body["stack"]
			assert.False(t, hasStack)
		})
	}
}

func TestValidationErrorsListed(t *testing.T) {
	type sample struct {
		Trials int `validate:"min=1"`
		Seed   int `validate:"gte=0"`
	}
	err := validator.New().Struct(sample{Seed: -1})
	require.Error(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/simulations", nil)
	problem := newTestHandler().ErrorToProblem(err, req)

	assert.Equal(t, http.StatusBadRequest, problem.Status)
	assert.Equal(t, TypeValidation, problem.Type)
	assert.Equal(t, "VALIDATION_FAILED", problem.Extensions["error_code"])
	assert.Equal(t, []ValidationError{
		{Field: "Trials", Message: "must be at least 1"},
		{Field: "Seed", Message: "must be at least 0"},
	}, problem.Extensions["details"])
}

func TestErrorHandler_NilError(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestHandler().HandleError(rec, httptest.NewRequest(http.MethodGet, "/", nil), nil)
	assert.Equal(t, 0, rec.Body.Len())
}

func TestConfigurationErrorsListed(t *testing.T) {
	p := simulation.DefaultParameters()
	p.BasicPrice = simulation.R(10, 1)
	p.ChurnRate = simulation.R(0.5, 2)

	problem := newTestHandler().ErrorToProblem(p.Validate(), httptest.NewRequest(http.MethodPost, "/", nil))

	fields, ok := problem.Extensions["errors"].([]ValidationError)
	require.True(t, ok)
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		names = append(names, f.Field)
	}
	assert.Contains(t, names, "basic_price")
	assert.Contains(t, names, "churn_rate")
}

func TestProblemDetailsJSON(t *testing.T) {
	pd := NewProblemDetails(http.StatusNotFound, TypeNotFound, "Not Found", "missing", "/x").
		WithExtension("trace_id", "abc")

	data, err := json.Marshal(pd)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"type": "/errors/not-found",
		"title": "Not Found",
		"status": 404,
		"detail": "missing",
		"instance": "/x",
		"trace_id": "abc"
	}`, string(data))
}

func TestHandlePanic(t *testing.T) {
	rec := httptest.NewRecorder()
	NewErrorHandler(nil, true).HandlePanic(rec, httptest.NewRequest(http.MethodGet, "/", nil), "kaboom")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "kaboom", body["panic"])
}

func TestNotFoundAndMethodNotAllowed(t *testing.T) {
	h := newTestHandler()

	rec := httptest.NewRecorder()
	h.NotFound(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	h.MethodNotAllowed(rec, httptest.NewRequest(http.MethodDelete, "/api/health", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Contains(t, rec.Body.String(), "DELETE")
}
