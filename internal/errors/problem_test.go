package errors

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProblemDetails_MarshalJSON(t *testing.T) {
	pd := NewProblemDetails(http.StatusUnprocessableEntity, TypeFormat, "Unreadable Input File", "bad marker", "/api/v1/normalize").
		WithExtension("offset", 128)

	data, err := json.Marshal(pd)
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, TypeFormat, got["type"])
	assert.Equal(t, float64(http.StatusUnprocessableEntity), got["status"])
	assert.Equal(t, "bad marker", got["detail"])
	assert.Equal(t, "/api/v1/normalize", got["instance"])
	assert.Equal(t, float64(128), got["offset"])
}

func TestProblemDetails_ExtensionsCannotOverrideMembers(t *testing.T) {
	pd := NewProblemDetails(http.StatusNotFound, TypeNotFound, "Resource Not Found", "", "").
		WithExtension("status", 200)

	data, err := json.Marshal(pd)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"status":404`)
	assert.NotContains(t, string(data), "detail")
}

func TestProblemDetails_NilExtensions(t *testing.T) {
	pd := &ProblemDetails{Type: TypeInternal, Status: http.StatusInternalServerError}
	pd.WithExtension("trace_id", "abc")
	assert.Equal(t, "abc", pd.Extensions["trace_id"])
}

func TestAppErrorToProblem(t *testing.T) {
	tests := []struct {
		name            string
		err             *AppError
		wantStatus      int
		wantType        string
		wantRecoverable bool
		wantContext     bool
	}{
		{"format", NewFormatError("marker not found", 42), http.StatusUnprocessableEntity, TypeFormat, false, true},
		{"shape mismatch", NewShapeMismatchError("selected overtones differ", 3, 2), http.StatusUnprocessableEntity, TypeShapeMismatch, true, true},
		{"missing data", NewMissingDataError("no samples in range"), http.StatusUnprocessableEntity, TypeMissingData, true, false},
		{"missing calibration", NewMissingCalibrationError("no offsets", nil), http.StatusUnprocessableEntity, TypeMissingCalibration, true, false},
		{"fit convergence", NewFitConvergenceError("voinova", nil), http.StatusUnprocessableEntity, TypeFitConvergence, true, true},
		{"validation", NewAppValidationError("unknown model"), http.StatusBadRequest, TypeValidation, false, false},
		{"not found", NewNotFoundError("range label"), http.StatusNotFound, TypeNotFound, false, false},
		{"storage", NewStorageError("rename failed", nil).WithContext("path", "/tmp/x"), http.StatusInternalServerError, TypeStorage, false, false},
		{"config", NewConfigError("bad yaml", nil), http.StatusInternalServerError, TypeInternal, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pd := AppErrorToProblem(tt.err, "/api/v1/models/voinova")
			assert.Equal(t, tt.wantStatus, pd.Status)
			assert.Equal(t, tt.wantType, pd.Type)
			assert.Equal(t, string(tt.err.Type), pd.Extensions["error_code"])
			assert.Equal(t, tt.wantRecoverable, pd.Extensions["recoverable"])
			_, hasContext := pd.Extensions["context"]
			assert.Equal(t, tt.wantContext, hasContext)
			if tt.wantStatus >= http.StatusInternalServerError {
				assert.NotContains(t, pd.Detail, tt.err.Message)
			}
		})
	}
}
