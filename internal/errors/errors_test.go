package errors

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/render"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIError(t *testing.T) {
	tests := []struct {
		name       string
		apiError   *APIError
		wantStatus int
		wantCode   string
	}{
		{"invalid request", ErrInvalidRequest, http.StatusBadRequest, "INVALID_REQUEST"},
		{"unknown model", ErrModelNotFound, http.StatusNotFound, "MODEL_NOT_FOUND"},
		{"too large", ErrPayloadTooLarge, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE"},
		{"unsupported file", ErrUnsupportedFile, http.StatusUnsupportedMediaType, "UNSUPPORTED_FILE"},
		{"internal", ErrInternalServer, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantStatus, tt.apiError.StatusCode)
			assert.Equal(t, tt.wantCode, tt.apiError.ErrorCode)
			assert.Equal(t, tt.apiError.Message, tt.apiError.Error())

			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			require.NoError(t, render.Render(w, r, tt.apiError))
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestAPIErrorHelpers(t *testing.T) {
	err := ErrValidation("device", "must be one of next qcm-i qsense awsensors")
	assert.Equal(t, http.StatusBadRequest, err.StatusCode)
	assert.Equal(t, ValidationError{Field: "device", Message: "must be one of next qcm-i qsense awsensors"}, err.Details)

	inv := InvalidRequestWithError(errors.New("unexpected EOF"))
	assert.Equal(t, "unexpected EOF", inv.Details)

	multi := NewValidationErrors([]ValidationError{{Field: "t0"}, {Field: "tf"}})
	assert.Len(t, multi.Details.(ValidationErrors).Errors, 2)

	simple := NewValidationError("selection is empty")
	assert.Equal(t, "VALIDATION_FAILED", simple.ErrorCode)
	assert.Nil(t, simple.Details)

	model := ModelNotFound("hooke", []string{"sauerbrey", "voinova"})
	assert.Equal(t, http.StatusNotFound, model.StatusCode)
	assert.Contains(t, model.Message, `"hooke"`)

	file := UnsupportedFile(".pdf", []string{".csv", ".xlsx"})
	assert.Equal(t, http.StatusUnsupportedMediaType, file.StatusCode)
	assert.Equal(t, `file type ".pdf" is not supported, expected one of .csv, .xlsx`, file.Message)
}
