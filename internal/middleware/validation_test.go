package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "qcmpulse/internal/errors"
	"qcmpulse/internal/shared/testutil"
)

type fitRequest struct {
	Model     string `json:"model" validate:"required,model"`
	Device    string `json:"device" validate:"omitempty,device"`
	File      string `json:"file" validate:"omitempty,filename"`
	Overtones []int  `json:"overtones" validate:"dive,overtone"`
}

func TestValidateStruct(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name       string
		req        fitRequest
		wantFields []string
	}{
		{"valid", fitRequest{Model: "sauerbrey", Device: "next", File: "run1.csv", Overtones: []int{1, 3, 5}}, nil},
		{"unknown model", fitRequest{Model: "hooke"}, []string{"model"}},
		{"unknown device", fitRequest{Model: "voinova", Device: "quartz9000"}, []string{"device"}},
		{"path traversal", fitRequest{Model: "voinova", File: "../etc/passwd"}, []string{"file"}},
		{"even overtone", fitRequest{Model: "voinova", Overtones: []int{3, 4}}, []string{"overtones[1]"}},
		{"missing model", fitRequest{Overtones: []int{15}}, []string{"model", "overtones[0]"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(v, tt.req)
			if tt.wantFields == nil {
				assert.NoError(t, err)
				return
			}

			var apiErr *apierrors.APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)

			details, ok := apiErr.Details.(apierrors.ValidationErrors)
			require.True(t, ok)
			var fields []string
			for _, fe := range details.Errors {
				fields = append(fields, fe.Field)
				assert.NotEmpty(t, fe.Message)
			}
			assert.ElementsMatch(t, tt.wantFields, fields)
		})
	}
}

func TestValidateRequest(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	m := NewValidationMiddleware(logger, apierrors.NewErrorHandler(logger, false), 64)

	var reached bool
	h := m.ValidateRequest(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name        string
		method      string
		contentType string
		body        string
		wantCode    int
		wantReached bool
	}{
		{"get passes", http.MethodGet, "", "", http.StatusOK, true},
		{"valid json", http.MethodPost, "application/json", `{"range_label":"a"}`, http.StatusOK, true},
		{"invalid json", http.MethodPost, "application/json", `{"range_label":`, http.StatusBadRequest, false},
		{"too large", http.MethodPost, "application/json", `{"x":"` + strings.Repeat("a", 100) + `"}`, http.StatusRequestEntityTooLarge, false},
		{"multipart is not parsed", http.MethodPost, "multipart/form-data; boundary=x", "--x--", http.StatusOK, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reached = false
			var body *strings.Reader
			if tt.body != "" {
				body = strings.NewReader(tt.body)
			}
			var req *http.Request
			if body != nil {
				req = httptest.NewRequest(tt.method, "/api/v1/statistics", body)
			} else {
				req = httptest.NewRequest(tt.method, "/api/v1/statistics", nil)
			}
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantReached, reached)
		})
	}
}

func TestNewValidationMiddleware_DefaultLimit(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	m := NewValidationMiddleware(logger, apierrors.NewErrorHandler(logger, false), 0)
	assert.Equal(t, DefaultMaxBodySize, m.MaxBodySize())
}

func TestContentTypeValidator(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	h := ContentTypeValidator(apierrors.NewErrorHandler(logger, false), "application/json")(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

	tests := []struct {
		name        string
		method      string
		contentType string
		wantCode    int
	}{
		{"get skips check", http.MethodGet, "", http.StatusOK},
		{"json accepted", http.MethodPost, "application/json; charset=utf-8", http.StatusOK},
		{"missing", http.MethodPost, "", http.StatusBadRequest},
		{"unsupported", http.MethodPost, "text/plain", http.StatusUnsupportedMediaType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/", strings.NewReader("{}"))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.wantCode, rec.Code)
		})
	}
}

func TestQueryParamValidator(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	v := NewQueryParamValidator(logger, apierrors.NewErrorHandler(logger, false))

	t.Run("enum", func(t *testing.T) {
		rec := httptest.NewRecorder()
		s, ok := v.ValidateEnum(rec, httptest.NewRequest(http.MethodGet, "/?format=raw", nil), "format", []string{"clean", "raw"}, "clean")
		assert.True(t, ok)
		assert.Equal(t, "raw", s)

		rec = httptest.NewRecorder()
		_, ok = v.ValidateEnum(rec, httptest.NewRequest(http.MethodGet, "/?format=json", nil), "format", []string{"clean", "raw"}, "clean")
		assert.False(t, ok)
	})

	t.Run("overtones", func(t *testing.T) {
		rec := httptest.NewRecorder()
		got, ok := v.ValidateOvertones(rec, httptest.NewRequest(http.MethodGet, "/?overtones=1,%203,5", nil), "overtones")
		assert.True(t, ok)
		assert.Equal(t, []int{1, 3, 5}, got)

		rec = httptest.NewRecorder()
		_, ok = v.ValidateOvertones(rec, httptest.NewRequest(http.MethodGet, "/?overtones=1,2", nil), "overtones")
		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
