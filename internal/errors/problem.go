package errors

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/render"
)

// ProblemDetails implements RFC 7807 Problem Details for HTTP APIs
type ProblemDetails struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`

	// Extensions are flattened into the top-level JSON object
	Extensions map[string]interface{} `json:"-"`
}

// Render implements the render.Renderer interface
func (pd *ProblemDetails) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, pd.Status)
	return nil
}

// MarshalJSON flattens extensions next to the standard members
func (pd *ProblemDetails) MarshalJSON() ([]byte, error) {
	data := make(map[string]interface{}, 5+len(pd.Extensions))
	for k, v := range pd.Extensions {
		data[k] = v
	}

	data["type"] = pd.Type
	data["title"] = pd.Title
	data["status"] = pd.Status
	if pd.Detail != "" {
		data["detail"] = pd.Detail
	}
	if pd.Instance != "" {
		data["instance"] = pd.Instance
	}
	return json.Marshal(data)
}

// NewProblemDetails creates a new RFC 7807 compliant error
func NewProblemDetails(status int, problemType, title, detail, instance string) *ProblemDetails {
	return &ProblemDetails{
		Type:       problemType,
		Title:      title,
		Status:     status,
		Detail:     detail,
		Instance:   instance,
		Extensions: make(map[string]interface{}),
	}
}

// WithExtension adds an extension field to the problem details
func (pd *ProblemDetails) WithExtension(key string, value interface{}) *ProblemDetails {
	if pd.Extensions == nil {
		pd.Extensions = make(map[string]interface{})
	}
	pd.Extensions[key] = value
	return pd
}

type problemMapping struct {
	status int
	ptype  string
	title  string
}

var appErrorProblems = map[ErrorType]problemMapping{
	ErrTypeValidation:         {http.StatusBadRequest, TypeValidation, "Validation Failed"},
	ErrTypeNotFound:           {http.StatusNotFound, TypeNotFound, "Resource Not Found"},
	ErrTypeFormat:             {http.StatusUnprocessableEntity, TypeFormat, "Unreadable Input File"},
	ErrTypeShapeMismatch:      {http.StatusUnprocessableEntity, TypeShapeMismatch, "Shape Mismatch"},
	ErrTypeMissingData:        {http.StatusUnprocessableEntity, TypeMissingData, "Missing Data"},
	ErrTypeMissingCalibration: {http.StatusUnprocessableEntity, TypeMissingCalibration, "Missing Calibration"},
	ErrTypeFitConvergence:     {http.StatusUnprocessableEntity, TypeFitConvergence, "Fit Did Not Converge"},
	ErrTypeStorage:            {http.StatusInternalServerError, TypeStorage, "Storage Error"},
	ErrTypeConfig:             {http.StatusInternalServerError, TypeInternal, "Configuration Error"},
}

// AppErrorToProblem maps the error taxonomy onto problem details. The error context is
// exposed as the "context" extension; storage and config errors hide their message.
func AppErrorToProblem(appErr *AppError, instance string) *ProblemDetails {
	m, ok := appErrorProblems[appErr.Type]
	if !ok {
		m = problemMapping{http.StatusInternalServerError, TypeInternal, "Internal Server Error"}
	}

	detail := appErr.Message
	if m.status >= http.StatusInternalServerError {
		detail = "The server could not complete the request"
	}

	problem := NewProblemDetails(m.status, m.ptype, m.title, detail, instance).
		WithExtension("error_code", string(appErr.Type)).
		WithExtension("recoverable", appErr.Recoverable())
	if len(appErr.Context) > 0 && m.status < http.StatusInternalServerError {
		problem.WithExtension("context", appErr.Context)
	}
	return problem
}
