package errors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

// Problem types of transport failures
const (
	TypeValidation       = "/errors/validation"
	TypeNotFound         = "/errors/not-found"
	TypeRateLimit        = "/errors/rate-limit"
	TypeInternal         = "/errors/internal"
	TypeTimeout          = "/errors/timeout"
	TypePayloadTooLarge  = "/errors/payload-too-large"
	TypeUnsupportedMedia = "/errors/unsupported-media-type"
	TypeMethodNotAllowed = "/errors/method-not-allowed"
)

// Problem types of pipeline failures
const (
	TypeFormat             = "/errors/format"
	TypeShapeMismatch      = "/errors/shape-mismatch"
	TypeMissingData        = "/errors/missing-data"
	TypeMissingCalibration = "/errors/missing-calibration"
	TypeFitConvergence     = "/errors/fit-convergence"
	TypeStorage            = "/errors/storage"
)

// apiErrorTypes maps APIError codes to problem types; unknown codes are internal
var apiErrorTypes = map[string]string{
	"VALIDATION_FAILED":      TypeValidation,
	"INVALID_REQUEST":        TypeValidation,
	"INVALID_JSON":           TypeValidation,
	"INVALID_PARAMETER":      TypeValidation,
	"MISSING_CONTENT_TYPE":   TypeValidation,
	"NOT_FOUND":              TypeNotFound,
	"MODEL_NOT_FOUND":        TypeNotFound,
	"PAYLOAD_TOO_LARGE":      TypePayloadTooLarge,
	"UNSUPPORTED_FILE":       TypeUnsupportedMedia,
	"UNSUPPORTED_MEDIA_TYPE": TypeUnsupportedMedia,
	"RATE_LIMIT_EXCEEDED":    TypeRateLimit,
}

// ErrorHandler renders every handler failure as application/problem+json. Client
// errors are logged at warn level, server errors at error level.
type ErrorHandler struct {
	logger       *slog.Logger
	includeStack bool
}

// NewErrorHandler creates an error handler; includeStack adds the goroutine stack to
// each problem and is meant for development
func NewErrorHandler(logger *slog.Logger, includeStack bool) *ErrorHandler {
	return &ErrorHandler{
		logger:       logger.With(slog.String("component", "error_handler")),
		includeStack: includeStack,
	}
}

// HandleError converts err to a problem and writes it. A nil err writes nothing.
func (h *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	problem := h.ErrorToProblem(err, r)

	level := slog.LevelWarn
	if problem.Status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.logger.Log(r.Context(), level, "request failed",
		slog.String("error", err.Error()),
		slog.Int("status", problem.Status),
		slog.String("type", problem.Type),
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	)

	if h.includeStack {
		problem.WithExtension("stack", stackTrace())
	}
	h.respond(w, r, problem)
}

// ErrorToProblem converts err to a problem without writing it
func (h *ErrorHandler) ErrorToProblem(err error, r *http.Request) *ProblemDetails {
	var (
		appErr   *AppError
		apiErr   *APIError
		tooLarge *http.MaxBytesError
	)

	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return NewProblemDetails(http.StatusGatewayTimeout, TypeTimeout, "Request Timeout",
			"The request took too long to process and was cancelled", r.URL.Path)

	case errors.As(err, &appErr):
		return AppErrorToProblem(appErr, r.URL.Path)

	case errors.As(err, &apiErr):
		problemType, ok := apiErrorTypes[apiErr.ErrorCode]
		if !ok {
			problemType = TypeInternal
		}
		problem := NewProblemDetails(apiErr.StatusCode, problemType,
			http.StatusText(apiErr.StatusCode), apiErr.Message, r.URL.Path).
			WithExtension("error_code", apiErr.ErrorCode)
		if apiErr.Details != nil {
			problem.WithExtension("details", apiErr.Details)
		}
		return problem

	case errors.As(err, &tooLarge):
		return NewProblemDetails(http.StatusRequestEntityTooLarge, TypePayloadTooLarge, "Payload Too Large",
			"The request body exceeds the maximum allowed size", r.URL.Path).
			WithExtension("limit_bytes", tooLarge.Limit)
	}

	return NewProblemDetails(http.StatusInternalServerError, TypeInternal, "Internal Server Error",
		"An unexpected error occurred while processing your request", r.URL.Path)
}

// NotFound is the router's 404 handler
func (h *ErrorHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, NewProblemDetails(http.StatusNotFound, TypeNotFound, "Not Found",
		"The requested resource was not found", r.URL.Path))
}

// MethodNotAllowed is the router's 405 handler
func (h *ErrorHandler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, NewProblemDetails(http.StatusMethodNotAllowed, TypeMethodNotAllowed, "Method Not Allowed",
		fmt.Sprintf("Method %s is not allowed for this endpoint", r.Method), r.URL.Path))
}

func (h *ErrorHandler) respond(w http.ResponseWriter, r *http.Request, problem *ProblemDetails) {
	problem.WithExtension("trace_id", middleware.GetReqID(r.Context()))
	render.Render(w, r, problem)
}

func stackTrace() string {
	buf := make([]byte, 8<<10)
	return string(buf[:runtime.Stack(buf, false)])
}
