package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apperrors "qcmpulse/internal/errors"
	"qcmpulse/internal/middleware"
	"qcmpulse/internal/services"
)

// FileHandler lists and downloads the files below the data root
type FileHandler struct {
	service      FileService
	logger       *slog.Logger
	errorHandler *apperrors.ErrorHandler
}

// NewFileHandler creates a file handler
func NewFileHandler(service FileService, logger *slog.Logger, errorHandler *apperrors.ErrorHandler) *FileHandler {
	return &FileHandler{
		service:      service,
		logger:       logger.With(slog.String("component", "file_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the file routes
func (h *FileHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ListFiles)
	r.Route("/{group}/{filename}", func(r chi.Router) {
		r.Use(h.DownloadCtx)
		r.Get("/", h.DownloadFile)
	})
	return r
}

// DownloadCtx validates the download parameters
func (h *FileHandler) DownloadCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch chi.URLParam(r, "group") {
		case services.FileGroupRaw, services.FileGroupFormatted, services.FileGroupResults, services.FileGroupArchive:
		default:
			h.errorHandler.HandleError(w, r, apperrors.ErrValidation("group", "group must be one of: raw, formatted, results, archive"))
			return
		}
		if chi.URLParam(r, "filename") == "" {
			h.errorHandler.HandleError(w, r, apperrors.ErrValidation("filename", "Filename is required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ListFiles handles GET /api/v1/files
func (h *FileHandler) ListFiles(w http.ResponseWriter, r *http.Request) {
	listing, err := h.service.ListFiles(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, listing)
}

// DownloadFile handles GET /api/v1/files/{group}/{filename}
func (h *FileHandler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	group := chi.URLParam(r, "group")
	filename := chi.URLParam(r, "filename")

	h.logger.DebugContext(r.Context(), "download requested",
		slog.String("group", group),
		slog.String("filename", filename),
		slog.String("request_id", middleware.GetRequestID(r.Context())))

	if err := h.service.DownloadFile(w, r, group, filename); err != nil {
		h.errorHandler.HandleError(w, r, err)
	}
}
