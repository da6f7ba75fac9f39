package http

import (
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"
	"slices"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"qcmpulse/internal/config"
	"qcmpulse/internal/dataprocessing"
	apperrors "qcmpulse/internal/errors"
	"qcmpulse/internal/middleware"
	"qcmpulse/internal/services"
	api "qcmpulse/pkg/contracts/api/v1"
	"qcmpulse/pkg/contracts/domain"
)

// multipartMemory is the part of an upload kept in memory before spilling to disk
const multipartMemory = 8 << 20

// AnalysisHandler exposes the pipeline: upload and normalize, baseline, range statistics
// and model fits
type AnalysisHandler struct {
	service      AnalysisService
	validate     *validator.Validate
	query        *middleware.QueryParamValidator
	maxUpload    int64
	logger       *slog.Logger
	errorHandler *apperrors.ErrorHandler
}

// NewAnalysisHandler creates an analysis handler. maxUpload caps normalize uploads.
func NewAnalysisHandler(service AnalysisService, maxUpload int64, logger *slog.Logger, errorHandler *apperrors.ErrorHandler) *AnalysisHandler {
	if maxUpload <= 0 {
		maxUpload = middleware.DefaultMaxBodySize
	}
	return &AnalysisHandler{
		service:      service,
		validate:     middleware.NewValidator(),
		query:        middleware.NewQueryParamValidator(logger, errorHandler),
		maxUpload:    maxUpload,
		logger:       logger.With(slog.String("component", "analysis_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the analysis routes, relative to the API base path
func (h *AnalysisHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	jsonBody := middleware.ContentTypeValidator(h.errorHandler, "application/json")

	r.With(middleware.ContentTypeValidator(h.errorHandler, "multipart/form-data")).Post("/normalize", h.Normalize)
	r.With(jsonBody).Post("/baseline", h.Baseline)
	r.Route("/statistics", func(r chi.Router) {
		r.Get("/", h.ListStatistics)
		r.With(jsonBody).Post("/", h.ComputeStatistics)
	})
	r.With(jsonBody).Post("/models/{model}", h.FitModel)
	r.Get("/models", h.ListModels)
	return r
}

// decode reads a JSON body into v and validates it
func (h *AnalysisHandler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := render.DecodeJSON(r.Body, v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.errorHandler.HandleError(w, r, err)
			return false
		}
		h.errorHandler.HandleError(w, r, apperrors.InvalidRequestWithError(err))
		return false
	}
	if err := middleware.ValidateStruct(h.validate, v); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return false
	}
	return true
}

func (h *AnalysisHandler) format(format string) string {
	if format == "" {
		return h.service.Config().DataFormat
	}
	return format
}

// device parses an optional device name; "" yields the zero device
func (h *AnalysisHandler) device(w http.ResponseWriter, r *http.Request, name string) (domain.DeviceKind, bool) {
	if name == "" {
		return "", true
	}
	device, err := domain.ParseDeviceKind(name)
	if err != nil {
		h.errorHandler.HandleError(w, r, apperrors.ErrValidation("device", err.Error()))
		return "", false
	}
	return device, true
}

// Normalize handles POST /api/v1/normalize. The multipart form carries the raw export in
// "file", optionally the instrument in "device" and archive=true for a parquet copy.
func (h *AnalysisHandler) Normalize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.errorHandler.HandleError(w, r, err)
			return
		}
		h.errorHandler.HandleError(w, r, apperrors.ErrValidation("file", "request must be multipart/form-data with a file field"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		h.errorHandler.HandleError(w, r, apperrors.ErrValidation("file", "file is required"))
		return
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	ext := strings.ToLower(filepath.Ext(name))
	if !slices.Contains(config.AllowedUploadExtensions, ext) {
		h.errorHandler.HandleError(w, r, apperrors.UnsupportedFile(ext, config.AllowedUploadExtensions))
		return
	}

	device, ok := h.device(w, r, r.FormValue("device"))
	if !ok {
		return
	}

	h.logger.InfoContext(ctx, "Normalizing upload",
		slog.String("file", name),
		slog.Int64("size", header.Size),
		slog.String("device", string(device)),
		slog.String("request_id", middleware.GetRequestID(ctx)))

	path, err := h.service.SaveUpload(ctx, name, file)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	res, err := h.service.Normalize(ctx, path, device)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	output := res.Source
	if res.Output != "" {
		output = filepath.Base(res.Output)
	}
	resp := api.NormalizeResponse{
		Source:              res.Source,
		Output:              output,
		Device:              res.Device,
		CalibrationMode:     res.Mode,
		Rows:                res.Table.Len(),
		Overtones:           res.Table.Measured().Numbers(),
		HasAbsoluteTime:     res.Table.AbsTime != nil,
		HasTemperature:      res.Table.Temp != nil,
		PreviouslyFormatted: res.PreviouslyFormatted,
		PartialMissingData:  res.PartialMissingData,
	}

	if r.FormValue("archive") == "true" {
		archive, err := h.service.Archive(ctx, dataprocessing.FormattedName(res.Source), res.Table)
		if err != nil {
			h.errorHandler.HandleError(w, r, err)
			return
		}
		resp.Archive = filepath.Base(archive)
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, resp)
}

// Baseline handles POST /api/v1/baseline
func (h *AnalysisHandler) Baseline(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req api.BaselineRequest
	if !h.decode(w, r, &req) {
		return
	}

	device, ok := h.device(w, r, req.Device)
	if !ok {
		return
	}
	table, err := h.service.LoadTable(ctx, req.File, device)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	window, err := h.service.LocateBaseline(ctx, table, req.T0, req.Tf, !req.Absolute)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	resp := api.BaselineResponse{File: req.File, Window: window}
	if req.DeriveOffsets {
		if _, err := h.service.DeriveOffsets(ctx, table, window); err != nil {
			h.errorHandler.HandleError(w, r, err)
			return
		}
		resp.OffsetsDerived = true
		resp.OffsetFile = filepath.Base(h.service.OffsetFile())
	}

	render.JSON(w, r, resp)
}

// ComputeStatistics handles POST /api/v1/statistics. Selected overtones without data in the
// range are listed in the response rather than failing the request.
func (h *AnalysisHandler) ComputeStatistics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req api.StatisticsRequest
	if !h.decode(w, r, &req) {
		return
	}

	sel, err := domain.SelectOvertones(req.Overtones...)
	if err != nil {
		h.errorHandler.HandleError(w, r, apperrors.ErrValidation("overtones", err.Error()))
		return
	}

	device, ok := h.device(w, r, req.Device)
	if !ok {
		return
	}
	table, err := h.service.LoadTable(ctx, req.File, device)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	window, err := h.service.LocateBaseline(ctx, table, req.T0, req.Tf, !req.Absolute)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	corrected, err := h.service.CorrectBaseline(ctx, table, window)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	rows, err := h.service.ComputeRangeStats(ctx, corrected.Shifted, req.Selection(), sel, req.Format)
	if err != nil && (rows == nil || !apperrors.IsType(err, apperrors.ErrTypeMissingData)) {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, api.StatisticsResponse{
		RangeLabel: req.RangeLabel,
		DataSource: req.File,
		Format:     h.format(req.Format),
		Rows:       rows,
		Missing:    services.MissingColumns(rows, sel),
	})
}

// ListStatistics handles GET /api/v1/statistics?kind=freq|dis&format=clean|raw&range_label=
func (h *AnalysisHandler) ListStatistics(w http.ResponseWriter, r *http.Request) {
	kind, ok := h.query.ValidateEnum(w, r, "kind",
		[]string{string(domain.KindFrequency), string(domain.KindDissipation)}, string(domain.KindFrequency))
	if !ok {
		return
	}
	format, ok := h.query.ValidateEnum(w, r, "format", []string{api.FormatClean, api.FormatRaw}, "")
	if !ok {
		return
	}

	rows, err := h.service.Statistics(r.Context(), domain.MeasurementKind(kind), format)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	if label := r.URL.Query().Get("range_label"); label != "" {
		filtered := rows[:0]
		for _, row := range rows {
			if row.RangeLabel == label {
				filtered = append(filtered, row)
			}
		}
		rows = filtered
	}
	if rows == nil {
		rows = []domain.RangeStatistics{}
	}

	render.JSON(w, r, api.StatisticsListResponse{
		Kind:   domain.MeasurementKind(kind),
		Format: h.format(format),
		Rows:   rows,
	})
}

// ListModels handles GET /api/v1/models
func (h *AnalysisHandler) ListModels(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]interface{}{"models": domain.ModelNames})
}

// FitModel handles POST /api/v1/models/{model}
func (h *AnalysisHandler) FitModel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	model, err := domain.ParseModelName(chi.URLParam(r, "model"))
	if err != nil {
		h.errorHandler.HandleError(w, r, apperrors.ModelNotFound(chi.URLParam(r, "model"), modelNames()))
		return
	}

	var req api.ModelFitRequest
	if !h.decode(w, r, &req) {
		return
	}

	opts := services.FitOptions{Overtones: req.Overtones, Format: req.Format}
	if req.Voinova != nil {
		opts.InitialGuess = req.Voinova.InitialGuess
	}

	res, err := h.service.FitModel(ctx, model, req.RangeLabel, opts)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, api.ModelFitResponse{
		Result: res.Result,
		Output: filepath.Base(res.Output),
	})
}

func modelNames() []string {
	names := make([]string, len(domain.ModelNames))
	for i, m := range domain.ModelNames {
		names[i] = string(m)
	}
	return names
}
