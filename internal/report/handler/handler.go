package handler

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"rcaflow/internal/report/export"
	"rcaflow/internal/report/models"
	"rcaflow/internal/report/service"
	id "rcaflow/pkg/domain"
	"rcaflow/pkg/platform/httputil"
	"rcaflow/pkg/requestcontext"
)

type Service interface {
	Report(ctx context.Context, analysisID id.AnalysisID) (*models.Report, error)
	Dashboard(ctx context.Context, companyID id.CompanyID) (*service.Dashboard, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/analyses/{id}/report", h.HandleReport)
	r.Get("/analyses/{id}/report.txt", h.HandleReportText)
	r.Get("/analyses/{id}/report.csv", h.HandleActionsCSV)
	r.Get("/dashboard", h.HandleDashboard)
}

func (h *Handler) HandleReport(w http.ResponseWriter, r *http.Request) {
	rep, ok := h.load(w, r)
	if !ok {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rep)
}

func (h *Handler) HandleReportText(w http.ResponseWriter, r *http.Request) {
	rep, ok := h.load(w, r)
	if !ok {
		return
	}
	h.attachment(w, r, "text/plain; charset=utf-8", "informe-"+rep.AnalysisID.String()+".txt", func(out io.Writer) error {
		return export.WriteText(out, rep)
	})
}

func (h *Handler) HandleActionsCSV(w http.ResponseWriter, r *http.Request) {
	rep, ok := h.load(w, r)
	if !ok {
		return
	}
	h.attachment(w, r, "text/csv; charset=utf-8", "acciones-"+rep.AnalysisID.String()+".csv", func(out io.Writer) error {
		return export.WriteActionsCSV(out, rep)
	})
}

// HandleDashboard accepts an optional companyId query parameter.
func (h *Handler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	var companyID id.CompanyID
	if raw := strings.TrimSpace(r.URL.Query().Get("companyId")); raw != "" {
		parsed, err := id.ParseCompanyID(raw)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		companyID = parsed
	}
	d, err := h.service.Dashboard(r.Context(), companyID)
	if err != nil {
		h.fail(r.Context(), w, "failed to load dashboard", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, d)
}

func (h *Handler) load(w http.ResponseWriter, r *http.Request) (*models.Report, bool) {
	analysisID, err := id.ParseAnalysisID(strings.TrimSpace(chi.URLParam(r, "id")))
	if err != nil {
		httputil.WriteError(w, err)
		return nil, false
	}
	rep, err := h.service.Report(r.Context(), analysisID)
	if err != nil {
		h.fail(r.Context(), w, "failed to build report", err)
		return nil, false
	}
	return rep, true
}

// attachment renders into memory first so a render error can still be
// reported with a proper status.
func (h *Handler) attachment(w http.ResponseWriter, r *http.Request, contentType, fileName string, render func(io.Writer) error) {
	var buf bytes.Buffer
	if err := render(&buf); err != nil {
		h.fail(r.Context(), w, "failed to render report", err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("Content-Disposition", `attachment; filename="`+fileName+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	h.logger.WarnContext(ctx, msg,
		"request_id", requestcontext.RequestID(ctx),
		"error", err,
	)
	httputil.WriteError(w, err)
}
