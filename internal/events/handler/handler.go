package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"rcaflow/internal/events/models"
	"rcaflow/internal/events/service"
	id "rcaflow/pkg/domain"
	"rcaflow/pkg/platform/httputil"
	"rcaflow/pkg/requestcontext"
)

type Service interface {
	Report(ctx context.Context, cmd service.ReportCommand) (*models.ReportedEvent, error)
	Get(ctx context.Context, eventID id.EventID) (*models.ReportedEvent, error)
	List(ctx context.Context, q service.ListQuery) ([]*models.ReportedEvent, error)
	Stats(ctx context.Context, companyID id.CompanyID) (*service.Stats, error)
	UpdateDetails(ctx context.Context, eventID id.EventID, d models.Details) (*models.ReportedEvent, error)
	Reject(ctx context.Context, eventID id.EventID, reason string) (*models.ReportedEvent, error)
	Reopen(ctx context.Context, eventID id.EventID, reason string) (*models.ReportedEvent, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/events", func(r chi.Router) {
		r.Post("/", h.HandleReport)
		r.Get("/", h.HandleList)
		r.Get("/stats", h.HandleStats)
		r.Get("/{id}", h.HandleGet)
		r.Patch("/{id}", h.HandleUpdate)
		r.Post("/{id}/reject", h.HandleReject)
		r.Post("/{id}/reopen", h.HandleReopen)
	})
}

func (h *Handler) HandleReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[EventRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	e, err := h.service.Report(ctx, service.ReportCommand{CompanyID: req.companyID, Details: req.details()})
	if err != nil {
		h.fail(ctx, w, "failed to report event", err)
		return
	}
	h.logger.InfoContext(ctx, "event reported",
		"request_id", requestID,
		"event_id", e.ID,
		"priority", e.Priority,
	)
	httputil.WriteJSON(w, http.StatusCreated, e)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	q, err := parseListQuery(r.URL.Query())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	events, err := h.service.List(r.Context(), q)
	if err != nil {
		h.fail(r.Context(), w, "failed to list events", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"events": events, "count": len(events)})
}

func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	var companyID id.CompanyID
	if raw := r.URL.Query().Get("companyId"); raw != "" {
		parsed, err := id.ParseCompanyID(raw)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		companyID = parsed
	}
	stats, err := h.service.Stats(r.Context(), companyID)
	if err != nil {
		h.fail(r.Context(), w, "failed to load event stats", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	eventID, err := id.ParseEventID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	e, err := h.service.Get(r.Context(), eventID)
	if err != nil {
		h.fail(r.Context(), w, "failed to get event", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, e)
}

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	eventID, err := id.ParseEventID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[EventRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	e, err := h.service.UpdateDetails(ctx, eventID, req.details())
	if err != nil {
		h.fail(ctx, w, "failed to update event", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, e)
}

func (h *Handler) HandleReject(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.service.Reject, "event rejected")
}

func (h *Handler) HandleReopen(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.service.Reopen, "event reopened")
}

func (h *Handler) decide(w http.ResponseWriter, r *http.Request,
	decision func(context.Context, id.EventID, string) (*models.ReportedEvent, error), msg string) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	eventID, err := id.ParseEventID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[ReasonRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	e, err := decision(ctx, eventID, req.Reason)
	if err != nil {
		h.fail(ctx, w, msg+" failed", err)
		return
	}
	h.logger.InfoContext(ctx, msg, "request_id", requestID, "event_id", e.ID, "status", e.Status)
	httputil.WriteJSON(w, http.StatusOK, e)
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	h.logger.WarnContext(ctx, msg,
		"request_id", requestcontext.RequestID(ctx),
		"error", err,
	)
	httputil.WriteError(w, err)
}
