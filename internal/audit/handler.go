package audit

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	id "rcaflow/pkg/domain"
	dErrors "rcaflow/pkg/domain-errors"
	platformaudit "rcaflow/pkg/platform/audit"
	"rcaflow/pkg/platform/httputil"
	"rcaflow/pkg/requestcontext"
)

type Lister interface {
	List(ctx context.Context, q Query) ([]platformaudit.Event, error)
}

type Handler struct {
	service Lister
	logger  *slog.Logger
}

func NewHandler(service Lister, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/audit", h.HandleList)
}

// HandleList accepts companyId, subject and limit query parameters.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q, err := parseQuery(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	events, err := h.service.List(ctx, q)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to list audit events",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	if events == nil {
		events = []platformaudit.Event{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"events": events, "count": len(events)})
}

func parseQuery(r *http.Request) (Query, error) {
	v := r.URL.Query()
	q := Query{Subject: strings.TrimSpace(v.Get("subject"))}
	if raw := strings.TrimSpace(v.Get("companyId")); raw != "" {
		companyID, err := id.ParseCompanyID(raw)
		if err != nil {
			return q, err
		}
		q.CompanyID = companyID
	}
	if raw := strings.TrimSpace(v.Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return q, dErrors.New(dErrors.CodeInvalidInput, "limit must be a positive integer")
		}
		q.Limit = n
	}
	return q, nil
}
