package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"rcaflow/internal/analysis/models"
	"rcaflow/internal/analysis/service"
	"rcaflow/internal/analysis/technique"
	"rcaflow/internal/analysis/technique/tree"
	id "rcaflow/pkg/domain"
	dErrors "rcaflow/pkg/domain-errors"
	"rcaflow/pkg/platform/httputil"
	"rcaflow/pkg/requestcontext"
)

type Service interface {
	CreateFromEventStep(ctx context.Context, in service.EventStepInput) (*models.Analysis, error)
	SaveStep(ctx context.Context, analysisID id.AnalysisID, step models.Step, in service.StepInput) (*models.Analysis, error)
	ValidateStep(ctx context.Context, analysisID id.AnalysisID, step models.Step) ([]dErrors.FieldError, error)
	Advance(ctx context.Context, analysisID id.AnalysisID) (*models.Analysis, error)
	Get(ctx context.Context, analysisID id.AnalysisID) (*models.Analysis, error)
	Open(ctx context.Context, analysisID id.AnalysisID, step models.Step) (*service.OpenResult, error)
	ListOpen(ctx context.Context, companyID id.CompanyID) ([]*models.Analysis, error)
	SelectTechnique(ctx context.Context, analysisID id.AnalysisID, kind technique.Kind, force bool) (*models.Analysis, error)
	ApplyTree(ctx context.Context, analysisID id.AnalysisID, kind technique.Kind, m technique.Mutation) (*service.TreeResult, error)
	Candidates(ctx context.Context, analysisID id.AnalysisID) ([]service.CandidateView, error)
	AddRootCause(ctx context.Context, analysisID id.AnalysisID, in service.RootCauseInput) (*models.Analysis, error)
	RemoveRootCause(ctx context.Context, analysisID id.AnalysisID, rootCauseID string) (*models.Analysis, error)
	AddAction(ctx context.Context, analysisID id.AnalysisID, in service.ActionInput) (*models.Analysis, error)
	UpdateAction(ctx context.Context, analysisID id.AnalysisID, actionID string, in service.ActionInput) (*models.Analysis, error)
	RemoveAction(ctx context.Context, analysisID id.AnalysisID, actionID string) (*models.Analysis, error)
	ValidateAction(ctx context.Context, analysisID id.AnalysisID, actionID string, decision models.Decision, comment string) (*models.Analysis, error)
	Finalize(ctx context.Context, analysisID id.AnalysisID) (*models.Analysis, error)
	VerifyEfficacy(ctx context.Context, analysisID id.AnalysisID, effective bool, comment string) (*models.Analysis, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the workflow routes. Patterns are flat so the evidence
// and report handlers can share the /analyses/{id} prefix.
func (h *Handler) Register(r chi.Router) {
	r.Get("/analyses", h.HandleOpen)
	r.Put("/analyses/steps/1", h.HandleCreate)
	r.Get("/analyses/{id}", h.HandleGet)
	r.Put("/analyses/{id}/steps/{step}", h.HandleSaveStep)
	r.Get("/analyses/{id}/steps/{step}/validation", h.HandleValidateStep)
	r.Post("/analyses/{id}/advance", h.HandleAdvance)

	r.Post("/analyses/{id}/technique", h.HandleSelectTechnique)
	r.Post("/analyses/{id}/tree/{target}", h.HandleAddNode)
	r.Put("/analyses/{id}/tree/{target}/{path}", h.HandleUpdateNode)
	r.Delete("/analyses/{id}/tree/{target}/{path}", h.HandleRemoveNode)
	r.Get("/analyses/{id}/candidates", h.HandleCandidates)
	r.Post("/analyses/{id}/root-causes", h.HandleAddRootCause)
	r.Delete("/analyses/{id}/root-causes/{rcid}", h.HandleRemoveRootCause)

	r.Post("/analyses/{id}/actions", h.HandleAddAction)
	r.Put("/analyses/{id}/actions/{aid}", h.HandleUpdateAction)
	r.Delete("/analyses/{id}/actions/{aid}", h.HandleRemoveAction)
	r.Post("/analyses/{id}/actions/{aid}/validation", h.HandleValidateAction)

	r.Post("/analyses/{id}/finalize", h.HandleFinalize)
	r.Post("/analyses/{id}/efficacy", h.HandleVerifyEfficacy)
}

// HandleOpen serves the deep link ?id=&step=. Without id it lists the
// open analyses of the caller's company.
func (h *Handler) HandleOpen(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("id") == "" {
		var companyID id.CompanyID
		if raw := q.Get("companyId"); raw != "" {
			parsed, err := id.ParseCompanyID(raw)
			if err != nil {
				httputil.WriteError(w, err)
				return
			}
			companyID = parsed
		}
		open, err := h.service.ListOpen(r.Context(), companyID)
		if err != nil {
			h.fail(r.Context(), w, "failed to list analyses", err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]any{"analyses": open, "count": len(open)})
		return
	}

	analysisID, err := id.ParseAnalysisID(q.Get("id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var step models.Step
	if raw := q.Get("step"); raw != "" {
		if step, err = models.ParseStep(raw); err != nil {
			httputil.WriteError(w, err)
			return
		}
	}
	res, err := h.service.Open(r.Context(), analysisID, step)
	if err != nil {
		h.fail(r.Context(), w, "failed to open analysis", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"analysis": res.Analysis, "step": res.Step})
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[EventStepRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	a, err := h.service.CreateFromEventStep(ctx, req.input())
	if err != nil {
		h.fail(ctx, w, "failed to create analysis", err)
		return
	}
	h.logger.InfoContext(ctx, "analysis created",
		"request_id", requestID,
		"analysis_id", a.ID,
		"event_id", a.EventID,
	)
	httputil.WriteJSON(w, http.StatusCreated, a)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	analysisID, ok := analysisParam(w, r)
	if !ok {
		return
	}
	a, err := h.service.Get(r.Context(), analysisID)
	if err != nil {
		h.fail(r.Context(), w, "failed to get analysis", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, a)
}

func (h *Handler) HandleSaveStep(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	analysisID, ok := analysisParam(w, r)
	if !ok {
		return
	}
	step, err := models.ParseStep(chi.URLParam(r, "step"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var in service.StepInput
	switch step {
	case models.StepEvent:
		req, ok := httputil.DecodeAndPrepare[EventStepRequest](w, r, h.logger, ctx, requestID)
		if !ok {
			return
		}
		ev := req.input()
		in.Event = &ev
	case models.StepFacts:
		req, ok := httputil.DecodeAndPrepare[FactsStepRequest](w, r, h.logger, ctx, requestID)
		if !ok {
			return
		}
		in.Facts = &service.FactsStepInput{Facts: req.Facts, Sessions: req.Sessions}
	case models.StepResults:
		req, ok := httputil.DecodeAndPrepare[ResultsStepRequest](w, r, h.logger, ctx, requestID)
		if !ok {
			return
		}
		in.Results = &service.ResultsStepInput{Conclusions: req.Conclusions}
	}

	a, err := h.service.SaveStep(ctx, analysisID, step, in)
	if err != nil {
		h.fail(ctx, w, "failed to save step", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, a)
}

func (h *Handler) HandleValidateStep(w http.ResponseWriter, r *http.Request) {
	analysisID, ok := analysisParam(w, r)
	if !ok {
		return
	}
	step, err := models.ParseStep(chi.URLParam(r, "step"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	fields, err := h.service.ValidateStep(r.Context(), analysisID, step)
	if err != nil {
		h.fail(r.Context(), w, "failed to validate step", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"step": step, "valid": len(fields) == 0, "fields": fields})
}

func (h *Handler) HandleAdvance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	analysisID, ok := analysisParam(w, r)
	if !ok {
		return
	}
	a, err := h.service.Advance(ctx, analysisID)
	if err != nil {
		h.fail(ctx, w, "failed to advance analysis", err)
		return
	}
	h.logger.InfoContext(ctx, "analysis advanced",
		"request_id", requestcontext.RequestID(ctx),
		"analysis_id", a.ID,
		"step", a.CurrentStep,
	)
	httputil.WriteJSON(w, http.StatusOK, a)
}

func (h *Handler) HandleSelectTechnique(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	analysisID, ok := analysisParam(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[TechniqueRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	a, err := h.service.SelectTechnique(ctx, analysisID, req.kind, req.Force)
	if err != nil {
		h.fail(ctx, w, "failed to select technique", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, a)
}

func (h *Handler) HandleAddNode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	analysisID, ok := analysisParam(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[NodeRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	h.applyTree(w, r, analysisID, req.kind, req.mutation(technique.OpAdd, chi.URLParam(r, "target"), req.path), http.StatusCreated)
}

func (h *Handler) HandleUpdateNode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	analysisID, ok := analysisParam(w, r)
	if !ok {
		return
	}
	path, err := tree.ParsePath(chi.URLParam(r, "path"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[NodeRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	h.applyTree(w, r, analysisID, req.kind, req.mutation(technique.OpUpdate, chi.URLParam(r, "target"), path), http.StatusOK)
}

// HandleRemoveNode takes the technique from the query string since DELETE
// has no body.
func (h *Handler) HandleRemoveNode(w http.ResponseWriter, r *http.Request) {
	analysisID, ok := analysisParam(w, r)
	if !ok {
		return
	}
	path, err := tree.ParsePath(chi.URLParam(r, "path"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	kind, err := technique.ParseKind(r.URL.Query().Get("technique"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	m := technique.Mutation{Op: technique.OpRemove, Target: chi.URLParam(r, "target"), Path: path}
	h.applyTree(w, r, analysisID, kind, m, http.StatusOK)
}

func (h *Handler) applyTree(w http.ResponseWriter, r *http.Request, analysisID id.AnalysisID, kind technique.Kind, m technique.Mutation, status int) {
	res, err := h.service.ApplyTree(r.Context(), analysisID, kind, m)
	if err != nil {
		h.fail(r.Context(), w, "failed to edit technique tree", err)
		return
	}
	httputil.WriteJSON(w, status, map[string]any{"analysis": res.Analysis, "path": res.Path.String()})
}

func (h *Handler) HandleCandidates(w http.ResponseWriter, r *http.Request) {
	analysisID, ok := analysisParam(w, r)
	if !ok {
		return
	}
	cands, err := h.service.Candidates(r.Context(), analysisID)
	if err != nil {
		h.fail(r.Context(), w, "failed to list candidates", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"candidates": cands})
}

func (h *Handler) HandleAddRootCause(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	analysisID, ok := analysisParam(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[RootCauseRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	a, err := h.service.AddRootCause(ctx, analysisID, service.RootCauseInput{Text: req.Text, SourceNodeID: req.SourceNodeID})
	if err != nil {
		h.fail(ctx, w, "failed to add root cause", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, a)
}

func (h *Handler) HandleRemoveRootCause(w http.ResponseWriter, r *http.Request) {
	analysisID, ok := analysisParam(w, r)
	if !ok {
		return
	}
	a, err := h.service.RemoveRootCause(r.Context(), analysisID, chi.URLParam(r, "rcid"))
	if err != nil {
		h.fail(r.Context(), w, "failed to remove root cause", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, a)
}

func (h *Handler) HandleAddAction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	analysisID, ok := analysisParam(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[ActionRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	a, err := h.service.AddAction(ctx, analysisID, req.input())
	if err != nil {
		h.fail(ctx, w, "failed to add planned action", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, a)
}

func (h *Handler) HandleUpdateAction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	analysisID, ok := analysisParam(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[ActionRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	a, err := h.service.UpdateAction(ctx, analysisID, chi.URLParam(r, "aid"), req.input())
	if err != nil {
		h.fail(ctx, w, "failed to update planned action", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, a)
}

func (h *Handler) HandleRemoveAction(w http.ResponseWriter, r *http.Request) {
	analysisID, ok := analysisParam(w, r)
	if !ok {
		return
	}
	a, err := h.service.RemoveAction(r.Context(), analysisID, chi.URLParam(r, "aid"))
	if err != nil {
		h.fail(r.Context(), w, "failed to remove planned action", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, a)
}

func (h *Handler) HandleValidateAction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	analysisID, ok := analysisParam(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[ValidationRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	actionID := chi.URLParam(r, "aid")
	a, err := h.service.ValidateAction(ctx, analysisID, actionID, req.decision, req.Comment)
	if err != nil {
		h.fail(ctx, w, "failed to validate planned action", err)
		return
	}
	h.logger.InfoContext(ctx, "planned action validated",
		"request_id", requestID,
		"analysis_id", a.ID,
		"action_id", actionID,
		"decision", req.decision,
	)
	httputil.WriteJSON(w, http.StatusOK, a)
}

func (h *Handler) HandleFinalize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	analysisID, ok := analysisParam(w, r)
	if !ok {
		return
	}
	a, err := h.service.Finalize(ctx, analysisID)
	if err != nil {
		h.fail(ctx, w, "failed to finalize analysis", err)
		return
	}
	h.logger.InfoContext(ctx, "analysis finalized",
		"request_id", requestcontext.RequestID(ctx),
		"analysis_id", a.ID,
		"efficacy_due", a.EfficacyDueDate,
	)
	httputil.WriteJSON(w, http.StatusOK, a)
}

func (h *Handler) HandleVerifyEfficacy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	analysisID, ok := analysisParam(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[EfficacyRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	a, err := h.service.VerifyEfficacy(ctx, analysisID, *req.Effective, req.Comment)
	if err != nil {
		h.fail(ctx, w, "failed to verify efficacy", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, a)
}

func analysisParam(w http.ResponseWriter, r *http.Request) (id.AnalysisID, bool) {
	analysisID, err := id.ParseAnalysisID(strings.TrimSpace(chi.URLParam(r, "id")))
	if err != nil {
		httputil.WriteError(w, err)
		return analysisID, false
	}
	return analysisID, true
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	h.logger.WarnContext(ctx, msg,
		"request_id", requestcontext.RequestID(ctx),
		"error", err,
	)
	httputil.WriteError(w, err)
}
