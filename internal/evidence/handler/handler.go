package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"rcaflow/internal/analysis/models"
	"rcaflow/internal/evidence/service"
	id "rcaflow/pkg/domain"
	dErrors "rcaflow/pkg/domain-errors"
	"rcaflow/pkg/platform/httputil"
	"rcaflow/pkg/requestcontext"
)

type Service interface {
	Upload(ctx context.Context, cmd service.UploadCommand) (*models.Evidence, error)
	List(ctx context.Context, analysisID id.AnalysisID) ([]models.Evidence, error)
	Download(ctx context.Context, analysisID id.AnalysisID, evidenceID id.EvidenceID) (*models.Evidence, io.ReadCloser, error)
	Delete(ctx context.Context, analysisID id.AnalysisID, evidenceID id.EvidenceID) error
	MaxBytes() int64
}

// multipartOverhead leaves room for the form fields around the file part.
const (
	multipartOverhead = 1 << 20
	maxMemory         = 8 << 20
)

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/analyses/{id}/evidences", h.HandleUpload)
	r.Get("/analyses/{id}/evidences", h.HandleList)
	r.Get("/analyses/{id}/evidences/{eid}", h.HandleDownload)
	r.Delete("/analyses/{id}/evidences/{eid}", h.HandleDelete)
}

// HandleUpload accepts multipart/form-data with a "file" part and optional
// "actionId" and repeated "tag" fields.
func (h *Handler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	analysisID, err := id.ParseAnalysisID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.service.MaxBytes()+multipartOverhead)
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "file is too large"))
			return
		}
		h.logger.WarnContext(ctx, "failed to parse upload", "request_id", requestID, "error", err)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "expected a multipart form with a file"))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		httputil.WriteError(w, dErrors.WithFields(dErrors.CodeValidation, "file is required",
			[]dErrors.FieldError{{Field: "file", Message: "required"}}))
		return
	}
	defer file.Close()

	e, err := h.service.Upload(ctx, service.UploadCommand{
		AnalysisID:  analysisID,
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		ActionID:    r.FormValue("actionId"),
		Tags:        r.MultipartForm.Value["tag"],
		Body:        file,
	})
	if err != nil {
		h.fail(ctx, w, "failed to upload evidence", err)
		return
	}
	h.logger.InfoContext(ctx, "evidence uploaded",
		"request_id", requestID,
		"analysis_id", analysisID,
		"evidence_id", e.ID,
		"content_type", e.ContentType,
	)
	httputil.WriteJSON(w, http.StatusCreated, e)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	analysisID, err := id.ParseAnalysisID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	list, err := h.service.List(r.Context(), analysisID)
	if err != nil {
		h.fail(r.Context(), w, "failed to list evidences", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"evidences": list, "count": len(list)})
}

func (h *Handler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	analysisID, evidenceID, ok := params(w, r)
	if !ok {
		return
	}
	e, body, err := h.service.Download(ctx, analysisID, evidenceID)
	if err != nil {
		h.fail(ctx, w, "failed to download evidence", err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", e.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(e.Size, 10))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": e.FileName}))
	w.Header().Set("X-Content-SHA256", e.SHA256)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		h.logger.WarnContext(ctx, "evidence download interrupted",
			"request_id", requestcontext.RequestID(ctx),
			"evidence_id", evidenceID,
			"error", err,
		)
	}
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	analysisID, evidenceID, ok := params(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(ctx, analysisID, evidenceID); err != nil {
		h.fail(ctx, w, "failed to delete evidence", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func params(w http.ResponseWriter, r *http.Request) (id.AnalysisID, id.EvidenceID, bool) {
	analysisID, err := id.ParseAnalysisID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return analysisID, id.EvidenceID{}, false
	}
	evidenceID, err := id.ParseEvidenceID(strings.TrimSpace(chi.URLParam(r, "eid")))
	if err != nil {
		httputil.WriteError(w, err)
		return analysisID, evidenceID, false
	}
	return analysisID, evidenceID, true
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	h.logger.WarnContext(ctx, msg,
		"request_id", requestcontext.RequestID(ctx),
		"error", err,
	)
	httputil.WriteError(w, err)
}
