// Package service stores evidence files for step 6 of an analysis and keeps
// their references on the analysis document.
package service

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"slices"
	"strings"

	"rcaflow/internal/access"
	"rcaflow/internal/analysis/models"
	"rcaflow/internal/evidence/metrics"
	"rcaflow/internal/evidence/storage"
	id "rcaflow/pkg/domain"
	dErrors "rcaflow/pkg/domain-errors"
	"rcaflow/pkg/platform/sentinel"
	"rcaflow/pkg/platform/textnorm"
	"rcaflow/pkg/requestcontext"
)

// Analyses is the slice of the analysis service evidence relies on.
type Analyses interface {
	Get(ctx context.Context, analysisID id.AnalysisID) (*models.Analysis, error)
	AttachEvidence(ctx context.Context, analysisID id.AnalysisID, e models.Evidence) (*models.Analysis, error)
	DetachEvidence(ctx context.Context, analysisID id.AnalysisID, evidenceID id.EvidenceID) (*models.Evidence, error)
}

const (
	DefaultMaxBytes = 20 << 20
	maxTags         = 10
	maxTagRunes     = 40
	sniffLen        = 512
)

type Service struct {
	analyses Analyses
	objects  storage.ObjectStore
	logger   *slog.Logger
	metrics  *metrics.Metrics
	maxBytes int64
	allowed  []string
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithMaxBytes(n int64) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxBytes = n
		}
	}
}

// WithAllowedContentTypes replaces the allow-list. Entries are media types
// without parameters.
func WithAllowedContentTypes(types []string) Option {
	return func(s *Service) {
		s.allowed = s.allowed[:0]
		for _, t := range types {
			if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
				s.allowed = append(s.allowed, t)
			}
		}
	}
}

func New(analyses Analyses, objects storage.ObjectStore, opts ...Option) *Service {
	s := &Service{
		analyses: analyses,
		objects:  objects,
		logger:   slog.New(slog.DiscardHandler),
		maxBytes: DefaultMaxBytes,
		allowed:  []string{"image/jpeg", "image/png", "application/pdf", "text/plain"},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) MaxBytes() int64 { return s.maxBytes }

type UploadCommand struct {
	AnalysisID  id.AnalysisID
	FileName    string
	ContentType string
	// ActionID optionally links the file to a planned action.
	ActionID string
	Tags     []string
	Body     io.Reader
}

// Upload streams the file to object storage, then appends its reference to
// the analysis. The object is removed again when the reference cannot be
// stored.
func (s *Service) Upload(ctx context.Context, cmd UploadCommand) (*models.Evidence, error) {
	a, err := s.analyses.Get(ctx, cmd.AnalysisID)
	if err != nil {
		return nil, err
	}
	p, err := access.RequireEdit(ctx, a.CompanyID, a.SiteID)
	if err != nil {
		return nil, err
	}
	if err := a.CanEditStep(models.StepResults); err != nil {
		return nil, err
	}
	tags, err := cleanTags(cmd.Tags)
	if err != nil {
		return nil, err
	}

	body := bufio.NewReaderSize(cmd.Body, sniffLen)
	head, err := body.Peek(sniffLen)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "failed to read upload")
	}
	if len(head) == 0 {
		s.reject("empty")
		return nil, dErrors.New(dErrors.CodeValidation, "file is empty")
	}
	contentType := s.contentType(cmd.ContentType, head)
	if !slices.Contains(s.allowed, contentType) {
		s.reject("content_type")
		return nil, dErrors.WithFields(dErrors.CodeValidation, "file type is not allowed",
			[]dErrors.FieldError{{Field: "file", Message: "type " + contentType + " is not allowed"}})
	}

	e := models.Evidence{
		ID:          id.NewEvidenceID(),
		FileName:    storage.SanitizeFileName(cmd.FileName),
		ContentType: contentType,
		ActionID:    strings.TrimSpace(cmd.ActionID),
		Tags:        tags,
		UploadedBy:  p.UserID,
		UploadedAt:  requestcontext.Now(ctx),
	}
	e.ObjectKey = storage.Key(a.CompanyID, a.ID, e.ID, e.FileName)

	hash := sha256.New()
	limited := &io.LimitedReader{R: io.TeeReader(body, hash), N: s.maxBytes + 1}
	size, err := s.objects.Put(ctx, e.ObjectKey, limited)
	if err != nil {
		return nil, translate(err)
	}
	if size > s.maxBytes {
		s.discard(ctx, e.ObjectKey)
		s.reject("size")
		return nil, dErrors.WithFields(dErrors.CodeValidation, "file is too large",
			[]dErrors.FieldError{{Field: "file", Message: "exceeds the upload limit"}})
	}
	e.Size = size
	e.SHA256 = hex.EncodeToString(hash.Sum(nil))

	if _, err := s.analyses.AttachEvidence(ctx, a.ID, e); err != nil {
		s.discard(ctx, e.ObjectKey)
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.IncrementUpload(contentType, size)
	}
	s.logger.InfoContext(ctx, "evidence stored",
		"request_id", requestcontext.RequestID(ctx),
		"analysis_id", a.ID,
		"evidence_id", e.ID,
		"size", size,
	)
	return &e, nil
}

// contentType trusts the declared type unless it is missing or generic,
// in which case the content is sniffed.
func (s *Service) contentType(declared string, head []byte) string {
	if mt, _, err := mime.ParseMediaType(declared); err == nil && mt != "application/octet-stream" {
		return strings.ToLower(mt)
	}
	mt, _, _ := mime.ParseMediaType(http.DetectContentType(head))
	return mt
}

func (s *Service) reject(reason string) {
	if s.metrics != nil {
		s.metrics.IncrementRejected(reason)
	}
}

func (s *Service) discard(ctx context.Context, key string) {
	if err := s.objects.Delete(ctx, key); err != nil {
		s.logger.ErrorContext(ctx, "failed to remove orphaned evidence object", "key", key, "error", err)
	}
}

func cleanTags(in []string) ([]string, error) {
	tags := textnorm.DedupeAndTrim(in)
	if len(tags) > maxTags {
		return nil, dErrors.New(dErrors.CodeValidation, "too many tags")
	}
	for _, t := range tags {
		if len([]rune(t)) > maxTagRunes {
			return nil, dErrors.New(dErrors.CodeValidation, "tag is too long")
		}
	}
	return tags, nil
}

func (s *Service) List(ctx context.Context, analysisID id.AnalysisID) ([]models.Evidence, error) {
	a, err := s.analyses.Get(ctx, analysisID)
	if err != nil {
		return nil, err
	}
	return a.Evidences, nil
}

// Download returns the evidence metadata and a reader over its bytes. The
// caller closes the reader.
func (s *Service) Download(ctx context.Context, analysisID id.AnalysisID, evidenceID id.EvidenceID) (*models.Evidence, io.ReadCloser, error) {
	a, err := s.analyses.Get(ctx, analysisID)
	if err != nil {
		return nil, nil, err
	}
	e, ok := a.Evidence(evidenceID)
	if !ok {
		return nil, nil, dErrors.New(dErrors.CodeNotFound, "evidence not found")
	}
	rc, err := s.objects.Open(ctx, e.ObjectKey)
	if err != nil {
		return nil, nil, translate(err)
	}
	return e, rc, nil
}

// Delete drops the reference, then the stored object. A failed object
// delete is only logged.
func (s *Service) Delete(ctx context.Context, analysisID id.AnalysisID, evidenceID id.EvidenceID) error {
	e, err := s.analyses.DetachEvidence(ctx, analysisID, evidenceID)
	if err != nil {
		return err
	}
	s.discard(ctx, e.ObjectKey)
	return nil
}

func translate(err error) error {
	var de *dErrors.Error
	switch {
	case errors.As(err, &de):
		return err
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "evidence file not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConflict, "evidence file already exists")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "evidence storage failed")
}
