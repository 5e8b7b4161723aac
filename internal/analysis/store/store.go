// Package store persists analysis documents in the rcaAnalyses collection.
package store

import (
	"context"

	"rcaflow/internal/analysis/models"
	"rcaflow/internal/docstore"
	id "rcaflow/pkg/domain"
)

type AnalysisStore struct {
	docs *docstore.Collection[models.Analysis]
}

func New(backend docstore.Backend) *AnalysisStore {
	return &AnalysisStore{docs: docstore.NewCollection[models.Analysis](backend, docstore.Analyses)}
}

func (s *AnalysisStore) Create(ctx context.Context, a *models.Analysis) error {
	return s.docs.Create(ctx, a.ID.String(), a)
}

func (s *AnalysisStore) FindByID(ctx context.Context, analysisID id.AnalysisID) (*models.Analysis, error) {
	return s.docs.Get(ctx, analysisID.String())
}

func (s *AnalysisStore) FindByEvent(ctx context.Context, eventID id.EventID) (*models.Analysis, error) {
	return s.docs.First(ctx, docstore.Where("eventId", eventID))
}

// ListOpen returns the company's analyses that are not finalized, most
// recently updated first.
func (s *AnalysisStore) ListOpen(ctx context.Context, companyID id.CompanyID) ([]*models.Analysis, error) {
	return s.docs.Find(ctx, docstore.Where("companyId", companyID).And("finalized", false).Order("updatedAt", true))
}

// ListFinalized returns every finalized analysis across companies. The
// efficacy reminder sweeps it.
func (s *AnalysisStore) ListFinalized(ctx context.Context) ([]*models.Analysis, error) {
	return s.docs.Find(ctx, docstore.Where("finalized", true))
}

// Execute runs fn against the stored analysis and persists the result
// atomically. An error from fn aborts the write.
func (s *AnalysisStore) Execute(ctx context.Context, analysisID id.AnalysisID, fn func(*models.Analysis) error) (*models.Analysis, error) {
	return s.docs.Update(ctx, analysisID.String(), fn)
}
