// Package evidence uploads the files that back an analysis' results and
// serves them back.
package evidence

import (
	"log/slog"

	"rcaflow/internal/evidence/handler"
	"rcaflow/internal/evidence/service"
	"rcaflow/internal/evidence/storage"
)

type Service = service.Service

type Handler = handler.Handler

func NewService(analyses service.Analyses, objects storage.ObjectStore, opts ...service.Option) *Service {
	return service.New(analyses, objects, opts...)
}

func NewHandler(s *Service, logger *slog.Logger) *Handler {
	return handler.New(s, logger)
}
