// Package analysis runs the six-step guided RCA workflow: event intake,
// facts, analysis technique, action plan, validation and results.
package analysis

import (
	"log/slog"

	"rcaflow/internal/analysis/handler"
	"rcaflow/internal/analysis/service"
	"rcaflow/internal/analysis/store"
	"rcaflow/internal/docstore"
)

type Service = service.Service

type Handler = handler.Handler

func NewService(backend docstore.Backend, events service.Events, opts ...service.Option) *Service {
	return service.New(store.New(backend), events, opts...)
}

func NewHandler(s *Service, logger *slog.Logger) *Handler {
	return handler.New(s, logger)
}
