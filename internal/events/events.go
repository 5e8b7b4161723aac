// Package events handles the intake of reported incidents and the status
// they carry through the RCA workflow.
package events

import (
	"log/slog"

	"rcaflow/internal/docstore"
	"rcaflow/internal/events/handler"
	"rcaflow/internal/events/service"
	"rcaflow/internal/events/store"
)

type Service = service.Service

type Handler = handler.Handler

type ReportCommand = service.ReportCommand

func NewService(backend docstore.Backend, sites service.SiteResolver, opts ...service.Option) *Service {
	return service.New(store.New(backend), sites, opts...)
}

func NewHandler(s *Service, logger *slog.Logger) *Handler {
	return handler.New(s, logger)
}
