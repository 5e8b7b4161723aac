// Package report renders the final RCA report of an analysis and the
// company dashboard.
package report

import (
	"log/slog"

	"rcaflow/internal/report/handler"
	"rcaflow/internal/report/service"
)

type Service = service.Service

type Handler = handler.Handler

func NewService(analyses service.Analyses, events service.Events, opts ...service.Option) *Service {
	return service.New(analyses, events, opts...)
}

func NewHandler(s *Service, logger *slog.Logger) *Handler {
	return handler.New(s, logger)
}
