// Package tenancy manages companies, their sites and the user profiles that
// belong to them.
package tenancy

import (
	"log/slog"

	"rcaflow/internal/docstore"
	"rcaflow/internal/tenancy/handler"
	"rcaflow/internal/tenancy/service"
	"rcaflow/internal/tenancy/store"
)

type Service = service.Service

type Handler = handler.Handler

// NewService wires the tenancy stores over backend.
func NewService(backend docstore.Backend, opts ...service.Option) *Service {
	return service.New(
		store.NewCompanyStore(backend),
		store.NewSiteStore(backend),
		store.NewUserStore(backend),
		opts...,
	)
}

func NewHandler(s *Service, logger *slog.Logger) *Handler {
	return handler.New(s, logger)
}
