// Package auth wires token issuance, revocation and principal resolution.
package auth

import (
	"log/slog"
	"net/http"

	"rcaflow/internal/auth/handler"
	"rcaflow/internal/auth/service"
	"rcaflow/internal/auth/token"
	authmw "rcaflow/pkg/platform/middleware/auth"
)

type Service = service.Service

type Handler = handler.Handler

func NewHandler(s *Service, logger *slog.Logger) *Handler {
	return handler.New(s, logger)
}

// Middleware builds the bearer-token middleware: tokens validates, s checks
// revocation and reloads the principal.
func Middleware(tokens *token.Service, s *Service, logger *slog.Logger) func(http.Handler) http.Handler {
	return authmw.RequireAuth(tokens, s, s, logger)
}
