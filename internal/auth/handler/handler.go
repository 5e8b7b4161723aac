package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"rcaflow/internal/auth/service"
	tenancyhandler "rcaflow/internal/tenancy/handler"
	tenancy "rcaflow/internal/tenancy/models"
	dErrors "rcaflow/pkg/domain-errors"
	"rcaflow/pkg/platform/httputil"
	"rcaflow/pkg/requestcontext"
)

type Service interface {
	Login(ctx context.Context, address, password string) (*service.LoginResult, error)
	Logout(ctx context.Context) error
	Me(ctx context.Context) (*tenancy.UserProfile, error)
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *LoginRequest) Validate() error {
	r.Email = strings.TrimSpace(r.Email)
	if r.Email == "" || r.Password == "" {
		return dErrors.New(dErrors.CodeValidation, "email and password are required")
	}
	if len(r.Email) > 320 || len(r.Password) > 1024 {
		return dErrors.New(dErrors.CodeValidation, "credentials are too long")
	}
	return nil
}

type LoginResponse struct {
	AccessToken string                      `json:"access_token"`
	TokenType   string                      `json:"token_type"`
	ExpiresAt   time.Time                   `json:"expires_at"`
	User        tenancyhandler.UserResponse `json:"user"`
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterPublic mounts the routes that run without a bearer token.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Post("/auth/login", h.HandleLogin)
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/auth/logout", h.HandleLogout)
	r.Get("/auth/me", h.HandleMe)
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[LoginRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	res, err := h.service.Login(ctx, req.Email, req.Password)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "user logged in",
		"request_id", requestID,
		"user_id", res.User.ID,
		"device", requestcontext.Device(ctx),
	)
	httputil.WriteJSON(w, http.StatusOK, LoginResponse{
		AccessToken: res.AccessToken,
		TokenType:   res.TokenType,
		ExpiresAt:   res.ExpiresAt,
		User:        tenancyhandler.ToUserResponse(res.User),
	})
}

func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.service.Logout(ctx); err != nil {
		h.logger.ErrorContext(ctx, "logout failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.Me(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, tenancyhandler.ToUserResponse(user))
}
