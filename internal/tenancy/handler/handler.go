package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"rcaflow/internal/tenancy/models"
	"rcaflow/internal/tenancy/service"
	id "rcaflow/pkg/domain"
	"rcaflow/pkg/platform/httputil"
	"rcaflow/pkg/requestcontext"
)

type Service interface {
	CreateCompany(ctx context.Context, name string) (*models.Company, error)
	GetCompany(ctx context.Context, companyID id.CompanyID) (*models.CompanyDetails, error)
	ListCompanies(ctx context.Context) ([]*models.Company, error)
	DeactivateCompany(ctx context.Context, companyID id.CompanyID) (*models.Company, error)
	ReactivateCompany(ctx context.Context, companyID id.CompanyID) (*models.Company, error)

	CreateSite(ctx context.Context, cmd service.CreateSiteCommand) (*models.Site, error)
	ListSites(ctx context.Context, companyID id.CompanyID) ([]*models.Site, error)
	UpdateSite(ctx context.Context, siteID id.SiteID, cmd service.UpdateSiteCommand) (*models.Site, error)

	CreateUser(ctx context.Context, cmd service.CreateUserCommand) (*models.UserProfile, error)
	GetUser(ctx context.Context, userID id.UserID) (*models.UserProfile, error)
	ListUsers(ctx context.Context, companyID id.CompanyID) ([]*models.UserProfile, error)
	UpdateUserAccess(ctx context.Context, userID id.UserID, change models.AccessChange) (*models.UserProfile, error)
	DeactivateUser(ctx context.Context, userID id.UserID) (*models.UserProfile, error)
	ChangePassword(ctx context.Context, current, next string) error
}

// Handler serves company administration and the per-company site and user
// directories. Routes expect the auth middleware upstream.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/admin/companies", func(r chi.Router) {
		r.Post("/", h.HandleCreateCompany)
		r.Get("/", h.HandleListCompanies)
		r.Get("/{id}", h.HandleGetCompany)
		r.Post("/{id}/deactivate", h.HandleDeactivateCompany)
		r.Post("/{id}/reactivate", h.HandleReactivateCompany)
	})
	r.Route("/sites", func(r chi.Router) {
		r.Post("/", h.HandleCreateSite)
		r.Get("/", h.HandleListSites)
		r.Patch("/{id}", h.HandleUpdateSite)
	})
	r.Route("/users", func(r chi.Router) {
		r.Post("/", h.HandleCreateUser)
		r.Get("/", h.HandleListUsers)
		r.Post("/me/password", h.HandleChangePassword)
		r.Get("/{id}", h.HandleGetUser)
		r.Patch("/{id}/access", h.HandleUpdateAccess)
		r.Post("/{id}/deactivate", h.HandleDeactivateUser)
	})
}

func (h *Handler) HandleCreateCompany(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CreateCompanyRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	c, err := h.service.CreateCompany(ctx, req.Name)
	if err != nil {
		h.fail(ctx, w, "failed to create company", err)
		return
	}
	h.logger.InfoContext(ctx, "company created", "request_id", requestID, "company_id", c.ID)
	httputil.WriteJSON(w, http.StatusCreated, toCompanyResponse(c))
}

func (h *Handler) HandleListCompanies(w http.ResponseWriter, r *http.Request) {
	companies, err := h.service.ListCompanies(r.Context())
	if err != nil {
		h.fail(r.Context(), w, "failed to list companies", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"companies": mapSlice(companies, toCompanyResponse)})
}

func (h *Handler) HandleGetCompany(w http.ResponseWriter, r *http.Request) {
	companyID, err := id.ParseCompanyID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	details, err := h.service.GetCompany(r.Context(), companyID)
	if err != nil {
		h.fail(r.Context(), w, "failed to get company", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toCompanyDetailsResponse(details))
}

func (h *Handler) HandleDeactivateCompany(w http.ResponseWriter, r *http.Request) {
	h.companyTransition(w, r, h.service.DeactivateCompany, "company deactivated")
}

func (h *Handler) HandleReactivateCompany(w http.ResponseWriter, r *http.Request) {
	h.companyTransition(w, r, h.service.ReactivateCompany, "company reactivated")
}

func (h *Handler) companyTransition(w http.ResponseWriter, r *http.Request,
	transition func(context.Context, id.CompanyID) (*models.Company, error), msg string) {
	ctx := r.Context()
	companyID, err := id.ParseCompanyID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	c, err := transition(ctx, companyID)
	if err != nil {
		h.fail(ctx, w, "company transition failed", err)
		return
	}
	h.logger.InfoContext(ctx, msg, "request_id", requestcontext.RequestID(ctx), "company_id", c.ID)
	httputil.WriteJSON(w, http.StatusOK, toCompanyResponse(c))
}

func (h *Handler) HandleCreateSite(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CreateSiteRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	site, err := h.service.CreateSite(ctx, service.CreateSiteCommand{
		CompanyID: req.companyID,
		Name:      req.Name,
		Location:  req.Location,
	})
	if err != nil {
		h.fail(ctx, w, "failed to create site", err)
		return
	}
	h.logger.InfoContext(ctx, "site created", "request_id", requestID, "site_id", site.ID)
	httputil.WriteJSON(w, http.StatusCreated, toSiteResponse(site))
}

func (h *Handler) HandleListSites(w http.ResponseWriter, r *http.Request) {
	companyID, ok := h.companyQuery(w, r)
	if !ok {
		return
	}
	sites, err := h.service.ListSites(r.Context(), companyID)
	if err != nil {
		h.fail(r.Context(), w, "failed to list sites", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"sites": mapSlice(sites, toSiteResponse)})
}

func (h *Handler) HandleUpdateSite(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	siteID, err := id.ParseSiteID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[UpdateSiteRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	site, err := h.service.UpdateSite(ctx, siteID, service.UpdateSiteCommand{
		Name:     req.Name,
		Location: req.Location,
		Active:   req.Active,
	})
	if err != nil {
		h.fail(ctx, w, "failed to update site", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toSiteResponse(site))
}

func (h *Handler) HandleCreateUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CreateUserRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	u, err := h.service.CreateUser(ctx, service.CreateUserCommand{
		Email:      req.Email,
		Name:       req.Name,
		Password:   req.Password,
		CompanyID:  req.companyID,
		SiteIDs:    req.siteIDs,
		Role:       req.role,
		Permission: req.permission,
	})
	if err != nil {
		h.fail(ctx, w, "failed to create user", err)
		return
	}
	h.logger.InfoContext(ctx, "user created", "request_id", requestID, "user_id", u.ID)
	httputil.WriteJSON(w, http.StatusCreated, ToUserResponse(u))
}

func (h *Handler) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	companyID, ok := h.companyQuery(w, r)
	if !ok {
		return
	}
	users, err := h.service.ListUsers(r.Context(), companyID)
	if err != nil {
		h.fail(r.Context(), w, "failed to list users", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"users": mapSlice(users, ToUserResponse)})
}

func (h *Handler) HandleGetUser(w http.ResponseWriter, r *http.Request) {
	userID, err := id.ParseUserID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	u, err := h.service.GetUser(r.Context(), userID)
	if err != nil {
		h.fail(r.Context(), w, "failed to get user", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ToUserResponse(u))
}

func (h *Handler) HandleUpdateAccess(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	userID, err := id.ParseUserID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[UpdateAccessRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	u, err := h.service.UpdateUserAccess(ctx, userID, req.change)
	if err != nil {
		h.fail(ctx, w, "failed to update user access", err)
		return
	}
	h.logger.InfoContext(ctx, "user access changed", "request_id", requestID, "user_id", u.ID)
	httputil.WriteJSON(w, http.StatusOK, ToUserResponse(u))
}

func (h *Handler) HandleDeactivateUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := id.ParseUserID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	u, err := h.service.DeactivateUser(ctx, userID)
	if err != nil {
		h.fail(ctx, w, "failed to deactivate user", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ToUserResponse(u))
}

func (h *Handler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[ChangePasswordRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if err := h.service.ChangePassword(ctx, req.CurrentPassword, req.NewPassword); err != nil {
		h.fail(ctx, w, "failed to change password", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// companyQuery parses the optional ?companyId= used by superadmins to look
// into another company. Empty means the caller's company.
func (h *Handler) companyQuery(w http.ResponseWriter, r *http.Request) (id.CompanyID, bool) {
	raw := r.URL.Query().Get("companyId")
	if raw == "" {
		return id.CompanyID{}, true
	}
	companyID, err := id.ParseCompanyID(raw)
	if err != nil {
		httputil.WriteError(w, err)
		return id.CompanyID{}, false
	}
	return companyID, true
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	h.logger.WarnContext(ctx, msg,
		"request_id", requestcontext.RequestID(ctx),
		"error", err,
	)
	httputil.WriteError(w, err)
}
