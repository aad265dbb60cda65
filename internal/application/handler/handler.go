package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"apihub/internal/application/models"
	"apihub/internal/application/service"
	id "apihub/pkg/domain"
	dErrors "apihub/pkg/domain-errors"
	"apihub/pkg/platform/httputil"
	"apihub/pkg/requestcontext"
)

// Service defines the application operations exposed over HTTP.
// Mutations that reconcile scopes may return a scope reconciliation error
// after the change itself was stored.
type Service interface {
	Register(ctx context.Context, cmd service.RegisterCommand, actor string) (models.Application, error)
	Get(ctx context.Context, appID id.ApplicationID, includeDeleted bool) (models.Application, error)
	ListByTeam(ctx context.Context, teamID id.TeamID) ([]models.Application, error)
	ListByMember(ctx context.Context, email string) ([]models.Application, error)
	Delete(ctx context.Context, appID id.ApplicationID, actor string) error
	Rename(ctx context.Context, appID id.ApplicationID, name, actor string) (models.Application, error)
	AddApi(ctx context.Context, appID id.ApplicationID, api models.Api, actor string) (models.Application, error)
	RemoveApi(ctx context.Context, appID id.ApplicationID, apiID id.ApiID, actor string) (models.Application, error)
	ChangeTeam(ctx context.Context, appID id.ApplicationID, teamID id.TeamID, actor string) (models.Application, error)
	RemoveTeam(ctx context.Context, appID id.ApplicationID, actor string) (models.Application, error)
	FixScopes(ctx context.Context, appID id.ApplicationID, actor string) error
	AddMember(ctx context.Context, appID id.ApplicationID, email, actor string) (models.Application, error)
	RemoveMember(ctx context.Context, appID id.ApplicationID, email, actor string) (models.Application, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/v1/applications", h.HandleRegister)
	r.Get("/v1/applications", h.HandleList)
	r.Get("/v1/applications/{id}", h.HandleGet)
	r.Delete("/v1/applications/{id}", h.HandleDelete)
	r.Put("/v1/applications/{id}/name", h.HandleRename)
	r.Put("/v1/applications/{id}/apis", h.HandleAddApi)
	r.Delete("/v1/applications/{id}/apis/{apiId}", h.HandleRemoveApi)
	r.Put("/v1/applications/{id}/owning-team", h.HandleChangeTeam)
	r.Delete("/v1/applications/{id}/owning-team", h.HandleRemoveTeam)
	r.Post("/v1/applications/{id}/fix-scopes", h.HandleFixScopes)
	r.Post("/v1/applications/{id}/members", h.HandleAddMember)
	r.Delete("/v1/applications/{id}/members/{email}", h.HandleRemoveMember)
}

// HandleRegister creates an application with one credential per environment.
// The response is the only place client secrets are ever returned.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	caller, err := httputil.RequireCaller(ctx, h.logger)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[RegisterApplicationRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	app, err := h.service.Register(ctx, req.ToCommand(), caller)
	if err != nil {
		h.logger.ErrorContext(ctx, "register application failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, app)
}

// HandleList lists active applications owned by a team or including a member.
// Without a filter it lists the caller's applications.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	var (
		apps []models.Application
		err  error
	)
	if raw := r.URL.Query().Get("teamId"); raw != "" {
		teamID, parseErr := id.ParseTeamID(raw)
		if parseErr != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid team id"))
			return
		}
		apps, err = h.service.ListByTeam(ctx, teamID)
	} else {
		member := strings.TrimSpace(r.URL.Query().Get("member"))
		if member == "" {
			if member, err = httputil.RequireCaller(ctx, h.logger); err != nil {
				httputil.WriteError(w, err)
				return
			}
		}
		apps, err = h.service.ListByMember(ctx, member)
	}
	if err != nil {
		h.logger.ErrorContext(ctx, "list applications failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toListResponse(apps))
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	appID, ok := applicationID(w, r)
	if !ok {
		return
	}
	includeDeleted := false
	if raw := r.URL.Query().Get("includeDeleted"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "includeDeleted must be a boolean"))
			return
		}
		includeDeleted = parsed
	}

	app, err := h.service.Get(ctx, appID, includeDeleted)
	if err != nil {
		h.logger.WarnContext(ctx, "get application failed", "error", err, "request_id", requestID, "application_id", appID)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, app)
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	caller, err := httputil.RequireCaller(ctx, h.logger)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	appID, ok := applicationID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(ctx, appID, caller); err != nil {
		h.logger.ErrorContext(ctx, "delete application failed", "error", err, "request_id", requestID, "application_id", appID)
		httputil.WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleRename(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	caller, err := httputil.RequireCaller(ctx, h.logger)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	appID, ok := applicationID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[RenameApplicationRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	h.respond(w, r, "rename application", appID)(h.service.Rename(ctx, appID, req.Name, caller))
}

// HandleAddApi links (or replaces) an API and reconciles scopes. A
// reconciliation failure is reported as 502/504 with the failed environments;
// the link itself is kept and fix-scopes can be retried.
func (h *Handler) HandleAddApi(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	caller, err := httputil.RequireCaller(ctx, h.logger)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	appID, ok := applicationID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[AddApiRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	h.respond(w, r, "add api", appID)(h.service.AddApi(ctx, appID, req.ToApi(), caller))
}

func (h *Handler) HandleRemoveApi(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, err := httputil.RequireCaller(ctx, h.logger)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	appID, ok := applicationID(w, r)
	if !ok {
		return
	}
	apiID, err := id.ParseApiID(chi.URLParam(r, "apiId"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid api id"))
		return
	}

	h.respond(w, r, "remove api", appID)(h.service.RemoveApi(ctx, appID, apiID, caller))
}

func (h *Handler) HandleChangeTeam(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	caller, err := httputil.RequireCaller(ctx, h.logger)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	appID, ok := applicationID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[ChangeTeamRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	h.respond(w, r, "change owning team", appID)(h.service.ChangeTeam(ctx, appID, id.TeamID(req.TeamID), caller))
}

func (h *Handler) HandleRemoveTeam(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, err := httputil.RequireCaller(ctx, h.logger)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	appID, ok := applicationID(w, r)
	if !ok {
		return
	}

	h.respond(w, r, "remove owning team", appID)(h.service.RemoveTeam(ctx, appID, caller))
}

// HandleFixScopes reconciles the application's scopes in every environment.
// It is idempotent and safe to retry.
func (h *Handler) HandleFixScopes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	caller, err := httputil.RequireCaller(ctx, h.logger)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	appID, ok := applicationID(w, r)
	if !ok {
		return
	}

	if err := h.service.FixScopes(ctx, appID, caller); err != nil {
		h.logger.ErrorContext(ctx, "fix scopes failed", "error", err, "request_id", requestID, "application_id", appID)
		httputil.WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleAddMember(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	caller, err := httputil.RequireCaller(ctx, h.logger)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	appID, ok := applicationID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[MemberRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	h.respond(w, r, "add member", appID)(h.service.AddMember(ctx, appID, req.Email, caller))
}

func (h *Handler) HandleRemoveMember(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, err := httputil.RequireCaller(ctx, h.logger)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	appID, ok := applicationID(w, r)
	if !ok {
		return
	}
	email, err := url.PathUnescape(chi.URLParam(r, "email"))
	if err != nil || strings.TrimSpace(email) == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid member email"))
		return
	}

	h.respond(w, r, "remove member", appID)(h.service.RemoveMember(ctx, appID, strings.ToLower(strings.TrimSpace(email)), caller))
}

// respond writes the updated application, or the error of the named action.
func (h *Handler) respond(w http.ResponseWriter, r *http.Request, action string, appID id.ApplicationID) func(models.Application, error) {
	return func(app models.Application, err error) {
		ctx := r.Context()
		if err != nil {
			h.logger.ErrorContext(ctx, action+" failed",
				"error", err,
				"request_id", requestcontext.RequestID(ctx),
				"application_id", appID,
			)
			httputil.WriteError(w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, app)
	}
}

func applicationID(w http.ResponseWriter, r *http.Request) (id.ApplicationID, bool) {
	appID, err := id.ParseApplicationID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid application id"))
		return "", false
	}
	return appID, true
}
