package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"apihub/internal/team/models"
	"apihub/internal/team/service"
	id "apihub/pkg/domain"
	dErrors "apihub/pkg/domain-errors"
	"apihub/pkg/platform/httputil"
	"apihub/pkg/requestcontext"
)

// Service defines the team operations exposed over HTTP.
type Service interface {
	Create(ctx context.Context, cmd service.CreateCommand, actor string) (models.Team, error)
	Get(ctx context.Context, teamID id.TeamID) (models.Team, error)
	List(ctx context.Context, member string) ([]models.Team, error)
	Rename(ctx context.Context, teamID id.TeamID, name, actor string) (models.Team, error)
	AddMember(ctx context.Context, teamID id.TeamID, email, actor string) (models.Team, error)
	RemoveMember(ctx context.Context, teamID id.TeamID, email, actor string) (models.Team, error)
	AddEgress(ctx context.Context, teamID id.TeamID, egress, actor string) (models.Team, error)
	RemoveEgress(ctx context.Context, teamID id.TeamID, egress, actor string) (models.Team, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/v1/teams", h.HandleCreate)
	r.Get("/v1/teams", h.HandleList)
	r.Get("/v1/teams/{id}", h.HandleGet)
	r.Put("/v1/teams/{id}/name", h.HandleRename)
	r.Post("/v1/teams/{id}/members", h.HandleAddMember)
	r.Delete("/v1/teams/{id}/members/{email}", h.HandleRemoveMember)
	r.Post("/v1/teams/{id}/egresses", h.HandleAddEgress)
	r.Delete("/v1/teams/{id}/egresses/{egress}", h.HandleRemoveEgress)
}

type TeamListResponse struct {
	Teams []models.Team `json:"teams"`
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	caller, err := httputil.RequireCaller(ctx, h.logger)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[CreateTeamRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	team, err := h.service.Create(ctx, req.ToCommand(), caller)
	if err != nil {
		h.logger.WarnContext(ctx, "create team failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, team)
}

// HandleList lists all teams, or the teams of ?member=.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	teams, err := h.service.List(ctx, strings.ToLower(r.URL.Query().Get("member")))
	if err != nil {
		h.logger.ErrorContext(ctx, "list teams failed", "error", err, "request_id", requestcontext.RequestID(ctx))
		httputil.WriteError(w, err)
		return
	}
	if teams == nil {
		teams = []models.Team{}
	}

	httputil.WriteJSON(w, http.StatusOK, TeamListResponse{Teams: teams})
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	teamID, ok := parseTeamID(w, r)
	if !ok {
		return
	}
	h.respond(w, r, "get team", teamID)(h.service.Get(r.Context(), teamID))
}

func (h *Handler) HandleRename(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, teamID, ok := h.prelude(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[RenameTeamRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	h.respond(w, r, "rename team", teamID)(h.service.Rename(ctx, teamID, req.Name, caller))
}

func (h *Handler) HandleAddMember(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, teamID, ok := h.prelude(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[MemberRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	h.respond(w, r, "add team member", teamID)(h.service.AddMember(ctx, teamID, req.Email, caller))
}

func (h *Handler) HandleRemoveMember(w http.ResponseWriter, r *http.Request) {
	caller, teamID, ok := h.prelude(w, r)
	if !ok {
		return
	}
	email, ok := pathValue(w, r, "email")
	if !ok {
		return
	}
	h.respond(w, r, "remove team member", teamID)(h.service.RemoveMember(r.Context(), teamID, strings.ToLower(email), caller))
}

func (h *Handler) HandleAddEgress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, teamID, ok := h.prelude(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[EgressRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	h.respond(w, r, "add egress", teamID)(h.service.AddEgress(ctx, teamID, req.Egress, caller))
}

func (h *Handler) HandleRemoveEgress(w http.ResponseWriter, r *http.Request) {
	caller, teamID, ok := h.prelude(w, r)
	if !ok {
		return
	}
	egress, ok := pathValue(w, r, "egress")
	if !ok {
		return
	}
	h.respond(w, r, "remove egress", teamID)(h.service.RemoveEgress(r.Context(), teamID, egress, caller))
}

// prelude resolves the caller and the team id shared by every mutation.
func (h *Handler) prelude(w http.ResponseWriter, r *http.Request) (string, id.TeamID, bool) {
	caller, err := httputil.RequireCaller(r.Context(), h.logger)
	if err != nil {
		httputil.WriteError(w, err)
		return "", "", false
	}
	teamID, ok := parseTeamID(w, r)
	return caller, teamID, ok
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, action string, teamID id.TeamID) func(models.Team, error) {
	return func(team models.Team, err error) {
		ctx := r.Context()
		if err != nil {
			h.logger.WarnContext(ctx, action+" failed",
				"error", err,
				"request_id", requestcontext.RequestID(ctx),
				"team_id", teamID,
			)
			httputil.WriteError(w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, team)
	}
}

func parseTeamID(w http.ResponseWriter, r *http.Request) (id.TeamID, bool) {
	parsed, err := id.ParseTeamID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid team id"))
		return "", false
	}
	return parsed, true
}

func pathValue(w http.ResponseWriter, r *http.Request, key string) (string, bool) {
	v, err := url.PathUnescape(chi.URLParam(r, key))
	v = strings.TrimSpace(v)
	if err != nil || v == "" {
		httputil.WriteError(w, dErrors.Newf(dErrors.CodeBadRequest, "invalid %s", key))
		return "", false
	}
	return v, true
}
