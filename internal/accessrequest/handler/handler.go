package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"apihub/internal/accessrequest/models"
	"apihub/internal/accessrequest/service"
	id "apihub/pkg/domain"
	dErrors "apihub/pkg/domain-errors"
	"apihub/pkg/platform/httputil"
	"apihub/pkg/requestcontext"
)

// Service defines the access request operations exposed over HTTP.
type Service interface {
	Create(ctx context.Context, cmd service.CreateCommand, actor string) (models.AccessRequest, error)
	Get(ctx context.Context, reqID id.AccessRequestID) (models.AccessRequest, error)
	List(ctx context.Context, filter models.Filter) ([]models.AccessRequest, error)
	Approve(ctx context.Context, reqID id.AccessRequestID, actor string) (models.AccessRequest, error)
	Reject(ctx context.Context, reqID id.AccessRequestID, reason, actor string) (models.AccessRequest, error)
	Cancel(ctx context.Context, reqID id.AccessRequestID, actor string) (models.AccessRequest, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/v1/access-requests", h.HandleCreate)
	r.Get("/v1/access-requests", h.HandleList)
	r.Get("/v1/access-requests/{id}", h.HandleGet)
	r.Put("/v1/access-requests/{id}/approve", h.HandleApprove)
	r.Put("/v1/access-requests/{id}/reject", h.HandleReject)
	r.Put("/v1/access-requests/{id}/cancel", h.HandleCancel)
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	caller, err := httputil.RequireCaller(ctx, h.logger)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[CreateAccessRequestRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	created, err := h.service.Create(ctx, req.ToCommand(), caller)
	if err != nil {
		h.logger.WarnContext(ctx, "create access request failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, created)
}

// HandleList filters by applicationId, apiId and status query parameters.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	filter, err := parseFilter(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	reqs, err := h.service.List(ctx, filter)
	if err != nil {
		h.logger.ErrorContext(ctx, "list access requests failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toListResponse(reqs))
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID, ok := accessRequestID(w, r)
	if !ok {
		return
	}

	req, err := h.service.Get(ctx, reqID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, req)
}

// HandleApprove approves a pending request and reconciles the application's
// scopes. A reconciliation failure is reported as 502/504 after the approval
// was recorded.
func (h *Handler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	caller, err := httputil.RequireCaller(r.Context(), h.logger)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	reqID, ok := accessRequestID(w, r)
	if !ok {
		return
	}

	h.respond(w, r, "approve", reqID)(h.service.Approve(r.Context(), reqID, caller))
}

func (h *Handler) HandleReject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, err := httputil.RequireCaller(ctx, h.logger)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	reqID, ok := accessRequestID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[RejectRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	h.respond(w, r, "reject", reqID)(h.service.Reject(ctx, reqID, req.Reason, caller))
}

func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	caller, err := httputil.RequireCaller(r.Context(), h.logger)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	reqID, ok := accessRequestID(w, r)
	if !ok {
		return
	}

	h.respond(w, r, "cancel", reqID)(h.service.Cancel(r.Context(), reqID, caller))
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, action string, reqID id.AccessRequestID) func(models.AccessRequest, error) {
	return func(req models.AccessRequest, err error) {
		ctx := r.Context()
		if err != nil {
			h.logger.WarnContext(ctx, action+" access request failed",
				"error", err,
				"request_id", requestcontext.RequestID(ctx),
				"access_request_id", reqID,
			)
			httputil.WriteError(w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, req)
	}
}

func parseFilter(r *http.Request) (models.Filter, error) {
	q := r.URL.Query()
	var filter models.Filter
	if raw := q.Get("applicationId"); raw != "" {
		appID, err := id.ParseApplicationID(raw)
		if err != nil {
			return models.Filter{}, dErrors.New(dErrors.CodeBadRequest, "invalid application id")
		}
		filter.ApplicationID = appID
	}
	if raw := q.Get("apiId"); raw != "" {
		filter.ApiID = id.ApiID(raw)
	}
	if raw := q.Get("status"); raw != "" {
		status, err := models.ParseStatus(raw)
		if err != nil {
			return models.Filter{}, err
		}
		filter.Status = status
	}
	return filter, nil
}

func accessRequestID(w http.ResponseWriter, r *http.Request) (id.AccessRequestID, bool) {
	reqID, err := id.ParseAccessRequestID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid access request id"))
		return "", false
	}
	return reqID, true
}
