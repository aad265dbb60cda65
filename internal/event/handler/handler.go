package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"apihub/internal/event/models"
	dErrors "apihub/pkg/domain-errors"
	"apihub/pkg/platform/httputil"
	"apihub/pkg/requestcontext"
)

// Reader is the read side of the event log.
type Reader interface {
	ListByEntity(ctx context.Context, entityID string) ([]models.Event, error)
	ListByEntityType(ctx context.Context, entityType models.EntityType) ([]models.Event, error)
}

type Handler struct {
	events Reader
	logger *slog.Logger
}

func New(events Reader, logger *slog.Logger) *Handler {
	return &Handler{events: events, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/v1/events", h.HandleListByType)
	r.Get("/v1/events/{entityId}", h.HandleTimeline)
}

type EventListResponse struct {
	Events []models.Event `json:"events"`
}

// HandleTimeline returns every event of one entity, oldest first.
func (h *Handler) HandleTimeline(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	entityID := chi.URLParam(r, "entityId")
	if entityID == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "entity id is required"))
		return
	}

	events, err := h.events.ListByEntity(ctx, entityID)
	if err != nil {
		h.logger.ErrorContext(ctx, "list events failed", "error", err, "entity_id", entityID, "request_id", requestcontext.RequestID(ctx))
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list events"))
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toListResponse(events))
}

func (h *Handler) HandleListByType(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	entityType, err := models.ParseEntityType(r.URL.Query().Get("entityType"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	events, err := h.events.ListByEntityType(ctx, entityType)
	if err != nil {
		h.logger.ErrorContext(ctx, "list events failed", "error", err, "entity_type", entityType, "request_id", requestcontext.RequestID(ctx))
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list events"))
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toListResponse(events))
}

func toListResponse(events []models.Event) EventListResponse {
	if events == nil {
		events = []models.Event{}
	}
	return EventListResponse{Events: events}
}
