package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/campusdesk/api/internal/domain"
	"github.com/campusdesk/api/internal/platform/auth"
	"github.com/campusdesk/api/internal/platform/httpx"
	"github.com/campusdesk/api/internal/services"
)

// NotificationHandlers exposes the in-memory operator feed.
type NotificationHandlers struct {
	authn      *auth.Authenticator
	principals services.PrincipalResolver
	feed       services.NotificationService
}

// NewNotificationHandlers constructs a new NotificationHandlers instance.
func NewNotificationHandlers(authn *auth.Authenticator, principals services.PrincipalResolver, feed services.NotificationService) *NotificationHandlers {
	return &NotificationHandlers{
		authn:      authn,
		principals: principals,
		feed:       feed,
	}
}

// Routes registers the /notifications endpoints.
func (h *NotificationHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.Require())
	}
	r.Get("/", h.listNotifications)
	r.Post("/clear", h.clearNotifications)
	r.Post("/{notificationID}/read", h.markRead)
}

func (h *NotificationHandlers) listNotifications(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.feed == nil {
		httpx.WriteError(ctx, w, httpx.NewError("notification_service_unavailable", "notification service unavailable", http.StatusServiceUnavailable))
		return
	}

	principal, ok := resolvePrincipal(ctx, w, h.principals)
	if !ok {
		return
	}

	events := h.feed.List(ctx, principal)
	items := make([]notificationPayload, 0, len(events))
	for _, event := range events {
		items = append(items, buildNotificationPayload(event))
	}
	writeJSONResponse(w, http.StatusOK, notificationListResponse{Items: items, Total: len(items)})
}

func (h *NotificationHandlers) markRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.feed == nil {
		httpx.WriteError(ctx, w, httpx.NewError("notification_service_unavailable", "notification service unavailable", http.StatusServiceUnavailable))
		return
	}

	principal, ok := resolvePrincipal(ctx, w, h.principals)
	if !ok {
		return
	}

	notificationID := strings.TrimSpace(chi.URLParam(r, "notificationID"))
	if notificationID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "notification id is required", http.StatusBadRequest))
		return
	}

	if err := h.feed.MarkRead(ctx, principal, notificationID); err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *NotificationHandlers) clearNotifications(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.feed == nil {
		httpx.WriteError(ctx, w, httpx.NewError("notification_service_unavailable", "notification service unavailable", http.StatusServiceUnavailable))
		return
	}

	principal, ok := resolvePrincipal(ctx, w, h.principals)
	if !ok {
		return
	}

	cleared := h.feed.ClearAll(ctx, principal)
	writeJSONResponse(w, http.StatusOK, map[string]any{"cleared": cleared})
}

type notificationListResponse struct {
	Items []notificationPayload `json:"items"`
	Total int                   `json:"total"`
}

type notificationPayload struct {
	ID           string `json:"id"`
	Kind         string `json:"kind"`
	OrderID      string `json:"order_id"`
	OrderKind    string `json:"order_kind"`
	ServiceScope string `json:"service_scope"`
	Message      string `json:"message"`
	CreatedAt    string `json:"created_at"`
	Read         bool   `json:"read"`
}

func buildNotificationPayload(event domain.NotificationEvent) notificationPayload {
	return notificationPayload{
		ID:           event.ID,
		Kind:         string(event.Kind),
		OrderID:      event.OrderID,
		OrderKind:    string(event.OrderKind),
		ServiceScope: event.ServiceScope,
		Message:      event.Message,
		CreatedAt:    formatTime(event.CreatedAt),
		Read:         event.Read,
	}
}
