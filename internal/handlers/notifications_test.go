package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/campusdesk/api/internal/domain"
	"github.com/campusdesk/api/internal/services"
)

type stubNotificationService struct {
	events  []domain.NotificationEvent
	readErr error

	lastMarked string
	cleared    int
}

func (s *stubNotificationService) Publish(domain.NotificationEvent) {}

func (s *stubNotificationService) List(context.Context, domain.Principal) []domain.NotificationEvent {
	return s.events
}

func (s *stubNotificationService) MarkRead(_ context.Context, _ domain.Principal, eventID string) error {
	s.lastMarked = eventID
	return s.readErr
}

func (s *stubNotificationService) ClearAll(context.Context, domain.Principal) int {
	return s.cleared
}

func (s *stubNotificationService) Stop() {}

func newNotificationTestRouter(feed *stubNotificationService) chi.Router {
	resolver := &stubPrincipalResolver{principals: map[string]domain.Principal{
		"vendor-1": testVendor,
	}}
	handlers := NewNotificationHandlers(nil, resolver, feed)
	r := chi.NewRouter()
	r.Route("/notifications", handlers.Routes)
	return r
}

func TestListNotifications(t *testing.T) {
	feed := &stubNotificationService{events: []domain.NotificationEvent{{
		ID:           "evt_1",
		Kind:         domain.NotificationNewOrder,
		OrderID:      "ord_1",
		OrderKind:    domain.OrderKindRepair,
		ServiceScope: domain.ScopePhone,
		Message:      "new repair order",
		CreatedAt:    time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
	}}}
	router := newNotificationTestRouter(feed)

	req := authedRequest(http.MethodGet, "/notifications/", "")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var body struct {
		Items []notificationPayload `json:"items"`
		Total int                   `json:"total"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body.Total != 1 || len(body.Items) != 1 {
		t.Fatalf("expected one item, got %+v", body)
	}
	if body.Items[0].ID != "evt_1" || body.Items[0].Kind != "new_order" {
		t.Fatalf("unexpected item %+v", body.Items[0])
	}
}

func TestMarkNotificationRead(t *testing.T) {
	feed := &stubNotificationService{}
	router := newNotificationTestRouter(feed)

	req := authedRequest(http.MethodPost, "/notifications/evt_1/read", "")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
	if feed.lastMarked != "evt_1" {
		t.Fatalf("expected evt_1 marked, got %s", feed.lastMarked)
	}
}

func TestMarkNotificationReadNotFound(t *testing.T) {
	feed := &stubNotificationService{readErr: services.ErrNotificationNotFound}
	router := newNotificationTestRouter(feed)

	req := authedRequest(http.MethodPost, "/notifications/evt_missing/read", "")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["error"] != "notification_not_found" {
		t.Fatalf("expected notification_not_found, got %v", body["error"])
	}
}

func TestClearNotifications(t *testing.T) {
	feed := &stubNotificationService{cleared: 3}
	router := newNotificationTestRouter(feed)

	req := authedRequest(http.MethodPost, "/notifications/clear", "")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["cleared"] != float64(3) {
		t.Fatalf("expected 3 cleared, got %v", body["cleared"])
	}
}

func TestNotificationsRequireIdentity(t *testing.T) {
	router := newNotificationTestRouter(&stubNotificationService{})

	req := httptest.NewRequest(http.MethodGet, "/notifications/", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}
