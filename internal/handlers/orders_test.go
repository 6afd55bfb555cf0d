package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/campusdesk/api/internal/domain"
	"github.com/campusdesk/api/internal/platform/auth"
	"github.com/campusdesk/api/internal/services"
)

type stubPrincipalResolver struct {
	principals map[string]domain.Principal
	err        error
}

func (s *stubPrincipalResolver) Resolve(_ context.Context, uid string) (domain.Principal, error) {
	if s.err != nil {
		return domain.Principal{}, s.err
	}
	principal, ok := s.principals[uid]
	if !ok {
		return domain.Principal{}, services.Deny(services.ReasonInsufficientPrivilege)
	}
	return principal, nil
}

type stubOrderService struct {
	order   domain.Order
	page    domain.Page[domain.Order]
	history domain.Page[domain.AuditRecord]
	bulk    services.BulkResult
	err     error

	lastCreate    *services.CreateOrderCommand
	lastQuery     *services.ListOrdersQuery
	lastOrderID   string
	lastReq       *services.TransitionRequest
	lastBulkIDs   []string
	lastBulkState domain.OrderStatus
}

func (s *stubOrderService) CreateOrder(_ context.Context, _ domain.Principal, cmd services.CreateOrderCommand) (domain.Order, error) {
	s.lastCreate = &cmd
	return s.order, s.err
}

func (s *stubOrderService) GetOrder(_ context.Context, _ domain.Principal, orderID string) (domain.Order, error) {
	s.lastOrderID = orderID
	return s.order, s.err
}

func (s *stubOrderService) ListOrders(_ context.Context, _ domain.Principal, query services.ListOrdersQuery) (domain.Page[domain.Order], error) {
	s.lastQuery = &query
	return s.page, s.err
}

func (s *stubOrderService) ListOrderHistory(_ context.Context, _ domain.Principal, orderID string, _ domain.ListQuery) (domain.Page[domain.AuditRecord], error) {
	s.lastOrderID = orderID
	return s.history, s.err
}

func (s *stubOrderService) UpdateOrder(_ context.Context, _ domain.Principal, orderID string, req services.TransitionRequest) (domain.Order, error) {
	s.lastOrderID = orderID
	s.lastReq = &req
	return s.order, s.err
}

func (s *stubOrderService) BulkUpdateStatus(_ context.Context, _ domain.Principal, orderIDs []string, status domain.OrderStatus) (services.BulkResult, error) {
	s.lastBulkIDs = orderIDs
	s.lastBulkState = status
	return s.bulk, s.err
}

var testVendor = domain.Principal{ID: "vendor-1", Role: domain.RolePhoneVendor}

func newOrderTestRouter(svc *stubOrderService) chi.Router {
	resolver := &stubPrincipalResolver{principals: map[string]domain.Principal{
		"vendor-1": testVendor,
	}}
	handlers := NewOrderHandlers(nil, resolver, svc)
	r := chi.NewRouter()
	r.Route("/orders", handlers.Routes)
	return r
}

func authedRequest(method, target, body string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	return req.WithContext(auth.WithIdentity(req.Context(), auth.Identity{UID: "vendor-1"}))
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	return body
}

func TestCreateOrderReturnsCreated(t *testing.T) {
	created := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	svc := &stubOrderService{order: domain.Order{
		ID:           "ord_1",
		Kind:         domain.OrderKindRepair,
		UserID:       "vendor-1",
		ServiceScope: domain.ScopePhone,
		Status:       domain.OrderStatusPending,
		Priority:     domain.PriorityNormal,
		CreatedAt:    created,
		UpdatedAt:    created,
	}}
	router := newOrderTestRouter(svc)

	req := authedRequest(http.MethodPost, "/orders/", `{"kind":"repair","service_scope":"phone","customer_name":"Dana","customer_phone":"555-0100","device":"Pixel 8"}`)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if svc.lastCreate == nil {
		t.Fatal("expected create command to reach the service")
	}
	if svc.lastCreate.Kind != domain.OrderKindRepair {
		t.Fatalf("expected repair kind, got %s", svc.lastCreate.Kind)
	}
	if svc.lastCreate.ServiceScope != domain.ScopePhone {
		t.Fatalf("expected phone scope, got %s", svc.lastCreate.ServiceScope)
	}

	body := decodeBody(t, rr)
	order, ok := body["order"].(map[string]any)
	if !ok {
		t.Fatalf("expected order payload, got %v", body)
	}
	if order["id"] != "ord_1" {
		t.Fatalf("expected id ord_1, got %v", order["id"])
	}
	if order["status"] != "pending" {
		t.Fatalf("expected pending status, got %v", order["status"])
	}
}

func TestCreateOrderRejectsEmptyBody(t *testing.T) {
	router := newOrderTestRouter(&stubOrderService{})

	req := authedRequest(http.MethodPost, "/orders/", "")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestListOrdersForwardsFilters(t *testing.T) {
	svc := &stubOrderService{page: domain.Page[domain.Order]{
		Items: []domain.Order{{ID: "ord_1", Kind: domain.OrderKindRepair, Status: domain.OrderStatusPending}},
		Total: 41,
	}}
	router := newOrderTestRouter(svc)

	req := authedRequest(http.MethodGet, "/orders/?scope=phone&status=pending,in_progress&search=pixel&limit=5&offset=10", "")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if svc.lastQuery == nil {
		t.Fatal("expected list query to reach the service")
	}
	if svc.lastQuery.Scope != "phone" {
		t.Fatalf("expected phone scope, got %s", svc.lastQuery.Scope)
	}
	if len(svc.lastQuery.Statuses) != 2 {
		t.Fatalf("expected two status filters, got %v", svc.lastQuery.Statuses)
	}
	if svc.lastQuery.Search != "pixel" {
		t.Fatalf("expected search pixel, got %s", svc.lastQuery.Search)
	}
	if svc.lastQuery.Page.Limit != 5 || svc.lastQuery.Page.Offset != 10 {
		t.Fatalf("expected limit 5 offset 10, got %+v", svc.lastQuery.Page)
	}

	body := decodeBody(t, rr)
	if body["total"] != float64(41) {
		t.Fatalf("expected total 41, got %v", body["total"])
	}
}

func TestListOrdersRejectsBadLimit(t *testing.T) {
	router := newOrderTestRouter(&stubOrderService{})

	req := authedRequest(http.MethodGet, "/orders/?limit=abc", "")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestGetOrderNotFound(t *testing.T) {
	svc := &stubOrderService{err: services.ErrOrderNotFound}
	router := newOrderTestRouter(svc)

	req := authedRequest(http.MethodGet, "/orders/ord_missing", "")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["error"] != "order_not_found" {
		t.Fatalf("expected order_not_found, got %v", body["error"])
	}
}

func TestUpdateOrderPermissionDeniedCarriesReason(t *testing.T) {
	svc := &stubOrderService{err: services.Deny(services.ReasonWrongServiceScope)}
	router := newOrderTestRouter(svc)

	req := authedRequest(http.MethodPatch, "/orders/ord_1", `{"status":"in_progress"}`)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["error"] != "permission_denied" {
		t.Fatalf("expected permission_denied, got %v", body["error"])
	}
	if body["reason"] != services.ReasonWrongServiceScope {
		t.Fatalf("expected wrong_service_scope reason, got %v", body["reason"])
	}
}

func TestUpdateOrderIllegalTransition(t *testing.T) {
	svc := &stubOrderService{err: services.ErrIllegalTransition}
	router := newOrderTestRouter(svc)

	req := authedRequest(http.MethodPatch, "/orders/ord_1", `{"status":"delivered"}`)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["error"] != "illegal_transition" {
		t.Fatalf("expected illegal_transition, got %v", body["error"])
	}
}

func TestUpdateOrderConcurrentConflict(t *testing.T) {
	svc := &stubOrderService{err: services.ErrConflict}
	router := newOrderTestRouter(svc)

	req := authedRequest(http.MethodPatch, "/orders/ord_1", `{"status":"completed"}`)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["error"] != "conflict" {
		t.Fatalf("expected conflict, got %v", body["error"])
	}
}

func TestUpdateOrderStorageUnavailable(t *testing.T) {
	svc := &stubOrderService{err: services.ErrStorageUnavailable}
	router := newOrderTestRouter(svc)

	req := authedRequest(http.MethodPatch, "/orders/ord_1", `{"status":"completed"}`)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}

func TestUpdateOrderForwardsTransitionFields(t *testing.T) {
	svc := &stubOrderService{order: domain.Order{ID: "ord_1", Status: domain.OrderStatusInProgress}}
	router := newOrderTestRouter(svc)

	req := authedRequest(http.MethodPatch, "/orders/ord_1", `{"status":"in_progress","priority":"high","note":"screen replaced","actual_cost":4200}`)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if svc.lastReq == nil {
		t.Fatal("expected transition request to reach the service")
	}
	if svc.lastReq.Status == nil || *svc.lastReq.Status != domain.OrderStatusInProgress {
		t.Fatalf("expected in_progress status, got %v", svc.lastReq.Status)
	}
	if svc.lastReq.Priority == nil || *svc.lastReq.Priority != domain.PriorityHigh {
		t.Fatalf("expected high priority, got %v", svc.lastReq.Priority)
	}
	if svc.lastReq.Note != "screen replaced" {
		t.Fatalf("unexpected note %q", svc.lastReq.Note)
	}
	if svc.lastReq.ActualCost == nil || *svc.lastReq.ActualCost != 4200 {
		t.Fatalf("expected actual cost 4200, got %v", svc.lastReq.ActualCost)
	}
}

func TestBulkUpdateStatusReturnsPartialResult(t *testing.T) {
	svc := &stubOrderService{bulk: services.BulkResult{
		Succeeded: []string{"ord_1"},
		Failed:    []services.BulkFailure{{OrderID: "ord_2", Reason: "not_found"}},
	}}
	router := newOrderTestRouter(svc)

	req := authedRequest(http.MethodPost, "/orders/bulk-status", `{"order_ids":["ord_1","ord_2"],"status":"in_progress"}`)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if svc.lastBulkState != domain.OrderStatusInProgress {
		t.Fatalf("expected in_progress, got %s", svc.lastBulkState)
	}

	var result services.BulkResult
	if err := json.Unmarshal(rr.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(result.Succeeded) != 1 || result.Succeeded[0] != "ord_1" {
		t.Fatalf("unexpected succeeded list %v", result.Succeeded)
	}
	if len(result.Failed) != 1 || result.Failed[0].Reason != "not_found" {
		t.Fatalf("unexpected failed list %v", result.Failed)
	}
}

func TestListOrderHistoryReturnsRecords(t *testing.T) {
	old := domain.PriorityNormal
	next := domain.PriorityHigh
	svc := &stubOrderService{history: domain.Page[domain.AuditRecord]{
		Items: []domain.AuditRecord{{
			ID:          "adt_1",
			OrderID:     "ord_1",
			OldStatus:   domain.OrderStatusPending,
			NewStatus:   domain.OrderStatusInProgress,
			OldPriority: &old,
			NewPriority: &next,
			ChangedBy:   "vendor-1",
			CreatedAt:   time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC),
		}},
		Total: 1,
	}}
	router := newOrderTestRouter(svc)

	req := authedRequest(http.MethodGet, "/orders/ord_1/history", "")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if svc.lastOrderID != "ord_1" {
		t.Fatalf("expected ord_1, got %s", svc.lastOrderID)
	}
	body := decodeBody(t, rr)
	items, ok := body["items"].([]any)
	if !ok || len(items) != 1 {
		t.Fatalf("expected one history item, got %v", body["items"])
	}
	record := items[0].(map[string]any)
	if record["new_priority"] != "high" {
		t.Fatalf("expected high new_priority, got %v", record["new_priority"])
	}
}

func TestOrdersRequireIdentity(t *testing.T) {
	router := newOrderTestRouter(&stubOrderService{})

	req := httptest.NewRequest(http.MethodGet, "/orders/", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["error"] != "unauthenticated" {
		t.Fatalf("expected unauthenticated, got %v", body["error"])
	}
}

func TestOrdersUnknownAccountDenied(t *testing.T) {
	resolver := &stubPrincipalResolver{principals: map[string]domain.Principal{}}
	handlers := NewOrderHandlers(nil, resolver, &stubOrderService{})
	r := chi.NewRouter()
	r.Route("/orders", handlers.Routes)

	req := authedRequest(http.MethodGet, "/orders/", "")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
}
