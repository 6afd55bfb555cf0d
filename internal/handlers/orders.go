package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/campusdesk/api/internal/domain"
	"github.com/campusdesk/api/internal/platform/auth"
	"github.com/campusdesk/api/internal/platform/httpx"
	"github.com/campusdesk/api/internal/services"
)

const (
	defaultOrderPageSize = 20
	maxOrderPageSize     = 100
	maxOrderBodySize     = 16 * 1024
)

// OrderHandlers exposes the order lifecycle endpoints.
type OrderHandlers struct {
	authn      *auth.Authenticator
	principals services.PrincipalResolver
	orders     services.OrderService
}

// NewOrderHandlers constructs a new OrderHandlers instance.
func NewOrderHandlers(authn *auth.Authenticator, principals services.PrincipalResolver, orders services.OrderService) *OrderHandlers {
	return &OrderHandlers{
		authn:      authn,
		principals: principals,
		orders:     orders,
	}
}

// Routes registers the /orders endpoints.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.Require())
	}
	r.Post("/", h.createOrder)
	r.Get("/", h.listOrders)
	r.Post("/bulk-status", h.bulkUpdateStatus)
	r.Get("/{orderID}", h.getOrder)
	r.Patch("/{orderID}", h.updateOrder)
	r.Get("/{orderID}/history", h.listOrderHistory)
}

type createOrderRequest struct {
	Kind                    string `json:"kind"`
	ServiceScope            string `json:"service_scope"`
	UserID                  string `json:"user_id"`
	CustomerName            string `json:"customer_name"`
	CustomerPhone           string `json:"customer_phone"`
	Device                  string `json:"device"`
	DeliveryAddress         string `json:"delivery_address"`
	Priority                string `json:"priority"`
	EstimatedCost           int64  `json:"estimated_cost"`
	EstimatedCompletionDate string `json:"estimated_completion_date"`
}

func (h *OrderHandlers) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	principal, ok := resolvePrincipal(ctx, w, h.principals)
	if !ok {
		return
	}

	body, err := readLimitedBody(r, maxOrderBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req createOrderRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return
	}

	cmd := services.CreateOrderCommand{
		Kind:            domain.OrderKind(strings.ToLower(strings.TrimSpace(req.Kind))),
		ServiceScope:    strings.TrimSpace(req.ServiceScope),
		UserID:          strings.TrimSpace(req.UserID),
		CustomerName:    strings.TrimSpace(req.CustomerName),
		CustomerPhone:   strings.TrimSpace(req.CustomerPhone),
		Device:          strings.TrimSpace(req.Device),
		DeliveryAddress: strings.TrimSpace(req.DeliveryAddress),
		Priority:        domain.Priority(strings.ToLower(strings.TrimSpace(req.Priority))),
		EstimatedCost:   req.EstimatedCost,
	}
	if raw := strings.TrimSpace(req.EstimatedCompletionDate); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "estimated_completion_date must be a valid RFC3339 timestamp", http.StatusBadRequest))
			return
		}
		cmd.EstimatedCompletionDate = &ts
	}

	order, err := h.orders.CreateOrder(ctx, principal, cmd)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	principal, ok := resolvePrincipal(ctx, w, h.principals)
	if !ok {
		return
	}

	values := r.URL.Query()

	page, err := parseListQuery(r, defaultOrderPageSize, maxOrderPageSize)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	query := services.ListOrdersQuery{
		Scope:  strings.TrimSpace(values.Get("scope")),
		Search: strings.TrimSpace(values.Get("search")),
		Page:   page,
	}
	for _, raw := range parseFilterValues(values["status"]) {
		query.Statuses = append(query.Statuses, domain.OrderStatus(raw))
	}
	if raw := strings.TrimSpace(values.Get("created_after")); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "created_after must be a valid RFC3339 timestamp", http.StatusBadRequest))
			return
		}
		query.From = &ts
	}
	if raw := strings.TrimSpace(values.Get("created_before")); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "created_before must be a valid RFC3339 timestamp", http.StatusBadRequest))
			return
		}
		query.To = &ts
	}

	result, err := h.orders.ListOrders(ctx, principal, query)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	items := make([]orderPayload, 0, len(result.Items))
	for _, order := range result.Items {
		items = append(items, buildOrderPayload(order))
	}
	writeJSONResponse(w, http.StatusOK, orderListResponse{Items: items, Total: result.Total})
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	principal, ok := resolvePrincipal(ctx, w, h.principals)
	if !ok {
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	order, err := h.orders.GetOrder(ctx, principal, orderID)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) listOrderHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	principal, ok := resolvePrincipal(ctx, w, h.principals)
	if !ok {
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	page, err := parseListQuery(r, defaultOrderPageSize, maxOrderPageSize)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	history, err := h.orders.ListOrderHistory(ctx, principal, orderID, page)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	items := make([]auditPayload, 0, len(history.Items))
	for _, record := range history.Items {
		items = append(items, buildAuditPayload(record))
	}
	writeJSONResponse(w, http.StatusOK, auditListResponse{Items: items, Total: history.Total})
}

type updateOrderRequest struct {
	Status                  *string `json:"status"`
	Priority                *string `json:"priority"`
	Note                    string  `json:"note"`
	EstimatedCost           *int64  `json:"estimated_cost"`
	ActualCost              *int64  `json:"actual_cost"`
	EstimatedCompletionDate *string `json:"estimated_completion_date"`
}

func (h *OrderHandlers) updateOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	principal, ok := resolvePrincipal(ctx, w, h.principals)
	if !ok {
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	body, err := readLimitedBody(r, maxOrderBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req updateOrderRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return
	}

	transition := services.TransitionRequest{
		Note:          req.Note,
		EstimatedCost: req.EstimatedCost,
		ActualCost:    req.ActualCost,
	}
	if req.Status != nil {
		status := domain.OrderStatus(strings.ToLower(strings.TrimSpace(*req.Status)))
		transition.Status = &status
	}
	if req.Priority != nil {
		priority := domain.Priority(strings.ToLower(strings.TrimSpace(*req.Priority)))
		transition.Priority = &priority
	}
	if req.EstimatedCompletionDate != nil {
		ts, err := parseTimeParam(strings.TrimSpace(*req.EstimatedCompletionDate))
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "estimated_completion_date must be a valid RFC3339 timestamp", http.StatusBadRequest))
			return
		}
		transition.EstimatedCompletionDate = &ts
	}

	order, err := h.orders.UpdateOrder(ctx, principal, orderID, transition)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

type bulkStatusRequest struct {
	OrderIDs []string `json:"order_ids"`
	Status   string   `json:"status"`
}

func (h *OrderHandlers) bulkUpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	principal, ok := resolvePrincipal(ctx, w, h.principals)
	if !ok {
		return
	}

	body, err := readLimitedBody(r, maxOrderBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req bulkStatusRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return
	}

	status := domain.OrderStatus(strings.ToLower(strings.TrimSpace(req.Status)))
	result, err := h.orders.BulkUpdateStatus(ctx, principal, req.OrderIDs, status)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, result)
}

type orderListResponse struct {
	Items []orderPayload `json:"items"`
	Total int            `json:"total"`
}

type orderResponse struct {
	Order orderPayload `json:"order"`
}

type orderPayload struct {
	ID                      string `json:"id"`
	Kind                    string `json:"kind"`
	UserID                  string `json:"user_id"`
	ServiceScope            string `json:"service_scope"`
	Status                  string `json:"status"`
	Priority                string `json:"priority,omitempty"`
	CustomerName            string `json:"customer_name,omitempty"`
	CustomerPhone           string `json:"customer_phone,omitempty"`
	Device                  string `json:"device,omitempty"`
	DeliveryAddress         string `json:"delivery_address,omitempty"`
	EstimatedCost           int64  `json:"estimated_cost,omitempty"`
	ActualCost              int64  `json:"actual_cost,omitempty"`
	EstimatedCompletionDate string `json:"estimated_completion_date,omitempty"`
	CreatedAt               string `json:"created_at"`
	UpdatedAt               string `json:"updated_at,omitempty"`
	CompletedAt             string `json:"completed_at,omitempty"`
}

func buildOrderPayload(order domain.Order) orderPayload {
	return orderPayload{
		ID:                      order.ID,
		Kind:                    string(order.Kind),
		UserID:                  order.UserID,
		ServiceScope:            order.ServiceScope,
		Status:                  string(order.Status),
		Priority:                string(order.Priority),
		CustomerName:            order.CustomerName,
		CustomerPhone:           order.CustomerPhone,
		Device:                  order.Device,
		DeliveryAddress:         order.DeliveryAddress,
		EstimatedCost:           order.EstimatedCost,
		ActualCost:              order.ActualCost,
		EstimatedCompletionDate: formatTimePtr(order.EstimatedCompletionDate),
		CreatedAt:               formatTime(order.CreatedAt),
		UpdatedAt:               formatTime(order.UpdatedAt),
		CompletedAt:             formatTimePtr(order.CompletedAt),
	}
}

type auditListResponse struct {
	Items []auditPayload `json:"items"`
	Total int            `json:"total"`
}

type auditPayload struct {
	ID          string `json:"id"`
	OrderID     string `json:"order_id"`
	OldStatus   string `json:"old_status"`
	NewStatus   string `json:"new_status"`
	OldPriority string `json:"old_priority,omitempty"`
	NewPriority string `json:"new_priority,omitempty"`
	Note        string `json:"note,omitempty"`
	ChangedBy   string `json:"changed_by"`
	CreatedAt   string `json:"created_at"`
}

func buildAuditPayload(record domain.AuditRecord) auditPayload {
	payload := auditPayload{
		ID:        record.ID,
		OrderID:   record.OrderID,
		OldStatus: string(record.OldStatus),
		NewStatus: string(record.NewStatus),
		Note:      record.Note,
		ChangedBy: record.ChangedBy,
		CreatedAt: formatTime(record.CreatedAt),
	}
	if record.OldPriority != nil {
		payload.OldPriority = string(*record.OldPriority)
	}
	if record.NewPriority != nil {
		payload.NewPriority = string(*record.NewPriority)
	}
	return payload
}
