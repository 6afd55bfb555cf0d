package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/oklog/ulid/v2"

	domain "github.com/campusdesk/api/internal/domain"
	"github.com/campusdesk/api/internal/platform/observability"
	"github.com/campusdesk/api/internal/repositories"
)

const (
	orderEventCreated         = "order.created"
	orderEventStatusChanged   = "order.status_changed"
	orderEventPriorityChanged = "order.priority_changed"

	orderIDPrefix        = "ord_"
	auditIDPrefix        = "adt_"
	eventIDPrefix        = "evt_"
	notificationIDPrefix = "ntf_"

	maxBulkOrderIDs = 100
	maxNoteLength   = 2000
)

// Bulk failure reason codes reported per order id.
const (
	bulkReasonNotFound           = "not_found"
	bulkReasonIllegalTransition  = "illegal_transition"
	bulkReasonConflict           = "conflict"
	bulkReasonInvalid            = "invalid_request"
	bulkReasonStorageUnavailable = "storage_unavailable"
)

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders        repositories.OrderRepository
	Audits        repositories.AuditRecordRepository
	Notifications NotificationService
	Events        OrderEventPublisher
	Metrics       *observability.TransitionMetrics
	Clock         func() time.Time
	IDGenerator   func() string
	Logger        func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders        repositories.OrderRepository
	audits        repositories.AuditRecordRepository
	notifications NotificationService
	events        OrderEventPublisher
	metrics       *observability.TransitionMetrics
	clock         func() time.Time
	newID         func() string
	logger        func(context.Context, string, map[string]any)
	noteSanitizer *bluemonday.Policy
}

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Audits == nil {
		return nil, errors.New("order service: audit repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &orderService{
		orders:        deps.Orders,
		audits:        deps.Audits,
		notifications: deps.Notifications,
		events:        deps.Events,
		metrics:       deps.Metrics,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:         idGen,
		logger:        logger,
		noteSanitizer: bluemonday.StrictPolicy(),
	}, nil
}

func (s *orderService) CreateOrder(ctx context.Context, principal domain.Principal, cmd CreateOrderCommand) (domain.Order, error) {
	scope := strings.TrimSpace(cmd.ServiceScope)
	if scope == "" {
		return domain.Order{}, fmt.Errorf("%w: service scope is required", ErrInvalidInput)
	}
	if strings.TrimSpace(cmd.CustomerName) == "" {
		return domain.Order{}, fmt.Errorf("%w: customer name is required", ErrInvalidInput)
	}

	switch cmd.Kind {
	case domain.OrderKindRepair:
		if scope != domain.ScopePhone && scope != domain.ScopeLaptop {
			return domain.Order{}, fmt.Errorf("%w: repair scope must be %q or %q", ErrInvalidInput, domain.ScopePhone, domain.ScopeLaptop)
		}
		if strings.TrimSpace(cmd.Device) == "" {
			return domain.Order{}, fmt.Errorf("%w: device is required for repair orders", ErrInvalidInput)
		}
	case domain.OrderKindFood:
		if scope == domain.ScopePhone || scope == domain.ScopeLaptop {
			return domain.Order{}, fmt.Errorf("%w: food scope must be a restaurant id", ErrInvalidInput)
		}
		if strings.TrimSpace(cmd.DeliveryAddress) == "" {
			return domain.Order{}, fmt.Errorf("%w: delivery address is required for food orders", ErrInvalidInput)
		}
	default:
		return domain.Order{}, fmt.Errorf("%w: unknown order kind %q", ErrInvalidInput, cmd.Kind)
	}

	if err := Authorize(principal, ActionCreate, scope).Err(); err != nil {
		return domain.Order{}, err
	}

	owner := principal.ID
	if requested := strings.TrimSpace(cmd.UserID); requested != "" && requested != principal.ID {
		if principal.Role != domain.RoleAdmin {
			return domain.Order{}, Deny(ReasonInsufficientPrivilege)
		}
		owner = requested
	}

	priority := cmd.Priority
	if cmd.Kind == domain.OrderKindRepair {
		if priority == "" {
			priority = domain.PriorityNormal
		}
		if !domain.KnownPriority(priority) {
			return domain.Order{}, fmt.Errorf("%w: unknown priority %q", ErrInvalidInput, priority)
		}
	} else if priority != "" {
		return domain.Order{}, fmt.Errorf("%w: priority applies to repair orders only", ErrInvalidInput)
	}

	now := s.clock()
	order := domain.Order{
		ID:              orderIDPrefix + s.newID(),
		Kind:            cmd.Kind,
		UserID:          owner,
		ServiceScope:    scope,
		Status:          domain.OrderStatusPending,
		Priority:        priority,
		CustomerName:    strings.TrimSpace(cmd.CustomerName),
		CustomerPhone:   strings.TrimSpace(cmd.CustomerPhone),
		Device:          strings.TrimSpace(cmd.Device),
		DeliveryAddress: strings.TrimSpace(cmd.DeliveryAddress),
		EstimatedCost:   cmd.EstimatedCost,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if cmd.EstimatedCompletionDate != nil {
		date := cmd.EstimatedCompletionDate.UTC()
		order.EstimatedCompletionDate = &date
	}

	if err := s.orders.Insert(ctx, order); err != nil {
		return domain.Order{}, s.mapRepositoryError(err)
	}

	s.notify(domain.NotificationEvent{
		ID:           notificationIDPrefix + s.newID(),
		Kind:         domain.NotificationNewOrder,
		OrderID:      order.ID,
		OrderKind:    order.Kind,
		ServiceScope: order.ServiceScope,
		UserID:       order.UserID,
		Message:      fmt.Sprintf("new %s order for %s", order.Kind, order.CustomerName),
		CreatedAt:    now,
	})

	s.publishEvent(ctx, OrderEventMessage{
		EventID:      eventIDPrefix + s.newID(),
		EventType:    orderEventCreated,
		OrderID:      order.ID,
		OrderKind:    string(order.Kind),
		UserID:       order.UserID,
		ServiceScope: order.ServiceScope,
		NewStatus:    string(order.Status),
		ActorID:      principal.ID,
		ActorRole:    string(principal.Role),
		OccurredAt:   now,
	})

	s.logger(ctx, "order.created", map[string]any{
		"order": order.ID,
		"kind":  string(order.Kind),
		"scope": order.ServiceScope,
	})
	return order, nil
}

func (s *orderService) GetOrder(ctx context.Context, principal domain.Principal, orderID string) (domain.Order, error) {
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if err := s.authorizeRead(principal, order); err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

func (s *orderService) ListOrders(ctx context.Context, principal domain.Principal, query ListOrdersQuery) (domain.Page[domain.Order], error) {
	for _, status := range query.Statuses {
		if !ValidStatus(domain.OrderKindRepair, status) && !ValidStatus(domain.OrderKindFood, status) {
			return domain.Page[domain.Order]{}, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
		}
	}
	if query.From != nil && query.To != nil && query.To.Before(*query.From) {
		return domain.Page[domain.Order]{}, fmt.Errorf("%w: empty created range", ErrInvalidInput)
	}

	filter := repositories.OrderListFilter{
		Statuses:  query.Statuses,
		Search:    query.Search,
		CreatedAt: domain.RangeQuery[time.Time]{From: query.From, To: query.To},
		Page:      query.Page,
	}

	scope := strings.TrimSpace(query.Scope)
	switch principal.Role {
	case domain.RoleAdmin:
		if scope != "" {
			filter.Scopes = []string{scope}
		}
	case domain.RoleCustomer:
		filter.UserID = principal.ID
		if scope != "" {
			filter.Scopes = []string{scope}
		}
	case domain.RolePhoneVendor, domain.RoleLaptopVendor, domain.RoleRestaurantAdmin:
		own := principalScope(principal)
		if scope != "" && scope != own {
			return domain.Page[domain.Order]{}, Authorize(principal, ActionRead, scope).Err()
		}
		filter.Scopes = []string{own}
	case domain.RoleDelivery:
		if scope == domain.ScopePhone || scope == domain.ScopeLaptop {
			return domain.Page[domain.Order]{}, Deny(ReasonWrongServiceScope)
		}
		filter.Kind = domain.OrderKindFood
		if scope != "" {
			filter.Scopes = []string{scope}
		}
	default:
		return domain.Page[domain.Order]{}, Deny(ReasonInsufficientPrivilege)
	}

	page, err := s.orders.List(ctx, filter)
	if err != nil {
		return domain.Page[domain.Order]{}, s.mapRepositoryError(err)
	}
	return page, nil
}

func (s *orderService) ListOrderHistory(ctx context.Context, principal domain.Principal, orderID string, page domain.ListQuery) (domain.Page[domain.AuditRecord], error) {
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return domain.Page[domain.AuditRecord]{}, err
	}
	if err := s.authorizeRead(principal, order); err != nil {
		return domain.Page[domain.AuditRecord]{}, err
	}

	records, err := s.audits.ListByOrder(ctx, order.ID, page)
	if err != nil {
		return domain.Page[domain.AuditRecord]{}, s.mapRepositoryError(err)
	}
	return records, nil
}

func (s *orderService) UpdateOrder(ctx context.Context, principal domain.Principal, orderID string, req TransitionRequest) (domain.Order, error) {
	if req.Status == nil && req.Priority == nil {
		return domain.Order{}, fmt.Errorf("%w: a status or priority change is required", ErrInvalidInput)
	}
	if len(req.Note) > maxNoteLength {
		return domain.Order{}, fmt.Errorf("%w: note exceeds %d characters", ErrInvalidInput, maxNoteLength)
	}

	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		s.recordRejected(ctx, "", err)
		return domain.Order{}, err
	}

	updated, err := s.applyUpdate(ctx, principal, order, req)
	if err != nil {
		s.recordRejected(ctx, string(order.Kind), err)
		return domain.Order{}, err
	}
	return updated, nil
}

func (s *orderService) BulkUpdateStatus(ctx context.Context, principal domain.Principal, orderIDs []string, status domain.OrderStatus) (BulkResult, error) {
	if len(orderIDs) == 0 {
		return BulkResult{}, fmt.Errorf("%w: order_ids must not be empty", ErrInvalidInput)
	}
	if len(orderIDs) > maxBulkOrderIDs {
		return BulkResult{}, fmt.Errorf("%w: at most %d order ids per request", ErrInvalidInput, maxBulkOrderIDs)
	}
	if status == "" {
		return BulkResult{}, fmt.Errorf("%w: status is required", ErrInvalidInput)
	}

	result := BulkResult{Succeeded: []string{}, Failed: []BulkFailure{}}
	requested := status

	for _, rawID := range orderIDs {
		orderID := strings.TrimSpace(rawID)
		if orderID == "" {
			result.Failed = append(result.Failed, BulkFailure{OrderID: rawID, Reason: bulkReasonInvalid})
			continue
		}

		order, err := s.loadOrder(ctx, orderID)
		if err == nil {
			_, err = s.applyUpdate(ctx, principal, order, TransitionRequest{Status: &requested})
		}
		if err != nil {
			s.recordRejected(ctx, string(order.Kind), err)
			result.Failed = append(result.Failed, BulkFailure{OrderID: orderID, Reason: failureReason(err)})
			continue
		}
		result.Succeeded = append(result.Succeeded, orderID)
	}

	s.logger(ctx, "order.bulk_status", map[string]any{
		"requested": len(orderIDs),
		"succeeded": len(result.Succeeded),
		"failed":    len(result.Failed),
	})
	return result, nil
}

// applyUpdate runs the shared mutation pipeline: authorize, validate against
// the state machine, commit transactionally, then emit events. Nothing is
// written when any step rejects.
func (s *orderService) applyUpdate(ctx context.Context, principal domain.Principal, order domain.Order, req TransitionRequest) (domain.Order, error) {
	if err := Authorize(principal, ActionUpdate, order.ServiceScope).Err(); err != nil {
		return domain.Order{}, err
	}

	currentStatus := order.Status
	targetStatus := currentStatus
	if req.Status != nil {
		targetStatus = *req.Status
		if !ValidStatus(order.Kind, targetStatus) {
			return domain.Order{}, fmt.Errorf("%w: status %q is not part of the %s lifecycle", ErrInvalidInput, targetStatus, order.Kind)
		}
	}

	effects, err := Transition(order.Kind, currentStatus, targetStatus, principal.Role)
	if err != nil {
		return domain.Order{}, err
	}

	statusChanged := !effects.NoOp && req.Status != nil

	var oldPriority, newPriority *domain.Priority
	if req.Priority != nil {
		if err := ValidatePriorityChange(order.Kind, *req.Priority); err != nil {
			return domain.Order{}, err
		}
		if *req.Priority != order.Priority {
			previous := order.Priority
			oldPriority = &previous
			newPriority = req.Priority
		}
	}

	// Accepted no-op: same status, same priority. Nothing is written, so
	// cost riders on the request do not land either.
	if !statusChanged && newPriority == nil {
		return order, nil
	}

	now := s.clock()
	audit := domain.AuditRecord{
		ID:          auditIDPrefix + s.newID(),
		OrderID:     order.ID,
		OldStatus:   currentStatus,
		NewStatus:   targetStatus,
		OldPriority: oldPriority,
		NewPriority: newPriority,
		Note:        s.sanitizeNote(req.Note),
		ChangedBy:   principal.ID,
		CreatedAt:   now,
	}

	mutation := repositories.TransitionMutation{
		ExpectedStatus:          currentStatus,
		NewStatus:               targetStatus,
		NewPriority:             newPriority,
		ActualCost:              req.ActualCost,
		EstimatedCost:           req.EstimatedCost,
		EstimatedCompletionDate: req.EstimatedCompletionDate,
		UpdatedAt:               now,
		Audit:                   audit,
	}
	if statusChanged && effects.SetsCompletedAt {
		completedAt := now
		mutation.SetCompletedAt = &completedAt
	}

	updated, err := s.orders.ApplyTransition(ctx, order.ID, mutation)
	if err != nil {
		return domain.Order{}, s.mapRepositoryError(err)
	}

	s.emitUpdateSignals(ctx, principal, order, updated, audit, statusChanged, newPriority != nil, now)
	return updated, nil
}

func (s *orderService) emitUpdateSignals(ctx context.Context, principal domain.Principal, previous, updated domain.Order, audit domain.AuditRecord, statusChanged, priorityChanged bool, now time.Time) {
	if s.metrics != nil {
		s.metrics.RecordAccepted(ctx, string(updated.Kind), string(updated.Status))
	}

	if statusChanged {
		s.notify(domain.NotificationEvent{
			ID:           notificationIDPrefix + s.newID(),
			Kind:         domain.NotificationStatusChange,
			OrderID:      updated.ID,
			OrderKind:    updated.Kind,
			ServiceScope: updated.ServiceScope,
			UserID:       updated.UserID,
			Message:      fmt.Sprintf("order %s moved %s -> %s", updated.ID, previous.Status, updated.Status),
			CreatedAt:    now,
		})
	}
	if priorityChanged {
		s.notify(domain.NotificationEvent{
			ID:           notificationIDPrefix + s.newID(),
			Kind:         domain.NotificationPriorityChange,
			OrderID:      updated.ID,
			OrderKind:    updated.Kind,
			ServiceScope: updated.ServiceScope,
			UserID:       updated.UserID,
			Message:      fmt.Sprintf("order %s priority set to %s", updated.ID, updated.Priority),
			CreatedAt:    now,
		})
	}

	eventType := orderEventStatusChanged
	if !statusChanged {
		eventType = orderEventPriorityChanged
	}
	message := OrderEventMessage{
		EventID:      eventIDPrefix + s.newID(),
		EventType:    eventType,
		OrderID:      updated.ID,
		OrderKind:    string(updated.Kind),
		UserID:       updated.UserID,
		ServiceScope: updated.ServiceScope,
		OldStatus:    string(audit.OldStatus),
		NewStatus:    string(audit.NewStatus),
		ActorID:      principal.ID,
		ActorRole:    string(principal.Role),
		OccurredAt:   now,
	}
	if audit.OldPriority != nil {
		message.OldPriority = string(*audit.OldPriority)
	}
	if audit.NewPriority != nil {
		message.NewPriority = string(*audit.NewPriority)
	}
	s.publishEvent(ctx, message)
}

func (s *orderService) authorizeRead(principal domain.Principal, order domain.Order) error {
	if principal.Role == domain.RoleCustomer {
		if order.UserID != principal.ID {
			return Deny(ReasonInsufficientPrivilege)
		}
		return nil
	}
	return Authorize(principal, ActionRead, order.ServiceScope).Err()
}

func (s *orderService) loadOrder(ctx context.Context, orderID string) (domain.Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Order{}, fmt.Errorf("%w: order id is required", ErrInvalidInput)
	}
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return domain.Order{}, s.mapRepositoryError(err)
	}
	return order, nil
}

func (s *orderService) sanitizeNote(note string) string {
	note = strings.TrimSpace(note)
	if note == "" {
		return ""
	}
	return strings.TrimSpace(s.noteSanitizer.Sanitize(note))
}

func (s *orderService) notify(event domain.NotificationEvent) {
	if s.notifications == nil {
		return
	}
	s.notifications.Publish(event)
}

func (s *orderService) publishEvent(ctx context.Context, message OrderEventMessage) {
	if s.events == nil {
		return
	}
	if _, err := s.events.PublishOrderEvent(ctx, message); err != nil {
		s.logger(ctx, "order.event.publish.failed", map[string]any{
			"type":  message.EventType,
			"order": message.OrderID,
			"error": err.Error(),
		})
	}
}

func (s *orderService) recordRejected(ctx context.Context, kind string, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordRejected(ctx, kind, failureReason(err))
}

func (s *orderService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
	}
	return err
}

func failureReason(err error) string {
	var permErr *PermissionError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &permErr):
		return permErr.Reason
	case errors.Is(err, ErrOrderNotFound):
		return bulkReasonNotFound
	case errors.Is(err, ErrIllegalTransition):
		return bulkReasonIllegalTransition
	case errors.Is(err, ErrConflict):
		return bulkReasonConflict
	case errors.Is(err, ErrStorageUnavailable):
		return bulkReasonStorageUnavailable
	default:
		return bulkReasonInvalid
	}
}
