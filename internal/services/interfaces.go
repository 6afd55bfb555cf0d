package services

import (
	"context"
	"time"

	domain "github.com/campusdesk/api/internal/domain"
)

// PrincipalResolver turns an authenticated subject into the authoritative
// principal by re-reading the account directory. Token claims are never
// trusted for role or restaurant assignment.
type PrincipalResolver interface {
	Resolve(ctx context.Context, uid string) (domain.Principal, error)
}

// CreateOrderCommand carries intake parameters for a new order.
type CreateOrderCommand struct {
	Kind domain.OrderKind
	// ServiceScope is "phone" or "laptop" for repair orders and the
	// restaurant id for food orders.
	ServiceScope string
	// UserID optionally names the owning customer; only admins may set it.
	UserID string

	CustomerName    string
	CustomerPhone   string
	Device          string
	DeliveryAddress string

	Priority                domain.Priority
	EstimatedCost           int64
	EstimatedCompletionDate *time.Time
}

// TransitionRequest carries a single-order mutation. At least one of Status
// and Priority must be set; the cost fields ride along with a transition.
type TransitionRequest struct {
	Status   *domain.OrderStatus
	Priority *domain.Priority
	Note     string

	EstimatedCost           *int64
	ActualCost              *int64
	EstimatedCompletionDate *time.Time
}

// BulkFailure names one order that could not be updated and why. Reason is a
// machine-readable code, e.g. "not_found" or "illegal_transition".
type BulkFailure struct {
	OrderID string `json:"order_id"`
	Reason  string `json:"reason"`
}

// BulkResult reports the outcome of a bulk status update. Both lists are
// always present; the operation as a whole never fails because one id did.
type BulkResult struct {
	Succeeded []string      `json:"succeeded"`
	Failed    []BulkFailure `json:"failed"`
}

// ListOrdersQuery narrows an order listing. Empty fields are unconstrained;
// the service further narrows the result to what the principal may see.
type ListOrdersQuery struct {
	Scope    string
	Statuses []domain.OrderStatus
	Search   string
	From     *time.Time
	To       *time.Time
	Page     domain.ListQuery
}

// OrderService exposes the order lifecycle operations.
type OrderService interface {
	CreateOrder(ctx context.Context, principal domain.Principal, cmd CreateOrderCommand) (domain.Order, error)
	GetOrder(ctx context.Context, principal domain.Principal, orderID string) (domain.Order, error)
	ListOrders(ctx context.Context, principal domain.Principal, query ListOrdersQuery) (domain.Page[domain.Order], error)
	ListOrderHistory(ctx context.Context, principal domain.Principal, orderID string, page domain.ListQuery) (domain.Page[domain.AuditRecord], error)
	UpdateOrder(ctx context.Context, principal domain.Principal, orderID string, req TransitionRequest) (domain.Order, error)
	BulkUpdateStatus(ctx context.Context, principal domain.Principal, orderIDs []string, status domain.OrderStatus) (BulkResult, error)
}

// UpsertAccountCommand carries the directory fields an admin may set when
// provisioning or re-assigning an account.
type UpsertAccountCommand struct {
	AccountID    string
	Email        string
	Role         domain.Role
	RestaurantID string
}

// AccountService provisions account directory records. Only admins may write
// the directory; everyone else reads their own record via the resolver.
type AccountService interface {
	UpsertAccount(ctx context.Context, principal domain.Principal, cmd UpsertAccountCommand) (domain.Account, error)
}

// NotificationService maintains the in-memory operator feed. Best effort: the
// audit trail, not the feed, is the durable record.
type NotificationService interface {
	Publish(event domain.NotificationEvent)
	List(ctx context.Context, principal domain.Principal) []domain.NotificationEvent
	MarkRead(ctx context.Context, principal domain.Principal, eventID string) error
	ClearAll(ctx context.Context, principal domain.Principal) int
	Stop()
}

// OrderEventMessage is the payload published to downstream consumers when an
// order is created or transitioned.
type OrderEventMessage struct {
	EventID      string    `json:"event_id"`
	EventType    string    `json:"event_type"`
	OrderID      string    `json:"order_id"`
	OrderKind    string    `json:"order_kind"`
	UserID       string    `json:"user_id"`
	ServiceScope string    `json:"service_scope"`
	OldStatus    string    `json:"old_status,omitempty"`
	NewStatus    string    `json:"new_status,omitempty"`
	OldPriority  string    `json:"old_priority,omitempty"`
	NewPriority  string    `json:"new_priority,omitempty"`
	ActorID      string    `json:"actor_id"`
	ActorRole    string    `json:"actor_role"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// OrderEventPublisher publishes order domain events for downstream consumers.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, message OrderEventMessage) (string, error)
}
