package domain

import (
	"strings"
	"time"
)

// ListQuery carries limit/offset pagination parameters for repository listings.
type ListQuery struct {
	Limit  int
	Offset int
}

// Page packages list results together with the total number of matching rows.
type Page[T any] struct {
	Items []T
	Total int
}

// RangeQuery represents an inclusive range filter over a comparable field.
type RangeQuery[T comparable] struct {
	From *T
	To   *T
}

// Role enumerates the principal roles recognised by the authorization policy.
type Role string

const (
	// RoleCustomer identifies an end user who owns orders.
	RoleCustomer Role = "customer"
	// RoleAdmin identifies platform operators with unrestricted access.
	RoleAdmin Role = "admin"
	// RolePhoneVendor identifies the phone repair desk staff.
	RolePhoneVendor Role = "phone_vendor"
	// RoleLaptopVendor identifies the laptop repair desk staff.
	RoleLaptopVendor Role = "laptop_vendor"
	// RoleRestaurantAdmin identifies the operator of a single campus restaurant.
	RoleRestaurantAdmin Role = "restaurant_admin"
	// RoleDelivery identifies couriers handling food order handoff.
	RoleDelivery Role = "delivery"
)

// ParseRole normalises a raw role string; unknown values are returned as-is so
// that the policy can deny them explicitly.
func ParseRole(raw string) Role {
	return Role(strings.ToLower(strings.TrimSpace(raw)))
}

// Known reports whether the role is one the platform recognises.
func (r Role) Known() bool {
	switch r {
	case RoleCustomer, RoleAdmin, RolePhoneVendor, RoleLaptopVendor, RoleRestaurantAdmin, RoleDelivery:
		return true
	}
	return false
}

// Account is the authoritative principal record stored alongside orders.
// Role and restaurant assignment live here, never in credential claims.
type Account struct {
	ID           string
	Email        string
	Role         Role
	RestaurantID string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Principal is the per-request identity value object: the account re-read from
// the authoritative store at the time of the privileged action.
type Principal struct {
	ID           string
	Email        string
	Role         Role
	RestaurantID string
}

// Service scopes for repair orders. Food orders use the restaurant id as scope.
const (
	ScopePhone  = "phone"
	ScopeLaptop = "laptop"
)

// OrderKind distinguishes the two order lifecycles.
type OrderKind string

const (
	// OrderKindRepair covers phone and laptop repair intake orders.
	OrderKindRepair OrderKind = "repair"
	// OrderKindFood covers campus restaurant food orders.
	OrderKindFood OrderKind = "food"
)

// OrderStatus enumerates lifecycle states across both order kinds.
type OrderStatus string

const (
	// OrderStatusPending is the initial state for both kinds.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusInProgress indicates a repair is actively being worked on.
	OrderStatusInProgress OrderStatus = "in_progress"
	// OrderStatusCompleted indicates a repair has been finished. Terminal.
	OrderStatusCompleted OrderStatus = "completed"
	// OrderStatusConfirmed indicates the restaurant accepted a food order.
	OrderStatusConfirmed OrderStatus = "confirmed"
	// OrderStatusPreparing indicates the kitchen is preparing the order.
	OrderStatusPreparing OrderStatus = "preparing"
	// OrderStatusReady indicates the order awaits courier pickup.
	OrderStatusReady OrderStatus = "ready"
	// OrderStatusOutForDelivery indicates a courier is delivering the order.
	OrderStatusOutForDelivery OrderStatus = "out_for_delivery"
	// OrderStatusDelivered indicates the food order reached the customer. Terminal.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCancelled indicates the order was abandoned. Terminal.
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Terminal reports whether no further status transition is legal.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusCompleted, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// Completion reports whether the status represents successful completion,
// i.e. the state that stamps CompletedAt.
func (s OrderStatus) Completion() bool {
	return s == OrderStatusCompleted || s == OrderStatusDelivered
}

// Priority ranks repair orders in the vendor work queue.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// KnownPriority reports whether the value is a recognised priority.
func KnownPriority(p Priority) bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Order generalises repair and food orders. ServiceScope identifies the
// resource partition used for authorization: "phone", "laptop", or the id of
// the restaurant the order was placed with.
type Order struct {
	ID           string
	Kind         OrderKind
	UserID       string
	ServiceScope string
	Status       OrderStatus
	Priority     Priority

	CustomerName  string
	CustomerPhone string
	// Device describes the handset or laptop brought in for repair.
	Device string
	// DeliveryAddress is the drop-off location for food orders.
	DeliveryAddress string

	EstimatedCost int64
	ActualCost    int64

	EstimatedCompletionDate *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
	// CompletedAt is non-nil iff Status is completed or delivered. For food
	// orders this doubles as the actual delivery time.
	CompletedAt *time.Time
}

// AuditRecord captures one accepted order transition. Records are append-only
// and are written in the same transaction as the order update they describe.
type AuditRecord struct {
	ID          string
	OrderID     string
	OldStatus   OrderStatus
	NewStatus   OrderStatus
	OldPriority *Priority
	NewPriority *Priority
	Note        string
	ChangedBy   string
	CreatedAt   time.Time
}

// NotificationKind classifies feed events.
type NotificationKind string

const (
	NotificationNewOrder       NotificationKind = "new_order"
	NotificationStatusChange   NotificationKind = "status_change"
	NotificationPriorityChange NotificationKind = "priority_change"
)

// NotificationEvent is a best-effort feed entry for connected operator
// sessions. The audit trail, not the feed, is the durable record.
type NotificationEvent struct {
	ID           string
	Kind         NotificationKind
	OrderID      string
	OrderKind    OrderKind
	ServiceScope string
	// UserID is the owner of the order the event describes, used to scope
	// customer feed visibility.
	UserID    string
	Message   string
	CreatedAt time.Time
	Read      bool
}
