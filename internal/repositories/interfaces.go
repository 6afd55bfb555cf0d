package repositories

import (
	"context"
	"time"

	domain "github.com/campusdesk/api/internal/domain"
)

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Orders() OrderRepository
	AuditRecords() AuditRecordRepository
	Accounts() AccountRepository
	Health() HealthRepository
}

// OrderListFilter restricts order listings.
type OrderListFilter struct {
	// Scopes limits results to the given service scopes. Empty means all
	// scopes the caller may see; the service narrows this before calling.
	Scopes []string
	// UserID limits results to orders owned by the given account.
	UserID string
	// Kind limits results to one order kind; empty means both.
	Kind domain.OrderKind
	// Statuses limits results to the given lifecycle states.
	Statuses []domain.OrderStatus
	// Search matches normalised customer name, phone, device and address.
	Search string
	// CreatedAt bounds the order creation time (inclusive).
	CreatedAt domain.RangeQuery[time.Time]

	Page domain.ListQuery
}

// TransitionMutation describes the write half of an accepted transition. The
// repository applies it atomically: the order update and the audit record
// either both land or neither does.
type TransitionMutation struct {
	// ExpectedStatus is the status the caller observed before deciding the
	// transition. A mismatch at commit time aborts with a conflict.
	ExpectedStatus domain.OrderStatus

	NewStatus   domain.OrderStatus
	NewPriority *domain.Priority

	ActualCost              *int64
	EstimatedCost           *int64
	EstimatedCompletionDate *time.Time

	SetCompletedAt   *time.Time
	ClearCompletedAt bool
	UpdatedAt        time.Time

	Audit domain.AuditRecord
}

// OrderRepository persists orders and their transition history.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) error
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	List(ctx context.Context, filter OrderListFilter) (domain.Page[domain.Order], error)
	// ApplyTransition re-reads the order inside a transaction, verifies the
	// expected status still holds, and writes the mutation together with its
	// audit record.
	ApplyTransition(ctx context.Context, orderID string, mutation TransitionMutation) (domain.Order, error)
}

// AuditRecordRepository reads the append-only transition history. Writes
// happen exclusively inside the order transaction.
type AuditRecordRepository interface {
	ListByOrder(ctx context.Context, orderID string, page domain.ListQuery) (domain.Page[domain.AuditRecord], error)
}

// AccountRepository is the principal directory backing identity resolution.
type AccountRepository interface {
	FindByID(ctx context.Context, accountID string) (domain.Account, error)
	Upsert(ctx context.Context, account domain.Account) error
}

// HealthRepository reports persistence backend reachability for readiness checks.
type HealthRepository interface {
	Ping(ctx context.Context) error
}
