package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/campusdesk/api/internal/domain"
	pfirestore "github.com/campusdesk/api/internal/platform/firestore"
	"github.com/campusdesk/api/internal/platform/textutil"
	"github.com/campusdesk/api/internal/repositories"
)

const orderCollection = "orders"

// OrderRepository persists orders in Firestore. Transition writes and their
// audit records are committed in a single transaction.
type OrderRepository struct {
	base     *pfirestore.BaseRepository[orderDocument]
	audits   *pfirestore.BaseRepository[auditDocument]
	provider *pfirestore.Provider
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	return &OrderRepository{
		base:     pfirestore.NewBaseRepository[orderDocument](provider, orderCollection, nil, nil),
		audits:   pfirestore.NewBaseRepository[auditDocument](provider, auditCollection, nil, nil),
		provider: provider,
	}, nil
}

// Insert creates the order document. The id must not already exist.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	if r == nil || r.base == nil {
		return errors.New("order repository not initialised")
	}
	if strings.TrimSpace(order.ID) == "" {
		return errors.New("order id is required")
	}

	doc := fromDomainOrder(order)
	ref, err := r.base.DocumentRef(ctx, order.ID)
	if err != nil {
		return err
	}
	if _, err := ref.Create(ctx, doc); err != nil {
		return pfirestore.WrapError("orders.insert", err)
	}
	return nil
}

// FindByID loads a single order.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}

	doc, err := r.base.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	return toDomainOrder(doc.ID, doc.Data), nil
}

// List returns the orders matching the filter together with the total count.
func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.Page[domain.Order], error) {
	if r == nil || r.base == nil {
		return domain.Page[domain.Order]{}, errors.New("order repository not initialised")
	}

	limit := filter.Page.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Page.Offset
	if offset < 0 {
		offset = 0
	}

	// Firestore permits a single "in" clause per query; the status set and
	// the free-text search are filtered in memory when they cannot be pushed
	// down.
	statusServerSide := len(filter.Statuses) == 0 || len(filter.Scopes) <= 1
	needsMemoryFilter := strings.TrimSpace(filter.Search) != "" || !statusServerSide

	build := func(q firestore.Query) firestore.Query {
		if filter.UserID != "" {
			q = q.Where("userId", "==", filter.UserID)
		}
		if filter.Kind != "" {
			q = q.Where("kind", "==", string(filter.Kind))
		}
		switch {
		case len(filter.Scopes) == 1:
			q = q.Where("serviceScope", "==", filter.Scopes[0])
		case len(filter.Scopes) > 1:
			q = q.Where("serviceScope", "in", toAnySlice(filter.Scopes))
		}
		if statusServerSide {
			switch {
			case len(filter.Statuses) == 1:
				q = q.Where("status", "==", string(filter.Statuses[0]))
			case len(filter.Statuses) > 1:
				q = q.Where("status", "in", statusesToAny(filter.Statuses))
			}
		}
		if filter.CreatedAt.From != nil {
			q = q.Where("createdAt", ">=", filter.CreatedAt.From.UTC())
		}
		if filter.CreatedAt.To != nil {
			q = q.Where("createdAt", "<=", filter.CreatedAt.To.UTC())
		}
		return q
	}

	if !needsMemoryFilter {
		total, err := r.base.Count(ctx, build)
		if err != nil {
			return domain.Page[domain.Order]{}, err
		}

		docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
			return build(q).OrderBy("createdAt", firestore.Desc).Offset(offset).Limit(limit)
		})
		if err != nil {
			return domain.Page[domain.Order]{}, err
		}

		items := make([]domain.Order, 0, len(docs))
		for _, doc := range docs {
			items = append(items, toDomainOrder(doc.ID, doc.Data))
		}
		return domain.Page[domain.Order]{Items: items, Total: int(total)}, nil
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return build(q).OrderBy("createdAt", firestore.Desc)
	})
	if err != nil {
		return domain.Page[domain.Order]{}, err
	}

	wantStatuses := make(map[domain.OrderStatus]struct{}, len(filter.Statuses))
	for _, s := range filter.Statuses {
		wantStatuses[s] = struct{}{}
	}
	tokens := textutil.SearchTokens(filter.Search)

	matched := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		order := toDomainOrder(doc.ID, doc.Data)
		if len(wantStatuses) > 0 {
			if _, ok := wantStatuses[order.Status]; !ok {
				continue
			}
		}
		if len(tokens) > 0 && !matchesTokens(doc.Data.SearchIndex, tokens) {
			continue
		}
		matched = append(matched, order)
	}

	total := len(matched)
	if offset >= total {
		return domain.Page[domain.Order]{Items: []domain.Order{}, Total: total}, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return domain.Page[domain.Order]{Items: matched[offset:end], Total: total}, nil
}

// ApplyTransition re-reads the order in a transaction, checks the expected
// status and writes the order update together with the audit record.
func (r *OrderRepository) ApplyTransition(ctx context.Context, orderID string, mutation repositories.TransitionMutation) (domain.Order, error) {
	if r == nil || r.base == nil || r.provider == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	if strings.TrimSpace(orderID) == "" {
		return domain.Order{}, errors.New("order id is required")
	}
	if strings.TrimSpace(mutation.Audit.ID) == "" {
		return domain.Order{}, errors.New("audit record id is required")
	}

	var updated orderDocument
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		current, err := r.base.TxGet(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if domain.OrderStatus(current.Data.Status) != mutation.ExpectedStatus {
			return status.Error(codes.Aborted, "order status changed concurrently")
		}

		doc := current.Data
		doc.Status = string(mutation.NewStatus)
		if mutation.NewPriority != nil {
			doc.Priority = string(*mutation.NewPriority)
		}
		if mutation.ActualCost != nil {
			doc.ActualCost = *mutation.ActualCost
		}
		if mutation.EstimatedCost != nil {
			doc.EstimatedCost = *mutation.EstimatedCost
		}
		if mutation.EstimatedCompletionDate != nil {
			date := mutation.EstimatedCompletionDate.UTC()
			doc.EstimatedCompletionDate = &date
		}
		if mutation.SetCompletedAt != nil {
			completedAt := mutation.SetCompletedAt.UTC()
			doc.CompletedAt = &completedAt
		} else if mutation.ClearCompletedAt {
			doc.CompletedAt = nil
		}
		doc.UpdatedAt = mutation.UpdatedAt.UTC()

		if err := r.base.TxSet(ctx, tx, orderID, doc); err != nil {
			return err
		}

		auditRef, err := r.audits.DocumentRef(ctx, mutation.Audit.ID)
		if err != nil {
			return err
		}
		if err := tx.Create(auditRef, fromDomainAudit(mutation.Audit)); err != nil {
			return pfirestore.WrapError("order_audits.append", err)
		}

		updated = doc
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}
	return toDomainOrder(orderID, updated), nil
}

type orderDocument struct {
	Kind                    string     `firestore:"kind"`
	UserID                  string     `firestore:"userId"`
	ServiceScope            string     `firestore:"serviceScope"`
	Status                  string     `firestore:"status"`
	Priority                string     `firestore:"priority,omitempty"`
	CustomerName            string     `firestore:"customerName"`
	CustomerPhone           string     `firestore:"customerPhone,omitempty"`
	Device                  string     `firestore:"device,omitempty"`
	DeliveryAddress         string     `firestore:"deliveryAddress,omitempty"`
	EstimatedCost           int64      `firestore:"estimatedCost"`
	ActualCost              int64      `firestore:"actualCost"`
	EstimatedCompletionDate *time.Time `firestore:"estimatedCompletionDate,omitempty"`
	SearchIndex             []string   `firestore:"searchIndex"`
	CreatedAt               time.Time  `firestore:"createdAt"`
	UpdatedAt               time.Time  `firestore:"updatedAt"`
	CompletedAt             *time.Time `firestore:"completedAt,omitempty"`
}

func fromDomainOrder(order domain.Order) orderDocument {
	doc := orderDocument{
		Kind:            string(order.Kind),
		UserID:          strings.TrimSpace(order.UserID),
		ServiceScope:    strings.TrimSpace(order.ServiceScope),
		Status:          string(order.Status),
		Priority:        string(order.Priority),
		CustomerName:    strings.TrimSpace(order.CustomerName),
		CustomerPhone:   strings.TrimSpace(order.CustomerPhone),
		Device:          strings.TrimSpace(order.Device),
		DeliveryAddress: strings.TrimSpace(order.DeliveryAddress),
		EstimatedCost:   order.EstimatedCost,
		ActualCost:      order.ActualCost,
		SearchIndex:     buildSearchIndex(order),
		CreatedAt:       order.CreatedAt.UTC(),
		UpdatedAt:       order.UpdatedAt.UTC(),
	}
	if order.EstimatedCompletionDate != nil {
		date := order.EstimatedCompletionDate.UTC()
		doc.EstimatedCompletionDate = &date
	}
	if order.CompletedAt != nil {
		completedAt := order.CompletedAt.UTC()
		doc.CompletedAt = &completedAt
	}
	return doc
}

func toDomainOrder(id string, doc orderDocument) domain.Order {
	order := domain.Order{
		ID:              id,
		Kind:            domain.OrderKind(doc.Kind),
		UserID:          doc.UserID,
		ServiceScope:    doc.ServiceScope,
		Status:          domain.OrderStatus(doc.Status),
		Priority:        domain.Priority(doc.Priority),
		CustomerName:    doc.CustomerName,
		CustomerPhone:   doc.CustomerPhone,
		Device:          doc.Device,
		DeliveryAddress: doc.DeliveryAddress,
		EstimatedCost:   doc.EstimatedCost,
		ActualCost:      doc.ActualCost,
		CreatedAt:       doc.CreatedAt,
		UpdatedAt:       doc.UpdatedAt,
	}
	if doc.EstimatedCompletionDate != nil {
		date := *doc.EstimatedCompletionDate
		order.EstimatedCompletionDate = &date
	}
	if doc.CompletedAt != nil {
		completedAt := *doc.CompletedAt
		order.CompletedAt = &completedAt
	}
	return order
}

func buildSearchIndex(order domain.Order) []string {
	seen := make(map[string]struct{})
	var index []string
	for _, source := range []string{order.CustomerName, order.CustomerPhone, order.Device, order.DeliveryAddress} {
		for _, token := range textutil.SearchTokens(source) {
			if _, ok := seen[token]; ok {
				continue
			}
			seen[token] = struct{}{}
			index = append(index, token)
		}
	}
	if index == nil {
		index = []string{}
	}
	return index
}

func matchesTokens(index []string, tokens []string) bool {
	for _, token := range tokens {
		found := false
		for _, indexed := range index {
			if strings.Contains(indexed, token) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func toAnySlice(values []string) []any {
	out := make([]any, 0, len(values))
	for _, v := range values {
		out = append(out, v)
	}
	return out
}

func statusesToAny(statuses []domain.OrderStatus) []any {
	out := make([]any, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, string(s))
	}
	return out
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)
