package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/campusdesk/api/internal/domain"
	pfirestore "github.com/campusdesk/api/internal/platform/firestore"
	"github.com/campusdesk/api/internal/repositories"
)

const auditCollection = "order_audits"

// AuditRecordRepository reads the append-only transition history. The records
// themselves are written inside the order transaction.
type AuditRecordRepository struct {
	base *pfirestore.BaseRepository[auditDocument]
}

// NewAuditRecordRepository constructs a Firestore-backed audit reader.
func NewAuditRecordRepository(provider *pfirestore.Provider) (*AuditRecordRepository, error) {
	if provider == nil {
		return nil, errors.New("audit repository requires firestore provider")
	}
	return &AuditRecordRepository{
		base: pfirestore.NewBaseRepository[auditDocument](provider, auditCollection, nil, nil),
	}, nil
}

// ListByOrder returns the transition history for an order, oldest first.
func (r *AuditRecordRepository) ListByOrder(ctx context.Context, orderID string, page domain.ListQuery) (domain.Page[domain.AuditRecord], error) {
	if r == nil || r.base == nil {
		return domain.Page[domain.AuditRecord]{}, errors.New("audit repository not initialised")
	}
	if strings.TrimSpace(orderID) == "" {
		return domain.Page[domain.AuditRecord]{}, errors.New("order id is required")
	}

	limit := page.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := page.Offset
	if offset < 0 {
		offset = 0
	}

	build := func(q firestore.Query) firestore.Query {
		return q.Where("orderId", "==", orderID)
	}

	total, err := r.base.Count(ctx, build)
	if err != nil {
		return domain.Page[domain.AuditRecord]{}, err
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return build(q).OrderBy("createdAt", firestore.Asc).Offset(offset).Limit(limit)
	})
	if err != nil {
		return domain.Page[domain.AuditRecord]{}, err
	}

	items := make([]domain.AuditRecord, 0, len(docs))
	for _, doc := range docs {
		items = append(items, toDomainAudit(doc.ID, doc.Data))
	}
	return domain.Page[domain.AuditRecord]{Items: items, Total: int(total)}, nil
}

type auditDocument struct {
	OrderID     string    `firestore:"orderId"`
	OldStatus   string    `firestore:"oldStatus"`
	NewStatus   string    `firestore:"newStatus"`
	OldPriority string    `firestore:"oldPriority,omitempty"`
	NewPriority string    `firestore:"newPriority,omitempty"`
	Note        string    `firestore:"note,omitempty"`
	ChangedBy   string    `firestore:"changedBy"`
	CreatedAt   time.Time `firestore:"createdAt"`
}

func fromDomainAudit(record domain.AuditRecord) auditDocument {
	doc := auditDocument{
		OrderID:   strings.TrimSpace(record.OrderID),
		OldStatus: string(record.OldStatus),
		NewStatus: string(record.NewStatus),
		Note:      strings.TrimSpace(record.Note),
		ChangedBy: strings.TrimSpace(record.ChangedBy),
		CreatedAt: record.CreatedAt.UTC(),
	}
	if record.OldPriority != nil {
		doc.OldPriority = string(*record.OldPriority)
	}
	if record.NewPriority != nil {
		doc.NewPriority = string(*record.NewPriority)
	}
	return doc
}

func toDomainAudit(id string, doc auditDocument) domain.AuditRecord {
	record := domain.AuditRecord{
		ID:        id,
		OrderID:   doc.OrderID,
		OldStatus: domain.OrderStatus(doc.OldStatus),
		NewStatus: domain.OrderStatus(doc.NewStatus),
		Note:      doc.Note,
		ChangedBy: doc.ChangedBy,
		CreatedAt: doc.CreatedAt,
	}
	if doc.OldPriority != "" {
		priority := domain.Priority(doc.OldPriority)
		record.OldPriority = &priority
	}
	if doc.NewPriority != "" {
		priority := domain.Priority(doc.NewPriority)
		record.NewPriority = &priority
	}
	return record
}

var _ repositories.AuditRecordRepository = (*AuditRecordRepository)(nil)
