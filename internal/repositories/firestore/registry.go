package firestore

import (
	"context"
	"errors"

	"google.golang.org/api/iterator"

	pfirestore "github.com/campusdesk/api/internal/platform/firestore"
	"github.com/campusdesk/api/internal/repositories"
)

func isIteratorDone(err error) bool {
	return errors.Is(err, iterator.Done)
}

// Registry wires the Firestore-backed repositories behind the repositories.Registry interface.
type Registry struct {
	provider *pfirestore.Provider

	orders   *OrderRepository
	audits   *AuditRecordRepository
	accounts *AccountRepository
	health   repositories.HealthRepository
}

// NewRegistry constructs the repository set around a shared provider.
func NewRegistry(provider *pfirestore.Provider) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("registry requires firestore provider")
	}

	orders, err := NewOrderRepository(provider)
	if err != nil {
		return nil, err
	}
	audits, err := NewAuditRecordRepository(provider)
	if err != nil {
		return nil, err
	}
	accounts, err := NewAccountRepository(provider)
	if err != nil {
		return nil, err
	}

	health, err := repositories.NewDependencyHealthRepository([]repositories.DependencyCheck{
		{
			Name: "firestore",
			Check: func(ctx context.Context) error {
				client, err := provider.Client(ctx)
				if err != nil {
					return err
				}
				// A single-document read keeps the probe cheap while still
				// exercising the connection.
				iter := client.Collections(ctx)
				_, err = iter.Next()
				if err != nil && !isIteratorDone(err) {
					return err
				}
				return nil
			},
		},
	})
	if err != nil {
		return nil, err
	}

	return &Registry{
		provider: provider,
		orders:   orders,
		audits:   audits,
		accounts: accounts,
		health:   health,
	}, nil
}

// Close releases the shared Firestore client.
func (r *Registry) Close(ctx context.Context) error {
	if r == nil || r.provider == nil {
		return nil
	}
	return r.provider.Close(ctx)
}

// Orders returns the order repository.
func (r *Registry) Orders() repositories.OrderRepository { return r.orders }

// AuditRecords returns the audit record reader.
func (r *Registry) AuditRecords() repositories.AuditRecordRepository { return r.audits }

// Accounts returns the principal directory.
func (r *Registry) Accounts() repositories.AccountRepository { return r.accounts }

// Health returns the readiness probe repository.
func (r *Registry) Health() repositories.HealthRepository { return r.health }

var _ repositories.Registry = (*Registry)(nil)
