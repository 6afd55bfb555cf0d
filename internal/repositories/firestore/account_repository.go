package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	domain "github.com/campusdesk/api/internal/domain"
	pfirestore "github.com/campusdesk/api/internal/platform/firestore"
	"github.com/campusdesk/api/internal/repositories"
)

const accountCollection = "accounts"

// AccountRepository is the authoritative principal directory. Roles and
// restaurant assignments are read from here, never from token claims.
type AccountRepository struct {
	base *pfirestore.BaseRepository[accountDocument]
}

// NewAccountRepository constructs a Firestore-backed account repository.
func NewAccountRepository(provider *pfirestore.Provider) (*AccountRepository, error) {
	if provider == nil {
		return nil, errors.New("account repository requires firestore provider")
	}
	return &AccountRepository{
		base: pfirestore.NewBaseRepository[accountDocument](provider, accountCollection, nil, nil),
	}, nil
}

// FindByID loads the account record for an authenticated subject.
func (r *AccountRepository) FindByID(ctx context.Context, accountID string) (domain.Account, error) {
	if r == nil || r.base == nil {
		return domain.Account{}, errors.New("account repository not initialised")
	}
	if strings.TrimSpace(accountID) == "" {
		return domain.Account{}, errors.New("account id is required")
	}

	doc, err := r.base.Get(ctx, accountID)
	if err != nil {
		return domain.Account{}, err
	}

	return domain.Account{
		ID:           doc.ID,
		Email:        doc.Data.Email,
		Role:         domain.ParseRole(doc.Data.Role),
		RestaurantID: doc.Data.RestaurantID,
		CreatedAt:    doc.Data.CreatedAt,
		UpdatedAt:    doc.Data.UpdatedAt,
	}, nil
}

// Upsert writes the account record on behalf of the provisioning endpoint.
func (r *AccountRepository) Upsert(ctx context.Context, account domain.Account) error {
	if r == nil || r.base == nil {
		return errors.New("account repository not initialised")
	}
	if strings.TrimSpace(account.ID) == "" {
		return errors.New("account id is required")
	}

	now := time.Now().UTC()
	doc := accountDocument{
		Email:        strings.ToLower(strings.TrimSpace(account.Email)),
		Role:         string(account.Role),
		RestaurantID: strings.TrimSpace(account.RestaurantID),
		CreatedAt:    account.CreatedAt,
		UpdatedAt:    now,
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}

	_, err := r.base.Set(ctx, account.ID, doc)
	return err
}

type accountDocument struct {
	Email        string    `firestore:"email"`
	Role         string    `firestore:"role"`
	RestaurantID string    `firestore:"restaurantId,omitempty"`
	CreatedAt    time.Time `firestore:"createdAt"`
	UpdatedAt    time.Time `firestore:"updatedAt"`
}

var _ repositories.AccountRepository = (*AccountRepository)(nil)
