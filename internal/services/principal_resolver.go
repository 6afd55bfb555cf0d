package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	domain "github.com/campusdesk/api/internal/domain"
	"github.com/campusdesk/api/internal/repositories"
)

type accountPrincipalResolver struct {
	accounts repositories.AccountRepository
}

// NewPrincipalResolver builds a resolver backed by the account directory.
func NewPrincipalResolver(accounts repositories.AccountRepository) (PrincipalResolver, error) {
	if accounts == nil {
		return nil, errors.New("principal resolver: account repository is required")
	}
	return &accountPrincipalResolver{accounts: accounts}, nil
}

// Resolve re-reads the account record for the subject. An authenticated
// subject without an account record is denied rather than defaulted.
func (r *accountPrincipalResolver) Resolve(ctx context.Context, uid string) (domain.Principal, error) {
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return domain.Principal{}, ErrUnauthenticated
	}

	account, err := r.accounts.FindByID(ctx, uid)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) {
			switch {
			case repoErr.IsNotFound():
				return domain.Principal{}, Deny(ReasonInsufficientPrivilege)
			case repoErr.IsUnavailable():
				return domain.Principal{}, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
			}
		}
		return domain.Principal{}, err
	}

	return domain.Principal{
		ID:           account.ID,
		Email:        account.Email,
		Role:         account.Role,
		RestaurantID: account.RestaurantID,
	}, nil
}
