package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/campusdesk/api/internal/domain"
	"github.com/campusdesk/api/internal/repositories"
)

type accountService struct {
	accounts repositories.AccountRepository
}

// NewAccountService builds the admin-facing directory writer.
func NewAccountService(accounts repositories.AccountRepository) (AccountService, error) {
	if accounts == nil {
		return nil, errors.New("account service: account repository is required")
	}
	return &accountService{accounts: accounts}, nil
}

// UpsertAccount creates or replaces a directory record. The directory is the
// single source of truth for roles, so writes are restricted to admins.
func (s *accountService) UpsertAccount(ctx context.Context, principal domain.Principal, cmd UpsertAccountCommand) (domain.Account, error) {
	if principal.Role != domain.RoleAdmin {
		return domain.Account{}, Deny(ReasonInsufficientPrivilege)
	}

	cmd.AccountID = strings.TrimSpace(cmd.AccountID)
	cmd.Email = strings.TrimSpace(cmd.Email)
	cmd.RestaurantID = strings.TrimSpace(cmd.RestaurantID)

	if cmd.AccountID == "" {
		return domain.Account{}, fmt.Errorf("%w: account id is required", ErrInvalidInput)
	}
	if !cmd.Role.Known() {
		return domain.Account{}, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, cmd.Role)
	}
	if cmd.Role == domain.RoleRestaurantAdmin && cmd.RestaurantID == "" {
		return domain.Account{}, fmt.Errorf("%w: restaurant_admin accounts require a restaurant id", ErrInvalidInput)
	}
	if cmd.Role != domain.RoleRestaurantAdmin && cmd.RestaurantID != "" {
		return domain.Account{}, fmt.Errorf("%w: restaurant id applies to restaurant_admin accounts only", ErrInvalidInput)
	}

	// Preserve the creation time on re-assignment; the repository fills it
	// for brand-new records.
	var createdAt time.Time
	if existing, err := s.accounts.FindByID(ctx, cmd.AccountID); err == nil {
		createdAt = existing.CreatedAt
	} else if mapped := s.mapDirectoryError(err); !errors.Is(mapped, ErrAccountNotFound) {
		return domain.Account{}, mapped
	}

	account := domain.Account{
		ID:           cmd.AccountID,
		Email:        cmd.Email,
		Role:         cmd.Role,
		RestaurantID: cmd.RestaurantID,
		CreatedAt:    createdAt,
	}
	if err := s.accounts.Upsert(ctx, account); err != nil {
		return domain.Account{}, s.mapDirectoryError(err)
	}

	stored, err := s.accounts.FindByID(ctx, cmd.AccountID)
	if err != nil {
		return domain.Account{}, s.mapDirectoryError(err)
	}
	return stored, nil
}

func (s *accountService) mapDirectoryError(err error) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrAccountNotFound, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
	}
	return err
}
