package services

import (
	"context"
	"errors"
	"testing"

	domain "github.com/campusdesk/api/internal/domain"
)

type stubAccountRepository struct {
	accounts map[string]domain.Account
	err      error
}

func (r *stubAccountRepository) FindByID(_ context.Context, accountID string) (domain.Account, error) {
	if r.err != nil {
		return domain.Account{}, r.err
	}
	account, ok := r.accounts[accountID]
	if !ok {
		return domain.Account{}, &stubRepoError{msg: "missing", notFound: true}
	}
	return account, nil
}

func (r *stubAccountRepository) Upsert(_ context.Context, account domain.Account) error {
	if r.accounts == nil {
		r.accounts = map[string]domain.Account{}
	}
	r.accounts[account.ID] = account
	return nil
}

func TestPrincipalResolverReadsAuthoritativeRole(t *testing.T) {
	accounts := &stubAccountRepository{accounts: map[string]domain.Account{
		"acct-1": {ID: "acct-1", Email: "owner@example.edu", Role: domain.RoleRestaurantAdmin, RestaurantID: "rest-1"},
	}}
	resolver, err := NewPrincipalResolver(accounts)
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}

	principal, err := resolver.Resolve(context.Background(), "acct-1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if principal.Role != domain.RoleRestaurantAdmin || principal.RestaurantID != "rest-1" {
		t.Fatalf("unexpected principal %+v", principal)
	}
}

func TestPrincipalResolverUnknownAccountDenied(t *testing.T) {
	resolver, err := NewPrincipalResolver(&stubAccountRepository{})
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}

	_, err = resolver.Resolve(context.Background(), "acct-ghost")
	var permErr *PermissionError
	if !errors.As(err, &permErr) {
		t.Fatalf("expected PermissionError, got %v", err)
	}
}

func TestPrincipalResolverEmptySubject(t *testing.T) {
	resolver, err := NewPrincipalResolver(&stubAccountRepository{})
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}

	if _, err := resolver.Resolve(context.Background(), "  "); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestPrincipalResolverStorageUnavailable(t *testing.T) {
	resolver, err := NewPrincipalResolver(&stubAccountRepository{
		err: &stubRepoError{msg: "unavailable", unavailable: true},
	})
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}

	if _, err := resolver.Resolve(context.Background(), "acct-1"); !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
}
