package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/campusdesk/api/internal/domain"
)

func TestUpsertAccountAdminProvisionsRecord(t *testing.T) {
	accounts := &stubAccountRepository{}
	svc, err := NewAccountService(accounts)
	if err != nil {
		t.Fatalf("new account service: %v", err)
	}

	admin := domain.Principal{ID: "acct-adm", Role: domain.RoleAdmin}
	account, err := svc.UpsertAccount(context.Background(), admin, UpsertAccountCommand{
		AccountID: "acct-7",
		Email:     "runner@example.edu",
		Role:      domain.RoleDelivery,
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if account.ID != "acct-7" || account.Role != domain.RoleDelivery {
		t.Fatalf("unexpected account %+v", account)
	}
	stored, ok := accounts.accounts["acct-7"]
	if !ok {
		t.Fatal("account was not written")
	}
	if stored.Email != "runner@example.edu" {
		t.Fatalf("unexpected stored email %q", stored.Email)
	}
}

func TestUpsertAccountPreservesCreationTime(t *testing.T) {
	created := time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC)
	accounts := &stubAccountRepository{accounts: map[string]domain.Account{
		"acct-7": {ID: "acct-7", Role: domain.RoleCustomer, CreatedAt: created},
	}}
	svc, err := NewAccountService(accounts)
	if err != nil {
		t.Fatalf("new account service: %v", err)
	}

	admin := domain.Principal{ID: "acct-adm", Role: domain.RoleAdmin}
	_, err = svc.UpsertAccount(context.Background(), admin, UpsertAccountCommand{
		AccountID: "acct-7",
		Role:      domain.RolePhoneVendor,
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	stored := accounts.accounts["acct-7"]
	if stored.Role != domain.RolePhoneVendor {
		t.Fatalf("role not updated: %+v", stored)
	}
	if !stored.CreatedAt.Equal(created) {
		t.Fatalf("creation time not preserved: %v", stored.CreatedAt)
	}
}

func TestUpsertAccountNonAdminDenied(t *testing.T) {
	svc, err := NewAccountService(&stubAccountRepository{})
	if err != nil {
		t.Fatalf("new account service: %v", err)
	}

	vendor := domain.Principal{ID: "acct-v", Role: domain.RolePhoneVendor}
	_, err = svc.UpsertAccount(context.Background(), vendor, UpsertAccountCommand{
		AccountID: "acct-7",
		Role:      domain.RoleCustomer,
	})
	var permErr *PermissionError
	if !errors.As(err, &permErr) || permErr.Reason != ReasonInsufficientPrivilege {
		t.Fatalf("expected insufficient_privilege denial, got %v", err)
	}
}

func TestUpsertAccountValidation(t *testing.T) {
	svc, err := NewAccountService(&stubAccountRepository{})
	if err != nil {
		t.Fatalf("new account service: %v", err)
	}
	admin := domain.Principal{ID: "acct-adm", Role: domain.RoleAdmin}

	cases := []struct {
		name string
		cmd  UpsertAccountCommand
	}{
		{name: "missing account id", cmd: UpsertAccountCommand{Role: domain.RoleCustomer}},
		{name: "unknown role", cmd: UpsertAccountCommand{AccountID: "acct-7", Role: domain.Role("superuser")}},
		{name: "restaurant admin without restaurant", cmd: UpsertAccountCommand{AccountID: "acct-7", Role: domain.RoleRestaurantAdmin}},
		{name: "restaurant id on non restaurant role", cmd: UpsertAccountCommand{AccountID: "acct-7", Role: domain.RoleDelivery, RestaurantID: "rest-1"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.UpsertAccount(context.Background(), admin, tc.cmd)
			if !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("expected invalid input, got %v", err)
			}
		})
	}
}

func TestUpsertAccountStorageUnavailable(t *testing.T) {
	accounts := &stubAccountRepository{err: &stubRepoError{msg: "backend down", unavailable: true}}
	svc, err := NewAccountService(accounts)
	if err != nil {
		t.Fatalf("new account service: %v", err)
	}

	admin := domain.Principal{ID: "acct-adm", Role: domain.RoleAdmin}
	_, err = svc.UpsertAccount(context.Background(), admin, UpsertAccountCommand{
		AccountID: "acct-7",
		Role:      domain.RoleCustomer,
	})
	if !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("expected storage unavailable, got %v", err)
	}
}
