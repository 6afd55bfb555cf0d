package services

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput signals the caller provided invalid data.
	ErrInvalidInput = errors.New("orders: invalid input")
	// ErrUnauthenticated indicates the request carried no resolvable identity.
	ErrUnauthenticated = errors.New("orders: unauthenticated")
	// ErrOrderNotFound indicates the order could not be located.
	ErrOrderNotFound = errors.New("orders: not found")
	// ErrNotificationNotFound indicates the feed entry could not be located.
	ErrNotificationNotFound = errors.New("notifications: not found")
	// ErrAccountNotFound indicates the directory record could not be located.
	ErrAccountNotFound = errors.New("accounts: not found")
	// ErrIllegalTransition indicates the requested status change is outside the
	// lifecycle edge set for the order kind.
	ErrIllegalTransition = errors.New("orders: illegal status transition")
	// ErrConflict indicates the order changed concurrently between the
	// decision and the commit.
	ErrConflict = errors.New("orders: conflict")
	// ErrStorageUnavailable indicates the persistence backend could not serve
	// the request. Callers may retry; nothing was committed as far as the
	// service can tell.
	ErrStorageUnavailable = errors.New("orders: storage unavailable")
)

// Denial reason codes carried by PermissionError.
const (
	ReasonInsufficientPrivilege = "insufficient_privilege"
	ReasonWrongServiceScope     = "wrong_service_scope"
	ReasonNotYourRestaurant     = "not_your_restaurant"
)

// PermissionError is a structured authorization denial. The reason code is
// machine-readable and surfaces in the HTTP error envelope.
type PermissionError struct {
	Reason string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("orders: permission denied (%s)", e.Reason)
}

// Deny builds a PermissionError for the given reason code.
func Deny(reason string) *PermissionError {
	if reason == "" {
		reason = ReasonInsufficientPrivilege
	}
	return &PermissionError{Reason: reason}
}
