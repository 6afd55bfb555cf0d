package services

import (
	domain "github.com/campusdesk/api/internal/domain"
)

// Action enumerates the operations the authorization policy rules on.
type Action string

const (
	ActionRead   Action = "read"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
)

// Decision is the outcome of a policy evaluation. Reason is set only on
// denials and is one of the PermissionError reason codes.
type Decision struct {
	Allowed bool
	Reason  string
}

func allow() Decision             { return Decision{Allowed: true} }
func deny(reason string) Decision { return Decision{Reason: reason} }

// Err converts a denial into its PermissionError; nil when allowed.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return Deny(d.Reason)
}

// Authorize decides whether the principal may perform the action on orders in
// the given service scope. The function is pure and total: every (role,
// action, scope) combination yields a decision, never a panic or an error.
//
// The restaurant mapping arrives inside the principal, so no I/O happens here.
// Customer ownership of individual orders is enforced by the order service
// against order.UserID; this policy only rules on the scope partition.
func Authorize(principal domain.Principal, action Action, scope string) Decision {
	switch principal.Role {
	case domain.RoleAdmin:
		return allow()

	case domain.RolePhoneVendor:
		if scope == domain.ScopePhone {
			return allow()
		}
		return deny(ReasonWrongServiceScope)

	case domain.RoleLaptopVendor:
		if scope == domain.ScopeLaptop {
			return allow()
		}
		return deny(ReasonWrongServiceScope)

	case domain.RoleRestaurantAdmin:
		if principal.RestaurantID != "" && scope == principal.RestaurantID {
			return allow()
		}
		return deny(ReasonNotYourRestaurant)

	case domain.RoleDelivery:
		// Couriers work food orders only; repair scopes are off limits and
		// they never create orders.
		if action == ActionCreate {
			return deny(ReasonInsufficientPrivilege)
		}
		if scope == domain.ScopePhone || scope == domain.ScopeLaptop {
			return deny(ReasonWrongServiceScope)
		}
		return allow()

	case domain.RoleCustomer:
		switch action {
		case ActionRead, ActionCreate:
			return allow()
		default:
			return deny(ReasonInsufficientPrivilege)
		}

	default:
		return deny(ReasonInsufficientPrivilege)
	}
}

// principalScope names the single partition a scoped operator works in, or
// empty for roles without one.
func principalScope(principal domain.Principal) string {
	switch principal.Role {
	case domain.RolePhoneVendor:
		return domain.ScopePhone
	case domain.RoleLaptopVendor:
		return domain.ScopeLaptop
	case domain.RoleRestaurantAdmin:
		return principal.RestaurantID
	default:
		return ""
	}
}
