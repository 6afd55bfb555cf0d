package services

import (
	"fmt"

	domain "github.com/campusdesk/api/internal/domain"
)

// Lifecycle edge sets per order kind. A transition is legal iff the requested
// status appears in the current status's edge list.
var repairTransitions = map[domain.OrderStatus][]domain.OrderStatus{
	domain.OrderStatusPending:    {domain.OrderStatusInProgress, domain.OrderStatusCancelled},
	domain.OrderStatusInProgress: {domain.OrderStatusCompleted, domain.OrderStatusCancelled},
}

var foodTransitions = map[domain.OrderStatus][]domain.OrderStatus{
	domain.OrderStatusPending:        {domain.OrderStatusConfirmed, domain.OrderStatusCancelled},
	domain.OrderStatusConfirmed:      {domain.OrderStatusPreparing, domain.OrderStatusCancelled},
	domain.OrderStatusPreparing:      {domain.OrderStatusReady, domain.OrderStatusCancelled},
	domain.OrderStatusReady:          {domain.OrderStatusOutForDelivery, domain.OrderStatusCancelled},
	domain.OrderStatusOutForDelivery: {domain.OrderStatusDelivered, domain.OrderStatusCancelled},
}

// deliveryEdges is the subset of food transitions couriers may drive.
var deliveryEdges = map[domain.OrderStatus]domain.OrderStatus{
	domain.OrderStatusReady:          domain.OrderStatusOutForDelivery,
	domain.OrderStatusOutForDelivery: domain.OrderStatusDelivered,
}

// TransitionEffects describes the side effects an accepted transition carries.
type TransitionEffects struct {
	// NoOp is true when the requested status equals the current one. The
	// request is accepted but nothing is written: no audit record, no
	// timestamp changes, no events.
	NoOp bool
	// SetsCompletedAt is true when the target status stamps CompletedAt.
	SetsCompletedAt bool
}

// Transition validates a requested status change against the lifecycle of the
// order kind and the acting role. It is pure: the caller applies the effects.
func Transition(kind domain.OrderKind, current, requested domain.OrderStatus, role domain.Role) (TransitionEffects, error) {
	if requested == current {
		return TransitionEffects{NoOp: true}, nil
	}

	edges, err := edgesFor(kind)
	if err != nil {
		return TransitionEffects{}, err
	}

	if !legalEdge(edges, current, requested) {
		// Admins may close an order out directly: completion is reachable
		// from any non-terminal status without walking the remaining chain.
		// Everyone else follows the edge list.
		if !(role == domain.RoleAdmin && requested.Completion() && !current.Terminal() && ValidStatus(kind, requested)) {
			return TransitionEffects{}, fmt.Errorf("%w: %s order cannot move %s -> %s", ErrIllegalTransition, kind, current, requested)
		}
	}

	if role == domain.RoleDelivery {
		if target, ok := deliveryEdges[current]; !ok || target != requested {
			return TransitionEffects{}, Deny(ReasonInsufficientPrivilege)
		}
	}

	return TransitionEffects{SetsCompletedAt: requested.Completion()}, nil
}

// ValidStatus reports whether the status belongs to the kind's lifecycle.
func ValidStatus(kind domain.OrderKind, status domain.OrderStatus) bool {
	if status == domain.OrderStatusCancelled {
		return true
	}
	edges, err := edgesFor(kind)
	if err != nil {
		return false
	}
	if _, ok := edges[status]; ok {
		return true
	}
	for _, targets := range edges {
		for _, target := range targets {
			if target == status {
				return true
			}
		}
	}
	return false
}

// ValidatePriorityChange confirms a priority mutation is acceptable for the
// order kind. Priorities rank repair work queues only.
func ValidatePriorityChange(kind domain.OrderKind, priority domain.Priority) error {
	if kind != domain.OrderKindRepair {
		return fmt.Errorf("%w: priority applies to repair orders only", ErrInvalidInput)
	}
	if !domain.KnownPriority(priority) {
		return fmt.Errorf("%w: unknown priority %q", ErrInvalidInput, priority)
	}
	return nil
}

func edgesFor(kind domain.OrderKind) (map[domain.OrderStatus][]domain.OrderStatus, error) {
	switch kind {
	case domain.OrderKindRepair:
		return repairTransitions, nil
	case domain.OrderKindFood:
		return foodTransitions, nil
	default:
		return nil, fmt.Errorf("%w: unknown order kind %q", ErrInvalidInput, kind)
	}
}

func legalEdge(edges map[domain.OrderStatus][]domain.OrderStatus, current, requested domain.OrderStatus) bool {
	for _, target := range edges[current] {
		if target == requested {
			return true
		}
	}
	return false
}
