// Package errors holds the application error taxonomy shared by services
// and the HTTP layer.
package errors

import "fmt"

// ErrNotFound is returned when a referenced resource does not exist.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrInvalidOperation is returned on a business-rule violation.
type ErrInvalidOperation struct {
	Message string
}

func (e *ErrInvalidOperation) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "invalid operation"
}

// ErrConflict is returned when concurrent activity invalidated a check the
// caller already made (order-number collision, coupon redemption race).
// Conflicts are retried once at the transaction boundary before surfacing.
type ErrConflict struct {
	Message string
}

func (e *ErrConflict) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "conflict"
}

// ErrUnauthorized propagates authentication failures from collaborator
// surfaces unchanged.
type ErrUnauthorized struct {
	Message string
}

func (e *ErrUnauthorized) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "unauthorized"
}

// ErrInsufficientStock is returned when an out movement would drive the
// on-hand quantity below zero.
type ErrInsufficientStock struct {
	ProductID string
	Required  int
	Available int
}

func (e *ErrInsufficientStock) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: required %d, available %d",
		e.ProductID, e.Required, e.Available)
}

// ErrInvalidStateTransition is returned when an order status transition is
// not allowed by the state machine.
type ErrInvalidStateTransition struct {
	From string
	To   string
}

func (e *ErrInvalidStateTransition) Error() string {
	return fmt.Sprintf("invalid state transition from %s to %s", e.From, e.To)
}
