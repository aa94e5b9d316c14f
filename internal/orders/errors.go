package orders

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyCart          = errors.New("cart is empty")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrProductNotFound    = errors.New("product not found")
	ErrOrderNotFound      = errors.New("order not found")
	ErrNotOwner           = errors.New("order belongs to another user")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrNotPending         = errors.New("order is no longer pending payment")
	ErrInvariantViolation = errors.New("stock invariant violation")
	ErrTxConflict         = errors.New("transaction conflict")
	ErrInvalidQuantity    = errors.New("quantity must be > 0")
	ErrInvalidStatus      = errors.New("unknown order status")
	ErrInvalidProduct     = errors.New("invalid product")
)

// StockError names the product that could not be reserved.
type StockError struct {
	ProductID string
	Name      string
	Requested int
	Available int
}

func (e *StockError) Error() string {
	label := e.ProductID
	if e.Name != "" {
		label = fmt.Sprintf("%s (%s)", e.Name, e.ProductID)
	}
	return fmt.Sprintf("not enough available stock for %s: requested %d, available %d", label, e.Requested, e.Available)
}

func (e *StockError) Unwrap() error { return ErrInsufficientStock }

type TransitionError struct {
	Current   Status
	Attempted Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot move order to %s: current status is %s", e.Attempted, e.Current)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// InvariantError reports a ledger mutation that would drive a counter negative.
type InvariantError struct {
	ProductID string
	Op        string
	Quantity  int
	Reserved  int
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("%s %d of product %s would drive reserved stock negative (reserved=%d)", e.Op, e.Quantity, e.ProductID, e.Reserved)
}

func (e *InvariantError) Unwrap() error { return ErrInvariantViolation }
