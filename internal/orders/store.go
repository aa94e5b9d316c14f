package orders

import (
	"context"
	"time"
)

// Tx is the unit-of-work boundary handed to the ledger and the state machine.
// Nothing written through a Tx is visible to others until InTx commits; any error
// returned from the InTx callback discards every write.
type Tx interface {
	// Guarded stock mutations. ok=false means the guard (available >= qty or
	// reserved >= qty) rejected the update or the product does not exist.
	ReserveStock(ctx context.Context, productID string, qty int) (ok bool, err error)
	ReleaseStock(ctx context.Context, productID string, qty int) (ok bool, err error)
	CommitStock(ctx context.Context, productID string, qty int) (ok bool, err error)

	GetProduct(ctx context.Context, productID string) (*Product, error)

	LockCart(ctx context.Context, userID string) ([]CartItem, error)
	ClearCart(ctx context.Context, userID string) error

	InsertOrder(ctx context.Context, o *Order) error
	// LockOrder loads an order and holds it against concurrent transitions until the tx ends.
	LockOrder(ctx context.Context, orderID string) (*Order, error)
	// SetOrderStatus is a compare-and-set on status; ok=false when the order is not in from.
	SetOrderStatus(ctx context.Context, orderID string, from, to Status, at time.Time) (ok bool, err error)
	InsertPayment(ctx context.Context, p *Payment) error
}

type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error

	GetOrder(ctx context.Context, orderID string) (*Order, error)
	ListOrders(ctx context.Context, f ListFilter) ([]Order, int, error)
	// ListExpiredPending returns ids of PENDING_PAYMENT orders created at or before cutoff, oldest first.
	ListExpiredPending(ctx context.Context, cutoff time.Time, limit int) ([]string, error)
	GetPayment(ctx context.Context, orderID string) (*Payment, error)

	CreateProduct(ctx context.Context, p *Product) error
	GetProduct(ctx context.Context, productID string) (*Product, error)
	ListProducts(ctx context.Context) ([]Product, error)
	Restock(ctx context.Context, productID string, qty int) (*Product, error)

	GetCart(ctx context.Context, userID string) (Cart, error)
	AddCartItem(ctx context.Context, userID, productID string, qty int) error
	RemoveCartItem(ctx context.Context, userID, productID string) (bool, error)
}
