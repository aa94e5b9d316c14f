package orders

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// Ledger is the only code that moves stock between available and reserved.
// Every call runs inside the caller's transaction.
type Ledger struct {
	log *zap.Logger
}

func NewLedger(log *zap.Logger) *Ledger {
	if log == nil {
		log = zap.NewNop()
	}
	return &Ledger{log: log}
}

// Reserve: available -= qty, reserved += qty, jika stok cukup.
func (l *Ledger) Reserve(ctx context.Context, tx Tx, productID string, qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	ok, err := tx.ReserveStock(ctx, productID, qty)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	p, err := tx.GetProduct(ctx, productID)
	if err != nil {
		return err
	}
	return &StockError{ProductID: productID, Name: p.Name, Requested: qty, Available: p.AvailableStock}
}

// Release: reserved -= qty, available += qty.
func (l *Ledger) Release(ctx context.Context, tx Tx, productID string, qty int) error {
	return l.drain(ctx, tx, "release", productID, qty, tx.ReleaseStock)
}

// Commit: reserved -= qty; the stock leaves the ledger for good.
func (l *Ledger) Commit(ctx context.Context, tx Tx, productID string, qty int) error {
	return l.drain(ctx, tx, "commit", productID, qty, tx.CommitStock)
}

func (l *Ledger) drain(ctx context.Context, tx Tx, op, productID string, qty int,
	apply func(context.Context, string, int) (bool, error)) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	ok, err := apply(ctx, productID, qty)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	ie := &InvariantError{ProductID: productID, Op: op, Quantity: qty}
	if p, err := tx.GetProduct(ctx, productID); err == nil {
		ie.Reserved = p.ReservedStock
	} else if !errors.Is(err, ErrProductNotFound) {
		return err
	}
	l.log.Error("ledger invariant violation",
		zap.String("op", op),
		zap.String("product_id", productID),
		zap.Int("qty", qty),
		zap.Int("reserved", ie.Reserved),
	)
	return ie
}
