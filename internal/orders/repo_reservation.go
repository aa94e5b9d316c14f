package orders

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
)

type pgTx struct{ tx pgx.Tx }

// Stock mutations are single guarded UPDATEs: the row lock and the check happen in one
// statement, so a concurrent reserve waits and then re-evaluates the guard.

func (t *pgTx) ReserveStock(ctx context.Context, productID string, qty int) (bool, error) {
	ct, err := t.tx.Exec(ctx, `
		UPDATE products
		SET available_stock = available_stock - $2, reserved_stock = reserved_stock + $2, updated_at = now()
		WHERE id=$1 AND available_stock >= $2`, productID, qty)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

func (t *pgTx) ReleaseStock(ctx context.Context, productID string, qty int) (bool, error) {
	ct, err := t.tx.Exec(ctx, `
		UPDATE products
		SET reserved_stock = reserved_stock - $2, available_stock = available_stock + $2, updated_at = now()
		WHERE id=$1 AND reserved_stock >= $2`, productID, qty)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

func (t *pgTx) CommitStock(ctx context.Context, productID string, qty int) (bool, error) {
	ct, err := t.tx.Exec(ctx, `
		UPDATE products
		SET reserved_stock = reserved_stock - $2, updated_at = now()
		WHERE id=$1 AND reserved_stock >= $2`, productID, qty)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

func (t *pgTx) GetProduct(ctx context.Context, productID string) (*Product, error) {
	return getProduct(ctx, t.tx, productID)
}

// LockCart locks the cart header row so two checkouts of one cart serialize.
func (t *pgTx) LockCart(ctx context.Context, userID string) ([]CartItem, error) {
	var one int
	err := t.tx.QueryRow(ctx, `SELECT 1 FROM carts WHERE user_id=$1 FOR UPDATE`, userID).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rows, err := t.tx.Query(ctx, `
		SELECT product_id, quantity FROM cart_items
		WHERE user_id=$1 ORDER BY added_at, product_id`, userID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanCartItem)
}

func (t *pgTx) ClearCart(ctx context.Context, userID string) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM cart_items WHERE user_id=$1`, userID); err != nil {
		return err
	}
	_, err := t.tx.Exec(ctx, `UPDATE carts SET updated_at = now() WHERE user_id=$1`, userID)
	return err
}

func (t *pgTx) InsertOrder(ctx context.Context, o *Order) error {
	if _, err := t.tx.Exec(ctx, `
		INSERT INTO orders(id, user_id, status, total_cents, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		o.ID, o.UserID, string(o.Status), o.TotalCents, o.CreatedAt, o.UpdatedAt); err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for i, it := range o.Items {
		batch.Queue(`
			INSERT INTO order_items(order_id, line_no, product_id, quantity, price_at_purchase_cents)
			VALUES ($1,$2,$3,$4,$5)`, o.ID, i+1, it.ProductID, it.Quantity, it.PriceAtPurchaseCents)
	}
	return t.tx.SendBatch(ctx, batch).Close()
}

func (t *pgTx) LockOrder(ctx context.Context, orderID string) (*Order, error) {
	return getOrder(ctx, t.tx, `SELECT `+orderColumns+` FROM orders WHERE id=$1 FOR UPDATE`, orderID)
}

func (t *pgTx) SetOrderStatus(ctx context.Context, orderID string, from, to Status, at time.Time) (bool, error) {
	ct, err := t.tx.Exec(ctx, `
		UPDATE orders SET status=$3, updated_at=$4
		WHERE id=$1 AND status=$2`, orderID, string(from), string(to), at)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

func (t *pgTx) InsertPayment(ctx context.Context, p *Payment) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO payments(id, order_id, transaction_id, amount_cents, status, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		p.ID, p.OrderID, p.TransactionID, p.AmountCents, string(p.Status), p.CreatedAt)
	return err
}
