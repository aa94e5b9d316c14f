package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore is the Postgres-backed Store. Transactions run at READ COMMITTED; stock rows are
// protected by guarded single-statement updates and orders by SELECT ... FOR UPDATE.
type PGStore struct{ DB *pgxpool.Pool }

func NewPGStore(db *pgxpool.Pool) *PGStore { return &PGStore{DB: db} }

const orderColumns = `id, user_id, status, total_cents, created_at, updated_at`
const productColumns = `id, name, description, price_cents, available_stock, reserved_stock, created_at, updated_at`

// querier is the subset shared by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *PGStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return mapPgErr(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&pgTx{tx: tx}); err != nil {
		return mapPgErr(err)
	}
	return mapPgErr(tx.Commit(ctx))
}

func (s *PGStore) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	return getOrder(ctx, s.DB, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, orderID)
}

func (s *PGStore) ListOrders(ctx context.Context, f ListFilter) ([]Order, int, error) {
	f = f.normalized()

	var (
		where []string
		args  []any
	)
	if f.UserID != "" {
		args = append(args, f.UserID)
		where = append(where, fmt.Sprintf("user_id=$%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		where = append(where, fmt.Sprintf("status=$%d", len(args)))
	}
	cond := ""
	if len(where) > 0 {
		cond = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.DB.QueryRow(ctx, `SELECT COUNT(*) FROM orders`+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []Order{}, 0, nil
	}

	args = append(args, f.Limit, f.offset())
	rows, err := s.DB.Query(ctx, fmt.Sprintf(`SELECT %s FROM orders%s ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`,
		orderColumns, cond, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	list, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, 0, err
	}
	if err := loadItems(ctx, s.DB, list); err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

func (s *PGStore) ListExpiredPending(ctx context.Context, cutoff time.Time, limit int) ([]string, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT id FROM orders
		WHERE status = 'PENDING_PAYMENT' AND created_at <= $1
		ORDER BY created_at
		LIMIT $2`, cutoff, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (s *PGStore) GetPayment(ctx context.Context, orderID string) (*Payment, error) {
	var p Payment
	err := s.DB.QueryRow(ctx, `
		SELECT id, order_id, transaction_id, amount_cents, status, created_at
		FROM payments WHERE order_id=$1`, orderID).
		Scan(&p.ID, &p.OrderID, &p.TransactionID, &p.AmountCents, &p.Status, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ---- catalog ----

func (s *PGStore) CreateProduct(ctx context.Context, p *Product) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO products(id, name, description, price_cents, available_stock, reserved_stock, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,0,$6,$7)`,
		p.ID, p.Name, p.Description, p.PriceCents, p.AvailableStock, p.CreatedAt, p.UpdatedAt)
	return mapPgErr(err)
}

func (s *PGStore) GetProduct(ctx context.Context, productID string) (*Product, error) {
	return getProduct(ctx, s.DB, productID)
}

func (s *PGStore) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := s.DB.Query(ctx, `SELECT `+productColumns+` FROM products ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanProduct)
}

func (s *PGStore) Restock(ctx context.Context, productID string, qty int) (*Product, error) {
	rows, err := s.DB.Query(ctx, `
		UPDATE products SET available_stock = available_stock + $2, updated_at = now()
		WHERE id=$1
		RETURNING `+productColumns, productID, qty)
	if err != nil {
		return nil, err
	}
	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, mapPgErr(err)
	}
	return &p, nil
}

// ---- cart ----

func (s *PGStore) GetCart(ctx context.Context, userID string) (Cart, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT product_id, quantity FROM cart_items
		WHERE user_id=$1 ORDER BY added_at, product_id`, userID)
	if err != nil {
		return Cart{}, err
	}
	items, err := pgx.CollectRows(rows, scanCartItem)
	if err != nil {
		return Cart{}, err
	}
	return Cart{UserID: userID, Items: items}, nil
}

// AddCartItem adds qty to the line, creating the cart and the line as needed.
func (s *PGStore) AddCartItem(ctx context.Context, userID, productID string, qty int) error {
	return s.InTx(ctx, func(t Tx) error {
		tx := t.(*pgTx).tx
		if _, err := tx.Exec(ctx, `
			INSERT INTO carts(user_id, updated_at) VALUES ($1, now())
			ON CONFLICT (user_id) DO UPDATE SET updated_at = now()`, userID); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO cart_items(user_id, product_id, quantity) VALUES ($1,$2,$3)
			ON CONFLICT (user_id, product_id) DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity`,
			userID, productID, qty)
		return err
	})
}

func (s *PGStore) RemoveCartItem(ctx context.Context, userID, productID string) (bool, error) {
	ct, err := s.DB.Exec(ctx, `DELETE FROM cart_items WHERE user_id=$1 AND product_id=$2`, userID, productID)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

// ---- shared scanning ----

func scanOrder(row pgx.CollectableRow) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.UserID, &o.Status, &o.TotalCents, &o.CreatedAt, &o.UpdatedAt)
	o.CreatedAt, o.UpdatedAt = o.CreatedAt.UTC(), o.UpdatedAt.UTC()
	return o, err
}

func scanProduct(row pgx.CollectableRow) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.PriceCents, &p.AvailableStock, &p.ReservedStock, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func scanCartItem(row pgx.CollectableRow) (CartItem, error) {
	var it CartItem
	err := row.Scan(&it.ProductID, &it.Quantity)
	return it, err
}

func getOrder(ctx context.Context, q querier, sql string, orderID string) (*Order, error) {
	rows, err := q.Query(ctx, sql, orderID)
	if err != nil {
		return nil, err
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	list := []Order{o}
	if err := loadItems(ctx, q, list); err != nil {
		return nil, err
	}
	return &list[0], nil
}

func getProduct(ctx context.Context, q querier, productID string) (*Product, error) {
	rows, err := q.Query(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1`, productID)
	if err != nil {
		return nil, err
	}
	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// loadItems fills Items for every order in list with one query.
func loadItems(ctx context.Context, q querier, list []Order) error {
	if len(list) == 0 {
		return nil
	}
	ids := make([]string, len(list))
	idx := make(map[string]int, len(list))
	for i := range list {
		ids[i] = list[i].ID
		idx[list[i].ID] = i
		list[i].Items = []LineItem{}
	}
	rows, err := q.Query(ctx, `
		SELECT order_id, product_id, quantity, price_at_purchase_cents
		FROM order_items WHERE order_id = ANY($1)
		ORDER BY order_id, line_no`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			orderID string
			it      LineItem
		)
		if err := rows.Scan(&orderID, &it.ProductID, &it.Quantity, &it.PriceAtPurchaseCents); err != nil {
			return err
		}
		i := idx[orderID]
		list[i].Items = append(list[i].Items, it)
	}
	return rows.Err()
}

// mapPgErr folds Postgres failures the service reacts to into domain errors.
func mapPgErr(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case "40001", "40P01": // serialization_failure, deadlock_detected
		return fmt.Errorf("%w: %s", ErrTxConflict, pgErr.Message)
	case "23514": // check_violation
		return fmt.Errorf("%w: %s", ErrInvariantViolation, pgErr.ConstraintName)
	case "23503": // foreign_key_violation
		return fmt.Errorf("%w: %s", ErrProductNotFound, pgErr.ConstraintName)
	}
	return err
}
