package orders

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// MemoryStore is a process-local Store for development and tests. Transactions are fully
// serialized: InTx holds the lock, works on a copy of the state and swaps it in only when fn
// succeeds.
type MemoryStore struct {
	mu sync.Mutex
	st memState

	// conflicts makes the next n InTx calls fail with ErrTxConflict before running fn.
	conflicts int
	txCalls   int
}

type memState struct {
	products map[string]Product
	orders   map[string]Order
	payments map[string]Payment
	carts    map[string][]CartItem
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{st: memState{
		products: map[string]Product{},
		orders:   map[string]Order{},
		payments: map[string]Payment{},
		carts:    map[string][]CartItem{},
	}}
}

func (s memState) clone() memState {
	c := memState{
		products: make(map[string]Product, len(s.products)),
		orders:   make(map[string]Order, len(s.orders)),
		payments: make(map[string]Payment, len(s.payments)),
		carts:    make(map[string][]CartItem, len(s.carts)),
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.orders {
		v.Items = append([]LineItem(nil), v.Items...)
		c.orders[k] = v
	}
	for k, v := range s.payments {
		c.payments[k] = v
	}
	for k, v := range s.carts {
		c.carts[k] = append([]CartItem(nil), v...)
	}
	return c
}

func (s *MemoryStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txCalls++
	if s.conflicts > 0 {
		s.conflicts--
		return ErrTxConflict
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	work := s.st.clone()
	if err := fn(&memTx{st: work}); err != nil {
		return err
	}
	s.st = work
	return nil
}

func (s *MemoryStore) GetOrder(_ context.Context, orderID string) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.st.orders[orderID]
	if !ok {
		return nil, ErrOrderNotFound
	}
	o.Items = append([]LineItem(nil), o.Items...)
	return &o, nil
}

func (s *MemoryStore) ListOrders(_ context.Context, f ListFilter) ([]Order, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f = f.normalized()
	var all []Order
	for _, o := range s.st.orders {
		if f.UserID != "" && o.UserID != f.UserID {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		all = append(all, o)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	total := len(all)
	start := f.offset()
	if start > total {
		start = total
	}
	end := start + f.Limit
	if end > total {
		end = total
	}
	return append([]Order{}, all[start:end]...), total, nil
}

func (s *MemoryStore) ListExpiredPending(_ context.Context, cutoff time.Time, limit int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []Order
	for _, o := range s.st.orders {
		if o.Status == StatusPendingPayment && !o.CreatedAt.After(cutoff) {
			due = append(due, o)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].CreatedAt.Before(due[j].CreatedAt) })
	if len(due) > limit {
		due = due[:limit]
	}
	ids := make([]string, len(due))
	for i, o := range due {
		ids[i] = o.ID
	}
	return ids, nil
}

func (s *MemoryStore) GetPayment(_ context.Context, orderID string) (*Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.st.payments[orderID]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return &p, nil
}

func (s *MemoryStore) CreateProduct(_ context.Context, p *Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.products[p.ID] = *p
	return nil
}

func (s *MemoryStore) GetProduct(_ context.Context, productID string) (*Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.st.products[productID]
	if !ok {
		return nil, ErrProductNotFound
	}
	return &p, nil
}

func (s *MemoryStore) ListProducts(_ context.Context) ([]Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Product, 0, len(s.st.products))
	for _, p := range s.st.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *MemoryStore) Restock(_ context.Context, productID string, qty int) (*Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.st.products[productID]
	if !ok {
		return nil, ErrProductNotFound
	}
	p.AvailableStock += qty
	s.st.products[productID] = p
	return &p, nil
}

func (s *MemoryStore) GetCart(_ context.Context, userID string) (Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Cart{UserID: userID, Items: append([]CartItem(nil), s.st.carts[userID]...)}, nil
}

func (s *MemoryStore) AddCartItem(_ context.Context, userID, productID string, qty int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.st.carts[userID]
	for i := range items {
		if items[i].ProductID == productID {
			items[i].Quantity += qty
			return nil
		}
	}
	s.st.carts[userID] = append(items, CartItem{ProductID: productID, Quantity: qty})
	return nil
}

func (s *MemoryStore) RemoveCartItem(_ context.Context, userID, productID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.st.carts[userID]
	for i := range items {
		if items[i].ProductID == productID {
			s.st.carts[userID] = append(items[:i], items[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

type memTx struct{ st memState }

func (t *memTx) ReserveStock(_ context.Context, productID string, qty int) (bool, error) {
	p, ok := t.st.products[productID]
	if !ok || p.AvailableStock < qty {
		return false, nil
	}
	p.AvailableStock -= qty
	p.ReservedStock += qty
	t.st.products[productID] = p
	return true, nil
}

func (t *memTx) ReleaseStock(_ context.Context, productID string, qty int) (bool, error) {
	p, ok := t.st.products[productID]
	if !ok || p.ReservedStock < qty {
		return false, nil
	}
	p.ReservedStock -= qty
	p.AvailableStock += qty
	t.st.products[productID] = p
	return true, nil
}

func (t *memTx) CommitStock(_ context.Context, productID string, qty int) (bool, error) {
	p, ok := t.st.products[productID]
	if !ok || p.ReservedStock < qty {
		return false, nil
	}
	p.ReservedStock -= qty
	t.st.products[productID] = p
	return true, nil
}

func (t *memTx) GetProduct(_ context.Context, productID string) (*Product, error) {
	p, ok := t.st.products[productID]
	if !ok {
		return nil, ErrProductNotFound
	}
	return &p, nil
}

func (t *memTx) LockCart(_ context.Context, userID string) ([]CartItem, error) {
	return append([]CartItem(nil), t.st.carts[userID]...), nil
}

func (t *memTx) ClearCart(_ context.Context, userID string) error {
	delete(t.st.carts, userID)
	return nil
}

func (t *memTx) InsertOrder(_ context.Context, o *Order) error {
	if _, dup := t.st.orders[o.ID]; dup {
		return errors.New("duplicate order id")
	}
	c := *o
	c.Items = append([]LineItem(nil), o.Items...)
	t.st.orders[o.ID] = c
	return nil
}

func (t *memTx) LockOrder(_ context.Context, orderID string) (*Order, error) {
	o, ok := t.st.orders[orderID]
	if !ok {
		return nil, ErrOrderNotFound
	}
	o.Items = append([]LineItem(nil), o.Items...)
	return &o, nil
}

func (t *memTx) SetOrderStatus(_ context.Context, orderID string, from, to Status, at time.Time) (bool, error) {
	o, ok := t.st.orders[orderID]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = to
	o.UpdatedAt = at
	t.st.orders[orderID] = o
	return true, nil
}

func (t *memTx) InsertPayment(_ context.Context, p *Payment) error {
	if _, dup := t.st.payments[p.OrderID]; dup {
		return errors.New("duplicate payment for order")
	}
	t.st.payments[p.OrderID] = *p
	return nil
}
