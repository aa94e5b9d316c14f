package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	DefaultReservationTTL = 15 * time.Minute
	defaultMaxRetries     = 3
	reasonExpired         = "RESERVATION_EXPIRED"
)

type Service struct {
	store      Store
	ledger     *Ledger
	events     Publisher
	cache      Cache
	log        *zap.Logger
	tracer     trace.Tracer
	now        func() time.Time
	ttl        time.Duration
	maxRetries int
	producer   string
	newBackoff func() backoff.BackOff
}

type Option func(*Service)

func WithPublisher(p Publisher) Option { return func(s *Service) { s.events = p } }
func WithCache(c Cache) Option { return func(s *Service) { s.cache = c } }
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}
func WithReservationTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}
func WithMaxRetries(n int) Option { return func(s *Service) { s.maxRetries = n } }
func WithProducerName(name string) Option {
	return func(s *Service) { s.producer = name }
}

func NewService(store Store, log *zap.Logger, opts ...Option) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Service{
		store:      store,
		ledger:     NewLedger(log),
		events:     nopPublisher{},
		cache:      nopCache{},
		log:        log,
		tracer:     otel.Tracer("github.com/arpit8955/ecommerce/internal/orders"),
		now:        time.Now,
		ttl:        DefaultReservationTTL,
		maxRetries: defaultMaxRetries,
		producer:   "order-api",
		newBackoff: defaultBackoff,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.events == nil {
		s.events = nopPublisher{}
	}
	if s.cache == nil {
		s.cache = nopCache{}
	}
	return s
}

// Checkout reserves every cart line and creates a PENDING_PAYMENT order in one transaction.
// Either the whole cart is reserved or nothing changes.
func (s *Service) Checkout(ctx context.Context, userID string) (*Order, error) {
	ctx, span := s.tracer.Start(ctx, "orders.Checkout", trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	var order *Order
	err := s.inTxRetry(ctx, "checkout", func(tx Tx) error {
		cart, err := tx.LockCart(ctx, userID)
		if err != nil {
			return err
		}
		items := mergeCart(cart)
		if len(items) == 0 {
			return ErrEmptyCart
		}

		// reserve in product id order so two carts never lock the same rows in opposite order
		byID := make([]CartItem, len(items))
		copy(byID, items)
		sort.Slice(byID, func(i, j int) bool { return byID[i].ProductID < byID[j].ProductID })

		prices := make(map[string]int, len(items))
		for _, it := range byID {
			if err := s.ledger.Reserve(ctx, tx, it.ProductID, it.Quantity); err != nil {
				return err
			}
			p, err := tx.GetProduct(ctx, it.ProductID)
			if err != nil {
				return err
			}
			prices[it.ProductID] = p.PriceCents
		}

		lines := make([]LineItem, 0, len(items))
		for _, it := range items {
			lines = append(lines, LineItem{
				ProductID:            it.ProductID,
				Quantity:             it.Quantity,
				PriceAtPurchaseCents: prices[it.ProductID],
			})
		}

		now := s.now().UTC()
		o := &Order{
			ID:         uuid.NewString(),
			UserID:     userID,
			Items:      lines,
			TotalCents: totalOf(lines),
			Status:     StatusPendingPayment,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := tx.InsertOrder(ctx, o); err != nil {
			return err
		}
		if err := tx.ClearCart(ctx, userID); err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		s.fail(span, "checkout", err, zap.String("user_id", userID))
		return nil, err
	}

	span.SetAttributes(attribute.String("order.id", order.ID), attribute.Int("order.total_cents", order.TotalCents))
	s.log.Info("order reserved",
		zap.String("order_id", order.ID),
		zap.String("user_id", userID),
		zap.Int("lines", len(order.Items)),
		zap.Int("total_cents", order.TotalCents),
	)
	s.cache.PutOrder(ctx, order)
	s.emit(ctx, EventOrderCreated, order.ID, OrderCreatedPayload{
		OrderID:    order.ID,
		UserID:     order.UserID,
		Items:      order.Items,
		TotalCents: order.TotalCents,
		ExpiresAt:  order.CreatedAt.Add(s.ttl),
	})
	return order, nil
}

// Pay confirms the mock payment for an order owned by userID and consumes its reservation.
func (s *Service) Pay(ctx context.Context, orderID, userID string) (*Order, error) {
	ctx, span := s.tracer.Start(ctx, "orders.Pay", trace.WithAttributes(
		attribute.String("order.id", orderID),
		attribute.String("user.id", userID),
	))
	defer span.End()

	var (
		order   *Order
		payment *Payment
	)
	err := s.inTxRetry(ctx, "pay", func(tx Tx) error {
		o, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if o.UserID != userID {
			return fmt.Errorf("%w: %w", ErrOrderNotFound, ErrNotOwner)
		}
		if err := s.apply(ctx, tx, o, ConfirmPayment); err != nil {
			return err
		}

		p := &Payment{
			ID:            uuid.NewString(),
			OrderID:       o.ID,
			TransactionID: "mock_tx_" + uuid.NewString(),
			AmountCents:   o.TotalCents,
			Status:        PaymentSuccess,
			CreatedAt:     o.UpdatedAt,
		}
		if err := tx.InsertPayment(ctx, p); err != nil {
			return err
		}
		order, payment = o, p
		return nil
	})
	if err != nil {
		s.fail(span, "pay", err, zap.String("order_id", orderID), zap.String("user_id", userID))
		return nil, err
	}

	s.log.Info("order paid",
		zap.String("order_id", order.ID),
		zap.String("transaction_id", payment.TransactionID),
		zap.Int("amount_cents", payment.AmountCents),
	)
	s.cache.PutOrder(ctx, order)
	s.emit(ctx, EventOrderPaid, order.ID, OrderPaidPayload{
		OrderID:       order.ID,
		UserID:        order.UserID,
		TransactionID: payment.TransactionID,
		AmountCents:   payment.AmountCents,
	})
	return order, nil
}

// CancelExpired is the single cancellation path. It runs once, without retry: an order that
// is no longer PENDING_PAYMENT yields ErrNotPending and nothing changes.
func (s *Service) CancelExpired(ctx context.Context, orderID string) (*Order, error) {
	ctx, span := s.tracer.Start(ctx, "orders.CancelExpired", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()

	var order *Order
	err := s.store.InTx(ctx, func(tx Tx) error {
		o, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if o.Status != StatusPendingPayment {
			return fmt.Errorf("%w: order %s is %s", ErrNotPending, o.ID, o.Status)
		}
		if err := s.apply(ctx, tx, o, CancelExpired); err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotPending) {
			span.SetAttributes(attribute.Bool("order.skipped", true))
			return nil, err
		}
		s.fail(span, "cancel", err, zap.String("order_id", orderID))
		return nil, err
	}

	s.log.Info("order cancelled, stock restored", zap.String("order_id", order.ID))
	s.cache.PutOrder(ctx, order)
	s.emit(ctx, EventOrderCancelled, order.ID, OrderStatusPayload{
		OrderID: order.ID,
		UserID:  order.UserID,
		From:    CancelExpired.from,
		To:      CancelExpired.to,
		Reason:  reasonExpired,
	})
	return order, nil
}

// AdvanceShipment moves a paid order along PAID -> SHIPPED -> DELIVERED.
func (s *Service) AdvanceShipment(ctx context.Context, orderID string, target Status) (*Order, error) {
	ctx, span := s.tracer.Start(ctx, "orders.AdvanceShipment", trace.WithAttributes(
		attribute.String("order.id", orderID),
		attribute.String("order.target_status", string(target)),
	))
	defer span.End()

	t, err := ShipmentTransition(target)
	if err != nil {
		s.fail(span, "advance shipment", err, zap.String("order_id", orderID))
		return nil, err
	}

	var order *Order
	err = s.inTxRetry(ctx, "advance_shipment", func(tx Tx) error {
		o, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if err := s.apply(ctx, tx, o, t); err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		s.fail(span, "advance shipment", err, zap.String("order_id", orderID))
		return nil, err
	}

	s.log.Info("order status updated", zap.String("order_id", order.ID), zap.String("status", string(order.Status)))
	s.cache.PutOrder(ctx, order)
	s.emit(ctx, t.event, order.ID, OrderStatusPayload{
		OrderID: order.ID,
		UserID:  order.UserID,
		From:    t.from,
		To:      t.to,
	})
	return order, nil
}

// apply performs t on o inside tx: status compare-and-set plus the ledger effect of the edge.
func (s *Service) apply(ctx context.Context, tx Tx, o *Order, t Transition) error {
	if o.Status != t.from || !CanTransition(t.from, t.to) {
		return &TransitionError{Current: o.Status, Attempted: t.to}
	}

	now := s.now().UTC()
	ok, err := tx.SetOrderStatus(ctx, o.ID, t.from, t.to, now)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: order %s changed during %s", ErrTxConflict, o.ID, t.name)
	}

	for _, it := range o.Items {
		switch t.effect {
		case effectCommit:
			err = s.ledger.Commit(ctx, tx, it.ProductID, it.Quantity)
		case effectRelease:
			err = s.ledger.Release(ctx, tx, it.ProductID, it.Quantity)
		}
		if err != nil {
			return err
		}
	}

	o.Status = t.to
	o.UpdatedAt = now
	return nil
}

func (s *Service) GetOrder(ctx context.Context, orderID, userID string) (*Order, error) {
	if o, ok := s.cache.GetOrder(ctx, orderID); ok && o.UserID == userID {
		return o, nil
	}
	o, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, ErrOrderNotFound
	}
	s.cache.PutOrder(ctx, o)
	return o, nil
}

func (s *Service) GetOrderAdmin(ctx context.Context, orderID string) (*Order, error) {
	return s.store.GetOrder(ctx, orderID)
}

func (s *Service) ListOrders(ctx context.Context, f ListFilter) (OrderPage, error) {
	f = f.normalized()
	if f.Status != "" && !f.Status.Valid() {
		return OrderPage{}, ErrInvalidStatus
	}
	list, total, err := s.store.ListOrders(ctx, f)
	if err != nil {
		return OrderPage{}, err
	}
	if list == nil {
		list = []Order{}
	}
	return OrderPage{
		Orders:      list,
		Page:        f.Page,
		TotalPages:  (total + f.Limit - 1) / f.Limit,
		TotalOrders: total,
	}, nil
}

func (s *Service) GetPayment(ctx context.Context, orderID string) (*Payment, error) {
	return s.store.GetPayment(ctx, orderID)
}

// ---- catalog & cart ----

type ProductInput struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	PriceCents   int    `json:"price_cents"`
	InitialStock int    `json:"initial_stock"`
}

func (s *Service) CreateProduct(ctx context.Context, in ProductInput) (*Product, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" || in.PriceCents < 0 || in.InitialStock < 0 {
		return nil, ErrInvalidProduct
	}
	now := s.now().UTC()
	p := &Product{
		ID:             uuid.NewString(),
		Name:           name,
		Description:    strings.TrimSpace(in.Description),
		PriceCents:     in.PriceCents,
		AvailableStock: in.InitialStock,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.CreateProduct(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Restock adds physical stock; it is the only operation that grows available+reserved.
func (s *Service) Restock(ctx context.Context, productID string, qty int) (*Product, error) {
	if qty <= 0 {
		return nil, ErrInvalidQuantity
	}
	p, err := s.store.Restock(ctx, productID, qty)
	if err != nil {
		return nil, err
	}
	s.log.Info("product restocked", zap.String("product_id", productID), zap.Int("qty", qty), zap.Int("available", p.AvailableStock))
	return p, nil
}

func (s *Service) ListProducts(ctx context.Context) ([]Product, error) {
	return s.store.ListProducts(ctx)
}

func (s *Service) GetCart(ctx context.Context, userID string) (Cart, error) {
	return s.store.GetCart(ctx, userID)
}

func (s *Service) AddCartItem(ctx context.Context, userID, productID string, qty int) (Cart, error) {
	if qty <= 0 {
		return Cart{}, ErrInvalidQuantity
	}
	if _, err := s.store.GetProduct(ctx, productID); err != nil {
		return Cart{}, err
	}
	if err := s.store.AddCartItem(ctx, userID, productID, qty); err != nil {
		return Cart{}, err
	}
	return s.store.GetCart(ctx, userID)
}

func (s *Service) RemoveCartItem(ctx context.Context, userID, productID string) (Cart, error) {
	if _, err := s.store.RemoveCartItem(ctx, userID, productID); err != nil {
		return Cart{}, err
	}
	return s.store.GetCart(ctx, userID)
}

// ---- helpers ----

func (s *Service) inTxRetry(ctx context.Context, op string, fn func(tx Tx) error) error {
	attempt := 0
	b := backoff.WithContext(backoff.WithMaxRetries(s.newBackoff(), uint64(s.maxRetries)), ctx)
	return backoff.Retry(func() error {
		attempt++
		err := s.store.InTx(ctx, fn)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrTxConflict) {
			s.log.Warn("transaction conflict",
				zap.String("op", op),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			return err
		}
		return backoff.Permanent(err)
	}, b)
}

func defaultBackoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 20 * time.Millisecond
	b.MaxInterval = 500 * time.Millisecond
	b.MaxElapsedTime = 5 * time.Second
	return b
}

func (s *Service) fail(span trace.Span, op string, err error, fields ...zap.Field) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	fields = append(fields, zap.String("op", op), zap.Error(err))
	if isClientError(err) {
		s.log.Debug("order operation rejected", fields...)
		return
	}
	s.log.Error("order operation failed", fields...)
}

func isClientError(err error) bool {
	for _, target := range []error{
		ErrEmptyCart, ErrInsufficientStock, ErrProductNotFound, ErrOrderNotFound,
		ErrInvalidTransition, ErrInvalidQuantity, ErrInvalidStatus, ErrNotPending,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func (s *Service) emit(ctx context.Context, eventType, orderID string, payload any) {
	b, err := json.Marshal(payload)
	if err != nil {
		s.log.Error("marshal event payload", zap.String("event_type", eventType), zap.Error(err))
		return
	}
	s.events.Publish(ctx, topicFor(eventType), Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    s.now().UTC(),
		Producer:      s.producer,
		CorrelationID: orderID,
		Payload:       b,
	})
}

// mergeCart drops non-positive lines and folds duplicates, keeping first-seen order.
func mergeCart(items []CartItem) []CartItem {
	out := make([]CartItem, 0, len(items))
	idx := make(map[string]int, len(items))
	for _, it := range items {
		if it.Quantity <= 0 {
			continue
		}
		if i, ok := idx[it.ProductID]; ok {
			out[i].Quantity += it.Quantity
			continue
		}
		idx[it.ProductID] = len(out)
		out = append(out, it)
	}
	return out
}
