package orders

import "time"

type Product struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Description    string    `json:"description,omitempty"`
	PriceCents     int       `json:"price_cents"`
	AvailableStock int       `json:"available_stock"`
	ReservedStock  int       `json:"reserved_stock"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type Order struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	Items      []LineItem `json:"items"`
	TotalCents int        `json:"total_cents"`
	Status     Status     `json:"status"` // lihat status.go
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// LineItem captures the price at reservation time; it never changes afterwards.
type LineItem struct {
	ProductID            string `json:"product_id"`
	Quantity             int    `json:"quantity"`
	PriceAtPurchaseCents int    `json:"price_at_purchase_cents"`
}

type PaymentStatus string

const (
	PaymentSuccess PaymentStatus = "SUCCESS"
	PaymentFailed  PaymentStatus = "FAILED"
)

type Payment struct {
	ID            string        `json:"id"`
	OrderID       string        `json:"order_id"`
	TransactionID string        `json:"transaction_id"`
	AmountCents   int           `json:"amount_cents"`
	Status        PaymentStatus `json:"status"`
	CreatedAt     time.Time     `json:"created_at"`
}

type CartItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type Cart struct {
	UserID string     `json:"user_id"`
	Items  []CartItem `json:"items"`
}

// ListFilter drives order history and the admin listing. Page is 1-based.
type ListFilter struct {
	UserID string
	Status Status
	Page   int
	Limit  int
}

type OrderPage struct {
	Orders      []Order `json:"orders"`
	Page        int     `json:"page"`
	TotalPages  int     `json:"totalPages"`
	TotalOrders int     `json:"totalOrders"`
}

func (f ListFilter) normalized() ListFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit <= 0 {
		f.Limit = 10
	}
	if f.Limit > 100 {
		f.Limit = 100
	}
	return f
}

func (f ListFilter) offset() int { return (f.Page - 1) * f.Limit }

func totalOf(items []LineItem) int {
	total := 0
	for _, it := range items {
		total += it.Quantity * it.PriceAtPurchaseCents
	}
	return total
}
