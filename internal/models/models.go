package models

import "time"

// Product is a catalog entry. Price is in Colombian pesos (no minor units).
type Product struct {
	ID       string `db:"id" json:"id"`
	Name     string `db:"name" json:"name"`
	Slug     string `db:"slug" json:"slug"`
	Price    int64  `db:"price" json:"price"`
	Stock    int    `db:"stock" json:"stock"`
	IsActive bool   `db:"is_active" json:"isActive"`
}

// Address is a saved shipping address owned by a user.
type Address struct {
	ID      string `db:"id" json:"id"`
	UserID  string `db:"user_id" json:"userId"`
	Name    string `db:"name" json:"name"`
	Street  string `db:"street" json:"street"`
	City    string `db:"city" json:"city"`
	State   string `db:"state" json:"state"`
	Country string `db:"country" json:"country"`
	Zip     string `db:"zip" json:"zip"`
}

// ShippingAddress is the snapshot copied onto an order at creation time.
// It never changes after the order is persisted, even if the saved address
// it came from is edited later.
type ShippingAddress struct {
	Name    string `json:"name" db:"shipping_name"`
	Street  string `json:"street" db:"shipping_street"`
	City    string `json:"city" db:"shipping_city"`
	State   string `json:"state" db:"shipping_state"`
	Country string `json:"country" db:"shipping_country"`
	Zip     string `json:"zip" db:"shipping_zip"`
}

// Order is the aggregate owned by the order engine. After creation only
// Status, PaidAt and PaymentIntentID are mutated.
// Invariant: Total == Subtotal + ShippingCost - Discount.
type Order struct {
	ID              string     `db:"id" json:"id"`
	OrderNumber     string     `db:"order_number" json:"orderNumber"`
	UserID          string     `db:"user_id" json:"userId"`
	Status          Status     `db:"status" json:"status"`
	Subtotal        int64      `db:"subtotal" json:"subtotal"`
	ShippingCost    int64      `db:"shipping_cost" json:"shippingCost"`
	Discount        int64      `db:"discount" json:"discount"`
	Total           int64      `db:"total" json:"total"`
	Notes           *string    `db:"notes" json:"notes,omitempty"`
	PaymentIntentID *string    `db:"payment_intent_id" json:"paymentIntentId,omitempty"`
	PaidAt          *time.Time `db:"paid_at" json:"paidAt,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updatedAt"`

	ShippingAddress `json:"shippingAddress"`

	Items []OrderItem `db:"-" json:"items,omitempty"`
}

// OrderItem is a line item with the unit price captured at order time.
// Subtotal = UnitPrice * Quantity. Created once, never mutated.
type OrderItem struct {
	ID        string  `db:"id" json:"id"`
	OrderID   string  `db:"order_id" json:"orderId"`
	ProductID string  `db:"product_id" json:"productId"`
	Quantity  int     `db:"quantity" json:"quantity"`
	UnitPrice int64   `db:"unit_price" json:"unitPrice"`
	Grind     *string `db:"grind" json:"grind,omitempty"`
	Subtotal  int64   `db:"subtotal" json:"subtotal"`

	// ProductName is joined in on reads for display; not a column of order_items.
	ProductName string `db:"product_name" json:"productName,omitempty"`
}

// ProcessedEvent records an external webhook event id so that redelivery of
// the same event is a safe no-op.
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}

// Roles injected by the edge proxy.
const (
	RoleAdmin    = "ADMIN"
	RoleCustomer = "CUSTOMER"
)
