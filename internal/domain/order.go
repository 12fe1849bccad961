package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Orders — board state and status pipeline
// ============================================================

// OrderStatus is the kanban column an order sits in.
type OrderStatus string

const (
	OrderNew        OrderStatus = "NEW"
	OrderInProgress OrderStatus = "IN_PROGRESS"
	OrderReady      OrderStatus = "READY"
	OrderCompleted  OrderStatus = "COMPLETED"
	OrderCancelled  OrderStatus = "CANCELLED"
)

// BoardColumns is the column set rendered by the order board, in pipeline order.
var BoardColumns = []OrderStatus{OrderNew, OrderInProgress, OrderReady, OrderCompleted}

// Valid reports whether the status is one the board knows about.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderNew, OrderInProgress, OrderReady, OrderCompleted, OrderCancelled:
		return true
	}
	return false
}

// Next returns the single forward transition offered by quick-action
// buttons, or "" when the order is terminal.
func (s OrderStatus) Next() OrderStatus {
	switch s {
	case OrderNew:
		return OrderInProgress
	case OrderInProgress:
		return OrderReady
	case OrderReady:
		return OrderCompleted
	default:
		return ""
	}
}

// PaymentStatus mirrors the payment side of an order.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

// OrderItem is a line item inside an order.
type OrderItem struct {
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// Order is an orders row. Orders are created by customers and only ever
// observed and status-mutated here, never deleted.
type Order struct {
	ID            string          `json:"id"`
	VendorID      string          `json:"vendor_id"`
	Status        OrderStatus     `json:"status"`
	CustomerName  string          `json:"customer_name"`
	Total         decimal.Decimal `json:"total"`
	Items         []OrderItem     `json:"items"`
	PaymentStatus PaymentStatus   `json:"payment_status"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// BoardColumn is one rendered kanban column: orders sorted newest-first.
type BoardColumn struct {
	Status OrderStatus `json:"status"`
	Orders []Order     `json:"orders"`
}

// ChangeEventType identifies a realtime change-feed event.
type ChangeEventType string

const (
	ChangeInsert ChangeEventType = "INSERT"
	ChangeUpdate ChangeEventType = "UPDATE"
	ChangeDelete ChangeEventType = "DELETE"
)

// ChangeEvent is one row-change delivered by the realtime feed.
type ChangeEvent struct {
	Type ChangeEventType
	New  *Order
	Old  *Order
}

// ============================================================
// Order placement (customer-facing)
// ============================================================

// PlaceOrderRequest is the body for POST /v1/orders.
type PlaceOrderRequest struct {
	VendorID     string      `json:"vendorId"`
	CustomerName string      `json:"customerName"`
	Items        []OrderItem `json:"items"`
}

// ChangeStatusRequest is the body for POST /v1/dashboard/orders/{id}/status.
type ChangeStatusRequest struct {
	Status OrderStatus `json:"status"`
}
