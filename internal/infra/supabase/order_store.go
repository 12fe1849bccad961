package supabase

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pocketshop/vendor-bff-go/internal/domain"
	"github.com/pocketshop/vendor-bff-go/internal/infra/resilience"

	"go.opentelemetry.io/otel/attribute"
)

// ============================================================
// OrderStore implementation — orders via PostgREST
// ============================================================

// ListOrders fetches all orders for a vendor, newest first. The board
// controller holds the result in memory and reconciles it against the
// realtime change feed.
func (c *Client) ListOrders(ctx context.Context, vendorID string) ([]domain.Order, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListOrders")
	defer span.End()
	span.SetAttributes(attribute.String("vendor.id", vendorID))

	var orders []domain.Order

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			path := fmt.Sprintf("orders?vendor_id=eq.%s&order=created_at.desc&limit=500", vendorID)
			body, err := c.doGet(ctx, path)
			if err != nil {
				return err
			}

			if body == nil || string(body) == "[]" {
				orders = []domain.Order{}
				return nil
			}

			var rows []domain.Order
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("decode orders: %w", err)
			}
			orders = rows
			return nil
		})
	})

	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/orders", Err: err}
	}

	return orders, nil
}

// CreateOrder inserts a new orders row (customer order placement).
func (c *Client) CreateOrder(ctx context.Context, order *domain.Order) error {
	ctx, span := tracer.Start(ctx, "Supabase.CreateOrder")
	defer span.End()

	items, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("encode order items: %w", err)
	}

	data := map[string]any{
		"id":             order.ID,
		"vendor_id":      order.VendorID,
		"status":         string(order.Status),
		"customer_name":  order.CustomerName,
		"total":          order.Total.String(),
		"items":          json.RawMessage(items),
		"payment_status": string(order.PaymentStatus),
	}

	if _, err := c.doPost(ctx, "orders", data); err != nil {
		return &domain.ErrExternalService{Service: "supabase/orders", Err: err}
	}
	return nil
}

// UpdateOrderStatus patches one order's status column. This is the remote
// half of the board's optimistic status change.
func (c *Client) UpdateOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus) error {
	ctx, span := tracer.Start(ctx, "Supabase.UpdateOrderStatus")
	defer span.End()
	span.SetAttributes(
		attribute.String("order.id", orderID),
		attribute.String("order.status", string(status)),
	)

	path := fmt.Sprintf("orders?id=eq.%s", orderID)
	if err := c.doPatch(ctx, path, map[string]any{"status": string(status)}); err != nil {
		return &domain.ErrExternalService{Service: "supabase/orders", Err: err}
	}
	return nil
}
