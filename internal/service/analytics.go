package service

import (
	"context"
	"sort"
	"time"

	"github.com/pocketshop/vendor-bff-go/internal/domain"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// ============================================================
// Analytics — pure aggregation over the order list
// ============================================================

// countsRevenue reports whether an order contributes to revenue figures.
// Cancelled orders never do; everything else counts once it is paid.
func countsRevenue(o domain.Order) bool {
	return o.Status != domain.OrderCancelled && o.PaymentStatus == domain.PaymentPaid
}

// Summarize computes the revenue rollup for a set of orders. Revenue
// math is exact decimal arithmetic; the average rounds to cents.
func Summarize(orders []domain.Order) domain.RevenueSummary {
	summary := domain.RevenueSummary{
		TotalRevenue:      decimal.Zero,
		AverageOrderValue: decimal.Zero,
		CountByStatus:     make(map[domain.OrderStatus]int),
	}

	revenueOrders := 0
	for _, o := range orders {
		summary.OrderCount++
		summary.CountByStatus[o.Status]++
		if countsRevenue(o) {
			summary.TotalRevenue = summary.TotalRevenue.Add(o.Total)
			revenueOrders++
		}
	}
	if revenueOrders > 0 {
		summary.AverageOrderValue = summary.TotalRevenue.
			Div(decimal.NewFromInt(int64(revenueOrders))).
			Round(2)
	}
	return summary
}

// RevenueByDay buckets revenue into calendar days (vendor-local time),
// returning the most recent `days` days in ascending order. Days with no
// orders are present with zero values so charts render gapless.
func RevenueByDay(orders []domain.Order, days int, loc *time.Location, now time.Time) []domain.DailyRevenue {
	if days <= 0 {
		return []domain.DailyRevenue{}
	}
	if loc == nil {
		loc = time.UTC
	}

	type bucket struct {
		revenue decimal.Decimal
		orders  int
	}
	byDay := make(map[string]bucket, days)

	for _, o := range orders {
		day := o.CreatedAt.In(loc).Format("2006-01-02")
		b := byDay[day]
		b.orders++
		if countsRevenue(o) {
			b.revenue = b.revenue.Add(o.Total)
		}
		byDay[day] = b
	}

	series := make([]domain.DailyRevenue, 0, days)
	start := now.In(loc).AddDate(0, 0, -(days - 1))
	for i := 0; i < days; i++ {
		day := start.AddDate(0, 0, i).Format("2006-01-02")
		b := byDay[day]
		series = append(series, domain.DailyRevenue{
			Day:     day,
			Revenue: b.revenue,
			Orders:  b.orders,
		})
	}
	return series
}

// TopItems returns the best-selling line items by quantity, ties broken
// by revenue then name. Only revenue-counting orders contribute.
func TopItems(orders []domain.Order, limit int) []domain.TopItem {
	if limit <= 0 {
		return []domain.TopItem{}
	}

	byName := make(map[string]domain.TopItem)
	for _, o := range orders {
		if !countsRevenue(o) {
			continue
		}
		for _, item := range o.Items {
			agg := byName[item.Name]
			agg.Name = item.Name
			agg.Quantity += item.Quantity
			agg.Revenue = agg.Revenue.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
			byName[item.Name] = agg
		}
	}

	items := make([]domain.TopItem, 0, len(byName))
	for _, agg := range byName {
		items = append(items, agg)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Quantity != items[j].Quantity {
			return items[i].Quantity > items[j].Quantity
		}
		if !items[i].Revenue.Equal(items[j].Revenue) {
			return items[i].Revenue.GreaterThan(items[j].Revenue)
		}
		return items[i].Name < items[j].Name
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items
}

// Analytics serves the dashboard rollups from the vendor's live board.
type Analytics struct {
	boards *BoardManager
}

// NewAnalytics creates the analytics service.
func NewAnalytics(boards *BoardManager) *Analytics {
	return &Analytics{boards: boards}
}

// Summary computes today's and overall figures concurrently off one
// board snapshot.
func (a *Analytics) Summary(ctx context.Context, vendorID string) (*domain.DashboardSummary, error) {
	board, err := a.boards.Board(ctx, vendorID)
	if err != nil {
		return nil, err
	}
	orders := board.Snapshot()

	now := time.Now().UTC()
	todayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	var today, overall domain.RevenueSummary
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		todays := orders[:0:0]
		for _, o := range orders {
			if !o.CreatedAt.Before(todayStart) {
				todays = append(todays, o)
			}
		}
		today = Summarize(todays)
		return nil
	})
	g.Go(func() error {
		overall = Summarize(orders)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	pending := overall.CountByStatus[domain.OrderNew] + overall.CountByStatus[domain.OrderInProgress]
	return &domain.DashboardSummary{Today: today, Overall: overall, Pending: pending}, nil
}

// Revenue returns the revenue-by-day series for the vendor.
func (a *Analytics) Revenue(ctx context.Context, vendorID string, days int) ([]domain.DailyRevenue, error) {
	board, err := a.boards.Board(ctx, vendorID)
	if err != nil {
		return nil, err
	}
	return RevenueByDay(board.Snapshot(), days, time.UTC, time.Now()), nil
}

// BestSellers returns the top line items for the vendor.
func (a *Analytics) BestSellers(ctx context.Context, vendorID string, limit int) ([]domain.TopItem, error) {
	board, err := a.boards.Board(ctx, vendorID)
	if err != nil {
		return nil, err
	}
	return TopItems(board.Snapshot(), limit), nil
}
