package domain

import "github.com/shopspring/decimal"

// ============================================================
// Analytics — pure rollups derived from the raw order list
// ============================================================

// RevenueSummary is the dashboard revenue rollup. Cancelled orders and
// unpaid orders are excluded from revenue but counted in order totals.
type RevenueSummary struct {
	TotalRevenue      decimal.Decimal     `json:"totalRevenue"`
	OrderCount        int                 `json:"orderCount"`
	AverageOrderValue decimal.Decimal     `json:"averageOrderValue"`
	CountByStatus     map[OrderStatus]int `json:"countByStatus"`
}

// DailyRevenue is one point in the revenue-by-day series.
type DailyRevenue struct {
	Day     string          `json:"day"` // YYYY-MM-DD
	Revenue decimal.Decimal `json:"revenue"`
	Orders  int             `json:"orders"`
}

// TopItem is one entry in the best-sellers rollup.
type TopItem struct {
	Name     string          `json:"name"`
	Quantity int             `json:"quantity"`
	Revenue  decimal.Decimal `json:"revenue"`
}

// DashboardSummary combines today's figures for GET /v1/dashboard/summary.
type DashboardSummary struct {
	Today   RevenueSummary `json:"today"`
	Overall RevenueSummary `json:"overall"`
	Pending int            `json:"pendingOrders"`
}
