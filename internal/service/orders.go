package service

import (
	"context"
	"sort"
	"sync"

	"github.com/pocketshop/vendor-bff-go/internal/domain"
	"github.com/pocketshop/vendor-bff-go/internal/infra/observability"
	"github.com/pocketshop/vendor-bff-go/internal/infra/resilience"
	"github.com/pocketshop/vendor-bff-go/internal/port"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var boardTracer = otel.Tracer("service/orders")

// ============================================================
// Order board — optimistic kanban over the orders table
// ============================================================

// PartitionOrders groups orders into board columns, each sorted
// newest-first by creation time. Pure function, no board state involved.
func PartitionOrders(orders []domain.Order) []domain.BoardColumn {
	byStatus := make(map[domain.OrderStatus][]domain.Order, len(domain.BoardColumns))
	for _, o := range orders {
		byStatus[o.Status] = append(byStatus[o.Status], o)
	}

	columns := make([]domain.BoardColumn, 0, len(domain.BoardColumns))
	for _, status := range domain.BoardColumns {
		col := byStatus[status]
		sort.SliceStable(col, func(i, j int) bool {
			return col[i].CreatedAt.After(col[j].CreatedAt)
		})
		if col == nil {
			col = []domain.Order{}
		}
		columns = append(columns, domain.BoardColumn{Status: status, Orders: col})
	}
	return columns
}

// OrderBoard holds one vendor's in-memory order list, loaded by fetch and
// kept live by the realtime change feed. Views read snapshots; all
// mutation goes through the board's operations. Consistency with other
// sessions is eventual — the feed is the reconciling source of truth.
type OrderBoard struct {
	vendorID string
	store    port.OrderStore
	metrics  *observability.Metrics
	logger   *zap.Logger

	mu     sync.RWMutex
	orders map[string]domain.Order
}

func newOrderBoard(vendorID string, store port.OrderStore, metrics *observability.Metrics, logger *zap.Logger) *OrderBoard {
	return &OrderBoard{
		vendorID: vendorID,
		store:    store,
		metrics:  metrics,
		logger:   logger,
		orders:   make(map[string]domain.Order),
	}
}

// Load replaces the in-memory list with a fresh fetch.
func (b *OrderBoard) Load(ctx context.Context) error {
	ctx, span := boardTracer.Start(ctx, "OrderBoard.Load")
	defer span.End()
	span.SetAttributes(attribute.String("vendor.id", b.vendorID))

	orders, err := b.store.ListOrders(ctx, b.vendorID)
	if err != nil {
		return err
	}

	b.mu.Lock()
	b.orders = make(map[string]domain.Order, len(orders))
	for _, o := range orders {
		b.orders[o.ID] = o
	}
	b.mu.Unlock()

	b.logger.Debug("order board loaded",
		zap.String("vendor_id", b.vendorID),
		zap.Int("orders", len(orders)),
	)
	return nil
}

// Snapshot returns the current orders — a copy, safe for the caller.
func (b *OrderBoard) Snapshot() []domain.Order {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]domain.Order, 0, len(b.orders))
	for _, o := range b.orders {
		out = append(out, o)
	}
	return out
}

// Columns returns the kanban view of the current list.
func (b *OrderBoard) Columns() []domain.BoardColumn {
	return PartitionOrders(b.Snapshot())
}

// ChangeStatus performs the optimistic status mutation: the in-memory
// order flips immediately, the remote call follows, and a failure rolls
// the order back to its prior status. Nothing retries automatically; the
// realtime feed reconciles any divergence that survives.
//
// A drop onto the order's current column is a no-op — no mutation call.
func (b *OrderBoard) ChangeStatus(ctx context.Context, orderID string, newStatus domain.OrderStatus) error {
	ctx, span := boardTracer.Start(ctx, "OrderBoard.ChangeStatus")
	defer span.End()
	span.SetAttributes(
		attribute.String("order.id", orderID),
		attribute.String("order.new_status", string(newStatus)),
	)

	if !newStatus.Valid() {
		return &domain.ErrValidation{Field: "status", Message: "unknown order status"}
	}

	b.mu.RLock()
	current, ok := b.orders[orderID]
	b.mu.RUnlock()
	if !ok {
		return &domain.ErrNotFound{Resource: "order", ID: orderID}
	}

	if current.Status == newStatus {
		// Idempotent drop: same column, nothing to do.
		return nil
	}

	err := resilience.Optimistic(current.Status, newStatus, func(s domain.OrderStatus) {
		b.mu.Lock()
		if o, ok := b.orders[orderID]; ok {
			o.Status = s
			b.orders[orderID] = o
		}
		b.mu.Unlock()
	}, func() error {
		return b.store.UpdateOrderStatus(ctx, orderID, newStatus)
	})

	if err != nil {
		b.metrics.IncrOptimisticRollback()
		b.metrics.IncrStatusChange("failure")
		b.logger.Warn("order status change rolled back",
			zap.String("order_id", orderID),
			zap.String("attempted", string(newStatus)),
			zap.String("restored", string(current.Status)),
			zap.Error(err),
		)
		return err
	}

	b.metrics.IncrStatusChange("success")
	return nil
}

// Advance applies the single forward quick-action transition.
func (b *OrderBoard) Advance(ctx context.Context, orderID string) error {
	b.mu.RLock()
	current, ok := b.orders[orderID]
	b.mu.RUnlock()
	if !ok {
		return &domain.ErrNotFound{Resource: "order", ID: orderID}
	}

	next := current.Status.Next()
	if next == "" {
		return &domain.ErrInvalidTransition{From: current.Status}
	}
	return b.ChangeStatus(ctx, orderID, next)
}

// ResolveDropTarget maps a drag-and-drop target to a column status.
// Dropping onto a card (the target is an order id) resolves to that
// card's column.
func (b *OrderBoard) ResolveDropTarget(target string) (domain.OrderStatus, error) {
	if s := domain.OrderStatus(target); s.Valid() {
		return s, nil
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if o, ok := b.orders[target]; ok {
		return o.Status, nil
	}
	return "", &domain.ErrValidation{Field: "target", Message: "not a column or a known order"}
}

// applyChange folds one realtime event into the list. Events are
// last-write-wins per row; a duplicate delivery is harmless.
func (b *OrderBoard) applyChange(event domain.ChangeEvent) {
	b.metrics.IncrRealtimeEvent(string(event.Type))

	b.mu.Lock()
	defer b.mu.Unlock()

	switch event.Type {
	case domain.ChangeInsert, domain.ChangeUpdate:
		if event.New != nil {
			b.orders[event.New.ID] = *event.New
		}
	case domain.ChangeDelete:
		if event.Old != nil {
			delete(b.orders, event.Old.ID)
		}
	}
}

// ============================================================
// Board manager — one live board per vendor
// ============================================================

// BoardManager creates and caches per-vendor boards, wiring each to its
// realtime subscription the first time a vendor's dashboard is opened.
type BoardManager struct {
	store   port.OrderStore
	feed    port.ChangeFeed
	metrics *observability.Metrics
	logger  *zap.Logger

	// baseCtx owns every realtime watch; Close cancels it.
	baseCtx context.Context
	cancel  context.CancelFunc

	init singleflight.Group

	mu     sync.Mutex
	boards map[string]*OrderBoard
}

// NewBoardManager creates the manager.
func NewBoardManager(store port.OrderStore, feed port.ChangeFeed, metrics *observability.Metrics, logger *zap.Logger) *BoardManager {
	baseCtx, cancel := context.WithCancel(context.Background())
	return &BoardManager{
		store:   store,
		feed:    feed,
		metrics: metrics,
		logger:  logger,
		baseCtx: baseCtx,
		cancel:  cancel,
		boards:  make(map[string]*OrderBoard),
	}
}

// Close stops every realtime watch the manager started.
func (m *BoardManager) Close() {
	m.cancel()
}

// Board returns the vendor's live board, creating and loading it on first
// use. Initialization is single-flight per vendor: a board is published
// only after its initial fetch succeeded, so concurrent dashboard calls
// either share the same loaded board or share the load error.
func (m *BoardManager) Board(ctx context.Context, vendorID string) (*OrderBoard, error) {
	m.mu.Lock()
	board, ok := m.boards[vendorID]
	m.mu.Unlock()
	if ok {
		return board, nil
	}

	v, err, _ := m.init.Do(vendorID, func() (any, error) {
		// A finished flight may have published the board already.
		m.mu.Lock()
		existing, ok := m.boards[vendorID]
		m.mu.Unlock()
		if ok {
			return existing, nil
		}
		return m.bootstrap(ctx, vendorID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*OrderBoard), nil
}

// bootstrap builds one vendor's board: subscribe, fetch, then drain the
// feed. Subscribing before the fetch means a row committed mid-fetch
// still reaches the board; events are last-write-wins per row, so the
// replay after Load is harmless.
func (m *BoardManager) bootstrap(ctx context.Context, vendorID string) (*OrderBoard, error) {
	board := newOrderBoard(vendorID, m.store, m.metrics, m.logger)

	var events <-chan domain.ChangeEvent
	watchCtx, stopWatch := context.WithCancel(m.baseCtx)
	if m.feed != nil {
		var err error
		events, err = m.feed.Subscribe(watchCtx, "orders", "vendor_id=eq."+vendorID)
		if err != nil {
			m.logger.Warn("realtime subscription unavailable, board is fetch-only",
				zap.String("vendor_id", vendorID),
				zap.Error(err),
			)
			events = nil
		}
	}
	if events == nil {
		stopWatch()
	}

	if err := board.Load(ctx); err != nil {
		stopWatch()
		return nil, err
	}

	if events != nil {
		go func() {
			defer stopWatch()
			for event := range events {
				board.applyChange(event)
			}
		}()
	}

	m.mu.Lock()
	m.boards[vendorID] = board
	m.mu.Unlock()
	return board, nil
}

// PlaceOrder creates a customer order against a vendor (status NEW,
// payment pending). The vendor's board learns about it from the feed.
func (m *BoardManager) PlaceOrder(ctx context.Context, req *domain.PlaceOrderRequest) (*domain.Order, error) {
	ctx, span := boardTracer.Start(ctx, "BoardManager.PlaceOrder")
	defer span.End()

	if req.VendorID == "" {
		return nil, &domain.ErrValidation{Field: "vendorId", Message: "required"}
	}
	if req.CustomerName == "" {
		return nil, &domain.ErrValidation{Field: "customerName", Message: "required"}
	}
	if len(req.Items) == 0 {
		return nil, &domain.ErrValidation{Field: "items", Message: "at least one item"}
	}

	total := decimal.Zero
	for _, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, &domain.ErrValidation{Field: "items", Message: "quantities must be positive"}
		}
		total = total.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	order := &domain.Order{
		ID:            uuid.New().String(),
		VendorID:      req.VendorID,
		Status:        domain.OrderNew,
		CustomerName:  req.CustomerName,
		Total:         total,
		Items:         req.Items,
		PaymentStatus: domain.PaymentPending,
	}

	if err := m.store.CreateOrder(ctx, order); err != nil {
		return nil, err
	}

	m.logger.Info("order placed",
		zap.String("order_id", order.ID),
		zap.String("vendor_id", order.VendorID),
		zap.String("total", order.Total.String()),
	)
	return order, nil
}
