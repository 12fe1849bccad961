package service_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pocketshop/vendor-bff-go/internal/domain"
	"github.com/pocketshop/vendor-bff-go/internal/infra/observability"
	"github.com/pocketshop/vendor-bff-go/internal/service"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// --- Mocks ---

type fakeOrderStore struct {
	mu sync.Mutex

	orders  []domain.Order
	listErr error

	// listStall, when set, blocks ListOrders until closed.
	listStall chan struct{}
	listCalls int
	onList    func()

	updateErr   error
	updateCalls int

	created []*domain.Order
}

func (f *fakeOrderStore) ListOrders(_ context.Context, _ string) ([]domain.Order, error) {
	if f.onList != nil {
		f.onList()
	}
	if f.listStall != nil {
		<-f.listStall
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]domain.Order, len(f.orders))
	copy(out, f.orders)
	return out, nil
}

func (f *fakeOrderStore) CreateOrder(_ context.Context, order *domain.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, order)
	return nil
}

func (f *fakeOrderStore) UpdateOrderStatus(_ context.Context, _ string, _ domain.OrderStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalls++
	return f.updateErr
}

type fakeChangeFeed struct {
	ch          chan domain.ChangeEvent
	onSubscribe func()

	mu      sync.Mutex
	lastCtx context.Context
}

func (f *fakeChangeFeed) Subscribe(ctx context.Context, _, _ string) (<-chan domain.ChangeEvent, error) {
	f.mu.Lock()
	f.lastCtx = ctx
	f.mu.Unlock()
	if f.onSubscribe != nil {
		f.onSubscribe()
	}
	return f.ch, nil
}

func (f *fakeChangeFeed) subscribeCtx() context.Context {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastCtx
}

func testOrder(id string, status domain.OrderStatus, createdAt time.Time) domain.Order {
	return domain.Order{
		ID:            id,
		VendorID:      "vendor-1",
		Status:        status,
		CustomerName:  "Cliente",
		Total:         decimal.NewFromInt(50),
		PaymentStatus: domain.PaymentPaid,
		CreatedAt:     createdAt,
	}
}

func loadBoard(t *testing.T, store *fakeOrderStore, feed *fakeChangeFeed) *service.OrderBoard {
	t.Helper()
	manager := service.NewBoardManager(store, nil, observability.NewMetrics(), zap.NewNop())
	if feed != nil {
		manager = service.NewBoardManager(store, feed, observability.NewMetrics(), zap.NewNop())
	}

	board, err := manager.Board(context.Background(), "vendor-1")
	if err != nil {
		t.Fatalf("board: %v", err)
	}
	return board
}

// --- Tests ---

func TestPartitionOrders_ColumnsAndOrdering(t *testing.T) {
	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	orders := []domain.Order{
		testOrder("o-1", domain.OrderNew, base),
		testOrder("o-2", domain.OrderNew, base.Add(time.Hour)),
		testOrder("o-3", domain.OrderReady, base),
		testOrder("o-4", domain.OrderCancelled, base),
	}

	columns := service.PartitionOrders(orders)
	if len(columns) != 4 {
		t.Fatalf("expected 4 columns, got %d", len(columns))
	}

	newCol := columns[0]
	if newCol.Status != domain.OrderNew || len(newCol.Orders) != 2 {
		t.Fatalf("unexpected NEW column: %+v", newCol)
	}
	if newCol.Orders[0].ID != "o-2" {
		t.Errorf("columns must sort newest first, got %q on top", newCol.Orders[0].ID)
	}

	for _, col := range columns {
		for _, o := range col.Orders {
			if o.Status == domain.OrderCancelled {
				t.Error("cancelled orders must not appear on the board")
			}
		}
	}

	// Empty columns are rendered, not omitted.
	if columns[1].Status != domain.OrderInProgress || columns[1].Orders == nil {
		t.Errorf("expected empty IN_PROGRESS column to be present: %+v", columns[1])
	}
}

func TestChangeStatus_OptimisticSuccess(t *testing.T) {
	store := &fakeOrderStore{orders: []domain.Order{testOrder("o-1", domain.OrderNew, time.Now())}}
	board := loadBoard(t, store, nil)

	if err := board.ChangeStatus(context.Background(), "o-1", domain.OrderInProgress); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if got := board.Snapshot()[0].Status; got != domain.OrderInProgress {
		t.Errorf("expected IN_PROGRESS, got %q", got)
	}
	if store.updateCalls != 1 {
		t.Errorf("expected one remote call, got %d", store.updateCalls)
	}
}

func TestChangeStatus_RollsBackOnRemoteFailure(t *testing.T) {
	store := &fakeOrderStore{
		orders:    []domain.Order{testOrder("o-1", domain.OrderNew, time.Now())},
		updateErr: errors.New("patch failed"),
	}
	board := loadBoard(t, store, nil)

	err := board.ChangeStatus(context.Background(), "o-1", domain.OrderReady)
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	if got := board.Snapshot()[0].Status; got != domain.OrderNew {
		t.Errorf("expected rollback to NEW, got %q", got)
	}
}

func TestChangeStatus_SameColumnDropIsNoOp(t *testing.T) {
	store := &fakeOrderStore{orders: []domain.Order{testOrder("o-1", domain.OrderNew, time.Now())}}
	board := loadBoard(t, store, nil)

	if err := board.ChangeStatus(context.Background(), "o-1", domain.OrderNew); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if store.updateCalls != 0 {
		t.Errorf("dropping a card on its own column must not call the backend, got %d calls", store.updateCalls)
	}
}

func TestChangeStatus_UnknownOrder(t *testing.T) {
	board := loadBoard(t, &fakeOrderStore{}, nil)

	err := board.ChangeStatus(context.Background(), "ghost", domain.OrderReady)
	var notFound *domain.ErrNotFound
	if !errors.As(err, &notFound) {
		t.Errorf("expected not-found, got %v", err)
	}
}

func TestAdvance_WalksThePipeline(t *testing.T) {
	store := &fakeOrderStore{orders: []domain.Order{testOrder("o-1", domain.OrderNew, time.Now())}}
	board := loadBoard(t, store, nil)

	want := []domain.OrderStatus{domain.OrderInProgress, domain.OrderReady, domain.OrderCompleted}
	for _, expected := range want {
		if err := board.Advance(context.Background(), "o-1"); err != nil {
			t.Fatalf("advance to %q: %v", expected, err)
		}
		if got := board.Snapshot()[0].Status; got != expected {
			t.Fatalf("expected %q, got %q", expected, got)
		}
	}

	// COMPLETED is terminal.
	err := board.Advance(context.Background(), "o-1")
	var invalid *domain.ErrInvalidTransition
	if !errors.As(err, &invalid) {
		t.Fatalf("expected invalid transition from COMPLETED, got %v", err)
	}
	if invalid.To != "" {
		t.Errorf("terminal advance should not name a target status, got %q", invalid.To)
	}
	if !strings.Contains(err.Error(), "terminal") {
		t.Errorf("expected a terminal-state message, got %q", err.Error())
	}
}

func TestResolveDropTarget(t *testing.T) {
	store := &fakeOrderStore{orders: []domain.Order{testOrder("o-1", domain.OrderReady, time.Now())}}
	board := loadBoard(t, store, nil)

	// Dropping onto a column.
	if got, err := board.ResolveDropTarget("IN_PROGRESS"); err != nil || got != domain.OrderInProgress {
		t.Errorf("column target: got %q, %v", got, err)
	}

	// Dropping onto a card resolves to that card's column.
	if got, err := board.ResolveDropTarget("o-1"); err != nil || got != domain.OrderReady {
		t.Errorf("card target: got %q, %v", got, err)
	}

	if _, err := board.ResolveDropTarget("nonsense"); err == nil {
		t.Error("expected error for an unknown drop target")
	}
}

func TestBoard_AppliesRealtimeChanges(t *testing.T) {
	feed := &fakeChangeFeed{ch: make(chan domain.ChangeEvent, 4)}
	store := &fakeOrderStore{orders: []domain.Order{testOrder("o-1", domain.OrderNew, time.Now())}}
	board := loadBoard(t, store, feed)

	incoming := testOrder("o-2", domain.OrderNew, time.Now())
	feed.ch <- domain.ChangeEvent{Type: domain.ChangeInsert, New: &incoming}

	deadline := time.Now().Add(2 * time.Second)
	for {
		if len(board.Snapshot()) == 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("insert event was not applied to the board")
		}
		time.Sleep(5 * time.Millisecond)
	}

	updated := incoming
	updated.Status = domain.OrderInProgress
	feed.ch <- domain.ChangeEvent{Type: domain.ChangeUpdate, New: &updated}

	for {
		var got domain.OrderStatus
		for _, o := range board.Snapshot() {
			if o.ID == "o-2" {
				got = o.Status
			}
		}
		if got == domain.OrderInProgress {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("update event was not applied, o-2 still %q", got)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestBoardManager_ReusesLoadedBoards(t *testing.T) {
	store := &fakeOrderStore{orders: []domain.Order{testOrder("o-1", domain.OrderNew, time.Now())}}
	manager := service.NewBoardManager(store, nil, observability.NewMetrics(), zap.NewNop())

	first, err := manager.Board(context.Background(), "vendor-1")
	if err != nil {
		t.Fatalf("board: %v", err)
	}
	second, err := manager.Board(context.Background(), "vendor-1")
	if err != nil {
		t.Fatalf("board: %v", err)
	}
	if first != second {
		t.Error("expected the same board instance per vendor")
	}
}

func TestBoardManager_ConcurrentFirstUseLoadsOnce(t *testing.T) {
	store := &fakeOrderStore{
		orders:    []domain.Order{testOrder("o-1", domain.OrderNew, time.Now())},
		listStall: make(chan struct{}),
	}
	manager := service.NewBoardManager(store, nil, observability.NewMetrics(), zap.NewNop())

	const callers = 4
	boards := make(chan *service.OrderBoard, callers)
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		go func() {
			board, err := manager.Board(context.Background(), "vendor-1")
			if err != nil {
				errs <- err
				return
			}
			boards <- board
		}()
	}

	// Let every caller pile up on the stalled fetch before releasing it.
	time.Sleep(20 * time.Millisecond)
	close(store.listStall)

	var first *service.OrderBoard
	for i := 0; i < callers; i++ {
		select {
		case err := <-errs:
			t.Fatalf("board: %v", err)
		case board := <-boards:
			if first == nil {
				first = board
			} else if board != first {
				t.Fatal("concurrent callers got different board instances")
			}
			if got := len(board.Snapshot()); got != 1 {
				t.Fatalf("caller saw an unloaded board: %d orders", got)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("board call did not finish")
		}
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	if store.listCalls != 1 {
		t.Errorf("expected a single initial fetch, got %d", store.listCalls)
	}
}

func TestBoardManager_FailedLoadIsNotPublished(t *testing.T) {
	store := &fakeOrderStore{listErr: errors.New("supabase down")}
	manager := service.NewBoardManager(store, nil, observability.NewMetrics(), zap.NewNop())

	if _, err := manager.Board(context.Background(), "vendor-1"); err == nil {
		t.Fatal("expected the first call to fail")
	}

	store.mu.Lock()
	store.listErr = nil
	store.orders = []domain.Order{testOrder("o-1", domain.OrderNew, time.Now())}
	store.mu.Unlock()

	board, err := manager.Board(context.Background(), "vendor-1")
	if err != nil {
		t.Fatalf("retry after recovery: %v", err)
	}
	if got := len(board.Snapshot()); got != 1 {
		t.Errorf("expected the retried board to be loaded, got %d orders", got)
	}
}

func TestBoardManager_SubscribesBeforeInitialFetch(t *testing.T) {
	var mu sync.Mutex
	var sequence []string
	record := func(step string) {
		mu.Lock()
		sequence = append(sequence, step)
		mu.Unlock()
	}

	feed := &fakeChangeFeed{ch: make(chan domain.ChangeEvent), onSubscribe: func() { record("subscribe") }}
	store := &fakeOrderStore{onList: func() { record("fetch") }}
	manager := service.NewBoardManager(store, feed, observability.NewMetrics(), zap.NewNop())

	if _, err := manager.Board(context.Background(), "vendor-1"); err != nil {
		t.Fatalf("board: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(sequence) != 2 || sequence[0] != "subscribe" || sequence[1] != "fetch" {
		t.Errorf("expected the watch to start before the fetch, got %v", sequence)
	}
}

func TestBoardManager_CloseStopsRealtimeWatch(t *testing.T) {
	feed := &fakeChangeFeed{ch: make(chan domain.ChangeEvent)}
	store := &fakeOrderStore{}
	manager := service.NewBoardManager(store, feed, observability.NewMetrics(), zap.NewNop())

	if _, err := manager.Board(context.Background(), "vendor-1"); err != nil {
		t.Fatalf("board: %v", err)
	}

	watchCtx := feed.subscribeCtx()
	if watchCtx == nil {
		t.Fatal("expected a realtime subscription")
	}
	if watchCtx.Err() != nil {
		t.Fatal("watch context ended before Close")
	}

	manager.Close()

	select {
	case <-watchCtx.Done():
	case <-time.After(time.Second):
		t.Fatal("Close did not cancel the realtime watch")
	}
}

func TestPlaceOrder_ComputesTotalAndDefaults(t *testing.T) {
	store := &fakeOrderStore{}
	manager := service.NewBoardManager(store, nil, observability.NewMetrics(), zap.NewNop())

	order, err := manager.PlaceOrder(context.Background(), &domain.PlaceOrderRequest{
		VendorID:     "vendor-1",
		CustomerName: "Cliente",
		Items: []domain.OrderItem{
			{Name: "Coxinha", Quantity: 3, UnitPrice: decimal.RequireFromString("4.50")},
			{Name: "Suco", Quantity: 1, UnitPrice: decimal.RequireFromString("6.00")},
		},
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if order.Status != domain.OrderNew {
		t.Errorf("new orders start in NEW, got %q", order.Status)
	}
	if order.PaymentStatus != domain.PaymentPending {
		t.Errorf("new orders start payment-pending, got %q", order.PaymentStatus)
	}
	if want := decimal.RequireFromString("19.50"); !order.Total.Equal(want) {
		t.Errorf("expected total %s, got %s", want, order.Total)
	}
	if len(store.created) != 1 {
		t.Fatalf("expected one created order, got %d", len(store.created))
	}
}

func TestPlaceOrder_Validation(t *testing.T) {
	manager := service.NewBoardManager(&fakeOrderStore{}, nil, observability.NewMetrics(), zap.NewNop())

	cases := []*domain.PlaceOrderRequest{
		{CustomerName: "Cliente", Items: []domain.OrderItem{{Name: "x", Quantity: 1}}},
		{VendorID: "vendor-1", Items: []domain.OrderItem{{Name: "x", Quantity: 1}}},
		{VendorID: "vendor-1", CustomerName: "Cliente"},
		{VendorID: "vendor-1", CustomerName: "Cliente", Items: []domain.OrderItem{{Name: "x", Quantity: 0}}},
	}

	for i, req := range cases {
		_, err := manager.PlaceOrder(context.Background(), req)
		var verr *domain.ErrValidation
		if !errors.As(err, &verr) {
			t.Errorf("case %d: expected validation error, got %v", i, err)
		}
	}
}
