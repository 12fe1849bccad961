package handler

import (
	"encoding/json"
	"net/http"

	"github.com/pocketshop/vendor-bff-go/internal/domain"
	"github.com/pocketshop/vendor-bff-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ============================================================
// 3. Order board
// ============================================================

// dropRequest carries a drag-and-drop move. Target is either a column
// status (e.g. "IN_PROGRESS") or the id of the card it was dropped onto.
type dropRequest struct {
	Target string `json:"target"`
}

func listOrdersHandler(boards *service.BoardManager, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/dashboard/orders")
		defer span.End()

		board, err := boards.Board(ctx, UserIDFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, board.Columns())
	}
}

func changeOrderStatusHandler(boards *service.BoardManager, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/dashboard/orders/{orderId}/status")
		defer span.End()

		orderID := chi.URLParam(r, "orderId")

		var req dropRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		board, err := boards.Board(ctx, UserIDFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		target, err := board.ResolveDropTarget(req.Target)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		if err := board.ChangeStatus(ctx, orderID, target); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, board.Columns())
	}
}

func advanceOrderHandler(boards *service.BoardManager, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/dashboard/orders/{orderId}/advance")
		defer span.End()

		orderID := chi.URLParam(r, "orderId")

		board, err := boards.Board(ctx, UserIDFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		if err := board.Advance(ctx, orderID); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, board.Columns())
	}
}

// placeOrderHandler is the customer-facing creation path: public, keyed
// by vendor id in the body. The vendor's board picks the new order up
// from the realtime feed.
func placeOrderHandler(boards *service.BoardManager, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/orders")
		defer span.End()

		var req domain.PlaceOrderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		order, err := boards.PlaceOrder(ctx, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, order)
	}
}
