package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/linemk/local-market/internal/jwt-new/jwtmiddleware"
	"github.com/linemk/local-market/internal/service"
)

// PlaceOrderRequest представляет входной JSON оформления заказа.
type PlaceOrderRequest struct {
	MerchantID      int64  `json:"merchantId" validate:"required,gt=0"`
	PaymentMethod   string `json:"paymentMethod" validate:"required"`
	DeliveryAddress string `json:"deliveryAddress" validate:"required"`
	Notes           string `json:"notes"`
}

// ConfirmDeliveryResponse — баллы, начисленные за подтвержденную доставку.
type ConfirmDeliveryResponse struct {
	PointsEarned int `json:"pointsEarned"`
}

// PlaceOrderHandler обрабатывает запрос POST /api/orders.
func PlaceOrderHandler(log *slog.Logger, orderService service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.PlaceOrderHandler"
		logger := log.With(slog.String("op", op))

		var req PlaceOrderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Error("invalid request: decoding error", slog.Any("error", err))
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
		if err := validate.Struct(req); err != nil {
			logger.Error("invalid request: validation error", slog.Any("error", err))
			http.Error(w, "validation error", http.StatusBadRequest)
			return
		}

		buyerID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			logger.Error("userID not found in context")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		result, err := orderService.Place(r.Context(), buyerID, req.MerchantID, req.PaymentMethod, req.DeliveryAddress, req.Notes)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}

		writeJSON(w, logger, result)
	}
}

// ConfirmOrderHandler обрабатывает запрос POST /api/orders/{orderID}/confirm.
// Выполняется продавцом: placed -> confirmed.
func ConfirmOrderHandler(log *slog.Logger, lifecycle service.LifecycleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.ConfirmOrderHandler"
		logger := log.With(slog.String("op", op))

		orderID, actorID, ok := orderCallParams(w, r, logger)
		if !ok {
			return
		}

		order, err := lifecycle.ConfirmByMerchant(r.Context(), orderID, actorID)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}

		writeJSON(w, logger, order)
	}
}

// ConfirmDeliveryHandler обрабатывает запрос POST /api/orders/{orderID}/delivered.
func ConfirmDeliveryHandler(log *slog.Logger, lifecycle service.LifecycleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.ConfirmDeliveryHandler"
		logger := log.With(slog.String("op", op))

		orderID, actorID, ok := orderCallParams(w, r, logger)
		if !ok {
			return
		}

		points, err := lifecycle.ConfirmDelivery(r.Context(), orderID, actorID)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}

		writeJSON(w, logger, ConfirmDeliveryResponse{PointsEarned: points})
	}
}

// ConfirmReceiptHandler обрабатывает запрос POST /api/orders/{orderID}/received.
// Выполняется покупателем: delivered -> completed.
func ConfirmReceiptHandler(log *slog.Logger, lifecycle service.LifecycleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.ConfirmReceiptHandler"
		logger := log.With(slog.String("op", op))

		orderID, actorID, ok := orderCallParams(w, r, logger)
		if !ok {
			return
		}

		order, err := lifecycle.ConfirmReceipt(r.Context(), orderID, actorID)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}

		writeJSON(w, logger, order)
	}
}

// CancelOrderHandler обрабатывает запрос POST /api/orders/{orderID}/cancel.
// Доступен обеим сторонам заказа.
func CancelOrderHandler(log *slog.Logger, lifecycle service.LifecycleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.CancelOrderHandler"
		logger := log.With(slog.String("op", op))

		orderID, actorID, ok := orderCallParams(w, r, logger)
		if !ok {
			return
		}

		order, err := lifecycle.Cancel(r.Context(), orderID, actorID)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}

		writeJSON(w, logger, order)
	}
}

// orderCallParams извлекает идентификатор заказа из URL и идентификатор
// действующей стороны из JWT-контекста.
func orderCallParams(w http.ResponseWriter, r *http.Request, logger *slog.Logger) (orderID, actorID int64, ok bool) {
	orderIDStr := chi.URLParam(r, "orderID")
	orderID, err := strconv.ParseInt(orderIDStr, 10, 64)
	if err != nil || orderID <= 0 {
		logger.Error("invalid order id", slog.String("orderID", orderIDStr))
		http.Error(w, "invalid order id", http.StatusBadRequest)
		return 0, 0, false
	}

	actorID, found := jwtmiddleware.FromContext(r.Context())
	if !found {
		logger.Error("userID not found in context")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return 0, 0, false
	}
	return orderID, actorID, true
}
