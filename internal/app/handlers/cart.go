package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/linemk/local-market/internal/domain/models"
	"github.com/linemk/local-market/internal/jwt-new/jwtmiddleware"
	"github.com/linemk/local-market/internal/service"
)

var validate = validator.New()

// AddItemRequest представляет входной JSON добавления товара в корзину.
type AddItemRequest struct {
	MerchantID int64 `json:"merchantId" validate:"required,gt=0"`
	ProductID  int64 `json:"productId" validate:"required,gt=0"`
	Quantity   int   `json:"quantity" validate:"required,gt=0"`
}

// UpdateQuantityRequest — замена количества; значение <= 0 удаляет позицию.
type UpdateQuantityRequest struct {
	MerchantID int64 `json:"merchantId" validate:"required,gt=0"`
	ProductID  int64 `json:"productId" validate:"required,gt=0"`
	Quantity   int   `json:"quantity"`
}

type ClearCartRequest struct {
	MerchantID int64 `json:"merchantId" validate:"required,gt=0"`
}

// CartResponse оборачивает корзину; cart равен null, если активной корзины нет.
type CartResponse struct {
	Cart *models.Cart `json:"cart"`
}

// AddItemHandler обрабатывает запрос POST /api/cart/items.
func AddItemHandler(log *slog.Logger, cartService service.CartService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.AddItemHandler"
		logger := log.With(slog.String("op", op))

		var req AddItemRequest
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

		cart, err := cartService.AddItem(r.Context(), buyerID, req.MerchantID, req.ProductID, req.Quantity)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}

		writeJSON(w, logger, CartResponse{Cart: cart})
	}
}

// UpdateQuantityHandler обрабатывает запрос POST /api/cart/items/quantity.
func UpdateQuantityHandler(log *slog.Logger, cartService service.CartService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.UpdateQuantityHandler"
		logger := log.With(slog.String("op", op))

		var req UpdateQuantityRequest
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

		cart, err := cartService.UpdateQuantity(r.Context(), buyerID, req.MerchantID, req.ProductID, req.Quantity)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}

		writeJSON(w, logger, CartResponse{Cart: cart})
	}
}

// ClearCartHandler обрабатывает запрос POST /api/cart/clear.
func ClearCartHandler(log *slog.Logger, cartService service.CartService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.ClearCartHandler"
		logger := log.With(slog.String("op", op))

		var req ClearCartRequest
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

		if err := cartService.Clear(r.Context(), buyerID, req.MerchantID); err != nil {
			writeServiceError(w, logger, err)
			return
		}

		writeJSON(w, logger, map[string]string{"message": "cart cleared"})
	}
}

// GetCartHandler обрабатывает запрос GET /api/cart.
func GetCartHandler(log *slog.Logger, cartService service.CartService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.GetCartHandler"
		logger := log.With(slog.String("op", op))

		buyerID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			logger.Error("userID not found in context")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		cart, err := cartService.GetCurrent(r.Context(), buyerID)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}

		writeJSON(w, logger, CartResponse{Cart: cart})
	}
}
