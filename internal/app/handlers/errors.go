package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/linemk/local-market/internal/service"
	"github.com/linemk/local-market/internal/storage"
)

// ErrorResponse — единый формат ошибки для клиента.
type ErrorResponse struct {
	Error string `json:"error"`
	// Продавец, которому уже принадлежит корзина (только для конфликта корзин)
	BlockingMerchantID int64 `json:"blockingMerchantId,omitempty"`
}

// writeServiceError сопоставляет ошибки бизнес-логики HTTP-статусам.
// Ошибки хранилища наружу не детализируются — клиенту предлагается повторить.
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var (
		validationErr *service.ValidationError
		conflictErr   *service.MerchantConflictError
		transitionErr *service.InvalidTransitionError
	)

	switch {
	case errors.As(err, &validationErr):
		writeJSONError(w, http.StatusBadRequest, ErrorResponse{Error: validationErr.Msg})
	case errors.As(err, &conflictErr):
		writeJSONError(w, http.StatusConflict, ErrorResponse{
			Error:              "cart already belongs to another merchant",
			BlockingMerchantID: conflictErr.MerchantID,
		})
	case errors.Is(err, service.ErrEmptyCart):
		writeJSONError(w, http.StatusBadRequest, ErrorResponse{Error: "cart is empty"})
	case errors.Is(err, storage.ErrLineNotFound):
		writeJSONError(w, http.StatusNotFound, ErrorResponse{Error: "cart line not found"})
	case errors.Is(err, storage.ErrOrderNotFound):
		writeJSONError(w, http.StatusNotFound, ErrorResponse{Error: "order not found"})
	case errors.As(err, &transitionErr):
		writeJSONError(w, http.StatusConflict, ErrorResponse{Error: transitionErr.Error()})
	case errors.Is(err, service.ErrNotAllowed):
		writeJSONError(w, http.StatusForbidden, ErrorResponse{Error: "operation is not allowed for this user"})
	default:
		logger.Error("internal error", slog.Any("error", err))
		writeJSONError(w, http.StatusInternalServerError, ErrorResponse{Error: "internal server error, please retry"})
	}
}

func writeJSONError(w http.ResponseWriter, status int, resp ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("failed to encode response", slog.Any("error", err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}
