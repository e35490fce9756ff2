package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/linemk/local-market/internal/jwt-new/jwtmiddleware"
	"github.com/linemk/local-market/internal/service"
)

// PointsHandler обрабатывает запрос GET /api/points/{merchantID}.
// Возвращает баланс и историю начислений вызывающего пользователя
// у указанного продавца.
func PointsHandler(log *slog.Logger, pointsService service.PointsService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.PointsHandler"
		logger := log.With(slog.String("op", op))

		merchantIDStr := chi.URLParam(r, "merchantID")
		merchantID, err := strconv.ParseInt(merchantIDStr, 10, 64)
		if err != nil || merchantID <= 0 {
			logger.Error("invalid merchant id", slog.String("merchantID", merchantIDStr))
			http.Error(w, "invalid merchant id", http.StatusBadRequest)
			return
		}

		userID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			logger.Error("userID not found in context")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		summary, err := pointsService.GetSummary(r.Context(), userID, merchantID)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}

		writeJSON(w, logger, summary)
	}
}
