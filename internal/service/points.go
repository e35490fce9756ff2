package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/linemk/local-market/internal/storage"
)

// PointsService определяет интерфейс для получения информации о баллах.
type PointsService interface {
	GetSummary(ctx context.Context, userID, merchantID int64) (*PointsSummary, error)
}

// PointsSummary — баланс и история начислений пары (пользователь, продавец).
type PointsSummary struct {
	Balance int                  `json:"balance"`
	History []PointsHistoryEntry `json:"history"`
}

type PointsHistoryEntry struct {
	OrderID   int64     `json:"orderId"`
	Points    int       `json:"points"`
	Direction string    `json:"direction"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"createdAt"`
}

type pointsService struct {
	log        *slog.Logger
	pointsRepo storage.PointsStorage
}

func NewPointsService(log *slog.Logger, pointsRepo storage.PointsStorage) PointsService {
	return &pointsService{
		log:        log,
		pointsRepo: pointsRepo,
	}
}

// GetSummary собирает баланс и историю операций. Баланс читается из
// агрегата, журнал остается источником истины.
func (s *pointsService) GetSummary(ctx context.Context, userID, merchantID int64) (*PointsSummary, error) {
	const op = "service.PointsService.GetSummary"
	s.log.Info("getting points summary", slog.String("op", op), slog.Int64("userID", userID), slog.Int64("merchantID", merchantID))

	balance, err := s.pointsRepo.GetBalance(ctx, userID, merchantID)
	if err != nil {
		s.log.Error("failed to get balance", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to get balance: %w", op, err)
	}

	entries, err := s.pointsRepo.GetLedger(ctx, userID, merchantID)
	if err != nil {
		s.log.Error("failed to get ledger", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to get ledger: %w", op, err)
	}

	history := make([]PointsHistoryEntry, 0, len(entries))
	for _, entry := range entries {
		history = append(history, PointsHistoryEntry{
			OrderID:   entry.OrderID,
			Points:    entry.Points,
			Direction: entry.Direction,
			Reason:    entry.Reason,
			CreatedAt: entry.CreatedAt,
		})
	}

	return &PointsSummary{Balance: balance, History: history}, nil
}
