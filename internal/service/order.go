package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/linemk/local-market/internal/domain/models"
	"github.com/linemk/local-market/internal/storage"
)

// Причины начислений в журнале баллов. Начисление при оформлении и при
// подтверждении доставки помечаются по-разному — см. DESIGN.md.
const (
	ReasonOrderPlaced       = "order placed"
	ReasonDeliveryConfirmed = "delivery confirmed"
)

// PlaceOrderResult — результат успешного оформления заказа.
type PlaceOrderResult struct {
	OrderID      int64 `json:"orderId"`
	Total        int   `json:"total"`
	PointsEarned int   `json:"pointsEarned"`
}

// OrderService определяет оформление заказа из корзины.
type OrderService interface {
	Place(ctx context.Context, buyerID, merchantID int64, paymentMethod, deliveryAddress, notes string) (*PlaceOrderResult, error)
}

type orderService struct {
	log         *slog.Logger
	db          *sql.DB
	cartRepo    storage.CartStorage
	orderRepo   storage.OrderStorage
	rewardsRepo storage.RewardsStorage
	pointsRepo  storage.PointsStorage
}

func NewOrderService(log *slog.Logger, db *sql.DB, cartRepo storage.CartStorage, orderRepo storage.OrderStorage, rewardsRepo storage.RewardsStorage, pointsRepo storage.PointsStorage) OrderService {
	return &orderService{
		log:         log,
		db:          db,
		cartRepo:    cartRepo,
		orderRepo:   orderRepo,
		rewardsRepo: rewardsRepo,
		pointsRepo:  pointsRepo,
	}
}

// Place превращает корзину в неизменяемый заказ: снимок позиций, сумма,
// начисление баллов и удаление корзины выполняются одной транзакцией.
// Либо всё, либо ничего: сбой на любом шаге не оставляет ни полузаказа,
// ни записи в журнале, ни удаленной корзины. Из двух конкурентных вызовов
// на одну корзину победит один, второй увидит корзину уже удаленной.
func (s *orderService) Place(ctx context.Context, buyerID, merchantID int64, paymentMethod, deliveryAddress, notes string) (*PlaceOrderResult, error) {
	const op = "service.OrderService.Place"
	logger := s.log.With(
		slog.String("op", op),
		slog.Int64("buyerID", buyerID),
		slog.Int64("merchantID", merchantID),
	)
	logger.Info("starting order placement transaction")

	if deliveryAddress == "" {
		return nil, fmt.Errorf("%s: %w", op, &ValidationError{Msg: "delivery address is required"})
	}
	if paymentMethod == "" {
		return nil, fmt.Errorf("%s: %w", op, &ValidationError{Msg: "payment method is required"})
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		logger.Error("failed to begin transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}

	// Блокируем корзину: проигравший из конкурентных вызовов дождется
	// коммита победителя и увидит её отсутствие
	cart, err := s.cartRepo.LockCartTx(ctx, tx, buyerID, merchantID)
	if err != nil {
		rollback(logger, tx)
		if errors.Is(err, storage.ErrCartNotFound) {
			logger.Warn("cart not found")
			return nil, fmt.Errorf("%s: %w", op, ErrEmptyCart)
		}
		logger.Error("failed to lock cart", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to lock cart: %w", op, err)
	}

	lines, err := s.cartRepo.GetLinesTx(ctx, tx, cart.ID)
	if err != nil {
		rollback(logger, tx)
		logger.Error("failed to get cart lines", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to get cart lines: %w", op, err)
	}
	if len(lines) == 0 {
		rollback(logger, tx)
		logger.Warn("cart is empty")
		return nil, fmt.Errorf("%s: %w", op, ErrEmptyCart)
	}

	total := 0
	for _, line := range lines {
		total += line.UnitPrice * line.Quantity
	}

	order := &models.Order{
		BuyerID:         buyerID,
		MerchantID:      merchantID,
		Total:           total,
		PaymentMethod:   paymentMethod,
		Status:          models.OrderStatusPlaced,
		DeliveryAddress: deliveryAddress,
		Notes:           notes,
	}
	orderID, err := s.orderRepo.CreateOrderTx(ctx, tx, order)
	if err != nil {
		rollback(logger, tx)
		logger.Error("failed to create order", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to create order: %w", op, err)
	}

	if err := s.orderRepo.CreateOrderLinesTx(ctx, tx, orderID, lines); err != nil {
		rollback(logger, tx)
		logger.Error("failed to create order lines", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to create order lines: %w", op, err)
	}

	points, err := pointsForOrder(ctx, tx, s.rewardsRepo, merchantID, total)
	if err != nil {
		rollback(logger, tx)
		logger.Error("failed to compute points", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to compute points: %w", op, err)
	}
	if points > 0 {
		if err := s.pointsRepo.CreditTx(ctx, tx, buyerID, merchantID, orderID, points, ReasonOrderPlaced); err != nil {
			rollback(logger, tx)
			logger.Error("failed to credit points", slog.Any("error", err))
			return nil, fmt.Errorf("%s: failed to credit points: %w", op, err)
		}
	}

	if err := s.cartRepo.DeleteCartTx(ctx, tx, cart.ID); err != nil {
		rollback(logger, tx)
		logger.Error("failed to delete cart", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to delete cart: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		logger.Error("failed to commit transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	logger.Info("order placed",
		slog.Int64("orderID", orderID),
		slog.Int("total", total),
		slog.Int("pointsEarned", points),
	)
	return &PlaceOrderResult{OrderID: orderID, Total: total, PointsEarned: points}, nil
}

// pointsForOrder читает настройки лояльности продавца в текущей транзакции
// и считает баллы. Отсутствие настройки — не ошибка, просто 0 баллов.
func pointsForOrder(ctx context.Context, tx *sql.Tx, rewardsRepo storage.RewardsStorage, merchantID int64, total int) (int, error) {
	cfg, err := rewardsRepo.GetConfigTx(ctx, tx, merchantID)
	if err != nil {
		if errors.Is(err, storage.ErrRewardsConfigNotFound) {
			return 0, nil
		}
		return 0, err
	}
	tiers, err := rewardsRepo.GetActiveTiersTx(ctx, tx, merchantID)
	if err != nil {
		return 0, err
	}
	return ComputePoints(cfg, tiers, total), nil
}
