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

// Типы уведомлений, отправляемых внешнему эмиттеру.
const (
	NotifyOrderConfirmed = "order_confirmed"
	NotifyOrderDelivered = "order_delivered"
	NotifyOrderCompleted = "order_completed"
	NotifyOrderCancelled = "order_cancelled"
)

// Notifier — внешний эмиттер уведомлений. Доставка асинхронная и
// негарантированная: одна попытка, ошибка логируется и глотается,
// транзакцию-источник она не откатывает и не блокирует.
type Notifier interface {
	Notify(ctx context.Context, recipientID int64, kind, title, message string, orderID int64) error
}

// InventoryReleaser — внешний коллаборатор, снимающий резерв товара
// при отмене заказа.
type InventoryReleaser interface {
	ReleaseInventory(ctx context.Context, orderID int64) error
}

// LifecycleService управляет переходами статуса заказа после оформления.
// Машина состояний авторитетна только на сервере: клиенты запрашивают
// переходы, но никогда не выставляют статус сами.
type LifecycleService interface {
	// ConfirmByMerchant: placed -> confirmed, выполняет продавец.
	ConfirmByMerchant(ctx context.Context, orderID, merchantID int64) (*models.Order, error)
	// ConfirmDelivery: confirmed -> delivered, выполняет продавец.
	// Возвращает баллы, начисленные за доставку.
	ConfirmDelivery(ctx context.Context, orderID, merchantID int64) (int, error)
	// ConfirmReceipt: delivered -> completed, выполняет покупатель.
	ConfirmReceipt(ctx context.Context, orderID, buyerID int64) (*models.Order, error)
	// Cancel: placed/confirmed -> cancelled, доступен обеим сторонам.
	Cancel(ctx context.Context, orderID, actorID int64) (*models.Order, error)
}

type lifecycleService struct {
	log         *slog.Logger
	db          *sql.DB
	orderRepo   storage.OrderStorage
	rewardsRepo storage.RewardsStorage
	pointsRepo  storage.PointsStorage
	notifier    Notifier
	inventory   InventoryReleaser
}

func NewLifecycleService(log *slog.Logger, db *sql.DB, orderRepo storage.OrderStorage, rewardsRepo storage.RewardsStorage, pointsRepo storage.PointsStorage, notifier Notifier, inventory InventoryReleaser) LifecycleService {
	return &lifecycleService{
		log:         log,
		db:          db,
		orderRepo:   orderRepo,
		rewardsRepo: rewardsRepo,
		pointsRepo:  pointsRepo,
		notifier:    notifier,
		inventory:   inventory,
	}
}

func (s *lifecycleService) ConfirmByMerchant(ctx context.Context, orderID, merchantID int64) (*models.Order, error) {
	const op = "service.LifecycleService.ConfirmByMerchant"
	logger := s.log.With(slog.String("op", op), slog.Int64("orderID", orderID), slog.Int64("merchantID", merchantID))
	logger.Info("confirming order by merchant")

	order, err := s.transition(ctx, logger, op, orderID, models.OrderStatusConfirmed, storage.StampMerchantConfirmed,
		func(o *models.Order) bool { return o.MerchantID == merchantID })
	if err != nil {
		return nil, err
	}

	s.notify(ctx, logger, order.BuyerID, NotifyOrderConfirmed, "Order confirmed",
		fmt.Sprintf("Merchant confirmed your order #%d", order.ID), order.ID)

	return s.orderRepo.GetOrderByID(ctx, orderID)
}

// ConfirmDelivery помечает заказ доставленным и начисляет баллы за доставку
// отдельной записью журнала (причина отличается от начисления при
// оформлении). Повторный вызов упрется в предусловие статуса, так что
// начисление происходит не более одного раза.
func (s *lifecycleService) ConfirmDelivery(ctx context.Context, orderID, merchantID int64) (int, error) {
	const op = "service.LifecycleService.ConfirmDelivery"
	logger := s.log.With(slog.String("op", op), slog.Int64("orderID", orderID), slog.Int64("merchantID", merchantID))
	logger.Info("confirming delivery")

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		logger.Error("failed to begin transaction", slog.Any("error", err))
		return 0, fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}

	order, err := s.lockAndCheck(ctx, tx, logger, op, orderID, models.OrderStatusDelivered,
		func(o *models.Order) bool { return o.MerchantID == merchantID })
	if err != nil {
		return 0, err
	}

	if err := s.orderRepo.SetStatusTx(ctx, tx, orderID, models.OrderStatusDelivered, storage.StampDelivered); err != nil {
		rollback(logger, tx)
		logger.Error("failed to update order status", slog.Any("error", err))
		return 0, fmt.Errorf("%s: failed to update order status: %w", op, err)
	}

	points, err := pointsForOrder(ctx, tx, s.rewardsRepo, order.MerchantID, order.Total)
	if err != nil {
		rollback(logger, tx)
		logger.Error("failed to compute points", slog.Any("error", err))
		return 0, fmt.Errorf("%s: failed to compute points: %w", op, err)
	}
	if points > 0 {
		if err := s.pointsRepo.CreditTx(ctx, tx, order.BuyerID, order.MerchantID, order.ID, points, ReasonDeliveryConfirmed); err != nil {
			rollback(logger, tx)
			logger.Error("failed to credit points", slog.Any("error", err))
			return 0, fmt.Errorf("%s: failed to credit points: %w", op, err)
		}
	}

	if err := tx.Commit(); err != nil {
		logger.Error("failed to commit transaction", slog.Any("error", err))
		return 0, fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	logger.Info("delivery confirmed", slog.Int("pointsEarned", points))
	s.notify(ctx, logger, order.BuyerID, NotifyOrderDelivered, "Order delivered",
		fmt.Sprintf("Order #%d delivered, you earned %d points", order.ID, points), order.ID)

	return points, nil
}

func (s *lifecycleService) ConfirmReceipt(ctx context.Context, orderID, buyerID int64) (*models.Order, error) {
	const op = "service.LifecycleService.ConfirmReceipt"
	logger := s.log.With(slog.String("op", op), slog.Int64("orderID", orderID), slog.Int64("buyerID", buyerID))
	logger.Info("confirming receipt")

	order, err := s.transition(ctx, logger, op, orderID, models.OrderStatusCompleted, storage.StampBuyerConfirmed,
		func(o *models.Order) bool { return o.BuyerID == buyerID })
	if err != nil {
		return nil, err
	}

	s.notify(ctx, logger, order.MerchantID, NotifyOrderCompleted, "Order completed",
		fmt.Sprintf("Buyer confirmed receipt of order #%d", order.ID), order.ID)

	return s.orderRepo.GetOrderByID(ctx, orderID)
}

func (s *lifecycleService) Cancel(ctx context.Context, orderID, actorID int64) (*models.Order, error) {
	const op = "service.LifecycleService.Cancel"
	logger := s.log.With(slog.String("op", op), slog.Int64("orderID", orderID), slog.Int64("actorID", actorID))
	logger.Info("cancelling order")

	order, err := s.transition(ctx, logger, op, orderID, models.OrderStatusCancelled, storage.StampNone,
		func(o *models.Order) bool { return o.BuyerID == actorID || o.MerchantID == actorID })
	if err != nil {
		return nil, err
	}

	// Снятие резерва и уведомления — после коммита и без гарантий доставки
	if err := s.inventory.ReleaseInventory(ctx, order.ID); err != nil {
		logger.Warn("failed to release inventory", slog.Any("error", err))
	}
	s.notify(ctx, logger, order.BuyerID, NotifyOrderCancelled, "Order cancelled",
		fmt.Sprintf("Order #%d was cancelled", order.ID), order.ID)
	s.notify(ctx, logger, order.MerchantID, NotifyOrderCancelled, "Order cancelled",
		fmt.Sprintf("Order #%d was cancelled", order.ID), order.ID)

	return s.orderRepo.GetOrderByID(ctx, orderID)
}

// transition выполняет один переход статуса в собственной транзакции:
// блокировка заказа, проверка стороны и предусловия, обновление статуса.
func (s *lifecycleService) transition(ctx context.Context, logger *slog.Logger, op string, orderID int64, target models.OrderStatus, stamp string, actorOK func(*models.Order) bool) (*models.Order, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		logger.Error("failed to begin transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}

	order, err := s.lockAndCheck(ctx, tx, logger, op, orderID, target, actorOK)
	if err != nil {
		return nil, err
	}

	if err := s.orderRepo.SetStatusTx(ctx, tx, orderID, target, stamp); err != nil {
		rollback(logger, tx)
		logger.Error("failed to update order status", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to update order status: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		logger.Error("failed to commit transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	logger.Info("order status updated", slog.String("status", string(target)))
	return order, nil
}

// lockAndCheck блокирует заказ и проверяет сторону и предусловие перехода.
// При ошибке транзакция уже откатана.
func (s *lifecycleService) lockAndCheck(ctx context.Context, tx *sql.Tx, logger *slog.Logger, op string, orderID int64, target models.OrderStatus, actorOK func(*models.Order) bool) (*models.Order, error) {
	order, err := s.orderRepo.LockOrderTx(ctx, tx, orderID)
	if err != nil {
		rollback(logger, tx)
		if errors.Is(err, storage.ErrOrderNotFound) {
			logger.Warn("order not found")
			return nil, fmt.Errorf("%s: %w", op, storage.ErrOrderNotFound)
		}
		logger.Error("failed to lock order", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to lock order: %w", op, err)
	}

	if !actorOK(order) {
		rollback(logger, tx)
		logger.Warn("actor is not allowed", slog.String("status", string(order.Status)))
		return nil, fmt.Errorf("%s: %w", op, ErrNotAllowed)
	}
	if !models.CanTransition(order.Status, target) {
		rollback(logger, tx)
		logger.Warn("invalid transition", slog.String("from", string(order.Status)), slog.String("to", string(target)))
		return nil, fmt.Errorf("%s: %w", op, &InvalidTransitionError{From: order.Status, To: target})
	}
	return order, nil
}

// notify отправляет уведомление с единственной попыткой: сбой канала
// уведомлений никогда не считается сбоем вызвавшей операции.
func (s *lifecycleService) notify(ctx context.Context, logger *slog.Logger, recipientID int64, kind, title, message string, orderID int64) {
	if err := s.notifier.Notify(ctx, recipientID, kind, title, message, orderID); err != nil {
		logger.Warn("failed to send notification", slog.String("kind", kind), slog.Any("error", err))
	}
}
