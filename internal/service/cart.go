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

// CartService определяет операции над корзиной покупателя.
type CartService interface {
	AddItem(ctx context.Context, buyerID, merchantID, productID int64, quantity int) (*models.Cart, error)
	UpdateQuantity(ctx context.Context, buyerID, merchantID, productID int64, quantity int) (*models.Cart, error)
	RemoveItem(ctx context.Context, buyerID, merchantID, productID int64) (*models.Cart, error)
	Clear(ctx context.Context, buyerID, merchantID int64) error
	// GetCurrent возвращает активную корзину покупателя или nil, если её нет.
	GetCurrent(ctx context.Context, buyerID int64) (*models.Cart, error)
}

type cartService struct {
	log         *slog.Logger
	db          *sql.DB
	cartRepo    storage.CartStorage
	productRepo storage.ProductStorage
}

func NewCartService(log *slog.Logger, db *sql.DB, cartRepo storage.CartStorage, productRepo storage.ProductStorage) CartService {
	return &cartService{
		log:         log,
		db:          db,
		cartRepo:    cartRepo,
		productRepo: productRepo,
	}
}

// AddItem добавляет товар в корзину. Если у покупателя есть непустая корзина
// другого продавца — возвращает MerchantConflictError: доставка, оплата и
// баллы привязаны к продавцу, смешивать продавцов в одном заказе нельзя.
// Повторное добавление того же товара сливает количество.
func (s *cartService) AddItem(ctx context.Context, buyerID, merchantID, productID int64, quantity int) (*models.Cart, error) {
	const op = "service.CartService.AddItem"
	logger := s.log.With(
		slog.String("op", op),
		slog.Int64("buyerID", buyerID),
		slog.Int64("merchantID", merchantID),
		slog.Int64("productID", productID),
	)
	logger.Info("adding item to cart")

	if quantity < 1 {
		return nil, fmt.Errorf("%s: %w", op, &ValidationError{Msg: "quantity must be at least 1"})
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		logger.Error("failed to begin transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}

	// Блокируем корзину покупателя независимо от продавца: проверка правила
	// одного активного продавца должна сериализоваться со слиянием количеств.
	cart, err := s.cartRepo.LockCartByBuyerTx(ctx, tx, buyerID)
	var cartID int64
	switch {
	case err == nil:
		if cart.MerchantID != merchantID {
			count, cErr := s.cartRepo.CountLinesTx(ctx, tx, cart.ID)
			if cErr != nil {
				rollback(logger, tx)
				return nil, fmt.Errorf("%s: failed to count cart lines: %w", op, cErr)
			}
			if count > 0 {
				rollback(logger, tx)
				logger.Warn("cart belongs to another merchant", slog.Int64("blockingMerchantID", cart.MerchantID))
				return nil, fmt.Errorf("%s: %w", op, &MerchantConflictError{MerchantID: cart.MerchantID})
			}
			// Пустую корзину можно молча перевести на нового продавца
			if rErr := s.cartRepo.RetargetCartTx(ctx, tx, cart.ID, merchantID); rErr != nil {
				rollback(logger, tx)
				return nil, fmt.Errorf("%s: failed to retarget cart: %w", op, rErr)
			}
		}
		cartID = cart.ID
	case errors.Is(err, storage.ErrCartNotFound):
		cartID, err = s.cartRepo.CreateCartTx(ctx, tx, buyerID, merchantID)
		if err != nil {
			rollback(logger, tx)
			return nil, fmt.Errorf("%s: failed to create cart: %w", op, err)
		}
	default:
		rollback(logger, tx)
		logger.Error("failed to lock cart", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to lock cart: %w", op, err)
	}

	product, err := s.productRepo.GetProductTx(ctx, tx, productID)
	if err != nil {
		rollback(logger, tx)
		if errors.Is(err, storage.ErrProductNotFound) {
			return nil, fmt.Errorf("%s: %w", op, &ValidationError{Msg: "product not found"})
		}
		logger.Error("failed to get product", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to get product: %w", op, err)
	}
	if product.MerchantID != merchantID {
		rollback(logger, tx)
		return nil, fmt.Errorf("%s: %w", op, &ValidationError{Msg: "product belongs to another merchant"})
	}
	if !product.IsActive {
		rollback(logger, tx)
		return nil, fmt.Errorf("%s: %w", op, &ValidationError{Msg: "product is not available"})
	}

	// Цена и название фиксируются здесь, дальнейшие изменения каталога
	// на корзину не влияют
	if err := s.cartRepo.UpsertLineTx(ctx, tx, cartID, productID, product.Title, product.Price, quantity); err != nil {
		rollback(logger, tx)
		logger.Error("failed to upsert cart line", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to upsert cart line: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		logger.Error("failed to commit transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	logger.Info("item added to cart")
	return s.cartRepo.GetActiveCart(ctx, buyerID)
}

// UpdateQuantity заменяет количество позиции; значение <= 0 удаляет позицию.
func (s *cartService) UpdateQuantity(ctx context.Context, buyerID, merchantID, productID int64, quantity int) (*models.Cart, error) {
	const op = "service.CartService.UpdateQuantity"
	logger := s.log.With(
		slog.String("op", op),
		slog.Int64("buyerID", buyerID),
		slog.Int64("productID", productID),
		slog.Int("quantity", quantity),
	)
	logger.Info("updating cart line quantity")

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		logger.Error("failed to begin transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}

	cart, err := s.cartRepo.LockCartTx(ctx, tx, buyerID, merchantID)
	if err != nil {
		rollback(logger, tx)
		if errors.Is(err, storage.ErrCartNotFound) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrLineNotFound)
		}
		logger.Error("failed to lock cart", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to lock cart: %w", op, err)
	}

	if quantity <= 0 {
		err = s.cartRepo.DeleteLineTx(ctx, tx, cart.ID, productID)
	} else {
		err = s.cartRepo.SetLineQuantityTx(ctx, tx, cart.ID, productID, quantity)
	}
	if err != nil {
		rollback(logger, tx)
		if errors.Is(err, storage.ErrLineNotFound) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrLineNotFound)
		}
		logger.Error("failed to update cart line", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to update cart line: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		logger.Error("failed to commit transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	return s.cartRepo.GetActiveCart(ctx, buyerID)
}

// RemoveItem удаляет позицию из корзины.
func (s *cartService) RemoveItem(ctx context.Context, buyerID, merchantID, productID int64) (*models.Cart, error) {
	return s.UpdateQuantity(ctx, buyerID, merchantID, productID, 0)
}

// Clear удаляет корзину целиком. Очистка отсутствующей корзины — не ошибка.
func (s *cartService) Clear(ctx context.Context, buyerID, merchantID int64) error {
	const op = "service.CartService.Clear"
	logger := s.log.With(slog.String("op", op), slog.Int64("buyerID", buyerID), slog.Int64("merchantID", merchantID))
	logger.Info("clearing cart")

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		logger.Error("failed to begin transaction", slog.Any("error", err))
		return fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}

	cart, err := s.cartRepo.LockCartTx(ctx, tx, buyerID, merchantID)
	if err != nil {
		rollback(logger, tx)
		if errors.Is(err, storage.ErrCartNotFound) {
			return nil
		}
		logger.Error("failed to lock cart", slog.Any("error", err))
		return fmt.Errorf("%s: failed to lock cart: %w", op, err)
	}

	if err := s.cartRepo.DeleteCartTx(ctx, tx, cart.ID); err != nil {
		rollback(logger, tx)
		logger.Error("failed to delete cart", slog.Any("error", err))
		return fmt.Errorf("%s: failed to delete cart: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		logger.Error("failed to commit transaction", slog.Any("error", err))
		return fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	logger.Info("cart cleared")
	return nil
}

func (s *cartService) GetCurrent(ctx context.Context, buyerID int64) (*models.Cart, error) {
	const op = "service.CartService.GetCurrent"

	cart, err := s.cartRepo.GetActiveCart(ctx, buyerID)
	if err != nil {
		if errors.Is(err, storage.ErrCartNotFound) {
			return nil, nil
		}
		s.log.Error("failed to get cart", slog.String("op", op), slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to get cart: %w", op, err)
	}
	return cart, nil
}

// rollback откатывает транзакцию, логируя ошибку отката отдельно.
func rollback(logger *slog.Logger, tx *sql.Tx) {
	if rbErr := tx.Rollback(); rbErr != nil {
		logger.Error("transaction rollback failed", slog.Any("error", rbErr))
	}
}
