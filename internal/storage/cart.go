package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/linemk/local-market/internal/domain/models"
)

var (
	ErrCartNotFound = errors.New("cart not found")
	ErrLineNotFound = errors.New("cart line not found")
)

// CartStorage описывает методы для работы с корзиной и её позициями.
// Мутации выполняются только внутри транзакции: корзина — общий ресурс
// покупателя, и слияние количеств не должно терять обновления.
type CartStorage interface {
	// GetActiveCart возвращает корзину покупателя вместе с позициями.
	GetActiveCart(ctx context.Context, buyerID int64) (*models.Cart, error)
	// LockCartByBuyerTx блокирует заголовок корзины покупателя (FOR UPDATE).
	LockCartByBuyerTx(ctx context.Context, tx *sql.Tx, buyerID int64) (*models.Cart, error)
	// LockCartTx блокирует корзину покупателя у конкретного продавца.
	LockCartTx(ctx context.Context, tx *sql.Tx, buyerID, merchantID int64) (*models.Cart, error)
	CreateCartTx(ctx context.Context, tx *sql.Tx, buyerID, merchantID int64) (int64, error)
	// RetargetCartTx переводит пустую корзину на другого продавца.
	RetargetCartTx(ctx context.Context, tx *sql.Tx, cartID, merchantID int64) error
	CountLinesTx(ctx context.Context, tx *sql.Tx, cartID int64) (int, error)
	GetLinesTx(ctx context.Context, tx *sql.Tx, cartID int64) ([]*models.CartLine, error)
	// UpsertLineTx добавляет позицию или атомарно прибавляет количество к существующей.
	UpsertLineTx(ctx context.Context, tx *sql.Tx, cartID, productID int64, title string, unitPrice, quantity int) error
	SetLineQuantityTx(ctx context.Context, tx *sql.Tx, cartID, productID int64, quantity int) error
	DeleteLineTx(ctx context.Context, tx *sql.Tx, cartID, productID int64) error
	// DeleteCartTx удаляет позиции и заголовок корзины.
	DeleteCartTx(ctx context.Context, tx *sql.Tx, cartID int64) error
}

type cartRepository struct {
	db *sql.DB
}

func NewCartRepository(db *sql.DB) CartStorage {
	return &cartRepository{db: db}
}

func (r *cartRepository) GetActiveCart(ctx context.Context, buyerID int64) (*models.Cart, error) {
	cart := &models.Cart{}
	row := r.db.QueryRowContext(ctx,
		"SELECT id, buyer_id, merchant_id, created_at, updated_at FROM carts WHERE buyer_id = $1", buyerID)
	if err := row.Scan(&cart.ID, &cart.BuyerID, &cart.MerchantID, &cart.CreatedAt, &cart.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCartNotFound
		}
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT id, cart_id, product_id, title, unit_price, quantity FROM cart_lines WHERE cart_id = $1 ORDER BY id", cart.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cart lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		line := &models.CartLine{}
		if err := rows.Scan(&line.ID, &line.CartID, &line.ProductID, &line.Title, &line.UnitPrice, &line.Quantity); err != nil {
			return nil, fmt.Errorf("failed to scan cart line: %w", err)
		}
		cart.Lines = append(cart.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return cart, nil
}

func (r *cartRepository) LockCartByBuyerTx(ctx context.Context, tx *sql.Tx, buyerID int64) (*models.Cart, error) {
	return scanLockedCart(tx.QueryRowContext(ctx,
		"SELECT id, buyer_id, merchant_id, created_at, updated_at FROM carts WHERE buyer_id = $1 FOR UPDATE", buyerID))
}

func (r *cartRepository) LockCartTx(ctx context.Context, tx *sql.Tx, buyerID, merchantID int64) (*models.Cart, error) {
	return scanLockedCart(tx.QueryRowContext(ctx,
		"SELECT id, buyer_id, merchant_id, created_at, updated_at FROM carts WHERE buyer_id = $1 AND merchant_id = $2 FOR UPDATE",
		buyerID, merchantID))
}

func scanLockedCart(row *sql.Row) (*models.Cart, error) {
	cart := &models.Cart{}
	if err := row.Scan(&cart.ID, &cart.BuyerID, &cart.MerchantID, &cart.CreatedAt, &cart.UpdatedAt); err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			if pqErr.Code == "55P03" { // lock
				return nil, fmt.Errorf("cart is locked, please try again: %w", err)
			}
		}
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCartNotFound
		}
		return nil, err
	}
	return cart, nil
}

func (r *cartRepository) CreateCartTx(ctx context.Context, tx *sql.Tx, buyerID, merchantID int64) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx,
		"INSERT INTO carts (buyer_id, merchant_id, created_at, updated_at) VALUES ($1, $2, NOW(), NOW()) RETURNING id",
		buyerID, merchantID,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create cart: %w", err)
	}
	return id, nil
}

func (r *cartRepository) RetargetCartTx(ctx context.Context, tx *sql.Tx, cartID, merchantID int64) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE carts SET merchant_id = $1, updated_at = NOW() WHERE id = $2", merchantID, cartID)
	if err != nil {
		return fmt.Errorf("failed to retarget cart: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrCartNotFound
	}
	return nil
}

func (r *cartRepository) CountLinesTx(ctx context.Context, tx *sql.Tx, cartID int64) (int, error) {
	var count int
	row := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM cart_lines WHERE cart_id = $1", cartID)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count cart lines: %w", err)
	}
	return count, nil
}

func (r *cartRepository) GetLinesTx(ctx context.Context, tx *sql.Tx, cartID int64) ([]*models.CartLine, error) {
	rows, err := tx.QueryContext(ctx,
		"SELECT id, cart_id, product_id, title, unit_price, quantity FROM cart_lines WHERE cart_id = $1 ORDER BY id", cartID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cart lines: %w", err)
	}
	defer rows.Close()

	var lines []*models.CartLine
	for rows.Next() {
		line := &models.CartLine{}
		if err := rows.Scan(&line.ID, &line.CartID, &line.ProductID, &line.Title, &line.UnitPrice, &line.Quantity); err != nil {
			return nil, fmt.Errorf("failed to scan cart line: %w", err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

// UpsertLineTx сливает количество на стороне БД, чтобы два конкурентных
// добавления одного товара не потеряли обновление.
func (r *cartRepository) UpsertLineTx(ctx context.Context, tx *sql.Tx, cartID, productID int64, title string, unitPrice, quantity int) error {
	query := `INSERT INTO cart_lines (cart_id, product_id, title, unit_price, quantity)
	          VALUES ($1, $2, $3, $4, $5)
	          ON CONFLICT (cart_id, product_id)
	          DO UPDATE SET quantity = cart_lines.quantity + EXCLUDED.quantity`
	if _, err := tx.ExecContext(ctx, query, cartID, productID, title, unitPrice, quantity); err != nil {
		return fmt.Errorf("failed to upsert cart line: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "UPDATE carts SET updated_at = NOW() WHERE id = $1", cartID); err != nil {
		return fmt.Errorf("failed to touch cart: %w", err)
	}
	return nil
}

func (r *cartRepository) SetLineQuantityTx(ctx context.Context, tx *sql.Tx, cartID, productID int64, quantity int) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE cart_lines SET quantity = $1 WHERE cart_id = $2 AND product_id = $3", quantity, cartID, productID)
	if err != nil {
		return fmt.Errorf("failed to update cart line: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrLineNotFound
	}
	return nil
}

func (r *cartRepository) DeleteLineTx(ctx context.Context, tx *sql.Tx, cartID, productID int64) error {
	res, err := tx.ExecContext(ctx,
		"DELETE FROM cart_lines WHERE cart_id = $1 AND product_id = $2", cartID, productID)
	if err != nil {
		return fmt.Errorf("failed to delete cart line: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrLineNotFound
	}
	return nil
}

func (r *cartRepository) DeleteCartTx(ctx context.Context, tx *sql.Tx, cartID int64) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM cart_lines WHERE cart_id = $1", cartID); err != nil {
		return fmt.Errorf("failed to delete cart lines: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM carts WHERE id = $1", cartID); err != nil {
		return fmt.Errorf("failed to delete cart: %w", err)
	}
	return nil
}
