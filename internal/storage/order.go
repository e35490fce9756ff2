package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/linemk/local-market/internal/domain/models"
)

var ErrOrderNotFound = errors.New("order not found")

// Колонки отметок подтверждения. Поименованы явно, чтобы имя колонки
// никогда не приходило снаружи.
const (
	StampNone              = ""
	StampMerchantConfirmed = "merchant_confirmed_at"
	StampDelivered         = "delivered_at"
	StampBuyerConfirmed    = "buyer_confirmed_at"
)

var validStamps = map[string]bool{
	StampMerchantConfirmed: true,
	StampDelivered:         true,
	StampBuyerConfirmed:    true,
}

// OrderStorage описывает методы для работы с заказами.
type OrderStorage interface {
	// CreateOrderTx вставляет заголовок заказа и возвращает его идентификатор.
	CreateOrderTx(ctx context.Context, tx *sql.Tx, order *models.Order) (int64, error)
	// CreateOrderLinesTx копирует позиции корзины в неизменяемые позиции заказа.
	CreateOrderLinesTx(ctx context.Context, tx *sql.Tx, orderID int64, lines []*models.CartLine) error
	// LockOrderTx блокирует заказ для перехода статуса (FOR UPDATE).
	LockOrderTx(ctx context.Context, tx *sql.Tx, orderID int64) (*models.Order, error)
	// SetStatusTx обновляет статус и, если задано, отметку подтверждения.
	SetStatusTx(ctx context.Context, tx *sql.Tx, orderID int64, status models.OrderStatus, stamp string) error
	// GetOrderByID возвращает заказ вместе с позициями.
	GetOrderByID(ctx context.Context, orderID int64) (*models.Order, error)
}

type orderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) OrderStorage {
	return &orderRepository{db: db}
}

func (r *orderRepository) CreateOrderTx(ctx context.Context, tx *sql.Tx, order *models.Order) (int64, error) {
	var id int64
	query := `INSERT INTO orders (buyer_id, merchant_id, total, payment_method, status, delivery_address, notes, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW()) RETURNING id`
	err := tx.QueryRowContext(ctx, query,
		order.BuyerID, order.MerchantID, order.Total, order.PaymentMethod, order.Status, order.DeliveryAddress, order.Notes,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create order: %w", err)
	}
	return id, nil
}

func (r *orderRepository) CreateOrderLinesTx(ctx context.Context, tx *sql.Tx, orderID int64, lines []*models.CartLine) error {
	query := `INSERT INTO order_lines (order_id, product_id, title, unit_price, quantity)
	          VALUES ($1, $2, $3, $4, $5)`
	for _, line := range lines {
		if _, err := tx.ExecContext(ctx, query, orderID, line.ProductID, line.Title, line.UnitPrice, line.Quantity); err != nil {
			return fmt.Errorf("failed to create order line: %w", err)
		}
	}
	return nil
}

func (r *orderRepository) LockOrderTx(ctx context.Context, tx *sql.Tx, orderID int64) (*models.Order, error) {
	order := &models.Order{}
	query := `SELECT id, buyer_id, merchant_id, total, payment_method, status, delivery_address, notes,
	                 created_at, updated_at, merchant_confirmed_at, delivered_at, buyer_confirmed_at
	          FROM orders WHERE id = $1 FOR UPDATE`
	row := tx.QueryRowContext(ctx, query, orderID)
	if err := scanOrder(row, order); err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			if pqErr.Code == "55P03" { // lock
				return nil, fmt.Errorf("order is locked, please try again: %w", err)
			}
		}
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return order, nil
}

func (r *orderRepository) SetStatusTx(ctx context.Context, tx *sql.Tx, orderID int64, status models.OrderStatus, stamp string) error {
	query := "UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2"
	if stamp != StampNone {
		if !validStamps[stamp] {
			return fmt.Errorf("unknown confirmation stamp: %s", stamp)
		}
		query = fmt.Sprintf("UPDATE orders SET status = $1, %s = NOW(), updated_at = NOW() WHERE id = $2", stamp)
	}
	res, err := tx.ExecContext(ctx, query, status, orderID)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (r *orderRepository) GetOrderByID(ctx context.Context, orderID int64) (*models.Order, error) {
	order := &models.Order{}
	query := `SELECT id, buyer_id, merchant_id, total, payment_method, status, delivery_address, notes,
	                 created_at, updated_at, merchant_confirmed_at, delivered_at, buyer_confirmed_at
	          FROM orders WHERE id = $1`
	row := r.db.QueryRowContext(ctx, query, orderID)
	if err := scanOrder(row, order); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT id, order_id, product_id, title, unit_price, quantity FROM order_lines WHERE order_id = $1 ORDER BY id", orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query order lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		line := &models.OrderLine{}
		if err := rows.Scan(&line.ID, &line.OrderID, &line.ProductID, &line.Title, &line.UnitPrice, &line.Quantity); err != nil {
			return nil, fmt.Errorf("failed to scan order line: %w", err)
		}
		order.Lines = append(order.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return order, nil
}

func scanOrder(row *sql.Row, order *models.Order) error {
	return row.Scan(
		&order.ID, &order.BuyerID, &order.MerchantID, &order.Total, &order.PaymentMethod, &order.Status,
		&order.DeliveryAddress, &order.Notes, &order.CreatedAt, &order.UpdatedAt,
		&order.MerchantConfirmedAt, &order.DeliveredAt, &order.BuyerConfirmedAt,
	)
}
