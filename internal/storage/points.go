package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/linemk/local-market/internal/domain/models"
)

// PointsStorage описывает методы для работы с журналом баллов и балансами.
// Журнал только дописывается; баланс — производный агрегат для быстрого чтения.
type PointsStorage interface {
	// CreditTx добавляет запись журнала и атомарно увеличивает баланс
	// пары (пользователь, продавец) в той же транзакции.
	CreditTx(ctx context.Context, tx *sql.Tx, userID, merchantID, orderID int64, points int, reason string) error
	// GetBalance возвращает баланс пары, 0 если записи нет.
	GetBalance(ctx context.Context, userID, merchantID int64) (int, error)
	// GetLedger возвращает историю операций пары, новые записи первыми.
	GetLedger(ctx context.Context, userID, merchantID int64) ([]*models.PointsLedgerEntry, error)
}

type pointsRepository struct {
	db *sql.DB
}

func NewPointsRepository(db *sql.DB) PointsStorage {
	return &pointsRepository{db: db}
}

func (r *pointsRepository) CreditTx(ctx context.Context, tx *sql.Tx, userID, merchantID, orderID int64, points int, reason string) error {
	query := `INSERT INTO points_ledger (user_id, merchant_id, order_id, points, direction, reason, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, NOW())`
	if _, err := tx.ExecContext(ctx, query, userID, merchantID, orderID, points, models.PointsEarned, reason); err != nil {
		return fmt.Errorf("failed to create ledger entry: %w", err)
	}

	// Инкремент на стороне БД: никакого чтения-изменения-записи из приложения,
	// конкурентные начисления одной паре сериализует сама СУБД.
	upsert := `INSERT INTO points_balances (user_id, merchant_id, balance)
	           VALUES ($1, $2, $3)
	           ON CONFLICT (user_id, merchant_id)
	           DO UPDATE SET balance = points_balances.balance + EXCLUDED.balance`
	if _, err := tx.ExecContext(ctx, upsert, userID, merchantID, points); err != nil {
		return fmt.Errorf("failed to update points balance: %w", err)
	}
	return nil
}

func (r *pointsRepository) GetBalance(ctx context.Context, userID, merchantID int64) (int, error) {
	var balance int
	row := r.db.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(balance), 0) FROM points_balances WHERE user_id = $1 AND merchant_id = $2", userID, merchantID)
	if err := row.Scan(&balance); err != nil {
		return 0, fmt.Errorf("failed to query points balance: %w", err)
	}
	return balance, nil
}

func (r *pointsRepository) GetLedger(ctx context.Context, userID, merchantID int64) ([]*models.PointsLedgerEntry, error) {
	query := `SELECT id, user_id, merchant_id, order_id, points, direction, reason, created_at
	          FROM points_ledger
	          WHERE user_id = $1 AND merchant_id = $2
	          ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, userID, merchantID)
	if err != nil {
		return nil, fmt.Errorf("failed to query points ledger: %w", err)
	}
	defer rows.Close()

	var entries []*models.PointsLedgerEntry
	for rows.Next() {
		entry := &models.PointsLedgerEntry{}
		if err := rows.Scan(&entry.ID, &entry.UserID, &entry.MerchantID, &entry.OrderID, &entry.Points, &entry.Direction, &entry.Reason, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}
