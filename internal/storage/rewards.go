package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/linemk/local-market/internal/domain/models"
)

var ErrRewardsConfigNotFound = errors.New("rewards config not found")

// RewardsStorage описывает чтение настроек программы лояльности продавца.
type RewardsStorage interface {
	// GetConfigTx получает настройку программы лояльности, используя транзакцию.
	GetConfigTx(ctx context.Context, tx *sql.Tx, merchantID int64) (*models.MerchantRewardsConfig, error)
	// GetActiveTiersTx возвращает активные ступени продавца по возрастанию порога.
	GetActiveTiersTx(ctx context.Context, tx *sql.Tx, merchantID int64) ([]*models.RewardTier, error)
}

type rewardsRepository struct {
	db *sql.DB
}

func NewRewardsRepository(db *sql.DB) RewardsStorage {
	return &rewardsRepository{db: db}
}

func (r *rewardsRepository) GetConfigTx(ctx context.Context, tx *sql.Tx, merchantID int64) (*models.MerchantRewardsConfig, error) {
	cfg := &models.MerchantRewardsConfig{}
	query := "SELECT merchant_id, is_active, points_per_unit, min_purchase FROM merchant_rewards_configs WHERE merchant_id = $1"
	row := tx.QueryRowContext(ctx, query, merchantID)
	if err := row.Scan(&cfg.MerchantID, &cfg.IsActive, &cfg.PointsPerUnit, &cfg.MinPurchase); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRewardsConfigNotFound
		}
		return nil, err
	}
	return cfg, nil
}

func (r *rewardsRepository) GetActiveTiersTx(ctx context.Context, tx *sql.Tx, merchantID int64) ([]*models.RewardTier, error) {
	query := `SELECT id, merchant_id, name, min_purchase, multiplier, is_active
	          FROM reward_tiers
	          WHERE merchant_id = $1 AND is_active = TRUE
	          ORDER BY min_purchase`
	rows, err := tx.QueryContext(ctx, query, merchantID)
	if err != nil {
		return nil, fmt.Errorf("failed to query reward tiers: %w", err)
	}
	defer rows.Close()

	var tiers []*models.RewardTier
	for rows.Next() {
		tier := &models.RewardTier{}
		if err := rows.Scan(&tier.ID, &tier.MerchantID, &tier.Name, &tier.MinPurchase, &tier.Multiplier, &tier.IsActive); err != nil {
			return nil, fmt.Errorf("failed to scan reward tier: %w", err)
		}
		tiers = append(tiers, tier)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tiers, nil
}
