package service_test

import (
	"testing"

	"github.com/linemk/local-market/internal/domain/models"
	"github.com/linemk/local-market/internal/service"
	"github.com/stretchr/testify/assert"
)

func activeConfig(rate float64, minPurchase int) *models.MerchantRewardsConfig {
	return &models.MerchantRewardsConfig{
		MerchantID:    1,
		IsActive:      true,
		PointsPerUnit: rate,
		MinPurchase:   minPurchase,
	}
}

func TestComputePoints_NoConfig(t *testing.T) {
	points := service.ComputePoints(nil, nil, 1000000)
	assert.Equal(t, 0, points, "No config means no points")
}

func TestComputePoints_InactiveConfig(t *testing.T) {
	cfg := activeConfig(0.0286, 0)
	cfg.IsActive = false

	points := service.ComputePoints(cfg, nil, 1000000)
	assert.Equal(t, 0, points, "Inactive config means no points")
}

func TestComputePoints_BelowMinimum(t *testing.T) {
	cfg := activeConfig(0.0286, 500000)

	points := service.ComputePoints(cfg, nil, 499999)
	assert.Equal(t, 0, points, "Total below minimum earns nothing")
}

func TestComputePoints_NoTiers(t *testing.T) {
	// Без ступеней действует множитель 1.0
	cfg := activeConfig(0.0286, 500000)

	points := service.ComputePoints(cfg, nil, 850000)
	assert.Equal(t, 24310, points)
}

func TestComputePoints_TierMultiplier(t *testing.T) {
	cfg := activeConfig(0.0286, 500000)
	tiers := []*models.RewardTier{
		{MerchantID: 1, Name: "silver", MinPurchase: 500000, Multiplier: 1.0, IsActive: true},
		{MerchantID: 1, Name: "gold", MinPurchase: 800000, Multiplier: 1.5, IsActive: true},
	}

	// floor(850000 * 0.0286 * 1.5) = 36465
	points := service.ComputePoints(cfg, tiers, 850000)
	assert.Equal(t, 36465, points)

	// Для суммы ниже золотого порога действует серебряная ступень
	points = service.ComputePoints(cfg, tiers, 700000)
	assert.Equal(t, 20020, points)
}

func TestComputePoints_HighestQualifyingTierWins(t *testing.T) {
	cfg := activeConfig(0.01, 0)
	tiers := []*models.RewardTier{
		{MinPurchase: 100, Multiplier: 1.2, IsActive: true},
		{MinPurchase: 1000, Multiplier: 2.0, IsActive: true},
		{MinPurchase: 10000, Multiplier: 3.0, IsActive: true}, // порог не достигнут
	}

	points := service.ComputePoints(cfg, tiers, 5000)
	assert.Equal(t, 100, points, "Tier with the highest qualifying threshold should be selected")
}

func TestComputePoints_TieBrokenByHigherMultiplier(t *testing.T) {
	cfg := activeConfig(0.01, 0)
	tiers := []*models.RewardTier{
		{MinPurchase: 1000, Multiplier: 1.5, IsActive: true},
		{MinPurchase: 1000, Multiplier: 2.0, IsActive: true},
	}

	points := service.ComputePoints(cfg, tiers, 2000)
	assert.Equal(t, 40, points, "Equal thresholds: higher multiplier wins")
}

func TestComputePoints_InactiveTierIgnored(t *testing.T) {
	cfg := activeConfig(0.01, 0)
	tiers := []*models.RewardTier{
		{MinPurchase: 1000, Multiplier: 5.0, IsActive: false},
	}

	points := service.ComputePoints(cfg, tiers, 2000)
	assert.Equal(t, 20, points, "Inactive tier falls back to multiplier 1.0")
}

func TestComputePoints_FloorRounding(t *testing.T) {
	// floor(99 * 0.0286) = floor(2.8314) = 2, никогда не вверх
	cfg := activeConfig(0.0286, 0)

	points := service.ComputePoints(cfg, nil, 99)
	assert.Equal(t, 2, points)
}
