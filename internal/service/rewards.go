package service

import (
	"math"

	"github.com/linemk/local-market/internal/domain/models"
)

// Точность хранения: ставка — 4 знака после запятой, множитель — 2.
const (
	rateScale = 10000
	multScale = 100
)

// ComputePoints вычисляет баллы за заказ на сумму total (в минимальных
// единицах валюты). Чистая функция без состояния.
//
// Правила: программа неактивна или сумма ниже минимума — 0 баллов.
// Из активных ступеней с порогом не выше суммы берется ступень с наибольшим
// порогом; при равных порогах побеждает больший множитель. Если ни одна не
// подошла — множитель 1.0. Округление всегда вниз, продавец не переплачивает.
func ComputePoints(cfg *models.MerchantRewardsConfig, tiers []*models.RewardTier, total int) int {
	if cfg == nil || !cfg.IsActive {
		return 0
	}
	if total < cfg.MinPurchase {
		return 0
	}

	var best *models.RewardTier
	for _, tier := range tiers {
		if !tier.IsActive || tier.MinPurchase > total {
			continue
		}
		if best == nil || tier.MinPurchase > best.MinPurchase ||
			(tier.MinPurchase == best.MinPurchase && tier.Multiplier > best.Multiplier) {
			best = tier
		}
	}

	multiplier := int64(multScale) // 1.0
	if best != nil {
		multiplier = int64(math.Round(best.Multiplier * multScale))
	}
	rate := int64(math.Round(cfg.PointsPerUnit * rateScale))

	// Считаем в целых с фиксированной точностью: floor получается сам собой
	// из целочисленного деления и не зависит от шума двоичных дробей.
	points := int64(total) * rate * multiplier / (rateScale * multScale)
	return int(points)
}
