package models

// MerchantRewardsConfig — настройка программы лояльности продавца.
// На продавца приходится не более одной записи.
type MerchantRewardsConfig struct {
	MerchantID    int64   `json:"merchant_id"`
	IsActive      bool    `json:"is_active"`
	PointsPerUnit float64 `json:"points_per_unit"` // баллов за единицу валюты, точность 4 знака
	MinPurchase   int     `json:"min_purchase"`
}

// RewardTier — ступень программы лояльности: начиная с порога min_purchase
// базовая ставка умножается на multiplier.
type RewardTier struct {
	ID          int64   `json:"id"`
	MerchantID  int64   `json:"merchant_id"`
	Name        string  `json:"name"`
	MinPurchase int     `json:"min_purchase"`
	Multiplier  float64 `json:"multiplier"` // точность 2 знака
	IsActive    bool    `json:"is_active"`
}
