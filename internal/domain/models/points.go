package models

import "time"

// Направление операции с баллами.
const (
	PointsEarned = "earned"
	PointsSpent  = "spent"
)

// PointsLedgerEntry — запись журнала баллов. Журнал только дописывается,
// записи никогда не изменяются и не удаляются.
type PointsLedgerEntry struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	MerchantID int64     `json:"merchant_id"`
	OrderID    int64     `json:"order_id"`
	Points     int       `json:"points"`
	Direction  string    `json:"direction"` // earned или spent
	Reason     string    `json:"reason"`
	CreatedAt  time.Time `json:"created_at"`
}

// PointsBalance — агрегат по паре (пользователь, продавец).
// Производная величина: всегда должна совпадать с суммой записей журнала.
type PointsBalance struct {
	UserID     int64 `json:"user_id"`
	MerchantID int64 `json:"merchant_id"`
	Balance    int   `json:"balance"`
}
