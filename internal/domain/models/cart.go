package models

import "time"

// Cart представляет активную корзину покупателя.
// У покупателя может быть не более одной непустой корзины, и вся она
// привязана к одному продавцу (правило одного активного продавца).
type Cart struct {
	ID         int64     `json:"id"`
	BuyerID    int64     `json:"buyer_id"`
	MerchantID int64     `json:"merchant_id"`
	Lines      []*CartLine `json:"lines,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// CartLine — позиция корзины. Цена и название фиксируются в момент
// добавления, последующие изменения каталога на корзину не влияют.
type CartLine struct {
	ID        int64  `json:"id"`
	CartID    int64  `json:"cart_id"`
	ProductID int64  `json:"product_id"`
	Title     string `json:"title"`
	UnitPrice int    `json:"unit_price"` // в минимальных единицах валюты
	Quantity  int    `json:"quantity"`
}

// Total возвращает сумму корзины по зафиксированным ценам.
func (c *Cart) Total() int {
	total := 0
	for _, line := range c.Lines {
		total += line.UnitPrice * line.Quantity
	}
	return total
}
