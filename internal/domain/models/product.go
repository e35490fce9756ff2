package models

// Product представляет товар из каталога продавца.
// Каталог ведется внешней системой, здесь он нужен только для снимка
// цены и названия в момент добавления в корзину.
type Product struct {
	ID         int64  `json:"id"`
	MerchantID int64  `json:"merchant_id"`
	Title      string `json:"title"`
	Price      int    `json:"price"` // в минимальных единицах валюты
	IsActive   bool   `json:"is_active"`
}
