package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/linemk/local-market/internal/domain/models"
)

var ErrProductNotFound = errors.New("product not found")

// ProductStorage описывает чтение каталога. Каталог ведется внешней
// системой, здесь он нужен только для снимка цены и названия.
type ProductStorage interface {
	// GetProductTx получает товар по идентификатору, используя транзакцию.
	GetProductTx(ctx context.Context, tx *sql.Tx, id int64) (*models.Product, error)
}

type productRepository struct {
	db *sql.DB
}

func NewProductRepository(db *sql.DB) ProductStorage {
	return &productRepository{db: db}
}

func (r *productRepository) GetProductTx(ctx context.Context, tx *sql.Tx, id int64) (*models.Product, error) {
	product := &models.Product{}
	query := "SELECT id, merchant_id, title, price, is_active FROM products WHERE id = $1"
	row := tx.QueryRowContext(ctx, query, id)
	if err := row.Scan(&product.ID, &product.MerchantID, &product.Title, &product.Price, &product.IsActive); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return product, nil
}
