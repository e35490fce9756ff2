package service

import (
	"errors"
	"fmt"

	"github.com/linemk/local-market/internal/domain/models"
)

// Ошибки бизнес-логики. Наружу сервисы отдают только их (обернутыми),
// транспортный слой сопоставляет им HTTP-статусы через errors.Is/As.
var (
	// ErrEmptyCart — оформление при отсутствующей или пустой корзине.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrNotAllowed — переход запрошен не той стороной.
	ErrNotAllowed = errors.New("actor is not allowed to perform this operation")
)

// ValidationError — некорректные входные данные (количество, чужой товар и т.п.).
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

// MerchantConflictError — у покупателя уже есть непустая корзина другого
// продавца. Несет идентификатор блокирующего продавца, чтобы клиент мог
// предложить замену корзины.
type MerchantConflictError struct {
	MerchantID int64
}

func (e *MerchantConflictError) Error() string {
	return fmt.Sprintf("cart already belongs to merchant %d", e.MerchantID)
}

// InvalidTransitionError — запрошенный переход не разрешен из текущего статуса.
// Заказ при этом остается нетронутым.
type InvalidTransitionError struct {
	From models.OrderStatus
	To   models.OrderStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid order transition: %s -> %s", e.From, e.To)
}
