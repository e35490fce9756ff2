package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/linemk/local-market/internal/app/handlers"
	"github.com/linemk/local-market/internal/domain/models"
	"github.com/linemk/local-market/internal/jwt-new/jwtmiddleware"
	"github.com/linemk/local-market/internal/service"
	"github.com/linemk/local-market/internal/storage"
	"github.com/stretchr/testify/assert"
)

// --- фиктивные сервисы ---

type fakeCartService struct {
	cart *models.Cart
	err  error
}

var _ service.CartService = (*fakeCartService)(nil)

func (f *fakeCartService) AddItem(ctx context.Context, buyerID, merchantID, productID int64, quantity int) (*models.Cart, error) {
	return f.cart, f.err
}

func (f *fakeCartService) UpdateQuantity(ctx context.Context, buyerID, merchantID, productID int64, quantity int) (*models.Cart, error) {
	return f.cart, f.err
}

func (f *fakeCartService) RemoveItem(ctx context.Context, buyerID, merchantID, productID int64) (*models.Cart, error) {
	return f.cart, f.err
}

func (f *fakeCartService) Clear(ctx context.Context, buyerID, merchantID int64) error {
	return f.err
}

func (f *fakeCartService) GetCurrent(ctx context.Context, buyerID int64) (*models.Cart, error) {
	return f.cart, f.err
}

type fakeOrderService struct {
	result *service.PlaceOrderResult
	err    error
}

var _ service.OrderService = (*fakeOrderService)(nil)

func (f *fakeOrderService) Place(ctx context.Context, buyerID, merchantID int64, paymentMethod, deliveryAddress, notes string) (*service.PlaceOrderResult, error) {
	return f.result, f.err
}

type fakeLifecycleService struct {
	order  *models.Order
	points int
	err    error

	gotOrderID int64
	gotActorID int64
}

var _ service.LifecycleService = (*fakeLifecycleService)(nil)

func (f *fakeLifecycleService) ConfirmByMerchant(ctx context.Context, orderID, merchantID int64) (*models.Order, error) {
	f.gotOrderID, f.gotActorID = orderID, merchantID
	return f.order, f.err
}

func (f *fakeLifecycleService) ConfirmDelivery(ctx context.Context, orderID, merchantID int64) (int, error) {
	f.gotOrderID, f.gotActorID = orderID, merchantID
	return f.points, f.err
}

func (f *fakeLifecycleService) ConfirmReceipt(ctx context.Context, orderID, buyerID int64) (*models.Order, error) {
	f.gotOrderID, f.gotActorID = orderID, buyerID
	return f.order, f.err
}

func (f *fakeLifecycleService) Cancel(ctx context.Context, orderID, actorID int64) (*models.Order, error) {
	f.gotOrderID, f.gotActorID = orderID, actorID
	return f.order, f.err
}

type fakePointsService struct {
	summary *service.PointsSummary
	err     error
}

var _ service.PointsService = (*fakePointsService)(nil)

func (f *fakePointsService) GetSummary(ctx context.Context, userID, merchantID int64) (*service.PointsSummary, error) {
	return f.summary, f.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

// authedRequest собирает запрос с userID в контексте, как после JWT middleware.
func authedRequest(method, target string, body any, userID int64) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	ctx := context.WithValue(req.Context(), jwtmiddleware.UserIDKey, userID)
	return req.WithContext(ctx)
}

func TestAddItemHandler_Success(t *testing.T) {
	cart := &models.Cart{ID: 7, BuyerID: 100, MerchantID: 1, Lines: []*models.CartLine{
		{CartID: 7, ProductID: 10, Title: "nasi goreng", UnitPrice: 250000, Quantity: 2},
	}}
	handler := handlers.AddItemHandler(testLogger(), &fakeCartService{cart: cart})

	req := authedRequest(http.MethodPost, "/api/cart/items",
		handlers.AddItemRequest{MerchantID: 1, ProductID: 10, Quantity: 2}, 100)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var resp handlers.CartResponse
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, int64(1), resp.Cart.MerchantID)
	assert.Len(t, resp.Cart.Lines, 1)
}

func TestAddItemHandler_MerchantConflict(t *testing.T) {
	svcErr := fmt.Errorf("service.CartService.AddItem: %w", &service.MerchantConflictError{MerchantID: 2})
	handler := handlers.AddItemHandler(testLogger(), &fakeCartService{err: svcErr})

	req := authedRequest(http.MethodPost, "/api/cart/items",
		handlers.AddItemRequest{MerchantID: 1, ProductID: 10, Quantity: 2}, 100)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusConflict, rr.Code)

	var resp handlers.ErrorResponse
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, int64(2), resp.BlockingMerchantID, "Response should name the blocking merchant")
}

func TestAddItemHandler_ValidationError(t *testing.T) {
	handler := handlers.AddItemHandler(testLogger(), &fakeCartService{})

	// Количество 0 не проходит валидацию до обращения к сервису
	req := authedRequest(http.MethodPost, "/api/cart/items",
		handlers.AddItemRequest{MerchantID: 1, ProductID: 10, Quantity: 0}, 100)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAddItemHandler_Unauthorized(t *testing.T) {
	handler := handlers.AddItemHandler(testLogger(), &fakeCartService{})

	var buf bytes.Buffer
	_ = json.NewEncoder(&buf).Encode(handlers.AddItemRequest{MerchantID: 1, ProductID: 10, Quantity: 1})
	req := httptest.NewRequest(http.MethodPost, "/api/cart/items", &buf)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestGetCartHandler_NoActiveCart(t *testing.T) {
	handler := handlers.GetCartHandler(testLogger(), &fakeCartService{cart: nil})

	req := authedRequest(http.MethodGet, "/api/cart", nil, 100)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"cart": null}`, rr.Body.String(), "Missing cart reads as null, not an error")
}

func TestUpdateQuantityHandler_LineNotFound(t *testing.T) {
	svcErr := fmt.Errorf("service.CartService.UpdateQuantity: %w", storage.ErrLineNotFound)
	handler := handlers.UpdateQuantityHandler(testLogger(), &fakeCartService{err: svcErr})

	req := authedRequest(http.MethodPost, "/api/cart/items/quantity",
		handlers.UpdateQuantityRequest{MerchantID: 1, ProductID: 99, Quantity: 3}, 100)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestPlaceOrderHandler_Success(t *testing.T) {
	handler := handlers.PlaceOrderHandler(testLogger(), &fakeOrderService{
		result: &service.PlaceOrderResult{OrderID: 42, Total: 850000, PointsEarned: 24310},
	})

	req := authedRequest(http.MethodPost, "/api/orders",
		handlers.PlaceOrderRequest{MerchantID: 1, PaymentMethod: "cash", DeliveryAddress: "Jl. Melati 5"}, 100)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var resp service.PlaceOrderResult
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, int64(42), resp.OrderID)
	assert.Equal(t, 850000, resp.Total)
	assert.Equal(t, 24310, resp.PointsEarned)
}

func TestPlaceOrderHandler_EmptyCart(t *testing.T) {
	svcErr := fmt.Errorf("service.OrderService.Place: %w", service.ErrEmptyCart)
	handler := handlers.PlaceOrderHandler(testLogger(), &fakeOrderService{err: svcErr})

	req := authedRequest(http.MethodPost, "/api/orders",
		handlers.PlaceOrderRequest{MerchantID: 1, PaymentMethod: "cash", DeliveryAddress: "Jl. Melati 5"}, 100)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)

	var resp handlers.ErrorResponse
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "cart is empty", resp.Error)
}

func TestPlaceOrderHandler_MissingAddress(t *testing.T) {
	handler := handlers.PlaceOrderHandler(testLogger(), &fakeOrderService{})

	req := authedRequest(http.MethodPost, "/api/orders",
		handlers.PlaceOrderRequest{MerchantID: 1, PaymentMethod: "cash"}, 100)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestPlaceOrderHandler_StorageFailure(t *testing.T) {
	svcErr := fmt.Errorf("service.OrderService.Place: failed to commit transaction: %w", errors.New("connection reset"))
	handler := handlers.PlaceOrderHandler(testLogger(), &fakeOrderService{err: svcErr})

	req := authedRequest(http.MethodPost, "/api/orders",
		handlers.PlaceOrderRequest{MerchantID: 1, PaymentMethod: "cash", DeliveryAddress: "Jl. Melati 5"}, 100)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)

	var resp handlers.ErrorResponse
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.NotContains(t, resp.Error, "connection reset", "Storage details must not leak to the client")
}

// lifecycleRouter монтирует обработчик на маршрут с параметром orderID.
func lifecycleRouter(pattern string, handler http.HandlerFunc) *chi.Mux {
	router := chi.NewRouter()
	router.Post(pattern, handler)
	return router
}

func TestConfirmOrderHandler_Success(t *testing.T) {
	lifecycle := &fakeLifecycleService{order: &models.Order{ID: 42, Status: models.OrderStatusConfirmed}}
	router := lifecycleRouter("/api/orders/{orderID}/confirm", handlers.ConfirmOrderHandler(testLogger(), lifecycle))

	req := authedRequest(http.MethodPost, "/api/orders/42/confirm", nil, 1)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, int64(42), lifecycle.gotOrderID)
	assert.Equal(t, int64(1), lifecycle.gotActorID)
}

func TestConfirmOrderHandler_InvalidOrderID(t *testing.T) {
	router := lifecycleRouter("/api/orders/{orderID}/confirm", handlers.ConfirmOrderHandler(testLogger(), &fakeLifecycleService{}))

	req := authedRequest(http.MethodPost, "/api/orders/abc/confirm", nil, 1)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestConfirmDeliveryHandler_ReturnsPoints(t *testing.T) {
	lifecycle := &fakeLifecycleService{points: 24310}
	router := lifecycleRouter("/api/orders/{orderID}/delivered", handlers.ConfirmDeliveryHandler(testLogger(), lifecycle))

	req := authedRequest(http.MethodPost, "/api/orders/42/delivered", nil, 1)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var resp handlers.ConfirmDeliveryResponse
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, 24310, resp.PointsEarned)
}

func TestCancelOrderHandler_InvalidTransition(t *testing.T) {
	svcErr := fmt.Errorf("service.LifecycleService.Cancel: %w",
		&service.InvalidTransitionError{From: models.OrderStatusDelivered, To: models.OrderStatusCancelled})
	router := lifecycleRouter("/api/orders/{orderID}/cancel",
		handlers.CancelOrderHandler(testLogger(), &fakeLifecycleService{err: svcErr}))

	req := authedRequest(http.MethodPost, "/api/orders/42/cancel", nil, 100)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestCancelOrderHandler_Forbidden(t *testing.T) {
	svcErr := fmt.Errorf("service.LifecycleService.Cancel: %w", service.ErrNotAllowed)
	router := lifecycleRouter("/api/orders/{orderID}/cancel",
		handlers.CancelOrderHandler(testLogger(), &fakeLifecycleService{err: svcErr}))

	req := authedRequest(http.MethodPost, "/api/orders/42/cancel", nil, 999)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestConfirmReceiptHandler_OrderNotFound(t *testing.T) {
	svcErr := fmt.Errorf("service.LifecycleService.ConfirmReceipt: %w", storage.ErrOrderNotFound)
	router := lifecycleRouter("/api/orders/{orderID}/received",
		handlers.ConfirmReceiptHandler(testLogger(), &fakeLifecycleService{err: svcErr}))

	req := authedRequest(http.MethodPost, "/api/orders/404/received", nil, 100)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestPointsHandler_Success(t *testing.T) {
	points := &fakePointsService{summary: &service.PointsSummary{
		Balance: 48620,
		History: []service.PointsHistoryEntry{
			{OrderID: 42, Points: 24310, Direction: models.PointsEarned, Reason: "delivery confirmed"},
			{OrderID: 42, Points: 24310, Direction: models.PointsEarned, Reason: "order placed"},
		},
	}}
	router := chi.NewRouter()
	router.Get("/api/points/{merchantID}", handlers.PointsHandler(testLogger(), points))

	req := authedRequest(http.MethodGet, "/api/points/1", nil, 100)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var resp service.PointsSummary
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, 48620, resp.Balance)
	assert.Len(t, resp.History, 2)
}

func TestPointsHandler_InvalidMerchantID(t *testing.T) {
	router := chi.NewRouter()
	router.Get("/api/points/{merchantID}", handlers.PointsHandler(testLogger(), &fakePointsService{}))

	req := authedRequest(http.MethodGet, "/api/points/zero", nil, 100)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
