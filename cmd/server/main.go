package main

import (
	"context"

	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/linemk/local-market/internal/app"
	"github.com/linemk/local-market/internal/app/handlers"
	"github.com/linemk/local-market/internal/config"
	"github.com/linemk/local-market/internal/jwt-new/jwtmiddleware"
	"github.com/linemk/local-market/internal/lib/logger"
	"github.com/linemk/local-market/internal/lib/logger/handlers/urllog"
	"github.com/linemk/local-market/internal/notify"
	"github.com/linemk/local-market/internal/service"
	"github.com/linemk/local-market/internal/storage"
	"github.com/pkg/errors"
)

func main() {
	// загрузка конфигурации
	cfg := config.MustLoad()

	// инициализация логгера, зависит от настройки окружения
	log := logger.SetupLogger(cfg.Env)
	log.Info("starting app", slog.String("env", cfg.Env))

	// загружаем объект приложения, конфигом и подключением к БД
	application, err := app.NewApp(log, cfg)
	if err != nil {
		log.Error("failed to initialize app", slog.Any("error", err))
		panic(errors.Wrap(err, "failed to initialize app"))
	}
	defer application.DB.Close()

	router := chi.NewRouter()
	// настройка middleware
	router.Use(middleware.RequestID)
	router.Use(urllog.CustomLoggerMiddleware(log))
	router.Use(middleware.Recoverer)
	router.Use(middleware.URLFormat)

	// реализация слоев по работе с БД по каждому направлению
	cartRepo := storage.NewCartRepository(application.DB)
	productRepo := storage.NewProductRepository(application.DB)
	orderRepo := storage.NewOrderRepository(application.DB)
	rewardsRepo := storage.NewRewardsRepository(application.DB)
	pointsRepo := storage.NewPointsRepository(application.DB)

	// внешний эмиттер уведомлений: доставка без гарантий, одна попытка
	webhook := notify.NewWebhookClient(log, cfg.Notify.BaseURL, cfg.Notify.Timeout)

	cartService := service.NewCartService(application.Logger, application.DB, cartRepo, productRepo)
	orderService := service.NewOrderService(application.Logger, application.DB, cartRepo, orderRepo, rewardsRepo, pointsRepo)
	lifecycleService := service.NewLifecycleService(application.Logger, application.DB, orderRepo, rewardsRepo, pointsRepo, webhook, webhook)
	pointsService := service.NewPointsService(application.Logger, pointsRepo)

	// токены выпускает внешний сервис аутентификации, здесь только проверка
	router.Group(func(r chi.Router) {
		jwtMW := jwtmiddleware.NewJWTMiddleware()
		r.Use(jwtMW)
		// корзина
		r.Get("/api/cart", handlers.GetCartHandler(application.Logger, cartService))
		r.Post("/api/cart/items", handlers.AddItemHandler(application.Logger, cartService))
		r.Post("/api/cart/items/quantity", handlers.UpdateQuantityHandler(application.Logger, cartService))
		r.Post("/api/cart/clear", handlers.ClearCartHandler(application.Logger, cartService))
		// оформление и жизненный цикл заказа
		r.Post("/api/orders", handlers.PlaceOrderHandler(application.Logger, orderService))
		r.Post("/api/orders/{orderID}/confirm", handlers.ConfirmOrderHandler(application.Logger, lifecycleService))
		r.Post("/api/orders/{orderID}/delivered", handlers.ConfirmDeliveryHandler(application.Logger, lifecycleService))
		r.Post("/api/orders/{orderID}/received", handlers.ConfirmReceiptHandler(application.Logger, lifecycleService))
		r.Post("/api/orders/{orderID}/cancel", handlers.CancelOrderHandler(application.Logger, lifecycleService))
		// баллы
		r.Get("/api/points/{merchantID}", handlers.PointsHandler(application.Logger, pointsService))
	})

	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	go func() {
		log.Info("starting server", slog.String("address", cfg.HTTPServer.Address))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", slog.Any("error", err))
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	stopSign := <-stop
	log.Info("received shutdown signal", slog.String("signal", stopSign.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("server shutdown failed", slog.Any("error", err))
	}
	log.Info("server gracefully stopped")
}
