package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/avalencia/storefront-backend/api/routes"
	"github.com/avalencia/storefront-backend/internal/cart"
	"github.com/avalencia/storefront-backend/internal/notifications"
	"github.com/avalencia/storefront-backend/internal/orders"
	"github.com/avalencia/storefront-backend/internal/products"
	"github.com/avalencia/storefront-backend/internal/promotions"
	"github.com/avalencia/storefront-backend/internal/users"
	"github.com/avalencia/storefront-backend/pkg/config"
	"github.com/avalencia/storefront-backend/pkg/db"
	"github.com/avalencia/storefront-backend/pkg/logger"
	"github.com/avalencia/storefront-backend/pkg/metrics"
	"github.com/avalencia/storefront-backend/pkg/migrate"
	"github.com/avalencia/storefront-backend/pkg/outbox"
	"github.com/avalencia/storefront-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	conn := dbClient.DB()
	outboxService := outbox.NewService(outbox.NewRepository(conn), logg)
	checkoutMetrics := metrics.NewCheckoutMetrics(prometheus.DefaultRegisterer)

	userService, err := users.NewService(users.ServiceParams{
		Repo:           users.NewRepository(conn),
		PasswordConfig: cfg.Password,
		JWTConfig:      cfg.JWT,
	})
	requireService(logg, "users", err)

	productRepo := products.NewRepository(conn)
	productService, err := products.NewService(productRepo, dbClient)
	requireService(logg, "products", err)

	cartRepo := cart.NewRepository(conn)
	cartService, err := cart.NewService(cartRepo, productRepo, dbClient)
	requireService(logg, "cart", err)

	promotionService, err := promotions.NewService(promotions.NewRepository(conn), dbClient, outboxService)
	requireService(logg, "promotions", err)

	orderService, err := orders.NewService(orders.ServiceParams{
		Repo:            orders.NewRepository(conn),
		CartRepo:        cartRepo,
		ProductRepo:     productRepo,
		UserRepo:        users.NewRepository(conn),
		Coupons:         promotionService,
		Tx:              dbClient,
		Outbox:          outboxService,
		CheckoutMetrics: checkoutMetrics,
	})
	requireService(logg, "orders", err)

	notificationService, err := notifications.NewService(notifications.NewRepository(conn))
	requireService(logg, "notifications", err)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})

	metricsAddr := ":" + cfg.App.MetricsPort
	go func() {
		logg.Info(ctx, "starting metrics listener on "+metricsAddr)
		if err := http.ListenAndServe(metricsAddr, metrics.Handler()); err != nil && err != http.ErrServerClosed {
			logg.Error(ctx, "metrics listener stopped unexpectedly", err)
		}
	}()

	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			userService,
			productService,
			cartService,
			orderService,
			promotionService,
			notificationService,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func requireService(logg *logger.Logger, name string, err error) {
	if err == nil {
		return
	}
	logg.Error(context.Background(), "failed to create "+name+" service", err)
	os.Exit(1)
}
