package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/avalencia/storefront-backend/api/controllers"
	"github.com/avalencia/storefront-backend/api/middleware"
	"github.com/avalencia/storefront-backend/internal/cart"
	"github.com/avalencia/storefront-backend/internal/notifications"
	"github.com/avalencia/storefront-backend/internal/orders"
	"github.com/avalencia/storefront-backend/internal/products"
	"github.com/avalencia/storefront-backend/internal/promotions"
	"github.com/avalencia/storefront-backend/internal/users"
	"github.com/avalencia/storefront-backend/pkg/config"
	"github.com/avalencia/storefront-backend/pkg/db"
	"github.com/avalencia/storefront-backend/pkg/enums"
	"github.com/avalencia/storefront-backend/pkg/logger"
	"github.com/avalencia/storefront-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	userService users.Service,
	productService products.Service,
	cartService cart.Service,
	orderService orders.Service,
	promotionService promotions.Service,
	notificationService notifications.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(loginPolicy, redisClient, logg)).Post("/login", controllers.AuthLogin(userService, logg))
		r.With(middleware.AuthRateLimit(registerPolicy, redisClient, logg)).Post("/register", controllers.AuthRegister(userService, logg))
	})

	// Catalog reads are public.
	r.Route("/api/v1/products", func(r chi.Router) {
		r.Get("/", controllers.ListProducts(productService, logg))
		r.Get("/{productID}", controllers.GetProduct(productService, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Route("/me", func(r chi.Router) {
			r.Get("/", controllers.MyProfile(userService, logg))
			r.Get("/addresses", controllers.ListAddresses(userService, logg))
			r.Post("/addresses", controllers.CreateAddress(userService, logg))
			r.Delete("/addresses/{addressID}", controllers.DeleteAddress(userService, logg))
			r.Get("/coupons", controllers.MyCoupons(promotionService, logg))
		})

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.GetCart(cartService, logg))
			r.Post("/items", controllers.AddCartItem(cartService, logg))
			r.Patch("/items/{itemID}", controllers.UpdateCartItem(cartService, logg))
			r.Delete("/items/{itemID}", controllers.RemoveCartItem(cartService, logg))
			r.Delete("/", controllers.ClearCart(cartService, logg))
		})

		r.Post("/checkout", controllers.Checkout(orderService, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.ListOrders(orderService, logg))
			r.Get("/{orderID}", controllers.GetOrder(orderService, logg))
			r.Post("/{orderID}/cancel", controllers.CancelOrder(orderService, logg))
		})

		r.Route("/coupons", func(r chi.Router) {
			r.Post("/verify", controllers.VerifyCoupon(promotionService, logg))
			r.Post("/redeem", controllers.RedeemCoupon(promotionService, logg))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(notificationService, logg))
			r.Post("/{notificationID}/read", controllers.MarkNotificationRead(notificationService, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(notificationService, logg))
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole(string(enums.UserRoleAdmin), logg))

			r.Route("/products", func(r chi.Router) {
				r.Get("/", controllers.AdminListProducts(productService, logg))
				r.Post("/", controllers.AdminCreateProduct(productService, logg))
				r.Patch("/{productID}", controllers.AdminUpdateProduct(productService, logg))
				r.Delete("/{productID}", controllers.AdminDeleteProduct(productService, logg))
				r.Put("/{productID}/stock", controllers.AdminSetStock(productService, logg))
			})

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", controllers.AdminListOrders(orderService, logg))
				r.Get("/{orderID}", controllers.AdminGetOrder(orderService, logg))
				r.Patch("/{orderID}/status", controllers.AdminUpdateOrderStatus(orderService, logg))
			})

			r.Route("/promotions", func(r chi.Router) {
				r.Get("/", controllers.AdminListPromotions(promotionService, logg))
				r.Post("/", controllers.AdminCreatePromotion(promotionService, logg))
				r.Get("/{promotionID}", controllers.AdminGetPromotion(promotionService, logg))
			})
		})
	})

	return r
}
