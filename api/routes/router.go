package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kbenali/resto-backend/api/controllers"
	"github.com/kbenali/resto-backend/api/middleware"
	"github.com/kbenali/resto-backend/internal/inventory"
	"github.com/kbenali/resto-backend/internal/notifications"
	"github.com/kbenali/resto-backend/internal/orders"
	"github.com/kbenali/resto-backend/internal/tables"
	"github.com/kbenali/resto-backend/pkg/config"
	"github.com/kbenali/resto-backend/pkg/db"
	"github.com/kbenali/resto-backend/pkg/enums"
	"github.com/kbenali/resto-backend/pkg/logger"
	"github.com/kbenali/resto-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	pubsubP controllers.Pinger,
	metricsReg *prometheus.Registry,
	tablesService tables.Service,
	ordersService orders.Service,
	inventoryService inventory.Service,
	notificationsService notifications.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	acquirePolicy := middleware.NewRateLimitPolicy(
		"session-acquire",
		cfg.RateLimit.AcquireWindow,
		cfg.RateLimit.AcquireIPLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, map[string]controllers.Pinger{
			"database": dbP,
			"redis":    redisClient,
			"pubsub":   pubsubP,
		}))
	})

	if metricsReg != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(metricsReg, promhttp.HandlerOpts{}))
	}

	// Customer-facing surface. Identity is the table session token, not a
	// staff credential.
	r.Route("/api/v1/public", func(r chi.Router) {
		r.Get("/tables", controllers.ListTables(tablesService, logg))
		r.With(middleware.RateLimit(acquirePolicy, redisClient, logg)).
			Post("/tables/{tableID}/session", controllers.AcquireTableSession(tablesService, logg))
		r.Get("/session", controllers.ValidateTableSession(tablesService, logg))
		r.Post("/session/orders", controllers.PlaceSessionOrder(ordersService, tablesService, logg))
		r.Post("/orders", controllers.CreateOrder(ordersService, logg))
		r.Get("/orders/{orderID}", controllers.GetOrder(ordersService, logg))
	})

	r.Route("/api/v1/staff", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		admin := string(enums.StaffRoleAdmin)
		cashier := string(enums.StaffRoleCashier)
		chef := string(enums.StaffRoleChef)

		r.Route("/tables", func(r chi.Router) {
			r.Get("/", controllers.ListTables(tablesService, logg))
			r.Get("/{tableID}", controllers.GetTable(tablesService, logg))
		})

		r.With(middleware.RequireRole(logg, admin, cashier)).
			Delete("/sessions/{sessionID}", controllers.EndTableSession(tablesService, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.ListOrders(ordersService, logg))
			r.Get("/{orderID}", controllers.GetOrder(ordersService, logg))
			r.Patch("/{orderID}/status", controllers.UpdateOrderStatus(ordersService, logg))
			r.With(middleware.RequireRole(logg, admin, cashier)).
				Post("/{orderID}/confirm", controllers.ConfirmOrder(ordersService, logg))
			r.With(middleware.RequireRole(logg, admin, cashier)).
				Post("/{orderID}/decline", controllers.DeclineOrder(ordersService, logg))
			r.With(middleware.RequireRole(logg, admin)).
				Get("/{orderID}/traces", controllers.ListOrderTraces(inventoryService, logg))
		})

		r.Route("/offline-orders", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, admin, cashier))
			r.Post("/", controllers.CreateOfflineOrder(ordersService, logg))
			r.Get("/", controllers.ListOfflineOrders(ordersService, logg))
			r.Get("/{orderID}", controllers.GetOfflineOrder(ordersService, logg))
			r.Patch("/{orderID}/status", controllers.UpdateOfflineOrderStatus(ordersService, logg))
		})

		r.Route("/ingredients", func(r chi.Router) {
			r.Get("/", controllers.ListIngredients(inventoryService, logg))
			r.Get("/{ingredientID}", controllers.GetIngredient(inventoryService, logg))
			r.With(middleware.RequireRole(logg, admin)).
				Post("/{ingredientID}/restock", controllers.RestockIngredient(inventoryService, logg))
		})

		r.With(middleware.RequireRole(logg, admin)).
			Get("/traces", controllers.ListIngredientTraces(inventoryService, logg))

		r.Route("/notifications", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, admin, cashier, chef))
			r.Get("/", controllers.ListNotifications(notificationsService, logg))
			r.Post("/{notificationID}/read", controllers.MarkNotificationRead(notificationsService, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(notificationsService, logg))
		})
	})

	return r
}
