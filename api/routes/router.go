package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/craftandcart/shopfront-backend/api/controllers"
	"github.com/craftandcart/shopfront-backend/api/middleware"
	"github.com/craftandcart/shopfront-backend/internal/gateway"
	"github.com/craftandcart/shopfront-backend/internal/orders"
	"github.com/craftandcart/shopfront-backend/internal/reconcile"
	"github.com/craftandcart/shopfront-backend/internal/snapshot"
	"github.com/craftandcart/shopfront-backend/pkg/config"
	"github.com/craftandcart/shopfront-backend/pkg/db"
	"github.com/craftandcart/shopfront-backend/pkg/logger"
	"github.com/craftandcart/shopfront-backend/pkg/outbox/idempotency"
	"github.com/craftandcart/shopfront-backend/pkg/redis"
)

// RouterParams carries everything the HTTP surface needs.
type RouterParams struct {
	Config          *config.Config
	Logger          *logger.Logger
	DB              db.Pinger
	Redis           *redis.Client
	SnapshotService snapshot.Service
	GatewayAdapter  *gateway.Adapter
	CallbackGuard   *idempotency.Manager
	Reconciler      reconcile.Service
	OrdersService   orders.Service
}

func NewRouter(params RouterParams) http.Handler {
	cfg := params.Config
	logg := params.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readyDeps(params)))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/checkout", func(r chi.Router) {
			r.Post("/", controllers.BeginCheckout(params.SnapshotService, params.GatewayAdapter, logg))
			r.Get("/{token}", controllers.GetCheckoutSession(params.SnapshotService, logg))
		})

		r.Route("/payments", func(r chi.Router) {
			callback := controllers.PaymentCallback(
				params.GatewayAdapter,
				callbackGuard(params.CallbackGuard),
				params.Reconciler,
				params.OrdersService,
				logg,
			)
			r.Get("/callback", callback)
			r.Post("/callback", callback)
		})

		r.Get("/orders/{orderNumber}", controllers.OrderDetail(params.OrdersService, logg))
	})

	return r
}

func readyDeps(params RouterParams) map[string]controllers.Pinger {
	deps := map[string]controllers.Pinger{}
	if params.DB != nil {
		deps["database"] = params.DB
	}
	if params.Redis != nil {
		deps["redis"] = params.Redis
	}
	return deps
}

// callbackGuard keeps a nil manager from becoming a non-nil interface value.
func callbackGuard(guard *idempotency.Manager) controllers.CallbackGuard {
	if guard == nil {
		return nil
	}
	return guard
}
