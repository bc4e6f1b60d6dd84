package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kasuwa-market/kasuwa-backend/api/controllers"
	ordercontrollers "github.com/kasuwa-market/kasuwa-backend/api/controllers/orders"
	webhookcontrollers "github.com/kasuwa-market/kasuwa-backend/api/controllers/webhooks"
	"github.com/kasuwa-market/kasuwa-backend/api/middleware"
	checkoutsvc "github.com/kasuwa-market/kasuwa-backend/internal/checkout"
	"github.com/kasuwa-market/kasuwa-backend/internal/commissions"
	"github.com/kasuwa-market/kasuwa-backend/internal/dispatch"
	"github.com/kasuwa-market/kasuwa-backend/internal/orders"
	"github.com/kasuwa-market/kasuwa-backend/internal/payments"
	"github.com/kasuwa-market/kasuwa-backend/internal/payouts"
	"github.com/kasuwa-market/kasuwa-backend/pkg/enums"
	"github.com/kasuwa-market/kasuwa-backend/pkg/logger"
)

// Dependencies carries everything the router mounts.
type Dependencies struct {
	Logger      *logger.Logger
	ReadyChecks map[string]controllers.Pinger

	Checkout    checkoutsvc.Service
	Orders      orders.Service
	Payments    payments.Service
	Commissions commissions.Service
	Payouts     payouts.Service
	Dispatch    dispatch.Service
}

func NewRouter(deps Dependencies) http.Handler {
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
		middleware.ActorContext(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive())
		r.Get("/ready", controllers.HealthReady(logg, deps.ReadyChecks))
	})

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Gateway callbacks are authenticated by signature, not by actor headers.
	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/paystack", webhookcontrollers.Paystack(deps.Payments, logg))
	})

	r.Route("/api/v1/checkout", func(r chi.Router) {
		r.Use(middleware.RequireRoles(logg, enums.RoleBuyer))
		r.Post("/", controllers.Checkout(deps.Checkout, logg))
	})

	r.Route("/api/v1/payments", func(r chi.Router) {
		r.Use(middleware.RequireRoles(logg, enums.RoleBuyer))
		r.Post("/initialize", controllers.InitializePayment(deps.Payments, logg))
		r.Post("/verify", controllers.VerifyPayment(deps.Payments, logg))
	})

	r.Route("/api/v1/orders", func(r chi.Router) {
		r.Use(middleware.RequireActor(logg))
		r.Get("/", ordercontrollers.List(deps.Orders, logg))
		r.Get("/{orderID}", ordercontrollers.Detail(deps.Orders, logg))
		r.Get("/{orderID}/history", ordercontrollers.History(deps.Orders, logg))
		r.Post("/{orderID}/transition", ordercontrollers.Transition(deps.Orders, logg))

		r.With(middleware.RequireRoles(logg, enums.RoleAdmin, enums.RoleSuperAdmin)).
			Post("/{orderID}/assign-rider", controllers.AssignRider(deps.Dispatch, logg))
	})

	r.Route("/api/v1/payouts", func(r chi.Router) {
		r.With(middleware.RequireRoles(logg, enums.RoleSeller)).
			Post("/", controllers.RequestPayout(deps.Payouts, logg))
		r.With(middleware.RequireRoles(logg, enums.RoleSeller)).
			Get("/", controllers.ListPayouts(deps.Payouts, logg))
		r.With(middleware.RequireRoles(logg, enums.RoleSeller, enums.RoleAdmin, enums.RoleSuperAdmin)).
			Get("/{payoutID}", controllers.GetPayout(deps.Payouts, logg))
		r.With(middleware.RequireRoles(logg, enums.RoleAdmin, enums.RoleSuperAdmin)).
			Post("/{payoutID}/advance", controllers.AdvancePayout(deps.Payouts, logg))
	})

	r.Route("/api/v1/sellers", func(r chi.Router) {
		r.Use(middleware.RequireRoles(logg, enums.RoleSeller))
		r.Get("/balance", controllers.SellerBalance(deps.Commissions, logg))
	})

	return r
}
