package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/ariefcatur/go-storefront/internal/cart"
	"github.com/ariefcatur/go-storefront/internal/catalog"
	"github.com/ariefcatur/go-storefront/internal/checkout"
	"github.com/ariefcatur/go-storefront/internal/identity"
	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/ariefcatur/go-storefront/internal/payment"
	"github.com/ariefcatur/go-storefront/internal/reconcile"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"
)

// Check is one dependency probed by /readyz.
type Check struct {
	Name string
	Ping func(ctx context.Context) error
}

type Deps struct {
	Catalog      catalog.Reader
	Carts        *cart.Manager
	Checkout     *checkout.Service
	Reconcile    *reconcile.Handler
	Transactions orders.TransactionStore
	Orders       orders.OrderStore
	Payments     payment.StatusChecker // optional, enables refresh
	Verifier     identity.Verifier
	Cache        redis.Cmdable // optional transaction status cache
	Live         http.Handler  // optional

	CallbackToken  string
	MerchantAPIKey string
	CORSOrigins    []string
	Checks         []Check
}

func NewRouter(d Deps) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Device-ID", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", readyz(d.Checks))

	optional := identity.Middleware(d.Verifier, false)
	required := identity.Middleware(d.Verifier, true)

	// websocket connections outlive the request timeout below
	if d.Live != nil {
		r.With(required).Get("/live", d.Live.ServeHTTP)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(15 * time.Second))

		(&catalogHandler{Catalog: d.Catalog}).register(r)
		(&webhookHandler{Reconcile: d.Reconcile, Token: d.CallbackToken}).register(r)

		r.Group(func(r chi.Router) {
			r.Use(optional)
			(&cartHandler{Carts: d.Carts}).register(r)
			(&checkoutHandler{Checkout: d.Checkout}).register(r)
		})

		r.Group(func(r chi.Router) {
			r.Use(required)
			(&transactionsHandler{
				Transactions: d.Transactions,
				Payments:     d.Payments,
				Reconcile:    d.Reconcile,
				Cache:        d.Cache,
			}).register(r)
			(&ordersHandler{Orders: d.Orders, Checkout: d.Checkout}).register(r)
		})

		r.Group(func(r chi.Router) {
			r.Use(merchantKey(d.MerchantAPIKey))
			(&merchantHandler{Checkout: d.Checkout}).register(r)
		})
	})
	return r
}

func readyz(checks []Check) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		out := map[string]string{}
		code := http.StatusOK
		for _, c := range checks {
			if err := c.Ping(ctx); err != nil {
				out[c.Name] = err.Error()
				code = http.StatusServiceUnavailable
				continue
			}
			out[c.Name] = "ok"
		}
		writeJSON(w, code, out)
	}
}

func withTrace(r *http.Request) context.Context {
	return checkout.WithTraceID(r.Context(), middleware.GetReqID(r.Context()))
}
