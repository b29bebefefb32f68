package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-storefront/internal/cart"
	"github.com/ariefcatur/go-storefront/internal/catalog"
	"github.com/ariefcatur/go-storefront/internal/checkout"
	"github.com/ariefcatur/go-storefront/internal/config"
	"github.com/ariefcatur/go-storefront/internal/httpx"
	"github.com/ariefcatur/go-storefront/internal/identity"
	kafkax "github.com/ariefcatur/go-storefront/internal/kafka"
	"github.com/ariefcatur/go-storefront/internal/live"
	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/ariefcatur/go-storefront/internal/payment/xendit"
	"github.com/ariefcatur/go-storefront/internal/platform"
	"github.com/ariefcatur/go-storefront/internal/postgres"
	"github.com/ariefcatur/go-storefront/internal/reconcile"
	"github.com/ariefcatur/go-storefront/internal/redisx"
	"github.com/bwmarrin/snowflake"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/zeromicro/go-zero/core/logx"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	platform.SetupLogging(cfg)
	if err := cfg.Validate(); err != nil {
		logx.Must(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	logx.Must(err)
	defer db.Close()
	logx.Must(postgres.Migrate(ctx, db))

	stores, err := platform.OpenStores(ctx, cfg, db)
	logx.Must(err)
	defer stores.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producer
	prod := kafkax.NewProducer(cfg.KafkaBrokers, 1024)
	prod.Start(ctx)

	// delayed expiry tasks
	tasks := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer tasks.Close()

	verifier, err := newVerifier(ctx, cfg)
	logx.Must(err)

	node, err := snowflake.NewNode(cfg.SnowflakeNode)
	logx.Must(err)

	gateway := xendit.New(xendit.Config{
		BaseURL:     cfg.XenditBaseURL,
		SecretKey:   cfg.XenditSecretKey,
		CallbackURL: cfg.PublicBaseURL + httpx.CallbackPath,
		Timeout:     cfg.XenditTimeout,
		VAExpiry:    cfg.VAExpiry,
	})

	cat := &catalog.Repo{DB: db}
	carts := &cart.Manager{
		Catalog: cat,
		Device:  cart.DeviceStore{Redis: rdb, TTL: redisx.TTLDeviceCart},
		Buyers:  cart.BuyerStore{DB: db},
	}
	events := orders.KafkaSink{Producer: prod}
	notifier := live.Notifier{Redis: rdb}

	svc := &checkout.Service{
		Catalog:      cat,
		Orders:       stores.Orders,
		Transactions: stores.Transactions,
		Gateway:      gateway,
		Guard:        checkout.RedisGuard{Redis: rdb, LockTTL: cfg.CheckoutLockTTL},
		Events:       events,
		Live:         notifier,
		Expiry:       reconcile.ExpiryScheduler{Client: tasks},
		Carts:        carts,
		IDs:          node,
		ServiceName:  cfg.ServiceName,
		HandoffTTL:   cfg.HandoffOrderTTL,
	}
	rec := &reconcile.Handler{
		Transactions: stores.Transactions,
		Events:       events,
		Live:         notifier,
		Cache:        rdb,
		ServiceName:  cfg.ServiceName,
	}

	hub := live.NewHub(rdb, func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		for _, o := range cfg.CORSOrigins {
			if o == "*" || o == origin {
				return true
			}
		}
		return origin == ""
	})

	router := httpx.NewRouter(httpx.Deps{
		Catalog:        cat,
		Carts:          carts,
		Checkout:       svc,
		Reconcile:      rec,
		Transactions:   stores.Transactions,
		Orders:         stores.Orders,
		Payments:       gateway,
		Verifier:       verifier,
		Cache:          rdb,
		Live:           hub,
		CallbackToken:  cfg.XenditCallbackToken,
		MerchantAPIKey: cfg.MerchantAPIKey,
		CORSOrigins:    cfg.CORSOrigins,
		Checks: append(stores.Checks, httpx.Check{Name: "redis", Ping: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}}),
	})

	// HTTP server
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 10 * time.Second}

	// graceful shutdown
	go func() {
		logx.Infow("http listening", logx.Field("addr", cfg.HTTPAddr), logx.Field("store", cfg.StoreDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logx.Must(err)
		}
	}()

	// wait signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logx.Info("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	hub.Close()
	_ = srv.Shutdown(ctx2)
	prod.Close()      // stop accepting, flush inbox
	cancel()          // stop producer loop
	prod.WaitClosed() // drain
}

func newVerifier(ctx context.Context, cfg config.Config) (identity.Verifier, error) {
	if cfg.AuthDriver == config.AuthDriverFirebase {
		return identity.NewFirebaseVerifier(ctx, cfg.FirestoreProject, cfg.GoogleCredentialsFile)
	}
	return identity.JWTVerifier{Secret: []byte(cfg.JWTSecret)}, nil
}
