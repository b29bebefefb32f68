package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-storefront/internal/config"
	"github.com/ariefcatur/go-storefront/internal/indexer"
	kafkax "github.com/ariefcatur/go-storefront/internal/kafka"
	"github.com/ariefcatur/go-storefront/internal/live"
	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/ariefcatur/go-storefront/internal/platform"
	"github.com/ariefcatur/go-storefront/internal/postgres"
	"github.com/ariefcatur/go-storefront/internal/reconcile"
	"github.com/ariefcatur/go-storefront/internal/redisx"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/zeromicro/go-zero/core/logx"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	cfg.ServiceName += "-worker"
	platform.SetupLogging(cfg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	logx.Must(err)
	defer db.Close()

	stores, err := platform.OpenStores(ctx, cfg, db)
	logx.Must(err)
	defer stores.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// status changes made here (expiry) are published like the api's
	prod := kafkax.NewProducer(cfg.KafkaBrokers, 1024)
	prod.Start(ctx)

	rec := &reconcile.Handler{
		Transactions: stores.Transactions,
		Events:       orders.KafkaSink{Producer: prod},
		Live:         live.Notifier{Redis: rdb},
		Cache:        rdb,
		ServiceName:  cfg.ServiceName,
	}
	tasks := asynq.NewServer(asynq.RedisClientOpt{Addr: cfg.RedisAddr}, asynq.Config{
		Concurrency: cfg.WorkerConcurrency,
		Queues:      map[string]int{reconcile.QueueExpiry: 1},
	})
	logx.Must(tasks.Start(reconcile.NewAsynqMux(rec)))

	// per-buyer index repair
	idx := &indexer.Service{Transactions: stores.Transactions, Redis: rdb, ServiceName: cfg.ServiceName}
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.WorkerGroup, indexer.Topics, cfg.WorkerConcurrency)

	go func() {
		logx.Infow("index consumer started",
			logx.Field("group", cfg.WorkerGroup),
			logx.Field("topics", indexer.Topics),
			logx.Field("workers", cfg.WorkerConcurrency),
		)
		if err := cons.Start(ctx, idx.HandleMessage); err != nil {
			logx.Errorw("consumer exit", logx.Field("err", err.Error()))
			cancel()
		}
	}()

	// graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	logx.Info("shutting down worker...")
	tasks.Shutdown()
	cancel()
	time.Sleep(500 * time.Millisecond)
	prod.Close()
	prod.WaitClosed()
}
