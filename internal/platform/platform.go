// Package platform wires the process-level pieces shared by cmd/api and
// cmd/worker: logging and the order/transaction store driver.
package platform

import (
	"context"
	"fmt"

	"github.com/ariefcatur/go-storefront/internal/config"
	"github.com/ariefcatur/go-storefront/internal/docstore"
	"github.com/ariefcatur/go-storefront/internal/httpx"
	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/zeromicro/go-zero/core/logx"
)

func SetupLogging(cfg config.Config) {
	logx.MustSetup(logx.LogConf{
		ServiceName: cfg.ServiceName,
		Mode:        "console",
		Encoding:    "json",
		Level:       cfg.LogLevel,
	})
}

type Stores struct {
	Transactions orders.TransactionStore
	Orders       orders.OrderStore
	Checks       []httpx.Check
	Close        func()
}

// OpenStores picks the order/transaction backend. Postgres stays the
// catalog and cart store either way, so db is always required.
func OpenStores(ctx context.Context, cfg config.Config, db *pgxpool.Pool) (Stores, error) {
	s := Stores{
		Checks: []httpx.Check{{Name: "postgres", Ping: db.Ping}},
		Close:  func() {},
	}
	switch cfg.StoreDriver {
	case config.StoreDriverFirestore:
		fs, err := docstore.NewClient(ctx, cfg.FirestoreProject, cfg.GoogleCredentialsFile)
		if err != nil {
			return Stores{}, err
		}
		s.Transactions = docstore.Transactions{Client: fs}
		s.Orders = docstore.Orders{Client: fs}
		s.Checks = append(s.Checks, httpx.Check{Name: "firestore", Ping: func(ctx context.Context) error {
			return docstore.Ping(ctx, fs)
		}})
		s.Close = func() { _ = fs.Close() }
	case config.StoreDriverPostgres:
		s.Transactions = &orders.Repo{DB: db}
		s.Orders = orders.OrderRepo{DB: db}
	default:
		return Stores{}, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
	return s, nil
}
