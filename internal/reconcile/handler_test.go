package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/ariefcatur/go-storefront/internal/orders/ordertest"
	"github.com/google/go-cmp/cmp"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

var (
	created = time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	later   = time.Date(2026, 10, 15, 9, 5, 0, 0, time.UTC)
)

func seed(t *testing.T, txs *ordertest.Transactions, ref, buyer string) orders.Transaction {
	t.Helper()
	tx := orders.Transaction{
		ReferenceID:      ref,
		GatewayPaymentID: "qr_1",
		Mode:             orders.ModeGateway,
		BuyerID:          buyer,
		Customer:         orders.Customer{ID: buyer, Name: "Budi", Email: "budi@example.com"},
		Description:      "Pesanan Warung Bu Sri",
		Items: []orders.LineItem{
			{ProductID: "p1", Name: "Nasi Goreng", Quantity: 2, UnitPrice: decimal.NewFromInt(25000), Subtotal: decimal.NewFromInt(50000)},
		},
		Amount:    decimal.NewFromInt(50000),
		Currency:  "IDR",
		Status:    orders.StatusPending,
		Method:    orders.MethodQRIS,
		QRString:  "000201",
		CreatedAt: created,
		UpdatedAt: created,
	}
	ctx := context.Background()
	if err := txs.PutGlobal(ctx, tx); err != nil {
		t.Fatal(err)
	}
	if buyer != "" {
		if err := txs.PutBuyer(ctx, tx); err != nil {
			t.Fatal(err)
		}
	}
	return tx
}

func newHandler(txs *ordertest.Transactions, rec *ordertest.Recorder) *Handler {
	return &Handler{
		Transactions: txs,
		Events:       rec,
		Live:         rec,
		ServiceName:  "storefront-test",
		Now:          func() time.Time { return later },
	}
}

func TestPaidCallbackIdempotent(t *testing.T) {
	txs := ordertest.NewTransactions()
	rec := &ordertest.Recorder{}
	seed(t, txs, "order_abc", "u1")
	h := newHandler(txs, rec)
	ctx := context.Background()

	res, err := h.ApplyGatewayCallback(ctx, "qr_1", "order_abc", "PAID")
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != OutcomeApplied || res.Status != orders.StatusPaid {
		t.Fatalf("first = %+v", res)
	}
	once, _ := txs.Get(ctx, "order_abc")
	writes := txs.Writes

	res, err = h.ApplyGatewayCallback(ctx, "qr_1", "order_abc", "PAID")
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != OutcomeDuplicate {
		t.Fatalf("redelivery = %+v", res)
	}
	twice, _ := txs.Get(ctx, "order_abc")
	if diff := cmp.Diff(once, twice); diff != "" {
		t.Fatalf("redelivery changed record (-once +twice):\n%s", diff)
	}
	if txs.Writes != writes {
		t.Fatal("duplicate callback wrote to the store")
	}
	if got := rec.Types(orders.TopicTransactionStatusChanged); len(got) != 1 {
		t.Fatalf("status events = %v", got)
	}
	if len(rec.Notified) != 1 || rec.Notified[0].BuyerID != "u1" {
		t.Fatalf("live = %+v", rec.Notified)
	}
}

func TestUnknownReferenceCreatesNothing(t *testing.T) {
	txs := ordertest.NewTransactions()
	h := newHandler(txs, &ordertest.Recorder{})
	_, err := h.ApplyGatewayCallback(context.Background(), "qr_x", "nope", "PAID")
	if !errors.Is(err, orders.ErrUnknownReference) {
		t.Fatalf("err = %v", err)
	}
	if txs.GlobalCount() != 0 {
		t.Fatal("callback created a transaction")
	}
}

func TestPartialMergePreservesFields(t *testing.T) {
	txs := ordertest.NewTransactions()
	orig := seed(t, txs, "order_abc", "u1")
	h := newHandler(txs, &ordertest.Recorder{})
	ctx := context.Background()

	if _, err := h.ApplyGatewayCallback(ctx, "qr_2", "order_abc", "PAID"); err != nil {
		t.Fatal(err)
	}
	for name, get := range map[string]func() (*orders.Transaction, error){
		"global": func() (*orders.Transaction, error) { return txs.Get(ctx, "order_abc") },
		"buyer":  func() (*orders.Transaction, error) { return txs.GetBuyer(ctx, "u1", "order_abc") },
	} {
		got, err := get()
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		want := orig
		want.Status = orders.StatusPaid
		want.GatewayPaymentID = "qr_2"
		want.UpdatedAt = later
		if diff := cmp.Diff(want, *got); diff != "" {
			t.Errorf("%s record (-want +got):\n%s", name, diff)
		}
	}
}

func TestEmptyPaymentIDKeepsStored(t *testing.T) {
	txs := ordertest.NewTransactions()
	seed(t, txs, "r1", "")
	h := newHandler(txs, &ordertest.Recorder{})
	if _, err := h.ApplyGatewayCallback(context.Background(), "", "r1", "EXPIRED"); err != nil {
		t.Fatal(err)
	}
	got, _ := txs.Get(context.Background(), "r1")
	if got.GatewayPaymentID != "qr_1" || got.Status != orders.StatusExpired {
		t.Fatalf("got %+v", got)
	}
}

func TestStaleCallbacksIgnored(t *testing.T) {
	cases := []struct {
		name     string
		path     []string
		want     orders.Status
		lastWant Outcome
	}{
		{"late pending after paid", []string{"PAID", "PENDING"}, orders.StatusPaid, OutcomeStale},
		{"paid after expired", []string{"EXPIRED", "PAID"}, orders.StatusExpired, OutcomeStale},
		{"forward chain", []string{"PAID", "PROCESSING", "SHIPPED", "COMPLETED"}, orders.StatusCompleted, OutcomeApplied},
		{"expired after paid", []string{"PAID", "EXPIRED"}, orders.StatusPaid, OutcomeStale},
		{"failed after processing", []string{"PAID", "PROCESSING", "FAILED"}, orders.StatusProcessing, OutcomeStale},
		{"shipped then paid", []string{"SHIPPED", "PAID"}, orders.StatusShipped, OutcomeStale},
		{"failed is terminal", []string{"FAILED", "REFUNDED"}, orders.StatusFailed, OutcomeStale},
		{"unknown passthrough", []string{"REFUNDED"}, orders.Status("refunded"), OutcomeApplied},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			txs := ordertest.NewTransactions()
			seed(t, txs, "r1", "u1")
			h := newHandler(txs, &ordertest.Recorder{})
			var last Result
			for _, st := range c.path {
				var err error
				last, err = h.ApplyGatewayCallback(context.Background(), "qr_1", "r1", st)
				if err != nil {
					t.Fatal(err)
				}
			}
			if last.Outcome != c.lastWant {
				t.Fatalf("outcome = %s, want %s", last.Outcome, c.lastWant)
			}
			got, _ := txs.Get(context.Background(), "r1")
			if got.Status != c.want {
				t.Fatalf("status = %s, want %s", got.Status, c.want)
			}
		})
	}
}

func TestMissingBuyerCopySkipped(t *testing.T) {
	txs := ordertest.NewTransactions()
	seed(t, txs, "r1", "u1")
	txs.DeleteBuyer("u1", "r1")
	h := newHandler(txs, &ordertest.Recorder{})

	res, err := h.ApplyGatewayCallback(context.Background(), "qr_1", "r1", "PAID")
	if err != nil || res.Outcome != OutcomeApplied {
		t.Fatalf("res = %+v, %v", res, err)
	}
	if _, err := txs.GetBuyer(context.Background(), "u1", "r1"); !errors.Is(err, orders.ErrNotFound) {
		t.Fatal("callback must not create the per-buyer copy")
	}
}

func TestBuyerMergeFailureIsNotFatal(t *testing.T) {
	txs := ordertest.NewTransactions()
	seed(t, txs, "r1", "u1")
	txs.FailMergeBuyer = errors.New("index down")
	h := newHandler(txs, &ordertest.Recorder{})
	if _, err := h.ApplyGatewayCallback(context.Background(), "qr_1", "r1", "PAID"); err != nil {
		t.Fatalf("err = %v", err)
	}
	got, _ := txs.Get(context.Background(), "r1")
	if got.Status != orders.StatusPaid {
		t.Fatalf("global = %s", got.Status)
	}
}

func TestGlobalStoreFailureSurfaces(t *testing.T) {
	txs := ordertest.NewTransactions()
	seed(t, txs, "r1", "u1")
	txs.FailMergeGlobal = errors.New("db down")
	h := newHandler(txs, &ordertest.Recorder{})
	_, err := h.ApplyGatewayCallback(context.Background(), "qr_1", "r1", "PAID")
	if err == nil || errors.Is(err, orders.ErrUnknownReference) {
		t.Fatalf("err = %v", err)
	}
}

func TestMalformedCallback(t *testing.T) {
	h := newHandler(ordertest.NewTransactions(), &ordertest.Recorder{})
	if _, err := h.ApplyGatewayCallback(context.Background(), "x", "", "PAID"); !errors.Is(err, orders.ErrValidation) {
		t.Fatalf("missing ref: %v", err)
	}
	if _, err := h.ApplyGatewayCallback(context.Background(), "x", "r1", " "); !errors.Is(err, orders.ErrValidation) {
		t.Fatalf("missing status: %v", err)
	}
}

func TestStatusCacheInvalidated(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	txs := ordertest.NewTransactions()
	seed(t, txs, "r1", "")
	_ = mr.Set("tx_status:r1", `{"status":"pending"}`)
	h := newHandler(txs, &ordertest.Recorder{})
	h.Cache = rdb

	if _, err := h.ApplyGatewayCallback(context.Background(), "qr_1", "r1", "PAID"); err != nil {
		t.Fatal(err)
	}
	if mr.Exists("tx_status:r1") {
		t.Fatal("cached status survived the update")
	}
}
