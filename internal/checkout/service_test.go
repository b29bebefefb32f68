package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ariefcatur/go-storefront/internal/cart"
	"github.com/ariefcatur/go-storefront/internal/catalog"
	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/ariefcatur/go-storefront/internal/orders/ordertest"
	"github.com/ariefcatur/go-storefront/internal/payment"
	"github.com/bwmarrin/snowflake"
	"github.com/google/go-cmp/cmp"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

type fakeGateway struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (g *fakeGateway) CreateQRIS(_ context.Context, amount decimal.Decimal, ref, _ string) (*payment.QRISIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	exp := testNow.Add(30 * time.Minute)
	return &payment.QRISIntent{ID: "qr_" + ref, QRString: "00020101" + amount.String(), ExpiresAt: &exp}, nil
}

func (g *fakeGateway) CreateVirtualAccount(_ context.Context, _ decimal.Decimal, ref, bank, _ string) (*payment.VAIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	if bank == "" {
		bank = "BCA"
	}
	exp := testNow.Add(24 * time.Hour)
	return &payment.VAIntent{ID: "va_" + ref, AccountNumber: "8808000123", BankCode: bank, ExpiresAt: &exp}, nil
}

type expiryRecorder struct {
	refs []string
	at   []time.Time
}

func (e *expiryRecorder) ScheduleExpiry(_ context.Context, ref string, at time.Time) error {
	e.refs = append(e.refs, ref)
	e.at = append(e.at, at)
	return nil
}

var testNow = time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC)

type fixture struct {
	svc     *Service
	txs     *ordertest.Transactions
	ords    *ordertest.Orders
	gw      *fakeGateway
	events  *ordertest.Recorder
	expiry  *expiryRecorder
	catalog *catalog.Memory
	carts   *cart.Manager
	guard   RedisGuard
}

func intp(i int) *int { return &i }

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cat := catalog.NewMemory()
	cat.PutMerchant(catalog.Merchant{ID: "m1", Name: "Warung Bu Sri", Phone: "0812-3456-789"})
	cat.PutMerchant(catalog.Merchant{ID: "m2", Name: "Tanpa Nomor"})
	cat.PutProduct(catalog.ProductSnapshot{ID: "p1", Name: "Nasi Goreng", MerchantID: "m1", UnitPrice: decimal.NewFromInt(15000), PriceVisible: true})
	cat.PutProduct(catalog.ProductSnapshot{ID: "p2", Name: "Es Teh", MerchantID: "m1", UnitPrice: decimal.NewFromInt(5000), Stock: intp(1), PriceVisible: true})
	cat.PutProduct(catalog.ProductSnapshot{ID: "p9", Name: "Kopi", MerchantID: "m2", UnitPrice: decimal.NewFromInt(8000), PriceVisible: true})

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatal(err)
	}
	carts := &cart.Manager{Catalog: cat, Device: cart.NewMemoryStore(), Buyers: cart.NewMemoryStore()}
	f := &fixture{
		txs:     ordertest.NewTransactions(),
		ords:    ordertest.NewOrders(),
		gw:      &fakeGateway{},
		events:  &ordertest.Recorder{},
		expiry:  &expiryRecorder{},
		catalog: cat,
		carts:   carts,
		guard:   RedisGuard{Redis: rdb, LockTTL: 30 * time.Second},
	}
	f.svc = &Service{
		Catalog:      cat,
		Orders:       f.ords,
		Transactions: f.txs,
		Gateway:      f.gw,
		Guard:        f.guard,
		Events:       f.events,
		Live:         f.events,
		Expiry:       f.expiry,
		Carts:        carts,
		IDs:          node,
		ServiceName:  "storefront-test",
		HandoffTTL:   7 * 24 * time.Hour,
		Now:          func() time.Time { return testNow },
	}
	return f
}

func TestHandoffOrderExample(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	o, err := f.svc.CreateHandoffOrder(ctx, HandoffRequest{
		Buyer: orders.Customer{ID: "u1", Name: "Budi"},
		Items: []ItemRequest{{ProductID: "p1", Quantity: 2}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !o.Subtotal.Equal(decimal.NewFromInt(30000)) || o.Status != orders.StatusPending {
		t.Fatalf("order = %+v", o)
	}
	if o.BuyerConfirmed || o.MerchantConfirmed {
		t.Fatal("new order must not be confirmed")
	}
	if o.MerchantPhone != "628123456789" || o.HandoffURL == "" {
		t.Fatalf("handoff fields = %q %q", o.MerchantPhone, o.HandoffURL)
	}
	if o.ExpiresAt == nil || !o.ExpiresAt.Equal(testNow.Add(7*24*time.Hour)) {
		t.Fatalf("ExpiresAt = %v", o.ExpiresAt)
	}

	confirmed, err := f.svc.ConfirmOrder(ctx, Action{BuyerID: "u1", OrderID: o.ID, Actor: orders.ActorBuyer})
	if err != nil {
		t.Fatal(err)
	}
	if !confirmed.BuyerConfirmed || confirmed.MerchantConfirmed || confirmed.Status != orders.StatusPending {
		t.Fatalf("after buyer confirm: %+v", confirmed)
	}

	both, err := f.svc.ConfirmOrder(ctx, Action{BuyerID: "u1", OrderID: o.ID, Actor: orders.ActorMerchant, MerchantID: "m1"})
	if err != nil {
		t.Fatal(err)
	}
	if both.Status != orders.StatusPending {
		t.Fatalf("dual confirmation must not complete, status = %s", both.Status)
	}

	want := []string{orders.EventHandoffOrderCreated}
	if diff := cmp.Diff(want, f.events.Types(orders.TopicHandoffOrderCreated)); diff != "" {
		t.Fatalf("events (-want +got):\n%s", diff)
	}
}

func TestHandoffOrderRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	buyer := orders.Customer{ID: "u1"}

	_, err := f.svc.CreateHandoffOrder(ctx, HandoffRequest{Buyer: buyer, Items: []ItemRequest{{ProductID: "p9", Quantity: 1}}})
	if !errors.Is(err, orders.ErrMissingMerchantContact) {
		t.Errorf("no phone: err = %v", err)
	}

	_, err = f.svc.CreateHandoffOrder(ctx, HandoffRequest{Buyer: buyer, Items: []ItemRequest{
		{ProductID: "p1", Quantity: 1}, {ProductID: "p9", Quantity: 1},
	}})
	var cm *cart.CrossMerchantCartError
	if !errors.As(err, &cm) {
		t.Errorf("two merchants: err = %v", err)
	}

	_, err = f.svc.CreateHandoffOrder(ctx, HandoffRequest{Buyer: buyer, Items: []ItemRequest{{ProductID: "p2", Quantity: 2}}})
	if !errors.Is(err, orders.ErrOutOfStock) {
		t.Errorf("stock: err = %v", err)
	}

	tampered := decimal.NewFromInt(1000)
	_, err = f.svc.CreateHandoffOrder(ctx, HandoffRequest{Buyer: buyer, Subtotal: &tampered, Items: []ItemRequest{{ProductID: "p1", Quantity: 1}}})
	if !errors.Is(err, orders.ErrSubtotalMismatch) {
		t.Errorf("subtotal: err = %v", err)
	}

	_, err = f.svc.CreateHandoffOrder(ctx, HandoffRequest{Buyer: orders.Customer{}, Items: []ItemRequest{{ProductID: "p1", Quantity: 1}}})
	if !errors.Is(err, orders.ErrValidation) {
		t.Errorf("no buyer: err = %v", err)
	}

	if list, _ := f.ords.ListByBuyer(ctx, "u1"); len(list) != 0 {
		t.Fatalf("rejected checkouts wrote %d orders", len(list))
	}
}

func TestHandoffOrderFromStoredCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := cart.Owner{DeviceID: "dev-1", BuyerID: "u1"}
	if _, err := f.carts.Add(ctx, owner, "p1", 3); err != nil {
		t.Fatal(err)
	}

	o, err := f.svc.CreateHandoffOrder(ctx, HandoffRequest{Buyer: orders.Customer{ID: "u1"}, Cart: &owner})
	if err != nil {
		t.Fatal(err)
	}
	if !o.Subtotal.Equal(decimal.NewFromInt(45000)) {
		t.Fatalf("subtotal = %s", o.Subtotal)
	}
	left, _ := f.carts.Load(ctx, owner)
	if !left.Empty() {
		t.Fatal("cart not cleared after checkout")
	}
}

func TestGatewayOrderExample(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tx, err := f.svc.CreateGatewayOrder(ctx, GatewayRequest{
		ReferenceID: "order_abc",
		Amount:      decimal.NewFromInt(50000),
		Method:      orders.MethodQRIS,
		Buyer:       orders.Customer{ID: "u1", Name: "Budi"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if tx.GatewayPaymentID != "qr_order_abc" || tx.QRString == "" {
		t.Fatalf("tx = %+v", tx)
	}

	global, err := f.txs.Get(ctx, "order_abc")
	if err != nil || global.Status != orders.StatusPending {
		t.Fatalf("global = %+v, %v", global, err)
	}
	list, _ := f.txs.ListByBuyer(ctx, "u1")
	if len(list) != 1 || list[0].ReferenceID != "order_abc" {
		t.Fatalf("per-buyer listing = %+v", list)
	}
	if diff := cmp.Diff([]string{"order_abc"}, f.expiry.refs); diff != "" {
		t.Fatalf("expiry (-want +got):\n%s", diff)
	}
	if got := f.events.Types(orders.TopicTransactionCreated); len(got) != 1 {
		t.Fatalf("events = %v", got)
	}
	if len(f.events.Notified) != 1 || f.events.Notified[0].BuyerID != "u1" {
		t.Fatalf("live = %+v", f.events.Notified)
	}
}

func TestGatewayOrderVirtualAccount(t *testing.T) {
	f := newFixture(t)
	tx, err := f.svc.CreateGatewayOrder(context.Background(), GatewayRequest{
		Amount: decimal.NewFromInt(75000),
		Method: orders.MethodVirtualAccount,
	})
	if err != nil {
		t.Fatal(err)
	}
	if tx.ReferenceID == "" || tx.BankCode != "BCA" || tx.AccountNumber == "" || tx.BuyerID != "" {
		t.Fatalf("tx = %+v", tx)
	}
	if len(f.events.Notified) != 0 {
		t.Fatal("guest checkout has no live feed")
	}
}

func TestGatewayOrderSubtotalTamper(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.CreateGatewayOrder(context.Background(), GatewayRequest{
		ReferenceID: "r1",
		Amount:      decimal.NewFromInt(50000),
		Method:      orders.MethodQRIS,
		Items: []orders.LineItem{
			{ProductID: "p1", Quantity: 2, UnitPrice: decimal.NewFromInt(15000), Subtotal: decimal.NewFromInt(30000)},
		},
	})
	if !errors.Is(err, orders.ErrSubtotalMismatch) {
		t.Fatalf("err = %v", err)
	}
	if f.gw.calls != 0 || f.txs.GlobalCount() != 0 {
		t.Fatalf("tampered checkout reached gateway=%d store=%d", f.gw.calls, f.txs.GlobalCount())
	}

	// within 0.01 passes
	_, err = f.svc.CreateGatewayOrder(context.Background(), GatewayRequest{
		ReferenceID: "r2",
		Amount:      decimal.RequireFromString("30000.01"),
		Method:      orders.MethodQRIS,
		Items: []orders.LineItem{
			{ProductID: "p1", Quantity: 2, UnitPrice: decimal.NewFromInt(15000), Subtotal: decimal.NewFromInt(30000)},
		},
	})
	if err != nil {
		t.Fatalf("within tolerance: %v", err)
	}
}

func TestGatewayFailureWritesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.gw.err = &payment.GatewayError{StatusCode: 400, Body: "bad"}

	_, err := f.svc.CreateGatewayOrder(ctx, GatewayRequest{ReferenceID: "r1", Amount: decimal.NewFromInt(1000), Method: orders.MethodQRIS})
	var ge *payment.GatewayError
	if !errors.As(err, &ge) {
		t.Fatalf("err = %v", err)
	}
	if f.txs.GlobalCount() != 0 || len(f.events.Events) != 0 {
		t.Fatal("gateway failure left state behind")
	}

	// refused reference ids may be retried
	f.gw.err = nil
	if _, err := f.svc.CreateGatewayOrder(ctx, GatewayRequest{ReferenceID: "r1", Amount: decimal.NewFromInt(1000), Method: orders.MethodQRIS}); err != nil {
		t.Fatalf("retry after refusal: %v", err)
	}
}

func TestGatewayTimeoutKeepsReferenceClaimed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.gw.err = payment.ErrGatewayTimeout

	_, err := f.svc.CreateGatewayOrder(ctx, GatewayRequest{ReferenceID: "r1", Amount: decimal.NewFromInt(1000), Method: orders.MethodQRIS})
	if !errors.Is(err, payment.ErrGatewayTimeout) {
		t.Fatalf("err = %v", err)
	}
	f.gw.err = nil
	_, err = f.svc.CreateGatewayOrder(ctx, GatewayRequest{ReferenceID: "r1", Amount: decimal.NewFromInt(1000), Method: orders.MethodQRIS})
	if !errors.Is(err, orders.ErrDuplicateCheckout) {
		t.Fatalf("reuse after timeout: err = %v", err)
	}
}

func TestGatewayPerBuyerWriteFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.txs.FailPutBuyer = errors.New("index unavailable")

	tx, err := f.svc.CreateGatewayOrder(ctx, GatewayRequest{
		ReferenceID: "order_abc", Amount: decimal.NewFromInt(50000), Method: orders.MethodQRIS,
		Buyer: orders.Customer{ID: "u1"},
	})
	if err != nil {
		t.Fatalf("per-buyer failure must not fail checkout: %v", err)
	}
	if _, err := f.txs.Get(ctx, tx.ReferenceID); err != nil {
		t.Fatalf("global lookup: %v", err)
	}
	if list, _ := f.txs.ListByBuyer(ctx, "u1"); len(list) != 0 {
		t.Fatalf("per-buyer listing = %+v", list)
	}
}

func TestGatewayDuplicateReference(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := GatewayRequest{ReferenceID: "order_abc", Amount: decimal.NewFromInt(50000), Method: orders.MethodQRIS, Buyer: orders.Customer{ID: "u1"}}
	if _, err := f.svc.CreateGatewayOrder(ctx, req); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.CreateGatewayOrder(ctx, req); !errors.Is(err, orders.ErrDuplicateCheckout) {
		t.Fatalf("err = %v", err)
	}
	if f.gw.calls != 1 {
		t.Fatalf("gateway called %d times", f.gw.calls)
	}
}

func TestCheckoutInProgress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	unlock, err := f.guard.Lock(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	defer unlock()

	_, err = f.svc.CreateGatewayOrder(ctx, GatewayRequest{ReferenceID: "r1", Amount: decimal.NewFromInt(1), Method: orders.MethodQRIS, Buyer: orders.Customer{ID: "u1"}})
	if !errors.Is(err, orders.ErrCheckoutInProgress) {
		t.Fatalf("err = %v", err)
	}
	_, err = f.svc.CreateHandoffOrder(ctx, HandoffRequest{Buyer: orders.Customer{ID: "u1"}, Items: []ItemRequest{{ProductID: "p1", Quantity: 1}}})
	if !errors.Is(err, orders.ErrCheckoutInProgress) {
		t.Fatalf("handoff err = %v", err)
	}
}

func TestCancelAndCompleteTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	newOrder := func() string {
		o, err := f.svc.CreateHandoffOrder(ctx, HandoffRequest{Buyer: orders.Customer{ID: "u1"}, Items: []ItemRequest{{ProductID: "p1", Quantity: 1}}})
		if err != nil {
			t.Fatal(err)
		}
		return o.ID
	}

	id := newOrder()
	c, err := f.svc.CancelOrder(ctx, Action{BuyerID: "u1", OrderID: id, Actor: orders.ActorMerchant, Reason: "stok habis"})
	if err != nil {
		t.Fatal(err)
	}
	if c.Status != orders.StatusCancelled || c.CancelledBy != orders.ActorMerchant || c.CancelReason != "stok habis" || c.CancelledAt == nil {
		t.Fatalf("cancelled = %+v", c)
	}
	if _, err := f.svc.CompleteOrder(ctx, Action{BuyerID: "u1", OrderID: id, Actor: orders.ActorBuyer}); !errors.Is(err, orders.ErrInvalidTransition) {
		t.Fatalf("complete after cancel: %v", err)
	}
	if _, err := f.svc.ConfirmOrder(ctx, Action{BuyerID: "u1", OrderID: id, Actor: orders.ActorBuyer}); !errors.Is(err, orders.ErrInvalidTransition) {
		t.Fatalf("confirm after cancel: %v", err)
	}

	id = newOrder()
	done, err := f.svc.CompleteOrder(ctx, Action{BuyerID: "u1", OrderID: id, Actor: orders.ActorMerchant})
	if err != nil || done.Status != orders.StatusCompleted || done.CompletedAt == nil {
		t.Fatalf("complete = %+v, %v", done, err)
	}

	id = newOrder()
	if _, err := f.svc.ConfirmOrder(ctx, Action{BuyerID: "u1", OrderID: id, Actor: orders.ActorMerchant, MerchantID: "m2"}); !errors.Is(err, orders.ErrForbidden) {
		t.Fatalf("foreign merchant: %v", err)
	}
	if _, err := f.svc.ConfirmOrder(ctx, Action{BuyerID: "u1", OrderID: "nope", Actor: orders.ActorBuyer}); !errors.Is(err, orders.ErrNotFound) {
		t.Fatalf("missing order: %v", err)
	}
	if _, err := f.svc.ConfirmOrder(ctx, Action{BuyerID: "u1", OrderID: id, Actor: "admin"}); !errors.Is(err, orders.ErrValidation) {
		t.Fatalf("bad actor: %v", err)
	}

	sent, err := f.svc.MarkHandoffSent(ctx, "u1", id)
	if err != nil || sent.HandoffSentAt == nil {
		t.Fatalf("handoff sent = %+v, %v", sent, err)
	}
}
