package cart

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ariefcatur/go-storefront/internal/catalog"
	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/redis/go-redis/v9"
)

func intp(i int) *int { return &i }

func newManager(t *testing.T) (*Manager, *MemoryStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cat := catalog.NewMemory()
	cat.PutProduct(product("p1", "m1", 15000))
	p2 := product("p2", "m1", 5000)
	p2.Stock = intp(2)
	cat.PutProduct(p2)
	cat.PutProduct(product("p9", "m2", 1000))
	hidden := product("p5", "m1", 1)
	hidden.PriceVisible = false
	cat.PutProduct(hidden)

	buyers := NewMemoryStore()
	return &Manager{
		Catalog: cat,
		Device:  DeviceStore{Redis: rdb, TTL: time.Hour},
		Buyers:  buyers,
	}, buyers, mr
}

func TestManagerAddPersistsDeviceSlot(t *testing.T) {
	m, _, mr := newManager(t)
	ctx := context.Background()
	o := Owner{DeviceID: "dev-1"}

	if _, err := m.Add(ctx, o, "p1", 2); err != nil {
		t.Fatal(err)
	}
	if !mr.Exists("cart:device:dev-1") {
		t.Fatal("device slot not written")
	}
	if ttl := mr.TTL("cart:device:dev-1"); ttl != time.Hour {
		t.Fatalf("ttl = %s", ttl)
	}
	c, err := m.Load(ctx, o)
	if err != nil {
		t.Fatal(err)
	}
	if c.TotalItems() != 2 || c.MerchantID() != "m1" {
		t.Fatalf("loaded %+v", c.Lines())
	}

	_, err = m.Add(ctx, o, "p9", 1)
	var cm *CrossMerchantCartError
	if !errors.As(err, &cm) {
		t.Fatalf("err = %v", err)
	}
}

func TestManagerAddChecksCatalog(t *testing.T) {
	m, _, _ := newManager(t)
	ctx := context.Background()
	o := Owner{DeviceID: "dev-1"}

	if _, err := m.Add(ctx, o, "missing", 1); !errors.Is(err, orders.ErrNotFound) {
		t.Fatalf("missing product err = %v", err)
	}
	if _, err := m.Add(ctx, o, "p5", 1); !errors.Is(err, orders.ErrValidation) {
		t.Fatalf("hidden price err = %v", err)
	}
	if _, err := m.Add(ctx, o, "p2", 2); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Add(ctx, o, "p2", 1); !errors.Is(err, orders.ErrOutOfStock) {
		t.Fatalf("over stock err = %v", err)
	}
	if _, err := m.Add(ctx, Owner{}, "p1", 1); !errors.Is(err, orders.ErrValidation) {
		t.Fatalf("ownerless err = %v", err)
	}
}

func TestManagerUpdateRemoveClear(t *testing.T) {
	m, _, mr := newManager(t)
	ctx := context.Background()
	o := Owner{DeviceID: "dev-1"}
	_, _ = m.Add(ctx, o, "p1", 1)
	_, _ = m.Add(ctx, o, "p2", 1)

	c, err := m.Update(ctx, o, "p1", 4)
	if err != nil || c.TotalItems() != 5 {
		t.Fatalf("update: %v %d", err, c.TotalItems())
	}
	c, _ = m.Remove(ctx, o, "p2")
	if c.TotalItems() != 4 {
		t.Fatalf("remove: %d", c.TotalItems())
	}
	if err := m.Clear(ctx, o); err != nil {
		t.Fatal(err)
	}
	if mr.Exists("cart:device:dev-1") {
		t.Fatal("cleared cart still stored")
	}
}

func TestManagerAttachMerges(t *testing.T) {
	m, buyers, _ := newManager(t)
	ctx := context.Background()

	_ = buyers.Save(ctx, "u1", New(
		Line{Product: product("p1", "m1", 15000), Quantity: 9},
		Line{Product: product("p2", "m1", 5000), Quantity: 1},
	))
	dev := Owner{DeviceID: "dev-1"}
	_, _ = m.Add(ctx, dev, "p1", 2)

	merged, err := m.Attach(ctx, Owner{DeviceID: "dev-1", BuyerID: "u1"})
	if err != nil {
		t.Fatal(err)
	}
	if merged.TotalItems() != 3 {
		t.Fatalf("merged lines = %+v", merged.Lines())
	}
	remote, _ := buyers.Load(ctx, "u1")
	local, _ := m.Device.Load(ctx, "dev-1")
	if remote.TotalItems() != 3 || local.TotalItems() != 3 {
		t.Fatalf("write back: remote=%d local=%d", remote.TotalItems(), local.TotalItems())
	}
}

func TestManagerMirrorFailureIsNotFatal(t *testing.T) {
	m, buyers, _ := newManager(t)
	buyers.FailSave = errors.New("db down")
	c, err := m.Add(context.Background(), Owner{DeviceID: "dev-1", BuyerID: "u1"}, "p1", 1)
	if err != nil {
		t.Fatalf("mirror failure surfaced: %v", err)
	}
	if c.TotalItems() != 1 {
		t.Fatal("cart not updated")
	}
}

func TestDecodeLinesDropsInvalid(t *testing.T) {
	c, err := decodeLines([]byte(`[
		{"product":{"id":"p1","merchantId":"m1","unitPrice":"100"},"quantity":2},
		{"product":{"id":"","merchantId":"m1"},"quantity":1},
		{"product":{"id":"p3","merchantId":"m1"},"quantity":0},
		{"product":{"id":"p4","merchantId":"m2"},"quantity":1}
	]`))
	if err != nil {
		t.Fatal(err)
	}
	if len(c.Lines()) != 1 || c.TotalItems() != 2 {
		t.Fatalf("decoded %+v", c.Lines())
	}
	if _, err := decodeLines([]byte(`{`)); !errors.Is(err, orders.ErrCorruptRecord) {
		t.Fatalf("err = %v", err)
	}
}
