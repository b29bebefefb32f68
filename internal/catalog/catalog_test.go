package catalog

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
)

func intp(i int) *int { return &i }

func TestStockStatus(t *testing.T) {
	cases := []struct {
		stock *int
		want  string
	}{
		{nil, StockAvailable},
		{intp(0), StockOutOfStock},
		{intp(-2), StockOutOfStock},
		{intp(1), StockLimited},
		{intp(5), StockLimited},
		{intp(6), StockAvailable},
	}
	for _, c := range cases {
		if got := StockStatus(c.stock); got != c.want {
			t.Errorf("StockStatus(%v) = %s, want %s", c.stock, got, c.want)
		}
	}
}

func TestSortForListing(t *testing.T) {
	ps := []ProductSnapshot{
		{ID: "a", Name: "Teh", Stock: intp(0)},
		{ID: "b", Name: "kopi"},
		{ID: "c", Name: "Air", Stock: intp(3)},
		{ID: "d", Name: "Bakso", Stock: intp(0)},
	}
	SortForListing(ps)
	var got []string
	for _, p := range ps {
		got = append(got, p.ID)
	}
	if diff := cmp.Diff([]string{"c", "b", "d", "a"}, got); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestHasStock(t *testing.T) {
	p := ProductSnapshot{Stock: intp(2)}
	if !p.HasStock(2) || p.HasStock(3) {
		t.Fatal("tracked stock must bound quantity")
	}
	if !(ProductSnapshot{}).HasStock(1000) {
		t.Fatal("untracked stock is unlimited")
	}
}

func TestMemoryListMerchantsFilter(t *testing.T) {
	m := NewMemory()
	m.PutMerchant(Merchant{ID: "m1", Name: "Warung Bu Sri", Category: "food", Tags: []string{"halal", "murah"}})
	m.PutMerchant(Merchant{ID: "m2", Name: "Kopi Kita", Category: "drinks", Tags: []string{"halal"}})

	got, err := m.ListMerchants(context.Background(), Filter{Tags: []string{"HALAL"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ID != "m2" {
		t.Fatalf("got %+v", got)
	}
	got, _ = m.ListMerchants(context.Background(), Filter{Category: "food", Tags: []string{"murah"}})
	if len(got) != 1 || got[0].ID != "m1" {
		t.Fatalf("got %+v", got)
	}
}

func TestMemoryGetProductMissing(t *testing.T) {
	m := NewMemory()
	m.PutProduct(ProductSnapshot{ID: "p1", Name: "Nasi", UnitPrice: decimal.NewFromInt(15000), MerchantID: "m1"})
	p, err := m.GetProduct(context.Background(), "nope")
	if err != nil || p != nil {
		t.Fatalf("GetProduct(missing) = %v, %v", p, err)
	}
	p, _ = m.GetProduct(context.Background(), "p1")
	if p == nil || !p.UnitPrice.Equal(decimal.NewFromInt(15000)) {
		t.Fatalf("GetProduct = %+v", p)
	}
}
