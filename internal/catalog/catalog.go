// Package catalog reads merchant-published stores and products. Merchants
// own these records through their POS; the storefront never writes them.
package catalog

import (
	"context"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

type ProductSnapshot struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	UnitPrice    decimal.Decimal `json:"unitPrice"`
	Currency     string          `json:"currency"`
	Stock        *int            `json:"stock,omitempty"` // nil = not tracked
	MerchantID   string          `json:"merchantId"`
	MerchantName string          `json:"merchantName"`
	ImageURL     string          `json:"imageUrl,omitempty"`
	Category     string          `json:"category,omitempty"`
	PriceVisible bool            `json:"priceVisible"`
}

type Merchant struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Phone    string   `json:"phone,omitempty"`
	Category string   `json:"category,omitempty"`
	Tags     []string `json:"tags,omitempty"`
	Address  string   `json:"address,omitempty"`
	LogoURL  string   `json:"logoUrl,omitempty"`
}

type Filter struct {
	Category string
	Tags     []string
}

// Reader is the read side of the catalog. Lookups of hidden or missing
// records return nil with a nil error.
type Reader interface {
	GetProduct(ctx context.Context, id string) (*ProductSnapshot, error)
	ProductsByMerchant(ctx context.Context, merchantID string) ([]ProductSnapshot, error)
	GetMerchant(ctx context.Context, id string) (*Merchant, error)
	ListMerchants(ctx context.Context, f Filter) ([]Merchant, error)
}

const (
	StockOutOfStock = "out_of_stock"
	StockLimited    = "limited"
	StockAvailable  = "available"

	limitedThreshold = 5
)

// StockStatus labels a stock count for display.
func StockStatus(stock *int) string {
	switch {
	case stock == nil:
		return StockAvailable
	case *stock <= 0:
		return StockOutOfStock
	case *stock <= limitedThreshold:
		return StockLimited
	default:
		return StockAvailable
	}
}

func (p ProductSnapshot) Available() bool { return p.Stock == nil || *p.Stock > 0 }

// HasStock reports whether qty units can be sold.
func (p ProductSnapshot) HasStock(qty int) bool { return p.Stock == nil || *p.Stock >= qty }

// SortForListing puts available products first, then orders by name.
func SortForListing(ps []ProductSnapshot) {
	sort.SliceStable(ps, func(i, j int) bool {
		ai, aj := ps[i].Available(), ps[j].Available()
		if ai != aj {
			return ai
		}
		return strings.ToLower(ps[i].Name) < strings.ToLower(ps[j].Name)
	})
}

func (f Filter) match(m Merchant) bool {
	if f.Category != "" && !strings.EqualFold(f.Category, m.Category) {
		return false
	}
	for _, want := range f.Tags {
		found := false
		for _, t := range m.Tags {
			if strings.EqualFold(t, want) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func sortMerchants(ms []Merchant) {
	sort.Slice(ms, func(i, j int) bool { return ms[i].Name < ms[j].Name })
}
