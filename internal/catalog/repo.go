package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repo reads the catalog tables in Postgres.
type Repo struct{ DB *pgxpool.Pool }

var _ Reader = (*Repo)(nil)

const productQuery = `
	SELECT p.id, p.name, p.price, p.currency, p.stock, p.merchant_id, m.name,
	       COALESCE(p.image_url,''), COALESCE(p.category,''), p.price_visible
	FROM products p
	JOIN merchants m ON m.id = p.merchant_id
	WHERE p.marketplace_visible AND p.is_active
	  AND m.marketplace_opt_in AND m.status = 'active'`

const merchantQuery = `
	SELECT id, name, COALESCE(phone,''), COALESCE(category,''), tags,
	       COALESCE(address,''), COALESCE(logo_url,'')
	FROM merchants
	WHERE marketplace_opt_in AND status = 'active'`

func (r *Repo) GetProduct(ctx context.Context, id string) (*ProductSnapshot, error) {
	p, err := decodeProduct(r.DB.QueryRow(ctx, productQuery+` AND p.id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

func (r *Repo) ProductsByMerchant(ctx context.Context, merchantID string) ([]ProductSnapshot, error) {
	rows, err := r.DB.Query(ctx, productQuery+` AND p.merchant_id=$1`, merchantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ProductSnapshot
	for rows.Next() {
		p, err := decodeProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	SortForListing(out)
	return out, nil
}

func (r *Repo) GetMerchant(ctx context.Context, id string) (*Merchant, error) {
	var m Merchant
	err := r.DB.QueryRow(ctx, merchantQuery+` AND id=$1`, id).
		Scan(&m.ID, &m.Name, &m.Phone, &m.Category, &m.Tags, &m.Address, &m.LogoURL)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *Repo) ListMerchants(ctx context.Context, f Filter) ([]Merchant, error) {
	rows, err := r.DB.Query(ctx, merchantQuery+` ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Merchant
	for rows.Next() {
		var m Merchant
		if err := rows.Scan(&m.ID, &m.Name, &m.Phone, &m.Category, &m.Tags, &m.Address, &m.LogoURL); err != nil {
			return nil, err
		}
		if f.match(m) {
			out = append(out, m)
		}
	}
	return out, rows.Err()
}

// decodeProduct turns one catalog row into a snapshot. Hidden prices are
// zeroed here so no caller can leak them.
func decodeProduct(row pgx.Row) (*ProductSnapshot, error) {
	var (
		p     ProductSnapshot
		price decimal.Decimal
		stock *int
	)
	err := row.Scan(&p.ID, &p.Name, &price, &p.Currency, &stock, &p.MerchantID, &p.MerchantName,
		&p.ImageURL, &p.Category, &p.PriceVisible)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(p.Name) == "" {
		return nil, fmt.Errorf("%w: product %s without name", orders.ErrCorruptRecord, p.ID)
	}
	if p.Currency == "" {
		p.Currency = orders.DefaultCurrency
	}
	if p.PriceVisible {
		p.UnitPrice = price
	}
	p.Stock = stock
	return &p, nil
}
