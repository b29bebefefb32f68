package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repo keeps both transaction indices in Postgres: transactions (global)
// and buyer_transactions (per buyer).
type Repo struct{ DB *pgxpool.Pool }

var (
	_ TransactionStore = (*Repo)(nil)
	_ OrderStore       = OrderRepo{}
)

const txColumns = `reference_id, gateway_payment_id, buyer_id, customer, description, items,
	amount, currency, status, method, qr_string, bank_code, account_number,
	expires_at, created_at, updated_at`

func (r *Repo) PutGlobal(ctx context.Context, tx Transaction) error {
	return r.put(ctx, "transactions", `(reference_id)`, tx)
}

func (r *Repo) PutBuyer(ctx context.Context, tx Transaction) error {
	if tx.BuyerID == "" {
		return Invalid("buyerId", "is required for the per-buyer index")
	}
	return r.put(ctx, "buyer_transactions", `(buyer_id, reference_id)`, tx)
}

func (r *Repo) put(ctx context.Context, table, conflict string, tx Transaction) error {
	customer, err := json.Marshal(tx.Customer)
	if err != nil {
		return err
	}
	items, err := json.Marshal(nonNilItems(tx.Items))
	if err != nil {
		return err
	}
	args := []any{tx.ReferenceID, tx.GatewayPaymentID, tx.BuyerID, customer, tx.Description, items,
		tx.Amount, tx.Currency, string(tx.Status), string(tx.Method),
		tx.QRString, tx.BankCode, tx.AccountNumber, tx.ExpiresAt, tx.CreatedAt, tx.UpdatedAt}

	// full upsert: checkout and the index worker own the whole record
	q := fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		ON CONFLICT %s DO UPDATE SET
			gateway_payment_id = EXCLUDED.gateway_payment_id,
			customer = EXCLUDED.customer,
			description = EXCLUDED.description,
			items = EXCLUDED.items,
			amount = EXCLUDED.amount,
			currency = EXCLUDED.currency,
			status = EXCLUDED.status,
			method = EXCLUDED.method,
			qr_string = EXCLUDED.qr_string,
			bank_code = EXCLUDED.bank_code,
			account_number = EXCLUDED.account_number,
			expires_at = EXCLUDED.expires_at,
			created_at = EXCLUDED.created_at,
			updated_at = EXCLUDED.updated_at`, table, txColumns, conflict)
	_, err = r.DB.Exec(ctx, q, args...)
	return err
}

func (r *Repo) Get(ctx context.Context, referenceID string) (*Transaction, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+txColumns+` FROM transactions WHERE reference_id=$1`, referenceID)
	return scanTransaction(row)
}

func (r *Repo) GetBuyer(ctx context.Context, buyerID, referenceID string) (*Transaction, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+txColumns+` FROM buyer_transactions
		WHERE buyer_id=$1 AND reference_id=$2`, buyerID, referenceID)
	return scanTransaction(row)
}

func (r *Repo) MergeGlobal(ctx context.Context, referenceID string, p StatusPatch) error {
	return r.merge(ctx, "transactions", "reference_id=$1", []any{referenceID}, p)
}

func (r *Repo) MergeBuyer(ctx context.Context, buyerID, referenceID string, p StatusPatch) error {
	return r.merge(ctx, "buyer_transactions", "buyer_id=$1 AND reference_id=$2", []any{buyerID, referenceID}, p)
}

// merge writes only the callback-owned columns. The key occupies the first
// placeholders, the patch the rest.
func (r *Repo) merge(ctx context.Context, table, where string, key []any, p StatusPatch) error {
	n := len(key)
	q := fmt.Sprintf(`
		UPDATE %s
		SET status=$%d,
		    gateway_payment_id = CASE WHEN $%d = '' THEN gateway_payment_id ELSE $%d END,
		    updated_at=$%d
		WHERE %s AND ($%d = '' OR status = $%d)`,
		table, n+1, n+2, n+2, n+3, where, n+4, n+4)
	args := append(append([]any{}, key...), string(p.Status), p.GatewayPaymentID, p.UpdatedAt, string(p.Expect))
	ct, err := r.DB.Exec(ctx, q, args...)
	if err != nil {
		return err
	}
	if ct.RowsAffected() > 0 {
		return nil
	}
	var exists bool
	if err := r.DB.QueryRow(ctx, fmt.Sprintf(`SELECT EXISTS(SELECT 1 FROM %s WHERE %s)`, table, where), key...).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return ErrStaleWrite
	}
	return ErrNotFound
}

func (r *Repo) ListByBuyer(ctx context.Context, buyerID string) ([]Transaction, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+txColumns+` FROM buyer_transactions
		WHERE buyer_id=$1 ORDER BY created_at DESC`, buyerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *tx)
	}
	return out, rows.Err()
}

// scanTransaction is the single decode step for stored transactions: a row
// either becomes a complete Transaction or the read fails.
func scanTransaction(row pgx.Row) (*Transaction, error) {
	var (
		tx              Transaction
		customer, items []byte
		amount          decimal.Decimal
		status, method  string
		expiresAt       *time.Time
	)
	err := row.Scan(&tx.ReferenceID, &tx.GatewayPaymentID, &tx.BuyerID, &customer, &tx.Description, &items,
		&amount, &tx.Currency, &status, &method, &tx.QRString, &tx.BankCode, &tx.AccountNumber,
		&expiresAt, &tx.CreatedAt, &tx.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(customer, &tx.Customer); err != nil {
		return nil, fmt.Errorf("%w: customer: %v", ErrCorruptRecord, err)
	}
	if err := json.Unmarshal(items, &tx.Items); err != nil {
		return nil, fmt.Errorf("%w: items: %v", ErrCorruptRecord, err)
	}
	tx.Amount = amount
	tx.Status = Status(status)
	tx.Method = PaymentMethod(method)
	tx.Mode = ModeGateway
	tx.ExpiresAt = expiresAt
	if err := ValidateTransaction(tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

// OrderRepo stores handoff orders as JSON documents under their buyer.
type OrderRepo struct{ DB *pgxpool.Pool }

func (r OrderRepo) Create(ctx context.Context, o Order) error {
	doc, err := json.Marshal(o)
	if err != nil {
		return err
	}
	_, err = r.DB.Exec(ctx, `
		INSERT INTO handoff_orders(buyer_id, order_id, status, doc, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		o.BuyerID, o.ID, string(o.Status), doc, o.CreatedAt, o.UpdatedAt)
	return err
}

func (r OrderRepo) Get(ctx context.Context, buyerID, orderID string) (*Order, error) {
	var doc []byte
	err := r.DB.QueryRow(ctx, `SELECT doc FROM handoff_orders WHERE buyer_id=$1 AND order_id=$2`,
		buyerID, orderID).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return DecodeOrder(doc)
}

func (r OrderRepo) Update(ctx context.Context, buyerID, orderID string, fn func(*Order) error) (*Order, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var doc []byte
	err = tx.QueryRow(ctx, `SELECT doc FROM handoff_orders WHERE buyer_id=$1 AND order_id=$2 FOR UPDATE`,
		buyerID, orderID).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	o, err := DecodeOrder(doc)
	if err != nil {
		return nil, err
	}
	if err := fn(o); err != nil {
		return nil, err
	}
	if doc, err = json.Marshal(o); err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, `
		UPDATE handoff_orders SET status=$3, doc=$4, updated_at=$5
		WHERE buyer_id=$1 AND order_id=$2`,
		buyerID, orderID, string(o.Status), doc, o.UpdatedAt); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return o, nil
}

func (r OrderRepo) ListByBuyer(ctx context.Context, buyerID string) ([]Order, error) {
	rows, err := r.DB.Query(ctx, `SELECT doc FROM handoff_orders WHERE buyer_id=$1 ORDER BY created_at DESC`, buyerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		o, err := DecodeOrder(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

func nonNilItems(items []LineItem) []LineItem {
	if items == nil {
		return []LineItem{}
	}
	return items
}
